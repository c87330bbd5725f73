package metrics

import "time"

// Recorder receives counters and latencies from the payment gate, the
// verification engine and the registry client.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event names.
const (
	EventVerification  = "verification"
	EventCacheHit      = "cache_hit"
	EventCacheMiss     = "cache_miss"
	EventGatedRequest  = "gated_request"
	EventRegistryScan  = "registry_scan"
	EventValidationTx  = "validation_tx"
	EventSkippedRecord = "skipped_record"
)

// Label keys.
const (
	LabelOutcome = "outcome"
	LabelRoute   = "route"
)

// Outcome is a label map carrying only the outcome.
func Outcome(outcome string) map[string]string {
	return map[string]string{LabelOutcome: outcome}
}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
