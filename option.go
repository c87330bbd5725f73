package x402

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xgov/x402/clients"
	"github.com/xgov/x402/logger"
	"github.com/xgov/x402/metrics"
	"github.com/xgov/x402/registry"
	"github.com/xgov/x402/settlement"
	"github.com/xgov/x402/types"
)

type options struct {
	logger   logger.Logger
	metrics  metrics.Recorder
	timeout  time.Duration
	ledger   clients.LedgerReader
	sender   settlement.TransactionSender
	gatherer prometheus.Gatherer
	policy   registry.FallbackPolicy
	static   []types.ProviderProfile
}

type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: 30 * time.Second,
		policy:  registry.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) {
		o.metrics = metrics.OrNoop(r)
	}
}

// WithTimeout bounds each payment verification and, for clients, each ledger
// call.
func WithTimeout(t time.Duration) Option {
	return func(o *options) {
		if t > 0 {
			o.timeout = t
		}
	}
}

// WithLedger replaces the JSON-RPC ledger connection.
func WithLedger(l clients.LedgerReader) Option {
	return func(o *options) {
		o.ledger = l
	}
}

// WithSender sets the transaction sender used to record validations.
func WithSender(s settlement.TransactionSender) Option {
	return func(o *options) {
		o.sender = s
	}
}

// WithGatherer exposes g on the provider's /metrics route.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = g
	}
}

// WithPolicy sets how clients list providers when the registry is unreadable.
func WithPolicy(p registry.FallbackPolicy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithStaticProfiles sets the sample listing clients fall back to when the
// registry is unreadable and the policy allows it.
func WithStaticProfiles(profiles []types.ProviderProfile) Option {
	return func(o *options) {
		o.static = profiles
	}
}
