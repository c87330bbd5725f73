package registry

import "github.com/xgov/x402/types"

// Source names where a provider listing came from.
type Source int

const (
	// SourceLive is a listing read from the ledger.
	SourceLive Source = iota
	// SourceStaticFallback is the configured sample listing, used when the
	// ledger could not be read.
	SourceStaticFallback
	// SourceEmpty is an empty listing standing in for an unreadable ledger.
	SourceEmpty
)

func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceStaticFallback:
		return "static"
	case SourceEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// FallbackPolicy picks the source of a listing given the outcome of the live
// query and whether static profiles are configured. Returning SourceLive for a
// failed query surfaces the error to the caller.
type FallbackPolicy func(liveErr error, haveStatic bool) Source

// DefaultPolicy uses the live listing when it succeeded, then the static
// sample, then an empty listing. It never surfaces an error.
func DefaultPolicy(liveErr error, haveStatic bool) Source {
	switch {
	case liveErr == nil:
		return SourceLive
	case haveStatic:
		return SourceStaticFallback
	default:
		return SourceEmpty
	}
}

// StrictPolicy always uses the live listing, so ledger failures surface.
func StrictPolicy(error, bool) Source {
	return SourceLive
}

// Listing is a provider listing together with its provenance. Err holds the
// live query failure, if any, even when a fallback was used.
type Listing struct {
	Source   Source
	Profiles []types.ProviderProfile
	Err      error
}
