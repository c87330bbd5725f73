package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/xgov/x402/clients"
	"github.com/xgov/x402/logger"
	"github.com/xgov/x402/metrics"
	"github.com/xgov/x402/types"
	"golang.org/x/sync/errgroup"
)

// ErrProfileNotFound is returned by GetProfile when the owner has no profile.
var ErrProfileNotFound = errors.New("provider profile not found")

// Registry reads provider profiles from the on-chain reputation program and
// selects among them.
type Registry struct {
	ledger    clients.LedgerReader
	programID solana.PublicKey

	metadata MetadataSource
	policy   FallbackPolicy
	static   []types.ProviderProfile

	logger  logger.Logger
	metrics metrics.Recorder
}

type Option func(*Registry)

func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.OrNoop(l)
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Registry) {
		r.metrics = metrics.OrNoop(m)
	}
}

// WithMetadata sets the source of service-type metadata used by SelectBest.
func WithMetadata(m MetadataSource) Option {
	return func(r *Registry) {
		r.metadata = m
	}
}

func WithPolicy(p FallbackPolicy) Option {
	return func(r *Registry) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithStaticProfiles sets the sample listing offered to the fallback policy.
func WithStaticProfiles(profiles []types.ProviderProfile) Option {
	return func(r *Registry) {
		r.static = slices.Clone(profiles)
	}
}

func New(ledger clients.LedgerReader, programID solana.PublicKey, opts ...Option) *Registry {
	r := &Registry{
		ledger:    ledger,
		programID: programID,
		policy:    DefaultPolicy,
		logger:    logger.NoopLogger{},
		metrics:   metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) ProgramID() solana.PublicKey { return r.programID }

// Listing enumerates provider profiles and reports which source supplied them.
func (r *Registry) Listing(ctx context.Context) Listing {
	start := time.Now()
	profiles, err := r.scan(ctx)

	source := r.policy(err, len(r.static) > 0)
	r.metrics.IncCounter(metrics.EventRegistryScan, metrics.Outcome(source.String()))
	r.metrics.ObserveLatency(metrics.EventRegistryScan, time.Since(start), metrics.Outcome(source.String()))

	switch source {
	case SourceStaticFallback:
		r.logger.Warn("registry unavailable, using static providers", map[string]any{"error": err})
		return Listing{Source: source, Profiles: slices.Clone(r.static), Err: err}
	case SourceEmpty:
		r.logger.Warn("registry unavailable, no providers listed", map[string]any{"error": err})
		return Listing{Source: source, Profiles: nil, Err: err}
	default:
		return Listing{Source: SourceLive, Profiles: profiles, Err: err}
	}
}

// ListProviders returns the registered profiles in enumeration order. An error
// is returned only when the policy surfaces a ledger failure.
func (r *Registry) ListProviders(ctx context.Context) ([]types.ProviderProfile, error) {
	l := r.Listing(ctx)
	if l.Source == SourceLive && l.Err != nil {
		return nil, l.Err
	}
	return l.Profiles, nil
}

func (r *Registry) scan(ctx context.Context) ([]types.ProviderProfile, error) {
	accounts, err := r.ledger.GetProgramAccounts(ctx, r.programID, clients.AccountFilter{
		Prefix: ProfileDiscriminator,
	})
	if err != nil {
		return nil, err
	}

	profiles := make([]types.ProviderProfile, 0, len(accounts))
	for _, acc := range accounts {
		p, err := r.decodeAccount(acc)
		if err != nil {
			r.metrics.IncCounter(metrics.EventSkippedRecord, nil)
			r.logger.Warn("skipping undecodable profile account", map[string]any{
				"account": acc.Key.String(),
				"error":   err,
			})
			continue
		}
		profiles = append(profiles, *p)
	}

	r.logger.Debug("registry scanned", map[string]any{
		"accounts": len(accounts),
		"profiles": len(profiles),
	})
	return profiles, nil
}

// decodeAccount decodes acc and checks that it sits at its owner's derived
// address.
func (r *Registry) decodeAccount(acc types.KeyedAccount) (*types.ProviderProfile, error) {
	p, err := DecodeProfile(acc.Data)
	if err != nil {
		return nil, err
	}

	addr, err := ProfileAddress(p.OwnerKey, r.programID)
	if err != nil {
		return nil, fmt.Errorf("derive profile address: %w", err)
	}
	if !acc.Key.IsZero() && !acc.Key.Equals(addr) {
		return nil, fmt.Errorf("account %s is not the profile address %s of owner %s", acc.Key, addr, p.OwnerKey)
	}

	p.AccountKey = addr
	return p, nil
}

// SelectBest returns the highest-reputation provider, or nil when none are
// registered. When serviceType is set and metadata lists active providers of
// that type, only those are ranked; if none of them is registered the whole
// listing is ranked instead. Ties keep enumeration order.
func (r *Registry) SelectBest(ctx context.Context, serviceType string) (*types.ProviderProfile, error) {
	profiles, err := r.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}

	candidates := profiles
	if serviceType != "" {
		if filtered := r.filterByService(ctx, profiles, serviceType); len(filtered) > 0 {
			candidates = filtered
		} else {
			r.logger.Info("no provider offers service type, ranking all providers", map[string]any{
				"service_type": serviceType,
			})
		}
	}

	ranked := Rank(candidates)
	best := ranked[0]
	return &best, nil
}

func (r *Registry) filterByService(ctx context.Context, profiles []types.ProviderProfile, serviceType string) []types.ProviderProfile {
	if r.metadata == nil {
		return nil
	}

	entries, err := r.metadata.Metadata(ctx)
	var partial *PartialMetadataError
	switch {
	case errors.As(err, &partial):
		for _, bad := range partial.Skipped {
			r.metrics.IncCounter(metrics.EventSkippedRecord, nil)
			r.logger.Warn("skipping invalid provider metadata entry", map[string]any{
				"index":    bad.Index,
				"agent_id": bad.AgentID,
				"error":    bad.Err,
			})
		}
	case err != nil:
		r.logger.Warn("provider metadata unavailable", map[string]any{"error": err})
		return nil
	}

	owners := ownersOffering(entries, serviceType)
	var out []types.ProviderProfile
	for _, p := range profiles {
		if _, ok := owners[p.OwnerKey.String()]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Rank returns a copy of profiles sorted by reputation, highest first. Equal
// scores keep their input order.
func Rank(profiles []types.ProviderProfile) []types.ProviderProfile {
	ranked := slices.Clone(profiles)
	slices.SortStableFunc(ranked, func(a, b types.ProviderProfile) int {
		return cmp.Compare(b.ReputationScore, a.ReputationScore)
	})
	return ranked
}

// GetProfile reads the profile of owner from its derived address.
func (r *Registry) GetProfile(ctx context.Context, owner solana.PublicKey) (*types.ProviderProfile, error) {
	addr, err := ProfileAddress(owner, r.programID)
	if err != nil {
		return nil, fmt.Errorf("derive profile address: %w", err)
	}

	data, err := r.ledger.GetAccountInfo(ctx, addr)
	if errors.Is(err, clients.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return r.decodeAccount(types.KeyedAccount{Key: addr, Owner: r.programID, Data: data})
}

// Stats aggregates the current listing.
func (r *Registry) Stats(ctx context.Context) (*types.RegistryStats, error) {
	profiles, err := r.ListProviders(ctx)
	if err != nil {
		return nil, err
	}

	stats := &types.RegistryStats{TotalProviders: len(profiles)}
	if len(profiles) == 0 {
		return stats, nil
	}

	var reputation uint64
	for _, p := range profiles {
		stats.TotalSuccessfulTxs += uint64(p.TotalSuccessfulTxs)
		reputation += uint64(p.ReputationScore)
	}
	stats.AverageReputation = float64(reputation) / float64(len(profiles))
	return stats, nil
}

// recentTxWindow bounds how many program transactions TransactionCount reads.
const recentTxWindow = 1000

// TransactionCount returns how many of the most recent transactions, up to
// 1000, referenced the registry program.
func (r *Registry) TransactionCount(ctx context.Context) (int, error) {
	sigs, err := r.ledger.GetSignaturesForAddress(ctx, r.programID, recentTxWindow)
	if err != nil {
		return 0, err
	}
	return len(sigs), nil
}

// NetworkStats reads the current slot, its block time and the epoch position.
func (r *Registry) NetworkStats(ctx context.Context) (*types.NetworkStats, error) {
	var (
		stats types.NetworkStats
		epoch *types.EpochInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slot, err := r.ledger.GetSlot(gctx)
		if err != nil {
			return err
		}
		bt, err := r.ledger.GetBlockTime(gctx, slot)
		if err != nil {
			return err
		}
		stats.CurrentSlot = slot
		stats.BlockTime = bt
		return nil
	})
	g.Go(func() error {
		info, err := r.ledger.GetEpochInfo(gctx)
		if err != nil {
			return err
		}
		epoch = info
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Epoch = epoch.Epoch
	stats.SlotIndex = epoch.SlotIndex
	return &stats, nil
}
