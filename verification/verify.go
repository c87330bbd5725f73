package verification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/xgov/x402/cache"
	"github.com/xgov/x402/clients"
	"github.com/xgov/x402/logger"
	"github.com/xgov/x402/metrics"
	"github.com/xgov/x402/types"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 30 * time.Second

// Verifier checks a payment proof and returns the verified payment.
type Verifier interface {
	Verify(ctx context.Context, proof string) (*types.VerifiedPayment, error)
}

// VerificationService verifies native-token payments to a single recipient by
// reading the settled transaction from the ledger. Successful verifications
// are cached; concurrent verifications of one proof share a single ledger
// lookup.
type VerificationService struct {
	ledger    clients.LedgerReader
	cache     *cache.Cache
	recipient solana.PublicKey
	required  uint64

	flight  singleflight.Group
	timeout time.Duration

	retries    int
	retryDelay time.Duration

	logger  logger.Logger
	metrics metrics.Recorder
}

var _ Verifier = (*VerificationService)(nil)

type Option func(*VerificationService)

func WithCache(c *cache.Cache) Option {
	return func(s *VerificationService) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *VerificationService) {
		s.logger = logger.OrNoop(l)
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *VerificationService) {
		s.metrics = metrics.OrNoop(m)
	}
}

// WithTimeout bounds one ledger verification, retries included.
func WithTimeout(d time.Duration) Option {
	return func(s *VerificationService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetry re-reads the ledger up to attempts more times when the read fails
// with a network error. Payment errors are never retried.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(s *VerificationService) {
		s.retries = attempts
		s.retryDelay = delay
	}
}

// NewVerificationService creates a verifier for payments of at least required
// lamports to recipient.
func NewVerificationService(
	ledger clients.LedgerReader,
	recipient solana.PublicKey,
	required uint64,
	opts ...Option,
) *VerificationService {
	s := &VerificationService{
		ledger:    ledger,
		cache:     cache.New(),
		recipient: recipient,
		required:  required,
		timeout:   defaultTimeout,
		logger:    logger.NoopLogger{},
		metrics:   metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VerificationService) Recipient() solana.PublicKey { return s.recipient }

func (s *VerificationService) RequiredAmount() uint64 { return s.required }

// Verify returns the verified payment for proof.
//
// An empty proof yields a PAYMENT_REQUIRED error. A fresh cached entry is
// returned without touching the ledger. Otherwise the transaction is read and
// checked; the ledger read is detached from ctx so that a caller giving up
// does not stop the result from being cached.
func (s *VerificationService) Verify(ctx context.Context, proof string) (*types.VerifiedPayment, error) {
	proof = strings.TrimSpace(proof)
	if proof == "" {
		return nil, types.NewNoProofError()
	}

	if p, ok := s.cached(ctx, proof); ok {
		s.metrics.IncCounter(metrics.EventCacheHit, nil)
		return p, nil
	}
	s.metrics.IncCounter(metrics.EventCacheMiss, nil)

	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(proof, func() (any, error) {
		return s.verifyOnLedger(detached, proof)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.VerifiedPayment), nil
	}
}

func (s *VerificationService) cached(ctx context.Context, proof string) (*types.VerifiedPayment, bool) {
	p, ok, err := s.cache.Lookup(ctx, proof)
	if err != nil {
		s.logger.Warn("verification cache lookup failed", map[string]any{
			"proof": proof,
			"error": err,
		})
		return nil, false
	}
	return p, ok
}

func (s *VerificationService) verifyOnLedger(ctx context.Context, proof string) (*types.VerifiedPayment, error) {
	// Another flight may have finished between the caller's lookup and this one.
	if p, ok := s.cached(ctx, proof); ok {
		return p, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	payment, err := s.check(ctx, proof)
	outcome := outcomeOf(err)
	s.metrics.IncCounter(metrics.EventVerification, metrics.Outcome(outcome))
	s.metrics.ObserveLatency(metrics.EventVerification, time.Since(start), metrics.Outcome(outcome))

	if err != nil {
		s.logger.Info("payment verification failed", map[string]any{
			"proof":   proof,
			"outcome": outcome,
			"error":   err,
		})
		return nil, err
	}

	if err := s.cache.Put(ctx, payment); err != nil {
		s.logger.Warn("failed to cache verified payment", map[string]any{
			"proof": proof,
			"error": err,
		})
	}

	s.logger.Info("payment verified", map[string]any{
		"proof":  proof,
		"amount": payment.AmountReceived,
		"payer":  payment.Payer,
	})
	return payment, nil
}

// check applies the payment rules to the ledger record of proof.
func (s *VerificationService) check(ctx context.Context, proof string) (*types.VerifiedPayment, error) {
	tx, err := s.fetch(ctx, proof)
	if err != nil {
		return nil, err
	}

	if tx.Failed() {
		return nil, types.NewPaymentFailedError(tx.Err)
	}

	idx := tx.IndexOf(s.recipient.String())
	if idx < 0 {
		return nil, types.NewInvalidPaymentError("Payment not sent to correct recipient")
	}
	if idx >= len(tx.PreBalances) || idx >= len(tx.PostBalances) {
		return nil, types.NewInvalidPaymentError("Transaction is missing balance data")
	}

	received := int64(tx.PostBalances[idx]) - int64(tx.PreBalances[idx])
	if received < 0 || uint64(received) < s.required {
		return nil, types.NewInsufficientPaymentError(s.required, received)
	}

	return &types.VerifiedPayment{
		ProofToken:     proof,
		AmountReceived: uint64(received),
		Payer:          tx.AccountKeys[0],
		VerifiedAt:     s.cache.Now(),
	}, nil
}

func (s *VerificationService) fetch(ctx context.Context, proof string) (*types.TransactionRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, types.NewNetworkError(clients.OpGetTransaction, ctx.Err())
			case <-time.After(s.retryDelay):
			}
		}

		tx, err := s.ledger.GetTransaction(ctx, proof)
		switch {
		case err == nil:
			return tx, nil
		case errors.Is(err, clients.ErrNotFound):
			return nil, types.NewInvalidPaymentError("Transaction not found on blockchain")
		}

		if xe, ok := types.AsX402(err); ok && xe.Code != types.ErrNetworkError {
			return nil, err
		}
		if _, ok := types.AsX402(err); !ok {
			err = types.NewNetworkError(clients.OpGetTransaction, err)
		}
		lastErr = err
	}
	return nil, lastErr
}

func outcomeOf(err error) string {
	if err == nil {
		return "verified"
	}
	if xe, ok := types.AsX402(err); ok {
		return strings.ToLower(xe.Code)
	}
	return "error"
}
