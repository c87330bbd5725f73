package settlement

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/xgov/x402/logger"
	"github.com/xgov/x402/metrics"
)

// ErrNotConfirmed is returned when a sent transaction did not reach confirmed
// commitment within the polling budget. The signature is still returned.
var ErrNotConfirmed = errors.New("transaction not confirmed after retries")

// ValidationRecorder records the buyer's evaluation of a served request in the
// reputation program. Calls are not deduplicated.
type ValidationRecorder interface {
	RecordValidation(ctx context.Context, sellerProfile solana.PublicKey, success bool) (string, error)
}

// TransactionSender is the write side of the ledger client.
type TransactionSender interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	IsConfirmed(ctx context.Context, sig solana.Signature) (bool, error)
}

var recordValidationDiscriminator = instructionDiscriminator("record_validation")

func instructionDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

// SolanaRecorder submits record_validation instructions signed by the buyer.
// Each call creates a fresh validation record account.
type SolanaRecorder struct {
	sender    TransactionSender
	buyer     solana.PrivateKey
	programID solana.PublicKey

	pollInterval time.Duration
	pollAttempts int
	timeout      time.Duration

	newRecordKey func() (solana.PrivateKey, error)

	logger  logger.Logger
	metrics metrics.Recorder
}

var _ ValidationRecorder = (*SolanaRecorder)(nil)

type Option func(*SolanaRecorder)

func WithLogger(l logger.Logger) Option {
	return func(r *SolanaRecorder) {
		r.logger = logger.OrNoop(l)
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *SolanaRecorder) {
		r.metrics = metrics.OrNoop(m)
	}
}

// WithPolling sets how often and how many times confirmation is checked.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(r *SolanaRecorder) {
		if interval > 0 {
			r.pollInterval = interval
		}
		if attempts > 0 {
			r.pollAttempts = attempts
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *SolanaRecorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewSolanaRecorder(
	sender TransactionSender,
	buyer solana.PrivateKey,
	programID solana.PublicKey,
	opts ...Option,
) *SolanaRecorder {
	r := &SolanaRecorder{
		sender:       sender,
		buyer:        buyer,
		programID:    programID,
		pollInterval: 3 * time.Second,
		pollAttempts: 5,
		timeout:      30 * time.Second,
		newRecordKey: solana.NewRandomPrivateKey,
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordValidation sends the evaluation and waits for confirmation.
func (r *SolanaRecorder) RecordValidation(ctx context.Context, sellerProfile solana.PublicKey, success bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	sig, err := r.record(ctx, sellerProfile, success)

	outcome := "confirmed"
	switch {
	case errors.Is(err, ErrNotConfirmed):
		outcome = "unconfirmed"
	case err != nil:
		outcome = "error"
	}
	r.metrics.IncCounter(metrics.EventValidationTx, metrics.Outcome(outcome))
	r.metrics.ObserveLatency(metrics.EventValidationTx, time.Since(start), metrics.Outcome(outcome))

	fields := map[string]any{
		"seller_profile": sellerProfile.String(),
		"success":        success,
		"outcome":        outcome,
	}
	if !sig.IsZero() {
		fields["signature"] = sig.String()
	}
	if err != nil {
		fields["error"] = err
		r.logger.Error("validation recording failed", fields)
		if sig.IsZero() {
			return "", err
		}
		return sig.String(), err
	}

	r.logger.Info("validation recorded", fields)
	return sig.String(), nil
}

func (r *SolanaRecorder) record(ctx context.Context, sellerProfile solana.PublicKey, success bool) (solana.Signature, error) {
	recordKey, err := r.newRecordKey()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("generate validation record key: %w", err)
	}

	blockhash, err := r.sender.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	tx, err := r.buildTransaction(recordKey, sellerProfile, success, blockhash)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := r.sender.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}

	return sig, r.awaitConfirmation(ctx, sig)
}

func (r *SolanaRecorder) buildTransaction(
	recordKey solana.PrivateKey,
	sellerProfile solana.PublicKey,
	success bool,
	blockhash solana.Hash,
) (*solana.Transaction, error) {
	data := make([]byte, 0, len(recordValidationDiscriminator)+1)
	data = append(data, recordValidationDiscriminator...)
	if success {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}

	ix := solana.NewInstruction(r.programID, solana.AccountMetaSlice{
		solana.Meta(recordKey.PublicKey()).WRITE().SIGNER(),
		solana.Meta(sellerProfile).WRITE(),
		solana.Meta(r.buyer.PublicKey()).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}, data)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(r.buyer.PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("build validation transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		switch {
		case key.Equals(r.buyer.PublicKey()):
			return &r.buyer
		case key.Equals(recordKey.PublicKey()):
			return &recordKey
		default:
			return nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("sign validation transaction: %w", err)
	}
	return tx, nil
}

func (r *SolanaRecorder) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for i := 0; i < r.pollAttempts; i++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNotConfirmed, ctx.Err())
		case <-ticker.C:
		}

		ok, err := r.sender.IsConfirmed(ctx, sig)
		if err != nil {
			r.logger.Debug("confirmation check failed", map[string]any{
				"signature": sig.String(),
				"attempt":   i + 1,
				"error":     err,
			})
			continue
		}
		if ok {
			return nil
		}
	}
	return ErrNotConfirmed
}
