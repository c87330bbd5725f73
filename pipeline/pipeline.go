package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/xgov/x402/logger"
	"github.com/xgov/x402/metrics"
	"github.com/xgov/x402/types"
	"github.com/xgov/x402/verification"
)

const (
	// Currency is advertised in payment challenges.
	Currency = "SOL or USDC"

	challengeInstructions = "Send payment to recipient address and include transaction signature in X-Payment-Proof header"
)

// Operation is a paid service call. It receives the verified payment that
// admitted the request and returns the domain payload.
type Operation func(ctx context.Context, req *types.ServiceRequest, payment *types.VerifiedPayment) (map[string]any, error)

// Pricing is what a gated call costs and where the payment goes.
type Pricing struct {
	Recipient      solana.PublicKey
	AmountLamports uint64
	AmountUSDC     decimal.Decimal
	// USDCMint is the token mint USDC payments are denominated in.
	USDCMint       solana.PublicKey
	Network        types.Network
}

// Gate runs the challenge, verify, serve sequence around an Operation.
// Payments are not refunded when the operation fails.
type Gate struct {
	verifier verification.Verifier
	pricing  Pricing

	logger  logger.Logger
	metrics metrics.Recorder
}

type Option func(*Gate)

func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		g.logger = logger.OrNoop(l)
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(g *Gate) {
		g.metrics = metrics.OrNoop(m)
	}
}

func New(verifier verification.Verifier, pricing Pricing, opts ...Option) *Gate {
	g := &Gate{
		verifier: verifier,
		pricing:  pricing,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Pricing() Pricing { return g.pricing }

// Challenge is the body returned to callers that sent no payment proof.
func (g *Gate) Challenge() *types.PaymentChallenge {
	noProof := types.NewNoProofError()
	return &types.PaymentChallenge{
		Error:          noProof.Title(),
		Message:        noProof.Message,
		Recipient:      g.pricing.Recipient.String(),
		AmountLamports: g.pricing.AmountLamports,
		AmountSOL:      types.LamportsToSOL(g.pricing.AmountLamports).InexactFloat64(),
		AmountUSDC:     g.pricing.AmountUSDC.InexactFloat64(),
		USDCMint:       mintString(g.pricing.USDCMint),
		Currency:       Currency,
		Network:        g.pricing.Network.String(),
		Instructions:   challengeInstructions,
	}
}

func mintString(mint solana.PublicKey) string {
	if mint.IsZero() {
		return ""
	}
	return mint.String()
}

// Execute verifies the request's payment and, only if it is valid, invokes op.
// A missing proof yields a challenge response and a nil error. Verification
// failures are returned unchanged; operation failures, panics included, are
// returned as SERVICE_EXECUTION_FAILED errors.
func (g *Gate) Execute(ctx context.Context, req *types.ServiceRequest, op Operation) (*types.ServiceResponse, error) {
	start := time.Now()
	labels := map[string]string{metrics.LabelRoute: req.Path}
	defer func() {
		g.metrics.ObserveLatency(metrics.EventGatedRequest, time.Since(start), labels)
		g.metrics.IncCounter(metrics.EventGatedRequest, labels)
	}()

	payment, err := g.verifier.Verify(ctx, req.PaymentProof)
	if err != nil {
		if types.IsCode(err, types.ErrPaymentRequired) {
			labels[metrics.LabelOutcome] = "challenged"
			return &types.ServiceResponse{Challenge: g.Challenge()}, nil
		}
		labels[metrics.LabelOutcome] = "rejected"
		return nil, err
	}

	payload, err := g.invoke(ctx, op, req, payment)
	if err != nil {
		labels[metrics.LabelOutcome] = "failed"
		g.logger.Error("service execution failed after payment", map[string]any{
			"path":  req.Path,
			"proof": payment.ProofToken,
			"error": err,
		})
		return nil, types.NewServiceExecutionError(err)
	}

	labels[metrics.LabelOutcome] = "served"
	return &types.ServiceResponse{
		Result: &types.ServiceResult{
			Payload: payload,
			Payment: payment.Summary(),
		},
	}, nil
}

func (g *Gate) invoke(ctx context.Context, op Operation, req *types.ServiceRequest, payment *types.VerifiedPayment) (payload map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("operation panicked", map[string]any{
				"path":  req.Path,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			err = fmt.Errorf("%w: %v", ErrOperationPanicked, r)
		}
	}()

	payload, err = op(ctx, req, payment)
	if err == nil && payload == nil {
		payload = map[string]any{}
	}
	return payload, err
}

// ErrOperationPanicked is reported in place of the panic value.
var ErrOperationPanicked = errors.New("operation panicked")
