package pipeline

import (
	"context"

	"github.com/xgov/x402/types"
)

type paymentKey struct{}

// WithPayment returns a context carrying the verified payment of the request.
func WithPayment(ctx context.Context, p *types.VerifiedPayment) context.Context {
	return context.WithValue(ctx, paymentKey{}, p)
}

// PaymentFromContext returns the verified payment that admitted the request.
func PaymentFromContext(ctx context.Context) (*types.VerifiedPayment, bool) {
	p, ok := ctx.Value(paymentKey{}).(*types.VerifiedPayment)
	return p, ok && p != nil
}
