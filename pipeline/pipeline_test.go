package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xgov/x402/types"
)

type verifierFunc func(ctx context.Context, proof string) (*types.VerifiedPayment, error)

func (f verifierFunc) Verify(ctx context.Context, proof string) (*types.VerifiedPayment, error) {
	return f(ctx, proof)
}

var (
	recipient = solana.NewWallet().PublicKey()
	usdcMint  = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

func pricing() Pricing {
	return Pricing{
		Recipient:      recipient,
		AmountLamports: 5_000_000,
		AmountUSDC:     decimal.RequireFromString("0.01"),
		USDCMint:       usdcMint,
		Network:        types.NetworkSolanaDevnet,
	}
}

// acceptOnly admits the given proof with the required amount and rejects
// anything else as insufficient.
func acceptOnly(proof string) verifierFunc {
	return func(_ context.Context, p string) (*types.VerifiedPayment, error) {
		switch p {
		case "":
			return nil, types.NewNoProofError()
		case proof:
			return &types.VerifiedPayment{
				ProofToken:     p,
				AmountReceived: 5_000_000,
				Payer:          "payer",
				VerifiedAt:     time.Now(),
			}, nil
		default:
			return nil, types.NewInsufficientPaymentError(5_000_000, 1_000)
		}
	}
}

func echoOp(calls *int) Operation {
	return func(ctx context.Context, req *types.ServiceRequest, payment *types.VerifiedPayment) (map[string]any, error) {
		*calls++
		fromCtx, ok := PaymentFromContext(ctx)
		if !ok || fromCtx != payment {
			return nil, errors.New("payment missing from context")
		}
		return map[string]any{"query": req.Param("q", "")}, nil
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_NoProofChallenges(t *testing.T) {
	//given
	calls := 0
	h := New(acceptOnly("good"), pricing()).Handler(echoOp(&calls))
	req := httptest.NewRequest(http.MethodGet, "/scrape?q=sol", nil)
	rec := httptest.NewRecorder()

	//when
	h.ServeHTTP(rec, req)

	//then
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Zero(t, calls)

	body := decode(t, rec)
	assert.Equal(t, "Payment Required", body["error"])
	assert.Equal(t, recipient.String(), body["recipient"])
	assert.Equal(t, 5_000_000.0, body["amount_lamports"])
	assert.Equal(t, 0.005, body["amount_sol"])
	assert.Equal(t, 0.01, body["amount_usdc"])
	assert.Equal(t, usdcMint.String(), body["usdc_mint"])
	assert.Equal(t, "SOL or USDC", body["currency"])
	assert.Equal(t, "solana-devnet", body["network"])
	assert.Contains(t, body["instructions"], "X-Payment-Proof")

	assert.Equal(t, recipient.String(), rec.Header().Get(HeaderPaymentRecipient))
	assert.Equal(t, "5000000", rec.Header().Get(HeaderPaymentRequired))
	assert.Equal(t, "1", rec.Header().Get(HeaderPaymentVersion))
}

func TestHandler_ValidProofServes(t *testing.T) {
	tests := map[string]func(r *http.Request){
		"header": func(r *http.Request) { r.Header.Set(HeaderPaymentProof, "good") },
		"query": func(r *http.Request) {
			q := r.URL.Query()
			q.Set(QueryPaymentProof, "good")
			r.URL.RawQuery = q.Encode()
		},
	}

	for name, attach := range tests {
		t.Run(name, func(t *testing.T) {
			calls := 0
			h := New(acceptOnly("good"), pricing()).Handler(echoOp(&calls))
			req := httptest.NewRequest(http.MethodGet, "/scrape?q=sol", nil)
			attach(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, 1, calls)

			body := decode(t, rec)
			assert.Equal(t, true, body["success"])
			assert.Equal(t, "sol", body["query"])
			payment := body["payment"].(map[string]any)
			assert.Equal(t, "good", payment["tx_signature"])
			assert.Equal(t, 0.005, payment["amount_paid"])
			assert.Equal(t, "payer", payment["payer"])
			assert.Equal(t, "5000000", rec.Header().Get(HeaderPaymentPaid))
		})
	}
}

func TestHandler_VerificationFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		title   string
		message string
	}{
		{"insufficient", types.NewInsufficientPaymentError(5_000_000, 1_000), http.StatusBadRequest,
			"Insufficient Payment", "Required: 5000000 lamports, Received: 1000 lamports"},
		{"not found", types.NewInvalidPaymentError("Transaction not found on blockchain"), http.StatusBadRequest,
			"Invalid Payment", "Transaction not found on blockchain"},
		{"failed", types.NewPaymentFailedError("InstructionError"), http.StatusBadRequest,
			"Payment Failed", "Transaction failed on blockchain"},
		{"network", types.NewNetworkError("getTransaction", errors.New("dial tcp: refused")), http.StatusBadGateway,
			"Network Error", networkErrorMessage},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "Internal Error", "internal error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			v := verifierFunc(func(context.Context, string) (*types.VerifiedPayment, error) { return nil, tc.err })
			h := New(v, pricing()).Handler(echoOp(&calls))

			req := httptest.NewRequest(http.MethodGet, "/scrape", nil)
			req.Header.Set(HeaderPaymentProof, "sig")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Zero(t, calls, "operation must not run")
			body := decode(t, rec)
			assert.Equal(t, tc.title, body["error"])
			assert.Equal(t, tc.message, body["message"])
			assert.NotContains(t, rec.Body.String(), "refused")
		})
	}
}

func TestHandler_OperationFailure(t *testing.T) {
	ops := map[string]Operation{
		"error": func(context.Context, *types.ServiceRequest, *types.VerifiedPayment) (map[string]any, error) {
			return nil, errors.New("upstream feed offline")
		},
		"panic": func(context.Context, *types.ServiceRequest, *types.VerifiedPayment) (map[string]any, error) {
			panic("upstream feed offline")
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			h := New(acceptOnly("good"), pricing()).Handler(op)
			req := httptest.NewRequest(http.MethodGet, "/scrape", nil)
			req.Header.Set(HeaderPaymentProof, "good")
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "Service execution failed", body["error"])
			assert.Contains(t, body["message"], "upstream feed offline")
			assert.NotContains(t, body["message"], "goroutine")
		})
	}
}

func TestHandler_PostBody(t *testing.T) {
	var got json.RawMessage
	op := func(_ context.Context, req *types.ServiceRequest, _ *types.VerifiedPayment) (map[string]any, error) {
		got = req.Body
		return nil, nil
	}
	h := New(acceptOnly("good"), pricing()).Handler(op)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"data":[1,2],"analysis_type":"trend"}`))
	req.Header.Set(HeaderPaymentProof, "good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[1,2],"analysis_type":"trend"}`, string(got))

	bad := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{not json`))
	bad.Header.Set(HeaderPaymentProof, "good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ClientGoneDropsResponse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	v := verifierFunc(func(context.Context, string) (*types.VerifiedPayment, error) {
		cancel()
		return nil, context.Canceled
	})
	calls := 0
	h := New(v, pricing()).Handler(echoOp(&calls))

	req := httptest.NewRequest(http.MethodGet, "/scrape", nil).WithContext(ctx)
	req.Header.Set(HeaderPaymentProof, "sig")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Zero(t, calls)
	assert.Empty(t, rec.Body.String())
}

func TestExecute_ChallengeIsNotAnError(t *testing.T) {
	g := New(acceptOnly("good"), pricing())

	resp, err := g.Execute(context.Background(), &types.ServiceRequest{Path: "/scrape"}, echoOp(new(int)))
	require.NoError(t, err)
	require.NotNil(t, resp.Challenge)
	assert.Nil(t, resp.Result)
	assert.Equal(t, uint64(5_000_000), resp.Challenge.AmountLamports)
}

func TestProofFromRequest_HeaderWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/scrape?payment=query-proof", nil)
	assert.Equal(t, "query-proof", ProofFromRequest(req))

	req.Header.Set(HeaderPaymentProof, " header-proof ")
	assert.Equal(t, "header-proof", ProofFromRequest(req))
}
