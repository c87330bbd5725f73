package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/xgov/x402/types"
)

const (
	HeaderPaymentProof     = "X-Payment-Proof"
	HeaderPaymentVersion   = "X-Payment-Version"
	HeaderPaymentRecipient = "X-Payment-Recipient"
	HeaderPaymentRequired  = "X-Payment-Lamports-Required"
	HeaderPaymentNetwork   = "X-Payment-Network"
	HeaderPaymentPaid      = "X-Payment-Lamports-Paid"

	// QueryPaymentProof is the query parameter accepted in place of the header.
	QueryPaymentProof = "payment"

	maxBodyBytes = 1 << 20

	networkErrorMessage = "Payment could not be verified right now, please retry"
)

// ProofFromRequest returns the payment proof carried by r. The header takes
// precedence over the query parameter.
func ProofFromRequest(r *http.Request) string {
	if proof := strings.TrimSpace(r.Header.Get(HeaderPaymentProof)); proof != "" {
		return proof
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryPaymentProof))
}

// Handler exposes op over HTTP behind the payment gate.
func (g *Gate) Handler(op Operation) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := serviceRequest(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		wrapped := func(ctx context.Context, req *types.ServiceRequest, payment *types.VerifiedPayment) (map[string]any, error) {
			return op(WithPayment(ctx, payment), req, payment)
		}
		resp, err := g.Execute(r.Context(), req, wrapped)

		// The caller is gone; the verification result is cached regardless.
		if r.Context().Err() != nil {
			g.logger.Debug("client disconnected, response dropped", map[string]any{"path": req.Path})
			return
		}

		switch {
		case err != nil:
			g.writeFailure(w, err)
		case resp.Challenge != nil:
			g.writeChallenge(w, resp.Challenge)
		default:
			writeResult(w, resp.Result)
		}
	})
}

func serviceRequest(w http.ResponseWriter, r *http.Request) (*types.ServiceRequest, error) {
	req := &types.ServiceRequest{
		PaymentProof: ProofFromRequest(r),
		Method:       r.Method,
		Path:         r.URL.Path,
		Params:       make(map[string]string),
	}

	for k, v := range r.URL.Query() {
		if k == QueryPaymentProof || len(v) == 0 {
			continue
		}
		req.Params[k] = v[0]
	}

	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return req, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > 0 {
		if !json.Valid(body) {
			return nil, errors.New("request body must be JSON")
		}
		req.Body = body
	}
	return req, nil
}

func (g *Gate) writeChallenge(w http.ResponseWriter, c *types.PaymentChallenge) {
	h := w.Header()
	h.Set(HeaderPaymentVersion, strconv.Itoa(int(types.X402Version1)))
	h.Set(HeaderPaymentRecipient, c.Recipient)
	h.Set(HeaderPaymentRequired, strconv.FormatUint(c.AmountLamports, 10))
	h.Set(HeaderPaymentNetwork, c.Network)

	writeJSON(w, http.StatusPaymentRequired, c)
}

func (g *Gate) writeFailure(w http.ResponseWriter, err error) {
	xe, ok := types.AsX402(err)
	if !ok {
		g.logger.Error("unclassified gate failure", map[string]any{"error": err})
		writeError(w, http.StatusInternalServerError, "Internal Error", "internal error")
		return
	}

	message := xe.Message
	if xe.Code == types.ErrNetworkError {
		message = networkErrorMessage
	}
	writeError(w, xe.Status(), xe.Title(), message)
}

func writeResult(w http.ResponseWriter, res *types.ServiceResult) {
	body := make(map[string]any, len(res.Payload)+2)
	for k, v := range res.Payload {
		body[k] = v
	}
	body["success"] = true
	body["payment"] = res.Payment

	w.Header().Set(HeaderPaymentPaid, strconv.FormatUint(res.Payment.AmountLamports, 10))
	writeJSON(w, http.StatusOK, body)
}

// ErrorBody is the JSON shape of every failure response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, title, message string) {
	writeJSON(w, status, ErrorBody{Error: title, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
