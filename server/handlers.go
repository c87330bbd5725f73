package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/xgov/x402/pipeline"
	"github.com/xgov/x402/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	p := s.gate.Pricing()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"agent":            s.info.AgentName,
		"service_type":     s.info.ServiceType,
		"wallet":           p.Recipient.String(),
		"payment_required": true,
		"price": map[string]any{
			"lamports": p.AmountLamports,
			"sol":      types.LamportsToSOL(p.AmountLamports).InexactFloat64(),
			"usdc":     p.AmountUSDC.InexactFloat64(),
		},
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	p := s.gate.Pricing()
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":     s.info.AgentName,
		"service_type": s.info.ServiceType,
		"wallet":       p.Recipient.String(),
		"endpoints": map[string]string{
			"scrape":  "/scrape",
			"analyze": "/analyze",
		},
		"pricing": map[string]any{
			"per_request_lamports": p.AmountLamports,
			"per_request_sol":      types.LamportsToSOL(p.AmountLamports).InexactFloat64(),
			"per_request_usdc":     p.AmountUSDC.InexactFloat64(),
			"usdc_mint":            p.USDCMint.String(),
			"currency":             pipeline.Currency,
		},
		"payment_protocol":   types.ProtocolName,
		"reputation_program": s.info.ReputationProgram.String(),
		"network":            p.Network.String(),
		"status":             "online",
	})
}

// scrape returns a network data snapshot. The payload is sample data.
func (s *Server) scrape(_ context.Context, req *types.ServiceRequest, _ *types.VerifiedPayment) (map[string]any, error) {
	return map[string]any{
		"service":   s.info.AgentName,
		"query":     req.Param("q", "default"),
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		"data": map[string]any{
			"source": "Solana Network Data",
			"metrics": map[string]any{
				"total_transactions_24h": 145_230_000,
				"average_tps":            2500,
				"total_accounts":         89_450_000,
				"active_validators":      1900,
			},
			"prices": map[string]any{
				"SOL_USD":    142.35,
				"change_24h": 5.2,
				"volume_24h": 2_450_000_000,
			},
			"recent_activity": []map[string]any{
				{"type": "NFT_SALE", "value": 45.5, "time": "2 mins ago"},
				{"type": "TOKEN_SWAP", "value": 1250, "time": "5 mins ago"},
				{"type": "STAKE", "value": 500, "time": "8 mins ago"},
			},
		},
	}, nil
}

type analyzeRequest struct {
	Data         json.RawMessage `json:"data"`
	AnalysisType string          `json:"analysis_type"`
}

// analyze classifies the submitted data. The result is sample data.
func (s *Server) analyze(_ context.Context, req *types.ServiceRequest, _ *types.VerifiedPayment) (map[string]any, error) {
	var in analyzeRequest
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &in); err != nil {
			return nil, err
		}
	}
	if in.AnalysisType == "" {
		in.AnalysisType = "sentiment"
	}

	return map[string]any{
		"service":       s.info.AgentName,
		"analysis_type": in.AnalysisType,
		"timestamp":     s.now().UTC().Format(time.RFC3339Nano),
		"result": map[string]any{
			"sentiment_score": 0.75,
			"confidence":      0.89,
			"classification":  "POSITIVE",
			"key_insights": []string{
				"Strong bullish sentiment detected",
				"High engagement on positive news",
				"Institutional interest increasing",
			},
		},
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
