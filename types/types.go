package types

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// X402Version represents the version of the x402 protocol
type X402Version int

const (
	X402Version1 X402Version = 1
)

// ProtocolName is advertised by providers on their discovery endpoints.
const ProtocolName = "x402"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// ProviderProfile is one registered service provider as stored by the
// reputation registry program.
type ProviderProfile struct {
	// OwnerKey identifies the controlling identity.
	OwnerKey solana.PublicKey `json:"owner"`

	// AccountKey is the profile's derived address. It is always computed from
	// OwnerKey and never assigned independently.
	AccountKey solana.PublicKey `json:"pubkey"`

	// Name is at most 50 bytes; longer on-chain names are truncated.
	Name string `json:"name"`

	ReputationScore    uint16 `json:"reputation_score"`
	TotalSuccessfulTxs uint32 `json:"total_successful_txs"`
}

// ProviderMetadata is off-chain information about a provider. The on-chain
// record carries no service type, so selection by service type relies on it.
type ProviderMetadata struct {
	AgentID     string `json:"agent_id" validate:"required"`
	Owner       string `json:"owner" validate:"required"`
	ServiceType string `json:"service_type" validate:"required"`
	APIURL      string `json:"api_url,omitempty" validate:"omitempty,url"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=active inactive maintenance"`
}

// IsActive reports whether the provider accepts work. An empty status counts
// as active.
func (m ProviderMetadata) IsActive() bool {
	return m.Status == "" || m.Status == ProviderStatusActive
}

const (
	ProviderStatusActive      = "active"
	ProviderStatusInactive    = "inactive"
	ProviderStatusMaintenance = "maintenance"
)

// VerifiedPayment is the cached outcome of a successful payment verification.
// It is replaced, never mutated, when a stale entry is re-verified.
type VerifiedPayment struct {
	ProofToken     string    `json:"txSignature"`
	AmountReceived uint64    `json:"amount"`
	Payer          string    `json:"payer"`
	VerifiedAt     time.Time `json:"verifiedAt"`
}

// PaymentSummary is echoed back to the caller with every served response.
type PaymentSummary struct {
	TxSignature string  `json:"tx_signature"`
	AmountPaid  float64 `json:"amount_paid"`
	Payer       string  `json:"payer"`

	AmountLamports uint64 `json:"-"`
}

// Summary converts a verified payment into its display form. Amounts are
// converted to SOL for display only.
func (p *VerifiedPayment) Summary() PaymentSummary {
	return PaymentSummary{
		TxSignature:    p.ProofToken,
		AmountPaid:     LamportsToSOL(p.AmountReceived).InexactFloat64(),
		Payer:          p.Payer,
		AmountLamports: p.AmountReceived,
	}
}

// PaymentChallenge is the body of a 402 Payment Required response.
type PaymentChallenge struct {
	Error          string  `json:"error"`
	Message        string  `json:"message"`
	Recipient      string  `json:"recipient"`
	AmountLamports uint64  `json:"amount_lamports"`
	AmountSOL      float64 `json:"amount_sol"`
	AmountUSDC     float64 `json:"amount_usdc"`
	USDCMint       string  `json:"usdc_mint,omitempty"`
	Currency       string  `json:"currency"`
	Network        string  `json:"network"`
	Instructions   string  `json:"instructions"`
}

// ServiceRequest is a transport-independent view of a gated call.
type ServiceRequest struct {
	PaymentProof string            `json:"-"`
	Method       string            `json:"method"`
	Path         string            `json:"path"`
	Params       map[string]string `json:"params,omitempty"`
	Body         json.RawMessage   `json:"body,omitempty"`
}

// Param returns the named parameter or def when it is absent.
func (r *ServiceRequest) Param(name, def string) string {
	if v, ok := r.Params[name]; ok && v != "" {
		return v
	}
	return def
}

// ServiceResult is a served response: the domain payload plus the payment
// that paid for it.
type ServiceResult struct {
	Payload map[string]any `json:"-"`
	Payment PaymentSummary `json:"payment"`
}

// ServiceResponse is either a challenge or a result, never both.
type ServiceResponse struct {
	Challenge *PaymentChallenge
	Result    *ServiceResult
}

// TransactionRecord is the part of a settled ledger transaction needed to
// verify a payment.
type TransactionRecord struct {
	Signature string
	Slot      uint64
	BlockTime *time.Time

	// Err is the recorded execution error, nil when the transaction succeeded.
	Err any

	AccountKeys  []string
	PreBalances  []uint64
	PostBalances []uint64
}

// Failed reports whether the transaction executed with an error.
func (t *TransactionRecord) Failed() bool {
	return t.Err != nil
}

// IndexOf returns the position of key among the account keys, or -1.
func (t *TransactionRecord) IndexOf(key string) int {
	for i, k := range t.AccountKeys {
		if k == key {
			return i
		}
	}
	return -1
}

// KeyedAccount is a raw account returned by a program-accounts query.
type KeyedAccount struct {
	Key   solana.PublicKey
	Owner solana.PublicKey
	Data  []byte
}

// EpochInfo mirrors the ledger's epoch information.
type EpochInfo struct {
	AbsoluteSlot uint64 `json:"absoluteSlot"`
	BlockHeight  uint64 `json:"blockHeight"`
	Epoch        uint64 `json:"epoch"`
	SlotIndex    uint64 `json:"slotIndex"`
	SlotsInEpoch uint64 `json:"slotsInEpoch"`
}

// SignatureRecord is one transaction that referenced an address, newest first
// in listings.
type SignatureRecord struct {
	Signature string     `json:"signature"`
	Slot      uint64     `json:"slot"`
	BlockTime *time.Time `json:"blockTime,omitempty"`
	Failed    bool       `json:"failed"`
}

// NetworkStats is a point-in-time snapshot of the ledger.
type NetworkStats struct {
	CurrentSlot uint64     `json:"currentSlot"`
	BlockTime   *time.Time `json:"blockTime"`
	Epoch       uint64     `json:"epoch"`
	SlotIndex   uint64     `json:"slotIndex"`
}

// RegistryStats aggregates the registered provider profiles.
type RegistryStats struct {
	TotalProviders     int     `json:"total_providers"`
	TotalSuccessfulTxs uint64  `json:"total_transactions"`
	AverageReputation  float64 `json:"average_reputation"`
}

// LamportsToSOL converts an integer lamport amount into SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
}
