package clients

import "errors"

// ErrNotFound is returned when the ledger has no record of the requested
// transaction or account.
var ErrNotFound = errors.New("not found")

const (
	// -----------------------------
	// OPERATIONS
	// -----------------------------
	OpGetTransaction     = "getTransaction"
	OpGetProgramAccounts = "getProgramAccounts"
	OpGetAccountInfo     = "getAccountInfo"
	OpGetSlot            = "getSlot"
	OpGetBlockTime       = "getBlockTime"
	OpGetEpochInfo       = "getEpochInfo"
	OpSendTransaction    = "sendTransaction"
	OpGetLatestBlockhash = "getLatestBlockhash"
	OpGetSignatureStatus = "getSignatureStatuses"
	OpGetSignatures      = "getSignaturesForAddress"
)
