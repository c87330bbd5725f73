package clients

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	x402types "github.com/xgov/x402/types"
)

//go:generate mockgen -source=client.go -destination=mocks/ledger_reader_mock.go -package=mocks

// LedgerReader is the read-only view of the ledger used by payment
// verification and provider discovery. Every method may fail with a network
// error; retry policy belongs to the caller.
type LedgerReader interface {
	GetTransaction(ctx context.Context, signature string) (*x402types.TransactionRecord, error)
	GetProgramAccounts(ctx context.Context, programID solana.PublicKey, filters ...AccountFilter) ([]x402types.KeyedAccount, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) ([]byte, error)
	GetSlot(ctx context.Context) (uint64, error)
	GetBlockTime(ctx context.Context, slot uint64) (*time.Time, error)
	GetEpochInfo(ctx context.Context) (*x402types.EpochInfo, error)
	GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]x402types.SignatureRecord, error)
}

// AccountFilter narrows a program-accounts query on the server side.
type AccountFilter struct {
	// DataSize matches accounts whose data is exactly this long when non-zero.
	DataSize uint64

	// Prefix matches accounts whose data holds these bytes at Offset.
	Offset uint64
	Prefix []byte
}
