package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	x402types "github.com/xgov/x402/types"
)

const defaultTimeout = 15 * time.Second

// SolanaClient reads (and, for validation recording, writes) the Solana
// ledger over JSON-RPC. Every call is bounded by the client timeout.
type SolanaClient struct {
	network x402types.Network
	rpcURL  string
	client  *rpc.Client
	timeout time.Duration
}

var _ LedgerReader = (*SolanaClient)(nil)

// NewSolanaClient creates a Solana client for the given RPC endpoint.
func NewSolanaClient(network x402types.Network, rpcURL string, timeout time.Duration) (*SolanaClient, error) {
	if rpcURL == "" {
		rpcURL = network.DefaultRPCURL()
	}
	if rpcURL == "" {
		return nil, x402types.NewConfigError("no RPC endpoint configured for network %s", network)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &SolanaClient{
		network: network,
		rpcURL:  rpcURL,
		client:  rpc.New(rpcURL),
		timeout: timeout,
	}, nil
}

// GetTransaction fetches a confirmed transaction by its base58 signature.
func (c *SolanaClient) GetTransaction(ctx context.Context, signature string) (*x402types.TransactionRecord, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, x402types.NewInvalidPaymentError(fmt.Sprintf("malformed transaction signature: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxVersion := uint64(0)
	out, err := c.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, x402types.NewNetworkError(OpGetTransaction, err)
	}
	if out == nil || out.Meta == nil || out.Transaction == nil {
		return nil, ErrNotFound
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, x402types.NewInvalidPaymentError(fmt.Sprintf("failed to decode transaction: %v", err))
	}

	record := &x402types.TransactionRecord{
		Signature:    signature,
		Slot:         out.Slot,
		Err:          out.Meta.Err,
		AccountKeys:  make([]string, len(tx.Message.AccountKeys)),
		PreBalances:  out.Meta.PreBalances,
		PostBalances: out.Meta.PostBalances,
	}
	for i, key := range tx.Message.AccountKeys {
		record.AccountKeys[i] = key.String()
	}
	if out.BlockTime != nil {
		t := out.BlockTime.Time()
		record.BlockTime = &t
	}

	return record, nil
}

// GetProgramAccounts lists every account owned by programID that matches
// all filters.
func (c *SolanaClient) GetProgramAccounts(
	ctx context.Context,
	programID solana.PublicKey,
	filters ...AccountFilter,
) ([]x402types.KeyedAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	}
	for _, f := range filters {
		if f.DataSize > 0 {
			opts.Filters = append(opts.Filters, rpc.RPCFilter{DataSize: f.DataSize})
		}
		if len(f.Prefix) > 0 {
			opts.Filters = append(opts.Filters, rpc.RPCFilter{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: f.Offset,
					Bytes:  solana.Base58(f.Prefix),
				},
			})
		}
	}

	out, err := c.client.GetProgramAccountsWithOpts(ctx, programID, opts)
	if err != nil {
		return nil, x402types.NewNetworkError(OpGetProgramAccounts, err)
	}

	accounts := make([]x402types.KeyedAccount, 0, len(out))
	for _, keyed := range out {
		if keyed == nil || keyed.Account == nil {
			continue
		}
		acc := x402types.KeyedAccount{
			Key:   keyed.Pubkey,
			Owner: keyed.Account.Owner,
		}
		if keyed.Account.Data != nil {
			acc.Data = keyed.Account.Data.GetBinary()
		}
		accounts = append(accounts, acc)
	}

	return accounts, nil
}

// GetAccountInfo returns the raw data of a single account.
func (c *SolanaClient) GetAccountInfo(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, x402types.NewNetworkError(OpGetAccountInfo, err)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return nil, ErrNotFound
	}

	return out.Value.Data.GetBinary(), nil
}

func (c *SolanaClient) GetSlot(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slot, err := c.client.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, x402types.NewNetworkError(OpGetSlot, err)
	}
	return slot, nil
}

// GetBlockTime returns the production time of slot, or nil when the ledger
// has no estimate for it.
func (c *SolanaClient) GetBlockTime(ctx context.Context, slot uint64) (*time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bt, err := c.client.GetBlockTime(ctx, slot)
	if err != nil {
		return nil, x402types.NewNetworkError(OpGetBlockTime, err)
	}
	if bt == nil {
		return nil, nil
	}
	t := bt.Time()
	return &t, nil
}

func (c *SolanaClient) GetEpochInfo(ctx context.Context) (*x402types.EpochInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.GetEpochInfo(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, x402types.NewNetworkError(OpGetEpochInfo, err)
	}

	return &x402types.EpochInfo{
		AbsoluteSlot: out.AbsoluteSlot,
		BlockHeight:  out.BlockHeight,
		Epoch:        out.Epoch,
		SlotIndex:    out.SlotIndex,
		SlotsInEpoch: out.SlotsInEpoch,
	}, nil
}

// GetSignaturesForAddress lists up to limit of the most recent confirmed
// transactions that referenced address.
func (c *SolanaClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	limit int,
) ([]x402types.SignatureRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &rpc.GetSignaturesForAddressOpts{Commitment: rpc.CommitmentConfirmed}
	if limit > 0 {
		opts.Limit = &limit
	}
	out, err := c.client.GetSignaturesForAddressWithOpts(ctx, address, opts)
	if err != nil {
		return nil, x402types.NewNetworkError(OpGetSignatures, err)
	}

	records := make([]x402types.SignatureRecord, 0, len(out))
	for _, s := range out {
		if s == nil {
			continue
		}
		rec := x402types.SignatureRecord{
			Signature: s.Signature.String(),
			Slot:      s.Slot,
			Failed:    s.Err != nil,
		}
		if s.BlockTime != nil {
			t := s.BlockTime.Time()
			rec.BlockTime = &t
		}
		records = append(records, rec)
	}
	return records, nil
}

// LatestBlockhash returns a recent blockhash for building transactions.
func (c *SolanaClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, x402types.NewNetworkError(OpGetLatestBlockhash, err)
	}
	return out.Value.Blockhash, nil
}

// SendTransaction broadcasts a signed transaction.
func (c *SolanaClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sig, err := c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, x402types.NewNetworkError(OpSendTransaction, err)
	}
	return sig, nil
}

// IsConfirmed reports whether sig has reached at least confirmed commitment.
// A transaction that landed with an error is reported through err.
func (c *SolanaClient) IsConfirmed(ctx context.Context, sig solana.Signature) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	status, err := c.client.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return false, x402types.NewNetworkError(OpGetSignatureStatus, err)
	}
	if len(status.Value) == 0 || status.Value[0] == nil {
		return false, nil
	}
	if status.Value[0].Err != nil {
		return false, fmt.Errorf("transaction %s failed: %v", sig, status.Value[0].Err)
	}

	switch status.Value[0].ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return true, nil
	default:
		return false, nil
	}
}

func (c *SolanaClient) GetNetwork() x402types.Network { return c.network }

func (c *SolanaClient) Close() { _ = c.client.Close() }
