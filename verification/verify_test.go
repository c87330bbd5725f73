package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xgov/x402/cache"
	"github.com/xgov/x402/clients"
	"github.com/xgov/x402/clients/mocks"
	"github.com/xgov/x402/types"
	"go.uber.org/mock/gomock"
)

const required = 5_000_000

var (
	recipient = solana.NewWallet().PublicKey()
	payer     = solana.NewWallet().PublicKey()
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func transfer(sig string, pre, post uint64) *types.TransactionRecord {
	return &types.TransactionRecord{
		Signature:    sig,
		AccountKeys:  []string{payer.String(), recipient.String(), solana.SystemProgramID.String()},
		PreBalances:  []uint64{100_000_000, pre, 1},
		PostBalances: []uint64{100_000_000 - (post - pre) - 5000, post, 1},
	}
}

func newService(t *testing.T, clock *fakeClock) (*VerificationService, *mocks.MockLedgerReader) {
	t.Helper()

	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerReader(ctrl)

	if clock == nil {
		clock = &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	}
	svc := NewVerificationService(ledger, recipient, required,
		WithCache(cache.New(cache.WithClock(clock.Now))),
		WithTimeout(time.Second),
	)
	return svc, ledger
}

func TestVerify_NoProof(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := svc.Verify(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrPaymentRequired))
}

func TestVerify_ValidPayment(t *testing.T) {
	//given
	svc, ledger := newService(t, nil)
	ledger.EXPECT().
		GetTransaction(gomock.Any(), "sig-ok").
		Return(transfer("sig-ok", 1_000, 5_001_000), nil).
		Times(1)

	//when
	first, err := svc.Verify(context.Background(), "sig-ok")
	require.NoError(t, err)
	second, err := svc.Verify(context.Background(), "sig-ok")
	require.NoError(t, err)

	//then
	assert.Equal(t, uint64(5_000_000), first.AmountReceived)
	assert.Equal(t, payer.String(), first.Payer)
	assert.Equal(t, first, second)
}

func TestVerify_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		record   *types.TransactionRecord
		err      error
		code     string
		contains string
	}{
		{
			name:     "insufficient amount",
			record:   transfer("sig", 0, 4_000_000),
			code:     types.ErrInsufficientAmount,
			contains: "Required: 5000000 lamports, Received: 4000000 lamports",
		},
		{
			name: "failed transaction",
			record: func() *types.TransactionRecord {
				r := transfer("sig", 0, required)
				r.Err = map[string]any{"InstructionError": []any{0, "Custom"}}
				return r
			}(),
			code: types.ErrPaymentFailed,
		},
		{
			name: "wrong recipient",
			record: &types.TransactionRecord{
				AccountKeys:  []string{payer.String(), solana.SystemProgramID.String()},
				PreBalances:  []uint64{10, 1},
				PostBalances: []uint64{5, 1},
			},
			code:     types.ErrInvalidPayment,
			contains: "recipient",
		},
		{
			name:     "not found",
			err:      clients.ErrNotFound,
			code:     types.ErrInvalidPayment,
			contains: "not found",
		},
		{
			name: "network failure",
			err:  errors.New("connection refused"),
			code: types.ErrNetworkError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, ledger := newService(t, nil)
			ledger.EXPECT().GetTransaction(gomock.Any(), "sig").Return(tc.record, tc.err)

			_, err := svc.Verify(context.Background(), "sig")
			require.Error(t, err)
			assert.True(t, types.IsCode(err, tc.code), "got %v", err)
			if tc.contains != "" {
				assert.Contains(t, err.Error(), tc.contains)
			}

			n, _ := svc.cache.Len(context.Background())
			assert.Zero(t, n, "failures are not cached")
		})
	}
}

func TestVerify_ExactAmountAccepted(t *testing.T) {
	svc, ledger := newService(t, nil)
	ledger.EXPECT().GetTransaction(gomock.Any(), "sig").Return(transfer("sig", 7, 7+required), nil)

	p, err := svc.Verify(context.Background(), "sig")
	require.NoError(t, err)
	assert.Equal(t, uint64(required), p.AmountReceived)
}

func TestVerify_ExpiredEntryReverified(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc, ledger := newService(t, clock)

	ledger.EXPECT().
		GetTransaction(gomock.Any(), "sig").
		Return(transfer("sig", 0, required), nil).
		Times(2)

	first, err := svc.Verify(context.Background(), "sig")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	_, err = svc.Verify(context.Background(), "sig")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := svc.Verify(context.Background(), "sig")
	require.NoError(t, err)

	assert.True(t, second.VerifiedAt.After(first.VerifiedAt))
	n, _ := svc.cache.Len(context.Background())
	assert.Equal(t, 1, n)
}

func TestVerify_ConcurrentSameProofSingleLookup(t *testing.T) {
	svc, ledger := newService(t, nil)

	release := make(chan struct{})
	ledger.EXPECT().
		GetTransaction(gomock.Any(), "sig").
		DoAndReturn(func(context.Context, string) (*types.TransactionRecord, error) {
			<-release
			return transfer("sig", 0, required), nil
		}).
		Times(1)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*types.VerifiedPayment, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Verify(context.Background(), "sig")
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, uint64(required), results[i].AmountReceived)
	}
	n, _ := svc.cache.Len(context.Background())
	assert.Equal(t, 1, n)
}

func TestVerify_CallerCancelStillCaches(t *testing.T) {
	svc, ledger := newService(t, nil)

	release := make(chan struct{})
	done := make(chan struct{})
	ledger.EXPECT().
		GetTransaction(gomock.Any(), "sig").
		DoAndReturn(func(ctx context.Context, _ string) (*types.TransactionRecord, error) {
			defer close(done)
			<-release
			assert.NoError(t, ctx.Err())
			return transfer("sig", 0, required), nil
		}).
		Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Verify(ctx, "sig")
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	<-done

	assert.Eventually(t, func() bool {
		_, ok, _ := svc.cache.Lookup(context.Background(), "sig")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestVerify_RetriesNetworkErrorsOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerReader(ctrl)
	svc := NewVerificationService(ledger, recipient, required, WithRetry(2, time.Millisecond))

	gomock.InOrder(
		ledger.EXPECT().GetTransaction(gomock.Any(), "sig").
			Return(nil, types.NewNetworkError(clients.OpGetTransaction, errors.New("timeout"))),
		ledger.EXPECT().GetTransaction(gomock.Any(), "sig").
			Return(transfer("sig", 0, required), nil),
	)

	p, err := svc.Verify(context.Background(), "sig")
	require.NoError(t, err)
	assert.Equal(t, uint64(required), p.AmountReceived)

	ledger.EXPECT().GetTransaction(gomock.Any(), "bad").Return(nil, clients.ErrNotFound).Times(1)
	_, err = svc.Verify(context.Background(), "bad")
	assert.True(t, types.IsCode(err, types.ErrInvalidPayment))
}
