package x402

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xgov/x402/clients/mocks"
	"github.com/xgov/x402/config"
	"github.com/xgov/x402/registry"
	"github.com/xgov/x402/types"
	"go.uber.org/mock/gomock"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.Load(func(k string) string { return env[k] })
	require.NoError(t, err)
	return cfg
}

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.Equal(t, Version, v["library_version"])
	assert.Equal(t, 1, v["protocol_version"])
	assert.Contains(t, v["supported_networks"], "solana-devnet")
}

func TestNewProvider_NilConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), nil)
	assert.True(t, types.IsCode(err, types.ErrConfigError))
}

func TestProvider_ServesAndVerifies(t *testing.T) {
	//given
	cfg := testConfig(t, map[string]string{"PAYMENT_REQUIRED_LAMPORTS": "1000"})
	ledger := mocks.NewMockLedgerReader(gomock.NewController(t))
	payer := solana.NewWallet().PublicKey()
	ledger.EXPECT().GetTransaction(gomock.Any(), "sig").Return(&types.TransactionRecord{
		AccountKeys:  []string{payer.String(), cfg.Recipient().String()},
		PreBalances:  []uint64{10_000, 0},
		PostBalances: []uint64{4_000, 1_000},
	}, nil).Times(1)

	p, err := NewProvider(context.Background(), cfg, WithLedger(ledger))
	require.NoError(t, err)
	defer p.Close()

	t.Run("challenge", func(t *testing.T) {
		rec := httptest.NewRecorder()
		p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scrape", nil))

		var body types.PaymentChallenge
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Equal(t, uint64(1000), body.AmountLamports)
		assert.Equal(t, cfg.Recipient().String(), body.Recipient)
		assert.Equal(t, config.DefaultUSDCMint, body.USDCMint)
	})

	t.Run("verify then cached", func(t *testing.T) {
		vp, err := p.Verify(context.Background(), "sig")
		require.NoError(t, err)
		assert.Equal(t, payer.String(), vp.Payer)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/scrape", nil)
		req.Header.Set("X-Payment-Proof", "sig")
		p.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	assert.Equal(t, ":3001", p.HTTPServer().Addr)
}

func TestProvider_RetriesLedgerReads(t *testing.T) {
	//given
	cfg := testConfig(t, map[string]string{
		"PAYMENT_REQUIRED_LAMPORTS": "1000",
		"RPC_RETRIES":               "2",
		"RPC_RETRY_DELAY":           "1ms",
	})
	ledger := mocks.NewMockLedgerReader(gomock.NewController(t))
	payer := solana.NewWallet().PublicKey()
	gomock.InOrder(
		ledger.EXPECT().GetTransaction(gomock.Any(), "sig").
			Return(nil, types.NewNetworkError("getTransaction", errors.New("connection reset"))),
		ledger.EXPECT().GetTransaction(gomock.Any(), "sig").Return(&types.TransactionRecord{
			AccountKeys:  []string{payer.String(), cfg.Recipient().String()},
			PreBalances:  []uint64{10_000, 0},
			PostBalances: []uint64{4_000, 1_000},
		}, nil),
	)

	p, err := NewProvider(context.Background(), cfg, WithLedger(ledger))
	require.NoError(t, err)
	defer p.Close()

	//when
	vp, err := p.Verify(context.Background(), "sig")

	//then
	require.NoError(t, err)
	assert.Equal(t, payer.String(), vp.Payer)
}

func TestClient_StaticFallback(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	static := []types.ProviderProfile{{OwnerKey: solana.NewWallet().PublicKey(), Name: "Sample", ReputationScore: 500}}

	t.Run("default policy serves static profiles", func(t *testing.T) {
		//given
		ledger := mocks.NewMockLedgerReader(gomock.NewController(t))
		ledger.EXPECT().GetProgramAccounts(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("rpc down"))
		c, err := NewClient(ClientConfig{Network: types.NetworkSolanaDevnet, ProgramID: programID},
			WithLedger(ledger), WithStaticProfiles(static))
		require.NoError(t, err)
		defer c.Close()

		//when
		best, err := c.SelectBest(context.Background(), "")

		//then
		require.NoError(t, err)
		require.NotNil(t, best)
		assert.Equal(t, "Sample", best.Name)
	})

	t.Run("strict policy surfaces the failure", func(t *testing.T) {
		//given
		ledger := mocks.NewMockLedgerReader(gomock.NewController(t))
		ledger.EXPECT().GetProgramAccounts(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("rpc down"))
		c, err := NewClient(ClientConfig{Network: types.NetworkSolanaDevnet, ProgramID: programID},
			WithLedger(ledger), WithStaticProfiles(static), WithPolicy(registry.StrictPolicy))
		require.NoError(t, err)
		defer c.Close()

		//when
		_, err = c.SelectBest(context.Background(), "")

		//then
		assert.Error(t, err)
	})
}

func TestClient_ReadOnly(t *testing.T) {
	ledger := mocks.NewMockLedgerReader(gomock.NewController(t))
	ledger.EXPECT().GetProgramAccounts(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	c, err := NewClient(ClientConfig{
		Network:   types.NetworkSolanaDevnet,
		ProgramID: solana.NewWallet().PublicKey(),
		Keypair:   solana.NewWallet().PrivateKey,
	}, WithLedger(ledger), WithPolicy(registry.StrictPolicy))
	require.NoError(t, err)
	defer c.Close()

	best, err := c.SelectBest(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, best)

	// The mock ledger cannot send transactions, so no recorder is built.
	_, err = c.RecordValidation(context.Background(), solana.NewWallet().PublicKey(), true)
	assert.True(t, types.IsCode(err, types.ErrConfigError))
}
