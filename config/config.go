package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/xgov/x402/types"
	"github.com/xgov/x402/utils"
)

// Defaults for a provider started with an empty environment.
const (
	DefaultPort                = 3001
	DefaultAgentName           = "DataAnalystAgent"
	DefaultServiceType         = "data_scraper"
	DefaultPaymentLamports     = 5_000_000
	DefaultMinPaymentUSDC      = "0.01"
	DefaultUSDCMint            = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	DefaultReputationProgramID = "Fg6PaFpoGXkPABqLTSsAPoV2K1tTq2tL2R1fV9EFSGjM"
	DefaultNetwork             = types.NetworkSolanaDevnet
	DefaultRPCTimeout          = 15 * time.Second
	DefaultCacheTTL            = time.Hour
	DefaultRPCRetryDelay       = 500 * time.Millisecond
)

// Config is the provider configuration.
type Config struct {
	Port        int
	AgentName   string
	ServiceType string

	Network    types.Network
	RPCURL     string
	RPCTimeout time.Duration

	// RPCRetries is how many more times a failed transaction read is
	// attempted during verification. Zero disables retries.
	RPCRetries    int
	RPCRetryDelay time.Duration

	// Wallet receives payments and signs validation records.
	Wallet solana.PrivateKey
	// WalletGenerated is set when no usable key was configured and a fresh
	// one was generated for this process.
	WalletGenerated bool
	// WalletError explains why a configured key was not usable.
	WalletError error

	PaymentLamports     uint64
	MinPaymentUSDC      decimal.Decimal
	USDCMint            solana.PublicKey
	ReputationProgramID solana.PublicKey

	CacheTTL time.Duration
	RedisURL string

	LogLevel string
	LogFile  string
}

// env holds the raw variables before parsing.
type env struct {
	Port            string `validate:"omitempty,numeric"`
	AgentName       string
	ServiceType     string
	Network         string `validate:"omitempty,oneof=solana-mainnet solana-devnet solana-testnet solana-localnet"`
	RPCURL          string `validate:"omitempty,url"`
	RPCTimeout      string
	RPCRetries      string `validate:"omitempty,numeric"`
	RPCRetryDelay   string
	WalletKey       string
	PaymentLamports string `validate:"omitempty,numeric"`
	MinPaymentUSDC  string `validate:"omitempty,amount"`
	USDCMint        string `validate:"omitempty,pubkey"`
	ProgramID       string `validate:"omitempty,pubkey"`
	CacheTTL        string
	RedisURL        string `validate:"omitempty,url"`
	LogLevel        string `validate:"omitempty,oneof=debug info warn warning error"`
	LogFile         string
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (*Config, error) {
	return Load(os.Getenv)
}

// Load reads the configuration through getenv. A missing or unusable wallet
// key never fails loading: a fresh key is generated instead.
func Load(getenv func(string) string) (*Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	raw := env{
		Port:            get("PORT"),
		AgentName:       get("AGENT_NAME"),
		ServiceType:     get("SERVICE_TYPE"),
		Network:         get("SOLANA_NETWORK"),
		RPCURL:          get("SOLANA_RPC_URL"),
		RPCTimeout:      get("RPC_TIMEOUT"),
		RPCRetries:      get("RPC_RETRIES"),
		RPCRetryDelay:   get("RPC_RETRY_DELAY"),
		WalletKey:       get("AGENT_WALLET_PRIVATE_KEY"),
		PaymentLamports: get("PAYMENT_REQUIRED_LAMPORTS"),
		MinPaymentUSDC:  get("MIN_PAYMENT_AMOUNT_USDC"),
		USDCMint:        get("USDC_MINT_ADDRESS"),
		ProgramID:       get("REPUTATION_PROGRAM_ID"),
		CacheTTL:        get("CACHE_TTL"),
		RedisURL:        get("REDIS_URL"),
		LogLevel:        get("LOG_LEVEL"),
		LogFile:         get("LOG_FILE"),
	}

	if err := utils.ValidateStruct(&raw); err != nil {
		return nil, types.NewConfigError("invalid environment: %s", utils.FormatValidationError(err))
	}

	cfg := &Config{
		AgentName:   or(raw.AgentName, DefaultAgentName),
		ServiceType: or(raw.ServiceType, DefaultServiceType),
		Network:     types.Network(or(raw.Network, string(DefaultNetwork))),
		RedisURL:    raw.RedisURL,
		LogLevel:    or(raw.LogLevel, "info"),
		LogFile:     raw.LogFile,
	}
	cfg.RPCURL = or(raw.RPCURL, cfg.Network.DefaultRPCURL())

	var err error
	if cfg.Port, err = strconv.Atoi(or(raw.Port, strconv.Itoa(DefaultPort))); err != nil || cfg.Port < 1 || cfg.Port > 65535 {
		return nil, types.NewConfigError("PORT must be between 1 and 65535, got %q", raw.Port)
	}
	if cfg.PaymentLamports, err = strconv.ParseUint(or(raw.PaymentLamports, strconv.Itoa(DefaultPaymentLamports)), 10, 64); err != nil || cfg.PaymentLamports == 0 {
		return nil, types.NewConfigError("PAYMENT_REQUIRED_LAMPORTS must be a positive integer, got %q", raw.PaymentLamports)
	}
	if cfg.MinPaymentUSDC, err = utils.ValidateAmount(or(raw.MinPaymentUSDC, DefaultMinPaymentUSDC)); err != nil {
		return nil, types.NewConfigError("MIN_PAYMENT_AMOUNT_USDC: %v", err)
	}
	if cfg.USDCMint, err = utils.ValidatePublicKey(or(raw.USDCMint, DefaultUSDCMint)); err != nil {
		return nil, types.NewConfigError("USDC_MINT_ADDRESS: %v", err)
	}
	if cfg.ReputationProgramID, err = utils.ValidatePublicKey(or(raw.ProgramID, DefaultReputationProgramID)); err != nil {
		return nil, types.NewConfigError("REPUTATION_PROGRAM_ID: %v", err)
	}
	if cfg.RPCTimeout, err = duration(raw.RPCTimeout, DefaultRPCTimeout); err != nil {
		return nil, types.NewConfigError("RPC_TIMEOUT: %v", err)
	}
	if cfg.RPCRetries, err = strconv.Atoi(or(raw.RPCRetries, "0")); err != nil || cfg.RPCRetries < 0 || cfg.RPCRetries > 10 {
		return nil, types.NewConfigError("RPC_RETRIES must be between 0 and 10, got %q", raw.RPCRetries)
	}
	if cfg.RPCRetryDelay, err = duration(raw.RPCRetryDelay, DefaultRPCRetryDelay); err != nil {
		return nil, types.NewConfigError("RPC_RETRY_DELAY: %v", err)
	}
	if cfg.CacheTTL, err = duration(raw.CacheTTL, DefaultCacheTTL); err != nil {
		return nil, types.NewConfigError("CACHE_TTL: %v", err)
	}

	cfg.Wallet, cfg.WalletError = loadWallet(raw.WalletKey)
	if cfg.Wallet == nil {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate wallet: %w", err)
		}
		cfg.Wallet = key
		cfg.WalletGenerated = true
	}

	return cfg, nil
}

// Recipient is the address payments must be sent to.
func (c *Config) Recipient() solana.PublicKey {
	return c.Wallet.PublicKey()
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// loadWallet decodes a base58 secret key. It returns a nil key, and for a
// non-empty input an error, when no usable key is configured.
func loadWallet(encoded string) (solana.PrivateKey, error) {
	if encoded == "" {
		return nil, nil
	}

	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode AGENT_WALLET_PRIVATE_KEY: %w", err)
	}
	if len(key) != 64 {
		return nil, fmt.Errorf("AGENT_WALLET_PRIVATE_KEY must decode to 64 bytes, got %d", len(key))
	}
	return key, nil
}

func duration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", v)
	}
	return d, nil
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
