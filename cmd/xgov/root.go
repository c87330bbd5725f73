package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xgov/x402"
	"github.com/xgov/x402/config"
	"github.com/xgov/x402/logger"
	"github.com/xgov/x402/registry"
	"github.com/xgov/x402/types"
	"github.com/xgov/x402/utils"
)

// GlobalFlags are shared by every command.
type GlobalFlags struct {
	RPCURL         string
	Network        string
	ProgramID      string
	MetadataFile   string
	StaticProfiles string
	Strict         bool
	Keypair        string
	Timeout        time.Duration
	Verbose        bool
}

// metadataFileEnv names the provider metadata file when --metadata-file is
// not given.
const metadataFileEnv = "PROVIDER_METADATA_FILE"

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "xgov",
	Short: "Discover x402 providers and record validations",
	Long: `xgov reads the provider reputation registry and records buyer
evaluations of completed work.

Read-only commands need no keypair. "validate" signs with --keypair.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.RPCURL, "rpc-url", "", "Solana JSON-RPC endpoint (default: the network's public endpoint)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Network, "network", string(config.DefaultNetwork), "solana-mainnet|solana-devnet|solana-testnet|solana-localnet")
	rootCmd.PersistentFlags().StringVar(&globalFlags.ProgramID, "program-id", config.DefaultReputationProgramID, "reputation registry program")
	rootCmd.PersistentFlags().StringVar(&globalFlags.MetadataFile, "metadata-file", "", "JSON file listing provider service types (default: $"+metadataFileEnv+")")
	rootCmd.PersistentFlags().StringVar(&globalFlags.StaticProfiles, "static-profiles", "", "JSON file of sample providers listed when the registry is unreadable")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Strict, "strict", false, "fail instead of falling back when the registry is unreadable")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Keypair, "keypair", "", "keypair file or base58 secret key used to sign validations")
	rootCmd.PersistentFlags().DurationVar(&globalFlags.Timeout, "timeout", 30*time.Second, "timeout for each ledger call")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "log ledger activity to stderr")

	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(validateCmd)
}

// newClient builds a client from the global flags. The keypair is only
// loaded when needKeypair is set.
func newClient(needKeypair bool) (*x402.Client, error) {
	network := types.Network(globalFlags.Network)
	if !network.IsSolana() {
		return nil, fmt.Errorf("unknown network %q", globalFlags.Network)
	}
	programID, err := utils.ValidatePublicKey(globalFlags.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("--program-id: %w", err)
	}

	cfg := x402.ClientConfig{
		Network:      network,
		RPCURL:       globalFlags.RPCURL,
		ProgramID:    programID,
		MetadataFile: metadataFile(),
	}
	if needKeypair {
		if cfg.Keypair, err = loadKeypair(globalFlags.Keypair); err != nil {
			return nil, err
		}
	}

	opts := []x402.Option{x402.WithTimeout(globalFlags.Timeout)}
	if globalFlags.Strict {
		opts = append(opts, x402.WithPolicy(registry.StrictPolicy))
	}
	if globalFlags.StaticProfiles != "" {
		static, err := registry.ReadStaticProfiles(globalFlags.StaticProfiles, programID)
		if err != nil {
			return nil, fmt.Errorf("--static-profiles: %w", err)
		}
		opts = append(opts, x402.WithStaticProfiles(static))
	}
	if globalFlags.Verbose {
		opts = append(opts, x402.WithLogger(logger.NewZapLogger("debug")))
	}
	return x402.NewClient(cfg, opts...)
}

func metadataFile() string {
	if globalFlags.MetadataFile != "" {
		return globalFlags.MetadataFile
	}
	return os.Getenv(metadataFileEnv)
}

// loadKeypair reads a keygen JSON file, or decodes v as a base58 secret key
// when no such file exists.
func loadKeypair(v string) (solana.PrivateKey, error) {
	if v == "" {
		return nil, fmt.Errorf("--keypair is required")
	}
	if _, err := os.Stat(v); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(v)
		if err != nil {
			return nil, fmt.Errorf("read keypair %s: %w", v, err)
		}
		return key, nil
	}
	key, err := solana.PrivateKeyFromBase58(v)
	if err != nil {
		return nil, fmt.Errorf("--keypair is neither a file nor a base58 key: %w", err)
	}
	return key, nil
}

func closeClient(c *x402.Client) {
	if err := c.Close(); err != nil {
		pterm.Warning.Printfln("close client: %v", err)
	}
}
