package types

// Network represents supported Solana clusters
type Network string

const (
	NetworkSolanaMainnet  Network = "solana-mainnet"
	NetworkSolanaDevnet   Network = "solana-devnet" // testnet
	NetworkSolanaTestnet  Network = "solana-testnet"
	NetworkSolanaLocalnet Network = "solana-localnet"
)

var defaultRPCURLs = map[Network]string{
	NetworkSolanaMainnet:  "https://api.mainnet-beta.solana.com",
	NetworkSolanaDevnet:   "https://api.devnet.solana.com",
	NetworkSolanaTestnet:  "https://api.testnet.solana.com",
	NetworkSolanaLocalnet: "http://127.0.0.1:8899",
}

// DefaultRPCURL returns the public RPC endpoint of the cluster, or "" for an
// unknown network.
func (n Network) DefaultRPCURL() string {
	return defaultRPCURLs[n]
}

// IsSolana reports whether n is a known Solana cluster.
func (n Network) IsSolana() bool {
	_, ok := defaultRPCURLs[n]
	return ok
}

func (n Network) IsTestnet() bool {
	return n == NetworkSolanaDevnet || n == NetworkSolanaTestnet || n == NetworkSolanaLocalnet
}

func (n Network) String() string {
	return string(n)
}
