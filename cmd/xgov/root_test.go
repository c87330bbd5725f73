package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeypair(t *testing.T) {
	wallet := solana.NewWallet()

	t.Run("keygen file", func(t *testing.T) {
		raw := make([]int, len(wallet.PrivateKey))
		for i, b := range wallet.PrivateKey {
			raw[i] = int(b)
		}
		data, err := json.Marshal(raw)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "id.json")
		require.NoError(t, os.WriteFile(path, data, 0o600))

		key, err := loadKeypair(path)
		require.NoError(t, err)
		assert.Equal(t, wallet.PublicKey(), key.PublicKey())
	})

	t.Run("base58", func(t *testing.T) {
		key, err := loadKeypair(wallet.PrivateKey.String())
		require.NoError(t, err)
		assert.Equal(t, wallet.PublicKey(), key.PublicKey())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := loadKeypair("")
		assert.Error(t, err)
		_, err = loadKeypair("definitely not a key")
		assert.Error(t, err)
	})
}

func TestNewClient_RejectsBadFlags(t *testing.T) {
	saved := globalFlags
	t.Cleanup(func() { globalFlags = saved })

	globalFlags.Network = "ethereum"
	_, err := newClient(false)
	assert.ErrorContains(t, err, "unknown network")

	globalFlags.Network = "solana-localnet"
	globalFlags.ProgramID = "nope"
	_, err = newClient(false)
	assert.ErrorContains(t, err, "--program-id")
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"providers", "list"},
		{"providers", "best"},
		{"providers", "get"},
		{"network", "stats"},
		{"validate"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMetadataFile(t *testing.T) {
	saved := globalFlags
	t.Cleanup(func() { globalFlags = saved })

	t.Run("environment default", func(t *testing.T) {
		t.Setenv(metadataFileEnv, "/etc/x402/providers.json")
		globalFlags.MetadataFile = ""
		assert.Equal(t, "/etc/x402/providers.json", metadataFile())
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(metadataFileEnv, "/etc/x402/providers.json")
		globalFlags.MetadataFile = "local.json"
		assert.Equal(t, "local.json", metadataFile())
	})
}

func TestNewClient_FallbackFlags(t *testing.T) {
	saved := globalFlags
	t.Cleanup(func() { globalFlags = saved })

	for _, name := range []string{"strict", "static-profiles", "metadata-file"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}

	globalFlags.Network = "solana-localnet"
	globalFlags.ProgramID = solana.NewWallet().PublicKey().String()
	globalFlags.Strict = true

	t.Run("unreadable static profiles", func(t *testing.T) {
		globalFlags.StaticProfiles = filepath.Join(t.TempDir(), "absent.json")
		_, err := newClient(false)
		assert.ErrorContains(t, err, "--static-profiles")
	})

	t.Run("valid static profiles", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "static.json")
		body := `[{"owner":"` + solana.NewWallet().PublicKey().String() + `","name":"Sample","reputation_score":10}]`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		globalFlags.StaticProfiles = path

		c, err := newClient(false)
		require.NoError(t, err)
		assert.NoError(t, c.Close())
	})
}
