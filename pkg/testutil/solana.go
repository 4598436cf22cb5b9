package testutil

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

func GenerateSolanaKeypair(t *testing.T) ed25519.PrivateKey {
	_, p, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return p
}

func GenerateSolanaKeys(t *testing.T, n int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, n)
	for i := 0; i < n; i++ {
		p, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = p
	}
	return keys
}

// GenerateAddresses returns n random base58 addresses.
func GenerateAddresses(t *testing.T, n int) []string {
	addresses := make([]string, n)
	for i, key := range GenerateSolanaKeys(t, n) {
		addresses[i] = solana.Address(key)
	}
	return addresses
}

// WriteKeypairFile stores key in dir the way the Solana CLI does: a JSON
// array of the 64 private key bytes.
func WriteKeypairFile(t *testing.T, dir string, key ed25519.PrivateKey) string {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}

	data, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(dir, solana.Address(key.Public().(ed25519.PublicKey))+".json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
