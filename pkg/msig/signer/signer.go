// Package signer resolves signing credentials from path-like specifiers.
package signer

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var ErrSignerUnavailable = errors.New("signer unavailable")

const (
	filePrefix = "file:"
	usbPrefix  = "usb://"
)

// unsupportedPrefixes name signer sources that need interactive or hardware
// access.
var unsupportedPrefixes = []string{usbPrefix, "prompt:", "stdin", "ask:"}

// Resolve returns the signer named by specifier. Local keypair files in the
// Solana CLI format are supported, with an optional "file:" prefix and "~"
// expansion.
func Resolve(specifier string) (crypto.Signer, error) {
	specifier = strings.TrimSpace(specifier)
	if specifier == "" {
		return nil, errors.Wrap(ErrSignerUnavailable, "no keypair specified")
	}

	for _, prefix := range unsupportedPrefixes {
		if strings.HasPrefix(specifier, prefix) {
			return nil, errors.Wrapf(ErrSignerUnavailable, "%s signers are not supported", strings.TrimSuffix(prefix, "://"))
		}
	}

	path, err := expandHome(strings.TrimPrefix(specifier, filePrefix))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrSignerUnavailable, "failed to read keypair %s: %v", path, err)
	}

	key, err := ParseKeypair(data)
	if err != nil {
		return nil, errors.Wrapf(err, "keypair %s", path)
	}
	return key, nil
}

// ParseKeypair decodes a JSON array of the 64 private key bytes, checking
// that the public half matches the seed.
func ParseKeypair(data []byte) (ed25519.PrivateKey, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.Wrap(ErrSignerUnavailable, "keypair is not valid json")
	}

	parsed := gjson.ParseBytes(data)
	if !parsed.IsArray() {
		return nil, errors.Wrap(ErrSignerUnavailable, "keypair must be a json array")
	}

	values := parsed.Array()
	if len(values) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrSignerUnavailable, "keypair has %d bytes, expected %d", len(values), ed25519.PrivateKeySize)
	}

	raw := make([]byte, ed25519.PrivateKeySize)
	for i, v := range values {
		n := v.Int()
		if v.Type != gjson.Number || float64(n) != v.Float() || n < 0 || n > 255 {
			return nil, errors.Wrapf(ErrSignerUnavailable, "keypair byte %d is not in [0, 255]", i)
		}
		raw[i] = byte(n)
	}

	key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(key[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, errors.Wrap(ErrSignerUnavailable, "keypair public key does not match its secret")
	}
	return key, nil
}

// Ephemeral generates a keypair for a new account. It is only held for the
// lifetime of the command that creates the account.
func Ephemeral() (ed25519.PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate keypair")
	}
	return key, nil
}

// PublicKey returns the ed25519 public key of s.
func PublicKey(s crypto.Signer) (ed25519.PublicKey, error) {
	pub, ok := s.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.Wrapf(ErrSignerUnavailable, "unsupported key type %T", s.Public())
	}
	return pub, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrapf(ErrSignerUnavailable, "failed to expand %s: %v", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
