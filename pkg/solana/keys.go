package solana

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// ErrAddressParse is returned for text that is not a base58 encoded 32 byte
// address.
var ErrAddressParse = errors.New("invalid address")

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	if s == "" {
		return nil, errors.Wrap(ErrAddressParse, "empty address")
	}

	decoded, err := base58.Decode(s)
	if err != nil {
		return nil, errors.Wrapf(ErrAddressParse, "%q is not base58", s)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(ErrAddressParse, "%q decodes to %d bytes", s, len(decoded))
	}

	return ed25519.PublicKey(decoded), nil
}

// MustParsePublicKey is ParsePublicKey for compile time constants.
func MustParsePublicKey(s string) ed25519.PublicKey {
	pub, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pub
}

// ParsePublicKeys decodes every address, failing on the first invalid one.
func ParsePublicKeys(addresses []string) ([]ed25519.PublicKey, error) {
	keys := make([]ed25519.PublicKey, len(addresses))
	for i, a := range addresses {
		key, err := ParsePublicKey(a)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}
	return keys, nil
}

// Address renders a public key as base58.
func Address(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}
