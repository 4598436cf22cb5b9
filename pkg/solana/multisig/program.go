// Package multisig builds instructions for, and decodes accounts of, the
// serum multisig program.
package multisig

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

var (
	ErrInvalidMultisigParameters = errors.New("invalid multisig parameters")
	ErrInvalidAccountData        = errors.New("unexpected account data")
	ErrInvalidInstructionData    = errors.New("unexpected instruction data")
)

// DefaultProgramID is the mainnet deployment of the multisig program.
var DefaultProgramID = solana.MustParsePublicKey("msigmtwzgXJHj2ext4XJjCDmpbcMuufFb5cHuwg6Xdt")

const (
	// MultisigAccountSize is the space allocated for every multisig account.
	MultisigAccountSize = 1000

	// MaxOwners is the largest owner set that fits in MultisigAccountSize.
	MaxOwners = (MultisigAccountSize -
		8 - // discriminator
		4 - // owners length
		8 - // threshold
		1 - // nonce
		4) / // owner_set_seqno
		ed25519.PublicKeySize
)

// ValidateParameters checks an owner set and threshold before anything is
// built or sent.
func ValidateParameters(owners []ed25519.PublicKey, threshold uint64) error {
	if len(owners) == 0 {
		return errors.Wrap(ErrInvalidMultisigParameters, "owners must not be empty")
	}
	if len(owners) > MaxOwners {
		return errors.Wrapf(ErrInvalidMultisigParameters, "%d owners exceeds the maximum of %d", len(owners), MaxOwners)
	}
	if threshold == 0 || threshold > uint64(len(owners)) {
		return errors.Wrapf(ErrInvalidMultisigParameters, "threshold %d must be within [1, %d]", threshold, len(owners))
	}

	for i, owner := range owners {
		if len(owner) != ed25519.PublicKeySize {
			return errors.Wrapf(ErrInvalidMultisigParameters, "owner %d has invalid length %d", i, len(owner))
		}
		for _, other := range owners[:i] {
			if bytes.Equal(owner, other) {
				return errors.Wrapf(ErrInvalidMultisigParameters, "duplicate owner %s", solana.Address(owner))
			}
		}
	}

	return nil
}
