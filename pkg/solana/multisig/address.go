package multisig

import (
	"crypto/ed25519"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

// GetSignerAddress returns the program derived signer (and its bump) that
// acts on behalf of a multisig account.
func GetSignerAddress(program, multisig ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		program,
		multisig,
	)
}
