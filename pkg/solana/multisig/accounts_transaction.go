package multisig

import (
	"crypto/ed25519"
)

var TransactionAccountDiscriminator = []byte{
	0x0b, 0x18, 0xae, 0x81, 0xcb, 0x75, 0xf2, 0x17,
}

// TransactionAccountSize returns the space a proposal account needs to hold
// an instruction with numAccounts accounts and dataLen bytes of data, for a
// multisig with numOwners owners.
func TransactionAccountSize(numAccounts, dataLen, numOwners int) uint64 {
	return uint64(8 + // discriminator
		ed25519.PublicKeySize + // multisig
		ed25519.PublicKeySize + // program_id
		4 + numAccounts*TransactionAccountMetaSize + // accounts
		4 + dataLen + // data
		4 + numOwners + // signers
		1 + // did_execute
		4) // owner_set_seqno
}
