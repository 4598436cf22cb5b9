package multisig

import (
	"crypto/ed25519"

	"github.com/solfarm/multisig-cli/pkg/solana"
	"github.com/solfarm/multisig-cli/pkg/solana/binary"
	"github.com/solfarm/multisig-cli/pkg/solana/system"
)

var createMultisigInstructionDiscriminator = []byte{
	0x94, 0x92, 0xf0, 0x0a, 0xe2, 0xd7, 0xa7, 0xae,
}

// CreateMultisigInstructionArgsSize returns the encoded size of the
// create_multisig arguments for an owner set of the given size.
func CreateMultisigInstructionArgsSize(numOwners int) int {
	return (binary.KeyVecSize(numOwners) + // owners
		8 + // threshold
		1) // nonce
}

type CreateMultisigInstructionArgs struct {
	Owners    []ed25519.PublicKey
	Threshold uint64
	Nonce     uint8
}

// Validate rejects owner sets the program would refuse or that cannot fit in
// a multisig account.
func (args *CreateMultisigInstructionArgs) Validate() error {
	return ValidateParameters(args.Owners, args.Threshold)
}

// InstructionData returns the anchor encoded create_multisig data.
func (args *CreateMultisigInstructionArgs) InstructionData() []byte {
	var offset int

	data := make([]byte,
		len(createMultisigInstructionDiscriminator)+
			CreateMultisigInstructionArgsSize(len(args.Owners)))

	putDiscriminator(data, createMultisigInstructionDiscriminator, &offset)
	binary.PutKeyVec(data[offset:], args.Owners, &offset)
	binary.PutUint64(data[offset:], args.Threshold, &offset)
	binary.PutUint8(data[offset:], args.Nonce, &offset)

	return data
}

type CreateMultisigInstructionAccounts struct {
	Multisig ed25519.PublicKey
}

func (accounts *CreateMultisigInstructionAccounts) AccountMetas() []solana.AccountMeta {
	return []solana.AccountMeta{
		{
			PublicKey:  accounts.Multisig,
			IsWritable: true,
			IsSigner:   false,
		},
		{
			PublicKey:  system.RentSysVar,
			IsWritable: false,
			IsSigner:   false,
		},
	}
}

// NewCreateMultisigInstruction initializes a multisig account that was
// previously allocated with MultisigAccountSize bytes and assigned to program.
func NewCreateMultisigInstruction(
	program ed25519.PublicKey,
	accounts *CreateMultisigInstructionAccounts,
	args *CreateMultisigInstructionArgs,
) (solana.Instruction, error) {
	if err := args.Validate(); err != nil {
		return solana.Instruction{}, err
	}

	return solana.NewInstruction(
		program,
		args.InstructionData(),
		accounts.AccountMetas()...,
	), nil
}
