package multisig

import (
	"crypto/ed25519"

	"github.com/solfarm/multisig-cli/pkg/solana"
	"github.com/solfarm/multisig-cli/pkg/solana/binary"
	"github.com/solfarm/multisig-cli/pkg/solana/system"
)

var createTransactionInstructionDiscriminator = []byte{
	0xe3, 0xc1, 0x35, 0xef, 0x37, 0x7e, 0x70, 0x69,
}

const TransactionAccountMetaSize = (ed25519.PublicKeySize + // pubkey
	1 + // is_signer
	1) // is_writable

// TransactionAccount is an account reference stored inside a proposal.
type TransactionAccount struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
}

func CreateTransactionInstructionArgsSize(numAccounts, dataLen int) int {
	return (ed25519.PublicKeySize + // pid
		4 + numAccounts*TransactionAccountMetaSize + // accs
		binary.ByteVecSize(dataLen)) // data
}

type CreateTransactionInstructionArgs struct {
	ProgramID ed25519.PublicKey
	Accounts  []TransactionAccount
	Data      []byte
}

func (args *CreateTransactionInstructionArgs) InstructionData() []byte {
	var offset int

	data := make([]byte,
		len(createTransactionInstructionDiscriminator)+
			CreateTransactionInstructionArgsSize(len(args.Accounts), len(args.Data)))

	putDiscriminator(data, createTransactionInstructionDiscriminator, &offset)
	binary.PutKey32(data[offset:], args.ProgramID, &offset)
	binary.PutUint32(data[offset:], uint32(len(args.Accounts)), &offset)
	for _, account := range args.Accounts {
		binary.PutKey32(data[offset:], account.PublicKey, &offset)
		binary.PutBool(data[offset:], account.IsSigner, &offset)
		binary.PutBool(data[offset:], account.IsWritable, &offset)
	}
	binary.PutByteVec(data[offset:], args.Data, &offset)

	return data
}

type CreateTransactionInstructionAccounts struct {
	Multisig    ed25519.PublicKey
	Transaction ed25519.PublicKey
	Proposer    ed25519.PublicKey
}

func (accounts *CreateTransactionInstructionAccounts) AccountMetas() []solana.AccountMeta {
	return []solana.AccountMeta{
		{
			PublicKey:  accounts.Multisig,
			IsWritable: false,
			IsSigner:   false,
		},
		{
			PublicKey:  accounts.Transaction,
			IsWritable: true,
			IsSigner:   false,
		},
		{
			PublicKey:  accounts.Proposer,
			IsWritable: false,
			IsSigner:   true,
		},
		{
			PublicKey:  system.RentSysVar,
			IsWritable: false,
			IsSigner:   false,
		},
	}
}

func NewCreateTransactionInstruction(
	program ed25519.PublicKey,
	accounts *CreateTransactionInstructionAccounts,
	args *CreateTransactionInstructionArgs,
) solana.Instruction {
	return solana.NewInstruction(
		program,
		args.InstructionData(),
		accounts.AccountMetas()...,
	)
}

// WrapAsProposal turns inner into a create_transaction instruction that
// stores it in the transaction account for later approval. Signatures are
// supplied by the multisig signer at execution time, so no stored account is
// marked as a signer.
func WrapAsProposal(program, multisig, transaction, proposer ed25519.PublicKey, inner solana.Instruction) solana.Instruction {
	accounts := make([]TransactionAccount, len(inner.Accounts))
	for i, account := range inner.Accounts {
		accounts[i] = TransactionAccount{
			PublicKey:  account.PublicKey,
			IsSigner:   false,
			IsWritable: account.IsWritable,
		}
	}

	return NewCreateTransactionInstruction(
		program,
		&CreateTransactionInstructionAccounts{
			Multisig:    multisig,
			Transaction: transaction,
			Proposer:    proposer,
		},
		&CreateTransactionInstructionArgs{
			ProgramID: inner.Program,
			Accounts:  accounts,
			Data:      inner.Data,
		},
	)
}
