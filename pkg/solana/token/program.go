package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

// ProgramKey is the SPL token program.
var ProgramKey = solana.MustParsePublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

type Command byte

const (
	CommandTransfer Command = 3
)

const (
	// ErrorInsufficientFunds is the custom error code for an underfunded
	// source account.
	ErrorInsufficientFunds solana.CustomError = 1
)

// Transfer moves amount base units from source to dest.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L76-L91
func Transfer(source, dest, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The source account.
	//   1. `[writable]` The destination account.
	//   2. `[signer]` The source account's owner/delegate.
	data := make([]byte, 1+8)
	data[0] = byte(CommandTransfer)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledTransfer struct {
	Source      ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
}

// DecodeTransfer parses an uncompiled transfer instruction.
func DecodeTransfer(ix solana.Instruction) (*DecompiledTransfer, error) {
	if !bytes.Equal(ix.Program, ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(ix.Data, []byte{byte(CommandTransfer)}) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(ix.Accounts) < 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	}
	if len(ix.Data) != 9 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}

	return &DecompiledTransfer{
		Source:      ix.Accounts[0].PublicKey,
		Destination: ix.Accounts[1].PublicKey,
		Owner:       ix.Accounts[2].PublicKey,
		Amount:      binary.LittleEndian.Uint64(ix.Data[1:]),
	}, nil
}

// DecompileTransfer parses the transfer at index within a compiled message.
func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	ix, err := m.Decompile(index)
	if err != nil {
		return nil, err
	}
	return DecodeTransfer(ix)
}
