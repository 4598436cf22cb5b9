// Package system builds and decodes the system program instructions that
// msig submits directly: account allocation and lamport transfers.
package system

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
	"github.com/solfarm/multisig-cli/pkg/solana/binary"
)

// ProgramKey is the system program, which also owns wallet accounts.
//
// https://explorer.solana.com/address/11111111111111111111111111111111
var ProgramKey = solana.MustParsePublicKey("11111111111111111111111111111111")

// RentSysVar is the rent sysvar, required by programs that check rent
// exemption on account creation.
var RentSysVar = solana.MustParsePublicKey("SysvarRent111111111111111111111111111111111")

const (
	commandCreateAccount uint32 = 0
	commandTransfer      uint32 = 2

	createAccountDataSize = 4 + 8 + 8 + ed25519.PublicKeySize
	transferDataSize      = 4 + 8
)

// CreateAccount allocates size bytes at address, funds it with lamports and
// assigns it to owner. Both funder and address sign.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	var offset int
	data := make([]byte, createAccountDataSize)
	binary.PutUint32(data[offset:], commandCreateAccount, &offset)
	binary.PutUint64(data[offset:], lamports, &offset)
	binary.PutUint64(data[offset:], size, &offset)
	binary.PutKey32(data[offset:], owner, &offset)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Transfer moves lamports out of a system owned account.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L79-L84
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	var offset int
	data := make([]byte, transferDataSize)
	binary.PutUint32(data[offset:], commandTransfer, &offset)
	binary.PutUint64(data[offset:], lamports, &offset)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	i, err := compiled(m, index, commandCreateAccount, createAccountDataSize)
	if err != nil {
		return nil, err
	}

	v := &DecompiledCreateAccount{
		Funder:  m.Accounts[i.Accounts[0]],
		Address: m.Accounts[i.Accounts[1]],
	}

	offset := 4
	binary.GetUint64(i.Data[offset:], &v.Lamports, &offset)
	binary.GetUint64(i.Data[offset:], &v.Size, &offset)
	binary.GetKey32(i.Data[offset:], &v.Owner, &offset)
	return v, nil
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, err := compiled(m, index, commandTransfer, transferDataSize)
	if err != nil {
		return nil, err
	}

	v := &DecompiledTransfer{
		From: m.Accounts[i.Accounts[0]],
		To:   m.Accounts[i.Accounts[1]],
	}

	offset := 4
	binary.GetUint64(i.Data[offset:], &v.Lamports, &offset)
	return v, nil
}

// compiled returns the instruction at index after checking it is the given
// two account system command.
func compiled(m solana.Message, index int, command uint32, size int) (solana.CompiledInstruction, error) {
	if index >= len(m.Instructions) {
		return solana.CompiledInstruction{}, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]
	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return i, solana.ErrIncorrectProgram
	}

	var prefix [4]byte
	var offset int
	binary.PutUint32(prefix[:], command, &offset)
	if !bytes.HasPrefix(i.Data, prefix[:]) {
		return i, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != 2 {
		return i, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != size {
		return i, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}
	return i, nil
}
