// Package bpfloader builds instructions for the upgradeable BPF loader.
package bpfloader

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

// ProgramKey is the upgradeable BPF loader.
var ProgramKey = solana.MustParsePublicKey("BPFLoaderUpgradeab1e11111111111111111111111")

const (
	commandSetAuthority uint32 = 4
)

// SetBufferAuthority hands a program buffer over to newAuthority.
//
// Reference: https://github.com/solana-labs/solana/blob/v1.9.5/sdk/program/src/loader_upgradeable_instruction.rs#L101-L111
func SetBufferAuthority(buffer, currentAuthority, newAuthority ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The buffer account.
	//   1. `[signer]` The current authority.
	//   2. `[]` The new authority.
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, commandSetAuthority)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(buffer, false),
		solana.NewReadonlyAccountMeta(currentAuthority, true),
		solana.NewReadonlyAccountMeta(newAuthority, false),
	)
}

type DecompiledSetBufferAuthority struct {
	Buffer           ed25519.PublicKey
	CurrentAuthority ed25519.PublicKey
	NewAuthority     ed25519.PublicKey
}

// DecodeSetBufferAuthority parses an uncompiled SetBufferAuthority instruction.
func DecodeSetBufferAuthority(ix solana.Instruction) (*DecompiledSetBufferAuthority, error) {
	if !bytes.Equal(ix.Program, ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(ix.Data) != 4 || binary.LittleEndian.Uint32(ix.Data) != commandSetAuthority {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(ix.Accounts) != 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	}

	return &DecompiledSetBufferAuthority{
		Buffer:           ix.Accounts[0].PublicKey,
		CurrentAuthority: ix.Accounts[1].PublicKey,
		NewAuthority:     ix.Accounts[2].PublicKey,
	}, nil
}
