package multisig

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

const bincodeAccountMetaSize = ed25519.PublicKeySize + 1 + 1

// DecodeBincodeInstruction decodes an instruction serialized with bincode's
// default options: the program id, a u64 length prefixed list of
// (pubkey, is_signer, is_writable) and u64 length prefixed data.
func DecodeBincodeInstruction(b []byte) (solana.Instruction, error) {
	var offset int

	if len(b) < ed25519.PublicKeySize+8 {
		return solana.Instruction{}, errors.Wrap(ErrInvalidInstructionData, "too short for program id and accounts length")
	}

	program := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(program, b)
	offset += ed25519.PublicKeySize

	numAccounts := binary.LittleEndian.Uint64(b[offset:])
	offset += 8
	if numAccounts > uint64(len(b)-offset)/bincodeAccountMetaSize {
		return solana.Instruction{}, errors.Wrapf(ErrInvalidInstructionData, "%d accounts exceed the input", numAccounts)
	}

	accounts := make([]solana.AccountMeta, numAccounts)
	for i := range accounts {
		pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(pub, b[offset:])
		offset += ed25519.PublicKeySize

		isSigner, err := decodeBool(b[offset])
		if err != nil {
			return solana.Instruction{}, err
		}
		isWritable, err := decodeBool(b[offset+1])
		if err != nil {
			return solana.Instruction{}, err
		}
		offset += 2

		accounts[i] = solana.AccountMeta{
			PublicKey:  pub,
			IsSigner:   isSigner,
			IsWritable: isWritable,
		}
	}

	if len(b) < offset+8 {
		return solana.Instruction{}, errors.Wrap(ErrInvalidInstructionData, "missing data length")
	}
	dataLen := binary.LittleEndian.Uint64(b[offset:])
	offset += 8
	if dataLen != uint64(len(b)-offset) {
		return solana.Instruction{}, errors.Wrapf(ErrInvalidInstructionData, "data length %d does not match remaining %d bytes", dataLen, len(b)-offset)
	}

	data := make([]byte, dataLen)
	copy(data, b[offset:])

	return solana.NewInstruction(program, data, accounts...), nil
}

// EncodeBincodeInstruction is the inverse of DecodeBincodeInstruction.
func EncodeBincodeInstruction(ix solana.Instruction) []byte {
	b := make([]byte, 0, ed25519.PublicKeySize+8+len(ix.Accounts)*bincodeAccountMetaSize+8+len(ix.Data))

	b = append(b, ix.Program...)
	b = binary.LittleEndian.AppendUint64(b, uint64(len(ix.Accounts)))
	for _, account := range ix.Accounts {
		b = append(b, account.PublicKey...)
		b = append(b, encodeBool(account.IsSigner), encodeBool(account.IsWritable))
	}
	b = binary.LittleEndian.AppendUint64(b, uint64(len(ix.Data)))
	b = append(b, ix.Data...)

	return b
}

func decodeBool(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.Wrapf(ErrInvalidInstructionData, "invalid bool value %d", b)
	}
}

func encodeBool(v bool) byte {
	if v {
		return 1
	}
	return 0
}
