package compute_budget

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

var ProgramKey = solana.MustParsePublicKey("ComputeBudget111111111111111111111111111111")

const (
	commandRequestUnits uint8 = iota
	commandRequestHeapFrame
	commandSetComputeUnitLimit
	commandSetComputeUnitPrice
)

// SetComputeUnitLimit caps the compute units the transaction may consume.
func SetComputeUnitLimit(computeUnitLimit uint32) solana.Instruction {
	data := make([]byte, 1+4)
	data[0] = commandSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], computeUnitLimit)

	return solana.NewInstruction(
		ProgramKey,
		data,
	)
}

// SetComputeUnitPrice sets the priority fee, in micro-lamports per compute
// unit.
func SetComputeUnitPrice(computeUnitPrice uint64) solana.Instruction {
	data := make([]byte, 1+8)
	data[0] = commandSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], computeUnitPrice)

	return solana.NewInstruction(
		ProgramKey,
		data,
	)
}

func DecodeSetComputeUnitLimit(ix solana.Instruction) (uint32, error) {
	if err := checkInstruction(ix, commandSetComputeUnitLimit, 1+4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(ix.Data[1:]), nil
}

func DecodeSetComputeUnitPrice(ix solana.Instruction) (uint64, error) {
	if err := checkInstruction(ix, commandSetComputeUnitPrice, 1+8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(ix.Data[1:]), nil
}

func checkInstruction(ix solana.Instruction, command uint8, size int) error {
	if !bytes.Equal(ix.Program, ProgramKey) {
		return solana.ErrIncorrectProgram
	}
	if len(ix.Data) == 0 || ix.Data[0] != command {
		return solana.ErrIncorrectInstruction
	}
	if len(ix.Data) != size {
		return errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}
	return nil
}
