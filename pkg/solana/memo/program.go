package memo

import (
	"bytes"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

// MaxLength is the longest memo accepted. The memo program only limits
// memos by transaction size, so this keeps room for the rest of the
// transaction.
const MaxLength = 566

var ErrInvalidMemo = errors.New("invalid memo")

// ProgramKey is the address of the SPL memo program (v2).
var ProgramKey = solana.MustParsePublicKey("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

// Instruction returns a memo instruction carrying text. No accounts are
// required to sign it.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/master/memo/program/src/processor.rs
func Instruction(text string) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte(text),
	)
}

// Validate checks that text can be stored by the memo program.
func Validate(text string) error {
	if len(text) == 0 {
		return errors.Wrap(ErrInvalidMemo, "memo is empty")
	}
	if len(text) > MaxLength {
		return errors.Wrapf(ErrInvalidMemo, "memo is %d bytes, the maximum is %d", len(text), MaxLength)
	}
	if !utf8.ValidString(text) {
		return errors.Wrap(ErrInvalidMemo, "memo is not valid utf-8")
	}
	return nil
}

type DecompiledMemo struct {
	Data []byte
}

func DecompileMemo(m solana.Message, index int) (*DecompiledMemo, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}

	return &DecompiledMemo{Data: i.Data}, nil
}
