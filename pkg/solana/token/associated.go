package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
	"github.com/solfarm/multisig-cli/pkg/solana/system"
)

// AssociatedTokenAccountProgramKey is the associated token account program.
var AssociatedTokenAccountProgramKey = solana.MustParsePublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

const (
	associatedCommandCreate           uint8 = 0
	associatedCommandCreateIdempotent uint8 = 1
)

// GetAssociatedAccount returns the token account the associated token
// account program derives for wallet and mint. wallet may itself be a
// program derived address, such as a multisig signer.
//
// Reference: https://spl.solana.com/associated-token-account#finding-the-associated-token-account-address
func GetAssociatedAccount(wallet, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(
		AssociatedTokenAccountProgramKey,
		wallet,
		ProgramKey,
		mint,
	)
}

// CreateAssociatedTokenAccount creates the associated account of wallet for
// mint, paid for by subsidizer. wallet does not sign. The instruction fails
// on chain when the account already exists.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/0639953c7dd0f5228c3ceda3ba68fece3b46ff1d/associated-token-account/program/src/lib.rs#L54
func CreateAssociatedTokenAccount(subsidizer, wallet, mint ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	address, err := GetAssociatedAccount(wallet, mint)
	if err != nil {
		return solana.Instruction{}, nil, errors.Wrap(err, "failed to derive associated token account")
	}

	// The legacy empty payload is the create command, and unlike the
	// explicit form every deployed version of the program accepts it.
	return solana.NewInstruction(
		AssociatedTokenAccountProgramKey,
		[]byte{},
		solana.NewAccountMeta(subsidizer, true),
		solana.NewAccountMeta(address, false),
		solana.NewReadonlyAccountMeta(wallet, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(ProgramKey, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	), address, nil
}

type DecompiledCreateAssociatedAccount struct {
	Subsidizer ed25519.PublicKey
	Address    ed25519.PublicKey
	Owner      ed25519.PublicKey
	Mint       ed25519.PublicKey

	// Idempotent is set for the variant that succeeds when the account
	// already exists.
	Idempotent bool
}

// DecompileCreateAssociatedAccount decodes any create variant of the
// associated token account program, with or without the trailing rent
// sysvar, and checks that the account is the one derived for owner and mint.
func DecompileCreateAssociatedAccount(m solana.Message, index int) (*DecompiledCreateAssociatedAccount, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]
	if !bytes.Equal(m.Accounts[i.ProgramIndex], AssociatedTokenAccountProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}

	var idempotent bool
	switch {
	case len(i.Data) == 0, bytes.Equal(i.Data, []byte{associatedCommandCreate}):
	case bytes.Equal(i.Data, []byte{associatedCommandCreateIdempotent}):
		idempotent = true
	default:
		return nil, solana.ErrIncorrectInstruction
	}

	if len(i.Accounts) != 6 && len(i.Accounts) != 7 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	account := func(n int) ed25519.PublicKey {
		return m.Accounts[i.Accounts[n]]
	}

	if !bytes.Equal(account(4), system.ProgramKey) {
		return nil, errors.New("system program key mismatch")
	}
	if !bytes.Equal(account(5), ProgramKey) {
		return nil, errors.New("token program key mismatch")
	}
	if len(i.Accounts) == 7 && !bytes.Equal(account(6), system.RentSysVar) {
		return nil, errors.New("rent sysvar mismatch")
	}

	v := &DecompiledCreateAssociatedAccount{
		Subsidizer: account(0),
		Address:    account(1),
		Owner:      account(2),
		Mint:       account(3),
		Idempotent: idempotent,
	}

	expected, err := GetAssociatedAccount(v.Owner, v.Mint)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(expected, v.Address) {
		return nil, errors.Errorf("account %s is not the associated account of owner and mint", solana.Address(v.Address))
	}
	return v, nil
}
