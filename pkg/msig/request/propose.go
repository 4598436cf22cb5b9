package request

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solfarm/multisig-cli/pkg/msig/signer"
	"github.com/solfarm/multisig-cli/pkg/solana"
	"github.com/solfarm/multisig-cli/pkg/solana/bpfloader"
	"github.com/solfarm/multisig-cli/pkg/solana/multisig"
	"github.com/solfarm/multisig-cli/pkg/solana/system"
	"github.com/solfarm/multisig-cli/pkg/solana/token"
)

// GetMultisig reads and decodes a multisig account owned by the program.
func (b *RequestBuilder) GetMultisig(address ed25519.PublicKey) (*multisig.MultisigAccount, error) {
	info, err := b.client.GetAccountInfo(address, b.commitment)
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return nil, errors.Wrapf(ErrNotMultisig, "%s does not exist", solana.Address(address))
	} else if err != nil {
		return nil, classify(solana.Signature{}, solana.Message{}, errors.Wrap(err, "failed to get multisig account"), false)
	}

	if !bytes.Equal(info.Owner, b.program) {
		return nil, errors.Wrapf(ErrNotMultisig, "%s is owned by %s", solana.Address(address), solana.Address(info.Owner))
	}

	account, err := multisig.UnmarshalMultisigAccount(info.Data)
	if err != nil {
		return nil, errors.Wrapf(ErrNotMultisig, "%s: %v", solana.Address(address), err)
	}
	return account, nil
}

// ProposeSolanaInstruction stores ix as a proposal on the multisig and
// returns the address of the new proposal account. The payer is the
// proposer and must be one of the multisig owners.
func (b *RequestBuilder) ProposeSolanaInstruction(ctx context.Context, multisigAccount ed25519.PublicKey, ix solana.Instruction) (ed25519.PublicKey, error) {
	proposer, err := signer.PublicKey(b.payer)
	if err != nil {
		return nil, err
	}

	account, err := b.GetMultisig(multisigAccount)
	if err != nil {
		return nil, err
	}
	if !containsKey(account.Owners, proposer) {
		return nil, errors.Wrapf(ErrProposerNotOwner, "%s", solana.Address(proposer))
	}

	proposal, err := signer.Ephemeral()
	if err != nil {
		return nil, err
	}
	proposalKey := proposal.Public().(ed25519.PublicKey)

	log := b.log.WithFields(logrus.Fields{
		"multisig": solana.Address(multisigAccount),
		"proposal": solana.Address(proposalKey),
		"program":  solana.Address(ix.Program),
	})

	size := multisig.TransactionAccountSize(len(ix.Accounts), len(ix.Data), len(account.Owners))
	rent, err := b.client.GetMinimumBalanceForRentExemption(size)
	if err != nil {
		return nil, classify(solana.Signature{}, solana.Message{}, errors.Wrap(err, "failed to get rent exemption"), false)
	}

	sig, err := b.fork().
		Instruction(system.CreateAccount(proposer, proposalKey, b.program, rent, size)).
		Instruction(multisig.WrapAsProposal(b.program, multisigAccount, proposalKey, proposer, ix)).
		Signer(proposal).
		Send(ctx, true)
	if err != nil {
		return nil, err
	}
	log = log.WithField("signature", sig.String())

	// The proposal address is only reported once the account is observed.
	info, err := b.client.GetAccountInfo(proposalKey, b.commitment)
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return nil, errors.Wrapf(ErrProposalNotFound, "%s after %s", solana.Address(proposalKey), sig)
	} else if err != nil {
		return nil, classify(sig, solana.Message{}, errors.Wrap(err, "failed to get proposal account"), false)
	}
	if !bytes.Equal(info.Owner, b.program) {
		return nil, errors.Wrapf(ErrProposalNotFound, "%s is owned by %s", solana.Address(proposalKey), solana.Address(info.Owner))
	}

	log.Info("Proposal created")
	return proposalKey, nil
}

// ProposeTransferTokens proposes moving amount base units from source, a
// token account owned by the multisig signer pda, to target.
func (b *RequestBuilder) ProposeTransferTokens(ctx context.Context, multisigAccount, pda, source, target ed25519.PublicKey, amount uint64) (ed25519.PublicKey, error) {
	if amount == 0 {
		return nil, errors.Wrap(token.ErrInvalidAmount, "amount must be positive")
	}

	return b.ProposeSolanaInstruction(ctx, multisigAccount, token.Transfer(source, target, pda, amount))
}

// ProposeChangeAuth proposes handing the authority of an upgradeable program
// buffer from currentAuth to newAuth.
func (b *RequestBuilder) ProposeChangeAuth(ctx context.Context, multisigAccount, buffer, newAuth, currentAuth ed25519.PublicKey) (ed25519.PublicKey, error) {
	return b.ProposeSolanaInstruction(ctx, multisigAccount, bpfloader.SetBufferAuthority(buffer, currentAuth, newAuth))
}

// ProposeBlobInstruction proposes a base64 encoded, bincode serialized
// instruction.
func (b *RequestBuilder) ProposeBlobInstruction(ctx context.Context, multisigAccount ed25519.PublicKey, blob string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return nil, errors.Wrap(multisig.ErrInvalidInstructionData, "instruction is not valid base64")
	}

	ix, err := multisig.DecodeBincodeInstruction(raw)
	if err != nil {
		return nil, err
	}

	return b.ProposeSolanaInstruction(ctx, multisigAccount, ix)
}
