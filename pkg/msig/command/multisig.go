package command

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solfarm/multisig-cli/pkg/msig/config"
	"github.com/solfarm/multisig-cli/pkg/msig/signer"
	"github.com/solfarm/multisig-cli/pkg/solana"
	"github.com/solfarm/multisig-cli/pkg/solana/multisig"
	"github.com/solfarm/multisig-cli/pkg/solana/system"
	"github.com/solfarm/multisig-cli/pkg/solana/token"
)

func newMultisigCommand(h *Handler) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multisig",
		Short: "Multisig management commands",
	}

	cmd.AddCommand(
		newMultisigConfigCommand(h),
		newCreateCommand(h),
		newCreateTokenAccountCommand(h),
		newTransferTokensCommand(h),
		newChangeAuthorityCommand(h),
		newProposeInstructionCommand(h),
		newListCommand(h),
	)
	return cmd
}

func newMultisigConfigCommand(h *Handler) *cobra.Command {
	var (
		name      string
		owners    []string
		threshold uint64
	)

	cmd := &cobra.Command{
		Use:   "new-config",
		Short: "Add a multisig account to the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.NewMultisigConfig(cmd.Context(), name, owners, threshold)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name of the multisig account")
	cmd.Flags().StringSliceVar(&owners, "owners", nil, "comma separated owner addresses")
	cmd.Flags().Uint64Var(&threshold, "threshold", 0, "number of owners required to approve a proposal")
	markRequired(cmd, "name", "owners", "threshold")
	return cmd
}

func newCreateCommand(h *Handler) *cobra.Command {
	var (
		name  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Deploy a configured multisig account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.CreateMultisig(cmd.Context(), name, force)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name of the multisig account")
	cmd.Flags().BoolVar(&force, "force", false, "deploy a new account even if one is already recorded")
	markRequired(cmd, "name")
	return cmd
}

func newCreateTokenAccountCommand(h *Handler) *cobra.Command {
	var name, tokenName, tokenMint string

	cmd := &cobra.Command{
		Use:   "create-token-account",
		Short: "Create an associated token account owned by the multisig signer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.CreateTokenAccount(cmd.Context(), name, tokenName, tokenMint)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name of the multisig account")
	cmd.Flags().StringVar(&tokenName, "token-name", "", "name the token account is recorded under")
	cmd.Flags().StringVar(&tokenMint, "token-mint", "", "mint address of the token")
	markRequired(cmd, "name", "token-name", "token-mint")
	return cmd
}

func newTransferTokensCommand(h *Handler) *cobra.Command {
	var (
		name, source, target, amount string
		decimals                     uint8
	)

	cmd := &cobra.Command{
		Use:   "transfer-tokens",
		Short: "Propose a token transfer out of a multisig token account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.TransferTokens(cmd.Context(), name, source, target, amount, decimals)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name of the multisig account")
	cmd.Flags().StringVar(&source, "source", "", "source token account, or the name of a recorded token account")
	cmd.Flags().StringVar(&target, "target", "", "destination token account")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in whole tokens, e.g. 1.5")
	cmd.Flags().Uint8Var(&decimals, "decimals", 0, "decimals of the token mint")
	markRequired(cmd, "name", "source", "target", "amount", "decimals")
	return cmd
}

func newChangeAuthorityCommand(h *Handler) *cobra.Command {
	var name, buffer, newAuthority string

	cmd := &cobra.Command{
		Use:   "change-authority",
		Short: "Propose moving a program buffer from the multisig signer to a new authority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.ChangeAuthority(cmd.Context(), name, buffer, newAuthority)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name of the multisig account")
	cmd.Flags().StringVar(&buffer, "buffer", "", "program buffer address")
	cmd.Flags().StringVar(&newAuthority, "new-authority", "", "address of the new buffer authority")
	markRequired(cmd, "name", "buffer", "new-authority")
	return cmd
}

func newProposeInstructionCommand(h *Handler) *cobra.Command {
	var name, data string

	cmd := &cobra.Command{
		Use:   "propose-instruction",
		Short: "Propose an arbitrary bincode serialized instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.ProposeInstruction(cmd.Context(), name, data)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name of the multisig account")
	cmd.Flags().StringVar(&data, "data", "", "base64 encoded instruction")
	markRequired(cmd, "name", "data")
	return cmd
}

func newListCommand(h *Handler) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured multisig accounts",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return h.ListMultisigs()
		},
	}
}

// NewMultisigConfig records a new, undeployed multisig account.
func (h *Handler) NewMultisigConfig(ctx context.Context, name string, owners []string, threshold uint64) error {
	trimmed := make([]string, len(owners))
	for i, owner := range owners {
		trimmed[i] = strings.TrimSpace(owner)
	}

	return h.store.Update(ctx, func(c *config.Configuration) error {
		h.applyDocument(c)

		if err := c.Multisig.Add(config.MultiSigAccount{
			Name:      name,
			Threshold: threshold,
			Owners:    trimmed,
		}); err != nil {
			return err
		}

		h.cmdLog.WithField("name", name).Info("Added multisig configuration")
		return nil
	})
}

// CreateMultisig deploys the named multisig with a fresh account and records
// the account and its signer once the transaction is confirmed.
func (h *Handler) CreateMultisig(ctx context.Context, name string, force bool) error {
	var (
		landed  bool
		sig     solana.Signature
		record  string
		address ed25519.PublicKey
	)

	err := h.store.Update(ctx, func(c *config.Configuration) error {
		h.applyDocument(c)

		account, err := c.Multisig.ByName(name)
		if err != nil {
			return err
		}
		if err := account.CheckDeployable(force); err != nil {
			return err
		}

		owners, err := account.OwnerKeys()
		if err != nil {
			return err
		}
		if err := multisig.ValidateParameters(owners, account.Threshold); err != nil {
			return err
		}

		builder, payer, err := h.requestBuilder(c)
		if err != nil {
			return err
		}
		program := builder.Program()

		multisigKey, err := signer.Ephemeral()
		if err != nil {
			return err
		}
		address = multisigKey.Public().(ed25519.PublicKey)

		pda, nonce, err := multisig.GetSignerAddress(program, address)
		if err != nil {
			return err
		}

		log := h.cmdLog.WithFields(logrus.Fields{
			"name":    name,
			"account": solana.Address(address),
			"pda":     solana.Address(pda),
		})

		rent, err := builder.Client().GetMinimumBalanceForRentExemption(multisig.MultisigAccountSize)
		if err != nil {
			return errors.Wrap(err, "failed to get rent exemption")
		}

		log.Debug("Deploying multisig")
		sig, err = builder.
			Instruction(system.CreateAccount(payer, address, program, rent, multisig.MultisigAccountSize)).
			Args(&multisig.CreateMultisigInstructionArgs{
				Owners:    owners,
				Threshold: account.Threshold,
				Nonce:     nonce,
			}).
			Accounts(&multisig.CreateMultisigInstructionAccounts{
				Multisig: address,
			}).
			Signer(multisigKey).
			Send(ctx, true)
		if err != nil {
			return errors.Wrapf(err, "failed to deploy multisig account %s", solana.Address(address))
		}

		landed = true
		record = fmt.Sprintf("name=%s account=%s pda=%s pda_nonce=%d", name, solana.Address(address), solana.Address(pda), nonce)
		log.WithField("signature", sig.String()).Info("Multisig deployed")
		fmt.Fprintf(h.stdout, "sent tx %s\n", sig)

		previousPDA, previousTokenAccounts := account.PDA, account.TokenAccounts
		if err := account.MarkDeployed(address, pda, nonce, force); err != nil {
			return err
		}

		if len(previousTokenAccounts) > 0 && len(account.TokenAccounts) == 0 {
			for _, tokenName := range sortedKeys(previousTokenAccounts) {
				log.WithFields(logrus.Fields{
					"token_name":    tokenName,
					"token_account": previousTokenAccounts[tokenName],
					"previous_pda":  previousPDA,
				}).Warn("Dropped token account owned by the previous signer")
				fmt.Fprintf(h.stdout, "dropped token account %s (%s), owned by previous signer %s\n", tokenName, previousTokenAccounts[tokenName], previousPDA)
			}
		}
		return nil
	})
	if err != nil && landed {
		return &ReconcileError{Signature: sig, Record: record, Err: err}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(h.stdout, "multisig %s deployed at %s\n", name, solana.Address(address))
	return nil
}

// CreateTokenAccount creates the associated token account of the multisig
// signer for mint and records it under tokenName.
func (h *Handler) CreateTokenAccount(ctx context.Context, name, tokenName, mint string) error {
	mintKey, err := solana.ParsePublicKey(mint)
	if err != nil {
		return errors.Wrap(err, "token mint")
	}

	var (
		landed  bool
		sig     solana.Signature
		record  string
		address ed25519.PublicKey
	)

	err = h.store.Update(ctx, func(c *config.Configuration) error {
		h.applyDocument(c)

		account, err := c.Multisig.ByName(name)
		if err != nil {
			return err
		}
		_, pda, err := account.Keys()
		if err != nil {
			return err
		}

		builder, payer, err := h.requestBuilder(c)
		if err != nil {
			return err
		}

		var ix solana.Instruction
		ix, address, err = token.CreateAssociatedTokenAccount(payer, pda, mintKey)
		if err != nil {
			return err
		}
		if err := account.CheckTokenAccount(tokenName, address); err != nil {
			return err
		}

		sig, err = builder.Instruction(ix).Send(ctx, true)
		if err != nil {
			return errors.Wrapf(err, "failed to create token account %s", solana.Address(address))
		}

		landed = true
		record = fmt.Sprintf("name=%s token_accounts.%s=%s", name, tokenName, solana.Address(address))
		h.cmdLog.WithFields(logrus.Fields{
			"name":          name,
			"token_name":    tokenName,
			"token_account": solana.Address(address),
			"signature":     sig.String(),
		}).Info("Token account created")
		fmt.Fprintf(h.stdout, "sent tx %s\n", sig)

		return account.AddTokenAccount(tokenName, address)
	})
	if err != nil && landed {
		return &ReconcileError{Signature: sig, Record: record, Err: err}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(h.stdout, "token account %s recorded as %s\n", solana.Address(address), tokenName)
	return nil
}

// TransferTokens proposes moving amount tokens from source, a token account
// owned by the multisig signer, to target.
func (h *Handler) TransferTokens(ctx context.Context, name, source, target, amount string, decimals uint8) error {
	baseUnits, err := token.ToBaseUnits(amount, decimals)
	if err != nil {
		return err
	}
	if baseUnits == 0 {
		return errors.Wrap(token.ErrInvalidAmount, "amount must be positive")
	}
	targetKey, err := solana.ParsePublicKey(target)
	if err != nil {
		return errors.Wrap(err, "target")
	}

	c, err := h.load()
	if err != nil {
		return err
	}
	account, err := c.Multisig.ByName(name)
	if err != nil {
		return err
	}
	multisigAddress, pda, err := account.Keys()
	if err != nil {
		return err
	}

	sourceKey, err := tokenAccount(account, source)
	if err != nil {
		return err
	}

	builder, _, err := h.requestBuilder(c)
	if err != nil {
		return err
	}

	proposal, err := builder.ProposeTransferTokens(ctx, multisigAddress, pda, sourceKey, targetKey, baseUnits)
	if err != nil {
		return errors.Wrap(err, "failed to submit proposal")
	}

	h.reportProposal(name, proposal)
	return nil
}

// ChangeAuthority proposes handing the program buffer held by the multisig
// signer to newAuthority.
func (h *Handler) ChangeAuthority(ctx context.Context, name, buffer, newAuthority string) error {
	bufferKey, err := solana.ParsePublicKey(buffer)
	if err != nil {
		return errors.Wrap(err, "buffer")
	}
	newAuthorityKey, err := solana.ParsePublicKey(newAuthority)
	if err != nil {
		return errors.Wrap(err, "new authority")
	}

	c, err := h.load()
	if err != nil {
		return err
	}
	account, err := c.Multisig.ByName(name)
	if err != nil {
		return err
	}
	multisigAddress, pda, err := account.Keys()
	if err != nil {
		return err
	}

	builder, _, err := h.requestBuilder(c)
	if err != nil {
		return err
	}

	proposal, err := builder.ProposeChangeAuth(ctx, multisigAddress, bufferKey, newAuthorityKey, pda)
	if err != nil {
		return errors.Wrap(err, "failed to submit proposal")
	}

	h.reportProposal(name, proposal)
	return nil
}

// ProposeInstruction proposes a base64 encoded, bincode serialized
// instruction.
func (h *Handler) ProposeInstruction(ctx context.Context, name, data string) error {
	c, err := h.load()
	if err != nil {
		return err
	}
	account, err := c.Multisig.ByName(name)
	if err != nil {
		return err
	}
	multisigAddress, _, err := account.Keys()
	if err != nil {
		return err
	}

	builder, _, err := h.requestBuilder(c)
	if err != nil {
		return err
	}

	proposal, err := builder.ProposeBlobInstruction(ctx, multisigAddress, data)
	if err != nil {
		return errors.Wrap(err, "failed to submit proposal")
	}

	h.reportProposal(name, proposal)
	return nil
}

// ListMultisigs prints the configured multisig accounts.
func (h *Handler) ListMultisigs() error {
	c, err := h.load()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(h.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tACCOUNT\tPDA\tTHRESHOLD\tTOKEN ACCOUNTS")
	for _, account := range c.Multisig.Accounts {
		address, pda := "-", "-"
		if account.IsDeployed() {
			address, pda = account.Account, account.PDA
		}

		names := sortedKeys(account.TokenAccounts)
		tokens := "-"
		if len(names) > 0 {
			tokens = strings.Join(names, ",")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n", account.Name, address, pda, account.Threshold, len(account.Owners), tokens)
	}
	return w.Flush()
}

func (h *Handler) reportProposal(name string, proposal ed25519.PublicKey) {
	h.cmdLog.WithFields(logrus.Fields{
		"name":     name,
		"proposal": solana.Address(proposal),
	}).Info("Proposal submitted")
	fmt.Fprintf(h.stdout, "sent proposal, account: %s\n", solana.Address(proposal))
}

// tokenAccount resolves source as a recorded token account name, or else as
// an address.
func tokenAccount(account *config.MultiSigAccount, source string) (ed25519.PublicKey, error) {
	if address, ok := account.TokenAccounts[source]; ok {
		source = address
	}

	key, err := solana.ParsePublicKey(source)
	if err != nil {
		return nil, errors.Wrap(err, "source")
	}
	return key, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
