package request

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solfarm/multisig-cli/pkg/solana"
	compute_budget "github.com/solfarm/multisig-cli/pkg/solana/computebudget"
	"github.com/solfarm/multisig-cli/pkg/solana/memo"
	"github.com/solfarm/multisig-cli/pkg/solana/memory"
	"github.com/solfarm/multisig-cli/pkg/solana/multisig"
	"github.com/solfarm/multisig-cli/pkg/solana/system"
	"github.com/solfarm/multisig-cli/pkg/testutil"
)

func newTestBuilder(t *testing.T, client solana.Client, payer ed25519.PrivateKey, opts ...Option) *RequestBuilder {
	return NewWithClient(
		multisig.DefaultProgramID,
		client,
		payer,
		append([]Option{
			WithLogger(testutil.NewLogger("msig/request")),
			WithPollInterval(time.Millisecond),
			WithConfirmTimeout(100 * time.Millisecond),
		}, opts...)...,
	)
}

func public(key ed25519.PrivateKey) ed25519.PublicKey {
	return key.Public().(ed25519.PublicKey)
}

func TestNew_NoNetwork(t *testing.T) {
	// Nothing listens on this address; construction must not dial it.
	b := New(multisig.DefaultProgramID, "http://127.0.0.1:1", testutil.GenerateSolanaKeypair(t))
	assert.NotNil(t, b.Client())
	assert.Equal(t, solana.CommitmentConfirmed, b.commitment)
	assert.Equal(t, DefaultConfirmTimeout, b.confirmTimeout)
}

func TestSend_InstructionOrder(t *testing.T) {
	client := memory.New()
	payer, account := testutil.GenerateSolanaKeypair(t), testutil.GenerateSolanaKeypair(t)
	owners := testutil.GenerateSolanaKeys(t, 3)
	recipient := testutil.GenerateSolanaKeys(t, 1)[0]

	sig, err := newTestBuilder(t, client, payer).
		Args(&multisig.CreateMultisigInstructionArgs{Owners: owners, Threshold: 2, Nonce: 255}).
		Accounts(&multisig.CreateMultisigInstructionAccounts{Multisig: public(account)}).
		Instruction(system.CreateAccount(public(payer), public(account), multisig.DefaultProgramID, 1, multisig.MultisigAccountSize)).
		Instruction(system.Transfer(public(payer), recipient, 5)).
		Signer(account).
		Send(context.Background(), true)
	require.NoError(t, err)

	submitted := client.Submitted()
	require.Len(t, submitted, 1)
	tx := submitted[0]
	assert.Equal(t, sig, tx.Signature())
	require.Len(t, tx.Message.Instructions, 3)

	created, err := system.DecompileCreateAccount(tx.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, public(account), created.Address)

	transfer, err := tx.Message.Decompile(1)
	require.NoError(t, err)
	assert.Equal(t, system.ProgramKey, transfer.Program)

	programIx, err := tx.Message.Decompile(2)
	require.NoError(t, err)
	assert.Equal(t, multisig.DefaultProgramID, programIx.Program)
	expected := (&multisig.CreateMultisigInstructionArgs{Owners: owners, Threshold: 2, Nonce: 255}).InstructionData()
	assert.Equal(t, expected, programIx.Data)
}

func TestSend_PrefixInstructions(t *testing.T) {
	client := memory.New()
	payer := testutil.GenerateSolanaKeypair(t)
	recipient := testutil.GenerateSolanaKeys(t, 1)[0]

	_, err := newTestBuilder(t, client, payer,
		WithComputeUnitLimit(200_000),
		WithComputeUnitPrice(1_000),
		WithMemo("quarterly payout"),
	).
		Instruction(system.Transfer(public(payer), recipient, 5)).
		Send(context.Background(), true)
	require.NoError(t, err)

	submitted := client.Submitted()
	require.Len(t, submitted, 1)
	require.Len(t, submitted[0].Message.Instructions, 4)

	ixs := make([]solana.Instruction, 4)
	for i := range ixs {
		ixs[i], err = submitted[0].Message.Decompile(i)
		require.NoError(t, err)
	}

	limit, err := compute_budget.DecodeSetComputeUnitLimit(ixs[0])
	require.NoError(t, err)
	assert.EqualValues(t, 200_000, limit)

	price, err := compute_budget.DecodeSetComputeUnitPrice(ixs[1])
	require.NoError(t, err)
	assert.EqualValues(t, 1_000, price)

	assert.Equal(t, memo.ProgramKey, ixs[2].Program)
	assert.Equal(t, "quarterly payout", string(ixs[2].Data))

	assert.Equal(t, system.ProgramKey, ixs[3].Program)

	// Prefix instructions alone are not a request.
	_, err = newTestBuilder(t, client, payer, WithMemo("empty")).Instructions()
	assert.ErrorIs(t, err, ErrEmptyRequest)

	_, err = newTestBuilder(t, client, payer, WithMemo(string([]byte{0xff}))).
		Instruction(system.Transfer(public(payer), recipient, 5)).
		Send(context.Background(), false)
	assert.ErrorIs(t, err, memo.ErrInvalidMemo)
	assert.Len(t, client.Submitted(), 1)
}

func TestSend_SignerDeduplication(t *testing.T) {
	client := memory.New()
	payer, account := testutil.GenerateSolanaKeypair(t), testutil.GenerateSolanaKeypair(t)

	_, err := newTestBuilder(t, client, payer).
		Instruction(system.CreateAccount(public(payer), public(account), multisig.DefaultProgramID, 1, 10)).
		Signer(account).
		Signer(account).
		Signer(payer).
		Send(context.Background(), false)
	require.NoError(t, err)

	submitted := client.Submitted()
	require.Len(t, submitted, 1)
	assert.Len(t, submitted[0].Signatures, 2)
	assert.Empty(t, submitted[0].MissingSigners())
}

func TestSend_LocalValidation(t *testing.T) {
	payer, account, stranger := testutil.GenerateSolanaKeypair(t), testutil.GenerateSolanaKeypair(t), testutil.GenerateSolanaKeypair(t)
	owners := testutil.GenerateSolanaKeys(t, 2)

	client := memory.New()
	// Any network access would surface this error instead.
	client.ReadErr = errors.New("network must not be used")
	client.SubmitErr = client.ReadErr

	createAccount := system.CreateAccount(public(payer), public(account), multisig.DefaultProgramID, 1, 10)

	for _, tc := range []struct {
		name     string
		build    func(b *RequestBuilder) *RequestBuilder
		expected error
	}{
		{
			name:     "empty",
			build:    func(b *RequestBuilder) *RequestBuilder { return b },
			expected: ErrEmptyRequest,
		},
		{
			name: "args without accounts",
			build: func(b *RequestBuilder) *RequestBuilder {
				return b.Args(&multisig.CreateMultisigInstructionArgs{Owners: owners, Threshold: 1})
			},
			expected: ErrIncompleteRequest,
		},
		{
			name: "invalid args",
			build: func(b *RequestBuilder) *RequestBuilder {
				return b.
					Args(&multisig.CreateMultisigInstructionArgs{Owners: owners, Threshold: 3}).
					Accounts(&multisig.CreateMultisigInstructionAccounts{Multisig: public(account)})
			},
			expected: multisig.ErrInvalidMultisigParameters,
		},
		{
			name: "missing signer",
			build: func(b *RequestBuilder) *RequestBuilder {
				return b.Instruction(createAccount)
			},
			expected: ErrMissingSigner,
		},
		{
			name: "unexpected signer",
			build: func(b *RequestBuilder) *RequestBuilder {
				return b.Instruction(createAccount).Signer(account).Signer(stranger)
			},
			expected: ErrUnexpectedSigner,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.build(newTestBuilder(t, client, payer)).Send(context.Background(), true)
			assert.ErrorIs(t, err, tc.expected)

			var submissionErr *SubmissionError
			assert.False(t, errors.As(err, &submissionErr))
		})
	}

	assert.Empty(t, client.Submitted())
}

func TestSend_SubmissionErrors(t *testing.T) {
	payer := testutil.GenerateSolanaKeypair(t)
	recipient := testutil.GenerateSolanaKeys(t, 1)[0]

	for _, tc := range []struct {
		name      string
		submitErr error
		expected  Kind
	}{
		{"unreachable", errors.Wrap(solana.ErrEndpointUnreachable, "dial tcp"), KindUnreachable},
		{"insufficient funds for fee", solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee), KindInsufficientFunds},
		{"insufficient funds custom", solana.NewInstructionTransactionError(0, solana.CustomError(1)), KindInsufficientFunds},
		{"insufficient funds for rent", solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForRent), KindInsufficientFunds},
		{"simulation failed", solana.NewTransactionError(solana.TransactionErrorAccountInUse), KindSimulationFailed},
		{"other", errors.New("boom"), KindFailed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			client := memory.New()
			client.SubmitErr = tc.submitErr

			sig, err := newTestBuilder(t, client, payer).
				Instruction(system.Transfer(public(payer), recipient, 1)).
				Send(context.Background(), true)

			var submissionErr *SubmissionError
			require.True(t, errors.As(err, &submissionErr))
			assert.Equal(t, tc.expected, submissionErr.Kind)
			assert.False(t, submissionErr.Signature.IsZero())
			assert.Equal(t, sig, submissionErr.Signature)
			assert.True(t, IsKind(err, tc.expected))
			assert.Contains(t, err.Error(), tc.expected.String())
		})
	}
}

func TestSend_CustomErrorOfOtherProgram(t *testing.T) {
	payer := testutil.GenerateSolanaKeypair(t)
	program := testutil.GenerateSolanaKeys(t, 1)[0]

	client := memory.New()
	client.SubmitErr = solana.NewInstructionTransactionError(0, solana.CustomError(1))

	_, err := newTestBuilder(t, client, payer).
		Instruction(solana.NewInstruction(program, []byte{1})).
		Send(context.Background(), true)
	assert.True(t, IsKind(err, KindSimulationFailed))
	assert.False(t, IsKind(err, KindInsufficientFunds))
}

func TestSend_BlockhashUnreachable(t *testing.T) {
	client := memory.New()
	client.ReadErr = solana.ErrEndpointUnreachable
	payer := testutil.GenerateSolanaKeypair(t)

	sig, err := newTestBuilder(t, client, payer).
		Instruction(system.Transfer(public(payer), testutil.GenerateSolanaKeys(t, 1)[0], 1)).
		Send(context.Background(), true)
	assert.True(t, IsKind(err, KindUnreachable))
	assert.True(t, sig.IsZero())
	assert.Empty(t, client.Submitted())
}

func TestSend_Confirmation(t *testing.T) {
	payer := testutil.GenerateSolanaKeypair(t)
	recipient := testutil.GenerateSolanaKeys(t, 1)[0]
	zero := 0

	t.Run("no confirmation", func(t *testing.T) {
		client := memory.New()
		client.PendingStatus = true

		sig, err := newTestBuilder(t, client, payer).Instruction(system.Transfer(public(payer), recipient, 1)).Send(context.Background(), false)
		require.NoError(t, err)
		assert.False(t, sig.IsZero())
	})

	t.Run("timeout is not resubmitted", func(t *testing.T) {
		client := memory.New()
		client.PendingStatus = true

		sig, err := newTestBuilder(t, client, payer).Instruction(system.Transfer(public(payer), recipient, 1)).Send(context.Background(), true)
		assert.True(t, IsKind(err, KindTimeout))
		assert.False(t, sig.IsZero())
		assert.Len(t, client.Submitted(), 1)
	})

	t.Run("landed with error", func(t *testing.T) {
		client := memory.New()
		client.PendingStatus = true
		client.OnSubmit = func(tx solana.Transaction) {
			client.SetStatus(tx.Signature(), &solana.SignatureStatus{
				ErrorResult:        solana.NewInstructionTransactionError(0, solana.CustomError(6)),
				ConfirmationStatus: "confirmed",
			})
		}

		_, err := newTestBuilder(t, client, payer).Instruction(system.Transfer(public(payer), recipient, 1)).Send(context.Background(), true)
		assert.True(t, IsKind(err, KindFailed))
	})

	t.Run("commitment", func(t *testing.T) {
		client := memory.New()
		client.PendingStatus = true
		client.OnSubmit = func(tx solana.Transaction) {
			client.SetStatus(tx.Signature(), &solana.SignatureStatus{
				Confirmations:      &zero,
				ConfirmationStatus: "processed",
			})
		}

		_, err := newTestBuilder(t, client, payer).Instruction(system.Transfer(public(payer), recipient, 1)).Send(context.Background(), true)
		assert.True(t, IsKind(err, KindTimeout))

		_, err = newTestBuilder(t, client, payer, WithCommitment(solana.CommitmentProcessed)).
			Instruction(system.Transfer(public(payer), recipient, 2)).
			Send(context.Background(), true)
		assert.NoError(t, err)
	})
}

func TestSend_Cancellation(t *testing.T) {
	payer := testutil.GenerateSolanaKeypair(t)
	recipient := testutil.GenerateSolanaKeys(t, 1)[0]

	t.Run("before submission", func(t *testing.T) {
		client := memory.New()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestBuilder(t, client, payer).Instruction(system.Transfer(public(payer), recipient, 1)).Send(ctx, true)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, client.Submitted())
	})

	t.Run("during wait, never observed", func(t *testing.T) {
		client := memory.New()
		client.PendingStatus = true

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		client.OnSubmit = func(solana.Transaction) { cancel() }

		_, err := newTestBuilder(t, client, payer, WithConfirmTimeout(time.Minute)).
			Instruction(system.Transfer(public(payer), recipient, 1)).
			Send(ctx, true)
		assert.True(t, IsKind(err, KindTimeout))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, client.Submitted(), 1)
	})

	t.Run("during wait, landed", func(t *testing.T) {
		client := memory.New()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		client.OnSubmit = func(solana.Transaction) { cancel() }

		// The wait is interrupted before the first poll, so only the final
		// query can observe the transaction.
		_, err := newTestBuilder(t, client, payer, WithConfirmTimeout(time.Minute)).
			Instruction(system.Transfer(public(payer), recipient, 1)).
			Send(ctx, true)
		require.NoError(t, err)
		assert.Len(t, client.Submitted(), 1)
	})

	t.Run("during slow status query", func(t *testing.T) {
		client := &slowStatusClient{Client: memory.New(), delay: time.Second}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		client.OnSubmit = func(solana.Transaction) {
			time.AfterFunc(20*time.Millisecond, cancel)
		}

		start := time.Now()
		_, err := newTestBuilder(t, client, payer, WithConfirmTimeout(time.Minute)).
			Instruction(system.Transfer(public(payer), recipient, 1)).
			Send(ctx, true)
		assert.True(t, IsKind(err, KindTimeout))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 500*time.Millisecond+maxFinalCheckTimeout)
	})
}

func TestSend_ConfirmTimeoutBoundsStatusQueries(t *testing.T) {
	payer := testutil.GenerateSolanaKeypair(t)
	recipient := testutil.GenerateSolanaKeys(t, 1)[0]
	client := &slowStatusClient{Client: memory.New(), delay: time.Second}

	start := time.Now()
	sig, err := newTestBuilder(t, client, payer, WithConfirmTimeout(50*time.Millisecond)).
		Instruction(system.Transfer(public(payer), recipient, 1)).
		Send(context.Background(), true)
	elapsed := time.Since(start)

	assert.True(t, IsKind(err, KindTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, sig.IsZero())
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Len(t, client.Submitted(), 1)
}

// slowStatusClient answers status queries only after delay, and never with a
// status.
type slowStatusClient struct {
	*memory.Client
	delay time.Duration
}

func (c *slowStatusClient) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	time.Sleep(c.delay)
	return make([]*solana.SignatureStatus, len(sigs)), nil
}
