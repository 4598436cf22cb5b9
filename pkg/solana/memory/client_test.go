package memory

import (
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solfarm/multisig-cli/pkg/solana"
	"github.com/solfarm/multisig-cli/pkg/solana/system"
)

func TestClient_SubmitCreatesAccounts(t *testing.T) {
	c := New()
	payer, account, owner := newKey(t), newKey(t), newKey(t)

	rent, err := c.GetMinimumBalanceForRentExemption(100)
	require.NoError(t, err)

	tx := signedTransaction(t, c, payer, []ed25519.PrivateKey{payer, account},
		system.CreateAccount(public(payer), public(account), public(owner), rent, 100))

	sig, err := c.SubmitTransaction(tx, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, tx.Signature(), sig)
	assert.Len(t, c.Submitted(), 1)

	info, err := c.GetAccountInfo(public(account), solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Len(t, info.Data, 100)
	assert.Equal(t, public(owner), info.Owner)
	assert.Equal(t, rent, info.Lamports)

	statuses, err := c.GetSignatureStatuses([]solana.Signature{sig, {}})
	require.NoError(t, err)
	require.NotNil(t, statuses[0])
	assert.True(t, statuses[0].Finalized())
	assert.Nil(t, statuses[1])

	// The account now exists, so a second create fails.
	_, err = c.SubmitTransaction(tx, solana.CommitmentConfirmed)
	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, solana.TransactionErrorInstructionError, txErr.ErrorKey())
}

func TestClient_SubmitRequiresSignatures(t *testing.T) {
	c := New()
	payer, other := newKey(t), newKey(t)

	tx := solana.NewTransaction(public(payer), system.Transfer(public(payer), public(other), 1))
	blockhash, err := c.GetLatestBlockhash(solana.CommitmentConfirmed)
	require.NoError(t, err)
	tx.SetBlockhash(blockhash)

	_, err = c.SubmitTransaction(tx, solana.CommitmentConfirmed)
	assert.Error(t, err)

	var stale solana.Blockhash
	tx.SetBlockhash(stale)
	require.NoError(t, tx.Sign(payer))
	_, err = c.SubmitTransaction(tx, solana.CommitmentConfirmed)
	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, solana.TransactionErrorBlockhashNotFound, txErr.ErrorKey())

	assert.Empty(t, c.Submitted())
}

func TestClient_Overrides(t *testing.T) {
	c := New()
	payer, other := newKey(t), newKey(t)

	c.SetBalance(public(payer), 10)
	balance, err := c.GetBalance(public(payer))
	require.NoError(t, err)
	assert.EqualValues(t, 10, balance)

	_, err = c.GetBalance(public(other))
	assert.Equal(t, solana.ErrNoBalance, err)

	c.PendingStatus = true
	var observed []solana.Transaction
	c.OnSubmit = func(tx solana.Transaction) {
		observed = append(observed, tx)
		c.SetBalance(public(other), 1)
	}

	tx := signedTransaction(t, c, payer, []ed25519.PrivateKey{payer}, system.Transfer(public(payer), public(other), 1))
	sig, err := c.SubmitTransaction(tx, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Len(t, observed, 1)

	statuses, err := c.GetSignatureStatuses([]solana.Signature{sig})
	require.NoError(t, err)
	assert.Nil(t, statuses[0])

	c.ReadErr = solana.ErrEndpointUnreachable
	_, err = c.GetLatestBlockhash(solana.CommitmentConfirmed)
	assert.Equal(t, solana.ErrEndpointUnreachable, err)

	c.SubmitErr = solana.ErrEndpointUnreachable
	_, err = c.SubmitTransaction(tx, solana.CommitmentConfirmed)
	assert.Equal(t, solana.ErrEndpointUnreachable, err)
	assert.Len(t, c.Submitted(), 1)
}

func TestClient_Transfers(t *testing.T) {
	c := New()
	payer, other := newKey(t), newKey(t)
	c.SetBalance(public(payer), 100)

	tx := signedTransaction(t, c, payer, []ed25519.PrivateKey{payer}, system.Transfer(public(payer), public(other), 60))
	_, err := c.SubmitTransaction(tx, solana.CommitmentConfirmed)
	require.NoError(t, err)

	balance, err := c.GetBalance(public(payer))
	require.NoError(t, err)
	assert.EqualValues(t, 40, balance)
	balance, err = c.GetBalance(public(other))
	require.NoError(t, err)
	assert.EqualValues(t, 60, balance)

	tx = signedTransaction(t, c, payer, []ed25519.PrivateKey{payer}, system.Transfer(public(payer), public(other), 41))
	_, err = c.SubmitTransaction(tx, solana.CommitmentConfirmed)
	var txErr *solana.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, solana.TransactionErrorInstructionError, txErr.ErrorKey())
	assert.Len(t, c.Submitted(), 1)
}

func signedTransaction(t *testing.T, c *Client, payer ed25519.PrivateKey, signers []ed25519.PrivateKey, ixs ...solana.Instruction) solana.Transaction {
	tx := solana.NewTransaction(public(payer), ixs...)

	blockhash, err := c.GetLatestBlockhash(solana.CommitmentConfirmed)
	require.NoError(t, err)
	tx.SetBlockhash(blockhash)

	for _, s := range signers {
		require.NoError(t, tx.Sign(s))
	}
	return tx
}

func newKey(t *testing.T) ed25519.PrivateKey {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return priv
}

func public(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}
