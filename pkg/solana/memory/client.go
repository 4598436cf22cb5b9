// Package memory provides an in memory solana.Client for tests. Submitted
// transactions are checked for signatures, system create_account
// instructions allocate accounts so follow-up reads observe them, and system
// transfers move lamports between balances set with SetBalance.
package memory

import (
	"bytes"
	"crypto/ed25519"
	"sync"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
	"github.com/solfarm/multisig-cli/pkg/solana/system"
)

// DefaultRentPerByte approximates the rent exemption cost per account byte.
const DefaultRentPerByte = 6960

type Client struct {
	mu sync.Mutex

	blockhash solana.Blockhash
	accounts  map[string]solana.AccountInfo
	balances  map[string]uint64
	statuses  map[solana.Signature]*solana.SignatureStatus
	submitted []solana.Transaction

	// SubmitErr, when set, is returned by SubmitTransaction without
	// recording the transaction.
	SubmitErr error

	// ReadErr, when set, is returned by every read.
	ReadErr error

	// PendingStatus leaves submitted transactions without a status, as if
	// they were never observed by the cluster.
	PendingStatus bool

	// SkipCreateAccount stops create_account instructions from allocating
	// accounts.
	SkipCreateAccount bool

	// OnSubmit is invoked with every accepted transaction, outside of the
	// client's lock.
	OnSubmit func(solana.Transaction)
}

// New returns an empty in memory cluster.
func New() *Client {
	c := &Client{
		accounts: make(map[string]solana.AccountInfo),
		balances: make(map[string]uint64),
		statuses: make(map[solana.Signature]*solana.SignatureStatus),
	}
	c.blockhash[0] = 1
	return c
}

// SetAccount stores account info at address.
func (c *Client) SetAccount(address ed25519.PublicKey, info solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accounts[string(address)] = info
}

// SetBalance stores the lamport balance of address.
func (c *Client) SetBalance(address ed25519.PublicKey, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.balances[string(address)] = lamports
}

// SetStatus overrides the status reported for sig.
func (c *Client) SetStatus(sig solana.Signature, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statuses[sig] = status
}

// Submitted returns a copy of the accepted transactions, in order.
func (c *Client) Submitted() []solana.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]solana.Transaction(nil), c.submitted...)
}

// GetAccountInfo implements solana.Client.GetAccountInfo
func (c *Client) GetAccountInfo(address ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ReadErr != nil {
		return solana.AccountInfo{}, c.ReadErr
	}

	info, ok := c.accounts[string(address)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	info.Data = append([]byte(nil), info.Data...)
	return info, nil
}

// GetBalance implements solana.Client.GetBalance
func (c *Client) GetBalance(address ed25519.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ReadErr != nil {
		return 0, c.ReadErr
	}

	balance, ok := c.balances[string(address)]
	if !ok {
		return 0, solana.ErrNoBalance
	}
	return balance, nil
}

// GetLatestBlockhash implements solana.Client.GetLatestBlockhash
func (c *Client) GetLatestBlockhash(_ solana.Commitment) (solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ReadErr != nil {
		return solana.Blockhash{}, c.ReadErr
	}
	return c.blockhash, nil
}

// GetMinimumBalanceForRentExemption implements solana.Client.GetMinimumBalanceForRentExemption
func (c *Client) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ReadErr != nil {
		return 0, c.ReadErr
	}
	return (size + 128) * DefaultRentPerByte, nil
}

// GetSignatureStatuses implements solana.Client.GetSignatureStatuses
func (c *Client) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ReadErr != nil {
		return nil, c.ReadErr
	}

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if status, ok := c.statuses[sig]; ok && status != nil {
			cloned := *status
			statuses[i] = &cloned
		}
	}
	return statuses, nil
}

// SubmitTransaction implements solana.Client.SubmitTransaction
func (c *Client) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	sig, err := c.submit(txn)
	if err != nil {
		return sig, err
	}

	if c.OnSubmit != nil {
		c.OnSubmit(txn)
	}
	return sig, nil
}

func (c *Client) submit(txn solana.Transaction) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sig := txn.Signature()
	if c.SubmitErr != nil {
		return sig, c.SubmitErr
	}

	if !bytes.Equal(txn.Message.RecentBlockhash[:], c.blockhash[:]) {
		return sig, solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}

	message := txn.Message.Marshal()
	numSignatures := int(txn.Message.Header.NumSignatures)
	if len(txn.Signatures) != numSignatures {
		return sig, errors.Errorf("expected %d signatures, got %d", numSignatures, len(txn.Signatures))
	}
	for i := 0; i < numSignatures; i++ {
		if !ed25519.Verify(txn.Message.Accounts[i], message, txn.Signatures[i][:]) {
			return sig, solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
		}
	}

	if !c.SkipCreateAccount {
		for i := range txn.Message.Instructions {
			created, err := system.DecompileCreateAccount(txn.Message, i)
			if err != nil {
				continue
			}
			if _, exists := c.accounts[string(created.Address)]; exists {
				return sig, solana.NewInstructionTransactionError(i, solana.CustomError(0))
			}

			c.accounts[string(created.Address)] = solana.AccountInfo{
				Data:     make([]byte, created.Size),
				Owner:    created.Owner,
				Lamports: created.Lamports,
			}
		}
	}

	for i := range txn.Message.Instructions {
		transfer, err := system.DecompileTransfer(txn.Message, i)
		if err != nil {
			continue
		}

		from, tracked := c.balances[string(transfer.From)]
		if !tracked {
			continue
		}
		if from < transfer.Lamports {
			return sig, solana.NewInstructionTransactionError(i, solana.CustomError(1))
		}
		c.balances[string(transfer.From)] = from - transfer.Lamports
		c.balances[string(transfer.To)] += transfer.Lamports
	}

	c.submitted = append(c.submitted, txn)
	if !c.PendingStatus {
		c.statuses[sig] = &solana.SignatureStatus{
			Slot:               uint64(len(c.submitted)),
			ConfirmationStatus: "finalized",
		}
	}

	return sig, nil
}
