package rate

import (
	"context"
	"crypto/ed25519"

	"golang.org/x/time/rate"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

// limitedClient spaces out calls to a solana.Client so public endpoints do
// not throttle a command mid-way, for example while polling for
// confirmation.
type limitedClient struct {
	solana.Client

	limiter *rate.Limiter
}

// NewLimitedClient returns client limited to requestsPerSecond calls. A
// non-positive limit returns client unchanged.
func NewLimitedClient(client solana.Client, requestsPerSecond float64) solana.Client {
	if requestsPerSecond <= 0 {
		return client
	}

	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &limitedClient{
		Client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (c *limitedClient) wait() {
	// Wait only fails for a done context or a burst of zero, neither of which
	// can happen here.
	_ = c.limiter.Wait(context.Background())
}

// GetAccountInfo implements solana.Client.GetAccountInfo
func (c *limitedClient) GetAccountInfo(account ed25519.PublicKey, commitment solana.Commitment) (solana.AccountInfo, error) {
	c.wait()
	return c.Client.GetAccountInfo(account, commitment)
}

// GetBalance implements solana.Client.GetBalance
func (c *limitedClient) GetBalance(account ed25519.PublicKey) (uint64, error) {
	c.wait()
	return c.Client.GetBalance(account)
}

// GetLatestBlockhash implements solana.Client.GetLatestBlockhash
func (c *limitedClient) GetLatestBlockhash(commitment solana.Commitment) (solana.Blockhash, error) {
	c.wait()
	return c.Client.GetLatestBlockhash(commitment)
}

// GetMinimumBalanceForRentExemption implements solana.Client.GetMinimumBalanceForRentExemption
func (c *limitedClient) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	c.wait()
	return c.Client.GetMinimumBalanceForRentExemption(size)
}

// GetSignatureStatuses implements solana.Client.GetSignatureStatuses
func (c *limitedClient) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	c.wait()
	return c.Client.GetSignatureStatuses(sigs)
}

// SubmitTransaction implements solana.Client.SubmitTransaction
func (c *limitedClient) SubmitTransaction(txn solana.Transaction, commitment solana.Commitment) (solana.Signature, error) {
	c.wait()
	return c.Client.SubmitTransaction(txn, commitment)
}
