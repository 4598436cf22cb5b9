// Package request builds, signs and submits transactions against a multisig
// program, and composes multisig proposals.
package request

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ed25519"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solfarm/multisig-cli/pkg/msig/signer"
	"github.com/solfarm/multisig-cli/pkg/retry"
	"github.com/solfarm/multisig-cli/pkg/retry/backoff"
	"github.com/solfarm/multisig-cli/pkg/solana"
	compute_budget "github.com/solfarm/multisig-cli/pkg/solana/computebudget"
	"github.com/solfarm/multisig-cli/pkg/solana/memo"
)

const (
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = solana.PollRate

	// maxFinalCheckTimeout bounds the status query made after the wait ends.
	maxFinalCheckTimeout = 5 * time.Second
)

var errNotConfirmed = errors.New("transaction not confirmed")

// InstructionData is implemented by program argument types that encode
// themselves as instruction data.
type InstructionData interface {
	InstructionData() []byte
}

// AccountMetas is implemented by program account sets.
type AccountMetas interface {
	AccountMetas() []solana.AccountMeta
}

// validator is optionally implemented by InstructionData to reject invalid
// arguments before anything is sent.
type validator interface {
	Validate() error
}

type Option func(*RequestBuilder)

// WithCommitment sets the commitment used for reads, preflight and
// confirmation.
func WithCommitment(commitment solana.Commitment) Option {
	return func(b *RequestBuilder) {
		b.commitment = commitment
	}
}

// WithConfirmTimeout bounds how long Send waits for confirmation.
func WithConfirmTimeout(timeout time.Duration) Option {
	return func(b *RequestBuilder) {
		if timeout > 0 {
			b.confirmTimeout = timeout
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(b *RequestBuilder) {
		if interval > 0 {
			b.pollInterval = interval
		}
	}
}

// WithComputeUnitPrice attaches a priority fee, in micro-lamports per
// compute unit, to every transaction.
func WithComputeUnitPrice(microLamports uint64) Option {
	return func(b *RequestBuilder) {
		b.computeUnitPrice = microLamports
	}
}

func WithComputeUnitLimit(units uint32) Option {
	return func(b *RequestBuilder) {
		b.computeUnitLimit = units
	}
}

// WithMemo attaches a memo instruction to every transaction.
func WithMemo(text string) Option {
	return func(b *RequestBuilder) {
		b.memo = text
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(b *RequestBuilder) {
		if log != nil {
			b.log = log
		}
	}
}

// RequestBuilder accumulates instructions and signers for one transaction.
// The payer always signs. It is not safe for concurrent use.
type RequestBuilder struct {
	log     *logrus.Entry
	client  solana.Client
	program ed25519.PublicKey
	payer   crypto.Signer
	opts    []Option

	commitment       solana.Commitment
	confirmTimeout   time.Duration
	pollInterval     time.Duration
	computeUnitPrice uint64
	computeUnitLimit uint32
	memo             string

	instructions []solana.Instruction
	args         InstructionData
	accounts     AccountMetas
	signers      []crypto.Signer
}

// New returns a builder for program talking to rpcURL. No network call is
// made until Send.
func New(program ed25519.PublicKey, rpcURL string, payer crypto.Signer, opts ...Option) *RequestBuilder {
	b := NewWithClient(program, nil, payer, opts...)
	b.client = solana.New(rpcURL, b.log.WithField("type", "solana/client"))
	return b
}

// NewWithClient returns a builder using an existing client.
func NewWithClient(program ed25519.PublicKey, client solana.Client, payer crypto.Signer, opts ...Option) *RequestBuilder {
	b := &RequestBuilder{
		log:            logrus.StandardLogger().WithField("type", "msig/request"),
		client:         client,
		program:        program,
		payer:          payer,
		opts:           opts,
		commitment:     solana.CommitmentConfirmed,
		confirmTimeout: DefaultConfirmTimeout,
		pollInterval:   DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// fork returns an empty builder sharing b's client, payer and options.
func (b *RequestBuilder) fork() *RequestBuilder {
	forked := NewWithClient(b.program, b.client, b.payer, b.opts...)
	forked.log = b.log
	return forked
}

// Program returns the program that receives Args and Accounts.
func (b *RequestBuilder) Program() ed25519.PublicKey {
	return b.program
}

// Client returns the RPC client requests are sent through.
func (b *RequestBuilder) Client() solana.Client {
	return b.client
}

// Instruction appends an instruction. Instructions execute in the order they
// were added.
func (b *RequestBuilder) Instruction(ix solana.Instruction) *RequestBuilder {
	b.instructions = append(b.instructions, ix)
	return b
}

// Args sets the arguments of the program instruction, which is appended
// after every explicit instruction.
func (b *RequestBuilder) Args(args InstructionData) *RequestBuilder {
	b.args = args
	return b
}

// Accounts sets the accounts of the program instruction.
func (b *RequestBuilder) Accounts(accounts AccountMetas) *RequestBuilder {
	b.accounts = accounts
	return b
}

// Signer registers an additional signer. Registering the same key twice has
// no effect.
func (b *RequestBuilder) Signer(s crypto.Signer) *RequestBuilder {
	b.signers = append(b.signers, s)
	return b
}

// Instructions returns the instructions Send would submit. Compute budget
// and memo instructions come first, then the explicit instructions in order,
// then the program instruction.
func (b *RequestBuilder) Instructions() ([]solana.Instruction, error) {
	ixs := append([]solana.Instruction(nil), b.instructions...)

	if b.args != nil || b.accounts != nil {
		if b.args == nil || b.accounts == nil {
			return nil, ErrIncompleteRequest
		}
		if v, ok := b.args.(validator); ok {
			if err := v.Validate(); err != nil {
				return nil, err
			}
		}
		ixs = append(ixs, solana.NewInstruction(b.program, b.args.InstructionData(), b.accounts.AccountMetas()...))
	}

	if len(ixs) == 0 {
		return nil, ErrEmptyRequest
	}

	var prefix []solana.Instruction
	if b.computeUnitLimit > 0 {
		prefix = append(prefix, compute_budget.SetComputeUnitLimit(b.computeUnitLimit))
	}
	if b.computeUnitPrice > 0 {
		prefix = append(prefix, compute_budget.SetComputeUnitPrice(b.computeUnitPrice))
	}
	if b.memo != "" {
		if err := memo.Validate(b.memo); err != nil {
			return nil, err
		}
		prefix = append(prefix, memo.Instruction(b.memo))
	}

	return append(prefix, ixs...), nil
}

// uniqueSigners returns the payer followed by every registered signer, with
// duplicate keys removed.
func (b *RequestBuilder) uniqueSigners() ([]crypto.Signer, []ed25519.PublicKey, error) {
	var signers []crypto.Signer
	var keys []ed25519.PublicKey

	for _, s := range append([]crypto.Signer{b.payer}, b.signers...) {
		pub, err := signer.PublicKey(s)
		if err != nil {
			return nil, nil, err
		}

		var seen bool
		for _, k := range keys {
			if bytes.Equal(k, pub) {
				seen = true
				break
			}
		}
		if seen {
			continue
		}

		signers = append(signers, s)
		keys = append(keys, pub)
	}

	return signers, keys, nil
}

// Build compiles and signs the transaction against blockhash.
func (b *RequestBuilder) Build(blockhash solana.Blockhash) (solana.Transaction, error) {
	tx, signers, err := b.compile()
	if err != nil {
		return solana.Transaction{}, err
	}

	tx.SetBlockhash(blockhash)
	if err := tx.Sign(signers...); err != nil {
		return solana.Transaction{}, err
	}
	if missing := tx.MissingSigners(); len(missing) > 0 {
		return solana.Transaction{}, errors.Wrapf(ErrMissingSigner, "%s", solana.Address(missing[0]))
	}
	return tx, nil
}

// compile builds the unsigned transaction and checks that the registered
// signers are exactly the required ones.
func (b *RequestBuilder) compile() (solana.Transaction, []crypto.Signer, error) {
	ixs, err := b.Instructions()
	if err != nil {
		return solana.Transaction{}, nil, err
	}

	signers, keys, err := b.uniqueSigners()
	if err != nil {
		return solana.Transaction{}, nil, err
	}

	tx := solana.NewTransaction(keys[0], ixs...)

	required := tx.RequiredSigners()
	for _, r := range required {
		if !containsKey(keys, r) {
			return solana.Transaction{}, nil, errors.Wrapf(ErrMissingSigner, "%s", solana.Address(r))
		}
	}
	for _, k := range keys {
		if !containsKey(required, k) {
			return solana.Transaction{}, nil, errors.Wrapf(ErrUnexpectedSigner, "%s", solana.Address(k))
		}
	}

	return tx, signers, nil
}

// Send builds, signs and submits the transaction exactly once. When confirm
// is set it then waits, bounded by the confirm timeout, for the configured
// commitment. Submission failures are returned as *SubmissionError; a
// submission is never retried.
func (b *RequestBuilder) Send(ctx context.Context, confirm bool) (solana.Signature, error) {
	// Local validation happens before any network call.
	if _, _, err := b.compile(); err != nil {
		return solana.Signature{}, err
	}

	blockhash, err := b.client.GetLatestBlockhash(b.commitment)
	if err != nil {
		return solana.Signature{}, classify(solana.Signature{}, solana.Message{}, errors.Wrap(err, "failed to get latest blockhash"), false)
	}

	tx, err := b.Build(blockhash)
	if err != nil {
		return solana.Signature{}, err
	}
	sig := tx.Signature()

	log := b.log.WithField("signature", sig.String())

	if err := ctx.Err(); err != nil {
		return solana.Signature{}, errors.Wrap(err, "not submitted")
	}

	log.Debug("Submitting transaction")
	if _, err := b.client.SubmitTransaction(tx, b.commitment); err != nil {
		log.WithError(err).Warn("Transaction submission failed")
		return sig, classify(sig, tx.Message, err, true)
	}

	if !confirm {
		return sig, nil
	}

	if err := b.waitForConfirmation(ctx, sig, tx.Message); err != nil {
		log.WithError(err).Warn("Transaction was not confirmed")
		return sig, err
	}

	log.Debug("Transaction confirmed")
	return sig, nil
}

// waitForConfirmation polls the signature status until the commitment is
// reached, the transaction fails, or the wait ends. When the wait ends the
// status is queried one final time so an interrupted wait never reports a
// transaction that landed as failed.
func (b *RequestBuilder) waitForConfirmation(ctx context.Context, sig solana.Signature, msg solana.Message) error {
	waitCtx, cancel := context.WithTimeout(ctx, b.confirmTimeout)
	defer cancel()

	_, err := retry.Retry(
		func() error {
			return b.checkStatus(waitCtx, sig, msg)
		},
		retry.RetriableErrors(errNotConfirmed, solana.ErrEndpointUnreachable),
		retry.UntilDone(waitCtx),
		retry.Backoff(waitCtx, backoff.Constant(b.pollInterval), b.pollInterval),
	)
	if err == nil {
		return nil
	}

	var submissionErr *SubmissionError
	if errors.As(err, &submissionErr) {
		return submissionErr
	}

	if waitCtx.Err() == nil {
		return classify(sig, msg, err, false)
	}

	b.log.WithField("signature", sig.String()).Info("Wait ended, checking transaction outcome once more")
	finalCtx, cancelFinal := context.WithTimeout(context.WithoutCancel(ctx), min(b.confirmTimeout, maxFinalCheckTimeout))
	defer cancelFinal()
	err = b.checkStatus(finalCtx, sig, msg)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &submissionErr):
		return submissionErr
	default:
		return &SubmissionError{
			Kind:      KindTimeout,
			Signature: sig,
			Err:       errors.Wrapf(waitCtx.Err(), "%v; the transaction may still land", err),
		}
	}
}

// checkStatus returns nil once sig reached the commitment, a
// *SubmissionError if it landed and failed, and errNotConfirmed otherwise.
// It returns ctx.Err() if ctx ends before the status query answers.
func (b *RequestBuilder) checkStatus(ctx context.Context, sig solana.Signature, msg solana.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	type result struct {
		statuses []*solana.SignatureStatus
		err      error
	}

	// The client call cannot be interrupted, so it is left to finish on its
	// own when ctx ends first.
	done := make(chan result, 1)
	go func() {
		statuses, err := b.client.GetSignatureStatuses([]solana.Signature{sig})
		done <- result{statuses: statuses, err: err}
	}()

	var statuses []*solana.SignatureStatus
	select {
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		statuses = r.statuses
	case <-ctx.Done():
		return ctx.Err()
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return errNotConfirmed
	}

	status := statuses[0]
	if status.ErrorResult != nil {
		return classify(sig, msg, status.ErrorResult, false)
	}
	if !status.Reached(b.commitment) {
		return errNotConfirmed
	}
	return nil
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}
