package request

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
	"github.com/solfarm/multisig-cli/pkg/solana/system"
	"github.com/solfarm/multisig-cli/pkg/solana/token"
)

var (
	ErrEmptyRequest      = errors.New("request has no instructions")
	ErrIncompleteRequest = errors.New("args and accounts must be provided together")
	ErrMissingSigner     = errors.New("required signer not registered")
	ErrUnexpectedSigner  = errors.New("registered signer is not required")
	ErrProposalNotFound  = errors.New("proposal account not found")
	ErrNotMultisig       = errors.New("account is not a multisig")
	ErrProposerNotOwner  = errors.New("proposer is not a multisig owner")
)

// Kind classifies why a submission did not complete.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnreachable
	KindSimulationFailed
	KindInsufficientFunds
	KindTimeout
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindSimulationFailed:
		return "simulation_failed"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindTimeout:
		return "timeout"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmissionError is returned by Send once a transaction was built. Signature
// is set whenever the transaction was signed, so the caller can look up its
// outcome; for KindTimeout the transaction may still land.
type SubmissionError struct {
	Kind      Kind
	Signature solana.Signature
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Signature.IsZero() {
		return fmt.Sprintf("submission %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("submission %s (signature %s): %v", e.Kind, e.Signature, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a SubmissionError of the given kind.
func IsKind(err error, kind Kind) bool {
	var submissionErr *SubmissionError
	return errors.As(err, &submissionErr) && submissionErr.Kind == kind
}

// classify maps a client or on-chain error to a SubmissionError. msg is the
// submitted message, or the zero Message when nothing was built yet.
func classify(sig solana.Signature, msg solana.Message, err error, simulated bool) *SubmissionError {
	var txErr *solana.TransactionError
	switch {
	case errors.As(err, &txErr) && txErr.IsInsufficientFundsIn(msg, system.ProgramKey, token.ProgramKey):
		return &SubmissionError{Kind: KindInsufficientFunds, Signature: sig, Err: err}
	case errors.As(err, &txErr) && simulated:
		return &SubmissionError{Kind: KindSimulationFailed, Signature: sig, Err: err}
	case errors.Is(err, solana.ErrEndpointUnreachable):
		return &SubmissionError{Kind: KindUnreachable, Signature: sig, Err: err}
	default:
		return &SubmissionError{Kind: KindFailed, Signature: sig, Err: err}
	}
}
