package command

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitReconcile = 2
)

// ReconcileError is returned when a transaction landed but the configuration
// recording its outcome could not be saved. Record holds what should have
// been written, so it can be restored by hand.
type ReconcileError struct {
	Signature solana.Signature
	Record    string
	Err       error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("transaction %s succeeded but the configuration was not updated (%s): %v", e.Signature, e.Record, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// ExitCode maps the result of a command to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var reconcileErr *ReconcileError
	if errors.As(err, &reconcileErr) {
		return ExitReconcile
	}
	return ExitFailure
}
