package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the string key of a runtime TransactionError.
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse             TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound          TransactionErrorKey = "AccountNotFound"
	TransactionErrorProgramAccountNotFound   TransactionErrorKey = "ProgramAccountNotFound"
	TransactionErrorInsufficientFundsForFee  TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorInsufficientFundsForRent TransactionErrorKey = "InsufficientFundsForRent"
	TransactionErrorDuplicateSignature       TransactionErrorKey = "DuplicateSignature"
	TransactionErrorBlockhashNotFound        TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError         TransactionErrorKey = "InstructionError"
	TransactionErrorMissingSignatureForFee   TransactionErrorKey = "MissingSignatureForFee"
	TransactionErrorSignatureFailure         TransactionErrorKey = "SignatureFailure"
	TransactionErrorAlreadyProcessed         TransactionErrorKey = "AlreadyProcessed"
)

// InstructionErrorKey is the string key of a runtime InstructionError.
type InstructionErrorKey string

const (
	InstructionErrorGenericError              InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData    InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData        InstructionErrorKey = "InvalidAccountData"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorUninitializedAccount      InstructionErrorKey = "UninitializedAccount"
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
)

// customInsufficientFunds is the code the system and token programs use for
// an underfunded account.
const customInsufficientFunds = 1

// CustomError is the numerical error returned by a non-system program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x", int(c))
}

// InstructionError indicates an instruction returned an error in a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("error processing instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	if i.Err == nil {
		return ""
	}
	if i.CustomError() != nil {
		return InstructionErrorCustom
	}
	return InstructionErrorKey(i.Err.Error())
}

func (i InstructionError) CustomError() *CustomError {
	ce, ok := i.Err.(CustomError)
	if ok {
		return &ce
	}
	return nil
}

func parseInstructionError(v interface{}) (e InstructionError, err error) {
	values, ok := v.([]interface{})
	if !ok {
		return e, errors.New("unexpected instruction error format")
	}
	if len(values) != 2 {
		return e, errors.Errorf("unexpected entries in InstructionError tuple: %d", len(values))
	}

	e.Index, err = parseJSONNumber(values[0])
	if err != nil {
		return e, err
	}

	switch t := values[1].(type) {
	case string:
		e.Err = errors.New(t)
	case map[string]interface{}:
		k, v, ok := singleEntry(t)
		if !ok {
			e.Err = errors.New("unhandled InstructionError")
			return e, errors.Errorf("invalid instruction result size: %d", len(t))
		}
		if k != string(InstructionErrorCustom) {
			e.Err = errors.New(k)
			break
		}

		code, err := parseJSONNumber(v)
		if err != nil {
			e.Err = errors.New("unhandled CustomError")
			break
		}
		e.Err = CustomError(code)
	default:
		return e, errors.Errorf("unhandled instruction error type %T", t)
	}

	return e, nil
}

// TransactionError is a runtime error attached to a transaction, either from
// preflight simulation or from its confirmed status.
type TransactionError struct {
	transactionError error
	instructionError *InstructionError
	raw              interface{}
}

// ParseRPCError extracts the TransactionError carried in the data of a
// jsonrpc.RPCError. It returns nil when the error carries none.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map type")
	}

	if txErr, ok := data["err"]; ok && txErr != nil {
		return ParseTransactionError(txErr)
	}

	return nil, nil
}

// ParseTransactionError parses the JSON "err" value found in RPC responses.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	if raw == nil {
		return nil, nil
	}

	switch t := raw.(type) {
	case string:
		return &TransactionError{
			transactionError: errors.New(t),
			raw:              raw,
		}, nil
	case map[string]interface{}:
		k, v, ok := singleEntry(t)
		if !ok {
			return &TransactionError{
				transactionError: errors.New("unhandled transaction error"),
				raw:              raw,
			}, errors.Errorf("invalid transaction result size: %d", len(t))
		}

		if k != string(TransactionErrorInstructionError) {
			return &TransactionError{
				transactionError: errors.New(k),
				raw:              raw,
			}, nil
		}

		instructionErr, err := parseInstructionError(v)
		if err != nil {
			return &TransactionError{
				transactionError: errors.New("unhandled transaction error"),
				raw:              raw,
			}, errors.Wrap(err, "failed to parse instruction error")
		}

		return &TransactionError{
			transactionError: errors.New(string(TransactionErrorInstructionError)),
			instructionError: &instructionErr,
			raw:              raw,
		}, nil
	default:
		return nil, errors.Errorf("unhandled error type %T", raw)
	}
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{
		transactionError: errors.New(string(key)),
		raw:              string(key),
	}
}

// NewInstructionTransactionError builds the TransactionError for a failed
// instruction. It is mostly useful to fakes.
func NewInstructionTransactionError(index int, err error) *TransactionError {
	ie := &InstructionError{Index: index, Err: err}

	var detail interface{} = err.Error()
	if ce, ok := err.(CustomError); ok {
		detail = map[string]interface{}{string(InstructionErrorCustom): int(ce)}
	}

	return &TransactionError{
		transactionError: errors.New(string(TransactionErrorInstructionError)),
		instructionError: ie,
		raw: map[string]interface{}{
			string(TransactionErrorInstructionError): []interface{}{index, detail},
		},
	}
}

func (t TransactionError) Error() string {
	if t.instructionError != nil {
		return t.instructionError.Error()
	}
	if t.transactionError != nil {
		return t.transactionError.Error()
	}
	return ""
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	if t.transactionError == nil {
		return ""
	}
	return TransactionErrorKey(t.transactionError.Error())
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

// IsInsufficientFunds reports whether the runtime itself rejected the
// transaction for an underfunded account. Custom program codes are not
// considered; see IsInsufficientFundsIn.
func (t TransactionError) IsInsufficientFunds() bool {
	switch t.ErrorKey() {
	case TransactionErrorInsufficientFundsForFee, TransactionErrorInsufficientFundsForRent:
		return true
	}
	return t.instructionError != nil && t.instructionError.ErrorKey() == InstructionErrorInsufficientFunds
}

// IsInsufficientFundsIn is IsInsufficientFunds, but also accepts the custom
// insufficient funds code when the failing instruction of msg belongs to one of
// programs. Custom codes are program specific, so the code alone means nothing.
func (t TransactionError) IsInsufficientFundsIn(msg Message, programs ...ed25519.PublicKey) bool {
	if t.IsInsufficientFunds() {
		return true
	}
	if t.instructionError == nil {
		return false
	}
	if ce := t.instructionError.CustomError(); ce == nil || int(*ce) != customInsufficientFunds {
		return false
	}

	index := t.instructionError.Index
	if index < 0 || index >= len(msg.Instructions) {
		return false
	}
	programIndex := int(msg.Instructions[index].ProgramIndex)
	if programIndex >= len(msg.Accounts) {
		return false
	}
	for _, program := range programs {
		if bytes.Equal(msg.Accounts[programIndex], program) {
			return true
		}
	}
	return false
}

func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}

func singleEntry(m map[string]interface{}) (string, interface{}, bool) {
	if len(m) != 1 {
		return "", nil, false
	}
	for k, v := range m {
		return k, v, true
	}
	return "", nil, false
}

func parseJSONNumber(v interface{}) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errors.Errorf("non int64 value in InstructionError tuple: %v", v)
		}
		return int(i), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
		}
		return int(i), nil
	case float64:
		return int(n), nil
	case int:
		return n, nil
	}

	return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
}
