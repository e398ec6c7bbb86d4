package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fairkeep/internal/calculator"
	"github.com/mmynk/fairkeep/internal/metrics"
)

// ErrNothingToSettle is returned by Settle when the pair net is already zero.
var ErrNothingToSettle = errors.New("nothing to settle")

// ValidationError reports input that was rejected before any write.
type ValidationError struct {
	Field   string
	Message string

	// Expected and Computed are set when the failure is a total mismatch.
	Expected *decimal.Decimal
	Computed *decimal.Decimal
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Expected != nil && e.Computed != nil {
		msg += fmt.Sprintf(" (expected %s, computed %s)", e.Expected.String(), e.Computed.String())
	}
	return msg
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func fromAllocation(err *calculator.AllocationError) *ValidationError {
	expected, computed := err.Expected, err.Computed
	return &ValidationError{
		Field:    "splits",
		Message:  fmt.Sprintf("%s split: %s", err.Method, err.Reason),
		Expected: &expected,
		Computed: &computed,
	}
}

// NotFoundError reports a record that does not exist or that the caller may
// not see. The two cases are indistinguishable on purpose.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// PersistenceError wraps a storage failure. It is not retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistence wraps err unless it is already a ledger error.
func persistence(op string, err error) error {
	var (
		validation *ValidationError
		notFound   *NotFoundError
	)
	if errors.As(err, &validation) || errors.As(err, &notFound) || errors.Is(err, ErrNothingToSettle) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// outcome classifies err for the ledger operations metric.
func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	var persist *PersistenceError
	if errors.As(err, &persist) {
		return metrics.OutcomeError
	}
	return metrics.OutcomeRejected
}
