package settlement

import "fmt"

// ErrorKind classifies settlement failures so operators can decide whether
// to retry, force, or investigate data.
type ErrorKind string

const (
	ErrorKind_None             ErrorKind = ""
	ErrorKind_LockContention   ErrorKind = "lock_contention"
	ErrorKind_AlreadyFinalized ErrorKind = "already_finalized"
	ErrorKind_DataIntegrity    ErrorKind = "data_integrity"
	ErrorKind_CapacityExceeded ErrorKind = "capacity_exceeded"
	ErrorKind_InvalidPeriod    ErrorKind = "invalid_period"
	ErrorKind_Internal         ErrorKind = "internal"
)

// Error is a classified settlement failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Retryable reports whether a caller may simply retry later.
func (e *Error) Retryable() bool {
	return e.Kind == ErrorKind_LockContention
}
