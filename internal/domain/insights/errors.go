package insights

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated means the request carried no valid caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrProfileNotFound means the caller has no profile row.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrNotOnboarded means the profile exists but has no category yet.
	ErrNotOnboarded = errors.New("profile has no category")
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsightUnavailable wraps a GenerationError surfaced to callers.
	ErrInsightUnavailable = errors.New("insight unavailable")
	// ErrStorageTimeout means the persistence transaction exceeded its budget and was rolled back.
	ErrStorageTimeout = errors.New("storage timeout")
	ErrStorage        = errors.New("storage error")
)

// GenerationError is returned when the completion service output cannot be
// turned into a valid Payload. It is never retried automatically.
type GenerationError struct {
	Category string
	Reason   string
	Details  []string
	Err      error
}

func (e *GenerationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "generate insight for %q: %s", e.Category, e.Reason)
	if len(e.Details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StorageErr wraps a persistence failure with the operation that produced it.
func StorageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
