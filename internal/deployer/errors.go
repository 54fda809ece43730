package deployer

import (
	"errors"
	"fmt"
)

// Transient marks a transport failure worth retrying: a network blip, a
// dropped connection. Everything unmarked is fatal and surfaced immediately.
type Transient struct {
	Err error
}

func (e *Transient) Error() string {
	return fmt.Sprintf("transient transport error: %v", e.Err)
}

func (e *Transient) Unwrap() error { return e.Err }

// MarkTransient wraps an error as retryable.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &Transient{Err: err}
}

// IsTransient reports whether the error is marked retryable.
func IsTransient(err error) bool {
	var transient *Transient
	return errors.As(err, &transient)
}
