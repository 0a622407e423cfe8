package analyzers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError is a collaborator failure worth retrying: timeouts,
// connection resets, 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a collaborator rejecting the input as invalid. The
// stage is marked degraded and never retried.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent failure: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is a non-retryable collaborator rejection.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// classify wraps a raw transport error into the taxonomy. Timeouts and
// context deadlines count as transient per the retry policy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Op: op, Err: err}
	}
	return &TransientError{Op: op, Err: err} // network failures default to retryable
}

// classifyStatus maps an HTTP status code from a collaborator to the
// taxonomy: 4xx means our input was rejected, 5xx means try again.
func classifyStatus(op string, status int) error {
	if status >= 400 && status < 500 {
		return &PermanentError{Op: op, Err: fmt.Errorf("collaborator returned status %d", status)}
	}
	return &TransientError{Op: op, Err: fmt.Errorf("collaborator returned status %d", status)}
}
