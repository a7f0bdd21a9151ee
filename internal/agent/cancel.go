package agent

import (
	"context"
	"errors"

	"github.com/yubzen/specpilot/internal/process"
	"github.com/yubzen/specpilot/internal/stream"
)

// cancelledMessage is the message of the terminal event for a cancelled request.
const cancelledMessage = "Request cancelled"

// ErrCancelled is what every cancellation cause normalizes to.
var ErrCancelled = &Error{Code: stream.CodeCancelled, Message: cancelledMessage}

// normalizeCancellationErr maps context errors and CANCELLED process errors to
// an error carrying the cancelled message. A timeout keeps its cause in the
// chain, so errors.Is reports context.DeadlineExceeded.
func normalizeCancellationErr(err error) error {
	if err == nil {
		return nil
	}
	var aerr *Error
	if errors.As(err, &aerr) && aerr.Code == stream.CodeCancelled {
		return aerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: stream.CodeCancelled, Message: cancelledMessage, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	var perr *process.Error
	if errors.As(err, &perr) && perr.Code == stream.CodeCancelled {
		return ErrCancelled
	}
	return err
}

func IsCancelled(err error) bool {
	return errors.Is(normalizeCancellationErr(err), ErrCancelled)
}
