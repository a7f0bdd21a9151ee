package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yubzen/specpilot/internal/stream"
)

// Error is a classified process failure.
type Error struct {
	Code     stream.ErrorCode
	Message  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func busyError() *Error {
	return &Error{Code: stream.CodeBusy, Message: "a CLI process is already running"}
}

func spawnError(step string, err error) *Error {
	return &Error{
		Code:    stream.CodeUnknown,
		Message: fmt.Sprintf("%s: %v", step, err),
		Err:     err,
	}
}

func cancelledError(cause error, timeout time.Duration) *Error {
	if errors.Is(cause, context.DeadlineExceeded) {
		msg := "CLI process deadline exceeded"
		if timeout > 0 {
			msg = fmt.Sprintf("CLI process timed out after %v", timeout)
		}
		return &Error{Code: stream.CodeCancelled, Message: msg, Err: context.DeadlineExceeded}
	}
	return &Error{Code: stream.CodeCancelled, Message: "CLI process cancelled", Err: context.Canceled}
}

func exitError(code int, stderr string) *Error {
	stderr = strings.TrimSpace(stderr)
	msg := fmt.Sprintf("CLI process exited with code %d", code)
	if stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, stderr)
	}
	return &Error{Code: stream.CodeCLIError, Message: msg, ExitCode: code, Stderr: stderr}
}
