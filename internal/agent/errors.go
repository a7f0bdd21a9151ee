package agent

import "github.com/yubzen/specpilot/internal/stream"

// Error is a classified service failure. Two Errors match under errors.Is
// when their codes match.
type Error struct {
	Code    stream.ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	// ErrBusy is returned synchronously by SendMessage while a request is in flight.
	ErrBusy = &Error{Code: stream.CodeBusy, Message: "a request is already in progress"}

	ErrDisposed = &Error{Code: stream.CodeNotAvailable, Message: "service has been disposed"}
)
