package xfa

import "fmt"

// Error codes surfaced to clients.
const (
	CodeMalformedRequest = "MALFORMED_REQUEST"
	CodeWorkerFailed     = "WORKER_FAILED"
	CodeWorkerProtocol   = "WORKER_PROTOCOL"
	CodeLimitExceeded    = "LIMIT_EXCEEDED"
	CodeUnsupportedPDF   = "UNSUPPORTED_PDF"
)

// Error carries a stable code alongside a client-facing message.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
