package wire

import (
	"errors"
	"fmt"
)

// FailureCode classifies a peer-visible failure. Codes are part of the
// protocol surface: hosts branch on them (e.g. retry UnlockPath without a
// MAC after CodeAuthFailed).
type FailureCode uint8

const (
	CodeUnexpectedMessage FailureCode = iota + 1
	CodeNoActiveSession
	CodeCapacity
	CodePrecondition
	CodeInvariant
	CodePolicy
	CodeAuthFailed
	CodeActionCancelled
	CodeNotInitialized
)

func (c FailureCode) String() string {
	switch c {
	case CodeUnexpectedMessage:
		return "UnexpectedMessage"
	case CodeNoActiveSession:
		return "NoActiveSession"
	case CodeCapacity:
		return "Capacity"
	case CodePrecondition:
		return "Precondition"
	case CodeInvariant:
		return "Invariant"
	case CodePolicy:
		return "Policy"
	case CodeAuthFailed:
		return "AuthFailed"
	case CodeActionCancelled:
		return "ActionCancelled"
	case CodeNotInitialized:
		return "NotInitialized"
	}
	return fmt.Sprintf("FailureCode(%d)", uint8(c))
}

// Error is a failure that is reported to the requesting host as a Failure
// message carrying the code and text. None of these are retried by the
// device; retry policy belongs to the host.
type Error struct {
	Code FailureCode
	Text string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Text)
}

// Is matches two wire errors by code so that sentinel comparisons with
// errors.Is work regardless of message text.
func (e *Error) Is(target error) bool {
	var w *Error
	if !errors.As(target, &w) {
		return false
	}
	return e.Code == w.Code
}

func Errorf(code FailureCode, format string, args ...any) *Error {
	return &Error{Code: code, Text: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks. Handlers that need a specific message use
// Errorf with the matching code instead.
var (
	ErrUnexpectedMessage = &Error{Code: CodeUnexpectedMessage, Text: "unexpected message"}
	ErrNoActiveSession   = &Error{Code: CodeNoActiveSession, Text: "no active session"}
	ErrSessionCapacity   = &Error{Code: CodeCapacity, Text: "session table full"}
	ErrActionCancelled   = &Error{Code: CodeActionCancelled, Text: "action cancelled"}
	ErrPinInvalid        = &Error{Code: CodeAuthFailed, Text: "PIN invalid"}
	ErrNotInitialized    = &Error{Code: CodeNotInitialized, Text: "device is not initialized"}
)

// FailureFrom converts any handler error into the Failure message sent to
// the host. Invariant failures keep their code so diagnostics can tell a
// firmware bug from user error; everything untyped is reported as an
// unexpected-message condition rather than leaking internals.
func FailureFrom(err error) Failure {
	var w *Error
	if errors.As(err, &w) {
		return Failure{Code: w.Code, Message: w.Text}
	}
	return Failure{Code: CodeUnexpectedMessage, Message: err.Error()}
}
