package signtx

import "fmt"

// Error kinds, following spec.md §7. These are closed, comparable with
// errors.Is, and modeled on the donor's txbuilder.txBuilderError /
// ErrorCodeX pairing rather than ad-hoc string errors.
const (
	ErrorCodeInvalidState = 1
	ErrorCodeInvalidInput = 2
	ErrorCodeUserAbort    = 3
)

// ErrInvalidState: keystore locked at entry, host sent a message whose
// variant doesn't match the one requested, or an internal consistency
// violation.
var ErrInvalidState = &signError{code: ErrorCodeInvalidState, message: "invalid state"}

// ErrInvalidInput: malformed prevtx, hash/value mismatch, or any
// native-side validation failure.
var ErrInvalidInput = &signError{code: ErrorCodeInvalidInput, message: "invalid input"}

// ErrUserAbort: a confirmation dialog returned "cancel".
var ErrUserAbort = &signError{code: ErrorCodeUserAbort, message: "user abort"}

type signError struct {
	code    int
	message string
	detail  string
}

func (e *signError) Error() string {
	if e.detail == "" {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, e.detail)
}

// Is lets errors.Is(err, ErrInvalidState) match any wrapped signError with
// the same code, including ones produced by withDetail.
func (e *signError) Is(target error) bool {
	other, ok := target.(*signError)
	if !ok {
		return false
	}
	return e.code == other.code
}

// withDetail returns a new error of the same kind carrying extra context,
// still matching errors.Is(err, base).
func withDetail(base *signError, detail string) error {
	return &signError{code: base.code, message: base.message, detail: detail}
}

// IsErrorCode reports whether err is a signError of the given code,
// mirroring txbuilder.IsErrorCode.
func IsErrorCode(err error, code int) bool {
	se, ok := err.(*signError)
	if !ok {
		return false
	}
	return se.code == code
}
