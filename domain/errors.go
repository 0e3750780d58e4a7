package domain

import "errors"

// Code classifies an operation failure. Anything without a code is a
// storage or programming fault and surfaces as a generic server error.
type Code string

const (
	CodeNotFound   Code = "not_found"
	CodeForbidden  Code = "forbidden"
	CodeConflict   Code = "conflict"
	CodeValidation Code = "validation"
)

// Error is a coded domain failure. NotFound doubles as the hidden form of
// forbidden: existence is never revealed to callers outside the board.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

func NotFound(msg string) *Error   { return &Error{Code: CodeNotFound, Message: msg} }
func Forbidden(msg string) *Error  { return &Error{Code: CodeForbidden, Message: msg} }
func Conflict(msg string) *Error   { return &Error{Code: CodeConflict, Message: msg} }
func Validation(msg string) *Error { return &Error{Code: CodeValidation, Message: msg} }

// ErrCode extracts the code from err, or "" when err carries none.
func ErrCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool { return ErrCode(err) == code }

var (
	ErrTaskNotFound              = NotFound("task not found")
	ErrTaskMembershipNotFound    = NotFound("task membership not found")
	ErrUserNotFound              = NotFound("user not found")
	ErrNotEnoughRights           = Forbidden("not enough rights")
	ErrUserAlreadyTaskMember     = Conflict("user already task member")
	ErrUserAlreadyCardSubscriber = Conflict("user already card subscriber")
)
