package quiz

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service unwraps to exactly one of these.
var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
	ErrInternal    = errors.New("internal")
)

var (
	ErrQuizNotFound      = &Error{Kind: ErrNotFound, Message: "quiz not found"}
	ErrQuestionNotFound  = &Error{Kind: ErrNotFound, Message: "question not found"}
	ErrAttemptNotFound   = &Error{Kind: ErrNotFound, Message: "attempt not found"}
	ErrAttemptInProgress = &Error{Kind: ErrConflict, Message: "ongoing attempt exists"}
	ErrAttemptCompleted  = &Error{Kind: ErrConflict, Message: "attempt already completed"}
	ErrTimeExpired       = &Error{Kind: ErrExpired, Message: "time expired"}
	ErrMaxAttempts       = &Error{Kind: ErrForbidden, Message: "max attempts reached"}
	ErrInvalidUserID     = &Error{Kind: ErrForbidden, Message: "user id is required"}
)

// Error carries a kind, a user-facing message and optional details that a
// caller can render (for example the attempt limit that was hit).
type Error struct {
	Kind    error
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func forbidden(message string, details map[string]any) *Error {
	return &Error{Kind: ErrForbidden, Message: message, Details: details}
}

func unavailable(op string, err error) *Error {
	return &Error{Kind: ErrUnavailable, Message: op + " unavailable", Err: err}
}

func internal(op string, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: ErrInternal, Message: op, Err: err}
}

// KindOf reports the kind sentinel of err, defaulting to ErrInternal.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrForbidden, ErrConflict, ErrExpired, ErrUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// DetailsOf returns the details of the outermost *Error in err's chain.
func DetailsOf(err error) map[string]any {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Details
	}
	return nil
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return fmt.Sprint(err)
}
