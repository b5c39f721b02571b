package reconcile

import (
	stderrors "errors"

	"github.com/juju/errors"
)

// Kind classifies a reconciliation failure. Every failure is terminal for
// the invocation that produced it.
type Kind string

const (
	ConnectionError        Kind = "connection error"
	ListError              Kind = "list error"
	CreateError            Kind = "create error"
	DeleteError            Kind = "delete error"
	MissingIdentityError   Kind = "missing identity"
	InvalidParametersError Kind = "invalid parameters"
)

// Error implements error so a Kind can be used as an errors.Is target.
func (k Kind) Error() string {
	return string(k)
}

// Error is a failure of one reconciliation step, tagged with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the Kind the error was tagged with.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// NewError annotates cause with message and tags it with kind.
func NewError(kind Kind, cause error, message string) error {
	if cause == nil {
		return &Error{Kind: kind, Err: errors.New(message)}
	}
	return &Error{Kind: kind, Err: errors.Annotate(cause, message)}
}

// KindOf returns the kind err was tagged with, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
