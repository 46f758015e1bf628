package operation

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for reporting.
type Kind string

const (
	KindAccessDenied              Kind = "AccessDenied"
	KindWriteDenied               Kind = "WriteDenied"
	KindUnknownOperation          Kind = "UnknownOperation"
	KindClassificationUnavailable Kind = "ClassificationUnavailable"
	KindHandlerFailure            Kind = "HandlerFailure"
	KindEmptyTask                 Kind = "EmptyTask"
	KindColumnNotFound            Kind = "ColumnNotFound"
	KindNotFound                  Kind = "NotFound"
)

// Sentinel errors, one per kind.
var (
	ErrAccessDenied              = errors.New("access denied")
	ErrWriteDenied               = errors.New("write denied")
	ErrUnknownOperation          = errors.New("unknown operation")
	ErrClassificationUnavailable = errors.New("classification unavailable")
	ErrHandlerFailure            = errors.New("handler failure")
	ErrEmptyTask                 = errors.New("task is empty")
	ErrColumnNotFound            = errors.New("column not found")
	ErrNotFound                  = errors.New("not found")
)

var sentinels = map[Kind]error{
	KindAccessDenied:              ErrAccessDenied,
	KindWriteDenied:               ErrWriteDenied,
	KindUnknownOperation:          ErrUnknownOperation,
	KindClassificationUnavailable: ErrClassificationUnavailable,
	KindHandlerFailure:            ErrHandlerFailure,
	KindEmptyTask:                 ErrEmptyTask,
	KindColumnNotFound:            ErrColumnNotFound,
	KindNotFound:                  ErrNotFound,
}

// Error carries a failure kind with the operation or subject it concerns.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if s, ok := sentinels[e.Kind]; ok {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil && !errors.Is(e.Err, sentinels[e.Kind]) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Errorf builds a kinded error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of the first kinded error in the chain,
// or KindHandlerFailure when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, s := range sentinels {
		if errors.Is(err, s) {
			return kind
		}
	}
	return KindHandlerFailure
}

// IsConfinement reports whether err is a path confinement violation.
func IsConfinement(err error) bool {
	return errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrWriteDenied)
}
