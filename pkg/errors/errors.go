package errors

import (
	stderrors "errors"

	pkgerrors "github.com/pkg/errors"
)

// New returns a message-only error annotated with the caller stack.
func New(message string) error {
	return pkgerrors.New(message)
}

// NewWithReport builds the error and dispatches it to the registered
// reporters before returning it.
func NewWithReport(message string) error {
	err := pkgerrors.New(message)
	report(err)
	return err
}

// Errorf formats an error annotated with the caller stack.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}

// ErrorfAndReport formats the error and dispatches it to the registered
// reporters before returning it.
func ErrorfAndReport(format string, args ...interface{}) error {
	err := pkgerrors.Errorf(format, args...)
	report(err)
	return err
}

// Wrap annotates err with a message and the caller stack. Returns nil if
// err is nil.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message and the caller stack.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// WrapAndReport wraps the error and dispatches it to the registered
// reporters before returning it.
func WrapAndReport(err error, message string) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.Wrap(err, message)
	report(wrapped)
	return wrapped
}

// WithStack annotates err with the caller stack.
func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain matching target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Cause returns the underlying cause of the error, if possible.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}
