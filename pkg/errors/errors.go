// Package errors defines the error taxonomy shared by every estimator and
// data-handling package in airsift.
//
// All errors are built on github.com/cockroachdb/errors so that wrapped
// chains carry stack traces and remain compatible with errors.Is/As from
// the standard library. Typed errors (NotFittedError, DimensionError, ...)
// describe the failure class; sentinel errors (ErrEmptyData, ...) mark
// conditions callers are expected to branch on.
package errors

import (
	"fmt"

	cockroach "github.com/cockroachdb/errors"
)

// prefix is prepended to every formatted error produced by this package.
const prefix = "airsift"

// Sentinel errors for conditions callers test with errors.Is.
var (
	// ErrEmptyData indicates an input matrix or table with no rows or columns.
	ErrEmptyData = cockroach.New("empty data")

	// ErrSingularMatrix indicates a matrix inversion or solve failed because
	// the system is singular or severely ill-conditioned.
	ErrSingularMatrix = cockroach.New("singular matrix")

	// ErrNotImplemented marks functionality that is declared but not available.
	ErrNotImplemented = cockroach.New("not implemented")
)

// New returns a new error with a stack trace attached.
func New(msg string) error {
	return cockroach.New(msg)
}

// Newf returns a new formatted error with a stack trace attached.
func Newf(format string, args ...interface{}) error {
	return cockroach.Newf(format, args...)
}

// Wrap annotates err with msg. Returns nil if err is nil.
func Wrap(err error, msg string) error {
	return cockroach.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message. Returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return cockroach.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return cockroach.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return cockroach.As(err, target)
}

// Unwrap returns the result of calling Unwrap on err, or nil.
func Unwrap(err error) error {
	return cockroach.Unwrap(err)
}

// NotFittedError reports use of an estimator method that requires a prior
// successful Fit call.
type NotFittedError struct {
	ModelName string
	Method    string
}

// NewNotFittedError returns a NotFittedError for the given model and method.
func NewNotFittedError(modelName, method string) *NotFittedError {
	return &NotFittedError{ModelName: modelName, Method: method}
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: %s: not fitted, call Fit before %s", prefix, e.ModelName, e.Method)
}

// DimensionError reports a shape mismatch between an input and what the
// operation requires. Axis is 0 for rows and 1 for columns.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

// NewDimensionError returns a DimensionError for operation op.
func NewDimensionError(op string, expected, got, axis int) *DimensionError {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s: dimension mismatch on axis %d: expected %d, got %d",
		prefix, e.Op, e.Axis, e.Expected, e.Got)
}

// ValueError reports an input whose value (not shape) makes the operation
// impossible, such as a negative count or NaN concentration.
type ValueError struct {
	Op      string
	Message string
}

// NewValueError returns a ValueError for operation op.
func NewValueError(op, message string) *ValueError {
	return &ValueError{Op: op, Message: message}
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
}

// ValidationError reports a parameter or field that failed validation,
// keeping the offending value for diagnostics.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// NewValidationError returns a ValidationError for the named field.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed for %s: %s (value: %v)",
		prefix, e.Field, e.Message, e.Value)
}

// ModelError wraps a lower-level failure with the operation and a short
// description. It participates in errors.Is/As chains through Unwrap.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

// NewModelError returns a ModelError wrapping err. err may be nil.
func NewModelError(op, message string, err error) *ModelError {
	return &ModelError{Op: op, Message: message, Err: err}
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Message, e.Err)
}

// Unwrap returns the wrapped error.
func (e *ModelError) Unwrap() error {
	return e.Err
}

// Recover converts a panic inside op into an error assigned through errp.
// Use it as the first deferred call in exported estimator methods:
//
//	func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
//		defer errors.Recover(&err, "StandardScaler.Fit")
//		...
//	}
func Recover(errp *error, op string) {
	if r := recover(); r != nil {
		*errp = cockroach.Newf("%s: %s: panic recovered: %v", prefix, op, r)
	}
}
