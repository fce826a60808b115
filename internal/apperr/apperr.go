// Package apperr defines the error categories used across surveyqc.
//
// Error taxonomy
//
//	UserError          – invalid CLI input (unknown test id, bad flag value, …).
//	                     The CLI prints only the message. Exit code: 1.
//
//	ErrCancelled       – the run was interrupted (SIGINT during a batch).
//	                     Exit code: 130.
//
//	ErrInvalidResult   – a QC test completed and failed, and the caller asked
//	                     for that to fail the process. Exit code: 2.
//
//	ParseError         – malformed IPM line, value or unit. Aborts the call.
//
//	ValidationError    – missing or out-of-range survey field. Aborts the call.
//
//	TermNotFound       – an IPM term a test asked for is absent. Never returned
//	                     from a test; recorded in the result details instead.
//
//	GeometryError      – too few stations or too little geometric diversity for a
//	SingularMatrixError  multi-station fit, a rank-deficient design matrix, or an
//	ConvergenceFailure   iteration cap reached. Captured in the result as a
//	                     Failure, never thrown.
//
// Everything else is a plain Go error (I/O, decoding, …) and is propagated with
// fmt.Errorf("context: %w", err) wrapping.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is returned when a run is interrupted before it completes.
// The CLI exits 130 rather than 1 when it sees this error.
var ErrCancelled = errors.New("operation cancelled")

// ErrInvalidResult marks a completed QC run whose result is invalid.
var ErrInvalidResult = errors.New("qc result is invalid")

// Invalid wraps ErrInvalidResult with the test that failed.
func Invalid(test string) error {
	return fmt.Errorf("%s: %w", test, ErrInvalidResult)
}

// UserError represents an error caused by invalid or missing user input.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// User creates a UserError with the given message.
func User(msg string) error { return &UserError{Message: msg} }

// Userf creates a formatted UserError.
func Userf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// IsUser reports whether err is (or wraps) a *UserError.
func IsUser(err error) bool {
	var u *UserError
	return errors.As(err, &u)
}

// ParseError reports a malformed IPM line. Line is 1-based.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ipm line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// ValidationError reports a missing or out-of-range survey field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Missing is shorthand for a ValidationError on an absent field.
func Missing(field string) error {
	return &ValidationError{Field: field, Reason: "required field is missing"}
}

// TermNotFound names an IPM term that could not be resolved.
type TermNotFound struct {
	Name   string
	Vector string
	TieOn  string
}

func (e *TermNotFound) Error() string {
	return fmt.Sprintf("term not found: name=%s vector=%s tie_on=%s", e.Name, orAny(e.Vector), orAny(e.TieOn))
}

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// GeometryError reports insufficient station count or diversity.
type GeometryError struct {
	Quality string
	Reason  string
}

func (e *GeometryError) Error() string {
	if e.Quality == "" {
		return "geometry: " + e.Reason
	}
	return fmt.Sprintf("geometry (%s): %s", e.Quality, e.Reason)
}

// SingularMatrixError reports a rank-deficient design matrix together with the
// parameter pairs that the geometry cannot separate.
type SingularMatrixError struct {
	Confounded [][2]string
}

func (e *SingularMatrixError) Error() string {
	if len(e.Confounded) == 0 {
		return "singular design matrix"
	}
	pairs := make([]string, len(e.Confounded))
	for i, p := range e.Confounded {
		pairs[i] = p[0] + "/" + p[1]
	}
	return "singular design matrix: confounded " + strings.Join(pairs, ", ")
}

// ConvergenceFailure reports an iteration cap reached before convergence.
type ConvergenceFailure struct {
	Iterations int
	DeltaNorm  float64
}

func (e *ConvergenceFailure) Error() string {
	return fmt.Sprintf("no convergence after %d iterations (last delta %.3g)", e.Iterations, e.DeltaNorm)
}

// Failure kinds as they appear in serialised results.
const (
	KindGeometry    = "geometry_error"
	KindSingular    = "singular_matrix"
	KindConvergence = "convergence_failure"
	KindValidation  = "validation_error"
)

// Failure is the serialisable record of a captured error.
type Failure struct {
	Kind       string      `json:"kind" yaml:"kind"`
	Message    string      `json:"message" yaml:"message"`
	Quality    string      `json:"geometry_quality,omitempty" yaml:"geometry_quality,omitempty"`
	Confounded [][2]string `json:"confounded,omitempty" yaml:"confounded,omitempty"`
}

// AsFailure converts a captured error into a Failure. It returns nil for nil and
// for errors outside the captured kinds.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var (
		geo  *GeometryError
		sing *SingularMatrixError
		conv *ConvergenceFailure
		val  *ValidationError
	)
	switch {
	case errors.As(err, &geo):
		return &Failure{Kind: KindGeometry, Message: err.Error(), Quality: geo.Quality}
	case errors.As(err, &sing):
		return &Failure{Kind: KindSingular, Message: err.Error(), Confounded: sing.Confounded}
	case errors.As(err, &conv):
		return &Failure{Kind: KindConvergence, Message: err.Error()}
	case errors.As(err, &val):
		return &Failure{Kind: KindValidation, Message: err.Error()}
	}
	return nil
}
