// Package errors re-exports github.com/cockroachdb/errors and defines the
// failure taxonomy of the template engine.
//
// Two classes of failure propagate to the caller:
//
//	ErrParse    the document could not be turned into a structural tree
//	ErrContract a programming contract was violated (e.g. graph without root)
//
// Structural and interpreter failures are recovered locally and only logged,
// so they have no sentinel here.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
	Mark        = crdb.Mark
)

var (
	Is          = crdb.Is
	IsAny       = crdb.IsAny
	As          = crdb.As
	Unwrap      = crdb.Unwrap
	UnwrapAll   = crdb.UnwrapAll
	GetAllHints = crdb.GetAllHints
)

var (
	// ErrParse marks a document that cannot be parsed into the structural model.
	ErrParse = New("parse failure")

	// ErrContract marks a violated programming contract, e.g. requesting a
	// graph root before one was built. Never retried.
	ErrContract = New("contract violation")

	// ErrNotFound indicates a missing store entry or template.
	ErrNotFound = New("not found")
)

// Parsef creates a parse failure for the given document.
func Parsef(format string, args ...any) error {
	return Mark(Newf(format, args...), ErrParse)
}

// Contractf creates a contract violation.
func Contractf(format string, args ...any) error {
	return Mark(Newf(format, args...), ErrContract)
}

// IsParse reports whether err is or wraps a parse failure.
func IsParse(err error) bool {
	return err != nil && Is(err, ErrParse)
}

// IsContract reports whether err is or wraps a contract violation.
func IsContract(err error) bool {
	return err != nil && Is(err, ErrContract)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}
