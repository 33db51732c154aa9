// Package errors re-exports github.com/cockroachdb/errors and holds the
// generic sentinels shared across services.
//
// Hints attached with WithHint are the user-facing part of an error; the HTTP
// layer reads them back with FlattenHints.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = crdb.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = crdb.New("invalid argument")
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

var (
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetail   = crdb.WithDetail
	WithDetailf  = crdb.WithDetailf
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

var (
	Is     = crdb.Is
	IsAny  = crdb.IsAny
	As     = crdb.As
	Unwrap = crdb.Unwrap
	Join   = crdb.Join
)

// NotFoundf marks a formatted error as ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return crdb.Mark(crdb.Newf(format, args...), ErrNotFound)
}

// InvalidArgumentf marks a formatted error as ErrInvalidArgument.
func InvalidArgumentf(format string, args ...interface{}) error {
	return crdb.Mark(crdb.Newf(format, args...), ErrInvalidArgument)
}
