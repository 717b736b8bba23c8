package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports can map them without string matching.
type ErrorKind string

const (
	KindInternal   ErrorKind = "internal"
	KindConfig     ErrorKind = "config"
	KindDataAccess ErrorKind = "data_access"
	KindNotFound   ErrorKind = "not_found"
)

// AppError wraps an operation, failure kind, human-facing message, and underlying error.
type AppError struct {
	Op   string
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an internal AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Kind: KindInternal, Msg: msg, Err: err}
}

// ConfigError marks err as a configuration problem.
func ConfigError(op, msg string, err error) error {
	return &AppError{Op: op, Kind: KindConfig, Msg: msg, Err: err}
}

// DataAccessError marks err as a failure to read or write backing storage.
func DataAccessError(op, msg string, err error) error {
	return &AppError{Op: op, Kind: KindDataAccess, Msg: msg, Err: err}
}

// NotFoundError reports a missing resource.
func NotFoundError(op, msg string) error {
	return &AppError{Op: op, Kind: KindNotFound, Msg: msg}
}

// KindOf returns the kind of the outermost AppError in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}
	return KindInternal
}
