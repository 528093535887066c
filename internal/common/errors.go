package common

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is the cause of a BusinessError raised when a transaction is
// dated before the last transaction applied to its position.
var ErrOutOfOrder = errors.New("transaction out of order")

// ErrUnknownCurrency is the cause when a currency code cannot be resolved.
var ErrUnknownCurrency = errors.New("unknown currency")

// ErrUnknownMarket is the cause when a market code cannot be resolved.
var ErrUnknownMarket = errors.New("unknown market")

// BusinessError is a user or data caused failure. It is never retried.
type BusinessError struct {
	Op  string
	Err error
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BusinessError) Unwrap() error { return e.Err }

// SystemError is an integration failure (outage, timeout, bad payload).
// It may be retried at the market-data dispatch boundary.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

// NewBusinessError wraps err as a business error for op.
func NewBusinessError(op string, err error) error {
	return &BusinessError{Op: op, Err: err}
}

// BusinessErrorf formats a business error whose cause may be wrapped with %w.
func BusinessErrorf(op, format string, args ...interface{}) error {
	return &BusinessError{Op: op, Err: fmt.Errorf(format, args...)}
}

// NewSystemError wraps err as a system error for op.
func NewSystemError(op string, err error) error {
	return &SystemError{Op: op, Err: err}
}

// SystemErrorf formats a system error whose cause may be wrapped with %w.
func SystemErrorf(op, format string, args ...interface{}) error {
	return &SystemError{Op: op, Err: fmt.Errorf(format, args...)}
}

// IsBusiness reports whether err is, or wraps, a BusinessError.
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

// IsSystem reports whether err is, or wraps, a SystemError.
func IsSystem(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}
