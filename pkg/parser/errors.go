package parser

import (
	"errors"
	"fmt"
)

var (
	ErrNoTableHeader   = errors.New("transaction before table header")
	ErrNoStatementYear = errors.New("transaction before statement year is known")
	ErrNoAccount       = errors.New("transaction before account is known")
	ErrNoBookingDate   = errors.New("transaction without booking date and no earlier date to fall back on")
	ErrUnknownMonth    = errors.New("unknown billing month")
)

// ContextError aborts the reconstruction of one file at the line that failed,
// either because it needs state not seen yet or because a field in it does
// not parse.
type ContextError struct {
	LineNo int
	Line   string
	Err    error
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.LineNo, e.Err, e.Line)
}

func (e *ContextError) Unwrap() error {
	return e.Err
}
