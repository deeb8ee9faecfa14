package dynamic

import (
	"fmt"

	"quantfeed.com/pkg/xerr"
)

// Sentinels for errors.Is. The concrete errors below match them by code.
var (
	ErrRowShape    = xerr.NewErrCode(xerr.RowShape)
	ErrTimestamp   = xerr.NewErrCode(xerr.Timestamp)
	ErrEmptyHeader = xerr.NewErrCode(xerr.EmptyHeader)
)

// RowShapeError reports a data line whose width differs from the schema.
// The line is skipped; the ingestor stays usable.
type RowShapeError struct {
	Want int
	Got  int
}

func (e *RowShapeError) Error() string {
	return fmt.Sprintf("row shape: want %d fields, got %d", e.Want, e.Got)
}

func (e *RowShapeError) Unwrap() error { return ErrRowShape }

// TimestampError reports a data line whose first column is not a time.
type TimestampError struct {
	Token string
	Err   error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("timestamp: cannot parse %q: %v", e.Token, e.Err)
}

func (e *TimestampError) Unwrap() []error { return []error{ErrTimestamp, e.Err} }
