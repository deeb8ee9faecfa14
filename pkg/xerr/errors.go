package xerr

import (
	"errors"
	"fmt"
)

// Error codes shared by the feed pipeline.
const (
	OK          = 0
	RowShape    = 1001 // data line width differs from the schema
	Timestamp   = 1002 // column 0 is not a timestamp
	EmptyHeader = 1003 // header line carries no columns
	Config      = 1101 // caller supplied an unusable configuration
	Fetch       = 1201 // remote source returned a failure
)

// CodeError is an error tagged with one of the codes above.
// Two CodeErrors match under errors.Is when their codes are equal.
type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Err  error  `json:"-"`
}

func (e *CodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ErrCode:%d, Msg:%s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.Err }

func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func Newf(code int, format string, args ...any) error {
	return &CodeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap tags err with code. A nil err stays nil.
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: msg, Err: err}
}

// CodeOf returns the code of the outermost CodeError in err's chain, or OK.
func CodeOf(err error) int {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return OK
}

func MapErrMsg(code int) string {
	switch code {
	case OK:
		return "ok"
	case RowShape:
		return "row shape mismatch"
	case Timestamp:
		return "unparsable timestamp"
	case EmptyHeader:
		return "empty header"
	case Config:
		return "invalid configuration"
	case Fetch:
		return "fetch failed"
	default:
		return "unknown error"
	}
}
