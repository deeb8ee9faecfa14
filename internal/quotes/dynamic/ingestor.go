package dynamic

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"quantfeed.com/pkg/xerr"
)

type state uint8

const (
	stateUninitialized state = iota
	stateInitialized
)

// Ingestor turns raw lines of one tabular stream into Records.
// The first non-blank line is the header and fixes the schema for good;
// every later line is data, including a repeated header.
//
// An Ingestor belongs to one subscription and must be fed sequentially.
type Ingestor struct {
	symbol      string
	delim       rune
	primaryName string
	layouts     []string
	loc         *time.Location

	state   state
	schema  *Schema
	primary int // -1 until resolved
}

type Option func(*Ingestor) error

func WithSymbol(symbol string) Option {
	return func(in *Ingestor) error {
		in.symbol = symbol
		return nil
	}
}

func WithDelimiter(r rune) Option {
	return func(in *Ingestor) error {
		if r == 0 || r == '"' || r == '\r' || r == '\n' {
			return fmt.Errorf("invalid delimiter %q", r)
		}
		in.delim = r
		return nil
	}
}

// WithPrimaryField names the column returned by Record.PrimaryValue.
// Unknown names fall back to the default policy.
func WithPrimaryField(name string) Option {
	return func(in *Ingestor) error {
		in.primaryName = strings.TrimSpace(name)
		return nil
	}
}

func WithTimeLayouts(layouts ...string) Option {
	return func(in *Ingestor) error {
		if len(layouts) == 0 {
			return fmt.Errorf("time layouts cannot be empty")
		}
		in.layouts = layouts
		return nil
	}
}

func WithLocation(loc *time.Location) Option {
	return func(in *Ingestor) error {
		if loc == nil {
			return fmt.Errorf("location cannot be nil")
		}
		in.loc = loc
		return nil
	}
}

func NewIngestor(opts ...Option) (*Ingestor, error) {
	in := &Ingestor{
		delim:   ',',
		layouts: DefaultTimeLayouts,
		loc:     time.UTC,
		primary: -1,
	}
	for _, opt := range opts {
		if err := opt(in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// Schema is nil until the header has been ingested.
func (in *Ingestor) Schema() *Schema { return in.schema }

func (in *Ingestor) Initialized() bool { return in.state == stateInitialized }

// Ingest consumes one line. It returns (nil, nil) for the header,
// a *RowShapeError or *TimestampError for a data line that cannot be
// placed, and a fresh Record otherwise. Errors never change the schema.
func (in *Ingestor) Ingest(line string) (*Record, error) {
	line = strings.TrimRight(line, "\r\n")

	if in.state == stateUninitialized {
		return nil, in.readHeader(line)
	}

	tokens, err := in.split(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) != in.schema.Len() {
		return nil, &RowShapeError{Want: in.schema.Len(), Got: len(tokens)}
	}

	ts, err := parseTime(tokens[0], in.layouts, in.loc)
	if err != nil {
		return nil, &TimestampError{Token: tokens[0], Err: err}
	}

	values := make([]Value, len(tokens))
	values[0] = Timestamp(ts)
	for i := 1; i < len(tokens); i++ {
		values[i] = Coerce(tokens[i])
	}
	if in.primary < 0 {
		in.primary = defaultPrimary(values)
	}

	return &Record{
		symbol:  in.symbol,
		schema:  in.schema,
		values:  values,
		primary: in.primary,
	}, nil
}

// MatchesHeader reports whether line would produce the current schema if
// it were read as a header. It is false before initialization.
func (in *Ingestor) MatchesHeader(line string) bool {
	if in.schema == nil {
		return false
	}
	tokens, err := in.split(stripBOM(strings.TrimRight(line, "\r\n")))
	if err != nil || len(tokens) != in.schema.Len() {
		return false
	}
	other := NewSchema(tokens)
	for i := range tokens {
		if other.Name(i) != in.schema.Name(i) {
			return false
		}
	}
	return true
}

func (in *Ingestor) readHeader(line string) error {
	line = stripBOM(line)
	if strings.TrimSpace(line) == "" {
		return ErrEmptyHeader
	}
	tokens, err := in.split(line)
	if err != nil {
		return err
	}
	in.schema = NewSchema(tokens)
	if in.primaryName != "" {
		if i, ok := in.schema.Index(in.primaryName); ok {
			in.primary = i
		} else if i, ok := in.schema.Index(SanitizeName(in.primaryName, 0)); ok {
			in.primary = i
		}
	}
	in.state = stateInitialized
	return nil
}

func stripBOM(line string) string { return strings.TrimPrefix(line, "\ufeff") }

func (in *Ingestor) split(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = in.delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	tokens, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, xerr.Wrap(err, xerr.RowShape, "split line")
	}
	return tokens, nil
}

// defaultPrimary picks the last numeric column, or the last column when no
// column is numeric.
func defaultPrimary(values []Value) int {
	for i := len(values) - 1; i > 0; i-- {
		if values[i].Kind() == KindNumber {
			return i
		}
	}
	return len(values) - 1
}
