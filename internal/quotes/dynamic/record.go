package dynamic

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
)

// DataPoint is what the time-series pipeline needs from any record:
// a place on the time axis, a scalar value and named fields.
type DataPoint interface {
	Timestamp() time.Time
	PrimaryValue() Value
	Field(name string) (Value, bool)
}

// Record is one data line bound to the schema of the ingestor that parsed it.
// values[0] is always a Timestamp and len(values) == schema.Len().
type Record struct {
	symbol  string
	schema  *Schema
	values  []Value
	primary int
}

var _ DataPoint = (*Record)(nil)

func (r *Record) Symbol() string { return r.symbol }

func (r *Record) Schema() *Schema { return r.schema }

func (r *Record) Timestamp() time.Time {
	t, _ := r.values[0].Time()
	return t
}

// PrimaryValue is not coerced: a vendor that put text in the primary
// column yields a Text value and the caller decides what to do with it.
func (r *Record) PrimaryValue() Value { return r.values[r.primary] }

// PrimaryField is the schema name of the primary value.
func (r *Record) PrimaryField() string { return r.schema.Name(r.primary) }

func (r *Record) Field(name string) (Value, bool) {
	i, ok := r.schema.Index(name)
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// At returns the value of column i.
func (r *Record) At(i int) Value { return r.values[i] }

func (r *Record) Len() int { return len(r.values) }

// Values returns a copy of the values in column order.
func (r *Record) Values() []Value {
	out := make([]Value, len(r.values))
	copy(out, r.values)
	return out
}

func (r *Record) String() string {
	var b strings.Builder
	b.WriteString(r.symbol)
	b.WriteByte(' ')
	b.WriteString(r.Timestamp().Format(time.RFC3339))
	for i := 1; i < len(r.values); i++ {
		fmt.Fprintf(&b, " %s=%s", r.schema.Name(i), r.values[i])
	}
	return b.String()
}

type recordJSON struct {
	Symbol  string           `json:"symbol"`
	Time    time.Time        `json:"time"`
	Value   Value            `json:"value"`
	Primary string           `json:"primary"`
	Fields  map[string]Value `json:"fields"`
}

func (r *Record) MarshalJSON() ([]byte, error) {
	fields := make(map[string]Value, len(r.values)-1)
	for i := 1; i < len(r.values); i++ {
		fields[r.schema.Name(i)] = r.values[i]
	}
	return json.Marshal(recordJSON{
		Symbol:  r.symbol,
		Time:    r.Timestamp(),
		Value:   r.PrimaryValue(),
		Primary: r.PrimaryField(),
		Fields:  fields,
	})
}
