package dynamic

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
)

type Kind uint8

const (
	KindInvalid Kind = iota
	KindNumber
	KindText
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindTimestamp:
		return "timestamp"
	default:
		return "invalid"
	}
}

// Value is one coerced cell: a number, a piece of text or a timestamp.
// The zero Value is KindInvalid and is what a missing field looks like.
type Value struct {
	kind Kind
	num  float64
	raw  string // original token; the text for KindText
	ts   time.Time
}

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func Text(s string) Value { return Value{kind: KindText, raw: s} }

func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t} }

// Coerce turns a non-timestamp token into a Number when it is a finite
// float and into Text otherwise. It never fails.
func Coerce(token string) Value {
	s := strings.TrimSpace(token)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Text(token)
	}
	return Value{kind: KindNumber, num: f, raw: s}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.raw, true
}

func (v Value) Time() (time.Time, bool) {
	if v.kind != KindTimestamp {
		return time.Time{}, false
	}
	return v.ts, true
}

// Decimal returns the number without float rounding when it was parsed
// from a token.
func (v Value) Decimal() (decimal.Decimal, bool) {
	if v.kind != KindNumber {
		return decimal.Zero, false
	}
	if v.raw != "" {
		if d, err := decimal.NewFromString(v.raw); err == nil {
			return d, true
		}
	}
	return decimal.NewFromFloat(v.num), true
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.raw == o.raw
	case KindTimestamp:
		return v.ts.Equal(o.ts)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		if v.raw != "" {
			return v.raw
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.raw
	case KindTimestamp:
		return v.ts.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		// digits of the vendor token, not of its float64 rounding
		d, _ := v.Decimal()
		return []byte(d.String()), nil
	case KindText:
		return json.Marshal(v.raw)
	case KindTimestamp:
		return json.Marshal(v.ts.Format(time.RFC3339Nano))
	default:
		return []byte("null"), nil
	}
}
