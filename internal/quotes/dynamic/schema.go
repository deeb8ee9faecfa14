package dynamic

import (
	"strconv"
	"strings"
	"unicode"
)

// Schema is the ordered list of field names read from a header line.
// It is never modified after NewSchema returns, so records share it freely.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema sanitizes the header cells and makes every name unique.
// A name that collides with an earlier one gets its 1-based column index
// appended ("Close" then "Close5").
func NewSchema(header []string) *Schema {
	s := &Schema{
		names: make([]string, len(header)),
		index: make(map[string]int, len(header)),
	}
	for i, cell := range header {
		name := SanitizeName(cell, i)
		if _, taken := s.index[name]; taken {
			name = dedupe(name, i+1, s.index)
		}
		s.names[i] = name
		s.index[name] = i
	}
	return s
}

func dedupe(name string, col int, taken map[string]int) string {
	suffix := strconv.Itoa(col)
	name += suffix
	for {
		if _, ok := taken[name]; !ok {
			return name
		}
		name += "_" + suffix
	}
}

// SanitizeName trims the cell and replaces every rune that cannot appear in
// an identifier with '_'. col is the 0-based column, used to name blank cells.
func SanitizeName(cell string, col int) string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return "Column" + strconv.Itoa(col+1)
	}
	var b strings.Builder
	b.Grow(len(cell) + 1)
	for i, r := range cell {
		if i == 0 && unicode.IsDigit(r) {
			b.WriteByte('_')
		}
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *Schema) Len() int { return len(s.names) }

func (s *Schema) Name(i int) string { return s.names[i] }

// Names returns a copy of the field names in column order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func (s *Schema) String() string { return strings.Join(s.names, ",") }
