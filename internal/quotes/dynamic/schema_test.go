package dynamic

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_KeepsOrder(t *testing.T) {
	s := NewSchema([]string{"Date", "Open", "High", "Low", "Close", "Volume"})
	assert.Equal(t, 6, s.Len())
	assert.Equal(t, "Date,Open,High,Low,Close,Volume", s.String())

	i, ok := s.Index("Close")
	require.True(t, ok)
	assert.Equal(t, 4, i)

	_, ok = s.Index("close")
	assert.False(t, ok)
}

func TestSchema_Sanitize(t *testing.T) {
	s := NewSchema([]string{" Date ", "Adj. Close", "Ex-Dividend", "52w High", ""})
	assert.Equal(t, []string{"Date", "Adj__Close", "Ex_Dividend", "_52w_High", "Column5"}, s.Names())
}

func TestSchema_Dedupe(t *testing.T) {
	s := NewSchema([]string{"Date", "Close", "Volume", "Close", "Close"})
	assert.Equal(t, []string{"Date", "Close", "Volume", "Close4", "Close5"}, s.Names())

	s = NewSchema([]string{"A", "A2", "A"})
	assert.Equal(t, []string{"A", "A2", "A3"}, s.Names())

	s = NewSchema([]string{"A", "A", "A2"})
	assert.Equal(t, []string{"A", "A2", "A23"}, s.Names())

	// the suffixed name can itself collide with a real column
	s = NewSchema([]string{"A3", "A", "A"})
	assert.Equal(t, []string{"A3", "A", "A3_3"}, s.Names())

	// sanitizing can be the source of the collision
	s = NewSchema([]string{"Adj Close", "Adj_Close"})
	assert.Equal(t, []string{"Adj_Close", "Adj_Close2"}, s.Names())
}

func TestSchema_NamesAreUniqueForAnyHeader(t *testing.T) {
	for n := 1; n <= 12; n++ {
		cells := make([]string, n)
		for i := range cells {
			cells[i] = fmt.Sprintf("c%d", i%3)
		}
		s := NewSchema(cells)
		require.Equal(t, n, s.Len())

		seen := map[string]bool{}
		for i, name := range s.Names() {
			assert.False(t, seen[name], "duplicate %s in %s", name, strings.Join(s.Names(), ","))
			seen[name] = true
			j, ok := s.Index(name)
			require.True(t, ok)
			assert.Equal(t, i, j)
		}
	}
}

func TestSchema_NamesIsACopy(t *testing.T) {
	s := NewSchema([]string{"Date", "Value"})
	names := s.Names()
	names[1] = "Mutated"
	assert.Equal(t, "Value", s.Name(1))
}
