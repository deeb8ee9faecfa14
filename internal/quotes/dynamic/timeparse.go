package dynamic

import (
	"errors"
	"strings"
	"time"
)

// DefaultTimeLayouts are tried in order against column 0 of a data line.
var DefaultTimeLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"20060102",
}

var errNoLayout = errors.New("no layout matched")

func parseTime(token string, layouts []string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(token)
	if s == "" {
		return time.Time{}, errors.New("empty token")
	}
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, errNoLayout
}
