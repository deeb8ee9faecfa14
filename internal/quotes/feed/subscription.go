package feed

import (
	"fmt"
	"strings"
)

// Mode selects between the latest data and a date-bounded history.
type Mode uint8

const (
	ModeLive Mode = iota + 1
	ModeBacktest
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeBacktest:
		return "backtest"
	default:
		return "unknown"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live":
		return ModeLive, nil
	case "backtest", "historical":
		return ModeBacktest, nil
	default:
		return 0, fmt.Errorf("unknown feed mode %q", s)
	}
}

type Resolution uint8

const (
	ResolutionTick Resolution = iota + 1
	ResolutionSecond
	ResolutionMinute
	ResolutionHour
	ResolutionDaily
)

func (r Resolution) String() string {
	switch r {
	case ResolutionTick:
		return "tick"
	case ResolutionSecond:
		return "second"
	case ResolutionMinute:
		return "minute"
	case ResolutionHour:
		return "hour"
	case ResolutionDaily:
		return "daily"
	default:
		return "unknown"
	}
}

// ParseResolution accepts the names above; an empty string means daily,
// which is what tabular vendor datasets publish.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tick":
		return ResolutionTick, nil
	case "second", "1s":
		return ResolutionSecond, nil
	case "minute", "1m":
		return ResolutionMinute, nil
	case "hour", "1h":
		return ResolutionHour, nil
	case "daily", "day", "1d", "":
		return ResolutionDaily, nil
	default:
		return 0, fmt.Errorf("unknown resolution %q", s)
	}
}

// Subscription describes one data stream the feed pulls.
type Subscription struct {
	Symbol     string
	Market     string
	Resolution Resolution

	// PrimaryField names the column used as the record's scalar value.
	// Empty picks the last numeric column of the first data row.
	PrimaryField string
}

func (s Subscription) String() string {
	return fmt.Sprintf("%s/%s/%s", s.Market, s.Symbol, s.Resolution)
}
