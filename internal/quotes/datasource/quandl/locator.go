package quandl

import (
	"net/url"
	"strings"
	"time"

	"quantfeed.com/internal/quotes/feed"
	"quantfeed.com/pkg/xerr"
)

const (
	DefaultBaseURL  = "https://www.quandl.com/api/v1"
	DefaultDatabase = "WIKI"
	DefaultLookback = 365 * 24 * time.Hour

	dateLayout = "2006-01-02"
)

// ErrConfig is returned by Resolve when the subscription names no dataset.
var ErrConfig = xerr.NewErrCode(xerr.Config)

// Locator builds dataset URLs for the Quandl V1 API.
// A configured Locator is read-only, so Resolve is safe for concurrent use.
type Locator struct {
	BaseURL  string
	Database string        // used when the symbol carries no "DB/" prefix
	Lookback time.Duration // backtest window ending at the requested date
	APIKey   string        // optional; sent as auth_token
}

func NewLocator() Locator {
	return Locator{
		BaseURL:  DefaultBaseURL,
		Database: DefaultDatabase,
		Lookback: DefaultLookback,
	}
}

// Code maps a symbol to its Quandl dataset code ("AAPL" -> "WIKI/AAPL").
func (l Locator) Code(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", xerr.New(xerr.Config, "empty symbol")
	}
	if strings.Contains(symbol, "/") {
		for _, seg := range strings.Split(symbol, "/") {
			if strings.TrimSpace(seg) == "" {
				return "", xerr.Newf(xerr.Config, "symbol %q has an empty dataset segment", symbol)
			}
		}
		return symbol, nil
	}
	db := strings.ToUpper(strings.TrimSpace(l.Database))
	if db == "" {
		db = DefaultDatabase
	}
	return db + "/" + symbol, nil
}

// Resolve returns the URL to fetch for sub on date.
//
// Backtest asks for the rows in [date-Lookback, date] in ascending order;
// Live asks for the single most recent row. The two never coincide.
func (l Locator) Resolve(sub feed.Subscription, date time.Time, mode feed.Mode) (string, error) {
	code, err := l.Code(sub.Symbol)
	if err != nil {
		return "", err
	}

	base := strings.TrimRight(l.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	segs := strings.Split(code, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	path := base + "/datasets/" + strings.Join(segs, "/") + ".csv"

	q := url.Values{}
	switch mode {
	case feed.ModeBacktest:
		lookback := l.Lookback
		if lookback <= 0 {
			lookback = DefaultLookback
		}
		// the caller's calendar day, whatever its zone
		y, m, d := date.Date()
		end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		q.Set("sort_order", "asc")
		q.Set("trim_start", end.Add(-lookback).Format(dateLayout))
		q.Set("trim_end", end.Format(dateLayout))
	case feed.ModeLive:
		q.Set("sort_order", "desc")
		q.Set("rows", "1")
	default:
		return "", xerr.Newf(xerr.Config, "unknown feed mode %d", mode)
	}
	if l.APIKey != "" {
		q.Set("auth_token", l.APIKey)
	}

	return path + "?" + q.Encode(), nil
}
