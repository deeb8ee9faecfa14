package quotes

import (
	"fmt"
	"strings"
	"time"

	"quantfeed.com/internal/quotes/datasource/quandl"
	"quantfeed.com/internal/quotes/feed"
	"quantfeed.com/internal/quotes/storage/influxsink"
	"quantfeed.com/pkg/trace"
	"quantfeed.com/pkg/xerr"
	"quantfeed.com/pkg/xredis"
)

const (
	dateLayout      = "2006-01-02"
	defaultSchedule = "@every 1m"
)

type Cfg struct {
	Name          string         `yaml:"name" mapstructure:"name"`
	MetricsAddr   string         `yaml:"metrics_addr" mapstructure:"metrics_addr"`
	Log           Log            `yaml:"log" mapstructure:"log"`
	Feed          Feed           `yaml:"feed" mapstructure:"feed"`
	Subscriptions []Subscription `yaml:"subscriptions" mapstructure:"subscriptions"`
	Broker        Broker         `yaml:"broker" mapstructure:"broker"`
	Influx        Influx         `yaml:"influx" mapstructure:"influx"`
	Trace         trace.Config   `yaml:"trace" mapstructure:"trace"`
}

type Log struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

type Feed struct {
	Mode         string        `yaml:"mode" mapstructure:"mode"`
	Date         string        `yaml:"date" mapstructure:"date"`         // backtest end date, YYYY-MM-DD
	Schedule     string        `yaml:"schedule" mapstructure:"schedule"` // cron spec for live cycles
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	Database     string        `yaml:"database" mapstructure:"database"`
	LookbackDays int           `yaml:"lookback_days" mapstructure:"lookback_days"`
	APIKey       string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit    float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second per host, 0 = unlimited
	Burst        int           `yaml:"burst" mapstructure:"burst"`
}

type Subscription struct {
	Symbol     string `yaml:"symbol" mapstructure:"symbol"`
	Market     string `yaml:"market" mapstructure:"market"`
	Resolution string `yaml:"resolution" mapstructure:"resolution"`
	Primary    string `yaml:"primary" mapstructure:"primary"`
}

type Broker struct {
	Type    string        `yaml:"type" mapstructure:"type"` // mem, nats, redis or none
	NatsURL string        `yaml:"nats_url" mapstructure:"nats_url"`
	Redis   xredis.Config `yaml:"redis" mapstructure:"redis"`
}

type Influx struct {
	Enabled bool              `yaml:"enabled" mapstructure:"enabled"`
	Config  influxsink.Config `yaml:",inline" mapstructure:",squash"`
}

// Clone copies c, subscriptions included.
func (c *Cfg) Clone() *Cfg {
	out := *c
	out.Subscriptions = append([]Subscription(nil), c.Subscriptions...)
	return &out
}

// Validate checks everything the service needs before it starts fetching.
func (c *Cfg) Validate() error {
	if _, err := c.Mode(); err != nil {
		return err
	}
	if _, err := c.Date(time.Now()); err != nil {
		return err
	}
	if _, err := c.Subs(); err != nil {
		return err
	}
	if c.Feed.RateLimit < 0 || c.Feed.Burst < 0 {
		return xerr.New(xerr.Config, "feed.rate_limit and feed.burst must not be negative")
	}
	switch strings.ToLower(c.Broker.Type) {
	case "", "none", "mem":
	case "nats":
		if c.Broker.NatsURL == "" {
			return xerr.New(xerr.Config, "broker.nats_url is required for nats")
		}
	case "redis":
		if c.Broker.Redis.Addr == "" {
			return xerr.New(xerr.Config, "broker.redis.addr is required for redis")
		}
	default:
		return xerr.Newf(xerr.Config, "unknown broker type %q", c.Broker.Type)
	}
	if c.Influx.Enabled && (c.Influx.Config.URL == "" || c.Influx.Config.Bucket == "") {
		return xerr.New(xerr.Config, "influx.url and influx.bucket are required when influx is enabled")
	}
	return nil
}

func (c *Cfg) Mode() (feed.Mode, error) {
	if c.Feed.Mode == "" {
		return feed.ModeLive, nil
	}
	m, err := feed.ParseMode(c.Feed.Mode)
	if err != nil {
		return 0, xerr.Wrap(err, xerr.Config, "feed.mode")
	}
	return m, nil
}

// Date is the configured backtest date, or now's UTC date when none is set.
func (c *Cfg) Date(now time.Time) (time.Time, error) {
	if c.Feed.Date == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.ParseInLocation(dateLayout, c.Feed.Date, time.UTC)
	if err != nil {
		return time.Time{}, xerr.Wrap(err, xerr.Config, "feed.date")
	}
	return t, nil
}

func (c *Cfg) Schedule() string {
	if c.Feed.Schedule == "" {
		return defaultSchedule
	}
	return c.Feed.Schedule
}

func (c *Cfg) Locator() quandl.Locator {
	loc := quandl.NewLocator()
	if c.Feed.BaseURL != "" {
		loc.BaseURL = c.Feed.BaseURL
	}
	if c.Feed.Database != "" {
		loc.Database = c.Feed.Database
	}
	if c.Feed.LookbackDays > 0 {
		loc.Lookback = time.Duration(c.Feed.LookbackDays) * 24 * time.Hour
	}
	loc.APIKey = c.Feed.APIKey
	return loc
}

// Subs converts the configured subscriptions. Duplicated symbols are rejected
// since each symbol owns exactly one ingestor.
func (c *Cfg) Subs() ([]feed.Subscription, error) {
	if len(c.Subscriptions) == 0 {
		return nil, xerr.New(xerr.Config, "no subscriptions configured")
	}
	seen := make(map[string]struct{}, len(c.Subscriptions))
	out := make([]feed.Subscription, 0, len(c.Subscriptions))
	for i, s := range c.Subscriptions {
		symbol := strings.TrimSpace(s.Symbol)
		if symbol == "" {
			return nil, xerr.Newf(xerr.Config, "subscriptions[%d]: empty symbol", i)
		}
		key := strings.ToUpper(symbol)
		if _, dup := seen[key]; dup {
			return nil, xerr.Newf(xerr.Config, "subscriptions[%d]: duplicate symbol %s", i, symbol)
		}
		seen[key] = struct{}{}

		res, err := feed.ParseResolution(s.Resolution)
		if err != nil {
			return nil, xerr.Wrap(err, xerr.Config, fmt.Sprintf("subscriptions[%d]", i))
		}
		out = append(out, feed.Subscription{
			Symbol:       symbol,
			Market:       s.Market,
			Resolution:   res,
			PrimaryField: s.Primary,
		})
	}
	return out, nil
}
