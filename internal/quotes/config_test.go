package quotes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quantfeed.com/internal/quotes/datasource/quandl"
	"quantfeed.com/internal/quotes/feed"
	"quantfeed.com/pkg/config"
	"quantfeed.com/pkg/xerr"
)

func TestCfg_Defaults(t *testing.T) {
	cfg := &Cfg{Subscriptions: []Subscription{{Symbol: "AAPL"}}}
	require.NoError(t, cfg.Validate())

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, feed.ModeLive, mode)
	assert.Equal(t, "@every 1m", cfg.Schedule())

	now := time.Date(2015, 1, 2, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	d, err := cfg.Date(now)
	require.NoError(t, err)
	assert.True(t, time.Date(2015, 1, 3, 0, 0, 0, 0, time.UTC).Equal(d))

	assert.Equal(t, quandl.NewLocator(), cfg.Locator())
}

func TestCfg_Locator(t *testing.T) {
	cfg := &Cfg{Feed: Feed{BaseURL: "http://vendor/api", Database: "FRED", LookbackDays: 30, APIKey: "k"}}
	loc := cfg.Locator()
	assert.Equal(t, "http://vendor/api", loc.BaseURL)
	assert.Equal(t, "FRED", loc.Database)
	assert.Equal(t, 30*24*time.Hour, loc.Lookback)
	assert.Equal(t, "k", loc.APIKey)
}

func TestCfg_Subs(t *testing.T) {
	cfg := &Cfg{Subscriptions: []Subscription{
		{Symbol: " aapl ", Market: "usa", Primary: "Adj. Close"},
		{Symbol: "FRED/GDP", Resolution: "1d"},
	}}
	subs, err := cfg.Subs()
	require.NoError(t, err)
	assert.Equal(t, []feed.Subscription{
		{Symbol: "aapl", Market: "usa", Resolution: feed.ResolutionDaily, PrimaryField: "Adj. Close"},
		{Symbol: "FRED/GDP", Resolution: feed.ResolutionDaily},
	}, subs)
}

func TestCfg_Invalid(t *testing.T) {
	cases := map[string]*Cfg{
		"no subscriptions": {},
		"empty symbol":     {Subscriptions: []Subscription{{Symbol: " "}}},
		"duplicate symbol": {Subscriptions: []Subscription{{Symbol: "AAPL"}, {Symbol: "aapl"}}},
		"bad resolution":   {Subscriptions: []Subscription{{Symbol: "AAPL", Resolution: "weekly"}}},
		"bad mode":         {Feed: Feed{Mode: "paper"}, Subscriptions: []Subscription{{Symbol: "AAPL"}}},
		"bad date":         {Feed: Feed{Date: "01/02/2015"}, Subscriptions: []Subscription{{Symbol: "AAPL"}}},
		"negative rate":    {Feed: Feed{RateLimit: -1}, Subscriptions: []Subscription{{Symbol: "AAPL"}}},
		"bad broker":       {Broker: Broker{Type: "kafka"}, Subscriptions: []Subscription{{Symbol: "AAPL"}}},
		"nats without url": {Broker: Broker{Type: "nats"}, Subscriptions: []Subscription{{Symbol: "AAPL"}}},
		"influx no bucket": {Influx: Influx{Enabled: true}, Subscriptions: []Subscription{{Symbol: "AAPL"}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, xerr.Config, xerr.CodeOf(err))
		})
	}
}

func TestCfg_SampleFile(t *testing.T) {
	var cfg Cfg
	_, err := config.LoadFile("feed-service", "../../config/feed-service.yaml", &cfg)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "feed-service", cfg.Name)
	assert.Equal(t, 30*time.Second, cfg.Feed.Timeout)
	assert.Equal(t, "nats", cfg.Broker.Type)
	assert.Equal(t, 20, cfg.Broker.Redis.PoolSize)
	assert.Equal(t, "feed", cfg.Influx.Config.Bucket)
	assert.Equal(t, time.Second, cfg.Influx.Config.Flush)

	subs, err := cfg.Subs()
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "Close", subs[0].PrimaryField)
}
