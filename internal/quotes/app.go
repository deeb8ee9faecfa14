package quotes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"quantfeed.com/internal/quotes/datasource/quandl"
	"quantfeed.com/internal/quotes/dynamic"
	"quantfeed.com/internal/quotes/feed"
	"quantfeed.com/internal/quotes/gateway"
	"quantfeed.com/internal/quotes/mdsource"
	"quantfeed.com/internal/quotes/storage/influxsink"
	"quantfeed.com/pkg/logger"
	"quantfeed.com/pkg/metrics"
	"quantfeed.com/pkg/ratelimit"
	"quantfeed.com/pkg/safe"
	"quantfeed.com/pkg/xredis"
)

const sinkBuffer = 4096

// App is the feed service: one Quandl source per subscription, a runner
// driving their cycles, and the broker/influx sinks fed from the runner.
type App struct {
	cfg  *Cfg
	mode feed.Mode
	date time.Time

	runner    *mdsource.Runner
	broker    gateway.Broker
	publisher *gateway.Publisher
	sink      *influxsink.Sink
	limiter   *ratelimit.Store

	// cycle is held while a cycle runs; the ingestors must never see
	// two cycles at once.
	cycle sync.Mutex

	dispatched chan struct{}
}

// NewApp builds the service from a private copy of cfg; later changes to
// cfg are not seen.
func NewApp(ctx context.Context, cfg *Cfg) (*App, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := cfg.Mode()
	date, _ := cfg.Date(time.Now())
	subs, _ := cfg.Subs()

	loc := cfg.Locator()
	limiter := ratelimit.NewStore(rate.Limit(cfg.Feed.RateLimit), cfg.Feed.Burst, 0)
	sources := make([]mdsource.Source, 0, len(subs))
	for _, sub := range subs {
		src, err := quandl.NewSource(sub, mode, loc)
		if err != nil {
			return nil, err
		}
		if cfg.Feed.Timeout > 0 {
			src.Client = &http.Client{Timeout: cfg.Feed.Timeout}
		}
		src.Limiter = limiter
		if mode == feed.ModeBacktest {
			src.Date = func() time.Time { return date }
		}
		sources = append(sources, src)
	}

	a := &App{
		cfg:        cfg,
		mode:       mode,
		date:       date,
		runner:     mdsource.NewRunner(sources...),
		limiter:    limiter,
		dispatched: make(chan struct{}),
	}

	broker, err := newBroker(ctx, cfg.Broker)
	if err != nil {
		return nil, err
	}
	if broker != nil {
		a.broker = broker
		a.publisher = gateway.NewPublisher(broker, strings.ToLower(cfg.Broker.Type))
	}
	if cfg.Influx.Enabled {
		a.sink = influxsink.New(cfg.Influx.Config, subs)
	}
	return a, nil
}

func newBroker(ctx context.Context, cfg Broker) (gateway.Broker, error) {
	switch strings.ToLower(cfg.Type) {
	case "mem":
		return gateway.NewMemBroker(), nil
	case "nats":
		return gateway.NewNatsBroker(cfg.NatsURL)
	case "redis":
		rdb, err := xredis.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		return gateway.NewRedisBroker(rdb), nil
	default:
		return nil, nil
	}
}

// Broker is nil when publishing is disabled.
func (a *App) Broker() gateway.Broker { return a.broker }

func (a *App) Mode() feed.Mode { return a.mode }

// Run blocks until the work of the configured mode is over: one cycle for a
// backtest, ctx cancellation for a live feed. Sinks are flushed on return.
func (a *App) Run(ctx context.Context) error {
	logger.Info(ctx, "feed starting",
		zap.String("mode", a.mode.String()),
		zap.String("date", a.date.Format(dateLayout)),
		zap.Int("sources", len(a.runner.Sources())),
		zap.Bool("publish", a.publisher != nil),
		zap.Bool("influx", a.sink != nil),
	)

	srv := a.serveMetrics(ctx)
	a.limiter.StartJanitor(ctx, time.Minute)
	safe.GoCtx(ctx, a.dispatch)

	var err error
	if a.mode == feed.ModeBacktest {
		_, err = a.RunCycle(ctx)
	} else {
		err = a.live(ctx)
	}

	a.runner.Close()
	<-a.dispatched
	a.shutdown(srv)
	return err
}

// RunCycle runs one cycle of every source. It reports false without doing
// anything when another cycle is still in progress.
func (a *App) RunCycle(ctx context.Context) (bool, error) {
	if !a.cycle.TryLock() {
		metrics.CyclesTotal.WithLabelValues(a.mode.String(), "skipped").Inc()
		logger.Warn(ctx, "previous cycle still running, skipping")
		return false, nil
	}
	defer a.cycle.Unlock()

	err := a.runner.RunCycle(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.CyclesTotal.WithLabelValues(a.mode.String(), status).Inc()
	return true, err
}

func (a *App) live(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(a.cfg.Schedule(), func() { a.cycleLogged(ctx) }); err != nil {
		return err
	}
	logger.Info(ctx, "live schedule registered", zap.String("schedule", a.cfg.Schedule()))

	a.cycleLogged(ctx)
	c.Start()
	<-ctx.Done()
	// wait for a cycle in flight before the runner is closed
	<-c.Stop().Done()
	return nil
}

func (a *App) cycleLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := a.RunCycle(ctx); err != nil && ctx.Err() == nil {
		logger.Warn(ctx, "live cycle finished with errors", zap.Error(err))
	}
}

// dispatch fans records out to one channel per sink, each drained by that
// sink's own loop, and logs the named source errors of the runner. It
// returns once the runner is closed and every sink loop has finished.
func (a *App) dispatch(ctx context.Context) {
	defer close(a.dispatched)

	// sink loops stop when their channel closes, not when ctx is done
	drainCtx := context.WithoutCancel(ctx)
	var (
		wg    sync.WaitGroup
		sinks []chan *dynamic.Record
	)
	attach := func(run func(context.Context, <-chan *dynamic.Record) error) {
		ch := make(chan *dynamic.Record, sinkBuffer)
		sinks = append(sinks, ch)
		wg.Add(1)
		safe.GoCtx(drainCtx, func(ctx context.Context) {
			defer wg.Done()
			_ = run(ctx, ch)
		})
	}
	if a.publisher != nil {
		attach(a.publisher.Run)
	}
	if a.sink != nil {
		attach(a.sink.Run)
	}
	defer func() {
		for _, ch := range sinks {
			close(ch)
		}
		wg.Wait()
	}()

	out, errs := a.runner.Out, a.runner.Err
	for out != nil || errs != nil {
		select {
		case r, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			for _, ch := range sinks {
				ch <- r
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Error(ctx, "source cycle failed", zap.Error(err))
		}
	}
}

func (a *App) serveMetrics(ctx context.Context) *http.Server {
	if a.cfg.MetricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
	safe.GoCtx(ctx, func(ctx context.Context) {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "metrics server error", zap.Error(err))
		}
	})
	return srv
}

func (a *App) shutdown(srv *http.Server) {
	ctx := context.Background()
	if a.sink != nil {
		a.sink.Close()
	}
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			logger.Warn(ctx, "broker close failed", zap.Error(err))
		}
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	logger.Info(ctx, "feed stopped")
}
