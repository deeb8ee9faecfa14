package influxsink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
	"quantfeed.com/internal/quotes/dynamic"
	"quantfeed.com/internal/quotes/feed"
	"quantfeed.com/pkg/logger"
	"quantfeed.com/pkg/metrics"
)

type Config struct {
	URL         string        `mapstructure:"url"`
	Token       string        `mapstructure:"token"`
	Org         string        `mapstructure:"org"`
	Bucket      string        `mapstructure:"bucket"`
	Measurement string        `mapstructure:"measurement"`
	BatchSize   uint          `mapstructure:"batch_size"`
	Flush       time.Duration `mapstructure:"flush_interval"`
	UseGzip     bool          `mapstructure:"use_gzip"`
}

type Sink struct {
	client      influxdb2.Client
	write       api.WriteAPI
	measurement string
	tags        map[string]map[string]string // symbol -> static tags
}

func New(cfg Config, subs []feed.Subscription) *Sink {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2000
	}
	if cfg.Flush == 0 {
		cfg.Flush = time.Second
	}
	if cfg.Measurement == "" {
		cfg.Measurement = "dataset"
	}

	opt := influxdb2.DefaultOptions().
		SetBatchSize(cfg.BatchSize).
		SetFlushInterval(uint(cfg.Flush.Milliseconds())).
		SetUseGZip(cfg.UseGzip)

	c := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opt)
	w := c.WriteAPI(cfg.Org, cfg.Bucket)

	// Errors() must be drained or the async writer blocks
	go func() {
		for err := range w.Errors() {
			metrics.SinkWriteErrors.Inc()
			logger.Error(context.Background(), "influx write failed", zap.Error(err))
		}
	}()

	return &Sink{
		client:      c,
		write:       w,
		measurement: cfg.Measurement,
		tags:        TagsBySymbol(subs),
	}
}

// Close flushes pending points.
func (s *Sink) Close() {
	s.client.Close()
}

func (s *Sink) WriteRecord(r *dynamic.Record) {
	s.write.WritePoint(Point(s.measurement, s.tags[r.Symbol()], r))
}

func (s *Sink) Run(ctx context.Context, in <-chan *dynamic.Record) error {
	for {
		select {
		case <-ctx.Done():
			s.write.Flush()
			return ctx.Err()
		case r, ok := <-in:
			if !ok {
				s.write.Flush()
				return nil
			}
			s.WriteRecord(r)
		}
	}
}

// TagsBySymbol precomputes the tag set of every subscription.
func TagsBySymbol(subs []feed.Subscription) map[string]map[string]string {
	out := make(map[string]map[string]string, len(subs))
	for _, sub := range subs {
		out[sub.Symbol] = map[string]string{
			"symbol":     sub.Symbol,
			"market":     sub.Market,
			"resolution": sub.Resolution.String(),
		}
	}
	return out
}

// Point maps a record to a line-protocol point. Numbers become float
// fields, text becomes string fields; column 0 is the point time.
func Point(measurement string, tags map[string]string, r *dynamic.Record) *write.Point {
	if tags == nil {
		tags = map[string]string{"symbol": r.Symbol()}
	}
	schema := r.Schema()
	fields := make(map[string]interface{}, r.Len())
	for i := 1; i < r.Len(); i++ {
		v := r.At(i)
		switch v.Kind() {
		case dynamic.KindNumber:
			f, _ := v.Float()
			fields[schema.Name(i)] = f
		case dynamic.KindText:
			s, _ := v.Text()
			fields[schema.Name(i)] = s
		case dynamic.KindTimestamp:
			ts, _ := v.Time()
			fields[schema.Name(i)] = ts.UnixNano()
		}
	}
	return write.NewPoint(measurement, tags, fields, r.Timestamp())
}

func (cfg Config) String() string {
	return fmt.Sprintf("url=%s org=%s bucket=%s measurement=%s batch=%d flush=%s gzip=%v",
		cfg.URL, cfg.Org, cfg.Bucket, cfg.Measurement, cfg.BatchSize, cfg.Flush, cfg.UseGzip)
}
