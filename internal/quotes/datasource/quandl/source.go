package quandl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"quantfeed.com/internal/quotes/dynamic"
	"quantfeed.com/internal/quotes/feed"
	"quantfeed.com/internal/quotes/mdsource"
	"quantfeed.com/pkg/logger"
	"quantfeed.com/pkg/metrics"
	"quantfeed.com/pkg/ratelimit"
	"quantfeed.com/pkg/trace"
	"quantfeed.com/pkg/xerr"
)

// Source pulls one Quandl dataset. The ingestor lives as long as the Source,
// so the schema found in the first response holds for every later cycle.
type Source struct {
	Sub     feed.Subscription
	Mode    feed.Mode
	Locator Locator
	Client  *http.Client

	// Date returns the date of the next cycle. Backtests pin it; live
	// feeds leave it to time.Now.
	Date func() time.Time

	MaxLineBytes int

	// Limiter, when set, paces requests per vendor host.
	Limiter *ratelimit.Store

	in *dynamic.Ingestor
}

func NewSource(sub feed.Subscription, mode feed.Mode, loc Locator) (*Source, error) {
	if _, err := loc.Code(sub.Symbol); err != nil {
		return nil, err
	}
	in, err := dynamic.NewIngestor(
		dynamic.WithSymbol(sub.Symbol),
		dynamic.WithPrimaryField(sub.PrimaryField),
	)
	if err != nil {
		return nil, xerr.Wrap(err, xerr.Config, "new ingestor")
	}
	return &Source{
		Sub:          sub,
		Mode:         mode,
		Locator:      loc,
		Client:       &http.Client{Timeout: 30 * time.Second},
		Date:         time.Now,
		MaxLineBytes: 1 << 20,
		in:           in,
	}, nil
}

func (s *Source) Name() string { return "quandl:" + s.Sub.Symbol }

// Schema is nil until the first response has been read.
func (s *Source) Schema() *dynamic.Schema { return s.in.Schema() }

func (s *Source) Run(ctx context.Context, out chan<- *dynamic.Record) (err error) {
	name := s.Name()
	start := time.Now()
	ctx, span := trace.Tracer().Start(ctx, "quandl.fetch", oteltrace.WithAttributes(
		attribute.String("feed.source", name),
		attribute.String("feed.mode", s.Mode.String()),
	))
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.FetchTotal.WithLabelValues(name, status).Inc()
		metrics.FetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	u, err := s.Locator.Resolve(s.Sub, s.Date(), s.Mode)
	if err != nil {
		return err
	}

	body, err := s.fetch(ctx, u)
	if err != nil {
		return err
	}
	defer body.Close()

	n, err := s.ingest(ctx, body, out)
	span.SetAttributes(attribute.Int("feed.records", n))
	if err != nil {
		return err
	}
	logger.Info(ctx, "fetch cycle done",
		zap.String("source", name),
		zap.String("mode", s.Mode.String()),
		zap.Int("records", n),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (s *Source) fetch(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, xerr.Wrap(err, xerr.Config, "build request")
	}
	req.Header.Set("Accept", "text/csv")

	if err := s.Limiter.Wait(ctx, req.URL.Host); err != nil {
		return nil, err
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, xerr.Wrap(err, xerr.Fetch, "get dataset")
	}
	if resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, xerr.Newf(xerr.Fetch, "got status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *Source) ingest(ctx context.Context, r io.Reader, out chan<- *dynamic.Record) (int, error) {
	name := s.Name()
	lines := metrics.LinesTotal.WithLabelValues(name)
	records := metrics.RecordsTotal.WithLabelValues(name)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), s.MaxLineBytes)

	var n, lineNo int
	for sc.Scan() {
		lineNo++
		lines.Inc()

		wasInit := s.in.Initialized()
		line := sc.Text()
		// every response starts with the header; after the first cycle
		// it is expected, not a bad row
		if wasInit && lineNo == 1 && s.in.MatchesHeader(line) {
			metrics.SkippedTotal.WithLabelValues(name, "repeated_header").Inc()
			continue
		}
		rec, err := s.in.Ingest(line)
		if err != nil {
			s.skip(ctx, lineNo, err)
			continue
		}
		if rec == nil {
			if !wasInit {
				s.onSchema(ctx)
			}
			continue
		}

		select {
		case out <- rec:
			n++
			records.Inc()
		case <-ctx.Done():
			return n, ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return n, xerr.Wrap(err, xerr.Fetch, fmt.Sprintf("read body at line %d", lineNo))
	}
	return n, nil
}

func (s *Source) onSchema(ctx context.Context) {
	schema := s.in.Schema()
	metrics.SchemaFields.WithLabelValues(s.Name()).Set(float64(schema.Len()))
	logger.Info(ctx, "schema discovered",
		zap.String("source", s.Name()),
		zap.Strings("fields", schema.Names()),
	)
	if s.Sub.PrimaryField != "" {
		if _, ok := schema.Index(dynamic.SanitizeName(s.Sub.PrimaryField, 0)); !ok {
			logger.Warn(ctx, "primary field not in schema, using last numeric column",
				zap.String("source", s.Name()),
				zap.String("primary", s.Sub.PrimaryField),
			)
		}
	}
}

func (s *Source) skip(ctx context.Context, lineNo int, err error) {
	reason := "other"
	switch {
	case errors.Is(err, dynamic.ErrRowShape):
		reason = "row_shape"
	case errors.Is(err, dynamic.ErrTimestamp):
		reason = "timestamp"
	case errors.Is(err, dynamic.ErrEmptyHeader):
		reason = "empty_header"
	}
	metrics.SkippedTotal.WithLabelValues(s.Name(), reason).Inc()
	logger.Debug(ctx, "line skipped",
		zap.String("source", s.Name()),
		zap.Int("line", lineNo),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

var _ mdsource.Source = (*Source)(nil)
