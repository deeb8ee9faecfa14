package mdsource

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"quantfeed.com/internal/quotes/dynamic"
	"quantfeed.com/pkg/logger"
	"quantfeed.com/pkg/trace"
)

// Runner drives fetch cycles over a fixed set of sources.
// Sources run concurrently; each owns its ingestor so nothing is shared.
type Runner struct {
	sources []Source

	// Out carries the records of every source; the consumer owns draining it.
	Out chan *dynamic.Record

	// Err receives source failures, named by source. Full means dropped.
	Err chan error
}

func NewRunner(sources ...Source) *Runner {
	return &Runner{
		sources: sources,
		Out:     make(chan *dynamic.Record, 64_000),
		Err:     make(chan error, 128),
	}
}

func (r *Runner) Sources() []Source { return r.sources }

// RunCycle runs one cycle of every source and waits for all of them.
// A failing source does not stop the others; its error goes to Err and
// the first one is returned.
func (r *Runner) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	ctx = logger.WithTrace(ctx, cycleID)
	ctx, span := trace.Tracer().Start(ctx, "feed.cycle", oteltrace.WithAttributes(
		attribute.String("cycle.id", cycleID),
		attribute.Int("cycle.sources", len(r.sources)),
	))
	defer span.End()

	var g errgroup.Group
	for _, s := range r.sources {
		src := s
		g.Go(func() error {
			err := src.Run(ctx, r.Out)
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			err = wrapErr(src.Name(), err)
			select {
			case r.Err <- err:
			default:
			}
			return err
		})
	}
	err := g.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Close releases the consumers of Out and Err. Call it once no cycle is running.
func (r *Runner) Close() {
	close(r.Out)
	close(r.Err)
}

type namedErr struct {
	src string
	err error
}

func (e namedErr) Error() string          { return e.src + ": " + e.err.Error() }
func (e namedErr) Unwrap() error          { return e.err }
func wrapErr(src string, err error) error { return namedErr{src: src, err: err} }
