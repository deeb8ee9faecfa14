package mdsource

import (
	"context"

	"quantfeed.com/internal/quotes/dynamic"
)

// Source is one pluggable data stream.
// Run performs a single fetch cycle: it blocks until every record of the
// cycle has been sent to out, ctx is done, or the fetch fails.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- *dynamic.Record) error
}
