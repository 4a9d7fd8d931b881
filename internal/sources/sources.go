package sources

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"retag/internal/aggregate"
	"retag/internal/logging"
)

// Query carries the identifying fields a source matches against.
type Query struct {
	Artist string
	Title  string
	Album  string
	Path   string
}

// Source produces candidate metadata for a query. Implementations must
// honor context cancellation.
type Source interface {
	Name() string
	Query(ctx context.Context, q Query) ([]aggregate.SourceResult, error)
}

// QueryAll fans the query out to every source concurrently, bounding
// each with the per-source timeout. A failing source contributes no
// results and a warning; it never fails the whole lookup. Results come
// back grouped in source order so repeated runs aggregate identically.
func QueryAll(ctx context.Context, srcs []Source, q Query, timeout time.Duration, logger *slog.Logger) []aggregate.SourceResult {
	if logger == nil {
		logger = logging.NewNop()
	}
	buckets := make([][]aggregate.SourceResult, len(srcs))
	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			queryCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				queryCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			results, err := src.Query(queryCtx, q)
			if err != nil {
				logger.Warn("source query failed",
					logging.String(logging.FieldSource, src.Name()),
					logging.Error(err))
				return
			}
			buckets[i] = results
		}(i, src)
	}
	wg.Wait()

	var all []aggregate.SourceResult
	for _, bucket := range buckets {
		all = append(all, bucket...)
	}
	return all
}
