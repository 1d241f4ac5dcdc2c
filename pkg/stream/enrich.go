package stream

import (
	"context"
	"iter"
	"sync"

	"github.com/Sternrassler/altered-tcg-client/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// DefaultWidth is the number of detail fetches in flight per batch.
const DefaultWidth = 4

var (
	enrichedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "altered_enrichment_succeeded_total",
		Help: "Total number of items enriched with a detail fetch",
	})

	droppedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "altered_enrichment_dropped_total",
		Help: "Total number of items dropped because their detail fetch failed",
	})
)

// FetchFunc loads the detail record for one upstream item.
type FetchFunc[S, D any] func(ctx context.Context, item S) (D, error)

// Enrich pulls seq in batches of width items, runs fetch for every item of a
// batch concurrently, waits for the whole batch, and yields the successful
// results in input order. At most width fetches are in flight at any time.
//
// A failed fetch is logged at debug level and its item is left out; it never
// stops the stream. Upstream errors and context cancellation do.
func Enrich[S, D any](ctx context.Context, seq iter.Seq2[S, error], width int, fetch FetchFunc[S, D]) iter.Seq2[D, error] {
	if width < 1 {
		width = DefaultWidth
	}

	return func(yield func(D, error) bool) {
		var zero D
		logger := log.With().Str("component", "enrich").Logger()

		for batch, err := range Batch(seq, width) {
			if err != nil {
				yield(zero, err)
				return
			}

			results := make([]D, len(batch))
			errs := make([]error, len(batch))

			var wg sync.WaitGroup
			for i, item := range batch {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results[i], errs[i] = fetch(ctx, item)
				}()
			}
			wg.Wait()

			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			for i := range batch {
				if errs[i] != nil {
					droppedTotal.Inc()
					logger.Debug().
						Err(errs[i]).
						Int("batch_index", i).
						Msg("Dropping item after failed detail fetch")
					continue
				}
				enrichedTotal.Inc()
				if !yield(results[i], nil) {
					return
				}
			}
		}
	}
}
