package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"

	"github.com/Sternrassler/altered-tcg-client/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// DefaultPageSize is the page size used when the caller passes a non-positive one.
const DefaultPageSize = 108

var (
	pagesFetchedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "altered_pages_fetched_total",
		Help: "Total number of collection pages fetched",
	})

	itemsFetchedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "altered_page_items_fetched_total",
		Help: "Total number of collection items received across all pages",
	})
)

// PageFetcher is implemented by the API client for single-page fetching.
type PageFetcher interface {
	// FetchPage fetches one page and returns its raw members.
	FetchPage(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error)
}

// Items returns a lazy sequence of every item of the collection at path,
// decoded as T, in server order.
//
// The caller's query is never modified; page and itemsPerPage are set on a copy.
func Items[T any](ctx context.Context, fetcher PageFetcher, path string, query url.Values, pageSize int) iter.Seq2[T, error] {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	return func(yield func(T, error) bool) {
		var zero T
		logger := log.With().Str("component", "paginator").Str("path", path).Logger()

		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			pageQuery := cloneQuery(query)
			pageQuery.Set("page", strconv.Itoa(page))
			pageQuery.Set("itemsPerPage", strconv.Itoa(pageSize))

			members, err := fetcher.FetchPage(ctx, path, pageQuery)
			if err != nil {
				yield(zero, fmt.Errorf("fetch %s page %d: %w", path, page, err))
				return
			}

			pagesFetchedTotal.Inc()
			itemsFetchedTotal.Add(float64(len(members)))
			logger.Debug().
				Int("page", page).
				Int("items", len(members)).
				Msg("Fetched page")

			if len(members) == 0 {
				return
			}

			for i, raw := range members {
				var item T
				if err := json.Unmarshal(raw, &item); err != nil {
					yield(zero, fmt.Errorf("decode %s page %d item %d: %w", path, page, i, err))
					return
				}
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

func cloneQuery(query url.Values) url.Values {
	clone := make(url.Values, len(query)+2)
	for key, values := range query {
		clone[key] = append([]string(nil), values...)
	}
	return clone
}
