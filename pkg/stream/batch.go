// Package stream holds the lazy pipeline stages that sit between the
// paginator and the report sinks: batching, bounded-concurrency enrichment,
// and filtering. Every stage consumes and produces iter.Seq2[T, error]; an
// upstream error is passed through once and ends the sequence.
package stream

import (
	"iter"
)

// Batch groups seq into consecutive slices of size items. The last slice may
// be shorter. Order is preserved and an empty upstream yields no batch.
// A size below 1 is treated as 1.
//
// If the upstream fails, the items buffered so far are emitted first, then the error.
func Batch[T any](seq iter.Seq2[T, error], size int) iter.Seq2[[]T, error] {
	if size < 1 {
		size = 1
	}

	return func(yield func([]T, error) bool) {
		batch := make([]T, 0, size)
		for item, err := range seq {
			if err != nil {
				if len(batch) > 0 && !yield(batch, nil) {
					return
				}
				yield(nil, err)
				return
			}

			batch = append(batch, item)
			if len(batch) == size {
				if !yield(batch, nil) {
					return
				}
				batch = make([]T, 0, size)
			}
		}
		if len(batch) > 0 {
			yield(batch, nil)
		}
	}
}
