package stream

import (
	"iter"
)

// Filter yields the items for which keep returns true. It never ends the
// stream early on its own.
func Filter[T any](seq iter.Seq2[T, error], keep func(T) bool) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range seq {
			if err != nil {
				yield(item, err)
				return
			}
			if !keep(item) {
				continue
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// TakeWhile yields items while cond holds and stops pulling from seq at the
// first item for which it does not. The result is a prefix of seq.
func TakeWhile[T any](seq iter.Seq2[T, error], cond func(T) bool) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range seq {
			if err != nil {
				yield(item, err)
				return
			}
			if !cond(item) {
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Take yields at most n items. With n <= 0 the upstream is not pulled at all.
func Take[T any](seq iter.Seq2[T, error], n int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if n <= 0 {
			return
		}
		count := 0
		for item, err := range seq {
			if err != nil {
				yield(item, err)
				return
			}
			if !yield(item, nil) {
				return
			}
			count++
			if count >= n {
				return
			}
		}
	}
}

// FromSlice adapts a slice to a sequence without errors.
func FromSlice[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice. On error it returns the items gathered so far.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}
