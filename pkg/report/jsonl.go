package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// maxLineSize bounds a single JSONL line accepted by Load.
const maxLineSize = 1 << 20

// JSONLReport streams items to disk, one JSON document per line.
type JSONLReport[T any] struct {
	name       string
	path       string
	itemsCount atomic.Int64
}

// NewJSONL creates a JSONL report under the configured base directory.
func NewJSONL[T any](name string, opts Options) *JSONLReport[T] {
	name, path := resolvePath(name, opts, string(TypeJSONL))
	return &JSONLReport[T]{name: name, path: path}
}

// Name implements Report.
func (r *JSONLReport[T]) Name() string { return r.name }

// Path implements Report.
func (r *JSONLReport[T]) Path() string { return r.path }

// ItemsCount implements Report. During a Write it reflects the lines
// written so far.
func (r *JSONLReport[T]) ItemsCount() int { return int(r.itemsCount.Load()) }

// Write truncates the file and appends each item as it arrives. On an
// upstream error the lines already written stay on disk and the count
// matches them.
func (r *JSONLReport[T]) Write(ctx context.Context, items iter.Seq2[T, error]) (err error) {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}
	w := bufio.NewWriter(f)
	// Flush on every exit so counted lines reach the file even when the
	// upstream fails.
	defer func() {
		if ferr := w.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush %s: %w", r.path, ferr)
		}
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", r.path, cerr)
		}
	}()

	r.itemsCount.Store(0)
	counter := itemsWrittenTotal.WithLabelValues(string(TypeJSONL))

	for item, err := range items {
		if err != nil {
			return fmt.Errorf("collect %s items: %w", r.name, err)
		}
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode %s item %d: %w", r.name, r.itemsCount.Load(), err)
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("write %s: %w", r.path, err)
		}
		r.itemsCount.Add(1)
		counter.Inc()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	reportsWrittenTotal.WithLabelValues(string(TypeJSONL)).Inc()
	log.Info().
		Str("component", "report").
		Str("path", r.path).
		Int("items", r.ItemsCount()).
		Msg("JSONL report written")
	return nil
}

// Load reads the file back line by line. Blank lines are skipped.
func (r *JSONLReport[T]) Load(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		f, err := os.Open(r.path)
		if err != nil {
			yield(zero, fmt.Errorf("open %s: %w", r.path, err))
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		line := 0
		for scanner.Scan() {
			line++
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}
			var item T
			if err := json.Unmarshal(raw, &item); err != nil {
				yield(zero, fmt.Errorf("decode %s line %d: %w", r.path, line, err))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(zero, fmt.Errorf("scan %s: %w", r.path, err))
		}
	}
}

// Remove deletes the file, then the containing directory if it is empty.
func (r *JSONLReport[T]) Remove() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", r.path, err)
	}

	dir := filepath.Dir(r.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}
	if len(entries) > 0 {
		return nil
	}
	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}
