// Package report persists a lazy sequence of cards as a durable artifact:
// a self-contained HTML document or a newline-delimited JSON file.
//
// Each Write call produces a fresh file; data from two calls is never mixed.
// Concurrent Write calls on the same path are not synchronized here and must
// be serialized by the caller.
package report

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/altered-tcg-client/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Type selects the report format.
type Type string

const (
	// TypeHTML renders a self-contained HTML page.
	TypeHTML Type = "html"

	// TypeJSONL writes one JSON document per line.
	TypeJSONL Type = "jsonl"
)

// EnvVar selects the environment; "test" keeps reports under ./test-reports.
const EnvVar = "ALTERED_ENV"

// ErrUnsupportedType is returned for an unknown report type.
var ErrUnsupportedType = errors.New("unsupported report type")

var (
	itemsWrittenTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "altered_report_items_written_total",
		Help: "Total number of report items written by format",
	}, []string{"format"})

	reportsWrittenTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "altered_reports_written_total",
		Help: "Total number of completed report writes by format",
	}, []string{"format"})
)

// Fields are the display fields a report renders for one item.
// Empty strings and nil pointers select the format's fallbacks.
type Fields struct {
	ID         string
	DetailURL  string
	ImageURL   string
	Reference  string
	Name       string
	Price      *decimal.Decimal
	LowerPrice *decimal.Decimal
	Quantity   *int
}

// Item is implemented by anything a report can render.
type Item interface {
	ReportFields() Fields
}

// Report is a named, durable sink for a sequence of items.
type Report[T any] interface {
	// Name returns the report name (the file name without extension).
	Name() string

	// Path returns the artifact location.
	Path() string

	// ItemsCount returns the number of items written by the last Write.
	ItemsCount() int

	// Write consumes items and persists them, replacing any previous content.
	Write(ctx context.Context, items iter.Seq2[T, error]) error

	// Remove deletes the artifact. A missing artifact is not an error.
	Remove() error
}

// Options configure where reports are stored.
type Options struct {
	// BaseDir overrides the environment-derived base directory.
	BaseDir string
}

func (o Options) baseDir() string {
	if o.BaseDir != "" {
		return o.BaseDir
	}
	return DefaultBaseDir()
}

// New creates a report of the given type. An empty name is replaced by a
// generated one. An unknown type fails before any file system access.
func New[T Item](typ Type, name string, opts Options) (Report[T], error) {
	switch typ {
	case TypeHTML:
		return NewHTML[T](name, opts), nil
	case TypeJSONL:
		return NewJSONL[T](name, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
	}
}

// ParseType validates a report type selector.
func ParseType(raw string) (Type, error) {
	typ := Type(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Types() {
		if typ == known {
			return typ, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, raw)
}

// Types lists the supported report types.
func Types() []Type {
	return []Type{TypeHTML, TypeJSONL}
}

// GenerateName returns a unique report name: report-<unix ms>-<uuid>.
func GenerateName() string {
	return fmt.Sprintf("report-%d-%s", time.Now().UnixMilli(), uuid.NewString())
}

// DefaultBaseDir returns ./test-reports in the test environment and a
// dedicated directory under the system temp directory otherwise.
func DefaultBaseDir() string {
	if os.Getenv(EnvVar) == "test" {
		if wd, err := os.Getwd(); err == nil {
			return filepath.Join(wd, "test-reports")
		}
		return "test-reports"
	}
	return filepath.Join(os.TempDir(), "altered-reports")
}

func resolvePath(name string, opts Options, ext string) (string, string) {
	if name == "" {
		name = GenerateName()
	}
	return name, filepath.Join(opts.baseDir(), name+"."+ext)
}
