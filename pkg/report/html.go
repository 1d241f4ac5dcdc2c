package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; background: #f7f7f7; }
.grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(220px, 1fr)); gap: 1rem; }
.card { background: #fff; border-radius: 8px; padding: 0.75rem; box-shadow: 0 1px 3px rgba(0,0,0,.15); }
.card img { width: 100%; border-radius: 4px; }
.card h2 { font-size: 1rem; margin: 0.5rem 0 0.25rem; }
.meta { color: #555; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">{{len .Cards}} cards</p>
<div class="grid">
{{- range .Cards}}
<div class="card" data-id="{{.ID}}">
<a href="{{.DetailURL}}" target="_blank" rel="noopener">{{if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Name}}" loading="lazy">{{end}}</a>
<h2>{{.Name}}</h2>
<div class="meta">{{.Reference}}</div>
<div class="meta">Price: {{.Price}}</div>
<div class="meta">Quantity: {{.Quantity}}</div>
</div>
{{- end}}
</div>
</body>
</html>
`

var pageTemplate = template.Must(template.New("report").Parse(htmlTemplate))

type htmlCard struct {
	ID        string
	DetailURL string
	ImageURL  string
	Reference string
	Name      string
	Price     string
	Quantity  string
}

type htmlPage struct {
	Title string
	Cards []htmlCard
}

func newHTMLCard(f Fields) htmlCard {
	card := htmlCard{
		ID:        f.ID,
		DetailURL: f.DetailURL,
		ImageURL:  f.ImageURL,
		Reference: f.Reference,
		Name:      f.Name,
		Price:     "N/A",
		Quantity:  "0",
	}
	if card.DetailURL == "" {
		card.DetailURL = "#"
	}
	if card.Reference == "" {
		card.Reference = "Unknown"
	}
	switch {
	case f.Price != nil:
		card.Price = f.Price.String()
	case f.LowerPrice != nil:
		card.Price = f.LowerPrice.String()
	}
	if f.Quantity != nil {
		card.Quantity = strconv.Itoa(*f.Quantity)
	}
	return card
}

// HTMLReport renders all items into one HTML document.
type HTMLReport[T Item] struct {
	name       string
	path       string
	itemsCount atomic.Int64
}

// NewHTML creates an HTML report under the configured base directory.
func NewHTML[T Item](name string, opts Options) *HTMLReport[T] {
	name, path := resolvePath(name, opts, string(TypeHTML))
	return &HTMLReport[T]{name: name, path: path}
}

// Name implements Report.
func (r *HTMLReport[T]) Name() string { return r.name }

// Path implements Report.
func (r *HTMLReport[T]) Path() string { return r.path }

// ItemsCount implements Report.
func (r *HTMLReport[T]) ItemsCount() int { return int(r.itemsCount.Load()) }

// Write materializes items, renders the document, and atomically replaces
// the file. On error the previous file and count are left untouched.
func (r *HTMLReport[T]) Write(ctx context.Context, items iter.Seq2[T, error]) error {
	page := htmlPage{Title: r.name, Cards: []htmlCard{}}
	for item, err := range items {
		if err != nil {
			return fmt.Errorf("collect %s items: %w", r.name, err)
		}
		page.Cards = append(page.Cards, newHTMLCard(item.ReportFields()))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return fmt.Errorf("render %s: %w", r.name, err)
	}
	if err := writeFileAtomic(r.path, buf.Bytes()); err != nil {
		return err
	}

	r.itemsCount.Store(int64(len(page.Cards)))
	itemsWrittenTotal.WithLabelValues(string(TypeHTML)).Add(float64(len(page.Cards)))
	reportsWrittenTotal.WithLabelValues(string(TypeHTML)).Inc()

	log.Info().
		Str("component", "report").
		Str("path", r.path).
		Int("items", len(page.Cards)).
		Msg("HTML report written")
	return nil
}

// Remove implements Report.
func (r *HTMLReport[T]) Remove() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", r.path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
