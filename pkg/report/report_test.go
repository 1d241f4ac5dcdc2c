package report

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

type testCard struct {
	ID         string           `json:"id"`
	Reference  string           `json:"reference,omitempty"`
	Name       string           `json:"name"`
	ImageURL   string           `json:"imageURL,omitempty"`
	DetailURL  string           `json:"detailURL,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	LowerPrice *decimal.Decimal `json:"lowerPrice,omitempty"`
	Quantity   *int             `json:"quantity,omitempty"`
}

func (c testCard) ReportFields() Fields {
	return Fields{
		ID:         c.ID,
		DetailURL:  c.DetailURL,
		ImageURL:   c.ImageURL,
		Reference:  c.Reference,
		Name:       c.Name,
		Price:      c.Price,
		LowerPrice: c.LowerPrice,
		Quantity:   c.Quantity,
	}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(n int) *int { return &n }

func seqOf(cards ...testCard) iter.Seq2[testCard, error] {
	return func(yield func(testCard, error) bool) {
		for _, c := range cards {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func failingSeq(err error, cards ...testCard) iter.Seq2[testCard, error] {
	return func(yield func(testCard, error) bool) {
		for _, c := range cards {
			if !yield(c, nil) {
				return
			}
		}
		yield(testCard{}, err)
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"html", TypeHTML, false},
		{"jsonl", TypeJSONL, false},
		{" JSONL ", TypeJSONL, false},
		{"csv", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedType) {
					t.Errorf("ParseType(%q) error = %v, want ErrUnsupportedType", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseType(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	html, err := New[testCard](TypeHTML, "bought-cards", Options{BaseDir: dir})
	if err != nil {
		t.Fatalf("New(html) error = %v", err)
	}
	if html.Name() != "bought-cards" || html.Path() != filepath.Join(dir, "bought-cards.html") {
		t.Errorf("html report = %q at %q", html.Name(), html.Path())
	}

	jsonl, err := New[testCard](TypeJSONL, "sold-cards", Options{BaseDir: dir})
	if err != nil {
		t.Fatalf("New(jsonl) error = %v", err)
	}
	if jsonl.Path() != filepath.Join(dir, "sold-cards.jsonl") {
		t.Errorf("jsonl path = %q", jsonl.Path())
	}

	if _, err := New[testCard]("pdf", "x", Options{BaseDir: dir}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("New(pdf) error = %v, want ErrUnsupportedType", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("creating reports should not touch the file system, found %d entries", len(entries))
	}
}

func TestGenerateName(t *testing.T) {
	pattern := regexp.MustCompile(`^report-\d+-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	a, b := GenerateName(), GenerateName()
	if !pattern.MatchString(a) {
		t.Errorf("GenerateName() = %q, unexpected format", a)
	}
	if a == b {
		t.Error("generated names should be unique")
	}

	r := NewJSONL[testCard]("", Options{BaseDir: t.TempDir()})
	if !pattern.MatchString(r.Name()) {
		t.Errorf("empty name should be generated, got %q", r.Name())
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv(EnvVar, "test")
	wd, _ := os.Getwd()
	if got := DefaultBaseDir(); got != filepath.Join(wd, "test-reports") {
		t.Errorf("test env base dir = %q", got)
	}

	t.Setenv(EnvVar, "")
	if got := DefaultBaseDir(); got != filepath.Join(os.TempDir(), "altered-reports") {
		t.Errorf("default base dir = %q", got)
	}
}

func TestHTMLReport_Write(t *testing.T) {
	r := NewHTML[testCard]("bought-cards", Options{BaseDir: t.TempDir()})

	err := r.Write(context.Background(), seqOf(
		testCard{ID: "c1", Reference: "ALT_CORE_B_AX_01_U_1", Name: "Sierra", ImageURL: "https://img/1.jpg",
			DetailURL: "https://www.altered.gg/cards/1", Price: dec("12.5"), Quantity: intPtr(2)},
		testCard{ID: "c2", Name: "Lower only", LowerPrice: dec("3")},
		testCard{ID: "c3", Name: "Bare"},
	))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if r.ItemsCount() != 3 {
		t.Errorf("ItemsCount() = %d, want 3", r.ItemsCount())
	}

	data, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	doc := string(data)

	for _, want := range []string{
		"<!DOCTYPE html>",
		"Sierra",
		"ALT_CORE_B_AX_01_U_1",
		`href="https://www.altered.gg/cards/1"`,
		"Price: 12.5",
		"Quantity: 2",
		"Price: 3",
		"Price: N/A",
		"Quantity: 0",
		"Unknown",
		`href="#"`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestHTMLReport_EscapesText(t *testing.T) {
	r := NewHTML[testCard]("escape", Options{BaseDir: t.TempDir()})

	err := r.Write(context.Background(), seqOf(testCard{
		ID:        `x" onclick="alert(1)`,
		Reference: "Tom & Jerry",
		Name:      `<script>alert("pwned")</script>`,
	}))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, _ := os.ReadFile(r.Path())
	doc := string(data)

	for _, raw := range []string{`<script>alert`, `Tom & Jerry`, `x" onclick`} {
		if strings.Contains(doc, raw) {
			t.Errorf("report contains unescaped %q", raw)
		}
	}
	for _, escaped := range []string{"&lt;script&gt;", "Tom &amp; Jerry"} {
		if !strings.Contains(doc, escaped) {
			t.Errorf("report missing escaped %q", escaped)
		}
	}
}

func TestHTMLReport_EmptyAndRewrite(t *testing.T) {
	r := NewHTML[testCard]("rewrite", Options{BaseDir: t.TempDir()})
	ctx := context.Background()

	if err := r.Write(ctx, seqOf(testCard{Name: "first"}, testCard{Name: "second"})); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := r.Write(ctx, seqOf()); err != nil {
		t.Fatalf("Write(empty) error = %v", err)
	}

	if r.ItemsCount() != 0 {
		t.Errorf("ItemsCount() = %d, want 0", r.ItemsCount())
	}
	data, _ := os.ReadFile(r.Path())
	if strings.Contains(string(data), "first") {
		t.Error("second write should replace the first")
	}
}

func TestHTMLReport_UpstreamErrorKeepsPreviousFile(t *testing.T) {
	r := NewHTML[testCard]("keep", Options{BaseDir: t.TempDir()})
	ctx := context.Background()

	if err := r.Write(ctx, seqOf(testCard{Name: "kept"})); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	boom := errors.New("boom")
	if err := r.Write(ctx, failingSeq(boom, testCard{Name: "lost"})); !errors.Is(err, boom) {
		t.Fatalf("Write() error = %v, want boom", err)
	}

	data, _ := os.ReadFile(r.Path())
	if !strings.Contains(string(data), "kept") || strings.Contains(string(data), "lost") {
		t.Error("failed write should leave the previous document untouched")
	}
	if r.ItemsCount() != 1 {
		t.Errorf("ItemsCount() = %d, want previous count 1", r.ItemsCount())
	}
	entries, _ := os.ReadDir(filepath.Dir(r.Path()))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %d entries", len(entries))
	}
}

func TestHTMLReport_Remove(t *testing.T) {
	r := NewHTML[testCard]("remove", Options{BaseDir: t.TempDir()})

	if err := r.Remove(); err != nil {
		t.Errorf("Remove() on missing file error = %v", err)
	}
	if err := r.Write(context.Background(), seqOf(testCard{Name: "x"})); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := r.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(r.Path()); !os.IsNotExist(err) {
		t.Errorf("file should be gone, stat error = %v", err)
	}
}

func TestJSONLReport_RoundTrip(t *testing.T) {
	r := NewJSONL[testCard]("round-trip", Options{BaseDir: t.TempDir()})
	ctx := context.Background()

	written := []testCard{
		{ID: "c1", Name: "Sierra", Price: dec("12.50"), Quantity: intPtr(1)},
		{ID: "c2", Name: `Quote "and" <tag>`, LowerPrice: dec("0.99")},
	}
	if err := r.Write(ctx, seqOf(written...)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if r.ItemsCount() != 2 {
		t.Errorf("ItemsCount() = %d, want 2", r.ItemsCount())
	}

	data, _ := os.ReadFile(r.Path())
	if lines := strings.Count(string(data), "\n"); lines != 2 {
		t.Errorf("file has %d lines, want 2", lines)
	}

	var loaded []testCard
	for c, err := range r.Load(ctx) {
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		loaded = append(loaded, c)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d items, want 2", len(loaded))
	}
	if loaded[1].Name != written[1].Name || !loaded[0].Price.Equal(*written[0].Price) {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestJSONLReport_EmptyWrite(t *testing.T) {
	r := NewJSONL[testCard]("empty", Options{BaseDir: t.TempDir()})

	if err := r.Write(context.Background(), seqOf()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	info, err := os.Stat(r.Path())
	if err != nil {
		t.Fatalf("empty write should create the file: %v", err)
	}
	if info.Size() != 0 || r.ItemsCount() != 0 {
		t.Errorf("size = %d, count = %d; want 0, 0", info.Size(), r.ItemsCount())
	}
}

func TestJSONLReport_TruncatesOnRewrite(t *testing.T) {
	r := NewJSONL[testCard]("truncate", Options{BaseDir: t.TempDir()})
	ctx := context.Background()

	if err := r.Write(ctx, seqOf(testCard{ID: "a"}, testCard{ID: "b"}, testCard{ID: "c"})); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := r.Write(ctx, seqOf(testCard{ID: "d"})); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, _ := os.ReadFile(r.Path())
	if strings.Count(string(data), "\n") != 1 || !strings.Contains(string(data), `"d"`) {
		t.Errorf("file = %q, want only the second write", data)
	}
	if r.ItemsCount() != 1 {
		t.Errorf("ItemsCount() = %d, want 1", r.ItemsCount())
	}
}

func TestJSONLReport_UpstreamErrorKeepsWrittenLines(t *testing.T) {
	r := NewJSONL[testCard]("partial", Options{BaseDir: t.TempDir()})

	boom := errors.New("boom")
	err := r.Write(context.Background(), failingSeq(boom, testCard{ID: "a"}, testCard{ID: "b"}))
	if !errors.Is(err, boom) {
		t.Fatalf("Write() error = %v, want boom", err)
	}

	data, _ := os.ReadFile(r.Path())
	if got := strings.Count(string(data), "\n"); got != 2 || r.ItemsCount() != 2 {
		t.Errorf("lines = %d, count = %d; want 2, 2", got, r.ItemsCount())
	}
}

func TestJSONLReport_UpstreamErrorFlushesBufferedLines(t *testing.T) {
	r := NewJSONL[testCard]("buffered", Options{BaseDir: t.TempDir()})

	// Three lines larger than the default bufio buffer, plus a small tail
	// that only reaches the file through the final flush.
	long := strings.Repeat("x", 3000)
	items := []testCard{{ID: "1", Name: long}, {ID: "2", Name: long}, {ID: "3", Name: long}, {ID: "4", Name: "tail"}}

	boom := errors.New("boom")
	if err := r.Write(context.Background(), failingSeq(boom, items...)); !errors.Is(err, boom) {
		t.Fatalf("Write() error = %v, want boom", err)
	}

	var ids []string
	for item, err := range r.Load(context.Background()) {
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		ids = append(ids, item.ID)
	}
	if strings.Join(ids, ",") != "1,2,3,4" || r.ItemsCount() != 4 {
		t.Errorf("loaded %v with count %d, want [1 2 3 4] and 4", ids, r.ItemsCount())
	}
}

func TestJSONLReport_Remove(t *testing.T) {
	base := filepath.Join(t.TempDir(), "reports")
	ctx := context.Background()

	a := NewJSONL[testCard]("a", Options{BaseDir: base})
	b := NewJSONL[testCard]("b", Options{BaseDir: base})

	if err := a.Remove(); err != nil {
		t.Errorf("Remove() before any write error = %v", err)
	}

	if err := a.Write(ctx, seqOf(testCard{ID: "1"})); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(ctx, seqOf(testCard{ID: "2"})); err != nil {
		t.Fatal(err)
	}

	if err := a.Remove(); err != nil {
		t.Fatalf("Remove(a) error = %v", err)
	}
	if _, err := os.Stat(base); err != nil {
		t.Error("directory with other reports must be kept")
	}

	if err := b.Remove(); err != nil {
		t.Fatalf("Remove(b) error = %v", err)
	}
	if _, err := os.Stat(base); !os.IsNotExist(err) {
		t.Errorf("empty directory should be removed, stat error = %v", err)
	}
}

func TestJSONLReport_LoadMissingFile(t *testing.T) {
	r := NewJSONL[testCard]("missing", Options{BaseDir: t.TempDir()})

	var gotErr error
	for _, err := range r.Load(context.Background()) {
		gotErr = err
	}
	if !os.IsNotExist(errors.Unwrap(gotErr)) {
		t.Errorf("Load() error = %v, want not-exist", gotErr)
	}
}
