package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"testing"
)

type item struct {
	ID int `json:"id"`
}

// fakeFetcher serves pages from a fixed list of page sizes.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   [][]item
	failAt  int
	queries []url.Values
}

func newFakeFetcher(sizes ...int) *fakeFetcher {
	f := &fakeFetcher{}
	next := 0
	for _, size := range sizes {
		page := make([]item, size)
		for i := range page {
			page[i] = item{ID: next}
			next++
		}
		f.pages = append(f.pages, page)
	}
	return f
}

func (f *fakeFetcher) FetchPage(_ context.Context, _ string, query url.Values) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)

	page, err := strconv.Atoi(query.Get("page"))
	if err != nil {
		return nil, fmt.Errorf("bad page %q", query.Get("page"))
	}
	if f.failAt > 0 && page == f.failAt {
		return nil, errors.New("boom")
	}
	if page > len(f.pages) {
		return nil, nil
	}

	members := make([]json.RawMessage, 0, len(f.pages[page-1]))
	for _, it := range f.pages[page-1] {
		raw, _ := json.Marshal(it)
		members = append(members, raw)
	}
	return members, nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func collect(t *testing.T, fetcher PageFetcher, pageSize int) ([]item, error) {
	t.Helper()
	var items []item
	for it, err := range Items[item](context.Background(), fetcher, "things", nil, pageSize) {
		if err != nil {
			return items, err
		}
		items = append(items, it)
	}
	return items, nil
}

func TestItems_AllItemsInOrder(t *testing.T) {
	tests := []struct {
		name      string
		sizes     []int
		wantItems int
		wantCalls int
	}{
		{"empty collection", nil, 0, 1},
		{"single full page", []int{3}, 3, 2},
		{"full pages", []int{3, 3, 3}, 9, 4},
		{"short last page", []int{3, 3, 1}, 7, 4},
		// A short page in the middle does not end the listing.
		{"short middle page", []int{3, 1, 3}, 7, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher(tt.sizes...)

			items, err := collect(t, fetcher, 3)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(items), tt.wantItems)
			}
			for i, it := range items {
				if it.ID != i {
					t.Errorf("item %d has id %d; order not preserved", i, it.ID)
				}
			}
			if got := fetcher.calls(); got != tt.wantCalls {
				t.Errorf("page fetches = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestItems_PageQuery(t *testing.T) {
	fetcher := newFakeFetcher(2)
	query := url.Values{"order[date]": {"desc"}}

	for _, err := range Items[item](context.Background(), fetcher, "things", query, 2) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(query) != 1 {
		t.Errorf("caller query was modified: %v", query)
	}
	for i, q := range fetcher.queries {
		if q.Get("page") != strconv.Itoa(i+1) {
			t.Errorf("request %d page = %q, want %d", i, q.Get("page"), i+1)
		}
		if q.Get("itemsPerPage") != "2" {
			t.Errorf("request %d itemsPerPage = %q, want 2", i, q.Get("itemsPerPage"))
		}
		if q.Get("order[date]") != "desc" {
			t.Errorf("request %d lost caller query: %v", i, q)
		}
	}
}

func TestItems_DefaultPageSize(t *testing.T) {
	fetcher := newFakeFetcher()
	for range Items[item](context.Background(), fetcher, "things", nil, 0) {
	}
	if got := fetcher.queries[0].Get("itemsPerPage"); got != strconv.Itoa(DefaultPageSize) {
		t.Errorf("itemsPerPage = %q, want %d", got, DefaultPageSize)
	}
}

func TestItems_FetchErrorAfterItems(t *testing.T) {
	fetcher := newFakeFetcher(2, 2, 2)
	fetcher.failAt = 2

	items, err := collect(t, fetcher, 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(items) != 2 {
		t.Errorf("items before failure = %d, want 2", len(items))
	}
	if got := fetcher.calls(); got != 2 {
		t.Errorf("no page should be fetched after the failure, got %d fetches", got)
	}
}

func TestItems_EarlyBreakStopsFetching(t *testing.T) {
	fetcher := newFakeFetcher(2, 2, 2)

	count := 0
	for _, err := range Items[item](context.Background(), fetcher, "things", nil, 2) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		count++
		if count == 3 {
			break
		}
	}

	if got := fetcher.calls(); got != 2 {
		t.Errorf("page fetches = %d, want 2", got)
	}
}

func TestItems_DecodeError(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, _ string, _ url.Values) ([]json.RawMessage, error) {
		return []json.RawMessage{json.RawMessage(`"not an object"`)}, nil
	})

	_, err := collect(t, fetcher, 1)
	if err == nil {
		t.Error("expected decode error")
	}
}

func TestItems_ContextCancelled(t *testing.T) {
	fetcher := newFakeFetcher(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range Items[item](ctx, fetcher, "things", nil, 1) {
		gotErr = err
	}
	if !errors.Is(gotErr, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", gotErr)
	}
	if fetcher.calls() != 0 {
		t.Error("no page should be fetched with a cancelled context")
	}
}

func TestItems_Restartable(t *testing.T) {
	fetcher := newFakeFetcher(2, 1)
	seq := Items[item](context.Background(), fetcher, "things", nil, 2)

	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	if first != 3 || second != 3 {
		t.Errorf("ranges yielded %d and %d items, want 3 each", first, second)
	}
}

type fetcherFunc func(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error)

func (f fetcherFunc) FetchPage(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	return f(ctx, path, query)
}
