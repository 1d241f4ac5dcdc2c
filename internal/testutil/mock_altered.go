// Package testutil provides a mock Altered marketplace API for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAltered is a configurable mock marketplace server.
type MockAltered struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	failures map[string][]MockResponse

	requestCount      int
	pathCounts        map[string]int
	queries           map[string][]url.Values
	userAgents        []string
	lastRequestHeader http.Header
}

// NewMockAltered starts a mock server. Call Close when done.
func NewMockAltered() *MockAltered {
	m := &MockAltered{
		handlers:   make(map[string]http.HandlerFunc),
		failures:   make(map[string][]MockResponse),
		pathCounts: make(map[string]int),
		queries:    make(map[string][]url.Values),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockAltered) serve(w http.ResponseWriter, r *http.Request) {
	path := normalize(r.URL.Path)

	m.mu.Lock()
	m.requestCount++
	m.pathCounts[path]++
	m.queries[path] = append(m.queries[path], r.URL.Query())
	m.userAgents = append(m.userAgents, r.Header.Get("User-Agent"))
	m.lastRequestHeader = r.Header.Clone()

	var failure *MockResponse
	if queued := m.failures[path]; len(queued) > 0 {
		failure = &queued[0]
		m.failures[path] = queued[1:]
	}
	handler, ok := m.handlers[path]
	m.mu.Unlock()

	switch {
	case failure != nil:
		writeResponse(w, *failure)
	case ok:
		handler(w, r)
	default:
		writeResponse(w, MockResponse{
			StatusCode: http.StatusNotFound,
			Body:       `{"hydra:description":"Not Found"}`,
		})
	}
}

// URL returns the server base URL.
func (m *MockAltered) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockAltered) Close() {
	m.server.Close()
}

// SetHandler installs a custom handler for path.
func (m *MockAltered) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[normalize(path)] = handler
}

// SetResponse serves resp for every request to path.
func (m *MockAltered) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, resp)
	})
}

// SetJSON serves v encoded as JSON with status 200.
func (m *MockAltered) SetJSON(path string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.SetResponse(path, NewJSONResponse(string(body)))
}

// SetCollection serves items as a paginated Hydra collection honoring the
// page and itemsPerPage query parameters. Pages past the end are empty.
func (m *MockAltered) SetCollection(path string, items []any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r.URL.Query(), "page", 1)
		perPage := queryInt(r.URL.Query(), "itemsPerPage", 30)

		start := (page - 1) * perPage
		members := []any{}
		if start >= 0 && start < len(items) {
			end := min(start+perPage, len(items))
			members = items[start:end]
		}

		body, _ := json.Marshal(map[string]any{
			"hydra:member":     members,
			"hydra:totalItems": len(items),
		})
		writeResponse(w, NewJSONResponse(string(body)))
	})
}

// FailNext makes the next n requests to path return resp before the
// configured handler takes over again.
func (m *MockAltered) FailNext(path string, resp MockResponse, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = normalize(path)
	for range n {
		m.failures[path] = append(m.failures[path], resp)
	}
}

// RequestCount returns the total number of requests served.
func (m *MockAltered) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// PathCount returns the number of requests served for path.
func (m *MockAltered) PathCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pathCounts[normalize(path)]
}

// Queries returns the query of every request to path, in arrival order.
func (m *MockAltered) Queries(path string) []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]url.Values(nil), m.queries[normalize(path)]...)
}

// UserAgents returns the User-Agent of every request, in arrival order.
func (m *MockAltered) UserAgents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.userAgents...)
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAltered) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequestHeader.Clone()
}

// Reset clears the request tracking.
func (m *MockAltered) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.queries = make(map[string][]url.Values)
	m.userAgents = nil
	m.lastRequestHeader = nil
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/ld+json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 response with a Retry-After header.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"hydra:description":"Too Many Requests"}`,
		Headers: map[string]string{
			"Retry-After":  strconv.Itoa(retryAfterSeconds),
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"hydra:description":"Internal Server Error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"hydra:description":"Not Found"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func normalize(path string) string {
	return "/" + strings.Trim(path, "/")
}

func queryInt(q url.Values, key string, def int) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}
