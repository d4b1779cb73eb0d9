// Package testutil provides testing utilities for the StatHub gateway.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// MockStatHub is a configurable fake of the StatHub v3 API for tests.
//
// Handlers are registered per path; unhandled paths answer 404 with the
// upstream's usual error body, which is exactly what the real API does for
// unknown resources.
type MockStatHub struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	pathCounts   map[string]int
}

// NewMockStatHub creates a new mock StatHub server.
func NewMockStatHub() *MockStatHub {
	mock := &MockStatHub{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"resource not found"}`)
	}))

	return mock
}

// URL returns the mock server URL, usable as the client's base URL.
func (m *MockStatHub) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockStatHub) Close() {
	m.server.Close()
}

// Reset clears all request counters (registered handlers stay).
func (m *MockStatHub) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
}

// RequestCount returns the total number of requests seen.
func (m *MockStatHub) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests seen for one path.
func (m *MockStatHub) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// SetHandler registers a custom handler for a path.
func (m *MockStatHub) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetStatus makes a path answer with a fixed status code and body.
func (m *MockStatHub) SetStatus(path string, status int, body string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != "" {
			fmt.Fprint(w, body)
		}
	})
}

// SetValues makes a path serve a single-page envelope holding the given
// records. Each record must be marshalable to JSON.
func (m *MockStatHub) SetValues(path string, records ...any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		WriteEnvelope(w, records, len(records), "")
	})
}

// SetPagedValues makes a path serve the given records split into pages of
// pageSize, chained with next_page links of the form path?page=N. The
// envelope count always reports the full collection size, matching the real
// API.
func (m *MockStatHub) SetPagedValues(path string, pageSize int, records ...any) {
	total := len(records)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			if n, err := strconv.Atoi(p); err == nil && n > 0 {
				page = n
			}
		}

		start := (page - 1) * pageSize
		if start > total {
			start = total
		}
		end := start + pageSize
		if end > total {
			end = total
		}

		next := ""
		if end < total {
			next = fmt.Sprintf("%s%s?page=%d", m.URL(), path, page+1)
		}
		WriteEnvelope(w, records[start:end], total, next)
	})
}

// WriteEnvelope writes a StatHub response envelope. Custom handlers use it
// to stay wire-compatible with the paths the mock serves on its own.
func WriteEnvelope(w http.ResponseWriter, values any, count int, nextPage string) {
	w.Header().Set("Content-Type", "application/json")

	payload := map[string]any{
		"values": values,
		"count":  count,
	}
	if nextPage != "" {
		payload["next_page"] = nextPage
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		panic(fmt.Sprintf("testutil: encode envelope: %v", err))
	}
}
