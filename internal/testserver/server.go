// Package testserver provides an in-memory Datasync table server for tests.
//
// The server honors $skip, $top, $count, $select and __includedeleted, caps
// every page at a configurable size and can emit next links. $filter and
// $orderby are recorded but not evaluated.
package testserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// DeletedField marks a soft-deleted row.
const DeletedField = "deleted"

// Request is a request received by the server.
type Request struct {
	Table     string
	RawQuery  string
	Query     url.Values
	Header    http.Header
	RequestID string
}

// Option configures a Server.
type Option func(*Server)

// WithPageSize caps every page at n rows.
func WithPageSize(n int) Option {
	return func(s *Server) { s.pageSize = n }
}

// WithNextLinks makes the server return a next link while rows remain.
func WithNextLinks() Option {
	return func(s *Server) { s.nextLinks = true }
}

// WithTable registers a table.
func WithTable(name string, rows []map[string]any) Option {
	return func(s *Server) { s.tables[name] = rows }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server is an in-memory table server.
type Server struct {
	mu        sync.Mutex
	tables    map[string][]map[string]any
	pageSize  int
	nextLinks bool
	failures  []int
	requests  []Request

	logger *slog.Logger
	router chi.Router
	http   *httptest.Server
}

// New creates a Server and starts listening on a loopback address.
func New(opts ...Option) *Server {
	s := &Server{
		tables: make(map[string][]map[string]any),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logging(s.logger))
	router.Get("/tables/{table}", s.handleTable)
	s.router = router
	s.http = httptest.NewServer(router)
	return s
}

// URL returns the base URL of the server.
func (s *Server) URL() string { return s.http.URL }

// Client returns an HTTP client configured for the server.
func (s *Server) Client() *http.Client { return s.http.Client() }

// Close shuts the server down.
func (s *Server) Close() { s.http.Close() }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// FailNext makes the next n requests fail with status.
func (s *Server) FailNext(status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.failures = append(s.failures, status)
	}
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Reset forgets recorded requests and pending failures.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
	s.failures = nil
}

type pageBody struct {
	Items    []map[string]any `json:"items"`
	Count    *int             `json:"count,omitempty"`
	NextLink string           `json:"nextLink,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	params := r.URL.Query()

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Table:     name,
		RawQuery:  r.URL.RawQuery,
		Query:     params,
		Header:    r.Header.Clone(),
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
	var failure int
	if len(s.failures) > 0 {
		failure, s.failures = s.failures[0], s.failures[1:]
	}
	rows, ok := s.tables[name]
	s.mu.Unlock()

	if failure != 0 {
		writeJSON(w, failure, errorBody{Error: http.StatusText(failure)})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("table %q not found", name)})
		return
	}

	skip, err := intParam(params, "$skip")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	top, err := intParam(params, "$top")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	_, hasTop := params["$top"]

	visible := rows
	if params.Get("__includedeleted") != "true" {
		visible = make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			if deleted, _ := row[DeletedField].(bool); !deleted {
				visible = append(visible, row)
			}
		}
	}

	size := len(visible)
	if s.pageSize > 0 && s.pageSize < size {
		size = s.pageSize
	}
	if hasTop && top < size {
		size = top
	}

	start := min(skip, len(visible))
	end := min(start+size, len(visible))

	var fields []string
	if sel := params.Get("$select"); sel != "" {
		fields = strings.Split(sel, ",")
	}

	body := pageBody{Items: make([]map[string]any, 0, end-start)}
	for _, row := range visible[start:end] {
		body.Items = append(body.Items, project(row, fields))
	}
	if params.Get("$count") == "true" {
		total := len(visible)
		body.Count = &total
	}

	returned := end - start
	if s.nextLinks && returned > 0 && end < len(visible) && (!hasTop || returned < top) {
		next := cloneValues(params)
		next.Set("$skip", strconv.Itoa(end))
		if hasTop {
			next.Set("$top", strconv.Itoa(top-returned))
		}
		body.NextLink = "http://" + r.Host + r.URL.Path + "?" + next.Encode()
	}

	writeJSON(w, http.StatusOK, body)
}

func project(row map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(row))
	if len(fields) == 0 {
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	for _, f := range fields {
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}

func intParam(params url.Values, key string) (int, error) {
	raw := params.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
