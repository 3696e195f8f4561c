// Package transport fetches result pages from a Datasync table endpoint
// over HTTP.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/helixml/datasync/application/paging"
	"github.com/helixml/datasync/internal/log"
)

// Header names sent with every request.
const (
	HeaderAPIVersion = "ZUMO-API-VERSION"
	HeaderRequestID  = "X-Request-ID"
)

// DefaultAPIVersion is the protocol version sent when none is configured.
const DefaultAPIVersion = "3.0.0"

const operationFetchPage = "fetch_page"

// HTTPTransport implements paging.Transport for a single table.
type HTTPTransport struct {
	base         *url.URL
	table        string
	apiVersion   string
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// Option is a functional option for HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		if c != nil {
			t.httpClient = c
		}
	}
}

// WithRoundTripper replaces the round tripper of the HTTP client.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(t *HTTPTransport) {
		if rt != nil {
			client := *t.httpClient
			client.Transport = rt
			t.httpClient = &client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		client := *t.httpClient
		client.Timeout = d
		t.httpClient = &client
	}
}

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(n int) Option {
	return func(t *HTTPTransport) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.initialDelay = d
		}
	}
}

// WithMaxDelay caps the delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.maxDelay = d
		}
	}
}

// WithAPIVersion sets the ZUMO-API-VERSION header value.
func WithAPIVersion(v string) Option {
	return func(t *HTTPTransport) {
		if v != "" {
			t.apiVersion = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *HTTPTransport) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewHTTPTransport creates a transport for the named table under endpoint.
func NewHTTPTransport(endpoint, table string, opts ...Option) (*HTTPTransport, error) {
	if table == "" {
		return nil, NewError("new_transport", 0, "table name is required", nil)
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, NewError("new_transport", 0, "invalid endpoint", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, NewError("new_transport", 0, "endpoint must be an absolute URL", nil)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	t := &HTTPTransport{
		base:         base,
		table:        table,
		apiVersion:   DefaultAPIVersion,
		maxRetries:   3,
		initialDelay: 500 * time.Millisecond,
		maxDelay:     10 * time.Second,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TableURL returns the URL of the table endpoint without a query string.
func (t *HTTPTransport) TableURL() string {
	return t.base.ResolveReference(&url.URL{Path: "tables/" + url.PathEscape(t.table)}).String()
}

// pageResponse is the JSON body returned by a table endpoint.
type pageResponse struct {
	Items    []json.RawMessage `json:"items"`
	Count    *int64            `json:"count,omitempty"`
	NextLink string            `json:"nextLink,omitempty"`
}

// FetchPage implements paging.Transport.
func (t *HTTPTransport) FetchPage(ctx context.Context, req paging.PageRequest) (paging.Page, error) {
	target, err := t.resolve(req)
	if err != nil {
		return paging.Page{}, err
	}

	var page paging.Page
	attempt := 0
	operation := func() error {
		attempt++
		p, err := t.doRequest(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			var te *Error
			if errors.As(err, &te) && !te.Temporary() {
				return backoff.Permanent(err)
			}
			return err
		}
		page = p
		return nil
	}
	notify := func(err error, delay time.Duration) {
		t.logger.Warn("retrying page request",
			slog.String("url", target),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
	}

	if err := backoff.RetryNotify(operation, t.backOff(ctx), notify); err != nil {
		return paging.Page{}, err
	}
	return page, nil
}

func (t *HTTPTransport) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initialDelay
	b.MaxInterval = t.maxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.maxRetries)), ctx)
}

// resolve builds the absolute request URL. A next link from the server
// replaces the compiled query entirely.
func (t *HTTPTransport) resolve(req paging.PageRequest) (string, error) {
	if req.NextLink != "" {
		ref, err := url.Parse(req.NextLink)
		if err != nil {
			return "", NewError(operationFetchPage, 0, "invalid next link", err)
		}
		if ref.IsAbs() {
			return ref.String(), nil
		}
		if strings.HasPrefix(req.NextLink, "?") {
			return t.TableURL() + req.NextLink, nil
		}
		return t.base.ResolveReference(ref).String(), nil
	}

	target := t.TableURL()
	if qs := req.Query.Encode(); qs != "" {
		target += "?" + qs
	}
	return target, nil
}

func (t *HTTPTransport) doRequest(ctx context.Context, target string) (paging.Page, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return paging.Page{}, backoff.Permanent(NewError(operationFetchPage, 0, "failed to create request", err))
	}

	// A request ID already on ctx is reused so callers can correlate logs.
	requestID := log.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = log.WithRequestID(ctx, requestID)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderAPIVersion, t.apiVersion)
	httpReq.Header.Set(HeaderRequestID, requestID)

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return paging.Page{}, NewError(operationFetchPage, 0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return paging.Page{}, NewError(operationFetchPage, resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return paging.Page{}, NewError(operationFetchPage, resp.StatusCode, errorMessage(body, resp.Status), nil)
	}

	var decoded pageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return paging.Page{}, NewError(operationFetchPage, resp.StatusCode, "failed to unmarshal response", err)
	}

	t.logger.DebugContext(ctx, "page response",
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Int("items", len(decoded.Items)),
		slog.Duration("duration", time.Since(start)),
	)

	return paging.Page{
		Items:    decoded.Items,
		NextLink: decoded.NextLink,
		Count:    decoded.Count,
	}, nil
}

// errorMessage extracts a message from an error body, falling back to the
// HTTP status line.
func errorMessage(body []byte, status string) string {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil {
		for _, m := range []string{apiErr.Message, apiErr.Error, apiErr.Title} {
			if m != "" {
				return m
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 {
		return text
	}
	return status
}

var _ paging.Transport = (*HTTPTransport)(nil)
