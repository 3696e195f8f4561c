// Package datasync is a typed query client for Datasync table endpoints.
//
// Queries are built as immutable values, compiled to OData query options and
// executed lazily, one page at a time:
//
//	client, err := datasync.New("https://example.azurewebsites.net",
//	    datasync.WithPageSize(50),
//	)
//	if err != nil {
//	    return err
//	}
//
//	people, err := datasync.GetTable[Person](client, "people")
//	if err != nil {
//	    return err
//	}
//
//	q := people.Query().
//	    Where(query.Gt(query.Field("age"), query.Value(21))).
//	    OrderBy(query.Field("name")).
//	    IncludeTotalCount(true)
//
//	items, err := people.ToPageable(ctx, q)
//	if err != nil {
//	    return err
//	}
//	for items.Next() {
//	    fmt.Println(items.Item().Name)
//	}
//	if err := items.Err(); err != nil {
//	    return err
//	}
//
// Canceling ctx stops iteration before the next page request.
package datasync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/helixml/datasync/application/paging"
	"github.com/helixml/datasync/domain/query"
	"github.com/helixml/datasync/infrastructure/odata"
	"github.com/helixml/datasync/infrastructure/transport"
	"github.com/helixml/datasync/internal/config"
	"github.com/helixml/datasync/internal/log"
)

// ErrCountUnavailable is returned by Count when the server does not report a
// total count.
var ErrCountUnavailable = errors.New("datasync: server did not report a total count")

// Client connects to a Datasync service. It is safe for concurrent use.
type Client struct {
	settings   config.ClientConfig
	httpClient *http.Client
	factory    TransportFactory
	logger     *slog.Logger
}

// New creates a Client for the service at endpoint. An empty endpoint keeps
// the one supplied through WithConfig.
func New(endpoint string, opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	settings := cfg.settings
	if endpoint != "" {
		settings = settings.Apply(config.WithEndpoint(endpoint))
	}
	if cfg.factory == nil {
		if err := settings.Validate(); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.NewLogger(settings).Slog()
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: settings.Timeout()}
	}
	if dir := settings.HTTPCacheDir(); dir != "" && cfg.factory == nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		logger.Debug("page cache enabled", slog.String("dir", dir))
	}

	return &Client{
		settings:   settings,
		httpClient: httpClient,
		factory:    cfg.factory,
		logger:     logger,
	}, nil
}

// NewFromEnv creates a Client from DATASYNC_ environment variables and an
// optional .env file. Options are applied on top of the loaded settings.
func NewFromEnv(envPath string, opts ...Option) (*Client, error) {
	cfg, err := config.LoadConfig(envPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return New("", append([]Option{WithConfig(cfg)}, opts...)...)
}

// Endpoint returns the service base URL.
func (c *Client) Endpoint() string { return c.settings.Endpoint() }

// Config returns the effective client settings.
func (c *Client) Config() config.ClientConfig { return c.settings }

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

func (c *Client) transportFor(table string) (paging.Transport, error) {
	if c.factory != nil {
		return c.factory(table)
	}
	tr, err := transport.NewHTTPTransport(c.settings.Endpoint(), table,
		transport.WithHTTPClient(c.httpClient),
		transport.WithMaxRetries(c.settings.MaxRetries()),
		transport.WithInitialDelay(c.settings.InitialDelay()),
		transport.WithAPIVersion(c.settings.APIVersion()),
		transport.WithLogger(c.logger.With(slog.String("table", table))),
	)
	if err != nil {
		return nil, err
	}
	if dir := c.settings.HTTPCacheDir(); dir != "" {
		return transport.NewCachingTransport(dir, tr.TableURL(), tr)
	}
	return tr, nil
}

// Table is a typed view of a remote table. Each materialized query gets its
// own Pageable, so a Table may be queried from several goroutines at once.
type Table[T any] struct {
	name      string
	transport paging.Transport
	pageSize  int
	logger    *slog.Logger
}

// GetTable returns a typed table handle.
func GetTable[T any](c *Client, name string) (*Table[T], error) {
	if name == "" {
		return nil, query.NewInvalidArgumentError("GetTable", "name", "table name is required")
	}
	tr, err := c.transportFor(name)
	if err != nil {
		return nil, err
	}
	return &Table[T]{
		name:      name,
		transport: tr,
		pageSize:  c.settings.PageSize(),
		logger:    c.logger.With(slog.String("table", name)),
	}, nil
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// Query returns an empty query over the table's record type.
func (t *Table[T]) Query() query.Query[T] { return query.New[T]() }

// Compile renders q as a request without executing it.
func (t *Table[T]) Compile(q query.Query[T]) (odata.Request, error) {
	return odata.Compile(q.Descriptor())
}

// ToPageable compiles q and returns a lazy sequence of its results. Build and
// compile errors are returned before any request is made.
func (t *Table[T]) ToPageable(ctx context.Context, q query.Query[T], opts ...paging.Option) (*paging.Pageable[T], error) {
	req, err := t.Compile(q)
	if err != nil {
		return nil, err
	}
	return paging.New[T](ctx, t.transport, req, t.pagingOptions(opts)...), nil
}

// ToSlice runs q to completion and returns every record.
func (t *Table[T]) ToSlice(ctx context.Context, q query.Query[T]) ([]T, error) {
	p, err := t.ToPageable(ctx, q)
	if err != nil {
		return nil, err
	}
	var out []T
	for item, err := range p.All() {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	if p.Canceled() {
		return out, ctx.Err()
	}
	return out, nil
}

// Count returns the number of records matching q, ignoring its paging
// bounds. It issues a single request for zero records.
func (t *Table[T]) Count(ctx context.Context, q query.Query[T]) (int64, error) {
	p, err := t.ToPageable(ctx, q.Skip(0).Take(0).IncludeTotalCount(true))
	if err != nil {
		return 0, err
	}
	if _, err := p.NextPage(); err != nil {
		return 0, err
	}
	if p.Canceled() {
		return 0, ctx.Err()
	}
	n, ok := p.TotalCount()
	if !ok {
		return 0, ErrCountUnavailable
	}
	return n, nil
}

func (t *Table[T]) pagingOptions(extra []paging.Option) []paging.Option {
	opts := []paging.Option{
		paging.WithPageSize(t.pageSize),
		paging.WithLogger(t.logger),
	}
	return append(opts, extra...)
}

// ToPageableSelection compiles a projected query and returns a lazy sequence
// of projected records.
func ToPageableSelection[T, U any](ctx context.Context, t *Table[T], s query.Selection[T, U], opts ...paging.Option) (*paging.Pageable[U], error) {
	req, err := odata.Compile(s.Descriptor())
	if err != nil {
		return nil, err
	}
	return paging.New[U](ctx, t.transport, req, t.pagingOptions(opts)...), nil
}
