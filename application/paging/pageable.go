// Package paging executes compiled queries against a paginated table
// endpoint and exposes the results as a lazy sequence.
//
// A Pageable fetches nothing until the first call to Next or NextPage, and
// fetches each following page only once the previous one has been consumed:
//
//	p := paging.New[Person](ctx, transport, req)
//	for p.Next() {
//	    fmt.Println(p.Item().Name)
//	}
//	if err := p.Err(); err != nil {
//	    return err
//	}
//
// Canceling ctx stops the sequence before the next page fetch. Items already
// buffered from a completed page are still returned; Canceled then reports
// true and Err stays nil.
package paging

import (
	"context"
	"iter"
	"log/slog"
	"strconv"

	"github.com/helixml/datasync/domain/query"
	"github.com/helixml/datasync/infrastructure/odata"
)

const unbounded = -1

// Option configures a Pageable.
type Option func(*settings)

type settings struct {
	pageSize int
	logger   *slog.Logger
}

// WithPageSize sets the preferred number of records per page. The server may
// return fewer. Zero leaves the page size to the server.
func WithPageSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger sets the logger used for page fetch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// Pageable is a lazy, single-use sequence of records. It is not safe for
// concurrent use.
type Pageable[T any] struct {
	ctx       context.Context
	transport Transport
	decoder   Decoder[T]
	base      odata.Request
	logger    *slog.Logger

	state     State
	pageSize  int
	remaining int
	offset    int
	nextLink  string
	sawLink   bool
	last      bool
	wantCount bool
	count     *int64
	fetches   int

	buffer []T
	pos    int
	item   T
	err    error
}

// New creates a Pageable that decodes records as JSON.
func New[T any](ctx context.Context, transport Transport, req odata.Request, opts ...Option) *Pageable[T] {
	return NewWithDecoder[T](ctx, transport, req, JSONDecoder[T]{}, opts...)
}

// NewWithDecoder creates a Pageable that decodes records with decoder.
func NewWithDecoder[T any](ctx context.Context, transport Transport, req odata.Request, decoder Decoder[T], opts ...Option) *Pageable[T] {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p := &Pageable[T]{
		ctx:       ctx,
		transport: transport,
		decoder:   decoder,
		base:      req,
		logger:    s.logger,
		state:     StateReady,
		pageSize:  s.pageSize,
		remaining: unbounded,
	}
	if v, ok := req.Get(query.ParamSkip); ok {
		p.offset, _ = strconv.Atoi(v)
	}
	if v, ok := req.Get(query.ParamTop); ok {
		if top, err := strconv.Atoi(v); err == nil && top >= 0 {
			p.remaining = top
		}
	}
	_, p.wantCount = req.Get(query.ParamCount)
	return p
}

// Next advances to the next record. It returns false when the sequence ends
// for any reason; use State, Err and Canceled to tell why.
func (p *Pageable[T]) Next() bool {
	for {
		if p.pos < len(p.buffer) {
			p.item = p.buffer[p.pos]
			var zero T
			p.buffer[p.pos] = zero
			p.pos++
			return true
		}
		if !p.advance() {
			return false
		}
	}
}

// Item returns the record at the current position.
func (p *Pageable[T]) Item() T { return p.item }

// NextPage returns the records remaining in the current page, fetching the
// next page when the buffer is empty. It returns nil when the sequence has
// ended.
func (p *Pageable[T]) NextPage() ([]T, error) {
	for {
		if p.pos < len(p.buffer) {
			out := p.buffer[p.pos:]
			p.buffer, p.pos = nil, 0
			return out, nil
		}
		if !p.advance() {
			return nil, p.err
		}
	}
}

// All returns an iterator over the remaining records. A failure is yielded
// once, as the final pair; cancellation ends the iteration silently.
func (p *Pageable[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for p.Next() {
			if !yield(p.Item(), nil) {
				return
			}
		}
		if err := p.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Err returns the error that ended the sequence, or nil.
func (p *Pageable[T]) Err() error { return p.err }

// State returns the current lifecycle state.
func (p *Pageable[T]) State() State { return p.state }

// Canceled reports whether the sequence ended because its context was done.
func (p *Pageable[T]) Canceled() bool { return p.state == StateCanceled }

// TotalCount returns the total number of matching records reported with the
// first page. It is only available when the query requested it and the first
// page has been fetched.
func (p *Pageable[T]) TotalCount() (int64, bool) {
	if p.count == nil {
		return 0, false
	}
	return *p.count, true
}

// Fetches returns the number of completed page fetches.
func (p *Pageable[T]) Fetches() int { return p.fetches }

// advance moves the state machine past an empty buffer. It returns false
// once the sequence is in a terminal state.
func (p *Pageable[T]) advance() bool {
	p.buffer, p.pos = nil, 0
	if p.state.Terminal() {
		return false
	}
	if p.last || (p.remaining == 0 && !(p.wantCount && p.fetches == 0)) {
		p.state = StateExhausted
		return false
	}
	if p.ctx.Err() != nil {
		p.state = StateCanceled
		return false
	}
	return p.fetch()
}

func (p *Pageable[T]) requestSize() int {
	size := unbounded
	if p.pageSize > 0 {
		size = p.pageSize
	}
	if p.remaining != unbounded && (size == unbounded || p.remaining < size) {
		size = p.remaining
	}
	return size
}

func (p *Pageable[T]) fetch() bool {
	requested := p.requestSize()
	req := PageRequest{
		Query:    p.base.WithPaging(p.offset, requested),
		NextLink: p.nextLink,
	}

	p.state = StateFetchingPage
	page, err := p.transport.FetchPage(p.ctx, req)
	if err != nil {
		if p.ctx.Err() != nil {
			p.state = StateCanceled
			return false
		}
		return p.fail(err)
	}
	p.fetches++

	if page.NextLink != "" {
		if len(page.Items) == 0 {
			return p.fail(NewPagingProtocolError("continuation returned with an empty page", page.NextLink))
		}
		if page.NextLink == p.nextLink {
			return p.fail(NewPagingProtocolError("continuation does not advance", page.NextLink))
		}
	}

	if p.fetches == 1 && p.wantCount && page.Count != nil {
		count := *page.Count
		p.count = &count
	}

	items := page.Items
	if p.remaining != unbounded && len(items) > p.remaining {
		items = items[:p.remaining]
	}

	decoded := make([]T, len(items))
	for i, raw := range items {
		v, err := p.decoder.Decode(raw)
		if err != nil {
			return p.fail(NewDecodeError(p.offset+i, err))
		}
		decoded[i] = v
	}

	n := len(decoded)
	p.offset += n
	if p.remaining != unbounded {
		p.remaining -= n
	}

	switch {
	case n == 0 || p.remaining == 0:
		p.last = true
	case page.NextLink != "":
		p.nextLink = page.NextLink
		p.sawLink = true
	case p.sawLink:
		p.last = true
	case p.pageSize == 0 && (requested == unbounded || n < requested):
		// The server capped the page; its size bounds later requests.
		p.pageSize = n
	case n < requested:
		p.last = true
	}

	p.logger.Debug("page fetched",
		"page", p.fetches,
		"requested", requested,
		"items", n,
		"offset", p.offset,
		"next_link", page.NextLink,
		"last", p.last,
	)

	p.buffer = decoded
	p.state = StateHasBufferedItems
	return true
}

func (p *Pageable[T]) fail(err error) bool {
	p.err = err
	p.state = StateFailed
	return false
}
