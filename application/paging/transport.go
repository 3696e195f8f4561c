package paging

import (
	"context"
	"encoding/json"

	"github.com/helixml/datasync/infrastructure/odata"
)

// PageRequest identifies the page to fetch. When NextLink is set it takes
// precedence and Query describes the logical request it continues.
type PageRequest struct {
	Query    odata.Request
	NextLink string
}

// Page is a single page of raw records returned by a Transport.
type Page struct {
	Items    []json.RawMessage
	NextLink string
	Count    *int64
}

// Transport fetches pages from a remote table. Implementations should abort
// when ctx is done and return errors that the caller can inspect; the paging
// engine passes them through unchanged.
type Transport interface {
	FetchPage(ctx context.Context, req PageRequest) (Page, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req PageRequest) (Page, error)

// FetchPage implements Transport.
func (f TransportFunc) FetchPage(ctx context.Context, req PageRequest) (Page, error) {
	return f(ctx, req)
}
