package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/helixml/datasync/application/paging"
)

// CachingTransport is a paging.Transport that stores fetched pages on disk.
// Entries are keyed by the table scope and either the next link or the
// encoded query, which the compiler renders identically for identical
// queries. Failed fetches are never stored, and unreadable entries fall
// through to the inner transport.
type CachingTransport struct {
	inner paging.Transport
	scope string
	dir   string
}

// NewCachingTransport creates a CachingTransport storing entries under dir.
// scope separates tables and endpoints sharing a directory; the table URL
// is a good choice.
func NewCachingTransport(dir, scope string, inner paging.Transport) (*CachingTransport, error) {
	if inner == nil {
		return nil, NewError("new_cache", 0, "inner transport is required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewError("new_cache", 0, "failed to create cache directory", err)
	}
	return &CachingTransport{inner: inner, scope: scope, dir: dir}, nil
}

// cachedPage is the on-disk form of a page.
type cachedPage struct {
	Scope    string            `json:"scope"`
	Request  string            `json:"request"`
	Items    []json.RawMessage `json:"items"`
	Count    *int64            `json:"count,omitempty"`
	NextLink string            `json:"next_link,omitempty"`
}

// FetchPage implements paging.Transport.
func (t *CachingTransport) FetchPage(ctx context.Context, req paging.PageRequest) (paging.Page, error) {
	if err := ctx.Err(); err != nil {
		return paging.Page{}, err
	}

	target := requestKey(req)
	path := filepath.Join(t.dir, t.Key(req)+".json")
	if page, ok := t.load(path, target); ok {
		return page, nil
	}

	page, err := t.inner.FetchPage(ctx, req)
	if err != nil {
		return paging.Page{}, err
	}
	t.store(path, target, page)
	return page, nil
}

// Key returns the cache key of a page request.
func (t *CachingTransport) Key(req paging.PageRequest) string {
	sum := sha256.Sum256([]byte(t.scope + "\n" + requestKey(req)))
	return hex.EncodeToString(sum[:])
}

// requestKey identifies the page a request asks for. A next link replaces
// the compiled query, as it does on the wire.
func requestKey(req paging.PageRequest) string {
	if req.NextLink != "" {
		return "link:" + req.NextLink
	}
	return "query:" + req.Query.Encode()
}

func (t *CachingTransport) load(path, target string) (paging.Page, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return paging.Page{}, false
	}
	var cached cachedPage
	if err := json.Unmarshal(data, &cached); err != nil {
		return paging.Page{}, false
	}
	if cached.Scope != t.scope || cached.Request != target {
		return paging.Page{}, false
	}
	return paging.Page{
		Items:    cached.Items,
		Count:    cached.Count,
		NextLink: cached.NextLink,
	}, true
}

func (t *CachingTransport) store(path, target string, page paging.Page) {
	data, err := json.Marshal(cachedPage{
		Scope:    t.scope,
		Request:  target,
		Items:    page.Items,
		Count:    page.Count,
		NextLink: page.NextLink,
	})
	if err != nil {
		return
	}
	// Readers only ever see complete entries.
	tmp, err := os.CreateTemp(t.dir, ".page-*")
	if err != nil {
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
	}
}

var _ paging.Transport = (*CachingTransport)(nil)
