package odata

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/helixml/datasync/domain/query"
)

// Param is a single query string parameter.
type Param struct {
	Key   string
	Value string
}

// Request is a compiled query: an ordered parameter list independent of the
// table path. Requests are values; methods returning a Request never modify
// the receiver.
type Request struct {
	params []Param
}

// NewRequest creates a request from an ordered parameter list.
func NewRequest(params ...Param) Request {
	return Request{params: slices.Clone(params)}
}

// Params returns the parameters in emission order.
func (r Request) Params() []Param { return slices.Clone(r.params) }

// Get returns the value of key and whether it is present.
func (r Request) Get(key string) (string, bool) {
	for _, p := range r.params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// WithPaging returns a copy with $skip and $top replaced. A skip of zero and
// a negative top remove the respective parameter. The canonical parameter
// order is preserved.
func (r Request) WithPaging(skip, top int) Request {
	var head, tail []Param
	for _, p := range r.params {
		switch p.Key {
		case query.ParamSkip, query.ParamTop:
		case query.ParamFilter, query.ParamOrderBy:
			head = append(head, p)
		default:
			tail = append(tail, p)
		}
	}
	out := make([]Param, 0, len(r.params)+2)
	out = append(out, head...)
	if skip > 0 {
		out = append(out, Param{Key: query.ParamSkip, Value: strconv.Itoa(skip)})
	}
	if top >= 0 {
		out = append(out, Param{Key: query.ParamTop, Value: strconv.Itoa(top)})
	}
	out = append(out, tail...)
	return Request{params: out}
}

// Encode renders the parameters as a query string without the leading '?'.
// Spaces are encoded as %20.
func (r Request) Encode() string {
	var b strings.Builder
	for i, p := range r.params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(p.Key))
		b.WriteByte('=')
		b.WriteString(escape(p.Value))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (r Request) String() string { return r.Encode() }

// escape percent-encodes everything except RFC 3986 unreserved characters
// and the sub-delimiters that are common in filter text. '&', '=', '+' and
// '#' are always encoded.
func escape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldKeep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func shouldKeep(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~$'(),*:@/", c) >= 0
}

// Compiler turns descriptors into requests.
type Compiler struct {
	translator Translator
}

// NewCompiler creates a Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile renders d as a Request. Parameters are emitted in a fixed order:
// $filter, $orderby, $skip, $top, $select, $count, __includedeleted, then
// user parameters in first-insertion order. Compile is pure; calling it twice
// on the same descriptor yields identical requests.
func (c *Compiler) Compile(d query.Descriptor) (Request, error) {
	if err := d.Err(); err != nil {
		return Request{}, err
	}

	var params []Param

	if f := d.Filter(); f != nil {
		text, err := c.translator.Filter(f)
		if err != nil {
			return Request{}, fmt.Errorf("compile filter: %w", err)
		}
		params = append(params, Param{Key: query.ParamFilter, Value: text})
	}

	if ordering := d.Ordering(); len(ordering) > 0 {
		text, err := c.translator.OrderBy(ordering)
		if err != nil {
			return Request{}, fmt.Errorf("compile ordering: %w", err)
		}
		params = append(params, Param{Key: query.ParamOrderBy, Value: text})
	}

	if skip := d.Skip(); skip > 0 {
		params = append(params, Param{Key: query.ParamSkip, Value: strconv.Itoa(skip)})
	}

	if take, ok := d.Take(); ok {
		params = append(params, Param{Key: query.ParamTop, Value: strconv.Itoa(take)})
	}

	if projection := d.Projection(); len(projection) > 0 {
		text, err := c.translator.Select(projection)
		if err != nil {
			return Request{}, fmt.Errorf("compile projection: %w", err)
		}
		params = append(params, Param{Key: query.ParamSelect, Value: text})
	}

	if d.IncludeTotalCount() {
		params = append(params, Param{Key: query.ParamCount, Value: "true"})
	}

	if d.IncludeDeletedItems() {
		params = append(params, Param{Key: query.ParamIncludeDeleted, Value: "true"})
	}

	for _, p := range d.Parameters() {
		params = append(params, Param{Key: p.Key, Value: p.Value})
	}

	return Request{params: params}, nil
}

// Compile renders d using a default Compiler.
func Compile(d query.Descriptor) (Request, error) {
	return NewCompiler().Compile(d)
}
