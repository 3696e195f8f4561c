package query

import "slices"

// SortDirection represents sort direction.
type SortDirection int

// SortDirection values.
const (
	SortAsc SortDirection = iota
	SortDesc
)

// String returns the wire representation.
func (s SortDirection) String() string {
	if s == SortDesc {
		return "desc"
	}
	return "asc"
}

// OrderBy represents a sort specification.
type OrderBy struct {
	member    *Member
	direction SortDirection
}

// NewOrderBy creates a new OrderBy.
func NewOrderBy(member *Member, direction SortDirection) OrderBy {
	return OrderBy{
		member:    member,
		direction: direction,
	}
}

// Member returns the member being ordered by.
func (o OrderBy) Member() *Member { return o.member }

// Direction returns the sort direction.
func (o OrderBy) Direction() SortDirection { return o.direction }

// Descriptor is the untyped state shared by Query and Selection. It is a
// value: every change produces a copy and slices are never shared between
// copies in a way that lets one observe another's appends.
type Descriptor struct {
	filter         Expression
	ordering       []OrderBy
	projection     []*Member
	skip           int
	take           int
	hasTake        bool
	includeDeleted bool
	includeCount   bool
	parameters     []Parameter
	err            error
}

// Filter returns the filter predicate, or nil when there is none.
func (d Descriptor) Filter() Expression { return d.filter }

// Ordering returns the ordering clauses in priority order.
func (d Descriptor) Ordering() []OrderBy { return slices.Clone(d.ordering) }

// Projection returns the projected member paths, or nil when the full record is returned.
func (d Descriptor) Projection() []*Member { return slices.Clone(d.projection) }

// Skip returns the number of records to skip.
func (d Descriptor) Skip() int { return d.skip }

// Take returns the maximum number of records and whether one was set.
func (d Descriptor) Take() (int, bool) { return d.take, d.hasTake }

// IncludeDeletedItems reports whether soft-deleted records are requested.
func (d Descriptor) IncludeDeletedItems() bool { return d.includeDeleted }

// IncludeTotalCount reports whether the total count is requested.
func (d Descriptor) IncludeTotalCount() bool { return d.includeCount }

// Parameters returns user parameters in first-insertion order.
func (d Descriptor) Parameters() []Parameter { return slices.Clone(d.parameters) }

// Err returns the first error recorded by a builder call.
func (d Descriptor) Err() error { return d.err }

func (d Descriptor) fail(err error) Descriptor {
	if d.err == nil {
		d.err = err
	}
	return d
}

func (d Descriptor) withFilter(predicate Expression) Descriptor {
	if d.err != nil {
		return d
	}
	if err := Validate(predicate); err != nil {
		return d.fail(err)
	}
	predicate = clone(predicate)
	if d.filter == nil {
		d.filter = predicate
	} else {
		d.filter = &Binary{Op: OpAnd, Left: d.filter, Right: predicate}
	}
	return d
}

func (d Descriptor) withOrder(operation string, key Expression, direction SortDirection, replace bool) Descriptor {
	if d.err != nil {
		return d
	}
	if !replace && len(d.ordering) == 0 {
		return d.fail(NewInvalidArgumentError(operation, "keySelector", "must follow OrderBy or OrderByDescending"))
	}
	member, err := memberOf(key, "ordering key")
	if err != nil {
		return d.fail(err)
	}
	entry := NewOrderBy(member, direction)
	if replace {
		d.ordering = []OrderBy{entry}
	} else {
		d.ordering = append(slices.Clip(d.ordering), entry)
	}
	return d
}

func (d Descriptor) withSkip(count int) Descriptor {
	if d.err != nil {
		return d
	}
	if count < 0 {
		return d.fail(NewInvalidArgumentError("Skip", "count", "must not be negative"))
	}
	d.skip = count
	return d
}

func (d Descriptor) withTake(count int) Descriptor {
	if d.err != nil {
		return d
	}
	if count < 0 {
		return d.fail(NewInvalidArgumentError("Take", "count", "must not be negative"))
	}
	d.take = count
	d.hasTake = true
	return d
}

func (d Descriptor) withParameters(operation string, params []Parameter) Descriptor {
	if d.err != nil {
		return d
	}
	for _, p := range params {
		if err := validateParameterKey(operation, p.Key); err != nil {
			return d.fail(err)
		}
	}
	merged := slices.Clone(d.parameters)
	for _, p := range params {
		i := slices.IndexFunc(merged, func(existing Parameter) bool { return existing.Key == p.Key })
		if i >= 0 {
			merged[i].Value = p.Value
			continue
		}
		merged = append(merged, p)
	}
	d.parameters = merged
	return d
}

func (d Descriptor) withProjection(members []Expression) Descriptor {
	if d.err != nil {
		return d
	}
	if len(members) == 0 {
		return d.fail(NewUnsupportedExpressionError("<empty selector>", "selector must read at least one member"))
	}
	projection := make([]*Member, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, e := range members {
		m, err := memberOf(e, "selector")
		if err != nil {
			return d.fail(err)
		}
		if _, dup := seen[m.Path()]; dup {
			continue
		}
		seen[m.Path()] = struct{}{}
		projection = append(projection, m)
	}
	d.projection = projection
	return d
}
