// Package query provides the immutable query descriptor and the expression
// tree used to filter, order and project records of a remote table.
//
// Every builder method returns a new value and leaves its receiver untouched,
// so a base query can be shared and extended freely:
//
//	base := query.New[Person]().Where(query.Gt(query.Field("Age"), query.Value(18)))
//	adults := base.OrderBy(query.Field("Name"))
//	page := base.Skip(20).Take(10)
//
// A builder call with an invalid argument records the error on the returned
// value. Err reports it immediately; compiling or executing the query
// returns it without contacting the server.
package query

// Query describes a query over records of type T.
type Query[T any] struct {
	d Descriptor
}

// New creates an empty query.
func New[T any]() Query[T] {
	return Query[T]{}
}

// Descriptor returns the untyped query state.
func (q Query[T]) Descriptor() Descriptor { return q.d }

// Err returns the first error recorded by a builder call.
func (q Query[T]) Err() error { return q.d.err }

// Where adds a filter predicate, combined with any existing filter using &&.
func (q Query[T]) Where(predicate Expression) Query[T] {
	return Query[T]{d: q.d.withFilter(predicate)}
}

// OrderBy replaces the ordering with a single ascending clause.
func (q Query[T]) OrderBy(key Expression) Query[T] {
	return Query[T]{d: q.d.withOrder("OrderBy", key, SortAsc, true)}
}

// OrderByDescending replaces the ordering with a single descending clause.
func (q Query[T]) OrderByDescending(key Expression) Query[T] {
	return Query[T]{d: q.d.withOrder("OrderByDescending", key, SortDesc, true)}
}

// ThenBy appends an ascending clause. It must follow OrderBy or OrderByDescending.
func (q Query[T]) ThenBy(key Expression) Query[T] {
	return Query[T]{d: q.d.withOrder("ThenBy", key, SortAsc, false)}
}

// ThenByDescending appends a descending clause. It must follow OrderBy or OrderByDescending.
func (q Query[T]) ThenByDescending(key Expression) Query[T] {
	return Query[T]{d: q.d.withOrder("ThenByDescending", key, SortDesc, false)}
}

// Skip sets the number of records to skip. The last call wins.
func (q Query[T]) Skip(count int) Query[T] {
	return Query[T]{d: q.d.withSkip(count)}
}

// Take sets the maximum number of records to return. The last call wins.
func (q Query[T]) Take(count int) Query[T] {
	return Query[T]{d: q.d.withTake(count)}
}

// IncludeDeletedItems requests soft-deleted records as well.
func (q Query[T]) IncludeDeletedItems(enabled bool) Query[T] {
	if q.d.err == nil {
		q.d.includeDeleted = enabled
	}
	return q
}

// IncludeTotalCount requests the number of records matching the filter,
// ignoring any paging.
func (q Query[T]) IncludeTotalCount(enabled bool) Query[T] {
	if q.d.err == nil {
		q.d.includeCount = enabled
	}
	return q
}

// WithParameter adds a user-defined query string parameter.
func (q Query[T]) WithParameter(key, value string) Query[T] {
	return Query[T]{d: q.d.withParameters("WithParameter", []Parameter{{Key: key, Value: value}})}
}

// WithParameters adds several user-defined query string parameters. If any
// key is rejected, none are added.
func (q Query[T]) WithParameters(params map[string]string) Query[T] {
	return Query[T]{d: q.d.withParameters("WithParameters", sortedParameters(params))}
}
