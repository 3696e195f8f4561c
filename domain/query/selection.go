package query

// Selection is a query over records of type T whose results are projected
// into values of type U. Filtering and ordering are fixed once a projection
// is applied, so Selection has no Where, OrderBy or ThenBy methods.
type Selection[T, U any] struct {
	d Descriptor
}

// Select projects the results of q into U by reading the given members of T.
// Each selector must be a direct member access; anything computed fails with
// an UnsupportedExpressionError. Paths are sent in declaration order and
// duplicates are dropped.
func Select[T, U any](q Query[T], members ...Expression) Selection[T, U] {
	return Selection[T, U]{d: q.d.withProjection(members)}
}

// Descriptor returns the untyped query state.
func (s Selection[T, U]) Descriptor() Descriptor { return s.d }

// Err returns the first error recorded by a builder call.
func (s Selection[T, U]) Err() error { return s.d.err }

// Skip sets the number of records to skip. The last call wins.
func (s Selection[T, U]) Skip(count int) Selection[T, U] {
	return Selection[T, U]{d: s.d.withSkip(count)}
}

// Take sets the maximum number of records to return. The last call wins.
func (s Selection[T, U]) Take(count int) Selection[T, U] {
	return Selection[T, U]{d: s.d.withTake(count)}
}

// IncludeDeletedItems requests soft-deleted records as well.
func (s Selection[T, U]) IncludeDeletedItems(enabled bool) Selection[T, U] {
	if s.d.err == nil {
		s.d.includeDeleted = enabled
	}
	return s
}

// IncludeTotalCount requests the number of matching records.
func (s Selection[T, U]) IncludeTotalCount(enabled bool) Selection[T, U] {
	if s.d.err == nil {
		s.d.includeCount = enabled
	}
	return s
}

// WithParameter adds a user-defined query string parameter.
func (s Selection[T, U]) WithParameter(key, value string) Selection[T, U] {
	return Selection[T, U]{d: s.d.withParameters("WithParameter", []Parameter{{Key: key, Value: value}})}
}

// WithParameters adds several user-defined query string parameters.
func (s Selection[T, U]) WithParameters(params map[string]string) Selection[T, U] {
	return Selection[T, U]{d: s.d.withParameters("WithParameters", sortedParameters(params))}
}
