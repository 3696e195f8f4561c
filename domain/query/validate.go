package query

import "fmt"

var functionArity = map[string]int{
	FuncContains:   2,
	FuncStartsWith: 2,
	FuncEndsWith:   2,
	FuncToLower:    1,
	FuncToUpper:    1,
}

// Validate checks that every node of e belongs to the supported subset.
// Literal values are checked later, when they are rendered.
func Validate(e Expression) error {
	switch n := e.(type) {
	case nil:
		return NewUnsupportedExpressionError("<nil>", "missing expression")
	case *Member:
		if n == nil || len(n.path) == 0 {
			return NewUnsupportedExpressionError("<empty member>", "member access needs a path")
		}
		for _, s := range n.path {
			if s == "" {
				return NewUnsupportedExpressionError(n.Path(), "member path has an empty segment")
			}
		}
		return nil
	case *Constant:
		if n == nil {
			return NewUnsupportedExpressionError("<nil>", "missing expression")
		}
		return nil
	case *Capture:
		if n == nil {
			return NewUnsupportedExpressionError("<nil>", "missing expression")
		}
		return nil
	case *Binary:
		if n == nil {
			return NewUnsupportedExpressionError("<nil>", "missing expression")
		}
		if !n.Op.IsComparison() && !n.Op.IsLogical() {
			return NewUnsupportedExpressionError(Describe(n), fmt.Sprintf("operator %s is not supported", n.Op))
		}
		if err := Validate(n.Left); err != nil {
			return err
		}
		return Validate(n.Right)
	case *Not:
		if n == nil {
			return NewUnsupportedExpressionError("<nil>", "missing expression")
		}
		return Validate(n.Operand)
	case *Call:
		if n == nil {
			return NewUnsupportedExpressionError("<nil>", "missing expression")
		}
		arity, ok := functionArity[n.Name]
		if !ok {
			return NewUnsupportedExpressionError(Describe(n), fmt.Sprintf("method %q is not supported", n.Name))
		}
		if len(n.Args) != arity {
			return NewUnsupportedExpressionError(Describe(n), fmt.Sprintf("%s takes %d arguments, got %d", n.Name, arity, len(n.Args)))
		}
		for _, a := range n.Args {
			if err := Validate(a); err != nil {
				return err
			}
		}
		return nil
	default:
		return NewUnsupportedExpressionError(Describe(e), "unknown expression node")
	}
}

// memberOf returns e as a member access, or an error naming the construct.
func memberOf(e Expression, role string) (*Member, error) {
	m, ok := e.(*Member)
	if !ok || m == nil {
		return nil, NewUnsupportedExpressionError(Describe(e), role+" must be a direct member access")
	}
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}
