// Package odata translates query descriptors into OData-style wire
// parameters understood by Datasync table endpoints.
package odata

import (
	"fmt"
	"strings"

	"github.com/helixml/datasync/domain/query"
)

var wireOperators = map[query.Operator]string{
	query.OpEqual:              "eq",
	query.OpNotEqual:           "ne",
	query.OpLessThan:           "lt",
	query.OpLessThanOrEqual:    "le",
	query.OpGreaterThan:        "gt",
	query.OpGreaterThanOrEqual: "ge",
	query.OpAnd:                "and",
	query.OpOr:                 "or",
}

// Translator renders expression trees as wire syntax. The zero value is
// ready to use and a Translator holds no state between calls.
type Translator struct{}

// Filter renders a predicate, e.g. `(Name eq 'bob') and (Age gt 5)`.
// Captured values are evaluated during the call. On error no partial
// output is returned.
func (Translator) Filter(e query.Expression) (string, error) {
	if err := query.Validate(e); err != nil {
		return "", err
	}
	var b strings.Builder
	if err := visit(&b, e); err != nil {
		return "", err
	}
	return b.String(), nil
}

// OrderBy renders ordering clauses as `path asc,path desc`.
func (Translator) OrderBy(ordering []query.OrderBy) (string, error) {
	parts := make([]string, 0, len(ordering))
	for _, o := range ordering {
		if err := query.Validate(o.Member()); err != nil {
			return "", err
		}
		parts = append(parts, o.Member().Path()+" "+o.Direction().String())
	}
	return strings.Join(parts, ","), nil
}

// Select renders projected members as a comma-separated path list.
func (Translator) Select(members []*query.Member) (string, error) {
	parts := make([]string, 0, len(members))
	for _, m := range members {
		if err := query.Validate(m); err != nil {
			return "", err
		}
		parts = append(parts, m.Path())
	}
	return strings.Join(parts, ","), nil
}

func visit(b *strings.Builder, e query.Expression) error {
	switch n := e.(type) {
	case *query.Member:
		b.WriteString(n.Path())
		return nil
	case *query.Constant:
		return writeLiteral(b, n.Raw())
	case *query.Capture:
		return writeLiteral(b, n.Eval())
	case *query.Binary:
		return visitBinary(b, n)
	case *query.Not:
		b.WriteString("not(")
		if err := visit(b, n.Operand); err != nil {
			return err
		}
		b.WriteByte(')')
		return nil
	case *query.Call:
		b.WriteString(n.Name)
		b.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := visit(b, a); err != nil {
				return err
			}
		}
		b.WriteByte(')')
		return nil
	default:
		return query.NewUnsupportedExpressionError(query.Describe(e), "unknown expression node")
	}
}

func visitBinary(b *strings.Builder, n *query.Binary) error {
	token, ok := wireOperators[n.Op]
	if !ok {
		return query.NewUnsupportedExpressionError(query.Describe(n), fmt.Sprintf("operator %s is not supported", n.Op))
	}
	if err := visitOperand(b, n, n.Left, true); err != nil {
		return err
	}
	b.WriteByte(' ')
	b.WriteString(token)
	b.WriteByte(' ')
	return visitOperand(b, n, n.Right, false)
}

// visitOperand parenthesizes binary operands, except the left operand of a
// logical chain using the same operator, which is left-associative.
func visitOperand(b *strings.Builder, parent *query.Binary, operand query.Expression, left bool) error {
	child, ok := operand.(*query.Binary)
	if !ok {
		return visit(b, operand)
	}
	if left && parent.Op.IsLogical() && child.Op == parent.Op {
		return visit(b, child)
	}
	b.WriteByte('(')
	if err := visit(b, child); err != nil {
		return err
	}
	b.WriteByte(')')
	return nil
}

func writeLiteral(b *strings.Builder, v any) error {
	s, err := Literal(v)
	if err != nil {
		return err
	}
	b.WriteString(s)
	return nil
}
