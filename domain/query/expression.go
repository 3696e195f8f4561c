package query

import (
	"fmt"
	"strings"
)

// Expression is a node of a filter, ordering, or projection expression tree.
//
// The set of node types is closed in practice: the translator only knows the
// types declared in this file and rejects anything else.
type Expression interface {
	isExpression()
}

// Operator identifies the operator of a Binary node.
type Operator int

// Operator values.
const (
	OpEqual Operator = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpAnd
	OpOr
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
)

// String returns the source-level spelling of the operator.
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpModulo:
		return "%"
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// IsLogical reports whether the operator is && or ||.
func (o Operator) IsLogical() bool {
	return o == OpAnd || o == OpOr
}

// IsComparison reports whether the operator is an equality or relational operator.
func (o Operator) IsComparison() bool {
	return o >= OpEqual && o <= OpGreaterThanOrEqual
}

// Member reads a (possibly nested) field of the record.
type Member struct {
	path []string
}

// Field returns a member access for the given path segments. Field("Address", "City")
// and Field("Address.City") are equivalent.
func Field(path ...string) *Member {
	segments := make([]string, 0, len(path))
	for _, p := range path {
		segments = append(segments, strings.Split(p, ".")...)
	}
	return &Member{path: segments}
}

// Path returns the dotted path of the member.
func (m *Member) Path() string { return strings.Join(m.path, ".") }

// Segments returns a copy of the path segments.
func (m *Member) Segments() []string {
	out := make([]string, len(m.path))
	copy(out, m.path)
	return out
}

// Field returns a member access nested below m.
func (m *Member) Field(name string) *Member {
	segments := make([]string, len(m.path), len(m.path)+1)
	copy(segments, m.path)
	return &Member{path: append(segments, strings.Split(name, ".")...)}
}

// Constant is a literal value.
type Constant struct {
	value any
}

// Value returns a literal expression. Pointers are dereferenced when the
// expression is translated, not when it is built.
func Value(v any) *Constant { return &Constant{value: v} }

// Null returns the null literal.
func Null() *Constant { return &Constant{} }

// Raw returns the literal value.
func (c *Constant) Raw() any { return c.value }

// Capture is a value read from the caller's scope. The function is invoked
// each time the expression is translated and its result is rendered as a
// literal in the output.
type Capture struct {
	fn func() any
}

// Captured returns an expression whose value is produced by fn at translation time.
func Captured(fn func() any) *Capture { return &Capture{fn: fn} }

// Eval invokes the captured function.
func (c *Capture) Eval() any {
	if c.fn == nil {
		return nil
	}
	return c.fn()
}

// Binary applies an operator to two operands. Where copies the tree it is
// given, so later changes to a node do not reach queries built from it.
type Binary struct {
	Op    Operator
	Left  Expression
	Right Expression
}

// Not negates a boolean expression.
type Not struct {
	Operand Expression
}

// Call invokes a named function.
type Call struct {
	Name string
	Args []Expression
}

func (*Member) isExpression()   {}
func (*Constant) isExpression() {}
func (*Capture) isExpression()  {}
func (*Binary) isExpression()   {}
func (*Not) isExpression()      {}
func (*Call) isExpression()     {}

// clone copies the composite nodes of e. Leaves are immutable and shared.
func clone(e Expression) Expression {
	switch n := e.(type) {
	case *Binary:
		if n == nil {
			return n
		}
		return &Binary{Op: n.Op, Left: clone(n.Left), Right: clone(n.Right)}
	case *Not:
		if n == nil {
			return n
		}
		return &Not{Operand: clone(n.Operand)}
	case *Call:
		if n == nil {
			return n
		}
		args := make([]Expression, len(n.Args))
		for i, a := range n.Args {
			args[i] = clone(a)
		}
		return &Call{Name: n.Name, Args: args}
	default:
		return e
	}
}

// Function names understood by the wire syntax.
const (
	FuncContains   = "contains"
	FuncStartsWith = "startswith"
	FuncEndsWith   = "endswith"
	FuncToLower    = "tolower"
	FuncToUpper    = "toupper"
)

func binary(op Operator, left, right Expression) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// Eq builds left == right.
func Eq(left, right Expression) *Binary { return binary(OpEqual, left, right) }

// Ne builds left != right.
func Ne(left, right Expression) *Binary { return binary(OpNotEqual, left, right) }

// Lt builds left < right.
func Lt(left, right Expression) *Binary { return binary(OpLessThan, left, right) }

// Le builds left <= right.
func Le(left, right Expression) *Binary { return binary(OpLessThanOrEqual, left, right) }

// Gt builds left > right.
func Gt(left, right Expression) *Binary { return binary(OpGreaterThan, left, right) }

// Ge builds left >= right.
func Ge(left, right Expression) *Binary { return binary(OpGreaterThanOrEqual, left, right) }

// And folds the operands left to right with &&. With a single operand it
// returns that operand unchanged.
func And(first Expression, rest ...Expression) Expression {
	return fold(OpAnd, first, rest)
}

// Or folds the operands left to right with ||.
func Or(first Expression, rest ...Expression) Expression {
	return fold(OpOr, first, rest)
}

func fold(op Operator, first Expression, rest []Expression) Expression {
	result := first
	for _, e := range rest {
		result = binary(op, result, e)
	}
	return result
}

// Negate builds !operand.
func Negate(operand Expression) *Not { return &Not{Operand: operand} }

// Contains builds haystack.Contains(needle).
func Contains(haystack, needle Expression) *Call {
	return &Call{Name: FuncContains, Args: []Expression{haystack, needle}}
}

// StartsWith builds s.StartsWith(prefix).
func StartsWith(s, prefix Expression) *Call {
	return &Call{Name: FuncStartsWith, Args: []Expression{s, prefix}}
}

// EndsWith builds s.EndsWith(suffix).
func EndsWith(s, suffix Expression) *Call {
	return &Call{Name: FuncEndsWith, Args: []Expression{s, suffix}}
}

// ToLower builds s.ToLower().
func ToLower(s Expression) *Call { return &Call{Name: FuncToLower, Args: []Expression{s}} }

// ToUpper builds s.ToUpper().
func ToUpper(s Expression) *Call { return &Call{Name: FuncToUpper, Args: []Expression{s}} }

// IsNull builds e == null.
func IsNull(e Expression) *Binary { return Eq(e, Null()) }

// IsNotNull builds e != null.
func IsNotNull(e Expression) *Binary { return Ne(e, Null()) }

// Describe returns a short source-like description of an expression, used in
// error messages.
func Describe(e Expression) string {
	switch n := e.(type) {
	case nil:
		return "<nil>"
	case *Member:
		if n == nil {
			return "<nil>"
		}
		return n.Path()
	case *Constant:
		if n == nil {
			return "<nil>"
		}
		return fmt.Sprintf("%v", n.value)
	case *Capture:
		return "captured value"
	case *Binary:
		if n == nil {
			return "<nil>"
		}
		return fmt.Sprintf("%s %s %s", Describe(n.Left), n.Op, Describe(n.Right))
	case *Not:
		if n == nil {
			return "<nil>"
		}
		return "!" + Describe(n.Operand)
	case *Call:
		if n == nil {
			return "<nil>"
		}
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = Describe(a)
		}
		return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ", "))
	default:
		return fmt.Sprintf("%T", e)
	}
}
