// pkg/sql/expr/expr.go
package expr

import (
	"fmt"
	"strings"

	"vexdb/pkg/types"
)

// Class identifies the variant of a bound expression
type Class int

const (
	ClassColumnRef Class = iota
	ClassConstant
	ClassComparison
	ClassBetween
	ClassConjunction
	ClassFunction
	ClassIn
	ClassParameter
)

// ComparisonType enumerates the supported comparison operators
type ComparisonType int

const (
	CompareEqual ComparisonType = iota
	CompareNotEqual
	CompareLessThan
	CompareLessThanOrEqual
	CompareGreaterThan
	CompareGreaterThanOrEqual
)

// String returns the SQL spelling of the comparison operator
func (c ComparisonType) String() string {
	switch c {
	case CompareEqual:
		return "="
	case CompareNotEqual:
		return "!="
	case CompareLessThan:
		return "<"
	case CompareLessThanOrEqual:
		return "<="
	case CompareGreaterThan:
		return ">"
	case CompareGreaterThanOrEqual:
		return ">="
	default:
		return "?"
	}
}

// Flip mirrors a comparison operator, for swapping the operand sides:
// a < b becomes b > a.
func Flip(c ComparisonType) ComparisonType {
	switch c {
	case CompareLessThan:
		return CompareGreaterThan
	case CompareLessThanOrEqual:
		return CompareGreaterThanOrEqual
	case CompareGreaterThan:
		return CompareLessThan
	case CompareGreaterThanOrEqual:
		return CompareLessThanOrEqual
	default:
		// = and != are symmetric
		return c
	}
}

// IsGreaterThan reports whether the comparison is > or >=
func IsGreaterThan(c ComparisonType) bool {
	return c == CompareGreaterThan || c == CompareGreaterThanOrEqual
}

// IsLessThan reports whether the comparison is < or <=
func IsLessThan(c ComparisonType) bool {
	return c == CompareLessThan || c == CompareLessThanOrEqual
}

// Expression is a bound expression node. The filter combiner reasons
// about the variants below; anything else stays opaque to it.
type Expression interface {
	Class() Class
	ReturnType() types.ValueType
	// IsFoldable reports whether the expression is constant at planning time
	IsFoldable() bool
	// HasParameter reports whether a prepared-statement parameter occurs anywhere
	HasParameter() bool
	// Equals is structural equality
	Equals(other Expression) bool
	// Copy is a deep copy
	Copy() Expression
	String() string
}

// ColumnRef refers to a column of the input by index
type ColumnRef struct {
	ColumnIndex int
	Name        string
	Typ         types.ValueType
}

func NewColumnRef(index int, name string, typ types.ValueType) *ColumnRef {
	return &ColumnRef{ColumnIndex: index, Name: name, Typ: typ}
}

func (e *ColumnRef) Class() Class                { return ClassColumnRef }
func (e *ColumnRef) ReturnType() types.ValueType { return e.Typ }
func (e *ColumnRef) IsFoldable() bool            { return false }
func (e *ColumnRef) HasParameter() bool          { return false }

func (e *ColumnRef) Equals(other Expression) bool {
	o, ok := other.(*ColumnRef)
	return ok && o.ColumnIndex == e.ColumnIndex
}

func (e *ColumnRef) Copy() Expression {
	c := *e
	return &c
}

func (e *ColumnRef) String() string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("#%d", e.ColumnIndex)
}

// Constant wraps a literal value
type Constant struct {
	Value types.Value
}

func NewConstant(v types.Value) *Constant {
	return &Constant{Value: v}
}

func (e *Constant) Class() Class                { return ClassConstant }
func (e *Constant) ReturnType() types.ValueType { return e.Value.Type() }
func (e *Constant) IsFoldable() bool            { return true }
func (e *Constant) HasParameter() bool          { return false }

func (e *Constant) Equals(other Expression) bool {
	o, ok := other.(*Constant)
	return ok && o.Value.Equals(e.Value) && o.Value.Type() == e.Value.Type()
}

func (e *Constant) Copy() Expression {
	return &Constant{Value: e.Value.Copy()}
}

func (e *Constant) String() string {
	if e.Value.Type() == types.TypeText {
		return "'" + e.Value.Text() + "'"
	}
	return e.Value.String()
}

// Comparison is a binary comparison between two expressions
type Comparison struct {
	CompareType ComparisonType
	Left        Expression
	Right       Expression
}

func NewComparison(t ComparisonType, left, right Expression) *Comparison {
	return &Comparison{CompareType: t, Left: left, Right: right}
}

func (e *Comparison) Class() Class                { return ClassComparison }
func (e *Comparison) ReturnType() types.ValueType { return types.TypeBool }
func (e *Comparison) IsFoldable() bool            { return e.Left.IsFoldable() && e.Right.IsFoldable() }
func (e *Comparison) HasParameter() bool          { return e.Left.HasParameter() || e.Right.HasParameter() }

func (e *Comparison) Equals(other Expression) bool {
	o, ok := other.(*Comparison)
	return ok && o.CompareType == e.CompareType && e.Left.Equals(o.Left) && e.Right.Equals(o.Right)
}

func (e *Comparison) Copy() Expression {
	return &Comparison{CompareType: e.CompareType, Left: e.Left.Copy(), Right: e.Right.Copy()}
}

func (e *Comparison) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.CompareType, e.Right)
}

// Between is input BETWEEN lower AND upper with per-bound inclusivity
type Between struct {
	Input          Expression
	Lower          Expression
	Upper          Expression
	LowerInclusive bool
	UpperInclusive bool
}

func NewBetween(input, lower, upper Expression, lowerInclusive, upperInclusive bool) *Between {
	return &Between{Input: input, Lower: lower, Upper: upper,
		LowerInclusive: lowerInclusive, UpperInclusive: upperInclusive}
}

func (e *Between) Class() Class                { return ClassBetween }
func (e *Between) ReturnType() types.ValueType { return types.TypeBool }

func (e *Between) IsFoldable() bool {
	return e.Input.IsFoldable() && e.Lower.IsFoldable() && e.Upper.IsFoldable()
}

func (e *Between) HasParameter() bool {
	return e.Input.HasParameter() || e.Lower.HasParameter() || e.Upper.HasParameter()
}

func (e *Between) Equals(other Expression) bool {
	o, ok := other.(*Between)
	return ok && e.Input.Equals(o.Input) && e.Lower.Equals(o.Lower) && e.Upper.Equals(o.Upper) &&
		e.LowerInclusive == o.LowerInclusive && e.UpperInclusive == o.UpperInclusive
}

func (e *Between) Copy() Expression {
	return &Between{Input: e.Input.Copy(), Lower: e.Lower.Copy(), Upper: e.Upper.Copy(),
		LowerInclusive: e.LowerInclusive, UpperInclusive: e.UpperInclusive}
}

func (e *Between) String() string {
	return fmt.Sprintf("(%s BETWEEN %s AND %s)", e.Input, e.Lower, e.Upper)
}

// ConjunctionType selects AND or OR
type ConjunctionType int

const (
	ConjunctionAnd ConjunctionType = iota
	ConjunctionOr
)

// Conjunction is an n-ary AND/OR
type Conjunction struct {
	ConjType ConjunctionType
	Children []Expression
}

func NewConjunction(t ConjunctionType, children ...Expression) *Conjunction {
	return &Conjunction{ConjType: t, Children: children}
}

func (e *Conjunction) Class() Class                { return ClassConjunction }
func (e *Conjunction) ReturnType() types.ValueType { return types.TypeBool }

func (e *Conjunction) IsFoldable() bool {
	for _, c := range e.Children {
		if !c.IsFoldable() {
			return false
		}
	}
	return true
}

func (e *Conjunction) HasParameter() bool {
	for _, c := range e.Children {
		if c.HasParameter() {
			return true
		}
	}
	return false
}

func (e *Conjunction) Equals(other Expression) bool {
	o, ok := other.(*Conjunction)
	if !ok || o.ConjType != e.ConjType || len(o.Children) != len(e.Children) {
		return false
	}
	for i := range e.Children {
		if !e.Children[i].Equals(o.Children[i]) {
			return false
		}
	}
	return true
}

func (e *Conjunction) Copy() Expression {
	children := make([]Expression, len(e.Children))
	for i, c := range e.Children {
		children[i] = c.Copy()
	}
	return &Conjunction{ConjType: e.ConjType, Children: children}
}

func (e *Conjunction) String() string {
	sep := " AND "
	if e.ConjType == ConjunctionOr {
		sep = " OR "
	}
	parts := make([]string, len(e.Children))
	for i, c := range e.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Function is a named scalar function call. The filter combiner
// recognizes "~~" (LIKE) and "prefix"; everything else is opaque.
type Function struct {
	Name     string
	Children []Expression
	Typ      types.ValueType
}

func NewFunction(name string, typ types.ValueType, children ...Expression) *Function {
	return &Function{Name: name, Children: children, Typ: typ}
}

func (e *Function) Class() Class                { return ClassFunction }
func (e *Function) ReturnType() types.ValueType { return e.Typ }

func (e *Function) IsFoldable() bool {
	// function calls are not folded here; the planner folds them upstream
	return false
}

func (e *Function) HasParameter() bool {
	for _, c := range e.Children {
		if c.HasParameter() {
			return true
		}
	}
	return false
}

func (e *Function) Equals(other Expression) bool {
	o, ok := other.(*Function)
	if !ok || o.Name != e.Name || len(o.Children) != len(e.Children) {
		return false
	}
	for i := range e.Children {
		if !e.Children[i].Equals(o.Children[i]) {
			return false
		}
	}
	return true
}

func (e *Function) Copy() Expression {
	children := make([]Expression, len(e.Children))
	for i, c := range e.Children {
		children[i] = c.Copy()
	}
	return &Function{Name: e.Name, Children: children, Typ: e.Typ}
}

func (e *Function) String() string {
	parts := make([]string, len(e.Children))
	for i, c := range e.Children {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(parts, ", "))
}

// In is input IN (list...); Children[0] is the input expression
type In struct {
	Children []Expression
}

func NewIn(input Expression, list ...Expression) *In {
	return &In{Children: append([]Expression{input}, list...)}
}

func (e *In) Class() Class                { return ClassIn }
func (e *In) ReturnType() types.ValueType { return types.TypeBool }

func (e *In) IsFoldable() bool {
	for _, c := range e.Children {
		if !c.IsFoldable() {
			return false
		}
	}
	return true
}

func (e *In) HasParameter() bool {
	for _, c := range e.Children {
		if c.HasParameter() {
			return true
		}
	}
	return false
}

func (e *In) Equals(other Expression) bool {
	o, ok := other.(*In)
	if !ok || len(o.Children) != len(e.Children) {
		return false
	}
	for i := range e.Children {
		if !e.Children[i].Equals(o.Children[i]) {
			return false
		}
	}
	return true
}

func (e *In) Copy() Expression {
	children := make([]Expression, len(e.Children))
	for i, c := range e.Children {
		children[i] = c.Copy()
	}
	return &In{Children: children}
}

func (e *In) String() string {
	parts := make([]string, 0, len(e.Children)-1)
	for _, c := range e.Children[1:] {
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("(%s IN (%s))", e.Children[0], strings.Join(parts, ", "))
}

// Parameter is a prepared-statement placeholder
type Parameter struct {
	Index int
	Typ   types.ValueType
}

func NewParameter(index int, typ types.ValueType) *Parameter {
	return &Parameter{Index: index, Typ: typ}
}

func (e *Parameter) Class() Class                { return ClassParameter }
func (e *Parameter) ReturnType() types.ValueType { return e.Typ }
func (e *Parameter) IsFoldable() bool            { return false }
func (e *Parameter) HasParameter() bool          { return true }

func (e *Parameter) Equals(other Expression) bool {
	o, ok := other.(*Parameter)
	return ok && o.Index == e.Index
}

func (e *Parameter) Copy() Expression {
	c := *e
	return &c
}

func (e *Parameter) String() string {
	return fmt.Sprintf("$%d", e.Index)
}
