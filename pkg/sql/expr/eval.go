// pkg/sql/expr/eval.go
package expr

import (
	"strings"

	"github.com/cockroachdb/errors"

	"vexdb/pkg/chunk"
	"vexdb/pkg/types"
)

// Evaluator is the narrow interface through which the execution core
// evaluates expressions. The surrounding engine supplies it; Simple
// below covers column references, constants and the recognized
// predicate forms, which is what the cores and their tests need.
type Evaluator interface {
	// EvaluateScalar folds an expression to a single value.
	// Only valid when expr.IsFoldable() is true.
	EvaluateScalar(e Expression) (types.Value, error)
	// ExecuteExpression evaluates an expression once per row of the
	// input chunk and returns the result column.
	ExecuteExpression(e Expression, input *chunk.DataChunk) ([]types.Value, error)
}

// Simple is a row-at-a-time expression evaluator over column
// references, constants, comparisons, BETWEEN, conjunctions, IN and
// the LIKE/prefix functions.
type Simple struct{}

// NewEvaluator creates a Simple evaluator
func NewEvaluator() *Simple {
	return &Simple{}
}

// EvaluateScalar folds a constant expression to a value
func (s *Simple) EvaluateScalar(e Expression) (types.Value, error) {
	if !e.IsFoldable() {
		return types.NewNull(), errors.Newf("expression %s is not foldable", e)
	}
	return s.evalRow(e, nil)
}

// ExecuteExpression evaluates e against every row of the input chunk
func (s *Simple) ExecuteExpression(e Expression, input *chunk.DataChunk) ([]types.Value, error) {
	out := make([]types.Value, input.Size())
	row := make([]types.Value, input.ColumnCount())
	for i := 0; i < input.Size(); i++ {
		for col := range row {
			row[col] = input.GetValue(col, i)
		}
		v, err := s.evalRow(e, row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *Simple) evalRow(e Expression, row []types.Value) (types.Value, error) {
	switch ex := e.(type) {
	case *Constant:
		return ex.Value, nil
	case *ColumnRef:
		if row == nil || ex.ColumnIndex >= len(row) {
			return types.NewNull(), errors.Newf("column %d out of range", ex.ColumnIndex)
		}
		return row[ex.ColumnIndex], nil
	case *Comparison:
		left, err := s.evalRow(ex.Left, row)
		if err != nil {
			return types.NewNull(), err
		}
		right, err := s.evalRow(ex.Right, row)
		if err != nil {
			return types.NewNull(), err
		}
		if left.IsNull() || right.IsNull() {
			return types.NewNull(), nil
		}
		return types.NewBool(compareSatisfies(left.Compare(right), ex.CompareType)), nil
	case *Between:
		input, err := s.evalRow(ex.Input, row)
		if err != nil {
			return types.NewNull(), err
		}
		lower, err := s.evalRow(ex.Lower, row)
		if err != nil {
			return types.NewNull(), err
		}
		upper, err := s.evalRow(ex.Upper, row)
		if err != nil {
			return types.NewNull(), err
		}
		if input.IsNull() || lower.IsNull() || upper.IsNull() {
			return types.NewNull(), nil
		}
		lowOK := input.Compare(lower) > 0 || (ex.LowerInclusive && input.Compare(lower) == 0)
		highOK := input.Compare(upper) < 0 || (ex.UpperInclusive && input.Compare(upper) == 0)
		return types.NewBool(lowOK && highOK), nil
	case *Conjunction:
		result := ex.ConjType == ConjunctionAnd
		for _, c := range ex.Children {
			v, err := s.evalRow(c, row)
			if err != nil {
				return types.NewNull(), err
			}
			b, err := v.CastAs(types.TypeBool)
			if err != nil {
				return types.NewNull(), err
			}
			if b.IsNull() {
				return types.NewNull(), nil
			}
			if ex.ConjType == ConjunctionAnd {
				result = result && b.Bool()
			} else {
				result = result || b.Bool()
			}
		}
		return types.NewBool(result), nil
	case *In:
		input, err := s.evalRow(ex.Children[0], row)
		if err != nil {
			return types.NewNull(), err
		}
		if input.IsNull() {
			return types.NewNull(), nil
		}
		for _, c := range ex.Children[1:] {
			v, err := s.evalRow(c, row)
			if err != nil {
				return types.NewNull(), err
			}
			if !v.IsNull() && input.Compare(v) == 0 {
				return types.NewBool(true), nil
			}
		}
		return types.NewBool(false), nil
	case *Function:
		return s.evalFunction(ex, row)
	case *Parameter:
		return types.NewNull(), errors.Newf("cannot evaluate unbound parameter $%d", ex.Index)
	default:
		return types.NewNull(), errors.Newf("cannot evaluate expression %s", e)
	}
}

func (s *Simple) evalFunction(ex *Function, row []types.Value) (types.Value, error) {
	switch ex.Name {
	case "~~":
		// LIKE with % and _ wildcards
		if len(ex.Children) != 2 {
			return types.NewNull(), errors.Newf("~~ expects 2 arguments")
		}
		input, err := s.evalRow(ex.Children[0], row)
		if err != nil {
			return types.NewNull(), err
		}
		pattern, err := s.evalRow(ex.Children[1], row)
		if err != nil {
			return types.NewNull(), err
		}
		if input.IsNull() || pattern.IsNull() {
			return types.NewNull(), nil
		}
		return types.NewBool(likeMatch(input.Text(), pattern.Text())), nil
	case "prefix":
		if len(ex.Children) != 2 {
			return types.NewNull(), errors.Newf("prefix expects 2 arguments")
		}
		input, err := s.evalRow(ex.Children[0], row)
		if err != nil {
			return types.NewNull(), err
		}
		prefix, err := s.evalRow(ex.Children[1], row)
		if err != nil {
			return types.NewNull(), err
		}
		if input.IsNull() || prefix.IsNull() {
			return types.NewNull(), nil
		}
		return types.NewBool(strings.HasPrefix(input.Text(), prefix.Text())), nil
	default:
		return types.NewNull(), errors.Newf("unknown function %s", ex.Name)
	}
}

// compareSatisfies checks a three-way comparison result against an operator
func compareSatisfies(cmp int, op ComparisonType) bool {
	switch op {
	case CompareEqual:
		return cmp == 0
	case CompareNotEqual:
		return cmp != 0
	case CompareLessThan:
		return cmp < 0
	case CompareLessThanOrEqual:
		return cmp <= 0
	case CompareGreaterThan:
		return cmp > 0
	case CompareGreaterThanOrEqual:
		return cmp >= 0
	default:
		return false
	}
}

// likeMatch implements SQL LIKE with % (any run) and _ (any single char)
func likeMatch(s, pattern string) bool {
	return likeMatchAt(s, pattern, 0, 0)
}

func likeMatchAt(s, pattern string, si, pi int) bool {
	for pi < len(pattern) {
		switch pattern[pi] {
		case '%':
			// try every possible match length for the wildcard
			for k := si; k <= len(s); k++ {
				if likeMatchAt(s, pattern, k, pi+1) {
					return true
				}
			}
			return false
		case '_':
			if si >= len(s) {
				return false
			}
			si++
			pi++
		default:
			if si >= len(s) || s[si] != pattern[pi] {
				return false
			}
			si++
			pi++
		}
	}
	return si == len(s)
}
