// pkg/sql/optimizer/filter_combiner.go
//
// The filter combiner ingests a conjunction of predicates, groups
// expressions proved equal into equivalence sets, tracks the constant
// bounds that apply to each set, prunes redundant or contradictory
// bounds, and derives transitive filters across equalities and
// inequalities. On request it emits the normalized filter set and
// pushdown filters for the storage layer.
package optimizer

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"vexdb/pkg/sql/expr"
	"vexdb/pkg/types"
)

// FilterResult is the outcome of absorbing one predicate
type FilterResult int

const (
	// FilterSuccess: the predicate was absorbed (or proved trivially true)
	FilterSuccess FilterResult = iota
	// FilterUnsupported: the combiner cannot reason about the predicate
	FilterUnsupported
	// FilterUnsatisfiable: the conjunction can never be true
	FilterUnsatisfiable
)

// ExpressionValueInformation is one constant bound on an equivalence set
type ExpressionValueInformation struct {
	ComparisonType expr.ComparisonType
	Constant       types.Value
}

func (i ExpressionValueInformation) String() string {
	return fmt.Sprintf("%s %s", i.ComparisonType, i.Constant)
}

// FilterCombiner holds the canonicalization state. Expressions are
// interned into an arena of owned copies; all maps are keyed by the
// arena handle, so two structurally equal inputs share one entry.
type FilterCombiner struct {
	eval expr.Evaluator

	// arena of owned canonical expressions; handles index into it
	stored      []expr.Expression
	storedIndex map[string]int

	equivalenceSetMap map[int]int
	equivalenceMap    map[int][]int
	constantValues    map[int][]ExpressionValueInformation
	remainingFilters  []expr.Expression
	setIndex          int
}

// NewFilterCombiner creates a combiner that folds scalar predicates
// through the given evaluator.
func NewFilterCombiner(eval expr.Evaluator) *FilterCombiner {
	return &FilterCombiner{
		eval:              eval,
		storedIndex:       make(map[string]int),
		equivalenceSetMap: make(map[int]int),
		equivalenceMap:    make(map[int][]int),
		constantValues:    make(map[int][]ExpressionValueInformation),
	}
}

// internKey builds a structural identity key for interning. Two
// expressions with the same key are structurally equal; equal
// expressions that produce different keys merely miss a dedup
// opportunity, which costs optimization, not correctness.
func internKey(e expr.Expression) string {
	switch ex := e.(type) {
	case *expr.ColumnRef:
		return fmt.Sprintf("col:%d", ex.ColumnIndex)
	case *expr.Constant:
		return fmt.Sprintf("const:%s:%s", ex.Value.Type(), ex.Value)
	case *expr.Comparison:
		return fmt.Sprintf("cmp:%s(%s,%s)", ex.CompareType, internKey(ex.Left), internKey(ex.Right))
	case *expr.Between:
		return fmt.Sprintf("between:%v%v(%s,%s,%s)", ex.LowerInclusive, ex.UpperInclusive,
			internKey(ex.Input), internKey(ex.Lower), internKey(ex.Upper))
	case *expr.Conjunction:
		key := fmt.Sprintf("conj:%d(", ex.ConjType)
		for _, c := range ex.Children {
			key += internKey(c) + ","
		}
		return key + ")"
	case *expr.Function:
		key := "func:" + ex.Name + "("
		for _, c := range ex.Children {
			key += internKey(c) + ","
		}
		return key + ")"
	case *expr.In:
		key := "in:("
		for _, c := range ex.Children {
			key += internKey(c) + ","
		}
		return key + ")"
	case *expr.Parameter:
		return fmt.Sprintf("param:%d", ex.Index)
	default:
		return "opaque:" + e.String()
	}
}

// getNode interns an expression: stores an owned copy once and returns
// its handle.
func (fc *FilterCombiner) getNode(e expr.Expression) int {
	key := internKey(e)
	if handle, ok := fc.storedIndex[key]; ok {
		// expression already exists: return the stored handle
		return handle
	}
	// expression does not exist yet: create a copy and store it
	handle := len(fc.stored)
	fc.stored = append(fc.stored, e.Copy())
	fc.storedIndex[key] = handle
	return handle
}

// getEquivalenceSet returns the equivalence set of a stored expression,
// creating a singleton set on first use.
func (fc *FilterCombiner) getEquivalenceSet(handle int) int {
	if set, ok := fc.equivalenceSetMap[handle]; ok {
		return set
	}
	set := fc.setIndex
	fc.setIndex++
	fc.equivalenceSetMap[handle] = set
	fc.equivalenceMap[set] = append(fc.equivalenceMap[set], handle)
	fc.constantValues[set] = nil
	return set
}

// HasFilters reports whether any filters have been absorbed
func (fc *FilterCombiner) HasFilters() bool {
	return len(fc.remainingFilters) > 0 || len(fc.equivalenceMap) > 0
}

// AddFilter classifies and absorbs one predicate. Predicates the
// combiner cannot reason about are kept verbatim in the residual set
// and the call reports success.
func (fc *FilterCombiner) AddFilter(e expr.Expression) (FilterResult, error) {
	result, err := fc.addFilter(e)
	if err != nil {
		return result, err
	}
	if result == FilterUnsupported {
		// unsupported filter, keep it in the residual set
		fc.remainingFilters = append(fc.remainingFilters, e.Copy())
		return FilterSuccess, nil
	}
	return result, nil
}

func (fc *FilterCombiner) addFilter(e expr.Expression) (FilterResult, error) {
	if e.HasParameter() {
		return FilterUnsupported, nil
	}
	if e.IsFoldable() {
		// scalar condition, evaluate it
		v, err := fc.eval.EvaluateScalar(e)
		if err != nil {
			return FilterUnsupported, err
		}
		b, err := v.CastAs(types.TypeBool)
		if err != nil {
			return FilterUnsupported, err
		}
		if b.IsNull() || !b.Bool() {
			// the filter can never pass
			return FilterUnsatisfiable, nil
		}
		// trivially true, drop the condition
		return FilterSuccess, nil
	}

	switch ex := e.(type) {
	case *expr.Between:
		// a BETWEEN with foldable bounds becomes two constant comparisons
		if !ex.Lower.IsFoldable() || !ex.Upper.IsFoldable() {
			return FilterUnsupported, nil
		}
		node := fc.getNode(ex.Input)
		set := fc.getEquivalenceSet(node)

		lowerValue, err := fc.eval.EvaluateScalar(ex.Lower)
		if err != nil {
			return FilterUnsupported, err
		}
		info := ExpressionValueInformation{Constant: lowerValue}
		if ex.LowerInclusive {
			info.ComparisonType = expr.CompareGreaterThanOrEqual
		} else {
			info.ComparisonType = expr.CompareGreaterThan
		}
		if res := fc.addConstantComparison(set, info); res == FilterUnsatisfiable {
			return FilterUnsatisfiable, nil
		}

		upperValue, err := fc.eval.EvaluateScalar(ex.Upper)
		if err != nil {
			return FilterUnsupported, err
		}
		info = ExpressionValueInformation{Constant: upperValue}
		if ex.UpperInclusive {
			info.ComparisonType = expr.CompareLessThanOrEqual
		} else {
			info.ComparisonType = expr.CompareLessThan
		}
		return fc.addConstantComparison(set, info), nil
	case *expr.Comparison:
		return fc.addBoundComparisonFilter(ex)
	}
	// only comparisons and BETWEEN are supported
	return FilterUnsupported, nil
}

// addBoundComparisonFilter absorbs a binary comparison predicate
func (fc *FilterCombiner) addBoundComparisonFilter(cmp *expr.Comparison) (FilterResult, error) {
	leftIsScalar := cmp.Left.IsFoldable()
	rightIsScalar := cmp.Right.IsFoldable()

	if leftIsScalar || rightIsScalar {
		// comparison against a scalar
		nonScalar := cmp.Left
		scalar := cmp.Right
		comparisonType := cmp.CompareType
		if leftIsScalar {
			nonScalar = cmp.Right
			scalar = cmp.Left
			// the scalar is on the left side, flip the comparison
			comparisonType = expr.Flip(comparisonType)
		}
		node := fc.getNode(nonScalar)
		set := fc.getEquivalenceSet(node)
		constantValue, err := fc.eval.EvaluateScalar(scalar)
		if err != nil {
			return FilterUnsupported, err
		}
		info := ExpressionValueInformation{ComparisonType: comparisonType, Constant: constantValue}
		ret := fc.addConstantComparison(set, info)

		// a residual filter comparing against this expression may now
		// yield a transitive constant bound
		if transitive := fc.findTransitiveFilter(nonScalar); transitive != nil {
			res, err := fc.addTransitiveFilters(transitive)
			if err != nil {
				return FilterUnsupported, err
			}
			if res == FilterUnsatisfiable {
				return FilterUnsatisfiable, nil
			}
			if res == FilterUnsupported {
				// could not derive anything, put the filter back
				fc.remainingFilters = append(fc.remainingFilters, transitive)
			}
		}
		return ret, nil
	}

	// comparison between two non-scalars
	if cmp.CompareType != expr.CompareEqual {
		if expr.IsGreaterThan(cmp.CompareType) || expr.IsLessThan(cmp.CompareType) {
			return fc.addTransitiveFilters(cmp)
		}
		return FilterUnsupported, nil
	}

	leftNode := fc.getNode(cmp.Left)
	rightNode := fc.getNode(cmp.Right)
	if fc.stored[leftNode].Equals(fc.stored[rightNode]) {
		return FilterUnsupported, nil
	}
	leftSet := fc.getEquivalenceSet(leftNode)
	rightSet := fc.getEquivalenceSet(rightNode)
	if leftSet == rightSet {
		// this equality already holds, prune the filter
		return FilterSuccess, nil
	}
	// merge the right bucket into the left bucket
	for _, handle := range fc.equivalenceMap[rightSet] {
		fc.equivalenceSetMap[handle] = leftSet
		fc.equivalenceMap[leftSet] = append(fc.equivalenceMap[leftSet], handle)
	}
	rightConstants := fc.constantValues[rightSet]
	delete(fc.equivalenceMap, rightSet)
	delete(fc.constantValues, rightSet)
	// move the right bucket's constant bounds over as well
	for _, info := range rightConstants {
		if fc.addConstantComparison(leftSet, info) == FilterUnsatisfiable {
			return FilterUnsatisfiable, nil
		}
	}
	return FilterSuccess, nil
}

// addConstantComparison folds a new constant bound into a set's bound
// list, pruning dominated bounds and detecting contradictions.
func (fc *FilterCombiner) addConstantComparison(set int, info ExpressionValueInformation) FilterResult {
	list := fc.constantValues[set]
	for i := 0; i < len(list); i++ {
		switch compareValueInformation(list[i], info) {
		case pruneLeft:
			// the existing bound is dominated, drop it
			list = append(list[:i], list[i+1:]...)
			i--
		case pruneRight:
			// the new bound is dominated, drop it
			fc.constantValues[set] = list
			return FilterSuccess
		case unsatisfiableCondition:
			fc.constantValues[set] = list
			return FilterUnsatisfiable
		case pruneNothing:
		}
	}
	fc.constantValues[set] = append(list, info)
	return FilterSuccess
}

// findTransitiveFilter scans the residual filters for a comparison
// whose right operand equals the given expression, removes it and
// returns it. Only column references are considered.
func (fc *FilterCombiner) findTransitiveFilter(e expr.Expression) *expr.Comparison {
	if e.Class() != expr.ClassColumnRef {
		return nil
	}
	for i, filter := range fc.remainingFilters {
		cmp, ok := filter.(*expr.Comparison)
		if !ok {
			continue
		}
		if cmp.CompareType != expr.CompareNotEqual && e.Equals(cmp.Right) {
			fc.remainingFilters = append(fc.remainingFilters[:i], fc.remainingFilters[i+1:]...)
			return cmp
		}
	}
	return nil
}

// addTransitiveFilters derives new constant bounds from a comparison
// between two non-scalars, e.g. with i > 10 already known, absorbing
// j >= i derives j > 10.
func (fc *FilterCombiner) addTransitiveFilters(cmp *expr.Comparison) (FilterResult, error) {
	if !expr.IsGreaterThan(cmp.CompareType) && !expr.IsLessThan(cmp.CompareType) {
		return FilterUnsupported, errors.AssertionFailedf("transitive filter with comparison %s", cmp.CompareType)
	}
	leftNode := fc.getNode(cmp.Left)
	rightNode := fc.getNode(cmp.Right)
	if fc.stored[leftNode].Equals(fc.stored[rightNode]) {
		return FilterUnsupported, nil
	}
	leftSet := fc.getEquivalenceSet(leftNode)
	rightSet := fc.getEquivalenceSet(rightNode)
	if leftSet == rightSet {
		// the sides are already proved equal, the inequality is implied
		return FilterSuccess, nil
	}

	derived := false
	retained := false
	// read the constant bounds already known for the right side and
	// derive bounds for the left side
	for _, rightConstant := range fc.constantValues[rightSet] {
		info := ExpressionValueInformation{Constant: rightConstant.Constant}
		switch {
		case rightConstant.ComparisonType == expr.CompareEqual:
			// i = 10 and j [op] i derives j [op] 10; the original
			// filter is fully absorbed
			info.ComparisonType = cmp.CompareType
		case (cmp.CompareType == expr.CompareGreaterThanOrEqual && expr.IsGreaterThan(rightConstant.ComparisonType)) ||
			(cmp.CompareType == expr.CompareLessThanOrEqual && expr.IsLessThan(rightConstant.ComparisonType)):
			// j >= i and i [>, >=] 10 derives j [>, >=] 10; the
			// comparison between the columns stays in the residual set
			info.ComparisonType = rightConstant.ComparisonType
			if !retained {
				fc.remainingFilters = append(fc.remainingFilters, cmp.Copy())
				retained = true
			}
		case (cmp.CompareType == expr.CompareGreaterThan && expr.IsGreaterThan(rightConstant.ComparisonType)) ||
			(cmp.CompareType == expr.CompareLessThan && expr.IsLessThan(rightConstant.ComparisonType)):
			// j > i and i [>, >=] 10 derives the stricter j > 10; the
			// column comparison stays in the residual set
			info.ComparisonType = cmp.CompareType
			if !retained {
				fc.remainingFilters = append(fc.remainingFilters, cmp.Copy())
				retained = true
			}
		default:
			// no bound can be derived from this entry
			continue
		}
		if fc.addConstantComparison(leftSet, info) == FilterUnsatisfiable {
			return FilterUnsatisfiable, nil
		}
		derived = true
	}

	if derived {
		// the left side gained bounds; chase transitive filters that
		// compare against it
		if transitive := fc.findTransitiveFilter(cmp.Left); transitive != nil {
			res, err := fc.addTransitiveFilters(transitive)
			if err != nil {
				return FilterUnsupported, err
			}
			if res == FilterUnsatisfiable {
				return FilterUnsatisfiable, nil
			}
			if res == FilterUnsupported {
				fc.remainingFilters = append(fc.remainingFilters, transitive)
			}
		}
		return FilterSuccess, nil
	}
	return FilterUnsupported, nil
}

// GenerateFilters emits the normalized conjunction through the
// callback: the residual filters, one equality per equivalence-set
// member pair, and the surviving constant bounds (a lower and upper
// bound on the same set merge into one BETWEEN). Internal state is
// cleared.
func (fc *FilterCombiner) GenerateFilters(callback func(filter expr.Expression)) {
	// first hand over the residual filters
	for _, filter := range fc.remainingFilters {
		callback(filter)
	}
	fc.remainingFilters = nil

	// then walk the equivalence sets
	for set, handles := range fc.equivalenceMap {
		constantList := fc.constantValues[set]
		for i := 0; i < len(handles); i++ {
			entry := fc.stored[handles[i]]
			// emit an equality chaining this member to each later member
			for k := i + 1; k < len(handles); k++ {
				callback(expr.NewComparison(expr.CompareEqual, entry.Copy(), fc.stored[handles[k]].Copy()))
			}
			// emit the constant bounds; a lower and an upper bound merge
			// into a single BETWEEN
			lowerIndex, upperIndex := -1, -1
			var lowerInclusive, upperInclusive bool
			for k, info := range constantList {
				switch {
				case expr.IsGreaterThan(info.ComparisonType):
					lowerIndex = k
					lowerInclusive = info.ComparisonType == expr.CompareGreaterThanOrEqual
				case expr.IsLessThan(info.ComparisonType):
					upperIndex = k
					upperInclusive = info.ComparisonType == expr.CompareLessThanOrEqual
				default:
					callback(expr.NewComparison(info.ComparisonType, entry.Copy(), expr.NewConstant(info.Constant)))
				}
			}
			switch {
			case lowerIndex >= 0 && upperIndex >= 0:
				callback(expr.NewBetween(entry.Copy(),
					expr.NewConstant(constantList[lowerIndex].Constant),
					expr.NewConstant(constantList[upperIndex].Constant),
					lowerInclusive, upperInclusive))
			case lowerIndex >= 0:
				callback(expr.NewComparison(constantList[lowerIndex].ComparisonType, entry.Copy(),
					expr.NewConstant(constantList[lowerIndex].Constant)))
			case upperIndex >= 0:
				callback(expr.NewComparison(constantList[upperIndex].ComparisonType, entry.Copy(),
					expr.NewConstant(constantList[upperIndex].Constant)))
			}
		}
	}

	fc.stored = nil
	fc.storedIndex = make(map[string]int)
	fc.equivalenceSetMap = make(map[int]int)
	fc.equivalenceMap = make(map[int][]int)
	fc.constantValues = make(map[int][]ExpressionValueInformation)
	fc.setIndex = 0
}

// valueComparisonResult describes how two constant bounds on the same
// value relate
type valueComparisonResult int

const (
	pruneNothing valueComparisonResult = iota
	pruneLeft
	pruneRight
	unsatisfiableCondition
)

func invertValueComparisonResult(r valueComparisonResult) valueComparisonResult {
	switch r {
	case pruneLeft:
		return pruneRight
	case pruneRight:
		return pruneLeft
	default:
		return r
	}
}

// satisfiesComparison checks whether a constant value satisfies
// "value [op] bound"
func satisfiesComparison(value types.Value, op expr.ComparisonType, bound types.Value) bool {
	cmp := value.Compare(bound)
	switch op {
	case expr.CompareEqual:
		return cmp == 0
	case expr.CompareNotEqual:
		return cmp != 0
	case expr.CompareLessThan:
		return cmp < 0
	case expr.CompareLessThanOrEqual:
		return cmp <= 0
	case expr.CompareGreaterThan:
		return cmp > 0
	case expr.CompareGreaterThanOrEqual:
		return cmp >= 0
	default:
		return false
	}
}

// compareValueInformation relates two bounds L and R on the same value
// and decides which, if either, is redundant, or whether together they
// are contradictory.
func compareValueInformation(left, right ExpressionValueInformation) valueComparisonResult {
	if left.ComparisonType == expr.CompareEqual {
		// an equality either subsumes the other bound or contradicts it
		if satisfiesComparison(left.Constant, right.ComparisonType, right.Constant) {
			return pruneRight
		}
		return unsatisfiableCondition
	}
	if right.ComparisonType == expr.CompareEqual {
		return invertValueComparisonResult(compareValueInformation(right, left))
	}
	if left.ComparisonType == expr.CompareNotEqual {
		// x != c is implied when c already fails the other bound
		if !satisfiesComparison(left.Constant, right.ComparisonType, right.Constant) {
			return pruneLeft
		}
		return pruneNothing
	}
	if right.ComparisonType == expr.CompareNotEqual {
		return invertValueComparisonResult(compareValueInformation(right, left))
	}
	if expr.IsGreaterThan(left.ComparisonType) && expr.IsGreaterThan(right.ComparisonType) {
		// both are lower bounds: keep the tighter (larger) constant
		cmp := left.Constant.Compare(right.Constant)
		if cmp > 0 {
			return pruneRight
		}
		if cmp < 0 {
			return pruneLeft
		}
		// same constant: keep the strict bound over the inclusive one
		if left.ComparisonType == expr.CompareGreaterThanOrEqual {
			return pruneLeft
		}
		return pruneRight
	}
	if expr.IsLessThan(left.ComparisonType) && expr.IsLessThan(right.ComparisonType) {
		// both are upper bounds: keep the tighter (smaller) constant
		cmp := left.Constant.Compare(right.Constant)
		if cmp < 0 {
			return pruneRight
		}
		if cmp > 0 {
			return pruneLeft
		}
		if left.ComparisonType == expr.CompareLessThanOrEqual {
			return pruneLeft
		}
		return pruneRight
	}
	if expr.IsLessThan(left.ComparisonType) {
		// left is an upper bound, right a lower bound: the range is
		// empty when the upper constant lies below the lower one, or
		// when they coincide and either side is strict
		cmp := left.Constant.Compare(right.Constant)
		if cmp < 0 {
			return unsatisfiableCondition
		}
		if cmp == 0 &&
			(left.ComparisonType == expr.CompareLessThan || right.ComparisonType == expr.CompareGreaterThan) {
			return unsatisfiableCondition
		}
		return pruneNothing
	}
	// left is a lower bound, right an upper bound
	return invertValueComparisonResult(compareValueInformation(right, left))
}
