// pkg/sql/optimizer/table_filter.go
//
// Table-scan pushdown: constant bounds on single-column equivalence
// sets become TableFilter records for the storage layer, LIKE and
// prefix predicates rewrite to range filters, and consecutive integer
// IN lists collapse to a range. Zonemap checks derive min/max ranges
// from the residual filters for block skipping.
package optimizer

import (
	"sort"

	"vexdb/pkg/sql/expr"
	"vexdb/pkg/types"
)

// RowIDColumn is the sentinel base-table column id of the implicit
// row identifier; filters on it are never pushed down.
const RowIDColumn = -1

// TableFilter is one pushdown predicate over a base-table column
type TableFilter struct {
	Constant       types.Value
	ComparisonType expr.ComparisonType
	ColumnIndex    int
}

// incrementLast increments the last byte of s, producing the smallest
// string ordering after every string with prefix s. This is byte-level:
// with multi-byte encodings the resulting range may over-select, so the
// residual predicate must still be applied downstream.
func incrementLast(s string) string {
	b := []byte(s)
	b[len(b)-1]++
	return string(b)
}

func pushableConstantType(t types.ValueType) bool {
	return t == types.TypeInt || t == types.TypeFloat || t == types.TypeText
}

func pushableComparison(c expr.ComparisonType) bool {
	switch c {
	case expr.CompareEqual, expr.CompareLessThan, expr.CompareLessThanOrEqual,
		expr.CompareGreaterThan, expr.CompareGreaterThanOrEqual:
		return true
	default:
		return false
	}
}

// GenerateTableScanFilters emits pushdown predicates over base-table
// columns. columnIDs maps expression column indexes to base-table
// column ids. Equivalence sets fully pushed down are erased; LIKE and
// prefix predicates additionally produce range filters while staying
// in the residual set; consecutive integer IN lists are replaced by a
// range and dropped from the residual set.
func (fc *FilterCombiner) GenerateTableScanFilters(columnIDs []int) []TableFilter {
	var tableFilters []TableFilter

	// constant bounds on single-column equivalence sets
	for set, constantList := range fc.constantValues {
		if len(constantList) == 0 {
			continue
		}
		if !pushableComparison(constantList[0].ComparisonType) ||
			!pushableConstantType(constantList[0].Constant.Type()) {
			continue
		}
		handles := fc.equivalenceMap[set]
		if len(handles) != 1 {
			continue
		}
		colRef, ok := fc.stored[handles[0]].(*expr.ColumnRef)
		if !ok {
			continue
		}
		if colRef.ColumnIndex >= len(columnIDs) || columnIDs[colRef.ColumnIndex] == RowIDColumn {
			continue
		}
		for _, info := range constantList {
			tableFilters = append(tableFilters, TableFilter{
				Constant:       info.Constant,
				ComparisonType: info.ComparisonType,
				ColumnIndex:    colRef.ColumnIndex,
			})
		}
		delete(fc.equivalenceMap, set)
		delete(fc.constantValues, set)
	}

	// LIKE, prefix and IN rewrites over the residual filters
	for i := 0; i < len(fc.remainingFilters); i++ {
		switch filter := fc.remainingFilters[i].(type) {
		case *expr.Function:
			colRef, constant := functionColumnConstant(filter)
			if colRef == nil {
				continue
			}
			switch filter.Name {
			case "prefix":
				prefix := constant.Value.Text()
				if prefix == "" {
					continue
				}
				// prefix(col, s) selects the range [s, incrementLast(s))
				tableFilters = append(tableFilters,
					TableFilter{Constant: types.NewText(prefix), ComparisonType: expr.CompareGreaterThanOrEqual, ColumnIndex: colRef.ColumnIndex},
					TableFilter{Constant: types.NewText(incrementLast(prefix)), ComparisonType: expr.CompareLessThan, ColumnIndex: colRef.ColumnIndex})
			case "~~":
				likeString := constant.Value.Text()
				if likeString == "" || likeString[0] == '%' || likeString[0] == '_' {
					// no literal prefix, nothing to push down
					continue
				}
				prefix := likeString
				equality := true
				for idx := 0; idx < len(likeString); idx++ {
					if likeString[idx] == '%' || likeString[idx] == '_' {
						prefix = likeString[:idx]
						equality = false
						break
					}
				}
				if equality {
					// no wildcard at all: the LIKE is an equality
					tableFilters = append(tableFilters,
						TableFilter{Constant: types.NewText(prefix), ComparisonType: expr.CompareEqual, ColumnIndex: colRef.ColumnIndex})
				} else {
					tableFilters = append(tableFilters,
						TableFilter{Constant: types.NewText(prefix), ComparisonType: expr.CompareGreaterThanOrEqual, ColumnIndex: colRef.ColumnIndex},
						TableFilter{Constant: types.NewText(incrementLast(prefix)), ComparisonType: expr.CompareLessThan, ColumnIndex: colRef.ColumnIndex})
				}
			}
		case *expr.In:
			colRef, ok := filter.Children[0].(*expr.ColumnRef)
			if !ok {
				continue
			}
			if colRef.ColumnIndex >= len(columnIDs) || columnIDs[colRef.ColumnIndex] == RowIDColumn {
				continue
			}
			inValues := make([]types.Value, 0, len(filter.Children)-1)
			allIntConstants := true
			for _, child := range filter.Children[1:] {
				constant, ok := child.(*expr.Constant)
				if !ok || constant.Value.Type() != types.TypeInt {
					allIntConstants = false
					break
				}
				inValues = append(inValues, constant.Value)
			}
			if !allIntConstants || len(inValues) == 0 {
				continue
			}
			// consecutive integer values collapse to a closed range
			sort.Slice(inValues, func(a, b int) bool {
				return inValues[a].Compare(inValues[b]) < 0
			})
			consecutive := true
			for k := 1; k < len(inValues); k++ {
				if inValues[k].Int()-inValues[k-1].Int() > 1 {
					consecutive = false
					break
				}
			}
			if !consecutive {
				continue
			}
			tableFilters = append(tableFilters,
				TableFilter{Constant: inValues[0], ComparisonType: expr.CompareGreaterThanOrEqual, ColumnIndex: colRef.ColumnIndex},
				TableFilter{Constant: inValues[len(inValues)-1], ComparisonType: expr.CompareLessThanOrEqual, ColumnIndex: colRef.ColumnIndex})
			fc.remainingFilters = append(fc.remainingFilters[:i], fc.remainingFilters[i+1:]...)
			i--
		}
	}

	return tableFilters
}

// functionColumnConstant extracts the (column ref, constant) argument
// pair of a two-argument function, or nil when the shape differs.
func functionColumnConstant(f *expr.Function) (*expr.ColumnRef, *expr.Constant) {
	if len(f.Children) != 2 {
		return nil, nil
	}
	colRef, ok := f.Children[0].(*expr.ColumnRef)
	if !ok {
		return nil, nil
	}
	constant, ok := f.Children[1].(*expr.Constant)
	if !ok {
		return nil, nil
	}
	return colRef, constant
}

// findZonemapChecks walks one residual filter and widens the per-column
// [min, max] ranges; columns compared against anything non-constant are
// recorded in notConstants and excluded later.
func findZonemapChecks(columnIDs []int, checks map[int][2]types.Value, notConstants map[int]bool, filter expr.Expression) {
	widen := func(col int, v types.Value) {
		r, ok := checks[col]
		if !ok {
			checks[col] = [2]types.Value{v, v}
			return
		}
		if r[0].Compare(v) > 0 {
			r[0] = v
		}
		if r[1].Compare(v) < 0 {
			r[1] = v
		}
		checks[col] = r
	}
	columnID := func(ref *expr.ColumnRef) (int, bool) {
		if ref.ColumnIndex >= len(columnIDs) {
			return 0, false
		}
		return columnIDs[ref.ColumnIndex], true
	}

	switch f := filter.(type) {
	case *expr.Conjunction:
		// AND and OR both merge their children's ranges
		for _, child := range f.Children {
			findZonemapChecks(columnIDs, checks, notConstants, child)
		}
	case *expr.In:
		colRef, ok := f.Children[0].(*expr.ColumnRef)
		if !ok {
			return
		}
		col, ok := columnID(colRef)
		if !ok {
			return
		}
		for _, child := range f.Children[1:] {
			constant, ok := child.(*expr.Constant)
			if !ok {
				// the column is compared against something non-constant
				notConstants[col] = true
				break
			}
			widen(col, constant.Value)
		}
	case *expr.Comparison:
		if f.CompareType == expr.CompareNotEqual {
			return
		}
		colRef, isRef := f.Left.(*expr.ColumnRef)
		if !isRef {
			return
		}
		col, ok := columnID(colRef)
		if !ok {
			return
		}
		if constant, isConst := f.Right.(*expr.Constant); isConst {
			widen(col, constant.Value)
		} else {
			notConstants[col] = true
		}
	}
}

// GenerateZonemapChecks derives per-column min/max range predicates
// from the residual filters, skipping columns that were compared
// against non-constants and columns already covered by pushed filters.
func (fc *FilterCombiner) GenerateZonemapChecks(columnIDs []int, pushedFilters []TableFilter) []TableFilter {
	checks := make(map[int][2]types.Value)
	notConstants := make(map[int]bool)

	// capture the min and max of every constant-compared column
	for _, filter := range fc.remainingFilters {
		findZonemapChecks(columnIDs, checks, notConstants, filter)
	}
	for col := range notConstants {
		delete(checks, col)
	}
	for _, pushed := range pushedFilters {
		if pushed.ColumnIndex < len(columnIDs) {
			delete(checks, columnIDs[pushed.ColumnIndex])
		}
	}

	// deterministic output order
	cols := make([]int, 0, len(checks))
	for col := range checks {
		cols = append(cols, col)
	}
	sort.Ints(cols)

	zonemapChecks := make([]TableFilter, 0, 2*len(cols))
	for _, col := range cols {
		r := checks[col]
		zonemapChecks = append(zonemapChecks,
			TableFilter{Constant: r[0], ComparisonType: expr.CompareGreaterThanOrEqual, ColumnIndex: col},
			TableFilter{Constant: r[1], ComparisonType: expr.CompareLessThanOrEqual, ColumnIndex: col})
	}
	return zonemapChecks
}
