// pkg/sql/executor/segment_tree.go
package executor

import (
	"github.com/cockroachdb/errors"

	"vexdb/pkg/chunk"
	"vexdb/pkg/sql/expr"
	"vexdb/pkg/types"
)

// DefaultTreeFanout is the branching factor of the window segment tree
const DefaultTreeFanout = 16

// WindowSegmentTree answers aggregate queries over arbitrary ranges of
// one payload column in O(fanout * log_fanout(n)) per query. Level 0 is
// the payload column itself; level k+1 holds the aggregate of each
// fanout-sized group of level k (for AVG, the sum of the group; Compute
// divides by the number of rows in the queried range). Built once per
// window expression and consulted read-only afterwards.
//
// SUM and AVG accumulate with the payload's native arithmetic: int64
// sums wrap on overflow. A NULL payload value poisons SUM/AVG results
// for ranges covering it (NULL-propagating addition) and is skipped by
// MIN/MAX (NULL is incomparable).
//
// see http://www.vldb.org/pvldb/vol8/p1058-leis.pdf
type WindowSegmentTree struct {
	windowType  expr.WindowFuncType
	payloadType types.ValueType
	fanout      int

	// level 0 is implicit (the payload itself); levels[k] is level k+1
	levels [][]types.Value
	input  *chunk.Collection

	// running aggregate state
	aggregate   types.Value
	nAggregated int
}

// NewWindowSegmentTree creates a segment tree for one of the framed
// aggregates (SUM, MIN, MAX, AVG).
func NewWindowSegmentTree(windowType expr.WindowFuncType, payloadType types.ValueType, fanout int) (*WindowSegmentTree, error) {
	switch windowType {
	case expr.WindowSum, expr.WindowMin, expr.WindowMax, expr.WindowAvg:
	default:
		return nil, errors.Wrapf(ErrUnsupportedWindowFunction, "segment tree over %s", windowType)
	}
	if fanout < 2 {
		fanout = DefaultTreeFanout
	}
	return &WindowSegmentTree{
		windowType:  windowType,
		payloadType: payloadType,
		fanout:      fanout,
	}, nil
}

func (t *WindowSegmentTree) aggregateInit() {
	switch t.windowType {
	case expr.WindowSum, expr.WindowAvg:
		t.aggregate = types.NumericZero(t.payloadType)
	case expr.WindowMin:
		t.aggregate = types.MaxValue(t.payloadType)
	case expr.WindowMax:
		t.aggregate = types.MinValue(t.payloadType)
	}
	t.nAggregated = 0
}

func (t *WindowSegmentTree) aggregateAccum(val types.Value) error {
	switch t.windowType {
	case expr.WindowSum, expr.WindowAvg:
		sum, err := t.aggregate.Add(val)
		if err != nil {
			return err
		}
		t.aggregate = sum
	case expr.WindowMin:
		// NULL is incomparable, never replaces the accumulator
		if !val.IsNull() && val.Compare(t.aggregate) < 0 {
			t.aggregate = val
		}
	case expr.WindowMax:
		if !val.IsNull() && val.Compare(t.aggregate) > 0 {
			t.aggregate = val
		}
	}
	t.nAggregated++
	return nil
}

func (t *WindowSegmentTree) aggregateFinal() (types.Value, error) {
	if t.nAggregated == 0 {
		res, err := types.NewNull().CastAs(t.payloadType)
		if err != nil {
			return types.NewNull(), err
		}
		return res, nil
	}
	// AVG yields the running sum here; Compute divides by the row count
	return t.aggregate, nil
}

// Construct builds the tree bottom-up over a one-column payload
// collection. Each level accumulates groups of fanout values from the
// level below; the last group of a level may be short. Construction
// stops once a level has at most one entry.
func (t *WindowSegmentTree) Construct(input *chunk.Collection) error {
	if input.ColumnCount() > 1 {
		return errors.Wrapf(ErrInternal, "segment tree payload has %d columns", input.ColumnCount())
	}
	t.aggregateInit()
	t.input = input

	// level 0 is the data itself
	for {
		var levelSize int
		if len(t.levels) == 0 {
			levelSize = t.input.Count()
		} else {
			levelSize = len(t.levels[len(t.levels)-1])
		}
		if levelSize <= 1 {
			break
		}
		var next []types.Value
		fanoutCount := 0
		for pos := 0; pos < levelSize; pos++ {
			var v types.Value
			if len(t.levels) == 0 {
				v = t.input.GetValue(0, pos)
			} else {
				v = t.levels[len(t.levels)-1][pos]
			}
			if err := t.aggregateAccum(v); err != nil {
				return err
			}
			fanoutCount++
			if fanoutCount == t.fanout {
				res, err := t.aggregateFinal()
				if err != nil {
					return err
				}
				next = append(next, res)
				t.aggregateInit()
				fanoutCount = 0
			}
		}
		if fanoutCount > 0 {
			res, err := t.aggregateFinal()
			if err != nil {
				return err
			}
			next = append(next, res)
			t.aggregateInit()
		}
		t.levels = append(t.levels, next)
	}
	return nil
}

// windowSegmentValue accumulates the flat range [begin, end) of one level
func (t *WindowSegmentTree) windowSegmentValue(levelIdx, begin, end int) error {
	for pos := begin; pos < end; pos++ {
		var v types.Value
		if levelIdx == 0 {
			v = t.input.GetValue(0, pos)
		} else {
			v = t.levels[levelIdx-1][pos]
		}
		if err := t.aggregateAccum(v); err != nil {
			return err
		}
	}
	return nil
}

// Compute aggregates the half-open payload range [begin, end).
// It descends level by level, accumulating the unaligned head and tail
// of the range at each level and recursing on the aligned middle.
func (t *WindowSegmentTree) Compute(begin, end int) (types.Value, error) {
	if t.input == nil {
		return types.NewNull(), errors.Wrap(ErrInternal, "segment tree not constructed")
	}
	rows := end - begin
	t.aggregateInit()
	for levelIdx := 0; levelIdx < len(t.levels)+1; levelIdx++ {
		parentBegin := begin / t.fanout
		parentEnd := end / t.fanout
		if parentBegin == parentEnd {
			if err := t.windowSegmentValue(levelIdx, begin, end); err != nil {
				return types.NewNull(), err
			}
			break
		}
		groupBegin := parentBegin * t.fanout
		if begin != groupBegin {
			if err := t.windowSegmentValue(levelIdx, begin, groupBegin+t.fanout); err != nil {
				return types.NewNull(), err
			}
			parentBegin++
		}
		groupEnd := parentEnd * t.fanout
		if end != groupEnd {
			if err := t.windowSegmentValue(levelIdx, groupEnd, end); err != nil {
				return types.NewNull(), err
			}
		}
		begin = parentBegin
		end = parentEnd
	}
	res, err := t.aggregateFinal()
	if err != nil || t.windowType != expr.WindowAvg || res.IsNull() {
		return res, err
	}
	return res.Div(types.NewNumeric(t.payloadType, int64(rows)))
}
