// pkg/sql/executor/window.go
//
// Sorted window function execution: the operator materializes its
// whole input, sorts it by the window's PARTITION BY and ORDER BY
// expressions, then sweeps the sorted rows once per window expression,
// tracking partition and peer-group boundaries and dispatching to a
// segment tree for framed aggregates.
package executor

import (
	"github.com/cockroachdb/errors"

	"vexdb/pkg/chunk"
	"vexdb/pkg/sql/expr"
	"vexdb/pkg/types"
)

// ChunkSource is the pull interface between physical operators.
// Next returns nil at end of stream.
type ChunkSource interface {
	Next() (*chunk.DataChunk, error)
}

// WindowOperator is a blocking operator evaluating window functions.
// It drains its child completely on the first Next call, computes one
// result column per window expression, and then streams chunks whose
// schema is the input columns followed by the window columns in
// declared order. One output row is produced per input row.
type WindowOperator struct {
	child      ChunkSource
	selectList []*expr.WindowExpression
	eval       expr.Evaluator
	fanout     int

	bigData       *chunk.Collection
	windowResults *chunk.Collection
	position      int
	materialized  bool
}

// WindowOption configures a WindowOperator
type WindowOption func(*WindowOperator)

// WithTreeFanout overrides the segment tree fanout
func WithTreeFanout(fanout int) WindowOption {
	return func(w *WindowOperator) {
		w.fanout = fanout
	}
}

// NewWindowOperator creates a window operator over the given child
func NewWindowOperator(child ChunkSource, selectList []*expr.WindowExpression, eval expr.Evaluator, opts ...WindowOption) *WindowOperator {
	w := &WindowOperator{
		child:      child,
		selectList: selectList,
		eval:       eval,
		fanout:     DefaultTreeFanout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// windowBoundariesState carries the per-row sweep state of one window
// expression: partition and peer group bounds plus the resolved frame.
type windowBoundariesState struct {
	partitionStart  int
	partitionEnd    int
	peerStart       int
	peerEnd         int
	windowStart     int
	windowEnd       int
	isSamePartition bool
	isPeer          bool
	rowPrev         []types.Value
}

// equalsSubset compares two rows on the column range [start, end)
func equalsSubset(a, b []types.Value, start, end int) bool {
	for i := start; i < end; i++ {
		if i >= len(a) || i >= len(b) {
			return false
		}
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}

// binarySearchRightmost returns the largest index in [l, r) whose first
// compCols column values are <= the corresponding values of row.
// With compCols == 0 every row matches and r-1 is returned.
func binarySearchRightmost(input *chunk.Collection, row []types.Value, l, r, compCols int) int {
	if compCols == 0 {
		return r - 1
	}
	for l < r {
		m := (l + r) / 2
		lessThanEquals := true
		for i := 0; i < compCols; i++ {
			if input.GetValue(i, m).Compare(row[i]) > 0 {
				lessThanEquals = false
				break
			}
		}
		if lessThanEquals {
			l = m + 1
		} else {
			r = m
		}
	}
	return l - 1
}

// materializeExpression evaluates e once per row of input into a
// one-column collection. With scalar set, only the first chunk's worth
// is evaluated; callers broadcast the single row.
func materializeExpression(eval expr.Evaluator, e expr.Expression, input *chunk.Collection, scalar bool) (*chunk.Collection, error) {
	out := chunk.NewCollection()
	for i := 0; i < input.ChunkCount(); i++ {
		col, err := eval.ExecuteExpression(e, input.Chunk(i))
		if err != nil {
			return nil, err
		}
		for _, v := range col {
			if err := out.AppendRow(v); err != nil {
				return nil, err
			}
			if scalar {
				return out, nil
			}
		}
	}
	return out, nil
}

// sortCollectionForWindow materializes the partition and order columns
// of wexpr, sorts them (partition columns ascending, order columns per
// their direction) and applies the permutation to input, the sort
// collection and the already-computed window results.
func sortCollectionForWindow(eval expr.Evaluator, wexpr *expr.WindowExpression, input, results *chunk.Collection) (*chunk.Collection, error) {
	var exprs []expr.Expression
	var order []chunk.OrderSpec

	// we sort by both 1) the partition by expression list and 2) the order by expressions
	for _, pexpr := range wexpr.Partitions {
		order = append(order, chunk.OrderSpec{ColumnIndex: len(exprs), Direction: chunk.Ascending})
		exprs = append(exprs, pexpr)
	}
	for _, o := range wexpr.Ordering {
		order = append(order, chunk.OrderSpec{ColumnIndex: len(exprs), Direction: o.Direction})
		exprs = append(exprs, o.Expr)
	}

	// evaluate the sort expressions chunk by chunk into a side collection
	sortCollection := chunk.NewCollection()
	for i := 0; i < input.ChunkCount(); i++ {
		in := input.Chunk(i)
		out := chunk.NewDataChunk(len(exprs))
		cols := make([][]types.Value, len(exprs))
		for ei, e := range exprs {
			col, err := eval.ExecuteExpression(e, in)
			if err != nil {
				return nil, err
			}
			cols[ei] = col
		}
		row := make([]types.Value, len(exprs))
		for r := 0; r < in.Size(); r++ {
			for ei := range exprs {
				row[ei] = cols[ei][r]
			}
			if err := out.AppendRow(row); err != nil {
				return nil, err
			}
		}
		if err := sortCollection.Append(out); err != nil {
			return nil, err
		}
	}

	if sortCollection.Count() != input.Count() {
		return nil, errors.Wrapf(ErrInternal, "sort collection has %d rows, input has %d",
			sortCollection.Count(), input.Count())
	}

	perm, err := sortCollection.Sort(order)
	if err != nil {
		return nil, err
	}
	input.Reorder(perm)
	sortCollection.Reorder(perm)
	results.Reorder(perm)
	return sortCollection, nil
}

// boundaryOffset reads the materialized boundary expression value for
// one row. Scalar boundary expressions broadcast their single row.
// Negative offsets are rejected.
func boundaryOffset(collection *chunk.Collection, boundaryExpr expr.Expression, rowIdx int) (int, error) {
	if collection == nil || collection.ColumnCount() == 0 {
		return 0, errors.Wrap(ErrInternal, "missing boundary expression collection")
	}
	idx := rowIdx
	if boundaryExpr.IsFoldable() {
		idx = 0
	}
	v, err := collection.GetValue(0, idx).AsInt()
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidWindowBoundary, "boundary expression: %v", err)
	}
	if v < 0 {
		return 0, errors.Wrapf(ErrInvalidWindowBoundary, "negative frame offset %d", v)
	}
	return int(v), nil
}

// updateWindowBoundaries advances the boundary state machine for one
// row. input is the materialized sort-column collection; it is empty
// when the window has no partition or order columns, in which case the
// whole input (count rows) is one partition and one peer group.
func updateWindowBoundaries(wexpr *expr.WindowExpression, input *chunk.Collection, count, rowIdx int,
	boundaryStart, boundaryEnd *chunk.Collection, bounds *windowBoundariesState) error {

	rowCur := []types.Value{}
	if input.Count() > 0 {
		rowCur = input.GetRow(rowIdx)
	}
	sortColCount := wexpr.SortColumnCount()

	// determine partition and peer group boundaries to ultimately figure out window size
	bounds.isSamePartition = equalsSubset(bounds.rowPrev, rowCur, 0, len(wexpr.Partitions))
	bounds.isPeer = bounds.isSamePartition && equalsSubset(bounds.rowPrev, rowCur, len(wexpr.Partitions), sortColCount)
	bounds.rowPrev = rowCur

	// when the partition changes, recompute the boundaries
	if !bounds.isSamePartition || rowIdx == 0 { // special case for first row, need to init
		bounds.partitionStart = rowIdx
		bounds.peerStart = rowIdx

		// find end of partition
		bounds.partitionEnd = binarySearchRightmost(input, rowCur, bounds.partitionStart, count,
			len(wexpr.Partitions)) + 1
	} else if !bounds.isPeer {
		bounds.peerStart = rowIdx
	}

	if wexpr.End == expr.BoundaryCurrentRowRange {
		bounds.peerEnd = binarySearchRightmost(input, rowCur, rowIdx, bounds.partitionEnd, sortColCount) + 1
	}

	// determine the window boundaries depending on the boundary kinds
	bounds.windowStart = -1
	bounds.windowEnd = -1

	switch wexpr.Start {
	case expr.BoundaryUnboundedPreceding:
		bounds.windowStart = bounds.partitionStart
	case expr.BoundaryCurrentRowRows:
		bounds.windowStart = rowIdx
	case expr.BoundaryCurrentRowRange:
		bounds.windowStart = bounds.peerStart
	case expr.BoundaryExprPreceding:
		delta, err := boundaryOffset(boundaryStart, wexpr.StartExpr, rowIdx)
		if err != nil {
			return err
		}
		bounds.windowStart = rowIdx - delta
	case expr.BoundaryExprFollowing:
		delta, err := boundaryOffset(boundaryStart, wexpr.StartExpr, rowIdx)
		if err != nil {
			return err
		}
		bounds.windowStart = rowIdx + delta
	default:
		return errors.Wrapf(ErrUnsupportedBoundary, "frame start %d", wexpr.Start)
	}

	switch wexpr.End {
	case expr.BoundaryCurrentRowRows:
		bounds.windowEnd = rowIdx + 1
	case expr.BoundaryCurrentRowRange:
		bounds.windowEnd = bounds.peerEnd
	case expr.BoundaryUnboundedFollowing:
		bounds.windowEnd = bounds.partitionEnd
	case expr.BoundaryExprPreceding:
		delta, err := boundaryOffset(boundaryEnd, wexpr.EndExpr, rowIdx)
		if err != nil {
			return err
		}
		bounds.windowEnd = rowIdx - delta + 1
	case expr.BoundaryExprFollowing:
		delta, err := boundaryOffset(boundaryEnd, wexpr.EndExpr, rowIdx)
		if err != nil {
			return err
		}
		bounds.windowEnd = rowIdx + delta + 1
	default:
		return errors.Wrapf(ErrUnsupportedBoundary, "frame end %d", wexpr.End)
	}

	// clamp the window to the partition if it would exceed it
	if bounds.windowStart < bounds.partitionStart {
		bounds.windowStart = bounds.partitionStart
	}
	if bounds.windowEnd > bounds.partitionEnd {
		bounds.windowEnd = bounds.partitionEnd
	}

	if bounds.windowStart < 0 || bounds.windowEnd < 0 {
		return errors.Wrapf(ErrInvalidWindowBoundary, "row %d: frame [%d, %d)",
			rowIdx, bounds.windowStart, bounds.windowEnd)
	}
	return nil
}

// computeWindowExpression evaluates one window expression over the
// input and writes its result column at outputIdx of results.
func computeWindowExpression(eval expr.Evaluator, wexpr *expr.WindowExpression, input, results *chunk.Collection,
	outputIdx, fanout int) error {

	if wexpr.Start == expr.BoundaryUnboundedFollowing {
		return errors.Wrap(ErrUnsupportedBoundary, "UNBOUNDED FOLLOWING as frame start")
	}
	if wexpr.End == expr.BoundaryUnboundedPreceding {
		return errors.Wrap(ErrUnsupportedBoundary, "UNBOUNDED PRECEDING as frame end")
	}

	// sort by the partition and order clauses of the window definition;
	// with neither, the whole input is one partition and one peer group
	sortCollection := chunk.NewCollection()
	if wexpr.SortColumnCount() > 0 {
		var err error
		sortCollection, err = sortCollectionForWindow(eval, wexpr, input, results)
		if err != nil {
			return err
		}
	}

	// evaluate the inner expression of the window function
	payloadCollection := chunk.NewCollection()
	if len(wexpr.Children) > 0 {
		var err error
		payloadCollection, err = materializeExpression(eval, wexpr.Children[0], input, false)
		if err != nil {
			return err
		}
	}

	// evaluate boundary expressions if present
	var boundaryStartCollection, boundaryEndCollection *chunk.Collection
	if wexpr.StartExpr != nil &&
		(wexpr.Start == expr.BoundaryExprPreceding || wexpr.Start == expr.BoundaryExprFollowing) {
		var err error
		boundaryStartCollection, err = materializeExpression(eval, wexpr.StartExpr, input, wexpr.StartExpr.IsFoldable())
		if err != nil {
			return err
		}
	}
	if wexpr.EndExpr != nil &&
		(wexpr.End == expr.BoundaryExprPreceding || wexpr.End == expr.BoundaryExprFollowing) {
		var err error
		boundaryEndCollection, err = materializeExpression(eval, wexpr.EndExpr, input, wexpr.EndExpr.IsFoldable())
		if err != nil {
			return err
		}
	}

	// build a segment tree for the frame-adhering aggregates
	var segmentTree *WindowSegmentTree
	switch wexpr.Type {
	case expr.WindowSum, expr.WindowMin, expr.WindowMax, expr.WindowAvg:
		var err error
		segmentTree, err = NewWindowSegmentTree(wexpr.Type, wexpr.Return, fanout)
		if err != nil {
			return err
		}
		if err := segmentTree.Construct(payloadCollection); err != nil {
			return err
		}
	}

	var bounds windowBoundariesState
	if sortCollection.Count() > 0 {
		bounds.rowPrev = sortCollection.GetRow(0)
	}

	var denseRank, rank, rankEqual int

	// main loop: go through all sorted rows and compute the window result
	for rowIdx := 0; rowIdx < input.Count(); rowIdx++ {
		if err := updateWindowBoundaries(wexpr, sortCollection, input.Count(), rowIdx,
			boundaryStartCollection, boundaryEndCollection, &bounds); err != nil {
			return err
		}

		if !bounds.isSamePartition || rowIdx == 0 { // special case for first row, need to init
			denseRank = 1
			rank = 1
			rankEqual = 0
		} else if !bounds.isPeer {
			denseRank++
			rank += rankEqual
			rankEqual = 0
		}

		// if no values are read for the window, the result is NULL
		if bounds.windowStart >= bounds.windowEnd {
			results.SetValue(outputIdx, rowIdx, types.NewNull())
			continue
		}

		var res types.Value
		switch wexpr.Type {
		case expr.WindowSum, expr.WindowMin, expr.WindowMax, expr.WindowAvg:
			var err error
			res, err = segmentTree.Compute(bounds.windowStart, bounds.windowEnd)
			if err != nil {
				return err
			}
		case expr.WindowCountStar:
			res = types.NewNumeric(wexpr.Return, int64(bounds.windowEnd-bounds.windowStart))
		case expr.WindowRowNumber:
			res = types.NewNumeric(wexpr.Return, int64(rowIdx-bounds.windowStart+1))
		case expr.WindowDenseRank:
			res = types.NewNumeric(wexpr.Return, int64(denseRank))
		case expr.WindowRank:
			res = types.NewNumeric(wexpr.Return, int64(rank))
			rankEqual++
		case expr.WindowFirstValue:
			res = payloadCollection.GetValue(0, bounds.windowStart)
		case expr.WindowLastValue:
			res = payloadCollection.GetValue(0, bounds.windowEnd-1)
		default:
			return errors.Wrapf(ErrUnsupportedWindowFunction, "%s", wexpr.Type)
		}
		results.SetValue(outputIdx, rowIdx, res)
	}
	return nil
}

// materialize drains the child and computes all window result columns
func (w *WindowOperator) materialize() error {
	w.materialized = true
	w.bigData = chunk.NewCollection()

	// blocking operator: pull the child dry before computing anything
	for {
		in, err := w.child.Next()
		if err != nil {
			return err
		}
		if in == nil || in.Size() == 0 {
			break
		}
		if err := w.bigData.Append(in); err != nil {
			return err
		}
	}
	if w.bigData.Count() == 0 {
		return nil
	}

	// pre-fill the result columns with NULL so the sweep can write by index
	w.windowResults = chunk.NewCollection()
	nulls := make([]types.Value, len(w.selectList))
	for i := range nulls {
		nulls[i] = types.NewNull()
	}
	for i := 0; i < w.bigData.Count(); i++ {
		if err := w.windowResults.AppendRow(nulls...); err != nil {
			return err
		}
	}

	for exprIdx, wexpr := range w.selectList {
		if err := computeWindowExpression(w.eval, wexpr, w.bigData, w.windowResults, exprIdx, w.fanout); err != nil {
			return err
		}
	}
	return nil
}

// Next returns the next output chunk, or nil at end of stream.
// The first call blocks while the child is drained and all window
// columns are computed.
func (w *WindowOperator) Next() (*chunk.DataChunk, error) {
	if !w.materialized {
		if err := w.materialize(); err != nil {
			return nil, err
		}
	}
	if w.bigData == nil || w.position >= w.bigData.ChunkCount() {
		return nil, nil
	}

	projCh := w.bigData.Chunk(w.position)
	windCh := w.windowResults.Chunk(w.position)
	w.position++

	out := chunk.NewDataChunk(projCh.ColumnCount() + windCh.ColumnCount())
	row := make([]types.Value, out.ColumnCount())
	for r := 0; r < projCh.Size(); r++ {
		for c := 0; c < projCh.ColumnCount(); c++ {
			row[c] = projCh.GetValue(c, r)
		}
		for c := 0; c < windCh.ColumnCount(); c++ {
			row[projCh.ColumnCount()+c] = windCh.GetValue(c, r)
		}
		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadAll drains the operator into a single collection
func (w *WindowOperator) ReadAll() (*chunk.Collection, error) {
	out := chunk.NewCollection()
	for {
		ch, err := w.Next()
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return out, nil
		}
		if err := out.Append(ch); err != nil {
			return nil, err
		}
	}
}
