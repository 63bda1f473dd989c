// pkg/chunk/collection.go
package chunk

import (
	"sort"

	"github.com/cockroachdb/errors"

	"vexdb/pkg/types"
)

// OrderDirection selects ascending or descending order for one sort column
type OrderDirection int

const (
	Ascending OrderDirection = iota
	Descending
)

// OrderSpec describes one column of a lexicographic sort
type OrderSpec struct {
	ColumnIndex int
	Direction   OrderDirection
}

// Collection is an append-only ordered sequence of fixed-capacity
// column-major chunks, all sharing the same column schema.
//
// NULL ordering under Sort: NULL compares before every non-NULL value,
// so NULLs sort first under ASC and last under DESC.
type Collection struct {
	chunks      []*DataChunk
	count       int
	columnCount int
}

// NewCollection creates an empty collection. The column schema is fixed
// by the first append.
func NewCollection() *Collection {
	return &Collection{columnCount: -1}
}

// Count returns the total number of rows across all chunks
func (c *Collection) Count() int {
	return c.count
}

// ColumnCount returns the number of columns, or 0 if nothing was appended
func (c *Collection) ColumnCount() int {
	if c.columnCount < 0 {
		return 0
	}
	return c.columnCount
}

// ChunkCount returns the number of chunks in the collection
func (c *Collection) ChunkCount() int {
	return len(c.chunks)
}

// Chunk returns the i-th chunk
func (c *Collection) Chunk(i int) *DataChunk {
	return c.chunks[i]
}

// Append copies the rows of the given chunk into the collection,
// filling the last chunk up to capacity before starting a new one.
func (c *Collection) Append(in *DataChunk) error {
	if in.Size() == 0 {
		return nil
	}
	if c.columnCount < 0 {
		c.columnCount = in.ColumnCount()
	} else if c.columnCount != in.ColumnCount() {
		return errors.Newf("chunk has %d columns, collection has %d", in.ColumnCount(), c.columnCount)
	}
	for row := 0; row < in.Size(); row++ {
		tail := c.tailChunk()
		vals := make([]types.Value, c.columnCount)
		for col := 0; col < c.columnCount; col++ {
			vals[col] = in.GetValue(col, row)
		}
		if err := tail.AppendRow(vals); err != nil {
			return err
		}
		c.count++
	}
	return nil
}

// AppendRow appends a single row of values to the collection
func (c *Collection) AppendRow(row ...types.Value) error {
	if c.columnCount < 0 {
		c.columnCount = len(row)
	} else if c.columnCount != len(row) {
		return errors.Newf("row has %d values, collection has %d columns", len(row), c.columnCount)
	}
	if err := c.tailChunk().AppendRow(row); err != nil {
		return err
	}
	c.count++
	return nil
}

func (c *Collection) tailChunk() *DataChunk {
	if len(c.chunks) == 0 || c.chunks[len(c.chunks)-1].Size() >= DefaultCapacity {
		c.chunks = append(c.chunks, NewDataChunk(c.columnCount))
	}
	return c.chunks[len(c.chunks)-1]
}

func (c *Collection) locate(row int) (chunkIdx, offset int) {
	return row / DefaultCapacity, row % DefaultCapacity
}

// GetValue returns the value at the given column and global row index
func (c *Collection) GetValue(col, row int) types.Value {
	ci, off := c.locate(row)
	return c.chunks[ci].GetValue(col, off)
}

// SetValue overwrites the value at the given column and global row index
func (c *Collection) SetValue(col, row int, v types.Value) {
	ci, off := c.locate(row)
	c.chunks[ci].SetValue(col, off, v)
}

// GetRow returns an owned copy of all column values for the given row
func (c *Collection) GetRow(row int) []types.Value {
	out := make([]types.Value, c.ColumnCount())
	for col := range out {
		out[col] = c.GetValue(col, row)
	}
	return out
}

// compareRows compares two rows under the given order description
func (c *Collection) compareRows(a, b int, order []OrderSpec) int {
	for _, o := range order {
		cmp := c.GetValue(o.ColumnIndex, a).Compare(c.GetValue(o.ColumnIndex, b))
		if cmp != 0 {
			if o.Direction == Descending {
				return -cmp
			}
			return cmp
		}
	}
	return 0
}

// Sort computes a permutation that orders the collection
// lexicographically under the given order description. The permutation
// maps new positions to old positions: perm[newPos] = oldPos. The sort
// is stable. The collection itself is not modified; apply the
// permutation with Reorder.
func (c *Collection) Sort(order []OrderSpec) ([]int, error) {
	for _, o := range order {
		if o.ColumnIndex < 0 || o.ColumnIndex >= c.ColumnCount() {
			return nil, errors.Newf("sort column %d out of range (%d columns)", o.ColumnIndex, c.ColumnCount())
		}
	}
	perm := make([]int, c.count)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		return c.compareRows(perm[i], perm[j], order) < 0
	})
	return perm, nil
}

// Reorder destructively applies a permutation produced by Sort:
// row perm[i] of the old collection becomes row i.
func (c *Collection) Reorder(perm []int) {
	if len(perm) != c.count {
		return
	}
	cols := c.ColumnCount()
	newChunks := make([]*DataChunk, 0, len(c.chunks))
	var tail *DataChunk
	for newPos, oldPos := range perm {
		if newPos%DefaultCapacity == 0 {
			tail = NewDataChunk(cols)
			newChunks = append(newChunks, tail)
		}
		row := make([]types.Value, cols)
		for col := 0; col < cols; col++ {
			row[col] = c.GetValue(col, oldPos)
		}
		_ = tail.AppendRow(row)
	}
	c.chunks = newChunks
}
