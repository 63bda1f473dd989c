// pkg/chunk/chunk.go
package chunk

import (
	"github.com/cockroachdb/errors"

	"vexdb/pkg/types"
)

// DefaultCapacity is the number of rows a DataChunk holds before a
// collection starts a new chunk.
const DefaultCapacity = 1024

// DataChunk is a column-major batch of values. All columns have the
// same length.
type DataChunk struct {
	cols [][]types.Value
	size int
}

// NewDataChunk creates an empty chunk with the given number of columns
func NewDataChunk(columnCount int) *DataChunk {
	cols := make([][]types.Value, columnCount)
	return &DataChunk{cols: cols}
}

// ColumnCount returns the number of columns in the chunk
func (c *DataChunk) ColumnCount() int {
	return len(c.cols)
}

// Size returns the number of rows in the chunk
func (c *DataChunk) Size() int {
	return c.size
}

// AppendRow appends one row of values to the chunk
func (c *DataChunk) AppendRow(row []types.Value) error {
	if len(row) != len(c.cols) {
		return errors.Newf("row has %d values, chunk has %d columns", len(row), len(c.cols))
	}
	for i, v := range row {
		c.cols[i] = append(c.cols[i], v)
	}
	c.size++
	return nil
}

// GetValue returns the value at the given column and row
func (c *DataChunk) GetValue(col, row int) types.Value {
	return c.cols[col][row]
}

// SetValue overwrites the value at the given column and row
func (c *DataChunk) SetValue(col, row int, v types.Value) {
	c.cols[col][row] = v
}

// Column returns the backing slice of one column
func (c *DataChunk) Column(col int) []types.Value {
	return c.cols[col]
}
