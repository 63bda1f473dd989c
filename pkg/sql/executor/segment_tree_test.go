// pkg/sql/executor/segment_tree_test.go
package executor

import (
	"testing"

	"vexdb/pkg/chunk"
	"vexdb/pkg/sql/expr"
	"vexdb/pkg/types"
)

func payloadCollection(t *testing.T, vals ...types.Value) *chunk.Collection {
	t.Helper()
	c := chunk.NewCollection()
	for _, v := range vals {
		if err := c.AppendRow(v); err != nil {
			t.Fatalf("AppendRow failed: %v", err)
		}
	}
	return c
}

func intPayload(t *testing.T, vals ...int64) *chunk.Collection {
	t.Helper()
	converted := make([]types.Value, len(vals))
	for i, v := range vals {
		converted[i] = types.NewInt(v)
	}
	return payloadCollection(t, converted...)
}

func buildTree(t *testing.T, typ expr.WindowFuncType, payloadType types.ValueType, fanout int, payload *chunk.Collection) *WindowSegmentTree {
	t.Helper()
	tree, err := NewWindowSegmentTree(typ, payloadType, fanout)
	if err != nil {
		t.Fatalf("NewWindowSegmentTree failed: %v", err)
	}
	if err := tree.Construct(payload); err != nil {
		t.Fatalf("Construct failed: %v", err)
	}
	return tree
}

// naiveSum computes the reference answer with a linear scan
func naiveSum(vals []int64, begin, end int) int64 {
	var sum int64
	for i := begin; i < end; i++ {
		sum += vals[i]
	}
	return sum
}

func TestSegmentTreeSumMatchesNaive(t *testing.T) {
	vals := make([]int64, 100)
	for i := range vals {
		vals[i] = int64(i*7%13 + 1)
	}
	payload := intPayload(t, vals...)

	// exercise several fanouts, including ones that do not divide n
	for _, fanout := range []int{2, 3, 16} {
		tree := buildTree(t, expr.WindowSum, types.TypeInt, fanout, payload)
		for begin := 0; begin < len(vals); begin += 7 {
			for end := begin; end <= len(vals); end += 11 {
				got, err := tree.Compute(begin, end)
				if err != nil {
					t.Fatalf("Compute(%d, %d) failed: %v", begin, end, err)
				}
				if begin == end {
					if !got.IsNull() {
						t.Errorf("fanout %d: Compute(%d, %d) = %v, want NULL for empty range", fanout, begin, end, got)
					}
					continue
				}
				want := naiveSum(vals, begin, end)
				if got.Int() != want {
					t.Errorf("fanout %d: Compute(%d, %d) = %v, want %d", fanout, begin, end, got, want)
				}
			}
		}
	}
}

func TestSegmentTreeMinMax(t *testing.T) {
	vals := []int64{5, 3, 8, 1, 9, 2, 7, 4, 6, 0, 11, 10}
	payload := intPayload(t, vals...)

	minTree := buildTree(t, expr.WindowMin, types.TypeInt, 4, payload)
	maxTree := buildTree(t, expr.WindowMax, types.TypeInt, 4, payload)

	for begin := 0; begin < len(vals); begin++ {
		for end := begin + 1; end <= len(vals); end++ {
			wantMin, wantMax := vals[begin], vals[begin]
			for i := begin + 1; i < end; i++ {
				if vals[i] < wantMin {
					wantMin = vals[i]
				}
				if vals[i] > wantMax {
					wantMax = vals[i]
				}
			}
			gotMin, err := minTree.Compute(begin, end)
			if err != nil {
				t.Fatalf("min Compute failed: %v", err)
			}
			gotMax, err := maxTree.Compute(begin, end)
			if err != nil {
				t.Fatalf("max Compute failed: %v", err)
			}
			if gotMin.Int() != wantMin {
				t.Errorf("MIN[%d, %d) = %v, want %d", begin, end, gotMin, wantMin)
			}
			if gotMax.Int() != wantMax {
				t.Errorf("MAX[%d, %d) = %v, want %d", begin, end, gotMax, wantMax)
			}
		}
	}
}

func TestSegmentTreeAvg(t *testing.T) {
	payload := payloadCollection(t,
		types.NewFloat(1), types.NewFloat(2), types.NewFloat(3), types.NewFloat(4))
	tree := buildTree(t, expr.WindowAvg, types.TypeFloat, 2, payload)

	got, err := tree.Compute(0, 4)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got.Float() != 2.5 {
		t.Errorf("AVG[0, 4) = %v, want 2.5", got)
	}

	got, err = tree.Compute(1, 3)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got.Float() != 2.5 {
		t.Errorf("AVG[1, 3) = %v, want 2.5", got)
	}
}

func TestSegmentTreeEmptyRangeIsNull(t *testing.T) {
	tree := buildTree(t, expr.WindowSum, types.TypeInt, 16, intPayload(t, 1, 2, 3))
	got, err := tree.Compute(2, 2)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !got.IsNull() {
		t.Errorf("empty range = %v, want NULL", got)
	}
}

func TestSegmentTreeNullPayloadPoisonsSum(t *testing.T) {
	payload := payloadCollection(t, types.NewInt(1), types.NewNull(), types.NewInt(3))
	tree := buildTree(t, expr.WindowSum, types.TypeInt, 2, payload)

	got, err := tree.Compute(0, 3)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !got.IsNull() {
		t.Errorf("SUM over NULL = %v, want NULL", got)
	}

	// ranges that avoid the NULL still aggregate
	got, err = tree.Compute(2, 3)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got.Int() != 3 {
		t.Errorf("SUM[2, 3) = %v, want 3", got)
	}
}

func TestSegmentTreeNullSkippedByMin(t *testing.T) {
	payload := payloadCollection(t, types.NewInt(5), types.NewNull(), types.NewInt(3))
	tree := buildTree(t, expr.WindowMin, types.TypeInt, 2, payload)

	got, err := tree.Compute(0, 3)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got.Int() != 3 {
		t.Errorf("MIN skipping NULL = %v, want 3", got)
	}
}

func TestSegmentTreeSingleValue(t *testing.T) {
	tree := buildTree(t, expr.WindowSum, types.TypeInt, 16, intPayload(t, 42))
	got, err := tree.Compute(0, 1)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got.Int() != 42 {
		t.Errorf("SUM[0, 1) = %v, want 42", got)
	}
}

func TestSegmentTreeRejectsNonAggregate(t *testing.T) {
	if _, err := NewWindowSegmentTree(expr.WindowRank, types.TypeInt, 16); err == nil {
		t.Error("expected error building a segment tree for RANK")
	}
}
