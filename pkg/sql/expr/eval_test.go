// pkg/sql/expr/eval_test.go
package expr

import (
	"testing"

	"vexdb/pkg/chunk"
	"vexdb/pkg/types"
)

func TestEvaluateScalar(t *testing.T) {
	eval := NewEvaluator()

	v, err := eval.EvaluateScalar(NewConstant(types.NewInt(7)))
	if err != nil {
		t.Fatalf("EvaluateScalar failed: %v", err)
	}
	if v.Int() != 7 {
		t.Errorf("expected 7, got %v", v)
	}

	v, err = eval.EvaluateScalar(NewComparison(CompareLessThan,
		NewConstant(types.NewInt(1)), NewConstant(types.NewInt(2))))
	if err != nil {
		t.Fatalf("EvaluateScalar failed: %v", err)
	}
	if !v.Bool() {
		t.Error("1 < 2 should fold to true")
	}

	if _, err := eval.EvaluateScalar(NewColumnRef(0, "a", types.TypeInt)); err == nil {
		t.Error("expected error folding a column reference")
	}
}

func TestExecuteExpressionColumnRef(t *testing.T) {
	eval := NewEvaluator()
	ch := chunk.NewDataChunk(2)
	for i := 0; i < 3; i++ {
		if err := ch.AppendRow([]types.Value{types.NewInt(int64(i)), types.NewInt(int64(i * 10))}); err != nil {
			t.Fatalf("AppendRow failed: %v", err)
		}
	}

	col, err := eval.ExecuteExpression(NewColumnRef(1, "b", types.TypeInt), ch)
	if err != nil {
		t.Fatalf("ExecuteExpression failed: %v", err)
	}
	for i, want := range []int64{0, 10, 20} {
		if col[i].Int() != want {
			t.Errorf("row %d = %v, want %d", i, col[i], want)
		}
	}
}

func TestExecuteExpressionComparison(t *testing.T) {
	eval := NewEvaluator()
	ch := chunk.NewDataChunk(1)
	for _, v := range []int64{1, 5, 9} {
		if err := ch.AppendRow([]types.Value{types.NewInt(v)}); err != nil {
			t.Fatalf("AppendRow failed: %v", err)
		}
	}

	pred := NewComparison(CompareGreaterThan, NewColumnRef(0, "a", types.TypeInt), NewConstant(types.NewInt(4)))
	col, err := eval.ExecuteExpression(pred, ch)
	if err != nil {
		t.Fatalf("ExecuteExpression failed: %v", err)
	}
	want := []bool{false, true, true}
	for i := range want {
		if col[i].Bool() != want[i] {
			t.Errorf("row %d = %v, want %v", i, col[i], want[i])
		}
	}
}

func TestLikeMatch(t *testing.T) {
	tests := []struct {
		s       string
		pattern string
		want    bool
	}{
		{"abc", "abc", true},
		{"abc", "abd", false},
		{"abcdef", "abc%", true},
		{"abc", "a_c", true},
		{"abc", "a_d", false},
		{"abc", "%c", true},
		{"abc", "%d", false},
		{"", "%", true},
		{"abc", "", false},
		{"aXbXc", "a%b%c", true},
	}
	for _, tt := range tests {
		if got := likeMatch(tt.s, tt.pattern); got != tt.want {
			t.Errorf("likeMatch(%q, %q) = %v, want %v", tt.s, tt.pattern, got, tt.want)
		}
	}
}

func TestEvalNullComparisonIsNull(t *testing.T) {
	eval := NewEvaluator()
	cmp := NewComparison(CompareEqual, NewConstant(types.NewNull()), NewConstant(types.NewInt(1)))
	v, err := eval.EvaluateScalar(cmp)
	if err != nil {
		t.Fatalf("EvaluateScalar failed: %v", err)
	}
	if !v.IsNull() {
		t.Errorf("NULL = 1 should evaluate to NULL, got %v", v)
	}
}
