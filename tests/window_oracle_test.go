// tests/window_oracle_test.go
//
// Cross-checks the window operator against SQLite's window function
// implementation over the same data.
package tests

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"vexdb/pkg/chunk"
	"vexdb/pkg/sql/executor"
	"vexdb/pkg/sql/expr"
	"vexdb/pkg/types"
)

type memorySource struct {
	chunks []*chunk.DataChunk
	pos    int
}

func (s *memorySource) Next() (*chunk.DataChunk, error) {
	if s.pos >= len(s.chunks) {
		return nil, nil
	}
	ch := s.chunks[s.pos]
	s.pos++
	return ch, nil
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open SQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestWindowAggregatesMatchSQLite(t *testing.T) {
	data := []struct {
		p string
		k int64
	}{
		{"A", 10}, {"A", 20}, {"A", 20}, {"B", 5},
		{"B", 30}, {"C", 7}, {"A", 15}, {"B", 5},
	}

	// reference results from SQLite
	db := openSQLite(t)
	if _, err := db.Exec("CREATE TABLE t (p TEXT, k INT)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	for _, row := range data {
		if _, err := db.Exec("INSERT INTO t VALUES (?, ?)", row.p, row.k); err != nil {
			t.Fatalf("INSERT failed: %v", err)
		}
	}
	rows, err := db.Query(`
		SELECT p, k,
		       SUM(k)       OVER w,
		       RANK()       OVER w,
		       DENSE_RANK() OVER w,
		       COUNT(*)     OVER w
		FROM t
		WINDOW w AS (PARTITION BY p ORDER BY k
		             RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)
		ORDER BY p, k`)
	if err != nil {
		t.Fatalf("window query failed: %v", err)
	}
	defer rows.Close()

	type refRow struct {
		p                           string
		k, sum, rank, dense, countN int64
	}
	var want []refRow
	for rows.Next() {
		var r refRow
		if err := rows.Scan(&r.p, &r.k, &r.sum, &r.rank, &r.dense, &r.countN); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		want = append(want, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows error: %v", err)
	}

	// the same windows through the operator under test
	in := chunk.NewDataChunk(2)
	for _, row := range data {
		if err := in.AppendRow([]types.Value{types.NewText(row.p), types.NewInt(row.k)}); err != nil {
			t.Fatalf("AppendRow failed: %v", err)
		}
	}
	p := expr.NewColumnRef(0, "p", types.TypeText)
	k := expr.NewColumnRef(1, "k", types.TypeInt)
	window := func(typ expr.WindowFuncType, payload bool) *expr.WindowExpression {
		w := &expr.WindowExpression{
			Type:       typ,
			Partitions: []expr.Expression{p},
			Ordering:   []expr.WindowOrder{{Expr: k, Direction: chunk.Ascending}},
			Start:      expr.BoundaryUnboundedPreceding,
			End:        expr.BoundaryCurrentRowRange,
			Return:     types.TypeInt,
		}
		if payload {
			w.Children = []expr.Expression{k}
		}
		return w
	}

	op := executor.NewWindowOperator(
		&memorySource{chunks: []*chunk.DataChunk{in}},
		[]*expr.WindowExpression{
			window(expr.WindowSum, true),
			window(expr.WindowRank, false),
			window(expr.WindowDenseRank, false),
			window(expr.WindowCountStar, false),
		},
		expr.NewEvaluator(),
	)
	out, err := op.ReadAll()
	if err != nil {
		t.Fatalf("window execution failed: %v", err)
	}

	if out.Count() != len(want) {
		t.Fatalf("row count mismatch: got %d, want %d", out.Count(), len(want))
	}
	for i, w := range want {
		got := out.GetRow(i)
		if got[0].Text() != w.p || got[1].Int() != w.k {
			t.Fatalf("row %d: key (%s, %d), want (%s, %d)", i, got[0].Text(), got[1].Int(), w.p, w.k)
		}
		if got[2].Int() != w.sum {
			t.Errorf("row %d: SUM = %d, SQLite says %d", i, got[2].Int(), w.sum)
		}
		if got[3].Int() != w.rank {
			t.Errorf("row %d: RANK = %d, SQLite says %d", i, got[3].Int(), w.rank)
		}
		if got[4].Int() != w.dense {
			t.Errorf("row %d: DENSE_RANK = %d, SQLite says %d", i, got[4].Int(), w.dense)
		}
		if got[5].Int() != w.countN {
			t.Errorf("row %d: COUNT(*) = %d, SQLite says %d", i, got[5].Int(), w.countN)
		}
	}
}

func TestWindowRowsFrameMatchesSQLite(t *testing.T) {
	vals := []int64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3}

	db := openSQLite(t)
	if _, err := db.Exec("CREATE TABLE t (v INT)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	for _, v := range vals {
		if _, err := db.Exec("INSERT INTO t VALUES (?)", v); err != nil {
			t.Fatalf("INSERT failed: %v", err)
		}
	}
	rows, err := db.Query(`
		SELECT v,
		       SUM(v) OVER (ORDER BY v, rowid
		                    ROWS BETWEEN 2 PRECEDING AND 1 FOLLOWING),
		       MIN(v) OVER (ORDER BY v, rowid
		                    ROWS BETWEEN 2 PRECEDING AND 1 FOLLOWING)
		FROM t ORDER BY v, rowid`)
	if err != nil {
		t.Fatalf("window query failed: %v", err)
	}
	defer rows.Close()

	var wantV, wantSum, wantMin []int64
	for rows.Next() {
		var v, s, m int64
		if err := rows.Scan(&v, &s, &m); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		wantV = append(wantV, v)
		wantSum = append(wantSum, s)
		wantMin = append(wantMin, m)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows error: %v", err)
	}

	in := chunk.NewDataChunk(1)
	for _, v := range vals {
		if err := in.AppendRow([]types.Value{types.NewInt(v)}); err != nil {
			t.Fatalf("AppendRow failed: %v", err)
		}
	}
	v := expr.NewColumnRef(0, "v", types.TypeInt)
	frame := func(typ expr.WindowFuncType) *expr.WindowExpression {
		return &expr.WindowExpression{
			Type:      typ,
			Ordering:  []expr.WindowOrder{{Expr: v, Direction: chunk.Ascending}},
			Children:  []expr.Expression{v},
			Start:     expr.BoundaryExprPreceding,
			StartExpr: expr.NewConstant(types.NewInt(2)),
			End:       expr.BoundaryExprFollowing,
			EndExpr:   expr.NewConstant(types.NewInt(1)),
			Return:    types.TypeInt,
		}
	}

	op := executor.NewWindowOperator(
		&memorySource{chunks: []*chunk.DataChunk{in}},
		[]*expr.WindowExpression{frame(expr.WindowSum), frame(expr.WindowMin)},
		expr.NewEvaluator(),
	)
	out, err := op.ReadAll()
	if err != nil {
		t.Fatalf("window execution failed: %v", err)
	}

	if out.Count() != len(wantV) {
		t.Fatalf("row count mismatch: got %d, want %d", out.Count(), len(wantV))
	}
	for i := range wantV {
		got := out.GetRow(i)
		if got[0].Int() != wantV[i] {
			t.Fatalf("row %d: v = %d, want %d", i, got[0].Int(), wantV[i])
		}
		if got[1].Int() != wantSum[i] {
			t.Errorf("row %d: SUM = %d, SQLite says %d", i, got[1].Int(), wantSum[i])
		}
		if got[2].Int() != wantMin[i] {
			t.Errorf("row %d: MIN = %d, SQLite says %d", i, got[2].Int(), wantMin[i])
		}
	}
}
