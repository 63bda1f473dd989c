// cmd/vexdb/main.go
//
// vexdb CLI - drives the window execution and filter combining cores
// over built-in sample data.
//
// Usage:
//
//	vexdb demo [--config path]
//	vexdb version
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vexdb/internal/config"
	"vexdb/internal/logger"
	"vexdb/pkg/chunk"
	"vexdb/pkg/sql/executor"
	"vexdb/pkg/sql/expr"
	"vexdb/pkg/sql/optimizer"
	"vexdb/pkg/types"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "vexdb",
		Short: "vexdb columnar window execution and filter combining engine",
	}

	var configPath string
	demo := &cobra.Command{
		Use:   "demo",
		Short: "Run the window operator and filter combiner over sample data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(configPath)
		},
	}
	demo.Flags().StringVar(&configPath, "config", "", "path to a vexdb.yaml config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the vexdb version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vexdb %s\n", version)
		},
	}

	root.AddCommand(demo, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// memorySource feeds one prepared chunk to the operator
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

func runDemo(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	runID := uuid.New().String()
	log = log.With("run_id", runID)

	if err := demoWindow(cfg, log.Named("window")); err != nil {
		return err
	}
	return demoCombiner(log.Named("combiner"))
}

// demoWindow runs SUM and RANK windows over (region, amount) rows
func demoWindow(cfg *config.Config, log *logger.Logger) error {
	rows := [][]types.Value{
		{types.NewText("west"), types.NewInt(10)},
		{types.NewText("east"), types.NewInt(5)},
		{types.NewText("west"), types.NewInt(20)},
		{types.NewText("east"), types.NewInt(5)},
		{types.NewText("west"), types.NewInt(20)},
	}
	in := chunk.NewDataChunk(2)
	for _, row := range rows {
		if err := in.AppendRow(row); err != nil {
			return err
		}
	}

	region := expr.NewColumnRef(0, "region", types.TypeText)
	amount := expr.NewColumnRef(1, "amount", types.TypeInt)
	runningSum := &expr.WindowExpression{
		Type:       expr.WindowSum,
		Partitions: []expr.Expression{region},
		Ordering:   []expr.WindowOrder{{Expr: amount, Direction: chunk.Ascending}},
		Children:   []expr.Expression{amount},
		Start:      expr.BoundaryUnboundedPreceding,
		End:        expr.BoundaryCurrentRowRange,
		Return:     types.TypeInt,
	}
	rank := &expr.WindowExpression{
		Type:       expr.WindowRank,
		Partitions: []expr.Expression{region},
		Ordering:   []expr.WindowOrder{{Expr: amount, Direction: chunk.Ascending}},
		Start:      expr.BoundaryUnboundedPreceding,
		End:        expr.BoundaryCurrentRowRange,
		Return:     types.TypeInt,
	}

	op := executor.NewWindowOperator(
		&memorySource{chunks: []*chunk.DataChunk{in}},
		[]*expr.WindowExpression{runningSum, rank},
		expr.NewEvaluator(),
		executor.WithTreeFanout(cfg.Engine.TreeFanout),
	)
	out, err := op.ReadAll()
	if err != nil {
		return err
	}

	log.Info("window results computed", "rows", out.Count())
	fmt.Println("region | amount | running_sum | rank")
	for i := 0; i < out.Count(); i++ {
		row := out.GetRow(i)
		fmt.Printf("%-6s | %6s | %11s | %4s\n", row[0], row[1], row[2], row[3])
	}
	return nil
}

// demoCombiner normalizes a small filter conjunction and shows the
// pushdown output
func demoCombiner(log *logger.Logger) error {
	fc := optimizer.NewFilterCombiner(expr.NewEvaluator())
	a := expr.NewColumnRef(0, "a", types.TypeInt)
	b := expr.NewColumnRef(1, "b", types.TypeInt)

	filters := []expr.Expression{
		expr.NewComparison(expr.CompareEqual, a, b),
		expr.NewComparison(expr.CompareGreaterThan, b, expr.NewConstant(types.NewInt(10))),
		expr.NewComparison(expr.CompareLessThanOrEqual, a, expr.NewConstant(types.NewInt(99))),
	}
	for _, f := range filters {
		res, err := fc.AddFilter(f)
		if err != nil {
			return err
		}
		if res == optimizer.FilterUnsatisfiable {
			log.Info("conjunction proved unsatisfiable", "filter", f.String())
			return nil
		}
	}

	fmt.Println("\nnormalized filters:")
	fc.GenerateFilters(func(filter expr.Expression) {
		fmt.Printf("  %s\n", filter)
	})
	log.Info("filters normalized", "input", len(filters))
	return nil
}
