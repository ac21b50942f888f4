package transform

import (
	"errors"
	"testing"

	"github.com/oxbowdb/oxbow/dataflow"
	"github.com/oxbowdb/oxbow/dataflow/annotations"
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

func lit(v dataflow.Datum) *expr.Literal { return expr.Lit(v) }

func TestFoldConstantsInMap(t *testing.T) {
	plan := &expr.Map{
		Input: &expr.Get{Name: "pairs"},
		Scalars: []expr.ScalarExpr{
			&expr.CallBinary{
				Func: expr.BinaryAdd,
				Left: lit(dataflow.Int64(2)),
				Right: &expr.CallBinary{
					Func:  expr.BinaryMul,
					Left:  lit(dataflow.Int64(3)),
					Right: lit(dataflow.Int64(4)),
				},
			},
		},
	}

	out, changed := apply(t, FoldConstants{}, plan)
	if !changed {
		t.Fatal("expected folding")
	}
	m := out.(*expr.Map)
	folded, ok := m.Scalars[0].(*expr.Literal)
	if !ok || folded.Datum != dataflow.Int64(14) {
		t.Errorf("scalar = %s, want 14", m.Scalars[0])
	}
}

func TestFoldConstantsKeepsColumnReferences(t *testing.T) {
	plan := &expr.Map{
		Input: &expr.Get{Name: "pairs"},
		Scalars: []expr.ScalarExpr{
			&expr.CallBinary{
				Func: expr.BinaryAdd,
				Left: &expr.Column{Ord: 0},
				Right: &expr.CallBinary{
					Func:  expr.BinaryAdd,
					Left:  lit(dataflow.Int64(1)),
					Right: lit(dataflow.Int64(2)),
				},
			},
		},
	}

	out, changed := apply(t, FoldConstants{}, plan)
	if !changed {
		t.Fatal("expected the literal subtree to fold")
	}
	m := out.(*expr.Map)
	if got := m.Scalars[0].String(); got != "(#0 + 3)" {
		t.Errorf("scalar = %s, want (#0 + 3)", got)
	}
}

func TestFoldConstantsIfWithLiteralCondition(t *testing.T) {
	plan := &expr.Map{
		Input: &expr.Get{Name: "pairs"},
		Scalars: []expr.ScalarExpr{
			&expr.If{
				Cond: lit(dataflow.Bool(true)),
				Then: &expr.Column{Ord: 0},
				Else: lit(dataflow.Int64(0)),
			},
		},
	}

	out, changed := apply(t, FoldConstants{}, plan)
	if !changed {
		t.Fatal("expected branch selection")
	}
	m := out.(*expr.Map)
	if got := m.Scalars[0].String(); got != "#0" {
		t.Errorf("scalar = %s, want #0", got)
	}
}

func TestFoldConstantsFilterOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		predicate expr.ScalarExpr
		validate  func(t *testing.T, out expr.RelationExpr)
	}{
		{
			name: "true predicate drops away",
			predicate: &expr.CallBinary{
				Func: expr.BinaryLt, Left: lit(dataflow.Int64(1)), Right: lit(dataflow.Int64(2)),
			},
			validate: func(t *testing.T, out expr.RelationExpr) {
				if _, ok := out.(*expr.Get); !ok {
					t.Errorf("result = %s, want bare input", expr.Canonical(out))
				}
			},
		},
		{
			name: "false predicate empties the relation",
			predicate: &expr.CallBinary{
				Func: expr.BinaryGt, Left: lit(dataflow.Int64(1)), Right: lit(dataflow.Int64(2)),
			},
			validate: func(t *testing.T, out expr.RelationExpr) {
				c, ok := out.(*expr.Constant)
				if !ok {
					t.Fatalf("result = %s, want empty Constant", expr.Canonical(out))
				}
				if len(c.Rows) != 0 || len(c.Columns) != 2 {
					t.Errorf("constant = %d rows, %d columns; want 0 rows, 2 columns", len(c.Rows), len(c.Columns))
				}
			},
		},
		{
			name: "null predicate empties the relation",
			predicate: &expr.CallBinary{
				Func: expr.BinaryEq, Left: lit(nil), Right: lit(dataflow.Bool(true)),
			},
			validate: func(t *testing.T, out expr.RelationExpr) {
				if _, ok := out.(*expr.Constant); !ok {
					t.Errorf("result = %s, want empty Constant", expr.Canonical(out))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &expr.Filter{Input: &expr.Get{Name: "pairs"}, Predicates: []expr.ScalarExpr{tt.predicate}}
			out, changed := apply(t, FoldConstants{}, plan)
			if !changed {
				t.Fatal("expected folding")
			}
			tt.validate(t, out)
		})
	}
}

func TestFoldConstantsRejectsNonBoolPredicate(t *testing.T) {
	// A predicate folding to a non-bool literal means the plan was never
	// well typed; emptying the relation would hide the bug.
	plan := &expr.Filter{
		Input: &expr.Get{Name: "pairs"},
		Predicates: []expr.ScalarExpr{
			&expr.CallBinary{Func: expr.BinaryAdd, Left: lit(dataflow.Int64(1)), Right: lit(dataflow.Int64(2))},
		},
	}

	_, _, err := (FoldConstants{}).Apply(newTestContext(), plan)
	if err == nil {
		t.Fatal("expected an error")
	}
	var malformed *dataflow.MalformedPlanError
	if !errors.As(err, &malformed) {
		t.Errorf("error type = %T, want *MalformedPlanError", err)
	}
}

func TestFoldConstantsRespectsBudget(t *testing.T) {
	cfg := dataflow.DefaultConfig()
	cfg.FoldBudget = 0
	ctx := NewContext(cfg, testSources(), annotations.NewCollector(nil))

	plan := &expr.Map{
		Input: &expr.Get{Name: "pairs"},
		Scalars: []expr.ScalarExpr{
			&expr.CallBinary{Func: expr.BinaryAdd, Left: lit(dataflow.Int64(1)), Right: lit(dataflow.Int64(2))},
		},
	}

	out, changed, err := (FoldConstants{}).Apply(ctx, plan)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if changed {
		t.Errorf("plan changed with zero budget: %s", expr.Canonical(out))
	}
}
