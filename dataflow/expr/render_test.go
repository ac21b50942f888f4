package expr

import (
	"strings"
	"testing"

	"github.com/oxbowdb/oxbow/dataflow"
)

func TestRenderFilter(t *testing.T) {
	plan := &Filter{
		Input: &Get{Name: "t"},
		Predicates: []ScalarExpr{
			&CallBinary{Func: BinaryGt, Left: &Column{Ord: 1}, Right: Lit(dataflow.Int64(0))},
		},
	}

	expected := `Filter ((#1 > 0))
  types = (Int32?, Int64, Int32)
  keys = ((0), (1))
  Get t
    types = (Int32?, Int64, Int32)
    keys = ((0), (1))
`
	got, err := Render(plan, testEnv())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != expected {
		t.Errorf("rendered plan:\n%s\nwant:\n%s", got, expected)
	}
}

func TestRenderJoinImplementation(t *testing.T) {
	plan := &Join{
		Inputs:         []RelationExpr{&Get{Name: "pairs"}, &Get{Name: "pairs"}},
		Equivalences:   [][]int{{0, 2}},
		Implementation: Differential{Keys: [][]int{{0}, {0}}},
	}

	expected := `Join on=(#0 = #2)
  implementation = Differential %0.(#0) %1.(#0)
  types = (Int64, String, Int64, String)
  keys = ((0))
  Get pairs
    types = (Int64, String)
    keys = ((0))
  Get pairs
    types = (Int64, String)
    keys = ((0))
`
	got, err := Render(plan, testEnv())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != expected {
		t.Errorf("rendered plan:\n%s\nwant:\n%s", got, expected)
	}
}

func TestRenderUnimplementedJoin(t *testing.T) {
	plan := &Join{
		Inputs:         []RelationExpr{&Get{Name: "pairs"}, &Get{Name: "pairs"}},
		Equivalences:   [][]int{{0, 2}},
		Implementation: Unimplemented{},
	}

	got, err := Render(plan, testEnv())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if want := "  implementation = Unimplemented\n"; !strings.Contains(got, want) {
		t.Errorf("rendered plan missing %q:\n%s", want, got)
	}
}

func TestRenderLetScope(t *testing.T) {
	plan := &Let{
		Name:  "x",
		Value: &Get{Name: "pairs"},
		Body:  &Threshold{Input: &Get{Name: "x"}},
	}

	expected := `Let x
  types = (Int64, String)
  keys = ((0))
  Get pairs
    types = (Int64, String)
    keys = ((0))
  Threshold
    types = (Int64, String)
    keys = ((0))
    Get x
      types = (Int64, String)
      keys = ((0))
`
	got, err := Render(plan, testEnv())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != expected {
		t.Errorf("rendered plan:\n%s\nwant:\n%s", got, expected)
	}
}

func TestRenderReduceHeader(t *testing.T) {
	plan := &Reduce{
		Input:      &Get{Name: "t"},
		GroupKey:   []int{2},
		Aggregates: []Aggregate{{Func: AggSum, Expr: &Column{Ord: 1}}},
	}

	got, err := Render(plan, testEnv())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if want := "Reduce group=(#2) aggs=(sum(#1))\n"; !strings.Contains(got, want) {
		t.Errorf("rendered plan missing %q:\n%s", want, got)
	}
}

func TestRenderDeterministic(t *testing.T) {
	plan := &Join{
		Inputs:         []RelationExpr{&Get{Name: "t"}, &Get{Name: "pairs"}},
		Equivalences:   [][]int{{1, 3}},
		Implementation: Unimplemented{},
	}

	first, err := Render(plan, testEnv())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Render(plan, testEnv())
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if again != first {
			t.Fatalf("render output not stable:\n%s\nvs\n%s", first, again)
		}
	}
}

