package transform

import (
	"testing"

	"github.com/oxbowdb/oxbow/dataflow"
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

func TestProjectionExtraction(t *testing.T) {
	plan := &expr.Map{
		Input:   &expr.Get{Name: "t"},
		Scalars: []expr.ScalarExpr{&expr.Column{Ord: 1}, &expr.Column{Ord: 0}},
	}

	out, changed := apply(t, ProjectionExtraction{}, plan)
	if !changed {
		t.Fatal("expected extraction")
	}
	project, ok := out.(*expr.Project)
	if !ok {
		t.Fatalf("result = %s, want Project", expr.Canonical(out))
	}
	want := []int{0, 1, 2, 1, 0}
	for i := range want {
		if project.Outputs[i] != want[i] {
			t.Fatalf("outputs = %v, want %v", project.Outputs, want)
		}
	}
}

func TestProjectionExtractionSkipsComputedScalars(t *testing.T) {
	plan := &expr.Map{
		Input: &expr.Get{Name: "t"},
		Scalars: []expr.ScalarExpr{
			&expr.CallBinary{Func: expr.BinaryAdd, Left: &expr.Column{Ord: 0}, Right: expr.Lit(dataflow.Int64(1))},
		},
	}
	if _, changed := apply(t, ProjectionExtraction{}, plan); changed {
		t.Error("Map with computed scalars must stay a Map")
	}
}

func TestProjectionLiftingOverFilter(t *testing.T) {
	plan := &expr.Filter{
		Input: &expr.Project{Input: &expr.Get{Name: "t"}, Outputs: []int{2, 1}},
		Predicates: []expr.ScalarExpr{
			&expr.CallBinary{Func: expr.BinaryGt, Left: &expr.Column{Ord: 0}, Right: expr.Lit(dataflow.Int64(5))},
		},
	}

	out, changed := apply(t, ProjectionLifting{}, plan)
	if !changed {
		t.Fatal("expected lifting")
	}
	project, ok := out.(*expr.Project)
	if !ok {
		t.Fatalf("result = %s, want Project on top", expr.Canonical(out))
	}
	filter, ok := project.Input.(*expr.Filter)
	if !ok {
		t.Fatalf("projection input = %s, want Filter", expr.Canonical(project.Input))
	}
	// Predicate column 0 referred to projected column 2 of the input.
	if got := filter.Predicates[0].String(); got != "(#2 > 5)" {
		t.Errorf("lifted predicate = %s, want (#2 > 5)", got)
	}
}

func TestProjectionLiftingOverMap(t *testing.T) {
	plan := &expr.Map{
		Input: &expr.Project{Input: &expr.Get{Name: "t"}, Outputs: []int{1}},
		Scalars: []expr.ScalarExpr{
			&expr.CallBinary{Func: expr.BinaryAdd, Left: &expr.Column{Ord: 0}, Right: expr.Lit(dataflow.Int64(1))},
		},
	}

	out, changed := apply(t, ProjectionLifting{}, plan)
	if !changed {
		t.Fatal("expected lifting")
	}
	project, ok := out.(*expr.Project)
	if !ok {
		t.Fatalf("result = %s, want Project on top", expr.Canonical(out))
	}
	want := []int{1, 3}
	if len(project.Outputs) != len(want) {
		t.Fatalf("outputs = %v, want %v", project.Outputs, want)
	}
	for i := range want {
		if project.Outputs[i] != want[i] {
			t.Fatalf("outputs = %v, want %v", project.Outputs, want)
		}
	}
	m, ok := project.Input.(*expr.Map)
	if !ok {
		t.Fatalf("projection input = %s, want Map", expr.Canonical(project.Input))
	}
	if got := m.Scalars[0].String(); got != "(#1 + 1)" {
		t.Errorf("lifted scalar = %s, want (#1 + 1)", got)
	}
}

func TestFuseProjections(t *testing.T) {
	plan := &expr.Project{
		Input:   &expr.Project{Input: &expr.Get{Name: "t"}, Outputs: []int{2, 0}},
		Outputs: []int{1, 0},
	}

	out, changed := apply(t, FuseProjections{}, plan)
	if !changed {
		t.Fatal("expected fusion")
	}
	project, ok := out.(*expr.Project)
	if !ok {
		t.Fatalf("result = %s, want Project", expr.Canonical(out))
	}
	if _, ok := project.Input.(*expr.Get); !ok {
		t.Fatalf("fused input = %s, want Get", expr.Canonical(project.Input))
	}
	want := []int{0, 2}
	for i := range want {
		if project.Outputs[i] != want[i] {
			t.Fatalf("outputs = %v, want %v", project.Outputs, want)
		}
	}
}

func TestFuseProjectionsRemovesIdentity(t *testing.T) {
	plan := &expr.Project{Input: &expr.Get{Name: "t"}, Outputs: []int{0, 1, 2}}

	out, changed := apply(t, FuseProjections{}, plan)
	if !changed {
		t.Fatal("expected identity removal")
	}
	if _, ok := out.(*expr.Get); !ok {
		t.Errorf("result = %s, want bare Get", expr.Canonical(out))
	}
}

func TestFuseProjectionsKeepsReordering(t *testing.T) {
	plan := &expr.Project{Input: &expr.Get{Name: "t"}, Outputs: []int{2, 1, 0}}
	if _, changed := apply(t, FuseProjections{}, plan); changed {
		t.Error("reordering projection must stay")
	}
}
