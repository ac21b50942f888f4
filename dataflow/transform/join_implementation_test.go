package transform

import (
	"reflect"
	"testing"

	"github.com/oxbowdb/oxbow/dataflow/expr"
)

func TestJoinImplementationArrangesBothInputs(t *testing.T) {
	// t has 3 columns, pairs has 2; #1 = #3 equates t's second column with
	// pairs' first.
	plan := &expr.Join{
		Inputs: []expr.RelationExpr{
			&expr.Get{Name: "t"},
			&expr.Get{Name: "pairs"},
		},
		Equivalences:   [][]int{{1, 3}},
		Implementation: expr.Unimplemented{},
	}

	out, changed := apply(t, JoinImplementation{}, plan)
	if !changed {
		t.Fatal("expected a differential plan")
	}
	join, ok := out.(*expr.Join)
	if !ok {
		t.Fatalf("result = %s, want Join", expr.Canonical(out))
	}
	impl, ok := join.Implementation.(expr.Differential)
	if !ok {
		t.Fatalf("implementation = %T, want Differential", join.Implementation)
	}
	if want := [][]int{{1}, {0}}; !reflect.DeepEqual(impl.Keys, want) {
		t.Errorf("keys = %v, want %v", impl.Keys, want)
	}
	for i, input := range join.Inputs {
		arranged, ok := input.(*expr.ArrangeBy)
		if !ok {
			t.Fatalf("input %d = %s, want ArrangeBy", i, expr.Canonical(input))
		}
		if !reflect.DeepEqual(arranged.Keys, [][]int{impl.Keys[i]}) {
			t.Errorf("input %d arranged on %v, want %v", i, arranged.Keys, [][]int{impl.Keys[i]})
		}
	}
}

func TestJoinImplementationKeyDeclarationOrder(t *testing.T) {
	// Two constraint classes touching t in the order second column then
	// first; the candidate key lists columns in that order.
	plan := &expr.Join{
		Inputs: []expr.RelationExpr{
			&expr.Get{Name: "t"},
			&expr.Get{Name: "pairs"},
		},
		Equivalences:   [][]int{{1, 3}, {0, 4}},
		Implementation: expr.Unimplemented{},
	}

	out, _ := apply(t, JoinImplementation{}, plan)
	impl := out.(*expr.Join).Implementation.(expr.Differential)
	if want := [][]int{{1, 0}, {0, 1}}; !reflect.DeepEqual(impl.Keys, want) {
		t.Errorf("keys = %v, want %v", impl.Keys, want)
	}
}

func TestJoinImplementationReusesExistingArrangement(t *testing.T) {
	already := &expr.ArrangeBy{
		Input: &expr.Get{Name: "t"},
		Keys:  [][]int{{1}},
	}
	plan := &expr.Join{
		Inputs: []expr.RelationExpr{
			already,
			&expr.Get{Name: "pairs"},
		},
		Equivalences:   [][]int{{1, 3}},
		Implementation: expr.Unimplemented{},
	}

	out, _ := apply(t, JoinImplementation{}, plan)
	join := out.(*expr.Join)
	if join.Inputs[0] != expr.RelationExpr(already) {
		t.Error("an input already arranged on the needed key must be reused as is")
	}
}

func TestJoinImplementationExtendsExistingArrangement(t *testing.T) {
	plan := &expr.Join{
		Inputs: []expr.RelationExpr{
			&expr.ArrangeBy{
				Input: &expr.Get{Name: "t"},
				Keys:  [][]int{{0}},
			},
			&expr.Get{Name: "pairs"},
		},
		Equivalences:   [][]int{{1, 3}},
		Implementation: expr.Unimplemented{},
	}

	out, _ := apply(t, JoinImplementation{}, plan)
	arranged, ok := out.(*expr.Join).Inputs[0].(*expr.ArrangeBy)
	if !ok {
		t.Fatal("expected an ArrangeBy input")
	}
	if want := [][]int{{0}, {1}}; !reflect.DeepEqual(arranged.Keys, want) {
		t.Errorf("keys = %v, want %v", arranged.Keys, want)
	}
}

func TestJoinImplementationSharesSelfJoinArrangement(t *testing.T) {
	plan := &expr.Join{
		Inputs: []expr.RelationExpr{
			&expr.Get{Name: "t"},
			&expr.Get{Name: "t"},
		},
		Equivalences:   [][]int{{0, 3}},
		Implementation: expr.Unimplemented{},
	}

	out, changed := apply(t, JoinImplementation{}, plan)
	if !changed {
		t.Fatal("expected a shared arrangement")
	}
	let, ok := out.(*expr.Let)
	if !ok {
		t.Fatalf("result = %s, want Let", expr.Canonical(out))
	}
	arranged, ok := let.Value.(*expr.ArrangeBy)
	if !ok {
		t.Fatalf("bound value = %s, want ArrangeBy", expr.Canonical(let.Value))
	}
	// Both sides need key (0), so the shared arrangement carries it once.
	if want := [][]int{{0}}; !reflect.DeepEqual(arranged.Keys, want) {
		t.Errorf("arrangement keys = %v, want %v", arranged.Keys, want)
	}
	join, ok := let.Body.(*expr.Join)
	if !ok {
		t.Fatalf("body = %s, want Join", expr.Canonical(let.Body))
	}
	for i, input := range join.Inputs {
		get, ok := input.(*expr.Get)
		if !ok || get.Name != let.Name {
			t.Errorf("input %d = %s, want Get %s", i, expr.Canonical(input), let.Name)
		}
	}
	impl := join.Implementation.(expr.Differential)
	if want := [][]int{{0}, {0}}; !reflect.DeepEqual(impl.Keys, want) {
		t.Errorf("keys = %v, want %v", impl.Keys, want)
	}
}

func TestJoinImplementationLeavesUntouchableJoins(t *testing.T) {
	tests := []struct {
		name string
		plan *expr.Join
	}{
		{
			name: "no equivalences",
			plan: &expr.Join{
				Inputs: []expr.RelationExpr{
					&expr.Get{Name: "t"},
					&expr.Get{Name: "pairs"},
				},
				Implementation: expr.Unimplemented{},
			},
		},
		{
			name: "input untouched by constraints",
			plan: &expr.Join{
				Inputs: []expr.RelationExpr{
					&expr.Get{Name: "t"},
					&expr.Get{Name: "pairs"},
					&expr.Get{Name: "bare"},
				},
				// Only the first two inputs participate.
				Equivalences:   [][]int{{1, 3}},
				Implementation: expr.Unimplemented{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := apply(t, JoinImplementation{}, tt.plan)
			if changed {
				t.Fatal("expected no change")
			}
			join := out.(*expr.Join)
			if _, ok := join.Implementation.(expr.Unimplemented); !ok {
				t.Errorf("implementation = %T, want Unimplemented", join.Implementation)
			}
		})
	}
}

func TestJoinImplementationSkipsPlannedJoins(t *testing.T) {
	plan := &expr.Join{
		Inputs: []expr.RelationExpr{
			&expr.Get{Name: "t"},
			&expr.Get{Name: "pairs"},
		},
		Equivalences:   [][]int{{1, 3}},
		Implementation: expr.Differential{Keys: [][]int{{1}, {0}}},
	}

	out, changed := apply(t, JoinImplementation{}, plan)
	if changed {
		t.Fatal("a planned join must not be revisited")
	}
	if out != expr.RelationExpr(plan) {
		t.Error("plan identity must be preserved")
	}
}
