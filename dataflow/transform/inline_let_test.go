package transform

import (
	"testing"

	"github.com/oxbowdb/oxbow/dataflow"
	"github.com/oxbowdb/oxbow/dataflow/annotations"
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

func TestInlineLetsDropsDeadBinding(t *testing.T) {
	plan := &expr.Let{
		Name:  "x",
		Value: &expr.Get{Name: "t"},
		Body:  &expr.Get{Name: "pairs"},
	}

	out, changed := apply(t, InlineLets{}, plan)
	if !changed {
		t.Fatal("expected the dead binding to drop")
	}
	get, ok := out.(*expr.Get)
	if !ok || get.Name != "pairs" {
		t.Errorf("result = %s, want Get pairs", expr.Canonical(out))
	}
}

func TestInlineLetsInlinesSingleUse(t *testing.T) {
	plan := &expr.Let{
		Name:  "x",
		Value: &expr.Negate{Input: &expr.Get{Name: "t"}},
		Body:  &expr.Threshold{Input: &expr.Get{Name: "x"}},
	}

	out, changed := apply(t, InlineLets{}, plan)
	if !changed {
		t.Fatal("expected inlining")
	}
	want := &expr.Threshold{Input: &expr.Negate{Input: &expr.Get{Name: "t"}}}
	if !expr.Equal(out, want) {
		t.Errorf("result = %s, want %s", expr.Canonical(out), expr.Canonical(want))
	}
}

func TestInlineLetsKeepsMultiUse(t *testing.T) {
	plan := &expr.Let{
		Name:  "x",
		Value: &expr.Negate{Input: &expr.Get{Name: "t"}},
		Body: &expr.Union{Inputs: []expr.RelationExpr{
			&expr.Get{Name: "x"},
			&expr.Get{Name: "x"},
		}},
	}

	if _, changed := apply(t, InlineLets{}, plan); changed {
		t.Error("binding with two consumers must stay shared")
	}
}

func TestInlineLetsRespectsConfigFlag(t *testing.T) {
	cfg := dataflow.DefaultConfig()
	cfg.InlineSingleUseLets = false
	ctx := NewContext(cfg, testSources(), annotations.NewCollector(nil))

	plan := &expr.Let{
		Name:  "x",
		Value: &expr.Negate{Input: &expr.Get{Name: "t"}},
		Body:  &expr.Threshold{Input: &expr.Get{Name: "x"}},
	}

	_, changed, err := (InlineLets{}).Apply(ctx, plan)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if changed {
		t.Error("single-use inlining is disabled; plan must be unchanged")
	}
}

func TestInlineLetsAvoidsCapture(t *testing.T) {
	// y is referenced once, but its value refers to the outer x and the
	// only reference to y sits under a Let that rebinds x. Substituting
	// there would silently redirect y's rows from bare to pairs, so the
	// binding must stay put. The outer x is still safe to inline into y's
	// value.
	plan := &expr.Let{
		Name:  "x",
		Value: &expr.Get{Name: "bare"},
		Body: &expr.Let{
			Name:  "y",
			Value: &expr.Negate{Input: &expr.Get{Name: "x"}},
			Body: &expr.Let{
				Name:  "x",
				Value: &expr.Get{Name: "pairs"},
				Body: &expr.Join{
					Inputs: []expr.RelationExpr{
						&expr.Get{Name: "x"},
						&expr.Get{Name: "x"},
						&expr.Get{Name: "y"},
					},
					Implementation: expr.Unimplemented{},
				},
			},
		},
	}

	out, changed := apply(t, InlineLets{}, plan)
	if !changed {
		t.Fatal("expected the outer binding to inline into the value of y")
	}
	want := &expr.Let{
		Name:  "y",
		Value: &expr.Negate{Input: &expr.Get{Name: "bare"}},
		Body: &expr.Let{
			Name:  "x",
			Value: &expr.Get{Name: "pairs"},
			Body: &expr.Join{
				Inputs: []expr.RelationExpr{
					&expr.Get{Name: "x"},
					&expr.Get{Name: "x"},
					&expr.Get{Name: "y"},
				},
				Implementation: expr.Unimplemented{},
			},
		},
	}
	if !expr.Equal(out, want) {
		t.Errorf("result = %s, want %s", expr.Canonical(out), expr.Canonical(want))
	}
}

func TestInlineLetsHonorsShadowing(t *testing.T) {
	// The inner binding shadows the outer one, so the outer body has one
	// real reference plus a shadowed region that must not be rewritten.
	plan := &expr.Let{
		Name:  "x",
		Value: &expr.Get{Name: "t"},
		Body: &expr.Union{Inputs: []expr.RelationExpr{
			&expr.Get{Name: "x"},
			&expr.Let{
				Name:  "x",
				Value: &expr.Get{Name: "pairs"},
				Body: &expr.Union{Inputs: []expr.RelationExpr{
					&expr.Get{Name: "x"},
					&expr.Get{Name: "x"},
				}},
			},
		}},
	}

	out, changed := apply(t, InlineLets{}, plan)
	if !changed {
		t.Fatal("expected the single outer reference to inline")
	}
	// The outer binding is gone; the inner one survives with its own
	// references intact.
	union, ok := out.(*expr.Union)
	if !ok {
		t.Fatalf("result = %s, want Union", expr.Canonical(out))
	}
	if get, ok := union.Inputs[0].(*expr.Get); !ok || get.Name != "t" {
		t.Errorf("first input = %s, want inlined Get t", expr.Canonical(union.Inputs[0]))
	}
	inner, ok := union.Inputs[1].(*expr.Let)
	if !ok || inner.Name != "x" {
		t.Fatalf("second input = %s, want inner Let x", expr.Canonical(union.Inputs[1]))
	}
	if get, ok := inner.Value.(*expr.Get); !ok || get.Name != "pairs" {
		t.Errorf("inner value = %s, want Get pairs", expr.Canonical(inner.Value))
	}
}
