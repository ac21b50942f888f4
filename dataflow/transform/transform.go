// Package transform implements the optimizer's rewrite passes and the
// fixpoint driver that schedules them.
//
// File organization:
//   - transform.go: Transform interface, Context, Group
//   - fixpoint.go: convergence-driven driver with iteration cap
//   - join_elimination.go: redundant self-join to projection
//   - projection.go: projection extraction, lifting, and fusion
//   - fold_constants.go: literal evaluation with a step budget
//   - cse.go: shared sub-plans hoisted into Let bindings
//   - inline_let.go: let normalization and dead-binding collection
//   - join_implementation.go: differential join planning and arrangements
//
// Every pass is semantics-preserving: it may only replace a plan with one
// that produces the same rows on all possible inputs.
package transform

import (
	"fmt"
	"strings"

	"github.com/oxbowdb/oxbow/dataflow"
	"github.com/oxbowdb/oxbow/dataflow/annotations"
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

// Transform is a single rewrite pass. Apply returns the rewritten plan and
// whether anything changed; the input plan is never mutated. Apply must be
// deterministic.
type Transform interface {
	Name() string
	Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error)
}

// Context carries per-run state every pass needs: configuration limits, the
// inference environment, the trace collector, the remaining constant-fold
// budget, and the allocator for generated let names.
type Context struct {
	Config    dataflow.Config
	Env       *expr.Env
	Collector *annotations.Collector

	// FixpointLimited records that some fixpoint hit its iteration cap
	// during this run, so convergence of the final plan is not proven.
	FixpointLimited bool

	foldBudget int
	letSeq     int
}

// NewContext builds a context for one optimization run.
func NewContext(cfg dataflow.Config, resolver expr.SchemaResolver, collector *annotations.Collector) *Context {
	return &Context{
		Config:     cfg,
		Env:        expr.NewEnv(resolver, cfg),
		Collector:  collector,
		foldBudget: cfg.FoldBudget,
	}
}

// FoldBudget returns the shared constant-folding step budget. Passes
// decrement through the pointer so the cap spans the whole run.
func (ctx *Context) FoldBudget() *int {
	return &ctx.foldBudget
}

// NextLetName allocates a fresh binding name, unique within the run.
func (ctx *Context) NextLetName() string {
	name := fmt.Sprintf("l%d", ctx.letSeq)
	ctx.letSeq++
	return name
}

// ReserveLetNames advances the allocator past any "l<n>" names already
// present in the plan, so generated bindings never collide with authored
// ones.
func (ctx *Context) ReserveLetNames(plan expr.RelationExpr) error {
	return expr.Visit(plan, ctx.Config.MaxDepth, func(e expr.RelationExpr) error {
		if let, ok := e.(*expr.Let); ok {
			var n int
			if _, err := fmt.Sscanf(let.Name, "l%d", &n); err == nil && n >= ctx.letSeq {
				ctx.letSeq = n + 1
			}
		}
		return nil
	})
}

// Group runs an ordered list of transforms as a single unit, so a fixpoint
// wrapper re-checks convergence only after the whole bundle has run. This
// amortizes tree walks for families of local rewrites that feed each other.
type Group struct {
	GroupName  string
	Transforms []Transform
}

// Name identifies the group and its members in trace output.
func (g *Group) Name() string {
	names := make([]string, len(g.Transforms))
	for i, t := range g.Transforms {
		names[i] = t.Name()
	}
	label := g.GroupName
	if label == "" {
		label = "Group"
	}
	return fmt.Sprintf("%s(%s)", label, strings.Join(names, ", "))
}

// Apply runs every member once, in order, threading the plan through.
func (g *Group) Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error) {
	changed := false
	for _, t := range g.Transforms {
		next, c, err := t.Apply(ctx, plan)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", t.Name(), err)
		}
		plan = next
		changed = changed || c
	}
	return plan, changed, nil
}
