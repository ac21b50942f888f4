// Package optimize assembles the standard transform pipeline and drives it
// over a plan, either straight to the final result ("opt") or step by step
// with a rendering after every stage ("steps").
package optimize

import (
	"fmt"

	"github.com/oxbowdb/oxbow/dataflow"
	"github.com/oxbowdb/oxbow/dataflow/annotations"
	"github.com/oxbowdb/oxbow/dataflow/expr"
	"github.com/oxbowdb/oxbow/dataflow/transform"
)

// Options configures an optimizer.
type Options struct {
	Config dataflow.Config

	// Handler receives trace events during optimization. Nil disables
	// tracing entirely.
	Handler annotations.Handler
}

// Optimizer rewrites plans through the standard pipeline. It is stateless
// across runs; every Optimize or Steps call builds a fresh context.
type Optimizer struct {
	resolver expr.SchemaResolver
	options  Options
}

// New creates an optimizer resolving sources against the given catalog.
func New(resolver expr.SchemaResolver, options Options) *Optimizer {
	if options.Config == (dataflow.Config{}) {
		options.Config = dataflow.DefaultConfig()
	}
	return &Optimizer{resolver: resolver, options: options}
}

// Options returns the optimizer options.
func (o *Optimizer) Options() Options {
	return o.options
}

// Pipeline returns the standard transform sequence. Local
// simplifications run to fixpoint first, then sharing and normalization,
// and join implementation planning runs last so it sees final shapes.
func (o *Optimizer) Pipeline() []transform.Transform {
	limit := o.options.Config.MaxFixpointIters
	return []transform.Transform{
		&transform.Fixpoint{
			Limit: limit,
			Transforms: []transform.Transform{
				&transform.Group{
					GroupName: "FuseAndCollapse",
					Transforms: []transform.Transform{
						transform.ProjectionExtraction{},
						transform.ProjectionLifting{},
						transform.FuseProjections{},
					},
				},
				transform.FoldConstants{},
				transform.JoinElimination{},
			},
		},
		&transform.Fixpoint{
			Limit:      limit,
			Transforms: []transform.Transform{transform.RedundantSubplanSharing{}},
		},
		&transform.Fixpoint{
			Limit:      limit,
			Transforms: []transform.Transform{transform.InlineLets{}},
		},
		transform.JoinImplementation{},
	}
}

// Result is the outcome of a full optimization run.
type Result struct {
	Plan      expr.RelationExpr
	Rendered  string
	Converged bool
}

// Optimize runs the full pipeline. The input plan is type-checked first so
// malformed trees fail before any rewriting; each pipeline stage is traced
// as applied or unchanged, and a final rendering closes the trace.
func (o *Optimizer) Optimize(plan expr.RelationExpr) (*Result, error) {
	ctx, err := o.newContext(plan)
	if err != nil {
		return nil, err
	}

	for _, t := range o.Pipeline() {
		next, changed, err := t.Apply(ctx, plan)
		if err != nil {
			ctx.Collector.Emit(annotations.OptimizeError, map[string]interface{}{
				"transform": t.Name(),
				"error":     err,
			})
			return nil, fmt.Errorf("%s: %w", t.Name(), err)
		}
		plan = next
		o.emitStage(ctx, t.Name(), plan, changed)
	}

	rendered, err := expr.Render(plan, ctx.Env)
	if err != nil {
		return nil, err
	}
	ctx.Collector.Emit(annotations.OptimizeFinal, map[string]interface{}{
		"plan": rendered,
	})
	return &Result{Plan: plan, Rendered: rendered, Converged: !ctx.FixpointLimited}, nil
}

// Step is one pipeline stage's outcome in step-wise mode.
type Step struct {
	Name     string
	Changed  bool
	Rendered string
}

// Steps runs the same pipeline as Optimize from the same starting point,
// returning the rendering after every stage.
func (o *Optimizer) Steps(plan expr.RelationExpr) ([]Step, *Result, error) {
	ctx, err := o.newContext(plan)
	if err != nil {
		return nil, nil, err
	}

	var steps []Step
	for _, t := range o.Pipeline() {
		next, changed, err := t.Apply(ctx, plan)
		if err != nil {
			ctx.Collector.Emit(annotations.OptimizeError, map[string]interface{}{
				"transform": t.Name(),
				"error":     err,
			})
			return nil, nil, fmt.Errorf("%s: %w", t.Name(), err)
		}
		plan = next
		o.emitStage(ctx, t.Name(), plan, changed)
		rendered, err := expr.Render(plan, ctx.Env)
		if err != nil {
			return nil, nil, err
		}
		steps = append(steps, Step{Name: t.Name(), Changed: changed, Rendered: rendered})
	}

	rendered, err := expr.Render(plan, ctx.Env)
	if err != nil {
		return nil, nil, err
	}
	ctx.Collector.Emit(annotations.OptimizeFinal, map[string]interface{}{
		"plan": rendered,
	})
	return steps, &Result{Plan: plan, Rendered: rendered, Converged: !ctx.FixpointLimited}, nil
}

// Render renders a plan with annotations against this optimizer's catalog.
func (o *Optimizer) Render(plan expr.RelationExpr) (string, error) {
	return expr.Render(plan, expr.NewEnv(o.resolver, o.options.Config))
}

func (o *Optimizer) newContext(plan expr.RelationExpr) (*transform.Context, error) {
	collector := annotations.NewCollector(o.options.Handler)
	ctx := transform.NewContext(o.options.Config, o.resolver, collector)
	if err := ctx.ReserveLetNames(plan); err != nil {
		return nil, err
	}
	// Fail malformed input up front rather than mid-rewrite.
	if _, err := ctx.Env.TypeOf(plan); err != nil {
		return nil, err
	}
	ctx.Collector.Emit(annotations.OptimizeBegin, nil)
	return ctx, nil
}

func (o *Optimizer) emitStage(ctx *transform.Context, name string, plan expr.RelationExpr, changed bool) {
	if !ctx.Collector.Enabled() {
		return
	}
	if !changed {
		ctx.Collector.Emit(annotations.TransformNoChange, map[string]interface{}{
			"transform": name,
		})
		return
	}
	rendered, err := expr.Render(plan, ctx.Env)
	if err != nil {
		rendered = fmt.Sprintf("<render error: %v>", err)
	}
	ctx.Collector.Emit(annotations.TransformApplied, map[string]interface{}{
		"transform": name,
		"plan":      rendered,
	})
}
