package transform

import (
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

// FuseProjections collapses chains of projections into one and removes
// identity projections entirely.
type FuseProjections struct{}

// Name implements Transform.
func (FuseProjections) Name() string { return "FuseProjections" }

// Apply implements Transform.
func (FuseProjections) Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error) {
	return ctx.Env.RewriteScoped(plan, func(env *expr.Env, e expr.RelationExpr) (expr.RelationExpr, bool, error) {
		project, ok := e.(*expr.Project)
		if !ok {
			return e, false, nil
		}

		// Project(Project(x, inner), outer) => Project(x, outer over inner).
		if inner, ok := project.Input.(*expr.Project); ok {
			fused := make([]int, len(project.Outputs))
			for i, c := range project.Outputs {
				if c < 0 || c >= len(inner.Outputs) {
					return e, false, nil
				}
				fused[i] = inner.Outputs[c]
			}
			return &expr.Project{Input: inner.Input, Outputs: fused}, true, nil
		}

		// Identity projection disappears.
		typ, err := env.TypeOf(project.Input)
		if err != nil {
			return nil, false, err
		}
		if len(project.Outputs) == typ.Arity() {
			identity := true
			for i, c := range project.Outputs {
				if c != i {
					identity = false
					break
				}
			}
			if identity {
				return project.Input, true, nil
			}
		}
		return e, false, nil
	})
}

// ProjectionExtraction turns Maps that only copy existing columns into
// projections, exposing them to fusion and lifting.
type ProjectionExtraction struct{}

// Name implements Transform.
func (ProjectionExtraction) Name() string { return "ProjectionExtraction" }

// Apply implements Transform.
func (ProjectionExtraction) Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error) {
	return ctx.Env.RewriteScoped(plan, func(env *expr.Env, e expr.RelationExpr) (expr.RelationExpr, bool, error) {
		m, ok := e.(*expr.Map)
		if !ok || len(m.Scalars) == 0 {
			return e, false, nil
		}
		typ, err := env.TypeOf(m.Input)
		if err != nil {
			return nil, false, err
		}
		arity := typ.Arity()

		outputs := make([]int, 0, arity+len(m.Scalars))
		for c := 0; c < arity; c++ {
			outputs = append(outputs, c)
		}
		for _, s := range m.Scalars {
			col, ok := s.(*expr.Column)
			if !ok || col.Ord >= arity {
				// Copies of columns appended by this same Map would need
				// chasing; leave those Maps alone.
				return e, false, nil
			}
			outputs = append(outputs, col.Ord)
		}
		return &expr.Project{Input: m.Input, Outputs: outputs}, true, nil
	})
}

// ProjectionLifting hoists projections above Filters and Maps so they can
// meet and fuse with projections further up the tree.
type ProjectionLifting struct{}

// Name implements Transform.
func (ProjectionLifting) Name() string { return "ProjectionLifting" }

// Apply implements Transform.
func (ProjectionLifting) Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error) {
	return ctx.Env.RewriteScoped(plan, func(env *expr.Env, e expr.RelationExpr) (expr.RelationExpr, bool, error) {
		switch e := e.(type) {
		case *expr.Filter:
			project, ok := e.Input.(*expr.Project)
			if !ok {
				return e, false, nil
			}
			// Filter(Project(x, o), p) => Project(Filter(x, p o o), o).
			perm := outputsAsPerm(project.Outputs)
			predicates := make([]expr.ScalarExpr, len(e.Predicates))
			for i, p := range e.Predicates {
				remapped, complete := expr.PermuteColumns(p, perm)
				if !complete {
					return e, false, nil
				}
				predicates[i] = remapped
			}
			return &expr.Project{
				Input:   &expr.Filter{Input: project.Input, Predicates: predicates},
				Outputs: project.Outputs,
			}, true, nil

		case *expr.Map:
			project, ok := e.Input.(*expr.Project)
			if !ok {
				return e, false, nil
			}
			typ, err := env.TypeOf(project.Input)
			if err != nil {
				return nil, false, err
			}
			arity := typ.Arity()
			// Map(Project(x, o), s) => Project(Map(x, s o o), o ++ appended).
			// The appended columns land at positions arity.. of the inner
			// Map, and the outer projection forwards them in order.
			perm := outputsAsPerm(project.Outputs)
			for i := range e.Scalars {
				// Scalars may reference earlier appended columns, which sit
				// at output positions len(o)+i and move to arity+i.
				perm[len(project.Outputs)+i] = arity + i
			}
			scalars := make([]expr.ScalarExpr, len(e.Scalars))
			for i, s := range e.Scalars {
				remapped, complete := expr.PermuteColumns(s, perm)
				if !complete {
					return e, false, nil
				}
				scalars[i] = remapped
			}
			outputs := make([]int, 0, len(project.Outputs)+len(e.Scalars))
			outputs = append(outputs, project.Outputs...)
			for i := range e.Scalars {
				outputs = append(outputs, arity+i)
			}
			return &expr.Project{
				Input:   &expr.Map{Input: project.Input, Scalars: scalars},
				Outputs: outputs,
			}, true, nil

		default:
			return e, false, nil
		}
	})
}

// outputsAsPerm maps a projection's output positions back to the input
// positions they read from.
func outputsAsPerm(outputs []int) map[int]int {
	perm := make(map[int]int, len(outputs))
	for i, c := range outputs {
		perm[i] = c
	}
	return perm
}
