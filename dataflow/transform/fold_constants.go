package transform

import (
	"errors"

	"github.com/oxbowdb/oxbow/dataflow"
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

// FoldConstants evaluates scalar sub-expressions whose arguments are all
// literals. Work is charged against the run-wide fold budget; when the
// budget runs out, folding simply stops and the plan is left as it stands.
// Filters reduced to a literal true predicate drop it; a literal false or
// null predicate empties the relation to a Constant with no rows.
type FoldConstants struct{}

// Name implements Transform.
func (FoldConstants) Name() string { return "FoldConstants" }

// Apply implements Transform.
func (FoldConstants) Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error) {
	budget := ctx.FoldBudget()
	return ctx.Env.RewriteScoped(plan, func(env *expr.Env, e expr.RelationExpr) (expr.RelationExpr, bool, error) {
		switch e := e.(type) {
		case *expr.Map:
			scalars, changed, err := foldScalars(e.Scalars, budget)
			if err != nil {
				return nil, false, err
			}
			if !changed {
				return e, false, nil
			}
			return &expr.Map{Input: e.Input, Scalars: scalars}, true, nil

		case *expr.Filter:
			predicates, changed, err := foldScalars(e.Predicates, budget)
			if err != nil {
				return nil, false, err
			}

			kept := predicates[:0]
			for _, p := range predicates {
				lit, ok := p.(*expr.Literal)
				if !ok {
					kept = append(kept, p)
					continue
				}
				switch v := lit.Datum.(type) {
				case bool:
					if v {
						// Always-true predicates restrict nothing.
						changed = true
						continue
					}
				case nil:
				default:
					return nil, false, dataflow.Malformedf(
						"filter predicate folded to non-bool %v", v)
				}
				// false or null keeps no rows at all.
				typ, err := env.TypeOf(e.Input)
				if err != nil {
					return nil, false, err
				}
				return &expr.Constant{Columns: typ.Columns}, true, nil
			}
			if !changed {
				return e, false, nil
			}
			if len(kept) == 0 {
				return e.Input, true, nil
			}
			return &expr.Filter{Input: e.Input, Predicates: kept}, true, nil

		default:
			return e, false, nil
		}
	})
}

// foldScalars folds each scalar bottom-up. A call is evaluated only when
// every argument is already a literal, so unfoldable branches stay intact.
func foldScalars(scalars []expr.ScalarExpr, budget *int) ([]expr.ScalarExpr, bool, error) {
	out := make([]expr.ScalarExpr, len(scalars))
	changed := false
	for i, s := range scalars {
		folded, c, err := foldScalar(s, budget)
		if err != nil {
			return nil, false, err
		}
		out[i] = folded
		changed = changed || c
	}
	return out, changed, nil
}

func foldScalar(s expr.ScalarExpr, budget *int) (expr.ScalarExpr, bool, error) {
	var failure error
	out, changed := expr.RewriteScalar(s, func(sub expr.ScalarExpr) (expr.ScalarExpr, bool) {
		if failure != nil {
			return sub, false
		}
		// A literal condition picks the branch outright; the branches
		// themselves need not be literal.
		if iff, ok := sub.(*expr.If); ok {
			if lit, ok := iff.Cond.(*expr.Literal); ok {
				if b, ok := lit.Datum.(bool); ok && b {
					return iff.Then, true
				}
				return iff.Else, true
			}
			return sub, false
		}
		if !allLiteralArgs(sub) {
			return sub, false
		}
		typ, err := scalarLiteralType(sub)
		if err != nil {
			failure = err
			return sub, false
		}
		v, err := expr.Eval(sub, nil, budget)
		if errors.Is(err, expr.ErrBudget) {
			// Out of budget: keep whatever is already folded.
			return sub, false
		}
		if err != nil {
			failure = err
			return sub, false
		}
		return &expr.Literal{Datum: v, Typ: typ}, true
	})
	if failure != nil {
		return nil, false, failure
	}
	return out, changed, nil
}

// allLiteralArgs reports whether the scalar is a call whose direct
// arguments are all literals. Bare literals and columns are not folded.
func allLiteralArgs(s expr.ScalarExpr) bool {
	switch e := s.(type) {
	case *expr.CallUnary:
		return expr.IsLiteral(e.Expr)
	case *expr.CallBinary:
		return expr.IsLiteral(e.Left) && expr.IsLiteral(e.Right)
	case *expr.CallVariadic:
		for _, arg := range e.Exprs {
			if !expr.IsLiteral(arg) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// scalarLiteralType types an all-literal call; no columns are in play, so
// an empty column list suffices.
func scalarLiteralType(s expr.ScalarExpr) (dataflow.ColumnType, error) {
	return expr.ScalarType(s, nil)
}
