package transform

import (
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

// JoinElimination removes joins of a relation against itself whose
// equality constraints pair exactly the columns of one unique key of the
// input with the corresponding columns of the other copy. Such a join
// matches every row with itself and nothing else, so it is a pure column
// duplication and becomes a Project. Anything less than exact coverage of
// a whole key (or any extra constraint) leaves the join alone: the rewrite
// must be provably equivalent on all inputs, not just the common case.
type JoinElimination struct{}

// Name implements Transform.
func (JoinElimination) Name() string { return "JoinElimination" }

// Apply implements Transform.
func (JoinElimination) Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error) {
	return ctx.Env.RewriteScoped(plan, func(env *expr.Env, e expr.RelationExpr) (expr.RelationExpr, bool, error) {
		join, ok := e.(*expr.Join)
		if !ok || len(join.Inputs) != 2 {
			return e, false, nil
		}
		if !expr.Equal(join.Inputs[0], join.Inputs[1]) {
			return e, false, nil
		}

		typ, err := env.TypeOf(join.Inputs[0])
		if err != nil {
			return nil, false, err
		}
		arity := typ.Arity()

		// Every constraint must pair column c of the left copy with the
		// same column of the right copy.
		paired := make(map[int]bool, len(join.Equivalences))
		for _, class := range join.Equivalences {
			if len(class) != 2 {
				return e, false, nil
			}
			a, b := class[0], class[1]
			if a > b {
				a, b = b, a
			}
			if b != a+arity || a >= arity {
				return e, false, nil
			}
			paired[a] = true
		}

		// The paired columns must be exactly one of the input's keys.
		if !matchesKeyExactly(paired, typ.Keys()) {
			return e, false, nil
		}

		outputs := make([]int, 0, 2*arity)
		for copies := 0; copies < 2; copies++ {
			for c := 0; c < arity; c++ {
				outputs = append(outputs, c)
			}
		}
		return &expr.Project{Input: join.Inputs[0], Outputs: outputs}, true, nil
	})
}

func matchesKeyExactly(paired map[int]bool, keys [][]int) bool {
	for _, key := range keys {
		if len(key) != len(paired) {
			continue
		}
		all := true
		for _, c := range key {
			if !paired[c] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
