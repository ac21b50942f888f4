package transform

import (
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

// JoinImplementation is the late-stage pass that picks a physical strategy
// for every join. A join whose equality constraints touch every input
// becomes a differential join: each input must be arranged on the columns
// it contributes to the constraints, so the pass inserts ArrangeBy nodes
// where no suitable arrangement exists, sharing one arrangement through a
// Let binding when both sides of a self-join need the same input. Joins
// with no viable arrangement strategy (no equality constraints, or an
// input the constraints never touch) keep the Unimplemented marker for the
// physical layer to resolve.
//
// Per join the analysis runs: unanalyzed, candidate arrangement keys
// identified from the constraint classes in declaration order,
// arrangements inserted or reused, and finally the Differential (or
// Unimplemented) marker recorded.
type JoinImplementation struct{}

// Name implements Transform.
func (JoinImplementation) Name() string { return "JoinImplementation" }

// Apply implements Transform.
func (JoinImplementation) Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error) {
	return ctx.Env.RewriteScoped(plan, func(env *expr.Env, e expr.RelationExpr) (expr.RelationExpr, bool, error) {
		join, ok := e.(*expr.Join)
		if !ok {
			return e, false, nil
		}
		if _, done := join.Implementation.(expr.Differential); done {
			return e, false, nil
		}
		if len(join.Equivalences) == 0 {
			// Nothing to arrange on; stays unimplemented.
			return e, false, nil
		}

		offsets := make([]int, len(join.Inputs))
		total := 0
		for i, input := range join.Inputs {
			typ, err := env.TypeOf(input)
			if err != nil {
				return nil, false, err
			}
			offsets[i] = total
			total += typ.Arity()
		}
		inputOf := func(col int) int {
			for i := len(offsets) - 1; i >= 0; i-- {
				if col >= offsets[i] {
					return i
				}
			}
			return 0
		}

		// Candidate arrangement key per input: the local columns it
		// contributes to the constraint classes, in declaration order.
		keys := make([][]int, len(join.Inputs))
		for _, class := range join.Equivalences {
			for _, col := range class {
				i := inputOf(col)
				local := col - offsets[i]
				if !containsInt(keys[i], local) {
					keys[i] = append(keys[i], local)
				}
			}
		}
		for _, key := range keys {
			if len(key) == 0 {
				// An input the constraints never touch cannot be matched by
				// arrangement; no differential strategy applies.
				return e, false, nil
			}
		}

		// Self-join: both sides arrange the same relation, so build the
		// arrangement once and share it through a binding.
		if len(join.Inputs) == 2 && expr.Equal(join.Inputs[0], join.Inputs[1]) {
			name := ctx.NextLetName()
			arranged := &expr.ArrangeBy{
				Input: join.Inputs[0],
				Keys:  dedupeKeys(keys),
			}
			shared := &expr.Join{
				Inputs:         []expr.RelationExpr{&expr.Get{Name: name}, &expr.Get{Name: name}},
				Equivalences:   join.Equivalences,
				Implementation: expr.Differential{Keys: keys},
			}
			return &expr.Let{Name: name, Value: arranged, Body: shared}, true, nil
		}

		inputs := make([]expr.RelationExpr, len(join.Inputs))
		for i, input := range join.Inputs {
			inputs[i] = ensureArranged(input, keys[i])
		}
		return &expr.Join{
			Inputs:         inputs,
			Equivalences:   join.Equivalences,
			Implementation: expr.Differential{Keys: keys},
		}, true, nil
	})
}

// ensureArranged reuses an existing arrangement when the input already
// carries the needed key, extends an existing ArrangeBy otherwise, and
// wraps anything else.
func ensureArranged(input expr.RelationExpr, key []int) expr.RelationExpr {
	if arranged, ok := input.(*expr.ArrangeBy); ok {
		for _, existing := range arranged.Keys {
			if equalInts(existing, key) {
				return arranged
			}
		}
		extended := make([][]int, 0, len(arranged.Keys)+1)
		extended = append(extended, arranged.Keys...)
		extended = append(extended, key)
		return &expr.ArrangeBy{Input: arranged.Input, Keys: extended}
	}
	return &expr.ArrangeBy{Input: input, Keys: [][]int{key}}
}

func dedupeKeys(keys [][]int) [][]int {
	out := make([][]int, 0, len(keys))
	for _, key := range keys {
		dup := false
		for _, existing := range out {
			if equalInts(existing, key) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, key)
		}
	}
	return out
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
