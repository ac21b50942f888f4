package expr

import (
	"github.com/oxbowdb/oxbow/dataflow"
)

// TypeOf infers the relation type of a plan: its column types and its
// minimal unique-key sets. It is pure over well-formed plans and fails only
// on malformed ones (out-of-range columns, arity mismatches, unknown
// names), which indicate a front-end or rewrite bug. Every structural
// rewrite must leave the plan in a state where TypeOf succeeds.
func (env *Env) TypeOf(e RelationExpr) (dataflow.RelationType, error) {
	return env.typeOf(e, 0)
}

func (env *Env) typeOf(e RelationExpr, depth int) (dataflow.RelationType, error) {
	depth, err := dataflow.Descend(depth, env.MaxDepth)
	if err != nil {
		return dataflow.RelationType{}, err
	}

	switch e := e.(type) {
	case *Constant:
		for _, row := range e.Rows {
			if len(row) != len(e.Columns) {
				return dataflow.RelationType{}, dataflow.Malformedf(
					"constant row has %d datums for %d columns", len(row), len(e.Columns))
			}
		}
		return dataflow.NewRelationType(e.Columns), nil

	case *Get:
		return env.lookup(e.Name)

	case *Let:
		valueTyp, err := env.typeOf(e.Value, depth)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		env.bind(e.Name, valueTyp)
		defer env.unbind(e.Name)
		return env.typeOf(e.Body, depth)

	case *Map:
		in, err := env.typeOf(e.Input, depth)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		columns := make([]dataflow.ColumnType, 0, in.Arity()+len(e.Scalars))
		columns = append(columns, in.Columns...)
		for _, s := range e.Scalars {
			// Each appended scalar may reference columns appended before it.
			t, err := ScalarType(s, columns)
			if err != nil {
				return dataflow.RelationType{}, err
			}
			columns = append(columns, t)
		}
		// New columns cannot shrink the domain the existing keys already
		// disambiguate, so keys carry over unchanged.
		return dataflow.NewRelationType(columns).WithKeys(in.Keys()), nil

	case *Filter:
		in, err := env.typeOf(e.Input, depth)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		for _, p := range e.Predicates {
			ct, err := ScalarType(p, in.Columns)
			if err != nil {
				return dataflow.RelationType{}, err
			}
			if ct.Type != dataflow.TypeBool {
				return dataflow.RelationType{}, dataflow.Malformedf(
					"filter predicate %s has type %s, want Bool", p, ct.Type)
			}
		}
		return in, nil

	case *Project:
		in, err := env.typeOf(e.Input, depth)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		columns := make([]dataflow.ColumnType, len(e.Outputs))
		for i, c := range e.Outputs {
			if c < 0 || c >= in.Arity() {
				return dataflow.RelationType{}, dataflow.Malformedf(
					"projection references column %d of %d", c, in.Arity())
			}
			columns[i] = in.Columns[c]
		}
		out := dataflow.NewRelationType(columns)
		// A key survives projection only if every key column is retained;
		// it maps to the first output position carrying each column.
		firstOutput := make(map[int]int)
		for i := len(e.Outputs) - 1; i >= 0; i-- {
			firstOutput[e.Outputs[i]] = i
		}
		for _, key := range in.Keys() {
			mapped := make([]int, 0, len(key))
			ok := true
			for _, c := range key {
				pos, found := firstOutput[c]
				if !found {
					ok = false
					break
				}
				mapped = append(mapped, pos)
			}
			if ok {
				out = out.WithKey(mapped)
			}
		}
		return out, nil

	case *Join:
		return env.joinType(e, depth)

	case *Reduce:
		in, err := env.typeOf(e.Input, depth)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		columns := make([]dataflow.ColumnType, 0, len(e.GroupKey)+len(e.Aggregates))
		for _, c := range e.GroupKey {
			if c < 0 || c >= in.Arity() {
				return dataflow.RelationType{}, dataflow.Malformedf(
					"group key references column %d of %d", c, in.Arity())
			}
			columns = append(columns, in.Columns[c])
		}
		for _, agg := range e.Aggregates {
			argT, err := ScalarType(agg.Expr, in.Columns)
			if err != nil {
				return dataflow.RelationType{}, err
			}
			outT, err := agg.Func.OutputType(argT)
			if err != nil {
				return dataflow.RelationType{}, err
			}
			columns = append(columns, outT)
		}
		// The group key columns always key the output, whatever the
		// aggregates compute.
		groupCols := make([]int, len(e.GroupKey))
		for i := range e.GroupKey {
			groupCols[i] = i
		}
		return dataflow.NewRelationType(columns).WithKey(groupCols), nil

	case *TopK:
		in, err := env.typeOf(e.Input, depth)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		for _, c := range append(append([]int{}, e.GroupKey...), e.OrderKey...) {
			if c < 0 || c >= in.Arity() {
				return dataflow.RelationType{}, dataflow.Malformedf(
					"topk references column %d of %d", c, in.Arity())
			}
		}
		out := in
		if e.Limit == 1 {
			// At most one row per group.
			out = out.WithKey(e.GroupKey)
		}
		return out, nil

	case *Union:
		if len(e.Inputs) == 0 {
			return dataflow.RelationType{}, dataflow.Malformedf("union with no inputs")
		}
		out, err := env.typeOf(e.Inputs[0], depth)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		out = out.WithoutKeys()
		for _, input := range e.Inputs[1:] {
			t, err := env.typeOf(input, depth)
			if err != nil {
				return dataflow.RelationType{}, err
			}
			if t.Arity() != out.Arity() {
				return dataflow.RelationType{}, dataflow.Malformedf(
					"union inputs disagree on arity: %d vs %d", out.Arity(), t.Arity())
			}
			columns := make([]dataflow.ColumnType, out.Arity())
			for i := range columns {
				u, err := out.Columns[i].Union(t.Columns[i])
				if err != nil {
					return dataflow.RelationType{}, dataflow.Malformedf(
						"union column %d: %v", i, err)
				}
				columns[i] = u
			}
			out = dataflow.NewRelationType(columns)
		}
		// Uniqueness does not survive a multiset sum.
		return out, nil

	case *Negate:
		return env.typeOf(e.Input, depth)

	case *Threshold:
		return env.typeOf(e.Input, depth)

	case *FlatMap:
		in, err := env.typeOf(e.Input, depth)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		for _, arg := range e.Args {
			if _, err := ScalarType(arg, in.Columns); err != nil {
				return dataflow.RelationType{}, err
			}
		}
		columns := append(append([]dataflow.ColumnType{}, in.Columns...), e.Func.OutputColumns()...)
		// A row may fan out to many, so input keys no longer hold.
		return dataflow.NewRelationType(columns), nil

	case *ArrangeBy:
		in, err := env.typeOf(e.Input, depth)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		for _, key := range e.Keys {
			for _, c := range key {
				if c < 0 || c >= in.Arity() {
					return dataflow.RelationType{}, dataflow.Malformedf(
						"arrangement key references column %d of %d", c, in.Arity())
				}
			}
		}
		// Arrangement keys are physical metadata; they say nothing about
		// uniqueness, so the type passes through untouched.
		return in, nil

	default:
		return dataflow.RelationType{}, dataflow.Malformedf("unknown relation expression %T", e)
	}
}

// joinType concatenates the input columns and works out which keys survive.
//
// Keys: input i's keys become output keys when every other input is
// functionally determined by the equality constraints, starting from input
// i's columns and closing over "input j has a key whose columns are all
// equated to already-determined columns". When that closure covers every
// input, each row of input i corresponds to at most one join row, so input
// i's keys (shifted to global positions) key the output. The leftmost such
// input donates its keys.
func (env *Env) joinType(e *Join, depth int) (dataflow.RelationType, error) {
	if len(e.Inputs) == 0 {
		return dataflow.RelationType{}, dataflow.Malformedf("join with no inputs")
	}

	inputTypes := make([]dataflow.RelationType, len(e.Inputs))
	offsets := make([]int, len(e.Inputs))
	var columns []dataflow.ColumnType
	for i, input := range e.Inputs {
		t, err := env.typeOf(input, depth)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		inputTypes[i] = t
		offsets[i] = len(columns)
		columns = append(columns, t.Columns...)
	}

	// Validate the equivalence classes and build the per-column class map.
	classOf := make(map[int]int)
	for ci, class := range e.Equivalences {
		if len(class) < 2 {
			return dataflow.RelationType{}, dataflow.Malformedf(
				"join equivalence class %d has fewer than two columns", ci)
		}
		for _, c := range class {
			if c < 0 || c >= len(columns) {
				return dataflow.RelationType{}, dataflow.Malformedf(
					"join constraint references column %d of %d", c, len(columns))
			}
			classOf[c] = ci
		}
	}

	inputOf := func(col int) int {
		for i := len(offsets) - 1; i >= 0; i-- {
			if col >= offsets[i] {
				return i
			}
		}
		return 0
	}

	out := dataflow.NewRelationType(columns)
	for i := range e.Inputs {
		if !env.determinesAll(i, inputTypes, offsets, e.Equivalences, classOf, inputOf) {
			continue
		}
		for _, key := range inputTypes[i].Keys() {
			shifted := make([]int, len(key))
			for k, c := range key {
				shifted[k] = c + offsets[i]
			}
			out = out.WithKey(shifted)
		}
		break
	}
	return out, nil
}

// determinesAll reports whether fixing a row of input start pins down at
// most one row of every other input through the equality constraints.
func (env *Env) determinesAll(
	start int,
	inputTypes []dataflow.RelationType,
	offsets []int,
	equivalences [][]int,
	classOf map[int]int,
	inputOf func(int) int,
) bool {
	determined := make([]bool, len(inputTypes))
	determined[start] = true
	// knownClasses are equivalence classes touching a determined input.
	knownClasses := make(map[int]bool)
	refresh := func() {
		for ci, class := range equivalences {
			if knownClasses[ci] {
				continue
			}
			for _, c := range class {
				if determined[inputOf(c)] {
					knownClasses[ci] = true
					break
				}
			}
		}
	}
	refresh()

	for {
		progressed := false
		for j := range inputTypes {
			if determined[j] {
				continue
			}
			for _, key := range inputTypes[j].Keys() {
				covered := true
				for _, c := range key {
					ci, ok := classOf[c+offsets[j]]
					if !ok || !knownClasses[ci] {
						covered = false
						break
					}
				}
				if covered {
					determined[j] = true
					progressed = true
					refresh()
					break
				}
			}
		}
		if !progressed {
			break
		}
	}
	for _, d := range determined {
		if !d {
			return false
		}
	}
	return true
}
