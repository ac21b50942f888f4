// Package expr defines the relational-expression IR the optimizer rewrites:
// relation nodes, scalar expressions, type and unique-key inference, and the
// plan renderer whose output the test harness diffs.
//
// File organization:
//   - relation.go: RelationExpr variants and the rebuild primitive
//   - scalar.go: ScalarExpr variants, evaluation, nullability
//   - funcs.go: scalar and aggregate function tables
//   - env.go: inference environment (catalog resolver, let scope, limits)
//   - inference.go: per-operator type and key rules
//   - visit.go: depth-guarded traversal and bottom-up rewriting
//   - canonical.go: canonical encoding, structural equality, fingerprints
//   - render.go: indented plan rendering with annotation lines
package expr

import (
	"github.com/oxbowdb/oxbow/dataflow"
)

// RelationExpr is a node in a relational plan. Implementations form a
// closed set; rewrites produce new nodes rather than mutating in place.
type RelationExpr interface {
	// Children returns the direct relational inputs in order.
	Children() []RelationExpr

	// WithChildren rebuilds the node with replacement inputs. The number of
	// children must match the operator's arity.
	WithChildren(children []RelationExpr) (RelationExpr, error)

	relationExpr()
}

// Constant is an inline relation with literal rows.
type Constant struct {
	Rows    [][]dataflow.Datum
	Columns []dataflow.ColumnType
}

// Get references a named source from the catalog, or a let binding in scope.
type Get struct {
	Name string
}

// Let binds Value under Name for the extent of Body, so multiple Get
// references in Body share one sub-plan. The binding is the single source
// of truth: rebinding replaces it for every reference uniformly.
type Let struct {
	Name  string
	Value RelationExpr
	Body  RelationExpr
}

// Map appends one computed column per scalar expression.
type Map struct {
	Input   RelationExpr
	Scalars []ScalarExpr
}

// Filter restricts rows to those satisfying every predicate.
type Filter struct {
	Input      RelationExpr
	Predicates []ScalarExpr
}

// Project reorders, selects, and possibly duplicates columns. Outputs lists
// input column positions; output column i is input column Outputs[i].
type Project struct {
	Input   RelationExpr
	Outputs []int
}

// Join is an n-way equi-join. Output columns are the concatenation of all
// input columns in input order; Equivalences are classes of global column
// positions constrained to be equal. Implementation records the physical
// strategy chosen by the join planner, Unimplemented until then.
type Join struct {
	Inputs         []RelationExpr
	Equivalences   [][]int
	Implementation JoinImplementation
}

// JoinImplementation is the physical strategy marker on a Join.
type JoinImplementation interface {
	joinImplementation()
}

// Unimplemented means no arrangement-based strategy was selected; the
// physical layer downstream must resolve the join.
type Unimplemented struct{}

// Differential is an arrangement-based join: each input is arranged on the
// listed key columns (positions local to that input), one entry per input
// in input order.
type Differential struct {
	Keys [][]int
}

func (Unimplemented) joinImplementation() {}
func (Differential) joinImplementation()  {}

// Reduce groups by the listed input columns and applies aggregates. Output
// columns are the group key columns followed by one column per aggregate.
type Reduce struct {
	Input      RelationExpr
	GroupKey   []int
	Aggregates []Aggregate
}

// Aggregate is a single aggregation over a scalar of the input.
type Aggregate struct {
	Func AggregateFunc
	Expr ScalarExpr
}

// TopK keeps at most Limit rows per group, ordered by OrderKey, after
// skipping Offset. Limit zero means unbounded.
type TopK struct {
	Input    RelationExpr
	GroupKey []int
	OrderKey []int
	Limit    int
	Offset   int
}

// Union is the multiset sum of its inputs.
type Union struct {
	Inputs []RelationExpr
}

// Negate negates the multiplicity of every row.
type Negate struct {
	Input RelationExpr
}

// Threshold drops rows whose multiplicity is not positive.
type Threshold struct {
	Input RelationExpr
}

// FlatMap appends the columns produced by a table function applied to each
// row, one output row per produced value.
type FlatMap struct {
	Input RelationExpr
	Func  TableFunc
	Args  []ScalarExpr
}

// ArrangeBy requests that the relation be arranged (indexed) by each listed
// key before consumption, typically by a differential join. The keys are
// operator metadata, not uniqueness guarantees.
type ArrangeBy struct {
	Input RelationExpr
	Keys  [][]int
}

func (*Constant) relationExpr()  {}
func (*Get) relationExpr()       {}
func (*Let) relationExpr()       {}
func (*Map) relationExpr()       {}
func (*Filter) relationExpr()    {}
func (*Project) relationExpr()   {}
func (*Join) relationExpr()      {}
func (*Reduce) relationExpr()    {}
func (*TopK) relationExpr()      {}
func (*Union) relationExpr()     {}
func (*Negate) relationExpr()    {}
func (*Threshold) relationExpr() {}
func (*FlatMap) relationExpr()   {}
func (*ArrangeBy) relationExpr() {}

func (e *Constant) Children() []RelationExpr { return nil }
func (e *Get) Children() []RelationExpr      { return nil }
func (e *Let) Children() []RelationExpr      { return []RelationExpr{e.Value, e.Body} }
func (e *Map) Children() []RelationExpr      { return []RelationExpr{e.Input} }
func (e *Filter) Children() []RelationExpr   { return []RelationExpr{e.Input} }
func (e *Project) Children() []RelationExpr  { return []RelationExpr{e.Input} }
func (e *Join) Children() []RelationExpr   { return copyExprs(e.Inputs) }
func (e *Reduce) Children() []RelationExpr   { return []RelationExpr{e.Input} }
func (e *TopK) Children() []RelationExpr     { return []RelationExpr{e.Input} }
func (e *Union) Children() []RelationExpr  { return copyExprs(e.Inputs) }
func (e *Negate) Children() []RelationExpr   { return []RelationExpr{e.Input} }
func (e *Threshold) Children() []RelationExpr { return []RelationExpr{e.Input} }
func (e *FlatMap) Children() []RelationExpr  { return []RelationExpr{e.Input} }
func (e *ArrangeBy) Children() []RelationExpr { return []RelationExpr{e.Input} }

// copyExprs avoids aliasing the internal slice of multi-input operators.
func copyExprs(in []RelationExpr) []RelationExpr {
	out := make([]RelationExpr, len(in))
	copy(out, in)
	return out
}

func arityError(op string, want, got int) error {
	return dataflow.Malformedf("%s expects %d inputs, got %d", op, want, got)
}

func (e *Constant) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 0 {
		return nil, arityError("Constant", 0, len(inputs))
	}
	return e, nil
}

func (e *Get) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 0 {
		return nil, arityError("Get", 0, len(inputs))
	}
	return e, nil
}

func (e *Let) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 2 {
		return nil, arityError("Let", 2, len(inputs))
	}
	return &Let{Name: e.Name, Value: inputs[0], Body: inputs[1]}, nil
}

func (e *Map) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 1 {
		return nil, arityError("Map", 1, len(inputs))
	}
	return &Map{Input: inputs[0], Scalars: e.Scalars}, nil
}

func (e *Filter) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 1 {
		return nil, arityError("Filter", 1, len(inputs))
	}
	return &Filter{Input: inputs[0], Predicates: e.Predicates}, nil
}

func (e *Project) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 1 {
		return nil, arityError("Project", 1, len(inputs))
	}
	return &Project{Input: inputs[0], Outputs: e.Outputs}, nil
}

func (e *Join) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != len(e.Inputs) {
		return nil, arityError("Join", len(e.Inputs), len(inputs))
	}
	return &Join{Inputs: inputs, Equivalences: e.Equivalences, Implementation: e.Implementation}, nil
}

func (e *Reduce) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 1 {
		return nil, arityError("Reduce", 1, len(inputs))
	}
	return &Reduce{Input: inputs[0], GroupKey: e.GroupKey, Aggregates: e.Aggregates}, nil
}

func (e *TopK) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 1 {
		return nil, arityError("TopK", 1, len(inputs))
	}
	return &TopK{Input: inputs[0], GroupKey: e.GroupKey, OrderKey: e.OrderKey, Limit: e.Limit, Offset: e.Offset}, nil
}

func (e *Union) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != len(e.Inputs) {
		return nil, arityError("Union", len(e.Inputs), len(inputs))
	}
	return &Union{Inputs: inputs}, nil
}

func (e *Negate) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 1 {
		return nil, arityError("Negate", 1, len(inputs))
	}
	return &Negate{Input: inputs[0]}, nil
}

func (e *Threshold) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 1 {
		return nil, arityError("Threshold", 1, len(inputs))
	}
	return &Threshold{Input: inputs[0]}, nil
}

func (e *FlatMap) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 1 {
		return nil, arityError("FlatMap", 1, len(inputs))
	}
	return &FlatMap{Input: inputs[0], Func: e.Func, Args: e.Args}, nil
}

func (e *ArrangeBy) WithChildren(inputs []RelationExpr) (RelationExpr, error) {
	if len(inputs) != 1 {
		return nil, arityError("ArrangeBy", 1, len(inputs))
	}
	return &ArrangeBy{Input: inputs[0], Keys: e.Keys}, nil
}

// OpName returns the operator name used in rendered plans.
func OpName(e RelationExpr) string {
	switch e.(type) {
	case *Constant:
		return "Constant"
	case *Get:
		return "Get"
	case *Let:
		return "Let"
	case *Map:
		return "Map"
	case *Filter:
		return "Filter"
	case *Project:
		return "Project"
	case *Join:
		return "Join"
	case *Reduce:
		return "Reduce"
	case *TopK:
		return "TopK"
	case *Union:
		return "Union"
	case *Negate:
		return "Negate"
	case *Threshold:
		return "Threshold"
	case *FlatMap:
		return "FlatMap"
	case *ArrangeBy:
		return "ArrangeBy"
	default:
		return "Unknown"
	}
}
