package expr

import (
	"fmt"
	"strings"

	"github.com/oxbowdb/oxbow/dataflow"
)

// ScalarExpr is a scalar expression over the columns of one relation.
// Column references use positions into the relation's output columns.
type ScalarExpr interface {
	// String renders the expression as it appears in plan output.
	String() string

	scalarExpr()
}

// Column references the column at position Ord, rendered "#2".
type Column struct {
	Ord int
}

// Literal is a constant datum with its column type.
type Literal struct {
	Datum dataflow.Datum
	Typ   dataflow.ColumnType
}

// CallUnary applies a unary function.
type CallUnary struct {
	Func UnaryFunc
	Expr ScalarExpr
}

// CallBinary applies a binary function.
type CallBinary struct {
	Func  BinaryFunc
	Left  ScalarExpr
	Right ScalarExpr
}

// CallVariadic applies a variadic function.
type CallVariadic struct {
	Func  VariadicFunc
	Exprs []ScalarExpr
}

// If is conditional evaluation: Then when Cond is true, Else otherwise
// (including when Cond is NULL).
type If struct {
	Cond ScalarExpr
	Then ScalarExpr
	Else ScalarExpr
}

func (*Column) scalarExpr()       {}
func (*Literal) scalarExpr()      {}
func (*CallUnary) scalarExpr()    {}
func (*CallBinary) scalarExpr()   {}
func (*CallVariadic) scalarExpr() {}
func (*If) scalarExpr()           {}

func (e *Column) String() string { return fmt.Sprintf("#%d", e.Ord) }

func (e *Literal) String() string { return dataflow.FormatDatum(e.Datum) }

func (e *CallUnary) String() string {
	return fmt.Sprintf("%s(%s)", e.Func, e.Expr)
}

func (e *CallBinary) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Func, e.Right)
}

func (e *CallVariadic) String() string {
	args := make([]string, len(e.Exprs))
	for i, a := range e.Exprs {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Func, strings.Join(args, ", "))
}

func (e *If) String() string {
	return fmt.Sprintf("if %s then %s else %s", e.Cond, e.Then, e.Else)
}

// Lit builds a literal from a datum, inferring its column type. A nil datum
// yields a nullable literal of the given fallback type.
func Lit(d dataflow.Datum) *Literal {
	if d == nil {
		return &Literal{Datum: nil, Typ: dataflow.NullableCol(dataflow.TypeBool)}
	}
	t, _ := dataflow.DatumType(d)
	return &Literal{Datum: d, Typ: dataflow.Col(t)}
}

// ScalarType computes the output column type of a scalar over the given
// input columns. Fails on out-of-range column references, which indicate a
// malformed plan.
func ScalarType(s ScalarExpr, columns []dataflow.ColumnType) (dataflow.ColumnType, error) {
	switch e := s.(type) {
	case *Column:
		if e.Ord < 0 || e.Ord >= len(columns) {
			return dataflow.ColumnType{}, dataflow.Malformedf(
				"column reference #%d out of range for %d columns", e.Ord, len(columns))
		}
		return columns[e.Ord], nil
	case *Literal:
		return e.Typ, nil
	case *CallUnary:
		in, err := ScalarType(e.Expr, columns)
		if err != nil {
			return dataflow.ColumnType{}, err
		}
		return e.Func.OutputType(in)
	case *CallBinary:
		l, err := ScalarType(e.Left, columns)
		if err != nil {
			return dataflow.ColumnType{}, err
		}
		r, err := ScalarType(e.Right, columns)
		if err != nil {
			return dataflow.ColumnType{}, err
		}
		return e.Func.OutputType(l, r)
	case *CallVariadic:
		ins := make([]dataflow.ColumnType, len(e.Exprs))
		for i, arg := range e.Exprs {
			t, err := ScalarType(arg, columns)
			if err != nil {
				return dataflow.ColumnType{}, err
			}
			ins[i] = t
		}
		return e.Func.OutputType(ins)
	case *If:
		if _, err := ScalarType(e.Cond, columns); err != nil {
			return dataflow.ColumnType{}, err
		}
		thenT, err := ScalarType(e.Then, columns)
		if err != nil {
			return dataflow.ColumnType{}, err
		}
		elseT, err := ScalarType(e.Else, columns)
		if err != nil {
			return dataflow.ColumnType{}, err
		}
		return thenT.Union(elseT)
	default:
		return dataflow.ColumnType{}, dataflow.Malformedf("unknown scalar expression %T", s)
	}
}

// ErrBudget is returned by Eval when the evaluation step budget runs out.
// Constant folding treats it as "stop folding", not as a plan error.
var ErrBudget = fmt.Errorf("scalar evaluation budget exhausted")

// Eval evaluates a scalar over a row of datums. Every node charged against
// budget; when it reaches zero, evaluation stops with ErrBudget.
func Eval(s ScalarExpr, row []dataflow.Datum, budget *int) (dataflow.Datum, error) {
	if *budget <= 0 {
		return nil, ErrBudget
	}
	*budget--

	switch e := s.(type) {
	case *Column:
		if e.Ord < 0 || e.Ord >= len(row) {
			return nil, dataflow.Malformedf(
				"column reference #%d out of range for row of %d", e.Ord, len(row))
		}
		return row[e.Ord], nil
	case *Literal:
		return e.Datum, nil
	case *CallUnary:
		v, err := Eval(e.Expr, row, budget)
		if err != nil {
			return nil, err
		}
		return e.Func.Eval(v)
	case *CallBinary:
		l, err := Eval(e.Left, row, budget)
		if err != nil {
			return nil, err
		}
		r, err := Eval(e.Right, row, budget)
		if err != nil {
			return nil, err
		}
		return e.Func.Eval(l, r)
	case *CallVariadic:
		args := make([]dataflow.Datum, len(e.Exprs))
		for i, arg := range e.Exprs {
			v, err := Eval(arg, row, budget)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return e.Func.Eval(args)
	case *If:
		cond, err := Eval(e.Cond, row, budget)
		if err != nil {
			return nil, err
		}
		if b, ok := cond.(bool); ok && b {
			return Eval(e.Then, row, budget)
		}
		return Eval(e.Else, row, budget)
	default:
		return nil, dataflow.Malformedf("unknown scalar expression %T", s)
	}
}

// IsLiteral reports whether the scalar is a bare literal.
func IsLiteral(s ScalarExpr) bool {
	_, ok := s.(*Literal)
	return ok
}

// VisitScalar applies f to the scalar and every sub-expression, top-down.
func VisitScalar(s ScalarExpr, f func(ScalarExpr)) {
	f(s)
	switch e := s.(type) {
	case *CallUnary:
		VisitScalar(e.Expr, f)
	case *CallBinary:
		VisitScalar(e.Left, f)
		VisitScalar(e.Right, f)
	case *CallVariadic:
		for _, arg := range e.Exprs {
			VisitScalar(arg, f)
		}
	case *If:
		VisitScalar(e.Cond, f)
		VisitScalar(e.Then, f)
		VisitScalar(e.Else, f)
	}
}

// RewriteScalar rebuilds the scalar bottom-up, applying f to every node.
func RewriteScalar(s ScalarExpr, f func(ScalarExpr) (ScalarExpr, bool)) (ScalarExpr, bool) {
	changed := false
	switch e := s.(type) {
	case *CallUnary:
		if sub, c := RewriteScalar(e.Expr, f); c {
			s, changed = &CallUnary{Func: e.Func, Expr: sub}, true
		}
	case *CallBinary:
		l, cl := RewriteScalar(e.Left, f)
		r, cr := RewriteScalar(e.Right, f)
		if cl || cr {
			s, changed = &CallBinary{Func: e.Func, Left: l, Right: r}, true
		}
	case *CallVariadic:
		subs := make([]ScalarExpr, len(e.Exprs))
		any := false
		for i, arg := range e.Exprs {
			sub, c := RewriteScalar(arg, f)
			subs[i] = sub
			any = any || c
		}
		if any {
			s, changed = &CallVariadic{Func: e.Func, Exprs: subs}, true
		}
	case *If:
		cond, cc := RewriteScalar(e.Cond, f)
		then, ct := RewriteScalar(e.Then, f)
		els, ce := RewriteScalar(e.Else, f)
		if cc || ct || ce {
			s, changed = &If{Cond: cond, Then: then, Else: els}, true
		}
	}
	out, c := f(s)
	return out, changed || c
}

// PermuteColumns rewrites every column reference through the mapping
// newOrd = perm[oldOrd]. References outside the mapping are left alone and
// reported so callers can reject the rewrite.
func PermuteColumns(s ScalarExpr, perm map[int]int) (ScalarExpr, bool) {
	complete := true
	out, _ := RewriteScalar(s, func(sub ScalarExpr) (ScalarExpr, bool) {
		if col, ok := sub.(*Column); ok {
			if mapped, ok := perm[col.Ord]; ok {
				if mapped != col.Ord {
					return &Column{Ord: mapped}, true
				}
			} else {
				complete = false
			}
		}
		return sub, false
	})
	return out, complete
}

// ColumnsUsed returns the set of column positions the scalar references.
func ColumnsUsed(s ScalarExpr) map[int]bool {
	used := make(map[int]bool)
	VisitScalar(s, func(sub ScalarExpr) {
		if col, ok := sub.(*Column); ok {
			used[col.Ord] = true
		}
	})
	return used
}
