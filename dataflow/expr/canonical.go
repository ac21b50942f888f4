package expr

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Canonical returns an injective textual encoding of the plan's structure.
// Two plans encode identically exactly when they are structurally identical;
// semantic equivalence is deliberately not considered. The encoding feeds
// structural equality, fixpoint convergence checks, and CSE grouping.
func Canonical(e RelationExpr) string {
	var b strings.Builder
	encodeRelation(&b, e)
	return b.String()
}

// Fingerprint hashes the canonical encoding.
func Fingerprint(e RelationExpr) uint64 {
	return xxhash.Sum64String(Canonical(e))
}

// Equal reports structural identity of two plans.
func Equal(a, b RelationExpr) bool {
	return Canonical(a) == Canonical(b)
}

func encodeRelation(b *strings.Builder, e RelationExpr) {
	switch e := e.(type) {
	case *Constant:
		fmt.Fprintf(b, "constant[%d,%d](", len(e.Columns), len(e.Rows))
		for _, c := range e.Columns {
			fmt.Fprintf(b, "%s;", c)
		}
		for _, row := range e.Rows {
			b.WriteByte('[')
			for _, d := range row {
				fmt.Fprintf(b, "%T:%v;", d, d)
			}
			b.WriteByte(']')
		}
		b.WriteByte(')')
	case *Get:
		fmt.Fprintf(b, "get(%q)", e.Name)
	case *Let:
		fmt.Fprintf(b, "let(%q,", e.Name)
		encodeRelation(b, e.Value)
		b.WriteByte(',')
		encodeRelation(b, e.Body)
		b.WriteByte(')')
	case *Map:
		b.WriteString("map(")
		encodeRelation(b, e.Input)
		for _, s := range e.Scalars {
			b.WriteByte(',')
			encodeScalar(b, s)
		}
		b.WriteByte(')')
	case *Filter:
		b.WriteString("filter(")
		encodeRelation(b, e.Input)
		for _, p := range e.Predicates {
			b.WriteByte(',')
			encodeScalar(b, p)
		}
		b.WriteByte(')')
	case *Project:
		fmt.Fprintf(b, "project(%v,", e.Outputs)
		encodeRelation(b, e.Input)
		b.WriteByte(')')
	case *Join:
		fmt.Fprintf(b, "join[%d](", len(e.Inputs))
		for _, input := range e.Inputs {
			encodeRelation(b, input)
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "on=%v,impl=", e.Equivalences)
		switch impl := e.Implementation.(type) {
		case Differential:
			fmt.Fprintf(b, "differential%v", impl.Keys)
		default:
			b.WriteString("unimplemented")
		}
		b.WriteByte(')')
	case *Reduce:
		fmt.Fprintf(b, "reduce(%v,", e.GroupKey)
		encodeRelation(b, e.Input)
		for _, agg := range e.Aggregates {
			fmt.Fprintf(b, ",%s:", agg.Func)
			encodeScalar(b, agg.Expr)
		}
		b.WriteByte(')')
	case *TopK:
		fmt.Fprintf(b, "topk(%v,%v,%d,%d,", e.GroupKey, e.OrderKey, e.Limit, e.Offset)
		encodeRelation(b, e.Input)
		b.WriteByte(')')
	case *Union:
		fmt.Fprintf(b, "union[%d](", len(e.Inputs))
		for _, input := range e.Inputs {
			encodeRelation(b, input)
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case *Negate:
		b.WriteString("negate(")
		encodeRelation(b, e.Input)
		b.WriteByte(')')
	case *Threshold:
		b.WriteString("threshold(")
		encodeRelation(b, e.Input)
		b.WriteByte(')')
	case *FlatMap:
		fmt.Fprintf(b, "flatmap(%s,", e.Func)
		encodeRelation(b, e.Input)
		for _, arg := range e.Args {
			b.WriteByte(',')
			encodeScalar(b, arg)
		}
		b.WriteByte(')')
	case *ArrangeBy:
		fmt.Fprintf(b, "arrangeby(%v,", e.Keys)
		encodeRelation(b, e.Input)
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "unknown(%T)", e)
	}
}

func encodeScalar(b *strings.Builder, s ScalarExpr) {
	switch e := s.(type) {
	case *Column:
		fmt.Fprintf(b, "#%d", e.Ord)
	case *Literal:
		fmt.Fprintf(b, "lit(%s,%T:%v)", e.Typ, e.Datum, e.Datum)
	case *CallUnary:
		fmt.Fprintf(b, "u%d(", uint8(e.Func))
		encodeScalar(b, e.Expr)
		b.WriteByte(')')
	case *CallBinary:
		fmt.Fprintf(b, "b%d(", uint8(e.Func))
		encodeScalar(b, e.Left)
		b.WriteByte(',')
		encodeScalar(b, e.Right)
		b.WriteByte(')')
	case *CallVariadic:
		fmt.Fprintf(b, "v%d(", uint8(e.Func))
		for i, arg := range e.Exprs {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeScalar(b, arg)
		}
		b.WriteByte(')')
	case *If:
		b.WriteString("if(")
		encodeScalar(b, e.Cond)
		b.WriteByte(',')
		encodeScalar(b, e.Then)
		b.WriteByte(',')
		encodeScalar(b, e.Else)
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "unknown(%T)", s)
	}
}
