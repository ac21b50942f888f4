package expr

import (
	"fmt"
	"strings"

	"github.com/oxbowdb/oxbow/dataflow"
)

// Render produces the textual plan the harness diffs: one indented block
// per operator with its parameters, then "types = (...)" and "keys = (...)"
// annotation lines, and for joins an "implementation = ..." line. Output is
// byte-stable for a given plan and catalog.
func Render(e RelationExpr, env *Env) (string, error) {
	var b strings.Builder
	if err := renderNode(&b, e, env, 0, 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

const renderIndent = "  "

func renderNode(b *strings.Builder, e RelationExpr, env *Env, indent, depth int) error {
	depth, err := dataflow.Descend(depth, env.MaxDepth)
	if err != nil {
		return err
	}

	typ, err := env.typeOf(e, depth)
	if err != nil {
		return err
	}

	pad := strings.Repeat(renderIndent, indent)
	b.WriteString(pad)
	b.WriteString(headerLine(e))
	b.WriteByte('\n')
	if join, ok := e.(*Join); ok {
		b.WriteString(pad)
		b.WriteString(renderIndent)
		b.WriteString("implementation = ")
		b.WriteString(implementationLine(join))
		b.WriteByte('\n')
	}
	fmt.Fprintf(b, "%s%stypes = %s\n", pad, renderIndent, dataflow.FormatColumnTypes(typ.Columns))
	fmt.Fprintf(b, "%s%skeys = %s\n", pad, renderIndent, dataflow.FormatKeys(typ.Keys()))

	// Let bodies see the binding; everything else just recurses.
	if let, ok := e.(*Let); ok {
		if err := renderNode(b, let.Value, env, indent+1, depth); err != nil {
			return err
		}
		valueTyp, err := env.typeOf(let.Value, depth)
		if err != nil {
			return err
		}
		env.bind(let.Name, valueTyp)
		defer env.unbind(let.Name)
		return renderNode(b, let.Body, env, indent+1, depth)
	}
	for _, child := range e.Children() {
		if err := renderNode(b, child, env, indent+1, depth); err != nil {
			return err
		}
	}
	return nil
}

func headerLine(e RelationExpr) string {
	switch e := e.(type) {
	case *Constant:
		if len(e.Rows) == 0 {
			return "Constant <empty>"
		}
		var b strings.Builder
		b.WriteString("Constant [")
		for i, row := range e.Rows {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('(')
			for j, d := range row {
				if j > 0 {
					b.WriteString(", ")
				}
				b.WriteString(dataflow.FormatDatum(d))
			}
			b.WriteByte(')')
		}
		b.WriteByte(']')
		return b.String()
	case *Get:
		return "Get " + e.Name
	case *Let:
		return "Let " + e.Name
	case *Map:
		return "Map " + scalarList(e.Scalars)
	case *Filter:
		return "Filter " + scalarList(e.Predicates)
	case *Project:
		return "Project " + columnList(e.Outputs)
	case *Join:
		return "Join on=" + equivalenceList(e.Equivalences)
	case *Reduce:
		aggs := make([]string, len(e.Aggregates))
		for i, agg := range e.Aggregates {
			aggs[i] = fmt.Sprintf("%s(%s)", agg.Func, agg.Expr)
		}
		return fmt.Sprintf("Reduce group=%s aggs=(%s)", columnList(e.GroupKey), strings.Join(aggs, ", "))
	case *TopK:
		return fmt.Sprintf("TopK group=%s order=%s limit=%d offset=%d",
			columnList(e.GroupKey), columnList(e.OrderKey), e.Limit, e.Offset)
	case *Union:
		return "Union"
	case *Negate:
		return "Negate"
	case *Threshold:
		return "Threshold"
	case *FlatMap:
		return fmt.Sprintf("FlatMap %s%s", e.Func, scalarList(e.Args))
	case *ArrangeBy:
		return "ArrangeBy keys=" + keyList(e.Keys)
	default:
		return OpName(e)
	}
}

func implementationLine(e *Join) string {
	switch impl := e.Implementation.(type) {
	case Differential:
		var b strings.Builder
		b.WriteString("Differential")
		for i, key := range impl.Keys {
			fmt.Fprintf(&b, " %%%d.%s", i, columnList(key))
		}
		return b.String()
	default:
		return "Unimplemented"
	}
}

func scalarList(scalars []ScalarExpr) string {
	parts := make([]string, len(scalars))
	for i, s := range scalars {
		parts[i] = s.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func columnList(cols []int) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("#%d", c)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func keyList(keys [][]int) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = columnList(key)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func equivalenceList(classes [][]int) string {
	parts := make([]string, len(classes))
	for i, class := range classes {
		refs := make([]string, len(class))
		for j, c := range class {
			refs[j] = fmt.Sprintf("#%d", c)
		}
		parts[i] = strings.Join(refs, " = ")
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}
