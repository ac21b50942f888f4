package sexpr

import (
	"fmt"
	"strings"

	"github.com/oxbowdb/oxbow/dataflow"
	"github.com/oxbowdb/oxbow/dataflow/catalog"
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

// Builder turns parsed nodes into relation expressions, registering
// "defsource" declarations in its catalog as it goes.
type Builder struct {
	Catalog *catalog.MemCatalog
}

// NewBuilder creates a builder over the given catalog.
func NewBuilder(cat *catalog.MemCatalog) *Builder {
	return &Builder{Catalog: cat}
}

// IsDefSource reports whether the node is a (defsource ...) declaration.
func IsDefSource(node Node) bool {
	return node.Type == NodeList && len(node.Nodes) > 0 &&
		node.Nodes[0].Type == NodeSymbol && node.Nodes[0].Value == "defsource"
}

// DefSource registers a source declaration:
//
//	(defsource x [int32? int64? int32?] [[0] [1]])
func (b *Builder) DefSource(node Node) error {
	if !IsDefSource(node) {
		return fmt.Errorf("expected (defsource ...) at %d:%d", node.Line, node.Col)
	}
	if len(node.Nodes) != 4 {
		return fmt.Errorf("defsource expects name, columns, keys at %d:%d", node.Line, node.Col)
	}
	name := node.Nodes[1]
	if name.Type != NodeSymbol {
		return fmt.Errorf("defsource name must be a symbol at %d:%d", name.Line, name.Col)
	}
	columns, err := buildColumnTypes(node.Nodes[2])
	if err != nil {
		return err
	}
	keys, err := buildKeySets(node.Nodes[3])
	if err != nil {
		return err
	}
	return b.Catalog.Define(name.Value, columns, keys)
}

// BuildRelation turns a node into a relation expression.
func (b *Builder) BuildRelation(node Node) (expr.RelationExpr, error) {
	if node.Type != NodeList || len(node.Nodes) == 0 || node.Nodes[0].Type != NodeSymbol {
		return nil, fmt.Errorf("expected (operator ...) at %d:%d", node.Line, node.Col)
	}
	op := node.Nodes[0].Value
	args := node.Nodes[1:]

	switch op {
	case "get":
		if len(args) != 1 || args[0].Type != NodeSymbol {
			return nil, fmt.Errorf("get expects a source name at %d:%d", node.Line, node.Col)
		}
		return &expr.Get{Name: args[0].Value}, nil

	case "let":
		if len(args) != 3 || args[0].Type != NodeSymbol {
			return nil, fmt.Errorf("let expects name, value, body at %d:%d", node.Line, node.Col)
		}
		value, err := b.BuildRelation(args[1])
		if err != nil {
			return nil, err
		}
		body, err := b.BuildRelation(args[2])
		if err != nil {
			return nil, err
		}
		return &expr.Let{Name: args[0].Value, Value: value, Body: body}, nil

	case "constant":
		if len(args) != 2 {
			return nil, fmt.Errorf("constant expects columns and rows at %d:%d", node.Line, node.Col)
		}
		columns, err := buildColumnTypes(args[0])
		if err != nil {
			return nil, err
		}
		rows, err := buildRows(args[1], columns)
		if err != nil {
			return nil, err
		}
		return &expr.Constant{Rows: rows, Columns: columns}, nil

	case "map":
		input, scalars, err := b.inputAndScalars(op, node)
		if err != nil {
			return nil, err
		}
		return &expr.Map{Input: input, Scalars: scalars}, nil

	case "filter":
		input, predicates, err := b.inputAndScalars(op, node)
		if err != nil {
			return nil, err
		}
		return &expr.Filter{Input: input, Predicates: predicates}, nil

	case "project":
		if len(args) != 2 {
			return nil, fmt.Errorf("project expects input and columns at %d:%d", node.Line, node.Col)
		}
		input, err := b.BuildRelation(args[0])
		if err != nil {
			return nil, err
		}
		outputs, err := buildColumnList(args[1])
		if err != nil {
			return nil, err
		}
		return &expr.Project{Input: input, Outputs: outputs}, nil

	case "join":
		if len(args) != 2 || args[0].Type != NodeVector {
			return nil, fmt.Errorf("join expects [inputs] and [constraints] at %d:%d", node.Line, node.Col)
		}
		inputs := make([]expr.RelationExpr, len(args[0].Nodes))
		for i, sub := range args[0].Nodes {
			input, err := b.BuildRelation(sub)
			if err != nil {
				return nil, err
			}
			inputs[i] = input
		}
		equivalences, err := buildKeySets(args[1])
		if err != nil {
			return nil, err
		}
		return &expr.Join{Inputs: inputs, Equivalences: equivalences, Implementation: expr.Unimplemented{}}, nil

	case "reduce":
		if len(args) != 3 {
			return nil, fmt.Errorf("reduce expects input, group key, aggregates at %d:%d", node.Line, node.Col)
		}
		input, err := b.BuildRelation(args[0])
		if err != nil {
			return nil, err
		}
		groupKey, err := buildColumnList(args[1])
		if err != nil {
			return nil, err
		}
		if args[2].Type != NodeVector {
			return nil, fmt.Errorf("reduce aggregates must be a vector at %d:%d", args[2].Line, args[2].Col)
		}
		aggregates := make([]expr.Aggregate, len(args[2].Nodes))
		for i, sub := range args[2].Nodes {
			agg, err := buildAggregate(sub)
			if err != nil {
				return nil, err
			}
			aggregates[i] = agg
		}
		return &expr.Reduce{Input: input, GroupKey: groupKey, Aggregates: aggregates}, nil

	case "topk":
		if len(args) < 3 || len(args) > 5 {
			return nil, fmt.Errorf("topk expects input, group, order, [limit, [offset]] at %d:%d", node.Line, node.Col)
		}
		input, err := b.BuildRelation(args[0])
		if err != nil {
			return nil, err
		}
		groupKey, err := buildColumnList(args[1])
		if err != nil {
			return nil, err
		}
		orderKey, err := buildColumnList(args[2])
		if err != nil {
			return nil, err
		}
		topk := &expr.TopK{Input: input, GroupKey: groupKey, OrderKey: orderKey}
		if len(args) > 3 {
			if args[3].Type != NodeInt {
				return nil, fmt.Errorf("topk limit must be an integer at %d:%d", args[3].Line, args[3].Col)
			}
			topk.Limit = int(args[3].Int)
		}
		if len(args) > 4 {
			if args[4].Type != NodeInt {
				return nil, fmt.Errorf("topk offset must be an integer at %d:%d", args[4].Line, args[4].Col)
			}
			topk.Offset = int(args[4].Int)
		}
		return topk, nil

	case "union":
		if len(args) == 0 {
			return nil, fmt.Errorf("union expects at least one input at %d:%d", node.Line, node.Col)
		}
		inputs := make([]expr.RelationExpr, len(args))
		for i, sub := range args {
			input, err := b.BuildRelation(sub)
			if err != nil {
				return nil, err
			}
			inputs[i] = input
		}
		return &expr.Union{Inputs: inputs}, nil

	case "negate":
		input, err := b.singleInput(op, node)
		if err != nil {
			return nil, err
		}
		return &expr.Negate{Input: input}, nil

	case "threshold":
		input, err := b.singleInput(op, node)
		if err != nil {
			return nil, err
		}
		return &expr.Threshold{Input: input}, nil

	case "flat-map":
		if len(args) != 3 || args[1].Type != NodeSymbol {
			return nil, fmt.Errorf("flat-map expects input, function, args at %d:%d", node.Line, node.Col)
		}
		input, err := b.BuildRelation(args[0])
		if err != nil {
			return nil, err
		}
		var fn expr.TableFunc
		switch args[1].Value {
		case "generate-series":
			fn = expr.TableGenerateSeries
		default:
			return nil, fmt.Errorf("unknown table function %q at %d:%d", args[1].Value, args[1].Line, args[1].Col)
		}
		if args[2].Type != NodeVector {
			return nil, fmt.Errorf("flat-map args must be a vector at %d:%d", args[2].Line, args[2].Col)
		}
		fnArgs := make([]expr.ScalarExpr, len(args[2].Nodes))
		for i, sub := range args[2].Nodes {
			arg, err := buildScalar(sub)
			if err != nil {
				return nil, err
			}
			fnArgs[i] = arg
		}
		return &expr.FlatMap{Input: input, Func: fn, Args: fnArgs}, nil

	case "arrange-by":
		if len(args) != 2 {
			return nil, fmt.Errorf("arrange-by expects input and keys at %d:%d", node.Line, node.Col)
		}
		input, err := b.BuildRelation(args[0])
		if err != nil {
			return nil, err
		}
		keys, err := buildKeySets(args[1])
		if err != nil {
			return nil, err
		}
		return &expr.ArrangeBy{Input: input, Keys: keys}, nil

	default:
		return nil, fmt.Errorf("unknown operator %q at %d:%d", op, node.Line, node.Col)
	}
}

func (b *Builder) singleInput(op string, node Node) (expr.RelationExpr, error) {
	if len(node.Nodes) != 2 {
		return nil, fmt.Errorf("%s expects one input at %d:%d", op, node.Line, node.Col)
	}
	return b.BuildRelation(node.Nodes[1])
}

func (b *Builder) inputAndScalars(op string, node Node) (expr.RelationExpr, []expr.ScalarExpr, error) {
	args := node.Nodes[1:]
	if len(args) != 2 || args[1].Type != NodeVector {
		return nil, nil, fmt.Errorf("%s expects input and a vector of scalars at %d:%d", op, node.Line, node.Col)
	}
	input, err := b.BuildRelation(args[0])
	if err != nil {
		return nil, nil, err
	}
	scalars := make([]expr.ScalarExpr, len(args[1].Nodes))
	for i, sub := range args[1].Nodes {
		s, err := buildScalar(sub)
		if err != nil {
			return nil, nil, err
		}
		scalars[i] = s
	}
	return input, scalars, nil
}

var binaryOps = map[string]expr.BinaryFunc{
	"+":   expr.BinaryAdd,
	"-":   expr.BinarySub,
	"*":   expr.BinaryMul,
	"/":   expr.BinaryDiv,
	"=":   expr.BinaryEq,
	"!=":  expr.BinaryNotEq,
	"<":   expr.BinaryLt,
	"<=":  expr.BinaryLte,
	">":   expr.BinaryGt,
	">=":  expr.BinaryGte,
	"and": expr.BinaryAnd,
	"or":  expr.BinaryOr,
}

var unaryOps = map[string]expr.UnaryFunc{
	"not":    expr.UnaryNot,
	"neg":    expr.UnaryNeg,
	"isnull": expr.UnaryIsNull,
}

// buildScalar turns a node into a scalar expression.
func buildScalar(node Node) (expr.ScalarExpr, error) {
	switch node.Type {
	case NodeColumn:
		return &expr.Column{Ord: int(node.Int)}, nil
	case NodeInt:
		return expr.Lit(dataflow.Int64(node.Int)), nil
	case NodeFloat:
		return expr.Lit(dataflow.Float64(node.Float)), nil
	case NodeBool:
		return expr.Lit(dataflow.Bool(node.Bool)), nil
	case NodeNull:
		return expr.Lit(nil), nil
	case NodeString:
		return expr.Lit(dataflow.String(node.Value)), nil
	case NodeList:
		if len(node.Nodes) == 0 || node.Nodes[0].Type != NodeSymbol {
			return nil, fmt.Errorf("expected (function args...) at %d:%d", node.Line, node.Col)
		}
		name := node.Nodes[0].Value
		args := node.Nodes[1:]
		if name == "if" {
			if len(args) != 3 {
				return nil, fmt.Errorf("if expects condition, then, else at %d:%d", node.Line, node.Col)
			}
			cond, err := buildScalar(args[0])
			if err != nil {
				return nil, err
			}
			then, err := buildScalar(args[1])
			if err != nil {
				return nil, err
			}
			els, err := buildScalar(args[2])
			if err != nil {
				return nil, err
			}
			return &expr.If{Cond: cond, Then: then, Else: els}, nil
		}
		if name == "coalesce" {
			exprs := make([]expr.ScalarExpr, len(args))
			for i, sub := range args {
				arg, err := buildScalar(sub)
				if err != nil {
					return nil, err
				}
				exprs[i] = arg
			}
			return &expr.CallVariadic{Func: expr.VariadicCoalesce, Exprs: exprs}, nil
		}
		if fn, ok := unaryOps[name]; ok && len(args) == 1 {
			arg, err := buildScalar(args[0])
			if err != nil {
				return nil, err
			}
			return &expr.CallUnary{Func: fn, Expr: arg}, nil
		}
		if fn, ok := binaryOps[name]; ok && len(args) == 2 {
			left, err := buildScalar(args[0])
			if err != nil {
				return nil, err
			}
			right, err := buildScalar(args[1])
			if err != nil {
				return nil, err
			}
			return &expr.CallBinary{Func: fn, Left: left, Right: right}, nil
		}
		// "-" is unary negation with one argument.
		if name == "-" && len(args) == 1 {
			arg, err := buildScalar(args[0])
			if err != nil {
				return nil, err
			}
			return &expr.CallUnary{Func: expr.UnaryNeg, Expr: arg}, nil
		}
		return nil, fmt.Errorf("unknown scalar function %q with %d args at %d:%d", name, len(args), node.Line, node.Col)
	default:
		return nil, fmt.Errorf("expected scalar expression at %d:%d", node.Line, node.Col)
	}
}

// buildAggregate parses "(sum #1)" style aggregate applications.
func buildAggregate(node Node) (expr.Aggregate, error) {
	if node.Type != NodeList || len(node.Nodes) != 2 || node.Nodes[0].Type != NodeSymbol {
		return expr.Aggregate{}, fmt.Errorf("expected (aggregate scalar) at %d:%d", node.Line, node.Col)
	}
	fn, err := expr.ParseAggregateFunc(node.Nodes[0].Value)
	if err != nil {
		return expr.Aggregate{}, fmt.Errorf("%v at %d:%d", err, node.Line, node.Col)
	}
	arg, err := buildScalar(node.Nodes[1])
	if err != nil {
		return expr.Aggregate{}, err
	}
	return expr.Aggregate{Func: fn, Expr: arg}, nil
}

// buildColumnTypes parses "[int32? int64 string]" vectors.
func buildColumnTypes(node Node) ([]dataflow.ColumnType, error) {
	if node.Type != NodeVector {
		return nil, fmt.Errorf("expected a vector of column types at %d:%d", node.Line, node.Col)
	}
	columns := make([]dataflow.ColumnType, len(node.Nodes))
	for i, sub := range node.Nodes {
		if sub.Type != NodeSymbol {
			return nil, fmt.Errorf("expected a column type at %d:%d", sub.Line, sub.Col)
		}
		name := sub.Value
		nullable := strings.HasSuffix(name, "?")
		if nullable {
			name = strings.TrimSuffix(name, "?")
		}
		t, err := dataflow.ParseScalarType(name)
		if err != nil {
			return nil, fmt.Errorf("%v at %d:%d", err, sub.Line, sub.Col)
		}
		columns[i] = dataflow.ColumnType{Type: t, Nullable: nullable}
	}
	return columns, nil
}

// buildKeySets parses "[[0] [1]]" or "[[#0 #3]]" vectors of column lists.
func buildKeySets(node Node) ([][]int, error) {
	if node.Type != NodeVector {
		return nil, fmt.Errorf("expected a vector of column lists at %d:%d", node.Line, node.Col)
	}
	keys := make([][]int, len(node.Nodes))
	for i, sub := range node.Nodes {
		key, err := buildColumnList(sub)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}
	return keys, nil
}

// buildColumnList parses "[0 1 2]" or "[#0 #1]" vectors.
func buildColumnList(node Node) ([]int, error) {
	if node.Type != NodeVector {
		return nil, fmt.Errorf("expected a vector of columns at %d:%d", node.Line, node.Col)
	}
	cols := make([]int, len(node.Nodes))
	for i, sub := range node.Nodes {
		switch sub.Type {
		case NodeInt:
			cols[i] = int(sub.Int)
		case NodeColumn:
			cols[i] = int(sub.Int)
		default:
			return nil, fmt.Errorf("expected a column position at %d:%d", sub.Line, sub.Col)
		}
	}
	return cols, nil
}

// buildRows parses constant rows "[[1 2] [3 4]]" against declared columns.
func buildRows(node Node, columns []dataflow.ColumnType) ([][]dataflow.Datum, error) {
	if node.Type != NodeVector {
		return nil, fmt.Errorf("expected a vector of rows at %d:%d", node.Line, node.Col)
	}
	rows := make([][]dataflow.Datum, len(node.Nodes))
	for i, rowNode := range node.Nodes {
		if rowNode.Type != NodeVector {
			return nil, fmt.Errorf("expected a row vector at %d:%d", rowNode.Line, rowNode.Col)
		}
		if len(rowNode.Nodes) != len(columns) {
			return nil, fmt.Errorf("row has %d values for %d columns at %d:%d",
				len(rowNode.Nodes), len(columns), rowNode.Line, rowNode.Col)
		}
		row := make([]dataflow.Datum, len(rowNode.Nodes))
		for j, cell := range rowNode.Nodes {
			d, err := buildDatum(cell, columns[j])
			if err != nil {
				return nil, err
			}
			row[j] = d
		}
		rows[i] = row
	}
	return rows, nil
}

func buildDatum(node Node, typ dataflow.ColumnType) (dataflow.Datum, error) {
	switch node.Type {
	case NodeNull:
		if !typ.Nullable {
			return nil, fmt.Errorf("null in non-nullable column at %d:%d", node.Line, node.Col)
		}
		return nil, nil
	case NodeBool:
		return node.Bool, nil
	case NodeInt:
		if typ.Type == dataflow.TypeInt32 {
			return int32(node.Int), nil
		}
		return node.Int, nil
	case NodeFloat:
		return node.Float, nil
	case NodeString:
		return node.Value, nil
	default:
		return nil, fmt.Errorf("expected a literal at %d:%d", node.Line, node.Col)
	}
}
