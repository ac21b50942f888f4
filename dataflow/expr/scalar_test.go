package expr

import (
	"errors"
	"testing"

	"github.com/oxbowdb/oxbow/dataflow"
)

func TestScalarTypeInference(t *testing.T) {
	columns := []dataflow.ColumnType{
		dataflow.Col(dataflow.TypeInt64),
		dataflow.NullableCol(dataflow.TypeInt64),
		dataflow.Col(dataflow.TypeBool),
	}

	tests := []struct {
		name     string
		scalar   ScalarExpr
		expected string
	}{
		{"column", &Column{Ord: 1}, "Int64?"},
		{"literal", Lit(dataflow.Int64(1)), "Int64"},
		{
			name:     "comparison is bool",
			scalar:   &CallBinary{Func: BinaryEq, Left: &Column{Ord: 0}, Right: Lit(dataflow.Int64(1))},
			expected: "Bool",
		},
		{
			name:     "nullable operand makes nullable result",
			scalar:   &CallBinary{Func: BinaryAdd, Left: &Column{Ord: 0}, Right: &Column{Ord: 1}},
			expected: "Int64?",
		},
		{
			name:     "division is always nullable",
			scalar:   &CallBinary{Func: BinaryDiv, Left: &Column{Ord: 0}, Right: Lit(dataflow.Int64(2))},
			expected: "Int64?",
		},
		{
			name:     "isnull is non-null bool",
			scalar:   &CallUnary{Func: UnaryIsNull, Expr: &Column{Ord: 1}},
			expected: "Bool",
		},
		{
			name: "if unions its branches",
			scalar: &If{
				Cond: &Column{Ord: 2},
				Then: &Column{Ord: 0},
				Else: &Column{Ord: 1},
			},
			expected: "Int64?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, err := ScalarType(tt.scalar, columns)
			if err != nil {
				t.Fatalf("ScalarType: %v", err)
			}
			if got := typ.String(); got != tt.expected {
				t.Errorf("type = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestScalarTypeOutOfRange(t *testing.T) {
	_, err := ScalarType(&Column{Ord: 3}, []dataflow.ColumnType{dataflow.Col(dataflow.TypeBool)})
	var malformed *dataflow.MalformedPlanError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want MalformedPlanError", err)
	}
}

func TestEval(t *testing.T) {
	row := []dataflow.Datum{dataflow.Int64(10), dataflow.Null, dataflow.Int32(4)}

	tests := []struct {
		name     string
		scalar   ScalarExpr
		expected dataflow.Datum
	}{
		{
			name:     "arithmetic",
			scalar:   &CallBinary{Func: BinaryAdd, Left: &Column{Ord: 0}, Right: Lit(dataflow.Int64(5))},
			expected: dataflow.Int64(15),
		},
		{
			name:     "int32 operands stay int32",
			scalar:   &CallBinary{Func: BinaryMul, Left: &Column{Ord: 2}, Right: Lit(dataflow.Int32(3))},
			expected: dataflow.Int32(12),
		},
		{
			name:     "null propagates through arithmetic",
			scalar:   &CallBinary{Func: BinaryAdd, Left: &Column{Ord: 1}, Right: Lit(dataflow.Int64(1))},
			expected: dataflow.Null,
		},
		{
			name:     "division by zero is null",
			scalar:   &CallBinary{Func: BinaryDiv, Left: &Column{Ord: 0}, Right: Lit(dataflow.Int64(0))},
			expected: dataflow.Null,
		},
		{
			name:     "isnull sees through null",
			scalar:   &CallUnary{Func: UnaryIsNull, Expr: &Column{Ord: 1}},
			expected: dataflow.Bool(true),
		},
		{
			name: "coalesce picks first non-null",
			scalar: &CallVariadic{
				Func:  VariadicCoalesce,
				Exprs: []ScalarExpr{&Column{Ord: 1}, &Column{Ord: 0}},
			},
			expected: dataflow.Int64(10),
		},
		{
			name: "if takes the else branch on null condition",
			scalar: &If{
				Cond: &CallBinary{Func: BinaryLt, Left: &Column{Ord: 1}, Right: Lit(dataflow.Int64(1))},
				Then: Lit(dataflow.String("then")),
				Else: Lit(dataflow.String("else")),
			},
			expected: dataflow.String("else"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budget := 100
			got, err := Eval(tt.scalar, row, &budget)
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Eval = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEvalBudget(t *testing.T) {
	scalar := &CallBinary{Func: BinaryAdd, Left: Lit(dataflow.Int64(1)), Right: Lit(dataflow.Int64(2))}

	budget := 1
	_, err := Eval(scalar, nil, &budget)
	if !errors.Is(err, ErrBudget) {
		t.Fatalf("error = %v, want ErrBudget", err)
	}
}

func TestPermuteColumns(t *testing.T) {
	scalar := &CallBinary{Func: BinaryAdd, Left: &Column{Ord: 0}, Right: &Column{Ord: 2}}

	permuted, ok := PermuteColumns(scalar, map[int]int{0: 3, 2: 1})
	if !ok {
		t.Fatal("expected complete permutation")
	}
	if got := permuted.String(); got != "(#3 + #1)" {
		t.Errorf("permuted = %s, want (#3 + #1)", got)
	}
	// The original is untouched.
	if got := scalar.String(); got != "(#0 + #2)" {
		t.Errorf("original mutated: %s", got)
	}

	if _, ok := PermuteColumns(scalar, map[int]int{0: 3}); ok {
		t.Error("expected incomplete permutation for missing column")
	}
}

func TestColumnsUsed(t *testing.T) {
	scalar := &If{
		Cond: &CallBinary{Func: BinaryGt, Left: &Column{Ord: 4}, Right: Lit(dataflow.Int64(0))},
		Then: &Column{Ord: 1},
		Else: Lit(dataflow.Int64(0)),
	}
	used := ColumnsUsed(scalar)
	if len(used) != 2 || !used[1] || !used[4] {
		t.Errorf("ColumnsUsed = %v, want {1, 4}", used)
	}
}
