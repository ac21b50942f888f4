package expr

import (
	"fmt"

	"github.com/oxbowdb/oxbow/dataflow"
)

// UnaryFunc enumerates unary scalar functions.
type UnaryFunc uint8

const (
	UnaryNot UnaryFunc = iota
	UnaryNeg
	UnaryIsNull
)

func (f UnaryFunc) String() string {
	switch f {
	case UnaryNot:
		return "not"
	case UnaryNeg:
		return "-"
	case UnaryIsNull:
		return "isnull"
	default:
		return fmt.Sprintf("UnaryFunc(%d)", uint8(f))
	}
}

// OutputType computes the result column type for the given argument type.
func (f UnaryFunc) OutputType(in dataflow.ColumnType) (dataflow.ColumnType, error) {
	switch f {
	case UnaryNot:
		return dataflow.ColumnType{Type: dataflow.TypeBool, Nullable: in.Nullable}, nil
	case UnaryNeg:
		switch in.Type {
		case dataflow.TypeInt32, dataflow.TypeInt64, dataflow.TypeFloat64:
			return in, nil
		}
		return dataflow.ColumnType{}, fmt.Errorf("cannot negate %s", in)
	case UnaryIsNull:
		// Always defined, never null.
		return dataflow.Col(dataflow.TypeBool), nil
	default:
		return dataflow.ColumnType{}, fmt.Errorf("unknown unary function %d", uint8(f))
	}
}

// Eval applies the function to a datum. NULL propagates except for isnull.
func (f UnaryFunc) Eval(v dataflow.Datum) (dataflow.Datum, error) {
	if f == UnaryIsNull {
		return v == nil, nil
	}
	if v == nil {
		return nil, nil
	}
	switch f {
	case UnaryNot:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("not: expected bool, got %T", v)
		}
		return !b, nil
	case UnaryNeg:
		switch n := v.(type) {
		case int32:
			return -n, nil
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, fmt.Errorf("neg: expected numeric, got %T", v)
	default:
		return nil, fmt.Errorf("unknown unary function %d", uint8(f))
	}
}

// BinaryFunc enumerates binary scalar functions.
type BinaryFunc uint8

const (
	BinaryAdd BinaryFunc = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryEq
	BinaryNotEq
	BinaryLt
	BinaryLte
	BinaryGt
	BinaryGte
	BinaryAnd
	BinaryOr
)

func (f BinaryFunc) String() string {
	switch f {
	case BinaryAdd:
		return "+"
	case BinarySub:
		return "-"
	case BinaryMul:
		return "*"
	case BinaryDiv:
		return "/"
	case BinaryEq:
		return "="
	case BinaryNotEq:
		return "!="
	case BinaryLt:
		return "<"
	case BinaryLte:
		return "<="
	case BinaryGt:
		return ">"
	case BinaryGte:
		return ">="
	case BinaryAnd:
		return "and"
	case BinaryOr:
		return "or"
	default:
		return fmt.Sprintf("BinaryFunc(%d)", uint8(f))
	}
}

func (f BinaryFunc) isComparison() bool {
	switch f {
	case BinaryEq, BinaryNotEq, BinaryLt, BinaryLte, BinaryGt, BinaryGte:
		return true
	}
	return false
}

// OutputType computes the result column type for the given argument types.
func (f BinaryFunc) OutputType(l, r dataflow.ColumnType) (dataflow.ColumnType, error) {
	nullable := l.Nullable || r.Nullable
	switch {
	case f.isComparison():
		return dataflow.ColumnType{Type: dataflow.TypeBool, Nullable: nullable}, nil
	case f == BinaryAnd || f == BinaryOr:
		if l.Type != dataflow.TypeBool || r.Type != dataflow.TypeBool {
			return dataflow.ColumnType{}, fmt.Errorf("%s expects bool arguments, got %s and %s", f, l, r)
		}
		return dataflow.ColumnType{Type: dataflow.TypeBool, Nullable: nullable}, nil
	default:
		// Arithmetic. Int32 promotes to Int64 when mixed.
		t, err := promoteNumeric(l.Type, r.Type)
		if err != nil {
			return dataflow.ColumnType{}, fmt.Errorf("%s: %w", f, err)
		}
		if f == BinaryDiv {
			// Division by zero yields NULL.
			nullable = true
		}
		return dataflow.ColumnType{Type: t, Nullable: nullable}, nil
	}
}

func promoteNumeric(l, r dataflow.ScalarType) (dataflow.ScalarType, error) {
	numeric := func(t dataflow.ScalarType) bool {
		return t == dataflow.TypeInt32 || t == dataflow.TypeInt64 || t == dataflow.TypeFloat64
	}
	if !numeric(l) || !numeric(r) {
		return 0, fmt.Errorf("expected numeric arguments, got %s and %s", l, r)
	}
	if l == dataflow.TypeFloat64 || r == dataflow.TypeFloat64 {
		return dataflow.TypeFloat64, nil
	}
	if l == dataflow.TypeInt64 || r == dataflow.TypeInt64 {
		return dataflow.TypeInt64, nil
	}
	return dataflow.TypeInt32, nil
}

// Eval applies the function to two datums. NULL propagates.
func (f BinaryFunc) Eval(l, r dataflow.Datum) (dataflow.Datum, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	if f.isComparison() {
		cmp := dataflow.CompareData(l, r)
		switch f {
		case BinaryEq:
			return cmp == 0, nil
		case BinaryNotEq:
			return cmp != 0, nil
		case BinaryLt:
			return cmp < 0, nil
		case BinaryLte:
			return cmp <= 0, nil
		case BinaryGt:
			return cmp > 0, nil
		case BinaryGte:
			return cmp >= 0, nil
		}
	}
	switch f {
	case BinaryAnd, BinaryOr:
		lb, lok := l.(bool)
		rb, rok := r.(bool)
		if !lok || !rok {
			return nil, fmt.Errorf("%s: expected bool arguments, got %T and %T", f, l, r)
		}
		if f == BinaryAnd {
			return lb && rb, nil
		}
		return lb || rb, nil
	}
	return evalArith(f, l, r)
}

func evalArith(f BinaryFunc, l, r dataflow.Datum) (dataflow.Datum, error) {
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("%s: expected numeric arguments, got %T and %T", f, l, r)
	}
	_, lFloat := l.(float64)
	_, rFloat := r.(float64)
	if lFloat || rFloat {
		return evalFloat(f, lf, rf)
	}
	li, _ := toInt(l)
	ri, _ := toInt(r)
	_, l32 := l.(int32)
	_, r32 := r.(int32)
	narrow := l32 && r32
	var out int64
	switch f {
	case BinaryAdd:
		out = li + ri
	case BinarySub:
		out = li - ri
	case BinaryMul:
		out = li * ri
	case BinaryDiv:
		if ri == 0 {
			return nil, nil
		}
		out = li / ri
	default:
		return nil, fmt.Errorf("unknown binary function %d", uint8(f))
	}
	if narrow {
		return int32(out), nil
	}
	return out, nil
}

func evalFloat(f BinaryFunc, l, r float64) (dataflow.Datum, error) {
	switch f {
	case BinaryAdd:
		return l + r, nil
	case BinarySub:
		return l - r, nil
	case BinaryMul:
		return l * r, nil
	case BinaryDiv:
		if r == 0 {
			return nil, nil
		}
		return l / r, nil
	default:
		return nil, fmt.Errorf("unknown binary function %d", uint8(f))
	}
}

func toInt(d dataflow.Datum) (int64, bool) {
	switch v := d.(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func toFloat(d dataflow.Datum) (float64, bool) {
	switch v := d.(type) {
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// VariadicFunc enumerates variadic scalar functions.
type VariadicFunc uint8

const (
	VariadicCoalesce VariadicFunc = iota
)

func (f VariadicFunc) String() string {
	switch f {
	case VariadicCoalesce:
		return "coalesce"
	default:
		return fmt.Sprintf("VariadicFunc(%d)", uint8(f))
	}
}

// OutputType computes the result column type for the given argument types.
func (f VariadicFunc) OutputType(ins []dataflow.ColumnType) (dataflow.ColumnType, error) {
	switch f {
	case VariadicCoalesce:
		if len(ins) == 0 {
			return dataflow.ColumnType{}, fmt.Errorf("coalesce expects at least one argument")
		}
		out := ins[0]
		allNullable := ins[0].Nullable
		for _, in := range ins[1:] {
			if in.Type != out.Type {
				return dataflow.ColumnType{}, fmt.Errorf("coalesce arguments disagree: %s vs %s", out, in)
			}
			allNullable = allNullable && in.Nullable
		}
		out.Nullable = allNullable
		return out, nil
	default:
		return dataflow.ColumnType{}, fmt.Errorf("unknown variadic function %d", uint8(f))
	}
}

// Eval applies the function to its arguments.
func (f VariadicFunc) Eval(args []dataflow.Datum) (dataflow.Datum, error) {
	switch f {
	case VariadicCoalesce:
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown variadic function %d", uint8(f))
	}
}

// AggregateFunc enumerates aggregation functions used by Reduce.
type AggregateFunc uint8

const (
	AggSum AggregateFunc = iota
	AggCount
	AggMin
	AggMax
)

func (f AggregateFunc) String() string {
	switch f {
	case AggSum:
		return "sum"
	case AggCount:
		return "count"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	default:
		return fmt.Sprintf("AggregateFunc(%d)", uint8(f))
	}
}

// OutputType computes the aggregate's output column type for the given
// argument type. Aggregates over a group always see at least one row here,
// so count is non-null; sum/min/max are null only if the argument can be.
func (f AggregateFunc) OutputType(in dataflow.ColumnType) (dataflow.ColumnType, error) {
	switch f {
	case AggCount:
		return dataflow.Col(dataflow.TypeInt64), nil
	case AggSum:
		switch in.Type {
		case dataflow.TypeInt32, dataflow.TypeInt64:
			return dataflow.ColumnType{Type: dataflow.TypeInt64, Nullable: in.Nullable}, nil
		case dataflow.TypeFloat64:
			return dataflow.ColumnType{Type: dataflow.TypeFloat64, Nullable: in.Nullable}, nil
		}
		return dataflow.ColumnType{}, fmt.Errorf("sum over non-numeric %s", in)
	case AggMin, AggMax:
		return in, nil
	default:
		return dataflow.ColumnType{}, fmt.Errorf("unknown aggregate function %d", uint8(f))
	}
}

// ParseAggregateFunc parses an aggregate name as written in fixtures.
func ParseAggregateFunc(s string) (AggregateFunc, error) {
	switch s {
	case "sum":
		return AggSum, nil
	case "count":
		return AggCount, nil
	case "min":
		return AggMin, nil
	case "max":
		return AggMax, nil
	default:
		return 0, fmt.Errorf("unknown aggregate function %q", s)
	}
}

// TableFunc enumerates table functions used by FlatMap.
type TableFunc uint8

const (
	// TableGenerateSeries produces one row per integer from 1 to its
	// argument, appending one Int64 column.
	TableGenerateSeries TableFunc = iota
)

func (f TableFunc) String() string {
	switch f {
	case TableGenerateSeries:
		return "generate_series"
	default:
		return fmt.Sprintf("TableFunc(%d)", uint8(f))
	}
}

// OutputColumns returns the column types the table function appends.
func (f TableFunc) OutputColumns() []dataflow.ColumnType {
	switch f {
	case TableGenerateSeries:
		return []dataflow.ColumnType{dataflow.Col(dataflow.TypeInt64)}
	default:
		return nil
	}
}
