package dataflow

import (
	"fmt"
	"strconv"
)

// Datum represents any scalar value flowing through a relation: an
// interface{} over a closed set of Go types. A nil Datum is SQL NULL.
type Datum interface{}

// Valid datum types:
// - bool
// - int32
// - int64
// - float64
// - string
// - nil (NULL)

// Helper constructors for typed datums.
func Bool(b bool) Datum      { return b }
func Int32(i int32) Datum    { return i }
func Int64(i int64) Datum    { return i }
func Float64(f float64) Datum { return f }
func String(s string) Datum  { return s }

// Null is the NULL datum.
var Null Datum = nil

// ScalarType identifies the type of a Datum.
type ScalarType uint8

const (
	TypeBool ScalarType = iota
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeString
)

// String returns the rendered type name, as it appears in plan output.
func (t ScalarType) String() string {
	switch t {
	case TypeBool:
		return "Bool"
	case TypeInt32:
		return "Int32"
	case TypeInt64:
		return "Int64"
	case TypeFloat64:
		return "Float64"
	case TypeString:
		return "String"
	default:
		return fmt.Sprintf("ScalarType(%d)", uint8(t))
	}
}

// ParseScalarType parses a type name as written in fixture scripts
// ("int32", "bool", ...). A trailing '?' for nullability is handled by the
// caller, not here.
func ParseScalarType(s string) (ScalarType, error) {
	switch s {
	case "bool":
		return TypeBool, nil
	case "int32":
		return TypeInt32, nil
	case "int64":
		return TypeInt64, nil
	case "float64":
		return TypeFloat64, nil
	case "string":
		return TypeString, nil
	default:
		return 0, fmt.Errorf("unknown scalar type %q", s)
	}
}

// DatumType reports the ScalarType of a non-nil datum.
func DatumType(d Datum) (ScalarType, bool) {
	switch d.(type) {
	case bool:
		return TypeBool, true
	case int32:
		return TypeInt32, true
	case int64:
		return TypeInt64, true
	case float64:
		return TypeFloat64, true
	case string:
		return TypeString, true
	default:
		return 0, false
	}
}

// FormatDatum renders a datum the way plans print literals.
func FormatDatum(d Datum) string {
	switch v := d.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CompareData compares two datums of the same type and returns -1, 0, or 1.
// NULL sorts before any non-null value.
func CompareData(left, right Datum) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	switch l := left.(type) {
	case bool:
		r, ok := right.(bool)
		if !ok {
			return -1
		}
		if l == r {
			return 0
		}
		if !l {
			return -1
		}
		return 1
	case int32:
		if r, ok := right.(int32); ok {
			return compareInt64(int64(l), int64(r))
		}
		if r, ok := right.(int64); ok {
			return compareInt64(int64(l), r)
		}
		return -1
	case int64:
		if r, ok := right.(int64); ok {
			return compareInt64(l, r)
		}
		if r, ok := right.(int32); ok {
			return compareInt64(l, int64(r))
		}
		return -1
	case float64:
		r, ok := right.(float64)
		if !ok {
			return -1
		}
		if l < r {
			return -1
		} else if l > r {
			return 1
		}
		return 0
	case string:
		r, ok := right.(string)
		if !ok {
			return -1
		}
		if l < r {
			return -1
		} else if l > r {
			return 1
		}
		return 0
	default:
		return -1
	}
}

func compareInt64(l, r int64) int {
	if l < r {
		return -1
	} else if l > r {
		return 1
	}
	return 0
}
