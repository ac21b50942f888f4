// Package dataflow holds the shared value domain and configuration for the
// Oxbow relational optimizer: scalar datums and their types, the relation
// type (column types plus unique-key sets) attached to every plan node, and
// the limits every recursive component observes.
package dataflow

import (
	"fmt"
	"sort"
	"strings"
)

// ColumnType is the type of a single relation column.
type ColumnType struct {
	Type     ScalarType
	Nullable bool
}

// String renders the column type, with '?' marking nullability.
func (c ColumnType) String() string {
	if c.Nullable {
		return c.Type.String() + "?"
	}
	return c.Type.String()
}

// Col is shorthand for a non-null column type.
func Col(t ScalarType) ColumnType { return ColumnType{Type: t} }

// NullableCol is shorthand for a nullable column type.
func NullableCol(t ScalarType) ColumnType { return ColumnType{Type: t, Nullable: true} }

// Union returns the common type of two columns, nullable if either is.
// The scalar types must agree.
func (c ColumnType) Union(other ColumnType) (ColumnType, error) {
	if c.Type != other.Type {
		return ColumnType{}, fmt.Errorf("cannot union %s with %s", c, other)
	}
	return ColumnType{Type: c.Type, Nullable: c.Nullable || other.Nullable}, nil
}

// RelationType describes the shape of a relation: the ordered column types
// and zero or more unique-key sets. Each key set is an ascending list of
// column positions guaranteed to uniquely identify rows. Key sets are kept
// minimal: no set is a superset of another.
type RelationType struct {
	Columns []ColumnType
	keys    [][]int
}

// NewRelationType creates a relation type with no known keys.
func NewRelationType(columns []ColumnType) RelationType {
	return RelationType{Columns: columns}
}

// Arity returns the number of columns.
func (t RelationType) Arity() int { return len(t.Columns) }

// Keys returns the unique-key sets. Callers must not mutate the result.
func (t RelationType) Keys() [][]int { return t.keys }

// WithKey returns a copy of the type with the key set added. The key is
// sorted and deduplicated; redundant supersets of it already present are
// pruned, and the key is dropped if a subset is already present.
func (t RelationType) WithKey(key []int) RelationType {
	key = normalizeKey(key)
	for _, existing := range t.keys {
		if isSubset(existing, key) {
			// An equal or stronger key is already known.
			return t
		}
	}
	kept := make([][]int, 0, len(t.keys)+1)
	for _, existing := range t.keys {
		if !isSubset(key, existing) {
			kept = append(kept, existing)
		}
	}
	kept = append(kept, key)
	sortKeys(kept)
	out := t
	out.keys = kept
	return out
}

// WithKeys adds each key set in turn.
func (t RelationType) WithKeys(keys [][]int) RelationType {
	for _, k := range keys {
		t = t.WithKey(k)
	}
	return t
}

// WithoutKeys returns a copy with no key sets.
func (t RelationType) WithoutKeys() RelationType {
	t.keys = nil
	return t
}

// Validate checks that every key column indexes a real column.
func (t RelationType) Validate() error {
	for _, key := range t.keys {
		for _, c := range key {
			if c < 0 || c >= len(t.Columns) {
				return &MalformedPlanError{
					Reason: fmt.Sprintf("key column %d out of range for %d columns", c, len(t.Columns)),
				}
			}
		}
	}
	return nil
}

// String renders the type the way plan annotations do:
//
//	(Int32?, Int64), keys ((0), (1))
func (t RelationType) String() string {
	var b strings.Builder
	b.WriteString(FormatColumnTypes(t.Columns))
	b.WriteString(", keys ")
	b.WriteString(FormatKeys(t.keys))
	return b.String()
}

// FormatColumnTypes renders "(Int32?, Int64)".
func FormatColumnTypes(columns []ColumnType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	b.WriteByte(')')
	return b.String()
}

// FormatKeys renders "((0), (1, 2))"; no keys renders as "()".
func FormatKeys(keys [][]int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, key := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, c := range key {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%d", c)
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String()
}

func normalizeKey(key []int) []int {
	out := make([]int, 0, len(key))
	seen := make(map[int]bool, len(key))
	for _, c := range key {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Ints(out)
	return out
}

// isSubset reports whether a ⊆ b; both must be sorted ascending.
func isSubset(a, b []int) bool {
	i := 0
	for _, c := range a {
		for i < len(b) && b[i] < c {
			i++
		}
		if i >= len(b) || b[i] != c {
			return false
		}
		i++
	}
	return true
}

// sortKeys orders key sets shortest-first, then lexicographically, so that
// rendered output is deterministic.
func sortKeys(keys [][]int) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
}
