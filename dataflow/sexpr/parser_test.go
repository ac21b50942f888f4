package sexpr

import (
	"reflect"
	"testing"
)

func TestParseAtoms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Node
	}{
		{
			name:     "symbol",
			input:    "get",
			expected: Node{Type: NodeSymbol, Value: "get", Line: 1, Col: 1},
		},
		{
			name:     "integer",
			input:    "42",
			expected: Node{Type: NodeInt, Value: "42", Int: 42, Line: 1, Col: 1},
		},
		{
			name:     "negative integer",
			input:    "-7",
			expected: Node{Type: NodeInt, Value: "-7", Int: -7, Line: 1, Col: 1},
		},
		{
			name:     "float",
			input:    "3.25",
			expected: Node{Type: NodeFloat, Value: "3.25", Float: 3.25, Line: 1, Col: 1},
		},
		{
			name:     "bool true",
			input:    "true",
			expected: Node{Type: NodeBool, Value: "true", Bool: true, Line: 1, Col: 1},
		},
		{
			name:     "null",
			input:    "null",
			expected: Node{Type: NodeNull, Value: "null", Line: 1, Col: 1},
		},
		{
			name:     "column reference",
			input:    "#3",
			expected: Node{Type: NodeColumn, Value: "#3", Int: 3, Line: 1, Col: 1},
		},
		{
			name:     "string",
			input:    `"hi"`,
			expected: Node{Type: NodeString, Value: "hi", Line: 1, Col: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !reflect.DeepEqual(*node, tt.expected) {
				t.Errorf("node = %+v, want %+v", *node, tt.expected)
			}
		})
	}
}

func TestParseCollections(t *testing.T) {
	node, err := Parse("(project (get t) [0 2])")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if node.Type != NodeList || len(node.Nodes) != 3 {
		t.Fatalf("node = %+v, want 3-element list", node)
	}
	if node.Nodes[0].Value != "project" {
		t.Errorf("head = %q, want project", node.Nodes[0].Value)
	}
	if inner := node.Nodes[1]; inner.Type != NodeList || len(inner.Nodes) != 2 {
		t.Errorf("inner = %+v, want 2-element list", inner)
	}
	if vec := node.Nodes[2]; vec.Type != NodeVector || len(vec.Nodes) != 2 {
		t.Errorf("vector = %+v, want 2-element vector", vec)
	}
	if got := node.String(); got != "(project (get t) [0 2])" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseAllMultipleForms(t *testing.T) {
	nodes, err := ParseAll(`
		(defsource t [int64] [[0]])
		; a plan
		(get t)
	`)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
	if nodes[0].Nodes[0].Value != "defsource" || nodes[1].Nodes[0].Value != "get" {
		t.Errorf("forms = %s, %s", nodes[0], nodes[1])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed list", "(get t"},
		{"unclosed vector", "[1 2"},
		{"stray closer", ")"},
		{"mismatched closer inside", "(get t]"},
		{"trailing input", "(get t) extra"},
		{"empty input", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}
