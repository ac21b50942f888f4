package sexpr

import "strings"

// NodeType represents the kind of a parsed node.
type NodeType int

const (
	NodeSymbol NodeType = iota
	NodeString
	NodeInt
	NodeFloat
	NodeBool
	NodeNull
	NodeColumn // #n column reference
	NodeList   // (...)
	NodeVector // [...]
)

// Node is a parsed value of the fixture DSL.
type Node struct {
	Type  NodeType
	Line  int
	Col   int
	Value string // symbols, strings, and the textual form of numbers
	Int   int64  // NodeInt and NodeColumn
	Float float64
	Bool  bool
	Nodes []Node // NodeList and NodeVector
}

// String returns the node in source syntax.
func (n Node) String() string {
	switch n.Type {
	case NodeList:
		parts := make([]string, len(n.Nodes))
		for i, sub := range n.Nodes {
			parts[i] = sub.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	case NodeVector:
		parts := make([]string, len(n.Nodes))
		for i, sub := range n.Nodes {
			parts[i] = sub.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case NodeString:
		return `"` + n.Value + `"`
	default:
		return n.Value
	}
}
