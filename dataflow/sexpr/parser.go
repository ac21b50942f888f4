package sexpr

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	intPattern    = regexp.MustCompile(`^[+-]?\d+$`)
	floatPattern  = regexp.MustCompile(`^[+-]?\d+\.\d+([eE][+-]?\d+)?$`)
	columnPattern = regexp.MustCompile(`^#(\d+)$`)
)

// Parser parses tokens into nodes.
type Parser struct {
	lexer *Lexer
}

// NewParser creates a parser over a lexed input.
func NewParser(lexer *Lexer) *Parser {
	return &Parser{lexer: lexer}
}

// Parse lexes and parses a single expression.
func Parse(input string) (*Node, error) {
	lexer := NewLexer(input)
	if err := lexer.Lex(); err != nil {
		return nil, err
	}
	parser := NewParser(lexer)
	node, err := parser.readNode()
	if err != nil {
		return nil, err
	}
	if tok := lexer.PeekToken(); tok.Type != TokenEOF {
		return nil, fmt.Errorf("trailing input at %d:%d", tok.Line, tok.Col)
	}
	return node, nil
}

// ParseAll lexes and parses every expression in the input.
func ParseAll(input string) ([]Node, error) {
	lexer := NewLexer(input)
	if err := lexer.Lex(); err != nil {
		return nil, err
	}
	parser := NewParser(lexer)

	var nodes []Node
	for {
		if parser.lexer.PeekToken().Type == TokenEOF {
			return nodes, nil
		}
		node, err := parser.readNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
}

func (p *Parser) readNode() (*Node, error) {
	token := p.lexer.PeekToken()

	switch token.Type {
	case TokenEOF:
		return nil, fmt.Errorf("unexpected EOF at %d:%d", token.Line, token.Col)

	case TokenString:
		p.lexer.NextToken()
		return &Node{Type: NodeString, Value: token.Value, Line: token.Line, Col: token.Col}, nil

	case TokenAtom:
		p.lexer.NextToken()
		return p.classifyAtom(token)

	case TokenLeftParen:
		return p.readSequence(NodeList, TokenRightParen, ")")

	case TokenLeftBracket:
		return p.readSequence(NodeVector, TokenRightBracket, "]")

	case TokenRightParen, TokenRightBracket:
		return nil, fmt.Errorf("unexpected closing delimiter at %d:%d", token.Line, token.Col)

	default:
		return nil, fmt.Errorf("unexpected token %s", token)
	}
}

func (p *Parser) readSequence(typ NodeType, closing TokenType, closer string) (*Node, error) {
	open := p.lexer.NextToken()
	node := &Node{Type: typ, Line: open.Line, Col: open.Col}
	for {
		token := p.lexer.PeekToken()
		if token.Type == TokenEOF {
			return nil, fmt.Errorf("missing %q for collection opened at %d:%d", closer, open.Line, open.Col)
		}
		if token.Type == closing {
			p.lexer.NextToken()
			return node, nil
		}
		sub, err := p.readNode()
		if err != nil {
			return nil, err
		}
		node.Nodes = append(node.Nodes, *sub)
	}
}

func (p *Parser) classifyAtom(token Token) (*Node, error) {
	node := &Node{Line: token.Line, Col: token.Col, Value: token.Value}
	switch {
	case token.Value == "true":
		node.Type, node.Bool = NodeBool, true
	case token.Value == "false":
		node.Type, node.Bool = NodeBool, false
	case token.Value == "null":
		node.Type = NodeNull
	case columnPattern.MatchString(token.Value):
		ord, err := strconv.ParseInt(columnPattern.FindStringSubmatch(token.Value)[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad column reference %q at %d:%d", token.Value, token.Line, token.Col)
		}
		node.Type, node.Int = NodeColumn, ord
	case intPattern.MatchString(token.Value):
		v, err := strconv.ParseInt(token.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q at %d:%d", token.Value, token.Line, token.Col)
		}
		node.Type, node.Int = NodeInt, v
	case floatPattern.MatchString(token.Value):
		v, err := strconv.ParseFloat(token.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float %q at %d:%d", token.Value, token.Line, token.Col)
		}
		node.Type, node.Float = NodeFloat, v
	default:
		node.Type = NodeSymbol
	}
	return node, nil
}
