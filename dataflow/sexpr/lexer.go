// Package sexpr parses the s-expression DSL used to author optimizer
// fixtures: source declarations ("defsource") and relation expressions
// ("get", "join", "map", ...). The builder turns parsed nodes into IR.
package sexpr

import (
	"fmt"
	"strings"
	"unicode"
)

// atomChars are the characters allowed in bare atoms, which cover operator
// names, source names, numbers, and column references like #0.
const atomChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789.*+!-_?$%&=<>/#"

// Lexer tokenizes fixture-DSL input.
type Lexer struct {
	input   string
	pos     int
	line    int
	col     int
	tokens  []Token
	current int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		line:  1,
		col:   1,
	}
}

// Lex tokenizes the entire input.
func (l *Lexer) Lex() error {
	for l.pos < len(l.input) {
		l.skipWhitespaceAndComments()
		if l.pos >= len(l.input) {
			break
		}

		startLine := l.line
		startCol := l.col

		ch := l.peek()
		switch ch {
		case '"':
			str, err := l.readString()
			if err != nil {
				return err
			}
			l.tokens = append(l.tokens, Token{Type: TokenString, Value: str, Line: startLine, Col: startCol})
		case '(':
			l.advance()
			l.tokens = append(l.tokens, Token{Type: TokenLeftParen, Line: startLine, Col: startCol})
		case ')':
			l.advance()
			l.tokens = append(l.tokens, Token{Type: TokenRightParen, Line: startLine, Col: startCol})
		case '[':
			l.advance()
			l.tokens = append(l.tokens, Token{Type: TokenLeftBracket, Line: startLine, Col: startCol})
		case ']':
			l.advance()
			l.tokens = append(l.tokens, Token{Type: TokenRightBracket, Line: startLine, Col: startCol})
		default:
			atom := l.readAtom()
			if atom == "" {
				return fmt.Errorf("unexpected character '%c' at %d:%d", ch, l.line, l.col)
			}
			l.tokens = append(l.tokens, Token{Type: TokenAtom, Value: atom, Line: startLine, Col: startCol})
		}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Line: l.line, Col: l.col})
	return nil
}

// NextToken returns the next token and advances.
func (l *Lexer) NextToken() Token {
	if l.current >= len(l.tokens) {
		return Token{Type: TokenEOF, Line: l.line, Col: l.col}
	}
	token := l.tokens[l.current]
	l.current++
	return token
}

// PeekToken returns the next token without advancing.
func (l *Lexer) PeekToken() Token {
	if l.current >= len(l.tokens) {
		return Token{Type: TokenEOF, Line: l.line, Col: l.col}
	}
	return l.tokens[l.current]
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

// skipWhitespaceAndComments skips whitespace, commas, and ';' comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.peek()
		if unicode.IsSpace(rune(ch)) || ch == ',' {
			l.advance()
		} else if ch == ';' {
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		} else {
			break
		}
	}
}

// readString reads a double-quoted string literal.
func (l *Lexer) readString() (string, error) {
	var result strings.Builder
	l.advance() // skip opening quote

	for l.pos < len(l.input) {
		ch := l.peek()
		if ch == '"' {
			l.advance()
			return result.String(), nil
		}
		if ch == '\\' {
			l.advance()
			if l.pos >= len(l.input) {
				return "", fmt.Errorf("unexpected end of input in string at %d:%d", l.line, l.col)
			}
			switch l.peek() {
			case 't':
				result.WriteByte('\t')
			case 'r':
				result.WriteByte('\r')
			case 'n':
				result.WriteByte('\n')
			case '"':
				result.WriteByte('"')
			case '\\':
				result.WriteByte('\\')
			default:
				return "", fmt.Errorf("unknown escape '\\%c' at %d:%d", l.peek(), l.line, l.col)
			}
			l.advance()
			continue
		}
		result.WriteByte(ch)
		l.advance()
	}
	return "", fmt.Errorf("unterminated string at %d:%d", l.line, l.col)
}

// readAtom reads a bare atom.
func (l *Lexer) readAtom() string {
	var result strings.Builder
	for l.pos < len(l.input) {
		ch := l.peek()
		if strings.IndexByte(atomChars, ch) < 0 {
			break
		}
		result.WriteByte(ch)
		l.advance()
	}
	return result.String()
}
