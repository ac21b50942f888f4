package sexpr

import (
	"testing"
)

func TestLexerTokens(t *testing.T) {
	lexer := NewLexer(`(get users)`)
	if err := lexer.Lex(); err != nil {
		t.Fatalf("Lex: %v", err)
	}

	expected := []Token{
		{Type: TokenLeftParen, Line: 1, Col: 1},
		{Type: TokenAtom, Value: "get", Line: 1, Col: 2},
		{Type: TokenAtom, Value: "users", Line: 1, Col: 6},
		{Type: TokenRightParen, Line: 1, Col: 11},
		{Type: TokenEOF, Line: 1, Col: 12},
	}
	for i, want := range expected {
		got := lexer.NextToken()
		if got != want {
			t.Errorf("token %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestLexerSkipsCommentsAndCommas(t *testing.T) {
	lexer := NewLexer("; header comment\n[1, 2] ; trailing\n")
	if err := lexer.Lex(); err != nil {
		t.Fatalf("Lex: %v", err)
	}

	var values []string
	var types []TokenType
	for {
		tok := lexer.NextToken()
		if tok.Type == TokenEOF {
			break
		}
		types = append(types, tok.Type)
		values = append(values, tok.Value)
	}
	wantTypes := []TokenType{TokenLeftBracket, TokenAtom, TokenAtom, TokenRightBracket}
	if len(types) != len(wantTypes) {
		t.Fatalf("got %d tokens, want %d", len(types), len(wantTypes))
	}
	for i := range wantTypes {
		if types[i] != wantTypes[i] {
			t.Errorf("token %d type = %v, want %v", i, types[i], wantTypes[i])
		}
	}
	if values[1] != "1" || values[2] != "2" {
		t.Errorf("atom values = %v, want 1 and 2", values[1:3])
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", `"hello"`, "hello"},
		{"escapes", `"a\tb\nc\"d"`, "a\tb\nc\"d"},
		{"backslash", `"a\\b"`, `a\b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(tt.input)
			if err := lexer.Lex(); err != nil {
				t.Fatalf("Lex: %v", err)
			}
			tok := lexer.NextToken()
			if tok.Type != TokenString || tok.Value != tt.expected {
				t.Errorf("token = %+v, want string %q", tok, tt.expected)
			}
		})
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated string", `"abc`},
		{"unknown escape", `"a\qb"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(tt.input)
			if err := lexer.Lex(); err == nil {
				t.Error("expected lex error")
			}
		})
	}
}

func TestLexerColumnReferences(t *testing.T) {
	lexer := NewLexer("#0 #12")
	if err := lexer.Lex(); err != nil {
		t.Fatalf("Lex: %v", err)
	}
	first := lexer.NextToken()
	second := lexer.NextToken()
	if first.Value != "#0" || second.Value != "#12" {
		t.Errorf("atoms = %q, %q, want #0 and #12", first.Value, second.Value)
	}
}
