package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-justsh/justsh/lexer"
)

func tokenize(t *testing.T, src string) []lexer.Token {
	t.Helper()
	lx := lexer.New(lexer.Preprocess(src))
	var toks []lexer.Token
	for {
		tok, err := lx.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Type == lexer.EOF {
			break
		}
	}
	return toks
}

func TestLexAssignment(t *testing.T) {
	toks := tokenize(t, "name := \"value\"\n")
	require.Equal(t, lexer.IDENT, toks[0].Type)
	require.Equal(t, "name", toks[0].Value)
	require.Equal(t, lexer.COLONEQ, toks[1].Type)
	require.Equal(t, lexer.STRING, toks[2].Type)
	require.Equal(t, "value", toks[2].Value)
}

func TestLexRecipeHeader(t *testing.T) {
	toks := tokenize(t, "build: clean test\n")
	types := []lexer.TokenType{}
	for _, tok := range toks {
		if tok.Type == lexer.EOF {
			break
		}
		types = append(types, tok.Type)
	}
	require.Equal(t, []lexer.TokenType{
		lexer.IDENT, lexer.COLON, lexer.IDENT, lexer.IDENT, lexer.NEWLINE,
	}, types)
}

func TestLexComparisonOperators(t *testing.T) {
	toks := tokenize(t, "if a == b {} else {}\n")
	var found bool
	for _, tok := range toks {
		if tok.Type == lexer.EQ {
			found = true
		}
	}
	require.True(t, found)
}

func TestLexDoubleQuoteEscapes(t *testing.T) {
	toks := tokenize(t, `x := "a\nb"` + "\n")
	require.Equal(t, "a\nb", toks[2].Value)
}

func TestLexTripleQuoteDedent(t *testing.T) {
	src := "x := '''\n    first\n    second\n    '''\n"
	toks := tokenize(t, src)
	require.Equal(t, "first\nsecond\n", toks[2].Value)
}

func TestLineContinuationJoinsLines(t *testing.T) {
	pre := lexer.Preprocess("a := \"x\" + \\\n    \"y\"\n")
	require.NotContains(t, pre, "\\\n")
}

func TestReadIndentedBlockStopsAtDedent(t *testing.T) {
	src := "recipe:\n    echo one\n    echo two\nnext := 1\n"
	pre := lexer.Preprocess(src)
	lx := lexer.New(pre)
	// Consume header tokens through the NEWLINE ending the recipe header.
	for {
		tok, err := lx.Next()
		require.NoError(t, err)
		if tok.Type == lexer.NEWLINE {
			break
		}
	}
	lines := lx.ReadIndentedBlock()
	require.Len(t, lines, 2)
	require.Equal(t, "echo one", lines[0].Content)
	require.Equal(t, "echo two", lines[1].Content)

	tok, err := lx.Next()
	require.NoError(t, err)
	require.Equal(t, lexer.IDENT, tok.Type)
	require.Equal(t, "next", tok.Value)
}
