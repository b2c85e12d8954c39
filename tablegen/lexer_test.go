package tablegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablegen-tools/isagen/token"
)

func collectLexemes(t *testing.T, src string) []Lexeme {
	t.Helper()
	fset := token.NewFileSet()
	file := fset.AddFile("test.td", -1, len(src))
	var out []Lexeme
	for lx := range Lex(file, []byte(src)) {
		out = append(out, lx)
	}
	return out
}

func tokens(lexemes []Lexeme) []Token {
	out := make([]Token, len(lexemes))
	for i, lx := range lexemes {
		out[i] = lx.Token
	}
	return out
}

func TestLexerPunctuationAndKeywords(t *testing.T) {
	lexemes := collectLexemes(t, `class Foo<bits<5> op> { field bits<5> Bar = {0,1,?}; }`)
	require.Equal(t, []Token{
		KeywordClass, Identifier, LAngle, KeywordBits, LAngle, Integer, RAngle, Identifier, RAngle,
		LBrace, KeywordField, KeywordBits, LAngle, Integer, RAngle, Identifier, Equals,
		LBrace, Integer, Comma, Integer, Comma, Unknown, RBrace, Semicolon, RBrace,
	}, tokens(lexemes))
}

func TestLexerIdentifierWithDollar(t *testing.T) {
	lexemes := collectLexemes(t, `RVInst:$rd`)
	require.Equal(t, []Token{Identifier, Colon, Identifier}, tokens(lexemes))
	require.Equal(t, "$rd", lexemes[2].Value)
}

func TestLexerHeaderLine(t *testing.T) {
	lexemes := collectLexemes(t, "------------- Classes -------------\n------------- Defs -------------\n")
	require.Equal(t, []Token{ClassesHeader, DefsHeader}, tokens(lexemes))
}

func TestLexerMalformedHeaderEmitsError(t *testing.T) {
	lexemes := collectLexemes(t, "----- Nonsense -----\n")
	require.Len(t, lexemes, 1)
	require.Equal(t, Error, lexemes[0].Token)
}

func TestLexerNegativeAndHexIntegers(t *testing.T) {
	lexemes := collectLexemes(t, `-4 0x7F 0b1010`)
	require.Equal(t, []Token{Integer, Integer, Integer}, tokens(lexemes))
	require.Equal(t, "-4", lexemes[0].Value)
	require.Equal(t, "0x7F", lexemes[1].Value)
	require.Equal(t, "0b1010", lexemes[2].Value)
}

func TestLexerLineComment(t *testing.T) {
	lexemes := collectLexemes(t, "def Foo {} // trailing comment\ndef Bar {}")
	require.Equal(t, []Token{
		KeywordDef, Identifier, LBrace, RBrace,
		KeywordDef, Identifier, LBrace, RBrace,
	}, tokens(lexemes))
}
