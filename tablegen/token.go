package tablegen

// Token identifies the lexical class of a Lexeme.
type Token int

const (
	Invalid Token = iota
	EOF
	Error

	Identifier // Name, ClassName, field name
	Integer    // 123, 0x7F, -4
	String     // "text", including multiline
	Bit01      // not produced by Lex, which emits a 0 or 1 bit literal as Integer
	Unknown    // the `?` don't-care/uninitialized marker

	ClassesHeader // ------------- Classes -------------
	DefsHeader    // ------------- Defs -------------

	KeywordClass
	KeywordDef
	KeywordBit
	KeywordBits
	KeywordField
	KeywordString
	KeywordInt
	KeywordDag
	KeywordList

	LBrace    // {
	RBrace    // }
	LAngle    // <
	RAngle    // >
	LParen    // (
	RParen    // )
	LBracket  // [
	RBracket  // ]
	Comma     // ,
	Semicolon // ;
	Equals    // =
	Colon     // :
	Bang      // ! (start of a !op(...) expression)
)

var tokenNames = map[Token]string{
	Invalid:       "INVALID",
	EOF:           "EOF",
	Error:         "ERROR",
	Identifier:    "identifier",
	Integer:       "integer",
	String:        "string",
	Bit01:         "bit",
	Unknown:       "?",
	ClassesHeader: "Classes-header",
	DefsHeader:    "Defs-header",
	KeywordClass:  "class",
	KeywordDef:    "def",
	KeywordBit:    "bit",
	KeywordBits:   "bits",
	KeywordField:  "field",
	KeywordString: "string",
	KeywordInt:    "int",
	KeywordDag:    "dag",
	KeywordList:   "list",
	LBrace:        "{",
	RBrace:        "}",
	LAngle:        "<",
	RAngle:        ">",
	LParen:        "(",
	RParen:        ")",
	LBracket:      "[",
	RBracket:      "]",
	Comma:         ",",
	Semicolon:     ";",
	Equals:        "=",
	Colon:         ":",
	Bang:          "!",
}

func (t Token) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN_TOKEN"
}

var keywords = map[string]Token{
	"class":  KeywordClass,
	"def":    KeywordDef,
	"bit":    KeywordBit,
	"bits":   KeywordBits,
	"field":  KeywordField,
	"string": KeywordString,
	"int":    KeywordInt,
	"dag":    KeywordDag,
	"list":   KeywordList,
}
