// Package tablegen implements a parser for the subset of LLVM TableGen's
// textual record dump format needed to recover instruction encodings.
package tablegen

import (
	"fmt"
	"go/scanner"
	"strconv"
	"strings"

	"github.com/tablegen-tools/isagen/token"
)

// bailout is panicked to unwind the parser on the first fatal syntax
// error, mirroring the classic go/parser idiom: a single malformed
// record aborts the whole run and no partial AST is returned.
type bailout struct{}

type parser struct {
	fset     *token.FileSet
	file     *token.File
	lexemes  <-chan Lexeme
	interner *interner

	cur Lexeme

	errs scanner.ErrorList
}

// Parse parses a TableGen record dump and returns its Records AST.
// Parsing is fatal: the first syntax error aborts the run with a
// descriptive, file-positioned error and no partial AST is returned.
func Parse(fset *token.FileSet, filename string, src []byte) (recs *Records, err error) {
	if fset == nil {
		panic("tablegen.Parse: nil FileSet")
	}

	file := fset.AddFile(filename, -1, len(src))
	p := &parser{
		fset:     fset,
		file:     file,
		lexemes:  Lex(file, src),
		interner: newInterner(),
	}

	defer func() {
		if e := recover(); e != nil {
			if _, ok := e.(bailout); !ok {
				panic(e)
			}
		}
		p.errs.Sort()
		err = p.errs.Err()
		if err != nil {
			recs = nil
		}
	}()

	p.advance()
	recs = p.parseFile()
	return recs, err
}

func (p *parser) advance() {
	l, ok := <-p.lexemes
	if !ok {
		l = Lexeme{Token: EOF, Position: p.file.Pos(p.file.Size())}
	}
	if l.Token == Error {
		p.fatalAt(l.Position, l.Value)
	}
	p.cur = l
}

func (p *parser) pos() token.Position {
	return p.fset.Position(p.cur.Position)
}

func (p *parser) errorf(format string, args ...any) {
	p.errs.Add(p.pos(), fmt.Sprintf(format, args...))
}

func (p *parser) fatalAt(pos token.Pos, msg string) {
	p.errs.Add(p.fset.Position(pos), msg)
	panic(bailout{})
}

func (p *parser) fatal(format string, args ...any) {
	p.fatalAt(p.cur.Position, fmt.Sprintf(format, args...))
}

func (p *parser) expect(tok Token) Lexeme {
	if p.cur.Token != tok {
		p.fatal("expected %s, found %s %q", tok, p.cur.Token, p.cur.Value)
	}
	l := p.cur
	p.advance()
	return l
}

func (p *parser) at(tok Token) bool {
	return p.cur.Token == tok
}

func (p *parser) intern(s string) string {
	return p.interner.intern(s)
}

// parseFile implements File ::= Classes-header Class* Defs-header Def*.
func (p *parser) parseFile() *Records {
	p.expect(ClassesHeader)

	recs := &Records{}
	for p.at(KeywordClass) {
		recs.Classes = append(recs.Classes, p.parseClass())
	}

	p.expect(DefsHeader)

	for p.at(KeywordDef) {
		recs.Defs = append(recs.Defs, p.parseDef())
	}

	if !p.at(EOF) {
		p.fatal("unexpected %s %q after last def", p.cur.Token, p.cur.Value)
	}

	return recs
}

// parseClass implements
// Class ::= `class` Name ClassParams? `{` NamedDecl+ `}`.
func (p *parser) parseClass() *Class {
	pos := p.cur.Position
	p.expect(KeywordClass)
	name := p.intern(p.expect(Identifier).Value)

	c := &Class{Pos: pos, Name: name}
	if p.at(LAngle) {
		c.Params = p.parseClassParams()
	}

	p.expect(LBrace)
	c.Decls = append(c.Decls, p.parseNamedDecl())
	for !p.at(RBrace) {
		c.Decls = append(c.Decls, p.parseNamedDecl())
	}
	p.expect(RBrace)

	return c
}

// parseClassParams implements
// ClassParams ::= `<` ClassParam (`,` ClassParam)* `>`.
func (p *parser) parseClassParams() []ClassParam {
	p.expect(LAngle)
	var params []ClassParam
	for {
		ty := p.parseTypeSpec()
		name := p.intern(p.expect(Identifier).Value)
		params = append(params, ClassParam{Type: ty, Name: name})
		if p.at(Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(RAngle)
	return params
}

// parseDef implements Def ::= `def` Name `{` NamedDecl+ `}`.
func (p *parser) parseDef() *Def {
	pos := p.cur.Position
	p.expect(KeywordDef)
	name := p.intern(p.expect(Identifier).Value)

	d := &Def{Pos: pos, Name: name}
	p.expect(LBrace)
	d.Decls = append(d.Decls, p.parseNamedDecl())
	for !p.at(RBrace) {
		d.Decls = append(d.Decls, p.parseNamedDecl())
	}
	p.expect(RBrace)

	return d
}

// parseNamedDecl implements NamedDecl ::= DeclType Name `=` DeclItem `;`.
func (p *parser) parseNamedDecl() *NamedDecl {
	pos := p.cur.Position
	ty := p.parseTypeSpec()
	name := p.intern(p.expect(Identifier).Value)
	p.expect(Equals)
	val := p.parseValue(ty)
	p.expect(Semicolon)

	return &NamedDecl{Pos: pos, Type: ty, Name: name, Value: val}
}

// parseTypeSpec implements
// DeclType ∈ { bit, bits<N>, field bits<N>, string, int, dag, list<T>, ClassName }.
func (p *parser) parseTypeSpec() TypeSpec {
	switch p.cur.Token {
	case KeywordBit:
		p.advance()
		return TypeSpec{Kind: TyBit}
	case KeywordBits:
		p.advance()
		return TypeSpec{Kind: TyBits, Width: p.parseAngleWidth()}
	case KeywordField:
		p.advance()
		p.expect(KeywordBits)
		return TypeSpec{Kind: TyFieldBits, Width: p.parseAngleWidth()}
	case KeywordString:
		p.advance()
		return TypeSpec{Kind: TyString}
	case KeywordInt:
		p.advance()
		return TypeSpec{Kind: TyInt}
	case KeywordDag:
		p.advance()
		return TypeSpec{Kind: TyDag}
	case KeywordList:
		p.advance()
		p.expect(LAngle)
		elem := p.intern(p.cur.Value)
		p.parseTypeSpec()
		p.expect(RAngle)
		return TypeSpec{Kind: TyList, ElemType: elem}
	case Identifier:
		name := p.intern(p.cur.Value)
		p.advance()
		if p.at(LAngle) {
			p.skipBalancedAngles()
		}
		return TypeSpec{Kind: TyClass, ClassName: name}
	default:
		p.fatal("expected a type, found %s %q", p.cur.Token, p.cur.Value)
		panic("unreachable")
	}
}

func (p *parser) parseAngleWidth() int {
	p.expect(LAngle)
	tok := p.expect(Integer)
	p.expect(RAngle)
	n, err := strconv.Atoi(tok.Value)
	if err != nil {
		p.errorf("invalid bit width %q", tok.Value)
	}
	return n
}

// skipBalancedAngles consumes a `<...>` template-argument span without
// interpreting its contents, used for class-typed fields whose
// constructor arguments the core does not need (e.g. `GPR<5>`).
func (p *parser) skipBalancedAngles() {
	p.expect(LAngle)
	depth := 1
	for depth > 0 {
		switch p.cur.Token {
		case LAngle:
			depth++
		case RAngle:
			depth--
		case EOF:
			p.fatal("unterminated template argument list")
		}
		p.advance()
	}
}

// parseValue implements DeclItem, dispatching on the declared type.
func (p *parser) parseValue(ty TypeSpec) Value {
	if p.at(Unknown) {
		p.advance()
		return UnknownValue{}
	}
	if p.at(Bang) {
		return p.parseExprValue()
	}

	switch ty.Kind {
	case TyBit:
		return p.parseBitScalar()
	case TyBits, TyFieldBits:
		return p.parseBitsValue()
	case TyString:
		return StringValue(p.expect(String).Value)
	case TyInt:
		return p.parseIntValue()
	case TyDag:
		return p.parseDagValue()
	case TyList:
		return p.parseListValue()
	case TyClass:
		return p.parseGenericValue()
	default:
		return p.parseGenericValue()
	}
}

func (p *parser) parseBitScalar() Value {
	if p.at(Integer) {
		tok := p.expect(Integer)
		switch tok.Value {
		case "0":
			return BitValue{Kind: BitZero}
		case "1":
			return BitValue{Kind: BitOne}
		default:
			p.errorf("invalid bit literal %q", tok.Value)
			return BitValue{Kind: BitZero}
		}
	}
	return p.parseGenericValue()
}

func (p *parser) parseIntValue() Value {
	tok := p.expect(Integer)
	n, err := parseIntLiteral(tok.Value)
	if err != nil {
		p.errorf("invalid integer literal %q: %s", tok.Value, err)
	}
	return IntValue(n)
}

func parseIntLiteral(s string) (int64, error) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		n2, err2 := strconv.ParseUint(s, 0, 64)
		if err2 != nil {
			return 0, err
		}
		n = int64(n2)
	}
	if neg {
		n = -n
	}
	return n, nil
}

// parseBitsValue implements the brace-enclosed bit-vector literal form
// of DeclItem: each element is 0, 1, ?, a reference `Name{index}`, or a
// bare `Name`.
func (p *parser) parseBitsValue() Value {
	p.expect(LBrace)
	var bits []BitValue
	for !p.at(RBrace) {
		bits = append(bits, p.parseBitElement())
		if p.at(Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(RBrace)
	return BitsValue{Bits: bits}
}

func (p *parser) parseBitElement() BitValue {
	switch {
	case p.at(Unknown):
		p.advance()
		return BitValue{Kind: BitUnknownBit}
	case p.at(Integer):
		tok := p.expect(Integer)
		switch tok.Value {
		case "0":
			return BitValue{Kind: BitZero}
		case "1":
			return BitValue{Kind: BitOne}
		default:
			p.errorf("invalid bit element %q", tok.Value)
			return BitValue{Kind: BitZero}
		}
	case p.at(Identifier):
		name := p.intern(p.cur.Value)
		p.advance()
		if p.at(LBrace) {
			p.advance()
			idxTok := p.expect(Integer)
			idx, err := strconv.Atoi(idxTok.Value)
			if err != nil {
				p.errorf("invalid field bit index %q", idxTok.Value)
			}
			p.expect(RBrace)
			return BitValue{Kind: BitFieldRef, FieldName: name, FieldIndex: idx}
		}
		return BitValue{Kind: BitBareRef, FieldName: name}
	default:
		p.fatal("expected a bit element, found %s %q", p.cur.Token, p.cur.Value)
		panic("unreachable")
	}
}

// parseDagValue implements the DAG literal form used by
// OutOperandList/InOperandList: `(operator typeref:$name, ...)`. DAG
// items are parsed structurally but not otherwise evaluated.
func (p *parser) parseDagValue() Value {
	p.expect(LParen)
	operator := p.intern(p.expect(Identifier).Value)

	d := DagValue{Operator: operator}
	for !p.at(RParen) {
		typeRef := p.intern(p.expect(Identifier).Value)
		if p.at(LAngle) {
			p.skipBalancedAngles()
		}
		var name string
		if p.at(Colon) {
			p.advance()
			name = p.intern(p.expect(Identifier).Value)
			name = strings.TrimPrefix(name, "$")
		}
		d.Args = append(d.Args, DagArg{TypeRef: typeRef, Name: name})
		if p.at(Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(RParen)
	return d
}

// parseListValue implements the `[a, b, c]` list literal form.
func (p *parser) parseListValue() Value {
	p.expect(LBracket)
	var elems []Value
	for !p.at(RBracket) {
		elems = append(elems, p.parseGenericValue())
		if p.at(Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(RBracket)
	return ListValue{Elems: elems}
}

// parseExprValue collapses a `!op(...)` expression to its raw textual
// span; the core does not resolve DAG/bang-operator semantics.
func (p *parser) parseExprValue() Value {
	var raw strings.Builder
	p.expect(Bang)
	raw.WriteByte('!')
	raw.WriteString(p.expect(Identifier).Value)

	if p.at(LAngle) {
		raw.WriteString(p.captureBalancedAngles())
	}
	if p.at(LParen) {
		raw.WriteString(p.captureBalancedParens())
	}
	return ExprValue{Raw: raw.String()}
}

func (p *parser) captureBalancedAngles() string {
	var raw strings.Builder
	raw.WriteString(p.cur.Value)
	p.advance()
	depth := 1
	for depth > 0 {
		raw.WriteString(p.cur.Value)
		switch p.cur.Token {
		case LAngle:
			depth++
		case RAngle:
			depth--
		case EOF:
			p.fatal("unterminated expression")
		}
		p.advance()
	}
	return raw.String()
}

func (p *parser) captureBalancedParens() string {
	var raw strings.Builder
	raw.WriteString(p.cur.Value)
	p.advance()
	depth := 1
	for depth > 0 {
		raw.WriteString(p.cur.Value)
		switch p.cur.Token {
		case LParen:
			depth++
		case RParen:
			depth--
		case EOF:
			p.fatal("unterminated expression")
		}
		if depth > 0 {
			raw.WriteString(" ")
		}
		p.advance()
	}
	return raw.String()
}

// parseGenericValue handles the remaining DeclItem forms: string/int
// literals, bare references, and function-call-shaped expressions for
// class-typed fields.
func (p *parser) parseGenericValue() Value {
	switch p.cur.Token {
	case String:
		return StringValue(p.expect(String).Value)
	case Integer:
		tok := p.expect(Integer)
		n, err := parseIntLiteral(tok.Value)
		if err != nil {
			p.errorf("invalid integer literal %q: %s", tok.Value, err)
		}
		return IntValue(n)
	case Unknown:
		p.advance()
		return UnknownValue{}
	case LBrace:
		return p.parseBitsValue()
	case LBracket:
		return p.parseListValue()
	case Bang:
		return p.parseExprValue()
	case Identifier:
		name := p.intern(p.cur.Value)
		p.advance()
		if p.at(LAngle) || p.at(LParen) {
			var raw strings.Builder
			raw.WriteString(name)
			if p.at(LAngle) {
				raw.WriteString(p.captureBalancedAngles())
			}
			if p.at(LParen) {
				raw.WriteString(p.captureBalancedParens())
			}
			return ExprValue{Raw: raw.String()}
		}
		return Reference{Name: name}
	default:
		p.fatal("expected a value, found %s %q", p.cur.Token, p.cur.Value)
		panic("unreachable")
	}
}
