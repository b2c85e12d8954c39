// Package emit renders an ISADescriptor and its compiled byte-trie
// decoder into a Go source file: one struct per mnemonic, plus
// DisassembleInstruction/AssembleInstruction functions built on
// bytetrie and bitfield, and a PPInstruction function built on asmfmt.
package emit

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"sort"
	"strings"
	"text/template"

	"github.com/tablegen-tools/isagen/bytetrie"
	"github.com/tablegen-tools/isagen/isa"
)

// Generate writes pkg-qualified Go source declaring the instruction
// sum type and its decode/encode/pretty-print surface for desc and
// trie to w. payloadTypes supplies, per isa.OperandType, the target Go
// type and decode/encode wrapper expressions an operand's raw bitfield
// value should be passed through; an OperandType absent from
// payloadTypes is rendered as a plain uint64 field. The source is
// canonicalized with go/format.Source before being written, so a
// malformed template renders a Go error, not malformed output.
func Generate(w io.Writer, pkg string, desc *isa.ISADescriptor, trie *bytetrie.Trie, payloadTypes map[isa.OperandType]isa.PayloadType) error {
	data, err := buildTemplateData(pkg, desc, trie, payloadTypes)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := sourceTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("emit: rendering template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("emit: formatting generated source: %w", err)
	}

	if _, err := w.Write(formatted); err != nil {
		return fmt.Errorf("emit: writing output: %w", err)
	}
	return nil
}

// WriteDepFile writes a `.d`-style make dependency line naming the
// TableGen source(s) the generated file in outPath depends on, so a
// build system can re-run Generate when sources change.
func WriteDepFile(w io.Writer, outPath string, sources []string) error {
	_, err := fmt.Fprintf(w, "%s: %s\n", outPath, strings.Join(sources, " "))
	return err
}

type templateData struct {
	Package         string
	Instructions    []instructionData
	HasInstructions bool
	TrieLiteral     string
	TriePayloads    string
	TrieWidth       int
	InsnWidthBits   int
	LittleEndian    bool
}

type instructionData struct {
	TypeName  string
	Mnemonic  string
	AsmString string
	Operands  []operandData
}

type operandData struct {
	FieldName     string
	Name          string
	GoType        string
	DecodeTag     string
	ChunksLiteral string

	// DecodeExpr is the full right-hand-side expression assigned to the
	// field during decode (the raw bitfield.FieldFromWord call, wrapped
	// in the operand's PayloadType.DecodeWrap if one is configured).
	DecodeExpr string
	// RawValueExpr yields the field's underlying uint64 for encoding and
	// for pretty-printing (the field itself, or PayloadType.EncodeUnwrap
	// applied to it).
	RawValueExpr string
}

func buildTemplateData(pkg string, desc *isa.ISADescriptor, trie *bytetrie.Trie, payloadTypes map[isa.OperandType]isa.PayloadType) (*templateData, error) {
	insts := desc.NonPseudoInstructions()
	sort.Slice(insts, func(i, j int) bool { return insts[i].Mnemonic < insts[j].Mnemonic })

	payloadsLiteral, err := anySliceLiteral(trie.Payloads)
	if err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}

	width := desc.InsnWidthBits
	if width == 0 {
		width = trie.Width
	}

	data := &templateData{
		Package:       pkg,
		TrieLiteral:   int32SliceLiteral(trie.Bytes),
		TriePayloads:  payloadsLiteral,
		TrieWidth:     trie.Width,
		InsnWidthBits: width,
		LittleEndian:  desc.LittleEndian,
	}

	for _, inst := range insts {
		id := instructionData{
			TypeName:  exportedName(inst.Mnemonic),
			Mnemonic:  inst.Mnemonic,
			AsmString: inst.AsmString,
		}
		for _, op := range inst.Operands() {
			fieldName := exportedName(op.Name)
			goType := "uint64"
			rawExpr := fmt.Sprintf("bitfield.FieldFromWord(word, decodeTrieWidth, []isa.OperandChunk{ %s })", chunksLiteral(op.Chunks))
			decodeExpr := rawExpr
			rawValueExpr := fmt.Sprintf("i.%s", fieldName)
			if pt, ok := payloadTypes[op.Type]; ok {
				if pt.TargetType != "" {
					goType = pt.TargetType
				}
				if pt.DecodeWrap != "" {
					decodeExpr = fmt.Sprintf(pt.DecodeWrap, rawExpr)
				}
				if pt.EncodeUnwrap != "" {
					rawValueExpr = fmt.Sprintf(pt.EncodeUnwrap, rawValueExpr)
				}
			}
			id.Operands = append(id.Operands, operandData{
				FieldName:     fieldName,
				Name:          op.Name,
				GoType:        goType,
				DecodeTag:     string(op.Type),
				ChunksLiteral: chunksLiteral(op.Chunks),
				DecodeExpr:    decodeExpr,
				RawValueExpr:  rawValueExpr,
			})
		}
		data.Instructions = append(data.Instructions, id)
	}
	data.HasInstructions = len(data.Instructions) > 0

	return data, nil
}

func exportedName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func int32SliceLiteral(vals []int32) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

// anySliceLiteral renders a bytetrie.Trie's Payloads as Go literals.
// The reference emitter only supports string-tagged tries (the
// mnemonic strings cmd/isagen's Entry.Payload values always are); any
// other payload type is a caller error, not something to silently
// stringify.
func anySliceLiteral(payloads []any) (string, error) {
	parts := make([]string, len(payloads))
	for i, p := range payloads {
		s, ok := p.(string)
		if !ok {
			return "", fmt.Errorf("payload %d is %T, not string", i, p)
		}
		parts[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(parts, ", "), nil
}

func chunksLiteral(chunks []isa.OperandChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("{InstrBit: %d, OperandBit: %d, Len: %d}", c.InstrBit, c.OperandBit, c.Len)
	}
	return strings.Join(parts, ", ")
}

var sourceTemplate = template.Must(template.New("isagen").Parse(`// Code generated by isagen. DO NOT EDIT.

package {{.Package}}

import (
	"fmt"

	"github.com/tablegen-tools/isagen/bytetrie"
{{- if .HasInstructions}}
	"github.com/tablegen-tools/isagen/asmfmt"
	"github.com/tablegen-tools/isagen/bitfield"
	"github.com/tablegen-tools/isagen/isa"
{{- end}}
)

// Instruction is the set of decodable instruction types in this ISA.
type Instruction interface {
	Mnemonic() string
}

{{range .Instructions}}
// {{.TypeName}} is the decoded form of the {{.Mnemonic}} instruction.
type {{.TypeName}} struct {
{{- range .Operands}}
	{{.FieldName}} {{.GoType}} // {{.Name}} ({{.DecodeTag}})
{{- end}}
}

// Mnemonic returns the instruction mnemonic.
func (i *{{.TypeName}}) Mnemonic() string { return {{printf "%q" .Mnemonic}} }

func decode{{.TypeName}}(word uint64) *{{.TypeName}} {
	i := &{{.TypeName}}{}
	{{- range .Operands}}
	i.{{.FieldName}} = {{.DecodeExpr}}
	{{- end}}
	return i
}

func encode{{.TypeName}}(i *{{.TypeName}}) uint64 {
	return bitfield.AssembleBits(0, decodeTrieWidth, []bitfield.OperandValue{
	{{- range .Operands}}
		{Value: {{.RawValueExpr}}, Chunks: []isa.OperandChunk{ {{.ChunksLiteral}} }},
	{{- end}}
	})
}

func ppInstruction{{.TypeName}}(i *{{.TypeName}}) (string, error) {
	return asmfmt.Format({{printf "%q" .AsmString}}, []asmfmt.Operand{
	{{- range .Operands}}
		{Name: {{printf "%q" .Name}}, Value: asmfmt.FormatUint({{.RawValueExpr}})},
	{{- end}}
	})
}
{{end}}

var decodeTrie = &bytetrie.Trie{
	Bytes:    []int32{ {{.TrieLiteral}} },
	Payloads: []any{ {{.TriePayloads}} },
	Width:    {{.TrieWidth}},
}

const decodeTrieWidth = {{.InsnWidthBits}}
const decodeLittleEndian = {{.LittleEndian}}

// DisassembleInstruction decodes the fixed-width instruction at the
// start of data. ok is false if no instruction pattern matches
// data; consumed is still the number of bytes Decode examined.
func DisassembleInstruction(data []byte) (consumed int, inst Instruction, ok bool) {
	{{- if .HasInstructions}}
	consumed, payload, matched := decodeTrie.Decode(data)
	if !matched {
		return consumed, nil, false
	}

	mnemonic, _ := payload.(string)
	word := insnWordFromBytes(data[:consumed])
	switch mnemonic {
	{{- range .Instructions}}
	case {{printf "%q" .Mnemonic}}:
		return consumed, decode{{.TypeName}}(word), true
	{{- end}}
	}
	return consumed, nil, false
	{{- else}}
	consumed, _, matched := decodeTrie.Decode(data)
	if !matched {
		return consumed, nil, false
	}
	return consumed, nil, false
	{{- end}}
}

// AssembleInstruction encodes inst back into its instruction word, in
// the same physical byte order DisassembleInstruction matches against.
func AssembleInstruction(inst Instruction) ([]byte, error) {
	switch v := inst.(type) {
	{{- range .Instructions}}
	case *{{.TypeName}}:
		return insnWordToBytes(encode{{.TypeName}}(v)), nil
	{{- end}}
	}
	return nil, fmt.Errorf("{{.Package}}: unsupported instruction type %T", inst)
}

// PPInstruction renders inst's assembly-syntax text by substituting its
// operand values into the instruction's asm string template.
func PPInstruction(inst Instruction) (string, error) {
	switch v := inst.(type) {
	{{- range .Instructions}}
	case *{{.TypeName}}:
		return ppInstruction{{.TypeName}}(v)
	{{- end}}
	}
	return "", fmt.Errorf("{{.Package}}: unsupported instruction type %T", inst)
}

// insnWordFromBytes recovers the instruction word in the bit order the
// OperandChunk tables above were computed against, undoing the
// whole-byte endian adaptation applied before matching against
// decodeTrie.
func insnWordFromBytes(b []byte) uint64 {
	buf := make([]byte, len(b))
	copy(buf, b)
	if decodeLittleEndian {
		for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}
	var word uint64
	for _, x := range buf {
		word = word<<8 | uint64(x)
	}
	return word
}

// insnWordToBytes is the inverse of insnWordFromBytes: it re-applies
// the endian adaptation to produce the physical byte order callers
// should write out.
func insnWordToBytes(word uint64) []byte {
	n := (decodeTrieWidth + 7) / 8
	buf := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		buf[i] = byte(word)
		word >>= 8
	}
	if decodeLittleEndian {
		for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}
	return buf
}
`))
