package isa

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tablegen-tools/isagen/bytetrie"
	"github.com/tablegen-tools/isagen/tablegen"
)

// endianRegistry and pseudoRegistry hold the named, Go-coded adapters
// and predicates a ConfigDoc can refer to by name, for the logic that
// can't be expressed declaratively in YAML (bit-permutation closures,
// DAG-shaped pseudo predicates) — mirroring how riscv-meta keeps that
// kind of per-ISA logic as Go code alongside its declarative opcode
// tables rather than in the data file itself.
var (
	endianRegistry = map[string]func(Pattern) Pattern{}
	pseudoRegistry = map[string]func(*tablegen.Def) bool{}
)

func init() {
	RegisterEndian("big", func(p Pattern) Pattern { return p })
	RegisterEndian("little", reverseBytes)
}

// RegisterEndian names an endian-adaptation closure so a ConfigDoc's
// `endian` field can refer to it. Registering under an existing name
// replaces it.
func RegisterEndian(name string, adapter func(Pattern) Pattern) {
	endianRegistry[name] = adapter
}

// RegisterPseudoPredicate names a pseudo-instruction predicate so a
// ConfigDoc's `pseudo_predicate` field can refer to it, for predicates
// that can't be reduced to "is this one field set" (PseudoField).
// Registering under an existing name replaces it.
func RegisterPseudoPredicate(name string, pred func(*tablegen.Def) bool) {
	pseudoRegistry[name] = pred
}

// PayloadType names the target-language representation an emitter
// should use for an OperandType: the concrete type plus the
// decode/encode wrapper expressions, as Go expression templates with a
// single %s placeholder. DecodeWrap's placeholder is the raw bit-field
// value; EncodeUnwrap's is the typed field, and it yields the raw value.
// The two must be inverses of each other (a bijective adapter); nothing
// here checks that.
type PayloadType struct {
	TargetType   string `yaml:"type"`
	DecodeWrap   string `yaml:"decode"`
	EncodeUnwrap string `yaml:"encode"`
}

// ConfigDoc is the on-disk YAML shape a Config is loaded from: which
// field names carry the instruction bit pattern, operand lists, and
// identifying metadata, plus the operand payload-type table.
type ConfigDoc struct {
	InstField             string                 `yaml:"inst_field"`
	OutOperandListField   string                 `yaml:"out_operand_list_field"`
	InOperandListField    string                 `yaml:"in_operand_list_field"`
	AsmStringField        string                 `yaml:"asm_string_field"`
	NamespaceField        string                 `yaml:"namespace_field"`
	DecoderNamespaceField string                 `yaml:"decoder_namespace_field"`
	PseudoField           string                 `yaml:"pseudo_field"`
	PseudoPredicate       string                 `yaml:"pseudo_predicate"`
	OperandTypeDeclField  string                 `yaml:"operand_type_decl_field"`
	InsnWidthBits         int                    `yaml:"insn_width_bits"`
	Endian                string                 `yaml:"endian"`
	OperandPayloadTypes   map[string]PayloadType `yaml:"operand_payload_types"`
}

// LoadConfig reads a ConfigDoc from YAML.
func LoadConfig(r io.Reader) (*ConfigDoc, error) {
	doc := &ConfigDoc{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("isa: decoding config: %w", err)
	}
	if doc.InstField == "" {
		doc.InstField = "Inst"
	}
	if doc.OutOperandListField == "" {
		doc.OutOperandListField = "OutOperandList"
	}
	if doc.InOperandListField == "" {
		doc.InOperandListField = "InOperandList"
	}
	if doc.InsnWidthBits == 0 {
		doc.InsnWidthBits = 32
	}
	return doc, nil
}

// Config is the resolved, runnable form of a ConfigDoc: field-name
// lookups plus the endian adapter and pseudo-instruction predicate
// derived from them.
type Config struct {
	InstField             string
	OutOperandListField   string
	InOperandListField    string
	AsmStringField        string
	NamespaceField        string
	DecoderNamespaceField string
	PseudoField           string
	OperandTypeDeclField  string

	InsnWidthBits int

	// Endian is the resolved endian-adapter name ("big" or "little", or
	// a caller-registered name), kept alongside EndianAdapter so callers
	// that need the name itself (e.g. to describe a config, or to embed
	// it in generated code) don't have to inspect the closure.
	Endian string

	// InsnWordFromBytes converts a matched byte sequence (in the
	// physical, endian-adapted byte order the byte-trie matches
	// against) into the instruction word bitfield.FieldFromWord expects
	// (in the same bit order OperandChunk.InstrBit was computed
	// against, i.e. before endian adaptation). InsnWordToBytes is its
	// inverse, used when re-encoding a word for output.
	InsnWordFromBytes func([]byte) (uint64, error)
	InsnWordToBytes   func(uint64) []byte

	// FilterInstruction reports whether a Def should be treated as an
	// instruction record at all (as opposed to e.g. a register or
	// subtarget-feature def sharing the same dump). Nil means "every
	// Def with an InstField decl qualifies".
	FilterInstruction func(*tablegen.Def) bool

	// IsPseudo reports whether a Def is a pseudo-instruction: encodable
	// and describable, but excluded from the byte-trie decoder. The
	// default checks PseudoField for a BitOne value.
	IsPseudo func(*tablegen.Def) bool

	// EndianAdapter reorders a RawMask's bytes into the physical byte
	// order the byte-trie decoder matches against. It must be its own
	// inverse: re-applying it to its own output must reproduce the
	// input, which CheckEndianAdapter verifies.
	EndianAdapter func(Pattern) Pattern

	OperandPayloadTypes map[OperandType]PayloadType
}

// NewConfig resolves a ConfigDoc into a runnable Config, wiring the
// named endian adapter and a default PseudoField-based IsPseudo.
func NewConfig(doc *ConfigDoc) (*Config, error) {
	adapter, err := EndianAdapter(doc.Endian)
	if err != nil {
		return nil, err
	}

	payloadTypes := make(map[OperandType]PayloadType, len(doc.OperandPayloadTypes))
	for name, pt := range doc.OperandPayloadTypes {
		payloadTypes[OperandType(name)] = pt
	}

	endianName := doc.Endian
	if endianName == "" {
		endianName = "big"
	}

	pseudoField := doc.PseudoField
	cfg := &Config{
		InstField:             doc.InstField,
		OutOperandListField:   doc.OutOperandListField,
		InOperandListField:    doc.InOperandListField,
		AsmStringField:        doc.AsmStringField,
		NamespaceField:        doc.NamespaceField,
		DecoderNamespaceField: doc.DecoderNamespaceField,
		PseudoField:           pseudoField,
		OperandTypeDeclField:  doc.OperandTypeDeclField,
		InsnWidthBits:         doc.InsnWidthBits,
		Endian:                endianName,
		EndianAdapter:         adapter,
		OperandPayloadTypes:   payloadTypes,
	}
	cfg.InsnWordFromBytes, cfg.InsnWordToBytes = insnWordCodec(adapter, doc.InsnWidthBits)

	if doc.PseudoPredicate != "" {
		pred, ok := pseudoRegistry[doc.PseudoPredicate]
		if !ok {
			return nil, fmt.Errorf("isa: unknown pseudo predicate %q", doc.PseudoPredicate)
		}
		cfg.IsPseudo = pred
	} else {
		cfg.IsPseudo = func(def *tablegen.Def) bool {
			if pseudoField == "" {
				return false
			}
			decl := def.DeclByName(pseudoField)
			if decl == nil {
				return false
			}
			b, ok := decl.Value.(tablegen.BitValue)
			return ok && b.Kind == tablegen.BitOne
		}
	}
	return cfg, nil
}

// EndianAdapter returns the named byte-reordering adapter, looked up in
// the registry RegisterEndian populates ("big" and "little" are
// registered by default). Unknown names are an error; there is no
// silent default, since getting this wrong silently corrupts every
// decoded operand.
func EndianAdapter(name string) (func(Pattern) Pattern, error) {
	if name == "" {
		name = "big"
	}
	adapter, ok := endianRegistry[name]
	if !ok {
		return nil, fmt.Errorf("isa: unknown endian %q, want \"big\", \"little\", or a name registered with RegisterEndian", name)
	}
	return adapter, nil
}

// insnWordCodec builds the InsnWordFromBytes/InsnWordToBytes pair for a
// resolved endian adapter and instruction width: InsnWordFromBytes
// inverts the adapter to recover the word in the bit order
// OperandChunk.InstrBit was computed against (adapter is required to be
// an involution, so applying it again is its own inverse);
// InsnWordToBytes re-applies it to produce physical byte order.
func insnWordCodec(adapter func(Pattern) Pattern, width int) (func([]byte) (uint64, error), func(uint64) []byte) {
	from := func(b []byte) (uint64, error) {
		if len(b)*8 < width {
			return 0, fmt.Errorf("isa: need at least %d bits, got %d bytes", width, len(b))
		}
		physical := bytetrie.PatternFromBytes(b, width)
		raw := adapter(physical)
		return raw.Uint64(), nil
	}
	to := func(word uint64) []byte {
		raw := bytetrie.PatternFromUint64(word, width)
		physical := adapter(raw)
		return physical.ValueMask()
	}
	return from, to
}

func reverseBytes(p Pattern) Pattern {
	width := len(p)
	out := make(Pattern, width)
	nBytes := (width + 7) / 8
	for i := 0; i < nBytes; i++ {
		srcStart := i * 8
		dstStart := (nBytes - 1 - i) * 8
		for j := 0; j < 8 && srcStart+j < width && dstStart+j < width; j++ {
			out[dstStart+j] = p[srcStart+j]
		}
	}
	return out
}

// CheckEndianAdapter verifies that adapter is an involution over
// width-bit patterns: applying it twice must reproduce the input. A
// non-involutive adapter would make RawMask unrecoverable from Mask,
// breaking any tooling that needs to go back to the as-declared pattern.
func CheckEndianAdapter(adapter func(Pattern) Pattern, width int) error {
	probe := make(Pattern, width)
	for i := range probe {
		if i%3 == 0 {
			probe[i] = 1 // One
		}
	}
	round := adapter(adapter(probe))
	for i := range probe {
		if round[i] != probe[i] {
			return fmt.Errorf("isa: endian adapter is not an involution at width %d", width)
		}
	}
	return nil
}
