package isa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablegen-tools/isagen/bytetrie"
	"github.com/tablegen-tools/isagen/tablegen"
)

func TestLoadConfigDefaults(t *testing.T) {
	const yamlDoc = `
endian: little
insn_width_bits: 32
pseudo_field: isPseudo
operand_type_decl_field: OperandType
operand_payload_types:
  register:
    type: Reg
    decode: "regFromBits(%s)"
    encode: "%s.Encode()"
`
	doc, err := LoadConfig(strings.NewReader(yamlDoc))
	require.NoError(t, err)
	require.Equal(t, "Inst", doc.InstField)
	require.Equal(t, "little", doc.Endian)
	require.Equal(t, 32, doc.InsnWidthBits)
	require.Contains(t, doc.OperandPayloadTypes, "register")
	require.Equal(t, "Reg", doc.OperandPayloadTypes["register"].TargetType)
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	const yamlDoc = `
totally_unknown_field: true
`
	_, err := LoadConfig(strings.NewReader(yamlDoc))
	require.Error(t, err)
}

func TestEndianAdapterBigIsIdentity(t *testing.T) {
	adapter, err := EndianAdapter("big")
	require.NoError(t, err)
	require.NoError(t, CheckEndianAdapter(adapter, 32))

	p := bytetrie.PatternFromUint64(0xCAFEBABE, 32)
	require.Equal(t, p.String(), adapter(p).String())
}

func TestEndianAdapterLittleIsInvolution(t *testing.T) {
	adapter, err := EndianAdapter("little")
	require.NoError(t, err)
	require.NoError(t, CheckEndianAdapter(adapter, 32))

	p := bytetrie.PatternFromUint64(0x01020304, 32)
	swapped := adapter(p)
	require.NotEqual(t, p.String(), swapped.String())
	require.Equal(t, p.String(), adapter(swapped).String())
}

func TestEndianAdapterUnknownNameErrors(t *testing.T) {
	_, err := EndianAdapter("middle")
	require.Error(t, err)
}

func TestNewConfigWiresIsPseudo(t *testing.T) {
	doc := &ConfigDoc{PseudoField: "isPseudo", InsnWidthBits: 16}
	cfg, err := NewConfig(doc)
	require.NoError(t, err)
	require.NotNil(t, cfg.IsPseudo)
}

func TestRegisterEndianIsResolvedByName(t *testing.T) {
	RegisterEndian("test-nibble-swap", func(p Pattern) Pattern {
		out := make(Pattern, len(p))
		half := len(p) / 2
		copy(out[:half], p[half:])
		copy(out[half:], p[:half])
		return out
	})

	adapter, err := EndianAdapter("test-nibble-swap")
	require.NoError(t, err)
	require.NoError(t, CheckEndianAdapter(adapter, 8))

	p := bytetrie.PatternFromUint64(0xAB, 8)
	require.Equal(t, "10111010", adapter(p).String())
}

func TestRegisterPseudoPredicateIsWiredByNewConfig(t *testing.T) {
	RegisterPseudoPredicate("test-always-pseudo", func(def *tablegen.Def) bool { return true })

	doc := &ConfigDoc{PseudoPredicate: "test-always-pseudo", InsnWidthBits: 8}
	cfg, err := NewConfig(doc)
	require.NoError(t, err)
	require.True(t, cfg.IsPseudo(&tablegen.Def{Name: "ANY"}))
}

func TestNewConfigUnknownPseudoPredicateErrors(t *testing.T) {
	doc := &ConfigDoc{PseudoPredicate: "no-such-predicate", InsnWidthBits: 8}
	_, err := NewConfig(doc)
	require.Error(t, err)
}

func TestInsnWordFromBytesAndToBytesRoundTripBigEndian(t *testing.T) {
	doc := &ConfigDoc{InsnWidthBits: 16}
	cfg, err := NewConfig(doc)
	require.NoError(t, err)

	word, err := cfg.InsnWordFromBytes([]byte{0x12, 0x34})
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), word)
	require.Equal(t, []byte{0x12, 0x34}, cfg.InsnWordToBytes(word))
}

func TestInsnWordFromBytesAndToBytesRoundTripLittleEndian(t *testing.T) {
	doc := &ConfigDoc{InsnWidthBits: 16, Endian: "little"}
	cfg, err := NewConfig(doc)
	require.NoError(t, err)

	// Physical bytes are byte-swapped; the recovered word is in the
	// original (pre-adaptation) bit order.
	word, err := cfg.InsnWordFromBytes([]byte{0x34, 0x12})
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), word)
	require.Equal(t, []byte{0x34, 0x12}, cfg.InsnWordToBytes(word))
}

func TestInsnWordFromBytesRejectsShortInput(t *testing.T) {
	doc := &ConfigDoc{InsnWidthBits: 32}
	cfg, err := NewConfig(doc)
	require.NoError(t, err)

	_, err = cfg.InsnWordFromBytes([]byte{0x00, 0x01})
	require.Error(t, err)
}
