package isa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablegen-tools/isagen/bytetrie"
	"github.com/tablegen-tools/isagen/tablegen"
	"github.com/tablegen-tools/isagen/token"
)

func identityConfig() *Config {
	return &Config{
		InstField:            "Inst",
		OutOperandListField:  "OutOperandList",
		InOperandListField:   "InOperandList",
		AsmStringField:       "AsmString",
		PseudoField:          "isPseudo",
		OperandTypeDeclField: "OperandType",
		InsnWidthBits:        16,
		EndianAdapter:        func(p Pattern) Pattern { return p },
		IsPseudo: func(def *tablegen.Def) bool {
			decl := def.DeclByName("isPseudo")
			if decl == nil {
				return false
			}
			b, ok := decl.Value.(tablegen.BitValue)
			return ok && b.Kind == tablegen.BitOne
		},
	}
}

const testDump = `------------- Classes -------------
class RVInst {
	string OperandType = "register";
}
------------- Defs -------------
def ADD {
	bits<16> Inst = { 0,0,0,0,0,0, rs1{2}, rs1{1}, rs1{0}, rd{2}, rd{1}, rd{0}, 0,1,1,0 };
	dag OutOperandList = (outs RVInst:$rd);
	dag InOperandList = (ins RVInst:$rs1);
	string AsmString = "add $rd, $rs1";
	bit isPseudo = 0;
}

def NOP {
	bits<16> Inst = { 0,0,0,0,0,0,0,0,0,0,0,0,0,1,1,0 };
	dag OutOperandList = (outs);
	dag InOperandList = (ins);
	string AsmString = "nop";
	bit isPseudo = 1;
}
`

func parseTestDump(t *testing.T, src string) *tablegen.Records {
	t.Helper()
	fset := token.NewFileSet()
	recs, err := tablegen.Parse(fset, "test.td", []byte(src))
	require.NoError(t, err)
	return recs
}

func TestBuildDescriptorBasic(t *testing.T) {
	recs := parseTestDump(t, testDump)
	desc := BuildDescriptor(recs, identityConfig())
	require.Empty(t, desc.Errors)
	require.Len(t, desc.Instructions, 2)

	add := desc.InstructionByMnemonic("ADD")
	require.NotNil(t, add)
	require.False(t, add.IsPseudo)
	require.Equal(t, "add $rd, $rs1", add.AsmString)
	require.Len(t, add.OutputOps, 1)
	require.Equal(t, "rd", add.OutputOps[0].Name)
	require.Equal(t, OperandType("register"), add.OutputOps[0].Type)
	require.Equal(t, []OperandChunk{{InstrBit: 9, OperandBit: 0, Len: 3}}, add.OutputOps[0].Chunks)
	require.Equal(t, []OperandChunk{{InstrBit: 6, OperandBit: 0, Len: 3}}, add.InputOps[0].Chunks)

	nop := desc.InstructionByMnemonic("NOP")
	require.NotNil(t, nop)
	require.True(t, nop.IsPseudo)
}

func TestNonPseudoInstructionsExcludesPseudos(t *testing.T) {
	recs := parseTestDump(t, testDump)
	desc := BuildDescriptor(recs, identityConfig())

	nonPseudo := desc.NonPseudoInstructions()
	require.Len(t, nonPseudo, 1)
	require.Equal(t, "ADD", nonPseudo[0].Mnemonic)
}

func TestBuildDescriptorMissingOperandChunksIsNonFatal(t *testing.T) {
	const src = `------------- Classes -------------
class RVInst {
	string OperandType = "register";
}
------------- Defs -------------
def BAD {
	bits<8> Inst = { 0,0,0,0,0,0,0,0 };
	dag OutOperandList = (outs RVInst:$rd);
	dag InOperandList = (ins);
	string AsmString = "bad $rd";
	bit isPseudo = 0;
}
`
	recs := parseTestDump(t, src)
	desc := BuildDescriptor(recs, identityConfig())
	require.Len(t, desc.Instructions, 1)
	require.Len(t, desc.Errors, 1)

	var opErr *OperandError
	require.ErrorAs(t, desc.Errors[0], &opErr)
	require.Equal(t, "BAD", opErr.Mnemonic)
	require.Equal(t, "rd", opErr.Operand)
}

func TestBuildDescriptorRawMaskVsMaskEndianAdapter(t *testing.T) {
	recs := parseTestDump(t, testDump)
	cfg := identityConfig()
	cfg.EndianAdapter = func(p Pattern) Pattern {
		out := make(Pattern, len(p))
		copy(out, p)
		return out
	}
	desc := BuildDescriptor(recs, cfg)
	add := desc.InstructionByMnemonic("ADD")
	require.Equal(t, add.RawMask.String(), add.Mask.String())

	for _, bit := range add.Mask {
		require.Contains(t, []bytetrie.Bit{bytetrie.Zero, bytetrie.One, bytetrie.Any}, bit)
	}
}
