// Package isa lowers a tablegen.Records AST into an ISADescriptor: the
// canonical, endian-corrected instruction list and operand field
// layouts a byte-trie decoder and bit engine can consume.
package isa

import (
	"fmt"

	"github.com/tablegen-tools/isagen/bytetrie"
)

// Pattern is an ordered sequence of tri-state bits describing an
// instruction's encoding, indexed from most-significant to
// least-significant of the conceptual instruction word.
type Pattern = bytetrie.Pattern

// OperandChunk asserts that `Len` consecutive bits beginning at
// `InstrBit` of the instruction word correspond to the contiguous
// operand-value bits beginning at `OperandBit`. InstrBit is numbered
// from the most significant bit (0) of the instruction word toward the
// least significant; OperandBit is numbered from the least significant
// bit (0) of the operand value upward.
type OperandChunk struct {
	InstrBit   int
	OperandBit int
	Len        int
}

// OperandType names a payload class for an operand, e.g. "register" or
// "simm12". It is looked up in a Config's OperandPayloadTypes table by
// the emitter to choose a target-language representation.
type OperandType string

// OperandDescriptor is one operand of an instruction: its name, its
// layout in the instruction word, and its payload type.
type OperandDescriptor struct {
	Name   string
	Chunks []OperandChunk
	Type   OperandType
}

// InstructionDescriptor is one decodable (or pseudo) instruction.
//
// Mask is the endian-corrected pattern used by the byte-trie; RawMask
// preserves the pattern exactly as declared, before any endian
// adaptation. Operand chunk InstrBit positions index RawMask. A RawMask
// position written as a field reference is Any and belongs to that
// field's chunks; a position written as `?` is Any and belongs to no
// operand.
type InstructionDescriptor struct {
	Mask    Pattern
	RawMask Pattern

	Mnemonic string

	InputOps  []OperandDescriptor
	OutputOps []OperandDescriptor

	Namespace        string
	DecoderNamespace string
	AsmString        string
	IsPseudo         bool
}

// Operands returns the instruction's operands in canonical order:
// outputs followed by inputs.
func (d *InstructionDescriptor) Operands() []OperandDescriptor {
	ops := make([]OperandDescriptor, 0, len(d.OutputOps)+len(d.InputOps))
	ops = append(ops, d.OutputOps...)
	ops = append(ops, d.InputOps...)
	return ops
}

// RegisterClass is a named, ordered set of registers, e.g. the "GPR"
// class of a RISC integer ISA.
type RegisterClass struct {
	Name      string
	Registers []string
}

// Register is a single machine register.
type Register struct {
	Name      string
	Namespace string
}

// OperandError records that an instruction's operand bit-chunks could
// not be recovered from the TableGen record. This is a non-fatal
// warning: the instruction is still emitted, minus that operand's
// chunks.
type OperandError struct {
	Mnemonic string
	Operand  string
	Err      error
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("%s: operand %q: %s", e.Mnemonic, e.Operand, e.Err)
}

func (e *OperandError) Unwrap() error { return e.Err }

// ISADescriptor is the durable intermediate produced by BuildDescriptor:
// the canonical instruction list plus register metadata and the
// non-fatal operand-mapping errors encountered while building it.
type ISADescriptor struct {
	Instructions    []*InstructionDescriptor
	RegisterClasses []RegisterClass
	Registers       []Register
	Operands        map[OperandType]struct{}
	Errors          []error

	// InsnWidthBits and LittleEndian mirror the Config that produced
	// this descriptor, so a consumer that only has the descriptor (e.g.
	// package emit) can reconstruct the byte<->word conversion
	// Config.InsnWordFromBytes/InsnWordToBytes perform for the built-in
	// "big" and "little" adapters, without needing the Config's closures
	// themselves. LittleEndian is true only when Config.Endian is
	// "little"; any other registered adapter is recorded as false.
	InsnWidthBits int
	LittleEndian  bool
}

// NonPseudoInstructions returns the subset of Instructions with
// IsPseudo == false, the set the byte-trie decoder is built from.
func (d *ISADescriptor) NonPseudoInstructions() []*InstructionDescriptor {
	var out []*InstructionDescriptor
	for _, inst := range d.Instructions {
		if !inst.IsPseudo {
			out = append(out, inst)
		}
	}
	return out
}

// InstructionByMnemonic returns the instruction with the given
// mnemonic, or nil. Mnemonics are unique within an ISA's non-pseudo
// instructions.
func (d *ISADescriptor) InstructionByMnemonic(mnemonic string) *InstructionDescriptor {
	for _, inst := range d.Instructions {
		if inst.Mnemonic == mnemonic {
			return inst
		}
	}
	return nil
}
