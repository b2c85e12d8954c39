package isa

import (
	"fmt"
	"sort"

	"github.com/tablegen-tools/isagen/bytetrie"
	"github.com/tablegen-tools/isagen/tablegen"
)

// BuildDescriptor lowers recs into an ISADescriptor using cfg to locate
// the relevant fields and to endian-correct and type the result.
//
// Def records without an InstField decl are skipped (they are not
// instructions, e.g. register or predicate defs sharing the same
// dump). Records cfg.FilterInstruction rejects are skipped too. Every
// other problem — an operand that cannot be resolved to bit chunks, a
// malformed Inst bit vector — is collected as a non-fatal error on the
// returned descriptor rather than aborting the whole run, so a handful
// of malformed records don't block emission of the rest of the ISA.
func BuildDescriptor(recs *tablegen.Records, cfg *Config) *ISADescriptor {
	desc := &ISADescriptor{
		Operands:      make(map[OperandType]struct{}),
		InsnWidthBits: cfg.InsnWidthBits,
		LittleEndian:  cfg.Endian == "little",
	}

	for _, def := range recs.Defs {
		instDecl := def.DeclByName(cfg.InstField)
		if instDecl == nil {
			continue
		}
		if cfg.FilterInstruction != nil && !cfg.FilterInstruction(def) {
			continue
		}

		inst, errs := buildInstruction(recs, cfg, def, instDecl)
		desc.Instructions = append(desc.Instructions, inst)
		desc.Errors = append(desc.Errors, errs...)
		for _, op := range inst.Operands() {
			desc.Operands[op.Type] = struct{}{}
		}
	}

	return desc
}

func buildInstruction(recs *tablegen.Records, cfg *Config, def *tablegen.Def, instDecl *tablegen.NamedDecl) (*InstructionDescriptor, []error) {
	var errs []error

	bits, ok := instDecl.Value.(tablegen.BitsValue)
	if !ok {
		errs = append(errs, fmt.Errorf("%s: %s is not a bit vector", def.Name, cfg.InstField))
		return &InstructionDescriptor{Mnemonic: def.Name}, errs
	}

	rawMask, occurrences := bitsToPattern(bits)

	inst := &InstructionDescriptor{
		Mnemonic: def.Name,
		RawMask:  rawMask,
		Mask:     cfg.EndianAdapter(rawMask),
	}

	if cfg.AsmStringField != "" {
		if d := def.DeclByName(cfg.AsmStringField); d != nil {
			if s, ok := d.Value.(tablegen.StringValue); ok {
				inst.AsmString = string(s)
			}
		}
	}
	if cfg.NamespaceField != "" {
		if d := def.DeclByName(cfg.NamespaceField); d != nil {
			if s, ok := d.Value.(tablegen.StringValue); ok {
				inst.Namespace = string(s)
			}
		}
	}
	if cfg.DecoderNamespaceField != "" {
		if d := def.DeclByName(cfg.DecoderNamespaceField); d != nil {
			if s, ok := d.Value.(tablegen.StringValue); ok {
				inst.DecoderNamespace = string(s)
			}
		}
	}
	if cfg.IsPseudo != nil {
		inst.IsPseudo = cfg.IsPseudo(def)
	}

	outNames, outErr := operandDag(def, cfg.OutOperandListField)
	inNames, inErr := operandDag(def, cfg.InOperandListField)
	if outErr != nil {
		errs = append(errs, outErr)
	}
	if inErr != nil {
		errs = append(errs, inErr)
	}

	chunksByOperand := coalesceRuns(occurrences)

	inst.OutputOps, errs = resolveOperands(recs, cfg, def, outNames, chunksByOperand, errs)
	inst.InputOps, errs = resolveOperands(recs, cfg, def, inNames, chunksByOperand, errs)

	return inst, errs
}

// fieldOccurrence is one element of the Inst bit vector referring to a
// named operand field, in the order it was written.
type fieldOccurrence struct {
	instrBit    int
	explicit    int
	hasExplicit bool
}

// bitsToPattern converts a parsed Inst bit vector into its tri-state
// Pattern (BitFieldRef/BitBareRef positions become Any, since they're
// operand-controlled rather than fixed) plus, per field name, the
// ordered list of bit-vector positions referring to it.
func bitsToPattern(bits tablegen.BitsValue) (Pattern, map[string][]fieldOccurrence) {
	pattern := make(Pattern, len(bits.Bits))
	occurrences := make(map[string][]fieldOccurrence)

	for i, b := range bits.Bits {
		switch b.Kind {
		case tablegen.BitZero:
			pattern[i] = bytetrie.Zero
		case tablegen.BitOne:
			pattern[i] = bytetrie.One
		case tablegen.BitUnknownBit:
			pattern[i] = bytetrie.Any
		case tablegen.BitFieldRef, tablegen.BitBareRef:
			pattern[i] = bytetrie.Any
			occurrences[b.FieldName] = append(occurrences[b.FieldName], fieldOccurrence{
				instrBit:    i,
				explicit:    b.FieldIndex,
				hasExplicit: b.Kind == tablegen.BitFieldRef,
			})
		}
	}

	return pattern, occurrences
}

// coalesceRuns turns the per-field occurrence lists discovered by
// bitsToPattern into OperandChunks. An occurrence with an explicit
// FieldIndex (Field{i}) uses it directly as OperandBit, since Field{i}
// names bit i of the operand value counting from its own least
// significant bit — exactly OperandChunk's OperandBit convention.
// Occurrences with no explicit index (bare field references) have their
// OperandBit inferred by treating the field's occurrences, across the
// whole Inst vector in the order they were written, as laying the
// field out most-significant-bit first: the first occurrence gets the
// highest operand bit, the last gets bit 0. If any occurrence of a field
// is bare, every occurrence of that field is numbered this way and its
// explicit indices are not used.
//
// Adjacent single-bit chunks belonging to the same field are merged
// into wider chunks wherever InstrBit rises by one as OperandBit falls
// by one.
func coalesceRuns(occurrences map[string][]fieldOccurrence) map[string][]OperandChunk {
	out := make(map[string][]OperandChunk)
	for field, occs := range occurrences {
		allExplicit := true
		for _, o := range occs {
			if !o.hasExplicit {
				allExplicit = false
				break
			}
		}

		chunks := make([]OperandChunk, len(occs))
		for i, o := range occs {
			operandBit := o.explicit
			if !allExplicit {
				operandBit = len(occs) - 1 - i
			}
			chunks[i] = OperandChunk{InstrBit: o.instrBit, OperandBit: operandBit, Len: 1}
		}
		out[field] = mergeAdjacentChunks(chunks)
	}
	return out
}

// mergeAdjacentChunks merges single-bit chunks into wider runs wherever
// InstrBit rises by one as OperandBit falls by one, so a field laid out
// as consecutive bits in both the instruction word (MSB first) and the
// operand value becomes one chunk instead of many one-bit chunks.
func mergeAdjacentChunks(chunks []OperandChunk) []OperandChunk {
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].InstrBit < chunks[j].InstrBit })

	var out []OperandChunk
	for _, c := range chunks {
		if n := len(out); n > 0 {
			last := &out[n-1]
			sameDirection := c.InstrBit == last.InstrBit+last.Len &&
				c.OperandBit == last.OperandBit-1 && last.OperandBit-1 >= 0
			if sameDirection {
				last.Len++
				// A chunk's OperandBit is its lowest operand bit, which
				// after the merge is c's.
				last.OperandBit = c.OperandBit
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// operandDag returns the ordered (typeRef, name) pairs of a DAG-valued
// decl (OutOperandList or InOperandList). A missing or absent field
// yields an empty list, not an error: not every instruction has both.
func operandDag(def *tablegen.Def, field string) ([]tablegen.DagArg, error) {
	if field == "" {
		return nil, nil
	}
	decl := def.DeclByName(field)
	if decl == nil {
		return nil, nil
	}
	dag, ok := decl.Value.(tablegen.DagValue)
	if !ok {
		return nil, fmt.Errorf("%s: %s is not a dag value", def.Name, field)
	}
	return dag.Args, nil
}

func resolveOperands(recs *tablegen.Records, cfg *Config, def *tablegen.Def, args []tablegen.DagArg, chunksByOperand map[string][]OperandChunk, errs []error) ([]OperandDescriptor, []error) {
	ops := make([]OperandDescriptor, 0, len(args))
	for _, a := range args {
		op := OperandDescriptor{
			Name:   a.Name,
			Type:   resolveOperandType(recs, cfg, a.TypeRef),
			Chunks: chunksByOperand[a.Name],
		}
		if len(op.Chunks) == 0 {
			errs = append(errs, &OperandError{
				Mnemonic: def.Name,
				Operand:  a.Name,
				Err:      fmt.Errorf("no bit chunks found for operand in %s", cfg.InstField),
			})
		}
		ops = append(ops, op)
	}
	return ops, errs
}

// resolveOperandType looks up typeRef against the record's Class
// templates for an OperandTypeDeclField string decl; absent a matching
// class (or a configured lookup field), the type ref's own name is used
// as the OperandType.
func resolveOperandType(recs *tablegen.Records, cfg *Config, typeRef string) OperandType {
	if cfg.OperandTypeDeclField != "" {
		if class := recs.ClassByName(typeRef); class != nil {
			if decl := class.DeclByName(cfg.OperandTypeDeclField); decl != nil {
				if s, ok := decl.Value.(tablegen.StringValue); ok {
					return OperandType(s)
				}
			}
		}
	}
	return OperandType(typeRef)
}
