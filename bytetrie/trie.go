package bytetrie

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// NoMatch is the sentinel Bytes entry meaning "no pattern accepts this
// byte sequence". It is distinguishable from both a child-block offset
// (always >= 0) and an encoded payload index (always < 0 but greater
// than NoMatch).
const NoMatch int32 = math.MinInt32

// Entry is one input pattern to Build: a required/value bitmask pair
// plus an opaque payload and a diagnostic tag. RequiredMask and
// ValueMask must have equal length, that length determines the trie's
// fixed byte width.
type Entry struct {
	Tag          string
	RequiredMask []byte
	ValueMask    []byte
	Payload      any
}

// Trie is a flat table representation of the automaton: a concatenation
// of 256-entry blocks plus a parallel payload vector.
type Trie struct {
	Bytes      []int32
	Payloads   []any
	Size       int
	StartIndex int
	Width      int // fixed byte width every pattern was built against
}

// AmbiguityError reports that two or more patterns remain consistent
// with the same byte sequence through the instruction's full width,
// making the trie's leaf non-deterministic. This is fatal for the
// affected mnemonics.
type AmbiguityError struct {
	Depth     int
	Conflicts []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("ambiguous byte-trie entries at depth %d: %s", e.Depth, strings.Join(e.Conflicts, ", "))
}

// Build compiles entries into a Trie. All entries must share the same
// mask width; that width (in bytes) becomes the trie's fixed
// instruction width. Build returns an *AmbiguityError if two
// or more entries remain consistent with the same byte sequence for the
// full width.
func Build(entries []Entry) (*Trie, error) {
	if len(entries) == 0 {
		return &Trie{Width: 0}, nil
	}

	width := len(entries[0].RequiredMask)
	for _, e := range entries {
		if len(e.RequiredMask) != width || len(e.ValueMask) != width {
			return nil, fmt.Errorf("bytetrie: entry %q has mask width %d/%d, want %d", e.Tag, len(e.RequiredMask), len(e.ValueMask), width)
		}
	}

	idx := make(map[string]int, len(entries))
	for i, e := range entries {
		idx[e.Tag] = i
	}

	b := &builder{
		entries: entries,
		index:   idx,
		width:   width,
		memo:    make(map[string]int32),
	}

	indices := make([]int, len(entries))
	for i := range entries {
		indices[i] = i
	}

	start, err := b.build(indices, 0)
	if err != nil {
		return nil, err
	}

	payloads := make([]any, len(entries))
	for i, e := range entries {
		payloads[i] = e.Payload
	}

	return &Trie{
		Bytes:      b.bytes,
		Payloads:   payloads,
		Size:       len(b.bytes),
		StartIndex: int(start),
		Width:      width,
	}, nil
}

// builder holds the mutable state of one Build call.
type builder struct {
	entries []Entry
	index   map[string]int
	width   int

	bytes []int32
	memo  map[string]int32
}

// build returns the byte offset of the block built for the still-viable
// entries (given by index into b.entries) at the given depth,
// memoizing by the canonical set of viable entries so structurally
// identical subtries share storage.
func (b *builder) build(viable []int, depth int) (int32, error) {
	key := memoKey(depth, viable)
	if off, ok := b.memo[key]; ok {
		return off, nil
	}

	offset := int32(len(b.bytes))
	block := make([]int32, 256)
	b.bytes = append(b.bytes, block...)

	for byteVal := 0; byteVal < 256; byteVal++ {
		next := consistentAt(b.entries, viable, depth, byte(byteVal))

		switch {
		case len(next) == 0:
			block[byteVal] = NoMatch

		case depth+1 == b.width:
			if len(next) > 1 {
				conflicts := make([]string, len(next))
				for i, n := range next {
					conflicts[i] = b.entries[n].Tag
				}
				return 0, &AmbiguityError{Depth: depth, Conflicts: conflicts}
			}
			block[byteVal] = -(int32(next[0]) + 1)

		default:
			childOffset, err := b.build(next, depth+1)
			if err != nil {
				return 0, err
			}
			block[byteVal] = childOffset
		}
	}

	copy(b.bytes[offset:], block)
	b.memo[key] = offset
	return offset, nil
}

// consistentAt returns the subset of viable (by index into entries)
// that remain consistent with byteVal at the given depth, preserving
// input order.
func consistentAt(entries []Entry, viable []int, depth int, byteVal byte) []int {
	var out []int
	for _, i := range viable {
		req := entries[i].RequiredMask[depth]
		val := entries[i].ValueMask[depth]
		if (byteVal & req) == (val & req) {
			out = append(out, i)
		}
	}
	return out
}

// memoKey canonicalizes the still-viable entry set at a given depth
// into a stable cache key, so subtrie construction is keyed by (depth,
// sorted entry indices) rather than recomputed for every structurally
// identical subtrie.
func memoKey(depth int, viable []int) string {
	tags := make([]string, len(viable))
	for i, v := range viable {
		tags[i] = fmt.Sprintf("%d", v)
	}
	sort.Strings(tags)
	return fmt.Sprintf("%d|%s", depth, strings.Join(tags, ","))
}
