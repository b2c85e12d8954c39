package bytetrie

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func patternEntry(tag string, p Pattern, payload any) Entry {
	return Entry{
		Tag:          tag,
		RequiredMask: p.RequiredMask(),
		ValueMask:    p.ValueMask(),
		Payload:      payload,
	}
}

func mustParsePattern(t *testing.T, s string) Pattern {
	t.Helper()
	p := make(Pattern, len(s))
	for i, c := range s {
		switch c {
		case '0':
			p[i] = Zero
		case '1':
			p[i] = One
		case '?':
			p[i] = Any
		default:
			t.Fatalf("bad pattern char %q", c)
		}
	}
	return p
}

func TestBuildAndDecodeRoundTrip(t *testing.T) {
	entries := []Entry{
		patternEntry("ADD", mustParsePattern(t, "00000000"), "ADD"),
		patternEntry("SUB", mustParsePattern(t, "00000001"), "SUB"),
		patternEntry("NOP", mustParsePattern(t, "????1111"), "NOP"),
	}

	trie, err := Build(entries)
	require.NoError(t, err)

	consumed, payload, ok := trie.Decode([]byte{0x00})
	require.True(t, ok)
	require.Equal(t, 1, consumed)
	require.Equal(t, "ADD", payload)

	_, payload, ok = trie.Decode([]byte{0x01})
	require.True(t, ok)
	require.Equal(t, "SUB", payload)

	_, payload, ok = trie.Decode([]byte{0xAF}) // 1010 1111: low nibble matches ????1111
	require.True(t, ok)
	require.Equal(t, "NOP", payload)

	_, _, ok = trie.Decode([]byte{0x02})
	require.False(t, ok)
}

func TestDecodeShortInputIsNotOk(t *testing.T) {
	entries := []Entry{
		patternEntry("WIDE", mustParsePattern(t, "0000000000000000"), "WIDE"),
	}
	trie, err := Build(entries)
	require.NoError(t, err)

	consumed, _, ok := trie.Decode([]byte{0x00})
	require.False(t, ok)
	require.Equal(t, 1, consumed)
}

func TestBuildDetectsAmbiguity(t *testing.T) {
	entries := []Entry{
		patternEntry("A", mustParsePattern(t, "0000????"), "A"),
		patternEntry("B", mustParsePattern(t, "????0000"), "B"),
	}
	_, err := Build(entries)
	require.Error(t, err)

	var ambig *AmbiguityError
	require.ErrorAs(t, err, &ambig)
}

func TestBuildIsDeterministic(t *testing.T) {
	entries := []Entry{
		patternEntry("ADD", mustParsePattern(t, "000000??"), "ADD"),
		patternEntry("SUB", mustParsePattern(t, "000001??"), "SUB"),
		patternEntry("AND", mustParsePattern(t, "000010??"), "AND"),
	}

	a, err := Build(entries)
	require.NoError(t, err)
	b, err := Build(entries)
	require.NoError(t, err)

	if diff := cmp.Diff(a.Bytes, b.Bytes); diff != "" {
		t.Errorf("Build is not deterministic: %s", diff)
	}
	if diff := cmp.Diff(a.Payloads, b.Payloads); diff != "" {
		t.Errorf("Build payload vector is not deterministic: %s", diff)
	}
}

func TestBuildRejectsMismatchedWidths(t *testing.T) {
	entries := []Entry{
		patternEntry("SHORT", mustParsePattern(t, "00000000"), "SHORT"),
		patternEntry("LONG", mustParsePattern(t, "0000000000000000"), "LONG"),
	}
	_, err := Build(entries)
	require.Error(t, err)
}

func TestBuildEmptyEntriesYieldsZeroWidthTrie(t *testing.T) {
	trie, err := Build(nil)
	require.NoError(t, err)
	require.Equal(t, 0, trie.Width)

	_, _, ok := trie.Decode([]byte{0x00})
	require.False(t, ok)
}
