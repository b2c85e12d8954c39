package bytetrie

// Decode runs the byte-trie over b, returning the number of bytes
// consumed and the matched payload. If no pattern matches, ok is false
// and consumed is the number of bytes read before the mismatch was
// detected.
func (t *Trie) Decode(b []byte) (consumed int, payload any, ok bool) {
	if t.Width == 0 {
		return 0, nil, false
	}

	idx := t.StartIndex
	for i := 0; i < t.Width; i++ {
		if i >= len(b) {
			return i, nil, false
		}

		entry := t.Bytes[idx+int(b[i])]
		consumed = i + 1

		if entry == NoMatch {
			return consumed, nil, false
		}
		if entry < 0 {
			payloadIdx := -(entry + 1)
			return consumed, t.Payloads[payloadIdx], true
		}
		idx = int(entry)
	}

	return consumed, nil, false
}
