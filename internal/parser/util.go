package parser

import "unicode/utf8"

// safeUTF8Prefix returns the largest n' <= len(b) such that b[:n'] contains
// no truncated trailing multi-byte rune. Used whenever the parser wants to
// flush a prefix of accumulated text as a chunk event without risking a
// split codepoint at the cut point — the LLM stream interface (spec §6)
// explicitly allows chunk boundaries to fall mid-codepoint.
func safeUTF8Prefix(b []byte) int {
	n := len(b)
	if n == 0 {
		return 0
	}
	lim := n - utf8.UTFMax
	if lim < 0 {
		lim = 0
	}
	for i := n - 1; i >= lim; i-- {
		c := b[i]
		if c < 0x80 {
			// ASCII byte: everything up to and including it is complete.
			return n
		}
		if c >= 0xC0 {
			// Lead byte of a multi-byte sequence starting at i.
			if i+utf8SeqLen(c) > n {
				return i
			}
			return n
		}
		// 0x80-0xBF: continuation byte, keep scanning backward.
	}
	return n
}

func utf8SeqLen(lead byte) int {
	switch {
	case lead&0x80 == 0:
		return 1
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}
