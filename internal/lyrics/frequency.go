package lyrics

import (
	"strings"
	"unicode"
)

// Frequency maps a word to how many times it occurs.
type Frequency map[string]int

// CountWords lowercases ASCII letters, drops every character that is neither a
// lowercase ASCII letter nor whitespace, and counts the remaining words.
func CountWords(blobs ...string) Frequency {
	freq := make(Frequency)
	var b strings.Builder
	for _, blob := range blobs {
		b.Reset()
		b.Grow(len(blob))
		for _, r := range blob {
			if r >= 'A' && r <= 'Z' {
				r += 'a' - 'A'
			}
			if (r >= 'a' && r <= 'z') || unicode.IsSpace(r) {
				b.WriteRune(r)
			}
		}
		for _, word := range strings.Fields(b.String()) {
			freq[word]++
		}
	}
	return freq
}

// Total returns the number of word occurrences.
func (f Frequency) Total() int {
	n := 0
	for _, c := range f {
		n += c
	}
	return n
}

// Clone returns an independent copy.
func (f Frequency) Clone() Frequency {
	cp := make(Frequency, len(f))
	for w, c := range f {
		cp[w] = c
	}
	return cp
}
