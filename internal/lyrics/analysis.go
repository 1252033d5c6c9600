package lyrics

import (
	"slices"
)

// SoundComparison counts distinct Soundex codes shared by, or unique to, two vocabularies.
type SoundComparison struct {
	Shared int
	OnlyA  int
	OnlyB  int
}

// CompareSounds compares the Soundex codes of the words in a and b.
func CompareSounds(a, b Frequency) SoundComparison {
	codesA := soundexSet(a)
	codesB := soundexSet(b)

	var cmp SoundComparison
	for code := range codesA {
		if _, ok := codesB[code]; ok {
			cmp.Shared++
		} else {
			cmp.OnlyA++
		}
	}
	for code := range codesB {
		if _, ok := codesA[code]; !ok {
			cmp.OnlyB++
		}
	}
	return cmp
}

func soundexSet(f Frequency) map[string]struct{} {
	set := make(map[string]struct{}, len(f))
	for word := range f {
		if code := Soundex(word); code != "" {
			set[code] = struct{}{}
		}
	}
	return set
}

// CommonWords returns, sorted, the words whose combined count across a and b
// exceeds minCount and whose length exceeds minLen.
func CommonWords(a, b Frequency, minCount, minLen int) []string {
	combined := a.Clone()
	for word, n := range b {
		combined[word] += n
	}

	var words []string
	for word, n := range combined {
		if n > minCount && len(word) > minLen {
			words = append(words, word)
		}
	}
	slices.Sort(words)
	return words
}

// AverageWordLength returns the mean length of all word occurrences in f,
// or 0 when f is empty.
func AverageWordLength(f Frequency) float64 {
	var letters, words int
	for word, n := range f {
		letters += len(word) * n
		words += n
	}
	if words == 0 {
		return 0
	}
	return float64(letters) / float64(words)
}
