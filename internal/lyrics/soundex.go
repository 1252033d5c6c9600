package lyrics

// soundexCodes holds the American Soundex digit for a..z.
// '0' marks vowels (they separate equal codes), '-' marks h and w (they don't).
const soundexCodes = "0123012-02245501262301-202"

// Soundex returns the four-character American Soundex code of word, such as
// "R163" for "Robert". Non-letters are ignored; a word without letters has code "".
func Soundex(word string) string {
	out := make([]byte, 0, 4)
	var last byte

	for i := 0; i < len(word) && len(out) < 4; i++ {
		c := word[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c < 'a' || c > 'z' {
			continue
		}
		code := soundexCodes[c-'a']

		if len(out) == 0 {
			out = append(out, c-('a'-'A'))
			last = code
			continue
		}

		switch code {
		case '-':
			// h and w are transparent
		case '0':
			last = code
		default:
			if code != last {
				out = append(out, code)
			}
			last = code
		}
	}

	if len(out) == 0 {
		return ""
	}
	for len(out) < 4 {
		out = append(out, '0')
	}
	return string(out)
}
