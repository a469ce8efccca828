package utils

import "strings"

// Metaphone reduces free text to its classic Metaphone phonetic code so
// that words that sound alike compare equal ("Smith" / "Smyth"). The input
// is split on non-letters and each word is encoded separately, codes joined
// by a single space. Empty input yields an empty code.
//
// The encoding is deterministic; duplicate detection relies on codes being
// stable across saves.
func Metaphone(s string) string {
	if s == "" {
		return ""
	}

	var words []string
	var current strings.Builder
	for _, r := range strings.ToUpper(s) {
		if r >= 'A' && r <= 'Z' {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	codes := make([]string, 0, len(words))
	for _, w := range words {
		if code := metaphoneWord(w); code != "" {
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, " ")
}

func metaphoneWord(word string) string {
	switch {
	case strings.HasPrefix(word, "AE"),
		strings.HasPrefix(word, "GN"),
		strings.HasPrefix(word, "KN"),
		strings.HasPrefix(word, "PN"),
		strings.HasPrefix(word, "WR"):
		word = word[1:]
	case strings.HasPrefix(word, "WH"):
		word = "W" + word[2:]
	case word[0] == 'X':
		word = "S" + word[1:]
	}

	n := len(word)
	at := func(i int) byte {
		if i < 0 || i >= n {
			return 0
		}
		return word[i]
	}
	has := func(i int, seq string) bool {
		return i+len(seq) <= n && word[i:i+len(seq)] == seq
	}

	var out []byte
	for i := 0; i < n; i++ {
		c := word[i]
		// doubled letters collapse, except C
		if i > 0 && c == word[i-1] && c != 'C' {
			continue
		}
		switch c {
		case 'A', 'E', 'I', 'O', 'U':
			if i == 0 {
				out = append(out, c)
			}
		case 'B':
			// silent terminal B after M (lamb, bomb)
			if !(i == n-1 && at(i-1) == 'M') {
				out = append(out, 'B')
			}
		case 'C':
			switch {
			case at(i-1) == 'S' && isIEY(at(i + 1)):
				// SCE/SCI/SCY
			case has(i, "CIA"):
				out = append(out, 'X')
			case at(i+1) == 'H':
				if at(i-1) == 'S' {
					out = append(out, 'K')
				} else {
					out = append(out, 'X')
				}
			case isIEY(at(i + 1)):
				out = append(out, 'S')
			default:
				out = append(out, 'K')
			}
		case 'D':
			if at(i+1) == 'G' && isIEY(at(i+2)) {
				out = append(out, 'J')
			} else {
				out = append(out, 'T')
			}
		case 'F', 'J', 'L', 'M', 'N', 'R':
			out = append(out, c)
		case 'G':
			switch {
			case at(i+1) == 'H' && !isVowel(at(i+2)):
				// silent GH (night, caught)
			case at(i+1) == 'N':
				// GN, GNED
			case at(i-1) == 'D' && isIEY(at(i+1)):
				// DGE/DGI/DGY already coded J
			case isIEY(at(i + 1)):
				out = append(out, 'J')
			default:
				out = append(out, 'K')
			}
		case 'H':
			if at(i-1) != 0 && strings.IndexByte("CSPTG", at(i-1)) >= 0 {
				// digraph already coded
			} else if isVowel(at(i-1)) && !isVowel(at(i+1)) {
				// silent after vowel with no vowel following
			} else {
				out = append(out, 'H')
			}
		case 'K':
			if at(i-1) != 'C' {
				out = append(out, 'K')
			}
		case 'P':
			if at(i+1) == 'H' {
				out = append(out, 'F')
			} else {
				out = append(out, 'P')
			}
		case 'Q':
			out = append(out, 'K')
		case 'S':
			if at(i+1) == 'H' || has(i, "SIO") || has(i, "SIA") {
				out = append(out, 'X')
			} else {
				out = append(out, 'S')
			}
		case 'T':
			switch {
			case at(i+1) == 'H':
				out = append(out, '0')
			case has(i, "TIO"), has(i, "TIA"):
				out = append(out, 'X')
			case has(i, "TCH"):
				// silent in -TCH- (match)
			default:
				out = append(out, 'T')
			}
		case 'V':
			out = append(out, 'F')
		case 'W':
			if isVowel(at(i + 1)) {
				out = append(out, 'W')
			}
		case 'X':
			out = append(out, 'K', 'S')
		case 'Y':
			if isVowel(at(i + 1)) {
				out = append(out, 'Y')
			}
		case 'Z':
			out = append(out, 'S')
		}
	}
	return string(out)
}

func isVowel(c byte) bool {
	return c == 'A' || c == 'E' || c == 'I' || c == 'O' || c == 'U'
}

func isIEY(c byte) bool {
	return c == 'I' || c == 'E' || c == 'Y'
}
