package kvserver

import "strings"

// matchGlob reports whether s matches a Redis-style glob pattern.
// Supported: '*' (any run), '?' (any byte) and '\' escaping the next byte.
// Character classes are matched literally.
func matchGlob(pattern, s string) bool {
	p, i := 0, 0
	starP, starI := -1, 0

	for i < len(s) {
		if p < len(pattern) {
			switch pattern[p] {
			case '*':
				starP, starI = p, i
				p++
				continue
			case '?':
				p++
				i++
				continue
			case '\\':
				if p+1 < len(pattern) && pattern[p+1] == s[i] {
					p += 2
					i++
					continue
				}
			default:
				if pattern[p] == s[i] {
					p++
					i++
					continue
				}
			}
		}
		if starP < 0 {
			return false
		}
		// Backtrack: let the last '*' absorb one more byte.
		starI++
		p, i = starP+1, starI
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// literalPrefix returns the unescaped text before the first wildcard.
func literalPrefix(pattern string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*', '?':
			return sb.String()
		case '\\':
			if i+1 < len(pattern) {
				i++
			}
		}
		sb.WriteByte(pattern[i])
	}
	return sb.String()
}
