package glob

import "strings"

// Meta holds the characters that turn a channel spec into a pattern.
const Meta = "*?["

// IsPattern reports whether s contains any glob metacharacter.
func IsPattern(s string) bool {
	return strings.ContainsAny(s, Meta)
}

// Match reports whether subject matches pattern in full.
//
// Matching is rune based, so `?` consumes one UTF-8 character.
// An unterminated class (`[ab`) is treated as a literal '['.
func Match(pattern, subject string) bool {
	if pattern == "*" {
		return true
	}
	if !IsPattern(pattern) && !strings.Contains(pattern, `\`) {
		return pattern == subject
	}
	return match([]rune(pattern), []rune(subject))
}

func match(p, s []rune) bool {
	px, sx := 0, 0
	starPx, starSx := -1, -1

	for sx < len(s) {
		if px < len(p) {
			switch p[px] {
			case '*':
				for px < len(p) && p[px] == '*' {
					px++
				}
				if px == len(p) {
					return true
				}
				starPx, starSx = px, sx
				continue
			case '?':
				px++
				sx++
				continue
			case '[':
				matched, next, ok := matchClass(p, px, s[sx])
				if !ok {
					if s[sx] == '[' {
						px++
						sx++
						continue
					}
				} else if matched {
					px = next
					sx++
					continue
				}
			case '\\':
				if px+1 < len(p) {
					if p[px+1] == s[sx] {
						px += 2
						sx++
						continue
					}
				} else if s[sx] == '\\' {
					px++
					sx++
					continue
				}
			default:
				if p[px] == s[sx] {
					px++
					sx++
					continue
				}
			}
		}

		// Mismatch: widen the last star by one character and retry.
		if starPx < 0 {
			return false
		}
		starSx++
		sx = starSx
		px = starPx
	}

	for px < len(p) && p[px] == '*' {
		px++
	}
	return px == len(p)
}

// matchClass evaluates the class starting at p[start] == '[' against c.
// It returns whether c matched, the index just past the closing ']', and
// false in ok when the class is unterminated.
func matchClass(p []rune, start int, c rune) (matched bool, next int, ok bool) {
	i := start + 1
	negate := false
	if i < len(p) && p[i] == '^' {
		negate = true
		i++
	}

	for i < len(p) && p[i] != ']' {
		switch {
		case p[i] == '\\' && i+1 < len(p):
			if p[i+1] == c {
				matched = true
			}
			i += 2
		case i+2 < len(p) && p[i+1] == '-' && p[i+2] != ']':
			lo, hi := p[i], p[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			i += 3
		default:
			if p[i] == c {
				matched = true
			}
			i++
		}
	}
	if i >= len(p) {
		return false, 0, false
	}
	if negate {
		matched = !matched
	}
	return matched, i + 1, true
}
