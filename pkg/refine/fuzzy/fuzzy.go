package fuzzy

import "strings"

// Normalize lowercases a name and collapses whitespace and punctuation
// to single spaces, so "KBR  Enterprises." and "kbr enterprises"
// compare equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Match reports whether a mention and a catalog name match under the
// case/space/punctuation-insensitive containment rule. Containment is
// tested both ways: "KBR" matches "KBR Enterprises", and a verbose
// mention still matches a shorter catalog name. Exact equality is
// never required.
func Match(mention, name string) bool {
	m := Normalize(mention)
	n := Normalize(name)
	if m == "" || n == "" {
		return false
	}
	return strings.Contains(n, m) || strings.Contains(m, n)
}

// Best returns the first name in the candidate list that matches the
// mention, preferring the tightest match (smallest length difference).
func Best(mention string, names []string) (string, bool) {
	bestName := ""
	bestDelta := -1
	m := Normalize(mention)
	for _, name := range names {
		if !Match(mention, name) {
			continue
		}
		delta := len(Normalize(name)) - len(m)
		if delta < 0 {
			delta = -delta
		}
		if bestDelta == -1 || delta < bestDelta {
			bestName = name
			bestDelta = delta
		}
	}
	return bestName, bestDelta != -1
}

// All returns every candidate name matching the mention, in input order.
func All(mention string, names []string) []string {
	var out []string
	for _, name := range names {
		if Match(mention, name) {
			out = append(out, name)
		}
	}
	return out
}
