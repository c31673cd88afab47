package query

import "strings"

// opposingPairs lists keyword pairs whose co-occurrence across findings
// about the same entity suggests a contradiction. The left side negates
// or opposes the right side. Matching is mutually exclusive: a finding
// containing "non-toxic" never counts as a "toxic" match.
var opposingPairs = [][2]string{
	{"non-toxic", "toxic"},
	{"nontoxic", "toxic"},
	{"safe", "hazardous"},
	{"safe", "unsafe"},
	{"safe", "dangerous"},
	{"approved", "rejected"},
	{"compliant", "violation"},
	{"no risk", "risk"},
	{"passed", "failed"},
	{"harmless", "harmful"},
}

// opposing reports whether the two findings take opposite sides of a
// known keyword pair, in either order. It also catches plain negation:
// one finding stating "not <keyword>" while the other states the
// keyword.
func opposing(a, b string) (string, string, bool) {
	lowerA := strings.ToLower(a)
	lowerB := strings.ToLower(b)

	for _, pair := range opposingPairs {
		neg, pos := pair[0], pair[1]
		if sidesMatch(lowerA, lowerB, neg, pos) {
			return neg, pos, true
		}
		if sidesMatch(lowerB, lowerA, neg, pos) {
			return neg, pos, true
		}
	}

	for _, side := range []struct{ x, y string }{{lowerA, lowerB}, {lowerB, lowerA}} {
		if keyword, ok := negatedKeywordIn(side.x, side.y); ok {
			return "not " + keyword, keyword, true
		}
	}
	return "", "", false
}

// sidesMatch checks that a carries the negative keyword and b carries
// the positive one without also carrying the negative.
func sidesMatch(a, b, neg, pos string) bool {
	return strings.Contains(a, neg) && strings.Contains(b, pos) && !strings.Contains(b, neg)
}

// negatedKeywordIn finds a "not <word>" or "no <word>" phrase in a whose
// bare word also appears in b un-negated.
func negatedKeywordIn(a, b string) (string, bool) {
	words := strings.Fields(a)
	for i := 0; i+1 < len(words); i++ {
		if words[i] != "not" && words[i] != "no" {
			continue
		}
		keyword := strings.Trim(words[i+1], ".,;:!?")
		if len(keyword) < 4 {
			continue
		}
		if strings.Contains(b, keyword) &&
			!strings.Contains(b, "not "+keyword) && !strings.Contains(b, "no "+keyword) {
			return keyword, true
		}
	}
	return "", false
}
