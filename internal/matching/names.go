package matching

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const quoteChars = "\"'`«»“”„‘’"

var (
	reParenStar     = regexp.MustCompile(`\(\s*(\d\s*\*+|\*+\s*\d|\*{1,5})\s*\)`)
	reParenGroup    = regexp.MustCompile(`\([^()]*\)`)
	reDigitStar     = regexp.MustCompile(`\b(\d)\s*\*+|(?:^|\s)\*+\s*(\d)\b`)
	reSpelledStar   = regexp.MustCompile(`(?i)\b(one|two|three|four|five)[\s-]?stars?\b`)
	reSpace         = regexp.MustCompile(`\s+`)
	reTrailingParen = regexp.MustCompile(`\(([^()]*)\)\s*$`)
)

var spelledStars = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
}

// NormalizeName canonicalizes a raw hotel name for comparison. Star ratings
// in any notation fold to a single "N*" token, parenthetical groups are
// dropped, and the result is lowercase with single spaces. It is idempotent.
func NormalizeName(raw string) string {
	s := normalizeOnce(raw)
	// folding can leave a star run or quote at an edge; settle it
	for i := 0; i < 3; i++ {
		next := normalizeOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func normalizeOnce(raw string) string {
	s := trimEdges(strings.ReplaceAll(raw, ".", " "))

	s = reParenStar.ReplaceAllStringFunc(s, func(m string) string {
		return " " + starToken(reParenStar.FindStringSubmatch(m)[1]) + " "
	})
	for {
		next := reParenGroup.ReplaceAllString(s, " ")
		if next == s {
			break
		}
		s = next
	}
	s = trimEdges(s)

	s = reDigitStar.ReplaceAllString(s, " ${1}${2}* ")
	s = reSpelledStar.ReplaceAllStringFunc(s, func(m string) string {
		sub := reSpelledStar.FindStringSubmatch(m)
		return " " + spelledStars[strings.ToLower(sub[1])] + "* "
	})

	words := strings.Fields(s)
	for i, w := range words {
		if n := len(w); strings.Count(w, "*") == n && n <= 5 {
			words[i] = strconv.Itoa(n) + "*"
		}
	}
	s = trimEdges(strings.ToLower(strings.Join(words, " ")))
	return reSpace.ReplaceAllString(s, " ")
}

// trimEdges drops any mix of quotes and whitespace at both ends.
func trimEdges(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(quoteChars, r)
	})
}

// starToken folds "5*", "* 5" or "*****" into "5*".
func starToken(s string) string {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return string(r) + "*"
		}
	}
	return strconv.Itoa(strings.Count(s, "*")) + "*"
}

// CityOf returns the lowercased content of a trailing parenthetical group in
// a raw name, when that group reads like a place rather than a star rating.
func CityOf(raw string) string {
	s := trimEdges(raw)
	m := reTrailingParen.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	inner := strings.TrimSpace(m[1])
	if inner == "" || strings.ContainsAny(inner, "*0123456789") {
		return ""
	}
	if reSpelledStar.MatchString(inner) {
		return ""
	}
	return strings.ToLower(reSpace.ReplaceAllString(inner, " "))
}

// StarOf returns the first "N*" token of a normalized name.
func StarOf(normalized string) string {
	for _, w := range strings.Fields(normalized) {
		if isStarToken(w) {
			return w
		}
	}
	return ""
}

func isStarToken(w string) bool {
	return len(w) == 2 && w[1] == '*' && w[0] >= '0' && w[0] <= '9'
}

func stripStars(normalized string) string {
	words := strings.Fields(normalized)
	out := words[:0]
	for _, w := range words {
		if !isStarToken(w) {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// Name is a hotel name prepared for scoring.
type Name struct {
	Raw        string
	Normalized string
	City       string
}

func NewName(raw string) Name {
	return Name{Raw: raw, Normalized: NormalizeName(raw), City: CityOf(raw)}
}
