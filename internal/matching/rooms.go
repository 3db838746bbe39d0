package matching

import (
	"regexp"
	"strings"
)

var (
	reMarkup = regexp.MustCompile(`<[^>]*>`)

	// Order matters: suite synonyms must win over "executive".
	roomRules = []struct {
		re  *regexp.Regexp
		out string
	}{
		{regexp.MustCompile(`(?i)\b(junior suite|executive suite|jr\.? suite|suite|suites)\b`), "suite"},
		{regexp.MustCompile(`(?i)\b(dbl|double|twin|2 adults|2 adl|2pax|king|queen)\b`), "double"},
		{regexp.MustCompile(`(?i)\b(economy|econom|standard|budget|std)\b`), "standard"},
		{regexp.MustCompile(`(?i)\b(single|sgl)\b`), "single"},
		{regexp.MustCompile(`(?i)\b(triple|trpl)\b`), "triple"},
		{regexp.MustCompile(`(?i)\b(quadruple|quad)\b`), "quad"},
		{regexp.MustCompile(`(?i)\bexecutive\b`), "executive"},
		{regexp.MustCompile(`(?i)\b(superior|sup)\b`), "superior"},
	}

	reRoomNoise = regexp.MustCompile(`(?i)\b(rooms?|with|and|or|street|view|balcony|city|sea|garden|back|opera|high|floor|partial)\b`)
)

// NormalizeRoomType maps a raw room type onto the controlled vocabulary
// (double, standard, single, triple, quad, executive, superior, suite). When
// no keyword is present it returns the lowercased residual text with noise
// words removed.
func NormalizeRoomType(raw string) string {
	s := reMarkup.ReplaceAllString(raw, " ")
	for _, r := range roomRules {
		if r.re.MatchString(s) {
			return r.out
		}
	}
	s = reRoomNoise.ReplaceAllString(s, " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
