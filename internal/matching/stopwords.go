package matching

import "strings"

// Hospitality vocabulary and region names that carry no identity on their own.
var stopWords = map[string]struct{}{}

// Multi-word regions are removed before tokenizing.
var stopPhrases = []string{
	"samegrelo-upper svaneti",
	"samtskhe-javakheti",
	"abu dhabi",
	"ras al khaimah",
	"umm al quwain",
	"al barsha",
	"bur dubai",
}

func init() {
	for _, w := range strings.Fields(`
		by hotel hotels suites residence resort lodge place house boutique spa
		b&b motel hostel guesthouse accommodation stay room rooms palace
		international national luxury budget economy apartments bungalows line
		villa villas official
		tbilisi adjara gudauri gurjaani imereti kazbegi kvareli lagodekhi mtskheta
		shekvetili кахетия телави
		ajman dubai fujairah sharjah deira`) {
		stopWords[w] = struct{}{}
	}
}

// significant drops stopwords and bare numerals from a normalized name.
func significant(s string) string {
	s = " " + s + " "
	for _, p := range stopPhrases {
		s = strings.ReplaceAll(s, " "+p+" ", "  ")
	}
	words := strings.Fields(s)
	out := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; stop || isNumeral(w) {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func isNumeral(w string) bool {
	for _, r := range w {
		if r < '0' || r > '9' {
			return false
		}
	}
	return w != ""
}
