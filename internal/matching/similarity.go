package matching

import (
	"math"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/mozillazg/go-unidecode"
)

// ProfileVersion pins the scoring constants below together with the sheet
// layout constants. Change it whenever any of them change.
const ProfileVersion = "2024.2"

const (
	MatchThreshold = 0.8
	PrefixFraction = 0.6

	WeightPrefix      = 0.1
	WeightSignificant = 0.7
	WeightWhole       = 0.2
)

type pairKey struct{ lo, hi string }

func keyOf(a, b Name) pairKey {
	x, y := a.Normalized+"\x00"+a.City, b.Normalized+"\x00"+b.City
	if y < x {
		x, y = y, x
	}
	return pairKey{lo: x, hi: y}
}

// Scorer computes weighted bigram similarity between hotel names and
// memoizes pair scores. A Scorer belongs to one session and is not safe for
// concurrent use.
type Scorer struct {
	dice  *metrics.SorensenDice
	cache map[pairKey]float64
	hits  int
}

func NewScorer() *Scorer {
	d := metrics.NewSorensenDice()
	d.CaseSensitive = false
	d.NgramSize = 2
	return &Scorer{dice: d, cache: make(map[pairKey]float64)}
}

// Dice is the plain character-bigram coefficient of two strings.
func (s *Scorer) Dice(a, b string) float64 {
	return strutil.Similarity(fold(a), fold(b), s.dice)
}

// Score returns the combined similarity of two names in [0, 1]. Differing
// cities or star ratings veto the match outright.
func (s *Scorer) Score(a, b Name) float64 {
	k := keyOf(a, b)
	if v, ok := s.cache[k]; ok {
		s.hits++
		return v
	}
	v := s.score(a, b)
	s.cache[k] = v
	return v
}

// ScoreNormalized scores two already normalized names without city data.
func (s *Scorer) ScoreNormalized(a, b string) float64 {
	return s.Score(Name{Normalized: a}, Name{Normalized: b})
}

// Matches reports whether two names score at or above MatchThreshold.
func (s *Scorer) Matches(a, b Name) bool { return s.Score(a, b) >= MatchThreshold }

// CacheStats returns the number of cached pairs and cache hits so far.
func (s *Scorer) CacheStats() (size, hits int) { return len(s.cache), s.hits }

func (s *Scorer) score(a, b Name) float64 {
	if a.Normalized == "" || b.Normalized == "" {
		return 0
	}
	if a.City != "" && b.City != "" && a.City != b.City {
		return 0
	}
	if sa, sb := StarOf(a.Normalized), StarOf(b.Normalized); sa != "" && sb != "" && sa != sb {
		return 0
	}

	x, y := stripStars(a.Normalized), stripStars(b.Normalized)
	if x == y {
		return 1
	}
	whole := s.Dice(x, y)
	prefix := s.Dice(prefixWords(x), prefixWords(y))
	sig := whole
	if sx, sy := significant(x), significant(y); sx != "" && sy != "" {
		sig = s.Dice(sx, sy)
	}

	v := WeightPrefix*prefix + WeightSignificant*sig + WeightWhole*whole
	v = math.Round(v*1e6) / 1e6
	return math.Max(0, math.Min(1, v))
}

func prefixWords(s string) string {
	words := strings.Fields(s)
	k := int(math.Round(PrefixFraction * float64(len(words))))
	if k < 1 {
		k = 1
	}
	if k > len(words) {
		k = len(words)
	}
	return strings.Join(words[:k], " ")
}

// fold transliterates to ASCII so Cyrillic and accented spellings compare.
func fold(s string) string {
	return strings.ToLower(unidecode.Unidecode(s))
}
