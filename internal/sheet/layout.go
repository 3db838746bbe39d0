package sheet

import (
	"strings"
	"time"

	"hotel_pricesheet/internal/domain"
)

const (
	// BlockHeight is the number of rows every hotel block spans.
	BlockHeight = 9
	// FirstDataRow is the first row below the two header rows.
	FirstDataRow = 3
	// PopulatedProbe is how many leading date cells must be filled for a
	// block to count as already populated.
	PopulatedProbe = 8

	NameCol = 1
	DateCol = 2
)

// Well-known aggregators of the production template.
const (
	OnlineCentrum domain.Aggregator = "Online-Centrum"
	Kompastour    domain.Aggregator = "Kompastour"
	FunSun        domain.Aggregator = "FunSun"
	Kazunion      domain.Aggregator = "Kazunion"
	PrestigeUZ    domain.Aggregator = "PrestigeUZ"
	AsiaLuxe      domain.Aggregator = "AsiaLuxe"
	EasyBooking   domain.Aggregator = "EasyBooking"
)

type DatePolicy int

const (
	Contiguous DatePolicy = iota
	FilteredWeekday
)

func (p DatePolicy) String() string {
	if p == FilteredWeekday {
		return "filtered-weekday"
	}
	return "contiguous"
}

// Layout fixes the columns of a hotel block.
type Layout struct {
	RoomTypeCol int
	Prices      map[domain.Aggregator]int
	// Primary is the aggregator whose names are taken as canonical.
	Primary domain.Aggregator
}

// PriceCol returns the price column for an aggregator.
func (l Layout) PriceCol(a domain.Aggregator) (int, bool) {
	if c, ok := l.Prices[a]; ok {
		return c, true
	}
	for k, c := range l.Prices {
		if strings.EqualFold(string(k), string(a)) {
			return c, true
		}
	}
	return 0, false
}

// Canonical returns the aggregator id as spelled in the layout.
func (l Layout) Canonical(a domain.Aggregator) domain.Aggregator {
	if _, ok := l.Prices[a]; ok {
		return a
	}
	for k := range l.Prices {
		if strings.EqualFold(string(k), string(a)) {
			return k
		}
	}
	return a
}

// Profile bundles the layout and calendar rules of one destination.
type Profile struct {
	Name     string
	Aliases  []string
	Policy   DatePolicy
	Weekdays []time.Weekday
	Height   int
	Layout   Layout
}

// Allows reports whether a weekday takes a row under this profile.
func (p Profile) Allows(d time.Weekday) bool {
	if p.Policy != FilteredWeekday {
		return true
	}
	for _, w := range p.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// Rows is the block height of this profile.
func (p Profile) Rows() int {
	if p.Height > 0 {
		return p.Height
	}
	return BlockHeight
}

var defaultLayout = Layout{
	RoomTypeCol: 9,
	Primary:     OnlineCentrum,
	Prices: map[domain.Aggregator]int{
		OnlineCentrum: 3,
		Kompastour:    4,
		FunSun:        5,
		Kazunion:      6,
		PrestigeUZ:    7,
		EasyBooking:   8,
	},
}

var uaeLayout = Layout{
	RoomTypeCol: 10,
	Primary:     OnlineCentrum,
	Prices: map[domain.Aggregator]int{
		OnlineCentrum: 3,
		Kompastour:    4,
		FunSun:        5,
		Kazunion:      6,
		PrestigeUZ:    7,
		AsiaLuxe:      8,
		EasyBooking:   9,
	},
}

var profiles = []Profile{
	{
		Name:     "georgia",
		Aliases:  []string{"georgia", "грузия"},
		Policy:   FilteredWeekday,
		Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Thursday, time.Friday},
		Layout:   defaultLayout,
	},
	{
		Name:     "uae",
		Aliases:  []string{"uae", "оаэ", "united arab emirates"},
		Policy:   FilteredWeekday,
		Weekdays: []time.Weekday{time.Tuesday, time.Saturday},
		Layout:   uaeLayout,
	},
}

// ProfileFor picks the profile of a destination. Unknown destinations get
// the contiguous calendar on the default layout.
func ProfileFor(destination string) Profile {
	d := strings.ToLower(strings.TrimSpace(destination))
	for _, p := range profiles {
		for _, a := range p.Aliases {
			if d == a {
				return p
			}
		}
	}
	name := d
	if name == "" {
		name = "default"
	}
	return Profile{Name: name, Policy: Contiguous, Layout: defaultLayout}
}
