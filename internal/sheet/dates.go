package sheet

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"hotel_pricesheet/internal/domain"
)

// Dates match on day and month only; templates are reused year over year.
const labelLayout = "02.01"

var (
	reDayMonth = regexp.MustCompile(`^\s*(\d{1,2})[./-](\d{1,2})`)
	reISODate  = regexp.MustCompile(`^\s*(\d{4})-(\d{1,2})-(\d{1,2})`)
	excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

// DayMonth renders the "DD.MM" matching key of a date.
func DayMonth(t time.Time) string { return t.Format(labelLayout) }

// LabelOf reads a date cell as a "DD.MM" key. Text labels, typed dates and
// date serial numbers are all accepted.
func LabelOf(v domain.CellValue) (string, bool) {
	switch v.Kind {
	case domain.CellDate:
		return DayMonth(v.Date), true
	case domain.CellNumber:
		if v.Number < 1 || v.Number > 2958465 {
			return "", false
		}
		return DayMonth(excelEpoch.AddDate(0, 0, int(v.Number))), true
	case domain.CellText:
		if m := reISODate.FindStringSubmatch(v.Text); m != nil {
			return pad(m[3]) + "." + pad(m[2]), true
		}
		if m := reDayMonth.FindStringSubmatch(v.Text); m != nil {
			return pad(m[1]) + "." + pad(m[2]), true
		}
	}
	return "", false
}

func pad(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%02d", n)
}

// DateResolver places offer dates on the rows of a block.
type DateResolver struct {
	ws      domain.Worksheet
	profile Profile
	height  int
}

func NewDateResolver(ws domain.Worksheet, p Profile) *DateResolver {
	return &DateResolver{ws: ws, profile: p, height: p.Rows()}
}

// Walk lists the dates a block holds when populated from start. Under the
// filtered-weekday policy only allowed weekdays take a row.
func (d *DateResolver) Walk(start time.Time) []time.Time {
	out := make([]time.Time, 0, d.height)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; len(out) < d.height && i < d.height*7; i++ {
		if d.profile.Allows(day.Weekday()) {
			out = append(out, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// Beyond reports whether date falls after the last row a block started at
// start can hold.
func (d *DateResolver) Beyond(start, date time.Time) bool {
	walk := d.Walk(start)
	if len(walk) == 0 {
		return true
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return day.After(walk[len(walk)-1])
}

// Populated reports whether the leading date cells of a block are filled.
func (d *DateResolver) Populated(blockStart int) (bool, error) {
	probe := PopulatedProbe
	if probe > d.height {
		probe = d.height
	}
	for i := 0; i < probe; i++ {
		v, err := d.ws.Cell(blockStart+i, DateCol)
		if err != nil {
			return false, err
		}
		if v.IsEmpty() {
			return false, nil
		}
	}
	return true, nil
}

// Populate writes the date labels of a block.
func (d *DateResolver) Populate(blockStart int, start time.Time) error {
	for i, day := range d.Walk(start) {
		if err := d.ws.SetCell(blockStart+i, DateCol, domain.Text(DayMonth(day))); err != nil {
			return fmt.Errorf("write date row %d: %w", blockStart+i, err)
		}
	}
	return nil
}

// Resolve returns the row for date inside the block starting at blockStart.
// The walk from start gives the expected row; existing labels win when the
// block was populated from a different start date.
func (d *DateResolver) Resolve(blockStart int, start, date time.Time) (int, error) {
	key := DayMonth(date)
	if !d.profile.Allows(date.Weekday()) {
		return 0, fmt.Errorf("%w: %s falls on %s", domain.ErrDateOutOfRange, key, date.Weekday())
	}
	for i, day := range d.Walk(start) {
		if DayMonth(day) != key {
			continue
		}
		row := blockStart + i
		v, err := d.ws.Cell(row, DateCol)
		if err != nil {
			return 0, err
		}
		if lbl, ok := LabelOf(v); !ok || lbl == key {
			return row, nil
		}
		break
	}
	for i := 0; i < d.height; i++ {
		v, err := d.ws.Cell(blockStart+i, DateCol)
		if err != nil {
			return 0, err
		}
		if lbl, ok := LabelOf(v); ok && lbl == key {
			return blockStart + i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s not in rows %d-%d", domain.ErrDateOutOfRange, key, blockStart, blockStart+d.height-1)
}
