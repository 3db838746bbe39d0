package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hotel_pricesheet/internal/domain"
)

/********** alias registries (single source of truth) **********/

var batchAliases = map[string][]string{
	"destination": {"destination", "country", "search.country", "search.destination"},
	"start_date":  {"startDate", "start_date", "dateFrom", "search.startDate", "search.dateFrom"},
	"offers":      {"offers", "results", "items", "data.offers"},
}

var offerAliases = map[string][]string{
	"hotel":      {"hotel.name", "hotel", "hotelName", "hotel_name", "name"},
	"date":       {"date", "offerDate", "checkIn", "check_in"},
	"room_type":  {"roomType", "room_type", "room.name", "room", "roomName"},
	"aggregator": {"aggregatorId", "aggregator", "aggregator_id", "ota", "source"},
	"price":      {"price.amount", "price", "amount", "total"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// firstAny: first present value for a named alias set.
func firstAny(m map[string]any, aliases map[string][]string, key string) any {
	for _, p := range aliases[key] {
		if v := lookupAny(m, p); v != nil {
			return v
		}
	}
	return nil
}

// decimalFlexible: price from float64/int/string like "1 234,50" or "€120".
func decimalFlexible(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case string:
		return parsePrice(x)
	}
	return decimal.Decimal{}, false
}

func parsePrice(s string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if i, j := strings.LastIndex(clean, "."), strings.LastIndex(clean, ","); i >= 0 && j >= 0 {
		if j > i {
			clean = strings.ReplaceAll(clean, ".", "")
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	}
	clean = strings.ReplaceAll(clean, ",", ".")
	if clean == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(clean)
	return d, err == nil
}

var dateLayouts = []string{"02.01.2006", "2.1.2006", "2006-01-02", "02/01/2006", "2/1/2006"}

// ParseDate reads offer dates: "DD.MM.YYYY", "DD.MM.YYYY, <weekday>",
// ISO dates, or "DD.MM" which takes year from the caller.
func ParseDate(s string, year int) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	if parts := strings.Split(s, "."); len(parts) == 2 && year > 0 {
		d, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil && m >= 1 && m <= 12 && d >= 1 && d <= 31 {
			t := time.Date(year, time.Month(m), d, 0, 0, 0, 0, time.UTC)
			if t.Day() == d {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidDate, s)
}

/********** batch mapper **********/

// Reject is an offer that could not be mapped.
type Reject struct {
	Index  int    `json:"index"`
	Hotel  string `json:"hotel,omitempty"`
	Reason string `json:"reason"`
}

// MapBatch builds a Batch from a loosely shaped scraper payload. Offers that
// cannot be mapped come back as rejects; the batch keeps the rest.
func MapBatch(p map[string]any) (domain.Batch, []Reject, error) {
	b := domain.Batch{Destination: firstNonEmptyAlias(p, batchAliases, "destination")}

	if s := firstNonEmptyAlias(p, batchAliases, "start_date"); s != "" {
		t, err := ParseDate(s, 0)
		if err != nil {
			return domain.Batch{}, nil, fmt.Errorf("start date: %w", err)
		}
		b.StartDate = t
	}

	var raw []any
	switch v := firstAny(p, batchAliases, "offers").(type) {
	case nil:
	case []any:
		raw = v
	default:
		return domain.Batch{}, nil, fmt.Errorf("offers: expected a list, got %T", v)
	}

	year := b.StartDate.Year()
	if b.StartDate.IsZero() {
		year = time.Now().Year()
	}
	var rejects []Reject
	for i, it := range raw {
		m, ok := it.(map[string]any)
		if !ok {
			rejects = append(rejects, Reject{Index: i, Reason: fmt.Sprintf("offer is %T, not an object", it)})
			continue
		}
		o, err := mapOffer(m, year)
		if err != nil {
			rejects = append(rejects, Reject{Index: i, Hotel: o.HotelRaw, Reason: err.Error()})
			continue
		}
		b.Offers = append(b.Offers, o)
	}

	if b.StartDate.IsZero() {
		for _, o := range b.Offers {
			if b.StartDate.IsZero() || o.Date.Before(b.StartDate) {
				b.StartDate = o.Date
			}
		}
	}
	return b, rejects, nil
}

func mapOffer(m map[string]any, year int) (domain.Offer, error) {
	o := domain.Offer{
		RoomType:   firstNonEmptyAlias(m, offerAliases, "room_type"),
		Aggregator: domain.Aggregator(firstNonEmptyAlias(m, offerAliases, "aggregator")),
	}
	switch h := firstAny(m, offerAliases, "hotel").(type) {
	case string:
		o.HotelRaw = strings.TrimSpace(h)
	case nil:
	default:
		return o, fmt.Errorf("%w: hotel is %T", domain.ErrEmptyHotelName, h)
	}
	if o.HotelRaw == "" {
		return o, domain.ErrEmptyHotelName
	}
	if o.Aggregator == "" {
		return o, fmt.Errorf("%w: missing aggregator", domain.ErrUnknownAggregator)
	}

	d, err := ParseDate(firstNonEmptyAlias(m, offerAliases, "date"), year)
	if err != nil {
		return o, err
	}
	o.Date = d

	price, ok := decimalFlexible(firstAny(m, offerAliases, "price"))
	if !ok || !price.IsPositive() {
		return o, fmt.Errorf("invalid price %v", firstAny(m, offerAliases, "price"))
	}
	o.Price = price
	return o, nil
}
