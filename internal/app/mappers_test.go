package app_test

import (
	"errors"
	"strings"
	"testing"

	"hotel_pricesheet/internal/app"
	"hotel_pricesheet/internal/domain"
)

func TestParseDate_Formats(t *testing.T) {
	cases := map[string]string{
		"12.03.2025":          "2025-03-12",
		"12.03.2025, Wed":     "2025-03-12",
		"2.3.2025":            "2025-03-02",
		"2025-03-12":          "2025-03-12",
		"12/03/2025":          "2025-03-12",
		"12.03":               "2025-03-12",
		" 01.12.2025, monday": "2025-12-01",
	}
	for in, want := range cases {
		got, err := app.ParseDate(in, 2025)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got.Format("2006-01-02") != want {
			t.Fatalf("%q = %s, want %s", in, got.Format("2006-01-02"), want)
		}
	}
	for _, bad := range []string{"", "31.02", "tomorrow", "12.13.2025"} {
		if _, err := app.ParseDate(bad, 2025); !errors.Is(err, domain.ErrInvalidDate) {
			t.Fatalf("%q: err = %v", bad, err)
		}
	}
}

func TestMapBatch_FlexiblePayload(t *testing.T) {
	b, rejects, err := app.MapBatch(map[string]any{
		"search": map[string]any{"country": "Грузия", "dateFrom": "10.03.2025"},
		"results": []any{
			map[string]any{"hotelName": "Iveria Inn", "checkIn": "11.03", "amount": "1 234,50", "room": "Double", "ota": "FunSun"},
			map[string]any{"hotel": map[string]any{"name": "Nested Hotel"}, "date": "12.03.2025", "price": 99, "aggregatorId": "Kazunion"},
		},
	})
	if err != nil || len(rejects) != 0 {
		t.Fatalf("map: %v %+v", err, rejects)
	}
	if b.Destination != "Грузия" || b.StartDate.Format("02.01.2006") != "10.03.2025" {
		t.Fatalf("batch header = %q %s", b.Destination, b.StartDate)
	}
	if len(b.Offers) != 2 {
		t.Fatalf("offers = %d", len(b.Offers))
	}
	o := b.Offers[0]
	if o.HotelRaw != "Iveria Inn" || o.Aggregator != "FunSun" || o.RoomType != "Double" || o.Price.String() != "1234.5" {
		t.Fatalf("offer = %+v", o)
	}
	if o.Date.Format("02.01.2006") != "11.03.2025" {
		t.Fatalf("short date took year %s", o.Date.Format("2006"))
	}
}

func TestMapBatch_RejectsBadOffers(t *testing.T) {
	b, rejects, err := app.MapBatch(map[string]any{
		"destination": "UAE",
		"offers": []any{
			map[string]any{"hotel": "Good", "date": "12.03.2025", "price": 10.5, "aggregatorId": "AsiaLuxe"},
			map[string]any{"hotel": 42, "date": "12.03.2025", "price": 10, "aggregatorId": "AsiaLuxe"},
			map[string]any{"hotel": "", "date": "12.03.2025", "price": 10, "aggregatorId": "AsiaLuxe"},
			map[string]any{"hotel": "No Agg", "date": "12.03.2025", "price": 10},
			map[string]any{"hotel": "Bad Date", "date": "someday", "price": 10, "aggregatorId": "AsiaLuxe"},
			map[string]any{"hotel": "Free", "date": "12.03.2025", "price": 0, "aggregatorId": "AsiaLuxe"},
			"not an object",
		},
	})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(b.Offers) != 1 || len(rejects) != 6 {
		t.Fatalf("offers = %d rejects = %+v", len(b.Offers), rejects)
	}
	if !strings.Contains(rejects[0].Reason, domain.ErrEmptyHotelName.Error()) || rejects[0].Index != 1 {
		t.Fatalf("first reject = %+v", rejects[0])
	}
	if rejects[2].Hotel != "No Agg" || !strings.Contains(rejects[2].Reason, domain.ErrUnknownAggregator.Error()) {
		t.Fatalf("aggregator reject = %+v", rejects[2])
	}
	if b.StartDate.Format("02.01.2006") != "12.03.2025" {
		t.Fatalf("start date from offers = %s", b.StartDate)
	}
}

func TestMapBatch_BadShape(t *testing.T) {
	if _, _, err := app.MapBatch(map[string]any{"offers": "nope"}); err == nil {
		t.Fatalf("expected error for non-list offers")
	}
	if _, _, err := app.MapBatch(map[string]any{"startDate": "soon"}); !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("start date err = %v", err)
	}
}
