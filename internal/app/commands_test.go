package app_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hotel_pricesheet/internal/app"
	"hotel_pricesheet/internal/domain"
	"hotel_pricesheet/internal/sheet"
	"hotel_pricesheet/internal/sheet/sheettest"
	"hotel_pricesheet/internal/shared"
)

type harness struct {
	ws    *sheettest.Sheet
	wb    *sheettest.Workbook
	gw    *sheettest.Gateway
	runs  *fakeRuns
	cache *fakeCache
	svc   *app.ReconcileService
}

func newHarness(mode string) *harness {
	h := &harness{ws: sheettest.NewSheet("Prices"), runs: &fakeRuns{}, cache: &fakeCache{}}
	h.wb = sheettest.NewWorkbook(h.ws)
	h.gw = &sheettest.Gateway{WB: h.wb}
	cfg := app.ReconcileConfig{
		TemplatePath: "/data/template.xlsx",
		OutputMode:   mode,
		OutputDir:    "/data/out",
		Profiles:     testProfile,
	}
	h.svc = app.NewReconcileService(h.gw, h.runs, nil, h.cache, cfg, zerolog.Nop()).
		WithClock(func() time.Time { return time.Date(2025, 3, 12, 10, 15, 0, 0, time.UTC) })
	return h
}

func mustBatch(t *testing.T, payload map[string]any) domain.Batch {
	t.Helper()
	b, rejects, err := app.MapBatch(payload)
	if err != nil || len(rejects) > 0 {
		t.Fatalf("map batch: %v %+v", err, rejects)
	}
	return b
}

func TestReconcile_FreshTemplateThenSecondAggregator(t *testing.T) {
	h := newHarness(shared.OutputInPlace)
	ctx := context.Background()

	first := mustBatch(t, map[string]any{
		"destination": "Testland",
		"offers": []any{map[string]any{
			"hotel": "Beach Resort 5*", "date": "12.03.2025", "price": 120.0,
			"roomType": "Double Room", "aggregatorId": "A",
		}},
	})
	res := h.svc.Reconcile(ctx, first)
	if !res.Success || res.FilePath != "/data/template.xlsx" {
		t.Fatalf("first result = %+v", res)
	}
	if got := h.ws.Text(3, sheet.NameCol); got != "Beach Resort 5*" {
		t.Fatalf("name = %q", got)
	}
	top, bottom, ok := h.ws.Merged(3, sheet.NameCol)
	if !ok || top != 3 || bottom-top+1 != sheet.BlockHeight {
		t.Fatalf("block = %d-%d (%v)", top, bottom, ok)
	}
	if got := h.ws.Text(3, sheet.DateCol); got != "12.03" {
		t.Fatalf("date label = %q", got)
	}
	if got := h.ws.Text(3, colR); got != "Double Room" {
		t.Fatalf("room type = %q", got)
	}
	if got := h.ws.Text(3, colA); got != "120" {
		t.Fatalf("A price = %q", got)
	}

	second := mustBatch(t, map[string]any{
		"destination": "Testland",
		"offers": []any{map[string]any{
			"hotel": "BEACH RESORT (5*)", "date": "12.03.2025", "price": 115,
			"roomType": "Dbl", "aggregatorId": "B",
		}},
	})
	res = h.svc.Reconcile(ctx, second)
	if !res.Success {
		t.Fatalf("second result = %+v", res)
	}
	if n := len(h.ws.Merges()); n != 1 {
		t.Fatalf("merges = %d, want the same block", n)
	}
	if got := h.ws.Text(3, colB); got != "115" {
		t.Fatalf("B price = %q", got)
	}
	if got := h.ws.Text(3, colA); got != "120" {
		t.Fatalf("A price disturbed: %q", got)
	}
	if len(h.wb.Written) != 2 {
		t.Fatalf("saves = %v", h.wb.Written)
	}
	if len(h.runs.runs) != 2 || !h.runs.runs[1].Success || h.runs.runs[1].BlocksCreated != 0 {
		t.Fatalf("runs = %+v", h.runs.runs)
	}
	if !h.cache.has("runs:gen") {
		t.Fatalf("run listing generation not bumped")
	}
}

func TestReconcile_TimestampedOutputPath(t *testing.T) {
	h := newHarness(shared.OutputTimestamped)
	res := h.svc.Reconcile(context.Background(), domain.Batch{
		Destination: "Georgia / Tbilisi",
		Offers:      []domain.Offer{offer("Beach Resort 5*", "A", "12.03.2025", 120, "Double Room")},
	})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if filepath.Dir(res.FilePath) != "/data/out" {
		t.Fatalf("dir = %q", filepath.Dir(res.FilePath))
	}
	base := filepath.Base(res.FilePath)
	if !strings.HasPrefix(base, "FilledTemplate-georgia-tbilisi-20250312-101500-") || !strings.HasSuffix(base, ".xlsx") {
		t.Fatalf("file = %q", base)
	}
	if !strings.HasPrefix(res.RunID, strings.TrimSuffix(strings.TrimPrefix(base, "FilledTemplate-georgia-tbilisi-20250312-101500-"), ".xlsx")) {
		t.Fatalf("run id %q not in %q", res.RunID, base)
	}
}

func TestReconcile_NoOffers(t *testing.T) {
	h := newHarness(shared.OutputInPlace)
	res := h.svc.Reconcile(context.Background(), domain.Batch{Destination: "Testland"})
	if !res.Success || res.Message != "no offers to reconcile" {
		t.Fatalf("result = %+v", res)
	}
	if len(h.gw.Loaded) != 0 || len(h.runs.runs) != 0 {
		t.Fatalf("empty batch touched the template")
	}
}

func TestReconcile_LoadFailureIsRecorded(t *testing.T) {
	h := newHarness(shared.OutputInPlace)
	h.gw.LoadErr = errors.New("no such file")

	res := h.svc.Reconcile(context.Background(), domain.Batch{
		Offers: []domain.Offer{offer("Beach Resort 5*", "A", "12.03.2025", 120, "Double Room")},
	})
	if res.Success || !strings.Contains(res.Message, "load template") {
		t.Fatalf("result = %+v", res)
	}
	if len(h.runs.runs) != 1 || h.runs.runs[0].Success {
		t.Fatalf("runs = %+v", h.runs.runs)
	}
}

func TestReconcile_SaveFailure(t *testing.T) {
	h := newHarness(shared.OutputInPlace)
	h.wb.FailWrites = 1

	res := h.svc.Reconcile(context.Background(), domain.Batch{
		Offers: []domain.Offer{offer("Beach Resort 5*", "A", "12.03.2025", 120, "Double Room")},
	})
	if res.Success || res.FilePath != "" || !strings.Contains(res.Message, sheettest.ErrLocked.Error()) {
		t.Fatalf("result = %+v", res)
	}
	if !h.wb.Closed {
		t.Fatalf("workbook left open")
	}
}

func TestReconcile_MissesAreRecorded(t *testing.T) {
	h := newHarness(shared.OutputInPlace)
	res := h.svc.Reconcile(context.Background(), domain.Batch{
		Offers: []domain.Offer{
			offer("Beach Resort 5*", "A", "12.03.2025", 120, "Double Room"),
			offer("Beach Resort 5*", "Q", "12.03.2025", 100, "Double Room"),
		},
	})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if len(h.runs.misses) != 1 || h.runs.misses[0].RunID != res.RunID || h.runs.misses[0].Aggregator != "Q" {
		t.Fatalf("misses = %+v", h.runs.misses)
	}
	if r := h.runs.runs[0]; r.OffersWritten != 1 || r.OffersSkipped != 1 || r.OutputPath != res.FilePath {
		t.Fatalf("run = %+v", r)
	}
}

func TestReconcile_GenerationBumpFailureIsLogged(t *testing.T) {
	h := newHarness(shared.OutputInPlace)
	h.cache.failSet = errors.New("redis down")
	var buf bytes.Buffer
	svc := app.NewReconcileService(h.gw, h.runs, nil, h.cache, app.ReconcileConfig{
		TemplatePath: "/data/template.xlsx",
		OutputMode:   shared.OutputInPlace,
		Profiles:     testProfile,
	}, zerolog.New(&buf))

	res := svc.Reconcile(context.Background(), domain.Batch{
		Offers: []domain.Offer{offer("Beach Resort 5*", "A", "12.03.2025", 120, "Double Room")},
	})
	if !res.Success || len(h.runs.runs) != 1 {
		t.Fatalf("result = %+v runs = %d", res, len(h.runs.runs))
	}
	out := buf.String()
	if !strings.Contains(out, "bump run listing generation failed") || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("log = %s", out)
	}
}

func TestReconcile_UsesAliasService(t *testing.T) {
	h := newHarness(shared.OutputInPlace)
	src := &fakeAliasSource{version: "v1", table: domain.AliasTable{"B": {"Sea Breeze Htl": "Beach Resort 5*"}}}
	aliases := app.NewAliasService(src, h.cache, "/data/aliases.xlsx", time.Hour)
	svc := app.NewReconcileService(h.gw, h.runs, aliases, h.cache, app.ReconcileConfig{
		TemplatePath: "/data/template.xlsx",
		OutputMode:   shared.OutputInPlace,
		Profiles:     testProfile,
	}, zerolog.Nop())

	res := svc.Reconcile(context.Background(), domain.Batch{
		Offers: []domain.Offer{
			offer("Beach Resort 5*", "A", "12.03.2025", 120, "Double Room"),
			offer("Sea Breeze Htl", "B", "12.03.2025", 115, "Double Room"),
		},
	})
	if !res.Success || len(h.ws.Merges()) != 1 {
		t.Fatalf("result = %+v merges = %d", res, len(h.ws.Merges()))
	}
	if got := h.ws.Text(3, colB); got != "115" {
		t.Fatalf("B price = %q", got)
	}
}
