package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hotel_pricesheet/internal/domain"
	"hotel_pricesheet/internal/sheet"
)

// ---- fakes ----

type fakeRuns struct {
	mu     sync.Mutex
	runs   []domain.Run
	misses []domain.Miss
	reads  int
	err    error
}

func (f *fakeRuns) InsertRun(_ context.Context, r domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, r)
	return nil
}

func (f *fakeRuns) InsertMisses(_ context.Context, ms []domain.Miss) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.misses = append(f.misses, ms...)
	return nil
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.runs) > limit {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeRuns) GetRun(_ context.Context, id string) (domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Run{}, domain.ErrNotFound
}

func (f *fakeRuns) ListMisses(_ context.Context, runID string, limit int) ([]domain.Miss, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	var out []domain.Miss
	for _, m := range f.misses {
		if m.RunID == runID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeCache stores JSON like the redis adapter does, so decoded values never
// alias what was stored.
type fakeCache struct {
	mu      sync.Mutex
	store   map[string][]byte
	failSet error
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet != nil {
		return c.failSet
	}
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

type fakeAliasSource struct {
	version string
	table   domain.AliasTable
	loads   int
}

func (f *fakeAliasSource) Version(string) (string, error) { return f.version, nil }

func (f *fakeAliasSource) Load(string) (domain.AliasTable, error) {
	f.loads++
	return f.table, nil
}

// ---- helpers ----

// testProfile is a contiguous layout with two aggregators, A and B.
func testProfile(string) sheet.Profile {
	return sheet.Profile{
		Name:   "test",
		Policy: sheet.Contiguous,
		Layout: sheet.Layout{
			RoomTypeCol: 9,
			Primary:     "A",
			Prices:      map[domain.Aggregator]int{"A": 3, "B": 4},
		},
	}
}

const (
	colA = 3
	colB = 4
	colR = 9
)

func date(s string) time.Time {
	t, err := time.Parse("02.01.2006", s)
	if err != nil {
		panic(err)
	}
	return t
}

func offer(hotel, agg, day string, price int64, room string) domain.Offer {
	return domain.Offer{
		HotelRaw:   hotel,
		Aggregator: domain.Aggregator(agg),
		Date:       date(day),
		RoomType:   room,
		Price:      decimal.NewFromInt(price),
	}
}
