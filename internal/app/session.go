package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"hotel_pricesheet/internal/adapters/observability"
	"hotel_pricesheet/internal/domain"
	"hotel_pricesheet/internal/matching"
	"hotel_pricesheet/internal/sheet"
)

// HotelState is the position of one hotel group in the reconciliation flow.
type HotelState int

const (
	Resolving HotelState = iota
	Populating
	WritingOffers
	Done
)

func (s HotelState) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Populating:
		return "populating"
	case WritingOffers:
		return "writing_offers"
	default:
		return "done"
	}
}

type Options struct {
	UpdateMode   bool
	ForceRefresh bool
	// RequestedRow is a preferred start row for new blocks; zero means the
	// first free row.
	RequestedRow int
}

type Stats struct {
	Offers        int `json:"offers"`
	Written       int `json:"written"`
	Flagged       int `json:"flagged"`
	Unchanged     int `json:"unchanged"`
	Skipped       int `json:"skipped"`
	Duplicates    int `json:"duplicates"`
	BlocksCreated int `json:"blocksCreated"`
}

// Session reconciles offers into one worksheet. It owns the similarity
// cache and the high-water mark and must not be shared between goroutines.
type Session struct {
	ID      string
	ws      domain.Worksheet
	profile sheet.Profile
	start   time.Time
	scorer  *matching.Scorer
	alloc   *sheet.Allocator
	dates   *sheet.DateResolver
	cells   *sheet.CellReconciler
	aliases *AliasIndex
	opts    Options
	best    map[string]decimal.Decimal
	stats   Stats
	misses  []domain.Miss
	log     zerolog.Logger
}

func NewSession(id string, ws domain.Worksheet, p sheet.Profile, start time.Time, aliases *AliasIndex, opts Options, log zerolog.Logger) *Session {
	scorer := matching.NewScorer()
	return &Session{
		ID:      id,
		ws:      ws,
		profile: p,
		start:   start,
		scorer:  scorer,
		alloc:   sheet.NewAllocator(ws, scorer, p.Rows(), log),
		dates:   sheet.NewDateResolver(ws, p),
		cells:   sheet.NewCellReconciler(ws, scorer, opts.UpdateMode),
		aliases: aliases,
		opts:    opts,
		best:    map[string]decimal.Decimal{},
		log:     log,
	}
}

func (s *Session) Stats() Stats { return s.stats }
func (s *Session) Misses() []domain.Miss { return s.misses }

// hotelGroup is every offer of a batch that names the same hotel.
type hotelGroup struct {
	name   string
	offers []domain.Offer
}

// group collects offers per hotel and city in order of first appearance.
// Names from non-primary aggregators go through the alias table first, and a
// primary aggregator spelling becomes the block name when one is present.
func (s *Session) group(offers []domain.Offer) []*hotelGroup {
	primary := s.profile.Layout.Primary
	byKey := map[string]*hotelGroup{}
	var out []*hotelGroup
	for _, o := range offers {
		name := o.HotelRaw
		isPrimary := s.profile.Layout.Canonical(o.Aggregator) == primary
		if !isPrimary {
			if canonical, ok := s.aliases.Lookup(o.Aggregator, o.HotelRaw); ok {
				name = canonical
			}
		}
		n := matching.NewName(name)
		key := n.Normalized + "\x00" + n.City
		g, ok := byKey[key]
		if !ok {
			g = &hotelGroup{name: name}
			byKey[key] = g
			out = append(out, g)
		} else if isPrimary && g.name != o.HotelRaw {
			g.name = o.HotelRaw
		}
		g.offers = append(g.offers, o)
	}
	return out
}

// Run reconciles offers hotel by hotel. Offer and hotel failures are recorded
// as misses and never stop the run; only context cancellation does.
func (s *Session) Run(ctx context.Context, offers []domain.Offer) (Stats, error) {
	s.stats.Offers += len(offers)
	for _, g := range s.group(offers) {
		if err := ctx.Err(); err != nil {
			return s.stats, err
		}
		s.reconcileHotel(g)
	}
	s.log.Info().
		Int("offers", s.stats.Offers).
		Int("written", s.stats.Written).
		Int("flagged", s.stats.Flagged).
		Int("skipped", s.stats.Skipped).
		Int("blocks_created", s.stats.BlocksCreated).
		Msg("session finished")
	return s.stats, nil
}

func (s *Session) reconcileHotel(g *hotelGroup) {
	var block int
	for st := Resolving; st != Done; {
		s.log.Debug().Str("hotel", g.name).Str("state", st.String()).Msg("hotel state")
		switch st {
		case Resolving:
			res, err := s.alloc.Resolve(g.name, s.opts.RequestedRow)
			if err != nil {
				for _, o := range g.offers {
					s.miss(o, err)
				}
				return
			}
			observability.ObserveMatchScore(res.Score)
			if res.Created {
				s.stats.BlocksCreated++
				observability.ObserveBlockCreated()
			}
			block = res.Row
			st = Populating

		case Populating:
			populated, err := s.dates.Populated(block)
			if err != nil {
				s.log.Warn().Err(err).Int("row", block).Msg("date probe failed")
			}
			if !populated || s.opts.ForceRefresh {
				if err := s.dates.Populate(block, s.start); err != nil {
					s.log.Warn().Err(err).Int("row", block).Msg("date populate failed")
				}
			}
			st = WritingOffers

		case WritingOffers:
			for _, o := range g.offers {
				s.writeOffer(block, o)
			}
			st = Done
		}
	}
	if err := s.alloc.Rescan(); err != nil {
		s.log.Warn().Err(err).Msg("rescan failed")
	}
}

func (s *Session) writeOffer(block int, o domain.Offer) {
	layout := s.profile.Layout
	col, ok := layout.PriceCol(o.Aggregator)
	if !ok {
		s.miss(o, fmt.Errorf("%w: %q", domain.ErrUnknownAggregator, o.Aggregator))
		return
	}
	row, err := s.dates.Resolve(block, s.start, o.Date)
	if err != nil {
		if errors.Is(err, domain.ErrDateOutOfRange) && s.dates.Beyond(s.start, o.Date) {
			err = fmt.Errorf("%w: %s after rows %d-%d", domain.ErrBlockFull, sheet.DayMonth(o.Date), block, block+s.profile.Rows()-1)
		}
		s.miss(o, err)
		return
	}

	key := fmt.Sprintf("%s|%d|%s", layout.Canonical(o.Aggregator), block, sheet.DayMonth(o.Date))
	if prev, seen := s.best[key]; seen && !o.Price.LessThan(prev) {
		s.stats.Duplicates++
		observability.ObserveOffer("duplicate")
		return
	}
	s.best[key] = o.Price

	outcome, err := s.cells.Reconcile(row, col, layout.RoomTypeCol, o.Price, o.RoomType)
	if err != nil {
		s.miss(o, err)
		return
	}
	switch outcome {
	case sheet.Flagged:
		s.stats.Flagged++
	case sheet.Unchanged:
		s.stats.Unchanged++
	default:
		s.stats.Written++
	}
	observability.ObserveOffer(outcome.String())
}

func (s *Session) miss(o domain.Offer, err error) {
	s.stats.Skipped++
	observability.ObserveOffer("skipped")
	m := domain.Miss{
		RunID:      s.ID,
		Hotel:      o.HotelRaw,
		Aggregator: o.Aggregator,
		Reason:     err.Error(),
	}
	if !o.Date.IsZero() {
		m.Date = sheet.DayMonth(o.Date)
	}
	s.misses = append(s.misses, m)
	s.log.Warn().Err(err).Str("hotel", o.HotelRaw).Str("aggregator", string(o.Aggregator)).
		Str("date", m.Date).Msg("offer skipped")
}
