package sheet

import (
	"fmt"

	"github.com/rs/zerolog"

	"hotel_pricesheet/internal/domain"
	"hotel_pricesheet/internal/matching"
)

// Resolution describes where a hotel landed.
type Resolution struct {
	Row     int
	Created bool
	// Score and Matched describe the best existing block seen, even when a
	// new block was created instead.
	Score   float64
	Matched string
}

// Allocator finds or creates hotel blocks on one worksheet and keeps the
// high-water mark, the highest row known to be occupied.
type Allocator struct {
	ws     domain.Worksheet
	scorer *matching.Scorer
	height int
	hwm    int
	log    zerolog.Logger
}

func NewAllocator(ws domain.Worksheet, scorer *matching.Scorer, height int, log zerolog.Logger) *Allocator {
	if height <= 0 {
		height = BlockHeight
	}
	return &Allocator{ws: ws, scorer: scorer, height: height, hwm: FirstDataRow - 1, log: log}
}

func (a *Allocator) HighWaterMark() int { return a.hwm }
func (a *Allocator) Height() int { return a.height }

func (a *Allocator) advance(row int) {
	if row > a.hwm {
		a.hwm = row
	}
}

// Rescan raises the high-water mark to the last row holding content.
func (a *Allocator) Rescan() error {
	last, err := a.ws.LastRow()
	if err != nil {
		return fmt.Errorf("rescan %s: %w", a.ws.Name(), err)
	}
	a.advance(last)
	return nil
}

// Resolve returns the block start row for a hotel, creating a block below
// the high-water mark when nothing scores at or above the match threshold.
// requested is a preferred start row for a new block; zero means none.
func (a *Allocator) Resolve(hotelRaw string, requested int) (Resolution, error) {
	want := matching.NewName(hotelRaw)
	if want.Normalized == "" {
		return Resolution{}, domain.ErrEmptyHotelName
	}

	last, err := a.ws.LastRow()
	if err != nil {
		return Resolution{}, fmt.Errorf("scan %s: %w", a.ws.Name(), err)
	}

	best := Resolution{Row: -1}
	for row := FirstDataRow; row <= last; row++ {
		top, bottom, merged := a.ws.Merged(row, NameCol)
		if merged && top != row {
			continue
		}
		v, err := a.ws.Cell(row, NameCol)
		if err != nil {
			return Resolution{}, fmt.Errorf("read %s row %d: %w", a.ws.Name(), row, err)
		}
		if v.IsEmpty() {
			continue
		}
		if merged {
			a.advance(bottom)
		} else {
			a.advance(row)
		}
		if v.Kind != domain.CellText {
			a.log.Warn().Int("row", row).Str("kind", v.Kind.String()).Msg("non-text hotel cell skipped")
			continue
		}
		score := a.scorer.Score(want, matching.NewName(v.Text))
		if score > best.Score || best.Row < 0 {
			best = Resolution{Row: row, Score: score, Matched: v.Text}
		}
		if score == 1 {
			break
		}
	}

	if best.Row > 0 && best.Score >= matching.MatchThreshold {
		a.log.Debug().Str("event", "hotel_match").Str("hotel", hotelRaw).Str("block", best.Matched).
			Int("row", best.Row).Float64("score", best.Score).Msg("matched existing block")
		return best, nil
	}

	a.advance(last)
	start := a.hwm + 1
	if requested > start {
		start = requested
	}
	if start < FirstDataRow {
		start = FirstDataRow
	}
	if err := a.ws.SetCell(start, NameCol, domain.Text(hotelRaw)); err != nil {
		return Resolution{}, fmt.Errorf("write hotel name at row %d: %w", start, err)
	}
	end := start + a.height - 1
	if err := a.ws.MergeColumn(NameCol, start, end); err != nil {
		return Resolution{}, fmt.Errorf("merge rows %d-%d: %w", start, end, err)
	}
	a.advance(end)

	ev := a.log.Info().Str("event", "hotel_no_match").Str("hotel", hotelRaw).Int("row", start)
	if best.Row > 0 {
		ev = ev.Str("closest", best.Matched).Float64("score", best.Score)
	}
	ev.Msg("created block")
	return Resolution{Row: start, Created: true, Score: best.Score, Matched: best.Matched}, nil
}
