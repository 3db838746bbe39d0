package sheet

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"hotel_pricesheet/internal/domain"
	"hotel_pricesheet/internal/matching"
)

type Outcome int

const (
	Written Outcome = iota
	// Flagged means the price was written together with a disagreeing room type.
	Flagged
	Unchanged
)

func (o Outcome) String() string {
	switch o {
	case Flagged:
		return "flagged"
	case Unchanged:
		return "unchanged"
	default:
		return "written"
	}
}

// CellReconciler writes one price into a (date row, aggregator column) cell.
type CellReconciler struct {
	ws     domain.Worksheet
	scorer *matching.Scorer
	// UpdateMode overwrites a price only when it differs and never adds the
	// room type suffix.
	UpdateMode bool
}

func NewCellReconciler(ws domain.Worksheet, scorer *matching.Scorer, updateMode bool) *CellReconciler {
	return &CellReconciler{ws: ws, scorer: scorer, UpdateMode: updateMode}
}

// Reconcile touches the price cell and, when the room type cell is empty,
// the room type cell. Nothing else is written.
func (c *CellReconciler) Reconcile(row, priceCol, roomCol int, price decimal.Decimal, roomType string) (Outcome, error) {
	roomType = strings.TrimSpace(roomType)
	existing, err := c.ws.Cell(row, roomCol)
	if err != nil {
		return Unchanged, fmt.Errorf("read room type r%dc%d: %w", row, roomCol, err)
	}
	hadRoom := !existing.IsEmpty()
	if !hadRoom && roomType != "" {
		if err := c.ws.SetCell(row, roomCol, domain.Text(roomType)); err != nil {
			return Unchanged, fmt.Errorf("write room type r%dc%d: %w", row, roomCol, err)
		}
	}

	if c.UpdateMode {
		cur, err := c.ws.Cell(row, priceCol)
		if err != nil {
			return Unchanged, fmt.Errorf("read price r%dc%d: %w", row, priceCol, err)
		}
		if p, ok := PriceOf(cur); ok && p.Equal(price) {
			return Unchanged, nil
		}
		return Written, c.ws.SetCell(row, priceCol, domain.Number(price.InexactFloat64()))
	}

	if hadRoom && roomType != "" {
		sim := c.scorer.Dice(matching.NormalizeRoomType(existing.String()), matching.NormalizeRoomType(roomType))
		if sim < matching.MatchThreshold {
			v := domain.Text(price.String() + " / " + roomType)
			return Flagged, c.ws.SetCell(row, priceCol, v)
		}
	}
	return Written, c.ws.SetCell(row, priceCol, domain.Number(price.InexactFloat64()))
}

// PriceOf reads a price cell, including the numeric part of a flagged
// "120 / Double" cell.
func PriceOf(v domain.CellValue) (decimal.Decimal, bool) {
	switch v.Kind {
	case domain.CellNumber:
		return decimal.NewFromFloat(v.Number), true
	case domain.CellText:
		s := strings.TrimSpace(v.Text)
		if i := strings.Index(s, "/"); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
		s = strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", ".")
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Decimal{}, false
}
