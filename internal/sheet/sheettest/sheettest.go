// Package sheettest provides in-memory worksheets and workbooks for tests.
package sheettest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hotel_pricesheet/internal/domain"
)

// ErrLocked mimics a target file held open by another process.
var ErrLocked = errors.New("file is locked")

type Range struct{ Col, Top, Bottom int }

type Sheet struct {
	name   string
	cells  map[[2]int]domain.CellValue
	merges []Range
	Writes int
}

func NewSheet(name string) *Sheet {
	return &Sheet{name: name, cells: map[[2]int]domain.CellValue{}}
}

func (s *Sheet) Name() string { return s.name }

func (s *Sheet) Cell(row, col int) (domain.CellValue, error) {
	if row < 1 || col < 1 {
		return domain.CellValue{}, fmt.Errorf("invalid cell r%dc%d", row, col)
	}
	return s.cells[[2]int{row, col}], nil
}

func (s *Sheet) SetCell(row, col int, v domain.CellValue) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("invalid cell r%dc%d", row, col)
	}
	s.Writes++
	s.Put(row, col, v)
	return nil
}

// Put seeds a cell without counting it as a write.
func (s *Sheet) Put(row, col int, v domain.CellValue) {
	if v.Kind == domain.CellEmpty {
		delete(s.cells, [2]int{row, col})
		return
	}
	s.cells[[2]int{row, col}] = v
}

func (s *Sheet) MergeColumn(col, top, bottom int) error {
	if bottom < top {
		return fmt.Errorf("invalid merge %d-%d", top, bottom)
	}
	for _, m := range s.merges {
		if m.Col == col && top <= m.Bottom && bottom >= m.Top {
			return fmt.Errorf("merge %d-%d overlaps %d-%d", top, bottom, m.Top, m.Bottom)
		}
	}
	s.merges = append(s.merges, Range{Col: col, Top: top, Bottom: bottom})
	return nil
}

func (s *Sheet) Merged(row, col int) (int, int, bool) {
	for _, m := range s.merges {
		if m.Col == col && row >= m.Top && row <= m.Bottom {
			return m.Top, m.Bottom, true
		}
	}
	return 0, 0, false
}

func (s *Sheet) LastRow() (int, error) {
	last := 0
	for k := range s.cells {
		if k[0] > last {
			last = k[0]
		}
	}
	for _, m := range s.merges {
		if m.Bottom > last {
			last = m.Bottom
		}
	}
	return last, nil
}

func (s *Sheet) Merges() []Range { return append([]Range(nil), s.merges...) }

// Text returns the cell rendered as a string, or "" when empty.
func (s *Sheet) Text(row, col int) string {
	return s.cells[[2]int{row, col}].String()
}

type Workbook struct {
	mu     sync.Mutex
	sheets []*Sheet
	// FailWrites makes the next n WriteFile calls fail with ErrLocked.
	FailWrites int
	Written    []string
	Closed     bool
}

func NewWorkbook(sheets ...*Sheet) *Workbook { return &Workbook{sheets: sheets} }

func (w *Workbook) Sheet(name string) (domain.Worksheet, error) {
	if name == "" && len(w.sheets) > 0 {
		return w.sheets[0], nil
	}
	for _, s := range w.sheets {
		if s.name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrSheetNotFound, name)
}

func (w *Workbook) WriteFile(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailWrites > 0 {
		w.FailWrites--
		return ErrLocked
	}
	w.Written = append(w.Written, path)
	return nil
}

func (w *Workbook) Close() error {
	w.mu.Lock()
	w.Closed = true
	w.mu.Unlock()
	return nil
}

// Gateway hands out a fixed workbook and writes without retries.
type Gateway struct {
	WB      *Workbook
	LoadErr error
	Loaded  []string
}

func (g *Gateway) Load(_ context.Context, path string) (domain.Workbook, error) {
	if g.LoadErr != nil {
		return nil, g.LoadErr
	}
	g.Loaded = append(g.Loaded, path)
	return g.WB, nil
}

func (g *Gateway) Save(_ context.Context, wb domain.Workbook, path string) error {
	return wb.WriteFile(path)
}
