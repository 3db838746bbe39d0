package xlsx

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"hotel_pricesheet/internal/domain"
)

// Workbook wraps an excelize file.
type Workbook struct {
	f      *excelize.File
	path   string
	sheets map[string]*Worksheet
}

func (w *Workbook) Sheet(name string) (domain.Worksheet, error) {
	if name == "" {
		list := w.f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: workbook %s has no sheets", domain.ErrSheetNotFound, w.path)
		}
		name = list[0]
	}
	if ws, ok := w.sheets[name]; ok {
		return ws, nil
	}
	if idx, err := w.f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrSheetNotFound, name)
	}
	ws := &Worksheet{f: w.f, name: name, dateStyle: map[int]bool{}, last: -1}
	if w.sheets == nil {
		w.sheets = map[string]*Worksheet{}
	}
	w.sheets[name] = ws
	return ws, nil
}

// WriteFile writes through a temp file in the target directory and renames
// it over path, so a failed write never leaves a truncated target.
func (w *Workbook) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pricesheet-*.xlsx")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := w.f.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (w *Workbook) Close() error { return w.f.Close() }

type mergeRange struct{ top, left, bottom, right int }

// Worksheet adapts one excelize sheet to domain.Worksheet.
type Worksheet struct {
	f         *excelize.File
	name      string
	merges    []mergeRange
	loaded    bool
	dateStyle map[int]bool
	last      int
}

func (s *Worksheet) Name() string { return s.name }

func (s *Worksheet) Cell(row, col int) (domain.CellValue, error) {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return domain.CellValue{}, err
	}
	raw, err := s.f.GetCellValue(s.name, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.CellValue{}, err
	}
	if raw == "" {
		return domain.Empty(), nil
	}
	typ, err := s.f.GetCellType(s.name, axis)
	if err != nil {
		return domain.CellValue{}, err
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		n, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			return domain.Text(raw), nil
		}
		if s.isDate(axis) {
			if t, derr := excelize.ExcelDateToTime(n, false); derr == nil {
				return domain.DateValue(t), nil
			}
		}
		return domain.Number(n), nil
	default:
		// shared/inline strings, rich text, booleans and formulas read as text
		v, err := s.f.GetCellValue(s.name, axis)
		if err != nil {
			return domain.CellValue{}, err
		}
		return domain.Text(v), nil
	}
}

func (s *Worksheet) SetCell(row, col int, v domain.CellValue) error {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	switch v.Kind {
	case domain.CellText:
		err = s.f.SetCellStr(s.name, axis, v.Text)
	case domain.CellNumber:
		err = s.f.SetCellFloat(s.name, axis, v.Number, -1, 64)
	case domain.CellDate:
		err = s.f.SetCellValue(s.name, axis, v.Date)
	default:
		err = s.f.SetCellValue(s.name, axis, nil)
	}
	if err == nil && v.Kind != domain.CellEmpty && s.last >= 0 && row > s.last {
		s.last = row
	}
	return err
}

func (s *Worksheet) MergeColumn(col, top, bottom int) error {
	from, err := excelize.CoordinatesToCellName(col, top)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(col, bottom)
	if err != nil {
		return err
	}
	if err := s.loadMerges(); err != nil {
		return err
	}
	if err := s.f.MergeCell(s.name, from, to); err != nil {
		return err
	}
	s.merges = append(s.merges, mergeRange{top: top, left: col, bottom: bottom, right: col})
	if s.last >= 0 && bottom > s.last {
		s.last = bottom
	}
	return nil
}

func (s *Worksheet) Merged(row, col int) (int, int, bool) {
	if err := s.loadMerges(); err != nil {
		return 0, 0, false
	}
	for _, m := range s.merges {
		if row >= m.top && row <= m.bottom && col >= m.left && col <= m.right {
			return m.top, m.bottom, true
		}
	}
	return 0, 0, false
}

func (s *Worksheet) LastRow() (int, error) {
	if s.last >= 0 {
		return s.last, nil
	}
	rows, err := s.f.GetRows(s.name, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, err
	}
	last := 0
	for i, r := range rows {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				last = i + 1
				break
			}
		}
	}
	if err := s.loadMerges(); err != nil {
		return 0, err
	}
	for _, m := range s.merges {
		if m.bottom > last {
			last = m.bottom
		}
	}
	s.last = last
	return last, nil
}

func (s *Worksheet) loadMerges() error {
	if s.loaded {
		return nil
	}
	merges, err := s.f.GetMergeCells(s.name)
	if err != nil {
		return fmt.Errorf("merged cells of %s: %w", s.name, err)
	}
	for _, mc := range merges {
		c1, r1, err1 := excelize.CellNameToCoordinates(mc.GetStartAxis())
		c2, r2, err2 := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err1 != nil || err2 != nil {
			continue
		}
		s.merges = append(s.merges, mergeRange{top: r1, left: c1, bottom: r2, right: c2})
	}
	s.loaded = true
	return nil
}

func (s *Worksheet) isDate(axis string) bool {
	id, err := s.f.GetCellStyle(s.name, axis)
	if err != nil || id == 0 {
		return false
	}
	if v, ok := s.dateStyle[id]; ok {
		return v
	}
	v := false
	if st, err := s.f.GetStyle(id); err == nil && st != nil {
		v = isDateNumFmt(st.NumFmt)
		if st.CustomNumFmt != nil {
			v = isDateFormatCode(*st.CustomNumFmt)
		}
	}
	s.dateStyle[id] = v
	return v
}

func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode checks a custom number format for date tokens, ignoring
// quoted literals and bracketed sections such as colors or locales.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	return strings.ContainsAny(s, "dy") || (strings.Contains(s, "m") && !strings.ContainsAny(s, "hs0#"))
}
