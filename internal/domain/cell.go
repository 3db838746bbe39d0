package domain

import (
	"strconv"
	"time"
)

type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
)

func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellDate:
		return "date"
	default:
		return "empty"
	}
}

// CellValue is a tagged worksheet value. Only the field matching Kind is set.
type CellValue struct {
	Kind   CellKind
	Text   string
	Number float64
	Date   time.Time
}

func Empty() CellValue { return CellValue{} }
func Text(s string) CellValue { return CellValue{Kind: CellText, Text: s} }
func Number(f float64) CellValue { return CellValue{Kind: CellNumber, Number: f} }
func DateValue(t time.Time) CellValue { return CellValue{Kind: CellDate, Date: t} }

// IsEmpty reports whether the cell carries nothing, treating blank text as empty.
func (v CellValue) IsEmpty() bool {
	switch v.Kind {
	case CellEmpty:
		return true
	case CellText:
		for _, r := range v.Text {
			if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value the way a spreadsheet user would read it.
func (v CellValue) String() string {
	switch v.Kind {
	case CellText:
		return v.Text
	case CellNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case CellDate:
		return v.Date.Format("02.01.2006")
	}
	return ""
}
