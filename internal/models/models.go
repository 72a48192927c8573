package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateColumn is the canonical name of the date column after extraction.
const DateColumn = "Data"

// ColumnRange is an inclusive, zero-based range of sheet columns (A=0, B=1, ...).
type ColumnRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Width returns the number of columns in the range.
func (r ColumnRange) Width() int {
	return r.End - r.Start + 1
}

// Section is one metric family of the sheet rendered as its own tab.
type Section struct {
	Key   string      `json:"key"`
	Tab   string      `json:"tab"`
	Title string      `json:"title"`
	Range ColumnRange `json:"range"`
}

// Row is one dated observation of a CleanedTable.
type Row struct {
	Date      time.Time             `json:"date"`
	SourceRow int                   `json:"source_row"` // 1-based sheet row
	Values    []decimal.NullDecimal `json:"values"`
}

// CleanedTable is a column slice of a sheet with valid dates only.
type CleanedTable struct {
	Sheet   string   `json:"sheet"`
	Columns []string `json:"columns"` // value columns, source order; the date column is implicit
	Rows    []Row    `json:"rows"`
	Dropped int      `json:"dropped"` // rows removed because the date did not parse
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *CleanedTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Selection is an ordered subset of a table's value columns.
type Selection []string

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s) == 0
}

// RangeWindow is a quick-range selector option.
type RangeWindow string

const (
	WindowOneYear   RangeWindow = "1y"
	WindowFiveYears RangeWindow = "5y"
	WindowAll       RangeWindow = "all"
)

// Windows lists the quick-range selector options in display order.
var Windows = []RangeWindow{WindowOneYear, WindowFiveYears, WindowAll}

// ChartPoint is one (date, value) pair; Y is null for blank cells.
type ChartPoint struct {
	X time.Time           `json:"x"`
	Y decimal.NullDecimal `json:"y"`
}

// ChartSeries is one plotted line.
type ChartSeries struct {
	Name   string       `json:"name"`
	Points []ChartPoint `json:"points"`
}

// ChartSpec describes a line chart independent of how it is drawn.
type ChartSpec struct {
	Title         string        `json:"title"`
	X             string        `json:"x"`
	Series        []ChartSeries `json:"series"`
	Markers       bool          `json:"markers"`
	RangeSlider   bool          `json:"range_slider"`
	RangeSelector []RangeWindow `json:"range_selector,omitempty"`
}

// Span returns the earliest and latest dates across all series.
func (s *ChartSpec) Span() (first, last time.Time, ok bool) {
	for _, series := range s.Series {
		for _, p := range series.Points {
			if !ok || p.X.Before(first) {
				first = p.X
			}
			if !ok || p.X.After(last) {
				last = p.X
			}
			ok = true
		}
	}
	return first, last, ok
}
