package ingest

import (
	"time"
)

// Key identifies one cached sheet of one workbook.
type Key struct {
	URL   string
	Sheet string
}

func (k Key) String() string {
	return k.URL + "#" + k.Sheet
}

// RawTable is a sheet loaded positionally: labels from the header row and
// the rows below it as raw cell text. Date cells hold Excel serial numbers.
//
// Labels are unique: a repeated label gets a ".N" suffix ("Total", "Total.1")
// and a blank one becomes "Unnamed: <index>".
type RawTable struct {
	URL      string
	Sheet    string
	Labels   []string
	Rows     [][]string
	FirstRow int // 1-based sheet row of Rows[0]
	Date1904 bool

	FetchedAt time.Time
}

// Width returns the number of labelled columns.
func (t *RawTable) Width() int {
	return len(t.Labels)
}

// Cell returns the raw text at (row, col), or "" when the row is short.
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}
