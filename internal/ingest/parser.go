package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// maxExcelSerial is 9999-12-31, the last date Excel can represent.
const maxExcelSerial = 2958465

// dateLayouts are tried in order for date cells stored as text.
// Day-first comes before year-first slashes because the source is Brazilian.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z",
	"02/01/2006",
	"2006/01/02",
	"01/2006",
	"2006-01",
}

// ParseDate reads a date cell: an Excel serial number first, then the text
// layouts above. The result is truncated to the calendar day in UTC.
func ParseDate(cell string, date1904 bool) (time.Time, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, false
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(v) || v <= 0 || v > maxExcelSerial {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(v, date1904)
		if err != nil {
			return time.Time{}, false
		}
		return calendarDay(t), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDay(t), true
		}
	}
	return time.Time{}, false
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDecimal reads a numeric cell exactly as written. Blank and
// non-numeric cells are null.
func ParseDecimal(cell string) decimal.NullDecimal {
	s := strings.TrimSpace(cell)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// uniqueLabels trims labels, names blank ones after their index and
// suffixes repeats with ".N" so every label is distinct.
func uniqueLabels(labels []string) []string {
	out := make([]string, len(labels))
	seen := make(map[string]bool, len(labels))
	counts := make(map[string]int, len(labels))

	for i, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			label = fmt.Sprintf("Unnamed: %d", i)
		}
		name := label
		for seen[name] {
			counts[label]++
			name = fmt.Sprintf("%s.%d", label, counts[label])
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

// parseSheet turns the rows of one sheet into a RawTable. headerRow is
// 1-based; every row above it is skipped.
func parseSheet(rows [][]string, sheet string, headerRow int) (*RawTable, error) {
	if len(rows) < headerRow {
		return nil, NewFormatError(sheet, fmt.Sprintf("header row %d absent (sheet has %d rows)", headerRow, len(rows)), nil)
	}

	header := rows[headerRow-1]
	blank := true
	for _, cell := range header {
		if strings.TrimSpace(cell) != "" {
			blank = false
			break
		}
	}
	if blank {
		return nil, NewFormatError(sheet, fmt.Sprintf("header row %d is empty", headerRow), nil)
	}

	data := rows[headerRow:]
	width := len(header)
	for _, row := range data {
		width = max(width, len(row))
	}

	labels := make([]string, width)
	copy(labels, header)

	return &RawTable{
		Sheet:    sheet,
		Labels:   uniqueLabels(labels),
		Rows:     data,
		FirstRow: headerRow + 1,
	}, nil
}
