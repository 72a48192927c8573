// Package extract slices positional column ranges out of a RawTable into
// dated, named series.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mauv0809/fipezap-dashboard/internal/ingest"
	"github.com/mauv0809/fipezap-dashboard/internal/models"
	"github.com/shopspring/decimal"
)

// DateIndex is the zero-based position of the date column (column B).
const DateIndex = 1

// ErrInvalidRange is returned for a range that cannot describe value columns.
var ErrInvalidRange = errors.New("invalid column range")

// AmbiguousColumnError means two columns of one slice share a base label.
type AmbiguousColumnError struct {
	Sheet  string
	Name   string
	Labels []string
}

func (e *AmbiguousColumnError) Error() string {
	return fmt.Sprintf("sheet %q: columns %s all resolve to %q", e.Sheet, strings.Join(e.Labels, ", "), e.Name)
}

var suffixPattern = regexp.MustCompile(`^(.*)\.(\d+)$`)

// StripSuffixes removes the ".N" suffix that made a repeated label unique.
// A suffix is only stripped when its base label occurs earlier in labels, so
// unique names pass through unchanged.
func StripSuffixes(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, len(labels))
	for i, label := range labels {
		out[i] = label
		if m := suffixPattern.FindStringSubmatch(label); m != nil && seen[m[1]] {
			out[i] = m[1]
		}
		seen[label] = true
	}
	return out
}

// Extract returns the date column plus the inclusive range r as a
// CleanedTable, validated against DefaultSchema(r).
func Extract(raw *ingest.RawTable, r models.ColumnRange) (*models.CleanedTable, error) {
	return ExtractWithSchema(raw, r, DefaultSchema(r))
}

// ExtractWithSchema is Extract with an explicit positional schema.
//
// Rows whose date cell does not parse are dropped and counted in Dropped.
// Source order is kept.
func ExtractWithSchema(raw *ingest.RawTable, r models.ColumnRange, schema Schema) (*models.CleanedTable, error) {
	if r.Start <= DateIndex || r.End < r.Start {
		return nil, fmt.Errorf("%w: [%d,%d]", ErrInvalidRange, r.Start, r.End)
	}
	if r.End >= raw.Width() {
		return nil, ingest.NewFormatError(raw.Sheet, fmt.Sprintf("column %d requested but sheet has %d columns", r.End, raw.Width()), nil)
	}
	if err := schema.checkLabels(raw); err != nil {
		return nil, err
	}

	names := StripSuffixes(raw.Labels)[r.Start : r.End+1]
	if err := checkAmbiguity(raw, r, names); err != nil {
		return nil, err
	}

	table := &models.CleanedTable{
		Sheet:   raw.Sheet,
		Columns: names,
		Rows:    make([]models.Row, 0, len(raw.Rows)),
	}
	for i := range raw.Rows {
		date, ok := ingest.ParseDate(raw.Cell(i, DateIndex), raw.Date1904)
		if !ok {
			table.Dropped++
			continue
		}
		values := make([]decimal.NullDecimal, 0, r.Width())
		for col := r.Start; col <= r.End; col++ {
			values = append(values, ingest.ParseDecimal(raw.Cell(i, col)))
		}
		table.Rows = append(table.Rows, models.Row{
			Date:      date,
			SourceRow: raw.FirstRow + i,
			Values:    values,
		})
	}

	if err := schema.checkKinds(raw, r, table); err != nil {
		return nil, err
	}
	return table, nil
}

func checkAmbiguity(raw *ingest.RawTable, r models.ColumnRange, names []string) error {
	byName := make(map[string][]string, len(names))
	for i, name := range names {
		byName[name] = append(byName[name], raw.Labels[r.Start+i])
	}
	for _, name := range names {
		labels := byName[name]
		if name == models.DateColumn {
			return &AmbiguousColumnError{Sheet: raw.Sheet, Name: name, Labels: append([]string{raw.Labels[DateIndex]}, labels...)}
		}
		if len(labels) > 1 {
			return &AmbiguousColumnError{Sheet: raw.Sheet, Name: name, Labels: labels}
		}
	}
	return nil
}
