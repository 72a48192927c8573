// Package chart turns cleaned tables into chart specs and draws them.
package chart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mauv0809/fipezap-dashboard/internal/models"
)

var (
	// ErrEmptySelection is the warning state: nothing selected, nothing to draw.
	ErrEmptySelection = errors.New("select at least one series to display the chart")
	// ErrUnknownWindow is returned for a quick-range value that is not 1y, 5y or all.
	ErrUnknownWindow = errors.New("unknown range window")
	// ErrNoData is the warning state of explicit bounds that match no date.
	ErrNoData = errors.New("no data in the selected period")
	// ErrInvalidBound is returned for a from/to value that is not a month or a day.
	ErrInvalidBound = errors.New("invalid date bound (want YYYY-MM or YYYY-MM-DD)")
)

var boundLayouts = []string{"2006-01-02", "2006-01"}

// UnknownSeriesError means a selected name is not a column of the table.
type UnknownSeriesError struct {
	Name    string
	Options []string
}

func (e *UnknownSeriesError) Error() string {
	return fmt.Sprintf("unknown series %q (available: %s)", e.Name, strings.Join(e.Options, ", "))
}

// Options returns the selectable series of table in source order.
func Options(table *models.CleanedTable) []string {
	out := make([]string, len(table.Columns))
	copy(out, table.Columns)
	return out
}

// Build returns the chart for the selected series of table. Every selected
// name becomes exactly one series, in selection order. Values are plotted as
// given; blank cells stay null.
func Build(table *models.CleanedTable, selection models.Selection, title string) (*models.ChartSpec, error) {
	if selection.Empty() {
		return nil, ErrEmptySelection
	}

	spec := &models.ChartSpec{
		Title:         title,
		X:             models.DateColumn,
		Series:        make([]models.ChartSeries, 0, len(selection)),
		Markers:       true,
		RangeSlider:   true,
		RangeSelector: models.Windows,
	}
	seen := make(map[string]bool, len(selection))
	for _, name := range selection {
		if seen[name] {
			continue
		}
		seen[name] = true

		col := table.ColumnIndex(name)
		if col < 0 {
			return nil, &UnknownSeriesError{Name: name, Options: Options(table)}
		}
		series := models.ChartSeries{Name: name, Points: make([]models.ChartPoint, 0, len(table.Rows))}
		for _, row := range table.Rows {
			series.Points = append(series.Points, models.ChartPoint{X: row.Date, Y: row.Values[col]})
		}
		spec.Series = append(spec.Series, series)
	}
	return spec, nil
}

// ParseWindow parses a quick-range selector value; "" means all.
func ParseWindow(s string) (models.RangeWindow, error) {
	switch w := models.RangeWindow(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return models.WindowAll, nil
	case models.WindowOneYear, models.WindowFiveYears, models.WindowAll:
		return w, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownWindow, s)
	}
}

// Window restricts spec to the quick-range w, anchored at its latest date.
func Window(spec *models.ChartSpec, w models.RangeWindow) (*models.ChartSpec, error) {
	_, last, ok := spec.Span()
	switch w {
	case models.WindowAll, "":
		return spec, nil
	case models.WindowOneYear:
		if !ok {
			return spec, nil
		}
		return Between(spec, last.AddDate(-1, 0, 0), time.Time{}), nil
	case models.WindowFiveYears:
		if !ok {
			return spec, nil
		}
		return Between(spec, last.AddDate(-5, 0, 0), time.Time{}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWindow, w)
	}
}

// Between keeps the points with from <= X <= to. A zero bound is open.
func Between(spec *models.ChartSpec, from, to time.Time) *models.ChartSpec {
	out := *spec
	out.Series = make([]models.ChartSeries, len(spec.Series))
	for i, series := range spec.Series {
		points := make([]models.ChartPoint, 0, len(series.Points))
		for _, p := range series.Points {
			if !from.IsZero() && p.X.Before(from) {
				continue
			}
			if !to.IsZero() && p.X.After(to) {
				continue
			}
			points = append(points, p)
		}
		out.Series[i] = models.ChartSeries{Name: series.Name, Points: points}
	}
	return &out
}

// ParseBound parses a from/to bound; "" is an open bound. A month-only
// upper bound covers the whole month.
func ParseBound(s string, upper bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range boundLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if upper && layout == "2006-01" {
			t = t.AddDate(0, 1, -1)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidBound, s)
}
