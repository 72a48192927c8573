package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mauv0809/fipezap-dashboard/internal/models"
	gochart "github.com/wcharczuk/go-chart/v2"
)

// ErrNotEnoughPoints is returned when fewer than two distinct dates remain.
var ErrNotEnoughPoints = errors.New("chart needs at least two dates with values")

// Format is an image encoding for Render.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat parses an image format name such as "png" or ".svg".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(s), ".")); f {
	case PNG, SVG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported chart format %q", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// NoDataSuffix marks legend entries of series without a single value.
const NoDataSuffix = " (sem dados)"

// Render draws spec as a time-series line chart with dot markers and a legend.
// Null values are skipped, leaving the line to join its neighbours. A series
// with no values at all is not drawn but keeps its legend entry.
func Render(spec *models.ChartSpec, format Format, width, height int, w io.Writer) error {
	var provider gochart.RendererProvider
	switch format {
	case PNG:
		provider = gochart.PNG
	case SVG:
		provider = gochart.SVG
	default:
		return fmt.Errorf("unsupported chart format %q", format)
	}

	dates := make(map[int64]struct{})
	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	series := make([]gochart.Series, 0, len(spec.Series))
	legend := make([]gochart.Series, 0, len(spec.Series))
	for i, s := range spec.Series {
		xs := make([]time.Time, 0, len(s.Points))
		ys := make([]float64, 0, len(s.Points))
		for _, p := range s.Points {
			if !p.Y.Valid {
				continue
			}
			v := p.Y.Decimal.InexactFloat64()
			xs = append(xs, p.X)
			ys = append(ys, v)
			dates[p.X.UnixNano()] = struct{}{}
			minY = math.Min(minY, v)
			maxY = math.Max(maxY, v)
		}
		if len(xs) == 0 {
			legend = append(legend, gochart.TimeSeries{Name: s.Name + NoDataSuffix, Style: lineStyle(i, false)})
			continue
		}
		ts := gochart.TimeSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(i, spec.Markers),
		}
		series = append(series, ts)
		legend = append(legend, ts)
	}
	if len(dates) < 2 {
		return ErrNotEnoughPoints
	}

	ch := gochart.Chart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeValueFormatterWithFormat("01/2006"),
		},
		YAxis:  gochart.YAxis{},
		Series: series,
	}
	if maxY <= minY {
		// a flat chart still needs a y-range
		ch.YAxis.Range = &gochart.ContinuousRange{Min: minY - 1, Max: maxY + 1}
	}
	// the legend reads names and styles only, so it may list series that
	// are not drawn
	legendChart := ch
	legendChart.Series = legend
	ch.Elements = []gochart.Renderable{gochart.Legend(&legendChart)}

	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("rendering %s chart: %w", format, err)
	}
	return nil
}

func lineStyle(i int, markers bool) gochart.Style {
	col := gochart.GetDefaultColor(i)
	st := gochart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
	}
	if markers {
		st.DotColor = col
		st.DotWidth = 3
	}
	return st
}
