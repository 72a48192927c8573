package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/fipezap-dashboard/internal/chart"
	"github.com/mauv0809/fipezap-dashboard/internal/dashboard"
	"github.com/mauv0809/fipezap-dashboard/internal/extract"
	"github.com/mauv0809/fipezap-dashboard/internal/ingest"
	"github.com/mauv0809/fipezap-dashboard/internal/models"
)

// APIError is the JSON body of a failed API request.
type APIError struct {
	Error string `json:"error"`
}

// WarningResponse is returned instead of a chart when nothing is selected.
type WarningResponse struct {
	Section string `json:"section"`
	Warning string `json:"warning"`
}

// SectionInfo describes one section for GET /api/sections.
type SectionInfo struct {
	models.Section
	Series  []string `json:"series"`
	Rows    int      `json:"rows"`
	Dropped int      `json:"dropped"`
	Error   string   `json:"error,omitempty"`
}

// TableResponse is the body of GET /api/sections/:key/table.
type TableResponse struct {
	Section string `json:"section"`
	Title   string `json:"title"`
	dashboard.TableView
	Dropped int    `json:"dropped"`
	Warning string `json:"warning,omitempty"`
}

// Sections handles GET /api/sections
// Lists the sections with their available series.
func (h *Handler) Sections(c echo.Context) error {
	page := h.service.Build(c.Request().Context(), url.Values{})
	if page.Err != nil {
		return writeError(c, page.Err)
	}
	out := make([]SectionInfo, 0, len(page.Sections))
	for _, v := range page.Sections {
		info := SectionInfo{Section: v.Section, Series: v.Options}
		if v.Table != nil {
			info.Rows = len(v.Table.Rows)
			info.Dropped = v.Table.Dropped
		}
		if info.Series == nil {
			info.Series = []string{}
		}
		if v.Err != nil {
			info.Error = v.Err.Error()
		}
		out = append(out, info)
	}
	return c.JSON(http.StatusOK, out)
}

// ChartSpec handles GET /api/sections/:key/chart
// Query params:
// - series: series names, repeated or comma-separated (default: all; present but empty: none)
// - range: 1y, 5y or all
// - from, to: inclusive bounds as YYYY-MM or YYYY-MM-DD
func (h *Handler) ChartSpec(c echo.Context) error {
	v, err := h.sectionChart(c.Request().Context(), c.Param("key"), c.QueryParams())
	if err != nil {
		return writeError(c, err)
	}
	if v.Warning != "" {
		return c.JSON(http.StatusOK, WarningResponse{Section: v.Section.Key, Warning: v.Warning})
	}
	return c.JSON(http.StatusOK, v.Chart)
}

// Table handles GET /api/sections/:key/table
// Same params as ChartSpec; rows are sorted by date descending.
func (h *Handler) Table(c echo.Context) error {
	v, err := h.sectionChart(c.Request().Context(), c.Param("key"), c.QueryParams())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, TableResponse{
		Section:   v.Section.Key,
		Title:     v.Section.Title,
		TableView: v.TableView(),
		Dropped:   v.Table.Dropped,
		Warning:   v.Warning,
	})
}

// ChartImage handles GET /charts/:file where file is <key>.png or <key>.svg
// Same params as ChartSpec.
func (h *Handler) ChartImage(c echo.Context) error {
	file := c.Param("file")
	dot := strings.LastIndexByte(file, '.')
	if dot < 0 {
		return echo.NewHTTPError(http.StatusNotFound, "missing image extension")
	}
	format, err := chart.ParseFormat(file[dot:])
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	v, err := h.sectionChart(c.Request().Context(), file[:dot], c.QueryParams())
	if err != nil {
		return writeError(c, err)
	}
	if v.Warning != "" {
		return c.JSON(http.StatusUnprocessableEntity, WarningResponse{Section: v.Section.Key, Warning: v.Warning})
	}

	var buf bytes.Buffer
	if err := chart.Render(v.Chart, format, h.chartWidth, h.chartHeight, &buf); err != nil {
		if !errors.Is(err, chart.ErrNotEnoughPoints) {
			h.logger.Error("chart render failed", slog.String("section", v.Section.Key), slog.Any("error", err))
		}
		return writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

// sectionChart builds a section's chart from API-style parameters.
func (h *Handler) sectionChart(ctx context.Context, key string, q url.Values) (*dashboard.SectionView, error) {
	window, err := chart.ParseWindow(q.Get("range"))
	if err != nil {
		return nil, err
	}
	from, err := chart.ParseBound(q.Get("from"), false)
	if err != nil {
		return nil, err
	}
	to, err := chart.ParseBound(q.Get("to"), true)
	if err != nil {
		return nil, err
	}

	section, table, err := h.service.Table(ctx, key)
	if err != nil {
		return nil, err
	}
	v := &dashboard.SectionView{
		Section: section,
		Table:   table,
		Options: chart.Options(table),
		Window:  window,
	}
	if raw, ok := q["series"]; ok {
		v.Selection = dashboard.SplitNames(raw)
	} else {
		v.Selection = dashboard.AllOf(v.Options)
	}

	spec, err := chart.Build(table, v.Selection, section.Title)
	if errors.Is(err, chart.ErrEmptySelection) {
		v.Warning = err.Error()
		return v, nil
	}
	if err != nil {
		return nil, err
	}
	if spec, err = chart.Window(spec, window); err != nil {
		return nil, err
	}
	if !from.IsZero() || !to.IsZero() {
		spec = chart.Between(spec, from, to)
	}
	v.Chart = spec
	return v, nil
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var httpErr *echo.HTTPError
	var unknownSeries *chart.UnknownSeriesError
	var ambiguous *extract.AmbiguousColumnError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.Is(err, dashboard.ErrUnknownSection):
		return http.StatusNotFound
	case errors.As(err, &unknownSeries), errors.Is(err, chart.ErrUnknownWindow), errors.Is(err, chart.ErrInvalidBound):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, ingest.ErrFormat), errors.As(err, &ambiguous), errors.Is(err, extract.ErrInvalidRange),
		errors.Is(err, chart.ErrNotEnoughPoints):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	msg := err.Error()
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg = fmt.Sprint(httpErr.Message)
	}
	return c.JSON(errorStatus(err), APIError{Error: msg})
}
