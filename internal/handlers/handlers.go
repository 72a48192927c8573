package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/mauv0809/fipezap-dashboard/internal/dashboard"
	"github.com/mauv0809/fipezap-dashboard/internal/models"
	"github.com/mauv0809/fipezap-dashboard/internal/views"
)

type Handler struct {
	service     *dashboard.Service
	chartWidth  int
	chartHeight int
	logger      *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithChartSize sets the rendered chart size in pixels.
func WithChartSize(width, height int) Option {
	return func(h *Handler) {
		if width > 0 && height > 0 {
			h.chartWidth, h.chartHeight = width, height
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func New(service *dashboard.Service, opts ...Option) *Handler {
	h := &Handler{
		service:     service,
		chartWidth:  1100,
		chartHeight: 480,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health returns application health status
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Index handles GET /
// Renders all four sections; load failures are shown inline.
func (h *Handler) Index(c echo.Context) error {
	page := h.service.Build(c.Request().Context(), c.QueryParams())
	return Render(c, http.StatusOK, views.Dashboard(page))
}

// Section handles GET /sections/:key
// Renders one section with its quick-range selector.
func (h *Handler) Section(c echo.Context) error {
	key := c.Param("key")
	section, ok := dashboard.Lookup(key)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown section "+key)
	}
	query := c.QueryParams()
	v, err := h.service.BuildSection(c.Request().Context(), key, query)
	if err != nil {
		if errors.Is(err, dashboard.ErrUnknownSection) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		h.logger.Warn("section page without data", slog.String("section", key), slog.Any("error", err))
		v = &dashboard.SectionView{Section: section, Window: models.WindowAll}
	}
	return Render(c, http.StatusOK, views.SectionPage(h.service.Key().Sheet, v, query, err))
}

// Render writes a templ component as the HTML response.
func Render(c echo.Context, status int, t templ.Component) error {
	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)

	if err := t.Render(c.Request().Context(), buf); err != nil {
		return err
	}
	return c.HTML(status, buf.String())
}
