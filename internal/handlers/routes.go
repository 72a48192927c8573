package handlers

import "github.com/labstack/echo/v4"

// Register mounts the dashboard, chart and API routes.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/", h.Index)
	e.GET("/sections/:key", h.Section)
	e.GET("/charts/:file", h.ChartImage)

	api := e.Group("/api")
	api.GET("/sections", h.Sections)
	api.GET("/sections/:key/chart", h.ChartSpec)
	api.GET("/sections/:key/table", h.Table)
}

// Register mounts the admin routes on g.
func (h *IngestHandler) Register(g *echo.Group) {
	g.GET("/ingest/status", h.IngestStatus)
	g.GET("/ingest/test", h.IngestTest)
	g.POST("/ingest/refresh", h.IngestRefresh)
}
