package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/fipezap-dashboard/internal/ingest"
)

// SheetLoader loads a sheet straight from its source, bypassing any cache.
type SheetLoader interface {
	Fetch(ctx context.Context, key ingest.Key) (*ingest.RawTable, error)
	SheetNames(ctx context.Context, url string) ([]string, error)
}

// IngestHandler handles workbook cache administration endpoints.
type IngestHandler struct {
	cache  *ingest.Cache
	loader SheetLoader
	key    ingest.Key
	logger *slog.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(cache *ingest.Cache, loader SheetLoader, key ingest.Key, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{
		cache:  cache,
		loader: loader,
		key:    key,
		logger: logger,
	}
}

// IngestResponse is the JSON response for ingestion endpoints.
type IngestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Epoch   uint64 `json:"epoch,omitempty"`
	Count   int    `json:"count,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
}

// IngestStatus handles GET /admin/ingest/status
// Returns the cache epoch, hit/miss counts and cached sheets.
func (h *IngestHandler) IngestStatus(c echo.Context) error {
	status := h.cache.Status()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"url":     h.key.URL,
		"sheet":   h.key.Sheet,
		"epoch":   status.Epoch,
		"hits":    status.Hits,
		"misses":  status.Misses,
		"entries": status.Entries,
	})
}

// IngestRefresh handles POST /admin/ingest/refresh
// Starts a new cache epoch and loads the configured sheet again.
func (h *IngestHandler) IngestRefresh(c echo.Context) error {
	ctx := c.Request().Context()
	start := time.Now()

	epoch := h.cache.Invalidate()
	h.logger.Info("refreshing workbook", slog.Uint64("epoch", epoch), slog.String("sheet", h.key.Sheet))

	table, err := h.cache.Get(ctx, h.key)
	if err != nil {
		h.logger.Error("refresh failed", slog.Uint64("epoch", epoch), slog.Any("error", err))
		return c.JSON(errorStatus(err), IngestResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to refresh workbook: %v", err),
			Epoch:   epoch,
		})
	}

	elapsed := time.Since(start)
	h.logger.Info("refresh complete", slog.Uint64("epoch", epoch), slog.Int("rows", len(table.Rows)), slog.Duration("elapsed", elapsed))

	return c.JSON(http.StatusOK, IngestResponse{
		Success: true,
		Message: fmt.Sprintf("Loaded %d rows from sheet %s", len(table.Rows), table.Sheet),
		Epoch:   epoch,
		Count:   len(table.Rows),
		Elapsed: elapsed.String(),
	})
}

// IngestTest handles GET /admin/ingest/test
// Downloads the workbook without touching the cache and reports its shape.
func (h *IngestHandler) IngestTest(c echo.Context) error {
	ctx := c.Request().Context()
	start := time.Now()

	sheets, err := h.loader.SheetNames(ctx, h.key.URL)
	if err != nil {
		return c.JSON(errorStatus(err), IngestResponse{
			Success: false,
			Message: fmt.Sprintf("Workbook test failed: %v", err),
		})
	}
	table, err := h.loader.Fetch(ctx, h.key)
	if err != nil {
		return c.JSON(errorStatus(err), map[string]interface{}{
			"success": false,
			"message": fmt.Sprintf("Sheet test failed: %v", err),
			"sheets":  sheets,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Workbook download successful",
		"sheets":  sheets,
		"rows":    len(table.Rows),
		"columns": table.Width(),
		"labels":  table.Labels,
		"elapsed": time.Since(start).String(),
	})
}
