package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mauv0809/fipezap-dashboard/internal/handlers"
	"github.com/mauv0809/fipezap-dashboard/internal/logging"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	e := newServer(a)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server",
			slog.String("addr", a.cfg.Addr()),
			slog.String("workbook", a.key.URL),
			slog.String("sheet", a.key.Sheet))
		if err := e.Start(a.cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.Error("server failed", slog.Any("error", err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newServer(a *app) *echo.Echo {
	log := logging.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.Int("status", v.Status),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error == nil {
				log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			} else {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				log.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(handlers.Metrics(a.metrics))

	h := handlers.New(a.service,
		handlers.WithChartSize(a.cfg.ChartWidth, a.cfg.ChartHeight),
		handlers.WithLogger(logging.Named("handlers")),
	)
	h.Register(e)
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))

	// Admin routes for the workbook cache
	if a.cfg.AdminEnabled {
		ingestHandler := handlers.NewIngestHandler(a.cache, a.client, a.key, logging.Named("admin"))
		ingestHandler.Register(e.Group("/admin"))
		log.Info("admin endpoints registered")
	}
	return e
}
