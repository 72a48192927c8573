package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mauv0809/fipezap-dashboard/internal/config"
	"github.com/mauv0809/fipezap-dashboard/internal/dashboard"
	"github.com/mauv0809/fipezap-dashboard/internal/ingest"
	"github.com/mauv0809/fipezap-dashboard/internal/logging"
	"github.com/mauv0809/fipezap-dashboard/internal/metrics"
)

// app is the wired service graph shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Manager
	client  *ingest.Client
	cache   *ingest.Cache
	service *dashboard.Service
	key     ingest.Key
}

// newApp loads configuration and wires the fetcher, cache and dashboard.
// Logs go to stderr so the extract command keeps stdout for JSON.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.Init(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}

	m := metrics.NewManager(metrics.WithGoCollectors())
	client := ingest.NewClient(
		ingest.WithTimeout(cfg.FetchTimeout),
		ingest.WithRetries(cfg.FetchRetries),
		ingest.WithMaxBytes(cfg.FetchMaxBytes),
		ingest.WithHeaderRow(cfg.HeaderRow),
		ingest.WithMetrics(m),
		ingest.WithLogger(logging.Named("ingest")),
	)
	cache := ingest.NewCache(client,
		ingest.WithCacheMetrics(m),
		ingest.WithCacheLogger(logging.Named("cache")),
	)
	key := ingest.Key{URL: cfg.WorkbookURL, Sheet: cfg.Sheet}
	service := dashboard.NewService(cache, key,
		dashboard.WithMetrics(m),
		dashboard.WithLogger(logging.Named("dashboard")),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		client:  client,
		cache:   cache,
		service: service,
		key:     key,
	}, nil
}
