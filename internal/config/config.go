// Package config holds service configuration and its loading rules.
package config

import (
	"errors"
	"time"
)

// DefaultWorkbookURL is the published FipeZap historical series workbook.
const DefaultWorkbookURL = "https://downloads.fipe.org.br/indices/fipezap/fipezap-serieshistoricas.xlsx"

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Config contains process configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string `koanf:"port"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// WorkbookURL is the remote workbook to fetch.
	WorkbookURL string `koanf:"workbook_url"`

	// Sheet is the city sheet consumed from the workbook.
	Sheet string `koanf:"sheet"`

	// HeaderRow is the 1-based row holding field labels.
	HeaderRow int `koanf:"header_row"`

	// FetchTimeout bounds a single workbook request.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// FetchRetries is the number of extra attempts after a failed request.
	FetchRetries int `koanf:"fetch_retries"`

	// FetchMaxBytes caps the downloaded workbook size.
	FetchMaxBytes int64 `koanf:"fetch_max_bytes"`

	// ChartWidth and ChartHeight size rendered chart images in pixels.
	ChartWidth  int `koanf:"chart_width"`
	ChartHeight int `koanf:"chart_height"`

	// AdminEnabled registers the /admin/ingest routes.
	AdminEnabled bool `koanf:"admin_enabled"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Port:          "8080",
		LogLevel:      "info",
		WorkbookURL:   DefaultWorkbookURL,
		Sheet:         "Curitiba",
		HeaderRow:     4,
		FetchTimeout:  60 * time.Second,
		FetchRetries:  1,
		FetchMaxBytes: 64 << 20,
		ChartWidth:    1100,
		ChartHeight:   480,
		AdminEnabled:  true,
	}
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.Join(ErrInvalidConfig, errors.New("port must not be empty"))
	case c.WorkbookURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("workbook_url must not be empty"))
	case c.Sheet == "":
		return errors.Join(ErrInvalidConfig, errors.New("sheet must not be empty"))
	case c.HeaderRow < 1:
		return errors.Join(ErrInvalidConfig, errors.New("header_row must be at least 1"))
	case c.FetchTimeout <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("fetch_timeout must be positive"))
	case c.FetchRetries < 0:
		return errors.Join(ErrInvalidConfig, errors.New("fetch_retries must not be negative"))
	case c.ChartWidth <= 0 || c.ChartHeight <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("chart size must be positive"))
	}
	return nil
}
