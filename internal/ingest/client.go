package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mauv0809/fipezap-dashboard/internal/metrics"
	"github.com/xuri/excelize/v2"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultRetries   = 1
	defaultBackoff   = time.Second
	defaultMaxBytes  = 64 << 20
	defaultHeaderRow = 4
	minInterval      = 500 * time.Millisecond // spacing between upstream requests
)

// Client downloads workbooks and loads one sheet positionally.
type Client struct {
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	maxBytes   int64
	headerRow  int
	limiter    *rateLimiter
	metrics    *metrics.Manager
	logger     *slog.Logger
}

// rateLimiter spaces consecutive calls by at least interval.
type rateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

func (r *rateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elapsed := time.Since(r.lastCall); elapsed < r.interval {
		timer := time.NewTimer(r.interval - elapsed)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	r.lastCall = time.Now()
	return nil
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client; its Timeout is kept as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries sets how many extra attempts follow a failed request.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the pause before a retry.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithMaxBytes caps the response body size.
func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithHeaderRow sets the 1-based label row.
func WithHeaderRow(row int) Option {
	return func(c *Client) {
		if row > 0 {
			c.headerRow = row
		}
	}
}

// WithRequestInterval sets the minimum spacing between upstream requests.
func WithRequestInterval(d time.Duration) Option {
	return func(c *Client) {
		c.limiter = newRateLimiter(d)
	}
}

// WithMetrics records fetch outcomes on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a workbook client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		retries:    defaultRetries,
		backoff:    defaultBackoff,
		maxBytes:   defaultMaxBytes,
		headerRow:  defaultHeaderRow,
		limiter:    newRateLimiter(minInterval),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads key.URL and loads key.Sheet. Failures are *FetchError or
// *FormatError.
func (c *Client) Fetch(ctx context.Context, key Key) (*RawTable, error) {
	start := time.Now()

	body, err := c.download(ctx, key.URL)
	if err != nil {
		c.metrics.RecordFetch("fetch_error", time.Since(start))
		return nil, err
	}

	table, err := c.load(body, key.Sheet)
	if err != nil {
		c.metrics.RecordFetch("format_error", time.Since(start))
		return nil, err
	}
	table.URL = key.URL
	table.FetchedAt = time.Now()

	c.metrics.RecordFetch("ok", time.Since(start))
	c.logger.Info("workbook loaded",
		slog.String("url", key.URL),
		slog.String("sheet", key.Sheet),
		slog.Int("bytes", len(body)),
		slog.Int("rows", len(table.Rows)),
		slog.Int("columns", table.Width()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return table, nil
}

// SheetNames downloads the workbook and lists its sheets.
func (c *Client) SheetNames(ctx context.Context, url string) ([]string, error) {
	body, err := c.download(ctx, url)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, NewFormatError("", "unreadable workbook", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// download fetches url, retrying failed attempts up to c.retries times.
func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying workbook fetch",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", c.backoff),
				slog.Any("error", lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, &FetchError{URL: url, Err: ctx.Err()}
			case <-time.After(c.backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}

		body, err := c.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil || !retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: url, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("reading response: %w", err)}
	}
	if int64(len(body)) > c.maxBytes {
		return nil, &FetchError{URL: url, Err: errBodyTooLarge{limit: c.maxBytes}}
	}
	return body, nil
}

type errBodyTooLarge struct{ limit int64 }

func (e errBodyTooLarge) Error() string {
	return fmt.Sprintf("response larger than %d bytes", e.limit)
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	var tooLarge errBodyTooLarge
	if errors.As(err, &tooLarge) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Status >= 400 && fe.Status < 500 && fe.Status != http.StatusTooManyRequests {
		return false
	}
	return true
}

// load parses body as xlsx and reads sheet with raw cell values.
func (c *Client) load(body []byte, sheet string) (*RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, NewFormatError(sheet, "unreadable workbook", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, NewFormatError(sheet, "invalid sheet name", err)
	}
	if idx == -1 {
		return nil, NewFormatError(sheet, fmt.Sprintf("not in workbook (sheets: %v)", f.GetSheetList()), ErrSheetNotFound)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, NewFormatError(sheet, "reading rows", err)
	}

	table, err := parseSheet(rows, sheet, c.headerRow)
	if err != nil {
		return nil, err
	}

	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		table.Date1904 = *props.Date1904
	}
	return table, nil
}
