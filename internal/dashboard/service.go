package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/mauv0809/fipezap-dashboard/internal/chart"
	"github.com/mauv0809/fipezap-dashboard/internal/extract"
	"github.com/mauv0809/fipezap-dashboard/internal/ingest"
	"github.com/mauv0809/fipezap-dashboard/internal/metrics"
	"github.com/mauv0809/fipezap-dashboard/internal/models"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownSection is returned for a section key that is not in Sections.
var ErrUnknownSection = errors.New("unknown section")

// Source returns the sheet for a key, typically an *ingest.Cache.
type Source interface {
	Get(ctx context.Context, key ingest.Key) (*ingest.RawTable, error)
}

// Service builds section tables and charts from one configured sheet.
type Service struct {
	source  Source
	key     ingest.Key
	metrics *metrics.Manager
	logger  *slog.Logger
	tables  map[string]*sectionTable
}

// sectionTable is a section's extraction of one loaded sheet. A new sheet
// (a refetch, a new cache epoch) replaces it.
type sectionTable struct {
	mu    sync.Mutex
	raw   *ingest.RawTable
	table *models.CleanedTable
	err   error
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records dropped rows and render outcomes on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service reading key from source.
func NewService(source Source, key ingest.Key, opts ...Option) *Service {
	s := &Service{
		source: source,
		key:    key,
		logger: slog.Default(),
		tables: make(map[string]*sectionTable, len(Sections)),
	}
	for _, section := range Sections {
		s.tables[section.Key] = &sectionTable{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the workbook and sheet the service reads.
func (s *Service) Key() ingest.Key {
	return s.key
}

// Table fetches the sheet and extracts the section's columns.
func (s *Service) Table(ctx context.Context, key string) (models.Section, *models.CleanedTable, error) {
	section, ok := Lookup(key)
	if !ok {
		return models.Section{}, nil, fmt.Errorf("%w: %q", ErrUnknownSection, key)
	}
	raw, err := s.source.Get(ctx, s.key)
	if err != nil {
		return section, nil, err
	}
	table, err := s.extract(raw, section)
	return section, table, err
}

// extract returns the section's table for raw, extracting it only the first
// time raw is seen so dropped rows are reported once per loaded sheet.
func (s *Service) extract(raw *ingest.RawTable, section models.Section) (*models.CleanedTable, error) {
	st := s.tables[section.Key]
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.raw == raw {
		return st.table, st.err
	}

	table, err := extract.Extract(raw, section.Range)
	if err != nil {
		err = fmt.Errorf("section %s: %w", section.Key, err)
		table = nil
	} else if table.Dropped > 0 {
		s.logger.Info("dropped rows without a valid date",
			slog.String("section", section.Key),
			slog.String("sheet", raw.Sheet),
			slog.Int("dropped", table.Dropped),
			slog.Int("kept", len(table.Rows)))
		s.metrics.RecordRowsDropped(section.Key, table.Dropped)
	}
	st.raw, st.table, st.err = raw, table, err
	return table, err
}

// SectionView is one section as shown on a page.
type SectionView struct {
	Section   models.Section
	Options   []string
	Selection models.Selection
	Window    models.RangeWindow
	// From and To bound the chart's dates; a zero bound is open.
	From  time.Time
	To    time.Time
	Chart *models.ChartSpec
	Table *models.CleanedTable
	// Warning is set instead of Chart when there is nothing to draw: an
	// empty selection or no dates within the bounds.
	Warning string
	Err     error
}

// Bounded reports whether the view has an explicit from or to date.
func (v *SectionView) Bounded() bool {
	return !v.From.IsZero() || !v.To.IsZero()
}

// Disabled reports whether the section's controls have nothing to act on.
func (v *SectionView) Disabled() bool {
	return v.Table == nil
}

// Page is the full dashboard. Err is a page-level failure (the sheet could
// not be loaded); the sections are still listed so the shell renders.
type Page struct {
	Sheet     string
	URL       string
	FetchedAt time.Time
	Active    string
	Sections  []*SectionView
	// Query is the request state the page was built from.
	Query url.Values
	Err   error
}

// Section returns the view for key, or nil.
func (p *Page) Section(key string) *SectionView {
	for _, v := range p.Sections {
		if v.Section.Key == key {
			return v
		}
	}
	return nil
}

// Build loads the sheet once and builds every section from the query
// values. A failure in one section is reported on that section only.
func (s *Service) Build(ctx context.Context, values url.Values) *Page {
	page := &Page{
		Sheet:    s.key.Sheet,
		URL:      s.key.URL,
		Active:   activeTab(values.Get("tab")),
		Query:    values,
		Sections: make([]*SectionView, len(Sections)),
	}
	for i, section := range Sections {
		page.Sections[i] = &SectionView{Section: section, Window: models.WindowAll}
	}

	raw, err := s.source.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("loading sheet failed", slog.String("sheet", s.key.Sheet), slog.Any("error", err))
		for _, v := range page.Sections {
			s.metrics.RecordRender(v.Section.Key, "error")
		}
		page.Err = err
		return page
	}
	page.FetchedAt = raw.FetchedAt

	var g errgroup.Group
	for _, v := range page.Sections {
		g.Go(func() error {
			s.fill(raw, v, values)
			return nil
		})
	}
	_ = g.Wait()
	return page
}

// BuildSection is Build for a single section.
func (s *Service) BuildSection(ctx context.Context, key string, values url.Values) (*SectionView, error) {
	section, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, key)
	}
	raw, err := s.source.Get(ctx, s.key)
	if err != nil {
		s.metrics.RecordRender(key, "error")
		return nil, err
	}
	v := &SectionView{Section: section, Window: models.WindowAll}
	s.fill(raw, v, values)
	return v, nil
}

func (s *Service) fill(raw *ingest.RawTable, v *SectionView, values url.Values) {
	key := v.Section.Key

	table, err := s.extract(raw, v.Section)
	if err != nil {
		s.logger.Warn("section extraction failed", slog.String("section", key), slog.Any("error", err))
		s.metrics.RecordRender(key, "error")
		v.Err = err
		return
	}
	v.Table = table
	v.Options = chart.Options(table)
	v.Selection = SelectionFromQuery(values, key, v.Options)

	if w, err := chart.ParseWindow(values.Get(RangeParam(key))); err == nil {
		v.Window = w
	}
	v.From, v.To = BoundsFromQuery(values, key)

	spec, err := chart.Build(table, v.Selection, v.Section.Title)
	switch {
	case errors.Is(err, chart.ErrEmptySelection):
		v.Warning = err.Error()
		s.metrics.RecordRender(key, "warning")
		return
	case err != nil:
		v.Err = err
		s.metrics.RecordRender(key, "error")
		return
	}
	if spec, err = chart.Window(spec, v.Window); err != nil {
		v.Err = err
		s.metrics.RecordRender(key, "error")
		return
	}
	if v.Bounded() {
		spec = chart.Between(spec, v.From, v.To)
		if _, _, ok := spec.Span(); !ok {
			v.Warning = chart.ErrNoData.Error()
			s.metrics.RecordRender(key, "warning")
			return
		}
	}
	v.Chart = spec
	s.metrics.RecordRender(key, "chart")
}

func activeTab(key string) string {
	if _, ok := Lookup(key); ok {
		return key
	}
	return Sections[0].Key
}
