package dashboard_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/mauv0809/fipezap-dashboard/internal/chart"
	"github.com/mauv0809/fipezap-dashboard/internal/dashboard"
	"github.com/mauv0809/fipezap-dashboard/internal/ingest"
	"github.com/mauv0809/fipezap-dashboard/internal/ingest/ingesttest"
	"github.com/mauv0809/fipezap-dashboard/internal/metrics"
	"github.com/mauv0809/fipezap-dashboard/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartystreets/goconvey/convey"
)

var (
	sheetKey = ingest.Key{URL: "https://example.test/fipezap.xlsx", Sheet: "Curitiba"}
	start    = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
)

func newService(t *testing.T, sheet ingesttest.Sheet, m *metrics.Manager) (*dashboard.Service, *ingesttest.Transport) {
	t.Helper()
	body, err := ingesttest.Workbook(sheet)
	if err != nil {
		t.Fatalf("building workbook: %v", err)
	}
	return newServiceWith(ingesttest.NewTransport(ingesttest.Response{Body: body}), m)
}

func newServiceWith(tr *ingesttest.Transport, m *metrics.Manager) (*dashboard.Service, *ingesttest.Transport) {
	client := ingest.NewClient(ingest.WithHTTPClient(tr.Client()), ingest.WithBackoff(0), ingest.WithRequestInterval(0))
	cache := ingest.NewCache(client, ingest.WithCacheMetrics(m))
	return dashboard.NewService(cache, sheetKey, dashboard.WithMetrics(m)), tr
}

func TestBuild(t *testing.T) {
	convey.Convey("Given a city sheet with 36 months", t, func() {
		m := metrics.NewManager()
		svc, tr := newService(t, ingesttest.CitySheet("Curitiba", start, 36), m)
		ctx := context.Background()

		convey.Convey("When the dashboard is built without parameters", func() {
			page := svc.Build(ctx, url.Values{})

			convey.Convey("Then every section charts every series", func() {
				convey.So(page.Err, convey.ShouldBeNil)
				convey.So(page.Active, convey.ShouldEqual, "idx")
				convey.So(len(page.Sections), convey.ShouldEqual, 4)
				for _, v := range page.Sections {
					convey.So(v.Err, convey.ShouldBeNil)
					convey.So(v.Disabled(), convey.ShouldBeFalse)
					convey.So(len(v.Chart.Series), convey.ShouldEqual, 5)
					convey.So(v.Chart.Title, convey.ShouldEqual, v.Section.Title)
					convey.So(v.Table.Dropped, convey.ShouldEqual, 1)
				}
				convey.So(page.Section("prc").Chart.Series[0].Points[0].Y.Decimal.String(), convey.ShouldEqual, "3000.25")
			})

			convey.Convey("Then the sheet is fetched once for all sections", func() {
				convey.So(tr.Calls(), convey.ShouldEqual, 1)
			})

			convey.Convey("Then dropped rows are counted per section", func() {
				n, err := testutil.GatherAndCount(m.Registry(), "fipezap_rows_dropped_total")
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When one section narrows its selection", func() {
			page := svc.Build(ctx, url.Values{
				"tab":          {"mes"},
				"sel_mes":      {"Total", "2 Dormitórios"},
				"sel_mes_set":  {"1"},
				"range_mes":    {"1y"},
				"sel_bogus":    {"Total"},
				"range_unused": {"5y"},
			})

			convey.Convey("Then only that section changes", func() {
				convey.So(page.Active, convey.ShouldEqual, "mes")
				mes := page.Section("mes")
				convey.So(len(mes.Chart.Series), convey.ShouldEqual, 2)
				convey.So(mes.Window, convey.ShouldEqual, models.WindowOneYear)
				convey.So(len(mes.Chart.Series[0].Points), convey.ShouldEqual, 13)

				idx := page.Section("idx")
				convey.So(len(idx.Chart.Series), convey.ShouldEqual, 5)
				convey.So(idx.Window, convey.ShouldEqual, models.WindowAll)
				convey.So(len(idx.Chart.Series[0].Points), convey.ShouldEqual, 36)
			})
		})

		convey.Convey("When a section is bounded to the first half of 2021", func() {
			page := svc.Build(ctx, url.Values{"from_idx": {"2021-01"}, "to_idx": {"2021-06"}})

			convey.Convey("Then only those months are charted and tabled", func() {
				idx := page.Section("idx")
				convey.So(idx.Bounded(), convey.ShouldBeTrue)
				convey.So(idx.From.Equal(time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)), convey.ShouldBeTrue)
				convey.So(idx.To.Equal(time.Date(2021, time.June, 30, 0, 0, 0, 0, time.UTC)), convey.ShouldBeTrue)
				points := idx.Chart.Series[0].Points
				convey.So(len(points), convey.ShouldEqual, 6)
				convey.So(points[0].X.Equal(start.AddDate(0, 24, 0)), convey.ShouldBeTrue)
				convey.So(points[5].X.Equal(start.AddDate(0, 29, 0)), convey.ShouldBeTrue)
				convey.So(len(idx.TableView().Rows), convey.ShouldEqual, 6)
			})

			convey.Convey("Then the other sections keep their full history", func() {
				prc := page.Section("prc")
				convey.So(prc.Bounded(), convey.ShouldBeFalse)
				convey.So(len(prc.Chart.Series[0].Points), convey.ShouldEqual, 36)
			})
		})

		convey.Convey("When a bound is combined with a quick range", func() {
			page := svc.Build(ctx, url.Values{"range_idx": {"1y"}, "from_idx": {"2021-06"}})

			convey.Convey("Then both cut the chart", func() {
				convey.So(len(page.Section("idx").Chart.Series[0].Points), convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When the bounds fall outside the sheet", func() {
			page := svc.Build(ctx, url.Values{"from_idx": {"2030-01"}})

			convey.Convey("Then the section warns instead of charting", func() {
				idx := page.Section("idx")
				convey.So(idx.Chart, convey.ShouldBeNil)
				convey.So(idx.Err, convey.ShouldBeNil)
				convey.So(idx.Warning, convey.ShouldEqual, chart.ErrNoData.Error())
				convey.So(idx.Disabled(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a bound does not parse", func() {
			page := svc.Build(ctx, url.Values{"from_idx": {"janeiro"}, "to_idx": {"2021-13"}})

			convey.Convey("Then it is ignored", func() {
				idx := page.Section("idx")
				convey.So(idx.Bounded(), convey.ShouldBeFalse)
				convey.So(len(idx.Chart.Series[0].Points), convey.ShouldEqual, 36)
			})
		})

		convey.Convey("When a section's selection is cleared", func() {
			page := svc.Build(ctx, url.Values{"sel_ano_set": {"1"}})

			convey.Convey("Then it shows a warning and no chart", func() {
				ano := page.Section("ano")
				convey.So(ano.Chart, convey.ShouldBeNil)
				convey.So(ano.Warning, convey.ShouldEqual, "select at least one series to display the chart")
				convey.So(ano.Err, convey.ShouldBeNil)
				convey.So(page.Section("prc").Chart, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a single section is built", func() {
			v, err := svc.BuildSection(ctx, "prc", url.Values{"sel_prc": {"Total"}})

			convey.Convey("Then it carries its table and chart", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(v.Options, convey.ShouldResemble, []string{"Total", "1 Dormitório", "2 Dormitórios", "3 Dormitórios", "4 Dormitórios"})
				convey.So(len(v.Chart.Series), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When an unknown section is requested", func() {
			_, err1 := svc.BuildSection(ctx, "xyz", nil)
			_, _, err2 := svc.Table(ctx, "xyz")

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err1, dashboard.ErrUnknownSection), convey.ShouldBeTrue)
				convey.So(errors.Is(err2, dashboard.ErrUnknownSection), convey.ShouldBeTrue)
			})
		})
	})
}

// droppedRows reads fipezap_rows_dropped_total for a section.
func droppedRows(t *testing.T, m *metrics.Manager, section string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "fipezap_rows_dropped_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "section" && label.GetValue() == section {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRowsDropped(t *testing.T) {
	convey.Convey("Given a cached sheet with one footer row per section", t, func() {
		body, err := ingesttest.Workbook(ingesttest.CitySheet("Curitiba", start, 12))
		convey.So(err, convey.ShouldBeNil)
		tr := ingesttest.NewTransport(ingesttest.Response{Body: body})
		client := ingest.NewClient(ingest.WithHTTPClient(tr.Client()), ingest.WithBackoff(0), ingest.WithRequestInterval(0))
		m := metrics.NewManager()
		cache := ingest.NewCache(client, ingest.WithCacheMetrics(m))
		svc := dashboard.NewService(cache, sheetKey, dashboard.WithMetrics(m))
		ctx := context.Background()

		convey.Convey("When the dashboard is rendered repeatedly", func() {
			for i := 0; i < 5; i++ {
				svc.Build(ctx, url.Values{})
			}
			_, err := svc.BuildSection(ctx, "idx", url.Values{"range_idx": {"1y"}})
			convey.So(err, convey.ShouldBeNil)
			_, _, err = svc.Table(ctx, "idx")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the dropped rows are counted once", func() {
				convey.So(tr.Calls(), convey.ShouldEqual, 1)
				for _, s := range dashboard.Sections {
					convey.So(droppedRows(t, m, s.Key), convey.ShouldEqual, 1)
				}
			})

			convey.Convey("Then a reload counts them again", func() {
				cache.Invalidate()
				svc.Build(ctx, url.Values{})
				svc.Build(ctx, url.Values{})

				convey.So(tr.Calls(), convey.ShouldEqual, 2)
				convey.So(droppedRows(t, m, "idx"), convey.ShouldEqual, 2)
			})
		})
	})
}

func TestBuildFailures(t *testing.T) {
	convey.Convey("Given an upstream that is down", t, func() {
		svc, _ := newServiceWith(ingesttest.NewTransport(ingesttest.Response{Status: http.StatusBadGateway}), nil)
		page := svc.Build(context.Background(), url.Values{})

		convey.Convey("Then the page carries the error and keeps its shell", func() {
			convey.So(errors.Is(page.Err, ingest.ErrFetch), convey.ShouldBeTrue)
			convey.So(len(page.Sections), convey.ShouldEqual, 4)
			for _, v := range page.Sections {
				convey.So(v.Disabled(), convey.ShouldBeTrue)
				convey.So(v.Chart, convey.ShouldBeNil)
			}
		})
	})

	convey.Convey("Given a workbook without the city sheet", t, func() {
		svc, _ := newService(t, ingesttest.CitySheet("Recife", start, 3), nil)
		page := svc.Build(context.Background(), url.Values{})

		convey.Convey("Then a format error is surfaced", func() {
			convey.So(errors.Is(page.Err, ingest.ErrFormat), convey.ShouldBeTrue)
			convey.So(errors.Is(page.Err, ingest.ErrSheetNotFound), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a sheet that lost its last block", t, func() {
		sheet := ingesttest.CitySheet("Curitiba", start, 12)
		for i, row := range sheet.Rows {
			if len(row) > 17 {
				sheet.Rows[i] = row[:17]
			}
		}
		svc, _ := newService(t, sheet, nil)
		page := svc.Build(context.Background(), url.Values{})

		convey.Convey("Then only the affected section fails, loudly", func() {
			convey.So(page.Err, convey.ShouldBeNil)
			convey.So(page.Section("idx").Chart, convey.ShouldNotBeNil)
			convey.So(page.Section("ano").Chart, convey.ShouldNotBeNil)

			prc := page.Section("prc")
			convey.So(errors.Is(prc.Err, ingest.ErrFormat), convey.ShouldBeTrue)
			convey.So(prc.Disabled(), convey.ShouldBeTrue)
		})
	})
}

func TestSelectionFromQuery(t *testing.T) {
	options := []string{"Total", "1 Dormitório", "2 Dormitórios"}

	convey.Convey("Given query values", t, func() {
		convey.Convey("When the section form was never submitted", func() {
			sel := dashboard.SelectionFromQuery(url.Values{"sel_mes": {"Total"}}, "idx", options)

			convey.Convey("Then everything is selected", func() {
				convey.So(sel, convey.ShouldResemble, models.Selection(options))
			})
		})

		convey.Convey("When the form was submitted with nothing checked", func() {
			sel := dashboard.SelectionFromQuery(url.Values{"sel_idx_set": {"1"}}, "idx", options)

			convey.Convey("Then the selection is empty", func() {
				convey.So(sel.Empty(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When names are repeated and comma separated", func() {
			sel := dashboard.SelectionFromQuery(url.Values{"sel_idx": {"Total, 2 Dormitórios", "1 Dormitório"}}, "idx", options)

			convey.Convey("Then they are flattened in order", func() {
				convey.So(sel, convey.ShouldResemble, models.Selection{"Total", "2 Dormitórios", "1 Dormitório"})
				convey.So(dashboard.Selected(sel, "1 Dormitório"), convey.ShouldBeTrue)
				convey.So(dashboard.Selected(sel, "3 Dormitórios"), convey.ShouldBeFalse)
			})
		})
	})
}

func TestTableView(t *testing.T) {
	convey.Convey("Given a section built with a window", t, func() {
		svc, _ := newService(t, ingesttest.CitySheet("Curitiba", start, 30), nil)
		v, err := svc.BuildSection(context.Background(), "idx", url.Values{
			"sel_idx":   {"3 Dormitórios", "Total"},
			"range_idx": {"1y"},
		})
		convey.So(err, convey.ShouldBeNil)

		tv := v.TableView()

		convey.Convey("Then the table holds the charted series, newest first", func() {
			convey.So(tv.Columns, convey.ShouldResemble, []string{"3 Dormitórios", "Total"})
			convey.So(len(tv.Rows), convey.ShouldEqual, 13)
			convey.So(tv.Rows[0].Date.Equal(start.AddDate(0, 29, 0)), convey.ShouldBeTrue)
			convey.So(tv.Rows[12].Date.Equal(start.AddDate(0, 17, 0)), convey.ShouldBeTrue)
			convey.So(tv.Rows[0].Values[0].Decimal.String(), convey.ShouldEqual, "293.25")
		})
	})

	convey.Convey("Given a section without a chart", t, func() {
		v := &dashboard.SectionView{Section: dashboard.Sections[0], Warning: "empty"}

		convey.Convey("Then the table is empty", func() {
			tv := v.TableView()
			convey.So(tv.Columns, convey.ShouldBeEmpty)
			convey.So(tv.Rows, convey.ShouldBeEmpty)
		})
	})
}
