package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mauv0809/fipezap-dashboard/internal/dashboard"
	"github.com/mauv0809/fipezap-dashboard/internal/handlers"
	"github.com/mauv0809/fipezap-dashboard/internal/ingest"
	"github.com/mauv0809/fipezap-dashboard/internal/ingest/ingesttest"
	"github.com/mauv0809/fipezap-dashboard/internal/metrics"
	"github.com/mauv0809/fipezap-dashboard/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartystreets/goconvey/convey"
)

var sheetKey = ingest.Key{URL: "https://example.test/fipezap.xlsx", Sheet: "Curitiba"}

type server struct {
	e  *echo.Echo
	tr *ingesttest.Transport
	m  *metrics.Manager
}

func newServer(t *testing.T, responses ...ingesttest.Response) *server {
	t.Helper()
	if len(responses) == 0 {
		body, err := ingesttest.Workbook(ingesttest.CitySheet("Curitiba", time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), 24))
		if err != nil {
			t.Fatalf("building workbook: %v", err)
		}
		responses = []ingesttest.Response{{Body: body}}
	}
	tr := ingesttest.NewTransport(responses...)
	m := metrics.NewManager()
	client := ingest.NewClient(ingest.WithHTTPClient(tr.Client()), ingest.WithBackoff(0), ingest.WithRequestInterval(0))
	cache := ingest.NewCache(client, ingest.WithCacheMetrics(m))
	svc := dashboard.NewService(cache, sheetKey, dashboard.WithMetrics(m))

	e := echo.New()
	e.Use(handlers.Metrics(m))
	handlers.New(svc, handlers.WithChartSize(640, 320)).Register(e)
	handlers.NewIngestHandler(cache, client, sheetKey, nil).Register(e.Group("/admin"))
	return &server{e: e, tr: tr, m: m}
}

func (s *server) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}

func TestPages(t *testing.T) {
	convey.Convey("Given a running dashboard", t, func() {
		s := newServer(t)

		convey.Convey("When the index is requested", func() {
			rec := s.do(http.MethodGet, "/?tab=prc")

			convey.Convey("Then all tabs render with charts", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				body := rec.Body.String()
				for _, section := range dashboard.Sections {
					convey.So(body, convey.ShouldContainSubstring, section.Title)
					convey.So(body, convey.ShouldContainSubstring, `src="/charts/`+section.Key+`.png`)
				}
				convey.So(body, convey.ShouldContainSubstring, `href="/?tab=prc" aria-current="page"`)
			})
		})

		convey.Convey("When a single section is requested", func() {
			rec := s.do(http.MethodGet, "/sections/ano?range_ano=5y")

			convey.Convey("Then it renders with its quick-range selector", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, `action="/sections/ano"`)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, "Variação Acumulada em 12 Meses (%)")
			})
		})

		convey.Convey("When the index is requested with a period for one section", func() {
			rec := s.do(http.MethodGet, "/?tab=idx&from_idx=2019-06&to_idx=2019-08")

			convey.Convey("Then that section's chart and inputs follow the period", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				body := rec.Body.String()
				convey.So(body, convey.ShouldContainSubstring, `name="from_idx" value="2019-06"`)
				convey.So(body, convey.ShouldContainSubstring, `name="to_idx" value="2019-08"`)
				convey.So(body, convey.ShouldContainSubstring, `src="/charts/idx.png?from=2019-06-01&amp;series=`)
				convey.So(body, convey.ShouldContainSubstring, `to=2019-08-31"`)
				convey.So(body, convey.ShouldContainSubstring, "<td>08/2019</td>")
			})
		})

		convey.Convey("When an unknown section is requested", func() {
			rec := s.do(http.MethodGet, "/sections/nope")

			convey.Convey("Then it is not found", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusNotFound)
			})
		})

		convey.Convey("When health is checked", func() {
			rec := s.do(http.MethodGet, "/health")

			convey.Convey("Then it is ok", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, `"status":"ok"`)
			})
		})
	})

	convey.Convey("Given an upstream that is down", t, func() {
		s := newServer(t, ingesttest.Response{Status: http.StatusServiceUnavailable})

		convey.Convey("When the index is requested", func() {
			rec := s.do(http.MethodGet, "/")

			convey.Convey("Then the shell renders with an inline error", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, `class="banner error"`)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, "<fieldset disabled>")
			})
		})

		convey.Convey("When a section page is requested", func() {
			rec := s.do(http.MethodGet, "/sections/idx")

			convey.Convey("Then the section shell renders with the error", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, "Não foi possível baixar a planilha")
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, "<fieldset disabled>")
				convey.So(rec.Body.String(), convey.ShouldNotContainSubstring, `name="range_idx"`)
			})
		})

		convey.Convey("When the API is called", func() {
			rec := s.do(http.MethodGet, "/api/sections/idx/chart")

			convey.Convey("Then it reports a bad gateway", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusBadGateway)
				var body handlers.APIError
				convey.So(decode(rec, &body), convey.ShouldBeNil)
				convey.So(body.Error, convey.ShouldContainSubstring, "status 503")
			})
		})
	})
}

func TestAPI(t *testing.T) {
	convey.Convey("Given a running dashboard", t, func() {
		s := newServer(t)

		convey.Convey("When the sections are listed", func() {
			rec := s.do(http.MethodGet, "/api/sections")

			convey.Convey("Then each lists its series", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				var body []handlers.SectionInfo
				convey.So(decode(rec, &body), convey.ShouldBeNil)
				convey.So(len(body), convey.ShouldEqual, 4)
				convey.So(body[3].Key, convey.ShouldEqual, "prc")
				convey.So(body[3].Range, convey.ShouldResemble, models.ColumnRange{Start: 17, End: 21})
				convey.So(body[0].Series, convey.ShouldResemble, []string{"Total", "1 Dormitório", "2 Dormitórios", "3 Dormitórios", "4 Dormitórios"})
				convey.So(body[0].Rows, convey.ShouldEqual, 24)
				convey.So(body[0].Dropped, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a chart spec is requested for a subset", func() {
			rec := s.do(http.MethodGet, "/api/sections/mes/chart?series=Total&series=4+Dormit%C3%B3rios&range=1y")

			convey.Convey("Then it has one series per name within the window", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				var spec models.ChartSpec
				convey.So(decode(rec, &spec), convey.ShouldBeNil)
				convey.So(len(spec.Series), convey.ShouldEqual, 2)
				convey.So(spec.Series[1].Name, convey.ShouldEqual, "4 Dormitórios")
				convey.So(len(spec.Series[0].Points), convey.ShouldEqual, 13)
				convey.So(spec.Title, convey.ShouldEqual, "Variação Mensal (%)")
				convey.So(spec.Markers, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the selection is empty", func() {
			rec := s.do(http.MethodGet, "/api/sections/idx/chart?series=")

			convey.Convey("Then a warning is returned instead of a chart", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				var body handlers.WarningResponse
				convey.So(decode(rec, &body), convey.ShouldBeNil)
				convey.So(body.Warning, convey.ShouldNotBeEmpty)
				convey.So(rec.Body.String(), convey.ShouldNotContainSubstring, `"series"`)
			})
		})

		convey.Convey("When bad parameters are given", func() {
			convey.So(s.do(http.MethodGet, "/api/sections/idx/chart?series=Cobertura").Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(s.do(http.MethodGet, "/api/sections/idx/chart?range=10y").Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(s.do(http.MethodGet, "/api/sections/idx/chart?from=ontem").Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(s.do(http.MethodGet, "/api/sections/xyz/chart").Code, convey.ShouldEqual, http.StatusNotFound)
		})

		convey.Convey("When the table is requested with bounds", func() {
			rec := s.do(http.MethodGet, "/api/sections/prc/table?series=Total&from=2019-03&to=2019-05")

			convey.Convey("Then rows are within bounds, newest first", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				var body handlers.TableResponse
				convey.So(decode(rec, &body), convey.ShouldBeNil)
				convey.So(body.Columns, convey.ShouldResemble, []string{"Total"})
				convey.So(len(body.Rows), convey.ShouldEqual, 3)
				convey.So(body.Rows[0].Date.Equal(time.Date(2019, time.May, 1, 0, 0, 0, 0, time.UTC)), convey.ShouldBeTrue)
				convey.So(body.Rows[2].Date.Equal(time.Date(2019, time.March, 1, 0, 0, 0, 0, time.UTC)), convey.ShouldBeTrue)
				convey.So(body.Rows[0].Values[0].Decimal.String(), convey.ShouldEqual, "3040.25")
			})
		})

		convey.Convey("When a chart image is requested", func() {
			png := s.do(http.MethodGet, "/charts/idx.png?series=Total")
			svg := s.do(http.MethodGet, "/charts/ano.svg")

			convey.Convey("Then the image is rendered", func() {
				convey.So(png.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(png.Header().Get(echo.HeaderContentType), convey.ShouldEqual, "image/png")
				convey.So(bytes.HasPrefix(png.Body.Bytes(), []byte("\x89PNG")), convey.ShouldBeTrue)
				convey.So(svg.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(svg.Header().Get(echo.HeaderContentType), convey.ShouldEqual, "image/svg+xml")
			})
		})

		convey.Convey("When a chart image cannot be drawn", func() {
			convey.So(s.do(http.MethodGet, "/charts/idx.gif").Code, convey.ShouldEqual, http.StatusNotFound)
			convey.So(s.do(http.MethodGet, "/charts/idx.png?series=").Code, convey.ShouldEqual, http.StatusUnprocessableEntity)
			convey.So(s.do(http.MethodGet, "/charts/idx.png?from=2020-12").Code, convey.ShouldEqual, http.StatusUnprocessableEntity)
		})

		convey.Convey("When several pages are served", func() {
			s.do(http.MethodGet, "/")
			s.do(http.MethodGet, "/api/sections")
			s.do(http.MethodGet, "/charts/idx.png")

			convey.Convey("Then the workbook is downloaded once and requests are counted", func() {
				convey.So(s.tr.Calls(), convey.ShouldEqual, 1)
				n, err := testutil.GatherAndCount(s.m.Registry(), "fipezap_http_requests_total")
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 3)
			})
		})
	})

	convey.Convey("Given a workbook without the city sheet", t, func() {
		body, err := ingesttest.Workbook(ingesttest.CitySheet("Recife", time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), 3))
		convey.So(err, convey.ShouldBeNil)
		s := newServer(t, ingesttest.Response{Body: body})

		rec := s.do(http.MethodGet, "/api/sections")

		convey.Convey("Then the format error is surfaced as unprocessable", func() {
			convey.So(rec.Code, convey.ShouldEqual, http.StatusUnprocessableEntity)
			convey.So(rec.Body.String(), convey.ShouldContainSubstring, "sheet not found")
		})
	})
}

func TestAdmin(t *testing.T) {
	convey.Convey("Given a running dashboard", t, func() {
		s := newServer(t)
		s.do(http.MethodGet, "/")

		convey.Convey("When the cache is refreshed", func() {
			rec := s.do(http.MethodPost, "/admin/ingest/refresh")

			convey.Convey("Then a new epoch is loaded from upstream", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				var body handlers.IngestResponse
				convey.So(decode(rec, &body), convey.ShouldBeNil)
				convey.So(body.Success, convey.ShouldBeTrue)
				convey.So(body.Epoch, convey.ShouldEqual, 2)
				convey.So(body.Count, convey.ShouldEqual, 25)
				convey.So(s.tr.Calls(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the status is requested", func() {
			rec := s.do(http.MethodGet, "/admin/ingest/status")

			convey.Convey("Then it shows the cached sheet", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				var body struct {
					Epoch   uint64               `json:"epoch"`
					Misses  uint64               `json:"misses"`
					Entries []ingest.EntryStatus `json:"entries"`
				}
				convey.So(decode(rec, &body), convey.ShouldBeNil)
				convey.So(body.Epoch, convey.ShouldEqual, 1)
				convey.So(body.Misses, convey.ShouldEqual, 1)
				convey.So(len(body.Entries), convey.ShouldEqual, 1)
				convey.So(body.Entries[0].Columns, convey.ShouldEqual, 22)
			})
		})

		convey.Convey("When the workbook is tested", func() {
			rec := s.do(http.MethodGet, "/admin/ingest/test")

			convey.Convey("Then it bypasses the cache", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, `"sheets":["Curitiba"]`)
				convey.So(s.tr.Calls(), convey.ShouldEqual, 3)
			})
		})
	})
}
