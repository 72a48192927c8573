package metrics_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mauv0809/fipezap-dashboard/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	convey.Convey("Given a metrics manager", t, func() {
		m := metrics.NewManager(metrics.WithNamespace("test"))

		convey.Convey("When recording domain events", func() {
			m.RecordFetch("ok", 250*time.Millisecond)
			m.RecordCache(true)
			m.RecordCache(false)
			m.RecordCache(true)
			m.RecordRowsDropped("idx", 3)
			m.RecordRowsDropped("idx", 0)
			m.RecordRender("mes", "warning")
			m.SetCacheEpoch(2)

			convey.Convey("Then the collectors reflect them", func() {
				count, err := testutil.GatherAndCount(m.Registry(), "test_cache_requests_total")
				convey.So(err, convey.ShouldBeNil)
				convey.So(count, convey.ShouldEqual, 2)

				count, err = testutil.GatherAndCount(m.Registry(), "test_rows_dropped_total")
				convey.So(err, convey.ShouldBeNil)
				convey.So(count, convey.ShouldEqual, 1)
			})

			convey.Convey("Then the handler exposes them", func() {
				rec := httptest.NewRecorder()
				m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
				convey.So(rec.Code, convey.ShouldEqual, 200)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, `test_rows_dropped_total{section="idx"} 3`)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, "test_cache_epoch 2")
			})
		})
	})

	convey.Convey("Given a nil manager", t, func() {
		var m *metrics.Manager

		convey.Convey("Then recording is a no-op", func() {
			convey.So(func() {
				m.RecordFetch("error", time.Second)
				m.RecordCache(false)
				m.RecordRowsDropped("idx", 1)
				m.RecordRender("idx", "chart")
				m.RecordHTTPRequest("/", "GET", 200, time.Millisecond)
				m.SetCacheEpoch(1)
			}, convey.ShouldNotPanic)
		})
	})
}
