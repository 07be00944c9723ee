package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	m := NewMetrics("test")
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/doctors/:id", okHandler)
	e.GET("/metrics", m.Handler())

	for _, id := range []string{"d1", "d2", "d3"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/doctors/"+id, nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/v1/doctors/:id", "200"))
	if got != 3 {
		t.Errorf("expected 3 requests on the route pattern, got %v", got)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_http_requests_total") {
		t.Error("expected request counter in exposition output")
	}
}

func TestMetrics_CountsErrors(t *testing.T) {
	m := NewMetrics("test")
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), httptest.NewRecorder())
	c.SetPath("/x")

	_ = m.Middleware()(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})(c)

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/x", "404")); got != 1 {
		t.Errorf("expected one 404, got %v", got)
	}
}
