package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newETagEcho() *echo.Echo {
	e := echo.New()
	e.Use(ETag("/api/v1"))
	e.GET("/api/v1/products", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]int{"total": 11})
	})
	e.GET("/api/v1/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})
	e.POST("/api/v1/products", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
	return e
}

func TestETag_SetAndMatch(t *testing.T) {
	e := newETagEcho()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}
	if rec.Body.Len() == 0 {
		t.Error("expected body to be flushed")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Error("expected empty body on 304")
	}
}

func TestETag_SkipsErrorsAndWrites(t *testing.T) {
	e := newETagEcho()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/missing", nil))
	if rec.Code != http.StatusNotFound || rec.Header().Get("ETag") != "" {
		t.Errorf("expected plain 404 without ETag, got %d %q", rec.Code, rec.Header().Get("ETag"))
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products", nil))
	if rec.Header().Get("ETag") != "" {
		t.Error("expected no ETag on POST")
	}
}

func TestETagMatch(t *testing.T) {
	etag := `W/"abc"`
	for header, want := range map[string]bool{
		`W/"abc"`:      true,
		`"abc"`:        true,
		`"x", W/"abc"`: true,
		`*`:            true,
		`"other"`:      false,
		``:             false,
	} {
		if got := etagMatch(header, etag); got != want {
			t.Errorf("etagMatch(%q) = %v, want %v", header, got, want)
		}
	}
}
