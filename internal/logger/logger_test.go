package logger

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core)).With("component", "sweeper")
	log.Info("swept", "hold_id", "h1")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "sweeper" || fields["hold_id"] != "h1" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestEchoMiddlewareLogsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(EchoMiddleware(FromZap(zap.New(core))))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusTeapot, "x") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected code %d", rec.Code)
	}
	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusTeapot) {
		t.Fatalf("unexpected status field %v (%T)", got, got)
	}
}

func TestEchoMiddlewareOmitsRawURI(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(EchoMiddleware(FromZap(zap.New(core))))
	e.DELETE("/v1/owners/holds", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	const token = "secret-session-123"
	req := httptest.NewRequest(http.MethodDelete, "/v1/owners/holds?owner_token="+token, nil)
	req.Header.Set("X-Owner-Token", token)
	e.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	for k, v := range entries[0].ContextMap() {
		if strings.Contains(fmt.Sprint(v), token) {
			t.Fatalf("owner token logged in field %q: %v", k, v)
		}
	}
	if got := entries[0].ContextMap()["path"]; got != "/v1/owners/holds" {
		t.Fatalf("path = %v", got)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	if New("bogus", "console") == nil {
		t.Fatal("expected logger")
	}
}
