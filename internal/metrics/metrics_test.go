package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilCollectorsAreSafe(t *testing.T) {
	var c *Collectors
	c.HoldCreated()
	c.HoldConflict()
	c.HoldReleased("owner")
	c.BookingConfirmed()
	c.BookingReleased()
	c.AdminOverride("LOCK", "APPLIED")
	c.StoreWriteFailed()
	c.EventDropped()
	c.SetSeatRemain("scr-1", 3)
}

func TestCountersAndGauge(t *testing.T) {
	c := New()
	c.HoldCreated()
	c.HoldCreated()
	c.HoldReleased("expired")
	c.AdminOverride("LOCK", "CONFLICT")
	c.SetSeatRemain("scr-1", 7)

	if got := testutil.ToFloat64(c.holdsCreated); got != 2 {
		t.Fatalf("holds created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.holdsReleased.WithLabelValues("expired")); got != 1 {
		t.Fatalf("holds released{expired} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.adminOverrides.WithLabelValues("LOCK", "CONFLICT")); got != 1 {
		t.Fatalf("admin overrides = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.seatRemain.WithLabelValues("scr-1")); got != 7 {
		t.Fatalf("seat remain = %v, want 7", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	c := New()
	c.BookingConfirmed()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "seat_inventory_bookings_confirmed_total 1") {
		t.Fatalf("metrics output missing booking counter:\n%s", rec.Body.String())
	}
}
