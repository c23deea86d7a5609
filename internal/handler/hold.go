package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/inventory"
	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/middleware"
)

// HoldHandler serves the buyer side: holds and their confirmation.  The
// owner token is the buyer's only credential; it comes from the JSON
// body or, failing that, the X-Owner-Token header.
type HoldHandler struct {
	holds    *inventory.HoldManager
	bookings *inventory.Finalizer
	errorWriter
}

func NewHoldHandler(holds *inventory.HoldManager, bookings *inventory.Finalizer, log logger.Logger) *HoldHandler {
	return &HoldHandler{holds: holds, bookings: bookings, errorWriter: errorWriter{log: log}}
}

type holdRequest struct {
	OwnerToken   string   `json:"owner_token"`
	SeatIDs      []string `json:"seat_ids"`
	TTLSeconds   *int     `json:"ttl_seconds"`   // optional, server default when absent
	ExtraSeconds int      `json:"extra_seconds"` // extend only
}

func ownerToken(c echo.Context, fromBody string) string {
	if t := strings.TrimSpace(fromBody); t != "" {
		return t
	}
	return strings.TrimSpace(c.Request().Header.Get(middleware.OwnerTokenHeader))
}

// seconds converts n seconds to a duration without overflowing.  Values
// past limit are clamped just above it and the core applies the real
// cap; negative values stay negative so the core rejects them.
func seconds(n int, limit time.Duration) time.Duration {
	if most := int(limit/time.Second) + 1; n > most {
		n = most
	}
	if n < 0 {
		n = -1
	}
	return time.Duration(n) * time.Second
}

// bind parses an optional JSON body and resolves the owner token.
func (h *HoldHandler) bind(c echo.Context) (holdRequest, string, bool) {
	var req holdRequest
	if err := c.Bind(&req); err != nil {
		return req, "", false
	}
	return req, ownerToken(c, req.OwnerToken), true
}

// Create handles POST /v1/screenings/:id/holds.
func (h *HoldHandler) Create(c echo.Context) error {
	req, owner, ok := h.bind(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	var ttl *time.Duration
	if req.TTLSeconds != nil {
		d := seconds(*req.TTLSeconds, h.holds.Config().MaxTTL)
		ttl = &d
	}
	hold, err := h.holds.CreateHold(c.Request().Context(), c.Param("id"), req.SeatIDs, owner, ttl)
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusCreated, hold)
}

// Get handles GET /v1/holds/:id.
func (h *HoldHandler) Get(c echo.Context) error {
	hold, err := h.holds.GetHold(c.Request().Context(), c.Param("id"), ownerToken(c, ""))
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, hold)
}

// Extend handles POST /v1/holds/:id/extend.
func (h *HoldHandler) Extend(c echo.Context) error {
	req, owner, ok := h.bind(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	extra := seconds(req.ExtraSeconds, h.holds.Config().MaxLifetime)
	hold, err := h.holds.ExtendHold(c.Request().Context(), c.Param("id"), owner, extra)
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, hold)
}

// Confirm handles POST /v1/holds/:id/confirm.  Confirming twice returns
// the same booking.
func (h *HoldHandler) Confirm(c echo.Context) error {
	_, owner, ok := h.bind(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	booking, err := h.bookings.ConfirmBooking(c.Request().Context(), c.Param("id"), owner)
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

// Release handles DELETE /v1/holds/:id.  Releasing an unknown or already
// released hold is not an error.
func (h *HoldHandler) Release(c echo.Context) error {
	_, owner, ok := h.bind(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.holds.ReleaseHold(c.Request().Context(), c.Param("id"), owner); err != nil {
		return h.write(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReleaseOwner handles DELETE /v1/owners/holds, used when a buyer
// session ends.  The token never travels in the URL, which is logged.
func (h *HoldHandler) ReleaseOwner(c echo.Context) error {
	_, owner, ok := h.bind(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	n, err := h.holds.ReleaseOwnerHolds(c.Request().Context(), owner)
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}
