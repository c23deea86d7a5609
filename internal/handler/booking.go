package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/inventory"
	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
)

type BookingHandler struct {
	bookings *inventory.Finalizer
	errorWriter
}

func NewBookingHandler(bookings *inventory.Finalizer, log logger.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, errorWriter: errorWriter{log: log}}
}

// Get handles GET /v1/bookings/:id.  The caller proves ownership with
// the X-Owner-Token header.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.bookings.OwnerBooking(c.Request().Context(), c.Param("id"), ownerToken(c, ""))
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Release handles POST /v1/bookings/:id/release for refund and
// cancellation flows.  The seats return to sale.
func (h *BookingHandler) Release(c echo.Context) error {
	var req struct {
		Reason string `json:"reason"`
		Actor  string `json:"actor"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	b, err := h.bookings.ReleaseBooking(c.Request().Context(), c.Param("id"), actorOf(c, req.Actor), req.Reason)
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
