package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/inventory"
	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
)

// errorWriter renders inventory errors as JSON responses.  Only
// unexpected errors are logged; the rest are client outcomes.
type errorWriter struct {
	log logger.Logger
}

func (w errorWriter) write(c echo.Context, err error) error {
	if seats, ok := inventory.ConflictSeats(err); ok {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "seats": seats})
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		w.log.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, inventory.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrScreeningNotFound),
		errors.Is(err, inventory.ErrSeatNotFound),
		errors.Is(err, inventory.ErrHoldNotFound),
		errors.Is(err, inventory.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrHoldExpired),
		errors.Is(err, inventory.ErrScreeningClosed):
		return http.StatusGone
	case errors.Is(err, inventory.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, inventory.ErrScreeningExists),
		errors.Is(err, inventory.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
