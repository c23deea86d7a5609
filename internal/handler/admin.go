package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/inventory"
	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/middleware"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// AdminHandler exposes the operator overrides.  All routes run behind
// JWTAuth; the actor defaults to the token subject.
type AdminHandler struct {
	admin *inventory.Admin
	errorWriter
}

func NewAdminHandler(admin *inventory.Admin, log logger.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, errorWriter: errorWriter{log: log}}
}

type overrideRequest struct {
	SeatIDs []string `json:"seat_ids"`
	Reason  string   `json:"reason"`
	Actor   string   `json:"actor"` // defaults to the JWT subject
}

func actorOf(c echo.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return middleware.Subject(c)
}

type overrideFunc func(c echo.Context, req overrideRequest, actor string) ([]model.SeatState, error)

func (h *AdminHandler) override(fn overrideFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req overrideRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		}
		states, err := fn(c, req, actorOf(c, req.Actor))
		if err != nil {
			return h.write(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"applied": states})
	}
}

// Lock handles POST /v1/screenings/:id/seats/lock.
func (h *AdminHandler) Lock(c echo.Context) error {
	return h.override(func(c echo.Context, req overrideRequest, actor string) ([]model.SeatState, error) {
		return h.admin.LockSeats(c.Request().Context(), c.Param("id"), req.SeatIDs, req.Reason, actor)
	})(c)
}

// Unlock handles POST /v1/screenings/:id/seats/unlock.
func (h *AdminHandler) Unlock(c echo.Context) error {
	return h.override(func(c echo.Context, req overrideRequest, actor string) ([]model.SeatState, error) {
		return h.admin.UnlockSeats(c.Request().Context(), c.Param("id"), req.SeatIDs, actor)
	})(c)
}

// ForceRelease handles POST /v1/screenings/:id/seats/force-release.
func (h *AdminHandler) ForceRelease(c echo.Context) error {
	return h.override(func(c echo.Context, req overrideRequest, actor string) ([]model.SeatState, error) {
		return h.admin.ForceRelease(c.Request().Context(), c.Param("id"), req.SeatIDs, req.Reason, actor)
	})(c)
}

// Audit handles GET /v1/screenings/:id/audit.
func (h *AdminHandler) Audit(c echo.Context) error {
	entries, err := h.admin.Audit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}
