package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/handler"
)

// RegisterBuyer registers the public seat map and the hold lifecycle.
// Buyers are anonymous; a hold is guarded by its owner token.  limit
// wraps hold creation only, the one call that can claim seats; nil
// disables it.
func RegisterBuyer(e *echo.Echo, s *handler.ScreeningHandler, h *handler.HoldHandler, b *handler.BookingHandler, limit echo.MiddlewareFunc) {
	var create []echo.MiddlewareFunc
	if limit != nil {
		create = append(create, limit)
	}
	g := e.Group("/v1")
	g.GET("/screenings/:id/seats", s.SeatMap)
	g.POST("/screenings/:id/holds", h.Create, create...)

	g.GET("/holds/:id", h.Get)
	g.POST("/holds/:id/extend", h.Extend)
	g.POST("/holds/:id/confirm", h.Confirm)
	g.DELETE("/holds/:id", h.Release)
	g.DELETE("/owners/holds", h.ReleaseOwner)

	g.GET("/bookings/:id", b.Get)
}
