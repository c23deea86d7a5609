package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/handler"
	"github.com/iliyamo/cinema-seat-inventory/internal/middleware"
)

// RegisterAdmin registers operator endpoints.  Every route requires a
// valid JWT; OWNER and ADMIN may register screenings, lock, unlock and
// read the audit log, while force release and booking release are
// ADMIN only.
func RegisterAdmin(e *echo.Echo, s *handler.ScreeningHandler, a *handler.AdminHandler, b *handler.BookingHandler, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)
	staff := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleOwner)
	admin := middleware.RequireRole(middleware.RoleAdmin)

	e.POST("/v1/screenings", s.Register, auth, staff)
	e.POST("/v1/screenings/:id/seats/lock", a.Lock, auth, staff)
	e.POST("/v1/screenings/:id/seats/unlock", a.Unlock, auth, staff)
	e.GET("/v1/screenings/:id/audit", a.Audit, auth, staff)

	e.POST("/v1/screenings/:id/seats/force-release", a.ForceRelease, auth, admin)
	e.POST("/v1/bookings/:id/release", b.Release, auth, admin)
}
