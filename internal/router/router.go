// Package router defines how HTTP routes are registered for the API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/handler"
)

// RegisterRoutes registers the operational endpoints: /healthz for load
// balancers and /metrics for Prometheus.  metrics may be nil.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, metrics http.Handler) {
	e.GET("/healthz", handler.Health(db))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}
