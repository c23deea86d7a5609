package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
)

// Recover turns a handler panic into a 500 response and logs the stack.
func Recover(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				log.Error("handler panic",
					"method", c.Request().Method,
					"path", c.Path(),
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
				err = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}()
			return next(c)
		}
	}
}
