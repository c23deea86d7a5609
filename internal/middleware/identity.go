package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// Roles carried in the "role" claim of admin tokens.
const (
	RoleAdmin = "ADMIN"
	RoleOwner = "OWNER"
)

// OwnerTokenHeader carries the opaque owner token on requests without a
// JSON body.
const OwnerTokenHeader = "X-Owner-Token"

// Subject returns the authenticated subject stored by JWTAuth, or ""
// when the request is anonymous.
func Subject(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		// numeric subjects decode as float64 from JSON claims
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}

// Role returns the role claim stored by JWTAuth.
func Role(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}
