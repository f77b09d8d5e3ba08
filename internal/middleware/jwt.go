package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-funnel/internal/utils"
)

// OptionalCustomer reads a Bearer customer token when one is sent.
// Requests without an Authorization header continue as guests; a header
// carrying a bad token is rejected with 401.  The customer is available to
// handlers through CustomerFrom.
func OptionalCustomer(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if auth == "" {
				return next(c)
			}
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			cust, err := utils.ParseCustomerToken(secret, strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(customerKey, cust)
			c.Set(customerIDKey, cust.ID)
			return next(c)
		}
	}
}
