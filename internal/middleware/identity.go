package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-funnel/internal/model"
)

const (
	customerKey   = "customer"
	customerIDKey = "customer_id"
)

// CustomerFrom returns the signed-in customer, or nil for a guest.
func CustomerFrom(c echo.Context) *model.Customer {
	if cust, ok := c.Get(customerKey).(*model.Customer); ok {
		return cust
	}
	return nil
}

// customerID is the rate limit identity of the caller: the customer id,
// or "guest".
func customerID(c echo.Context) string {
	if s, ok := c.Get(customerIDKey).(string); ok && s != "" {
		return s
	}
	return "guest"
}
