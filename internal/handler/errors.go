// Package handler exposes the funnel over HTTP: browsing sessions, their
// events and navigation, and catalog reads.
package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/booking"
	"github.com/iliyamo/ticket-funnel/internal/repository"
	"github.com/iliyamo/ticket-funnel/internal/session"
)

var validate = validator.New()

// bind decodes the request body into req and validates it.  A non-nil
// result is the 400 body to send back.
func bind(c echo.Context, req any) echo.Map {
	if err := c.Bind(req); err != nil {
		return echo.Map{"error": "invalid request body"}
	}
	if err := validate.Struct(req); err != nil {
		return echo.Map{"error": "validation failed", "details": fieldErrors(err)}
	}
	return nil
}

func fieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field()+": "+fe.Tag())
	}
	return out
}

// statusOf maps domain errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, repository.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrUnknownEvent),
		errors.Is(err, booking.ErrUnknownStep),
		errors.Is(err, booking.ErrMissingPayload):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrPaymentPending):
		return http.StatusConflict
	case errors.Is(err, booking.ErrSessionClosed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error.  Unexpected errors are logged and
// reported without detail.
func fail(c echo.Context, log *zap.Logger, err error) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
