package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/booking"
	"github.com/iliyamo/ticket-funnel/internal/middleware"
	"github.com/iliyamo/ticket-funnel/internal/model"
	"github.com/iliyamo/ticket-funnel/internal/session"
	"github.com/iliyamo/ticket-funnel/internal/utils"
)

// SessionHandler serves browsing sessions.
type SessionHandler struct {
	Sessions    *session.Registry
	PaymentWait time.Duration
	Log         *zap.Logger
}

func NewSessionHandler(sessions *session.Registry, paymentWait time.Duration, log *zap.Logger) *SessionHandler {
	if sessions == nil {
		panic("nil registry passed to NewSessionHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if paymentWait < 0 {
		paymentWait = 0
	}
	return &SessionHandler{Sessions: sessions, PaymentWait: paymentWait, Log: log}
}

type sessionResponse struct {
	SessionID string                 `json:"session_id"`
	Address   string                 `json:"address"`
	View      booking.View           `json:"view"`
	Payment   *booking.PaymentResult `json:"payment,omitempty"`
}

func respond(c echo.Context, status int, s *session.Session, v booking.View) error {
	return c.JSON(status, sessionResponse{SessionID: s.ID, Address: s.Adapter.Address(), View: v})
}

type createSessionRequest struct {
	Address string `json:"address" validate:"omitempty,max=2048"`
}

// Create starts a session at the requested address.  A signed-in
// customer's details prefill billing.
// POST /v1/sessions
func (h *SessionHandler) Create(c echo.Context) error {
	var req createSessionRequest
	if bad := bind(c, &req); bad != nil {
		return c.JSON(http.StatusBadRequest, bad)
	}
	s, v, err := h.Sessions.Create(c.Request().Context(), middleware.CustomerFrom(c), req.Address)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return respond(c, http.StatusCreated, s, v)
}

// Get returns the current view of a session.
// GET /v1/sessions/:id
func (h *SessionHandler) Get(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return respond(c, http.StatusOK, s, s.Pipeline.Snapshot())
}

type eventRequest struct {
	Type      booking.EventType `json:"type" validate:"required"`
	ListingID uint64            `json:"listing_id"`
	Section   string            `json:"section" validate:"omitempty,max=64"`
	Quantity  int               `json:"quantity"`
	Billing   *model.Billing    `json:"billing" validate:"-"`
	Accept    bool              `json:"accept"`
}

// Event dispatches one user action.  Guard failures come back as a 200
// with a notice in the view; only malformed or impossible events are
// errors.
// POST /v1/sessions/:id/events
func (h *SessionHandler) Event(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req eventRequest
	if bad := bind(c, &req); bad != nil {
		return c.JSON(http.StatusBadRequest, bad)
	}
	v, err := s.Pipeline.Dispatch(c.Request().Context(), booking.Event{
		Type:      req.Type,
		ListingID: req.ListingID,
		Section:   req.Section,
		Quantity:  req.Quantity,
		Billing:   req.Billing,
		Accept:    req.Accept,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return respond(c, http.StatusOK, s, v)
}

// Payment submits the booking on the payment step and waits a bounded
// time for the outcome.  When the gateway is slower the answer is 202 and
// the client polls Get.
// POST /v1/sessions/:id/payment
func (h *SessionHandler) Payment(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx := c.Request().Context()
	results, err := s.Pipeline.SubmitPayment(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}

	wait := time.NewTimer(h.PaymentWait)
	defer wait.Stop()
	select {
	case res, ok := <-results:
		if ok {
			return c.JSON(http.StatusOK, sessionResponse{SessionID: s.ID, Address: s.Adapter.Address(), View: res.View, Payment: &res})
		}
	case <-wait.C:
	case <-ctx.Done():
	}
	return respond(c, http.StatusAccepted, s, s.Pipeline.Snapshot())
}

type navigateRequest struct {
	Action string `json:"action" validate:"required,oneof=back forward go"`
	Path   string `json:"path" validate:"required_if=Action go,max=2048"`
}

// Navigate moves the session's address history: back, forward, or to a
// typed-in path.  The pipeline decides where the session really lands.
// POST /v1/sessions/:id/navigate
func (h *SessionHandler) Navigate(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req navigateRequest
	if bad := bind(c, &req); bad != nil {
		return c.JSON(http.StatusBadRequest, bad)
	}

	ctx := c.Request().Context()
	var v booking.View
	switch req.Action {
	case "back", "forward":
		move := s.History.Back
		if req.Action == "forward" {
			move = s.History.Forward
		}
		path, ok := move()
		if !ok {
			return c.JSON(http.StatusConflict, echo.Map{"error": "no history entry to go " + req.Action + " to"})
		}
		v, err = s.Adapter.PopState(ctx, path)
	default:
		v, err = s.Adapter.Visit(ctx, req.Path)
	}
	if err != nil {
		return fail(c, h.Log, err)
	}
	return respond(c, http.StatusOK, s, v)
}

// Ticket renders the QR code of a confirmed booking.
// GET /v1/sessions/:id/ticket.png
func (h *SessionHandler) Ticket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	v := s.Pipeline.Snapshot()
	if v.Step != booking.StepConfirmed || v.Record == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no confirmed booking in this session"})
	}
	png, err := utils.TicketQRCode(*v.Record, 256)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// Delete ends a session.
// DELETE /v1/sessions/:id
func (h *SessionHandler) Delete(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if err := h.Sessions.Close(s.ID); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// session looks up the :id session.  A session started by a signed-in
// customer is invisible to anyone else.
func (h *SessionHandler) session(c echo.Context) (*session.Session, error) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		return nil, err
	}
	if s.CustomerID != "" {
		if cust := middleware.CustomerFrom(c); cust == nil || cust.ID != s.CustomerID {
			return nil, session.ErrSessionNotFound
		}
	}
	return s, nil
}
