package booking

import (
	"github.com/iliyamo/ticket-funnel/internal/model"
	"github.com/iliyamo/ticket-funnel/internal/pricing"
)

// NoticeKind classifies a message the page should show after a dispatch.
type NoticeKind string

const (
	NoticeNone            NoticeKind = ""
	NoticeNotFound        NoticeKind = "not_found"
	NoticeBlocked         NoticeKind = "blocked"
	NoticeTermsRequired   NoticeKind = "terms_required"
	NoticeBillingInvalid  NoticeKind = "billing_invalid"
	NoticeSessionExpired  NoticeKind = "session_expired"
	NoticePaymentDeclined NoticeKind = "payment_declined"
	NoticePaymentError    NoticeKind = "payment_error"
	NoticeConfirmed       NoticeKind = "confirmed"
)

// Notice is the recoverable outcome of the last dispatch.
type Notice struct {
	Kind    NoticeKind `json:"kind,omitempty"`
	Message string     `json:"message,omitempty"`
}

// View is a consistent snapshot of a session for rendering.
type View struct {
	SessionID       string               `json:"session_id"`
	Step            Step                 `json:"step"`
	Previous        Step                 `json:"previous,omitempty"`
	Listing         *model.Listing       `json:"listing,omitempty"`
	Section         *model.Section       `json:"section,omitempty"`
	Quantity        int                  `json:"quantity,omitempty"`
	Quote           *pricing.PriceQuote  `json:"quote,omitempty"`
	WindowRemaining *int                 `json:"window_remaining,omitempty"`
	SessionExpired  bool                 `json:"session_expired,omitempty"`
	Billing         *model.Billing       `json:"billing,omitempty"`
	Record          *model.BookingRecord `json:"record,omitempty"`
	PaymentPending  bool                 `json:"payment_pending,omitempty"`
	Notice          Notice               `json:"notice"`
}

// Transition is delivered to observers after every step change.
type Transition struct {
	From  Step
	To    Step
	Event EventType
	View  View
}

// PaymentResult is the settled outcome of SubmitPayment.
type PaymentResult struct {
	Status model.PaymentStatus `json:"status"`
	Record model.BookingRecord `json:"record"`
	Reason string              `json:"reason,omitempty"`
	View   View                `json:"view"`
}
