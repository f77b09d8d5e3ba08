package model

import (
	"time"

	"github.com/iliyamo/ticket-funnel/internal/pricing"
)

// Billing holds the details collected on the billing step.  The validate
// tags are checked before the flow may move on to payment.
type Billing struct {
	Name          string `json:"name" validate:"required,max=120"`
	Phone         string `json:"phone" validate:"required,min=7,max=20"`
	Nationality   string `json:"nationality" validate:"required,oneof=domestic international"`
	Region        string `json:"region" validate:"required,max=80"`
	Email         string `json:"email" validate:"required,email"`
	TermsAccepted bool   `json:"terms_accepted"`
}

// PaymentStatus is the outcome reported by the payment collaborator.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentSettled  PaymentStatus = "SETTLED"
	PaymentDeclined PaymentStatus = "DECLINED"
	PaymentError    PaymentStatus = "ERROR"
)

// BookingRecord is the finalized purchase handed to the payment
// collaborator.  The booking flow keeps no ownership after hand-off.
//
// Fields:
//  ID         – unique record identifier.
//  SessionID  – browsing session that produced the record.
//  CustomerID – signed-in customer, empty for guest checkout.
//  Listing    – listing being booked.
//  Section    – chosen ticket tier.
//  Quantity   – number of tickets.
//  Billing    – billing details as entered.
//  Quote      – price breakdown charged.
//  Status     – payment outcome, PENDING until settled.
//  PaymentRef – reference returned by the payment collaborator.
//  CreatedAt  – when the record was produced.
type BookingRecord struct {
	ID         string             `json:"id"`
	SessionID  string             `json:"session_id"`
	CustomerID string             `json:"customer_id,omitempty"`
	Listing    Listing            `json:"listing"`
	Section    Section            `json:"section"`
	Quantity   int                `json:"quantity"`
	Billing    Billing            `json:"billing"`
	Quote      pricing.PriceQuote `json:"quote"`
	Status     PaymentStatus      `json:"status"`
	PaymentRef string             `json:"payment_ref,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Settlement is what the payment collaborator answers for a charge.  A
// transport or gateway failure is reported as an error instead.
type Settlement struct {
	Status    PaymentStatus `json:"status"`
	Reference string        `json:"reference,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}
