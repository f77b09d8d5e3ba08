// Package queue defines the booking.confirmed message and the consumer
// that records confirmed bookings.
package queue

import (
	"fmt"
	"time"

	"github.com/iliyamo/ticket-funnel/internal/model"
)

// BookingConfirmedQueue is the durable queue settled bookings are
// announced on.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a booking's payment settles.  It
// carries enough for downstream consumers to log or notify without asking
// the funnel again.
type BookingConfirmedEvent struct {
	RecordID     string `json:"record_id"`
	SessionID    string `json:"session_id"`
	CustomerID   string `json:"customer_id,omitempty"`
	ListingID    uint64 `json:"listing_id"`
	ListingTitle string `json:"listing_title"`
	Venue        string `json:"venue"`
	StartsAt     string `json:"starts_at"`
	Section      string `json:"section"`
	Quantity     int    `json:"quantity"`
	OrderAmount  int64  `json:"order_amount"`
	BookingFee   int64  `json:"booking_fee"`
	GrandTotal   int64  `json:"grand_total"`
	PaymentRef   string `json:"payment_ref"`
	Email        string `json:"email"`
	ConfirmedAt  string `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the event for a settled record.
func NewBookingConfirmedEvent(rec model.BookingRecord, confirmedAt time.Time) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		RecordID:     rec.ID,
		SessionID:    rec.SessionID,
		CustomerID:   rec.CustomerID,
		ListingID:    rec.Listing.ID,
		ListingTitle: rec.Listing.Title,
		Venue:        rec.Listing.Venue,
		StartsAt:     rec.Listing.StartsAt.UTC().Format(time.RFC3339),
		Section:      rec.Section.Name,
		Quantity:     rec.Quantity,
		OrderAmount:  rec.Quote.OrderAmount,
		BookingFee:   rec.Quote.BookingFee,
		GrandTotal:   rec.Quote.GrandTotal,
		PaymentRef:   rec.PaymentRef,
		Email:        rec.Billing.Email,
		ConfirmedAt:  confirmedAt.UTC().Format(time.RFC3339),
	}
}

// Line is the single human-readable log line for the event.
func (ev BookingConfirmedEvent) Line() string {
	return fmt.Sprintf("[%s] Booking confirmed | record_id=%s | session_id=%s | listing_id=%d | title=%q | section=%s | quantity=%d | total=%d (order %d + fee %d) | ref=%s\n",
		ev.ConfirmedAt, ev.RecordID, ev.SessionID, ev.ListingID, ev.ListingTitle, ev.Section,
		ev.Quantity, ev.GrandTotal, ev.OrderAmount, ev.BookingFee, ev.PaymentRef)
}
