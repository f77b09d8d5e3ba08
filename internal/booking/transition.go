package booking

import "github.com/iliyamo/ticket-funnel/internal/model"

// EventType names something the user (or the session itself) did.
type EventType string

const (
	EventOpenListing   EventType = "open_listing"
	EventBook          EventType = "book"
	EventAdvance       EventType = "advance"
	EventRetreat       EventType = "retreat"
	EventAbandon       EventType = "abandon"
	EventSelectSection EventType = "select_section"
	EventIncrement     EventType = "increment"
	EventDecrement     EventType = "decrement"
	EventSetQuantity   EventType = "set_quantity"
	EventUpdateBilling EventType = "update_billing"
	EventAcceptTerms   EventType = "accept_terms"

	// Raised by the session itself, never accepted from Dispatch.
	EventEnter           EventType = "enter"
	EventExpire          EventType = "expire"
	EventPaymentSettled  EventType = "payment_settled"
	EventPaymentDeclined EventType = "payment_declined"
	EventPaymentFailed   EventType = "payment_failed"
)

// Event is one dispatched action with its payload.  Only the fields the
// event type needs are read.
type Event struct {
	Type      EventType      `json:"type"`
	ListingID uint64         `json:"listing_id,omitempty"`
	Section   string         `json:"section,omitempty"`
	Quantity  int            `json:"quantity,omitempty"`
	Billing   *model.Billing `json:"billing,omitempty"`
	Accept    bool           `json:"accept,omitempty"`
}

// External reports whether the event may be dispatched by a caller.
func (t EventType) External() bool {
	switch t {
	case EventOpenListing, EventBook, EventAdvance, EventRetreat, EventAbandon,
		EventSelectSection, EventIncrement, EventDecrement, EventSetQuantity,
		EventUpdateBilling, EventAcceptTerms:
		return true
	}
	return false
}

type transitionKey struct {
	from  Step
	event EventType
}

// transitions is the static part of the state machine.  Retreat, abandon
// and expire resolve their target from the session trail instead.
var transitions = map[transitionKey]Step{
	{StepHome, EventOpenListing}:   StepListingDetail,
	{StepMovies, EventOpenListing}: StepListingDetail,
	{StepEvents, EventOpenListing}: StepListingDetail,
	{StepHome, EventBook}:          StepSectionSelection,
	{StepMovies, EventBook}:        StepSectionSelection,
	{StepEvents, EventBook}:        StepSectionSelection,

	{StepListingDetail, EventBook}:    StepSectionSelection,
	{StepListingDetail, EventAdvance}: StepSectionSelection,

	{StepSectionSelection, EventSelectSection}: StepQuantitySelection,
	{StepSectionSelection, EventAdvance}:       StepQuantitySelection,

	{StepQuantitySelection, EventIncrement}:   StepQuantitySelection,
	{StepQuantitySelection, EventDecrement}:   StepQuantitySelection,
	{StepQuantitySelection, EventSetQuantity}: StepQuantitySelection,
	{StepQuantitySelection, EventAdvance}:     StepCheckout,

	{StepCheckout, EventAdvance}: StepBillingDetails,

	{StepBillingDetails, EventUpdateBilling}: StepBillingDetails,
	{StepBillingDetails, EventAcceptTerms}:   StepBillingDetails,
	{StepBillingDetails, EventAdvance}:       StepPayment,

	{StepPayment, EventPaymentSettled}:  StepConfirmed,
	{StepPayment, EventPaymentDeclined}: StepBillingDetails,
	{StepPayment, EventPaymentFailed}:   StepBillingDetails,
}

// Target returns the step an event leads to from step under the static
// table.
func Target(from Step, ev EventType) (Step, bool) {
	to, ok := transitions[transitionKey{from: from, event: ev}]
	return to, ok
}
