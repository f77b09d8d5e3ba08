package booking

// Step is a page of the purchase flow.  Catalog pages sit outside the
// funnel: arriving on one ends the selection.
type Step string

const (
	StepHome   Step = "home"
	StepMovies Step = "movies"
	StepEvents Step = "events"

	StepListingDetail     Step = "listing_detail"
	StepSectionSelection  Step = "section_selection"
	StepQuantitySelection Step = "quantity_selection"
	StepCheckout          Step = "checkout"
	StepBillingDetails    Step = "billing_details"
	StepPayment           Step = "payment"
	StepConfirmed         Step = "confirmed"
)

// funnel lists the purchase steps in forward order.
var funnel = []Step{
	StepListingDetail,
	StepSectionSelection,
	StepQuantitySelection,
	StepCheckout,
	StepBillingDetails,
	StepPayment,
}

// IsCatalogPage reports whether s is a browsing page outside the funnel.
func (s Step) IsCatalogPage() bool {
	return s == StepHome || s == StepMovies || s == StepEvents
}

// IsTerminal reports whether s ends the purchase.
func (s Step) IsTerminal() bool { return s == StepConfirmed }

// IsTimed reports whether s owns a session window.
func (s Step) IsTimed() bool { return s == StepCheckout || s == StepBillingDetails }

// IsValid reports whether s names a known step.
func (s Step) IsValid() bool {
	if s.IsCatalogPage() || s.IsTerminal() {
		return true
	}
	return s.Index() >= 0
}

// Index is the position of s in the funnel, -1 for pages outside it.
func (s Step) Index() int {
	for i, f := range funnel {
		if f == s {
			return i
		}
	}
	return -1
}

// Steps returns every known step; catalog pages first, then the funnel in
// forward order and finally the terminal step.
func Steps() []Step {
	out := []Step{StepHome, StepMovies, StepEvents}
	out = append(out, funnel...)
	return append(out, StepConfirmed)
}
