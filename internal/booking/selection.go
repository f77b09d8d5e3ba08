package booking

import (
	"fmt"

	"github.com/iliyamo/ticket-funnel/internal/model"
	"github.com/iliyamo/ticket-funnel/internal/pricing"
)

// Selection is the in-progress cart of one browsing session: listing, then
// section, then quantity, each defined only once the previous one is.  It
// also carries the trail of pages the user came through so that Back
// returns to where they actually were.
//
// Selection is not safe for concurrent use; the owning Pipeline serializes
// access.
type Selection struct {
	feeRate  float64
	listing  *model.Listing
	section  *model.Section
	quantity int
	trail    []Step
}

// NewSelection returns an empty selection quoting at feeRate.
func NewSelection(feeRate float64) *Selection {
	return &Selection{feeRate: feeRate}
}

// Listing returns the chosen listing or nil.
func (s *Selection) Listing() *model.Listing { return s.listing }

// Section returns the chosen section.
func (s *Selection) Section() (model.Section, bool) {
	if s.section == nil {
		return model.Section{}, false
	}
	return *s.section, true
}

// Quantity returns the ticket count, 0 while unset.
func (s *Selection) Quantity() int { return s.quantity }

// SetListing chooses a listing.  Choosing a different listing drops the
// section and quantity picked for the previous one.
func (s *Selection) SetListing(l *model.Listing) error {
	if l == nil {
		return fmt.Errorf("%w: nil listing", ErrDependencyViolation)
	}
	if s.listing == nil || s.listing.ID != l.ID {
		s.section = nil
		s.quantity = 0
	}
	s.listing = l
	return nil
}

// SetSection chooses a section of the current listing by name.
func (s *Selection) SetSection(name string) error {
	if s.listing == nil {
		return fmt.Errorf("%w: section before listing", ErrDependencyViolation)
	}
	sec, ok := s.listing.Section(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
	if !sec.Selectable {
		return fmt.Errorf("%w: %q", ErrSectionNotSelectable, sec.Name)
	}
	if s.section == nil || s.section.Name != sec.Name {
		s.quantity = 0
	}
	s.section = &sec
	return nil
}

// SetQuantity sets the ticket count.
func (s *Selection) SetQuantity(n int) error {
	if s.section == nil {
		return fmt.Errorf("%w: quantity before section", ErrDependencyViolation)
	}
	if n < pricing.MinQuantity || n > pricing.MaxQuantity {
		return fmt.Errorf("%w: %d", ErrOutOfRange, n)
	}
	s.quantity = n
	return nil
}

// Complete reports whether listing, section and quantity are all set.
func (s *Selection) Complete() bool {
	return s.listing != nil && s.section != nil && s.quantity > 0
}

// Quote prices the current selection.
func (s *Selection) Quote() (pricing.PriceQuote, error) {
	if !s.Complete() {
		return pricing.PriceQuote{}, ErrIncompleteSelection
	}
	return pricing.Quote(s.section.Price, s.quantity, s.feeRate)
}

// Clear empties the selection and forgets the trail.
func (s *Selection) Clear() {
	s.listing = nil
	s.section = nil
	s.quantity = 0
	s.trail = nil
}

// Previous returns the step a Back action returns to.
func (s *Selection) Previous() (Step, bool) {
	if len(s.trail) == 0 {
		return "", false
	}
	return s.trail[len(s.trail)-1], true
}

func (s *Selection) push(step Step) { s.trail = append(s.trail, step) }

func (s *Selection) pop() (Step, bool) {
	prev, ok := s.Previous()
	if ok {
		s.trail = s.trail[:len(s.trail)-1]
	}
	return prev, ok
}

// origin is the catalog page the funnel was entered from.
func (s *Selection) origin() (Step, bool) {
	if len(s.trail) > 0 && s.trail[0].IsCatalogPage() {
		return s.trail[0], true
	}
	return "", false
}
