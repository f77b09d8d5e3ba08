package model

import (
	"strings"
	"time"
)

// Listing is a bookable movie screening or live event as supplied by the
// catalog.  The booking flow references a Listing but never mutates it.
//
// Fields:
//  ID        – catalog identifier.
//  Title     – movie or event title.
//  Category  – genre or event category (e.g. "Comedy", "Concert").
//  Venue     – venue name and location.
//  ImageURL  – display image reference.
//  StartsAt  – scheduled date and time.
//  BasePrice – fixed price, or nil when the price starts from a section.
//  Sections  – ticket tiers in display order.
type Listing struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Venue     string    `json:"venue"`
	ImageURL  string    `json:"image_url,omitempty"`
	StartsAt  time.Time `json:"starts_at"`
	BasePrice *int64    `json:"base_price,omitempty"`
	Sections  []Section `json:"sections"`
}

// Section is one pricing tier of a listing.  Display-only sections such as
// a stage area are listed with Selectable=false and can never be chosen.
type Section struct {
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Selectable bool   `json:"selectable"`
}

// Section returns the tier with the given name, compared case-insensitively.
func (l *Listing) Section(name string) (Section, bool) {
	for _, s := range l.Sections {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, true
		}
	}
	return Section{}, false
}

// StartingPrice is the base price when set, otherwise the cheapest
// selectable section.  ok is false when neither exists.
func (l *Listing) StartingPrice() (price int64, ok bool) {
	if l.BasePrice != nil {
		return *l.BasePrice, true
	}
	for _, s := range l.Sections {
		if !s.Selectable {
			continue
		}
		if !ok || s.Price < price {
			price, ok = s.Price, true
		}
	}
	return price, ok
}
