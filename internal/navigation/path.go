// Package navigation keeps a session's visible address in step with the
// booking pipeline.  Addresses follow transitions; an address typed in or
// reached with back/forward is fed to the pipeline as a guarded arrival and
// never sets state directly.
package navigation

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/iliyamo/ticket-funnel/internal/booking"
)

// Location is what an address identifies: a step and, for the listing
// pages, the listing it is about.  Slug is decoration for readable
// addresses; only the id is significant.
type Location struct {
	Step      booking.Step `json:"step"`
	ListingID uint64       `json:"listing_id,omitempty"`
	Slug      string       `json:"slug,omitempty"`
}

var fixedPaths = map[booking.Step]string{
	booking.StepHome:           "/",
	booking.StepMovies:         "/movies",
	booking.StepEvents:         "/events",
	booking.StepCheckout:       "/checkout",
	booking.StepBillingDetails: "/checkout/billing",
	booking.StepPayment:        "/checkout/payment",
	booking.StepConfirmed:      "/checkout/confirmed",
}

var fixedSteps = func() map[string]booking.Step {
	m := make(map[string]booking.Step, len(fixedPaths))
	for step, path := range fixedPaths {
		m[path] = step
	}
	return m
}()

// PathFor returns the canonical path of loc.  Listing pages without a
// listing have no address of their own and map to home.
func PathFor(loc Location) string {
	if p, ok := fixedPaths[loc.Step]; ok {
		return p
	}
	if loc.ListingID == 0 {
		return fixedPaths[booking.StepHome]
	}
	base := "/listings/" + strconv.FormatUint(loc.ListingID, 10)
	if loc.Slug != "" {
		base += "-" + loc.Slug
	}
	switch loc.Step {
	case booking.StepListingDetail:
		return base
	case booking.StepSectionSelection:
		return base + "/sections"
	case booking.StepQuantitySelection:
		return base + "/quantity"
	}
	return fixedPaths[booking.StepHome]
}

// Parse resolves an address.  Query strings, fragments and a trailing slash
// are ignored.
func Parse(raw string) (Location, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if step, ok := fixedSteps[path]; ok {
		return Location{Step: step}, true
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "listings" {
		return Location{}, false
	}
	idPart, slugPart, _ := strings.Cut(parts[1], "-")
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || id == 0 {
		return Location{}, false
	}
	loc := Location{Step: booking.StepListingDetail, ListingID: id, Slug: slugPart}
	if len(parts) == 3 {
		switch parts[2] {
		case "sections":
			loc.Step = booking.StepSectionSelection
		case "quantity":
			loc.Step = booking.StepQuantitySelection
		default:
			return Location{}, false
		}
	}
	return loc, true
}

// LocationOf is the location a view is displayed at.
func LocationOf(v booking.View) Location {
	loc := Location{Step: v.Step}
	if v.Listing != nil {
		loc.ListingID = v.Listing.ID
		loc.Slug = slug.Make(v.Listing.Title)
	}
	return loc
}
