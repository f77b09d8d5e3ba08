// Package repository is the MySQL-backed catalog the booking funnel reads
// listings from.  Rows are read only; the funnel never writes back.
package repository

import "errors"

// ErrListingNotFound is returned when no listing has the requested id.
// Handlers translate it into an HTTP 404 response and the booking
// pipeline into a not-found notice.
var ErrListingNotFound = errors.New("listing not found")

// ErrCorruptListing is returned when a stored row cannot be turned into a
// listing, such as a negative price.
var ErrCorruptListing = errors.New("corrupt listing row")
