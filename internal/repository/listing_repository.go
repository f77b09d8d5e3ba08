package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/ticket-funnel/internal/model"
)

// ListingRepo reads listings and their sections.
//
// Tables:
//
//	listings(id, title, category, venue, image_url, starts_at, base_price NULL)
//	listing_sections(listing_id, name, price, selectable, position)
type ListingRepo struct {
	db *sql.DB
}

func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

// GetListing loads one listing with its sections in display order.  It
// satisfies booking.Catalog.
func (r *ListingRepo) GetListing(ctx context.Context, id uint64) (*model.Listing, error) {
	const q = `SELECT id, title, category, venue, image_url, starts_at, base_price
               FROM listings
               WHERE id = ?`
	var (
		l         model.Listing
		imageURL  sql.NullString
		basePrice sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&l.ID, &l.Title, &l.Category, &l.Venue, &imageURL, &l.StartsAt, &basePrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("select listing %d: %w", id, err)
	}
	l.ImageURL = imageURL.String
	if basePrice.Valid {
		if basePrice.Int64 < 0 {
			return nil, fmt.Errorf("%w: listing %d has base price %d", ErrCorruptListing, id, basePrice.Int64)
		}
		p := basePrice.Int64
		l.BasePrice = &p
	}

	sections, err := r.sections(ctx, id)
	if err != nil {
		return nil, err
	}
	l.Sections = sections
	return &l, nil
}

func (r *ListingRepo) sections(ctx context.Context, listingID uint64) ([]model.Section, error) {
	const q = `SELECT name, price, selectable
               FROM listing_sections
               WHERE listing_id = ?
               ORDER BY position ASC, name ASC`
	rows, err := r.db.QueryContext(ctx, q, listingID)
	if err != nil {
		return nil, fmt.Errorf("select sections of listing %d: %w", listingID, err)
	}
	defer rows.Close()

	result := []model.Section{}
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.Name, &s.Price, &s.Selectable); err != nil {
			return nil, err
		}
		if s.Price < 0 {
			return nil, fmt.Errorf("%w: section %q of listing %d has price %d", ErrCorruptListing, s.Name, listingID, s.Price)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
