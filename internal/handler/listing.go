package handler

import (
	"net/http"
	"strconv"

	"github.com/gosimple/slug"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/booking"
	"github.com/iliyamo/ticket-funnel/internal/model"
)

// ListingHandler serves catalog reads for listing pages.
type ListingHandler struct {
	Catalog booking.Catalog
	Log     *zap.Logger
}

func NewListingHandler(catalog booking.Catalog, log *zap.Logger) *ListingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ListingHandler{Catalog: catalog, Log: log}
}

type listingResponse struct {
	*model.Listing
	Slug          string `json:"slug"`
	StartingPrice *int64 `json:"starting_price,omitempty"`
}

// Get returns one listing with its sections and starting price.
// GET /v1/listings/:id
func (h *ListingHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	l, err := h.Catalog.GetListing(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := listingResponse{Listing: l, Slug: slug.Make(l.Title)}
	if p, ok := l.StartingPrice(); ok {
		out.StartingPrice = &p
	}
	return c.JSON(http.StatusOK, out)
}
