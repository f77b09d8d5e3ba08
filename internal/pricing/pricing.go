// Package pricing converts a section price and ticket quantity into the
// amounts shown at checkout.  All currency values are integer amounts in
// the smallest unit of the listing currency; only the fee multiplication
// passes through floating point and it is rounded back immediately.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultFeeRate is the booking fee charged on top of the order amount.
	DefaultFeeRate = 0.085
	// MinQuantity and MaxQuantity bound the number of tickets per order.
	MinQuantity = 1
	MaxQuantity = 10
)

// maxExactFee is the largest fee product float64 holds to the unit (2^53).
const maxExactFee = 1 << 53

// ErrInvalidQuoteInput is returned when Quote receives values the booking
// flow should never have let through.
var ErrInvalidQuoteInput = errors.New("invalid quote input")

// PriceQuote is the derived price breakdown for one selection.
type PriceQuote struct {
	UnitPrice   int64 `json:"unit_price"`
	Quantity    int   `json:"quantity"`
	OrderAmount int64 `json:"order_amount"`
	BookingFee  int64 `json:"booking_fee"`
	GrandTotal  int64 `json:"grand_total"`
}

// Quote computes the order amount, booking fee and grand total.
//
// The fee is rounded half-up: a fractional part of exactly .5 or more goes
// to the next whole unit (54.4 -> 54, 679.83 -> 680, 12.5 -> 13).
func Quote(unitPrice int64, quantity int, feeRate float64) (PriceQuote, error) {
	if unitPrice < 0 {
		return PriceQuote{}, fmt.Errorf("%w: negative unit price %d", ErrInvalidQuoteInput, unitPrice)
	}
	if quantity < MinQuantity || quantity > MaxQuantity {
		return PriceQuote{}, fmt.Errorf("%w: quantity %d outside [%d,%d]", ErrInvalidQuoteInput, quantity, MinQuantity, MaxQuantity)
	}
	if math.IsNaN(feeRate) || feeRate < 0 || feeRate > 1 {
		return PriceQuote{}, fmt.Errorf("%w: fee rate %v outside [0,1]", ErrInvalidQuoteInput, feeRate)
	}
	if unitPrice > math.MaxInt64/int64(quantity) {
		return PriceQuote{}, fmt.Errorf("%w: order amount %d x %d overflows", ErrInvalidQuoteInput, unitPrice, quantity)
	}
	order := unitPrice * int64(quantity)
	raw := float64(order) * feeRate
	if raw >= maxExactFee {
		return PriceQuote{}, fmt.Errorf("%w: booking fee on %d out of range", ErrInvalidQuoteInput, order)
	}
	fee := roundHalfUp(raw)
	if order > math.MaxInt64-fee {
		return PriceQuote{}, fmt.Errorf("%w: grand total on %d overflows", ErrInvalidQuoteInput, order)
	}
	return PriceQuote{
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		OrderAmount: order,
		BookingFee:  fee,
		GrandTotal:  order + fee,
	}, nil
}

// roundHalfUp rounds a non-negative amount.  The value is first snapped to
// six decimals so a product such as 300*0.085 that lands a hair under .5
// in binary still rounds the way it reads in decimal.
func roundHalfUp(v float64) int64 {
	snapped := math.Round(v*1e6) / 1e6
	return int64(math.Floor(snapped + 0.5))
}
