package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/ticket-funnel/internal/model"
)

var ErrNotTicketed = errors.New("booking has no settled payment")

// TicketCode is the text encoded in a booking's QR code.  Gate scanners
// look the booking up by record id and check the payment reference.
func TicketCode(rec model.BookingRecord) (string, error) {
	if rec.Status != model.PaymentSettled || rec.PaymentRef == "" {
		return "", ErrNotTicketed
	}
	return fmt.Sprintf("TKT:%s:%s:%d:%s:%d", rec.ID, rec.PaymentRef, rec.Listing.ID, rec.Section.Name, rec.Quantity), nil
}

// TicketQRCode renders the booking's ticket code as a size x size PNG.
func TicketQRCode(rec model.BookingRecord, size int) ([]byte, error) {
	code, err := TicketCode(rec)
	if err != nil {
		return nil, err
	}
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
