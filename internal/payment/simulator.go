// Package payment provides the payment collaborator the booking flow hands
// finished records to.  Only a simulator ships here; a real provider
// integration implements the same booking.PaymentGateway contract.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/model"
)

var (
	ErrInvalidAmount = errors.New("invalid charge amount")
	ErrUnavailable   = errors.New("payment provider unavailable")
)

// Simulator settles charges after a fixed delay.  Grand totals above
// DeclineAbove are declined, so the decline path can be exercised end to
// end.
type Simulator struct {
	Delay        time.Duration
	DeclineAbove int64 // 0 disables declines

	log *zap.Logger
}

// NewSimulator returns a simulator with the given delay and decline
// threshold.
func NewSimulator(delay time.Duration, declineAbove int64, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{Delay: delay, DeclineAbove: declineAbove, log: log}
}

// Charge implements booking.PaymentGateway.
func (s *Simulator) Charge(ctx context.Context, rec model.BookingRecord) (model.Settlement, error) {
	if rec.Quote.GrandTotal < 0 || rec.Quantity <= 0 {
		return model.Settlement{}, fmt.Errorf("%w: total=%d quantity=%d", ErrInvalidAmount, rec.Quote.GrandTotal, rec.Quantity)
	}

	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return model.Settlement{}, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		}
	}

	ref := "SIM-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	if s.DeclineAbove > 0 && rec.Quote.GrandTotal > s.DeclineAbove {
		s.log.Info("simulated decline",
			zap.String("record_id", rec.ID),
			zap.Int64("grand_total", rec.Quote.GrandTotal),
			zap.Int64("limit", s.DeclineAbove))
		return model.Settlement{Status: model.PaymentDeclined, Reference: ref, Reason: "amount exceeds card limit"}, nil
	}
	s.log.Info("simulated settlement", zap.String("record_id", rec.ID), zap.String("reference", ref))
	return model.Settlement{Status: model.PaymentSettled, Reference: ref}, nil
}
