package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-funnel/internal/countdown"
	"github.com/iliyamo/ticket-funnel/internal/model"
)

var errNoListing = errors.New("listing not found")

type fakeCatalog struct {
	listings map[uint64]*model.Listing
	err      error
}

func (c fakeCatalog) GetListing(_ context.Context, id uint64) (*model.Listing, error) {
	if c.err != nil {
		return nil, c.err
	}
	l, ok := c.listings[id]
	if !ok {
		return nil, errNoListing
	}
	return l, nil
}

type fakeGateway struct {
	mu         sync.Mutex
	settlement model.Settlement
	err        error
	block      chan struct{}
	charged    []model.BookingRecord
	ctxErrs    []error
}

func (g *fakeGateway) Charge(ctx context.Context, rec model.BookingRecord) (model.Settlement, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charged = append(g.charged, rec)
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	return g.settlement, g.err
}

func (g *fakeGateway) set(s model.Settlement, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settlement, g.err = s, err
}

type capturePublisher struct {
	mu   sync.Mutex
	recs []model.BookingRecord
}

func (c *capturePublisher) PublishBookingConfirmed(_ context.Context, rec model.BookingRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return nil
}

type harness struct {
	p      *Pipeline
	gw     *fakeGateway
	timers []*countdown.Timer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{gw: &fakeGateway{settlement: model.Settlement{Status: model.PaymentSettled, Reference: "PAY-1"}}}
	cat := fakeCatalog{listings: map[uint64]*model.Listing{7: concert(), 3: screening()}}
	manual := WithTimerFactory(func(seconds int) *countdown.Timer {
		tm := countdown.New(seconds)
		h.timers = append(h.timers, tm)
		return tm
	})
	h.p = New("sess-1", cat, h.gw, append([]Option{manual}, opts...)...)
	t.Cleanup(h.p.Close)
	return h
}

func (h *harness) window() *countdown.Timer { return h.timers[len(h.timers)-1] }

// runOut ticks tm down to zero.  A cancelled timer ignores the ticks.
func runOut(tm *countdown.Timer) {
	for i := tm.Remaining(); i > 0; i-- {
		tm.Tick()
	}
}

func tick(tm *countdown.Timer, n int) {
	for i := 0; i < n; i++ {
		tm.Tick()
	}
}

func validBilling() model.Billing {
	return model.Billing{
		Name:        "Ana Lopez",
		Phone:       "5551234567",
		Nationality: "domestic",
		Region:      "Lisbon",
		Email:       "ana@example.com",
	}
}

// toCheckout walks from origin to Checkout with two GOLD tickets.
func toCheckout(t *testing.T, h *harness, origin Step) View {
	t.Helper()
	ctx := context.Background()
	_, err := h.p.Enter(ctx, origin, 0)
	require.NoError(t, err)
	_, err = h.p.OpenListing(ctx, 7)
	require.NoError(t, err)
	_, err = h.p.Advance(ctx)
	require.NoError(t, err)
	v, err := h.p.SelectSection(ctx, "GOLD")
	require.NoError(t, err)
	require.Equal(t, StepQuantitySelection, v.Step)
	_, err = h.p.Increment(ctx)
	require.NoError(t, err)
	v, err = h.p.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, StepCheckout, v.Step)
	return v
}

func toPayment(t *testing.T, h *harness, origin Step) View {
	t.Helper()
	ctx := context.Background()
	toCheckout(t, h, origin)
	_, err := h.p.Advance(ctx)
	require.NoError(t, err)
	_, err = h.p.UpdateBilling(ctx, validBilling())
	require.NoError(t, err)
	_, err = h.p.AcceptTerms(ctx, true)
	require.NoError(t, err)
	v, err := h.p.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, StepPayment, v.Step)
	return v
}

func TestPipeline_StartsHome(t *testing.T) {
	h := newHarness(t)
	v := h.p.Snapshot()
	assert.Equal(t, "sess-1", v.SessionID)
	assert.Equal(t, StepHome, v.Step)
	assert.Nil(t, v.Listing)
	assert.Nil(t, v.WindowRemaining)
}

func TestPipeline_DeclinedThenSettled(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	h := newHarness(t, WithPublisher(pub))

	v := toCheckout(t, h, StepEvents)
	require.NotNil(t, v.Quote)
	assert.Equal(t, int64(3598), v.Quote.OrderAmount)
	assert.Equal(t, int64(306), v.Quote.BookingFee)
	assert.Equal(t, int64(3904), v.Quote.GrandTotal)
	require.NotNil(t, v.WindowRemaining)
	assert.Equal(t, CheckoutWindowSeconds, *v.WindowRemaining)

	v, err := h.p.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepBillingDetails, v.Step)
	assert.Equal(t, BillingWindowSeconds, *v.WindowRemaining)

	_, err = h.p.UpdateBilling(ctx, validBilling())
	require.NoError(t, err)
	v, err = h.p.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepBillingDetails, v.Step)
	assert.Equal(t, NoticeTermsRequired, v.Notice.Kind)

	_, err = h.p.AcceptTerms(ctx, true)
	require.NoError(t, err)
	v, err = h.p.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, StepPayment, v.Step)
	require.NotNil(t, v.Record)
	assert.Equal(t, model.PaymentPending, v.Record.Status)
	assert.Equal(t, int64(3904), v.Record.Quote.GrandTotal)
	assert.Equal(t, "GOLD", v.Record.Section.Name)
	assert.Nil(t, v.WindowRemaining)

	h.gw.set(model.Settlement{Status: model.PaymentDeclined, Reason: "insufficient funds"}, nil)
	ch, err := h.p.SubmitPayment(ctx)
	require.NoError(t, err)
	res := <-ch
	assert.Equal(t, model.PaymentDeclined, res.Status)
	assert.Equal(t, "insufficient funds", res.Reason)
	assert.Equal(t, StepBillingDetails, res.View.Step)
	assert.Equal(t, 2, res.View.Quantity)
	require.NotNil(t, res.View.Quote)
	assert.Equal(t, int64(3904), res.View.Quote.GrandTotal)
	assert.Equal(t, NoticePaymentDeclined, res.View.Notice.Kind)
	require.NotNil(t, res.View.Billing)
	assert.Equal(t, "Ana Lopez", res.View.Billing.Name)
	assert.True(t, res.View.Billing.TermsAccepted)
	assert.Equal(t, StepCheckout, res.View.Previous)
	assert.Empty(t, pub.recs)

	h.gw.set(model.Settlement{Status: model.PaymentSettled, Reference: "PAY-2"}, nil)
	_, err = h.p.Advance(ctx)
	require.NoError(t, err)
	ch, err = h.p.SubmitPayment(ctx)
	require.NoError(t, err)
	res = <-ch
	assert.Equal(t, model.PaymentSettled, res.Status)
	assert.Equal(t, "PAY-2", res.Record.PaymentRef)
	assert.Equal(t, StepConfirmed, res.View.Step)
	assert.Equal(t, NoticeConfirmed, res.View.Notice.Kind)
	assert.Nil(t, res.View.Listing)
	require.NotNil(t, res.View.Record)
	assert.Equal(t, model.PaymentSettled, res.View.Record.Status)

	require.Len(t, pub.recs, 1)
	assert.Equal(t, res.Record.ID, pub.recs[0].ID)
	assert.Len(t, h.gw.charged, 2)
	assert.NotEqual(t, h.gw.charged[0].ID, h.gw.charged[1].ID)

	v, err = h.p.Retreat(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepHome, v.Step)
	assert.Nil(t, v.Record)
}

func TestPipeline_PaymentError(t *testing.T) {
	h := newHarness(t)
	toPayment(t, h, StepMovies)

	h.gw.set(model.Settlement{}, errors.New("gateway unreachable"))
	ch, err := h.p.SubmitPayment(context.Background())
	require.NoError(t, err)
	res := <-ch
	assert.Equal(t, model.PaymentError, res.Status)
	assert.Equal(t, StepBillingDetails, res.View.Step)
	assert.Equal(t, NoticePaymentError, res.View.Notice.Kind)
	assert.Equal(t, 2, res.View.Quantity)
}

func TestPipeline_PaymentSurvivesCallerCancel(t *testing.T) {
	h := newHarness(t)
	toPayment(t, h, StepHome)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch, err := h.p.SubmitPayment(ctx)
	require.NoError(t, err)
	res := <-ch
	assert.Equal(t, model.PaymentSettled, res.Status)
	require.Len(t, h.gw.ctxErrs, 1)
	assert.NoError(t, h.gw.ctxErrs[0])
}

func TestPipeline_PaymentPendingBlocksEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	toPayment(t, h, StepHome)

	h.gw.block = make(chan struct{})
	ch, err := h.p.SubmitPayment(ctx)
	require.NoError(t, err)

	_, err = h.p.SubmitPayment(ctx)
	assert.ErrorIs(t, err, ErrPaymentPending)
	_, err = h.p.Retreat(ctx)
	assert.ErrorIs(t, err, ErrPaymentPending)
	_, err = h.p.Abandon(ctx)
	assert.ErrorIs(t, err, ErrPaymentPending)
	assert.True(t, h.p.Snapshot().PaymentPending)

	close(h.gw.block)
	res := <-ch
	assert.Equal(t, StepConfirmed, res.View.Step)
	assert.False(t, res.View.PaymentPending)
}

func TestPipeline_SubmitPaymentOutsidePayment(t *testing.T) {
	h := newHarness(t)
	toCheckout(t, h, StepHome)
	_, err := h.p.SubmitPayment(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPipeline_BackNavigation(t *testing.T) {
	ctx := context.Background()

	t.Run("listing opened from movies", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.p.Enter(ctx, StepMovies, 0)
		require.NoError(t, err)
		v, err := h.p.OpenListing(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, StepListingDetail, v.Step)
		assert.Equal(t, StepMovies, v.Previous)

		v, err = h.p.Retreat(ctx)
		require.NoError(t, err)
		assert.Equal(t, StepMovies, v.Step)
		assert.Nil(t, v.Listing)
	})

	t.Run("booked straight from events", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.p.Enter(ctx, StepEvents, 0)
		require.NoError(t, err)
		v, err := h.p.Book(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, StepSectionSelection, v.Step)

		v, err = h.p.Retreat(ctx)
		require.NoError(t, err)
		assert.Equal(t, StepEvents, v.Step)
	})

	t.Run("booked straight from movies", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.p.Enter(ctx, StepMovies, 0)
		require.NoError(t, err)
		v, err := h.p.Book(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, StepSectionSelection, v.Step)
		assert.Equal(t, StepMovies, v.Previous)

		v, err = h.p.Retreat(ctx)
		require.NoError(t, err)
		assert.Equal(t, StepMovies, v.Step)
		assert.Nil(t, v.Listing)
	})

	t.Run("checkout back to quantity keeps the cart", func(t *testing.T) {
		h := newHarness(t)
		toCheckout(t, h, StepEvents)
		checkout := h.window()

		v, err := h.p.Retreat(ctx)
		require.NoError(t, err)
		assert.Equal(t, StepQuantitySelection, v.Step)
		assert.Equal(t, 2, v.Quantity)
		require.NotNil(t, v.Section)
		assert.Equal(t, "GOLD", v.Section.Name)
		assert.Nil(t, v.WindowRemaining)
		assert.False(t, checkout.Expired())

		// the cancelled window never fires
		runOut(checkout)
		assert.Equal(t, StepQuantitySelection, h.p.Snapshot().Step)

		for _, want := range []Step{StepSectionSelection, StepListingDetail, StepEvents} {
			v, err = h.p.Retreat(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, v.Step)
		}
		assert.Nil(t, v.Listing)
	})

	t.Run("empty trail goes home", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.p.Enter(ctx, StepEvents, 0)
		require.NoError(t, err)
		v, err := h.p.Retreat(ctx)
		require.NoError(t, err)
		assert.Equal(t, StepHome, v.Step)
	})
}

func TestPipeline_Abandon(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	toCheckout(t, h, StepMovies)
	_, err := h.p.Advance(ctx)
	require.NoError(t, err)
	billing := h.window()

	v, err := h.p.Abandon(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepMovies, v.Step)
	assert.Nil(t, v.Listing)
	assert.Zero(t, v.Quantity)
	assert.Nil(t, v.WindowRemaining)
	assert.False(t, billing.Expired())
}

func TestPipeline_ExpiryReturnsToOrigin(t *testing.T) {
	for _, step := range []Step{StepCheckout, StepBillingDetails} {
		t.Run(string(step), func(t *testing.T) {
			h := newHarness(t)
			toCheckout(t, h, StepMovies)
			if step == StepBillingDetails {
				_, err := h.p.Advance(context.Background())
				require.NoError(t, err)
			}
			runOut(h.window())

			v := h.p.Snapshot()
			assert.Equal(t, StepMovies, v.Step)
			assert.Equal(t, NoticeSessionExpired, v.Notice.Kind)
			assert.Nil(t, v.Listing)
			assert.Nil(t, v.Quote)
			assert.Nil(t, v.WindowRemaining)
		})
	}
}

func TestPipeline_ExpiryHold(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithExpiryPolicy(ExpiryHold))
	toCheckout(t, h, StepEvents)
	runOut(h.window())

	v := h.p.Snapshot()
	assert.Equal(t, StepCheckout, v.Step)
	assert.True(t, v.SessionExpired)
	require.NotNil(t, v.WindowRemaining)
	assert.Equal(t, 0, *v.WindowRemaining)
	require.NotNil(t, v.Quote)
	assert.Equal(t, int64(3904), v.Quote.GrandTotal)

	v, err := h.p.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepCheckout, v.Step)
	assert.Equal(t, NoticeSessionExpired, v.Notice.Kind)

	v, err = h.p.Enter(ctx, StepBillingDetails, 0)
	require.NoError(t, err)
	assert.Equal(t, StepCheckout, v.Step)

	v, err = h.p.Retreat(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepQuantitySelection, v.Step)
	assert.False(t, v.SessionExpired)

	v, err = h.p.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepCheckout, v.Step)
	assert.Equal(t, CheckoutWindowSeconds, *v.WindowRemaining)
}

func TestPipeline_CumulativeBudget(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithBudget(CumulativeBudget{Total: 600}), WithExpiryPolicy(ExpiryHold))

	v := toCheckout(t, h, StepHome)
	assert.Equal(t, 600, *v.WindowRemaining)
	tick(h.window(), 100)

	v, err := h.p.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepBillingDetails, v.Step)
	assert.Equal(t, 500, *v.WindowRemaining)
	tick(h.window(), 50)

	v, err = h.p.Retreat(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepCheckout, v.Step)
	assert.Equal(t, 450, *v.WindowRemaining)

	runOut(h.window())
	_, err = h.p.Retreat(ctx)
	require.NoError(t, err)
	v, err = h.p.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepCheckout, v.Step)
	assert.True(t, v.SessionExpired, "a spent budget is not refreshed by going back")

	_, err = h.p.Abandon(ctx)
	require.NoError(t, err)
	v = toCheckout(t, h, StepHome)
	assert.Equal(t, 600, *v.WindowRemaining)
}

func TestPipeline_StaleWindowIgnored(t *testing.T) {
	h := newHarness(t)
	toCheckout(t, h, StepEvents)
	checkout := h.window()

	_, err := h.p.Advance(context.Background())
	require.NoError(t, err)

	h.p.windowExpired(checkout)
	v := h.p.Snapshot()
	assert.Equal(t, StepBillingDetails, v.Step)
	assert.Equal(t, NoticeNone, v.Notice.Kind)
}

func TestPipeline_Close(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	toCheckout(t, h, StepHome)
	w := h.window()

	h.p.Close()
	h.p.Close()
	assert.True(t, h.p.Closed())

	_, err := h.p.Advance(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = h.p.Enter(ctx, StepHome, 0)
	assert.ErrorIs(t, err, ErrSessionClosed)

	runOut(w)
	assert.False(t, w.Expired())
	assert.Equal(t, StepCheckout, h.p.Snapshot().Step)
}

func TestPipeline_EnterGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("checkout without a selection", func(t *testing.T) {
		h := newHarness(t)
		v, err := h.p.Enter(ctx, StepCheckout, 7)
		require.NoError(t, err)
		assert.Equal(t, StepHome, v.Step)
		assert.Equal(t, NoticeNotFound, v.Notice.Kind)
		assert.Nil(t, v.Listing)
	})

	t.Run("quantity without a section returns to origin", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.p.Enter(ctx, StepMovies, 0)
		require.NoError(t, err)
		v, err := h.p.Enter(ctx, StepQuantitySelection, 3)
		require.NoError(t, err)
		assert.Equal(t, StepMovies, v.Step)
		assert.Equal(t, NoticeNotFound, v.Notice.Kind)
	})

	t.Run("unknown listing", func(t *testing.T) {
		h := newHarness(t)
		v, err := h.p.Enter(ctx, StepListingDetail, 99)
		require.NoError(t, err)
		assert.Equal(t, StepHome, v.Step)
		assert.Equal(t, NoticeNotFound, v.Notice.Kind)
	})

	t.Run("listing deep link", func(t *testing.T) {
		h := newHarness(t)
		v, err := h.p.Enter(ctx, StepListingDetail, 7)
		require.NoError(t, err)
		assert.Equal(t, StepListingDetail, v.Step)
		require.NotNil(t, v.Listing)
		assert.Equal(t, uint64(7), v.Listing.ID)
		assert.Equal(t, StepHome, v.Previous)
	})

	t.Run("unknown step", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.p.Enter(ctx, Step("basket"), 0)
		assert.ErrorIs(t, err, ErrUnknownStep)
	})

	t.Run("payment falls back to billing", func(t *testing.T) {
		h := newHarness(t)
		toCheckout(t, h, StepEvents)
		v, err := h.p.Enter(ctx, StepPayment, 0)
		require.NoError(t, err)
		assert.Equal(t, StepBillingDetails, v.Step)
		assert.Equal(t, NoticeTermsRequired, v.Notice.Kind)

		_, err = h.p.UpdateBilling(ctx, validBilling())
		require.NoError(t, err)
		v, err = h.p.Enter(ctx, StepPayment, 0)
		require.NoError(t, err)
		assert.Equal(t, StepBillingDetails, v.Step)
		assert.Equal(t, NoticeTermsRequired, v.Notice.Kind)
	})

	t.Run("catalog page clears the selection", func(t *testing.T) {
		h := newHarness(t)
		toCheckout(t, h, StepEvents)
		v, err := h.p.Enter(ctx, StepMovies, 0)
		require.NoError(t, err)
		assert.Equal(t, StepMovies, v.Step)
		assert.Nil(t, v.Listing)
		assert.Nil(t, v.WindowRemaining)
	})
}

func TestPipeline_BillingValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	toCheckout(t, h, StepHome)
	_, err := h.p.Advance(ctx)
	require.NoError(t, err)

	b := validBilling()
	b.Email = "not-an-email"
	b.Nationality = "martian"
	_, err = h.p.UpdateBilling(ctx, b)
	require.NoError(t, err)
	_, err = h.p.AcceptTerms(ctx, true)
	require.NoError(t, err)

	v, err := h.p.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepBillingDetails, v.Step)
	assert.Equal(t, NoticeBillingInvalid, v.Notice.Kind)
	assert.Contains(t, v.Notice.Message, "email")
	assert.Contains(t, v.Notice.Message, "nationality")

	_, err = h.p.Dispatch(ctx, Event{Type: EventUpdateBilling})
	assert.ErrorIs(t, err, ErrMissingPayload)
}

func TestPipeline_SectionAndQuantity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.p.Book(ctx, 7)
	require.NoError(t, err)

	v, err := h.p.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepSectionSelection, v.Step)
	assert.Equal(t, NoticeBlocked, v.Notice.Kind)

	v, err = h.p.SelectSection(ctx, "STAGE")
	require.NoError(t, err)
	assert.Equal(t, StepSectionSelection, v.Step)
	assert.Equal(t, NoticeNone, v.Notice.Kind)

	v, err = h.p.SelectSection(ctx, "PLATINUM")
	require.NoError(t, err)
	assert.Equal(t, StepSectionSelection, v.Step)
	assert.Equal(t, NoticeNotFound, v.Notice.Kind)

	v, err = h.p.SelectSection(ctx, "silver")
	require.NoError(t, err)
	assert.Equal(t, StepQuantitySelection, v.Step)
	assert.Equal(t, 1, v.Quantity)

	v, err = h.p.Decrement(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Quantity)

	v, err = h.p.SetQuantity(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Quantity)

	v, err = h.p.SetQuantity(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, v.Quantity)

	v, err = h.p.Increment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, v.Quantity)
	require.NotNil(t, v.Quote)
	assert.Equal(t, int64(9990), v.Quote.OrderAmount)
}

func TestPipeline_InvalidEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.p.Advance(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.p.Dispatch(ctx, Event{Type: EventExpire})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = h.p.Dispatch(ctx, Event{Type: "teleport"})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = h.p.Increment(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPipeline_CatalogFailure(t *testing.T) {
	h := &harness{gw: &fakeGateway{}}
	h.p = New("sess-2", fakeCatalog{err: errors.New("db down")}, h.gw)
	t.Cleanup(h.p.Close)

	v, err := h.p.OpenListing(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, StepHome, v.Step)
	assert.Equal(t, NoticeNotFound, v.Notice.Kind)
}

func TestPipeline_CustomerPrefill(t *testing.T) {
	ctx := context.Background()
	customer := &model.Customer{ID: "c-42", Name: "Ana Lopez", Email: "ana@example.com", Phone: "5551234567", Region: "Lisbon"}
	h := newHarness(t, WithCustomer(customer))
	toCheckout(t, h, StepHome)

	v, err := h.p.Advance(ctx)
	require.NoError(t, err)
	require.NotNil(t, v.Billing)
	assert.Equal(t, "Ana Lopez", v.Billing.Name)
	assert.Equal(t, "ana@example.com", v.Billing.Email)
	assert.Empty(t, v.Billing.Nationality)

	b := *v.Billing
	b.Nationality = "international"
	_, err = h.p.UpdateBilling(ctx, b)
	require.NoError(t, err)
	_, err = h.p.AcceptTerms(ctx, true)
	require.NoError(t, err)
	v, err = h.p.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, StepPayment, v.Step)
	assert.Equal(t, "c-42", v.Record.CustomerID)
}

func TestPipeline_Observers(t *testing.T) {
	h := newHarness(t)
	var got []Transition
	h.p.OnTransition(func(tr Transition) { got = append(got, tr) })

	toCheckout(t, h, StepEvents)

	require.Len(t, got, 5)
	assert.Equal(t, StepHome, got[0].From)
	assert.Equal(t, StepEvents, got[0].To)
	assert.Equal(t, EventEnter, got[0].Event)
	last := got[len(got)-1]
	assert.Equal(t, StepQuantitySelection, last.From)
	assert.Equal(t, StepCheckout, last.To)
	assert.Equal(t, StepCheckout, last.View.Step)
}

func TestPipeline_ConcurrentUse(t *testing.T) {
	h := newHarness(t)
	toCheckout(t, h, StepHome)
	_, err := h.p.Retreat(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(up bool) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if up {
					_, _ = h.p.Increment(context.Background())
				} else {
					_, _ = h.p.Decrement(context.Background())
				}
				v := h.p.Snapshot()
				if v.Quantity < 1 || v.Quantity > 10 {
					t.Errorf("quantity %d out of range", v.Quantity)
				}
			}
		}(i%2 == 0)
	}
	wg.Wait()
	assert.Equal(t, StepQuantitySelection, h.p.Snapshot().Step)
}
