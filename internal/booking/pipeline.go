package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/countdown"
	"github.com/iliyamo/ticket-funnel/internal/model"
	"github.com/iliyamo/ticket-funnel/internal/pricing"
)

// Catalog resolves listings by id.
type Catalog interface {
	GetListing(ctx context.Context, id uint64) (*model.Listing, error)
}

// PaymentGateway charges a finalized booking record.  A returned error means
// the charge could not be processed at all; a decline is a Settlement.
type PaymentGateway interface {
	Charge(ctx context.Context, rec model.BookingRecord) (model.Settlement, error)
}

// ConfirmationPublisher is told about every settled booking.
type ConfirmationPublisher interface {
	PublishBookingConfirmed(ctx context.Context, rec model.BookingRecord) error
}

// DefaultChargeTimeout bounds a single call to the payment gateway.
const DefaultChargeTimeout = 30 * time.Second

var validate = validator.New()

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFeeRate overrides pricing.DefaultFeeRate.
func WithFeeRate(rate float64) Option {
	return func(p *Pipeline) { p.feeRate = rate }
}

// WithBudget sets how timed steps are granted seconds.
func WithBudget(b BudgetPolicy) Option {
	return func(p *Pipeline) {
		if b != nil {
			p.budget = b
		}
	}
}

// WithExpiryPolicy sets what happens when a window runs out.
func WithExpiryPolicy(e ExpiryPolicy) Option {
	return func(p *Pipeline) { p.expiry = e }
}

// WithTimerFactory replaces countdown.Start, mostly for tests that drive
// windows by hand.
func WithTimerFactory(fn func(seconds int) *countdown.Timer) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newTimer = fn
		}
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithCustomer marks the session as signed in.  Billing fields are
// pre-filled from the customer.
func WithCustomer(c *model.Customer) Option {
	return func(p *Pipeline) { p.customer = c }
}

// WithPublisher announces settled bookings.
func WithPublisher(pub ConfirmationPublisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithChargeTimeout bounds a gateway call.
func WithChargeTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.chargeTimeout = d
		}
	}
}

// Pipeline is the booking state machine of one browsing session.  Every
// change, including window expiry and payment outcomes, goes through the
// same lock so a snapshot never mixes two states.
type Pipeline struct {
	id            string
	catalog       Catalog
	gateway       PaymentGateway
	publisher     ConfirmationPublisher
	log           *zap.Logger
	feeRate       float64
	budget        BudgetPolicy
	expiry        ExpiryPolicy
	newTimer      func(seconds int) *countdown.Timer
	chargeTimeout time.Duration
	now           func() time.Time

	mu            sync.Mutex
	step          Step
	sel           *Selection
	billing       model.Billing
	customer      *model.Customer
	window        *countdown.Timer
	lastRemaining int
	expired       bool
	record        *model.BookingRecord
	paying        bool
	chargeSeq     uint64
	notice        Notice
	closed        bool
	observers     []func(Transition)
	pending       []Transition
}

// New returns a pipeline on the home page.
func New(id string, catalog Catalog, gateway PaymentGateway, opts ...Option) *Pipeline {
	p := &Pipeline{
		id:            id,
		catalog:       catalog,
		gateway:       gateway,
		log:           zap.NewNop(),
		feeRate:       pricing.DefaultFeeRate,
		budget:        DefaultBudget(),
		expiry:        ExpiryReturnToOrigin,
		newTimer:      countdown.Start,
		chargeTimeout: DefaultChargeTimeout,
		now:           time.Now,
		step:          StepHome,
		lastRemaining: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sel = NewSelection(p.feeRate)
	return p
}

// ID returns the session id.
func (p *Pipeline) ID() string { return p.id }

// OnTransition registers fn to be called after every step change.  fn runs
// outside the pipeline lock and may call back into the pipeline.
func (p *Pipeline) OnTransition(fn func(Transition)) {
	p.mu.Lock()
	p.observers = append(p.observers, fn)
	p.mu.Unlock()
}

// SetCustomer attaches a signed-in customer mid-session.
func (p *Pipeline) SetCustomer(c *model.Customer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customer = c
	if p.step == StepBillingDetails {
		p.prefill()
	}
}

// Snapshot returns the current view.
func (p *Pipeline) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

// Closed reports whether Close was called.
func (p *Pipeline) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close cancels the running window and rejects further events.  Safe to
// call more than once.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closeWindow()
	p.closed = true
}

// Dispatch applies one user event.  Guard failures, expiry and unknown
// listings are not errors: they come back as View.Notice.
func (p *Pipeline) Dispatch(ctx context.Context, ev Event) (View, error) {
	if !ev.Type.External() {
		return p.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	var (
		listing *model.Listing
		lerr    error
	)
	if ev.ListingID != 0 && (ev.Type == EventOpenListing || ev.Type == EventBook) {
		listing, lerr = p.catalog.GetListing(ctx, ev.ListingID)
	}
	p.mu.Lock()
	return p.finish(p.handle(ev, listing, lerr))
}

func (p *Pipeline) OpenListing(ctx context.Context, id uint64) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventOpenListing, ListingID: id})
}

func (p *Pipeline) Book(ctx context.Context, id uint64) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventBook, ListingID: id})
}

func (p *Pipeline) Advance(ctx context.Context) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventAdvance})
}

func (p *Pipeline) Retreat(ctx context.Context) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventRetreat})
}

func (p *Pipeline) Abandon(ctx context.Context) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventAbandon})
}

func (p *Pipeline) SelectSection(ctx context.Context, name string) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventSelectSection, Section: name})
}

func (p *Pipeline) Increment(ctx context.Context) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventIncrement})
}

func (p *Pipeline) Decrement(ctx context.Context) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventDecrement})
}

func (p *Pipeline) SetQuantity(ctx context.Context, n int) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventSetQuantity, Quantity: n})
}

func (p *Pipeline) UpdateBilling(ctx context.Context, b model.Billing) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventUpdateBilling, Billing: &b})
}

func (p *Pipeline) AcceptTerms(ctx context.Context, accept bool) (View, error) {
	return p.Dispatch(ctx, Event{Type: EventAcceptTerms, Accept: accept})
}

// Enter handles arriving on step by address (deep link, reload or the
// browser's back and forward buttons).  listingID, when non-zero, is the
// listing named by the address.  A step whose guard does not hold is never
// shown: the session is sent back to where the funnel started.
func (p *Pipeline) Enter(ctx context.Context, step Step, listingID uint64) (View, error) {
	if !step.IsValid() {
		return p.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	var (
		listing *model.Listing
		lerr    error
	)
	if listingID != 0 {
		listing, lerr = p.catalog.GetListing(ctx, listingID)
	}
	p.mu.Lock()
	return p.finish(p.enter(step, listingID, listing, lerr))
}

// SubmitPayment hands the booking record to the gateway and returns at
// once.  The outcome is applied to the session and delivered on the
// returned channel, which is closed afterwards.  The charge outlives ctx
// cancellation; it is bounded by the charge timeout instead.
func (p *Pipeline) SubmitPayment(ctx context.Context) (<-chan PaymentResult, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return nil, ErrSessionClosed
	case p.paying:
		p.mu.Unlock()
		return nil, ErrPaymentPending
	case p.step != StepPayment || p.record == nil:
		step := p.step
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: submit payment from %s", ErrInvalidTransition, step)
	}
	p.paying = true
	p.chargeSeq++
	seq := p.chargeSeq
	rec := *p.record
	p.mu.Unlock()

	p.log.Info("payment submitted",
		zap.String("session_id", p.id),
		zap.String("record_id", rec.ID),
		zap.Int64("grand_total", rec.Quote.GrandTotal))

	out := make(chan PaymentResult, 1)
	go func() {
		defer close(out)
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.chargeTimeout)
		defer cancel()

		s, err := p.gateway.Charge(cctx, rec)
		res := p.settle(seq, rec, s, err)
		if res.Status == model.PaymentSettled && p.publisher != nil {
			if perr := p.publisher.PublishBookingConfirmed(cctx, res.Record); perr != nil {
				p.log.Warn("publish booking confirmed failed",
					zap.String("record_id", res.Record.ID), zap.Error(perr))
			}
		}
		out <- res
	}()
	return out, nil
}

// finish must be called with p.mu held; it releases the lock and notifies
// observers of the transitions collected since the lock was taken.
func (p *Pipeline) finish(err error) (View, error) {
	view := p.viewLocked()
	changes := p.pending
	p.pending = nil
	var observers []func(Transition)
	if len(changes) > 0 {
		observers = append(observers, p.observers...)
	}
	p.mu.Unlock()

	for _, c := range changes {
		c.View = view
		for _, fn := range observers {
			fn(c)
		}
	}
	return view, err
}

func (p *Pipeline) handle(ev Event, listing *model.Listing, lerr error) error {
	if p.closed {
		return ErrSessionClosed
	}
	if p.paying {
		return ErrPaymentPending
	}
	p.notice = Notice{}

	switch ev.Type {
	case EventRetreat:
		p.retreat()
		return nil
	case EventAbandon:
		p.leave(p.origin(), EventAbandon)
		return nil
	}

	target, ok := Target(p.step, ev.Type)
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev.Type, p.step)
	}

	switch ev.Type {
	case EventOpenListing, EventBook:
		if p.step.IsCatalogPage() {
			if ev.ListingID == 0 || lerr != nil || listing == nil {
				p.listingNotFound(ev.ListingID, lerr)
				return nil
			}
			if err := p.sel.SetListing(listing); err != nil {
				return err
			}
		}
		p.moveTo(target, ev.Type, true)

	case EventSelectSection:
		err := p.sel.SetSection(ev.Section)
		switch {
		case errors.Is(err, ErrSectionNotSelectable):
			return nil
		case errors.Is(err, ErrUnknownSection):
			p.notice = Notice{Kind: NoticeNotFound, Message: "section not found"}
			return nil
		case err != nil:
			return err
		}
		p.moveTo(target, ev.Type, true)

	case EventIncrement:
		p.adjustQuantity(p.sel.Quantity() + 1)
	case EventDecrement:
		p.adjustQuantity(p.sel.Quantity() - 1)
	case EventSetQuantity:
		p.adjustQuantity(ev.Quantity)

	case EventUpdateBilling:
		if ev.Billing == nil {
			return fmt.Errorf("%w: billing", ErrMissingPayload)
		}
		accepted := p.billing.TermsAccepted
		p.billing = *ev.Billing
		if !ev.Billing.TermsAccepted {
			p.billing.TermsAccepted = accepted
		}
	case EventAcceptTerms:
		p.billing.TermsAccepted = ev.Accept

	case EventAdvance:
		if p.expired {
			p.notice = expiredNotice
			return nil
		}
		if !p.guard(target) {
			p.notice = p.blockedNotice(target)
			return nil
		}
		p.moveTo(target, ev.Type, true)
	}
	return nil
}

func (p *Pipeline) enter(step Step, listingID uint64, listing *model.Listing, lerr error) error {
	if p.closed {
		return ErrSessionClosed
	}
	if p.paying {
		return ErrPaymentPending
	}
	p.notice = Notice{}

	if step.IsCatalogPage() {
		if step != p.step {
			p.leave(step, EventEnter)
		}
		return nil
	}
	if listingID != 0 {
		if lerr != nil || listing == nil {
			p.listingNotFound(listingID, lerr)
			return nil
		}
		if cur := p.sel.Listing(); cur == nil || cur.ID != listingID {
			if err := p.sel.SetListing(listing); err != nil {
				return err
			}
		}
	}
	if step == p.step {
		return nil
	}
	if p.expired && step.Index() > p.step.Index() {
		p.notice = expiredNotice
		return nil
	}
	if !p.guard(step) {
		if step == StepPayment && p.guard(StepBillingDetails) {
			notice := p.blockedNotice(StepPayment)
			if p.step != StepBillingDetails {
				p.moveTo(StepBillingDetails, EventEnter, true)
			}
			p.notice = notice
			return nil
		}
		p.log.Debug("guard failed on arrival",
			zap.String("session_id", p.id), zap.String("step", string(step)))
		p.leave(p.origin(), EventEnter)
		p.notice = Notice{Kind: NoticeNotFound, Message: "this page is no longer available"}
		return nil
	}
	p.moveTo(step, EventEnter, true)
	return nil
}

func (p *Pipeline) listingNotFound(id uint64, err error) {
	if err != nil {
		p.log.Warn("listing lookup failed",
			zap.String("session_id", p.id), zap.Uint64("listing_id", id), zap.Error(err))
	}
	if !p.step.IsCatalogPage() {
		p.leave(p.origin(), EventEnter)
	}
	p.notice = Notice{Kind: NoticeNotFound, Message: "listing not found"}
}

func (p *Pipeline) adjustQuantity(n int) {
	if n < pricing.MinQuantity || n > pricing.MaxQuantity {
		return
	}
	_ = p.sel.SetQuantity(n)
}

// guard reports whether step may be shown with the current state.
func (p *Pipeline) guard(step Step) bool {
	switch step {
	case StepListingDetail, StepSectionSelection:
		return p.sel.Listing() != nil
	case StepQuantitySelection:
		_, ok := p.sel.Section()
		return ok
	case StepCheckout, StepBillingDetails:
		return p.quotable()
	case StepPayment:
		return p.quotable() && p.billing.TermsAccepted && validate.Struct(p.billing) == nil
	case StepConfirmed:
		return p.record != nil && p.record.Status == model.PaymentSettled
	}
	return step.IsCatalogPage()
}

func (p *Pipeline) quotable() bool {
	_, err := p.sel.Quote()
	if errors.Is(err, pricing.ErrInvalidQuoteInput) {
		p.log.DPanic("selection produced an invalid quote", zap.String("session_id", p.id), zap.Error(err))
	}
	return err == nil
}

var expiredNotice = Notice{Kind: NoticeSessionExpired, Message: "your session has timed out, please go back and start again"}

func (p *Pipeline) blockedNotice(target Step) Notice {
	switch target {
	case StepQuantitySelection:
		return Notice{Kind: NoticeBlocked, Message: "choose a section to continue"}
	case StepPayment:
		if !p.quotable() {
			break
		}
		if !p.billing.TermsAccepted {
			return Notice{Kind: NoticeTermsRequired, Message: "please accept the terms and conditions to continue"}
		}
		return Notice{Kind: NoticeBillingInvalid, Message: billingProblem(validate.Struct(p.billing))}
	}
	return Notice{Kind: NoticeBlocked, Message: "complete your selection to continue"}
}

func billingProblem(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "billing details are incomplete"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return "please check: " + strings.Join(fields, ", ")
}

// moveTo switches to target and runs its entry actions.  push records the
// current step so Back returns to it.
func (p *Pipeline) moveTo(target Step, ev EventType, push bool) {
	from := p.step
	if from == target {
		return
	}
	p.closeWindow()
	p.expired = false
	if from == StepPayment && p.record != nil && p.record.Status == model.PaymentPending {
		p.record = nil
	}
	if push {
		p.sel.push(from)
	}
	p.step = target
	p.pending = append(p.pending, Transition{From: from, To: target, Event: ev})
	p.log.Debug("step changed",
		zap.String("session_id", p.id),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("event", string(ev)))

	switch target {
	case StepQuantitySelection:
		if p.sel.Quantity() == 0 {
			_ = p.sel.SetQuantity(pricing.MinQuantity)
		}
	case StepBillingDetails:
		p.prefill()
	case StepPayment:
		p.record = p.buildRecord()
	}
	if target.IsTimed() {
		p.openWindow(target)
	}
}

// leave ends the selection and lands on a catalog page.
func (p *Pipeline) leave(target Step, ev EventType) {
	from := p.step
	p.closeWindow()
	p.sel.Clear()
	p.billing = model.Billing{}
	p.record = nil
	p.lastRemaining = -1
	p.expired = false
	p.step = target
	if from != target {
		p.pending = append(p.pending, Transition{From: from, To: target, Event: ev})
		p.log.Debug("selection cleared",
			zap.String("session_id", p.id),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
			zap.String("event", string(ev)))
	}
}

func (p *Pipeline) retreat() {
	prev, ok := p.sel.pop()
	if !ok {
		prev = StepHome
	}
	if prev.IsCatalogPage() || p.step.IsTerminal() {
		p.leave(prev, EventRetreat)
		return
	}
	if !p.guard(prev) {
		p.leave(p.origin(), EventRetreat)
		return
	}
	p.moveTo(prev, EventRetreat, false)
}

func (p *Pipeline) origin() Step {
	if p.step.IsCatalogPage() {
		return p.step
	}
	if o, ok := p.sel.origin(); ok {
		return o
	}
	return StepHome
}

func (p *Pipeline) prefill() {
	c := p.customer
	if c == nil {
		return
	}
	if p.billing.Name == "" {
		p.billing.Name = c.Name
	}
	if p.billing.Email == "" {
		p.billing.Email = c.Email
	}
	if p.billing.Phone == "" {
		p.billing.Phone = c.Phone
	}
	if p.billing.Region == "" {
		p.billing.Region = c.Region
	}
}

func (p *Pipeline) buildRecord() *model.BookingRecord {
	sec, _ := p.sel.Section()
	quote, _ := p.sel.Quote()
	rec := &model.BookingRecord{
		ID:        uuid.NewString(),
		SessionID: p.id,
		Listing:   *p.sel.Listing(),
		Section:   sec,
		Quantity:  p.sel.Quantity(),
		Billing:   p.billing,
		Quote:     quote,
		Status:    model.PaymentPending,
		CreatedAt: p.now().UTC(),
	}
	if p.customer != nil {
		rec.CustomerID = p.customer.ID
	}
	return rec
}

func (p *Pipeline) openWindow(step Step) {
	secs := p.budget.Allot(step, p.lastRemaining)
	if secs <= 0 {
		p.lastRemaining = 0
		p.applyExpiry()
		return
	}
	t := p.newTimer(secs)
	p.window = t
	t.OnExpire(func() { p.windowExpired(t) })
}

// closeWindow cancels the running window and remembers what was left on
// it for a cumulative budget.
func (p *Pipeline) closeWindow() {
	if p.window == nil {
		return
	}
	p.lastRemaining = p.window.Remaining()
	p.window.Cancel()
	p.window = nil
}

func (p *Pipeline) windowExpired(t *countdown.Timer) {
	p.mu.Lock()
	if p.closed || p.window != t {
		p.mu.Unlock()
		return
	}
	p.log.Info("session window expired",
		zap.String("session_id", p.id),
		zap.String("step", string(p.step)),
		zap.Stringer("policy", p.expiry))
	p.applyExpiry()
	p.finish(nil)
}

func (p *Pipeline) applyExpiry() {
	if p.expiry == ExpiryHold {
		p.expired = true
		p.notice = expiredNotice
		return
	}
	p.leave(p.origin(), EventExpire)
	p.notice = expiredNotice
}

func (p *Pipeline) settle(seq uint64, sent model.BookingRecord, s model.Settlement, err error) PaymentResult {
	res := PaymentResult{Record: sent}
	switch {
	case err != nil:
		res.Status = model.PaymentError
		res.Reason = err.Error()
	case s.Status == model.PaymentSettled:
		res.Status = model.PaymentSettled
	default:
		res.Status = model.PaymentDeclined
		res.Reason = s.Reason
	}
	res.Record.Status = res.Status
	res.Record.PaymentRef = s.Reference

	p.mu.Lock()
	if p.closed || !p.paying || seq != p.chargeSeq {
		p.log.Warn("payment outcome for an inactive session",
			zap.String("session_id", p.id),
			zap.String("record_id", sent.ID),
			zap.String("status", string(res.Status)))
		res.View = p.viewLocked()
		p.mu.Unlock()
		return res
	}
	p.paying = false
	rec := res.Record
	p.record = &rec

	var ev EventType
	switch res.Status {
	case model.PaymentSettled:
		ev = EventPaymentSettled
	case model.PaymentDeclined:
		ev = EventPaymentDeclined
	default:
		ev = EventPaymentFailed
		p.log.Error("payment failed", zap.String("session_id", p.id), zap.String("record_id", rec.ID), zap.Error(err))
	}
	target, _ := Target(StepPayment, ev)

	if ev == EventPaymentSettled {
		p.moveTo(target, ev, false)
		p.sel.Clear()
		p.billing = model.Billing{}
		p.lastRemaining = -1
		p.notice = Notice{Kind: NoticeConfirmed, Message: "your booking is confirmed"}
		p.log.Info("booking confirmed", zap.String("session_id", p.id), zap.String("record_id", rec.ID))
	} else {
		if prev, ok := p.sel.Previous(); ok && prev == target {
			p.sel.pop()
		}
		p.moveTo(target, ev, false)
		switch {
		case p.step != target:
			// the carried budget ran out on the way back
		case ev == EventPaymentDeclined:
			msg := "your payment was declined"
			if res.Reason != "" {
				msg += ": " + res.Reason
			}
			p.notice = Notice{Kind: NoticePaymentDeclined, Message: msg}
		default:
			p.notice = Notice{Kind: NoticePaymentError, Message: "payment could not be processed, please try again"}
		}
	}
	res.View, _ = p.finish(nil)
	return res
}

func (p *Pipeline) viewLocked() View {
	v := View{
		SessionID:      p.id,
		Step:           p.step,
		Quantity:       p.sel.Quantity(),
		SessionExpired: p.expired,
		PaymentPending: p.paying,
		Notice:         p.notice,
	}
	if prev, ok := p.sel.Previous(); ok {
		v.Previous = prev
	}
	if l := p.sel.Listing(); l != nil {
		cp := *l
		v.Listing = &cp
	}
	if sec, ok := p.sel.Section(); ok {
		v.Section = &sec
	}
	if q, err := p.sel.Quote(); err == nil {
		v.Quote = &q
	}
	if p.window != nil {
		r := p.window.Remaining()
		v.WindowRemaining = &r
	} else if p.expired {
		zero := 0
		v.WindowRemaining = &zero
	}
	if p.step == StepBillingDetails || p.step == StepPayment {
		b := p.billing
		v.Billing = &b
	}
	if p.record != nil {
		rec := *p.record
		v.Record = &rec
	}
	return v
}
