package navigation

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/booking"
)

// Adapter binds one pipeline to one History.
type Adapter struct {
	history  History
	pipeline *booking.Pipeline
	log      *zap.Logger

	// nav serializes address-driven arrivals (Load, PopState).
	nav sync.Mutex

	mu         sync.Mutex
	navigating bool
}

// NewAdapter returns an adapter writing to h.
func NewAdapter(h History, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{history: h, log: log}
}

// Bind subscribes the adapter to p's transitions.  Call once.
func (a *Adapter) Bind(p *booking.Pipeline) {
	a.pipeline = p
	p.OnTransition(func(tr booking.Transition) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.navigating {
			return
		}
		a.syncLocked(LocationOf(tr.View))
	})
}

// Address returns the path currently shown.
func (a *Adapter) Address() string { return a.history.Current() }

// SyncToAddress writes the canonical path of loc.  A new step pushes an
// entry; the same step (a different listing, say) replaces it.  Pipeline
// state is never read or changed.
func (a *Adapter) SyncToAddress(loc Location) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.syncLocked(loc)
}

func (a *Adapter) syncLocked(loc Location) {
	path := PathFor(loc)
	cur := a.history.Current()
	if cur == path {
		return
	}
	if shown, ok := Parse(cur); ok && shown.Step == loc.Step {
		a.history.Replace(path)
		return
	}
	a.history.Push(path)
}

// ReadAddressOnLoad resolves the address shown when the session starts.
func (a *Adapter) ReadAddressOnLoad() (Location, bool) {
	return Parse(a.history.Current())
}

// Load enters the initial address through the pipeline's guards.  An
// unknown address, or one whose guard fails, is replaced with the page the
// pipeline ended up on.
func (a *Adapter) Load(ctx context.Context) (booking.View, error) {
	a.nav.Lock()
	defer a.nav.Unlock()

	loc, ok := a.ReadAddressOnLoad()
	if !ok {
		a.log.Debug("unknown address on load", zap.String("path", a.history.Current()))
		loc = Location{Step: booking.StepHome}
	}
	return a.arrive(func() (booking.View, error) {
		return a.pipeline.Enter(ctx, loc.Step, loc.ListingID)
	})
}

// PopState handles the history moving to path by back or forward.  When
// path is the step the pipeline would go back to, it is a Retreat;
// anything else is a guarded Enter.
func (a *Adapter) PopState(ctx context.Context, path string) (booking.View, error) {
	a.nav.Lock()
	defer a.nav.Unlock()

	loc, ok := Parse(path)
	if !ok {
		a.log.Debug("unknown address on popstate", zap.String("path", path))
		loc = Location{Step: booking.StepHome}
	}
	return a.arrive(func() (booking.View, error) {
		snap := a.pipeline.Snapshot()
		if snap.Step != loc.Step && snap.Previous == loc.Step && sameListing(snap, loc) {
			return a.pipeline.Retreat(ctx)
		}
		return a.pipeline.Enter(ctx, loc.Step, loc.ListingID)
	})
}

// Visit handles an address typed in mid-session.  It gets a history entry
// of its own unless it names the page already shown, and is entered
// through the guards like any other arrival.
func (a *Adapter) Visit(ctx context.Context, path string) (booking.View, error) {
	a.nav.Lock()
	defer a.nav.Unlock()

	loc, ok := Parse(path)
	if !ok {
		a.log.Debug("unknown address on visit", zap.String("path", path))
		loc = Location{Step: booking.StepHome}
		path = PathFor(loc)
	}
	a.mu.Lock()
	if shown, ok := Parse(a.history.Current()); !ok || shown.Step != loc.Step || shown.ListingID != loc.ListingID {
		a.history.Push(path)
	}
	a.mu.Unlock()

	return a.arrive(func() (booking.View, error) {
		return a.pipeline.Enter(ctx, loc.Step, loc.ListingID)
	})
}

// arrive runs fn with transition syncing paused, then replaces the current
// entry with wherever the pipeline actually is.
func (a *Adapter) arrive(fn func() (booking.View, error)) (booking.View, error) {
	a.mu.Lock()
	a.navigating = true
	a.mu.Unlock()

	v, err := fn()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.navigating = false
	current := a.pipeline.Snapshot()
	if path := PathFor(LocationOf(current)); path != a.history.Current() {
		a.history.Replace(path)
	}
	return v, err
}

func sameListing(v booking.View, loc Location) bool {
	if loc.ListingID == 0 {
		return true
	}
	return v.Listing != nil && v.Listing.ID == loc.ListingID
}
