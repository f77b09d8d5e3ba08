// Package countdown implements the per-step session window: a one-second
// countdown that can be cancelled from any exit path and reports expiry
// exactly once.
package countdown

import (
	"sync"
	"time"
)

// Ticker abstracts time.Ticker so the tick source can be replaced.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewSecondTicker returns a Ticker firing once per real second.
func NewSecondTicker() Ticker { return realTicker{t: time.NewTicker(time.Second)} }

// Timer counts down whole seconds.  All methods are safe for concurrent use.
type Timer struct {
	mu        sync.Mutex
	remaining int
	cancelled bool
	expired   bool
	callbacks []func()

	stop     chan struct{}
	stopOnce sync.Once
}

// New returns a timer holding seconds that is not driven by any ticker.
// Callers advance it with Tick.
func New(seconds int) *Timer {
	if seconds < 0 {
		seconds = 0
	}
	return &Timer{
		remaining: seconds,
		expired:   seconds == 0,
		stop:      make(chan struct{}),
	}
}

// Start returns a timer that decrements once per real second.
func Start(seconds int) *Timer {
	return StartWithTicker(seconds, NewSecondTicker())
}

// StartWithTicker returns a timer driven by tk.  The ticker is stopped when
// the timer expires or is cancelled.
func StartWithTicker(seconds int, tk Ticker) *Timer {
	t := New(seconds)
	if t.expired {
		tk.Stop()
		return t
	}
	go t.run(tk)
	return t
}

func (t *Timer) run(tk Ticker) {
	defer tk.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-tk.C():
			if t.Tick() == 0 {
				return
			}
		}
	}
}

// Tick advances the countdown by one second and returns the seconds left.
// Reaching zero fires the expiry callbacks on the calling goroutine.
// Ticks after expiry or cancellation change nothing.
func (t *Timer) Tick() int {
	t.mu.Lock()
	if t.cancelled || t.expired {
		left := t.remaining
		t.mu.Unlock()
		return left
	}
	t.remaining--
	if t.remaining > 0 {
		left := t.remaining
		t.mu.Unlock()
		return left
	}
	t.remaining = 0
	t.expired = true
	fire := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	t.halt()
	for _, fn := range fire {
		fn()
	}
	return 0
}

// Remaining reports the seconds left; never negative.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Expired reports whether the countdown reached zero.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Cancel stops the countdown.  It never blocks on the ticking goroutine and
// may be called any number of times, before or after expiry.
func (t *Timer) Cancel() {
	t.mu.Lock()
	if !t.expired {
		t.cancelled = true
	}
	t.callbacks = nil
	t.mu.Unlock()
	t.halt()
}

// OnExpire registers fn to run once when the countdown reaches zero.  On a
// timer that already expired fn runs immediately; on a cancelled timer it
// never runs.
func (t *Timer) OnExpire(fn func()) {
	t.mu.Lock()
	switch {
	case t.cancelled:
		t.mu.Unlock()
	case t.expired:
		t.mu.Unlock()
		fn()
	default:
		t.callbacks = append(t.callbacks, fn)
		t.mu.Unlock()
	}
}

func (t *Timer) halt() {
	t.stopOnce.Do(func() { close(t.stop) })
}
