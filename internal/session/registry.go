// Package session keeps the live browsing sessions of the service: one
// booking pipeline and its address history per session, reaped when idle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-funnel/internal/booking"
	"github.com/iliyamo/ticket-funnel/internal/model"
	"github.com/iliyamo/ticket-funnel/internal/navigation"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is one browsing session.
type Session struct {
	ID         string
	CustomerID string
	Pipeline   *booking.Pipeline
	Adapter    *navigation.Adapter
	History    *navigation.MemoryHistory

	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// LastSeen is when the session was last used.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Registry owns every live session.
type Registry struct {
	catalog booking.Catalog
	gateway booking.PaymentGateway
	opts    []booking.Option
	idleTTL time.Duration
	log     *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	sched gocron.Scheduler
}

// NewRegistry returns an empty registry.  opts are applied to every
// pipeline it creates.
func NewRegistry(catalog booking.Catalog, gateway booking.PaymentGateway, idleTTL time.Duration, log *zap.Logger, opts ...booking.Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		catalog:  catalog,
		gateway:  gateway,
		opts:     opts,
		idleTTL:  idleTTL,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session showing address (home when empty) and resolves
// the address through the pipeline's guards.  customer may be nil.
func (r *Registry) Create(ctx context.Context, customer *model.Customer, address string) (*Session, booking.View, error) {
	id := uuid.NewString()
	opts := append([]booking.Option{booking.WithLogger(r.log)}, r.opts...)
	if customer != nil {
		opts = append(opts, booking.WithCustomer(customer))
	}

	s := &Session{
		ID:       id,
		Pipeline: booking.New(id, r.catalog, r.gateway, opts...),
		History:  navigation.NewMemoryHistory(address),
	}
	if customer != nil {
		s.CustomerID = customer.ID
	}
	s.Adapter = navigation.NewAdapter(s.History, r.log.With(zap.String("session_id", id)))
	s.Adapter.Bind(s.Pipeline)
	s.touch(r.now())

	view, err := s.Adapter.Load(ctx)
	if err != nil {
		s.Pipeline.Close()
		return nil, booking.View{}, fmt.Errorf("load session address: %w", err)
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	r.log.Info("session created", zap.String("session_id", id), zap.String("address", s.Adapter.Address()))
	return s, view, nil
}

// Get returns a live session and marks it used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

// Close ends a session and cancels its windows.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Pipeline.Close()
	r.log.Info("session closed", zap.String("session_id", id))
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the idle TTL.  Sessions with
// a charge in flight are left for the next sweep.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if !s.LastSeen().Before(cutoff) {
			continue
		}
		if s.Pipeline.Snapshot().PaymentPending {
			continue
		}
		idle = append(idle, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Pipeline.Close()
	}
	if len(idle) > 0 {
		r.log.Info("idle sessions reaped", zap.Int("count", len(idle)), zap.Int("remaining", r.Len()))
	}
	return len(idle)
}

// StartSweeper runs Sweep every interval until Stop.
func (r *Registry) StartSweeper(interval time.Duration) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { r.Sweep() }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	s.Start()
	r.sched = s
	return nil
}

// Stop shuts the sweeper down and closes every session.
func (r *Registry) Stop() error {
	var err error
	if r.sched != nil {
		err = r.sched.Shutdown()
		r.sched = nil
	}

	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Pipeline.Close()
	}
	return err
}
