// Package scheduler keeps the in-memory deferred timers of the listing
// lifecycle. Each symbol has at most one pending timer per phase; scheduling
// the same key again replaces the earlier registration.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"listingwatcher/internal/listing/metrics"

	"go.uber.org/zap"
)

type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseMinute Phase = "minute"
	PhaseSell   Phase = "sell"
)

// Key identifies a timer slot.
type Key struct {
	Symbol string
	Phase  Phase
}

func (k Key) String() string {
	return k.Symbol + ":" + string(k.Phase)
}

// Message is the payload delivered to the phase handler. OrderID is the
// buy row a sell timer closes and is zero for the other phases.
type Message struct {
	Key     Key
	OrderID uint
}

type Handler func(ctx context.Context, msg Message) error

type entry struct {
	timer *time.Timer
	gen   uint64
	due   time.Time
	msg   Message
}

type Scheduler struct {
	mu       sync.Mutex
	handlers map[Phase]Handler
	entries  map[Key]*entry
	running  map[Key]int
	gen      uint64
	stopped  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
}

type Option func(*Scheduler)

// WithClock replaces time.Now for due-time bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(m *metrics.Metrics, logger *zap.Logger, opts ...Option) *Scheduler {
	if m == nil {
		m = metrics.New(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		handlers: make(map[Phase]Handler),
		entries:  make(map[Key]*entry),
		running:  make(map[Key]int),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
		metrics:  m,
		logger:   logger.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle registers the handler dispatched for phase.
func (s *Scheduler) Handle(phase Phase, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[phase] = h
}

// Schedule dispatches msg once after delay. A pending timer under the same
// key is cancelled and replaced. delay <= 0 fires immediately.
func (s *Scheduler) Schedule(msg Message, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.logger.Warn("scheduler stopped, dropping timer", zap.String("key", msg.Key.String()))
		return
	}

	if old, ok := s.entries[msg.Key]; ok {
		old.timer.Stop()
	}

	s.gen++
	gen := s.gen
	e := &entry{gen: gen, due: s.now().Add(delay), msg: msg}
	e.timer = time.AfterFunc(delay, func() { s.fire(msg.Key, gen) })
	s.entries[msg.Key] = e
	s.metrics.TimersPending.Set(float64(len(s.entries)))

	s.logger.Debug("timer scheduled",
		zap.String("key", msg.Key.String()),
		zap.Duration("delay", delay),
		zap.Time("due", e.due),
	)
}

// ScheduleAt is Schedule with an absolute due time.
func (s *Scheduler) ScheduleAt(msg Message, at time.Time) {
	s.Schedule(msg, at.Sub(s.now()))
}

// Cancel removes a pending timer. A handler that already started keeps
// running.
func (s *Scheduler) Cancel(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	s.metrics.TimersPending.Set(float64(len(s.entries)))
	return true
}

// Pending reports the due time of the timer registered under key.
func (s *Scheduler) Pending(key Key) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.due, true
}

// Busy reports whether key is pending or its handler is executing.
func (s *Scheduler) Busy(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, pending := s.entries[key]
	return pending || s.running[key] > 0
}

// Running reports whether the handler for key is executing right now.
func (s *Scheduler) Running(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[key] > 0
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop cancels pending timers, signals running handlers through their
// context and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		for key, e := range s.entries {
			e.timer.Stop()
			delete(s.entries, key)
		}
		s.metrics.TimersPending.Set(0)
	}
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running handlers: %w", ctx.Err())
	}
}

func (s *Scheduler) fire(key Key, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[key]
	// a replaced or cancelled registration may still have its func queued
	if !ok || e.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	s.running[key]++
	s.wg.Add(1)
	h := s.handlers[key.Phase]
	s.metrics.TimersPending.Set(float64(len(s.entries)))
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.running[key]--; s.running[key] <= 0 {
			delete(s.running, key)
		}
		s.mu.Unlock()
		s.wg.Done()
	}()

	s.metrics.TimersFired.WithLabelValues(string(key.Phase)).Inc()
	s.dispatch(h, e.msg)
}

func (s *Scheduler) dispatch(h Handler, msg Message) {
	log := s.logger.With(zap.String("key", msg.Key.String()))
	if h == nil {
		log.Error("no handler for phase")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if err := h(s.ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("handler interrupted by shutdown")
			return
		}
		log.Error("handler failed", zap.Error(err))
	}
}
