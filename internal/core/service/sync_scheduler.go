package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/port"
)

const DefaultDebounce = 350 * time.Millisecond

type SyncKind string

const (
	SyncReplace SyncKind = "replace"
	SyncClear   SyncKind = "clear"
)

// SyncJob is one request to the remote cart service.
type SyncJob struct {
	ID     string
	Kind   SyncKind
	Reason string
}

type SyncResult struct {
	Job SyncJob
	Err error
}

// SyncScheduler pushes the local item list to the remote cart service.
//
// Replace pushes are debounced on the trailing edge: every Schedule call
// restarts the quiet window and only the state at send time is pushed.
// At most one request is in flight; a job that becomes due meanwhile waits
// for it and replaces any job already waiting. Failures are reported, never
// retried.
type SyncScheduler struct {
	remote  port.RemoteCartService
	lines   func() []domain.CartLine
	report  func(SyncResult)
	clock   Clock
	delay   time.Duration
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	timer    Timer
	gen      uint64
	epoch    uint64 // bumped by Cancel
	inFlight bool
	queued   *SyncJob
	idle     chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

type SchedulerOptions struct {
	Clock    Clock
	Debounce time.Duration
	// Timeout bounds a single remote request; zero leaves it to the transport.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewSyncScheduler reads the lines to push from lines at send time and hands
// every outcome to report.
func NewSyncScheduler(remote port.RemoteCartService, lines func() []domain.CartLine, report func(SyncResult), opts SchedulerOptions) *SyncScheduler {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if report == nil {
		report = func(SyncResult) {}
	}
	return &SyncScheduler{
		remote:  remote,
		lines:   lines,
		report:  report,
		clock:   opts.Clock,
		delay:   opts.Debounce,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// Schedule (re)starts the debounce window for a replace push.
func (s *SyncScheduler) Schedule(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.stopTimerLocked()
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen, reason) })
}

// ClearNow drops any pending push and clears the remote cart without waiting
// for a quiet window.
func (s *SyncScheduler) ClearNow(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.stopTimerLocked()
	s.dispatchLocked(newSyncJob(SyncClear, reason))
}

// Cancel drops the pending debounce and any queued job. A replace job that
// has been dispatched but has not read the items yet is dropped too; a
// request already on the wire is left to finish.
func (s *SyncScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.queued = nil
	s.epoch++
}

// PushNow drops the pending debounce and pushes the current items without
// waiting for a quiet window.
func (s *SyncScheduler) PushNow(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.stopTimerLocked()
	s.dispatchLocked(newSyncJob(SyncReplace, reason))
}

// Flush fires a pending debounce immediately.
func (s *SyncScheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushLocked()
}

// Pending reports whether a debounce window is open.
func (s *SyncScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Settle flushes any pending push and waits until no request is in flight.
func (s *SyncScheduler) Settle(ctx context.Context) error {
	s.mu.Lock()
	s.flushLocked()
	if !s.inFlight {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, drops the pending debounce and waits for the
// in-flight request.
func (s *SyncScheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.queued = nil
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncScheduler) fire(gen uint64, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A timer stopped too late still runs; the generation tells it apart.
	if gen != s.gen || s.closed {
		return
	}
	s.timer = nil
	s.dispatchLocked(newSyncJob(SyncReplace, reason))
}

func (s *SyncScheduler) flushLocked() {
	if s.timer == nil || s.closed {
		return
	}
	s.stopTimerLocked()
	s.dispatchLocked(newSyncJob(SyncReplace, "flush"))
}

func (s *SyncScheduler) stopTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *SyncScheduler) dispatchLocked(job SyncJob) {
	if s.inFlight {
		if s.queued != nil {
			s.logger.Debug("sync job superseded", zap.String("job", s.queued.ID), zap.String("by", job.ID))
		}
		s.queued = &job
		return
	}

	s.inFlight = true
	s.idle = make(chan struct{})
	s.wg.Add(1)
	go s.run(job, s.epoch)
}

func (s *SyncScheduler) run(job SyncJob, epoch uint64) {
	defer s.wg.Done()

	for {
		s.execute(job, epoch)

		s.mu.Lock()
		if s.queued == nil {
			s.inFlight = false
			close(s.idle)
			s.mu.Unlock()
			return
		}
		job, epoch = *s.queued, s.epoch
		s.queued = nil
		s.mu.Unlock()
	}
}

// itemsFor reads the lines to push unless the job was cancelled first. The
// read happens under mu so a Cancel followed by a cart reset can never be
// observed half way.
func (s *SyncScheduler) itemsFor(job SyncJob, epoch uint64) ([]domain.CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.logger.Debug("sync job cancelled", zap.String("job", job.ID))
		return nil, false
	}
	return s.lines(), true
}

func (s *SyncScheduler) execute(job SyncJob, epoch uint64) {
	var lines []domain.CartLine
	if job.Kind == SyncReplace {
		var ok bool
		if lines, ok = s.itemsFor(job, epoch); !ok {
			return
		}
	}

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.clock.Now()
	var err error
	switch job.Kind {
	case SyncClear:
		err = s.remote.ClearCart(ctx)
	default:
		_, err = s.remote.ReplaceItems(ctx, lines)
	}

	fields := []zap.Field{
		zap.String("job", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("reason", job.Reason),
		zap.Duration("elapsed", s.clock.Now().Sub(start)),
	}
	if err != nil {
		s.logger.Warn("cart sync failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("cart synced", fields...)
	}

	s.report(SyncResult{Job: job, Err: err})
}

func newSyncJob(kind SyncKind, reason string) SyncJob {
	return SyncJob{ID: uuid.NewString(), Kind: kind, Reason: reason}
}
