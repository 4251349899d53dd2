// Package scheduler runs named background work: periodic jobs with a flex window and
// one-time jobs retried with exponential backoff. Work is unique by name; enqueueing a name
// that is already active replaces or keeps the existing work according to its policy.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// MinPeriodicInterval is the shortest period accepted for periodic work.
const MinPeriodicInterval = 15 * time.Minute

var (
	ErrSchedulerStopped = errors.New("scheduler stopped")
	errConstraintsUnmet = errors.New("constraints not met")
)

// Job is one execution of scheduled work. It must return promptly once ctx is done.
type Job func(ctx context.Context) error

type Constraints struct {
	RequiresNetwork bool
}

// ExistingWorkPolicy decides what happens when unique work with the same name is active.
type ExistingWorkPolicy int

const (
	// Replace cancels the active work and schedules the new request.
	Replace ExistingWorkPolicy = iota
	// Keep leaves the active work untouched and drops the new request.
	Keep
)

type PeriodicRequest struct {
	Name        string
	Tags        []string
	Interval    time.Duration
	Flex        time.Duration
	Constraints Constraints
	Policy      ExistingWorkPolicy
	Job         Job
}

type OnceRequest struct {
	Name        string
	Tags        []string
	Constraints Constraints
	Policy      ExistingWorkPolicy
	Job         Job
}

type State string

const (
	StateEnqueued State = "enqueued"
	StateRunning  State = "running"
)

// WorkInfo is a snapshot of one active unique work.
type WorkInfo struct {
	Name     string
	Tags     []string
	State    State
	Runs     int
	Periodic bool
}

type entry struct {
	name     string
	tags     []string
	periodic bool
	cancel   context.CancelFunc
	running  bool
	runs     int
}

type Option func(*WorkManager)

// WithMinInterval lowers the periodic interval floor, for tests.
func WithMinInterval(d time.Duration) Option {
	return func(m *WorkManager) { m.minInterval = d }
}

// WithRetryBackoff sets the initial and maximum delay between one-time work attempts.
func WithRetryBackoff(initial, maxDelay time.Duration) Option {
	return func(m *WorkManager) {
		m.retryInitial = initial
		m.retryMax = maxDelay
	}
}

// WithJitter replaces the random source used to place runs inside the flex window. It must
// return values in [0, 1).
func WithJitter(f func() float64) Option {
	return func(m *WorkManager) { m.jitter = f }
}

type WorkManager struct {
	mu      sync.Mutex
	work    map[string]*entry
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connectivity Connectivity
	minInterval  time.Duration
	retryInitial time.Duration
	retryMax     time.Duration
	jitter       func() float64
	logger       *logrus.Logger
}

func NewWorkManager(connectivity Connectivity, logger *logrus.Logger, opts ...Option) *WorkManager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &WorkManager{
		work:         make(map[string]*entry),
		ctx:          ctx,
		cancel:       cancel,
		connectivity: connectivity,
		minInterval:  MinPeriodicInterval,
		retryInitial: 30 * time.Second,
		retryMax:     5 * time.Hour,
		jitter:       rand.Float64,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnqueueUniquePeriodic schedules req.Job to run now and then once per interval, each run
// landing somewhere in the Flex window that opens at its period boundary.
func (m *WorkManager) EnqueueUniquePeriodic(req PeriodicRequest) error {
	if req.Name == "" || req.Job == nil {
		return fmt.Errorf("periodic work needs a name and a job")
	}

	interval := req.Interval
	if interval < m.minInterval {
		m.logger.WithFields(logrus.Fields{
			"work":     req.Name,
			"interval": req.Interval.String(),
		}).Warn("WorkManager.EnqueueUniquePeriodic.interval raised to minimum")
		interval = m.minInterval
	}
	flex := min(max(req.Flex, 0), interval)

	ctx, e, err := m.register(req.Name, req.Tags, true, req.Policy)
	if err != nil || e == nil {
		return err
	}

	go func() {
		defer m.wg.Done()
		defer m.release(e)

		start := time.Now()
		next := start
		for period := 1; ; period++ {
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			err := m.execute(ctx, e, req.Constraints, req.Job)
			if err != nil && ctx.Err() == nil && !errors.Is(err, errConstraintsUnmet) {
				m.logger.WithError(err).WithField("work", e.name).Warn("WorkManager.periodic.run failed")
			}

			last := next
			next = nextRunAt(start, last, period, interval, flex, m.jitter())
			// A run that overran whole periods gives up their slots rather than catching up.
			for now := time.Now(); next.Before(now); {
				period++
				next = nextRunAt(start, last, period, interval, flex, m.jitter())
			}
		}
	}()
	return nil
}

// nextRunAt places run number period j of the way into the flex window opening at
// start+period*interval, and never sooner than interval after last. Runs stay anchored to
// start, so the cadence is exactly one per interval and consecutive runs are at least
// interval apart.
func nextRunAt(start, last time.Time, period int, interval, flex time.Duration, j float64) time.Time {
	at := start.Add(time.Duration(period)*interval + time.Duration(j*float64(flex)))
	if earliest := last.Add(interval); at.Before(earliest) {
		return earliest
	}
	return at
}

// EnqueueUniqueOnce runs req.Job once, retrying with exponential backoff until it succeeds,
// returns a backoff.Permanent error, or is cancelled.
func (m *WorkManager) EnqueueUniqueOnce(req OnceRequest) error {
	if req.Name == "" || req.Job == nil {
		return fmt.Errorf("one-time work needs a name and a job")
	}

	ctx, e, err := m.register(req.Name, req.Tags, false, req.Policy)
	if err != nil || e == nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.retryInitial
	policy.MaxInterval = m.retryMax
	policy.MaxElapsedTime = 0
	policy.Reset()

	go func() {
		defer m.wg.Done()
		defer m.release(e)

		log := m.logger.WithField("work", e.name)
		err := backoff.RetryNotify(
			func() error { return m.execute(ctx, e, req.Constraints, req.Job) },
			backoff.WithContext(policy, ctx),
			func(err error, next time.Duration) {
				log.WithError(err).WithField("retryIn", next.String()).Info("WorkManager.once.retry")
			},
		)
		switch {
		case err == nil:
			log.Debug("WorkManager.once.succeeded")
		case ctx.Err() != nil:
			log.Debug("WorkManager.once.cancelled")
		default:
			log.WithError(err).Warn("WorkManager.once.failed")
		}
	}()
	return nil
}

// register claims name for new work. A nil entry without error means Keep found active work.
func (m *WorkManager) register(name string, tags []string, periodic bool, policy ExistingWorkPolicy) (context.Context, *entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, nil, ErrSchedulerStopped
	}
	if existing, ok := m.work[name]; ok {
		if policy == Keep {
			return nil, nil, nil
		}
		existing.cancel()
		delete(m.work, name)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	e := &entry{
		name:     name,
		tags:     slices.Clone(tags),
		periodic: periodic,
		cancel:   cancel,
	}
	m.work[name] = e
	m.wg.Add(1)
	return ctx, e, nil
}

// release forgets e unless it has already been replaced.
func (m *WorkManager) release(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.cancel()
	if m.work[e.name] == e {
		delete(m.work, e.name)
	}
}

func (m *WorkManager) execute(ctx context.Context, e *entry, constraints Constraints, job Job) (err error) {
	if err := ctx.Err(); err != nil {
		return backoff.Permanent(err)
	}
	if constraints.RequiresNetwork && !m.connectivity.Available(ctx) {
		m.logger.WithField("work", e.name).Debug("WorkManager.execute.deferred, network unavailable")
		return errConstraintsUnmet
	}

	m.mu.Lock()
	e.running = true
	e.runs++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		e.running = false
		m.mu.Unlock()

		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job(ctx)
}

// CancelUnique stops the named work. It reports whether anything was active.
func (m *WorkManager) CancelUnique(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.work[name]
	if !ok {
		return false
	}
	e.cancel()
	delete(m.work, name)
	return true
}

// CancelAllByTag stops every active work carrying tag and returns how many were stopped.
func (m *WorkManager) CancelAllByTag(tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancelled := 0
	for name, e := range m.work {
		if slices.Contains(e.tags, tag) {
			e.cancel()
			delete(m.work, name)
			cancelled++
		}
	}
	return cancelled
}

func (m *WorkManager) Info(name string) (WorkInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.work[name]
	if !ok {
		return WorkInfo{}, false
	}
	state := StateEnqueued
	if e.running {
		state = StateRunning
	}
	return WorkInfo{
		Name:     e.name,
		Tags:     slices.Clone(e.tags),
		State:    state,
		Runs:     e.runs,
		Periodic: e.periodic,
	}, true
}

// Shutdown cancels all work and waits for running jobs to return or ctx to end.
func (m *WorkManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	m.work = make(map[string]*entry)
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
