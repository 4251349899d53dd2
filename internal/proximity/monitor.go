package proximity

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/internal/location"
	"github.com/carson-networks/spendiq-server/internal/scheduler"
)

type Scheduler interface {
	EnqueueUniquePeriodic(req scheduler.PeriodicRequest) error
	CancelAllByTag(tag string) int
}

type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
)

type Schedule struct {
	Interval time.Duration
	Flex     time.Duration
}

// Status is a snapshot of one user's monitoring session.
type Status struct {
	State     State
	Notified  int
	LastRunAt time.Time
	LastCheck *CheckResult
}

// Monitor drives the periodic proximity check for one user.
type Monitor struct {
	userID    string
	scheduler Scheduler
	locations location.Provider
	matcher   *Matcher
	schedule  Schedule
	logger    *logrus.Logger

	// session is held shared by a check while it may dispatch and exclusively by Stop, so
	// nothing is dispatched for a session once Stop has returned.
	session sync.RWMutex

	mu        sync.Mutex
	state     State
	running   bool
	notified  *NotifiedSet
	lastRunAt time.Time
	lastCheck *CheckResult
}

func NewMonitor(userID string, sched Scheduler, locations location.Provider, matcher *Matcher, schedule Schedule, logger *logrus.Logger) *Monitor {
	return &Monitor{
		userID:    userID,
		scheduler: sched,
		locations: locations,
		matcher:   matcher,
		schedule:  schedule,
		logger:    logger,
		state:     StateIdle,
		notified:  NewNotifiedSet(),
	}
}

func (m *Monitor) workName() string {
	return "proximityCheck:" + m.userID
}

func (m *Monitor) tag() string {
	return "proximity:" + m.userID
}

// Start schedules the periodic check, replacing any schedule already active for the user.
// A session started from idle begins with an empty notified set.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle {
		m.notified = NewNotifiedSet()
	}

	err := m.scheduler.EnqueueUniquePeriodic(scheduler.PeriodicRequest{
		Name:        m.workName(),
		Tags:        []string{m.tag()},
		Interval:    m.schedule.Interval,
		Flex:        m.schedule.Flex,
		Constraints: scheduler.Constraints{RequiresNetwork: true},
		Policy:      scheduler.Replace,
		Job:         m.run,
	})
	if err != nil {
		return err
	}

	m.state = StateScheduled
	m.logger.WithField("userId", m.userID).Info("ProximityMonitor.Start.scheduled")
	return nil
}

// Stop cancels the user's scheduled checks and ends the session.
func (m *Monitor) Stop() {
	m.session.Lock()
	defer m.session.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scheduler.CancelAllByTag(m.tag())
	m.notified = NewNotifiedSet()
	m.state = StateIdle
	m.logger.WithField("userId", m.userID).Info("ProximityMonitor.Stop.cancelled")
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle && m.running {
		return StateRunning
	}
	return m.state
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.state
	if state != StateIdle && m.running {
		state = StateRunning
	}
	return Status{
		State:     state,
		Notified:  m.notified.Len(),
		LastRunAt: m.lastRunAt,
		LastCheck: m.lastCheck,
	}
}

// run is one scheduled check. A missing fix skips the cycle.
func (m *Monitor) run(ctx context.Context) error {
	m.mu.Lock()
	m.running = true
	notified := m.notified
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.lastRunAt = time.Now()
		m.mu.Unlock()
	}()

	log := m.logger.WithField("userId", m.userID)

	fix, err := m.locations.LastKnown(ctx, m.userID)
	if err != nil {
		return err
	}
	if fix == nil {
		log.Debug("ProximityMonitor.run.no location, skipping")
		return nil
	}

	m.session.RLock()
	defer m.session.RUnlock()
	m.mu.Lock()
	ended := m.state == StateIdle || m.notified != notified
	m.mu.Unlock()
	if ended || ctx.Err() != nil {
		log.Debug("ProximityMonitor.run.session ended, skipping")
		return nil
	}

	result, err := m.matcher.Check(ctx, m.userID, *fix, notified)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.lastCheck = &result
	m.mu.Unlock()
	return nil
}

// Service owns the monitors of every user.
type Service struct {
	scheduler Scheduler
	locations location.Provider
	matcher   *Matcher
	schedule  Schedule
	logger    *logrus.Logger

	mu       sync.Mutex
	monitors map[string]*Monitor
}

func NewService(sched Scheduler, locations location.Provider, matcher *Matcher, schedule Schedule, logger *logrus.Logger) *Service {
	return &Service{
		scheduler: sched,
		locations: locations,
		matcher:   matcher,
		schedule:  schedule,
		logger:    logger,
		monitors:  make(map[string]*Monitor),
	}
}

// Monitor returns the user's monitor, creating an idle one on first use.
func (s *Service) Monitor(userID string) *Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[userID]
	if !ok {
		m = NewMonitor(userID, s.scheduler, s.locations, s.matcher, s.schedule, s.logger)
		s.monitors[userID] = m
	}
	return m
}

func (s *Service) Start(userID string) error {
	return s.Monitor(userID).Start()
}

func (s *Service) Stop(userID string) {
	s.Monitor(userID).Stop()
}

func (s *Service) Status(userID string) Status {
	return s.Monitor(userID).Status()
}
