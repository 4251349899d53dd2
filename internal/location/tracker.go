package location

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Fix is one reported device position.
type Fix struct {
	Latitude  float64
	Longitude float64
	At        time.Time
}

// Provider supplies the device position used by proximity checks.
type Provider interface {
	// LastKnown returns nil without error when no fix can be obtained.
	LastKnown(ctx context.Context, userID string) (*Fix, error)
}

type userState struct {
	fix         *Fix
	denied      bool
	subscribers map[int]chan Fix
}

// Tracker keeps the most recent fix and permission state reported for each user.
type Tracker struct {
	mu      sync.Mutex
	users   map[string]*userState
	nextSub int
	wait    time.Duration
	logger  *logrus.Logger
}

var _ Provider = (*Tracker)(nil)

func NewTracker(wait time.Duration, logger *logrus.Logger) *Tracker {
	return &Tracker{
		users:  make(map[string]*userState),
		wait:   wait,
		logger: logger,
	}
}

func (t *Tracker) state(userID string) *userState {
	s, ok := t.users[userID]
	if !ok {
		s = &userState{subscribers: make(map[int]chan Fix)}
		t.users[userID] = s
	}
	return s
}

// Report records a new fix and completes any pending one-shot requests for the user.
func (t *Tracker) Report(userID string, fix Fix) {
	if fix.At.IsZero() {
		fix.At = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(userID)
	s.fix = &fix
	for id, ch := range s.subscribers {
		ch <- fix
		delete(s.subscribers, id)
	}
}

// SetPermission records whether location access is granted. Revoking it forgets the last fix.
func (t *Tracker) SetPermission(userID string, granted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(userID)
	s.denied = !granted
	if !granted {
		s.fix = nil
	}
}

// Cached returns the last reported fix without waiting, or nil.
func (t *Tracker) Cached(userID string) *Fix {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.users[userID]
	if !ok || s.denied || s.fix == nil {
		return nil
	}
	fix := *s.fix
	return &fix
}

// LastKnown returns the cached fix, or waits for the next report up to the configured
// timeout. Denied permission and timeouts both yield nil.
func (t *Tracker) LastKnown(ctx context.Context, userID string) (*Fix, error) {
	t.mu.Lock()
	s := t.state(userID)
	if s.denied {
		t.mu.Unlock()
		return nil, nil
	}
	if s.fix != nil {
		fix := *s.fix
		t.mu.Unlock()
		return &fix, nil
	}

	ch := make(chan Fix, 1)
	id := t.nextSub
	t.nextSub++
	s.subscribers[id] = ch
	t.mu.Unlock()

	defer t.unsubscribe(userID, id)

	timer := time.NewTimer(t.wait)
	defer timer.Stop()

	select {
	case fix := <-ch:
		return &fix, nil
	case <-timer.C:
		t.logger.WithField("userId", userID).Debug("LocationTracker.LastKnown.timed out")
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Tracker) unsubscribe(userID string, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.users[userID]; ok {
		delete(s.subscribers, id)
	}
}

// Pending reports how many one-shot requests are waiting for the user.
func (t *Tracker) Pending(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.users[userID]; ok {
		return len(s.subscribers)
	}
	return 0
}
