package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Notification is a user-facing alert about a nearby offer.
type Notification struct {
	UserID       string
	OfferID      string
	Title        string
	Body         string
	ExpandedBody string
	DispatchedAt time.Time
}

type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

const defaultOutboxSize = 20

// Outbox keeps the most recent notifications per user in memory.
type Outbox struct {
	mu     sync.Mutex
	size   int
	byUser map[string][]Notification
	logger *logrus.Logger
}

var _ Dispatcher = (*Outbox)(nil)

func NewOutbox(size int, logger *logrus.Logger) *Outbox {
	if size < 1 {
		size = defaultOutboxSize
	}
	return &Outbox{
		size:   size,
		byUser: make(map[string][]Notification),
		logger: logger,
	}
}

func (o *Outbox) Dispatch(_ context.Context, n Notification) error {
	if n.DispatchedAt.IsZero() {
		n.DispatchedAt = time.Now()
	}

	o.mu.Lock()
	list := append(o.byUser[n.UserID], n)
	if len(list) > o.size {
		list = list[len(list)-o.size:]
	}
	o.byUser[n.UserID] = list
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"userId":  n.UserID,
		"offerId": n.OfferID,
		"title":   n.Title,
	}).Info("Outbox.Dispatch.sent")
	return nil
}

// Recent returns the user's notifications, oldest first.
func (o *Outbox) Recent(userID string) []Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Notification(nil), o.byUser[userID]...)
}

// Multi sends each notification to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, n Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
