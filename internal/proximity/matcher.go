package proximity

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/internal/localdb"
	"github.com/carson-networks/spendiq-server/internal/location"
	"github.com/carson-networks/spendiq-server/internal/notify"
)

const notificationTitle = "Special Offer Nearby!"

// OfferSource reads the locally cached catalog.
type OfferSource interface {
	GetAll(ctx context.Context) ([]localdb.Offer, error)
}

// Match is the nearest offer inside the radius.
type Match struct {
	Offer          localdb.Offer
	DistanceMeters float64
}

type Outcome string

const (
	OutcomeNoOffers        Outcome = "no_offers"
	OutcomeNoneInRange     Outcome = "none_in_range"
	OutcomeAlreadyNotified Outcome = "already_notified"
	OutcomeNotified        Outcome = "notified"
)

type CheckResult struct {
	Outcome      Outcome
	Match        *Match
	Notification *notify.Notification
}

// Nearest returns the closest offer within radius meters of p. Ties keep the earlier offer.
func Nearest(p Point, offers []localdb.Offer, radius float64) *Match {
	var best *Match
	for _, offer := range offers {
		d := Haversine(p, Point{Latitude: offer.Latitude, Longitude: offer.Longitude})
		if d > radius {
			continue
		}
		if best == nil || d < best.DistanceMeters {
			best = &Match{Offer: offer, DistanceMeters: d}
		}
	}
	return best
}

// BuildNotification renders the alert for a match.
func BuildNotification(userID string, m Match) notify.Notification {
	distance := FormatDistance(m.DistanceMeters)
	expanded := fmt.Sprintf("%s (%s)\n%s", m.Offer.PlaceName, distance, m.Offer.Description)
	if m.Offer.RecommendationReason != "" {
		expanded += "\n" + m.Offer.RecommendationReason
	}
	return notify.Notification{
		UserID:       userID,
		OfferID:      m.Offer.ID,
		Title:        notificationTitle,
		Body:         fmt.Sprintf("%s is %s away", m.Offer.PlaceName, distance),
		ExpandedBody: expanded,
	}
}

// Matcher emits at most one notification per check, for the nearest offer in range.
type Matcher struct {
	offers     OfferSource
	dispatcher notify.Dispatcher
	radius     float64
	logger     *logrus.Logger
	now        func() time.Time
}

func NewMatcher(offers OfferSource, dispatcher notify.Dispatcher, radiusMeters float64, logger *logrus.Logger) *Matcher {
	return &Matcher{
		offers:     offers,
		dispatcher: dispatcher,
		radius:     radiusMeters,
		logger:     logger,
		now:        time.Now,
	}
}

// Check matches fix against the cached catalog. When the nearest offer is already in
// notified nothing is sent, even if other offers are in range.
func (m *Matcher) Check(ctx context.Context, userID string, fix location.Fix, notified *NotifiedSet) (CheckResult, error) {
	log := m.logger.WithField("userId", userID)

	offers, err := m.offers.GetAll(ctx)
	if err != nil {
		return CheckResult{}, fmt.Errorf("read offers: %w", err)
	}
	if len(offers) == 0 {
		log.Debug("ProximityMatcher.Check.no cached offers")
		return CheckResult{Outcome: OutcomeNoOffers}, nil
	}

	match := Nearest(Point{Latitude: fix.Latitude, Longitude: fix.Longitude}, offers, m.radius)
	if match == nil {
		return CheckResult{Outcome: OutcomeNoneInRange}, nil
	}

	log = log.WithFields(logrus.Fields{
		"offerId":        match.Offer.ID,
		"distanceMeters": int(match.DistanceMeters),
	})
	if !notified.TryAdd(match.Offer.ID) {
		log.Debug("ProximityMatcher.Check.already notified")
		return CheckResult{Outcome: OutcomeAlreadyNotified, Match: match}, nil
	}

	n := BuildNotification(userID, *match)
	n.DispatchedAt = m.now()
	if err := m.dispatcher.Dispatch(ctx, n); err != nil {
		notified.Remove(match.Offer.ID)
		return CheckResult{}, fmt.Errorf("dispatch notification: %w", err)
	}

	log.Info("ProximityMatcher.Check.notified")
	return CheckResult{Outcome: OutcomeNotified, Match: match, Notification: &n}, nil
}
