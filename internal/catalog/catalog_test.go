package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/spendiq-server/internal/localdb"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}

const feed = `[
	{"id": "o-1", "placeName": "Cafe", "offerDescription": "2x1", "latitude": 4.6, "longitude": -74.08, "featured": true},
	{"id": "o-2", "placeName": "Libreria", "recommendationReason": "Books", "latitude": 4.61, "longitude": -74.07, "distance": 120},
	{"placeName": "No id", "latitude": 1, "longitude": 1},
	{"id": "o-4", "placeName": "No coordinates"}
]`

func TestClient_FetchOffers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/offers", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	offers, err := NewClient(server.URL, time.Second, discardLogger()).FetchOffers(context.Background())
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "o-1", offers[0].ID)
	assert.True(t, offers[0].Featured)
	assert.Equal(t, "Books", offers[1].RecommendationReason)
	assert.Equal(t, 120.0, offers[1].Distance)
}

func TestClient_FetchOffers_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second, discardLogger()).FetchOffers(context.Background())
	assert.ErrorContains(t, err, "503")
}

type failingFetcher struct{}

func (failingFetcher) FetchOffers(context.Context) ([]localdb.Offer, error) {
	return nil, errors.New("offline")
}

func TestRefresher_FailureKeepsCache(t *testing.T) {
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "local.db"), discardLogger())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, db.Offers.ReplaceAll(ctx, []localdb.Offer{{ID: "old", PlaceName: "Old", Latitude: 1, Longitude: 1}}))

	refresher := NewRefresher(failingFetcher{}, db.Offers, time.Hour, discardLogger())
	assert.Error(t, refresher.Refresh(ctx))

	offers, err := db.Offers.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "old", offers[0].ID)
}

func TestRefresher_ReplacesCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "local.db"), discardLogger())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, db.Offers.ReplaceAll(ctx, []localdb.Offer{{ID: "old", PlaceName: "Old", Latitude: 1, Longitude: 1}}))

	refresher := NewRefresher(NewClient(server.URL, time.Second, discardLogger()), db.Offers, time.Hour, discardLogger())
	require.NoError(t, refresher.Refresh(ctx))

	offers, err := db.Offers.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "o-1", offers[0].ID)
}
