package proximity

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/spendiq-server/internal/notify"
	"github.com/carson-networks/spendiq-server/internal/proximity"
)

type mockMonitors struct {
	mock.Mock
}

func (m *mockMonitors) Start(userID string) error {
	return m.Called(userID).Error(0)
}

func (m *mockMonitors) Stop(userID string) {
	m.Called(userID)
}

func (m *mockMonitors) Status(userID string) proximity.Status {
	return m.Called(userID).Get(0).(proximity.Status)
}

type staticNotifications map[string][]notify.Notification

func (s staticNotifications) Recent(userID string) []notify.Notification {
	return s[userID]
}

func newTestAPI(t *testing.T, m monitors, n notifications) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	NewHandler(m, n).Register(api)
	return api
}

func decodeStatus(t *testing.T, resp *httptest.ResponseRecorder) StatusResponse {
	t.Helper()
	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHTTP_StartProximity(t *testing.T) {
	m := new(mockMonitors)
	m.On("Start", "u-1").Return(nil)
	m.On("Status", "u-1").Return(proximity.Status{State: proximity.StateScheduled})

	resp := newTestAPI(t, m, staticNotifications{}).Post("/v1/users/u-1/proximity/start")

	assert.Equal(t, http.StatusOK, resp.Code)
	body := decodeStatus(t, resp)
	assert.Equal(t, "scheduled", body.State)
	assert.Empty(t, body.Notifications)
	m.AssertExpectations(t)
}

func TestHTTP_StartProximity_SchedulerFailure(t *testing.T) {
	m := new(mockMonitors)
	m.On("Start", "u-1").Return(errors.New("scheduler stopped"))

	resp := newTestAPI(t, m, staticNotifications{}).Post("/v1/users/u-1/proximity/start")

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	m.AssertNotCalled(t, "Status", mock.Anything)
}

func TestHTTP_StopProximity(t *testing.T) {
	m := new(mockMonitors)
	m.On("Stop", "u-1").Return()
	m.On("Status", "u-1").Return(proximity.Status{State: proximity.StateIdle})

	resp := newTestAPI(t, m, staticNotifications{}).Post("/v1/users/u-1/proximity/stop")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "idle", decodeStatus(t, resp).State)
	m.AssertExpectations(t)
}

func TestHTTP_GetProximity(t *testing.T) {
	lastRun := time.Date(2025, 5, 10, 14, 30, 0, 0, time.UTC)
	m := new(mockMonitors)
	m.On("Status", "u-1").Return(proximity.Status{
		State:     proximity.StateScheduled,
		Notified:  1,
		LastRunAt: lastRun,
		LastCheck: &proximity.CheckResult{Outcome: proximity.OutcomeNotified},
	})
	n := staticNotifications{"u-1": {{
		UserID:       "u-1",
		OfferID:      "o-1",
		Title:        "Special Offer Nearby!",
		Body:         "Cafe is 300 meters away",
		ExpandedBody: "Cafe (300 meters)\n2x1",
		DispatchedAt: lastRun,
	}}}

	resp := newTestAPI(t, m, n).Get("/v1/users/u-1/proximity")

	assert.Equal(t, http.StatusOK, resp.Code)
	body := decodeStatus(t, resp)
	assert.Equal(t, "scheduled", body.State)
	assert.Equal(t, 1, body.NotifiedOffers)
	assert.Equal(t, "2025-05-10T14:30:00Z", body.LastRunAt)
	assert.Equal(t, "notified", body.LastOutcome)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "o-1", body.Notifications[0].OfferID)
	assert.Equal(t, "Cafe is 300 meters away", body.Notifications[0].Body)
}
