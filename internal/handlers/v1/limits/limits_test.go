package limits

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/spendiq-server/internal/localdb"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, limits localdb.Limits) error {
	return m.Called(ctx, limits).Error(0)
}

func (m *mockStore) Get(ctx context.Context, userID string) (*localdb.Limits, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*localdb.Limits), args.Error(1)
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) Schedule(userID string) error {
	return m.Called(userID).Error(0)
}

var savedAt = time.Date(2025, 5, 10, 14, 30, 0, 0, time.UTC)

func newTestAPI(t *testing.T, s store, sched syncScheduler) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	h := NewHandler(s, sched)
	h.now = func() time.Time { return savedAt }
	h.Register(api)
	return api
}

func sampleBody() LimitsBody {
	return LimitsBody{
		Frequency:   "Weekly",
		ByExpense:   true,
		Expenses:    []Expense{{Name: "Food", Amount: "150000.00"}},
		TotalAmount: "400000",
	}
}

// -- parseLimitsInput unit tests --

func TestParseLimitsInput_NormalizesAmounts(t *testing.T) {
	limits, err := parseLimitsInput(&PutLimitsInput{UserID: "u-1", Body: sampleBody()})
	require.NoError(t, err)

	assert.Equal(t, "u-1", limits.UserID)
	assert.Equal(t, "400000", limits.TotalAmount)
	assert.Equal(t, []localdb.Expense{{Name: "Food", Amount: "150000"}}, limits.Expenses)
}

func TestParseLimitsInput_RejectsBadAmounts(t *testing.T) {
	body := sampleBody()
	body.TotalAmount = "lots"
	_, err := parseLimitsInput(&PutLimitsInput{UserID: "u-1", Body: body})
	assert.Error(t, err)

	body = sampleBody()
	body.Expenses[0].Amount = "-5"
	_, err = parseLimitsInput(&PutLimitsInput{UserID: "u-1", Body: body})
	assert.ErrorContains(t, err, "Food")
}

// -- HTTP tests --

func TestHTTP_PutLimits_SavesAndSchedules(t *testing.T) {
	s := new(mockStore)
	s.On("Save", mock.Anything, mock.MatchedBy(func(l localdb.Limits) bool {
		return l.UserID == "u-1" && l.Frequency == "Weekly" && l.UpdatedAt.Equal(savedAt)
	})).Return(nil)
	sched := new(mockScheduler)
	sched.On("Schedule", "u-1").Return(nil)

	resp := newTestAPI(t, s, sched).Put("/v1/users/u-1/limits", sampleBody())

	assert.Equal(t, http.StatusAccepted, resp.Code)
	var body LimitsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Weekly", body.Frequency)
	assert.Equal(t, "2025-05-10T14:30:00Z", body.UpdatedAt)
	s.AssertExpectations(t)
	sched.AssertExpectations(t)
}

func TestHTTP_PutLimits_SaveFailureDoesNotSchedule(t *testing.T) {
	s := new(mockStore)
	s.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	sched := new(mockScheduler)

	resp := newTestAPI(t, s, sched).Put("/v1/users/u-1/limits", sampleBody())

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	sched.AssertNotCalled(t, "Schedule", mock.Anything)
}

func TestHTTP_PutLimits_ScheduleFailure(t *testing.T) {
	s := new(mockStore)
	s.On("Save", mock.Anything, mock.Anything).Return(nil)
	sched := new(mockScheduler)
	sched.On("Schedule", "u-1").Return(errors.New("scheduler stopped"))

	resp := newTestAPI(t, s, sched).Put("/v1/users/u-1/limits", sampleBody())

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestHTTP_PutLimits_InvalidFrequency(t *testing.T) {
	s := new(mockStore)
	body := sampleBody()
	body.Frequency = "Yearly"

	// Huma's enum schema validation rejects this before the handler runs.
	resp := newTestAPI(t, s, new(mockScheduler)).Put("/v1/users/u-1/limits", body)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	s.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestHTTP_GetLimits(t *testing.T) {
	s := new(mockStore)
	s.On("Get", mock.Anything, "u-1").Return(&localdb.Limits{
		UserID:      "u-1",
		Frequency:   "Daily",
		TotalAmount: "10000",
		UpdatedAt:   savedAt,
	}, nil)

	resp := newTestAPI(t, s, new(mockScheduler)).Get("/v1/users/u-1/limits")

	assert.Equal(t, http.StatusOK, resp.Code)
	var body LimitsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Daily", body.Frequency)
	assert.Equal(t, "10000", body.TotalAmount)
	assert.Empty(t, body.Expenses)
}

func TestHTTP_GetLimits_NotFound(t *testing.T) {
	s := new(mockStore)
	s.On("Get", mock.Anything, "u-2").Return(nil, nil)

	resp := newTestAPI(t, s, new(mockScheduler)).Get("/v1/users/u-2/limits")

	assert.Equal(t, http.StatusNotFound, resp.Code)
}
