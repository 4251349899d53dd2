package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/spendiq-server/internal/ingest"
)

type mockIngester struct {
	mock.Mock
}

func (m *mockIngester) Ingest(ctx context.Context, n ingest.Notification) (ingest.Result, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(ingest.Result), args.Error(1)
}

func (m *mockIngester) Submit(n ingest.Notification) error {
	return m.Called(n).Error(0)
}

func newTestAPI(t *testing.T, i ingester) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	NewPostNotificationHandler(i).Register(api)
	return api
}

// -- parsePostNotificationInput unit tests --

func TestParsePostNotificationInput_WithPostedAt(t *testing.T) {
	n, err := parsePostNotificationInput(&PostNotificationInput{
		UserID: "u-1",
		Body:   PostNotificationBody{Title: "Nu", Text: "body", PostedAt: "2025-05-10T14:30:00Z"},
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", n.UserID)
	assert.True(t, n.PostedAt.Equal(time.Date(2025, 5, 10, 14, 30, 0, 0, time.UTC)))
}

func TestParsePostNotificationInput_WithoutPostedAt(t *testing.T) {
	n, err := parsePostNotificationInput(&PostNotificationInput{UserID: "u-1", Body: PostNotificationBody{Title: "Nu", Text: "body"}})
	require.NoError(t, err)
	assert.True(t, n.PostedAt.IsZero())
}

func TestParsePostNotificationInput_InvalidPostedAt(t *testing.T) {
	_, err := parsePostNotificationInput(&PostNotificationInput{Body: PostNotificationBody{PostedAt: "yesterday"}})
	assert.Error(t, err)
}

// -- HTTP tests --

func TestHTTP_PostNotification_Accepted(t *testing.T) {
	ing := new(mockIngester)
	ing.On("Submit", ingest.Notification{UserID: "u-1", Title: "Nu", Text: "Netflix te envio $15.000 con motivo de reembolso"}).Return(nil)

	resp := newTestAPI(t, ing).Post("/v1/users/u-1/notifications", PostNotificationBody{
		Title: "Nu",
		Text:  "Netflix te envio $15.000 con motivo de reembolso",
	})

	assert.Equal(t, http.StatusAccepted, resp.Code)
	var body PostNotificationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "accepted", body.Outcome)
	ing.AssertExpectations(t)
	ing.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}

func TestHTTP_PostNotification_WaitRecorded(t *testing.T) {
	txID := uuid.Must(uuid.NewV4())
	accountID := uuid.Must(uuid.NewV4())

	ing := new(mockIngester)
	ing.On("Ingest", mock.Anything, mock.MatchedBy(func(n ingest.Notification) bool {
		return n.UserID == "u-1" && n.Title == "Nu"
	})).Return(ingest.Result{
		Outcome:       ingest.OutcomeRecorded,
		TransactionID: txID,
		AccountID:     accountID,
		Balance:       15000,
	}, nil)

	resp := newTestAPI(t, ing).Post("/v1/users/u-1/notifications?wait=true", PostNotificationBody{
		Title: "Nu",
		Text:  "Netflix te envio $15.000 con motivo de reembolso",
	})

	assert.Equal(t, http.StatusOK, resp.Code)
	var body PostNotificationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "recorded", body.Outcome)
	assert.Equal(t, txID.String(), body.TransactionID)
	assert.Equal(t, accountID.String(), body.AccountID)
	require.NotNil(t, body.Balance)
	assert.Equal(t, int64(15000), *body.Balance)
}

func TestHTTP_PostNotification_WaitIgnored(t *testing.T) {
	ing := new(mockIngester)
	ing.On("Ingest", mock.Anything, mock.Anything).Return(ingest.Result{Outcome: ingest.OutcomeIgnored}, nil)

	resp := newTestAPI(t, ing).Post("/v1/users/u-1/notifications?wait=true", PostNotificationBody{Title: "Promo", Text: "hola"})

	assert.Equal(t, http.StatusOK, resp.Code)
	var body PostNotificationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ignored", body.Outcome)
	assert.Empty(t, body.TransactionID)
	assert.Nil(t, body.Balance)
}

func TestHTTP_PostNotification_WaitLedgerFailure(t *testing.T) {
	ing := new(mockIngester)
	ing.On("Ingest", mock.Anything, mock.Anything).Return(ingest.Result{}, errors.New("db down"))

	resp := newTestAPI(t, ing).Post("/v1/users/u-1/notifications?wait=true", PostNotificationBody{Title: "Nu", Text: "x"})

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestHTTP_PostNotification_Closed(t *testing.T) {
	ing := new(mockIngester)
	ing.On("Submit", mock.Anything).Return(ingest.ErrIngestorClosed)

	resp := newTestAPI(t, ing).Post("/v1/users/u-1/notifications", PostNotificationBody{Title: "Nu", Text: "x"})

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestHTTP_PostNotification_InvalidPostedAt(t *testing.T) {
	ing := new(mockIngester)

	resp := newTestAPI(t, ing).Post("/v1/users/u-1/notifications", PostNotificationBody{Title: "Nu", Text: "x", PostedAt: "nope"})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	ing.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestHTTP_PostNotification_MissingText(t *testing.T) {
	ing := new(mockIngester)

	resp := newTestAPI(t, ing).Post("/v1/users/u-1/notifications", map[string]any{"title": "Nu"})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	ing.AssertNotCalled(t, "Submit", mock.Anything)
}
