package notification

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/spendiq-server/internal/ingest"
	"github.com/carson-networks/spendiq-server/internal/logging"
)

type ingester interface {
	Ingest(ctx context.Context, n ingest.Notification) (ingest.Result, error)
	Submit(n ingest.Notification) error
}

// PostNotificationBody is a notification as posted on the device.
type PostNotificationBody struct {
	Title    string `json:"title" required:"true" doc:"Notification title"`
	Text     string `json:"text" required:"true" doc:"Notification body text"`
	PostedAt string `json:"postedAt,omitempty" doc:"RFC3339 time the notification was posted, defaults to now"`
}

type PostNotificationInput struct {
	UserID string `path:"userId" minLength:"1" doc:"Owner of the device"`
	Wait   bool   `query:"wait" doc:"Process synchronously and return the outcome"`
	Body   PostNotificationBody
}

type PostNotificationResponse struct {
	Outcome       string `json:"outcome" doc:"accepted, ignored, duplicate or recorded"`
	TransactionID string `json:"transactionId,omitempty" doc:"Recorded transaction UUID"`
	AccountID     string `json:"accountId,omitempty" doc:"Account UUID the transaction was recorded against"`
	Balance       *int64 `json:"balance,omitempty" doc:"Account balance after the transaction"`
}

type PostNotificationOutput struct {
	Status int
	Body   PostNotificationResponse
}

// PostNotificationHandler handles POST /v1/users/{userId}/notifications.
type PostNotificationHandler struct {
	ingester ingester
}

func NewPostNotificationHandler(i ingester) *PostNotificationHandler {
	return &PostNotificationHandler{ingester: i}
}

func (h *PostNotificationHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "post-notification",
		Method:        http.MethodPost,
		Path:          "/v1/users/{userId}/notifications",
		Summary:       "Ingest notification",
		Description:   "Accepts a bank notification from the device and records the transaction it describes.",
		Tags:          []string{"Notifications"},
		DefaultStatus: http.StatusAccepted,
	}, h.handle)
}

func parsePostNotificationInput(input *PostNotificationInput) (ingest.Notification, error) {
	n := ingest.Notification{
		UserID: input.UserID,
		Title:  input.Body.Title,
		Text:   input.Body.Text,
	}
	if input.Body.PostedAt != "" {
		postedAt, err := time.Parse(time.RFC3339, input.Body.PostedAt)
		if err != nil {
			return ingest.Notification{}, err
		}
		n.PostedAt = postedAt
	}
	return n, nil
}

func (h *PostNotificationHandler) handle(ctx context.Context, input *PostNotificationInput) (*PostNotificationOutput, error) {
	n, err := parsePostNotificationInput(input)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid postedAt", err)
	}
	if logData := logging.GetLogData(ctx); logData != nil {
		logData.AddData("userId", input.UserID)
		logData.AddData("wait", input.Wait)
	}

	if !input.Wait {
		if err := h.ingester.Submit(n); err != nil {
			if errors.Is(err, ingest.ErrIngestorClosed) {
				return nil, huma.NewError(http.StatusServiceUnavailable, "shutting down", err)
			}
			return nil, huma.NewError(http.StatusInternalServerError, "failed to accept notification", err)
		}
		return &PostNotificationOutput{
			Status: http.StatusAccepted,
			Body:   PostNotificationResponse{Outcome: "accepted"},
		}, nil
	}

	result, err := h.ingester.Ingest(ctx, n)
	if err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "failed to record transaction", err)
	}

	resp := PostNotificationResponse{Outcome: string(result.Outcome)}
	if result.Outcome == ingest.OutcomeRecorded {
		balance := result.Balance
		resp.TransactionID = result.TransactionID.String()
		resp.AccountID = result.AccountID.String()
		resp.Balance = &balance
	}
	return &PostNotificationOutput{Status: http.StatusOK, Body: resp}, nil
}
