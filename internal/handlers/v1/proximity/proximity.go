package proximity

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/spendiq-server/internal/logging"
	"github.com/carson-networks/spendiq-server/internal/notify"
	"github.com/carson-networks/spendiq-server/internal/proximity"
)

type monitors interface {
	Start(userID string) error
	Stop(userID string)
	Status(userID string) proximity.Status
}

type notifications interface {
	Recent(userID string) []notify.Notification
}

type UserInput struct {
	UserID string `path:"userId" minLength:"1" doc:"Owner of the device"`
}

// Notification is the API response model for a dispatched offer notification.
type Notification struct {
	OfferID      string `json:"offerId" doc:"Offer id"`
	Title        string `json:"title" doc:"Notification title"`
	Body         string `json:"body" doc:"Short body"`
	ExpandedBody string `json:"expandedBody" doc:"Expanded body"`
	DispatchedAt string `json:"dispatchedAt" doc:"RFC3339 dispatch time"`
}

type StatusResponse struct {
	State          string         `json:"state" doc:"idle, scheduled or running"`
	NotifiedOffers int            `json:"notifiedOffers" doc:"Offers notified in the current session"`
	LastRunAt      string         `json:"lastRunAt,omitempty" doc:"RFC3339 time of the last check"`
	LastOutcome    string         `json:"lastOutcome,omitempty" doc:"Outcome of the last check"`
	Notifications  []Notification `json:"notifications" doc:"Recent notifications, oldest first"`
}

type StatusOutput struct {
	Body StatusResponse
}

// Handler serves the proximity monitoring endpoints.
type Handler struct {
	monitors      monitors
	notifications notifications
}

func NewHandler(m monitors, n notifications) *Handler {
	return &Handler{monitors: m, notifications: n}
}

func (h *Handler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "start-proximity",
		Method:      http.MethodPost,
		Path:        "/v1/users/{userId}/proximity/start",
		Summary:     "Start proximity monitoring",
		Description: "Schedules periodic nearby offer checks for the user. Starting an active session keeps it.",
		Tags:        []string{"Proximity"},
	}, h.start)

	huma.Register(api, huma.Operation{
		OperationID: "stop-proximity",
		Method:      http.MethodPost,
		Path:        "/v1/users/{userId}/proximity/stop",
		Summary:     "Stop proximity monitoring",
		Description: "Cancels the user's checks and ends the session.",
		Tags:        []string{"Proximity"},
	}, h.stop)

	huma.Register(api, huma.Operation{
		OperationID: "get-proximity",
		Method:      http.MethodGet,
		Path:        "/v1/users/{userId}/proximity",
		Summary:     "Get proximity status",
		Description: "Returns the monitoring state and the notifications dispatched to the user.",
		Tags:        []string{"Proximity"},
	}, h.status)
}

func (h *Handler) start(ctx context.Context, input *UserInput) (*StatusOutput, error) {
	addUser(ctx, input.UserID)
	if err := h.monitors.Start(input.UserID); err != nil {
		return nil, huma.NewError(http.StatusServiceUnavailable, "failed to schedule proximity checks", err)
	}
	return h.status(ctx, input)
}

func (h *Handler) stop(ctx context.Context, input *UserInput) (*StatusOutput, error) {
	addUser(ctx, input.UserID)
	h.monitors.Stop(input.UserID)
	return h.status(ctx, input)
}

func (h *Handler) status(_ context.Context, input *UserInput) (*StatusOutput, error) {
	status := h.monitors.Status(input.UserID)

	resp := StatusResponse{
		State:          string(status.State),
		NotifiedOffers: status.Notified,
		Notifications:  []Notification{},
	}
	if !status.LastRunAt.IsZero() {
		resp.LastRunAt = status.LastRunAt.Format(time.RFC3339)
	}
	if status.LastCheck != nil {
		resp.LastOutcome = string(status.LastCheck.Outcome)
	}
	for _, n := range h.notifications.Recent(input.UserID) {
		resp.Notifications = append(resp.Notifications, Notification{
			OfferID:      n.OfferID,
			Title:        n.Title,
			Body:         n.Body,
			ExpandedBody: n.ExpandedBody,
			DispatchedAt: n.DispatchedAt.Format(time.RFC3339),
		})
	}
	return &StatusOutput{Body: resp}, nil
}

func addUser(ctx context.Context, userID string) {
	if logData := logging.GetLogData(ctx); logData != nil {
		logData.AddData("userId", userID)
	}
}
