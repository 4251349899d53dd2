package limits

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/spendiq-server/internal/localdb"
	"github.com/carson-networks/spendiq-server/internal/logging"
)

type store interface {
	Save(ctx context.Context, limits localdb.Limits) error
	Get(ctx context.Context, userID string) (*localdb.Limits, error)
}

type syncScheduler interface {
	Schedule(userID string) error
}

// Expense is one per-category cap in the API.
type Expense struct {
	Name   string `json:"name" minLength:"1" doc:"Expense category"`
	Amount string `json:"amount" doc:"Decimal amount"`
}

type LimitsBody struct {
	Frequency   string    `json:"frequency" enum:"Daily,Weekly,Monthly" doc:"Period the limits apply to"`
	ByExpense   bool      `json:"byExpense,omitempty" doc:"Limit each expense category"`
	ByQuantity  bool      `json:"byQuantity,omitempty" doc:"Limit the total amount"`
	Expenses    []Expense `json:"expenses,omitempty" doc:"Per-category caps"`
	TotalAmount string    `json:"totalAmount,omitempty" doc:"Decimal total cap"`
}

type UserInput struct {
	UserID string `path:"userId" minLength:"1" doc:"Owner of the limits"`
}

type PutLimitsInput struct {
	UserID string `path:"userId" minLength:"1" doc:"Owner of the limits"`
	Body   LimitsBody
}

type LimitsResponse struct {
	Frequency   string    `json:"frequency" doc:"Period the limits apply to"`
	ByExpense   bool      `json:"byExpense" doc:"Limit each expense category"`
	ByQuantity  bool      `json:"byQuantity" doc:"Limit the total amount"`
	Expenses    []Expense `json:"expenses" doc:"Per-category caps"`
	TotalAmount string    `json:"totalAmount" doc:"Decimal total cap"`
	UpdatedAt   string    `json:"updatedAt" doc:"RFC3339 time the limits were saved"`
}

type LimitsOutput struct {
	Status int
	Body   LimitsResponse
}

// Handler stores spending limits locally and schedules their sync to the ledger.
type Handler struct {
	store     store
	scheduler syncScheduler
	now       func() time.Time
}

func NewHandler(s store, sched syncScheduler) *Handler {
	return &Handler{store: s, scheduler: sched, now: time.Now}
}

func (h *Handler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "put-limits",
		Method:        http.MethodPut,
		Path:          "/v1/users/{userId}/limits",
		Summary:       "Save limits",
		Description:   "Saves the user's spending limits and schedules them to be synced.",
		Tags:          []string{"Limits"},
		DefaultStatus: http.StatusAccepted,
	}, h.put)

	huma.Register(api, huma.Operation{
		OperationID: "get-limits",
		Method:      http.MethodGet,
		Path:        "/v1/users/{userId}/limits",
		Summary:     "Get limits",
		Description: "Returns the limits last saved for the user.",
		Tags:        []string{"Limits"},
	}, h.get)
}

// normalizeAmount accepts a decimal amount and renders it in canonical form. Empty means unset.
func normalizeAmount(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return "", err
	}
	if amount.IsNegative() {
		return "", fmt.Errorf("amount %s is negative", raw)
	}
	return amount.String(), nil
}

func parseLimitsInput(input *PutLimitsInput) (localdb.Limits, error) {
	total, err := normalizeAmount(input.Body.TotalAmount)
	if err != nil {
		return localdb.Limits{}, fmt.Errorf("totalAmount: %w", err)
	}
	expenses := make([]localdb.Expense, 0, len(input.Body.Expenses))
	for _, e := range input.Body.Expenses {
		amount, err := normalizeAmount(e.Amount)
		if err != nil {
			return localdb.Limits{}, fmt.Errorf("expense %q: %w", e.Name, err)
		}
		expenses = append(expenses, localdb.Expense{Name: e.Name, Amount: amount})
	}
	return localdb.Limits{
		UserID:      input.UserID,
		Frequency:   input.Body.Frequency,
		ByExpense:   input.Body.ByExpense,
		ByQuantity:  input.Body.ByQuantity,
		Expenses:    expenses,
		TotalAmount: total,
	}, nil
}

func toResponse(l *localdb.Limits) LimitsResponse {
	expenses := make([]Expense, 0, len(l.Expenses))
	for _, e := range l.Expenses {
		expenses = append(expenses, Expense{Name: e.Name, Amount: e.Amount})
	}
	return LimitsResponse{
		Frequency:   l.Frequency,
		ByExpense:   l.ByExpense,
		ByQuantity:  l.ByQuantity,
		Expenses:    expenses,
		TotalAmount: l.TotalAmount,
		UpdatedAt:   l.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) put(ctx context.Context, input *PutLimitsInput) (*LimitsOutput, error) {
	limits, err := parseLimitsInput(input)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid limits", err)
	}
	limits.UpdatedAt = h.now()

	logData := logging.GetLogData(ctx)
	if logData != nil {
		logData.AddData("userId", input.UserID)
	}

	if err := h.store.Save(ctx, limits); err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "failed to save limits", err)
	}

	// A failed enqueue leaves the limits saved locally; the next save schedules them again.
	if err := h.scheduler.Schedule(input.UserID); err != nil {
		if logData != nil {
			logData.AddData("syncScheduleError", err.Error())
		}
		return nil, huma.NewError(http.StatusServiceUnavailable, "limits saved but sync could not be scheduled", err)
	}

	return &LimitsOutput{Status: http.StatusAccepted, Body: toResponse(&limits)}, nil
}

func (h *Handler) get(ctx context.Context, input *UserInput) (*LimitsOutput, error) {
	limits, err := h.store.Get(ctx, input.UserID)
	if err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "failed to read limits", err)
	}
	if limits == nil {
		return nil, huma.Error404NotFound("no limits saved")
	}
	return &LimitsOutput{Status: http.StatusOK, Body: toResponse(limits)}, nil
}
