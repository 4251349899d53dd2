package account

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/spendiq-server/internal/logging"
	"github.com/carson-networks/spendiq-server/internal/storage/account"
)

// ListAccountsInput is the Huma input for listing accounts.
type ListAccountsInput struct {
	UserID string `path:"userId" minLength:"1" doc:"Owner of the accounts"`
}

// ListAccountsResponseBody is the response body for listing accounts.
type ListAccountsResponseBody struct {
	Accounts []Account `json:"accounts" doc:"The user's accounts"`
}

// ListAccountsOutput is the Huma output for listing accounts.
type ListAccountsOutput struct {
	Body ListAccountsResponseBody
}

// accountReader is the interface for listing accounts.
type accountReader interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*account.Account, error)
}

// ledgerReader recomputes balances from transactions.
type ledgerReader interface {
	SumSignedAmounts(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// ListAccountsHandler handles GET /v1/users/{userId}/accounts.
type ListAccountsHandler struct {
	AccountReader accountReader
	LedgerReader  ledgerReader
}

// NewListAccountsHandler creates a new ListAccountsHandler.
func NewListAccountsHandler(accounts accountReader, ledger ledgerReader) *ListAccountsHandler {
	return &ListAccountsHandler{AccountReader: accounts, LedgerReader: ledger}
}

// Register registers the list accounts endpoint with the Huma API.
func (h *ListAccountsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-accounts",
		Method:      http.MethodGet,
		Path:        "/v1/users/{userId}/accounts",
		Summary:     "List accounts",
		Description: "Returns the user's accounts with stored and recomputed balances.",
		Tags:        []string{"Accounts"},
	}, h.handle)
}

func (h *ListAccountsHandler) handle(ctx context.Context, input *ListAccountsInput) (*ListAccountsOutput, error) {
	logData := logging.GetLogData(ctx)

	var stopTimer func()
	if logData != nil {
		logData.AddData("userId", input.UserID)
		stopTimer = logData.AddTiming("listAccountsMs")
	}
	accounts, err := h.AccountReader.ListByOwner(ctx, input.UserID)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "failed to list accounts", err)
	}

	if logData != nil {
		logData.AddData("accountCount", len(accounts))
		stopTimer = logData.AddTiming("sumLedgerMs")
	}

	resp := ListAccountsResponseBody{
		Accounts: make([]Account, len(accounts)),
	}
	for i, acc := range accounts {
		ledger, err := h.LedgerReader.SumSignedAmounts(ctx, acc.ID)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "failed to sum ledger", err)
		}
		resp.Accounts[i] = Account{
			ID:            acc.ID.String(),
			Name:          acc.Name,
			Balance:       acc.Balance,
			LedgerBalance: ledger,
			Reconciled:    ledger == acc.Balance,
			CreatedAt:     acc.CreatedAt.Format(time.RFC3339),
		}
	}
	if stopTimer != nil {
		stopTimer()
	}

	return &ListAccountsOutput{Body: resp}, nil
}
