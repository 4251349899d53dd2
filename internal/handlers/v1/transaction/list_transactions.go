package transaction

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/spendiq-server/internal/logging"
	"github.com/carson-networks/spendiq-server/internal/storage/transaction"
)

const defaultLimit = 20

// ListTransactionsCursor represents a pagination cursor in responses.
type ListTransactionsCursor struct {
	Position int `json:"position" doc:"Offset for the next page"`
	Limit    int `json:"limit" doc:"Page size"`
}

// ListTransactionsInput is the Huma input for listing transactions.
type ListTransactionsInput struct {
	AccountID string `path:"accountId" format:"uuid" doc:"Account UUID"`
	Position  int    `query:"position" minimum:"0" doc:"Offset for pagination"`
	Limit     int    `query:"limit" minimum:"0" maximum:"100" doc:"Page size, default 20"`
}

// ListTransactionsResponseBody is the response body for listing transactions.
type ListTransactionsResponseBody struct {
	Transactions []Transaction          `json:"transactions" doc:"Page of transactions, newest first"`
	NextCursor   *ListTransactionsCursor `json:"nextCursor,omitempty" doc:"Cursor to fetch the next page, absent on the last page"`
}

// ListTransactionsOutput is the Huma output for listing transactions.
type ListTransactionsOutput struct {
	Body ListTransactionsResponseBody
}

// transactionLister is the interface for listing transactions.
type transactionLister interface {
	List(ctx context.Context, filter *transaction.ListFilter) (*transaction.ListResult, error)
}

// ListTransactionsHandler handles GET /v1/accounts/{accountId}/transactions.
type ListTransactionsHandler struct {
	Transactions transactionLister
}

// NewListTransactionsHandler creates a new ListTransactionsHandler.
func NewListTransactionsHandler(lister transactionLister) *ListTransactionsHandler {
	return &ListTransactionsHandler{Transactions: lister}
}

// Register registers the list transactions endpoint with the Huma API.
func (h *ListTransactionsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-transactions",
		Method:      http.MethodGet,
		Path:        "/v1/accounts/{accountId}/transactions",
		Summary:     "List transactions",
		Description: "Returns a page of the account's transactions, newest first.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

// parseListTransactionsInput parses and validates the API input.
func parseListTransactionsInput(input *ListTransactionsInput) (*transaction.ListFilter, error) {
	accountID, err := uuid.FromString(input.AccountID)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid accountId", err)
	}
	limit := input.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	return &transaction.ListFilter{
		AccountID: accountID,
		Limit:     limit,
		Offset:    input.Position,
	}, nil
}

func toTransaction(tx *transaction.Transaction) Transaction {
	out := Transaction{
		ID:              tx.ID.String(),
		AccountID:       tx.AccountID.String(),
		Amount:          tx.Amount,
		TransactionName: tx.Name,
		TransactionType: string(tx.Type),
		DateTime:        tx.OccurredAt.Format(time.RFC3339),
		Automatic:       tx.Automatic,
		AmountAnomaly:   tx.AmountAnomaly,
		LocationAnomaly: tx.LocationAnomaly,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
	}
	if loc := tx.Location(); loc != nil {
		out.Location = &Location{Latitude: loc.Latitude, Longitude: loc.Longitude}
	}
	return out
}

func (h *ListTransactionsHandler) handle(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
	logData := logging.GetLogData(ctx)
	filter, err := parseListTransactionsInput(input)
	if err != nil {
		return nil, err
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("listTransactionsMs")
	}
	result, err := h.Transactions.List(ctx, filter)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, huma.NewError(http.StatusInternalServerError, "failed to list transactions", err)
	}

	if logData != nil {
		logData.AddData("transactionCount", len(result.Transactions))
	}

	resp := ListTransactionsResponseBody{
		Transactions: make([]Transaction, len(result.Transactions)),
	}
	for i, tx := range result.Transactions {
		resp.Transactions[i] = toTransaction(tx)
	}

	if result.NextCursor != nil {
		resp.NextCursor = &ListTransactionsCursor{
			Position: result.NextCursor.Position,
			Limit:    result.NextCursor.Limit,
		}
	}

	return &ListTransactionsOutput{Body: resp}, nil
}
