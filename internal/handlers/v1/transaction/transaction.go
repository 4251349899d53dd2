package transaction

// Location is where the device was when the transaction was recorded.
type Location struct {
	Latitude  float64 `json:"latitude" doc:"Latitude in degrees"`
	Longitude float64 `json:"longitude" doc:"Longitude in degrees"`
}

// Transaction is the API response model for a transaction.
// It is used only for responses, not for request bodies.
type Transaction struct {
	ID              string    `json:"id" doc:"Transaction UUID"`
	AccountID       string    `json:"accountID" doc:"Account UUID"`
	Amount          int64     `json:"amount" doc:"Amount in minor units, always positive"`
	TransactionName string    `json:"transactionName" doc:"Counterparty name"`
	TransactionType string    `json:"transactionType" doc:"Income or Expense"`
	DateTime        string    `json:"dateTime" doc:"RFC3339 time the transaction happened"`
	Automatic       bool      `json:"automatic" doc:"Recorded from a device notification"`
	Location        *Location `json:"location,omitempty" doc:"Device position when recorded"`
	AmountAnomaly   bool      `json:"amountAnomaly" doc:"Flagged by the anomaly service for its amount"`
	LocationAnomaly bool      `json:"locationAnomaly" doc:"Flagged by the anomaly service for its location"`
	CreatedAt       string    `json:"createdAt" doc:"RFC3339 creation time"`
}
