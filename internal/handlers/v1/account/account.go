package account

// Account is the API response model for an account.
type Account struct {
	ID            string `json:"id" doc:"Account UUID"`
	Name          string `json:"name" doc:"Account name"`
	Balance       int64  `json:"balance" doc:"Stored balance in minor units"`
	LedgerBalance int64  `json:"ledgerBalance" doc:"Sum of the account's signed transaction amounts"`
	Reconciled    bool   `json:"reconciled" doc:"Stored balance matches the ledger"`
	CreatedAt     string `json:"createdAt" doc:"RFC3339 creation time"`
}
