package models

import "time"

const (
	EntryReasonGrant      = "grant"
	EntryReasonSettlement = "settlement"
	EntryReasonCharge     = "charge"
)

// LedgerEntry records one balance change together with the balance it left.
type LedgerEntry struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balance_after"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

type LedgerEntryListResponse struct {
	AccountID string        `json:"account_id"`
	Entries   []LedgerEntry `json:"entries"`
	Total     int           `json:"total"`
}
