package models

import "time"

// Account is a prepaid API key record. It is stored under the digest of the
// key; the plaintext key never reaches this struct.
type Account struct {
	ID         string     `json:"id"`
	KeyDigest  string     `json:"-"`
	Owner      string     `json:"owner"`
	Balance    int64      `json:"balance"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	// Version grows by one with every stored change to the record.
	Version    int64      `json:"-"`
}

type CreateKeyRequest struct {
	Owner   string `json:"user_email"`
	Credits *int64 `json:"credits,omitempty"`
}

type CreateKeyResponse struct {
	Status        string `json:"status"`
	APIKey        string `json:"api_key"`
	AccountID     string `json:"account_id"`
	Owner         string `json:"user_email"`
	Credits       int64  `json:"credits"`
	Verifications int64  `json:"verifications"`
	Message       string `json:"message"`
}

type AccountResponse struct {
	ID         string  `json:"id"`
	Owner      string  `json:"user_email"`
	Balance    int64   `json:"credits_remaining"`
	Active     bool    `json:"active"`
	CreatedAt  string  `json:"created_at"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
}

type CreditsResponse struct {
	CreditsRemaining       int64  `json:"credits_remaining"`
	VerificationsAvailable int64  `json:"verifications_available"`
	Status                 string `json:"status"`
}

func NewAccountResponse(account *Account) AccountResponse {
	resp := AccountResponse{
		ID:        account.ID,
		Owner:     account.Owner,
		Balance:   account.Balance,
		Active:    account.Active,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}
	if account.LastUsedAt != nil {
		lastUsed := account.LastUsedAt.Format(time.RFC3339)
		resp.LastUsedAt = &lastUsed
	}
	return resp
}
