package models

import "time"

// Settlement marks a payment session as already converted into a key.
type Settlement struct {
	SessionID   string    `json:"session_id"`
	KeyDigest   string    `json:"-"`
	AccountID   string    `json:"account_id"`
	Owner       string    `json:"owner"`
	Credits     int64     `json:"credits"`
	AmountTotal int64     `json:"amount_total"`
	SettledAt   time.Time `json:"settled_at"`
}

type PurchaseResponse struct {
	CheckoutURL   string  `json:"checkout_url"`
	SessionID     string  `json:"session_id"`
	TotalAmount   float64 `json:"total_amount"`
	Credits       int64   `json:"credits"`
	Verifications int64   `json:"verifications"`
}

type PaymentSuccessResponse struct {
	Status                 string            `json:"status"`
	Message                string            `json:"message"`
	APIKey                 string            `json:"api_key"`
	Credits                int64             `json:"credits"`
	VerificationsAvailable int64             `json:"verifications_available"`
	Owner                  string            `json:"user_email"`
	AmountPaid             string            `json:"amount_paid"`
	Instructions           map[string]string `json:"instructions"`
}
