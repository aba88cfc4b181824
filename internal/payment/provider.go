package payment

import (
	"context"
	"errors"
)

var (
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrPaymentRejected    = errors.New("payment provider rejected the request")
	ErrPaymentUnavailable = errors.New("payment provider unavailable")
)

// MetadataCredits is the session metadata key carrying the purchased credits.
const MetadataCredits = "credits"

type SessionRequest struct {
	UnitAmountCents int64
	Quantity        int64
	SuccessURL      string
	CancelURL       string
	CustomerEmail   string
	Metadata        map[string]string
}

// Session is a payable checkout session. AmountTotal is in minor units.
type Session struct {
	ID          string
	URL         string
	AmountTotal int64
}

// Outcome is what the provider reports about a checkout session.
type Outcome struct {
	SessionID   string
	Paid        bool
	AmountTotal int64
	PayerEmail  string
	Metadata    map[string]string
}

// Provider is the card-payment collaborator. Implementations must bound
// every call and report timeouts as ErrPaymentUnavailable.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	ResolveSession(ctx context.Context, sessionID string) (*Outcome, error)
}
