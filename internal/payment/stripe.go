package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"verification-api/internal/utils"
)

const (
	productName        = "Company Verification API Credits"
	productDescription = "Credits for company verification operations"
)

type StripeProvider struct {
	api     *client.API
	timeout time.Duration
}

func NewStripeProvider(secretKey string, timeout time.Duration) *StripeProvider {
	httpClient := &http.Client{Timeout: timeout}
	api := client.New(secretKey, stripe.NewBackends(httpClient))

	utils.LogSuccess("StripeProvider", "Initialized Stripe checkout client (timeout: %v)", timeout)
	return &StripeProvider{api: api, timeout: timeout}
}

func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(productName),
						Description: stripe.String(productDescription),
					},
					UnitAmount: stripe.Int64(req.UnitAmountCents),
				},
				Quantity: stripe.Int64(req.Quantity),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	params.Context = ctx

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classify(ctx, "create checkout session", err)
	}

	return &Session{
		ID:          session.ID,
		URL:         session.URL,
		AmountTotal: session.AmountTotal,
	}, nil
}

func (p *StripeProvider) ResolveSession(ctx context.Context, sessionID string) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, classify(ctx, "retrieve checkout session", err)
	}

	outcome := &Outcome{
		SessionID:   session.ID,
		Paid:        session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: session.AmountTotal,
		Metadata:    session.Metadata,
	}
	if session.CustomerDetails != nil {
		outcome.PayerEmail = session.CustomerDetails.Email
	}
	if outcome.PayerEmail == "" {
		outcome.PayerEmail = session.CustomerEmail
	}
	return outcome, nil
}

// classify maps Stripe and transport failures onto the package sentinels.
// 404 means the session does not exist, other 4xx are rejections, and
// everything else (timeouts, 5xx, network) is retryable.
func classify(ctx context.Context, op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
		case stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %s", op, ErrPaymentRejected, stripeErr.Msg)
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrPaymentUnavailable, ctx.Err())
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPaymentUnavailable, err)
}
