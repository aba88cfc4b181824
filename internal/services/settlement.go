package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"verification-api/internal/config"
	"verification-api/internal/events"
	"verification-api/internal/models"
	"verification-api/internal/payment"
	"verification-api/internal/repository"
	"verification-api/internal/utils"
)

var (
	ErrPaymentIncomplete = errors.New("payment not completed")
	ErrAlreadySettled    = repository.ErrAlreadySettled
	ErrCreditsOutOfRange = errors.New("credits out of purchasable range")
)

type SettlementResult struct {
	Secret      string
	AccountID   string
	Credits     int64
	Owner       string
	AmountTotal int64
}

// SettlementService turns paid checkout sessions into funded keys, at most
// one key per session.
type SettlementService struct {
	store    repository.Store
	provider payment.Provider
	cfg      *config.Config
	events   *EventDispatcher
}

func NewSettlementService(store repository.Store, provider payment.Provider, cfg *config.Config, dispatcher *EventDispatcher) *SettlementService {
	return &SettlementService{store: store, provider: provider, cfg: cfg, events: dispatcher}
}

func (s *SettlementService) CreateSession(ctx context.Context, credits int64, email string) (*payment.Session, error) {
	if credits < s.cfg.MinPurchaseCredits || credits > s.cfg.MaxPurchaseCredits {
		return nil, fmt.Errorf("%w: %d not in %d..%d", ErrCreditsOutOfRange, credits, s.cfg.MinPurchaseCredits, s.cfg.MaxPurchaseCredits)
	}

	session, err := s.provider.CreateSession(ctx, payment.SessionRequest{
		UnitAmountCents: s.cfg.PricePerCreditCents,
		Quantity:        credits,
		SuccessURL:      s.cfg.SuccessURL(),
		CancelURL:       s.cfg.CancelURL(),
		CustomerEmail:   strings.TrimSpace(email),
		Metadata:        map[string]string{payment.MetadataCredits: strconv.FormatInt(credits, 10)},
	})
	if err != nil {
		utils.LogError("SettlementService", "Checkout session creation failed", err)
		return nil, err
	}

	utils.LogInfo("SettlementService", "Checkout session %s created for %d credits", session.ID, credits)
	return session, nil
}

// Settle mints a key for a paid session. A session that already minted one
// returns ErrAlreadySettled; provider failures record nothing and can be retried.
func (s *SettlementService) Settle(ctx context.Context, sessionID string) (*SettlementResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, payment.ErrSessionNotFound
	}

	_, err := s.store.GetSettlement(ctx, sessionID)
	switch {
	case err == nil:
		return nil, ErrAlreadySettled
	case !errors.Is(err, repository.ErrSettlementNotFound):
		return nil, fmt.Errorf("settle %s: %w", sessionID, err)
	}

	outcome, err := s.provider.ResolveSession(ctx, sessionID)
	if err != nil {
		utils.LogError("SettlementService", fmt.Sprintf("Resolving session %s failed", sessionID), err)
		return nil, err
	}
	if !outcome.Paid {
		utils.LogWarning("SettlementService", "Session %s is not paid", sessionID)
		return nil, ErrPaymentIncomplete
	}

	credits, err := strconv.ParseInt(strings.TrimSpace(outcome.Metadata[payment.MetadataCredits]), 10, 64)
	if err != nil || credits <= 0 {
		return nil, ErrInvalidCredits
	}

	owner := strings.TrimSpace(outcome.PayerEmail)
	if owner == "" {
		owner = placeholderOwner(sessionID)
	}

	secret, account, err := newAccount(owner, credits)
	if err != nil {
		return nil, err
	}

	settlement := &models.Settlement{
		SessionID:   sessionID,
		KeyDigest:   account.KeyDigest,
		AccountID:   account.ID,
		Owner:       owner,
		Credits:     credits,
		AmountTotal: outcome.AmountTotal,
		SettledAt:   time.Now().UTC(),
	}
	if err := s.store.SettleOnce(ctx, settlement, account); err != nil {
		if errors.Is(err, repository.ErrAlreadySettled) {
			utils.LogWarning("SettlementService", "Session %s settled concurrently", sessionID)
			return nil, ErrAlreadySettled
		}
		return nil, fmt.Errorf("settle %s: %w", sessionID, err)
	}

	utils.LogSuccess("SettlementService", "Session %s settled: key %s, %d credits", sessionID, account.ID, credits)
	s.events.Dispatch(events.RoutingKeyIssued, events.KeyIssued{
		AccountID: account.ID,
		Owner:     owner,
		Credits:   credits,
		Source:    models.EntryReasonSettlement,
		SessionID: sessionID,
		Timestamp: settlement.SettledAt,
	})

	return &SettlementResult{
		Secret:      secret,
		AccountID:   account.ID,
		Credits:     credits,
		Owner:       owner,
		AmountTotal: outcome.AmountTotal,
	}, nil
}

func placeholderOwner(sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return "user_" + short + "@stripe.customer"
}
