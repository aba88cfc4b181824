package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"verification-api/internal/cache"
	"verification-api/internal/models"
	"verification-api/internal/repository"
	"verification-api/internal/utils"
)

var (
	// ErrUnauthorized covers unknown, inactive and under-funded keys alike.
	ErrUnauthorized = errors.New("payment required")
	ErrInvalidCost  = errors.New("cost must be positive")
)

// Gate decides whether a key may consume credits and debits it when it may.
type Gate struct {
	store repository.AccountStore
	cache BalanceCache
}

func NewGate(store repository.AccountStore, balanceCache BalanceCache) *Gate {
	return &Gate{store: store, cache: balanceCache}
}

// AuthorizeAndCharge debits cost from the key's balance in one atomic step.
// A refused key is left exactly as it was.
func (g *Gate) AuthorizeAndCharge(ctx context.Context, secret string, cost int64) (*models.Account, error) {
	if cost <= 0 {
		return nil, ErrInvalidCost
	}
	if !ValidFormat(secret) {
		return nil, ErrUnauthorized
	}

	digest := Digest(secret)
	account, err := g.store.Update(ctx, digest, models.EntryReasonCharge, func(a *models.Account) error {
		if !a.Active || a.Balance < cost {
			return ErrUnauthorized
		}
		now := time.Now().UTC()
		a.Balance -= cost
		a.LastUsedAt = &now
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrUnauthorized), errors.Is(err, repository.ErrAccountNotFound):
		return nil, ErrUnauthorized
	default:
		utils.LogError("Gate", "Charge failed", err)
		return nil, fmt.Errorf("authorize: %w", err)
	}

	utils.LogDebug("Gate", "Charged %d credits to %s, %d left", cost, account.ID, account.Balance)
	rememberBalance(ctx, g.cache, "Gate", account)
	return account, nil
}

// Remaining reports the balance without changing it. Inactive and unknown
// keys are ErrUnauthorized.
func (g *Gate) Remaining(ctx context.Context, secret string) (int64, error) {
	if !ValidFormat(secret) {
		return 0, ErrUnauthorized
	}
	digest := Digest(secret)

	if g.cache != nil {
		var snapshot cache.BalanceSnapshot
		err := g.cache.GetJSON(ctx, cache.BalanceKey(digest), &snapshot)
		switch {
		case err == nil:
			if !snapshot.Active {
				return 0, ErrUnauthorized
			}
			return snapshot.Balance, nil
		case !cache.IsMiss(err):
			utils.LogWarning("Gate", "Balance cache read failed: %v", err)
		}
	}

	account, err := g.store.GetByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, ErrUnauthorized
		}
		return 0, fmt.Errorf("remaining: %w", err)
	}

	rememberBalance(ctx, g.cache, "Gate", account)
	if !account.Active {
		return 0, ErrUnauthorized
	}
	return account.Balance, nil
}

// rememberBalance caches the account as read or written at its version. A
// snapshot older than the cached one is dropped by the cache. When the write
// fails the entry is removed so the next read goes to the store.
func rememberBalance(ctx context.Context, c BalanceCache, component string, account *models.Account) {
	if c == nil {
		return
	}
	key := cache.BalanceKey(account.KeyDigest)
	snapshot := cache.BalanceSnapshot{
		AccountID: account.ID,
		Balance:   account.Balance,
		Active:    account.Active,
		Version:   account.Version,
	}
	if _, err := c.SetBalance(ctx, key, snapshot, cache.BalanceTTL); err != nil {
		utils.LogWarning(component, "Balance cache write failed for %s: %v", account.ID, err)
		if err := c.Delete(ctx, key); err != nil {
			utils.LogWarning(component, "Balance cache invalidation failed for %s: %v", account.ID, err)
		}
	}
}
