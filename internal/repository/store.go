package repository

import (
	"context"
	"errors"
	"fmt"

	"verification-api/internal/models"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrSettlementNotFound = errors.New("settlement not found")
	ErrAlreadySettled     = errors.New("payment session already settled")
	ErrNegativeBalance    = errors.New("balance cannot go below zero")
	ErrStoreUnavailable   = errors.New("store unavailable")

	errDuplicateDigest = errors.New("duplicate key digest")
)

// MutateFunc changes an account in place. Returning an error aborts the
// update and leaves the stored record untouched.
type MutateFunc func(account *models.Account) error

// AccountStore persists accounts keyed by key digest. Update must run the
// read, the mutation and the write as one unit per account.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account, reason string) error
	GetByDigest(ctx context.Context, digest string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	Update(ctx context.Context, digest, reason string, mutate MutateFunc) (*models.Account, error)
	SetActive(ctx context.Context, id string, active bool) (*models.Account, error)
	ListEntries(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error)
}

// SettlementStore records which payment sessions already minted a key.
// SettleOnce creates the account and the settlement row together or not at all.
type SettlementStore interface {
	SettleOnce(ctx context.Context, settlement *models.Settlement, account *models.Account) error
	GetSettlement(ctx context.Context, sessionID string) (*models.Settlement, error)
}

type Store interface {
	AccountStore
	SettlementStore
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func checkBalance(account *models.Account) error {
	if account.Balance < 0 {
		return ErrNegativeBalance
	}
	return nil
}
