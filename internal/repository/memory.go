package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"verification-api/internal/models"
)

// MemoryStore keeps everything in process memory behind one mutex. It is
// only correct for a single process and loses state on restart.
type MemoryStore struct {
	mu          sync.Mutex
	byDigest    map[string]*models.Account
	digestByID  map[string]string
	entries     map[string][]models.LedgerEntry
	settlements map[string]models.Settlement
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byDigest:    make(map[string]*models.Account),
		digestByID:  make(map[string]string),
		entries:     make(map[string][]models.LedgerEntry),
		settlements: make(map[string]models.Settlement),
	}
}

func copyAccount(account *models.Account) *models.Account {
	c := *account
	if account.LastUsedAt != nil {
		lastUsed := *account.LastUsedAt
		c.LastUsedAt = &lastUsed
	}
	return &c
}

func (s *MemoryStore) appendEntry(accountID string, delta, balanceAfter int64, reason string) {
	s.entries[accountID] = append(s.entries[accountID], models.LedgerEntry{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		Delta:        delta,
		BalanceAfter: balanceAfter,
		Reason:       reason,
		CreatedAt:    nowUTC(),
	})
}

// insertLocked requires s.mu.
func (s *MemoryStore) insertLocked(account *models.Account) error {
	if _, exists := s.byDigest[account.KeyDigest]; exists {
		return unavailable("insert account", errDuplicateDigest)
	}
	s.byDigest[account.KeyDigest] = copyAccount(account)
	s.digestByID[account.ID] = account.KeyDigest
	return nil
}

func (s *MemoryStore) Create(_ context.Context, account *models.Account, reason string) error {
	if err := checkBalance(account); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertLocked(account); err != nil {
		return err
	}
	if account.Balance > 0 {
		s.appendEntry(account.ID, account.Balance, account.Balance, reason)
	}
	return nil
}

func (s *MemoryStore) GetByDigest(_ context.Context, digest string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byDigest[digest]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest, ok := s.digestByID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(s.byDigest[digest]), nil
}

// Update holds the store mutex across read, mutate and write, so concurrent
// updates are fully serialized.
func (s *MemoryStore) Update(_ context.Context, digest, reason string, mutate MutateFunc) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byDigest[digest]
	if !ok {
		return nil, ErrAccountNotFound
	}

	working := copyAccount(current)
	if err := mutate(working); err != nil {
		return nil, err
	}
	if err := checkBalance(working); err != nil {
		return nil, err
	}

	// identity fields are not mutable
	working.ID = current.ID
	working.KeyDigest = current.KeyDigest
	working.CreatedAt = current.CreatedAt
	working.Version = current.Version + 1

	if delta := working.Balance - current.Balance; delta != 0 {
		s.appendEntry(working.ID, delta, working.Balance, reason)
	}
	s.byDigest[digest] = working
	return copyAccount(working), nil
}

func (s *MemoryStore) SetActive(_ context.Context, id string, active bool) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest, ok := s.digestByID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	account := s.byDigest[digest]
	account.Active = active
	account.Version++
	return copyAccount(account), nil
}

func (s *MemoryStore) ListEntries(_ context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.digestByID[accountID]; !ok {
		return nil, ErrAccountNotFound
	}

	all := s.entries[accountID]
	entries := make([]models.LedgerEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(entries) == limit {
			break
		}
		entries = append(entries, all[i])
	}
	return entries, nil
}

func (s *MemoryStore) SettleOnce(_ context.Context, settlement *models.Settlement, account *models.Account) error {
	if err := checkBalance(account); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.settlements[settlement.SessionID]; exists {
		return ErrAlreadySettled
	}
	if err := s.insertLocked(account); err != nil {
		return err
	}
	s.appendEntry(account.ID, account.Balance, account.Balance, models.EntryReasonSettlement)
	s.settlements[settlement.SessionID] = *settlement
	return nil
}

func (s *MemoryStore) GetSettlement(_ context.Context, sessionID string) (*models.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settlement, ok := s.settlements[sessionID]
	if !ok {
		return nil, ErrSettlementNotFound
	}
	return &settlement, nil
}
