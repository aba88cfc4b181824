package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"verification-api/internal/models"
)

func newTestAccount(digest string, balance int64) *models.Account {
	return &models.Account{
		ID:        uuid.New().String(),
		KeyDigest: digest,
		Owner:     "owner@example.com",
		Balance:   balance,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func debit(cost int64) MutateFunc {
	return func(account *models.Account) error {
		if account.Balance < cost {
			return errors.New("insufficient")
		}
		account.Balance -= cost
		return nil
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	account := newTestAccount("digest-a", 100)

	if err := store.Create(ctx, account, models.EntryReasonGrant); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.GetByDigest(ctx, "digest-a")
	if err != nil {
		t.Fatalf("GetByDigest: %v", err)
	}
	if got.Balance != 100 || !got.Active || got.ID != account.ID {
		t.Fatalf("unexpected account: %+v", got)
	}

	byID, err := store.GetByID(ctx, account.ID)
	if err != nil || byID.KeyDigest != "digest-a" {
		t.Fatalf("GetByID = %+v, %v", byID, err)
	}

	if _, err := store.GetByDigest(ctx, "unknown"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Create(ctx, newTestAccount("digest-copy", 10), models.EntryReasonGrant)

	got, _ := store.GetByDigest(ctx, "digest-copy")
	got.Balance = 999

	again, _ := store.GetByDigest(ctx, "digest-copy")
	if again.Balance != 10 {
		t.Fatalf("stored record was mutated through a returned copy: %d", again.Balance)
	}
}

func TestMemoryStoreUpdateAbortLeavesRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Create(ctx, newTestAccount("digest-b", 5), models.EntryReasonGrant)

	_, err := store.Update(ctx, "digest-b", models.EntryReasonCharge, debit(6))
	if err == nil {
		t.Fatal("expected mutation error")
	}

	got, _ := store.GetByDigest(ctx, "digest-b")
	if got.Balance != 5 {
		t.Fatalf("balance changed after aborted update: %d", got.Balance)
	}
}

func TestMemoryStoreUpdateRejectsNegativeBalance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Create(ctx, newTestAccount("digest-neg", 5), models.EntryReasonGrant)

	_, err := store.Update(ctx, "digest-neg", models.EntryReasonCharge, func(a *models.Account) error {
		a.Balance -= 10
		return nil
	})
	if !errors.Is(err, ErrNegativeBalance) {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}
}

func TestMemoryStoreConcurrentUpdatesNoLostWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	account := newTestAccount("digest-c", 1000)
	_ = store.Create(ctx, account, models.EntryReasonGrant)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Update(ctx, "digest-c", models.EntryReasonCharge, debit(30)); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, _ := store.GetByDigest(ctx, "digest-c")
	if granted != 33 {
		t.Fatalf("expected 33 granted debits of 30 from 1000, got %d", granted)
	}
	if got.Balance != 1000-int64(granted)*30 {
		t.Fatalf("final balance %d does not match %d grants", got.Balance, granted)
	}

	entries, err := store.ListEntries(ctx, account.ID, 0)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	var sum int64
	for _, e := range entries {
		sum += e.Delta
	}
	if sum != got.Balance {
		t.Fatalf("ledger entries sum to %d, balance is %d", sum, got.Balance)
	}
}

func TestMemoryStoreListEntriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	account := newTestAccount("digest-e", 50)
	_ = store.Create(ctx, account, models.EntryReasonGrant)
	_, _ = store.Update(ctx, "digest-e", models.EntryReasonCharge, debit(10))
	_, _ = store.Update(ctx, "digest-e", models.EntryReasonCharge, debit(10))

	entries, err := store.ListEntries(ctx, account.ID, 2)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].BalanceAfter != 30 || entries[1].BalanceAfter != 40 {
		t.Fatalf("unexpected order: %+v", entries)
	}

	if _, err := store.ListEntries(ctx, "missing", 10); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestMemoryStoreSetActive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	account := newTestAccount("digest-d", 10)
	_ = store.Create(ctx, account, models.EntryReasonGrant)

	updated, err := store.SetActive(ctx, account.ID, false)
	if err != nil || updated.Active {
		t.Fatalf("SetActive = %+v, %v", updated, err)
	}
	if _, err := store.SetActive(ctx, "missing", true); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestMemoryStoreVersionGrowsWithEveryChange(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	account := newTestAccount("digest-v", 20)
	_ = store.Create(ctx, account, models.EntryReasonGrant)

	steps := []struct {
		name    string
		apply   func() error
		version int64
	}{
		{"debit", func() error { _, err := store.Update(ctx, "digest-v", models.EntryReasonCharge, debit(5)); return err }, 1},
		{"refused debit", func() error { _, err := store.Update(ctx, "digest-v", models.EntryReasonCharge, debit(500)); return err }, 1},
		{"deactivate", func() error { _, err := store.SetActive(ctx, account.ID, false); return err }, 2},
		{"reactivate", func() error { _, err := store.SetActive(ctx, account.ID, true); return err }, 3},
	}
	for _, step := range steps {
		_ = step.apply()
		got, _ := store.GetByDigest(ctx, "digest-v")
		if got.Version != step.version {
			t.Fatalf("after %s: version = %d, want %d", step.name, got.Version, step.version)
		}
	}
}

func TestMemoryStoreSettleOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := newTestAccount("digest-s1", 100)
	settlement := &models.Settlement{
		SessionID: "cs_test_1",
		KeyDigest: first.KeyDigest,
		AccountID: first.ID,
		Credits:   100,
		SettledAt: time.Now().UTC(),
	}
	if err := store.SettleOnce(ctx, settlement, first); err != nil {
		t.Fatalf("first SettleOnce: %v", err)
	}

	second := newTestAccount("digest-s2", 100)
	retry := *settlement
	retry.KeyDigest = second.KeyDigest
	retry.AccountID = second.ID
	if err := store.SettleOnce(ctx, &retry, second); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}
	if _, err := store.GetByDigest(ctx, "digest-s2"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatal("second settlement must not create an account")
	}

	got, err := store.GetSettlement(ctx, "cs_test_1")
	if err != nil || got.AccountID != first.ID {
		t.Fatalf("GetSettlement = %+v, %v", got, err)
	}
	if _, err := store.GetSettlement(ctx, "cs_unknown"); !errors.Is(err, ErrSettlementNotFound) {
		t.Fatalf("expected ErrSettlementNotFound, got %v", err)
	}
}

func TestMemoryStoreConcurrentSettleMintsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			account := newTestAccount(uuid.New().String(), 10)
			errs <- store.SettleOnce(ctx, &models.Settlement{
				SessionID: "cs_race",
				KeyDigest: account.KeyDigest,
				AccountID: account.ID,
				Credits:   10,
			}, account)
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadySettled):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one settlement, got %d", ok)
	}
	if len(store.byDigest) != 1 {
		t.Fatalf("expected one account, got %d", len(store.byDigest))
	}
}

func TestUnavailableWrapsBothErrors(t *testing.T) {
	cause := errors.New("connection refused")
	err := unavailable("update account", cause)
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("wrapped error lost a cause: %v", err)
	}
}
