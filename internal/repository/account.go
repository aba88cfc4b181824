package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"verification-api/internal/models"
	"verification-api/internal/utils"
)

const accountColumns = `id, key_digest, owner, balance, active, created_at, last_used_at, version`

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.KeyDigest,
		&account.Owner,
		&account.Balance,
		&account.Active,
		&account.CreatedAt,
		&account.LastUsedAt,
		&account.Version,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func insertAccount(ctx context.Context, q querier, account *models.Account) error {
	_, err := q.Exec(ctx, `
		INSERT INTO api_keys (id, key_digest, owner, balance, active, created_at, last_used_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		account.ID,
		account.KeyDigest,
		account.Owner,
		account.Balance,
		account.Active,
		account.CreatedAt,
		account.LastUsedAt,
		account.Version,
	)
	return err
}

func insertEntry(ctx context.Context, q querier, accountID string, delta, balanceAfter int64, reason string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO credit_entries (id, account_id, delta, balance_after, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.New().String(), accountID, delta, balanceAfter, reason)
	return err
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account, reason string) error {
	if err := checkBalance(account); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return unavailable("begin create", err)
	}
	defer tx.Rollback(ctx)

	if err := insertAccount(ctx, tx, account); err != nil {
		return unavailable("insert account", err)
	}
	if account.Balance > 0 {
		if err := insertEntry(ctx, tx, account.ID, account.Balance, account.Balance, reason); err != nil {
			return unavailable("insert grant entry", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit create", err)
	}

	utils.LogDB("CREATE KEY", fmt.Sprintf("account %s funded with %d credits", account.ID, account.Balance))
	return nil
}

func (r *AccountRepository) GetByDigest(ctx context.Context, digest string) (*models.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM api_keys WHERE key_digest = $1`, digest)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, unavailable("get account", err)
	}
	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAccountNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM api_keys WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, unavailable("get account by id", err)
	}
	return account, nil
}

// Update locks the row with SELECT ... FOR UPDATE so a concurrent debit on the
// same key waits for this transaction to finish before reading the balance.
func (r *AccountRepository) Update(ctx context.Context, digest, reason string, mutate MutateFunc) (*models.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, unavailable("begin update", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM api_keys WHERE key_digest = $1 FOR UPDATE`, digest)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, unavailable("lock account", err)
	}

	before, version := account.Balance, account.Version
	if err := mutate(account); err != nil {
		return nil, err
	}
	if err := checkBalance(account); err != nil {
		return nil, err
	}
	account.Version = version + 1

	_, err = tx.Exec(ctx, `
		UPDATE api_keys
		SET balance = $1, active = $2, last_used_at = $3, version = $4
		WHERE id = $5
	`, account.Balance, account.Active, account.LastUsedAt, account.Version, account.ID)
	if err != nil {
		return nil, unavailable("update account", err)
	}

	if delta := account.Balance - before; delta != 0 {
		if err := insertEntry(ctx, tx, account.ID, delta, account.Balance, reason); err != nil {
			return nil, unavailable("insert entry", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit update", err)
	}

	return account, nil
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAccountNotFound
	}
	row := r.db.QueryRow(ctx, `
		UPDATE api_keys
		SET active = $1, version = version + 1
		WHERE id = $2
		RETURNING `+accountColumns, active, id)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, unavailable("set active", err)
	}

	utils.LogDB("SET ACTIVE", fmt.Sprintf("account %s active=%t", id, active))
	return account, nil
}

func (r *AccountRepository) ListEntries(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return nil, ErrAccountNotFound
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, delta, balance_after, reason, created_at
		FROM credit_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, accountID, pgLimit(limit))
	if err != nil {
		return nil, unavailable("list entries", err)
	}
	defer rows.Close()

	entries := make([]models.LedgerEntry, 0)
	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.Delta,
			&entry.BalanceAfter,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, unavailable("scan entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate entries", err)
	}

	return entries, nil
}

// pgLimit maps a non-positive limit to NULL, which Postgres reads as no limit.
func pgLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
