package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"verification-api/internal/models"
	"verification-api/internal/utils"
)

type SettlementRepository struct {
	db *pgxpool.Pool
}

func NewSettlementRepository(db *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// SettleOnce inserts the funded account, its settlement ledger entry and the
// settlement row in one transaction. A second call for the same session hits
// the primary key on settlements, inserts nothing and rolls the account back.
func (r *SettlementRepository) SettleOnce(ctx context.Context, settlement *models.Settlement, account *models.Account) error {
	if err := checkBalance(account); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return unavailable("begin settlement", err)
	}
	defer tx.Rollback(ctx)

	if err := insertAccount(ctx, tx, account); err != nil {
		return unavailable("insert settled account", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO settlements (session_id, key_digest, account_id, owner, credits, amount_total, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO NOTHING
	`,
		settlement.SessionID,
		settlement.KeyDigest,
		settlement.AccountID,
		settlement.Owner,
		settlement.Credits,
		settlement.AmountTotal,
		settlement.SettledAt,
	)
	if err != nil {
		return unavailable("insert settlement", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadySettled
	}

	if err := insertEntry(ctx, tx, account.ID, account.Balance, account.Balance, models.EntryReasonSettlement); err != nil {
		return unavailable("insert settlement entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit settlement", err)
	}

	utils.LogDB("SETTLE", fmt.Sprintf("session settled into account %s (%d credits)", account.ID, account.Balance))
	return nil
}

func (r *SettlementRepository) GetSettlement(ctx context.Context, sessionID string) (*models.Settlement, error) {
	var settlement models.Settlement
	err := r.db.QueryRow(ctx, `
		SELECT session_id, key_digest, account_id, owner, credits, amount_total, settled_at
		FROM settlements
		WHERE session_id = $1
	`, sessionID).Scan(
		&settlement.SessionID,
		&settlement.KeyDigest,
		&settlement.AccountID,
		&settlement.Owner,
		&settlement.Credits,
		&settlement.AmountTotal,
		&settlement.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettlementNotFound
		}
		return nil, unavailable("get settlement", err)
	}
	return &settlement, nil
}

// PostgresStore joins both repositories behind the Store interface.
type PostgresStore struct {
	*AccountRepository
	*SettlementRepository
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		AccountRepository:    NewAccountRepository(db),
		SettlementRepository: NewSettlementRepository(db),
	}
}
