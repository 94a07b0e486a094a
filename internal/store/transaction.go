package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lumabank/credit-engine/internal/domain"
)

const transactionColumns = `id, account_id, amount, type, category, state,
	original_id, balance_after, created_at`

func (p *Postgres) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO transactions (
			id, account_id, amount, type, category, state,
			original_id, balance_after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tx.ID, tx.AccountID, tx.Amount, tx.Type, tx.Category, tx.State,
		tx.OriginalID, tx.BalanceAfter, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("AppendTransaction: %w", err)
	}
	return nil
}

func (p *Postgres) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetTransaction: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

func (p *Postgres) UpdateTransactionState(ctx context.Context, id uuid.UUID, state domain.TransactionState) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE transactions SET state = $1 WHERE id = $2`, state, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateTransactionState: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateTransactionState: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateTransactionState: %w", domain.ErrNotFound)
	}
	return nil
}

func (p *Postgres) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteTransaction: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("DeleteTransaction: %w", domain.ErrNotFound)
	}
	return nil
}

func (p *Postgres) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: rows: %w", err)
	}
	return txs, total, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.ID, &t.AccountID, &t.Amount, &t.Type, &t.Category, &t.State,
		&t.OriginalID, &t.BalanceAfter, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
