package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumabank/credit-engine/internal/domain"
)

const accountColumns = `id, application_ref, applicant_id, masked_number, pan_ciphertext,
	pan_fingerprint, exp_month, exp_year, credit_limit, apr, current_balance, version, created_at`

func (p *Postgres) CreateAccount(ctx context.Context, acct *domain.CardAccount) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO card_accounts (
			id, application_ref, applicant_id, masked_number, pan_ciphertext,
			pan_fingerprint, exp_month, exp_year, credit_limit, apr,
			current_balance, version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		acct.ID, acct.ApplicationRef, acct.ApplicantID,
		acct.MaskedNumber, acct.PANCiphertext, acct.PANFingerprint,
		acct.ExpMonth, acct.ExpYear, acct.CreditLimit, acct.APR.String(),
		acct.CurrentBalance, acct.Version, acct.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "card_accounts_application_ref_key") {
			return fmt.Errorf("CreateAccount: %w", domain.ErrAccountExists)
		}
		if isUniqueViolation(err, "card_accounts_pan_fingerprint_key") {
			return fmt.Errorf("CreateAccount: %w", domain.ErrIssuanceCollision)
		}
		return fmt.Errorf("CreateAccount: %w", err)
	}
	return nil
}

func (p *Postgres) GetAccount(ctx context.Context, id uuid.UUID) (*domain.CardAccount, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM card_accounts WHERE id = $1`, id,
	)
	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetAccount: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return acct, nil
}

func (p *Postgres) GetAccountByApplication(ctx context.Context, ref string) (*domain.CardAccount, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM card_accounts WHERE application_ref = $1`, ref,
	)
	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetAccountByApplication: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetAccountByApplication: %w", err)
	}
	return acct, nil
}

func (p *Postgres) FindAccountByFingerprint(ctx context.Context, fingerprint string) (*domain.CardAccount, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM card_accounts WHERE pan_fingerprint = $1`, fingerprint,
	)
	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FindAccountByFingerprint: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FindAccountByFingerprint: %w", err)
	}
	return acct, nil
}

func (p *Postgres) UpdateAccountBalance(ctx context.Context, id uuid.UUID, newBalance, newVersion int64) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE card_accounts SET current_balance = $1, version = $2
		WHERE id = $3 AND version = $4`,
		newBalance, newVersion, id, newVersion-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateAccountBalance: %w", domain.ErrVersionConflict)
	}
	return nil
}

func scanAccount(s scanner) (*domain.CardAccount, error) {
	var a domain.CardAccount
	var apr string
	err := s.Scan(
		&a.ID, &a.ApplicationRef, &a.ApplicantID,
		&a.MaskedNumber, &a.PANCiphertext, &a.PANFingerprint,
		&a.ExpMonth, &a.ExpYear, &a.CreditLimit, &apr,
		&a.CurrentBalance, &a.Version, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	aprDec, err := decimal.NewFromString(apr)
	if err != nil {
		return nil, fmt.Errorf("scanAccount: apr: %w", err)
	}
	a.APR = aprDec
	return &a, nil
}
