package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lumabank/credit-engine/internal/domain"
)

const applicantColumns = `id, ssn, email, name, address, employment_status, banking_status,
	annual_income, debt_mortgage, debt_auto, debt_credit, debt_other, created_at, updated_at`

func (p *Postgres) CreateApplicant(ctx context.Context, a *domain.Applicant) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO applicants (
			id, ssn, email, name, address, employment_status, banking_status,
			annual_income, debt_mortgage, debt_auto, debt_credit, debt_other,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.SSN, a.Email, a.Name, a.Address, a.EmploymentStatus, a.BankingStatus,
		a.AnnualIncome, a.Debts.Mortgage, a.Debts.Auto, a.Debts.Credit, a.Debts.Other,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "applicants_ssn_key") {
			return fmt.Errorf("CreateApplicant: %w", domain.ErrDuplicateSSN)
		}
		if isUniqueViolation(err, "applicants_email_key") {
			return fmt.Errorf("CreateApplicant: %w", domain.ErrDuplicateEmail)
		}
		return fmt.Errorf("CreateApplicant: %w", err)
	}
	return nil
}

func (p *Postgres) FindApplicantBySSN(ctx context.Context, ssn string) (*domain.Applicant, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+applicantColumns+` FROM applicants WHERE ssn = $1`, ssn,
	)
	a, err := scanApplicant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FindApplicantBySSN: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FindApplicantBySSN: %w", err)
	}
	return a, nil
}

func scanApplicant(s scanner) (*domain.Applicant, error) {
	var a domain.Applicant
	err := s.Scan(
		&a.ID, &a.SSN, &a.Email, &a.Name, &a.Address,
		&a.EmploymentStatus, &a.BankingStatus,
		&a.AnnualIncome, &a.Debts.Mortgage, &a.Debts.Auto, &a.Debts.Credit, &a.Debts.Other,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
