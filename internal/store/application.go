package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lumabank/credit-engine/internal/domain"
)

const applicationColumns = `reference, applicant_id, employment_status, banking_status,
	annual_income, debt_mortgage, debt_auto, debt_credit, debt_other, status,
	credit_score, risk_points, dti, total_risk_score, risk_decision,
	credit_limit, apr, decline_reason, created_at, decided_at`

func (p *Postgres) CreateApplication(ctx context.Context, app *domain.CreditApplication) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO credit_applications (
			reference, applicant_id, employment_status, banking_status,
			annual_income, debt_mortgage, debt_auto, debt_credit, debt_other,
			status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		app.Reference, app.ApplicantID,
		app.Snapshot.EmploymentStatus, app.Snapshot.BankingStatus,
		app.Snapshot.AnnualIncome,
		app.Snapshot.Debts.Mortgage, app.Snapshot.Debts.Auto,
		app.Snapshot.Debts.Credit, app.Snapshot.Debts.Other,
		app.Status, app.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "credit_applications_pkey") {
			return fmt.Errorf("CreateApplication: %w", domain.ErrDuplicateReference)
		}
		return fmt.Errorf("CreateApplication: %w", err)
	}
	return nil
}

func (p *Postgres) GetApplication(ctx context.Context, ref string) (*domain.CreditApplication, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM credit_applications WHERE reference = $1`, ref,
	)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetApplication: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetApplication: %w", err)
	}
	return app, nil
}

func (p *Postgres) UpdateApplicationStatus(ctx context.Context, ref string, status domain.ApplicationStatus, meta *domain.DecisionMetadata) error {
	var res sql.Result
	var err error

	if meta == nil {
		res, err = p.db.ExecContext(ctx,
			`UPDATE credit_applications SET status = $1 WHERE reference = $2`,
			status, ref,
		)
	} else {
		var creditLimit *int64
		var apr *string
		if meta.Terms != nil {
			creditLimit = &meta.Terms.CreditLimit
			s := meta.Terms.APR.String()
			apr = &s
		}
		res, err = p.db.ExecContext(ctx,
			`UPDATE credit_applications SET
				status = $1, credit_score = $2, risk_points = $3, dti = $4,
				total_risk_score = $5, risk_decision = $6,
				credit_limit = $7, apr = $8, decline_reason = $9, decided_at = $10
			WHERE reference = $11`,
			status,
			meta.Assessment.CreditScore, meta.Assessment.RiskPoints,
			meta.Assessment.DebtToIncomeRatio.String(),
			meta.Assessment.TotalRiskScore.String(),
			meta.Assessment.Decision,
			creditLimit, apr, meta.DeclineReason, meta.DecidedAt,
			ref,
		)
	}
	if err != nil {
		return fmt.Errorf("UpdateApplicationStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateApplicationStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateApplicationStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func (p *Postgres) DeleteApplication(ctx context.Context, ref string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM credit_applications WHERE reference = $1`, ref,
	)
	if err != nil {
		return fmt.Errorf("DeleteApplication: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteApplication: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("DeleteApplication: %w", domain.ErrNotFound)
	}
	return nil
}

func scanApplication(s scanner) (*domain.CreditApplication, error) {
	var app domain.CreditApplication
	var creditScore, riskPoints sql.NullInt64
	var dti, totalRisk, riskDecision, apr sql.NullString
	var creditLimit sql.NullInt64
	var declineReason sql.NullString

	err := s.Scan(
		&app.Reference, &app.ApplicantID,
		&app.Snapshot.EmploymentStatus, &app.Snapshot.BankingStatus,
		&app.Snapshot.AnnualIncome,
		&app.Snapshot.Debts.Mortgage, &app.Snapshot.Debts.Auto,
		&app.Snapshot.Debts.Credit, &app.Snapshot.Debts.Other,
		&app.Status,
		&creditScore, &riskPoints, &dti, &totalRisk, &riskDecision,
		&creditLimit, &apr, &declineReason,
		&app.CreatedAt, &app.DecidedAt,
	)
	if err != nil {
		return nil, err
	}

	if riskDecision.Valid {
		dtiDec, err := decimal.NewFromString(dti.String)
		if err != nil {
			return nil, fmt.Errorf("scanApplication: dti: %w", err)
		}
		totalDec, err := decimal.NewFromString(totalRisk.String)
		if err != nil {
			return nil, fmt.Errorf("scanApplication: total_risk_score: %w", err)
		}
		app.Assessment = &domain.RiskAssessment{
			CreditScore:       int(creditScore.Int64),
			RiskPoints:        int(riskPoints.Int64),
			DebtToIncomeRatio: dtiDec,
			TotalRiskScore:    totalDec,
			Decision:          domain.Decision(riskDecision.String),
		}
	}
	if creditLimit.Valid && apr.Valid {
		aprDec, err := decimal.NewFromString(apr.String)
		if err != nil {
			return nil, fmt.Errorf("scanApplication: apr: %w", err)
		}
		app.Terms = &domain.CreditTerms{CreditLimit: creditLimit.Int64, APR: aprDec}
	}
	if declineReason.Valid {
		app.DeclineReason = &declineReason.String
	}
	return &app, nil
}
