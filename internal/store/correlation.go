package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lumabank/credit-engine/internal/domain"
)

func (p *Postgres) GetCorrelation(ctx context.Context, correlationID string) (*domain.CorrelationRecord, error) {
	var r domain.CorrelationRecord
	err := p.db.QueryRowContext(ctx,
		`SELECT correlation_id, application_ref, direction, attempts, outcome,
			created_at, updated_at, expires_at
		FROM correlation_records
		WHERE correlation_id = $1 AND expires_at > now()`,
		correlationID,
	).Scan(&r.CorrelationID, &r.ApplicationRef, &r.Direction, &r.Attempts,
		&r.Outcome, &r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetCorrelation: %w", err)
	}
	return &r, nil
}

func (p *Postgres) UpsertCorrelation(ctx context.Context, rec *domain.CorrelationRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO correlation_records (
			correlation_id, application_ref, direction, attempts, outcome,
			created_at, updated_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (correlation_id) DO UPDATE SET
			application_ref = EXCLUDED.application_ref,
			attempts = EXCLUDED.attempts,
			outcome = EXCLUDED.outcome,
			updated_at = EXCLUDED.updated_at`,
		rec.CorrelationID, rec.ApplicationRef, rec.Direction, rec.Attempts,
		rec.Outcome, rec.CreatedAt, rec.UpdatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("UpsertCorrelation: %w", err)
	}
	return nil
}

func (p *Postgres) CleanExpiredCorrelations(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM correlation_records WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("CleanExpiredCorrelations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("CleanExpiredCorrelations: rows affected: %w", err)
	}
	return n, nil
}
