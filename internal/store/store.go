// Package store is the durable-state boundary of the engine. Each operation
// is atomic at the single-record level; the workflow, ledger, and bridge
// compose them. Two implementations ship: Postgres for production and an
// in-memory store for tests and lightweight deduplication.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumabank/credit-engine/internal/domain"
)

type ApplicantStore interface {
	// CreateApplicant fails with ErrDuplicateSSN or ErrDuplicateEmail when
	// either unique attribute is already taken.
	CreateApplicant(ctx context.Context, a *domain.Applicant) error
	FindApplicantBySSN(ctx context.Context, ssn string) (*domain.Applicant, error)
}

type ApplicationStore interface {
	CreateApplication(ctx context.Context, app *domain.CreditApplication) error
	GetApplication(ctx context.Context, ref string) (*domain.CreditApplication, error)
	UpdateApplicationStatus(ctx context.Context, ref string, status domain.ApplicationStatus, meta *domain.DecisionMetadata) error
	DeleteApplication(ctx context.Context, ref string) error
}

type AccountStore interface {
	CreateAccount(ctx context.Context, acct *domain.CardAccount) error
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.CardAccount, error)
	GetAccountByApplication(ctx context.Context, ref string) (*domain.CardAccount, error)
	FindAccountByFingerprint(ctx context.Context, fingerprint string) (*domain.CardAccount, error)
	// UpdateAccountBalance fails with ErrVersionConflict unless the stored
	// version is exactly newVersion-1.
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, newBalance, newVersion int64) error
}

type TransactionStore interface {
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	UpdateTransactionState(ctx context.Context, id uuid.UUID, state domain.TransactionState) error
	// DeleteTransaction removes a row whose balance write never landed.
	// Ledger compensation only; settled history stays append-only.
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error)
}

type CorrelationStore interface {
	// GetCorrelation returns (nil, nil) when no live record exists.
	GetCorrelation(ctx context.Context, correlationID string) (*domain.CorrelationRecord, error)
	UpsertCorrelation(ctx context.Context, rec *domain.CorrelationRecord) error
	CleanExpiredCorrelations(ctx context.Context) (int64, error)
}

type Store interface {
	ApplicantStore
	ApplicationStore
	AccountStore
	TransactionStore
	CorrelationStore
}
