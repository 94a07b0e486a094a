package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumabank/credit-engine/internal/domain"
	"github.com/lumabank/credit-engine/internal/store"
	"github.com/lumabank/credit-engine/internal/testutil"
)

func setupStore(t *testing.T) *store.Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed store tests in short mode")
	}
	return testutil.SetupTestStore(t)
}

func TestPostgresApplicants(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	created := testutil.SeedApplicant(t, s, testutil.UniqueSSN(1), "one@example.com")

	t.Run("find by ssn", func(t *testing.T) {
		got, err := s.FindApplicantBySSN(ctx, created.SSN)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, created.Email, got.Email)
		assert.Equal(t, created.Debts, got.Debts)
	})

	t.Run("duplicate ssn", func(t *testing.T) {
		dup := *created
		dup.ID = uuid.New()
		dup.Email = "different@example.com"
		err := s.CreateApplicant(ctx, &dup)
		require.ErrorIs(t, err, domain.ErrDuplicateSSN)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := *created
		dup.ID = uuid.New()
		dup.SSN = testutil.UniqueSSN(2)
		err := s.CreateApplicant(ctx, &dup)
		require.ErrorIs(t, err, domain.ErrDuplicateEmail)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.FindApplicantBySSN(ctx, testutil.UniqueSSN(99))
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPostgresApplications(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	applicant := testutil.SeedApplicant(t, s, testutil.UniqueSSN(1), "app@example.com")
	now := time.Now().UTC().Truncate(time.Microsecond)

	app := &domain.CreditApplication{
		Reference:   "APP-pg-1",
		ApplicantID: applicant.ID,
		Snapshot: domain.FinancialSnapshot{
			EmploymentStatus: domain.EmploymentEmployed,
			BankingStatus:    domain.BankingCheckingAndSavings,
			AnnualIncome:     6_000_000,
			Debts:            domain.DebtProfile{Mortgage: 800_000, Auto: 200_000},
		},
		Status:    domain.ApplicationStatusAccepted,
		CreatedAt: now,
	}
	require.NoError(t, s.CreateApplication(ctx, app))

	t.Run("duplicate reference", func(t *testing.T) {
		err := s.CreateApplication(ctx, app)
		require.ErrorIs(t, err, domain.ErrDuplicateReference)
	})

	t.Run("accepted round trip", func(t *testing.T) {
		got, err := s.GetApplication(ctx, app.Reference)
		require.NoError(t, err)
		assert.Equal(t, domain.ApplicationStatusAccepted, got.Status)
		assert.Equal(t, app.Snapshot, got.Snapshot)
		assert.Nil(t, got.Assessment)
		assert.Nil(t, got.Terms)
		assert.Nil(t, got.DecidedAt)
	})

	t.Run("status without meta", func(t *testing.T) {
		require.NoError(t, s.UpdateApplicationStatus(ctx, app.Reference, domain.ApplicationStatusProcessing, nil))
		got, err := s.GetApplication(ctx, app.Reference)
		require.NoError(t, err)
		assert.Equal(t, domain.ApplicationStatusProcessing, got.Status)
	})

	t.Run("approved with meta", func(t *testing.T) {
		meta := &domain.DecisionMetadata{
			Assessment: &domain.RiskAssessment{
				CreditScore:       767,
				RiskPoints:        0,
				DebtToIncomeRatio: decimal.RequireFromString("16.6666666666666667"),
				TotalRiskScore:    decimal.RequireFromString("16.6666666666666667"),
				Decision:          domain.DecisionApproved,
			},
			Terms:     &domain.CreditTerms{CreditLimit: 500_000, APR: decimal.NewFromFloat(16.24)},
			DecidedAt: now,
		}
		require.NoError(t, s.UpdateApplicationStatus(ctx, app.Reference, domain.ApplicationStatusApproved, meta))

		got, err := s.GetApplication(ctx, app.Reference)
		require.NoError(t, err)
		assert.Equal(t, domain.ApplicationStatusApproved, got.Status)
		require.NotNil(t, got.Assessment)
		assert.Equal(t, 767, got.Assessment.CreditScore)
		assert.True(t, got.Assessment.TotalRiskScore.Equal(meta.Assessment.TotalRiskScore),
			"total risk score %s", got.Assessment.TotalRiskScore)
		require.NotNil(t, got.Terms)
		assert.Equal(t, int64(500_000), got.Terms.CreditLimit)
		assert.True(t, got.Terms.APR.Equal(decimal.NewFromFloat(16.24)))
		require.NotNil(t, got.DecidedAt)
	})

	t.Run("declined with reason", func(t *testing.T) {
		declined := &domain.CreditApplication{
			Reference:   "APP-pg-2",
			ApplicantID: applicant.ID,
			Snapshot:    app.Snapshot,
			Status:      domain.ApplicationStatusAccepted,
			CreatedAt:   now,
		}
		require.NoError(t, s.CreateApplication(ctx, declined))

		reason := "total risk score 105.00 at or above approval cut-off"
		meta := &domain.DecisionMetadata{
			Assessment: &domain.RiskAssessment{
				CreditScore:       300,
				RiskPoints:        30,
				DebtToIncomeRatio: decimal.RequireFromString("75"),
				TotalRiskScore:    decimal.RequireFromString("105"),
				Decision:          domain.DecisionDeclined,
			},
			DeclineReason: &reason,
			DecidedAt:     now,
		}
		require.NoError(t, s.UpdateApplicationStatus(ctx, declined.Reference, domain.ApplicationStatusDeclined, meta))

		got, err := s.GetApplication(ctx, declined.Reference)
		require.NoError(t, err)
		assert.Equal(t, domain.ApplicationStatusDeclined, got.Status)
		require.NotNil(t, got.DeclineReason)
		assert.Equal(t, reason, *got.DeclineReason)
		assert.Nil(t, got.Terms)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.DeleteApplication(ctx, "APP-pg-2"))
		_, err := s.GetApplication(ctx, "APP-pg-2")
		require.ErrorIs(t, err, domain.ErrNotFound)

		err = s.DeleteApplication(ctx, "APP-pg-2")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("update unknown reference", func(t *testing.T) {
		err := s.UpdateApplicationStatus(ctx, "APP-missing", domain.ApplicationStatusProcessing, nil)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPostgresAccounts(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	applicant := testutil.SeedApplicant(t, s, testutil.UniqueSSN(1), "acct@example.com")
	acct := testutil.SeedAccount(t, s, applicant.ID, "APP-acct-1", 500_000)

	t.Run("get by id", func(t *testing.T) {
		got, err := s.GetAccount(ctx, acct.ID)
		require.NoError(t, err)
		assert.Equal(t, acct.MaskedNumber, got.MaskedNumber)
		assert.Equal(t, acct.PANCiphertext, got.PANCiphertext)
		assert.True(t, got.APR.Equal(acct.APR))
		assert.Equal(t, int64(500_000), got.AvailableBalance())
	})

	t.Run("get by application", func(t *testing.T) {
		got, err := s.GetAccountByApplication(ctx, "APP-acct-1")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, got.ID)

		_, err = s.GetAccountByApplication(ctx, "APP-missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("find by fingerprint", func(t *testing.T) {
		got, err := s.FindAccountByFingerprint(ctx, acct.PANFingerprint)
		require.NoError(t, err)
		assert.Equal(t, acct.ID, got.ID)

		_, err = s.FindAccountByFingerprint(ctx, "no-such-fingerprint")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate application reference", func(t *testing.T) {
		dup := *acct
		dup.ID = uuid.New()
		dup.PANFingerprint = "fp-acct-dup"
		err := s.CreateAccount(ctx, &dup)
		require.ErrorIs(t, err, domain.ErrAccountExists)
	})

	t.Run("duplicate fingerprint", func(t *testing.T) {
		applicant2 := testutil.SeedApplicant(t, s, testutil.UniqueSSN(2), "acct2@example.com")
		other := testutil.SeedAccount(t, s, applicant2.ID, "APP-acct-2", 100_000)

		dup := *other
		dup.ID = uuid.New()
		dup.ApplicationRef = "APP-acct-3"
		app := &domain.CreditApplication{
			Reference:   "APP-acct-3",
			ApplicantID: applicant2.ID,
			Snapshot:    domain.FinancialSnapshot{EmploymentStatus: domain.EmploymentEmployed, BankingStatus: domain.BankingCheckingAndSavings, AnnualIncome: 1},
			Status:      domain.ApplicationStatusApproved,
			CreatedAt:   time.Now().UTC(),
		}
		require.NoError(t, s.CreateApplication(ctx, app))

		err := s.CreateAccount(ctx, &dup)
		require.ErrorIs(t, err, domain.ErrIssuanceCollision)
	})

	t.Run("versioned balance update", func(t *testing.T) {
		require.NoError(t, s.UpdateAccountBalance(ctx, acct.ID, 150_000, 1))

		got, err := s.GetAccount(ctx, acct.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(150_000), got.CurrentBalance)
		assert.Equal(t, int64(1), got.Version)

		err = s.UpdateAccountBalance(ctx, acct.ID, 200_000, 1)
		require.ErrorIs(t, err, domain.ErrVersionConflict, "stale version must not win")

		err = s.UpdateAccountBalance(ctx, uuid.New(), 0, 1)
		require.ErrorIs(t, err, domain.ErrVersionConflict)
	})
}

func TestPostgresTransactions(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	applicant := testutil.SeedApplicant(t, s, testutil.UniqueSSN(1), "tx@example.com")
	acct := testutil.SeedAccount(t, s, applicant.ID, "APP-tx-1", 500_000)

	base := time.Now().UTC().Truncate(time.Microsecond)
	var first *domain.Transaction
	for i := 0; i < 3; i++ {
		tx := &domain.Transaction{
			ID:           uuid.New(),
			AccountID:    acct.ID,
			Amount:       int64((i + 1) * 10_000),
			Type:         domain.TransactionTypePurchase,
			Category:     "misc",
			State:        domain.TransactionStatePosted,
			BalanceAfter: int64((i + 1) * 10_000),
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.AppendTransaction(ctx, tx))
		if i == 0 {
			first = tx
		}
	}

	t.Run("get", func(t *testing.T) {
		got, err := s.GetTransaction(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Amount, got.Amount)
		assert.Nil(t, got.OriginalID)

		_, err = s.GetTransaction(ctx, uuid.New())
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		txs, total, err := s.ListTransactions(ctx, acct.ID, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, txs, 2)
		assert.Equal(t, int64(30_000), txs[0].Amount)
		assert.Equal(t, int64(20_000), txs[1].Amount)

		txs, _, err = s.ListTransactions(ctx, acct.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, int64(10_000), txs[0].Amount)
	})

	t.Run("reversal link round trip", func(t *testing.T) {
		rev := &domain.Transaction{
			ID:           uuid.New(),
			AccountID:    acct.ID,
			Amount:       -first.Amount,
			Type:         domain.TransactionTypeReversal,
			Category:     first.Category,
			State:        domain.TransactionStatePosted,
			OriginalID:   &first.ID,
			BalanceAfter: 50_000,
			CreatedAt:    base.Add(time.Minute),
		}
		require.NoError(t, s.AppendTransaction(ctx, rev))
		require.NoError(t, s.UpdateTransactionState(ctx, first.ID, domain.TransactionStateReversed))

		got, err := s.GetTransaction(ctx, rev.ID)
		require.NoError(t, err)
		require.NotNil(t, got.OriginalID)
		assert.Equal(t, first.ID, *got.OriginalID)

		orig, err := s.GetTransaction(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStateReversed, orig.State)
	})

	t.Run("delete compensation row", func(t *testing.T) {
		orphan := &domain.Transaction{
			ID:           uuid.New(),
			AccountID:    acct.ID,
			Amount:       1_000,
			Type:         domain.TransactionTypePurchase,
			Category:     "misc",
			State:        domain.TransactionStatePosted,
			BalanceAfter: 1_000,
			CreatedAt:    base.Add(2 * time.Minute),
		}
		require.NoError(t, s.AppendTransaction(ctx, orphan))
		require.NoError(t, s.DeleteTransaction(ctx, orphan.ID))

		_, err := s.GetTransaction(ctx, orphan.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)

		err = s.DeleteTransaction(ctx, uuid.New())
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("update state unknown id", func(t *testing.T) {
		err := s.UpdateTransactionState(ctx, uuid.New(), domain.TransactionStateReversed)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPostgresCorrelations(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	rec := &domain.CorrelationRecord{
		CorrelationID:  "corr-pg-1",
		ApplicationRef: "APP-corr-pg-1",
		Direction:      domain.DirectionInbound,
		Outcome:        domain.CorrelationPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(time.Hour),
	}
	require.NoError(t, s.UpsertCorrelation(ctx, rec))

	t.Run("round trip", func(t *testing.T) {
		got, err := s.GetCorrelation(ctx, rec.CorrelationID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, rec.ApplicationRef, got.ApplicationRef)
		assert.Equal(t, domain.CorrelationPending, got.Outcome)
	})

	t.Run("absent is nil without error", func(t *testing.T) {
		got, err := s.GetCorrelation(ctx, "corr-unknown")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("upsert updates outcome and attempts", func(t *testing.T) {
		rec.Outcome = domain.CorrelationDelivered
		rec.Attempts = 2
		rec.UpdatedAt = now.Add(time.Second)
		require.NoError(t, s.UpsertCorrelation(ctx, rec))

		got, err := s.GetCorrelation(ctx, rec.CorrelationID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.CorrelationDelivered, got.Outcome)
		assert.Equal(t, 2, got.Attempts)
	})

	t.Run("expired records are invisible and cleaned", func(t *testing.T) {
		expired := &domain.CorrelationRecord{
			CorrelationID:  "corr-pg-old",
			ApplicationRef: "APP-corr-pg-old",
			Direction:      domain.DirectionInbound,
			Outcome:        domain.CorrelationDelivered,
			CreatedAt:      now.Add(-2 * time.Hour),
			UpdatedAt:      now.Add(-2 * time.Hour),
			ExpiresAt:      now.Add(-time.Hour),
		}
		require.NoError(t, s.UpsertCorrelation(ctx, expired))

		got, err := s.GetCorrelation(ctx, expired.CorrelationID)
		require.NoError(t, err)
		assert.Nil(t, got)

		n, err := s.CleanExpiredCorrelations(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		live, err := s.GetCorrelation(ctx, rec.CorrelationID)
		require.NoError(t, err)
		assert.NotNil(t, live)
	})
}
