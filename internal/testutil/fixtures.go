package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumabank/credit-engine/internal/card"
	"github.com/lumabank/credit-engine/internal/domain"
	"github.com/lumabank/credit-engine/internal/store"
)

// VaultKeyHex is a fixed 32-byte key for test vaults.
const VaultKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func NewVault(t *testing.T) *card.Vault {
	t.Helper()
	v, err := card.NewVault(VaultKeyHex)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v
}

func SeedApplicant(t *testing.T, s store.ApplicantStore, ssn, email string) *domain.Applicant {
	t.Helper()
	now := time.Now().UTC()
	a := &domain.Applicant{
		ID:               uuid.New(),
		SSN:              ssn,
		Email:            email,
		Name:             "Test Applicant",
		Address:          "1 Main St",
		EmploymentStatus: domain.EmploymentEmployed,
		BankingStatus:    domain.BankingCheckingAndSavings,
		AnnualIncome:     6_000_000,
		Debts:            domain.DebtProfile{Mortgage: 500_000},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.CreateApplicant(context.Background(), a); err != nil {
		t.Fatalf("seed applicant: %v", err)
	}
	return a
}

// SeedAccount creates an application and a card account with the given limit
// so ledger tests have something to post against.
func SeedAccount(t *testing.T, s store.Store, applicantID uuid.UUID, ref string, limit int64) *domain.CardAccount {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	app := &domain.CreditApplication{
		Reference:   ref,
		ApplicantID: applicantID,
		Snapshot: domain.FinancialSnapshot{
			EmploymentStatus: domain.EmploymentEmployed,
			BankingStatus:    domain.BankingCheckingAndSavings,
			AnnualIncome:     6_000_000,
		},
		Status:    domain.ApplicationStatusApproved,
		CreatedAt: now,
	}
	if err := s.CreateApplication(ctx, app); err != nil {
		t.Fatalf("seed application: %v", err)
	}

	pan := "4224620000000000"
	acct := &domain.CardAccount{
		ID:             uuid.New(),
		ApplicationRef: ref,
		ApplicantID:    applicantID,
		MaskedNumber:   card.Mask(pan),
		PANCiphertext:  []byte("sealed-" + ref),
		PANFingerprint: card.Fingerprint(pan + ref),
		ExpMonth:       int(now.Month()),
		ExpYear:        now.Year() + 4,
		CreditLimit:    limit,
		APR:            decimal.NewFromFloat(20.24),
		CurrentBalance: 0,
		Version:        0,
		CreatedAt:      now,
	}
	if err := s.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return acct
}

// UniqueSSN derives a distinct nine-digit SSN from an index.
func UniqueSSN(i int) string {
	return fmt.Sprintf("1%08d", i)
}
