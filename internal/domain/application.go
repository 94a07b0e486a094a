package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ApplicationStatus string

const (
	ApplicationStatusAccepted   ApplicationStatus = "accepted"
	ApplicationStatusProcessing ApplicationStatus = "processing"
	ApplicationStatusApproved   ApplicationStatus = "approved"
	ApplicationStatusDeclined   ApplicationStatus = "declined"
)

func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusDeclined
}

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDeclined Decision = "declined"
)

// FinancialSnapshot is the applicant's financial state copied at submission
// time. Risk decisions must be reproducible against it, so it is never a live
// reference to the Applicant record.
type FinancialSnapshot struct {
	EmploymentStatus EmploymentStatus
	BankingStatus    BankingStatus
	AnnualIncome     int64
	Debts            DebtProfile
}

// RiskAssessment is computed once per application and never mutated.
type RiskAssessment struct {
	CreditScore       int
	RiskPoints        int
	DebtToIncomeRatio decimal.Decimal
	TotalRiskScore    decimal.Decimal
	Decision          Decision
}

type CreditTerms struct {
	CreditLimit int64
	APR         decimal.Decimal
}

type CreditApplication struct {
	Reference     string
	ApplicantID   uuid.UUID
	Snapshot      FinancialSnapshot
	Status        ApplicationStatus
	Assessment    *RiskAssessment
	Terms         *CreditTerms
	DeclineReason *string
	CreatedAt     time.Time
	DecidedAt     *time.Time
}

// DecisionMetadata carries everything the terminal status write persists
// alongside the status itself.
type DecisionMetadata struct {
	Assessment    *RiskAssessment
	Terms         *CreditTerms
	DeclineReason *string
	DecidedAt     time.Time
}
