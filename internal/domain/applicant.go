package domain

import (
	"time"

	"github.com/google/uuid"
)

type EmploymentStatus string

const (
	EmploymentEmployed     EmploymentStatus = "employed"
	EmploymentSelfEmployed EmploymentStatus = "self_employed"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
	EmploymentNotEmployed  EmploymentStatus = "not_employed"
)

func (s EmploymentStatus) IsValid() bool {
	switch s {
	case EmploymentEmployed, EmploymentSelfEmployed, EmploymentUnemployed, EmploymentNotEmployed:
		return true
	default:
		return false
	}
}

type BankingStatus string

const (
	BankingCheckingAndSavings BankingStatus = "checking_and_savings"
	BankingCheckingOnly       BankingStatus = "checking_only"
	BankingNone               BankingStatus = "none"
	BankingOther              BankingStatus = "other"
)

func (s BankingStatus) IsValid() bool {
	switch s {
	case BankingCheckingAndSavings, BankingCheckingOnly, BankingNone, BankingOther:
		return true
	default:
		return false
	}
}

// DebtProfile holds monthly obligations in cents.
type DebtProfile struct {
	Mortgage int64
	Auto     int64
	Credit   int64
	Other    int64
}

func (d DebtProfile) Total() int64 {
	return d.Mortgage + d.Auto + d.Credit + d.Other
}

// Applicant is created on the first application referencing a new SSN and is
// never deleted, only superseded by profile updates.
type Applicant struct {
	ID               uuid.UUID
	SSN              string
	Email            string
	Name             string
	Address          string
	EmploymentStatus EmploymentStatus
	BankingStatus    BankingStatus
	AnnualIncome     int64
	Debts            DebtProfile
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
