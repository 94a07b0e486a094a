package workflow

import (
	"fmt"
	"regexp"

	"github.com/lumabank/credit-engine/internal/domain"
)

var (
	ssnPattern   = regexp.MustCompile(`^(\d{3}-\d{2}-\d{4}|\d{9})$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// validate rejects malformed submissions before any state is created.
func validate(sub Submission) error {
	if sub.Reference == "" {
		return fmt.Errorf("%w: reference is required", domain.ErrValidation)
	}
	if !ssnPattern.MatchString(sub.SSN) {
		return fmt.Errorf("%w: ssn: invalid format", domain.ErrValidation)
	}
	if !emailPattern.MatchString(sub.Email) {
		return fmt.Errorf("%w: email: invalid format", domain.ErrValidation)
	}
	if sub.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if sub.Address == "" {
		return fmt.Errorf("%w: address is required", domain.ErrValidation)
	}
	if !sub.EmploymentStatus.IsValid() {
		return fmt.Errorf("%w: employment status %q", domain.ErrValidation, sub.EmploymentStatus)
	}
	if !sub.BankingStatus.IsValid() {
		return fmt.Errorf("%w: banking status %q", domain.ErrValidation, sub.BankingStatus)
	}
	if sub.AnnualIncome <= 0 {
		return fmt.Errorf("validate: %w", domain.ErrInvalidFinancials)
	}
	if sub.Debts.Mortgage < 0 || sub.Debts.Auto < 0 || sub.Debts.Credit < 0 || sub.Debts.Other < 0 {
		return fmt.Errorf("%w: debt components must be non-negative", domain.ErrValidation)
	}
	return nil
}

// normalizeSSN strips the dashed form down to nine digits so lookups hit the
// same key either way.
func normalizeSSN(ssn string) string {
	if len(ssn) == 11 {
		return ssn[:3] + ssn[4:6] + ssn[7:]
	}
	return ssn
}
