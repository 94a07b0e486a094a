package card

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/lumabank/credit-engine/internal/domain"
	"github.com/lumabank/credit-engine/internal/logging"
)

const panLength = 16

type accountFinder interface {
	FindAccountByFingerprint(ctx context.Context, fingerprint string) (*domain.CardAccount, error)
}

// Issuer materializes card accounts for approved applications: a PAN with
// the bank's BIN prefix and a Luhn check digit, a CVV, and an expiration
// date offset from issuance. PAN generation retries on collision within a
// bounded budget; exhausting it is fatal for the application.
type Issuer struct {
	bin            string
	validityMonths int
	maxRetries     int
	vault          *Vault
	accounts       accountFinder
}

// Issued carries the one-time sensitive material alongside the account. The
// CVV is never persisted; it exists only in this result.
type Issued struct {
	Account *domain.CardAccount
	CVV     string
}

func NewIssuer(bin string, validityMonths, maxRetries int, vault *Vault, accounts accountFinder) *Issuer {
	return &Issuer{
		bin:            bin,
		validityMonths: validityMonths,
		maxRetries:     maxRetries,
		vault:          vault,
		accounts:       accounts,
	}
}

func (i *Issuer) Issue(ctx context.Context, applicantID uuid.UUID, applicationRef string, terms *domain.CreditTerms) (*Issued, error) {
	pan, fingerprint, err := i.generatePAN(ctx)
	if err != nil {
		return nil, fmt.Errorf("Issue: %w", err)
	}

	ciphertext, err := i.vault.Seal(pan)
	if err != nil {
		return nil, fmt.Errorf("Issue: %w", err)
	}

	cvv, err := randomDigits(3)
	if err != nil {
		return nil, fmt.Errorf("Issue: cvv: %w", err)
	}

	now := time.Now().UTC()
	exp := now.AddDate(0, i.validityMonths, 0)

	acct := &domain.CardAccount{
		ID:             uuid.New(),
		ApplicationRef: applicationRef,
		ApplicantID:    applicantID,
		MaskedNumber:   Mask(pan),
		PANCiphertext:  ciphertext,
		PANFingerprint: fingerprint,
		ExpMonth:       int(exp.Month()),
		ExpYear:        exp.Year(),
		CreditLimit:    terms.CreditLimit,
		APR:            terms.APR,
		CurrentBalance: 0,
		Version:        0,
		CreatedAt:      now,
	}

	logging.Audit(ctx).Info("card issued",
		"account_id", acct.ID,
		"application_ref", applicationRef,
		"masked_number", acct.MaskedNumber,
		"credit_limit", terms.CreditLimit,
	)

	return &Issued{Account: acct, CVV: cvv}, nil
}

func (i *Issuer) generatePAN(ctx context.Context) (pan, fingerprint string, err error) {
	for attempt := 0; attempt < i.maxRetries; attempt++ {
		suffix, err := randomDigits(panLength - len(i.bin) - 1)
		if err != nil {
			return "", "", fmt.Errorf("generatePAN: %w", err)
		}
		partial := i.bin + suffix
		candidate := fmt.Sprintf("%s%d", partial, luhnCheckDigit(partial))
		fp := Fingerprint(candidate)

		_, err = i.accounts.FindAccountByFingerprint(ctx, fp)
		if errors.Is(err, domain.ErrNotFound) {
			return candidate, fp, nil
		}
		if err != nil {
			return "", "", fmt.Errorf("generatePAN: %w", err)
		}
	}
	return "", "", fmt.Errorf("generatePAN: after %d attempts: %w", i.maxRetries, domain.ErrIssuanceCollision)
}

// Mask keeps the BIN and the last four digits.
func Mask(pan string) string {
	if len(pan) < 10 {
		return pan
	}
	masked := make([]byte, len(pan))
	for idx := range masked {
		if idx < 6 || idx >= len(pan)-4 {
			masked[idx] = pan[idx]
		} else {
			masked[idx] = '*'
		}
	}
	return string(masked)
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for idx := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[idx] = byte('0' + v.Int64())
	}
	return string(digits), nil
}
