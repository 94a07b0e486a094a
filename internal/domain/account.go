package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardAccount is created exactly once per approved application. The full card
// number is sealed before it reaches the store; only the masked form and a
// fingerprint used for collision checks are kept in the clear.
type CardAccount struct {
	ID             uuid.UUID
	ApplicationRef string
	ApplicantID    uuid.UUID
	MaskedNumber   string
	PANCiphertext  []byte
	PANFingerprint string
	ExpMonth       int
	ExpYear        int
	CreditLimit    int64
	APR            decimal.Decimal
	CurrentBalance int64
	Version        int64
	CreatedAt      time.Time
}

// AvailableBalance is derived, never stored: limit minus current balance.
func (a *CardAccount) AvailableBalance() int64 {
	return a.CreditLimit - a.CurrentBalance
}
