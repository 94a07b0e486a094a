package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeFee        TransactionType = "fee"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeReversal   TransactionType = "reversal"
)

type TransactionState string

const (
	TransactionStatePending  TransactionState = "pending"
	TransactionStatePosted   TransactionState = "posted"
	TransactionStateReversed TransactionState = "reversed"
)

// Transaction is append-only. Amount is signed: positive increases the
// account's current balance (purchase, fee), negative decreases it (payment).
// A reversal is a new transaction referencing the original, never a mutation
// of it.
type Transaction struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	Amount       int64
	Type         TransactionType
	Category     string
	State        TransactionState
	OriginalID   *uuid.UUID
	BalanceAfter int64
	CreatedAt    time.Time
}
