package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumabank/credit-engine/internal/domain"
	"github.com/lumabank/credit-engine/internal/keyedmutex"
	"github.com/lumabank/credit-engine/internal/logging"
	"github.com/lumabank/credit-engine/internal/store"
)

// Engine owns the balance invariants of a card account:
// availableBalance = creditLimit - currentBalance, both never negative.
// Postings on the same account are serialized through a per-account lock, so
// validation and the balance write observe one consistent snapshot.
type ledgerStore interface {
	store.AccountStore
	store.TransactionStore
}

type Engine struct {
	store ledgerStore
	locks *keyedmutex.KeyedMutex
}

func NewEngine(s ledgerStore) *Engine {
	return &Engine{store: s, locks: keyedmutex.New()}
}

// Post validates and appends a transaction. Positive amounts increase the
// current balance and are rejected with ErrInsufficientAvailableBalance when
// they would push it above the credit limit; negative amounts are rejected
// with ErrExcessivePayment when they would push it below zero.
func (e *Engine) Post(ctx context.Context, accountID uuid.UUID, amount int64, typ domain.TransactionType, category string) (*domain.Transaction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("Post: %w", domain.ErrInvalidAmount)
	}
	if typ == domain.TransactionTypeReversal {
		return nil, fmt.Errorf("Post: reversals go through Reverse: %w", domain.ErrInvalidReversal)
	}

	e.locks.Lock(accountID.String())
	defer e.locks.Unlock(accountID.String())

	return e.append(ctx, accountID, amount, typ, category, nil)
}

// Reverse appends a compensating transaction for a posted original and marks
// the original reversed. The original is never mutated beyond its state.
func (e *Engine) Reverse(ctx context.Context, accountID, originalID uuid.UUID) (*domain.Transaction, error) {
	e.locks.Lock(accountID.String())
	defer e.locks.Unlock(accountID.String())

	orig, err := e.store.GetTransaction(ctx, originalID)
	if err != nil {
		return nil, fmt.Errorf("Reverse: %w", err)
	}
	if orig.AccountID != accountID {
		return nil, fmt.Errorf("Reverse: transaction belongs to another account: %w", domain.ErrInvalidReversal)
	}
	if orig.State != domain.TransactionStatePosted {
		return nil, fmt.Errorf("Reverse: original is %s: %w", orig.State, domain.ErrInvalidReversal)
	}

	rev, err := e.append(ctx, accountID, -orig.Amount, domain.TransactionTypeReversal, orig.Category, &orig.ID)
	if err != nil {
		return nil, fmt.Errorf("Reverse: %w", err)
	}

	if err := e.store.UpdateTransactionState(ctx, orig.ID, domain.TransactionStateReversed); err != nil {
		return nil, fmt.Errorf("Reverse: mark original: %w", err)
	}

	return rev, nil
}

// Statement lists an account's transactions newest first.
func (e *Engine) Statement(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	txs, total, err := e.store.ListTransactions(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("Statement: %w", err)
	}
	return txs, total, nil
}

func (e *Engine) append(ctx context.Context, accountID uuid.UUID, amount int64, typ domain.TransactionType, category string, originalID *uuid.UUID) (*domain.Transaction, error) {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("append: %w", err)
	}

	newBalance := acct.CurrentBalance + amount
	if newBalance > acct.CreditLimit {
		return nil, fmt.Errorf("append: %w", domain.ErrInsufficientAvailableBalance)
	}
	if newBalance < 0 {
		return nil, fmt.Errorf("append: %w", domain.ErrExcessivePayment)
	}

	tx := &domain.Transaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		Amount:       amount,
		Type:         typ,
		Category:     category,
		State:        domain.TransactionStatePosted,
		OriginalID:   originalID,
		BalanceAfter: newBalance,
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.store.AppendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("append: %w", err)
	}
	if err := e.store.UpdateAccountBalance(ctx, accountID, newBalance, acct.Version+1); err != nil {
		// The row is only valid together with its balance write; remove it
		// when the versioned update loses to another writer.
		if derr := e.store.DeleteTransaction(ctx, tx.ID); derr != nil {
			return nil, fmt.Errorf("append: update balance: %w (compensation: %v)", err, derr)
		}
		return nil, fmt.Errorf("append: update balance: %w", err)
	}

	logging.Audit(ctx).Debug("transaction posted",
		"transaction_id", tx.ID,
		"account_id", accountID,
		"amount", amount,
		"type", typ,
		"balance_after", newBalance,
	)

	return tx, nil
}
