package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumabank/credit-engine/internal/domain"
	"github.com/lumabank/credit-engine/internal/store"
	"github.com/lumabank/credit-engine/internal/testutil"
)

func setupEngine(t *testing.T, limit int64) (*Engine, *store.Memory, *domain.CardAccount) {
	t.Helper()
	mem := store.NewMemory()
	applicant := testutil.SeedApplicant(t, mem, testutil.UniqueSSN(1), "ledger@example.com")
	acct := testutil.SeedAccount(t, mem, applicant.ID, "APP-ledger", limit)
	return NewEngine(mem), mem, acct
}

func TestPost_Purchase(t *testing.T) {
	engine, mem, acct := setupEngine(t, 500_000)
	ctx := context.Background()

	tx, err := engine.Post(ctx, acct.ID, 150_000, domain.TransactionTypePurchase, "groceries")
	require.NoError(t, err)

	assert.Equal(t, int64(150_000), tx.Amount)
	assert.Equal(t, int64(150_000), tx.BalanceAfter)
	assert.Equal(t, domain.TransactionStatePosted, tx.State)
	assert.Nil(t, tx.OriginalID)

	got, err := mem.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150_000), got.CurrentBalance)
	assert.Equal(t, int64(350_000), got.AvailableBalance())
	assert.Equal(t, int64(1), got.Version)
}

func TestPost_RejectsOverLimit(t *testing.T) {
	engine, mem, acct := setupEngine(t, 500_000)
	ctx := context.Background()

	_, err := engine.Post(ctx, acct.ID, 520_000, domain.TransactionTypePurchase, "electronics")
	require.ErrorIs(t, err, domain.ErrInsufficientAvailableBalance)

	got, err := mem.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.CurrentBalance, "rejected posting must not move the balance")

	_, total, err := mem.ListTransactions(ctx, acct.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total, "rejected posting must not be recorded")
}

func TestPost_ExactLimitAllowed(t *testing.T) {
	engine, mem, acct := setupEngine(t, 500_000)
	ctx := context.Background()

	_, err := engine.Post(ctx, acct.ID, 500_000, domain.TransactionTypePurchase, "furniture")
	require.NoError(t, err)

	got, err := mem.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.AvailableBalance())
}

func TestPost_RejectsExcessivePayment(t *testing.T) {
	engine, _, acct := setupEngine(t, 500_000)
	ctx := context.Background()

	_, err := engine.Post(ctx, acct.ID, 100_000, domain.TransactionTypePurchase, "travel")
	require.NoError(t, err)

	_, err = engine.Post(ctx, acct.ID, -100_001, domain.TransactionTypePayment, "payment")
	require.ErrorIs(t, err, domain.ErrExcessivePayment)

	_, err = engine.Post(ctx, acct.ID, -100_000, domain.TransactionTypePayment, "payment")
	require.NoError(t, err)
}

func TestPost_RejectsZeroAmount(t *testing.T) {
	engine, _, acct := setupEngine(t, 500_000)

	_, err := engine.Post(context.Background(), acct.ID, 0, domain.TransactionTypePurchase, "noop")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestPost_RejectsReversalType(t *testing.T) {
	engine, _, acct := setupEngine(t, 500_000)

	_, err := engine.Post(context.Background(), acct.ID, 1_000, domain.TransactionTypeReversal, "manual")
	require.ErrorIs(t, err, domain.ErrInvalidReversal)
}

func TestPost_UnknownAccount(t *testing.T) {
	engine, _, _ := setupEngine(t, 500_000)

	_, err := engine.Post(context.Background(), uuid.New(), 1_000, domain.TransactionTypePurchase, "misc")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReverse(t *testing.T) {
	engine, mem, acct := setupEngine(t, 500_000)
	ctx := context.Background()

	orig, err := engine.Post(ctx, acct.ID, 200_000, domain.TransactionTypePurchase, "appliances")
	require.NoError(t, err)

	rev, err := engine.Reverse(ctx, acct.ID, orig.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(-200_000), rev.Amount)
	assert.Equal(t, domain.TransactionTypeReversal, rev.Type)
	require.NotNil(t, rev.OriginalID)
	assert.Equal(t, orig.ID, *rev.OriginalID)
	assert.Equal(t, int64(0), rev.BalanceAfter)

	reread, err := mem.GetTransaction(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStateReversed, reread.State)

	got, err := mem.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.CurrentBalance, "reversal restores the balance")
}

func TestReverse_Invalid(t *testing.T) {
	engine, mem, acct := setupEngine(t, 500_000)
	ctx := context.Background()

	orig, err := engine.Post(ctx, acct.ID, 50_000, domain.TransactionTypePurchase, "dining")
	require.NoError(t, err)
	_, err = engine.Reverse(ctx, acct.ID, orig.ID)
	require.NoError(t, err)

	t.Run("already reversed", func(t *testing.T) {
		_, err := engine.Reverse(ctx, acct.ID, orig.ID)
		require.ErrorIs(t, err, domain.ErrInvalidReversal)
	})

	t.Run("other account", func(t *testing.T) {
		applicant := testutil.SeedApplicant(t, mem, testutil.UniqueSSN(2), "other@example.com")
		other := testutil.SeedAccount(t, mem, applicant.ID, "APP-other", 500_000)
		tx, err := engine.Post(ctx, other.ID, 10_000, domain.TransactionTypePurchase, "fuel")
		require.NoError(t, err)

		_, err = engine.Reverse(ctx, acct.ID, tx.ID)
		require.ErrorIs(t, err, domain.ErrInvalidReversal)
	})

	t.Run("pending original", func(t *testing.T) {
		// Manually recorded holds land as Pending; only Posted reverses.
		pending := &domain.Transaction{
			ID:        uuid.New(),
			AccountID: acct.ID,
			Amount:    5_000,
			Type:      domain.TransactionTypePurchase,
			Category:  "hold",
			State:     domain.TransactionStatePending,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, mem.AppendTransaction(ctx, pending))

		_, err := engine.Reverse(ctx, acct.ID, pending.ID)
		require.ErrorIs(t, err, domain.ErrInvalidReversal)
	})

	t.Run("missing original", func(t *testing.T) {
		_, err := engine.Reverse(ctx, acct.ID, uuid.New())
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStatement(t *testing.T) {
	engine, _, acct := setupEngine(t, 500_000)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		_, err := engine.Post(ctx, acct.ID, i*1_000, domain.TransactionTypePurchase, "misc")
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	txs, total, err := engine.Statement(ctx, acct.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(5_000), txs[0].Amount, "newest first")
	assert.Equal(t, int64(4_000), txs[1].Amount)

	txs, _, err = engine.Statement(ctx, acct.ID, 2, 4)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(1_000), txs[0].Amount)
}

// conflictingStore loses the first versioned balance write, as a concurrent
// out-of-process writer would make it.
type conflictingStore struct {
	*store.Memory
	conflicted bool
}

func (c *conflictingStore) UpdateAccountBalance(ctx context.Context, id uuid.UUID, newBalance, newVersion int64) error {
	if !c.conflicted {
		c.conflicted = true
		return fmt.Errorf("UpdateAccountBalance: %w", domain.ErrVersionConflict)
	}
	return c.Memory.UpdateAccountBalance(ctx, id, newBalance, newVersion)
}

func TestPost_VersionConflictLeavesNoOrphan(t *testing.T) {
	mem := store.NewMemory()
	applicant := testutil.SeedApplicant(t, mem, testutil.UniqueSSN(1), "conflict@example.com")
	acct := testutil.SeedAccount(t, mem, applicant.ID, "APP-conflict", 500_000)
	engine := NewEngine(&conflictingStore{Memory: mem})
	ctx := context.Background()

	_, err := engine.Post(ctx, acct.ID, 10_000, domain.TransactionTypePurchase, "misc")
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	_, total, err := mem.ListTransactions(ctx, acct.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total, "losing posting must not leave a transaction row")

	got, err := mem.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.CurrentBalance)
	assert.Equal(t, int64(0), got.Version)

	tx, err := engine.Post(ctx, acct.ID, 10_000, domain.TransactionTypePurchase, "misc")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), tx.BalanceAfter)
}

func TestPost_ConcurrentSameAccount(t *testing.T) {
	engine, mem, acct := setupEngine(t, 500_000)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Post(ctx, acct.ID, 10_000, domain.TransactionTypePurchase, "concurrent")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := mem.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10_000), got.CurrentBalance)
	assert.Equal(t, int64(workers), got.Version)

	txs, total, err := mem.ListTransactions(ctx, acct.ID, workers, 0)
	require.NoError(t, err)
	assert.Equal(t, workers, total)
	for _, tx := range txs {
		assert.Equal(t, domain.TransactionStatePosted, tx.State)
	}
}
