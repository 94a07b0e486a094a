package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumabank/credit-engine/internal/domain"
)

// Memory implements Store on mutex-guarded maps. It backs unit and race
// tests, and can serve as the lighter-weight deduplication cache for
// correlation records when the broker redelivery window is short.
type Memory struct {
	mu sync.RWMutex

	applicants     map[string]*domain.Applicant // keyed by SSN
	emails         map[string]string            // email -> SSN
	applications   map[string]*domain.CreditApplication
	accounts       map[uuid.UUID]*domain.CardAccount
	accountsByRef  map[string]uuid.UUID
	accountsByFP   map[string]uuid.UUID
	transactions   map[uuid.UUID]*domain.Transaction
	txByAccount    map[uuid.UUID][]uuid.UUID
	correlations   map[string]*domain.CorrelationRecord
}

func NewMemory() *Memory {
	return &Memory{
		applicants:    make(map[string]*domain.Applicant),
		emails:        make(map[string]string),
		applications:  make(map[string]*domain.CreditApplication),
		accounts:      make(map[uuid.UUID]*domain.CardAccount),
		accountsByRef: make(map[string]uuid.UUID),
		accountsByFP:  make(map[string]uuid.UUID),
		transactions:  make(map[uuid.UUID]*domain.Transaction),
		txByAccount:   make(map[uuid.UUID][]uuid.UUID),
		correlations:  make(map[string]*domain.CorrelationRecord),
	}
}

func (m *Memory) CreateApplicant(_ context.Context, a *domain.Applicant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.applicants[a.SSN]; ok {
		return fmt.Errorf("CreateApplicant: %w", domain.ErrDuplicateSSN)
	}
	if _, ok := m.emails[a.Email]; ok {
		return fmt.Errorf("CreateApplicant: %w", domain.ErrDuplicateEmail)
	}
	cp := *a
	m.applicants[a.SSN] = &cp
	m.emails[a.Email] = a.SSN
	return nil
}

func (m *Memory) FindApplicantBySSN(_ context.Context, ssn string) (*domain.Applicant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.applicants[ssn]
	if !ok {
		return nil, fmt.Errorf("FindApplicantBySSN: %w", domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) CreateApplication(_ context.Context, app *domain.CreditApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.applications[app.Reference]; ok {
		return fmt.Errorf("CreateApplication: %w", domain.ErrDuplicateReference)
	}
	cp := *app
	m.applications[app.Reference] = &cp
	return nil
}

func (m *Memory) GetApplication(_ context.Context, ref string) (*domain.CreditApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	app, ok := m.applications[ref]
	if !ok {
		return nil, fmt.Errorf("GetApplication: %w", domain.ErrNotFound)
	}
	cp := *app
	return &cp, nil
}

func (m *Memory) UpdateApplicationStatus(_ context.Context, ref string, status domain.ApplicationStatus, meta *domain.DecisionMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.applications[ref]
	if !ok {
		return fmt.Errorf("UpdateApplicationStatus: %w", domain.ErrNotFound)
	}
	app.Status = status
	if meta != nil {
		app.Assessment = meta.Assessment
		app.Terms = meta.Terms
		app.DeclineReason = meta.DeclineReason
		decidedAt := meta.DecidedAt
		app.DecidedAt = &decidedAt
	}
	return nil
}

func (m *Memory) DeleteApplication(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.applications[ref]; !ok {
		return fmt.Errorf("DeleteApplication: %w", domain.ErrNotFound)
	}
	delete(m.applications, ref)
	return nil
}

func (m *Memory) CreateAccount(_ context.Context, acct *domain.CardAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accountsByRef[acct.ApplicationRef]; ok {
		return fmt.Errorf("CreateAccount: %w", domain.ErrAccountExists)
	}
	if _, ok := m.accountsByFP[acct.PANFingerprint]; ok {
		return fmt.Errorf("CreateAccount: %w", domain.ErrIssuanceCollision)
	}
	cp := *acct
	m.accounts[acct.ID] = &cp
	m.accountsByRef[acct.ApplicationRef] = acct.ID
	m.accountsByFP[acct.PANFingerprint] = acct.ID
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id uuid.UUID) (*domain.CardAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountLocked(id, "GetAccount")
}

func (m *Memory) GetAccountByApplication(_ context.Context, ref string) (*domain.CardAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.accountsByRef[ref]
	if !ok {
		return nil, fmt.Errorf("GetAccountByApplication: %w", domain.ErrNotFound)
	}
	return m.accountLocked(id, "GetAccountByApplication")
}

func (m *Memory) FindAccountByFingerprint(_ context.Context, fingerprint string) (*domain.CardAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.accountsByFP[fingerprint]
	if !ok {
		return nil, fmt.Errorf("FindAccountByFingerprint: %w", domain.ErrNotFound)
	}
	return m.accountLocked(id, "FindAccountByFingerprint")
}

func (m *Memory) accountLocked(id uuid.UUID, op string) (*domain.CardAccount, error) {
	acct, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	cp := *acct
	return &cp, nil
}

func (m *Memory) UpdateAccountBalance(_ context.Context, id uuid.UUID, newBalance, newVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("UpdateAccountBalance: %w", domain.ErrNotFound)
	}
	if acct.Version != newVersion-1 {
		return fmt.Errorf("UpdateAccountBalance: %w", domain.ErrVersionConflict)
	}
	acct.CurrentBalance = newBalance
	acct.Version = newVersion
	return nil
}

func (m *Memory) AppendTransaction(_ context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *tx
	m.transactions[tx.ID] = &cp
	m.txByAccount[tx.AccountID] = append(m.txByAccount[tx.AccountID], tx.ID)
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[id]
	if !ok {
		return nil, fmt.Errorf("GetTransaction: %w", domain.ErrNotFound)
	}
	cp := *tx
	return &cp, nil
}

func (m *Memory) UpdateTransactionState(_ context.Context, id uuid.UUID, state domain.TransactionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return fmt.Errorf("UpdateTransactionState: %w", domain.ErrNotFound)
	}
	tx.State = state
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return fmt.Errorf("DeleteTransaction: %w", domain.ErrNotFound)
	}
	delete(m.transactions, id)

	ids := m.txByAccount[tx.AccountID]
	for i, v := range ids {
		if v == id {
			m.txByAccount[tx.AccountID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.txByAccount[accountID]
	total := len(ids)

	txs := make([]domain.Transaction, 0, total)
	for _, id := range ids {
		txs = append(txs, *m.transactions[id])
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })

	if offset >= len(txs) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(txs) {
		end = len(txs)
	}
	return txs[offset:end], total, nil
}

func (m *Memory) GetCorrelation(_ context.Context, correlationID string) (*domain.CorrelationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.correlations[correlationID]
	if !ok || time.Now().After(rec.ExpiresAt) {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) UpsertCorrelation(_ context.Context, rec *domain.CorrelationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.correlations[rec.CorrelationID] = &cp
	return nil
}

func (m *Memory) CleanExpiredCorrelations(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var n int64
	for id, rec := range m.correlations {
		if now.After(rec.ExpiresAt) {
			delete(m.correlations, id)
			n++
		}
	}
	return n, nil
}
