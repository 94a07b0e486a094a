package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumabank/credit-engine/internal/card"
	"github.com/lumabank/credit-engine/internal/domain"
	"github.com/lumabank/credit-engine/internal/keyedmutex"
	"github.com/lumabank/credit-engine/internal/logging"
	"github.com/lumabank/credit-engine/internal/pricing"
	"github.com/lumabank/credit-engine/internal/risk"
	"github.com/lumabank/credit-engine/internal/store"
)

type workflowStore interface {
	store.ApplicantStore
	store.ApplicationStore
	store.AccountStore
}

// Workflow drives a submission from Accepted through Processing to a
// terminal Approved or Declined. Any failure after the application exists
// but before a terminal write leaves it Processing; Resume re-runs the
// decision idempotently, keyed by the application reference.
type Workflow struct {
	store    workflowStore
	assessor *risk.Assessor
	pricer   *pricing.Pricer
	issuer   *card.Issuer
	ssnLocks *keyedmutex.KeyedMutex
	timeout  time.Duration
}

func New(s workflowStore, assessor *risk.Assessor, pricer *pricing.Pricer, issuer *card.Issuer, persistTimeout time.Duration) *Workflow {
	return &Workflow{
		store:    s,
		assessor: assessor,
		pricer:   pricer,
		issuer:   issuer,
		ssnLocks: keyedmutex.New(),
		timeout:  persistTimeout,
	}
}

type Submission struct {
	Reference        string
	SSN              string
	Email            string
	Name             string
	Address          string
	EmploymentStatus domain.EmploymentStatus
	BankingStatus    domain.BankingStatus
	AnnualIncome     int64
	Debts            domain.DebtProfile
}

type AccountSummary struct {
	AccountID    uuid.UUID
	MaskedNumber string
}

type Result struct {
	ApplicationRef string
	Decision       domain.Decision
	Terms          *domain.CreditTerms
	Account        *AccountSummary
	Reason         string
}

// Submit runs the full decision transaction for a new application. Calling
// it again with a reference that already exists falls through to Resume, so
// redelivered requests never create a second application.
func (w *Workflow) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if err := validate(sub); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	ssn := normalizeSSN(sub.SSN)

	// Applicant resolution is serialized per SSN so concurrent submissions
	// cannot create two records.
	w.ssnLocks.Lock(ssn)
	applicant, err := w.resolveApplicant(ctx, ssn, sub)
	w.ssnLocks.Unlock(ssn)
	if err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	now := time.Now().UTC()
	app := &domain.CreditApplication{
		Reference:   sub.Reference,
		ApplicantID: applicant.ID,
		Snapshot: domain.FinancialSnapshot{
			EmploymentStatus: sub.EmploymentStatus,
			BankingStatus:    sub.BankingStatus,
			AnnualIncome:     sub.AnnualIncome,
			Debts:            sub.Debts,
		},
		Status:    domain.ApplicationStatusAccepted,
		CreatedAt: now,
	}

	cctx, cancel := w.boundCtx(ctx)
	err = w.store.CreateApplication(cctx, app)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateReference) {
			return w.Resume(ctx, sub.Reference)
		}
		return nil, fmt.Errorf("Submit: %w", err)
	}

	if err := w.markProcessing(ctx, app); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	res, err := w.decide(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}
	return res, nil
}

// Resume re-runs an application from whatever state it was left in. Terminal
// applications yield their recorded decision without re-executing anything.
func (w *Workflow) Resume(ctx context.Context, ref string) (*Result, error) {
	app, err := w.store.GetApplication(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("Resume: %w", err)
	}

	switch app.Status {
	case domain.ApplicationStatusApproved, domain.ApplicationStatusDeclined:
		res, err := w.recordedResult(ctx, app)
		if err != nil {
			return nil, fmt.Errorf("Resume: %w", err)
		}
		return res, nil
	case domain.ApplicationStatusAccepted:
		if err := w.markProcessing(ctx, app); err != nil {
			return nil, fmt.Errorf("Resume: %w", err)
		}
	}

	res, err := w.decide(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("Resume: %w", err)
	}
	return res, nil
}

// DeleteDeclined removes a declined application once its decision has been
// surfaced, freeing the applicant to reapply. Approved applications are
// permanent.
func (w *Workflow) DeleteDeclined(ctx context.Context, ref string) error {
	app, err := w.store.GetApplication(ctx, ref)
	if err != nil {
		return fmt.Errorf("DeleteDeclined: %w", err)
	}
	if app.Status != domain.ApplicationStatusDeclined {
		return fmt.Errorf("DeleteDeclined: %w", domain.ErrNotDeclined)
	}
	if err := w.store.DeleteApplication(ctx, ref); err != nil {
		return fmt.Errorf("DeleteDeclined: %w", err)
	}
	return nil
}

func (w *Workflow) resolveApplicant(ctx context.Context, ssn string, sub Submission) (*domain.Applicant, error) {
	cctx, cancel := w.boundCtx(ctx)
	defer cancel()

	applicant, err := w.store.FindApplicantBySSN(cctx, ssn)
	if err == nil {
		return applicant, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("resolveApplicant: %w", err)
	}

	now := time.Now().UTC()
	applicant = &domain.Applicant{
		ID:               uuid.New(),
		SSN:              ssn,
		Email:            sub.Email,
		Name:             sub.Name,
		Address:          sub.Address,
		EmploymentStatus: sub.EmploymentStatus,
		BankingStatus:    sub.BankingStatus,
		AnnualIncome:     sub.AnnualIncome,
		Debts:            sub.Debts,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = w.store.CreateApplicant(cctx, applicant)
	if err == nil {
		return applicant, nil
	}
	if errors.Is(err, domain.ErrDuplicateSSN) {
		// Lost a cross-process race; the record exists now.
		existing, ferr := w.store.FindApplicantBySSN(cctx, ssn)
		if ferr != nil {
			return nil, fmt.Errorf("resolveApplicant: %w", ferr)
		}
		return existing, nil
	}
	if errors.Is(err, domain.ErrDuplicateEmail) {
		return nil, fmt.Errorf("resolveApplicant: %w: %w", domain.ErrValidation, err)
	}
	return nil, fmt.Errorf("resolveApplicant: %w", err)
}

func (w *Workflow) markProcessing(ctx context.Context, app *domain.CreditApplication) error {
	cctx, cancel := w.boundCtx(ctx)
	defer cancel()

	if err := w.store.UpdateApplicationStatus(cctx, app.Reference, domain.ApplicationStatusProcessing, nil); err != nil {
		return fmt.Errorf("markProcessing: %w", err)
	}
	app.Status = domain.ApplicationStatusProcessing
	return nil
}

// decide runs risk assessment, pricing, and issuance against the submitted
// snapshot and persists the terminal state. Safe to re-run: issuance is
// recorded before the terminal write and detected by application reference.
func (w *Workflow) decide(ctx context.Context, app *domain.CreditApplication) (*Result, error) {
	log := logging.FromContext(ctx)

	assessment, err := w.assessor.Assess(ctx, risk.Input{
		EmploymentStatus: app.Snapshot.EmploymentStatus,
		BankingStatus:    app.Snapshot.BankingStatus,
		AnnualIncome:     app.Snapshot.AnnualIncome,
		Debts:            app.Snapshot.Debts,
	})
	if err != nil {
		return nil, fmt.Errorf("decide: %w", err)
	}

	now := time.Now().UTC()

	if assessment.Decision == domain.DecisionDeclined {
		reason := fmt.Sprintf("total risk score %s at or above approval cut-off", assessment.TotalRiskScore.StringFixed(2))
		meta := &domain.DecisionMetadata{
			Assessment:    assessment,
			DeclineReason: &reason,
			DecidedAt:     now,
		}
		cctx, cancel := w.boundCtx(ctx)
		err := w.store.UpdateApplicationStatus(cctx, app.Reference, domain.ApplicationStatusDeclined, meta)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("decide: %w", err)
		}

		log.Info("application declined",
			"application_ref", app.Reference,
			"total_risk_score", assessment.TotalRiskScore.StringFixed(2),
		)
		return &Result{
			ApplicationRef: app.Reference,
			Decision:       domain.DecisionDeclined,
			Reason:         reason,
		}, nil
	}

	terms, err := w.pricer.Price(assessment.TotalRiskScore, assessment.CreditScore)
	if err != nil {
		return nil, fmt.Errorf("decide: %w", err)
	}

	acct, err := w.materializeAccount(ctx, app, terms)
	if err != nil {
		return nil, fmt.Errorf("decide: %w", err)
	}

	meta := &domain.DecisionMetadata{
		Assessment: assessment,
		Terms:      terms,
		DecidedAt:  now,
	}
	cctx, cancel := w.boundCtx(ctx)
	err = w.store.UpdateApplicationStatus(cctx, app.Reference, domain.ApplicationStatusApproved, meta)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("decide: %w", err)
	}

	log.Info("application approved",
		"application_ref", app.Reference,
		"account_id", acct.ID,
		"credit_limit", terms.CreditLimit,
		"apr", terms.APR.StringFixed(2),
	)
	return &Result{
		ApplicationRef: app.Reference,
		Decision:       domain.DecisionApproved,
		Terms:          terms,
		Account:        &AccountSummary{AccountID: acct.ID, MaskedNumber: acct.MaskedNumber},
	}, nil
}

// materializeAccount issues a card account exactly once per application. A
// prior interrupted run may already have created it; the reference lookup
// makes re-runs a no-op.
func (w *Workflow) materializeAccount(ctx context.Context, app *domain.CreditApplication, terms *domain.CreditTerms) (*domain.CardAccount, error) {
	cctx, cancel := w.boundCtx(ctx)
	defer cancel()

	existing, err := w.store.GetAccountByApplication(cctx, app.Reference)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("materializeAccount: %w", err)
	}

	issued, err := w.issuer.Issue(cctx, app.ApplicantID, app.Reference, terms)
	if err != nil {
		return nil, fmt.Errorf("materializeAccount: %w", err)
	}

	if err := w.store.CreateAccount(cctx, issued.Account); err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			existing, gerr := w.store.GetAccountByApplication(cctx, app.Reference)
			if gerr != nil {
				return nil, fmt.Errorf("materializeAccount: %w", gerr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("materializeAccount: %w", err)
	}
	return issued.Account, nil
}

func (w *Workflow) recordedResult(ctx context.Context, app *domain.CreditApplication) (*Result, error) {
	res := &Result{
		ApplicationRef: app.Reference,
		Decision:       domain.DecisionDeclined,
	}
	if app.DeclineReason != nil {
		res.Reason = *app.DeclineReason
	}

	if app.Status == domain.ApplicationStatusApproved {
		acct, err := w.store.GetAccountByApplication(ctx, app.Reference)
		if err != nil {
			return nil, fmt.Errorf("recordedResult: %w", err)
		}
		res.Decision = domain.DecisionApproved
		res.Terms = app.Terms
		res.Account = &AccountSummary{AccountID: acct.ID, MaskedNumber: acct.MaskedNumber}
		res.Reason = ""
	}
	return res, nil
}

func (w *Workflow) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, w.timeout)
}
