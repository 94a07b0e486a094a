package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lumabank/credit-engine/internal/domain"
	"github.com/lumabank/credit-engine/internal/keyedmutex"
	"github.com/lumabank/credit-engine/internal/logging"
	"github.com/lumabank/credit-engine/internal/store"
	"github.com/lumabank/credit-engine/internal/workflow"
)

const refPrefix = "APP-"

// Bridge maps inbound application requests to outbound decision responses.
// Correlation records make the at-least-once channel behave at-most-once:
// a redelivered correlation id that already produced a response is discarded,
// and repeated failures dead-letter with an alert instead of looping forever.
type Bridge struct {
	transport   Transport
	store       store.CorrelationStore
	wf          *workflow.Workflow
	registry    *Registry
	corrLocks   *keyedmutex.KeyedMutex
	maxAttempts int
	ttl         time.Duration
	workers     int
}

func New(transport Transport, s store.CorrelationStore, wf *workflow.Workflow, registry *Registry, maxAttempts, workers int, ttl time.Duration) *Bridge {
	return &Bridge{
		transport:   transport,
		store:       s,
		wf:          wf,
		registry:    registry,
		corrLocks:   keyedmutex.New(),
		maxAttempts: maxAttempts,
		ttl:         ttl,
		workers:     workers,
	}
}

// Run consumes request messages with a pool of workers until ctx is done.
// Any number of workflow executions proceed in parallel across distinct
// correlation ids.
func (b *Bridge) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("bridge started", "workers", b.workers)

	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for {
				body, err := b.transport.Receive(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Error("receive failed", "worker", idx, "error", err)
					continue
				}
				if err := b.Process(ctx, body); err != nil {
					log.Error("request processing failed, awaiting redelivery",
						"worker", idx, "error", err)
				}
			}
		}(i)
	}
	wg.Wait()
	log.Info("bridge stopped")
}

// Process handles a single inbound request end to end. A non-nil return
// means the message should be redelivered; terminal outcomes (delivered,
// dead-lettered, discarded) return nil.
func (b *Bridge) Process(ctx context.Context, body []byte) error {
	log := logging.FromContext(ctx)

	var req applicationRequest
	if err := json.Unmarshal(body, &req); err != nil || req.CorrelationID == "" {
		// Uncorrelatable: nothing to respond to, but never drop silently.
		log.Error("malformed application request", "error", err)
		b.registry.Dispatch(ctx, Event{
			Kind:  EventKindAlert,
			Alert: &Alert{Reason: "malformed application request"},
		})
		return nil
	}

	// The dedupe check and the record writes below must act as one step:
	// a redelivered id handled by two workers at once would otherwise pass
	// the check twice and publish two responses.
	b.corrLocks.Lock(req.CorrelationID)
	defer b.corrLocks.Unlock(req.CorrelationID)

	rec, err := b.store.GetCorrelation(ctx, req.CorrelationID)
	if err != nil {
		return fmt.Errorf("Process: %w", err)
	}
	if rec != nil && rec.Outcome != domain.CorrelationPending {
		log.Info("discarding redelivered request",
			"correlation_id", req.CorrelationID,
			"outcome", rec.Outcome,
		)
		return nil
	}

	ref := refPrefix + req.CorrelationID
	now := time.Now().UTC()
	if rec == nil {
		rec = &domain.CorrelationRecord{
			CorrelationID:  req.CorrelationID,
			ApplicationRef: ref,
			Direction:      domain.DirectionInbound,
			Outcome:        domain.CorrelationPending,
			CreatedAt:      now,
			UpdatedAt:      now,
			ExpiresAt:      now.Add(b.ttl),
		}
		if err := b.store.UpsertCorrelation(ctx, rec); err != nil {
			return fmt.Errorf("Process: %w", err)
		}
	}

	res, err := b.wf.Submit(ctx, submissionFromRequest(ref, req))
	if err != nil {
		return b.handleFailure(ctx, rec, err)
	}

	resp := buildResponse(req.CorrelationID, res)
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("Process: marshal response: %w", err)
	}
	if err := b.transport.Publish(ctx, TopicDecisions, payload); err != nil {
		return b.handleFailure(ctx, rec, fmt.Errorf("publish response: %w", err))
	}

	rec.Outcome = domain.CorrelationDelivered
	rec.Direction = domain.DirectionOutbound
	rec.UpdatedAt = time.Now().UTC()
	if err := b.store.UpsertCorrelation(ctx, rec); err != nil {
		return fmt.Errorf("Process: record delivery: %w", err)
	}

	b.registry.Dispatch(ctx, Event{
		Kind:          EventKindDecision,
		CorrelationID: req.CorrelationID,
		Decision:      res,
	})
	return nil
}

// handleFailure classifies a workflow error: rejections the caller can see
// immediately get a response and count as delivered, fatal issuance failures
// dead-letter at once, and everything else retries until the attempt budget
// runs out.
func (b *Bridge) handleFailure(ctx context.Context, rec *domain.CorrelationRecord, cause error) error {
	log := logging.FromContext(ctx)

	if errors.Is(cause, domain.ErrValidation) || errors.Is(cause, domain.ErrInvalidFinancials) {
		resp := decisionResponse{CorrelationID: rec.CorrelationID, Reason: cause.Error()}
		payload, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("handleFailure: marshal rejection: %w", err)
		}
		if err := b.transport.Publish(ctx, TopicDecisions, payload); err != nil {
			return fmt.Errorf("handleFailure: publish rejection: %w", err)
		}
		rec.Outcome = domain.CorrelationDelivered
		rec.UpdatedAt = time.Now().UTC()
		if err := b.store.UpsertCorrelation(ctx, rec); err != nil {
			return fmt.Errorf("handleFailure: %w", err)
		}
		log.Warn("submission rejected", "correlation_id", rec.CorrelationID, "error", cause)
		return nil
	}

	rec.Attempts++
	rec.UpdatedAt = time.Now().UTC()

	fatal := errors.Is(cause, domain.ErrIssuanceCollision)
	if fatal || rec.Attempts >= b.maxAttempts {
		rec.Outcome = domain.CorrelationDeadLettered
		if err := b.store.UpsertCorrelation(ctx, rec); err != nil {
			return fmt.Errorf("handleFailure: %w", err)
		}

		alert := alertMessage{
			CorrelationID:        rec.CorrelationID,
			ApplicationReference: rec.ApplicationRef,
			Reason:               cause.Error(),
			Attempts:             rec.Attempts,
		}
		payload, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("handleFailure: marshal alert: %w", err)
		}
		if err := b.transport.Publish(ctx, TopicAlerts, payload); err != nil {
			return fmt.Errorf("handleFailure: publish alert: %w", err)
		}

		b.registry.Dispatch(ctx, Event{
			Kind:          EventKindAlert,
			CorrelationID: rec.CorrelationID,
			Alert: &Alert{
				ApplicationRef: rec.ApplicationRef,
				Reason:         cause.Error(),
				Attempts:       rec.Attempts,
			},
		})
		log.Error("request dead-lettered",
			"correlation_id", rec.CorrelationID,
			"attempts", rec.Attempts,
			"error", cause,
		)
		return nil
	}

	if err := b.store.UpsertCorrelation(ctx, rec); err != nil {
		return fmt.Errorf("handleFailure: %w", err)
	}
	return fmt.Errorf("handleFailure: attempt %d/%d: %w", rec.Attempts, b.maxAttempts, cause)
}

// CleanExpired drops correlation records past their retention window. Run it
// periodically; the window must outlive the broker's redelivery window.
func (b *Bridge) CleanExpired(ctx context.Context) (int64, error) {
	n, err := b.store.CleanExpiredCorrelations(ctx)
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: %w", err)
	}
	return n, nil
}

func submissionFromRequest(ref string, req applicationRequest) workflow.Submission {
	return workflow.Submission{
		Reference:        ref,
		SSN:              req.Applicant.SSN,
		Email:            req.Applicant.Email,
		Name:             req.Applicant.Name,
		Address:          req.Applicant.Address,
		EmploymentStatus: domain.EmploymentStatus(req.Applicant.EmploymentStatus),
		BankingStatus:    domain.BankingStatus(req.Applicant.BankingStatus),
		AnnualIncome:     req.Applicant.Income,
		Debts: domain.DebtProfile{
			Mortgage: req.Applicant.Debts.Mortgage,
			Auto:     req.Applicant.Debts.Auto,
			Credit:   req.Applicant.Debts.Credit,
			Other:    req.Applicant.Debts.Other,
		},
	}
}
