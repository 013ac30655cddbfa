// Package businessflow contains the core business logic for the phase one scheduler
package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/config"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
)

// SchedulerFlow converts newly observed trigger events into pending
// executions. It never sends anything; sending is the executor's job.
type SchedulerFlow interface {
	Run(ctx context.Context, now time.Time) (int, error)
}

// SchedulerFlowImpl implements the scheduling phase
type SchedulerFlowImpl struct {
	ruleRepo    repository.LifecycleRuleRepository
	triggerRepo repository.TriggerEventRepository
	execRepo    repository.LifecycleExecutionRepository
	tx          repository.TxRunner
	cfg         config.EngineConfig
	logger      *log.Logger
}

// NewSchedulerFlow creates a new scheduler flow instance
func NewSchedulerFlow(
	ruleRepo repository.LifecycleRuleRepository,
	triggerRepo repository.TriggerEventRepository,
	execRepo repository.LifecycleExecutionRepository,
	tx repository.TxRunner,
	cfg config.EngineConfig,
	logger *log.Logger,
) SchedulerFlow {
	return &SchedulerFlowImpl{
		ruleRepo:    ruleRepo,
		triggerRepo: triggerRepo,
		execRepo:    execRepo,
		tx:          tx,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run scans the lookback window for trigger events of each active rule and
// inserts a pending execution per qualifying (rule, customer) pair not already
// scheduled. Returns the count of newly scheduled executions.
//
// A rule-store or trigger-poll failure aborts the scan for that trigger kind
// only; the other kind still runs. Per-customer failures skip that customer.
func (f *SchedulerFlowImpl) Run(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	since := now.Add(-f.cfg.LookbackWindow)
	cutoff := now.Add(-f.cfg.HardCutoff)

	scheduled := 0
	var firstErr error

	for _, kind := range []models.TriggerKind{models.TriggerKindServiceCompleted, models.TriggerKindTransaction} {
		rules, err := f.ruleRepo.ListActiveByTrigger(ctx, kind)
		if err != nil {
			f.logger.Printf("scheduler: rule store read failed for trigger %s: %v", kind, err)
			if firstErr == nil {
				firstErr = NewBusinessErrorf("RULE_STORE_READ_FAILED", "Rule store read failed for trigger %s", err, kind)
			}
			continue
		}
		if len(rules) == 0 {
			continue
		}

		events, err := f.triggerRepo.ListSince(ctx, kind, since, now)
		if err != nil {
			f.logger.Printf("scheduler: trigger poll failed for %s: %v", kind, err)
			if firstErr == nil {
				firstErr = NewBusinessErrorf("TRIGGER_POLL_FAILED", "Trigger poll failed for %s", err, kind)
			}
			continue
		}
		if len(events) == 0 {
			continue
		}

		for _, rule := range rules {
			n, err := f.scheduleRule(ctx, rule, events, since, cutoff)
			if err != nil {
				f.logger.Printf("scheduler: scheduling failed for rule %s: %v", rule.UUID, err)
				continue
			}
			scheduled += n
		}
	}

	if scheduled > 0 {
		f.logger.Printf("scheduler: scheduled %d executions", scheduled)
	}
	return scheduled, firstErr
}

// scheduleRule collects the qualifying executions for one rule and inserts
// them in a single transaction. A failed insert leaves the events for the
// next tick.
func (f *SchedulerFlowImpl) scheduleRule(ctx context.Context, rule *models.LifecycleRule, events []models.TriggerEvent, since, cutoff time.Time) (int, error) {
	batch := make([]*models.LifecycleExecution, 0)
	// Customers already collected into this batch. Two qualifying events
	// for the same customer in one scan still yield one execution.
	seen := make(map[uint]bool)

	for _, ev := range events {
		// Bound unbounded backfill even when the lookback window is
		// configured wider than the hard cutoff
		if ev.OccurredAt.Before(cutoff) {
			continue
		}
		if !rule.Matches(ev) {
			continue
		}
		if seen[ev.CustomerID] {
			continue
		}

		exists, err := f.execRepo.ExistsForRuleCustomerSince(ctx, rule.ID, ev.CustomerID, since)
		if err != nil {
			f.logger.Printf("scheduler: dedup check failed for rule %s customer %d: %v", rule.UUID, ev.CustomerID, err)
			continue
		}
		if exists {
			continue
		}

		seen[ev.CustomerID] = true
		batch = append(batch, &models.LifecycleExecution{
			RuleID:       rule.ID,
			CustomerID:   ev.CustomerID,
			TriggerAt:    ev.OccurredAt,
			ScheduledFor: ev.OccurredAt.Add(rule.Delay()),
			Status:       models.ExecutionStatusPending,
			TrackingID:   uuid.New().String(),
			CreatedAt:    utils.UTCNow(),
		})
	}

	if len(batch) == 0 {
		return 0, nil
	}

	err := f.tx(ctx, func(txCtx context.Context) error {
		return f.execRepo.SaveBatch(txCtx, batch)
	})
	if err != nil {
		return 0, err
	}

	return len(batch), nil
}
