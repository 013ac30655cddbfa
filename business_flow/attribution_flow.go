// Package businessflow contains the core business logic for revenue attribution
package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
)

// Attribution is the computed result of crediting purchases to sends. It is
// recomputed on demand and never persisted as ground truth.
type Attribution struct {
	MessagesSent      int
	UniqueCustomers   int
	CustomersReturned int
	Revenue           float64
}

// AttributionFlow computes revenue causally linked to sends. Purchases count
// when their timestamp falls within the closed interval
// [send time, send time + window]. A customer is counted once no matter how
// many sends reached them, and a purchase is credited once even when it falls
// inside several overlapping windows. Revenue is summed unrounded; rounding
// is a presentation concern.
type AttributionFlow interface {
	ForRule(ctx context.Context, ruleID uint, start, end time.Time, window time.Duration) (*Attribution, error)
	ForPeriod(ctx context.Context, start, end time.Time, window time.Duration) (*Attribution, error)
}

// AttributionFlowImpl implements the attribution calculation
type AttributionFlowImpl struct {
	execRepo    repository.LifecycleExecutionRepository
	triggerRepo repository.TriggerEventRepository
	logger      *log.Logger
}

// NewAttributionFlow creates a new attribution flow instance
func NewAttributionFlow(
	execRepo repository.LifecycleExecutionRepository,
	triggerRepo repository.TriggerEventRepository,
	logger *log.Logger,
) AttributionFlow {
	return &AttributionFlowImpl{
		execRepo:    execRepo,
		triggerRepo: triggerRepo,
		logger:      logger,
	}
}

// ForRule credits purchases to one rule's sends within the period
func (f *AttributionFlowImpl) ForRule(ctx context.Context, ruleID uint, start, end time.Time, window time.Duration) (*Attribution, error) {
	if err := validatePeriod(start, end, window); err != nil {
		return nil, err
	}

	execs, err := f.execRepo.ListSentByRuleBetween(ctx, ruleID, start, end)
	if err != nil {
		return nil, NewBusinessError("EXECUTION_READ_FAILED", "Failed to read sent executions", err)
	}

	return f.credit(ctx, execs, window)
}

// ForPeriod credits purchases to every send within the period, regardless of
// rule
func (f *AttributionFlowImpl) ForPeriod(ctx context.Context, start, end time.Time, window time.Duration) (*Attribution, error) {
	if err := validatePeriod(start, end, window); err != nil {
		return nil, err
	}

	execs, err := f.execRepo.ListSentBetween(ctx, start, end)
	if err != nil {
		return nil, NewBusinessError("EXECUTION_READ_FAILED", "Failed to read sent executions", err)
	}

	return f.credit(ctx, execs, window)
}

func (f *AttributionFlowImpl) credit(ctx context.Context, execs []*models.LifecycleExecution, window time.Duration) (*Attribution, error) {
	reached := make(map[uint]struct{})
	returned := make(map[uint]struct{})
	credited := make(map[uint]struct{})
	revenue := 0.0

	for _, exec := range execs {
		if exec.SentAt == nil {
			continue
		}
		reached[exec.CustomerID] = struct{}{}

		windowStart := *exec.SentAt
		windowEnd := exec.SentAt.Add(window)

		purchases, err := f.triggerRepo.ListPurchasesByCustomerBetween(ctx, exec.CustomerID, windowStart, windowEnd)
		if err != nil {
			return nil, NewBusinessError("PURCHASE_READ_FAILED", "Failed to read purchases", err)
		}

		for _, purchase := range purchases {
			if _, ok := credited[purchase.ID]; ok {
				continue
			}
			credited[purchase.ID] = struct{}{}
			returned[purchase.CustomerID] = struct{}{}
			revenue += purchase.Amount
		}
	}

	return &Attribution{
		MessagesSent:      len(execs),
		UniqueCustomers:   len(reached),
		CustomersReturned: len(returned),
		Revenue:           revenue,
	}, nil
}

func validatePeriod(start, end time.Time, window time.Duration) error {
	if start.After(end) {
		return NewBusinessError("PERIOD_INVALID", "Start date cannot be after end date", ErrStartDateAfterEndDate)
	}
	if window <= 0 {
		return NewBusinessError("WINDOW_INVALID", "Attribution window must be positive", ErrWindowNotPositive)
	}
	return nil
}
