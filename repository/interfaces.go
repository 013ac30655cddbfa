// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/Kusanagi/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CustomerRepository defines read operations for platform customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Customer, error)
}

// LifecycleRuleRepository defines operations for lifecycle rules
type LifecycleRuleRepository interface {
	Repository[models.LifecycleRule, models.LifecycleRuleFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.LifecycleRule, error)
	// ListActiveByTrigger returns active rules for the trigger ordered by
	// chain_order then id (stable tiebreak, not a dependency graph).
	ListActiveByTrigger(ctx context.Context, trigger models.TriggerKind) ([]*models.LifecycleRule, error)
	Update(ctx context.Context, rule *models.LifecycleRule) error
}

// StatusCount pairs an execution status with its row count
type StatusCount struct {
	Status models.ExecutionStatus
	Count  int64
}

// LifecycleExecutionRepository defines operations for executions
type LifecycleExecutionRepository interface {
	Repository[models.LifecycleExecution, models.LifecycleExecutionFilter]
	// ExistsForRuleCustomerSince reports whether any execution for the
	// (rule, customer) pair was created at or after since.
	ExistsForRuleCustomerSince(ctx context.Context, ruleID, customerID uint, since time.Time) (bool, error)
	// ListDuePending returns pending executions with scheduled_for <= now,
	// ordered by scheduled_for ascending, capped at limit.
	ListDuePending(ctx context.Context, now time.Time, limit int) ([]*models.LifecycleExecution, error)
	// ClaimPending transitions a single pending row to a terminal status.
	// Returns false without error when the row was no longer pending, so a
	// terminal row can never be transitioned twice.
	ClaimPending(ctx context.Context, id uint, status models.ExecutionStatus, reason *string, sentAt *time.Time, shortLinkCode *string) (bool, error)
	// CountByStatusSince aggregates executions created at or after since.
	CountByStatusSince(ctx context.Context, since time.Time) ([]StatusCount, error)
	// ListSentByRuleBetween returns sent executions for attribution scans.
	ListSentByRuleBetween(ctx context.Context, ruleID uint, start, end time.Time) ([]*models.LifecycleExecution, error)
	// ListSentBetween returns all sent executions within a period.
	ListSentBetween(ctx context.Context, start, end time.Time) ([]*models.LifecycleExecution, error)
}

// ConsentRepository defines operations for the consent ledger storage.
// AppendEvent and SaveRecord/UpdateRecord are only called from inside the
// consent flow's transaction.
type ConsentRepository interface {
	RecordByCustomerAndChannel(ctx context.Context, customerID uint, channel models.ConsentChannel) (*models.ConsentRecord, error)
	SaveRecord(ctx context.Context, record *models.ConsentRecord) error
	UpdateRecord(ctx context.Context, record *models.ConsentRecord) error
	AppendEvent(ctx context.Context, event *models.ConsentEvent) error
	ListEvents(ctx context.Context, customerID uint, limit, offset int) ([]*models.ConsentEvent, error)
	ListRecords(ctx context.Context, customerID uint) ([]*models.ConsentRecord, error)
}

// TriggerEventRepository polls the booking/POS stores through time-bounded
// queries and maps rows into the TriggerEvent union.
type TriggerEventRepository interface {
	ListSince(ctx context.Context, kind models.TriggerKind, since, until time.Time) ([]models.TriggerEvent, error)
	// ListPurchasesByCustomerBetween returns POS purchases for attribution.
	ListPurchasesByCustomerBetween(ctx context.Context, customerID uint, start, end time.Time) ([]*models.Transaction, error)
}

// ShortLinkRepository defines operations for short links and their clicks
type ShortLinkRepository interface {
	SaveLink(ctx context.Context, link *models.ShortLink) error
	SaveClick(ctx context.Context, click *models.ShortLinkClick) error
	ByCode(ctx context.Context, code string) (*models.ShortLink, error)
	CountClicksByRuleSince(ctx context.Context, ruleID uint, since time.Time) (int64, error)
}

// DeliveryReportRepository defines operations for provider delivery callbacks
type DeliveryReportRepository interface {
	Save(ctx context.Context, report *models.DeliveryReport) error
	ByTrackingID(ctx context.Context, trackingID string) ([]*models.DeliveryReport, error)
	CountDeliveredByTrackingIDs(ctx context.Context, trackingIDs []string) (int64, error)
}

// BusinessSettingsRepository reads the single settings row
type BusinessSettingsRepository interface {
	Get(ctx context.Context) (*models.BusinessSettings, error)
}
