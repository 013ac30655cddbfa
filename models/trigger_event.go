package models

import (
	"time"
)

// TriggerKind discriminates the business events a lifecycle rule can watch.
type TriggerKind string

const (
	TriggerKindServiceCompleted TriggerKind = "service_completed"
	TriggerKindTransaction      TriggerKind = "after_transaction"
)

// Valid checks if the kind is valid
func (k TriggerKind) Valid() bool {
	switch k {
	case TriggerKindServiceCompleted, TriggerKindTransaction:
		return true
	default:
		return false
	}
}

// ServiceCompletion is a completed-service row polled from the booking
// calendar. Read-only to the engine.
type ServiceCompletion struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CustomerID      uint      `gorm:"not null;index:idx_service_completions_customer_id" json:"customer_id"`
	ServiceCategory string    `gorm:"size:100;not null;index:idx_service_completions_category" json:"service_category"`
	Amount          float64   `gorm:"type:numeric(12,2);not null" json:"amount"`
	CompletedAt     time.Time `gorm:"not null;index:idx_service_completions_completed_at" json:"completed_at"`
	CreatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (ServiceCompletion) TableName() string { return "service_completions" }

// Transaction is a completed point-of-sale purchase polled from the POS
// system. Read-only to the engine; also the revenue source for attribution.
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CustomerID  uint      `gorm:"not null;index:idx_transactions_customer_id" json:"customer_id"`
	Amount      float64   `gorm:"type:numeric(12,2);not null" json:"amount"`
	CompletedAt time.Time `gorm:"not null;index:idx_transactions_completed_at" json:"completed_at"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

// TriggerEvent is the tagged union the scheduler consumes. Category is only
// set for service completions; Amount is set for both kinds.
type TriggerEvent struct {
	Kind       TriggerKind
	CustomerID uint
	OccurredAt time.Time
	Amount     float64
	Category   string
}

// ServiceCompletionFilter provides filter fields for repository queries
type ServiceCompletionFilter struct {
	ID              *uint
	CustomerID      *uint
	ServiceCategory *string
	CompletedAfter  *time.Time
	CompletedBefore *time.Time
}

// TransactionFilter provides filter fields for repository queries
type TransactionFilter struct {
	ID              *uint
	CustomerID      *uint
	MinAmount       *float64
	CompletedAfter  *time.Time
	CompletedBefore *time.Time
}
