package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"gorm.io/gorm"
)

// ExecutionStatus represents the status of a lifecycle execution
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "pending"
	ExecutionStatusSent    ExecutionStatus = "sent"
	ExecutionStatusFailed  ExecutionStatus = "failed"
	ExecutionStatusSkipped ExecutionStatus = "skipped"
)

// String returns the string representation of the status
func (s ExecutionStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusPending, ExecutionStatusSent,
		ExecutionStatusFailed, ExecutionStatusSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status can never change again.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSent || s == ExecutionStatusFailed || s == ExecutionStatusSkipped
}

// Scan implements the sql.Scanner interface for ExecutionStatus
func (s *ExecutionStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ExecutionStatus(v)
	case []byte:
		*s = ExecutionStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ExecutionStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ExecutionStatus
func (s ExecutionStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ExecutionStatus: %s", s)
	}
	return string(s), nil
}

// LifecycleExecution is one scheduled-or-sent instance of a rule for one
// customer. Created pending by the scheduler, moved to exactly one terminal
// status by the executor, never mutated afterwards.
type LifecycleExecution struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	RuleID        uint            `gorm:"not null;index:idx_lifecycle_executions_rule_id" json:"rule_id"`
	CustomerID    uint            `gorm:"not null;index:idx_lifecycle_executions_customer_id" json:"customer_id"`
	TriggerAt     time.Time       `gorm:"not null" json:"trigger_at"`
	ScheduledFor  time.Time       `gorm:"not null;index:idx_lifecycle_executions_scheduled_for" json:"scheduled_for"`
	Status        ExecutionStatus `gorm:"type:lifecycle_execution_status;not null;default:'pending';index:idx_lifecycle_executions_status" json:"status"`
	TrackingID    string          `gorm:"size:64;not null;uniqueIndex:uk_lifecycle_executions_tracking_id" json:"tracking_id"`
	ShortLinkCode *string         `gorm:"size:64" json:"short_link_code,omitempty"`
	FailureReason *string         `gorm:"type:text" json:"failure_reason,omitempty"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
	CreatedAt     time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_lifecycle_executions_created_at" json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`

	// Relations
	Rule     *LifecycleRule `gorm:"foreignKey:RuleID;references:ID" json:"rule,omitempty"`
	Customer *Customer      `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
}

// TableName returns the table name for the model
func (LifecycleExecution) TableName() string {
	return "lifecycle_executions"
}

// BeforeCreate is called before creating a new record
func (e *LifecycleExecution) BeforeCreate(tx *gorm.DB) error {
	if e.Status == "" {
		e.Status = ExecutionStatusPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utils.UTCNow()
	}
	return nil
}

// CanTransitionTo checks if the execution can transition to the given status
func (e *LifecycleExecution) CanTransitionTo(newStatus ExecutionStatus) bool {
	if e.Status != ExecutionStatusPending {
		return false
	}
	return newStatus.IsTerminal()
}

// LifecycleExecutionFilter represents filter criteria for executions
type LifecycleExecutionFilter struct {
	ID              *uint
	RuleID          *uint
	CustomerID      *uint
	Status          *ExecutionStatus
	TrackingID      *string
	ScheduledBefore *time.Time
	ScheduledAfter  *time.Time
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
