package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Scan implements the sql.Scanner interface for TriggerKind
func (k *TriggerKind) Scan(value any) error {
	if value == nil {
		*k = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*k = TriggerKind(v)
	case []byte:
		*k = TriggerKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TriggerKind", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TriggerKind
func (k TriggerKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid TriggerKind: %s", k)
	}
	return string(k), nil
}

// LifecycleRule is a configured automation: when a trigger event is observed
// for a qualifying customer, a message is scheduled DelayMinutes later.
type LifecycleRule struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_lifecycle_rules_uuid" json:"uuid"`
	Name              string         `gorm:"size:255;not null" json:"name"`
	Trigger           TriggerKind    `gorm:"column:trigger_kind;type:lifecycle_trigger;not null;index:idx_lifecycle_rules_trigger" json:"trigger"`
	DelayMinutes      int            `gorm:"not null;default:0" json:"delay_minutes"`
	MessageTemplate   string         `gorm:"type:text;not null" json:"message_template"`
	Channel           ConsentChannel `gorm:"type:consent_channel;not null;default:'sms'" json:"channel"`
	MinSpend          *float64       `gorm:"type:numeric(12,2)" json:"min_spend,omitempty"`
	ServiceCategories pq.StringArray `gorm:"type:text[]" json:"service_categories,omitempty"`
	ChainOrder        int            `gorm:"not null;default:0;index:idx_lifecycle_rules_chain_order" json:"chain_order"`
	IsActive          *bool          `gorm:"default:true;index:idx_lifecycle_rules_is_active" json:"is_active"`
	CreatedAt         time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         *time.Time     `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (LifecycleRule) TableName() string {
	return "lifecycle_rules"
}

// BeforeCreate is called before creating a new record
func (r *LifecycleRule) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (r *LifecycleRule) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	r.UpdatedAt = &now
	return nil
}

// Delay returns the configured delay as a duration.
func (r *LifecycleRule) Delay() time.Duration {
	return time.Duration(r.DelayMinutes) * time.Minute
}

// Matches reports whether the trigger event passes the rule's audience
// filters (minimum spend and service category).
func (r *LifecycleRule) Matches(ev TriggerEvent) bool {
	if ev.Kind != r.Trigger {
		return false
	}
	if r.MinSpend != nil && ev.Amount < *r.MinSpend {
		return false
	}
	if len(r.ServiceCategories) > 0 {
		found := false
		for _, cat := range r.ServiceCategories {
			if cat == ev.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// LifecycleRuleFilter represents filter criteria for lifecycle rules
type LifecycleRuleFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Trigger       *TriggerKind
	Channel       *ConsentChannel
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
