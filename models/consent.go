package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"gorm.io/gorm"
)

// ConsentChannel enumerates messageable channels
type ConsentChannel string

const (
	ConsentChannelSMS   ConsentChannel = "sms"
	ConsentChannelEmail ConsentChannel = "email"
)

// Valid checks if the channel is valid
func (c ConsentChannel) Valid() bool {
	return c == ConsentChannelSMS || c == ConsentChannelEmail
}

// Scan implements the sql.Scanner interface for ConsentChannel
func (c *ConsentChannel) Scan(value any) error {
	if value == nil {
		*c = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*c = ConsentChannel(v)
	case []byte:
		*c = ConsentChannel(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ConsentChannel", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ConsentChannel
func (c ConsentChannel) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid ConsentChannel: %s", c)
	}
	return string(c), nil
}

// ConsentAction enumerates the two ledger actions
type ConsentAction string

const (
	ConsentActionOptIn  ConsentAction = "opt_in"
	ConsentActionOptOut ConsentAction = "opt_out"
)

// Valid checks if the action is valid
func (a ConsentAction) Valid() bool {
	return a == ConsentActionOptIn || a == ConsentActionOptOut
}

// Granted reports whether the action grants consent.
func (a ConsentAction) Granted() bool {
	return a == ConsentActionOptIn
}

// ConsentRecord holds the current opt-in flag per (customer, channel).
// The flag must always equal the action of the most recent ConsentEvent for
// that pair; all mutations go through the consent flow, never direct writes.
type ConsentRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CustomerID uint           `gorm:"not null;uniqueIndex:uk_consent_records_customer_channel" json:"customer_id"`
	Channel    ConsentChannel `gorm:"type:consent_channel;not null;uniqueIndex:uk_consent_records_customer_channel" json:"channel"`
	OptedIn    bool           `gorm:"not null;default:false" json:"opted_in"`
	CreatedAt  time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (ConsentRecord) TableName() string {
	return "consent_records"
}

// BeforeCreate is called before creating a new record
func (r *ConsentRecord) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ConsentEvent is one append-only ledger entry. Rows are never updated or
// deleted.
type ConsentEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CustomerID uint           `gorm:"not null;index:idx_consent_events_customer_id" json:"customer_id"`
	Channel    ConsentChannel `gorm:"type:consent_channel;not null" json:"channel"`
	Action     ConsentAction  `gorm:"type:consent_action;not null" json:"action"`
	Source     string         `gorm:"size:100;not null" json:"source"`
	CreatedAt  time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_consent_events_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (ConsentEvent) TableName() string {
	return "consent_events"
}

// ConsentRecordFilter provides filter fields for repository queries
type ConsentRecordFilter struct {
	ID         *uint
	CustomerID *uint
	Channel    *ConsentChannel
	OptedIn    *bool
}

// ConsentEventFilter provides filter fields for repository queries
type ConsentEventFilter struct {
	ID            *uint
	CustomerID    *uint
	Channel       *ConsentChannel
	Action        *ConsentAction
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
