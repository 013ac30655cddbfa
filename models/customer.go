package models

import (
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer represents a business contact owned by the platform.
// The engine only reads customers; creation and editing happen in the
// booking/POS surface.
type Customer struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`
	FullName  string     `gorm:"size:255;not null" json:"full_name"`
	Mobile    *string    `gorm:"size:20;index:idx_customers_mobile" json:"mobile,omitempty"`
	Email     *string    `gorm:"size:255;index:idx_customers_email" json:"email,omitempty"`
	IsActive  *bool      `gorm:"default:true;index:idx_customers_is_active" json:"is_active"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Customer) TableName() string {
	return "customers"
}

// BeforeCreate is called before creating a new record
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// Destination returns the send destination for the given channel, or an
// empty string when the customer has none.
func (c *Customer) Destination(channel ConsentChannel) string {
	switch channel {
	case ConsentChannelSMS:
		if c.Mobile != nil {
			return *c.Mobile
		}
	case ConsentChannelEmail:
		if c.Email != nil {
			return *c.Email
		}
	}
	return ""
}

// FirstName returns the leading word of the full name for template greetings.
func (c *Customer) FirstName() string {
	for i := 0; i < len(c.FullName); i++ {
		if c.FullName[i] == ' ' {
			return c.FullName[:i]
		}
	}
	return c.FullName
}

// CustomerFilter represents filter criteria for customers
type CustomerFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Mobile        *string
	Email         *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
