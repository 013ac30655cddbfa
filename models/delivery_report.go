package models

import "time"

// DeliveryStatus enumerates provider-reported delivery outcomes
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusUnknown   DeliveryStatus = "unknown"
)

// Valid checks if the status is valid
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusFailed, DeliveryStatusUnknown:
		return true
	default:
		return false
	}
}

// DeliveryReport records an asynchronous status callback from the delivery
// provider. Separate from LifecycleExecution.Status: a successful send
// attempt is not a delivery confirmation.
type DeliveryReport struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	TrackingID        string         `gorm:"size:64;not null;index:idx_delivery_reports_tracking_id" json:"tracking_id"`
	ProviderMessageID *string        `gorm:"size:128" json:"provider_message_id,omitempty"`
	Status            DeliveryStatus `gorm:"type:delivery_status;not null;default:'unknown'" json:"status"`
	ReportedAt        time.Time      `gorm:"not null;index:idx_delivery_reports_reported_at" json:"reported_at"`
	CreatedAt         time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (DeliveryReport) TableName() string { return "delivery_reports" }

// DeliveryReportFilter provides filter fields for repository queries
type DeliveryReportFilter struct {
	ID            *uint
	TrackingID    *string
	Status        *DeliveryStatus
	ReportedAfter *time.Time
}
