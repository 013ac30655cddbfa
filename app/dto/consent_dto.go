package dto

import (
	"time"
)

// RecordConsentRequest represents the request to record an opt-in or opt-out
type RecordConsentRequest struct {
	CustomerUUID string `json:"customer_uuid" validate:"required,uuid4"`
	Channel      string `json:"channel" validate:"required,oneof=sms email"`
	Action       string `json:"action" validate:"required,oneof=opt_in opt_out"`
	Source       string `json:"source" validate:"required,min=1,max=100"`
}

// RecordConsentResponse represents the response to record a consent change
type RecordConsentResponse struct {
	CustomerUUID string    `json:"customer_uuid"`
	Channel      string    `json:"channel"`
	OptedIn      bool      `json:"opted_in"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// ConsentStateDTO represents the current consent flag for one channel
type ConsentStateDTO struct {
	Channel   string     `json:"channel"`
	OptedIn   bool       `json:"opted_in"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ConsentEventDTO represents one entry of the append-only consent history
type ConsentEventDTO struct {
	Channel   string    `json:"channel"`
	Action    string    `json:"action"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// GetConsentHistoryRequest represents the request to read a customer's consent state
type GetConsentHistoryRequest struct {
	CustomerUUID string `json:"-"`
}

// GetConsentHistoryResponse represents the current flags plus the full event trail
type GetConsentHistoryResponse struct {
	CustomerUUID string            `json:"customer_uuid"`
	States       []ConsentStateDTO `json:"states"`
	Events       []ConsentEventDTO `json:"events"`
}
