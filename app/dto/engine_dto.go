package dto

import (
	"time"
)

// TickRequest represents one engine invocation. The driver may pin the
// reference time for replays; absent, the engine uses the current time.
type TickRequest struct {
	Now *time.Time `json:"now,omitempty"`
}

// TickResponse represents the outcome of one engine invocation
type TickResponse struct {
	Scheduled int       `json:"scheduled"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   string    `json:"elapsed"`
}

// DeliveryCallbackRequest represents a delivery status report pushed by the provider
type DeliveryCallbackRequest struct {
	TrackingID        string `json:"tracking_id" validate:"required,min=1,max=64"`
	ProviderMessageID string `json:"message_id" validate:"required,min=1,max=128"`
	Status            string `json:"status" validate:"required,oneof=delivered failed unknown"`
}

// DeliveryCallbackResponse represents the acknowledgement of a delivery report
type DeliveryCallbackResponse struct {
	TrackingID string `json:"tracking_id"`
	Recorded   bool   `json:"recorded"`
}

// ClickCallbackRequest represents a click event pushed by the short-link
// service. The service proxies the end user's agent and address.
type ClickCallbackRequest struct {
	Code      string     `json:"code" validate:"required,min=1,max=64"`
	ClickedAt *time.Time `json:"clicked_at,omitempty"`
	UserAgent string     `json:"user_agent,omitempty" validate:"omitempty,max=512"`
	IP        string     `json:"ip,omitempty" validate:"omitempty,max=64"`
}

// ClickCallbackResponse represents the acknowledgement of a click event
type ClickCallbackResponse struct {
	Code     string `json:"code"`
	Recorded bool   `json:"recorded"`
}

// EngineHealthResponse represents execution counters over the health window
type EngineHealthResponse struct {
	Window    string         `json:"window"`
	Counts    map[string]int `json:"counts"`
	CheckedAt time.Time      `json:"checked_at"`
}
