package dto

import (
	"time"
)

// CreateLifecycleRuleRequest represents the request to create a new lifecycle rule
type CreateLifecycleRuleRequest struct {
	Name              string   `json:"name" validate:"required,min=1,max=255"`
	Trigger           string   `json:"trigger" validate:"required,oneof=service_completed after_transaction"`
	DelayMinutes      int      `json:"delay_minutes" validate:"min=0"`
	MessageTemplate   string   `json:"message_template" validate:"required,min=1"`
	Channel           string   `json:"channel" validate:"required,oneof=sms email"`
	MinSpend          *float64 `json:"min_spend,omitempty" validate:"omitempty,gt=0"`
	ServiceCategories []string `json:"service_categories,omitempty"`
	ChainOrder        int      `json:"chain_order" validate:"min=0"`
}

// CreateLifecycleRuleResponse represents the response to create a new lifecycle rule
type CreateLifecycleRuleResponse struct {
	UUID      string    `json:"uuid"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateLifecycleRuleRequest represents the request to update an existing lifecycle rule
type UpdateLifecycleRuleRequest struct {
	UUID              string   `json:"-"`
	Name              *string  `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	DelayMinutes      *int     `json:"delay_minutes,omitempty" validate:"omitempty,min=0"`
	MessageTemplate   *string  `json:"message_template,omitempty" validate:"omitempty,min=1"`
	MinSpend          *float64 `json:"min_spend,omitempty" validate:"omitempty,gt=0"`
	ServiceCategories []string `json:"service_categories,omitempty"`
	ChainOrder        *int     `json:"chain_order,omitempty" validate:"omitempty,min=0"`
	IsActive          *bool    `json:"is_active,omitempty"`
}

// GetLifecycleRuleResponse represents a lifecycle rule in responses
type GetLifecycleRuleResponse struct {
	UUID              string     `json:"uuid"`
	Name              string     `json:"name"`
	Trigger           string     `json:"trigger"`
	DelayMinutes      int        `json:"delay_minutes"`
	MessageTemplate   string     `json:"message_template"`
	Channel           string     `json:"channel"`
	MinSpend          *float64   `json:"min_spend,omitempty"`
	ServiceCategories []string   `json:"service_categories,omitempty"`
	ChainOrder        int        `json:"chain_order"`
	IsActive          bool       `json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// ListLifecycleRulesRequest represents the request to list lifecycle rules
type ListLifecycleRulesRequest struct {
	Trigger  *string `json:"-"`
	IsActive *bool   `json:"-"`
}

// ListLifecycleRulesResponse represents the response to list lifecycle rules
type ListLifecycleRulesResponse struct {
	Rules []GetLifecycleRuleResponse `json:"rules"`
	Total int                        `json:"total"`
}
