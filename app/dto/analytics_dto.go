package dto

import (
	"time"
)

// GetRuleAnalyticsRequest represents the request to compute attribution for one rule
type GetRuleAnalyticsRequest struct {
	UUID   string         `json:"-"`
	From   *time.Time     `json:"-"`
	To     *time.Time     `json:"-"`
	Window *time.Duration `json:"-"`
}

// RuleAttributionDTO represents attributed revenue for one rule
type RuleAttributionDTO struct {
	MessagesSent      int     `json:"messages_sent"`
	CustomersReached  int     `json:"customers_reached"`
	CustomersReturned int     `json:"customers_returned"`
	AttributedRevenue float64 `json:"attributed_revenue"`
	ConversionRate    float64 `json:"conversion_rate"`
}

// GetRuleAnalyticsResponse represents the analytics read for one rule
type GetRuleAnalyticsResponse struct {
	UUID        string             `json:"uuid"`
	Name        string             `json:"name"`
	Window      string             `json:"window"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	Attribution RuleAttributionDTO `json:"attribution"`
	Delivered   int                `json:"delivered"`
	Clicks      int                `json:"clicks"`
}
