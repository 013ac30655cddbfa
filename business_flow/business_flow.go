// Package businessflow contains the business logic for the lifecycle engine.
package businessflow

import (
	"github.com/amirphl/Kusanagi/app/dto"
	"github.com/amirphl/Kusanagi/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds caller information for request tracing
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToLifecycleRuleDTO converts a rule model to its response representation
func ToLifecycleRuleDTO(rule *models.LifecycleRule) dto.GetLifecycleRuleResponse {
	var minSpend *float64
	if rule.MinSpend != nil {
		v := *rule.MinSpend
		minSpend = &v
	}

	return dto.GetLifecycleRuleResponse{
		UUID:              rule.UUID.String(),
		Name:              rule.Name,
		Trigger:           string(rule.Trigger),
		DelayMinutes:      rule.DelayMinutes,
		MessageTemplate:   rule.MessageTemplate,
		Channel:           string(rule.Channel),
		MinSpend:          minSpend,
		ServiceCategories: rule.ServiceCategories,
		ChainOrder:        rule.ChainOrder,
		IsActive:          rule.IsActive != nil && *rule.IsActive,
		CreatedAt:         rule.CreatedAt,
		UpdatedAt:         rule.UpdatedAt,
	}
}
