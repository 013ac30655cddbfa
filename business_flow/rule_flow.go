// Package businessflow contains the core business logic and use cases for lifecycle rule management
package businessflow

import (
	"context"
	"log"

	"github.com/amirphl/Kusanagi/app/dto"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// RuleFlow handles the lifecycle rule store business logic
type RuleFlow interface {
	CreateRule(ctx context.Context, req *dto.CreateLifecycleRuleRequest, metadata *ClientMetadata) (*dto.CreateLifecycleRuleResponse, error)
	UpdateRule(ctx context.Context, req *dto.UpdateLifecycleRuleRequest, metadata *ClientMetadata) (*dto.GetLifecycleRuleResponse, error)
	ListRules(ctx context.Context, req *dto.ListLifecycleRulesRequest, metadata *ClientMetadata) (*dto.ListLifecycleRulesResponse, error)
	DisableRule(ctx context.Context, ruleUUID string, metadata *ClientMetadata) (*dto.GetLifecycleRuleResponse, error)
}

// RuleFlowImpl implements the lifecycle rule business flow
type RuleFlowImpl struct {
	ruleRepo repository.LifecycleRuleRepository
	logger   *log.Logger
}

// NewRuleFlow creates a new rule flow instance
func NewRuleFlow(
	ruleRepo repository.LifecycleRuleRepository,
	logger *log.Logger,
) RuleFlow {
	return &RuleFlowImpl{
		ruleRepo: ruleRepo,
		logger:   logger,
	}
}

// CreateRule validates and persists a new lifecycle rule
func (f *RuleFlowImpl) CreateRule(ctx context.Context, req *dto.CreateLifecycleRuleRequest, metadata *ClientMetadata) (*dto.CreateLifecycleRuleResponse, error) {
	if err := f.validateCreateRuleRequest(req); err != nil {
		return nil, NewBusinessError("RULE_VALIDATION_FAILED", "Rule validation failed", err)
	}

	rule := &models.LifecycleRule{
		UUID:              uuid.New(),
		Name:              req.Name,
		Trigger:           models.TriggerKind(req.Trigger),
		DelayMinutes:      req.DelayMinutes,
		MessageTemplate:   req.MessageTemplate,
		Channel:           models.ConsentChannel(req.Channel),
		MinSpend:          req.MinSpend,
		ServiceCategories: pq.StringArray(req.ServiceCategories),
		ChainOrder:        req.ChainOrder,
		IsActive:          utils.ToPtr(true),
		CreatedAt:         utils.UTCNow(),
	}

	if err := f.ruleRepo.Save(ctx, rule); err != nil {
		return nil, NewBusinessError("RULE_CREATION_FAILED", "Rule creation failed", err)
	}

	f.logger.Printf("rules: created rule %s (%s)", rule.UUID, rule.Name)

	return &dto.CreateLifecycleRuleResponse{
		UUID:      rule.UUID.String(),
		CreatedAt: rule.CreatedAt,
	}, nil
}

// UpdateRule applies a partial update to an existing rule
func (f *RuleFlowImpl) UpdateRule(ctx context.Context, req *dto.UpdateLifecycleRuleRequest, metadata *ClientMetadata) (*dto.GetLifecycleRuleResponse, error) {
	rule, err := f.lookupRule(ctx, req.UUID)
	if err != nil {
		return nil, err
	}

	if err := f.validateUpdateRuleRequest(req); err != nil {
		return nil, NewBusinessError("RULE_UPDATE_VALIDATION_FAILED", "Rule update validation failed", err)
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.DelayMinutes != nil {
		rule.DelayMinutes = *req.DelayMinutes
	}
	if req.MessageTemplate != nil {
		rule.MessageTemplate = *req.MessageTemplate
	}
	if req.MinSpend != nil {
		rule.MinSpend = req.MinSpend
	}
	if req.ServiceCategories != nil {
		rule.ServiceCategories = pq.StringArray(req.ServiceCategories)
	}
	if req.ChainOrder != nil {
		rule.ChainOrder = *req.ChainOrder
	}
	if req.IsActive != nil {
		rule.IsActive = req.IsActive
	}
	rule.UpdatedAt = utils.UTCNowPtr()

	if err := f.ruleRepo.Update(ctx, rule); err != nil {
		return nil, NewBusinessError("RULE_UPDATE_FAILED", "Rule update failed", err)
	}

	f.logger.Printf("rules: updated rule %s", rule.UUID)

	resp := ToLifecycleRuleDTO(rule)
	return &resp, nil
}

// ListRules returns rules matching the optional trigger and active filters
func (f *RuleFlowImpl) ListRules(ctx context.Context, req *dto.ListLifecycleRulesRequest, metadata *ClientMetadata) (*dto.ListLifecycleRulesResponse, error) {
	filter := models.LifecycleRuleFilter{}
	if req.Trigger != nil {
		kind := models.TriggerKind(*req.Trigger)
		if !kind.Valid() {
			return nil, NewBusinessError("RULE_TRIGGER_INVALID", "Rule trigger is invalid", ErrRuleTriggerInvalid)
		}
		filter.Trigger = &kind
	}
	filter.IsActive = req.IsActive

	rules, err := f.ruleRepo.ByFilter(ctx, filter, "chain_order ASC, id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("RULE_LIST_FAILED", "Failed to list rules", err)
	}

	items := make([]dto.GetLifecycleRuleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, ToLifecycleRuleDTO(rule))
	}

	return &dto.ListLifecycleRulesResponse{
		Rules: items,
		Total: len(items),
	}, nil
}

// DisableRule soft-disables a rule. Rules are never deleted while executions
// reference them.
func (f *RuleFlowImpl) DisableRule(ctx context.Context, ruleUUID string, metadata *ClientMetadata) (*dto.GetLifecycleRuleResponse, error) {
	rule, err := f.lookupRule(ctx, ruleUUID)
	if err != nil {
		return nil, err
	}

	rule.IsActive = utils.ToPtr(false)
	rule.UpdatedAt = utils.UTCNowPtr()

	if err := f.ruleRepo.Update(ctx, rule); err != nil {
		return nil, NewBusinessError("RULE_DISABLE_FAILED", "Rule disable failed", err)
	}

	f.logger.Printf("rules: disabled rule %s", rule.UUID)

	resp := ToLifecycleRuleDTO(rule)
	return &resp, nil
}

func (f *RuleFlowImpl) lookupRule(ctx context.Context, ruleUUID string) (*models.LifecycleRule, error) {
	if ruleUUID == "" {
		return nil, NewBusinessError("RULE_UUID_REQUIRED", "Rule UUID is required", ErrRuleUUIDRequired)
	}

	parsed, err := uuid.Parse(ruleUUID)
	if err != nil {
		return nil, NewBusinessError("RULE_UUID_INVALID", "Rule UUID is invalid", err)
	}

	rule, err := f.ruleRepo.ByUUID(ctx, parsed)
	if err != nil {
		return nil, NewBusinessError("RULE_LOOKUP_FAILED", "Failed to lookup rule", err)
	}
	if rule == nil {
		return nil, NewBusinessError("RULE_NOT_FOUND", "Rule not found", ErrRuleNotFound)
	}

	return rule, nil
}

func (f *RuleFlowImpl) validateCreateRuleRequest(req *dto.CreateLifecycleRuleRequest) error {
	if req.Name == "" {
		return ErrRuleNameRequired
	}
	if req.MessageTemplate == "" {
		return ErrRuleTemplateRequired
	}
	if !models.TriggerKind(req.Trigger).Valid() {
		return ErrRuleTriggerInvalid
	}
	if !models.ConsentChannel(req.Channel).Valid() {
		return ErrRuleChannelInvalid
	}
	if req.DelayMinutes < 0 {
		return ErrRuleDelayNegative
	}
	if req.MinSpend != nil && *req.MinSpend <= 0 {
		return ErrRuleMinSpendInvalid
	}
	return nil
}

func (f *RuleFlowImpl) validateUpdateRuleRequest(req *dto.UpdateLifecycleRuleRequest) error {
	if req.Name == nil && req.DelayMinutes == nil && req.MessageTemplate == nil &&
		req.MinSpend == nil && req.ServiceCategories == nil && req.ChainOrder == nil &&
		req.IsActive == nil {
		return ErrRuleUpdateRequired
	}
	if req.Name != nil && *req.Name == "" {
		return ErrRuleNameRequired
	}
	if req.MessageTemplate != nil && *req.MessageTemplate == "" {
		return ErrRuleTemplateRequired
	}
	if req.DelayMinutes != nil && *req.DelayMinutes < 0 {
		return ErrRuleDelayNegative
	}
	if req.MinSpend != nil && *req.MinSpend <= 0 {
		return ErrRuleMinSpendInvalid
	}
	return nil
}
