// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/app/dto"
	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// RuleHandlerInterface defines the contract for lifecycle rule handlers
type RuleHandlerInterface interface {
	CreateRule(c fiber.Ctx) error
	UpdateRule(c fiber.Ctx) error
	ListRules(c fiber.Ctx) error
	DisableRule(c fiber.Ctx) error
	RuleAnalytics(c fiber.Ctx) error
}

// RuleHandler handles lifecycle rule HTTP requests
type RuleHandler struct {
	ruleFlow      businessflow.RuleFlow
	analyticsFlow businessflow.AnalyticsFlow
	validator     *validator.Validate
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(ruleFlow businessflow.RuleFlow, analyticsFlow businessflow.AnalyticsFlow) *RuleHandler {
	return &RuleHandler{
		ruleFlow:      ruleFlow,
		analyticsFlow: analyticsFlow,
		validator:     validator.New(),
	}
}

func (h *RuleHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RuleHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateRule handles lifecycle rule creation
func (h *RuleHandler) CreateRule(c fiber.Ctx) error {
	var req dto.CreateLifecycleRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.ruleFlow.CreateRule(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsRuleTriggerInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule trigger is invalid", "RULE_TRIGGER_INVALID", nil)
		}

		log.Println("Rule creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Rule creation failed", "RULE_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Lifecycle rule created successfully", result)
}

// UpdateRule handles partial rule updates
func (h *RuleHandler) UpdateRule(c fiber.Ctx) error {
	var req dto.UpdateLifecycleRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = c.Params("uuid")
	if _, err := uuid.Parse(req.UUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule UUID is invalid", "RULE_UUID_INVALID", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.ruleFlow.UpdateRule(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Rule not found", "RULE_NOT_FOUND", nil)
		}
		if businessflow.IsRuleUpdateRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one field must be provided", "RULE_UPDATE_REQUIRED", nil)
		}

		log.Println("Rule update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Rule update failed", "RULE_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lifecycle rule updated successfully", result)
}

// ListRules handles listing rules with optional trigger/active filters
func (h *RuleHandler) ListRules(c fiber.Ctx) error {
	var req dto.ListLifecycleRulesRequest
	if trigger := c.Query("trigger"); trigger != "" {
		req.Trigger = &trigger
	}
	if active := c.Query("is_active"); active != "" {
		req.IsActive = utils.ToPtr(active == "true")
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.ruleFlow.ListRules(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsRuleTriggerInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule trigger is invalid", "RULE_TRIGGER_INVALID", nil)
		}

		log.Println("Rule list failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Rule list failed", "RULE_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lifecycle rules retrieved successfully", result)
}

// DisableRule soft-disables a rule
func (h *RuleHandler) DisableRule(c fiber.Ctx) error {
	if _, err := uuid.Parse(c.Params("uuid")); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule UUID is invalid", "RULE_UUID_INVALID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.ruleFlow.DisableRule(h.createRequestContext(c), c.Params("uuid"), metadata)
	if err != nil {
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Rule not found", "RULE_NOT_FOUND", nil)
		}

		log.Println("Rule disable failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Rule disable failed", "RULE_DISABLE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lifecycle rule disabled successfully", result)
}

// RuleAnalytics returns per-rule status, delivery, click and attribution reads
func (h *RuleHandler) RuleAnalytics(c fiber.Ctx) error {
	req := dto.GetRuleAnalyticsRequest{UUID: c.Params("uuid")}
	if _, err := uuid.Parse(req.UUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Rule UUID is invalid", "RULE_UUID_INVALID", nil)
	}

	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid from timestamp", "INVALID_FROM", err.Error())
		}
		req.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid to timestamp", "INVALID_TO", err.Error())
		}
		req.To = &t
	}
	if window := c.Query("window"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil || d <= 0 {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid attribution window", "INVALID_WINDOW", nil)
		}
		req.Window = &d
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.analyticsFlow.RuleAnalytics(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Rule not found", "RULE_NOT_FOUND", nil)
		}
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "PERIOD_INVALID", nil)
		}

		log.Println("Rule analytics failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Rule analytics failed", "RULE_ANALYTICS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Rule analytics retrieved successfully", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *RuleHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup

	return ctx
}
