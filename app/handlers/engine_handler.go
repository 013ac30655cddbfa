// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/app/dto"
	"github.com/amirphl/Kusanagi/app/middleware"
	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// EngineHandlerInterface defines the contract for engine invocation handlers
type EngineHandlerInterface interface {
	Tick(c fiber.Ctx) error
	DeliveryCallback(c fiber.Ctx) error
	ClickCallback(c fiber.Ctx) error
	Health(c fiber.Ctx) error
}

// EngineHandler handles engine invocation HTTP requests
type EngineHandler struct {
	engineFlow    businessflow.EngineFlow
	analyticsFlow businessflow.AnalyticsFlow
	validator     *validator.Validate
	tickTimeout   time.Duration
}

// NewEngineHandler creates a new engine handler
func NewEngineHandler(engineFlow businessflow.EngineFlow, analyticsFlow businessflow.AnalyticsFlow, tickTimeout time.Duration) *EngineHandler {
	if tickTimeout <= 0 {
		tickTimeout = 5 * time.Minute
	}
	return &EngineHandler{
		engineFlow:    engineFlow,
		analyticsFlow: analyticsFlow,
		validator:     validator.New(),
		tickTimeout:   tickTimeout,
	}
}

func (h *EngineHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *EngineHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Tick runs one engine invocation: scheduler then executor. Idempotent to
// repeated calls; a concurrent invocation gets 409.
func (h *EngineHandler) Tick(c fiber.Ctx) error {
	var req dto.TickRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		metadata.SetRequestID(requestID)
	}

	started := time.Now()
	result, err := h.engineFlow.Tick(h.createRequestContext(c, h.tickTimeout), &req, metadata)
	if err != nil {
		if businessflow.IsTickInProgress(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Another tick is in progress", "TICK_IN_PROGRESS", nil)
		}
		log.Println("Engine tick failed", err)
		if result != nil {
			// A phase failed after side effects were written; report the
			// partial summary so the caller can reconcile
			middleware.RecordEngineTick(result.Scheduled, result.Sent, result.Failed, result.Skipped, time.Since(started))
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Engine tick finished with errors", "TICK_PARTIAL_FAILURE", result)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Engine tick failed", "TICK_FAILED", nil)
	}

	middleware.RecordEngineTick(result.Scheduled, result.Sent, result.Failed, result.Skipped, time.Since(started))

	return h.SuccessResponse(c, fiber.StatusOK, "Engine tick completed", result)
}

// DeliveryCallback records an asynchronous delivery report from the provider
func (h *EngineHandler) DeliveryCallback(c fiber.Ctx) error {
	var req dto.DeliveryCallbackRequest
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

	result, err := h.engineFlow.RecordDelivery(h.createRequestContext(c, 30*time.Second), &req, metadata)
	if err != nil {
		log.Println("Delivery callback failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Delivery callback failed", "DELIVERY_CALLBACK_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Delivery report recorded", result)
}

// ClickCallback records a short link click pushed by the short-link service
func (h *EngineHandler) ClickCallback(c fiber.Ctx) error {
	var req dto.ClickCallbackRequest
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

	result, err := h.engineFlow.RecordClick(h.createRequestContext(c, 30*time.Second), &req, metadata)
	if err != nil {
		if businessflow.IsShortLinkNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Short link not found", "SHORT_LINK_NOT_FOUND", nil)
		}

		log.Println("Click callback failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Click callback failed", "CLICK_CALLBACK_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Click recorded", result)
}

// Health returns execution counters for operational dashboards
func (h *EngineHandler) Health(c fiber.Ctx) error {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.analyticsFlow.EngineHealth(h.createRequestContext(c, 30*time.Second), metadata)
	if err != nil {
		log.Println("Engine health read failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Engine health read failed", "HEALTH_READ_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Engine health", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *EngineHandler) createRequestContext(c fiber.Ctx, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup

	return ctx
}
