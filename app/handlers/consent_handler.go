// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/app/dto"
	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// ConsentHandlerInterface defines the contract for consent ledger handlers
type ConsentHandlerInterface interface {
	UpdateConsent(c fiber.Ctx) error
	ConsentHistory(c fiber.Ctx) error
}

// ConsentHandler handles consent ledger HTTP requests
type ConsentHandler struct {
	consentFlow businessflow.ConsentFlow
	validator   *validator.Validate
}

// NewConsentHandler creates a new consent handler
func NewConsentHandler(consentFlow businessflow.ConsentFlow) *ConsentHandler {
	return &ConsentHandler{
		consentFlow: consentFlow,
		validator:   validator.New(),
	}
}

func (h *ConsentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ConsentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// UpdateConsent records an opt-in or opt-out and flips the current flag
func (h *ConsentHandler) UpdateConsent(c fiber.Ctx) error {
	var req dto.RecordConsentRequest
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

	result, err := h.consentFlow.Update(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsConsentChannelInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Consent channel is invalid", "CONSENT_CHANNEL_INVALID", nil)
		}
		if businessflow.IsConsentActionInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Consent action is invalid", "CONSENT_ACTION_INVALID", nil)
		}

		log.Println("Consent update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Consent update failed", "CONSENT_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Consent recorded successfully", result)
}

// ConsentHistory returns the current flags plus the append-only event trail
func (h *ConsentHandler) ConsentHistory(c fiber.Ctx) error {
	req := dto.GetConsentHistoryRequest{CustomerUUID: c.Params("customer_id")}
	if _, err := uuid.Parse(req.CustomerUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Customer UUID is invalid", "CUSTOMER_UUID_INVALID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.consentFlow.History(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}

		log.Println("Consent history read failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Consent history read failed", "CONSENT_READ_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Consent history retrieved successfully", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *ConsentHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup

	return ctx
}
