// Package businessflow contains the core business logic and use cases for the lifecycle engine
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound = errors.New("customer not found")

	// Rule-related errors
	ErrRuleNotFound         = errors.New("lifecycle rule not found")
	ErrRuleNameRequired     = errors.New("rule name is required")
	ErrRuleTemplateRequired = errors.New("rule message template is required")
	ErrRuleTriggerInvalid   = errors.New("rule trigger is invalid")
	ErrRuleChannelInvalid   = errors.New("rule channel is invalid")
	ErrRuleDelayNegative    = errors.New("rule delay must not be negative")
	ErrRuleMinSpendInvalid  = errors.New("rule minimum spend must be positive")
	ErrRuleUpdateRequired   = errors.New("at least one field must be provided for update")
	ErrRuleUUIDRequired     = errors.New("rule UUID is required")

	// Consent-related errors
	ErrConsentChannelInvalid = errors.New("consent channel is invalid")
	ErrConsentActionInvalid  = errors.New("consent action is invalid")
	ErrConsentSourceRequired = errors.New("consent source is required")

	// Engine invocation errors
	ErrTickInProgress = errors.New("another tick holds the invocation lock")

	// Callback errors
	ErrTrackingIDRequired    = errors.New("tracking ID is required")
	ErrDeliveryStatusInvalid = errors.New("delivery status is invalid")
	ErrShortLinkCodeRequired = errors.New("short link code is required")
	ErrShortLinkNotFound     = errors.New("short link not found")

	// Filter errors
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
	ErrWindowNotPositive     = errors.New("attribution window must be positive")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

func IsRuleTriggerInvalid(err error) bool {
	return errors.Is(err, ErrRuleTriggerInvalid)
}

func IsRuleUpdateRequired(err error) bool {
	return errors.Is(err, ErrRuleUpdateRequired)
}

func IsConsentChannelInvalid(err error) bool {
	return errors.Is(err, ErrConsentChannelInvalid)
}

func IsConsentActionInvalid(err error) bool {
	return errors.Is(err, ErrConsentActionInvalid)
}

func IsTickInProgress(err error) bool {
	return errors.Is(err, ErrTickInProgress)
}

func IsShortLinkNotFound(err error) bool {
	return errors.Is(err, ErrShortLinkNotFound)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
