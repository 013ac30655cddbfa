// Package businessflow contains the core business logic for the phase two executor
package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/config"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
)

// Skip reasons recorded on executions the executor refuses to send
const (
	SkipReasonCustomerNotFound = "customer not found"
	SkipReasonCustomerInactive = "customer inactive"
	SkipReasonNoDestination    = "customer has no destination for channel"
	SkipReasonRuleInactive     = "rule is inactive"
	SkipReasonConsentDenied    = "consent not granted at send time"
)

// ExecutorSummary counts the terminal transitions performed by one run
type ExecutorSummary struct {
	Sent    int
	Failed  int
	Skipped int
}

// ExecutorFlow sends due pending executions and transitions each to a
// terminal status exactly once.
type ExecutorFlow interface {
	Run(ctx context.Context, now time.Time) (ExecutorSummary, error)
}

// ExecutorFlowImpl implements the execution phase
type ExecutorFlowImpl struct {
	execRepo      repository.LifecycleExecutionRepository
	ruleRepo      repository.LifecycleRuleRepository
	customerRepo  repository.CustomerRepository
	settingsRepo  repository.BusinessSettingsRepository
	shortLinkRepo repository.ShortLinkRepository
	consentFlow   ConsentFlow
	templates     services.TemplateService
	shortLinker   services.ShortLinker
	provider      services.DeliveryProvider
	cfg           config.EngineConfig
	logger        *log.Logger
}

// NewExecutorFlow creates a new executor flow instance
func NewExecutorFlow(
	execRepo repository.LifecycleExecutionRepository,
	ruleRepo repository.LifecycleRuleRepository,
	customerRepo repository.CustomerRepository,
	settingsRepo repository.BusinessSettingsRepository,
	shortLinkRepo repository.ShortLinkRepository,
	consentFlow ConsentFlow,
	templates services.TemplateService,
	shortLinker services.ShortLinker,
	provider services.DeliveryProvider,
	cfg config.EngineConfig,
	logger *log.Logger,
) ExecutorFlow {
	return &ExecutorFlowImpl{
		execRepo:      execRepo,
		ruleRepo:      ruleRepo,
		customerRepo:  customerRepo,
		settingsRepo:  settingsRepo,
		shortLinkRepo: shortLinkRepo,
		consentFlow:   consentFlow,
		templates:     templates,
		shortLinker:   shortLinker,
		provider:      provider,
		cfg:           cfg,
		logger:        logger,
	}
}

// Run selects due pending executions in scheduled-for order, capped at the
// batch size, and processes each independently. A row failure never aborts
// the batch; rows left pending are picked up by the next tick.
func (f *ExecutorFlowImpl) Run(ctx context.Context, now time.Time) (ExecutorSummary, error) {
	now = now.UTC()
	var summary ExecutorSummary

	due, err := f.execRepo.ListDuePending(ctx, now, f.cfg.ExecutorBatchSize)
	if err != nil {
		return summary, NewBusinessError("EXECUTION_READ_FAILED", "Failed to read due executions", err)
	}
	if len(due) == 0 {
		return summary, nil
	}

	settings, err := f.settingsRepo.Get(ctx)
	if err != nil {
		return summary, NewBusinessError("SETTINGS_READ_FAILED", "Failed to read business settings", err)
	}

	f.logger.Printf("executor: processing %d due executions", len(due))

	for _, exec := range due {
		f.processExecution(ctx, exec, settings, &summary)
	}

	f.logger.Printf("executor: sent=%d failed=%d skipped=%d", summary.Sent, summary.Failed, summary.Skipped)
	return summary, nil
}

func (f *ExecutorFlowImpl) processExecution(ctx context.Context, exec *models.LifecycleExecution, settings *models.BusinessSettings, summary *ExecutorSummary) {
	rule := exec.Rule
	if rule == nil {
		var err error
		rule, err = f.ruleRepo.ByID(ctx, exec.RuleID)
		if err != nil {
			f.logger.Printf("executor: rule lookup failed for execution %d: %v", exec.ID, err)
			return
		}
	}
	if rule == nil || !utils.IsTrue(rule.IsActive) {
		f.skip(ctx, exec, SkipReasonRuleInactive, summary)
		return
	}

	customer, err := f.customerRepo.ByID(ctx, exec.CustomerID)
	if err != nil {
		// Transient read failure; the row stays pending for the next tick
		f.logger.Printf("executor: customer lookup failed for execution %d: %v", exec.ID, err)
		return
	}
	if customer == nil {
		f.skip(ctx, exec, SkipReasonCustomerNotFound, summary)
		return
	}
	if !utils.IsTrue(customer.IsActive) {
		f.skip(ctx, exec, SkipReasonCustomerInactive, summary)
		return
	}

	destination := customer.Destination(rule.Channel)
	if destination == "" {
		f.skip(ctx, exec, SkipReasonNoDestination, summary)
		return
	}

	// Consent is re-validated at send time, not at schedule time; the
	// customer may have opted out in between
	granted, err := f.consentFlow.Check(ctx, customer.ID, rule.Channel)
	if err != nil {
		f.logger.Printf("executor: consent check failed for execution %d: %v", exec.ID, err)
		return
	}
	if !granted {
		f.skip(ctx, exec, SkipReasonConsentDenied, summary)
		return
	}

	vars := settings.TemplateVars()
	vars["name"] = customer.FirstName()

	var shortLinkCode *string
	if f.templates.HasLink(rule.MessageTemplate) {
		code, err := f.allocateShortLink(ctx, rule, exec, settings)
		if err != nil {
			reason := fmt.Sprintf("short link allocation failed: %v", err)
			f.fail(ctx, exec, reason, summary)
			return
		}
		vars["link"] = f.shortLinker.ResolveURL(code)
		shortLinkCode = &code
	}

	body := f.templates.Render(rule.MessageTemplate, vars)

	result, err := f.provider.Send(ctx, destination, body, exec.TrackingID)
	if err != nil {
		reason := fmt.Sprintf("provider send failed: %v", err)
		f.fail(ctx, exec, reason, summary)
		return
	}

	sentAt := utils.UTCNow()
	claimed, err := f.execRepo.ClaimPending(ctx, exec.ID, models.ExecutionStatusSent, nil, &sentAt, shortLinkCode)
	if err != nil {
		f.logger.Printf("executor: claim failed for execution %d: %v", exec.ID, err)
		return
	}
	if !claimed {
		f.logger.Printf("executor: execution %d already terminal, not counting", exec.ID)
		return
	}

	summary.Sent++
	if result.ProviderMessageID != "" {
		f.logger.Printf("executor: sent execution %d tracking=%s provider_message=%s", exec.ID, exec.TrackingID, result.ProviderMessageID)
	}
}

// allocateShortLink creates a trackable link for one send and records it so
// clicks can be joined back to the rule
func (f *ExecutorFlowImpl) allocateShortLink(ctx context.Context, rule *models.LifecycleRule, exec *models.LifecycleExecution, settings *models.BusinessSettings) (string, error) {
	longURL := ""
	if settings.BookingLink != nil {
		longURL = *settings.BookingLink
	} else if settings.ReviewLink != nil {
		longURL = *settings.ReviewLink
	}
	if longURL == "" {
		return "", fmt.Errorf("no long link configured in business settings")
	}

	code, err := f.shortLinker.Create(ctx, longURL, exec.TrackingID)
	if err != nil {
		return "", err
	}

	link := &models.ShortLink{
		Code:       code,
		RuleID:     &rule.ID,
		TrackingID: &exec.TrackingID,
		LongLink:   longURL,
		CreatedAt:  utils.UTCNow(),
	}
	if err := f.shortLinkRepo.SaveLink(ctx, link); err != nil {
		// The send can still go out; only click analytics lose this row
		f.logger.Printf("executor: saving short link %s failed: %v", code, err)
	}

	return code, nil
}

func (f *ExecutorFlowImpl) skip(ctx context.Context, exec *models.LifecycleExecution, reason string, summary *ExecutorSummary) {
	claimed, err := f.execRepo.ClaimPending(ctx, exec.ID, models.ExecutionStatusSkipped, &reason, nil, nil)
	if err != nil {
		f.logger.Printf("executor: skip claim failed for execution %d: %v", exec.ID, err)
		return
	}
	if claimed {
		summary.Skipped++
	}
}

func (f *ExecutorFlowImpl) fail(ctx context.Context, exec *models.LifecycleExecution, reason string, summary *ExecutorSummary) {
	claimed, err := f.execRepo.ClaimPending(ctx, exec.ID, models.ExecutionStatusFailed, &reason, nil, nil)
	if err != nil {
		f.logger.Printf("executor: fail claim failed for execution %d: %v", exec.ID, err)
		return
	}
	if claimed {
		summary.Failed++
	}
}
