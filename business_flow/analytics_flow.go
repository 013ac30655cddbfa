// Package businessflow contains the read-only analytics composition for dashboards
package businessflow

import (
	"context"
	"log"
	"math"

	"github.com/amirphl/Kusanagi/app/dto"
	"github.com/amirphl/Kusanagi/config"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
)

// AnalyticsFlow composes execution counters, delivery reports, clicks and
// attribution into operator-facing reads
type AnalyticsFlow interface {
	EngineHealth(ctx context.Context, metadata *ClientMetadata) (*dto.EngineHealthResponse, error)
	RuleAnalytics(ctx context.Context, req *dto.GetRuleAnalyticsRequest, metadata *ClientMetadata) (*dto.GetRuleAnalyticsResponse, error)
}

// AnalyticsFlowImpl implements the analytics reads
type AnalyticsFlowImpl struct {
	ruleRepo     repository.LifecycleRuleRepository
	execRepo     repository.LifecycleExecutionRepository
	deliveryRepo repository.DeliveryReportRepository
	linkRepo     repository.ShortLinkRepository
	attribution  AttributionFlow
	cfg          config.EngineConfig
	logger       *log.Logger
}

// NewAnalyticsFlow creates a new analytics flow instance
func NewAnalyticsFlow(
	ruleRepo repository.LifecycleRuleRepository,
	execRepo repository.LifecycleExecutionRepository,
	deliveryRepo repository.DeliveryReportRepository,
	linkRepo repository.ShortLinkRepository,
	attribution AttributionFlow,
	cfg config.EngineConfig,
	logger *log.Logger,
) AnalyticsFlow {
	return &AnalyticsFlowImpl{
		ruleRepo:     ruleRepo,
		execRepo:     execRepo,
		deliveryRepo: deliveryRepo,
		linkRepo:     linkRepo,
		attribution:  attribution,
		cfg:          cfg,
		logger:       logger,
	}
}

// EngineHealth returns execution counters over the configured health window
func (f *AnalyticsFlowImpl) EngineHealth(ctx context.Context, metadata *ClientMetadata) (*dto.EngineHealthResponse, error) {
	now := utils.UTCNow()
	since := now.Add(-f.cfg.HealthWindow)

	counts, err := f.execRepo.CountByStatusSince(ctx, since)
	if err != nil {
		return nil, NewBusinessError("HEALTH_READ_FAILED", "Failed to read execution counters", err)
	}

	byStatus := map[string]int{
		"pending": 0,
		"sent":    0,
		"failed":  0,
		"skipped": 0,
	}
	for _, c := range counts {
		byStatus[c.Status.String()] = int(c.Count)
	}

	return &dto.EngineHealthResponse{
		Window:    f.cfg.HealthWindow.String(),
		Counts:    byStatus,
		CheckedAt: now,
	}, nil
}

// RuleAnalytics composes status counts, delivery confirmations, clicks and
// attributed revenue for one rule
func (f *AnalyticsFlowImpl) RuleAnalytics(ctx context.Context, req *dto.GetRuleAnalyticsRequest, metadata *ClientMetadata) (*dto.GetRuleAnalyticsResponse, error) {
	parsed, err := uuid.Parse(req.UUID)
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

	now := utils.UTCNow()
	to := now
	if req.To != nil {
		to = req.To.UTC()
	}
	from := now.Add(-f.cfg.HardCutoff)
	if req.From != nil {
		from = req.From.UTC()
	}
	window := f.cfg.AttributionWindow
	if req.Window != nil {
		window = *req.Window
	}

	attribution, err := f.attribution.ForRule(ctx, rule.ID, from, to, window)
	if err != nil {
		return nil, err
	}

	execs, err := f.execRepo.ListSentByRuleBetween(ctx, rule.ID, from, to)
	if err != nil {
		return nil, NewBusinessError("EXECUTION_READ_FAILED", "Failed to read sent executions", err)
	}
	trackingIDs := make([]string, 0, len(execs))
	for _, exec := range execs {
		trackingIDs = append(trackingIDs, exec.TrackingID)
	}

	delivered, err := f.deliveryRepo.CountDeliveredByTrackingIDs(ctx, trackingIDs)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_READ_FAILED", "Failed to read delivery reports", err)
	}

	clicks, err := f.linkRepo.CountClicksByRuleSince(ctx, rule.ID, from)
	if err != nil {
		return nil, NewBusinessError("CLICK_READ_FAILED", "Failed to read click counts", err)
	}

	conversionRate := 0.0
	if attribution.UniqueCustomers > 0 {
		conversionRate = float64(attribution.CustomersReturned) / float64(attribution.UniqueCustomers)
	}

	return &dto.GetRuleAnalyticsResponse{
		UUID:   rule.UUID.String(),
		Name:   rule.Name,
		Window: window.String(),
		From:   from,
		To:     to,
		Attribution: dto.RuleAttributionDTO{
			MessagesSent:      attribution.MessagesSent,
			CustomersReached:  attribution.UniqueCustomers,
			CustomersReturned: attribution.CustomersReturned,
			AttributedRevenue: roundToCents(attribution.Revenue),
			ConversionRate:    conversionRate,
		},
		Delivered: int(delivered),
		Clicks:    int(clicks),
	}, nil
}

// roundToCents rounds at the presentation boundary only; internal summation
// stays unrounded
func roundToCents(v float64) float64 {
	return math.Round(v*100) / 100
}
