// Package businessflow contains the engine invocation entry point
package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/app/dto"
	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/config"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
)

// EngineFlow runs one tick of the engine: scheduler then executor, under the
// invocation lock and a wall-clock budget. The external driver calls Tick
// at least once per period; repeated and overlapping calls are safe.
type EngineFlow interface {
	Tick(ctx context.Context, req *dto.TickRequest, metadata *ClientMetadata) (*dto.TickResponse, error)
	RecordDelivery(ctx context.Context, req *dto.DeliveryCallbackRequest, metadata *ClientMetadata) (*dto.DeliveryCallbackResponse, error)
	RecordClick(ctx context.Context, req *dto.ClickCallbackRequest, metadata *ClientMetadata) (*dto.ClickCallbackResponse, error)
}

// EngineFlowImpl implements the invocation surface
type EngineFlowImpl struct {
	scheduler    SchedulerFlow
	executor     ExecutorFlow
	deliveryRepo repository.DeliveryReportRepository
	linkRepo     repository.ShortLinkRepository
	lock         services.InvocationLock
	cfg          config.EngineConfig
	logger       *log.Logger
}

// NewEngineFlow creates a new engine flow instance
func NewEngineFlow(
	scheduler SchedulerFlow,
	executor ExecutorFlow,
	deliveryRepo repository.DeliveryReportRepository,
	linkRepo repository.ShortLinkRepository,
	lock services.InvocationLock,
	cfg config.EngineConfig,
	logger *log.Logger,
) EngineFlow {
	return &EngineFlowImpl{
		scheduler:    scheduler,
		executor:     executor,
		deliveryRepo: deliveryRepo,
		linkRepo:     linkRepo,
		lock:         lock,
		cfg:          cfg,
		logger:       logger,
	}
}

// Tick acquires the invocation lock, runs the scheduler and then the
// executor, and reports what happened. When another invocation holds the
// lock the tick is refused rather than queued; the next periodic call will
// pick up whatever this one would have done.
func (f *EngineFlowImpl) Tick(ctx context.Context, req *dto.TickRequest, metadata *ClientMetadata) (*dto.TickResponse, error) {
	startedAt := utils.UTCNow()
	now := startedAt
	if req != nil && req.Now != nil {
		now = req.Now.UTC()
	}

	acquired, err := f.lock.Acquire(ctx, f.cfg.TickLockTTL)
	if err != nil {
		return nil, NewBusinessError("TICK_LOCK_FAILED", "Failed to acquire invocation lock", err)
	}
	if !acquired {
		return nil, NewBusinessError("TICK_IN_PROGRESS", "Another tick holds the invocation lock", ErrTickInProgress)
	}
	defer func() {
		if err := f.lock.Release(context.WithoutCancel(ctx)); err != nil {
			f.logger.Printf("engine: releasing invocation lock failed: %v", err)
		}
	}()

	tickCtx, cancel := context.WithTimeout(ctx, f.cfg.TickBudget)
	defer cancel()

	f.logger.Printf("engine: tick started at %s (reference time %s)", startedAt.Format(time.RFC3339), now.Format(time.RFC3339))

	scheduled, schedErr := f.scheduler.Run(tickCtx, now)
	if schedErr != nil {
		f.logger.Printf("engine: scheduler phase reported error: %v", schedErr)
	}

	// The executor still runs after a scheduler failure; rows scheduled by
	// earlier ticks are due regardless
	summary, execErr := f.executor.Run(tickCtx, now)
	if execErr != nil {
		f.logger.Printf("engine: executor phase reported error: %v", execErr)
	}

	resp := &dto.TickResponse{
		Scheduled: scheduled,
		Sent:      summary.Sent,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
		StartedAt: startedAt,
		Elapsed:   utils.UTCNow().Sub(startedAt).String(),
	}

	f.logger.Printf("engine: tick finished scheduled=%d sent=%d failed=%d skipped=%d elapsed=%s",
		resp.Scheduled, resp.Sent, resp.Failed, resp.Skipped, resp.Elapsed)

	if schedErr != nil {
		return resp, schedErr
	}
	if execErr != nil {
		return resp, execErr
	}
	return resp, nil
}

// RecordDelivery stores an asynchronous provider delivery report. Delivery
// confirmation is tracked separately from the execution's own sent status;
// a successful send attempt does not imply the message arrived.
func (f *EngineFlowImpl) RecordDelivery(ctx context.Context, req *dto.DeliveryCallbackRequest, metadata *ClientMetadata) (*dto.DeliveryCallbackResponse, error) {
	if req.TrackingID == "" {
		return nil, NewBusinessError("TRACKING_ID_REQUIRED", "Tracking ID is required", ErrTrackingIDRequired)
	}
	status := models.DeliveryStatus(req.Status)
	if !status.Valid() {
		return nil, NewBusinessError("DELIVERY_STATUS_INVALID", "Delivery status is invalid", ErrDeliveryStatusInvalid)
	}

	report := &models.DeliveryReport{
		TrackingID:        req.TrackingID,
		ProviderMessageID: utils.ToPtr(req.ProviderMessageID),
		Status:            status,
		ReportedAt:        utils.UTCNow(),
	}
	if err := f.deliveryRepo.Save(ctx, report); err != nil {
		return nil, NewBusinessError("DELIVERY_RECORD_FAILED", "Failed to record delivery report", err)
	}

	f.logger.Printf("engine: recorded delivery report tracking=%s status=%s", req.TrackingID, status)

	return &dto.DeliveryCallbackResponse{
		TrackingID: req.TrackingID,
		Recorded:   true,
	}, nil
}

// RecordClick stores a click event pushed by the short-link service. The
// click is attributed to the rule the code was allocated for.
func (f *EngineFlowImpl) RecordClick(ctx context.Context, req *dto.ClickCallbackRequest, metadata *ClientMetadata) (*dto.ClickCallbackResponse, error) {
	if req.Code == "" {
		return nil, NewBusinessError("SHORT_LINK_CODE_REQUIRED", "Short link code is required", ErrShortLinkCodeRequired)
	}

	link, err := f.linkRepo.ByCode(ctx, req.Code)
	if err != nil {
		return nil, NewBusinessError("SHORT_LINK_READ_FAILED", "Failed to read short link", err)
	}
	if link == nil {
		return nil, NewBusinessError("SHORT_LINK_NOT_FOUND", "Short link not found", ErrShortLinkNotFound)
	}

	clickedAt := utils.UTCNow()
	if req.ClickedAt != nil {
		clickedAt = req.ClickedAt.UTC()
	}

	click := &models.ShortLinkClick{
		Code:      link.Code,
		RuleID:    link.RuleID,
		ClickedAt: clickedAt,
	}
	if req.UserAgent != "" {
		click.UserAgent = utils.ToPtr(req.UserAgent)
	}
	if req.IP != "" {
		click.IP = utils.ToPtr(req.IP)
	}

	if err := f.linkRepo.SaveClick(ctx, click); err != nil {
		return nil, NewBusinessError("CLICK_RECORD_FAILED", "Failed to record short link click", err)
	}

	f.logger.Printf("engine: recorded click code=%s", link.Code)

	return &dto.ClickCallbackResponse{
		Code:     link.Code,
		Recorded: true,
	}, nil
}
