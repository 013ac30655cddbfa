package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/Kusanagi/app/dto"
	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	ruleRepo     *fakeRuleRepo
	triggerRepo  *fakeTriggerRepo
	execRepo     *fakeExecRepo
	customerRepo *fakeCustomerRepo
	consentRepo  *fakeConsentRepo
	deliveryRepo *fakeDeliveryRepo
	linkRepo     *fakeShortLinkRepo
	provider     *services.MockDeliveryProvider
	lock         *stubLock
	attribution  AttributionFlow
	flow         EngineFlow
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		ruleRepo:     newFakeRuleRepo(),
		triggerRepo:  newFakeTriggerRepo(),
		execRepo:     newFakeExecRepo(),
		customerRepo: newFakeCustomerRepo(),
		consentRepo:  newFakeConsentRepo(),
		deliveryRepo: newFakeDeliveryRepo(),
		linkRepo:     newFakeShortLinkRepo(),
		provider:     services.NewMockDeliveryProvider(),
		lock:         &stubLock{acquired: true},
	}

	cfg := testEngineConfig()
	logger := testLogger()
	consentFlow := NewConsentFlow(f.consentRepo, f.customerRepo, passthroughTx, logger)
	scheduler := NewSchedulerFlow(f.ruleRepo, f.triggerRepo, f.execRepo, passthroughTx, cfg, logger)
	executor := NewExecutorFlow(
		f.execRepo,
		f.ruleRepo,
		f.customerRepo,
		newFakeSettingsRepo(),
		f.linkRepo,
		consentFlow,
		services.NewTemplateService(),
		services.NewMockShortLinker(),
		f.provider,
		cfg,
		logger,
	)
	f.attribution = NewAttributionFlow(f.execRepo, f.triggerRepo, logger)
	f.flow = NewEngineFlow(scheduler, executor, f.deliveryRepo, f.linkRepo, f.lock, cfg, logger)
	return f
}

// Exercises the full loop: a qualifying service completion is scheduled with
// its delay, sent once due, and the follow-up purchase is credited back.
func TestTickEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	now := utils.UTCNow()

	rule := activeRule(1, models.TriggerKindServiceCompleted, 60)
	rule.MinSpend = utils.ToPtr(50.0)
	f.ruleRepo.rules = append(f.ruleRepo.rules, rule)

	customer := &models.Customer{
		ID:       7,
		UUID:     uuid.New(),
		FullName: "Dana Reyes",
		Mobile:   utils.ToPtr("+15550123"),
		IsActive: utils.ToPtr(true),
	}
	f.customerRepo.customers = append(f.customerRepo.customers, customer)
	f.consentRepo.records = append(f.consentRepo.records, &models.ConsentRecord{
		ID: 1, CustomerID: 7, Channel: models.ConsentChannelSMS, OptedIn: true,
	})

	// A $75 color service finished 65 minutes ago; with a 60 minute delay
	// the send is already due by this tick
	f.triggerRepo.events = append(f.triggerRepo.events, models.TriggerEvent{
		Kind:       models.TriggerKindServiceCompleted,
		CustomerID: 7,
		OccurredAt: now.Add(-65 * time.Minute),
		Amount:     75.0,
		Category:   "color",
	})

	resp, err := f.flow.Tick(ctx, &dto.TickRequest{Now: &now}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 1, resp.Scheduled)
	assert.Equal(t, 1, resp.Sent)
	assert.Zero(t, resp.Failed)
	assert.Zero(t, resp.Skipped)
	assert.True(t, f.lock.released)

	require.Len(t, f.provider.SentMessages(), 1)
	require.Len(t, f.execRepo.execs, 1)
	exec := f.execRepo.execs[0]
	require.NotNil(t, exec.SentAt)

	// The customer comes back and spends $30 five minutes after the send
	f.triggerRepo.purchases = append(f.triggerRepo.purchases, &models.Transaction{
		ID: 1, CustomerID: 7, Amount: 30.0, CompletedAt: exec.SentAt.Add(5 * time.Minute),
	})

	result, err := f.attribution.ForRule(ctx, rule.ID, now.Add(-time.Hour), now.Add(time.Hour), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MessagesSent)
	assert.Equal(t, 1, result.UniqueCustomers)
	assert.Equal(t, 1, result.CustomersReturned)
	assert.InDelta(t, 30.0, result.Revenue, 1e-9)

	// A repeated tick for the same period changes nothing
	resp, err = f.flow.Tick(ctx, &dto.TickRequest{Now: &now}, nil)
	require.NoError(t, err)
	assert.Zero(t, resp.Scheduled)
	assert.Zero(t, resp.Sent)
	assert.Len(t, f.provider.SentMessages(), 1)
}

func TestTickLock(t *testing.T) {
	ctx := context.Background()

	t.Run("BusyLockRefusesTick", func(t *testing.T) {
		f := newEngineFixture()
		f.lock.acquired = false

		resp, err := f.flow.Tick(ctx, nil, nil)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.True(t, IsTickInProgress(err))
		assert.False(t, f.lock.released)
	})

	t.Run("AcquireFailure", func(t *testing.T) {
		f := newEngineFixture()
		f.lock.acquireErr = errors.New("redis down")

		resp, err := f.flow.Tick(ctx, nil, nil)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.False(t, IsTickInProgress(err))
	})

	t.Run("LockReleasedAfterTick", func(t *testing.T) {
		f := newEngineFixture()
		_, err := f.flow.Tick(ctx, nil, nil)
		require.NoError(t, err)
		assert.True(t, f.lock.released)
	})
}

func TestTickSchedulerFailureStillExecutes(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	now := utils.UTCNow()

	f.ruleRepo.listActiveErr[models.TriggerKindServiceCompleted] = errors.New("rule store down")
	f.ruleRepo.listActiveErr[models.TriggerKindTransaction] = errors.New("rule store down")

	// A row scheduled by an earlier tick is already due
	rule := activeRule(1, models.TriggerKindTransaction, 0)
	f.ruleRepo.rules = append(f.ruleRepo.rules, rule)
	f.customerRepo.customers = append(f.customerRepo.customers, &models.Customer{
		ID: 1, UUID: uuid.New(), FullName: "Ana", Mobile: utils.ToPtr("+15550001"), IsActive: utils.ToPtr(true),
	})
	f.consentRepo.records = append(f.consentRepo.records, &models.ConsentRecord{
		ID: 1, CustomerID: 1, Channel: models.ConsentChannelSMS, OptedIn: true,
	})
	f.execRepo.execs = append(f.execRepo.execs, &models.LifecycleExecution{
		ID: 1, RuleID: 1, CustomerID: 1,
		ScheduledFor: now.Add(-time.Minute),
		Status:       models.ExecutionStatusPending,
		TrackingID:   "trk-1",
		CreatedAt:    now.Add(-time.Hour),
	})
	f.execRepo.nextID = 1

	resp, err := f.flow.Tick(ctx, &dto.TickRequest{Now: &now}, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Zero(t, resp.Scheduled)
	assert.Equal(t, 1, resp.Sent)
	assert.True(t, f.lock.released)
}

func TestRecordDelivery(t *testing.T) {
	ctx := context.Background()

	t.Run("StoresReport", func(t *testing.T) {
		f := newEngineFixture()

		resp, err := f.flow.RecordDelivery(ctx, &dto.DeliveryCallbackRequest{
			TrackingID:        "trk-9",
			ProviderMessageID: "prov-1",
			Status:            "delivered",
		}, nil)
		require.NoError(t, err)
		assert.True(t, resp.Recorded)

		require.Len(t, f.deliveryRepo.reports, 1)
		report := f.deliveryRepo.reports[0]
		assert.Equal(t, "trk-9", report.TrackingID)
		assert.Equal(t, models.DeliveryStatusDelivered, report.Status)
		require.NotNil(t, report.ProviderMessageID)
		assert.Equal(t, "prov-1", *report.ProviderMessageID)
		assert.False(t, report.ReportedAt.IsZero())
	})

	t.Run("MissingTrackingID", func(t *testing.T) {
		f := newEngineFixture()
		_, err := f.flow.RecordDelivery(ctx, &dto.DeliveryCallbackRequest{Status: "delivered"}, nil)
		require.Error(t, err)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		f := newEngineFixture()
		_, err := f.flow.RecordDelivery(ctx, &dto.DeliveryCallbackRequest{
			TrackingID: "trk-9", Status: "bounced",
		}, nil)
		require.Error(t, err)
		assert.Empty(t, f.deliveryRepo.reports)
	})
}

func TestRecordClick(t *testing.T) {
	ctx := context.Background()

	t.Run("StoresClickAgainstRule", func(t *testing.T) {
		f := newEngineFixture()
		f.linkRepo.links = append(f.linkRepo.links, &models.ShortLink{
			Code:       "c000001",
			RuleID:     utils.ToPtr(uint(4)),
			TrackingID: utils.ToPtr("trk-4"),
			LongLink:   "https://glow.example/book",
		})

		clickedAt := utils.UTCNow().Add(-10 * time.Minute)
		resp, err := f.flow.RecordClick(ctx, &dto.ClickCallbackRequest{
			Code:      "c000001",
			ClickedAt: &clickedAt,
			UserAgent: "Mozilla/5.0",
			IP:        "203.0.113.9",
		}, nil)
		require.NoError(t, err)
		assert.True(t, resp.Recorded)
		assert.Equal(t, "c000001", resp.Code)

		require.Len(t, f.linkRepo.clicks, 1)
		click := f.linkRepo.clicks[0]
		assert.Equal(t, "c000001", click.Code)
		require.NotNil(t, click.RuleID)
		assert.Equal(t, uint(4), *click.RuleID)
		assert.Equal(t, clickedAt, click.ClickedAt)
		require.NotNil(t, click.UserAgent)
		assert.Equal(t, "Mozilla/5.0", *click.UserAgent)
		require.NotNil(t, click.IP)
		assert.Equal(t, "203.0.113.9", *click.IP)
	})

	t.Run("ClickCountsFeedRuleAnalytics", func(t *testing.T) {
		f := newEngineFixture()
		f.linkRepo.links = append(f.linkRepo.links, &models.ShortLink{
			Code:     "c000002",
			RuleID:   utils.ToPtr(uint(4)),
			LongLink: "https://glow.example/book",
		})

		_, err := f.flow.RecordClick(ctx, &dto.ClickCallbackRequest{Code: "c000002"}, nil)
		require.NoError(t, err)
		_, err = f.flow.RecordClick(ctx, &dto.ClickCallbackRequest{Code: "c000002"}, nil)
		require.NoError(t, err)

		count, err := f.linkRepo.CountClicksByRuleSince(ctx, 4, utils.UTCNow().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("UnknownCode", func(t *testing.T) {
		f := newEngineFixture()
		_, err := f.flow.RecordClick(ctx, &dto.ClickCallbackRequest{Code: "missing"}, nil)
		require.Error(t, err)
		assert.True(t, IsShortLinkNotFound(err))
		assert.Empty(t, f.linkRepo.clicks)
	})

	t.Run("MissingCode", func(t *testing.T) {
		f := newEngineFixture()
		_, err := f.flow.RecordClick(ctx, &dto.ClickCallbackRequest{}, nil)
		require.Error(t, err)
	})
}
