package businessflow

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/amirphl/Kusanagi/config"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
)

// In-memory repository fakes for flow tests. They keep the same contracts as
// the gorm-backed implementations, including the conditional pending claim.

var (
	_ repository.LifecycleRuleRepository      = (*fakeRuleRepo)(nil)
	_ repository.LifecycleExecutionRepository = (*fakeExecRepo)(nil)
	_ repository.CustomerRepository           = (*fakeCustomerRepo)(nil)
	_ repository.TriggerEventRepository       = (*fakeTriggerRepo)(nil)
	_ repository.ConsentRepository            = (*fakeConsentRepo)(nil)
	_ repository.ShortLinkRepository          = (*fakeShortLinkRepo)(nil)
	_ repository.DeliveryReportRepository     = (*fakeDeliveryRepo)(nil)
	_ repository.BusinessSettingsRepository   = (*fakeSettingsRepo)(nil)
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		LookbackWindow:    24 * time.Hour,
		HardCutoff:        720 * time.Hour,
		ExecutorBatchSize: 100,
		TickBudget:        4 * time.Minute,
		TickLockTTL:       5 * time.Minute,
		AttributionWindow: 168 * time.Hour,
		HealthWindow:      24 * time.Hour,
	}
}

// passthroughTx runs the transactional function without a database
func passthroughTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeRuleRepo struct {
	rules         []*models.LifecycleRule
	nextID        uint
	listActiveErr map[models.TriggerKind]error
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{listActiveErr: make(map[models.TriggerKind]error)}
}

func (r *fakeRuleRepo) ByID(ctx context.Context, id uint) (*models.LifecycleRule, error) {
	for _, rule := range r.rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return nil, nil
}

func (r *fakeRuleRepo) ByUUID(ctx context.Context, u uuid.UUID) (*models.LifecycleRule, error) {
	for _, rule := range r.rules {
		if rule.UUID == u {
			return rule, nil
		}
	}
	return nil, nil
}

func (r *fakeRuleRepo) ByFilter(ctx context.Context, filter models.LifecycleRuleFilter, orderBy string, limit, offset int) ([]*models.LifecycleRule, error) {
	out := make([]*models.LifecycleRule, 0)
	for _, rule := range r.rules {
		if filter.Trigger != nil && rule.Trigger != *filter.Trigger {
			continue
		}
		if filter.IsActive != nil && utils.IsTrue(rule.IsActive) != *filter.IsActive {
			continue
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChainOrder != out[j].ChainOrder {
			return out[i].ChainOrder < out[j].ChainOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeRuleRepo) Save(ctx context.Context, rule *models.LifecycleRule) error {
	r.nextID++
	rule.ID = r.nextID
	r.rules = append(r.rules, rule)
	return nil
}

func (r *fakeRuleRepo) SaveBatch(ctx context.Context, rules []*models.LifecycleRule) error {
	for _, rule := range rules {
		if err := r.Save(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRuleRepo) Count(ctx context.Context, filter models.LifecycleRuleFilter) (int64, error) {
	rules, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rules)), nil
}

func (r *fakeRuleRepo) Exists(ctx context.Context, filter models.LifecycleRuleFilter) (bool, error) {
	count, _ := r.Count(ctx, filter)
	return count > 0, nil
}

func (r *fakeRuleRepo) ListActiveByTrigger(ctx context.Context, trigger models.TriggerKind) ([]*models.LifecycleRule, error) {
	if err := r.listActiveErr[trigger]; err != nil {
		return nil, err
	}
	active := true
	return r.ByFilter(ctx, models.LifecycleRuleFilter{Trigger: &trigger, IsActive: &active}, "", 0, 0)
}

func (r *fakeRuleRepo) Update(ctx context.Context, rule *models.LifecycleRule) error {
	for i, existing := range r.rules {
		if existing.ID == rule.ID {
			r.rules[i] = rule
			return nil
		}
	}
	return fmt.Errorf("rule %d not found", rule.ID)
}

type fakeExecRepo struct {
	execs        []*models.LifecycleExecution
	nextID       uint
	saveBatchErr error
}

func newFakeExecRepo() *fakeExecRepo {
	return &fakeExecRepo{}
}

func (r *fakeExecRepo) ByID(ctx context.Context, id uint) (*models.LifecycleExecution, error) {
	for _, exec := range r.execs {
		if exec.ID == id {
			return exec, nil
		}
	}
	return nil, nil
}

func (r *fakeExecRepo) ByFilter(ctx context.Context, filter models.LifecycleExecutionFilter, orderBy string, limit, offset int) ([]*models.LifecycleExecution, error) {
	out := make([]*models.LifecycleExecution, 0)
	for _, exec := range r.execs {
		if filter.RuleID != nil && exec.RuleID != *filter.RuleID {
			continue
		}
		if filter.CustomerID != nil && exec.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && exec.Status != *filter.Status {
			continue
		}
		if filter.TrackingID != nil && exec.TrackingID != *filter.TrackingID {
			continue
		}
		out = append(out, exec)
	}
	return out, nil
}

func (r *fakeExecRepo) Save(ctx context.Context, exec *models.LifecycleExecution) error {
	r.nextID++
	exec.ID = r.nextID
	r.execs = append(r.execs, exec)
	return nil
}

func (r *fakeExecRepo) SaveBatch(ctx context.Context, execs []*models.LifecycleExecution) error {
	if r.saveBatchErr != nil {
		return r.saveBatchErr
	}
	for _, exec := range execs {
		if err := r.Save(ctx, exec); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeExecRepo) Count(ctx context.Context, filter models.LifecycleExecutionFilter) (int64, error) {
	execs, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(execs)), nil
}

func (r *fakeExecRepo) Exists(ctx context.Context, filter models.LifecycleExecutionFilter) (bool, error) {
	count, _ := r.Count(ctx, filter)
	return count > 0, nil
}

func (r *fakeExecRepo) ExistsForRuleCustomerSince(ctx context.Context, ruleID, customerID uint, since time.Time) (bool, error) {
	for _, exec := range r.execs {
		if exec.RuleID == ruleID && exec.CustomerID == customerID && !exec.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeExecRepo) ListDuePending(ctx context.Context, now time.Time, limit int) ([]*models.LifecycleExecution, error) {
	due := make([]*models.LifecycleExecution, 0)
	for _, exec := range r.execs {
		if exec.Status == models.ExecutionStatusPending && !exec.ScheduledFor.After(now) {
			due = append(due, exec)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *fakeExecRepo) ClaimPending(ctx context.Context, id uint, status models.ExecutionStatus, reason *string, sentAt *time.Time, shortLinkCode *string) (bool, error) {
	for _, exec := range r.execs {
		if exec.ID != id {
			continue
		}
		if exec.Status != models.ExecutionStatusPending {
			return false, nil
		}
		exec.Status = status
		exec.FailureReason = reason
		exec.SentAt = sentAt
		if shortLinkCode != nil {
			exec.ShortLinkCode = shortLinkCode
		}
		exec.UpdatedAt = utils.UTCNowPtr()
		return true, nil
	}
	return false, fmt.Errorf("execution %d not found", id)
}

func (r *fakeExecRepo) CountByStatusSince(ctx context.Context, since time.Time) ([]repository.StatusCount, error) {
	byStatus := make(map[models.ExecutionStatus]int64)
	for _, exec := range r.execs {
		if exec.CreatedAt.Before(since) {
			continue
		}
		byStatus[exec.Status]++
	}
	out := make([]repository.StatusCount, 0, len(byStatus))
	for status, count := range byStatus {
		out = append(out, repository.StatusCount{Status: status, Count: count})
	}
	return out, nil
}

func (r *fakeExecRepo) ListSentByRuleBetween(ctx context.Context, ruleID uint, start, end time.Time) ([]*models.LifecycleExecution, error) {
	out := make([]*models.LifecycleExecution, 0)
	for _, exec := range r.execs {
		if exec.RuleID != ruleID || exec.Status != models.ExecutionStatusSent || exec.SentAt == nil {
			continue
		}
		if exec.SentAt.Before(start) || exec.SentAt.After(end) {
			continue
		}
		out = append(out, exec)
	}
	return out, nil
}

func (r *fakeExecRepo) ListSentBetween(ctx context.Context, start, end time.Time) ([]*models.LifecycleExecution, error) {
	out := make([]*models.LifecycleExecution, 0)
	for _, exec := range r.execs {
		if exec.Status != models.ExecutionStatusSent || exec.SentAt == nil {
			continue
		}
		if exec.SentAt.Before(start) || exec.SentAt.After(end) {
			continue
		}
		out = append(out, exec)
	}
	return out, nil
}

type fakeCustomerRepo struct {
	customers []*models.Customer
	byIDErr   error
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{}
}

func (r *fakeCustomerRepo) ByID(ctx context.Context, id uint) (*models.Customer, error) {
	if r.byIDErr != nil {
		return nil, r.byIDErr
	}
	for _, customer := range r.customers {
		if customer.ID == id {
			return customer, nil
		}
	}
	return nil, nil
}

func (r *fakeCustomerRepo) ByUUID(ctx context.Context, u uuid.UUID) (*models.Customer, error) {
	for _, customer := range r.customers {
		if customer.UUID == u {
			return customer, nil
		}
	}
	return nil, nil
}

func (r *fakeCustomerRepo) ByFilter(ctx context.Context, filter models.CustomerFilter, orderBy string, limit, offset int) ([]*models.Customer, error) {
	out := make([]*models.Customer, 0)
	for _, customer := range r.customers {
		if filter.ID != nil && customer.ID != *filter.ID {
			continue
		}
		if filter.UUID != nil && customer.UUID != *filter.UUID {
			continue
		}
		out = append(out, customer)
	}
	return out, nil
}

func (r *fakeCustomerRepo) Save(ctx context.Context, customer *models.Customer) error {
	r.customers = append(r.customers, customer)
	return nil
}

func (r *fakeCustomerRepo) SaveBatch(ctx context.Context, customers []*models.Customer) error {
	r.customers = append(r.customers, customers...)
	return nil
}

func (r *fakeCustomerRepo) Count(ctx context.Context, filter models.CustomerFilter) (int64, error) {
	customers, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(customers)), nil
}

func (r *fakeCustomerRepo) Exists(ctx context.Context, filter models.CustomerFilter) (bool, error) {
	count, _ := r.Count(ctx, filter)
	return count > 0, nil
}

type fakeTriggerRepo struct {
	events      []models.TriggerEvent
	purchases   []*models.Transaction
	listErr     error
	purchaseErr error
}

func newFakeTriggerRepo() *fakeTriggerRepo {
	return &fakeTriggerRepo{}
}

func (r *fakeTriggerRepo) ListSince(ctx context.Context, kind models.TriggerKind, since, until time.Time) ([]models.TriggerEvent, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.TriggerEvent, 0)
	for _, ev := range r.events {
		if ev.Kind != kind {
			continue
		}
		if ev.OccurredAt.Before(since) || ev.OccurredAt.After(until) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *fakeTriggerRepo) ListPurchasesByCustomerBetween(ctx context.Context, customerID uint, start, end time.Time) ([]*models.Transaction, error) {
	if r.purchaseErr != nil {
		return nil, r.purchaseErr
	}
	out := make([]*models.Transaction, 0)
	for _, purchase := range r.purchases {
		if purchase.CustomerID != customerID {
			continue
		}
		if purchase.CompletedAt.Before(start) || purchase.CompletedAt.After(end) {
			continue
		}
		out = append(out, purchase)
	}
	return out, nil
}

type fakeConsentRepo struct {
	records []*models.ConsentRecord
	events  []*models.ConsentEvent
	nextID  uint
}

func newFakeConsentRepo() *fakeConsentRepo {
	return &fakeConsentRepo{}
}

func (r *fakeConsentRepo) RecordByCustomerAndChannel(ctx context.Context, customerID uint, channel models.ConsentChannel) (*models.ConsentRecord, error) {
	for _, record := range r.records {
		if record.CustomerID == customerID && record.Channel == channel {
			return record, nil
		}
	}
	return nil, nil
}

func (r *fakeConsentRepo) SaveRecord(ctx context.Context, record *models.ConsentRecord) error {
	r.nextID++
	record.ID = r.nextID
	r.records = append(r.records, record)
	return nil
}

func (r *fakeConsentRepo) UpdateRecord(ctx context.Context, record *models.ConsentRecord) error {
	for i, existing := range r.records {
		if existing.ID == record.ID {
			r.records[i] = record
			return nil
		}
	}
	return fmt.Errorf("consent record %d not found", record.ID)
}

func (r *fakeConsentRepo) AppendEvent(ctx context.Context, event *models.ConsentEvent) error {
	r.nextID++
	event.ID = r.nextID
	r.events = append(r.events, event)
	return nil
}

func (r *fakeConsentRepo) ListEvents(ctx context.Context, customerID uint, limit, offset int) ([]*models.ConsentEvent, error) {
	out := make([]*models.ConsentEvent, 0)
	for _, event := range r.events {
		if event.CustomerID == customerID {
			out = append(out, event)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeConsentRepo) ListRecords(ctx context.Context, customerID uint) ([]*models.ConsentRecord, error) {
	out := make([]*models.ConsentRecord, 0)
	for _, record := range r.records {
		if record.CustomerID == customerID {
			out = append(out, record)
		}
	}
	return out, nil
}

type fakeShortLinkRepo struct {
	links  []*models.ShortLink
	clicks []*models.ShortLinkClick
}

func newFakeShortLinkRepo() *fakeShortLinkRepo {
	return &fakeShortLinkRepo{}
}

func (r *fakeShortLinkRepo) SaveLink(ctx context.Context, link *models.ShortLink) error {
	r.links = append(r.links, link)
	return nil
}

func (r *fakeShortLinkRepo) SaveClick(ctx context.Context, click *models.ShortLinkClick) error {
	r.clicks = append(r.clicks, click)
	return nil
}

func (r *fakeShortLinkRepo) ByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	for _, link := range r.links {
		if link.Code == code {
			return link, nil
		}
	}
	return nil, nil
}

func (r *fakeShortLinkRepo) CountClicksByRuleSince(ctx context.Context, ruleID uint, since time.Time) (int64, error) {
	var count int64
	for _, click := range r.clicks {
		if click.RuleID != nil && *click.RuleID == ruleID && !click.ClickedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type fakeDeliveryRepo struct {
	reports []*models.DeliveryReport
	saveErr error
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{}
}

func (r *fakeDeliveryRepo) Save(ctx context.Context, report *models.DeliveryReport) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.reports = append(r.reports, report)
	return nil
}

func (r *fakeDeliveryRepo) ByTrackingID(ctx context.Context, trackingID string) ([]*models.DeliveryReport, error) {
	out := make([]*models.DeliveryReport, 0)
	for _, report := range r.reports {
		if report.TrackingID == trackingID {
			out = append(out, report)
		}
	}
	return out, nil
}

func (r *fakeDeliveryRepo) CountDeliveredByTrackingIDs(ctx context.Context, trackingIDs []string) (int64, error) {
	wanted := make(map[string]struct{}, len(trackingIDs))
	for _, id := range trackingIDs {
		wanted[id] = struct{}{}
	}
	delivered := make(map[string]struct{})
	for _, report := range r.reports {
		if report.Status != models.DeliveryStatusDelivered {
			continue
		}
		if _, ok := wanted[report.TrackingID]; ok {
			delivered[report.TrackingID] = struct{}{}
		}
	}
	return int64(len(delivered)), nil
}

type fakeSettingsRepo struct {
	settings *models.BusinessSettings
	getErr   error
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{
		settings: &models.BusinessSettings{
			ID:           1,
			BusinessName: "Glow Salon",
			Phone:        utils.ToPtr("+15550100"),
			BookingLink:  utils.ToPtr("https://glow.example/book"),
			ReviewLink:   utils.ToPtr("https://glow.example/review"),
		},
	}
}

func (r *fakeSettingsRepo) Get(ctx context.Context) (*models.BusinessSettings, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.settings, nil
}

// stubLock scripts invocation lock behavior for engine tests
type stubLock struct {
	acquired   bool
	acquireErr error
	released   bool
}

func (l *stubLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	return l.acquired, l.acquireErr
}

func (l *stubLock) Release(ctx context.Context) error {
	l.released = true
	return nil
}
