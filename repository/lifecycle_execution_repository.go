package repository

import (
	"context"
	"time"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"gorm.io/gorm"
)

// LifecycleExecutionRepositoryImpl implements LifecycleExecutionRepository
type LifecycleExecutionRepositoryImpl struct {
	*BaseRepository[models.LifecycleExecution, models.LifecycleExecutionFilter]
}

func NewLifecycleExecutionRepository(db *gorm.DB) LifecycleExecutionRepository {
	return &LifecycleExecutionRepositoryImpl{BaseRepository: NewBaseRepository[models.LifecycleExecution, models.LifecycleExecutionFilter](db)}
}

func (r *LifecycleExecutionRepositoryImpl) ExistsForRuleCustomerSince(ctx context.Context, ruleID, customerID uint, since time.Time) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.LifecycleExecution{}).
		Where("rule_id = ? AND customer_id = ? AND created_at >= ?", ruleID, customerID, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *LifecycleExecutionRepositoryImpl) ListDuePending(ctx context.Context, now time.Time, limit int) ([]*models.LifecycleExecution, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.LifecycleExecution{}).
		Where("status = ? AND scheduled_for <= ?", models.ExecutionStatusPending, now).
		Order("scheduled_for ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []*models.LifecycleExecution
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimPending is the idempotency backstop: the WHERE status = 'pending'
// guard makes the terminal transition single-shot even when two ticks race
// on the same row.
func (r *LifecycleExecutionRepositoryImpl) ClaimPending(ctx context.Context, id uint, status models.ExecutionStatus, reason *string, sentAt *time.Time, shortLinkCode *string) (bool, error) {
	db := r.getDB(ctx)
	updates := map[string]any{
		"status":     status,
		"updated_at": utils.UTCNow(),
	}
	if reason != nil {
		updates["failure_reason"] = *reason
	}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}
	if shortLinkCode != nil {
		updates["short_link_code"] = *shortLinkCode
	}
	res := db.Model(&models.LifecycleExecution{}).
		Where("id = ? AND status = ?", id, models.ExecutionStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *LifecycleExecutionRepositoryImpl) CountByStatusSince(ctx context.Context, since time.Time) ([]StatusCount, error) {
	db := r.getDB(ctx)
	var rows []StatusCount
	err := db.Model(&models.LifecycleExecution{}).
		Select("status, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LifecycleExecutionRepositoryImpl) ListSentByRuleBetween(ctx context.Context, ruleID uint, start, end time.Time) ([]*models.LifecycleExecution, error) {
	db := r.getDB(ctx)
	var rows []*models.LifecycleExecution
	err := db.Model(&models.LifecycleExecution{}).
		Where("rule_id = ? AND status = ? AND sent_at >= ? AND sent_at <= ?", ruleID, models.ExecutionStatusSent, start, end).
		Order("sent_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LifecycleExecutionRepositoryImpl) ListSentBetween(ctx context.Context, start, end time.Time) ([]*models.LifecycleExecution, error) {
	db := r.getDB(ctx)
	var rows []*models.LifecycleExecution
	err := db.Model(&models.LifecycleExecution{}).
		Where("status = ? AND sent_at >= ? AND sent_at <= ?", models.ExecutionStatusSent, start, end).
		Order("sent_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LifecycleExecutionRepositoryImpl) applyFilter(db *gorm.DB, f models.LifecycleExecutionFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.RuleID != nil {
		db = db.Where("rule_id = ?", *f.RuleID)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.TrackingID != nil {
		db = db.Where("tracking_id = ?", *f.TrackingID)
	}
	if f.ScheduledBefore != nil {
		db = db.Where("scheduled_for <= ?", *f.ScheduledBefore)
	}
	if f.ScheduledAfter != nil {
		db = db.Where("scheduled_for >= ?", *f.ScheduledAfter)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *LifecycleExecutionRepositoryImpl) ByFilter(ctx context.Context, filter models.LifecycleExecutionFilter, orderBy string, limit, offset int) ([]*models.LifecycleExecution, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LifecycleExecution{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.LifecycleExecution
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LifecycleExecutionRepositoryImpl) Count(ctx context.Context, filter models.LifecycleExecutionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LifecycleExecution{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *LifecycleExecutionRepositoryImpl) Exists(ctx context.Context, filter models.LifecycleExecutionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
