package repository

import (
	"context"
	"errors"

	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LifecycleRuleRepositoryImpl implements LifecycleRuleRepository
type LifecycleRuleRepositoryImpl struct {
	*BaseRepository[models.LifecycleRule, models.LifecycleRuleFilter]
}

func NewLifecycleRuleRepository(db *gorm.DB) LifecycleRuleRepository {
	return &LifecycleRuleRepositoryImpl{BaseRepository: NewBaseRepository[models.LifecycleRule, models.LifecycleRuleFilter](db)}
}

func (r *LifecycleRuleRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.LifecycleRule, error) {
	db := r.getDB(ctx)
	var row models.LifecycleRule
	if err := db.Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *LifecycleRuleRepositoryImpl) ListActiveByTrigger(ctx context.Context, trigger models.TriggerKind) ([]*models.LifecycleRule, error) {
	filter := models.LifecycleRuleFilter{
		Trigger:  &trigger,
		IsActive: utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "chain_order ASC, id ASC", 0, 0)
}

func (r *LifecycleRuleRepositoryImpl) Update(ctx context.Context, rule *models.LifecycleRule) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Save(rule).Error
	return err
}

func (r *LifecycleRuleRepositoryImpl) applyFilter(db *gorm.DB, f models.LifecycleRuleFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Trigger != nil {
		db = db.Where("trigger_kind = ?", *f.Trigger)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *LifecycleRuleRepositoryImpl) ByFilter(ctx context.Context, filter models.LifecycleRuleFilter, orderBy string, limit, offset int) ([]*models.LifecycleRule, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LifecycleRule{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.LifecycleRule
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LifecycleRuleRepositoryImpl) Count(ctx context.Context, filter models.LifecycleRuleFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LifecycleRule{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *LifecycleRuleRepositoryImpl) Exists(ctx context.Context, filter models.LifecycleRuleFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
