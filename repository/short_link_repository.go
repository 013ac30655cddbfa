package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// ShortLinkRepositoryImpl implements ShortLinkRepository
type ShortLinkRepositoryImpl struct {
	DB *gorm.DB
}

func NewShortLinkRepository(db *gorm.DB) ShortLinkRepository {
	return &ShortLinkRepositoryImpl{DB: db}
}

func (r *ShortLinkRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

func (r *ShortLinkRepositoryImpl) SaveLink(ctx context.Context, link *models.ShortLink) error {
	return r.getDB(ctx).Create(link).Error
}

func (r *ShortLinkRepositoryImpl) SaveClick(ctx context.Context, click *models.ShortLinkClick) error {
	return r.getDB(ctx).Create(click).Error
}

func (r *ShortLinkRepositoryImpl) ByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	db := r.getDB(ctx)
	var row models.ShortLink
	if err := db.Where("code = ?", code).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ShortLinkRepositoryImpl) CountClicksByRuleSince(ctx context.Context, ruleID uint, since time.Time) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.ShortLinkClick{}).
		Where("rule_id = ? AND clicked_at >= ?", ruleID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
