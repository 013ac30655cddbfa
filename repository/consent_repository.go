package repository

import (
	"context"
	"errors"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// ConsentRepositoryImpl implements ConsentRepository
type ConsentRepositoryImpl struct {
	DB *gorm.DB
}

func NewConsentRepository(db *gorm.DB) ConsentRepository {
	return &ConsentRepositoryImpl{DB: db}
}

func (r *ConsentRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

func (r *ConsentRepositoryImpl) RecordByCustomerAndChannel(ctx context.Context, customerID uint, channel models.ConsentChannel) (*models.ConsentRecord, error) {
	db := r.getDB(ctx)
	var row models.ConsentRecord
	err := db.Where("customer_id = ? AND channel = ?", customerID, channel).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ConsentRepositoryImpl) SaveRecord(ctx context.Context, record *models.ConsentRecord) error {
	return r.getDB(ctx).Create(record).Error
}

func (r *ConsentRepositoryImpl) UpdateRecord(ctx context.Context, record *models.ConsentRecord) error {
	return r.getDB(ctx).Save(record).Error
}

func (r *ConsentRepositoryImpl) AppendEvent(ctx context.Context, event *models.ConsentEvent) error {
	return r.getDB(ctx).Create(event).Error
}

func (r *ConsentRepositoryImpl) ListEvents(ctx context.Context, customerID uint, limit, offset int) ([]*models.ConsentEvent, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ConsentEvent{}).
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ConsentEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ConsentRepositoryImpl) ListRecords(ctx context.Context, customerID uint) ([]*models.ConsentRecord, error) {
	db := r.getDB(ctx)
	var rows []*models.ConsentRecord
	if err := db.Where("customer_id = ?", customerID).Order("channel ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
