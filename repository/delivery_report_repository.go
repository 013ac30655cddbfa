package repository

import (
	"context"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// DeliveryReportRepositoryImpl implements DeliveryReportRepository
type DeliveryReportRepositoryImpl struct {
	DB *gorm.DB
}

func NewDeliveryReportRepository(db *gorm.DB) DeliveryReportRepository {
	return &DeliveryReportRepositoryImpl{DB: db}
}

func (r *DeliveryReportRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

func (r *DeliveryReportRepositoryImpl) Save(ctx context.Context, report *models.DeliveryReport) error {
	return r.getDB(ctx).Create(report).Error
}

func (r *DeliveryReportRepositoryImpl) ByTrackingID(ctx context.Context, trackingID string) ([]*models.DeliveryReport, error) {
	db := r.getDB(ctx)
	var rows []*models.DeliveryReport
	err := db.Where("tracking_id = ?", trackingID).
		Order("reported_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DeliveryReportRepositoryImpl) CountDeliveredByTrackingIDs(ctx context.Context, trackingIDs []string) (int64, error) {
	if len(trackingIDs) == 0 {
		return 0, nil
	}
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.DeliveryReport{}).
		Where("tracking_id IN ? AND status = ?", trackingIDs, models.DeliveryStatusDelivered).
		Distinct("tracking_id").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
