package repository

import (
	"context"
	"errors"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// BusinessSettingsRepositoryImpl implements BusinessSettingsRepository
type BusinessSettingsRepositoryImpl struct {
	DB *gorm.DB
}

func NewBusinessSettingsRepository(db *gorm.DB) BusinessSettingsRepository {
	return &BusinessSettingsRepositoryImpl{DB: db}
}

func (r *BusinessSettingsRepositoryImpl) Get(ctx context.Context) (*models.BusinessSettings, error) {
	db := r.DB
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		db = tx
	}
	var row models.BusinessSettings
	if err := db.Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
