package repository

import (
	"context"
	"fmt"

	"time"

	"github.com/amirphl/Kusanagi/models"
	"gorm.io/gorm"
)

// TriggerEventRepositoryImpl implements TriggerEventRepository over the
// booking and POS tables. The engine never writes to either table.
type TriggerEventRepositoryImpl struct {
	DB *gorm.DB
}

func NewTriggerEventRepository(db *gorm.DB) TriggerEventRepository {
	return &TriggerEventRepositoryImpl{DB: db}
}

func (r *TriggerEventRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

func (r *TriggerEventRepositoryImpl) ListSince(ctx context.Context, kind models.TriggerKind, since, until time.Time) ([]models.TriggerEvent, error) {
	switch kind {
	case models.TriggerKindServiceCompleted:
		return r.listServiceCompletions(ctx, since, until)
	case models.TriggerKindTransaction:
		return r.listTransactions(ctx, since, until)
	default:
		return nil, fmt.Errorf("unknown trigger kind: %s", kind)
	}
}

func (r *TriggerEventRepositoryImpl) listServiceCompletions(ctx context.Context, since, until time.Time) ([]models.TriggerEvent, error) {
	db := r.getDB(ctx)
	var rows []*models.ServiceCompletion
	err := db.Model(&models.ServiceCompletion{}).
		Where("completed_at >= ? AND completed_at <= ?", since, until).
		Order("completed_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	events := make([]models.TriggerEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, models.TriggerEvent{
			Kind:       models.TriggerKindServiceCompleted,
			CustomerID: row.CustomerID,
			OccurredAt: row.CompletedAt,
			Amount:     row.Amount,
			Category:   row.ServiceCategory,
		})
	}
	return events, nil
}

func (r *TriggerEventRepositoryImpl) listTransactions(ctx context.Context, since, until time.Time) ([]models.TriggerEvent, error) {
	db := r.getDB(ctx)
	var rows []*models.Transaction
	err := db.Model(&models.Transaction{}).
		Where("completed_at >= ? AND completed_at <= ?", since, until).
		Order("completed_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	events := make([]models.TriggerEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, models.TriggerEvent{
			Kind:       models.TriggerKindTransaction,
			CustomerID: row.CustomerID,
			OccurredAt: row.CompletedAt,
			Amount:     row.Amount,
		})
	}
	return events, nil
}

func (r *TriggerEventRepositoryImpl) ListPurchasesByCustomerBetween(ctx context.Context, customerID uint, start, end time.Time) ([]*models.Transaction, error) {
	db := r.getDB(ctx)
	var rows []*models.Transaction
	err := db.Model(&models.Transaction{}).
		Where("customer_id = ? AND completed_at >= ? AND completed_at <= ?", customerID, start, end).
		Order("completed_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
