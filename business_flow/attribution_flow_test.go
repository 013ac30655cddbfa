package businessflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/amirphl/Kusanagi/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAttributionFixture() (*fakeExecRepo, *fakeTriggerRepo, AttributionFlow) {
	execRepo := newFakeExecRepo()
	triggerRepo := newFakeTriggerRepo()
	flow := NewAttributionFlow(execRepo, triggerRepo, testLogger())
	return execRepo, triggerRepo, flow
}

func sentExecution(id, ruleID, customerID uint, sentAt time.Time) *models.LifecycleExecution {
	return &models.LifecycleExecution{
		ID:         id,
		RuleID:     ruleID,
		CustomerID: customerID,
		Status:     models.ExecutionStatusSent,
		TrackingID: fmt.Sprintf("trk-%d", id),
		SentAt:     &sentAt,
		CreatedAt:  sentAt,
	}
}

func TestAttributionForRule(t *testing.T) {
	ctx := context.Background()
	window := 7 * 24 * time.Hour
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	t.Run("CreditsPurchaseInsideWindow", func(t *testing.T) {
		execRepo, triggerRepo, flow := newAttributionFixture()

		execRepo.execs = append(execRepo.execs, sentExecution(1, 1, 7, base))
		triggerRepo.purchases = append(triggerRepo.purchases, &models.Transaction{
			ID: 1, CustomerID: 7, Amount: 30.0, CompletedAt: base.Add(5 * time.Minute),
		})

		result, err := flow.ForRule(ctx, 1, base.Add(-time.Hour), base.Add(time.Hour), window)
		require.NoError(t, err)
		assert.Equal(t, 1, result.MessagesSent)
		assert.Equal(t, 1, result.UniqueCustomers)
		assert.Equal(t, 1, result.CustomersReturned)
		assert.InDelta(t, 30.0, result.Revenue, 1e-9)
	})

	t.Run("WindowBoundsAreClosed", func(t *testing.T) {
		execRepo, triggerRepo, flow := newAttributionFixture()

		execRepo.execs = append(execRepo.execs, sentExecution(1, 1, 7, base))
		triggerRepo.purchases = append(triggerRepo.purchases,
			&models.Transaction{ID: 1, CustomerID: 7, Amount: 10.0, CompletedAt: base},
			&models.Transaction{ID: 2, CustomerID: 7, Amount: 20.0, CompletedAt: base.Add(window)},
			&models.Transaction{ID: 3, CustomerID: 7, Amount: 40.0, CompletedAt: base.Add(window + time.Second)},
			&models.Transaction{ID: 4, CustomerID: 7, Amount: 80.0, CompletedAt: base.Add(-time.Second)},
		)

		result, err := flow.ForRule(ctx, 1, base.Add(-time.Hour), base.Add(time.Hour), window)
		require.NoError(t, err)
		assert.InDelta(t, 30.0, result.Revenue, 1e-9)
		assert.Equal(t, 1, result.CustomersReturned)
	})

	t.Run("CustomerCountedOnceAcrossSends", func(t *testing.T) {
		execRepo, triggerRepo, flow := newAttributionFixture()

		execRepo.execs = append(execRepo.execs,
			sentExecution(1, 1, 7, base),
			sentExecution(2, 1, 7, base.Add(time.Hour)),
		)
		triggerRepo.purchases = append(triggerRepo.purchases, &models.Transaction{
			ID: 1, CustomerID: 7, Amount: 25.0, CompletedAt: base.Add(2 * time.Hour),
		})

		result, err := flow.ForRule(ctx, 1, base.Add(-time.Hour), base.Add(2*time.Hour), window)
		require.NoError(t, err)
		assert.Equal(t, 2, result.MessagesSent)
		assert.Equal(t, 1, result.UniqueCustomers)
	})

	t.Run("PurchaseCreditedOnceAcrossOverlappingWindows", func(t *testing.T) {
		execRepo, triggerRepo, flow := newAttributionFixture()

		// Two sends whose windows both contain the purchase
		execRepo.execs = append(execRepo.execs,
			sentExecution(1, 1, 7, base),
			sentExecution(2, 1, 7, base.Add(time.Hour)),
		)
		triggerRepo.purchases = append(triggerRepo.purchases, &models.Transaction{
			ID: 1, CustomerID: 7, Amount: 25.0, CompletedAt: base.Add(2 * time.Hour),
		})

		result, err := flow.ForRule(ctx, 1, base.Add(-time.Hour), base.Add(2*time.Hour), window)
		require.NoError(t, err)
		assert.InDelta(t, 25.0, result.Revenue, 1e-9)
		assert.Equal(t, 1, result.CustomersReturned)
	})

	t.Run("RevenueSummedUnrounded", func(t *testing.T) {
		execRepo, triggerRepo, flow := newAttributionFixture()

		execRepo.execs = append(execRepo.execs, sentExecution(1, 1, 7, base))
		triggerRepo.purchases = append(triggerRepo.purchases,
			&models.Transaction{ID: 1, CustomerID: 7, Amount: 10.105, CompletedAt: base.Add(time.Hour)},
			&models.Transaction{ID: 2, CustomerID: 7, Amount: 20.115, CompletedAt: base.Add(2 * time.Hour)},
		)

		result, err := flow.ForRule(ctx, 1, base.Add(-time.Hour), base.Add(time.Hour), window)
		require.NoError(t, err)
		assert.InDelta(t, 30.22, result.Revenue, 1e-9)
	})

	t.Run("OtherRuleSendsExcluded", func(t *testing.T) {
		execRepo, triggerRepo, flow := newAttributionFixture()

		execRepo.execs = append(execRepo.execs,
			sentExecution(1, 1, 7, base),
			sentExecution(2, 2, 8, base),
		)
		triggerRepo.purchases = append(triggerRepo.purchases,
			&models.Transaction{ID: 1, CustomerID: 8, Amount: 99.0, CompletedAt: base.Add(time.Hour)},
		)

		result, err := flow.ForRule(ctx, 1, base.Add(-time.Hour), base.Add(time.Hour), window)
		require.NoError(t, err)
		assert.Equal(t, 1, result.MessagesSent)
		assert.Zero(t, result.Revenue)
	})

	t.Run("InvalidPeriod", func(t *testing.T) {
		_, _, flow := newAttributionFixture()

		_, err := flow.ForRule(ctx, 1, base, base.Add(-time.Hour), window)
		require.Error(t, err)
		assert.True(t, IsStartDateAfterEndDate(err))

		_, err = flow.ForRule(ctx, 1, base, base.Add(time.Hour), 0)
		require.Error(t, err)
	})
}

func TestAttributionForPeriod(t *testing.T) {
	ctx := context.Background()
	window := 7 * 24 * time.Hour
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	execRepo, triggerRepo, flow := newAttributionFixture()

	execRepo.execs = append(execRepo.execs,
		sentExecution(1, 1, 7, base),
		sentExecution(2, 2, 8, base.Add(time.Hour)),
	)
	triggerRepo.purchases = append(triggerRepo.purchases,
		&models.Transaction{ID: 1, CustomerID: 7, Amount: 30.0, CompletedAt: base.Add(time.Hour)},
		&models.Transaction{ID: 2, CustomerID: 8, Amount: 45.5, CompletedAt: base.Add(2 * time.Hour)},
	)

	result, err := flow.ForPeriod(ctx, base.Add(-time.Hour), base.Add(2*time.Hour), window)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MessagesSent)
	assert.Equal(t, 2, result.UniqueCustomers)
	assert.Equal(t, 2, result.CustomersReturned)
	assert.InDelta(t, 75.5, result.Revenue, 1e-9)
}

// Guards the sum against premature per-purchase rounding drift
func TestAttributionManySmallAmounts(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	execRepo, triggerRepo, flow := newAttributionFixture()
	execRepo.execs = append(execRepo.execs, sentExecution(1, 1, 7, base))

	total := 0.0
	for i := uint(1); i <= 100; i++ {
		amount := 0.1
		total += amount
		triggerRepo.purchases = append(triggerRepo.purchases, &models.Transaction{
			ID: i, CustomerID: 7, Amount: amount, CompletedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	result, err := flow.ForRule(ctx, 1, base.Add(-time.Hour), base.Add(time.Hour), 7*24*time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, total, result.Revenue, 1e-9)
}
