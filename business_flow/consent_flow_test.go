package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/Kusanagi/app/dto"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsentFixture() (*fakeConsentRepo, *fakeCustomerRepo, ConsentFlow) {
	consentRepo := newFakeConsentRepo()
	customerRepo := newFakeCustomerRepo()
	flow := NewConsentFlow(consentRepo, customerRepo, passthroughTx, testLogger())
	return consentRepo, customerRepo, flow
}

func TestConsentUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("OptInCreatesRecordAndLedgerEntry", func(t *testing.T) {
		consentRepo, customerRepo, flow := newConsentFixture()
		customer := &models.Customer{ID: 1, UUID: uuid.New(), FullName: "Ana Lopez", IsActive: utils.ToPtr(true)}
		customerRepo.customers = append(customerRepo.customers, customer)

		resp, err := flow.Update(ctx, &dto.RecordConsentRequest{
			CustomerUUID: customer.UUID.String(),
			Channel:      "sms",
			Action:       "opt_in",
			Source:       "web_form",
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.OptedIn)
		assert.Equal(t, "sms", resp.Channel)

		require.Len(t, consentRepo.records, 1)
		assert.True(t, consentRepo.records[0].OptedIn)

		require.Len(t, consentRepo.events, 1)
		event := consentRepo.events[0]
		assert.Equal(t, models.ConsentActionOptIn, event.Action)
		assert.Equal(t, "web_form", event.Source)
	})

	t.Run("OptOutFlipsFlagAndAppendsEvent", func(t *testing.T) {
		consentRepo, customerRepo, flow := newConsentFixture()
		customer := &models.Customer{ID: 1, UUID: uuid.New(), FullName: "Ana Lopez", IsActive: utils.ToPtr(true)}
		customerRepo.customers = append(customerRepo.customers, customer)

		_, err := flow.Update(ctx, &dto.RecordConsentRequest{
			CustomerUUID: customer.UUID.String(), Channel: "sms", Action: "opt_in", Source: "web_form",
		}, nil)
		require.NoError(t, err)

		resp, err := flow.Update(ctx, &dto.RecordConsentRequest{
			CustomerUUID: customer.UUID.String(), Channel: "sms", Action: "opt_out", Source: "sms_reply",
		}, nil)
		require.NoError(t, err)
		assert.False(t, resp.OptedIn)

		// Still one record per (customer, channel), but two ledger entries
		require.Len(t, consentRepo.records, 1)
		assert.False(t, consentRepo.records[0].OptedIn)
		assert.Len(t, consentRepo.events, 2)
	})

	t.Run("ChannelsAreIndependent", func(t *testing.T) {
		consentRepo, customerRepo, flow := newConsentFixture()
		customer := &models.Customer{ID: 1, UUID: uuid.New(), FullName: "Ana Lopez", IsActive: utils.ToPtr(true)}
		customerRepo.customers = append(customerRepo.customers, customer)

		_, err := flow.Update(ctx, &dto.RecordConsentRequest{
			CustomerUUID: customer.UUID.String(), Channel: "sms", Action: "opt_in", Source: "web_form",
		}, nil)
		require.NoError(t, err)

		assert.Len(t, consentRepo.records, 1)

		granted, err := flow.Check(ctx, 1, models.ConsentChannelSMS)
		require.NoError(t, err)
		assert.True(t, granted)

		granted, err = flow.Check(ctx, 1, models.ConsentChannelEmail)
		require.NoError(t, err)
		assert.False(t, granted)
	})

	t.Run("UnknownCustomer", func(t *testing.T) {
		_, _, flow := newConsentFixture()
		_, err := flow.Update(ctx, &dto.RecordConsentRequest{
			CustomerUUID: uuid.New().String(), Channel: "sms", Action: "opt_in", Source: "web_form",
		}, nil)
		require.Error(t, err)
		assert.True(t, IsCustomerNotFound(err))
	})

	t.Run("InvalidInputs", func(t *testing.T) {
		_, customerRepo, flow := newConsentFixture()
		customer := &models.Customer{ID: 1, UUID: uuid.New(), FullName: "Ana", IsActive: utils.ToPtr(true)}
		customerRepo.customers = append(customerRepo.customers, customer)

		_, err := flow.Update(ctx, &dto.RecordConsentRequest{
			CustomerUUID: customer.UUID.String(), Channel: "fax", Action: "opt_in", Source: "web_form",
		}, nil)
		assert.True(t, IsConsentChannelInvalid(err))

		_, err = flow.Update(ctx, &dto.RecordConsentRequest{
			CustomerUUID: customer.UUID.String(), Channel: "sms", Action: "maybe", Source: "web_form",
		}, nil)
		assert.True(t, IsConsentActionInvalid(err))

		_, err = flow.Update(ctx, &dto.RecordConsentRequest{
			CustomerUUID: customer.UUID.String(), Channel: "sms", Action: "opt_in", Source: "",
		}, nil)
		require.Error(t, err)
	})
}

func TestConsentCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("NoRecordMeansDenied", func(t *testing.T) {
		_, _, flow := newConsentFixture()
		granted, err := flow.Check(ctx, 42, models.ConsentChannelSMS)
		require.NoError(t, err)
		assert.False(t, granted)
	})
}

func TestConsentHistory(t *testing.T) {
	ctx := context.Background()

	consentRepo, customerRepo, flow := newConsentFixture()
	customer := &models.Customer{ID: 1, UUID: uuid.New(), FullName: "Ana Lopez", IsActive: utils.ToPtr(true)}
	customerRepo.customers = append(customerRepo.customers, customer)

	for _, req := range []*dto.RecordConsentRequest{
		{CustomerUUID: customer.UUID.String(), Channel: "sms", Action: "opt_in", Source: "web_form"},
		{CustomerUUID: customer.UUID.String(), Channel: "sms", Action: "opt_out", Source: "sms_reply"},
		{CustomerUUID: customer.UUID.String(), Channel: "email", Action: "opt_in", Source: "import"},
	} {
		_, err := flow.Update(ctx, req, nil)
		require.NoError(t, err)
	}

	resp, err := flow.History(ctx, &dto.GetConsentHistoryRequest{CustomerUUID: customer.UUID.String()}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Len(t, resp.States, 2)
	assert.Len(t, resp.Events, 3)
	assert.Len(t, consentRepo.events, 3)

	byChannel := make(map[string]bool, len(resp.States))
	for _, state := range resp.States {
		byChannel[state.Channel] = state.OptedIn
	}
	assert.False(t, byChannel["sms"])
	assert.True(t, byChannel["email"])
}
