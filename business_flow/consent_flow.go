// Package businessflow contains the core business logic and use cases for the consent ledger
package businessflow

import (
	"context"
	"log"

	"github.com/amirphl/Kusanagi/app/dto"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/google/uuid"
)

// ConsentFlow handles the consent ledger business logic. All consent flag
// mutations go through Update so the flag always matches the latest ledger
// entry. Direct flag writes anywhere else are a defect.
type ConsentFlow interface {
	Update(ctx context.Context, req *dto.RecordConsentRequest, metadata *ClientMetadata) (*dto.RecordConsentResponse, error)
	Check(ctx context.Context, customerID uint, channel models.ConsentChannel) (bool, error)
	History(ctx context.Context, req *dto.GetConsentHistoryRequest, metadata *ClientMetadata) (*dto.GetConsentHistoryResponse, error)
}

// ConsentFlowImpl implements the consent ledger business flow
type ConsentFlowImpl struct {
	consentRepo  repository.ConsentRepository
	customerRepo repository.CustomerRepository
	tx           repository.TxRunner
	logger       *log.Logger
}

// NewConsentFlow creates a new consent flow instance
func NewConsentFlow(
	consentRepo repository.ConsentRepository,
	customerRepo repository.CustomerRepository,
	tx repository.TxRunner,
	logger *log.Logger,
) ConsentFlow {
	return &ConsentFlowImpl{
		consentRepo:  consentRepo,
		customerRepo: customerRepo,
		tx:           tx,
		logger:       logger,
	}
}

// Update appends a ledger entry and sets the current flag to match it, in a
// single transaction
func (f *ConsentFlowImpl) Update(ctx context.Context, req *dto.RecordConsentRequest, metadata *ClientMetadata) (*dto.RecordConsentResponse, error) {
	channel := models.ConsentChannel(req.Channel)
	if !channel.Valid() {
		return nil, NewBusinessError("CONSENT_CHANNEL_INVALID", "Consent channel is invalid", ErrConsentChannelInvalid)
	}
	action := models.ConsentAction(req.Action)
	if !action.Valid() {
		return nil, NewBusinessError("CONSENT_ACTION_INVALID", "Consent action is invalid", ErrConsentActionInvalid)
	}
	if req.Source == "" {
		return nil, NewBusinessError("CONSENT_SOURCE_REQUIRED", "Consent source is required", ErrConsentSourceRequired)
	}

	customerUUID, err := uuid.Parse(req.CustomerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_UUID_INVALID", "Customer UUID is invalid", err)
	}

	customer, err := f.customerRepo.ByUUID(ctx, customerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}

	now := utils.UTCNow()

	err = f.tx(ctx, func(txCtx context.Context) error {
		event := &models.ConsentEvent{
			CustomerID: customer.ID,
			Channel:    channel,
			Action:     action,
			Source:     req.Source,
			CreatedAt:  now,
		}
		if err := f.consentRepo.AppendEvent(txCtx, event); err != nil {
			return err
		}

		record, err := f.consentRepo.RecordByCustomerAndChannel(txCtx, customer.ID, channel)
		if err != nil {
			return err
		}
		if record == nil {
			record = &models.ConsentRecord{
				CustomerID: customer.ID,
				Channel:    channel,
				OptedIn:    action.Granted(),
				CreatedAt:  now,
			}
			return f.consentRepo.SaveRecord(txCtx, record)
		}

		record.OptedIn = action.Granted()
		record.UpdatedAt = &now
		return f.consentRepo.UpdateRecord(txCtx, record)
	})
	if err != nil {
		return nil, NewBusinessError("CONSENT_UPDATE_FAILED", "Consent update failed", err)
	}

	f.logger.Printf("consent: customer %s %s on %s (source=%s)", customer.UUID, action, channel, req.Source)

	return &dto.RecordConsentResponse{
		CustomerUUID: customer.UUID.String(),
		Channel:      string(channel),
		OptedIn:      action.Granted(),
		RecordedAt:   now,
	}, nil
}

// Check returns the current consent flag. A customer with no record has never
// opted in, so marketing sends are denied.
func (f *ConsentFlowImpl) Check(ctx context.Context, customerID uint, channel models.ConsentChannel) (bool, error) {
	record, err := f.consentRepo.RecordByCustomerAndChannel(ctx, customerID, channel)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	return record.OptedIn, nil
}

// History returns the current flags plus the append-only event trail
func (f *ConsentFlowImpl) History(ctx context.Context, req *dto.GetConsentHistoryRequest, metadata *ClientMetadata) (*dto.GetConsentHistoryResponse, error) {
	customerUUID, err := uuid.Parse(req.CustomerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_UUID_INVALID", "Customer UUID is invalid", err)
	}

	customer, err := f.customerRepo.ByUUID(ctx, customerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}

	records, err := f.consentRepo.ListRecords(ctx, customer.ID)
	if err != nil {
		return nil, NewBusinessError("CONSENT_READ_FAILED", "Failed to read consent records", err)
	}
	events, err := f.consentRepo.ListEvents(ctx, customer.ID, 0, 0)
	if err != nil {
		return nil, NewBusinessError("CONSENT_READ_FAILED", "Failed to read consent events", err)
	}

	states := make([]dto.ConsentStateDTO, 0, len(records))
	for _, record := range records {
		states = append(states, dto.ConsentStateDTO{
			Channel:   string(record.Channel),
			OptedIn:   record.OptedIn,
			UpdatedAt: record.UpdatedAt,
		})
	}

	trail := make([]dto.ConsentEventDTO, 0, len(events))
	for _, event := range events {
		trail = append(trail, dto.ConsentEventDTO{
			Channel:   string(event.Channel),
			Action:    string(event.Action),
			Source:    event.Source,
			CreatedAt: event.CreatedAt,
		})
	}

	return &dto.GetConsentHistoryResponse{
		CustomerUUID: customer.UUID.String(),
		States:       states,
		Events:       trail,
	}, nil
}
