// Package vendors owns vendor master-data moderation: every add, update, or
// delete is proposed as a request and takes effect only when finance
// approves it.
package vendors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/auth"
	"github.com/cando-yeh/reimbursement-sub001/internal/dispatcher"
	"github.com/cando-yeh/reimbursement-sub001/internal/domain/event"
	"github.com/cando-yeh/reimbursement-sub001/internal/models"
	"github.com/cando-yeh/reimbursement-sub001/internal/repository"
	"github.com/cando-yeh/reimbursement-sub001/pkg/database"
)

var (
	// ErrDuplicatePendingRequest is returned when a vendor already has an
	// in-flight moderation request
	ErrDuplicatePendingRequest = errors.New("a pending request already exists for this vendor")

	// ErrNotPending is returned when a resolve targets a request that was
	// already resolved
	ErrNotPending = errors.New("vendor request is not pending")

	// ErrValidationFailed is returned for malformed proposals
	ErrValidationFailed = errors.New("vendor request validation failed")
)

// Engine is the vendor moderation engine
type Engine struct {
	db      *database.DB
	vendors *repository.VendorRepository
	users   *repository.UserRepository
	policy  *auth.Policy
	events  dispatcher.Dispatcher
	logger  *zap.Logger
}

// NewEngine creates a new vendor moderation engine
func NewEngine(
	db *database.DB,
	vendors *repository.VendorRepository,
	users *repository.UserRepository,
	policy *auth.Policy,
	events dispatcher.Dispatcher,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:      db,
		vendors: vendors,
		users:   users,
		policy:  policy,
		events:  events,
		logger:  logger,
	}
}

func (e *Engine) proposer(actorID int64) (*models.User, error) {
	actor, err := e.users.GetByID(actorID)
	if err != nil {
		return nil, err
	}
	if !e.policy.CanProposeVendorChange(actor) {
		return nil, fmt.Errorf("%w: proposing vendor changes requires the general or finance_audit permission", auth.ErrForbidden)
	}
	return actor, nil
}

// ProposeAdd files a request to create a new vendor
func (e *Engine) ProposeAdd(ctx context.Context, actorID int64, data models.VendorData) (*models.VendorRequest, error) {
	actor, err := e.proposer(actorID)
	if err != nil {
		return nil, err
	}
	if data.Name == "" {
		return nil, fmt.Errorf("%w: vendor name is required", ErrValidationFailed)
	}

	duplicate, err := e.vendors.HasPendingAdd(data.Name)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, fmt.Errorf("%w: add request for %q", ErrDuplicatePendingRequest, data.Name)
	}

	req := &models.VendorRequest{
		Type:          models.VendorRequestAdd,
		Status:        models.RequestPending,
		Data:          &data,
		ApplicantID:   actor.ID,
		ApplicantName: actor.Name,
	}
	if err := e.createRequest(ctx, req); err != nil {
		return nil, err
	}
	return e.vendors.GetRequest(req.ID)
}

// ProposeUpdate files a request to overwrite a vendor's master data
func (e *Engine) ProposeUpdate(ctx context.Context, actorID, vendorID int64, data models.VendorData) (*models.VendorRequest, error) {
	actor, err := e.proposer(actorID)
	if err != nil {
		return nil, err
	}
	if data.Name == "" {
		return nil, fmt.Errorf("%w: vendor name is required", ErrValidationFailed)
	}

	vendor, err := e.vendors.GetVendor(vendorID)
	if err != nil {
		return nil, err
	}
	if err := e.ensureNoPending(vendorID); err != nil {
		return nil, err
	}

	req := &models.VendorRequest{
		Type:          models.VendorRequestUpdate,
		Status:        models.RequestPending,
		VendorID:      &vendorID,
		Data:          &data,
		OriginalData:  snapshot(vendor),
		ApplicantID:   actor.ID,
		ApplicantName: actor.Name,
	}
	if err := e.createRequest(ctx, req); err != nil {
		return nil, err
	}
	return e.vendors.GetRequest(req.ID)
}

// ProposeDelete files a request to deactivate a vendor
func (e *Engine) ProposeDelete(ctx context.Context, actorID, vendorID int64) (*models.VendorRequest, error) {
	actor, err := e.proposer(actorID)
	if err != nil {
		return nil, err
	}

	vendor, err := e.vendors.GetVendor(vendorID)
	if err != nil {
		return nil, err
	}
	if err := e.ensureNoPending(vendorID); err != nil {
		return nil, err
	}

	req := &models.VendorRequest{
		Type:          models.VendorRequestDelete,
		Status:        models.RequestPending,
		VendorID:      &vendorID,
		OriginalData:  snapshot(vendor),
		ApplicantID:   actor.ID,
		ApplicantName: actor.Name,
	}
	if err := e.createRequest(ctx, req); err != nil {
		return nil, err
	}
	return e.vendors.GetRequest(req.ID)
}

func (e *Engine) ensureNoPending(vendorID int64) error {
	_, err := e.vendors.PendingRequestForVendor(vendorID)
	if err == nil {
		return fmt.Errorf("%w: vendor %d", ErrDuplicatePendingRequest, vendorID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func (e *Engine) createRequest(ctx context.Context, req *models.VendorRequest) error {
	err := e.db.WithTransaction(func(tx *sql.Tx) error {
		return e.vendors.CreateRequest(tx, req)
	})
	if err != nil {
		return err
	}

	e.logger.Info("Vendor request created",
		zap.Int64("request_id", req.ID),
		zap.String("type", req.Type),
		zap.Int64("applicant_id", req.ApplicantID))
	e.events.DispatchAsync(ctx, event.New(event.TypeVendorRequestCreated, req.ID, map[string]interface{}{
		"type": req.Type,
	}))
	return nil
}

// Resolve approves or rejects a pending request. Approval materializes the
// proposed change; rejection leaves the vendor untouched. Either way the
// request is retained for audit.
func (e *Engine) Resolve(ctx context.Context, requestID, actorID int64, decision string) (*models.VendorRequest, error) {
	actor, err := e.users.GetByID(actorID)
	if err != nil {
		return nil, err
	}
	if !e.policy.CanResolveVendorRequest(actor) {
		return nil, fmt.Errorf("%w: resolving vendor requests requires the finance_audit permission", auth.ErrForbidden)
	}

	if decision != models.RequestApproved && decision != models.RequestRejected {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrValidationFailed, decision)
	}

	req, err := e.vendors.GetRequest(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestPending {
		return nil, fmt.Errorf("%w: request %d is %s", ErrNotPending, requestID, req.Status)
	}

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		if err := e.vendors.ResolveRequest(tx, requestID, decision, actorID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: request %d", ErrNotPending, requestID)
			}
			return err
		}
		if decision != models.RequestApproved {
			return nil
		}

		switch req.Type {
		case models.VendorRequestAdd:
			vendor := &models.Vendor{
				Name:              req.Data.Name,
				ServiceContent:    req.Data.ServiceContent,
				BankCode:          req.Data.BankCode,
				BankAccount:       req.Data.BankAccount,
				IsFloatingAccount: req.Data.IsFloatingAccount,
				Status:            models.VendorActive,
			}
			return e.vendors.CreateVendor(tx, vendor)
		case models.VendorRequestUpdate:
			return e.vendors.UpdateVendorData(tx, *req.VendorID, req.Data)
		case models.VendorRequestDelete:
			// Soft deactivation: historical claims keep a valid reference.
			return e.vendors.SetVendorStatus(tx, *req.VendorID, models.VendorInactive)
		default:
			return fmt.Errorf("unknown vendor request type %q", req.Type)
		}
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Vendor request resolved",
		zap.Int64("request_id", requestID),
		zap.String("decision", decision),
		zap.Int64("resolver_id", actorID))
	e.events.DispatchAsync(ctx, event.New(event.TypeVendorRequestResolved, requestID, map[string]interface{}{
		"decision": decision,
		"type":     req.Type,
	}))

	return e.vendors.GetRequest(requestID)
}

// ListRequests retrieves vendor requests, optionally filtered by status
func (e *Engine) ListRequests(ctx context.Context, status string) ([]*models.VendorRequest, error) {
	return e.vendors.ListRequests(status)
}

// GetVendor retrieves a single vendor
func (e *Engine) GetVendor(ctx context.Context, id int64) (*models.Vendor, error) {
	return e.vendors.GetVendor(id)
}

func snapshot(vendor *models.Vendor) *models.VendorData {
	return &models.VendorData{
		Name:              vendor.Name,
		ServiceContent:    vendor.ServiceContent,
		BankCode:          vendor.BankCode,
		BankAccount:       vendor.BankAccount,
		IsFloatingAccount: vendor.IsFloatingAccount,
	}
}
