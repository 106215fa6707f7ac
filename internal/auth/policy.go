// Package auth holds the authorization policy: pure capability checks keyed
// off a user's permission set and the approver relationship. Role display
// names are never consulted.
package auth

import (
	"errors"

	"github.com/cando-yeh/reimbursement-sub001/internal/models"
)

// ErrForbidden is returned when an actor lacks the permission or
// relationship an action requires. Never retried automatically.
var ErrForbidden = errors.New("forbidden")

// Policy decides whether a principal may perform an action. It holds no
// state; all inputs arrive as arguments.
type Policy struct{}

// NewPolicy creates the authorization policy
func NewPolicy() *Policy {
	return &Policy{}
}

// IsApproverOf reports whether actor is the designated approver of applicant.
func (p *Policy) IsApproverOf(actor, applicant *models.User) bool {
	return applicant.ApproverID != nil && *applicant.ApproverID == actor.ID
}

// CanReviewFinance reports whether the actor may perform finance-stage
// claim review (approve, reject, request evidence).
func (p *Policy) CanReviewFinance(actor *models.User) bool {
	return actor.HasPermission(models.PermFinanceAudit)
}

// CanProposeVendorChange reports whether the actor may file a vendor
// add/update/delete request.
func (p *Policy) CanProposeVendorChange(actor *models.User) bool {
	return actor.HasPermission(models.PermGeneral) || actor.HasPermission(models.PermFinanceAudit)
}

// CanResolveVendorRequest reports whether the actor may approve or reject
// pending vendor requests.
func (p *Policy) CanResolveVendorRequest(actor *models.User) bool {
	return actor.HasPermission(models.PermFinanceAudit)
}

// CanBatchPayments reports whether the actor may commit or cancel payment
// batches.
func (p *Policy) CanBatchPayments(actor *models.User) bool {
	return actor.HasPermission(models.PermFinanceAudit)
}

// CanManageUsers reports whether the actor may edit users and permissions.
func (p *Policy) CanManageUsers(actor *models.User) bool {
	return actor.HasPermission(models.PermUserManagement)
}
