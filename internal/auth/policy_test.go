package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cando-yeh/reimbursement-sub001/internal/models"
)

func user(id int64, perms ...string) *models.User {
	return &models.User{ID: id, Permissions: perms}
}

func TestIsApproverOf(t *testing.T) {
	policy := NewPolicy()
	approverID := int64(2)

	applicant := &models.User{ID: 1, ApproverID: &approverID}
	assert.True(t, policy.IsApproverOf(user(2), applicant))
	assert.False(t, policy.IsApproverOf(user(3), applicant))

	orphan := &models.User{ID: 1}
	assert.False(t, policy.IsApproverOf(user(2), orphan), "no approver set means nobody qualifies")
}

func TestFinanceCapabilities(t *testing.T) {
	policy := NewPolicy()
	finance := user(1, models.PermFinanceAudit)
	regular := user(2, models.PermGeneral)

	assert.True(t, policy.CanReviewFinance(finance))
	assert.True(t, policy.CanResolveVendorRequest(finance))
	assert.True(t, policy.CanBatchPayments(finance))

	assert.False(t, policy.CanReviewFinance(regular))
	assert.False(t, policy.CanResolveVendorRequest(regular))
	assert.False(t, policy.CanBatchPayments(regular))
}

func TestCanProposeVendorChange(t *testing.T) {
	policy := NewPolicy()

	assert.True(t, policy.CanProposeVendorChange(user(1, models.PermGeneral)))
	assert.True(t, policy.CanProposeVendorChange(user(2, models.PermFinanceAudit)))
	assert.False(t, policy.CanProposeVendorChange(user(3)))
	assert.False(t, policy.CanProposeVendorChange(user(4, models.PermUserManagement)))
}

func TestRoleNameCarriesNoRights(t *testing.T) {
	policy := NewPolicy()

	// A finance-sounding display label without the permission grants nothing.
	pretender := &models.User{ID: 5, RoleName: "Finance Director", Permissions: []string{models.PermGeneral}}
	assert.False(t, policy.CanReviewFinance(pretender))
	assert.False(t, policy.CanBatchPayments(pretender))
}

func TestCanManageUsers(t *testing.T) {
	policy := NewPolicy()
	assert.True(t, policy.CanManageUsers(user(1, models.PermUserManagement)))
	assert.False(t, policy.CanManageUsers(user(2, models.PermGeneral, models.PermFinanceAudit)))
}
