package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/auth"
	"github.com/cando-yeh/reimbursement-sub001/internal/models"
	"github.com/cando-yeh/reimbursement-sub001/internal/repository"
	"github.com/cando-yeh/reimbursement-sub001/pkg/database"
)

func newTestService(t *testing.T) (*Service, *models.User, *models.User) {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.NewInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewUserRepository(db.DB, logger)
	service := NewService(repo, auth.NewPolicy(), logger)

	admin := &models.User{Name: "Admin", Email: "admin@example.com", Permissions: []string{models.PermGeneral, models.PermUserManagement}}
	require.NoError(t, repo.Create(admin))

	regular := &models.User{Name: "Regular", Email: "regular@example.com", Permissions: []string{models.PermGeneral}}
	require.NoError(t, repo.Create(regular))

	return service, admin, regular
}

func TestCreateRequiresAdmin(t *testing.T) {
	service, admin, regular := newTestService(t)
	ctx := context.Background()

	_, err := service.Create(ctx, regular.ID, "New Hire", "hire@example.com")
	assert.ErrorIs(t, err, auth.ErrForbidden)

	user, err := service.Create(ctx, admin.ID, "New Hire", "hire@example.com")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Contains(t, user.Permissions, models.PermGeneral)
}

func TestCreateValidatesEmail(t *testing.T) {
	service, admin, _ := newTestService(t)

	_, err := service.Create(context.Background(), admin.ID, "Bad Email", "not-an-email")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestCreateIsUpsertByEmail(t *testing.T) {
	service, admin, regular := newTestService(t)
	ctx := context.Background()

	again, err := service.Create(ctx, admin.ID, "Regular Renamed", regular.Email)
	require.NoError(t, err)
	assert.Equal(t, regular.ID, again.ID)
}

func TestSetApprover(t *testing.T) {
	service, admin, regular := newTestService(t)
	ctx := context.Background()

	t.Run("self reference refused", func(t *testing.T) {
		err := service.SetApprover(ctx, admin.ID, regular.ID, regular.ID)
		assert.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("approver must exist", func(t *testing.T) {
		err := service.SetApprover(ctx, admin.ID, regular.ID, 99999)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	require.NoError(t, service.SetApprover(ctx, admin.ID, regular.ID, admin.ID))

	updated, err := service.Get(ctx, regular.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.ApproverID)
	assert.Equal(t, admin.ID, *updated.ApproverID)
}

func TestUpdatePermissions(t *testing.T) {
	service, admin, regular := newTestService(t)
	ctx := context.Background()

	t.Run("unknown permission refused", func(t *testing.T) {
		err := service.UpdatePermissions(ctx, admin.ID, regular.ID, []string{"superuser"})
		assert.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("last admin cannot drop user_management", func(t *testing.T) {
		err := service.UpdatePermissions(ctx, admin.ID, admin.ID, []string{models.PermGeneral})
		assert.ErrorIs(t, err, repository.ErrLastAdmin)
	})

	require.NoError(t, service.UpdatePermissions(ctx, admin.ID, regular.ID, []string{models.PermGeneral, models.PermFinanceAudit}))

	updated, err := service.Get(ctx, regular.ID)
	require.NoError(t, err)
	assert.True(t, updated.HasPermission(models.PermFinanceAudit))

	// A second admin now exists once granted; the first may then step down.
	require.NoError(t, service.UpdatePermissions(ctx, admin.ID, regular.ID, []string{models.PermGeneral, models.PermUserManagement}))
	assert.NoError(t, service.UpdatePermissions(ctx, admin.ID, admin.ID, []string{models.PermGeneral}))
}

func TestDeleteGuards(t *testing.T) {
	service, admin, regular := newTestService(t)
	ctx := context.Background()

	require.NoError(t, service.SetApprover(ctx, admin.ID, regular.ID, admin.ID))

	// admin is regular's approver and may not be removed.
	err := service.Delete(ctx, admin.ID, admin.ID)
	assert.ErrorIs(t, err, repository.ErrReferenced)

	require.NoError(t, service.Delete(ctx, admin.ID, regular.ID))
	_, err = service.Get(ctx, regular.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteRefusesLastAdmin(t *testing.T) {
	service, admin, regular := newTestService(t)
	ctx := context.Background()

	// admin is unreferenced but holds the only user_management permission.
	err := service.Delete(ctx, admin.ID, admin.ID)
	assert.ErrorIs(t, err, repository.ErrLastAdmin)

	still, err := service.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, still.HasPermission(models.PermUserManagement))

	// With a second admin in place the first may be removed.
	require.NoError(t, service.UpdatePermissions(ctx, admin.ID, regular.ID, []string{models.PermGeneral, models.PermUserManagement}))
	assert.NoError(t, service.Delete(ctx, admin.ID, admin.ID))
}
