package vendors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/auth"
	"github.com/cando-yeh/reimbursement-sub001/internal/dispatcher"
	"github.com/cando-yeh/reimbursement-sub001/internal/models"
	"github.com/cando-yeh/reimbursement-sub001/internal/repository"
	"github.com/cando-yeh/reimbursement-sub001/pkg/database"
)

type testEnv struct {
	engine  *Engine
	vendors *repository.VendorRepository
	general *models.User
	finance *models.User
	noPerms *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.NewInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	vendors := repository.NewVendorRepository(db.DB, logger)
	users := repository.NewUserRepository(db.DB, logger)

	env := &testEnv{
		vendors: vendors,
		engine:  NewEngine(db, vendors, users, auth.NewPolicy(), dispatcher.New(logger), logger),
	}

	env.general = &models.User{Name: "Gale General", Email: "gale@example.com", Permissions: []string{models.PermGeneral}}
	require.NoError(t, users.Create(env.general))

	env.finance = &models.User{Name: "Fin Reviewer", Email: "fin@example.com", Permissions: []string{models.PermGeneral, models.PermFinanceAudit}}
	require.NoError(t, users.Create(env.finance))

	env.noPerms = &models.User{Name: "Locked Out", Email: "locked@example.com", Permissions: []string{}}
	require.NoError(t, users.Create(env.noPerms))

	return env
}

func (env *testEnv) seedVendor(t *testing.T, name string) *models.Vendor {
	t.Helper()
	vendor := &models.Vendor{
		Name:           name,
		ServiceContent: "cloud hosting",
		BankCode:       "807",
		BankAccount:    "001-2233445",
		Status:         models.VendorActive,
	}
	require.NoError(t, env.vendors.CreateVendor(nil, vendor))
	return vendor
}

func TestProposeAddRequiresPermission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.ProposeAdd(ctx, env.noPerms.ID, models.VendorData{Name: "Acme"})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	req, err := env.engine.ProposeAdd(ctx, env.general.ID, models.VendorData{Name: "Acme", ServiceContent: "office supplies"})
	require.NoError(t, err)
	assert.Equal(t, models.VendorRequestAdd, req.Type)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Nil(t, req.VendorID)
	assert.Equal(t, env.general.Name, req.ApplicantName)
}

func TestProposeAddRejectsDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.ProposeAdd(ctx, env.general.ID, models.VendorData{Name: "Acme"})
	require.NoError(t, err)

	_, err = env.engine.ProposeAdd(ctx, env.general.ID, models.VendorData{Name: "Acme"})
	assert.ErrorIs(t, err, ErrDuplicatePendingRequest)
}

func TestApprovedAddMaterializesVendor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.engine.ProposeAdd(ctx, env.general.ID, models.VendorData{
		Name:           "Acme",
		ServiceContent: "office supplies",
		BankCode:       "012",
		BankAccount:    "777-000111",
	})
	require.NoError(t, err)

	// Only finance may resolve.
	_, err = env.engine.Resolve(ctx, req.ID, env.general.ID, models.RequestApproved)
	require.ErrorIs(t, err, auth.ErrForbidden)

	resolved, err := env.engine.Resolve(ctx, req.ID, env.finance.ID, models.RequestApproved)
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, resolved.Status)
	require.NotNil(t, resolved.ResolverID)
	assert.Equal(t, env.finance.ID, *resolved.ResolverID)

	vendors, err := env.vendors.ListVendors()
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, "Acme", vendors[0].Name)
	assert.Equal(t, models.VendorActive, vendors[0].Status)
}

func TestRejectedAddCreatesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.engine.ProposeAdd(ctx, env.general.ID, models.VendorData{Name: "Acme"})
	require.NoError(t, err)

	resolved, err := env.engine.Resolve(ctx, req.ID, env.finance.ID, models.RequestRejected)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, resolved.Status)

	vendors, err := env.vendors.ListVendors()
	require.NoError(t, err)
	assert.Empty(t, vendors)
}

func TestProposeUpdateSnapshotsOriginal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vendor := env.seedVendor(t, "Northwind")

	req, err := env.engine.ProposeUpdate(ctx, env.general.ID, vendor.ID, models.VendorData{
		Name:        "Northwind Ltd",
		BankCode:    "822",
		BankAccount: "999-555000",
	})
	require.NoError(t, err)

	require.NotNil(t, req.OriginalData)
	assert.Equal(t, "Northwind", req.OriginalData.Name)
	assert.Equal(t, "807", req.OriginalData.BankCode)

	// The committed row stays untouched while the request is pending.
	current, err := env.engine.GetVendor(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, "Northwind", current.Name)
}

func TestOnePendingRequestPerVendor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vendor := env.seedVendor(t, "Northwind")

	_, err := env.engine.ProposeUpdate(ctx, env.general.ID, vendor.ID, models.VendorData{Name: "Northwind Ltd"})
	require.NoError(t, err)

	_, err = env.engine.ProposeDelete(ctx, env.general.ID, vendor.ID)
	assert.ErrorIs(t, err, ErrDuplicatePendingRequest)

	_, err = env.engine.ProposeUpdate(ctx, env.general.ID, vendor.ID, models.VendorData{Name: "Northwind Inc"})
	assert.ErrorIs(t, err, ErrDuplicatePendingRequest)
}

func TestApprovedUpdateOverwritesVendor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vendor := env.seedVendor(t, "Northwind")

	req, err := env.engine.ProposeUpdate(ctx, env.general.ID, vendor.ID, models.VendorData{
		Name:           "Northwind Ltd",
		ServiceContent: "cloud hosting",
		BankCode:       "822",
		BankAccount:    "999-555000",
	})
	require.NoError(t, err)

	_, err = env.engine.Resolve(ctx, req.ID, env.finance.ID, models.RequestApproved)
	require.NoError(t, err)

	updated, err := env.engine.GetVendor(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, "Northwind Ltd", updated.Name)
	assert.Equal(t, "822", updated.BankCode)
	assert.Equal(t, models.VendorActive, updated.Status)
}

func TestApprovedDeleteIsSoft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vendor := env.seedVendor(t, "Northwind")

	req, err := env.engine.ProposeDelete(ctx, env.general.ID, vendor.ID)
	require.NoError(t, err)

	_, err = env.engine.Resolve(ctx, req.ID, env.finance.ID, models.RequestApproved)
	require.NoError(t, err)

	// The row survives so historical claims keep their reference.
	gone, err := env.engine.GetVendor(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VendorInactive, gone.Status)
}

func TestResolveTwiceFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.engine.ProposeAdd(ctx, env.general.ID, models.VendorData{Name: "Acme"})
	require.NoError(t, err)

	_, err = env.engine.Resolve(ctx, req.ID, env.finance.ID, models.RequestApproved)
	require.NoError(t, err)

	_, err = env.engine.Resolve(ctx, req.ID, env.finance.ID, models.RequestRejected)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestResolveRejectsUnknownDecision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req, err := env.engine.ProposeAdd(ctx, env.general.ID, models.VendorData{Name: "Acme"})
	require.NoError(t, err)

	_, err = env.engine.Resolve(ctx, req.ID, env.finance.ID, "maybe")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestListMergedProjection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	committed := env.seedVendor(t, "Northwind")
	deleteReq, err := env.engine.ProposeDelete(ctx, env.general.ID, committed.ID)
	require.NoError(t, err)

	addReq, err := env.engine.ProposeAdd(ctx, env.general.ID, models.VendorData{Name: "Acme", BankCode: "012"})
	require.NoError(t, err)

	views, err := env.engine.ListMerged(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byName := make(map[string]*models.VendorView, len(views))
	for _, v := range views {
		byName[v.Name] = v
	}

	existing := byName["Northwind"]
	require.NotNil(t, existing)
	assert.Equal(t, committed.ID, existing.Vendor.ID)
	assert.True(t, existing.Pending)
	assert.Equal(t, models.VendorRequestDelete, existing.PendingType)
	assert.Equal(t, deleteReq.ID, existing.RequestID)

	provisional := byName["Acme"]
	require.NotNil(t, provisional)
	assert.Zero(t, provisional.Vendor.ID, "a pending add has no committed row yet")
	assert.True(t, provisional.Pending)
	assert.Equal(t, models.VendorRequestAdd, provisional.PendingType)
	assert.Equal(t, addReq.ID, provisional.RequestID)
}
