package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/auth"
	"github.com/cando-yeh/reimbursement-sub001/internal/dispatcher"
	"github.com/cando-yeh/reimbursement-sub001/internal/models"
	"github.com/cando-yeh/reimbursement-sub001/internal/payment"
	"github.com/cando-yeh/reimbursement-sub001/internal/repository"
	"github.com/cando-yeh/reimbursement-sub001/internal/users"
	"github.com/cando-yeh/reimbursement-sub001/internal/vendors"
	"github.com/cando-yeh/reimbursement-sub001/internal/voucher"
	"github.com/cando-yeh/reimbursement-sub001/internal/workflow"
	"github.com/cando-yeh/reimbursement-sub001/pkg/database"
)

type testServer struct {
	server    *Server
	applicant *models.User
	approver  *models.User
	finance   *models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.NewInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	claimRepo := repository.NewClaimRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	vendorRepo := repository.NewVendorRepository(db.DB, logger)
	paymentRepo := repository.NewPaymentRepository(db.DB, logger)
	policy := auth.NewPolicy()
	events := dispatcher.New(logger)

	vouchers, err := voucher.NewGenerator(voucher.Config{
		OutputDir:   t.TempDir(),
		CompanyName: "Example Co., Ltd.",
	}, logger)
	require.NoError(t, err)

	ts := &testServer{
		server: NewServer(ServerConfig{Host: "127.0.0.1", Port: 0},
			workflow.NewEngine(db, claimRepo, userRepo, vendorRepo, policy, events, logger),
			vendors.NewEngine(db, vendorRepo, userRepo, policy, events, logger),
			payment.NewEngine(db, claimRepo, paymentRepo, userRepo, policy, events, logger),
			users.NewService(userRepo, policy, logger),
			vouchers,
			logger),
	}

	ts.approver = &models.User{Name: "Morgan Manager", Email: "morgan@example.com", Permissions: []string{models.PermGeneral}}
	require.NoError(t, userRepo.Create(ts.approver))

	ts.applicant = &models.User{Name: "Alex Applicant", Email: "alex@example.com", Permissions: []string{models.PermGeneral}}
	require.NoError(t, userRepo.Create(ts.applicant))
	require.NoError(t, userRepo.SetApprover(ts.applicant.ID, ts.approver.ID))

	ts.finance = &models.User{Name: "Fin Reviewer", Email: "fin@example.com", Permissions: []string{models.PermGeneral, models.PermFinanceAudit, models.PermUserManagement}}
	require.NoError(t, userRepo.Create(ts.finance))

	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(rec, req)
	return rec
}

func claimPayload(applicantID int64, submit bool) map[string]interface{} {
	return map[string]interface{}{
		"applicant_id": applicantID,
		"submit":       submit,
		"type":         models.ClaimTypeEmployee,
		"payee":        "Alex Applicant",
		"description":  "conference travel",
		"amount":       1500,
		"claim_date":   time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		"items": []map[string]interface{}{
			{"item_date": time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), "amount": 1500, "description": "train", "category": "travel", "receipt_url": "https://files.example.com/r.pdf"},
		},
	}
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClaimEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/claims", claimPayload(ts.applicant.ID, true))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var claim models.Claim
	decodeData(t, rec, &claim)
	assert.Equal(t, models.StatusPendingApproval, claim.Status)

	t.Run("get", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/claims/%d", claim.ID), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("list with filter", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/claims?applicant=%d&status=%s", ts.applicant.ID, models.StatusPendingApproval), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var claims []models.Claim
		decodeData(t, rec, &claims)
		assert.Len(t, claims, 1)
	})

	t.Run("wrong approver gets 403", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/claims/%d/transition", claim.ID), map[string]interface{}{
			"actor_id": ts.finance.ID,
			"action":   "approve",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("approve then illegal repeat gets 409", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/claims/%d/transition", claim.ID), map[string]interface{}{
			"actor_id": ts.approver.ID,
			"action":   "approve",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/claims/%d/transition", claim.ID), map[string]interface{}{
			"actor_id": ts.approver.ID,
			"action":   "approve",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("reject without comment gets 400", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/claims/%d/transition", claim.ID), map[string]interface{}{
			"actor_id": ts.finance.ID,
			"action":   "reject",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing claim gets 404", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/claims/99999", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete submitted claim gets 409", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/claims/%d?actor_id=%d", claim.ID, ts.applicant.ID), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestVendorEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/vendor-requests", map[string]interface{}{
		"actor_id": ts.applicant.ID,
		"type":     "add",
		"data":     map[string]interface{}{"name": "Acme", "service_content": "supplies"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var req models.VendorRequest
	decodeData(t, rec, &req)

	t.Run("duplicate add gets 409", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/vendor-requests", map[string]interface{}{
			"actor_id": ts.applicant.ID,
			"type":     "add",
			"data":     map[string]interface{}{"name": "Acme"},
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("resolve by non-finance gets 403", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/vendor-requests/%d/resolve", req.ID), map[string]interface{}{
			"actor_id": ts.applicant.ID,
			"decision": "approved",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/vendor-requests/%d/resolve", req.ID), map[string]interface{}{
		"actor_id": ts.finance.ID,
		"decision": "approved",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("merged listing shows committed vendor", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/vendors", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var views []models.VendorView
		decodeData(t, rec, &views)
		require.Len(t, views, 1)
		assert.Equal(t, "Acme", views[0].Name)
		assert.False(t, views[0].Pending)
	})
}

func TestPaymentEndpoints(t *testing.T) {
	ts := newTestServer(t)

	// Drive a claim to approved through the API.
	rec := ts.do(t, http.MethodPost, "/api/v1/claims", claimPayload(ts.applicant.ID, true))
	require.Equal(t, http.StatusCreated, rec.Code)
	var claim models.Claim
	decodeData(t, rec, &claim)

	for _, step := range []struct {
		actor  int64
		action string
	}{
		{ts.approver.ID, "approve"},
		{ts.finance.ID, "finance_approve"},
	} {
		rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/claims/%d/transition", claim.ID), map[string]interface{}{
			"actor_id": step.actor,
			"action":   step.action,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/payments/prepare", map[string]interface{}{
		"claim_ids": []int64{claim.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/payments", map[string]interface{}{
		"actor_id":     ts.finance.ID,
		"claim_ids":    []int64{claim.ID},
		"payment_date": time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var settled models.Payment
	decodeData(t, rec, &settled)
	assert.Equal(t, int64(1500), settled.Amount)

	t.Run("voucher download", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/payments/%d/voucher", settled.ID), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotZero(t, rec.Body.Len())
	})

	t.Run("cancel and repeat", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/payments/%d?actor_id=%d", settled.ID, ts.finance.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/payments/%d?actor_id=%d", settled.ID, ts.finance.ID), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUserEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("create by non-admin gets 403", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/users", map[string]interface{}{
			"actor_id": ts.applicant.ID,
			"name":     "New Hire",
			"email":    "hire@example.com",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec := ts.do(t, http.MethodPost, "/api/v1/users", map[string]interface{}{
		"actor_id": ts.finance.ID,
		"name":     "New Hire",
		"email":    "hire@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.User
	decodeData(t, rec, &created)

	t.Run("invalid email gets 400", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/users", map[string]interface{}{
			"actor_id": ts.finance.ID,
			"name":     "Bad",
			"email":    "not-an-email",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("set approver", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, fmt.Sprintf("/api/v1/users/%d/approver", created.ID), map[string]interface{}{
			"actor_id":    ts.finance.ID,
			"approver_id": ts.approver.ID,
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("delete referenced approver gets 409", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d?actor_id=%d", ts.approver.ID, ts.finance.ID), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
