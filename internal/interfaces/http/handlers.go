package http

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/auth"
	"github.com/cando-yeh/reimbursement-sub001/internal/models"
	"github.com/cando-yeh/reimbursement-sub001/internal/payment"
	"github.com/cando-yeh/reimbursement-sub001/internal/repository"
	"github.com/cando-yeh/reimbursement-sub001/internal/users"
	"github.com/cando-yeh/reimbursement-sub001/internal/vendors"
	"github.com/cando-yeh/reimbursement-sub001/internal/voucher"
	"github.com/cando-yeh/reimbursement-sub001/internal/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	claims   *workflow.Engine
	vendors  *vendors.Engine
	payments *payment.Engine
	users    *users.Service
	vouchers *voucher.Generator
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	claims *workflow.Engine,
	vendorEngine *vendors.Engine,
	payments *payment.Engine,
	userService *users.Service,
	vouchers *voucher.Generator,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		claims:   claims,
		vendors:  vendorEngine,
		payments: payments,
		users:    userService,
		vouchers: vouchers,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail maps domain errors to status codes. Permission failures, missing
// rows, lost races, and malformed payloads each get their own class;
// everything else is a 500 with the detail kept out of the response.
func (h *Handlers) fail(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, auth.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrConflictingTransition),
		errors.Is(err, workflow.ErrNotDraft),
		errors.Is(err, payment.ErrStaleClaimState),
		errors.Is(err, payment.ErrMixedPayee),
		errors.Is(err, vendors.ErrDuplicatePendingRequest),
		errors.Is(err, vendors.ErrNotPending),
		errors.Is(err, repository.ErrReferenced),
		errors.Is(err, repository.ErrLastAdmin),
		errors.Is(err, repository.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrValidationFailed),
		errors.Is(err, workflow.ErrMissingApprover),
		errors.Is(err, vendors.ErrValidationFailed),
		errors.Is(err, users.ErrValidationFailed),
		errors.Is(err, payment.ErrEmptySelection):
		status = http.StatusBadRequest
	default:
		h.logger.Error("Unhandled request error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- Claims ---

// CreateClaimRequest is the payload for POST /api/v1/claims
type CreateClaimRequest struct {
	ApplicantID int64 `json:"applicant_id" binding:"required"`
	Submit      bool  `json:"submit"`
	workflow.ClaimInput
}

// CreateClaim handles POST /api/v1/claims
func (h *Handlers) CreateClaim(c *gin.Context) {
	var req CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	claim, err := h.claims.SubmitClaim(c.Request.Context(), req.ApplicantID, req.ClaimInput, !req.Submit)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, claim)
}

// ListClaims handles GET /api/v1/claims
func (h *Handlers) ListClaims(c *gin.Context) {
	filter := repository.ClaimFilter{
		Status: c.Query("status"),
		Payee:  c.Query("payee"),
		Type:   c.Query("type"),
	}
	if raw := c.Query("applicant"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid applicant id")
			return
		}
		filter.ApplicantID = &id
	}

	claims, err := h.claims.ListClaims(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, claims)
}

// GetClaim handles GET /api/v1/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	claim, err := h.claims.GetClaim(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// UpdateClaimRequest is the payload for PUT /api/v1/claims/:id
type UpdateClaimRequest struct {
	ActorID int64 `json:"actor_id" binding:"required"`
	workflow.ClaimInput
}

// UpdateClaim handles PUT /api/v1/claims/:id
func (h *Handlers) UpdateClaim(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req UpdateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	claim, err := h.claims.UpdateClaim(c.Request.Context(), id, req.ActorID, req.ClaimInput)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// TransitionClaimRequest is the payload for POST /api/v1/claims/:id/transition
type TransitionClaimRequest struct {
	ActorID int64  `json:"actor_id" binding:"required"`
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

// TransitionClaim handles POST /api/v1/claims/:id/transition
func (h *Handlers) TransitionClaim(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req TransitionClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	claim, err := h.claims.Transition(c.Request.Context(), id, req.ActorID, workflow.Action(req.Action), req.Comment)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, claim)
}

// DeleteClaim handles DELETE /api/v1/claims/:id?actor_id=
func (h *Handlers) DeleteClaim(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	actorID, err := strconv.ParseInt(c.Query("actor_id"), 10, 64)
	if err != nil {
		badRequest(c, "actor_id query parameter is required")
		return
	}

	if err := h.claims.DeleteDraft(c.Request.Context(), id, actorID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// --- Vendors ---

// ListVendors handles GET /api/v1/vendors: committed vendors merged with
// pending moderation requests
func (h *Handlers) ListVendors(c *gin.Context) {
	views, err := h.vendors.ListMerged(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, views)
}

// VendorRequestRequest is the payload for POST /api/v1/vendor-requests
type VendorRequestRequest struct {
	ActorID  int64              `json:"actor_id" binding:"required"`
	Type     string             `json:"type" binding:"required"`
	VendorID *int64             `json:"vendor_id"`
	Data     *models.VendorData `json:"data"`
}

// CreateVendorRequest handles POST /api/v1/vendor-requests
func (h *Handlers) CreateVendorRequest(c *gin.Context) {
	var req VendorRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	var (
		created *models.VendorRequest
		err     error
	)
	switch req.Type {
	case models.VendorRequestAdd:
		if req.Data == nil {
			badRequest(c, "data is required for an add request")
			return
		}
		created, err = h.vendors.ProposeAdd(ctx, req.ActorID, *req.Data)
	case models.VendorRequestUpdate:
		if req.VendorID == nil || req.Data == nil {
			badRequest(c, "vendor_id and data are required for an update request")
			return
		}
		created, err = h.vendors.ProposeUpdate(ctx, req.ActorID, *req.VendorID, *req.Data)
	case models.VendorRequestDelete:
		if req.VendorID == nil {
			badRequest(c, "vendor_id is required for a delete request")
			return
		}
		created, err = h.vendors.ProposeDelete(ctx, req.ActorID, *req.VendorID)
	default:
		badRequest(c, "type must be add, update, or delete")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, created)
}

// ListVendorRequests handles GET /api/v1/vendor-requests?status=
func (h *Handlers) ListVendorRequests(c *gin.Context) {
	requests, err := h.vendors.ListRequests(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, requests)
}

// ResolveVendorRequestRequest is the payload for
// POST /api/v1/vendor-requests/:id/resolve
type ResolveVendorRequestRequest struct {
	ActorID  int64  `json:"actor_id" binding:"required"`
	Decision string `json:"decision" binding:"required"`
}

// ResolveVendorRequest handles POST /api/v1/vendor-requests/:id/resolve
func (h *Handlers) ResolveVendorRequest(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req ResolveVendorRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	resolved, err := h.vendors.Resolve(c.Request.Context(), id, req.ActorID, req.Decision)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, resolved)
}

// --- Payments ---

// PrepareBatchRequest is the payload for POST /api/v1/payments/prepare
type PrepareBatchRequest struct {
	ClaimIDs []int64 `json:"claim_ids" binding:"required"`
}

// PrepareBatch handles POST /api/v1/payments/prepare
func (h *Handlers) PrepareBatch(c *gin.Context) {
	var req PrepareBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	preview, err := h.payments.PrepareBatch(c.Request.Context(), req.ClaimIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, preview)
}

// CommitBatchRequest is the payload for POST /api/v1/payments
type CommitBatchRequest struct {
	ActorID     int64     `json:"actor_id" binding:"required"`
	ClaimIDs    []int64   `json:"claim_ids" binding:"required"`
	PaymentDate time.Time `json:"payment_date" binding:"required"`
}

// CommitBatch handles POST /api/v1/payments
func (h *Handlers) CommitBatch(c *gin.Context) {
	var req CommitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	created, err := h.payments.CommitBatch(c.Request.Context(), req.ActorID, req.ClaimIDs, req.PaymentDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, created)
}

// ListPayments handles GET /api/v1/payments
func (h *Handlers) ListPayments(c *gin.Context) {
	payments, err := h.payments.ListPayments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, payments)
}

// DownloadVoucher handles GET /api/v1/payments/:id/voucher
func (h *Handlers) DownloadVoucher(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()

	settled, err := h.payments.GetPayment(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	claims := make([]*models.Claim, 0, len(settled.ClaimIDs))
	for _, claimID := range settled.ClaimIDs {
		claim, err := h.claims.GetClaim(ctx, claimID)
		if err != nil {
			h.fail(c, err)
			return
		}
		claims = append(claims, claim)
	}

	path, err := h.vouchers.Generate(settled, claims)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// CancelPayment handles DELETE /api/v1/payments/:id?actor_id=
func (h *Handlers) CancelPayment(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	actorID, err := strconv.ParseInt(c.Query("actor_id"), 10, 64)
	if err != nil {
		badRequest(c, "actor_id query parameter is required")
		return
	}

	if err := h.payments.CancelPayment(c.Request.Context(), id, actorID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// --- Users ---

// CreateUserRequest is the payload for POST /api/v1/users
type CreateUserRequest struct {
	ActorID int64  `json:"actor_id" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
}

// CreateUser handles POST /api/v1/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.ActorID, req.Name, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, user)
}

// ListUsers handles GET /api/v1/users
func (h *Handlers) ListUsers(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// SetApproverRequest is the payload for PUT /api/v1/users/:id/approver
type SetApproverRequest struct {
	ActorID    int64 `json:"actor_id" binding:"required"`
	ApproverID int64 `json:"approver_id" binding:"required"`
}

// SetApprover handles PUT /api/v1/users/:id/approver
func (h *Handlers) SetApprover(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req SetApproverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.users.SetApprover(c.Request.Context(), req.ActorID, id, req.ApproverID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// UpdatePermissionsRequest is the payload for PUT /api/v1/users/:id/permissions
type UpdatePermissionsRequest struct {
	ActorID     int64    `json:"actor_id" binding:"required"`
	Permissions []string `json:"permissions" binding:"required"`
}

// UpdatePermissions handles PUT /api/v1/users/:id/permissions
func (h *Handlers) UpdatePermissions(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req UpdatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.users.UpdatePermissions(c.Request.Context(), req.ActorID, id, req.Permissions); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// DeleteUser handles DELETE /api/v1/users/:id?actor_id=
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	actorID, err := strconv.ParseInt(c.Query("actor_id"), 10, 64)
	if err != nil {
		badRequest(c, "actor_id query parameter is required")
		return
	}

	if err := h.users.Delete(c.Request.Context(), actorID, id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}
