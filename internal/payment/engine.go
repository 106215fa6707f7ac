// Package payment owns settlement batching: grouping approved same-payee
// claims into a payment, marking them paid, and reversing the whole batch
// atomically on cancellation.
package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/auth"
	"github.com/cando-yeh/reimbursement-sub001/internal/dispatcher"
	"github.com/cando-yeh/reimbursement-sub001/internal/domain/event"
	"github.com/cando-yeh/reimbursement-sub001/internal/models"
	"github.com/cando-yeh/reimbursement-sub001/internal/repository"
	"github.com/cando-yeh/reimbursement-sub001/pkg/database"
)

var (
	// ErrEmptySelection is returned when a batch names no claims
	ErrEmptySelection = errors.New("no claims selected")

	// ErrMixedPayee is returned when the selected claims do not all share
	// one payee
	ErrMixedPayee = errors.New("claims have mixed payees")

	// ErrStaleClaimState is returned when a selected claim is not (or is no
	// longer) approved; the caller should re-fetch and reselect
	ErrStaleClaimState = errors.New("claim is not in approved state")

	// ErrNotFound is returned when the payment does not exist or was
	// already cancelled
	ErrNotFound = repository.ErrNotFound
)

const (
	historySettled  = "settled"
	historyReverted = "settlement reverted"
)

// BatchPreview is the result of batch validation: what the payment would
// look like, before anything is written.
type BatchPreview struct {
	Payee    string  `json:"payee"`
	Amount   int64   `json:"amount"`
	ClaimIDs []int64 `json:"claim_ids"`
}

// Engine is the payment batch engine
type Engine struct {
	db       *database.DB
	claims   *repository.ClaimRepository
	payments *repository.PaymentRepository
	users    *repository.UserRepository
	policy   *auth.Policy
	events   dispatcher.Dispatcher
	logger   *zap.Logger
}

// NewEngine creates a new payment batch engine
func NewEngine(
	db *database.DB,
	claims *repository.ClaimRepository,
	payments *repository.PaymentRepository,
	users *repository.UserRepository,
	policy *auth.Policy,
	events dispatcher.Dispatcher,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:       db,
		claims:   claims,
		payments: payments,
		users:    users,
		policy:   policy,
		events:   events,
		logger:   logger,
	}
}

// validateSelection checks the batch invariants over a loaded claim set.
func validateSelection(ids []int64, claims []*models.Claim) (*BatchPreview, error) {
	if len(claims) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d selected claims exist", ErrStaleClaimState, len(claims), len(ids))
	}

	preview := &BatchPreview{ClaimIDs: ids}
	for _, claim := range claims {
		if claim.Status != models.StatusApproved {
			return nil, fmt.Errorf("%w: claim %d is %s", ErrStaleClaimState, claim.ID, claim.Status)
		}
		if preview.Payee == "" {
			preview.Payee = claim.Payee
		} else if claim.Payee != preview.Payee {
			return nil, fmt.Errorf("%w: %q and %q", ErrMixedPayee, preview.Payee, claim.Payee)
		}
		preview.Amount += claim.Amount
	}
	return preview, nil
}

// PrepareBatch validates a claim selection without mutating anything.
func (e *Engine) PrepareBatch(ctx context.Context, claimIDs []int64) (*BatchPreview, error) {
	if len(claimIDs) == 0 {
		return nil, ErrEmptySelection
	}

	claims, err := e.claims.GetByIDs(nil, claimIDs)
	if err != nil {
		return nil, err
	}
	return validateSelection(claimIDs, claims)
}

// CommitBatch settles the selected claims as one payment. The payment row,
// its claim links, and every approved-to-paid flip commit in one
// transaction; a claim that changed state since selection aborts the whole
// batch.
func (e *Engine) CommitBatch(ctx context.Context, actorID int64, claimIDs []int64, paymentDate time.Time) (*models.Payment, error) {
	if len(claimIDs) == 0 {
		return nil, ErrEmptySelection
	}

	actor, err := e.users.GetByID(actorID)
	if err != nil {
		return nil, err
	}
	if !e.policy.CanBatchPayments(actor) {
		return nil, fmt.Errorf("%w: payment batching requires the finance_audit permission", auth.ErrForbidden)
	}

	var payment *models.Payment
	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		claims, err := e.claims.GetByIDs(tx, claimIDs)
		if err != nil {
			return err
		}
		preview, err := validateSelection(claimIDs, claims)
		if err != nil {
			return err
		}

		payment = &models.Payment{
			Payee:       preview.Payee,
			Amount:      preview.Amount,
			PaymentDate: paymentDate,
			ClaimIDs:    claimIDs,
		}
		if err := e.payments.Create(tx, payment); err != nil {
			return err
		}

		for _, claim := range claims {
			if err := e.claims.UpdateStatus(tx, claim.ID, models.StatusApproved, models.StatusPaid); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return fmt.Errorf("%w: claim %d", ErrStaleClaimState, claim.ID)
				}
				return err
			}
			if err := e.claims.AppendHistory(tx, &models.ClaimHistory{
				ClaimID:   claim.ID,
				ActorID:   actor.ID,
				ActorName: actor.Name,
				Action:    historySettled,
				Comment:   fmt.Sprintf("payment %d", payment.ID),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if database.IsBusy(err) {
			return nil, fmt.Errorf("%w: database busy", ErrStaleClaimState)
		}
		return nil, err
	}

	e.logger.Info("Payment batch committed",
		zap.Int64("payment_id", payment.ID),
		zap.String("payee", payment.Payee),
		zap.Int64("amount", payment.Amount),
		zap.Int("claims", len(claimIDs)))
	e.events.DispatchAsync(ctx, event.New(event.TypePaymentSettled, payment.ID, map[string]interface{}{
		"payee":  payment.Payee,
		"amount": payment.Amount,
	}))

	return e.payments.GetByID(payment.ID)
}

// CancelPayment reverses a settlement: every linked claim returns to
// approved and the payment row is removed, in one transaction. Cancelling a
// payment that does not exist (or was already cancelled) returns ErrNotFound.
func (e *Engine) CancelPayment(ctx context.Context, paymentID, actorID int64) error {
	actor, err := e.users.GetByID(actorID)
	if err != nil {
		return err
	}
	if !e.policy.CanBatchPayments(actor) {
		return fmt.Errorf("%w: payment cancellation requires the finance_audit permission", auth.ErrForbidden)
	}

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		claimIDs, err := e.payments.ClaimIDs(tx, paymentID)
		if err != nil {
			return err
		}

		// Delete first: its row guard makes a racing second cancellation
		// fail with ErrNotFound instead of double-reverting claims.
		if err := e.payments.Delete(tx, paymentID); err != nil {
			return err
		}

		for _, claimID := range claimIDs {
			if err := e.claims.UpdateStatus(tx, claimID, models.StatusPaid, models.StatusApproved); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return fmt.Errorf("%w: claim %d", ErrStaleClaimState, claimID)
				}
				return err
			}
			if err := e.claims.AppendHistory(tx, &models.ClaimHistory{
				ClaimID:   claimID,
				ActorID:   actor.ID,
				ActorName: actor.Name,
				Action:    historyReverted,
				Comment:   fmt.Sprintf("payment %d cancelled", paymentID),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if database.IsBusy(err) {
			return fmt.Errorf("%w: database busy", ErrStaleClaimState)
		}
		return err
	}

	e.logger.Info("Payment cancelled",
		zap.Int64("payment_id", paymentID),
		zap.Int64("actor_id", actorID))
	e.events.DispatchAsync(ctx, event.New(event.TypePaymentCancelled, paymentID, nil))
	return nil
}

// GetPayment retrieves a payment with its claim links
func (e *Engine) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	return e.payments.GetByID(id)
}

// ListPayments retrieves all payments
func (e *Engine) ListPayments(ctx context.Context) ([]*models.Payment, error) {
	return e.payments.List()
}
