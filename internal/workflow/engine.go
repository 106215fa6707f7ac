package workflow

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
	domainwf "github.com/cando-yeh/reimbursement-sub001/internal/domain/workflow"
	"github.com/cando-yeh/reimbursement-sub001/internal/models"
	"github.com/cando-yeh/reimbursement-sub001/internal/repository"
	"github.com/cando-yeh/reimbursement-sub001/pkg/database"
)

// Action is a user-requested claim transition. Settlement actions are not
// listed here; they belong to the payment batch engine.
type Action string

const (
	ActionSubmit          Action = "submit"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionFinanceApprove  Action = "finance_approve"
	ActionRequestEvidence Action = "request_evidence"
	ActionResubmit        Action = "resubmit"
)

var actionTriggers = map[Action]domainwf.Trigger{
	ActionSubmit:          domainwf.TriggerSubmit,
	ActionApprove:         domainwf.TriggerApprove,
	ActionReject:          domainwf.TriggerReject,
	ActionFinanceApprove:  domainwf.TriggerFinanceApprove,
	ActionRequestEvidence: domainwf.TriggerRequestEvidence,
	ActionResubmit:        domainwf.TriggerResubmit,
}

var historyLabels = map[Action]string{
	ActionSubmit:          "submitted",
	ActionApprove:         "approved",
	ActionReject:          "rejected",
	ActionFinanceApprove:  "finance approved",
	ActionRequestEvidence: "evidence requested",
	ActionResubmit:        "resubmitted",
}

// commentRequired lists actions that hand the claim back to the applicant
// and therefore must say why.
var commentRequired = map[Action]bool{
	ActionReject:          true,
	ActionRequestEvidence: true,
}

// ItemInput is one expense line of a claim payload
type ItemInput struct {
	ItemDate      time.Time `json:"item_date"`
	Amount        int64     `json:"amount"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	InvoiceNumber string    `json:"invoice_number"`
	ReceiptURL    string    `json:"receipt_url"`
	NoReceipt     bool      `json:"no_receipt"`
}

// ClaimInput is the payload for creating or editing a claim
type ClaimInput struct {
	Type            string      `json:"type"`
	Payee           string      `json:"payee"`
	PayeeID         *int64      `json:"payee_id"`
	Description     string      `json:"description"`
	Amount          int64       `json:"amount"`
	ClaimDate       time.Time   `json:"claim_date"`
	NoReceiptReason string      `json:"no_receipt_reason"`
	BankCode        string      `json:"bank_code"`
	BankAccount     string      `json:"bank_account"`
	Items           []ItemInput `json:"items"`
}

// Engine owns the claim lifecycle: it validates payloads, checks
// authorization, fires state-machine transitions, and keeps status and
// history in one transaction.
type Engine struct {
	db      *database.DB
	claims  *repository.ClaimRepository
	users   *repository.UserRepository
	vendors *repository.VendorRepository
	policy  *auth.Policy
	events  dispatcher.Dispatcher
	logger  *zap.Logger
}

// NewEngine creates a new claim workflow engine
func NewEngine(
	db *database.DB,
	claims *repository.ClaimRepository,
	users *repository.UserRepository,
	vendors *repository.VendorRepository,
	policy *auth.Policy,
	events dispatcher.Dispatcher,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:      db,
		claims:  claims,
		users:   users,
		vendors: vendors,
		policy:  policy,
		events:  events,
		logger:  logger,
	}
}

func buildClaim(applicantID int64, input ClaimInput) *models.Claim {
	claim := &models.Claim{
		Type:            input.Type,
		Payee:           input.Payee,
		PayeeID:         input.PayeeID,
		Description:     input.Description,
		Amount:          input.Amount,
		ClaimDate:       input.ClaimDate,
		ApplicantID:     applicantID,
		NoReceiptReason: input.NoReceiptReason,
		BankCode:        input.BankCode,
		BankAccount:     input.BankAccount,
	}
	for _, item := range input.Items {
		claim.Items = append(claim.Items, &models.ClaimItem{
			ItemDate:      item.ItemDate,
			Amount:        item.Amount,
			Description:   item.Description,
			Category:      item.Category,
			InvoiceNumber: item.InvoiceNumber,
			ReceiptURL:    item.ReceiptURL,
			NoReceipt:     item.NoReceipt,
		})
	}
	return claim
}

// vendorFor resolves the claim's vendor reference, nil when it has none.
func (e *Engine) vendorFor(claim *models.Claim) (*models.Vendor, error) {
	if claim.PayeeID == nil {
		return nil, nil
	}
	vendor, err := e.vendors.GetVendor(*claim.PayeeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: payee vendor %d does not exist", ErrValidationFailed, *claim.PayeeID)
	}
	return vendor, err
}

// SubmitClaim creates a claim and moves it straight into the approval chain.
// When draft is true the claim is saved without submitting and no history is
// written (draft creation is not a transition).
func (e *Engine) SubmitClaim(ctx context.Context, applicantID int64, input ClaimInput, draft bool) (*models.Claim, error) {
	applicant, err := e.users.GetByID(applicantID)
	if err != nil {
		return nil, err
	}

	claim := buildClaim(applicantID, input)

	if draft {
		claim.Status = models.StatusDraft
		err := e.db.WithTransaction(func(tx *sql.Tx) error {
			return e.claims.Create(tx, claim)
		})
		if err != nil {
			return nil, err
		}
		return e.claims.GetByID(claim.ID)
	}

	if applicant.ApproverID == nil {
		return nil, ErrMissingApprover
	}
	vendor, err := e.vendorFor(claim)
	if err != nil {
		return nil, err
	}
	if err := validateForSubmission(claim, vendor); err != nil {
		return nil, err
	}

	claim.Status = models.StatusPendingApproval
	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		if err := e.claims.Create(tx, claim); err != nil {
			return err
		}
		return e.claims.AppendHistory(tx, &models.ClaimHistory{
			ClaimID:   claim.ID,
			ActorID:   applicant.ID,
			ActorName: applicant.Name,
			Action:    historyLabels[ActionSubmit],
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Claim submitted",
		zap.Int64("claim_id", claim.ID),
		zap.Int64("applicant_id", applicantID),
		zap.Int64("amount", claim.Amount))
	e.events.DispatchAsync(ctx, event.New(event.TypeClaimChanged, claim.ID, map[string]interface{}{
		"action": string(ActionSubmit),
		"status": claim.Status,
	}))

	return e.claims.GetByID(claim.ID)
}

// UpdateClaim rewrites a claim's body. Only the applicant may edit, and only
// while the claim is in a pre-approval state.
func (e *Engine) UpdateClaim(ctx context.Context, claimID, actorID int64, input ClaimInput) (*models.Claim, error) {
	claim, err := e.claims.GetByID(claimID)
	if err != nil {
		return nil, err
	}
	if !claim.EditableBy(actorID) {
		return nil, fmt.Errorf("%w: claim %d is not editable by user %d", auth.ErrForbidden, claimID, actorID)
	}

	updated := buildClaim(claim.ApplicantID, input)
	updated.ID = claim.ID

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		return e.claims.UpdateBody(tx, updated)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: claim %d left its editable state", ErrConflictingTransition, claimID)
		}
		return nil, err
	}
	return e.claims.GetByID(claimID)
}

// Transition applies a user-requested action to a claim. Status change and
// history entry commit together or not at all.
func (e *Engine) Transition(ctx context.Context, claimID, actorID int64, action Action, comment string) (*models.Claim, error) {
	trigger, ok := actionTriggers[action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidationFailed, action)
	}

	claim, err := e.claims.GetByID(claimID)
	if err != nil {
		return nil, err
	}
	actor, err := e.users.GetByID(actorID)
	if err != nil {
		return nil, err
	}
	applicant, err := e.users.GetByID(claim.ApplicantID)
	if err != nil {
		return nil, err
	}

	// Legality first: an action that is not an edge from the current state
	// is InvalidTransition regardless of who asks.
	machine := domainwf.BuildClaimStateMachine(domainwf.State(claim.Status))
	next, err := machine.Peek(ctx, trigger)
	if err != nil {
		return nil, err
	}

	if err := e.authorize(claim, actor, applicant, action); err != nil {
		return nil, err
	}
	if commentRequired[action] && comment == "" {
		return nil, fmt.Errorf("%w: a comment is required for %s", ErrValidationFailed, action)
	}

	// Submission and resubmission are the claim's exits from
	// applicant-owned states; both re-run full validation.
	if action == ActionSubmit || action == ActionResubmit {
		if applicant.ApproverID == nil {
			return nil, ErrMissingApprover
		}
		vendor, err := e.vendorFor(claim)
		if err != nil {
			return nil, err
		}
		if err := validateForSubmission(claim, vendor); err != nil {
			return nil, err
		}
	}

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		if err := e.claims.UpdateStatus(tx, claim.ID, claim.Status, string(next)); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: claim %d", ErrConflictingTransition, claim.ID)
			}
			return err
		}
		return e.claims.AppendHistory(tx, &models.ClaimHistory{
			ClaimID:   claim.ID,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Action:    historyLabels[action],
			Comment:   comment,
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Claim transitioned",
		zap.Int64("claim_id", claim.ID),
		zap.String("from", claim.Status),
		zap.String("to", string(next)),
		zap.String("action", string(action)),
		zap.Int64("actor_id", actorID))
	e.events.DispatchAsync(ctx, event.New(event.TypeClaimChanged, claim.ID, map[string]interface{}{
		"action": string(action),
		"status": string(next),
	}))

	return e.claims.GetByID(claimID)
}

// authorize enforces who may fire each action. Approval is bound to the one
// user the applicant's approver_id names; finance-stage actions require the
// finance_audit permission.
func (e *Engine) authorize(claim *models.Claim, actor, applicant *models.User, action Action) error {
	switch action {
	case ActionSubmit, ActionResubmit:
		if actor.ID != claim.ApplicantID {
			return fmt.Errorf("%w: only the applicant may %s claim %d", auth.ErrForbidden, action, claim.ID)
		}
	case ActionApprove:
		if !e.policy.IsApproverOf(actor, applicant) {
			return fmt.Errorf("%w: user %d is not the designated approver of claim %d", auth.ErrForbidden, actor.ID, claim.ID)
		}
	case ActionReject:
		switch claim.Status {
		case models.StatusPendingApproval:
			if !e.policy.IsApproverOf(actor, applicant) {
				return fmt.Errorf("%w: user %d is not the designated approver of claim %d", auth.ErrForbidden, actor.ID, claim.ID)
			}
		default:
			if !e.policy.CanReviewFinance(actor) {
				return fmt.Errorf("%w: finance review requires the finance_audit permission", auth.ErrForbidden)
			}
		}
	case ActionFinanceApprove, ActionRequestEvidence:
		if !e.policy.CanReviewFinance(actor) {
			return fmt.Errorf("%w: finance review requires the finance_audit permission", auth.ErrForbidden)
		}
	}
	return nil
}

// DeleteDraft removes a claim that never left draft. Only the owning
// applicant may delete it.
func (e *Engine) DeleteDraft(ctx context.Context, claimID, actorID int64) error {
	claim, err := e.claims.GetByID(claimID)
	if err != nil {
		return err
	}
	if claim.ApplicantID != actorID {
		return fmt.Errorf("%w: claim %d belongs to another user", auth.ErrForbidden, claimID)
	}
	if claim.Status != models.StatusDraft {
		return fmt.Errorf("%w: claim %d is %s", ErrNotDraft, claimID, claim.Status)
	}

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		return e.claims.Delete(tx, claimID)
	})
	if err != nil {
		return err
	}

	e.events.DispatchAsync(ctx, event.New(event.TypeClaimDeleted, claimID, nil))
	return nil
}

// GetClaim retrieves a claim with items and history
func (e *Engine) GetClaim(ctx context.Context, claimID int64) (*models.Claim, error) {
	return e.claims.GetByID(claimID)
}

// ListClaims retrieves claims matching the filter
func (e *Engine) ListClaims(ctx context.Context, filter repository.ClaimFilter) ([]*models.Claim, error) {
	return e.claims.List(filter)
}
