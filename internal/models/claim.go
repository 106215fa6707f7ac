package models

import "time"

// Claim type constants
const (
	ClaimTypeEmployee = "employee" // employee expense reimbursement
	ClaimTypeVendor   = "vendor"   // vendor payment
	ClaimTypeService  = "service"  // personal-service payment
	ClaimTypePayment  = "payment"  // general payment request
)

// Claim status constants. Transitions between them are owned by the
// workflow engine; nothing else writes the status column.
const (
	StatusDraft           = "draft"
	StatusPendingApproval = "pending_approval"
	StatusPendingFinance  = "pending_finance"
	StatusPendingEvidence = "pending_evidence"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusPaid            = "paid"
	StatusCompleted       = "completed"
	StatusCancelled       = "cancelled"
)

// Claim represents a single reimbursement/payment request moving through
// the approval lifecycle. Amount is in the smallest currency unit.
type Claim struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Payee       string     `json:"payee"`
	PayeeID     *int64     `json:"payee_id,omitempty"` // vendor reference, if any
	Description string     `json:"description"`
	Amount      int64      `json:"amount"`
	ClaimDate   time.Time  `json:"claim_date"`
	Status      string     `json:"status"`
	ApplicantID int64      `json:"applicant_id"`

	// Reason recorded when employee items are filed without receipts.
	NoReceiptReason string `json:"no_receipt_reason,omitempty"`

	// Per-claim bank details, required when the vendor uses a floating account.
	BankCode    string `json:"bank_code,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`

	Items     []*ClaimItem    `json:"items,omitempty"`
	History   []*ClaimHistory `json:"history,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsMultiItem reports whether the claim type carries an item breakdown whose
// amounts must sum to the claim amount.
func (c *Claim) IsMultiItem() bool {
	return c.Type == ClaimTypeEmployee || c.Type == ClaimTypeVendor
}

// EditableBy reports whether the user may still edit the claim body. Claims
// are owned by their applicant for mutation only in pre-approval states.
func (c *Claim) EditableBy(userID int64) bool {
	if c.ApplicantID != userID {
		return false
	}
	switch c.Status {
	case StatusDraft, StatusRejected, StatusPendingEvidence:
		return true
	}
	return false
}

// ClaimItem represents a single expense line within a claim.
type ClaimItem struct {
	ID            int64     `json:"id"`
	ClaimID       int64     `json:"claim_id"`
	ItemDate      time.Time `json:"item_date"`
	Amount        int64     `json:"amount"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	ReceiptURL    string    `json:"receipt_url,omitempty"` // object-storage URL
	NoReceipt     bool      `json:"no_receipt"`
	CreatedAt     time.Time `json:"created_at"`
}

// ClaimHistory is one append-only audit entry, written in the same
// transaction as the status change it records.
type ClaimHistory struct {
	ID        int64     `json:"id"`
	ClaimID   int64     `json:"claim_id"`
	ActorID   int64     `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	Action    string    `json:"action"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
