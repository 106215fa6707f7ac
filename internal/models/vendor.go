package models

import "time"

// Vendor status constants
const (
	VendorActive   = "active"
	VendorInactive = "inactive"
)

// VendorRequest type constants
const (
	VendorRequestAdd    = "add"
	VendorRequestUpdate = "update"
	VendorRequestDelete = "delete"
)

// VendorRequest status constants
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// Vendor is a payee master-data record. Vendors are only ever created,
// mutated, or deactivated through an approved VendorRequest; deletion is a
// soft status flip so historical claims keep a valid reference.
type Vendor struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	ServiceContent string    `json:"service_content"`
	BankCode       string    `json:"bank_code"`
	BankAccount    string    `json:"bank_account"`
	// When true, bank details are supplied per-claim instead of fixed here.
	IsFloatingAccount bool      `json:"is_floating_account"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// VendorData is the proposed payload of a vendor request, and the snapshot
// shape stored in OriginalData for update/delete requests.
type VendorData struct {
	Name              string `json:"name"`
	ServiceContent    string `json:"service_content"`
	BankCode          string `json:"bank_code"`
	BankAccount       string `json:"bank_account"`
	IsFloatingAccount bool   `json:"is_floating_account"`
}

// VendorRequest is a proposed add/update/delete awaiting finance resolution.
// At most one pending request may exist per vendor at a time. Resolved
// requests are immutable and retained for audit.
type VendorRequest struct {
	ID            int64       `json:"id"`
	Type          string      `json:"type"`
	Status        string      `json:"status"`
	VendorID      *int64      `json:"vendor_id,omitempty"` // absent for add
	Data          *VendorData `json:"data,omitempty"`
	OriginalData  *VendorData `json:"original_data,omitempty"` // snapshot at request time
	ApplicantID   int64       `json:"applicant_id"`
	ApplicantName string      `json:"applicant_name"`
	ResolverID    *int64      `json:"resolver_id,omitempty"`
	ResolvedAt    *time.Time  `json:"resolved_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// VendorView is the read-time merge projection of committed vendors and
// pending moderation requests. Provisional entries (pending adds) have a
// zero ID and Pending set.
type VendorView struct {
	Vendor
	Pending     bool   `json:"pending"`
	PendingType string `json:"pending_type,omitempty"`
	RequestID   int64  `json:"request_id,omitempty"`
}
