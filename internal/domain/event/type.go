package event

// Type identifies the type of domain event
type Type string

const (
	TypeClaimChanged          Type = "claim.changed"
	TypeClaimDeleted          Type = "claim.deleted"
	TypeVendorRequestCreated  Type = "vendor_request.created"
	TypeVendorRequestResolved Type = "vendor_request.resolved"
	TypePaymentSettled        Type = "payment.settled"
	TypePaymentCancelled      Type = "payment.cancelled"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeClaimChanged,
		TypeClaimDeleted,
		TypeVendorRequestCreated,
		TypeVendorRequestResolved,
		TypePaymentSettled,
		TypePaymentCancelled:
		return true
	default:
		return false
	}
}
