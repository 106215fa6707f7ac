package workflow

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerSubmit          Trigger = "submit"
	TriggerApprove         Trigger = "approve"
	TriggerReject          Trigger = "reject"
	TriggerFinanceApprove  Trigger = "finance_approve"
	TriggerRequestEvidence Trigger = "request_evidence"
	TriggerResubmit        Trigger = "resubmit"

	// Fired only by the payment batch engine, never by a user action.
	TriggerSettle           Trigger = "settle"
	TriggerRevertSettlement Trigger = "revert_settlement"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
