package workflow

// State represents a workflow state in the claim approval lifecycle
type State string

const (
	StateDraft           State = "draft"
	StatePendingApproval State = "pending_approval"
	StatePendingFinance  State = "pending_finance"
	StatePendingEvidence State = "pending_evidence"
	StateApproved        State = "approved"
	StateRejected        State = "rejected"
	StatePaid            State = "paid"
	StateCompleted       State = "completed"
	StateCancelled       State = "cancelled"
)

var validStates = map[State]bool{
	StateDraft:           true,
	StatePendingApproval: true,
	StatePendingFinance:  true,
	StatePendingEvidence: true,
	StateApproved:        true,
	StateRejected:        true,
	StatePaid:            true,
	StateCompleted:       true,
	StateCancelled:       true,
}

// Rejected is not terminal (resubmission) and paid is not terminal
// (settlement reversal); only completed and cancelled are dead ends.
var terminalStates = map[State]bool{
	StateCompleted: true,
	StateCancelled: true,
}

// IsTerminal returns true if the state permits no further transitions
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
