package workflow

// BuildClaimStateMachine creates a state machine configured for the claim
// approval lifecycle, positioned at the given current state.
func BuildClaimStateMachine(current State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateDraft).
		Permit(TriggerSubmit, StatePendingApproval)

	builder.Configure(StatePendingApproval).
		Permit(TriggerApprove, StatePendingFinance).
		Permit(TriggerReject, StateRejected)

	builder.Configure(StatePendingFinance).
		Permit(TriggerFinanceApprove, StateApproved).
		Permit(TriggerRequestEvidence, StatePendingEvidence).
		Permit(TriggerReject, StateRejected)

	// Rejection and evidence requests hand the claim back to the applicant,
	// who edits and resubmits through the same approval chain.
	builder.Configure(StateRejected).
		Permit(TriggerResubmit, StatePendingApproval)

	builder.Configure(StatePendingEvidence).
		Permit(TriggerResubmit, StatePendingApproval)

	// Settlement edges belong to the payment batch engine.
	builder.Configure(StateApproved).
		Permit(TriggerSettle, StatePaid)

	builder.Configure(StatePaid).
		Permit(TriggerRevertSettlement, StateApproved)

	// COMPLETED and CANCELLED are terminal - no outgoing transitions

	return builder.Build(current)
}
