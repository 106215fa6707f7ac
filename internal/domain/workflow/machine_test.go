package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimMachineLegalEdges(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		trigger Trigger
		want    State
	}{
		{"submit draft", StateDraft, TriggerSubmit, StatePendingApproval},
		{"approver approves", StatePendingApproval, TriggerApprove, StatePendingFinance},
		{"approver rejects", StatePendingApproval, TriggerReject, StateRejected},
		{"finance approves", StatePendingFinance, TriggerFinanceApprove, StateApproved},
		{"finance requests evidence", StatePendingFinance, TriggerRequestEvidence, StatePendingEvidence},
		{"finance rejects", StatePendingFinance, TriggerReject, StateRejected},
		{"resubmit after rejection", StateRejected, TriggerResubmit, StatePendingApproval},
		{"resubmit after evidence request", StatePendingEvidence, TriggerResubmit, StatePendingApproval},
		{"settle", StateApproved, TriggerSettle, StatePaid},
		{"revert settlement", StatePaid, TriggerRevertSettlement, StateApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildClaimStateMachine(tt.from)
			require.NoError(t, m.Fire(context.Background(), tt.trigger))
			assert.Equal(t, tt.want, m.State())
		})
	}
}

func TestClaimMachineIllegalEdges(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		trigger Trigger
	}{
		{"cannot approve a draft", StateDraft, TriggerApprove},
		{"cannot submit twice", StatePendingApproval, TriggerSubmit},
		{"cannot finance-approve before manager approval", StatePendingApproval, TriggerFinanceApprove},
		{"cannot settle before finance approval", StatePendingFinance, TriggerSettle},
		{"cannot reject an approved claim", StateApproved, TriggerReject},
		{"no user action out of paid", StatePaid, TriggerApprove},
		{"cannot settle a paid claim again", StatePaid, TriggerSettle},
		{"completed is terminal", StateCompleted, TriggerResubmit},
		{"cancelled is terminal", StateCancelled, TriggerSubmit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildClaimStateMachine(tt.from)
			err := m.Fire(context.Background(), tt.trigger)
			require.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.from, m.State(), "state must be unchanged after a rejected transition")
		})
	}
}

func TestPeekDoesNotMutate(t *testing.T) {
	m := BuildClaimStateMachine(StateDraft)

	next, err := m.Peek(context.Background(), TriggerSubmit)
	require.NoError(t, err)
	assert.Equal(t, StatePendingApproval, next)
	assert.Equal(t, StateDraft, m.State())
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateCancelled.IsTerminal())
	assert.False(t, StateRejected.IsTerminal(), "rejected claims can be resubmitted")
	assert.False(t, StatePaid.IsTerminal(), "paid claims can be reverted by payment cancellation")
}

func TestGuardedTransition(t *testing.T) {
	type key string
	builder := NewBuilder()
	builder.Configure(StateDraft).
		PermitIf(TriggerSubmit, StatePendingApproval, func(ctx context.Context) bool {
			ok, _ := ctx.Value(key("has-approver")).(bool)
			return ok
		})
	m := builder.Build(StateDraft)

	err := m.Fire(context.Background(), TriggerSubmit)
	require.ErrorIs(t, err, ErrGuardFailed)
	assert.Equal(t, StateDraft, m.State())

	ctx := context.WithValue(context.Background(), key("has-approver"), true)
	require.NoError(t, m.Fire(ctx, TriggerSubmit))
	assert.Equal(t, StatePendingApproval, m.State())
}
