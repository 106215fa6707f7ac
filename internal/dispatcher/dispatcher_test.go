package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/domain/event"
)

func TestDispatchInvokesHandlersInOrder(t *testing.T) {
	d := New(zap.NewNop())
	var order []string

	d.SubscribeNamed(event.TypeClaimChanged, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.SubscribeNamed(event.TypeClaimChanged, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})

	err := d.Dispatch(context.Background(), event.New(event.TypeClaimChanged, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatchStopsAtFirstError(t *testing.T) {
	d := New(zap.NewNop())
	boom := errors.New("boom")
	var secondRan bool

	d.SubscribeNamed(event.TypeClaimChanged, "failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.SubscribeNamed(event.TypeClaimChanged, "after", func(ctx context.Context, evt *event.Event) error {
		secondRan = true
		return nil
	})

	err := d.Dispatch(context.Background(), event.New(event.TypeClaimChanged, 1, nil))
	require.ErrorIs(t, err, boom)
	assert.False(t, secondRan)
}

func TestDispatchRecoversPanic(t *testing.T) {
	d := New(zap.NewNop())
	d.Subscribe(event.TypePaymentSettled, func(ctx context.Context, evt *event.Event) error {
		panic("bad subscriber")
	})

	err := d.Dispatch(context.Background(), event.New(event.TypePaymentSettled, 1, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestDispatchAsyncWaitsOnClose(t *testing.T) {
	d := New(zap.NewNop())
	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Subscribe(event.TypePaymentCancelled, func(ctx context.Context, evt *event.Event) error {
		defer wg.Done()
		calls.Add(1)
		return nil
	})

	d.DispatchAsync(context.Background(), event.New(event.TypePaymentCancelled, 9, nil))
	wg.Wait()
	require.NoError(t, d.Close())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClosedDispatcherRejectsEvents(t *testing.T) {
	d := New(zap.NewNop())
	require.NoError(t, d.Close())

	err := d.Dispatch(context.Background(), event.New(event.TypeClaimChanged, 1, nil))
	assert.Error(t, err)
}
