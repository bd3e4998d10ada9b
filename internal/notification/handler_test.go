package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jamespham03/cmpe273-comm-models-lab/internal/event"
)

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, _, _, _ string, _ int) error {
	f.calls++
	return f.err
}

func TestHandleNotifiesOnReserved(t *testing.T) {
	n := &fakeNotifier{}
	h := NewHandler(n, zerolog.Nop())

	outs, err := h.Handle(context.Background(), event.NewInventoryReserved("o1", "u1", "burger", 5, 95))
	require.NoError(t, err)
	require.Empty(t, outs, "notification derives no further events")
	require.Equal(t, 1, n.calls)
}

func TestHandleSkipsNonReservedEvents(t *testing.T) {
	n := &fakeNotifier{}
	h := NewHandler(n, zerolog.Nop())

	outs, err := h.Handle(context.Background(), event.NewInventoryFailed("o1", "u1", "pizza", 1000, "insufficient stock"))
	require.NoError(t, err)
	require.Empty(t, outs)
	require.Zero(t, n.calls)
}

func TestHandlePropagatesProviderFailure(t *testing.T) {
	providerErr := errors.New("smtp down")
	n := &fakeNotifier{err: providerErr}
	h := NewHandler(n, zerolog.Nop())

	_, err := h.Handle(context.Background(), event.NewInventoryReserved("o1", "u1", "burger", 5, 95))
	require.ErrorIs(t, err, providerErr, "a provider failure must reach the runtime's retry decision")
}

func TestLogNotifierCountsSent(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	require.NoError(t, n.Notify(context.Background(), "u1", "o1", "burger", 5))
	require.NoError(t, n.Notify(context.Background(), "u1", "o2", "pizza", 1))
	require.Equal(t, int64(2), n.Sent())
}
