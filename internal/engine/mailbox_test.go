package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

func TestSubmitRejectsWhenNotIdle(t *testing.T) {
	m := NewMailbox()
	_, err := m.Submit("hello")
	require.NoError(t, err)

	_, err = m.Submit("again")
	require.ErrorIs(t, err, llamuxerr.ErrBusy)
}

func TestAwaitTimesOutWithNoWorker(t *testing.T) {
	m := NewMailbox()
	id, err := m.Submit("hello")
	require.NoError(t, err)

	_, _, err = m.Await(context.Background(), id, 20*time.Millisecond)
	require.ErrorIs(t, err, llamuxerr.ErrTimeout)
}

func TestClaimCompleteAwaitRoundTrip(t *testing.T) {
	m := NewMailbox()
	id, err := m.Submit("hello")
	require.NoError(t, err)

	req, ok := m.claim(context.Background())
	require.True(t, ok)
	require.Equal(t, "hello", req.prompt)

	m.complete(req, "world", Stats{GeneratedTokens: 1}, nil)

	resp, stats, err := m.Await(context.Background(), id, time.Second)
	require.NoError(t, err)
	require.Equal(t, "world", resp)
	require.Equal(t, 1, stats.GeneratedTokens)
}

func TestClaimCancelledByContext(t *testing.T) {
	m := NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := m.claim(ctx)
	require.False(t, ok)
}

func TestDrainCancelsPendingRequest(t *testing.T) {
	m := NewMailbox()
	id, err := m.Submit("hello")
	require.NoError(t, err)

	m.drain()

	_, _, err = m.Await(context.Background(), id, time.Second)
	require.ErrorIs(t, err, llamuxerr.ErrCancelled)
}
