package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BurgessTheGamer/Llamux/internal/sampler"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

func TestEngineSubmitAwaitRoundTrip(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	m := tinyModel(t, arena)

	e, err := New(m, arena, Config{
		ContextLength: 32,
		MaxTokens:     2,
		Sampler:       sampler.Params{Temperature: 0},
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	id, err := e.Submit("Hello")
	require.NoError(t, err)

	_, stats, err := e.Await(context.Background(), id, 2*time.Second)
	require.NoError(t, err)
	require.LessOrEqual(t, stats.GeneratedTokens, 2)
}

func TestEngineSubmitBusyWhilePending(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	m := tinyModel(t, arena)

	e, err := New(m, arena, Config{ContextLength: 32, MaxTokens: 1}, nil)
	require.NoError(t, err)

	_, err = e.Submit("Hello")
	require.NoError(t, err)

	_, err = e.Submit("World")
	require.Error(t, err)
}
