package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BurgessTheGamer/Llamux/internal/sampler"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

func TestGenerateStopsAtMaxTokens(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	m := tinyModel(t, arena)
	s, err := NewState(m, arena, 32, nil)
	require.NoError(t, err)
	s.Sampler = sampler.Params{Temperature: 0}

	text, stats, err := s.Generate(context.Background(), "Hello", 4)
	require.NoError(t, err)
	require.LessOrEqual(t, stats.GeneratedTokens, 4)
	require.GreaterOrEqual(t, stats.PromptTokens, 1)
	_ = text
}

func TestGenerateRejectsMaxTokensBeyondContext(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	m := tinyModel(t, arena)
	s, err := NewState(m, arena, 2, nil)
	require.NoError(t, err)

	_, stats, err := s.Generate(context.Background(), "Hello", 100)
	require.Error(t, err)
	require.True(t, stats.ContextOverflow)
}

func TestGenerateResetsCacheBetweenCalls(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	m := tinyModel(t, arena)
	s, err := NewState(m, arena, 32, nil)
	require.NoError(t, err)
	s.Sampler = sampler.Params{Temperature: 0}

	_, _, err = s.Generate(context.Background(), "Hello", 2)
	require.NoError(t, err)
	firstNPast := s.Cache.NPast

	_, _, err = s.Generate(context.Background(), "Hi", 2)
	require.NoError(t, err)
	require.LessOrEqual(t, s.Cache.NPast, firstNPast+3)
}

func TestTokensPerSecondZeroDuration(t *testing.T) {
	var st Stats
	require.Equal(t, float64(0), st.TokensPerSecond())
}
