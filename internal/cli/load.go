// Package cli wires the inference core (gguf -> model -> engine) behind a
// small cobra command tree, one file per command, a shared loader every command calls through, and
// environment documentation appended per command via envconfig.AsMap.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurgessTheGamer/Llamux/envconfig"
	"github.com/BurgessTheGamer/Llamux/internal/engine"
	"github.com/BurgessTheGamer/Llamux/internal/gguf"
	"github.com/BurgessTheGamer/Llamux/internal/model"
	"github.com/BurgessTheGamer/Llamux/internal/sampler"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

// scratchPerTokenMultiplier estimates how many bytes of graph scratch (q/k/v
// projections, attention intermediates, FFN intermediates, all in f32) one
// extra token's worth of computation needs, as a multiple of the model's
// embedding width. Forward never rewinds the arena between calls (only the
// KV cache position is reset per generation), so the arena must be sized for the whole session
// up front; 64 is a generous over-estimate rather than a tight bound.
const scratchPerTokenMultiplier = 64

// loadedEngine bundles the engine with the resources its lifetime depends
// on, so callers can defer a single Close.
type loadedEngine struct {
	*engine.Engine
	arena      *tensor.Arena
	fileCloser func() error
}

func (l *loadedEngine) Close() error {
	l.arena.Destroy()
	if l.fileCloser != nil {
		return l.fileCloser()
	}
	return nil
}

// loadEngine opens the gguf file at path, assembles a Model over it, and
// builds an Engine ready to Run. maxTokens bounds both the per-request
// generation ceiling and the arena's scratch sizing.
func loadEngine(path string, maxTokens int) (*loadedEngine, error) {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: envconfig.LogLevel()}))

	gf, data, closer, err := gguf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := gf.Validate(0); err != nil {
		closer()
		return nil, err
	}

	cmax := envconfig.ContextLength()
	if cmax <= 0 {
		cmax = int64(gf.KV.ContextLength())
	}
	if cmax <= 0 {
		cmax = 2048
	}

	weightsBudget := gf.DataByteBudget()
	weights := make([]byte, weightsBudget)
	if err := gf.LoadTensorData(data, weights); err != nil {
		closer()
		return nil, err
	}

	arenaSize := envconfig.ArenaBytes()
	if arenaSize <= 0 {
		embed := int64(gf.KV.EmbeddingLength())
		arenaSize = embed * int64(maxTokens+int(cmax)) * scratchPerTokenMultiplier
		if arenaSize < 64<<20 {
			arenaSize = 64 << 20
		}
	}
	arena := tensor.New(nil, int(arenaSize))

	m, err := model.Assemble(gf, arena, envconfig.AllowZeroFill())
	if err != nil {
		arena.Destroy()
		closer()
		return nil, err
	}

	cfg := engine.Config{
		ContextLength: cmax,
		MaxTokens:     maxTokens,
		Sampler: sampler.Params{
			Temperature: envconfig.Temperature(),
			TopK:        envconfig.TopK(),
			TopP:        envconfig.TopP(),
		},
	}

	e, err := engine.New(m, arena, cfg, log)
	if err != nil {
		arena.Destroy()
		closer()
		return nil, err
	}

	return &loadedEngine{Engine: e, arena: arena, fileCloser: closer}, nil
}
