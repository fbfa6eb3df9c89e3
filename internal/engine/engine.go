package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BurgessTheGamer/Llamux/internal/model"
	"github.com/BurgessTheGamer/Llamux/internal/sampler"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

// Config bundles the engine's load-time and generation-time knobs, threaded
// in from the CLI/envconfig rather than hidden behind a silent default —
// the design note on the assembler's missing-weight behavior applies
// here too.
type Config struct {
	ContextLength int64
	MaxTokens     int
	Sampler       sampler.Params
}

// Engine owns the bound model, its single generation State, and the
// mailbox producers submit prompts through. Exactly one worker goroutine
// ever calls State.Generate, per the "exactly one worker thread
// performs inference".
type Engine struct {
	Model   *model.Model
	State   *State
	Mailbox *Mailbox
	Config  Config
	log     *slog.Logger
}

// New builds an Engine around an already-assembled model and arena.
func New(m *model.Model, arena *tensor.Arena, cfg Config, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	state, err := NewState(m, arena, cfg.ContextLength, nil)
	if err != nil {
		return nil, err
	}
	state.Sampler = cfg.Sampler

	return &Engine{
		Model:   m,
		State:   state,
		Mailbox: NewMailbox(),
		Config:  cfg,
		log:     log,
	}, nil
}

// Run is the worker loop: claim the pending request, generate, complete,
// repeat, until ctx is cancelled — at which point any pending request is
// drained with Cancelled, per the shutdown contract.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info("engine worker started")
	defer e.log.Info("engine worker stopped")

	for {
		req, ok := e.Mailbox.claim(ctx)
		if !ok {
			e.Mailbox.drain()
			return
		}

		start := time.Now()
		response, stats, err := e.State.Generate(ctx, req.prompt, e.Config.MaxTokens)
		if err != nil {
			e.log.Warn("generation failed", "request", req.id, "err", err)
		}
		stats.Duration = time.Since(start)
		e.Mailbox.complete(req, response, stats, err)
	}
}

// Submit and Await are thin pass-throughs onto the engine's mailbox, kept
// here so callers (the CLI, internal/procfs) depend on *Engine alone.
func (e *Engine) Submit(prompt string) (RequestID, error) {
	id, err := e.Mailbox.Submit(prompt)
	return RequestID(id.String()), err
}

// RequestID is an opaque handle returned by Submit and consumed by Await.
type RequestID string

func (e *Engine) Await(ctx context.Context, id RequestID, timeout time.Duration) (string, Stats, error) {
	parsed, err := uuid.Parse(string(id))
	if err != nil {
		return "", Stats{}, err
	}
	return e.Mailbox.Await(ctx, parsed, timeout)
}
