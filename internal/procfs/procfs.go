// Package procfs is the facade the "pseudo-filesystem control
// surface" describes: a host environment publishes status/stats/prompt
// text endpoints over whatever real transport it has (a character device,
// an HTTP handler, a stdin/stdout loop) backed by this package's
// request/response contract. Modeled on cmd/cmd_serve.go's own
// status-reporting style, generalized from "print to the terminal" to
// "return a string a collaborator writes wherever it likes".
package procfs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurgessTheGamer/Llamux/envconfig"
	"github.com/BurgessTheGamer/Llamux/internal/engine"
	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

// Status renders the multiline human-readable status report of the
// "status" endpoint: initialized flag, model name, hyperparameters, arena
// usage and capacity, inference-ready flag, and the active sampling
// parameters. The report carries no version line.
func Status(e *engine.Engine) string {
	var b strings.Builder
	hp := e.Model.Hyperparams
	fmt.Fprintf(&b, "llamux status\n")
	fmt.Fprintf(&b, " initialized: true\n")
	fmt.Fprintf(&b, " model: %s\n", hp.Name)
	fmt.Fprintf(&b, " vocab_size: %d\n", hp.VocabSize)
	fmt.Fprintf(&b, " context_length: %d\n", hp.ContextLength)
	fmt.Fprintf(&b, " embedding_length: %d\n", hp.EmbedDim)
	fmt.Fprintf(&b, " block_count: %d\n", hp.NumLayers)
	fmt.Fprintf(&b, " head_count: %d\n", hp.NumHeads)
	fmt.Fprintf(&b, " head_count_kv: %d\n", hp.NumKVHeads)
	fmt.Fprintf(&b, " arena_used_bytes: %d\n", e.State.Arena.Len())
	fmt.Fprintf(&b, " arena_capacity_bytes: %d\n", e.State.Arena.Cap())
	fmt.Fprintf(&b, " inference_ready: true\n")
	fmt.Fprintf(&b, " temperature: %v\n", e.Config.Sampler.Temperature)
	fmt.Fprintf(&b, " top_k: %d\n", e.Config.Sampler.TopK)
	fmt.Fprintf(&b, " top_p: %v\n", e.Config.Sampler.TopP)
	return b.String()
}

// StatsSnapshot is the cumulative counter set Stats renders, kept
// separately from a single generation's engine.Stats since the "stats"
// endpoint reports totals across every request the engine has served.
type StatsSnapshot struct {
	TotalRequests    int
	FailedRequests   int
	CumulativeTokens int
	CumulativeTimeMs int64
	PeakArenaBytes   int
}

// Record folds one generation's outcome into the running snapshot.
func (s *StatsSnapshot) Record(stats engine.Stats, arenaUsed int, err error) {
	s.TotalRequests++
	if err != nil {
		s.FailedRequests++
	}
	s.CumulativeTokens += stats.GeneratedTokens
	s.CumulativeTimeMs += stats.Duration.Milliseconds()
	if arenaUsed > s.PeakArenaBytes {
		s.PeakArenaBytes = arenaUsed
	}
}

// Render produces the multiline performance report the "stats"
// endpoint contract describes.
func (s *StatsSnapshot) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "llamux stats\n")
	fmt.Fprintf(&b, " cumulative_tokens: %d\n", s.CumulativeTokens)
	fmt.Fprintf(&b, " cumulative_inference_time_ms: %d\n", s.CumulativeTimeMs)
	tps := 0.0
	if s.CumulativeTimeMs > 0 {
		tps = float64(s.CumulativeTokens) / (float64(s.CumulativeTimeMs) / 1000.0)
	}
	fmt.Fprintf(&b, " tokens_per_sec: %.2f\n", tps)
	fmt.Fprintf(&b, " total_requests: %d\n", s.TotalRequests)
	fmt.Fprintf(&b, " failed_requests: %d\n", s.FailedRequests)
	fmt.Fprintf(&b, " peak_memory_bytes: %d\n", s.PeakArenaBytes)
	return b.String()
}

// awaitTimeout is the "blocks up to five seconds" figure the prompt
// endpoint contract fixes for a read racing a pending request.
const awaitTimeout = 5 * time.Second

// PromptEndpoint implements the read/write contract of the "prompt"
// endpoint over an *engine.Engine: Write submits (Busy if one is already
// pending), Read blocks up to five seconds for the response (or returns a
// timeout notice / idle placeholder).
type PromptEndpoint struct {
	e        *engine.Engine
	lastID   engine.RequestID
	lastSent bool
	lastResp string
	haveResp bool
}

// NewPromptEndpoint wraps e.
func NewPromptEndpoint(e *engine.Engine) *PromptEndpoint {
	return &PromptEndpoint{e: e}
}

// Write submits prompt (trailing newline stripped), per this.
func (p *PromptEndpoint) Write(prompt string) error {
	prompt = strings.TrimSuffix(prompt, "\n")
	id, err := p.e.Submit(prompt)
	if err != nil {
		return err
	}
	p.lastID = id
	p.lastSent = true
	return nil
}

// Read returns the last response, or a placeholder if idle, or a timeout
// notice after blocking up to timeout while a request is pending. A
// timeout <= 0 uses LLAMUX_REQUEST_TIMEOUT_MS, or five seconds if unset.
func (p *PromptEndpoint) Read(ctx context.Context, timeout time.Duration) (string, error) {
	if !p.lastSent {
		if p.haveResp {
			return p.lastResp, nil
		}
		return "(idle: no prompt submitted)", nil
	}
	if timeout <= 0 {
		timeout = awaitTimeout
		if ms := envconfig.RequestTimeoutMillis(); ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}
	resp, _, err := p.e.Await(ctx, p.lastID, timeout)
	if errors.Is(err, llamuxerr.ErrTimeout) {
		return "(timeout: request still pending)", err
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			p.lastSent, p.haveResp = false, false
		}
		return "", err
	}
	p.lastSent = false
	p.lastResp, p.haveResp = resp, true
	return resp, nil
}
