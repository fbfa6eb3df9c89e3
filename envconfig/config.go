// Package envconfig centralizes every environment variable this core reads,
// one getter per variable,
// each documenting its own name, default, and parsing rule, plus an
// EnvVar/AsMap pair the CLI uses to print them in --help.
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ContextLength returns the KV-cache capacity (in tokens) a freshly loaded
// model should be sized for, overriding whatever the gguf metadata declares.
// Configurable via LLAMUX_CONTEXT_LENGTH. 0 means "use the model's own
// context_length metadata".
func ContextLength() int64 {
	return int64(Uint("LLAMUX_CONTEXT_LENGTH", 0))
}

// MaxTokens returns the default per-request generation ceiling.
// Configurable via LLAMUX_MAX_TOKENS.
func MaxTokens() int {
	return int(Uint("LLAMUX_MAX_TOKENS", 256))
}

// Temperature returns the default sampling temperature. 0 selects greedy
// decoding regardless of TopK/TopP.
// Configurable via LLAMUX_TEMPERATURE.
func Temperature() float32 {
	return Float32("LLAMUX_TEMPERATURE", 0.8)
}

// TopK returns the default top-k truncation width. 0 disables top-k.
// Configurable via LLAMUX_TOP_K.
func TopK() int {
	return int(Uint("LLAMUX_TOP_K", 40))
}

// TopP returns the default nucleus-sampling mass. 0 disables top-p.
// Configurable via LLAMUX_TOP_P.
func TopP() float32 {
	return Float32("LLAMUX_TOP_P", 0.9)
}

// ArenaBytes returns the byte budget the engine allocates its tensor arena
// from. 0 means "derive the size from the loaded model's embedding width and
// the session's token budget", left to the caller to compute.
// Configurable via LLAMUX_ARENA_BYTES.
func ArenaBytes() int64 {
	return int64(Uint64("LLAMUX_ARENA_BYTES", 0))
}

// AllowZeroFill reports whether the model assembler may substitute
// zero-filled placeholders for per-layer tensors missing from a gguf file,
// a bring-up affordance left to the host to opt into explicitly. Default
// false: a missing tensor is a hard load error unless explicitly opted in.
// Configurable via LLAMUX_ALLOW_ZERO_FILL.
func AllowZeroFill() bool {
	return Bool("LLAMUX_ALLOW_ZERO_FILL")
}

// LogLevel returns the configured slog level. Configurable via LLAMUX_DEBUG
// ("1" or "true" for debug, anything else falls through to info).
func LogLevel() slog.Level {
	if s := Var("LLAMUX_DEBUG"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil && b {
			return slog.LevelDebug
		}
	}
	return slog.LevelInfo
}

// RequestTimeoutMillis returns how long the procfs prompt endpoint blocks waiting
// on a pending response before reporting a timeout.
// Configurable via LLAMUX_REQUEST_TIMEOUT_MS (milliseconds).
func RequestTimeoutMillis() int64 {
	return int64(Uint64("LLAMUX_REQUEST_TIMEOUT_MS", 5000))
}

// EnvVar describes one environment variable for documentation purposes,
// for display purposes only.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every variable this package reads, keyed by name, for the
// CLI to render as --help environment documentation.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"LLAMUX_CONTEXT_LENGTH":     {"LLAMUX_CONTEXT_LENGTH", ContextLength(), "Override the model's context_length (default: use model metadata)"},
		"LLAMUX_MAX_TOKENS":         {"LLAMUX_MAX_TOKENS", MaxTokens(), "Default maximum tokens generated per request"},
		"LLAMUX_TEMPERATURE":        {"LLAMUX_TEMPERATURE", Temperature(), "Default sampling temperature (0 = greedy)"},
		"LLAMUX_TOP_K":              {"LLAMUX_TOP_K", TopK(), "Default top-k truncation width (0 = disabled)"},
		"LLAMUX_TOP_P":              {"LLAMUX_TOP_P", TopP(), "Default nucleus sampling mass (0 = disabled)"},
		"LLAMUX_ARENA_BYTES":        {"LLAMUX_ARENA_BYTES", ArenaBytes(), "Tensor arena size in bytes (0 = derive from embedding width and token budget)"},
		"LLAMUX_ALLOW_ZERO_FILL":    {"LLAMUX_ALLOW_ZERO_FILL", AllowZeroFill(), "Allow missing per-layer tensors to be zero-filled at load"},
		"LLAMUX_DEBUG":              {"LLAMUX_DEBUG", LogLevel(), "Enable debug logging"},
		"LLAMUX_REQUEST_TIMEOUT_MS": {"LLAMUX_REQUEST_TIMEOUT_MS", RequestTimeoutMillis(), "Prompt endpoint blocking read timeout, in milliseconds"},
	}
}

// Var returns an environment variable's value, trimmed of surrounding
// whitespace and quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
