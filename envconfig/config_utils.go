package envconfig

import (
	"strconv"

	"log/slog"
)

// BoolWithDefault parses k as a boolean, falling back to defaultValue on
// absence or parse failure.
func BoolWithDefault(k string, defaultValue bool) bool {
	s := Var(k)
	if s == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		slog.Warn("invalid environment variable, using default", "key", k, "value", s, "default", defaultValue)
		return defaultValue
	}
	return b
}

// Bool parses k as a boolean defaulting to false.
func Bool(k string) bool {
	return BoolWithDefault(k, false)
}

// Uint parses key as an unsigned integer, falling back to defaultValue on
// absence or parse failure.
func Uint(key string, defaultValue uint) uint {
	s := Var(key)
	if s == "" {
		return defaultValue
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
		return defaultValue
	}
	return uint(n)
}

// Uint64 parses key as a uint64, falling back to defaultValue on absence or
// parse failure.
func Uint64(key string, defaultValue uint64) uint64 {
	s := Var(key)
	if s == "" {
		return defaultValue
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
		return defaultValue
	}
	return n
}

// Float32 parses a float-valued environment variable, falling back to
// defaultValue on absence or parse failure.
func Float32(key string, defaultValue float32) float32 {
	s := Var(key)
	if s == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
		return defaultValue
	}
	return float32(f)
}
