// Package quant implements the on-disk quantization codec: FP16<->FP32
// conversion and K-quant block dequantization (spec component C). A naive
// reinterpret-cast of the 16-bit word was the root cause of incoherent
// output in the project's earlier kernel-module prototype (see
// original_source/.../quantize.c) — this package exists to get that
// arithmetic right once, in one place.
package quant

import "github.com/x448/float16"

// HalfToFloat32 converts an IEEE-754 binary16 value to float32, handling
// zero, subnormal, normal, and infinity/NaN inputs per this.
func HalfToFloat32(h uint16) float32 {
	return float16.Frombits(h).Float32
}

// Float32ToHalf converts a float32 to its nearest IEEE-754 binary16
// representation, used by the (optional) write path and by tests that need
// to construct synthetic blocks.
func Float32ToHalf(f float32) uint16 {
	return float16.Fromfloat32(f).Bits
}
