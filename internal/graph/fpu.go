package graph

// fpuGuard stands in for the scoped FPU-register acquisition this
// calls for: on hosts where floating-point kernels must bracket their hot
// loop in an explicit acquire/release pair (the original kernel-module
// prototype's kernel_fpu_begin/kernel_fpu_end), this type gives every
// kernel one unconditionally-released acquisition and forbids nesting by
// construction. The Go runtime has no equivalent real cost — goroutines
// always own the FPU state they're scheduled with — so begin/end here are a
// no-op pair, kept for parity with the design's resource model rather than
// because this host needs it.
type fpuGuard struct{ held bool }

// begin acquires the guard, panicking if it is already held (nested
// acquisition is a programming error, not a runtime condition to recover
// from).
func (g *fpuGuard) begin() {
	if g.held {
		panic("graph: nested fpu acquisition")
	}
	g.held = true
}

// end releases the guard. Kernels call it via defer so every exit path —
// including early returns on shape errors — releases exactly once.
func (g *fpuGuard) end() {
	g.held = false
}

// withFPU runs fn with the guard held for its duration.
func withFPU(fn func()) {
	var g fpuGuard
	g.begin()
	defer g.end()
	fn()
}
