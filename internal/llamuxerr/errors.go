// Package llamuxerr defines the sentinel errors shared by every subsystem of
// the inference core, matching each error kind enumerated in the design's
// error-handling section. Callers use errors.Is against these values; wrapped
// errors carry additional context via fmt.Errorf("...: %w",...).
package llamuxerr

import "errors"

var (
	// ErrBadFormat covers magic mismatches, unsupported container versions,
	// and structurally invalid metadata or tensor-info records.
	ErrBadFormat = errors.New("llamux: bad model file format")

	// ErrTruncated indicates a declared byte range extends past end-of-buffer.
	ErrTruncated = errors.New("llamux: truncated model file")

	// ErrUnsupported indicates a dtype, metadata type, or architecture the
	// core does not implement.
	ErrUnsupported = errors.New("llamux: unsupported")

	// ErrOutOfMemory indicates the arena's slab (or a caller buffer) is
	// exhausted.
	ErrOutOfMemory = errors.New("llamux: out of memory")

	// ErrNodeLimit indicates the arena's object table capacity was reached
	// during graph construction.
	ErrNodeLimit = errors.New("llamux: arena node limit reached")

	// ErrShapeMismatch indicates an op's operand shapes violate its contract.
	ErrShapeMismatch = errors.New("llamux: tensor shape mismatch")

	// ErrContextOverflow indicates the KV cache cannot accommodate another
	// token at the current sequence length.
	ErrContextOverflow = errors.New("llamux: context window exceeded")

	// ErrBusy indicates the mailbox slot is already occupied.
	ErrBusy = errors.New("llamux: request slot busy")

	// ErrTimeout indicates Await exceeded its deadline before a response
	// became available.
	ErrTimeout = errors.New("llamux: await timed out")

	// ErrCancelled indicates a pending request was drained during shutdown.
	ErrCancelled = errors.New("llamux: request cancelled")
)
