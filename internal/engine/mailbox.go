package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

// mailboxState is the Idle/Pending/Running machine this describes.
type mailboxState int

const (
	stateIdle mailboxState = iota
	statePending
	stateRunning
)

// pollInterval bounds how often Await and the worker's claim loop recheck
// the mailbox mutex while waiting — short enough that a 5s await deadline
// (the prompt endpoint contract) is observed promptly.
const pollInterval = 10 * time.Millisecond

// request is one producer's submitted prompt plus the response slot the
// worker fills in.
type request struct {
	id       uuid.UUID
	prompt   string
	response string
	stats    Stats
	err      error
	done     bool
}

// Mailbox is the single-slot producer/consumer handoff of this: at
// most one prompt is ever in flight. Submit is non-blocking and returns
// Busy if a request is already pending or running; Await blocks up to a
// caller-supplied timeout for the worker's response. A weight-1
// semaphore.Weighted guards the worker's single slot, mirroring
// runner/llamarunner/server.go's semaphore-bounded concurrency, narrowed
// from N parallel sequences down to exactly one; the state machine itself
// is a plain mutex-protected field, polled rather than signaled, since the
// only waiters are Await (bounded by its own timeout) and the worker's
// claim loop (bounded by context cancellation).
type Mailbox struct {
	mu    sync.Mutex
	state mailboxState
	req   *request
	slot  *semaphore.Weighted
}

// NewMailbox creates an idle mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{slot: semaphore.NewWeighted(1)}
}

// Submit is the producer operation: it returns ErrBusy if a request is
// already pending or running, otherwise installs prompt as the pending
// request and returns its id for a matching Await call.
func (m *Mailbox) Submit(prompt string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateIdle {
		return uuid.UUID{}, llamuxerr.ErrBusy
	}

	m.req = &request{id: uuid.New(), prompt: prompt}
	m.state = statePending
	return m.req.id, nil
}

// Await is the consumer operation: it blocks up to timeout for the
// request matching id to complete, returning its response or ErrTimeout.
func (m *Mailbox) Await(ctx context.Context, id uuid.UUID, timeout time.Duration) (string, Stats, error) {
	deadline := time.Now().Add(timeout)

	for {
		m.mu.Lock()
		if m.req != nil && m.req.id == id && m.req.done {
			resp, stats, err := m.req.response, m.req.stats, m.req.err
			m.req = nil
			m.state = stateIdle
			m.mu.Unlock()
			return resp, stats, err
		}
		m.mu.Unlock()

		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return "", Stats{}, err
			}
		}
		if time.Now().After(deadline) {
			return "", Stats{}, llamuxerr.ErrTimeout
		}
		time.Sleep(pollInterval)
	}
}

// claim lets the one worker goroutine take the pending request, blocking
// until one arrives or ctx is cancelled, and transitions Pending -> Running.
func (m *Mailbox) claim(ctx context.Context) (*request, bool) {
	if !m.slot.TryAcquire(1) {
		return nil, false
	}

	for {
		m.mu.Lock()
		if m.state == statePending {
			m.state = stateRunning
			req := m.req
			m.mu.Unlock()
			return req, true
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			m.slot.Release(1)
			return nil, false
		case <-time.After(pollInterval):
		}
	}
}

// complete records the worker's result; Await performs the actual state
// reset back to Idle once it observes req.done.
func (m *Mailbox) complete(req *request, response string, stats Stats, err error) {
	defer m.slot.Release(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	req.response = response
	req.stats = stats
	req.err = err
	req.done = true
}

// drain cancels any pending request with Cancelled, for shutdown.
func (m *Mailbox) drain() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.req != nil && !m.req.done {
		m.req.err = llamuxerr.ErrCancelled
		m.req.done = true
		m.state = stateIdle
	}
}
