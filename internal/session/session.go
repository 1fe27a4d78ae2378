// Package session tracks live transport sessions: creation, lookup, and
// idempotent removal under concurrent access.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the transport a session is bound to.
type Kind string

const (
	KindPipe       Kind = "pipe"
	KindSSE        Kind = "sse"
	KindStreamable Kind = "streamable-http"
)

// ErrClosed is returned by Push after a session has been closed.
var ErrClosed = errors.New("session closed")

// outboundBuffer is the per-session outbound message buffer. A slow reader
// stalls only its own session's Push callers, never other sessions.
const outboundBuffer = 32

// Session binds an opaque identifier to one live connection. The outbound
// channel is the connection handle; transports hold only the session id and
// look the session up per request, so a disconnect racing an in-flight
// request never dereferences freed transport state.
type Session struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time

	out  chan []byte
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newSession(kind Kind) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		CreatedAt: time.Now(),
		out:       make(chan []byte, outboundBuffer),
		done:      make(chan struct{}),
	}
}

// Push queues a message for delivery on the session's stream.
// Returns ErrClosed once the session has been torn down.
func (s *Session) Push(msg []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.out <- msg:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Messages returns the outbound message stream for the transport to drain.
func (s *Session) Messages() <-chan []byte {
	return s.out
}

// Done is closed exactly once when the session is torn down. All disconnect
// paths (client close, stream error, explicit termination) funnel through it.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close flips the closed flag and releases waiters. It reports whether this
// call performed the transition; subsequent calls are no-ops.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.done)
	return true
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
