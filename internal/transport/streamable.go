package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/session"
)

// SessionHeader carries the session id on the streamable HTTP transport.
const SessionHeader = "Mcp-Session-Id"

// StreamableHTTP serves the protocol over plain HTTP exchanges: POST sends
// one message (minting a session when no header is present), GET opens a
// subscribe-only event stream, DELETE terminates the session.
type StreamableHTTP struct {
	registry *session.Registry
	handler  *Handler
	logger   *common.Logger
}

// NewStreamableHTTP creates the streamable HTTP transport adapter.
func NewStreamableHTTP(registry *session.Registry, handler *Handler, logger *common.Logger) *StreamableHTTP {
	return &StreamableHTTP{
		registry: registry,
		handler:  handler,
		logger:   logger,
	}
}

// ServeHTTP implements http.Handler.
func (t *StreamableHTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		t.handlePost(w, r)
	case http.MethodGet:
		t.handleGet(w, r)
	case http.MethodDelete:
		t.handleDelete(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePost buffers the request body fully, resolves or mints the session,
// and answers with the response frame. A parse failure is a protocol-level
// error frame, never a handler crash.
func (t *StreamableHTTP) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, codeInvalidRequest, "failed to read request body")
		return
	}

	// reject unparseable frames before touching the registry; a garbage
	// POST must never mint a session
	if !json.Valid(body) {
		writeRPCError(w, http.StatusBadRequest, codeParseError, "parse error: invalid JSON")
		return
	}

	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		sess := t.registry.Create(session.KindStreamable)
		w.Header().Set(SessionHeader, sess.ID)
		t.logger.Info().Str("session_id", sess.ID).Msg("streamable http session created")
	} else if _, ok := t.registry.Lookup(sessionID); !ok {
		writeRPCError(w, http.StatusNotFound, codeSessionError, "session not found")
		return
	}

	resp := t.handler.Handle(r.Context(), body)
	if resp == nil {
		// notification: nothing to send back
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(resp)
}

// handleGet is the subscribe-only leg: a GET with a valid session header
// streams server-pushed messages until the client disconnects.
func (t *StreamableHTTP) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		writeRPCError(w, http.StatusBadRequest, codeSessionError, "missing session header")
		return
	}

	sess, ok := t.registry.Lookup(sessionID)
	if !ok {
		writeRPCError(w, http.StatusNotFound, codeSessionError, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			drainMessages(w, flusher, sess)
			return
		case msg := <-sess.Messages():
			writeSSEEvent(w, "message", string(msg))
			flusher.Flush()
		}
	}
}

// handleDelete terminates a session. Idempotent from the caller's view:
// a repeat DELETE reports not-found without crashing the handler.
func (t *StreamableHTTP) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		writeRPCError(w, http.StatusBadRequest, codeSessionError, "missing session header")
		return
	}

	if _, ok := t.registry.Lookup(sessionID); !ok {
		writeRPCError(w, http.StatusNotFound, codeSessionError, "session not found")
		return
	}

	t.registry.Remove(sessionID)
	t.logger.Info().Str("session_id", sessionID).Msg("streamable http session terminated")
	w.WriteHeader(http.StatusOK)
}

// writeRPCError writes a JSON-RPC-shaped error body with the given HTTP status.
func writeRPCError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(newError(nil, code, message))
	w.Write(body)
}
