package transport

import (
	"fmt"
	"io"
	"net/http"

	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/session"
)

// SSE serves the protocol over two HTTP legs: a long-lived GET that
// establishes a session and streams responses as server-sent events, and
// POSTs carrying one request each, addressed by sessionId query parameter.
type SSE struct {
	registry *session.Registry
	handler  *Handler
	endpoint string // path clients POST messages to, advertised on connect
	logger   *common.Logger
}

// NewSSE creates the SSE transport adapter.
func NewSSE(registry *session.Registry, handler *Handler, endpoint string, logger *common.Logger) *SSE {
	return &SSE{
		registry: registry,
		handler:  handler,
		endpoint: endpoint,
		logger:   logger,
	}
}

// ServeHTTP implements http.Handler.
func (t *SSE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		t.handleStream(w, r)
	case http.MethodPost:
		t.handleMessage(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStream establishes a session and keeps the event stream open until
// the client disconnects. Whichever of client close, stream error, or
// explicit removal fires first tears the session down exactly once; the
// registry's idempotent Remove absorbs the rest.
func (t *SSE) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := t.registry.Create(session.KindSSE)
	defer t.registry.Remove(sess.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Announce the endpoint the client should POST subsequent requests to.
	writeSSEEvent(w, "endpoint", fmt.Sprintf("%s?sessionId=%s", t.endpoint, sess.ID))
	flusher.Flush()

	t.logger.Info().Str("session_id", sess.ID).Msg("sse session established")

	for {
		select {
		case <-r.Context().Done():
			t.logger.Debug().Str("session_id", sess.ID).Msg("sse client disconnected")
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

// drainMessages flushes responses still buffered when a session is torn
// down, so a reply racing the teardown is not dropped.
func drainMessages(w io.Writer, flusher http.Flusher, sess *session.Session) {
	for {
		select {
		case msg := <-sess.Messages():
			writeSSEEvent(w, "message", string(msg))
			flusher.Flush()
		default:
			return
		}
	}
}

// handleMessage accepts one request frame for an existing session. A POST
// must never implicitly create a session.
func (t *SSE) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "No active transport", http.StatusBadRequest)
		return
	}

	sess, ok := t.registry.Lookup(sessionID)
	if !ok {
		http.Error(w, "No active transport", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	resp := t.handler.Handle(r.Context(), body)
	if resp != nil {
		if err := sess.Push(resp); err != nil {
			http.Error(w, "No active transport", http.StatusBadRequest)
			return
		}
	}

	w.WriteHeader(http.StatusAccepted)
}

func writeSSEEvent(w io.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
