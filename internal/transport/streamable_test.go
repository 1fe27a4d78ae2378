package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/session"
)

func newStreamable(registry *session.Registry) *StreamableHTTP {
	return NewStreamableHTTP(registry, newTestHandler(), common.NewSilentLogger())
}

func postFrame(t *testing.T, transport *StreamableHTTP, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)
	return rec
}

func TestStreamable_PostMintsSession(t *testing.T) {
	registry := session.NewRegistry()
	transport := newStreamable(registry)

	rec := postFrame(t, transport, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	sessionID := rec.Header().Get(SessionHeader)
	if sessionID == "" {
		t.Fatal("expected minted session id in response header")
	}
	if _, ok := registry.Lookup(sessionID); !ok {
		t.Error("minted session not registered")
	}

	resp := decodeResponse(t, rec.Body.Bytes())
	if resp.Error != nil {
		t.Errorf("unexpected error: %+v", resp.Error)
	}
}

func TestStreamable_PostResumesSession(t *testing.T) {
	registry := session.NewRegistry()
	transport := newStreamable(registry)

	sess := registry.Create(session.KindStreamable)

	rec := postFrame(t, transport, sess.ID, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"resumed"}}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(SessionHeader); got != "" && got != sess.ID {
		t.Errorf("resumed request must not mint a new session, got header %q", got)
	}
	if registry.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", registry.Len())
	}

	resp := decodeResponse(t, rec.Body.Bytes())
	if !strings.Contains(string(resp.Result), "resumed") {
		t.Errorf("expected echoed message, got %s", resp.Result)
	}
}

func TestStreamable_PostUnknownSession(t *testing.T) {
	transport := newStreamable(session.NewRegistry())

	rec := postFrame(t, transport, "no-such-session", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec.Body.Bytes())
	if resp.Error == nil || resp.Error.Code != codeSessionError {
		t.Errorf("expected code %d, got %+v", codeSessionError, resp.Error)
	}
}

func TestStreamable_PostInvalidJSON(t *testing.T) {
	transport := newStreamable(session.NewRegistry())

	rec := postFrame(t, transport, "", `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec.Body.Bytes())
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Errorf("expected code %d, got %+v", codeParseError, resp.Error)
	}
}

func TestStreamable_InvalidJSONDoesNotMintSession(t *testing.T) {
	registry := session.NewRegistry()
	transport := newStreamable(registry)

	for i := 0; i < 5; i++ {
		rec := postFrame(t, transport, "", `{garbage`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("post %d: expected 400, got %d", i, rec.Code)
		}
		if rec.Header().Get(SessionHeader) != "" {
			t.Errorf("post %d: unparseable frame must not mint a session", i)
		}
	}
	if registry.Len() != 0 {
		t.Errorf("expected no registered sessions for unparseable frames, got %d", registry.Len())
	}
}

func TestStreamable_PostNotification(t *testing.T) {
	transport := newStreamable(session.NewRegistry())

	rec := postFrame(t, transport, "", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for notification, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for notification, got %s", rec.Body.String())
	}
}

func TestStreamable_DeleteLifecycle(t *testing.T) {
	registry := session.NewRegistry()
	transport := newStreamable(registry)

	sess := registry.Create(session.KindStreamable)

	del := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
		if id != "" {
			req.Header.Set(SessionHeader, id)
		}
		rec := httptest.NewRecorder()
		transport.ServeHTTP(rec, req)
		return rec
	}

	if rec := del(sess.ID); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on first delete, got %d", rec.Code)
	}
	if _, ok := registry.Lookup(sess.ID); ok {
		t.Error("expected session gone after delete")
	}

	// repeat delete of the same id
	if rec := del(sess.ID); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on repeat delete, got %d", rec.Code)
	}

	if rec := del(""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing session header, got %d", rec.Code)
	}
}

func TestStreamable_GetDeliversBufferedMessagesOnClose(t *testing.T) {
	registry := session.NewRegistry()
	transport := newStreamable(registry)

	sess := registry.Create(session.KindStreamable)
	if err := sess.Push([]byte(`{"jsonrpc":"2.0","id":9,"result":{}}`)); err != nil {
		t.Fatal(err)
	}
	sess.Close()

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set(SessionHeader, sess.ID)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"id":9`) {
		t.Errorf("expected buffered message delivered before stream close, got %q", rec.Body.String())
	}
}

func TestStreamable_GetRequiresSession(t *testing.T) {
	transport := newStreamable(session.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	transport.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing header, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set(SessionHeader, "unknown")
	rec = httptest.NewRecorder()
	transport.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", rec.Code)
	}
}
