package transport

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/session"
)

// readSSEEvent reads one "event:"/"data:" pair from the stream.
func readSSEEvent(t *testing.T, reader *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read event stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
}

func TestSSE_EndToEnd(t *testing.T) {
	registry := session.NewRegistry()
	transport := NewSSE(registry, newTestHandler(), "/mcp", common.NewSilentLogger())
	srv := httptest.NewServer(transport)
	defer srv.Close()
	defer registry.CloseAll()

	stream, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer stream.Body.Close()

	if ct := stream.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	reader := bufio.NewReader(stream.Body)
	event, data := readSSEEvent(t, reader)
	if event != "endpoint" {
		t.Fatalf("expected endpoint event first, got %q", event)
	}
	if !strings.HasPrefix(data, "/mcp?sessionId=") {
		t.Fatalf("unexpected endpoint advertisement: %q", data)
	}
	sessionID := strings.TrimPrefix(data, "/mcp?sessionId=")

	if _, ok := registry.Lookup(sessionID); !ok {
		t.Fatal("advertised session id not present in registry")
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"message":"over sse"}}}`
	post, err := http.Post(srv.URL+"?sessionId="+sessionID, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to post message: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 Accepted, got %d", post.StatusCode)
	}

	event, data = readSSEEvent(t, reader)
	if event != "message" {
		t.Fatalf("expected message event, got %q", event)
	}
	resp := decodeResponse(t, []byte(data))
	if resp.Error != nil {
		t.Fatalf("unexpected error on stream: %+v", resp.Error)
	}
	if !strings.Contains(string(resp.Result), "over sse") {
		t.Errorf("expected echoed message in streamed result, got %s", resp.Result)
	}
}

func TestSSE_PostUnknownSession(t *testing.T) {
	registry := session.NewRegistry()
	transport := NewSSE(registry, newTestHandler(), "/mcp", common.NewSilentLogger())
	srv := httptest.NewServer(transport)
	defer srv.Close()

	for _, target := range []string{srv.URL, srv.URL + "?sessionId=nope"} {
		resp, err := http.Post(target, "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, resp.StatusCode)
		}
		buf := make([]byte, 64)
		n, _ := resp.Body.Read(buf)
		resp.Body.Close()
		if got := strings.TrimSpace(string(buf[:n])); got != "No active transport" {
			t.Errorf("%s: expected body %q, got %q", target, "No active transport", got)
		}
	}
}

func TestSSE_StreamClosesOnSessionRemove(t *testing.T) {
	registry := session.NewRegistry()
	transport := NewSSE(registry, newTestHandler(), "/mcp", common.NewSilentLogger())
	srv := httptest.NewServer(transport)
	defer srv.Close()

	stream, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()

	reader := bufio.NewReader(stream.Body)
	_, data := readSSEEvent(t, reader)
	sessionID := strings.TrimPrefix(data, "/mcp?sessionId=")

	done := make(chan struct{})
	go func() {
		// the server closes the response body once the handler returns
		reader.ReadString('\n')
		close(done)
	}()

	registry.CloseAll()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream for session %s did not close after registry shutdown", sessionID)
	}
}

func TestSSE_ClientDisconnectRemovesSession(t *testing.T) {
	registry := session.NewRegistry()
	transport := NewSSE(registry, newTestHandler(), "/mcp", common.NewSilentLogger())
	srv := httptest.NewServer(transport)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	stream, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()

	reader := bufio.NewReader(stream.Body)
	_, data := readSSEEvent(t, reader)
	sessionID := strings.TrimPrefix(data, "/mcp?sessionId=")
	if _, ok := registry.Lookup(sessionID); !ok {
		t.Fatal("expected live session after connect")
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for registry.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session %s still registered after client disconnect", sessionID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSSE_MethodNotAllowed(t *testing.T) {
	transport := NewSSE(session.NewRegistry(), newTestHandler(), "/mcp", common.NewSilentLogger())
	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	rec := httptest.NewRecorder()

	transport.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
