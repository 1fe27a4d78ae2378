package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobmcallan/vire-gateway/internal/cache"
	"github.com/bobmcallan/vire-gateway/internal/common"
)

func TestBuiltin_Echo(t *testing.T) {
	b := NewBuiltin("vire-gateway")

	res, err := b.Execute(context.Background(), "echo", map[string]any{"message": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Data != "hello" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestBuiltin_GetVersion(t *testing.T) {
	b := NewBuiltin("vire-gateway")

	res, err := b.Execute(context.Background(), "get_version", nil)
	if err != nil {
		t.Fatal(err)
	}
	data, ok := res.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected map data, got %T", res.Data)
	}
	if data["name"] != "vire-gateway" {
		t.Errorf("expected server name in version data, got %v", data["name"])
	}
}

func TestBuiltin_Handles(t *testing.T) {
	b := NewBuiltin("x")
	if !b.Handles("echo") || !b.Handles("get_version") {
		t.Error("expected echo and get_version to be built-in")
	}
	if b.Handles("get_quote") {
		t.Error("get_quote must not be built-in")
	}
}

func TestRouter(t *testing.T) {
	backendCalls := 0
	backend := executorFunc(func(ctx context.Context, name string, args map[string]any) (Result, error) {
		backendCalls++
		return Result{Success: true, Data: "from backend"}, nil
	})
	r := &Router{Builtin: NewBuiltin("vire-gateway"), Backend: backend}

	res, err := r.Execute(context.Background(), "echo", map[string]any{"message": "local"})
	if err != nil || res.Data != "local" {
		t.Errorf("expected built-in to handle echo, got %+v err=%v", res, err)
	}
	if backendCalls != 0 {
		t.Error("backend must not run for built-in tools")
	}

	res, err = r.Execute(context.Background(), "get_quote", nil)
	if err != nil || res.Data != "from backend" {
		t.Errorf("expected backend to handle get_quote, got %+v err=%v", res, err)
	}
	if backendCalls != 1 {
		t.Errorf("expected 1 backend call, got %d", backendCalls)
	}
}

func TestRouter_NoBackend(t *testing.T) {
	r := &Router{Builtin: NewBuiltin("vire-gateway")}

	res, err := r.Execute(context.Background(), "get_quote", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Error("expected failure with no backend configured")
	}
	if !strings.Contains(res.Error, "get_quote") {
		t.Errorf("expected tool name in error, got %q", res.Error)
	}
}

type executorFunc func(ctx context.Context, name string, args map[string]any) (Result, error)

func (f executorFunc) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	return f(ctx, name, args)
}

func TestProxy_Execute(t *testing.T) {
	var gotPath, gotHeader string
	var gotArgs map[string]any
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Gateway-Name")
		json.NewDecoder(r.Body).Decode(&gotArgs)
		w.Write([]byte(`{"ticker":"BHP","price":45.2}`))
	}))
	defer backend.Close()

	headers := http.Header{}
	headers.Set("X-Gateway-Name", "vire-gateway")
	p := NewProxy(backend.URL, 5*time.Second, headers, common.NewSilentLogger())

	res, err := p.Execute(context.Background(), "get_quote", map[string]any{"ticker": "BHP"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if gotPath != "/api/tools/get_quote" {
		t.Errorf("unexpected backend path %q", gotPath)
	}
	if gotHeader != "vire-gateway" {
		t.Errorf("expected context header forwarded, got %q", gotHeader)
	}
	if gotArgs["ticker"] != "BHP" {
		t.Errorf("expected args forwarded as JSON body, got %v", gotArgs)
	}
	if data, _ := res.Data.(string); !strings.Contains(data, "45.2") {
		t.Errorf("expected backend body passed through, got %v", res.Data)
	}
}

func TestProxy_BackendError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"market data unavailable"}`))
	}))
	defer backend.Close()

	p := NewProxy(backend.URL, 5*time.Second, nil, common.NewSilentLogger())

	res, err := p.Execute(context.Background(), "get_quote", nil)
	if err != nil {
		t.Fatalf("backend failures must come back through Result, got error %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if res.Error != "market data unavailable" {
		t.Errorf("expected backend error message extracted, got %q", res.Error)
	}
}

func TestProxy_Unreachable(t *testing.T) {
	p := NewProxy("http://127.0.0.1:1", time.Second, nil, common.NewSilentLogger())

	res, err := p.Execute(context.Background(), "get_quote", nil)
	if err != nil {
		t.Fatalf("transport failures must come back through Result, got error %v", err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("expected failure with message, got %+v", res)
	}
}

func TestProxy_Cache(t *testing.T) {
	var backendCalls int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&backendCalls, 1)
		w.Write([]byte("cached body"))
	}))
	defer backend.Close()

	p := NewProxy(backend.URL, 5*time.Second, nil, common.NewSilentLogger()).
		WithCache(cache.New(time.Minute, 16), map[string]bool{"get_quote": true})

	args := map[string]any{"ticker": "BHP"}
	for i := 0; i < 3; i++ {
		res, err := p.Execute(context.Background(), "get_quote", args)
		if err != nil || !res.Success {
			t.Fatalf("call %d failed: %+v err=%v", i, res, err)
		}
		if res.Data != "cached body" {
			t.Errorf("call %d: unexpected data %v", i, res.Data)
		}
	}
	if n := atomic.LoadInt64(&backendCalls); n != 1 {
		t.Errorf("expected 1 backend call for cacheable tool, got %d", n)
	}

	// a tool not marked cacheable always hits the backend
	for i := 0; i < 2; i++ {
		if _, err := p.Execute(context.Background(), "get_news", nil); err != nil {
			t.Fatal(err)
		}
	}
	if n := atomic.LoadInt64(&backendCalls); n != 3 {
		t.Errorf("expected uncacheable tool to reach the backend every time, got %d total calls", n)
	}
}
