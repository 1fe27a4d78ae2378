package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bobmcallan/vire-gateway/internal/cache"
	"github.com/bobmcallan/vire-gateway/internal/common"
)

// Proxy forwards tool calls to the backend REST API
// (POST {baseURL}/api/tools/{name} with the argument map as JSON body).
// Context headers configured at construction are injected verbatim on every
// request; the proxy never introspects them.
type Proxy struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
	logger     *common.Logger

	results   *cache.ResultCache
	cacheable map[string]bool
}

// NewProxy creates a proxy executor targeting the given backend URL.
func NewProxy(baseURL string, timeout time.Duration, headers http.Header, logger *common.Logger) *Proxy {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Proxy{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		logger:     logger,
	}
}

// WithCache enables the result cache for the named tools.
func (p *Proxy) WithCache(results *cache.ResultCache, cacheable map[string]bool) *Proxy {
	p.results = results
	p.cacheable = cacheable
	return p
}

// Execute implements Executor. Transport and backend failures are reported
// through Result rather than the error return: they are expected conditions
// the caller should see as an error envelope, not a dropped request.
func (p *Proxy) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	key := ""
	if p.results != nil && p.cacheable[name] {
		key = cache.MakeKey(name, args)
		if cached, ok := p.results.Get(key); ok {
			p.logger.Debug().Str("tool", name).Msg("tool result served from cache")
			return Result{Success: true, Data: cached}, nil
		}
	}

	body, err := p.post(ctx, "/api/tools/"+url.PathEscape(name), args)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}

	if key != "" {
		p.results.Set(key, string(body))
	}
	return Result{Success: true, Data: string(body)}, nil
}

// post performs a POST request with a JSON body and returns the response body.
func (p *Proxy) post(ctx context.Context, path string, data any) ([]byte, error) {
	p.logger.Debug().
		Str("method", http.MethodPost).
		Str("path", path).
		Msg("executor proxy request")

	var reqBody io.Reader
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	p.applyHeaders(req)

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error().Err(err).Str("path", path).Dur("duration", duration).Msg("executor proxy request failed")
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	p.logger.Debug().
		Int("status_code", resp.StatusCode).
		Dur("duration", duration).
		Msg("executor proxy response")

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("%s", errResp.Error)
		}
		return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// applyHeaders copies configured context headers onto an outgoing request.
func (p *Proxy) applyHeaders(req *http.Request) {
	for key, vals := range p.headers {
		for _, v := range vals {
			req.Header.Set(key, v)
		}
	}
}
