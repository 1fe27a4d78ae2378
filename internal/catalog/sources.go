package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// maxCatalogSize is the maximum allowed size for a catalog document (1MB).
const maxCatalogSize = 1 << 20

// FetchHTTP fetches the tool catalog from the backend's catalog endpoint
// (GET {baseURL}/api/tools).
func FetchHTTP(ctx context.Context, client *http.Client, baseURL string) ([]Tool, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tools", nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}
	if len(body) > maxCatalogSize {
		return nil, fmt.Errorf("catalog response too large: exceeds %d bytes", maxCatalogSize)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("catalog endpoint returned %d", resp.StatusCode)
	}

	return parse(body)
}

// LoadFile loads a tool catalog from a local JSON file.
func LoadFile(path string) ([]Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	if len(data) > maxCatalogSize {
		return nil, fmt.Errorf("catalog file %s too large: %d bytes (max %d)", path, len(data), maxCatalogSize)
	}
	return parse(data)
}

func parse(data []byte) ([]Tool, error) {
	var tools []Tool
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}
	return tools, nil
}
