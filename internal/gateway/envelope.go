package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// textResult wraps a success payload in the uniform content-block reply shape.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// errorResult wraps a failure message in the same shape with IsError set.
// Validation failures, unknown tools, and executor faults all surface here;
// transports never see a different error shape.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}

// serializeData renders executor data for the text content block.
// Strings pass through verbatim; everything else is pretty-printed JSON.
func serializeData(data any) string {
	switch v := data.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
