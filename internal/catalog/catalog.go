// Package catalog models the tool catalog served by the gateway: tool
// definitions, validation, context filtering, and conversion to the MCP
// wire schema.
package catalog

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/schema"
)

// Tool is one catalog entry. Immutable once registered; the gateway holds
// a read-only snapshot taken at startup.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Params      []schema.Param `json:"params,omitempty"`
	Contexts    []string       `json:"contexts,omitempty"`  // context tags; empty = available everywhere
	Cacheable   bool           `json:"cacheable,omitempty"` // results may be served from the result cache
}

// ValidateTool validates a single catalog tool entry.
func ValidateTool(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool has empty name")
	}
	for _, p := range t.Params {
		if p.Name == "" {
			return fmt.Errorf("tool %q has a parameter with an empty name", t.Name)
		}
		if len(p.Enum) > 0 && p.Kind != schema.KindString {
			return fmt.Errorf("tool %q parameter %q declares enum values on kind %q", t.Name, p.Name, p.Kind)
		}
	}
	return nil
}

// Validate filters and validates catalog entries, logging warnings for
// invalid or duplicate tools.
func Validate(tools []Tool, logger *common.Logger) []Tool {
	seen := make(map[string]bool, len(tools))
	valid := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if err := ValidateTool(t); err != nil {
			logger.Warn().Str("error", err.Error()).Msg("skipping invalid catalog tool")
			continue
		}
		if seen[t.Name] {
			logger.Warn().Str("name", t.Name).Msg("skipping duplicate catalog tool")
			continue
		}
		seen[t.Name] = true
		valid = append(valid, t)
	}
	return valid
}

// FilterByContext returns the tools available under the given context tag.
// Tools with no declared contexts are available everywhere; an empty tag
// selects every tool.
func FilterByContext(tools []Tool, tag string) []Tool {
	if tag == "" {
		return tools
	}
	filtered := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if len(t.Contexts) == 0 {
			filtered = append(filtered, t)
			continue
		}
		for _, c := range t.Contexts {
			if c == tag {
				filtered = append(filtered, t)
				break
			}
		}
	}
	return filtered
}

// BuildTool converts a catalog Tool into an mcp.Tool with the appropriate schema.
func BuildTool(t Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Params {
		opts = append(opts, buildParamOption(p))
	}
	return mcp.NewTool(t.Name, opts...)
}

// buildParamOption maps a schema.Param to the appropriate mcp-go tool option.
func buildParamOption(p schema.Param) mcp.ToolOption {
	var opts []mcp.PropertyOption
	if p.Description != "" {
		opts = append(opts, mcp.Description(p.Description))
	}
	if p.Required {
		opts = append(opts, mcp.Required())
	}

	switch p.Kind {
	case schema.KindNumber:
		return mcp.WithNumber(p.Name, opts...)
	case schema.KindBoolean:
		return mcp.WithBoolean(p.Name, opts...)
	case schema.KindArray:
		itemKind := p.ItemKind
		if itemKind == "" || itemKind == schema.KindString {
			opts = append([]mcp.PropertyOption{mcp.WithStringItems()}, opts...)
		} else {
			opts = append([]mcp.PropertyOption{mcp.Items(map[string]any{"type": itemKind})}, opts...)
		}
		return mcp.WithArray(p.Name, opts...)
	case schema.KindString:
		if len(p.Enum) > 0 {
			opts = append(opts, mcp.Enum(p.Enum...))
		}
		return mcp.WithString(p.Name, opts...)
	default:
		// unknown kinds are advertised as strings, matching the
		// accept-anything validator behavior
		return mcp.WithString(p.Name, opts...)
	}
}
