// Package gateway validates inbound tool calls against their compiled
// schemas, invokes the executor, and normalizes every outcome into the
// uniform response envelope.
package gateway

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bobmcallan/vire-gateway/internal/catalog"
	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/executor"
	"github.com/bobmcallan/vire-gateway/internal/schema"
)

// compiledTool pairs a catalog entry with its validator and advertised
// MCP schema, both derived once at registration.
type compiledTool struct {
	def       catalog.Tool
	validator *schema.Validator
	mcpTool   mcp.Tool
}

// Dispatcher routes validated tool calls to the executor. The tool set is a
// read-only snapshot taken at construction; concurrent dispatch is safe.
type Dispatcher struct {
	tools    map[string]*compiledTool
	order    []string
	executor executor.Executor
	logger   *common.Logger
}

// New compiles the given catalog snapshot and wires it to the executor.
func New(tools []catalog.Tool, exec executor.Executor, logger *common.Logger) *Dispatcher {
	d := &Dispatcher{
		tools:    make(map[string]*compiledTool, len(tools)),
		order:    make([]string, 0, len(tools)),
		executor: exec,
		logger:   logger,
	}
	for _, t := range tools {
		d.tools[t.Name] = &compiledTool{
			def:       t,
			validator: schema.Compile(t.Params),
			mcpTool:   catalog.BuildTool(t),
		}
		d.order = append(d.order, t.Name)
	}
	return d
}

// Tools returns the advertised tool schemas in registration order.
func (d *Dispatcher) Tools() []mcp.Tool {
	tools := make([]mcp.Tool, 0, len(d.order))
	for _, name := range d.order {
		tools = append(tools, d.tools[name].mcpTool)
	}
	return tools
}

// Cacheable returns the names of tools the catalog marks cacheable.
func (d *Dispatcher) Cacheable() map[string]bool {
	cacheable := make(map[string]bool)
	for name, t := range d.tools {
		if t.def.Cacheable {
			cacheable[name] = true
		}
	}
	return cacheable
}

// Dispatch handles one tool call. Every outcome — unknown tool, validation
// failure, executor fault, success — comes back as an envelope; it never
// panics or returns an error up through the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	tool, ok := d.tools[name]
	if !ok {
		d.logger.Warn().Str("tool", name).Msg("tool not found")
		return errorResult(fmt.Sprintf("tool not found: %s", name))
	}

	normalized, err := tool.validator.Validate(args)
	if err != nil {
		d.logger.Debug().Str("tool", name).Str("error", err.Error()).Msg("tool arguments rejected")
		return errorResult(fmt.Sprintf("invalid arguments: %v", err))
	}

	result, err := d.execute(ctx, name, normalized)
	if err != nil {
		return errorResult(fmt.Sprintf("Error: %v", err))
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "tool execution failed"
		}
		return errorResult(msg)
	}

	return textResult(serializeData(result.Data))
}

// execute calls the executor with a panic boundary. A single faulting tool
// must not take down the listening process or other sessions.
func (d *Dispatcher) execute(ctx context.Context, name string, args map[string]any) (result executor.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("tool", name).Str("panic", fmt.Sprintf("%v", r)).Msg("tool executor panicked")
			err = fmt.Errorf("tool %s panicked: %v", name, r)
		}
	}()
	return d.executor.Execute(ctx, name, args)
}
