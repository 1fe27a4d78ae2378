package executor

import (
	"context"
	"fmt"

	"github.com/bobmcallan/vire-gateway/internal/common"
)

// Builtin executes the tools that run in the gateway process itself.
type Builtin struct {
	serverName string
}

// NewBuiltin creates the in-process executor.
func NewBuiltin(serverName string) *Builtin {
	return &Builtin{serverName: serverName}
}

// Handles reports whether name is a built-in tool.
func (b *Builtin) Handles(name string) bool {
	switch name {
	case "echo", "get_version":
		return true
	}
	return false
}

// Execute implements Executor.
func (b *Builtin) Execute(_ context.Context, name string, args map[string]any) (Result, error) {
	switch name {
	case "echo":
		msg, _ := args["message"].(string)
		return Result{Success: true, Data: msg}, nil
	case "get_version":
		return Result{Success: true, Data: map[string]any{
			"name":    b.serverName,
			"version": common.GetVersion(),
			"build":   common.GetBuild(),
		}}, nil
	default:
		return Result{}, fmt.Errorf("unknown built-in tool: %s", name)
	}
}
