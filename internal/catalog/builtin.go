package catalog

import "github.com/bobmcallan/vire-gateway/internal/schema"

// Builtin returns the tools that execute in the gateway process itself.
// They are always registered so the gateway stays usable without a backend,
// and they coexist with catalog tools fetched from the API.
func Builtin() []Tool {
	return []Tool{
		{
			Name:        "echo",
			Description: "Echo a message back. Use this to verify gateway connectivity end to end.",
			Params: []schema.Param{
				{Name: "message", Kind: schema.KindString, Required: true, Description: "Text to echo back verbatim", Example: "hi"},
			},
		},
		{
			Name:        "get_version",
			Description: "Get the gateway version and build information.",
		},
	}
}
