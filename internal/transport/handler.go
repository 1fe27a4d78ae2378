package transport

import (
	"context"
	"encoding/json"

	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/gateway"
)

// Handler turns raw JSON-RPC frames into response frames, independent of
// the transport that carried them. A nil return means no response is due
// (the frame was a notification).
type Handler struct {
	dispatcher *gateway.Dispatcher
	name       string
	version    string
	logger     *common.Logger
}

// NewHandler creates the shared protocol handler for all transports.
func NewHandler(d *gateway.Dispatcher, name, version string, logger *common.Logger) *Handler {
	return &Handler{
		dispatcher: d,
		name:       name,
		version:    version,
		logger:     logger,
	}
}

// Handle processes one inbound frame and returns the marshaled response.
func (h *Handler) Handle(ctx context.Context, raw []byte) []byte {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		h.logger.Warn().Str("error", err.Error()).Msg("unparseable frame")
		return marshal(newError(nil, codeParseError, "parse error: invalid JSON"))
	}

	resp := h.handleRequest(ctx, &req)
	if resp == nil {
		return nil
	}
	return marshal(resp)
}

func (h *Handler) handleRequest(ctx context.Context, req *request) *response {
	switch req.Method {
	case "initialize":
		return newResult(req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    serverCapabilities{Tools: toolsCapability{}},
			ServerInfo:      serverInfo{Name: h.name, Version: h.version},
		})

	case "notifications/initialized":
		return nil

	case "ping":
		return newResult(req.ID, struct{}{})

	case "tools/list":
		return newResult(req.ID, listToolsResult{Tools: h.dispatcher.Tools()})

	case "tools/call":
		return h.handleToolCall(ctx, req)

	default:
		if req.isNotification() {
			// unknown notifications are dropped, not answered
			h.logger.Debug().Str("method", req.Method).Msg("ignoring unknown notification")
			return nil
		}
		return newError(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (h *Handler) handleToolCall(ctx context.Context, req *request) *response {
	var params callParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newError(req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
		}
	}
	if params.Name == "" {
		return newError(req.ID, codeInvalidParams, "invalid tools/call params: missing tool name")
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	result := h.dispatcher.Dispatch(ctx, params.Name, params.Arguments)
	return newResult(req.ID, result)
}

// marshal encodes a response, falling back to an internal error frame when
// a result value cannot be encoded.
func marshal(resp *response) []byte {
	encoded, err := json.Marshal(resp)
	if err != nil {
		encoded, _ = json.Marshal(newError(resp.ID, codeInternalError, "failed to encode response"))
	}
	return encoded
}
