package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Hooks logs server lifecycle, sessions and tool calls with their latency.
type Hooks struct {
	logger  zerolog.Logger
	clock   func() time.Time
	started sync.Map // request id -> time.Time
}

// NewHooks constructs a Hooks instance with the provided logger.
func NewHooks(logger zerolog.Logger) *Hooks {
	return &Hooks{logger: logger, clock: time.Now}
}

// OnServerStart is called when the server begins accepting connections.
func (h *Hooks) OnServerStart() {
	h.logger.Info().Msg("MCP server starting")
}

// OnServerStop is called during server shutdown.
func (h *Hooks) OnServerStop() {
	h.logger.Info().Msg("MCP server stopping")
}

// OnToolCall logs tool invocations and their outcomes.
func (h *Hooks) OnToolCall(sessionID, toolName string, duration time.Duration, err error) {
	if err != nil {
		h.logger.Error().Str("session_id", sessionID).Str("tool", toolName).Dur("duration", duration).Err(err).Msg("tool call error")
		return
	}
	h.logger.Info().Str("session_id", sessionID).Str("tool", toolName).Dur("duration", duration).Msg("tool call completed")
}

// Server returns mcp-go hooks that feed this instance.
func (h *Hooks) Server() *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session registered")
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session unregistered")
	})

	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		h.logger.Info().Int("tools", len(res.Tools)).Msg("list_tools served")
	})

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		h.started.Store(requestKey(id), h.clock())
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		h.OnToolCall(sessionID(ctx), req.Params.Name, h.elapsed(id), resultError(res))
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		h.started.Delete(requestKey(id))
		h.logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})

	return hooks
}

func (h *Hooks) elapsed(id any) time.Duration {
	v, ok := h.started.LoadAndDelete(requestKey(id))
	if !ok {
		return 0
	}
	return h.clock().Sub(v.(time.Time))
}

func requestKey(id any) string { return fmt.Sprint(id) }

func sessionID(ctx context.Context) string {
	if s := server.ClientSessionFromContext(ctx); s != nil {
		return s.SessionID()
	}
	return ""
}

// resultError turns a tool error result into an error for logging.
func resultError(res *mcp.CallToolResult) error {
	if res == nil || !res.IsError {
		return nil
	}
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			return toolError(tc.Text)
		}
	}
	return toolError("tool error")
}

type toolError string

func (e toolError) Error() string { return string(e) }
