package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const mcpVersion = "1.0.0"

func newMCPServer(ctrl Controller) *server.MCPServer {
	s := server.NewMCPServer("salesbot", mcpVersion, server.WithToolCapabilities(false))
	h := mcpHandlers{ctrl: ctrl}

	s.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start an outbound conversation with a property owner"),
		mcp.WithString("chatId", mcp.Required(), mcp.Description("WhatsApp chat id or phone number")),
		mcp.WithString("objectId", mcp.Required(), mcp.Description("Property id in the listings database")),
	), h.startSession)

	s.AddTool(mcp.NewTool("stop_session",
		mcp.WithDescription("Stop the conversation bound to a chat"),
		mcp.WithString("chatId", mcp.Required(), mcp.Description("WhatsApp chat id or phone number")),
	), h.stopSession)

	s.AddTool(mcp.NewTool("stop_all_sessions",
		mcp.WithDescription("Stop every running conversation"),
	), h.stopAllSessions)

	s.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List running conversations ordered by start time"),
	), h.listSessions)

	s.AddTool(mcp.NewTool("get_session_status",
		mcp.WithDescription("Show the state of the conversation bound to a chat"),
		mcp.WithString("chatId", mcp.Required(), mcp.Description("WhatsApp chat id or phone number")),
	), h.sessionStatus)

	return s
}

type mcpHandlers struct {
	ctrl Controller
}

func (h mcpHandlers) startSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := req.RequireString("chatId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	objectID, err := req.RequireString("objectId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap, err := h.ctrl.StartSession(ctx, NormalizeChatID(chatID), objectID)
	if err != nil {
		return mcp.NewToolResultError(errorMessage(err)), nil
	}

	return jsonResult(snap)
}

func (h mcpHandlers) stopSession(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := req.RequireString("chatId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !h.ctrl.Stop(NormalizeChatID(chatID)) {
		return mcp.NewToolResultError("session not found"), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("session for %s stopped", NormalizeChatID(chatID))), nil
}

func (h mcpHandlers) stopAllSessions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(fmt.Sprintf("%d sessions stopped", h.ctrl.StopAll())), nil
}

func (h mcpHandlers) listSessions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(SessionsResponse{Sessions: h.ctrl.List()})
}

func (h mcpHandlers) sessionStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := req.RequireString("chatId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap, ok := h.ctrl.Status(NormalizeChatID(chatID))
	if !ok {
		return mcp.NewToolResultError("session not found"), nil
	}

	return jsonResult(snap)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return mcp.NewToolResultText(string(data)), nil
}
