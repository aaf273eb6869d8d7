package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/superbrain/gateway/internal/tools"
)

// BridgeTool adapts a tool discovered on a remote MCP server into the
// gateway's tools.Tool interface, round-tripping Execute through the MCP
// client's CallTool RPC.
type BridgeTool struct {
	serverName   string
	originalName string
	prefix       string
	description  string
	parameters   map[string]interface{}
	client       *mcpclient.Client
	timeout      time.Duration
	connected    *atomic.Bool
}

// NewBridgeTool wraps one tool mcpTool discovered on serverName, calling
// back through client. A non-empty prefix avoids name collisions between
// tools of the same name on different servers.
func NewBridgeTool(serverName string, mcpTool mcpgo.Tool, client *mcpclient.Client, prefix string, timeoutSec int, connected *atomic.Bool) *BridgeTool {
	return &BridgeTool{
		serverName:   serverName,
		originalName: mcpTool.Name,
		prefix:       prefix,
		description:  mcpTool.Description,
		parameters:   schemaToMap(mcpTool.InputSchema),
		client:       client,
		timeout:      time.Duration(timeoutSec) * time.Second,
		connected:    connected,
	}
}

// Name returns the registry-facing tool name, prefixed to avoid collisions
// between identically named tools on different MCP servers.
func (t *BridgeTool) Name() string {
	if t.prefix == "" {
		return t.originalName
	}
	return t.prefix + t.originalName
}

// OriginalName returns the tool's name as the MCP server itself reports it,
// used when matching an allow/deny list against the server's own naming.
func (t *BridgeTool) OriginalName() string { return t.originalName }

func (t *BridgeTool) Description() string { return t.description }

func (t *BridgeTool) Parameters() map[string]interface{} { return t.parameters }

// Execute calls the remote tool via MCP's CallTool RPC and flattens its
// text content blocks into a single result string.
func (t *BridgeTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	if t.connected != nil && !t.connected.Load() {
		return tools.ErrorResult(fmt.Sprintf("mcp server %q is disconnected", t.serverName))
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if t.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	req := mcpgo.CallToolRequest{}
	req.Params.Name = t.originalName
	req.Params.Arguments = args

	res, err := t.client.CallTool(callCtx, req)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("mcp tool %q failed: %v", t.Name(), err)).WithError(err)
	}

	text := flattenContent(res.Content)
	if res.IsError {
		return tools.ErrorResult(text)
	}
	return tools.NewResult(text)
}

// flattenContent joins every text content block an MCP tool call returned;
// non-text blocks (images, embedded resources) are summarized by type since
// the gateway's tool result contract is plain text.
func flattenContent(content []mcpgo.Content) string {
	var parts []string
	for _, c := range content {
		switch v := c.(type) {
		case mcpgo.TextContent:
			parts = append(parts, v.Text)
		default:
			parts = append(parts, fmt.Sprintf("[unsupported mcp content block %T]", c))
		}
	}
	return strings.Join(parts, "\n")
}

// schemaToMap converts an MCP tool's JSON-schema input description into the
// plain map[string]interface{} shape tools.ToProviderDef expects.
func schemaToMap(schema mcpgo.ToolInputSchema) map[string]interface{} {
	m := map[string]interface{}{
		"type": schema.Type,
	}
	if len(schema.Properties) > 0 {
		m["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		m["required"] = schema.Required
	}
	return m
}
