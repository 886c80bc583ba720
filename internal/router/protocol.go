// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package router

// In this file: wire types of the tool protocol.

import (
	"encoding/json"
	"errors"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/rusq/slackbridge/internal/tools"
)

// Methods understood by the router.
const (
	MethodListTools = "list_tools"
	MethodCallTool  = "call_tool"
)

// codeServerError is the JSON-RPC implementation-defined server error code
// used for failures that are not caused by the request itself.
const codeServerError = -32000

// Request is an inbound message.
type Request struct {
	Version string `json:"jsonrpc"`
	// ID is the correlation identifier.  It is kept raw so that it is echoed
	// back exactly as received.
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is an outbound message.  Exactly one of Result and Error is set.
type Response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the error descriptor of a failed request.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ListToolsResult is the result of list_tools.
type ListToolsResult struct {
	Tools []tools.Descriptor `json:"tools"`
}

// CallToolParams are the parameters of call_tool.
type CallToolParams struct {
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters"`
}

// CallToolResult is the result of a successful call_tool.
type CallToolResult struct {
	Content string `json:"content"`
}

// postMessageArgs are the arguments of post_slack_message.
type postMessageArgs struct {
	Message string `json:"message" validate:"required"`
}

// Request handling errors.
var (
	ErrMalformed     = errors.New("malformed request")
	ErrUnknownMethod = errors.New("method not found")
	ErrUnknownTool   = errors.New("unknown tool")
	ErrInvalidParams = errors.New("invalid params")
	ErrUnresolved    = errors.New("channel unresolved")
)

// errorCode maps the error to the JSON-RPC error code.
func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrMalformed):
		return mcplib.PARSE_ERROR
	case errors.Is(err, ErrUnknownMethod), errors.Is(err, ErrUnknownTool):
		return mcplib.METHOD_NOT_FOUND
	case errors.Is(err, ErrInvalidParams):
		return mcplib.INVALID_PARAMS
	default:
		return codeServerError
	}
}

func resultResponse(id json.RawMessage, v any) *Response {
	return &Response{
		Version: mcplib.JSONRPC_VERSION,
		ID:      id,
		Result:  v,
	}
}

func errorResponse(id json.RawMessage, err error) *Response {
	return &Response{
		Version: mcplib.JSONRPC_VERSION,
		ID:      id,
		Error: &Error{
			Code:    errorCode(err),
			Message: err.Error(),
		},
	}
}
