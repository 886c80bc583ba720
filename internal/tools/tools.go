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

// Package tools describes the tools exposed to the clients.  There is exactly
// one: post_slack_message.
package tools

import (
	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const (
	// PostMessage is the name of the only tool.
	PostMessage = "post_slack_message"
	// ParamMessage is the name of the required message parameter.
	ParamMessage = "message"
)

// Schema is a JSON Schema of the tool parameters.
type Schema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// Descriptor describes a tool as it is presented to the clients.
type Descriptor struct {
	Name        string `json:"tool_name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

var registry = []Descriptor{
	describe(mcplib.NewTool(PostMessage,
		mcplib.WithDescription("Post a message to the default Slack channel."),
		mcplib.WithString(ParamMessage,
			mcplib.Description("Text of the message to post."),
			mcplib.Required(),
		),
	)),
}

func describe(t mcplib.Tool) Descriptor {
	return Descriptor{
		Name:        t.Name,
		Description: t.Description,
		Parameters: Schema{
			Type:       t.InputSchema.Type,
			Properties: t.InputSchema.Properties,
			Required:   t.InputSchema.Required,
		},
	}
}

// Registry returns the list of the registered tools.  The returned slice is
// a copy.
func Registry() []Descriptor {
	ret := make([]Descriptor, len(registry))
	copy(ret, registry)
	return ret
}

// Lookup returns the descriptor of the named tool.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range registry {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
