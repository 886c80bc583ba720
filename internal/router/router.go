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

// Package router decodes the inbound tool protocol messages, dispatches them
// to the tool listing or the tool invocation and produces exactly one
// response for each.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/rusq/slackbridge/internal/resolver"
	"github.com/rusq/slackbridge/internal/tools"
)

//go:generate mockgen -destination=mock_router/mock_router.go . Poster

// Poster posts messages to a channel.
type Poster interface {
	PostMessage(ctx context.Context, channelID string, text string) error
}

// Resolution provides the current channel resolution state.
type Resolution interface {
	Snapshot() resolver.Snapshot
}

// Router handles the requests of a single connection.  It holds no state
// between the messages, so the same Router may be used concurrently, but the
// server gives each connection its own, bound to the connection logger.
type Router struct {
	res      Resolution
	poster   Poster
	lg       *slog.Logger
	validate *validator.Validate
}

type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(r *Router) {
		if lg != nil {
			r.lg = lg
		}
	}
}

// New creates a new Router.
func New(res Resolution, p Poster, opts ...Option) *Router {
	r := &Router{
		res:      res,
		poster:   p,
		lg:       slog.Default(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// With returns a copy of the router that logs to lg.
func (r *Router) With(lg *slog.Logger) *Router {
	cp := *r
	if lg != nil {
		cp.lg = lg
	}
	return &cp
}

// Handle handles a single raw inbound message and returns the response.
//
// A message that can not be decoded has no correlation identifier, it is
// answered with a parse error with a null id.  Any other failure is returned
// as an error response carrying the request id.
func (r *Router) Handle(ctx context.Context, msg []byte) *Response {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		r.lg.WarnContext(ctx, "unable to decode the message", "error", err, "size", humanize.Bytes(uint64(len(msg))))
		return errorResponse(nil, fmt.Errorf("%w: %w", ErrMalformed, err))
	}
	lg := r.lg.With("method", req.Method, "id", string(req.ID))
	lg.DebugContext(ctx, "request received")

	result, err := r.dispatch(ctx, &req)
	if err != nil {
		lg.WarnContext(ctx, "request failed", "error", err)
		return errorResponse(req.ID, err)
	}
	return resultResponse(req.ID, result)
}

func (r *Router) dispatch(ctx context.Context, req *Request) (any, error) {
	switch req.Method {
	case MethodListTools:
		return ListToolsResult{Tools: tools.Registry()}, nil
	case MethodCallTool:
		return r.callTool(ctx, req.Params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}
}

func (r *Router) callTool(ctx context.Context, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: params are required", ErrInvalidParams)
	}
	var p CallToolParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if _, ok := tools.Lookup(p.ToolName); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, p.ToolName)
	}
	// there's only one tool.
	return r.postMessage(ctx, p.Parameters)
}

func (r *Router) postMessage(ctx context.Context, raw json.RawMessage) (any, error) {
	var args postMessageArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}
	if err := r.validate.Struct(args); err != nil {
		var vErr validator.ValidationErrors
		if errors.As(err, &vErr) {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidParams, tools.ParamMessage)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	snap := r.res.Snapshot()
	switch snap.Status {
	case resolver.Resolved:
	case resolver.Pending:
		return nil, fmt.Errorf("%w: #%s is still being resolved, try again later", ErrUnresolved, snap.Name)
	default:
		if snap.Err == nil {
			return nil, fmt.Errorf("%w: #%s", ErrUnresolved, snap.Name)
		}
		return nil, fmt.Errorf("%w: #%s: %w", ErrUnresolved, snap.Name, snap.Err)
	}

	if err := r.poster.PostMessage(ctx, snap.ID, args.Message); err != nil {
		return nil, err
	}
	r.lg.InfoContext(ctx, "message posted", "channel", snap.Name, "channel_id", snap.ID)
	return CallToolResult{
		Content: fmt.Sprintf("Posted %q to #%s.", args.Message, snap.Name),
	}, nil
}
