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

// Package client wraps the Slack Web API calls used by the bridge: listing
// channels visible to the bot and posting messages.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rusq/slack"
	"golang.org/x/time/rate"

	"github.com/rusq/slackbridge/internal/network"
)

//go:generate mockgen -destination mock_client/mock_client.go . Slack

// Slack is an interface that defines the methods that a Slack client should provide.
type Slack interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) (channels []slack.Channel, nextCursor string, err error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// ErrService is returned when the Slack API call fails, times out or is
// rejected by Slack.  The underlying error is wrapped.
var ErrService = errors.New("slack service error")

// chanTypes are the conversation types searched for the target channel.
var chanTypes = []string{"public_channel", "private_channel"}

// Channel is a channel name and its Slack ID.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is the channel directory: it lists channels and posts messages.
// Every call is paced by the tier limiter and bounded by the configured
// timeout.
type Client struct {
	api     Slack
	limits  network.Limits
	listLim *rate.Limiter
	postLim *rate.Limiter
	lg      *slog.Logger
}

type options struct {
	limits     network.Limits
	httpClient *http.Client
	apiURL     string
	lg         *slog.Logger
}

type Option func(*options)

// WithLimits sets the API limits.
func WithLimits(l network.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithHTTPClient sets the HTTP client used to talk to Slack.  Has no effect
// on Wrap.
func WithHTTPClient(cl *http.Client) Option {
	return func(o *options) {
		if cl != nil {
			o.httpClient = cl
		}
	}
}

// WithAPIURL sets the Slack API URL, it must end with a slash.  Has no
// effect on Wrap.
func WithAPIURL(u string) Option {
	return func(o *options) {
		o.apiURL = u
	}
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(o *options) {
		if lg != nil {
			o.lg = lg
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		limits:     network.DefLimits,
		httpClient: http.DefaultClient,
		lg:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a new Client for the bot token.
func New(token string, opts ...Option) *Client {
	o := newOptions(opts)
	sopts := []slack.Option{slack.OptionHTTPClient(o.httpClient)}
	if o.apiURL != "" {
		sopts = append(sopts, slack.OptionAPIURL(o.apiURL))
	}
	return newClient(slack.New(token, sopts...), o)
}

// Wrap wraps an existing Slack implementation.  Intended for testing.
func Wrap(api Slack, opts ...Option) *Client {
	return newClient(api, newOptions(opts))
}

func newClient(api Slack, o options) *Client {
	return &Client{
		api:     api,
		limits:  o.limits,
		listLim: o.limits.Tier2.Limiter(network.Tier2),
		postLim: o.limits.Special.Limiter(network.TierSpecial),
		lg:      o.lg,
	}
}

// call waits on the limiter and runs fn with the context bounded by the API
// timeout.
func (c *Client) call(ctx context.Context, lim *rate.Limiter, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.limits.Timeout)
	defer cancel()
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// ListChannels returns all non-archived public and private channels visible
// to the token, following the pagination cursor until exhausted.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	params := &slack.GetConversationsParameters{
		Types:           chanTypes,
		ExcludeArchived: true,
		Limit:           c.limits.ChannelsPerPage,
	}
	var (
		all  []Channel
		page int
	)
	for {
		var (
			chans []slack.Channel
			next  string
		)
		err := c.call(ctx, c.listLim, func(ctx context.Context) (err error) {
			chans, next, err = c.api.GetConversationsContext(ctx, params)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: conversations.list: %w", ErrService, err)
		}
		page++
		for _, ch := range chans {
			all = append(all, Channel{ID: ch.ID, Name: ch.Name})
		}
		c.lg.DebugContext(ctx, "conversations.list", "page", page, "channels", len(chans), "total", len(all))
		if next == "" {
			break
		}
		params.Cursor = next
	}
	return all, nil
}

// PostMessage posts the text to the channel with the given ID.  There are no
// retries: a failed call is reported to the caller as is.
func (c *Client) PostMessage(ctx context.Context, channelID string, text string) error {
	var ts string
	err := c.call(ctx, c.postLim, func(ctx context.Context) (err error) {
		_, ts, err = c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: chat.postMessage: %w", ErrService, err)
	}
	c.lg.DebugContext(ctx, "chat.postMessage", "channel_id", channelID, "ts", ts)
	return nil
}
