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

// Package resolver resolves the configured channel name to the Slack channel
// ID once, at startup.  The result is published through State, which the
// request handlers consult before posting.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rusq/slackbridge/internal/client"
	"github.com/rusq/slackbridge/internal/event"
)

//go:generate mockgen -destination=mock_resolver/mock_resolver.go . Lister

// Lister lists channels visible to the bot.
type Lister interface {
	ListChannels(ctx context.Context) ([]client.Channel, error)
}

// ErrChannelNotFound is recorded in the State when no visible channel has the
// configured name.  Usually the name is misspelt, or the bot has not been
// invited to a private channel.
var ErrChannelNotFound = errors.New("channel not found or bot is not a member")

// Resolver performs the one-time channel resolution.
type Resolver struct {
	st   *State
	dir  Lister
	sink event.Sink
	lg   *slog.Logger
	once sync.Once
}

type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(r *Resolver) {
		if lg != nil {
			r.lg = lg
		}
	}
}

// WithSink sets the event sink.
func WithSink(s event.Sink) Option {
	return func(r *Resolver) {
		if s != nil {
			r.sink = s
		}
	}
}

// New creates a new Resolver that writes to st.
func New(st *State, dir Lister, opts ...Option) *Resolver {
	r := &Resolver{
		st:   st,
		dir:  dir,
		sink: event.Discard,
		lg:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve lists the channels and looks up the configured name.  The outcome
// is stored in the State and returned.  Failure is not fatal: it is recorded
// in the State and reported through the event sink.  Only the first call does
// any work, the subsequent calls return the current state.
func (r *Resolver) Resolve(ctx context.Context) Snapshot {
	r.once.Do(func() {
		r.resolve(ctx)
	})
	return r.st.Snapshot()
}

func (r *Resolver) resolve(ctx context.Context) {
	name := r.st.Name()
	r.lg.InfoContext(ctx, "resolving channel", "channel", name)

	id, err := r.lookup(ctx, name)
	if err != nil {
		r.st.fail(err)
		r.sink.Notify(event.Event{
			Type:      event.EResolveFailed,
			Timestamp: time.Now(),
			Channel:   name,
			Err:       err,
		})
		return
	}
	r.st.resolve(id)
	r.sink.Notify(event.Event{
		Type:      event.EResolved,
		Timestamp: time.Now(),
		Channel:   name,
		ChannelID: id,
	})
}

func (r *Resolver) lookup(ctx context.Context, name string) (string, error) {
	chans, err := r.dir.ListChannels(ctx)
	if err != nil {
		return "", fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range chans {
		if ch.Name == name {
			return ch.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q (searched %d channels)", ErrChannelNotFound, name, len(chans))
}
