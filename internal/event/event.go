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

// Package event defines the operational events of the bridge: startup,
// channel resolution and client connection lifecycle.  Events are logged and
// can be observed by a Sink, which is how tests assert on them.
package event

import (
	"log/slog"
	"sync"
	"time"
)

// EventType is the type of the event.
type EventType int

//go:generate stringer -type=EventType -trimprefix=E
const (
	EListening EventType = iota
	EResolved
	EResolveFailed
	EConnected
	EDisconnected
	ETransportError
)

// Event is a single lifecycle event.
type Event struct {
	Type      EventType
	Timestamp time.Time
	// ConnID is set for the connection events.
	ConnID string
	// Channel is the channel name for resolution events.
	Channel string
	// ChannelID is set on EResolved.
	ChannelID string
	// Addr is the listener address or the remote address of the client.
	Addr string
	Err  error
}

// Sink receives events.  Implementations must be safe for concurrent use.
type Sink interface {
	Notify(Event)
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(Event)

func (f SinkFunc) Notify(e Event) { f(e) }

// Discard is a Sink that does nothing.
var Discard Sink = SinkFunc(func(Event) {})

// Logger is a Sink that writes events to the slog logger.  Failures are
// logged at the error level.
type Logger struct {
	L *slog.Logger
}

func (l Logger) Notify(e Event) {
	lg := l.L
	if lg == nil {
		lg = slog.Default()
	}
	attrs := make([]any, 0, 10)
	if e.ConnID != "" {
		attrs = append(attrs, "conn_id", e.ConnID)
	}
	if e.Addr != "" {
		attrs = append(attrs, "addr", e.Addr)
	}
	if e.Channel != "" {
		attrs = append(attrs, "channel", e.Channel)
	}
	if e.ChannelID != "" {
		attrs = append(attrs, "channel_id", e.ChannelID)
	}
	switch e.Type {
	case EListening:
		lg.Info("server listening", attrs...)
	case EResolved:
		lg.Info("channel resolved", attrs...)
	case EResolveFailed:
		lg.Error("channel resolution failed", append(attrs, "error", e.Err)...)
	case EConnected:
		lg.Info("client connected", attrs...)
	case EDisconnected:
		lg.Info("client disconnected", attrs...)
	case ETransportError:
		lg.Error("transport error", append(attrs, "error", e.Err)...)
	default:
		lg.Warn("unknown event", append(attrs, "type", e.Type)...)
	}
}

// Multi returns a Sink that notifies all sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Notify(e)
		}
	})
}

// Recorder records all events it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]Event, len(r.events))
	copy(ret, r.events)
	return ret
}

// Types returns the types of the recorded events in order.
func (r *Recorder) Types() []EventType {
	evts := r.Events()
	ret := make([]EventType, len(evts))
	for i := range evts {
		ret[i] = evts[i].Type
	}
	return ret
}

// Wait blocks until an event of type t is recorded or the timeout expires.
// It returns the first such event.
func (r *Recorder) Wait(t EventType, timeout time.Duration) (Event, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		for _, e := range r.Events() {
			if e.Type == t {
				return e, true
			}
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return Event{}, false
		}
	}
}
