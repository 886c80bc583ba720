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

// Package server accepts WebSocket client connections and feeds the inbound
// messages of each connection to its own router, one message at a time.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/rusq/slackbridge/internal/event"
	"github.com/rusq/slackbridge/internal/router"
)

const (
	// maxMessageSize is the maximum size of the inbound message.
	maxMessageSize = 1 << 20
	// writeTimeout bounds a single write to the client.
	writeTimeout = 10 * time.Second
	// shutdownTimeout is the time given to the HTTP server to stop.
	shutdownTimeout = 5 * time.Second
)

// Server is the connection manager.
type Server struct {
	rt       *router.Router
	res      router.Resolution
	lg       *slog.Logger
	sink     event.Sink
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(s *Server) {
		if lg != nil {
			s.lg = lg
		}
	}
}

// WithSink sets the event sink.
func WithSink(sink event.Sink) Option {
	return func(s *Server) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// New creates a new Server.  rt is the template router, each connection gets
// a copy bound to the connection logger.  res is reported by the healthcheck.
func New(rt *router.Router, res router.Resolution, opts ...Option) *Server {
	s := &Server{
		rt:   rt,
		res:  res,
		lg:   slog.Default(),
		sink: event.Discard,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// inbound clients are not authenticated, and they are not
			// browsers either.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.With(middleware.Logger).Get("/healthcheck", s.healthcheck)
	r.Get("/", s.serveWS)
	r.Get("/ws", s.serveWS)
	return r
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is cancelled.  On cancellation it
// stops accepting, closes all client connections and waits for their
// handlers to return.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.notify(event.Event{Type: event.EListening, Addr: l.Addr().String()})

	errC := make(chan error, 1)
	go func() {
		errC <- srv.Serve(l)
	}()

	select {
	case <-ctx.Done():
		s.lg.Info("server shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		s.closeAll()
		s.wg.Wait()
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errC:
		s.closeAll()
		s.wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) notify(e event.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.sink.Notify(e)
}

// track registers the connection.  It returns false if the server is
// shutting down.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// closeAll sends the going away close frame to all clients and closes their
// connections.
func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}
}
