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

package server

// In this file: websocket connection handling.

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rusq/slackbridge/internal/event"
)

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied with an HTTP error.
		s.notify(event.Event{Type: event.ETransportError, Addr: r.RemoteAddr, Err: err})
		return
	}
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	s.handleConn(r, conn)
}

// handleConn runs the read loop of the connection.  Messages are handled
// sequentially in the order of arrival.
func (s *Server) handleConn(r *http.Request, conn *websocket.Conn) {
	defer conn.Close()
	ctx := r.Context()

	id := uuid.NewString()
	lg := s.lg.With("conn_id", id)
	rt := s.rt.With(lg)
	base := event.Event{ConnID: id, Addr: r.RemoteAddr}

	connected := base
	connected.Type = event.EConnected
	s.notify(connected)

	conn.SetReadLimit(maxMessageSize)
	err := func() error {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			lg.DebugContext(ctx, "received message", "size", len(msg))
			resp := rt.Handle(ctx, msg)
			data, err := json.Marshal(resp)
			if err != nil {
				// can't happen, the response consists of the marshallable types.
				lg.ErrorContext(ctx, "unable to encode the response", "error", err)
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	}()
	if !isClosure(err) {
		te := base
		te.Type = event.ETransportError
		te.Err = err
		s.notify(te)
	}
	disconnected := base
	disconnected.Type = event.EDisconnected
	s.notify(disconnected)
}

// isClosure returns true if err is a regular connection closure.
func isClosure(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) || errors.Is(err, net.ErrClosed)
}
