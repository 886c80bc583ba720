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

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rusq/slackbridge/internal/client"
	"github.com/rusq/slackbridge/internal/event"
	"github.com/rusq/slackbridge/internal/resolver"
	"github.com/rusq/slackbridge/internal/resolver/mock_resolver"
	"github.com/rusq/slackbridge/internal/router"
	"github.com/rusq/slackbridge/internal/router/mock_router"
)

const waitTimeout = 5 * time.Second

type response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *router.Error   `json:"error"`
}

// resolveWith resolves st against a directory containing chans.
func resolveWith(t *testing.T, st *resolver.State, chans ...client.Channel) {
	t.Helper()
	ml := mock_resolver.NewMockLister(gomock.NewController(t))
	ml.EXPECT().ListChannels(gomock.Any()).Return(chans, nil)
	resolver.New(st, ml).Resolve(t.Context())
}

func newTestServer(t *testing.T, st *resolver.State, p router.Poster) (*httptest.Server, *event.Recorder) {
	t.Helper()
	rec := event.NewRecorder()
	srv := New(router.New(st, p), st, WithSink(rec))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, rec
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(url), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req string) response {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(req)))
	var resp response
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

const (
	reqListTools = `{"jsonrpc":"2.0","id":1,"method":"list_tools"}`
	reqHello     = `{"jsonrpc":"2.0","id":"h","method":"call_tool","params":{"tool_name":"post_slack_message","parameters":{"message":"hello"}}}`
)

func TestServer_listTools(t *testing.T) {
	ts, _ := newTestServer(t, resolver.NewState("general"), mock_router.NewMockPoster(gomock.NewController(t)))
	conn := dial(t, ts.URL)

	resp := roundTrip(t, conn, reqListTools)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "2.0", resp.Version)
	assert.JSONEq(t, `1`, string(resp.ID))

	var res router.ListToolsResult
	require.NoError(t, json.Unmarshal(resp.Result, &res))
	require.Len(t, res.Tools, 1)
	assert.Equal(t, "post_slack_message", res.Tools[0].Name)
}

func TestServer_requestsBeforeResolution(t *testing.T) {
	mp := mock_router.NewMockPoster(gomock.NewController(t))
	mp.EXPECT().PostMessage(gomock.Any(), "C1", "hello").Return(nil).Times(1)

	st := resolver.NewState("general")
	ts, _ := newTestServer(t, st, mp)
	conn := dial(t, ts.URL)

	// pending: the request fails but the connection stays open.
	resp := roundTrip(t, conn, reqHello)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, router.ErrUnresolved.Error())
	assert.JSONEq(t, `"h"`, string(resp.ID))

	resolveWith(t, st, client.Channel{ID: "C1", Name: "general"})

	resp = roundTrip(t, conn, reqHello)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"content":"Posted \"hello\" to #general."}`, string(resp.Result))
}

func TestServer_failedResolution(t *testing.T) {
	st := resolver.NewState("ops")
	resolveWith(t, st, client.Channel{ID: "C1", Name: "general"})
	ts, _ := newTestServer(t, st, mock_router.NewMockPoster(gomock.NewController(t)))
	conn := dial(t, ts.URL)

	resp := roundTrip(t, conn, reqHello)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, router.ErrUnresolved.Error())

	// listing still works.
	resp = roundTrip(t, conn, reqListTools)
	assert.Nil(t, resp.Error)
}

func TestServer_messagesInOrder(t *testing.T) {
	const n = 20
	ctrl := gomock.NewController(t)
	mp := mock_router.NewMockPoster(ctrl)
	mp.EXPECT().PostMessage(gomock.Any(), "C1", "hello").Return(nil).Times(n)

	st := resolver.NewState("general")
	resolveWith(t, st, client.Channel{ID: "C1", Name: "general"})
	ts, _ := newTestServer(t, st, mp)
	conn := dial(t, ts.URL)

	for i := range n {
		req := strings.Replace(reqHello, `"id":"h"`, `"id":`+jsonInt(i), 1)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(req)))
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	for i := range n {
		var resp response
		require.NoError(t, conn.ReadJSON(&resp))
		assert.Nil(t, resp.Error)
		assert.JSONEq(t, jsonInt(i), string(resp.ID))
	}
}

func jsonInt(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

func TestServer_postFailureKeepsConnection(t *testing.T) {
	mp := mock_router.NewMockPoster(gomock.NewController(t))
	gomock.InOrder(
		mp.EXPECT().PostMessage(gomock.Any(), "C1", "hello").Return(errors.New("slack service error: rate_limited")),
		mp.EXPECT().PostMessage(gomock.Any(), "C1", "hello").Return(nil),
	)
	st := resolver.NewState("general")
	resolveWith(t, st, client.Channel{ID: "C1", Name: "general"})
	ts, _ := newTestServer(t, st, mp)
	conn := dial(t, ts.URL)

	resp := roundTrip(t, conn, reqHello)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "rate_limited")

	resp = roundTrip(t, conn, reqHello)
	assert.Nil(t, resp.Error)
}

func TestServer_malformedKeepsConnection(t *testing.T) {
	ts, _ := newTestServer(t, resolver.NewState("general"), mock_router.NewMockPoster(gomock.NewController(t)))
	conn := dial(t, ts.URL)

	resp := roundTrip(t, conn, `{"jsonrpc":`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "null", string(resp.ID))

	resp = roundTrip(t, conn, reqListTools)
	assert.Nil(t, resp.Error)
}

func TestServer_lifecycleEvents(t *testing.T) {
	ts, rec := newTestServer(t, resolver.NewState("general"), mock_router.NewMockPoster(gomock.NewController(t)))
	conn := dial(t, ts.URL)

	connected, ok := rec.Wait(event.EConnected, waitTimeout)
	require.True(t, ok)
	assert.NotEmpty(t, connected.ConnID)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	disconnected, ok := rec.Wait(event.EDisconnected, waitTimeout)
	require.True(t, ok)
	assert.Equal(t, connected.ConnID, disconnected.ConnID)
	assert.Equal(t, []event.EventType{event.EConnected, event.EDisconnected}, rec.Types())
}

func TestServer_connectionsAreIndependent(t *testing.T) {
	ts, rec := newTestServer(t, resolver.NewState("general"), mock_router.NewMockPoster(gomock.NewController(t)))
	c1 := dial(t, ts.URL)
	c2 := dial(t, ts.URL)

	// c1 goes away abruptly, c2 must keep working.
	require.NoError(t, c1.Close())
	_, ok := rec.Wait(event.EDisconnected, waitTimeout)
	require.True(t, ok)

	resp := roundTrip(t, c2, reqListTools)
	assert.Nil(t, resp.Error)
}

func TestServer_healthcheck(t *testing.T) {
	st := resolver.NewState("general")
	ts, _ := newTestServer(t, st, nil)

	get := func() healthStatus {
		resp, err := http.Get(ts.URL + "/healthcheck")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var hs healthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&hs))
		return hs
	}

	assert.Equal(t, healthStatus{Status: "pending", Channel: "general"}, get())
	resolveWith(t, st, client.Channel{ID: "C1", Name: "general"})
	assert.Equal(t, healthStatus{Status: "resolved", Channel: "general", ChannelID: "C1"}, get())
}

func TestServer_Serve_shutdown(t *testing.T) {
	st := resolver.NewState("general")
	rec := event.NewRecorder()
	srv := New(router.New(st, nil), st, WithSink(rec))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	errC := make(chan error, 1)
	go func() {
		errC <- srv.Serve(ctx, l)
	}()

	listening, ok := rec.Wait(event.EListening, waitTimeout)
	require.True(t, ok)
	assert.Equal(t, l.Addr().String(), listening.Addr)

	conn := dial(t, "http://"+l.Addr().String())
	_, ok = rec.Wait(event.EConnected, waitTimeout)
	require.True(t, ok)

	cancel()
	select {
	case err := <-errC:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Serve did not return after cancellation")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got: %v", err)

	_, ok = rec.Wait(event.EDisconnected, waitTimeout)
	assert.True(t, ok)
}
