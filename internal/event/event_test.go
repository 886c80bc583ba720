package event

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogger_Notify(t *testing.T) {
	tests := []struct {
		name  string
		evt   Event
		wants []string
	}{
		{
			"resolved",
			Event{Type: EResolved, Channel: "general", ChannelID: "C1"},
			[]string{"level=INFO", `msg="channel resolved"`, "channel=general", "channel_id=C1"},
		},
		{
			"resolve failed",
			Event{Type: EResolveFailed, Channel: "ops", Err: errors.New("not found")},
			[]string{"level=ERROR", "channel=ops", `error="not found"`},
		},
		{
			"connected",
			Event{Type: EConnected, ConnID: "abc", Addr: "127.0.0.1:5555"},
			[]string{`msg="client connected"`, "conn_id=abc", "addr=127.0.0.1:5555"},
		},
		{
			"disconnected",
			Event{Type: EDisconnected, ConnID: "abc"},
			[]string{`msg="client disconnected"`, "conn_id=abc"},
		},
		{
			"transport error",
			Event{Type: ETransportError, ConnID: "abc", Err: errors.New("broken pipe")},
			[]string{"level=ERROR", `error="broken pipe"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := Logger{L: slog.New(slog.NewTextHandler(&buf, nil))}
			l.Notify(tt.evt)
			for _, w := range tt.wants {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Notify(Event{Type: EConnected, ConnID: "1"})
		r.Notify(Event{Type: EDisconnected, ConnID: "1"})
	}()

	e, ok := r.Wait(EDisconnected, time.Second)
	assert.True(t, ok)
	assert.Equal(t, "1", e.ConnID)
	assert.Equal(t, []EventType{EConnected, EDisconnected}, r.Types())

	_, ok = r.Wait(EResolved, 20*time.Millisecond)
	assert.False(t, ok)
}

func TestMulti(t *testing.T) {
	r1, r2 := NewRecorder(), NewRecorder()
	Multi(r1, r2, Discard).Notify(Event{Type: EListening})
	assert.Equal(t, []EventType{EListening}, r1.Types())
	assert.Equal(t, []EventType{EListening}, r2.Types())
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "ResolveFailed", EResolveFailed.String())
	assert.Equal(t, "TransportError", ETransportError.String())
	assert.Equal(t, "EventType(42)", EventType(42).String())
}
