package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"simonzone.ai/internal/protocol"
	"simonzone.ai/internal/sim/sched"
	"simonzone.ai/internal/sim/world"
)

// onSched runs fn on the scheduler goroutine and waits for it.
func onSched(t *testing.T, s *sched.TickScheduler, fn func()) {
	t.Helper()
	done := make(chan struct{})
	s.Submit(func() { fn(); close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not run submitted func")
	}
}

func startServer(t *testing.T) (*sched.TickScheduler, *world.World, string) {
	t.Helper()
	s := sched.New(20)
	w := world.New(world.WorldConfig{ID: "test"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = s.Run(ctx) }()

	srv := NewServer(w, s, Options{
		TickRateHz:  20,
		TasksDigest: "tasks123",
		Session:     func() protocol.SessionInfo { return protocol.SessionInfo{Running: true, SessionID: "s1"} },
	}, nil)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return s, w, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dialHello(t *testing.T, url, name string) (*websocket.Conn, protocol.WelcomeMsg) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: name}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	return conn, welcome
}

func TestHandshake_WelcomeAndState(t *testing.T) {
	s, w, url := startServer(t)
	conn, welcome := dialHello(t, url, "alice")

	if welcome.Type != protocol.TypeWelcome || welcome.ParticipantID == "" {
		t.Fatalf("welcome: got %+v", welcome)
	}
	if welcome.Catalogs.TasksDigest != "tasks123" || !welcome.Session.Running || welcome.Session.SessionID != "s1" {
		t.Fatalf("welcome info: got %+v", welcome)
	}

	st := protocol.StateMsg{Type: protocol.TypeState, ProtocolVersion: protocol.Version, Pos: [3]float64{3, 64, 4}, Sneaking: true}
	if err := conn.WriteJSON(st); err != nil {
		t.Fatalf("write state: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		var view struct {
			ok       bool
			sneaking bool
		}
		onSched(t, s, func() {
			v, ok := w.View(welcome.ParticipantID)
			view.ok, view.sneaking = ok, v.Sneaking
		})
		if view.ok && view.sneaking {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("STATE never applied")
		}
		time.Sleep(20 * time.Millisecond)
	}

	onSched(t, s, func() { w.Broadcast("hello arena") })
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		var ev protocol.EventMsg
		if err := json.Unmarshal(b, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Kind == protocol.EventChat && ev.Text == "hello arena" {
			break
		}
	}
}

func TestDisconnect_LeavesArena(t *testing.T) {
	s, w, url := startServer(t)
	conn, welcome := dialHello(t, url, "bob")
	_ = conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for {
		var present bool
		onSched(t, s, func() { _, present = w.Participant(welcome.ParticipantID) })
		if !present {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("participant still present after disconnect")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHandshake_RejectsNonHello(t *testing.T) {
	_, _, url := startServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(protocol.StateMsg{Type: protocol.TypeState, ProtocolVersion: protocol.Version}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	if err == nil {
		t.Fatalf("expected close")
	}
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation {
		t.Fatalf("close: got %v", err)
	}
}
