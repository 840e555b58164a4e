package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"simonzone.ai/internal/protocol"
)

// Arena is the participant-facing side of the world. Every call is made on
// the scheduler goroutine through Submitter.
type Arena interface {
	Join(name string, out chan []byte) string
	Leave(id string)
	ApplyState(id string, st protocol.StateMsg)
	ApplyAct(id string, act protocol.ActMsg)
}

type Submitter interface {
	Submit(fn func())
}

type Options struct {
	TickRateHz   int
	TasksDigest  string
	TuningDigest string
	// Session reports the running session for WELCOME. Must be safe to call
	// from any goroutine.
	Session func() protocol.SessionInfo
	// JoinTimeout bounds the wait for the scheduler to admit a participant.
	JoinTimeout time.Duration
}

type Server struct {
	arena Arena
	sched Submitter
	opts  Options
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(a Arena, s Submitter, opts Options, logger *log.Logger) *Server {
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 5 * time.Second
	}
	return &Server{
		arena: a,
		sched: s,
		opts:  opts,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out := s.handshake(r.Context(), conn)
		if id == "" {
			return
		}
		defer s.sched.Submit(func() { s.arena.Leave(id) })

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.route(id, msg)
		}
	}
}

func (s *Server) route(id string, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.ProtocolVersion != protocol.Version {
		return
	}
	switch base.Type {
	case protocol.TypeState:
		var st protocol.StateMsg
		if err := json.Unmarshal(msg, &st); err != nil {
			return
		}
		s.sched.Submit(func() { s.arena.ApplyState(id, st) })
	case protocol.TypeAct:
		var act protocol.ActMsg
		if err := json.Unmarshal(msg, &act); err != nil {
			return
		}
		s.sched.Submit(func() { s.arena.ApplyAct(id, act) })
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (string, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "bad HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 64
	}
	if maxQ > 1024 {
		maxQ = 1024
	}
	out := make(chan []byte, maxQ)

	joined := make(chan string, 1)
	s.sched.Submit(func() { joined <- s.arena.Join(hello.Name, out) })

	ctx, cancel := context.WithTimeout(ctx, s.opts.JoinTimeout)
	defer cancel()
	var id string
	select {
	case id = <-joined:
	case <-ctx.Done():
		s.logf("join timed out for %q", hello.Name)
		closeWith(conn, "server busy")
		// The join may still land; undo it once it does.
		go func() {
			late := <-joined
			s.sched.Submit(func() { s.arena.Leave(late) })
		}()
		return "", nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ParticipantID:   id,
		TickRateHz:      s.opts.TickRateHz,
		Catalogs: protocol.CatalogDigests{
			TasksDigest:  s.opts.TasksDigest,
			TuningDigest: s.opts.TuningDigest,
		},
	}
	if s.opts.Session != nil {
		welcome.Session = s.opts.Session()
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.sched.Submit(func() { s.arena.Leave(id) })
		return "", nil
	}
	s.logf("participant %s connected as %q", id, hello.Name)
	return id, out
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
