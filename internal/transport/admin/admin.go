// Package admin is the operator command surface: starting, stopping and
// inspecting the game session over HTTP.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"simonzone.ai/internal/protocol"
	"simonzone.ai/internal/sim/geom"
	"simonzone.ai/internal/sim/session"
	"simonzone.ai/internal/sim/world"
)

const (
	msgPlayersOnly  = "This command can only be executed by players!"
	msgNoPermission = "You don't have permission to use this command!"
)

// Roster resolves the calling participant. Called on the scheduler goroutine.
type Roster interface {
	Participant(id string) (world.Participant, bool)
}

// Sessions is the slice of session.Manager the commands drive. Start and Stop
// run on the scheduler goroutine; Status may be called from anywhere.
type Sessions interface {
	Start(center geom.Vec3, actor string) string
	Stop(actor string) bool
	Status() session.Status
}

type Submitter interface {
	Submit(fn func())
}

type Options struct {
	// Token is compared against the Authorization bearer. Empty restricts the
	// routes to loopback callers.
	Token string
	// Operators lists participant names allowed to start and stop sessions.
	Operators []string
	Timeout   time.Duration
}

type Handler struct {
	roster    Roster
	sessions  Sessions
	sched     Submitter
	token     string
	operators map[string]struct{}
	timeout   time.Duration
	log       *log.Logger
}

func New(r Roster, s Sessions, sub Submitter, opts Options, logger *log.Logger) *Handler {
	h := &Handler{
		roster:    r,
		sessions:  s,
		sched:     sub,
		token:     strings.TrimSpace(opts.Token),
		operators: map[string]struct{}{},
		timeout:   opts.Timeout,
		log:       logger,
	}
	if h.timeout <= 0 {
		h.timeout = 5 * time.Second
	}
	for _, name := range opts.Operators {
		if name = strings.TrimSpace(name); name != "" {
			h.operators[name] = struct{}{}
		}
	}
	return h
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/session", h.handleStatus)
	mux.HandleFunc("/admin/v1/session/start", h.handleStart)
	mux.HandleFunc("/admin/v1/session/stop", h.handleStop)
}

type commandRequest struct {
	ParticipantID string `json:"participant_id"`
}

type commandResponse struct {
	OK        bool   `json:"ok"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Stopped   bool   `json:"stopped,omitempty"`
}

func (h *Handler) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	writeJSON(rw, http.StatusOK, h.sessions.Status())
}

func (h *Handler) handleStart(rw http.ResponseWriter, r *http.Request) {
	h.command(rw, r, "start", func(p world.Participant) commandResponse {
		id := h.sessions.Start(p.Pos, p.Name)
		return commandResponse{OK: true, SessionID: id, Message: "session started"}
	})
}

func (h *Handler) handleStop(rw http.ResponseWriter, r *http.Request) {
	h.command(rw, r, "stop", func(p world.Participant) commandResponse {
		if !h.sessions.Stop(p.Name) {
			return commandResponse{OK: true, Message: "no session running"}
		}
		return commandResponse{OK: true, Stopped: true, Message: "session stopped"}
	})
}

// command runs the participant and operator gates and then fn, all in one
// scheduler turn so the caller cannot leave between the check and the action.
func (h *Handler) command(rw http.ResponseWriter, r *http.Request, name string, fn func(p world.Participant) commandResponse) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	var req commandRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<10))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, commandResponse{Code: protocol.ErrBadRequest, Message: "bad request body"})
		return
	}
	req.ParticipantID = strings.TrimSpace(req.ParticipantID)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var resp commandResponse
	err = h.onSched(ctx, func() {
		p, ok := h.roster.Participant(req.ParticipantID)
		if req.ParticipantID == "" || !ok {
			resp = commandResponse{Code: protocol.ErrInvalidTarget, Message: msgPlayersOnly}
			return
		}
		if _, ok := h.operators[p.Name]; !ok {
			resp = commandResponse{Code: protocol.ErrNoPermission, Message: msgNoPermission}
			return
		}
		resp = fn(p)
	})
	if err != nil {
		// The command may still land once the scheduler catches up.
		writeJSON(rw, http.StatusServiceUnavailable, commandResponse{Code: protocol.ErrUnavailable, Message: err.Error()})
		return
	}

	status := http.StatusOK
	switch resp.Code {
	case protocol.ErrInvalidTarget, protocol.ErrNoPermission:
		status = http.StatusForbidden
	}
	h.logf("%s participant=%s ok=%v code=%s", name, req.ParticipantID, resp.OK, resp.Code)
	writeJSON(rw, status, resp)
}

func (h *Handler) onSched(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	h.sched.Submit(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("scheduler busy")
		}
		return ctx.Err()
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return isLoopbackRemote(r.RemoteAddr)
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(h.token)) == 1
}

func (h *Handler) logf(format string, args ...any) {
	if h.log != nil {
		h.log.Printf(format, args...)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
