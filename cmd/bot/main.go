package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"simonzone.ai/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot", "participant name")
		every   = flag.Duration("every", 250*time.Millisecond, "STATE report interval")
		seed    = flag.Int64("seed", 0, "random seed (0: time based)")
		verbose = flag.Bool("v", false, "log particle, ring and bar events too")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 64},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			handleMessage(logger, msg, *verbose)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(*seed))
	st := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		OnGround:        true,
		MainHand:        "STONE",
		Hotbar:          []string{"STONE", "DIRT", "TORCH"},
	}
	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	var sent uint64
	for {
		select {
		case <-stop:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case <-done:
			return
		case <-ticker.C:
		}
		st = nextState(r, st)
		if err := conn.WriteJSON(st); err != nil {
			logger.Printf("send STATE: %v", err)
			return
		}
		sent++
		// Swap hands now and then so hand-swap tasks can be satisfied.
		if sent%20 == 0 {
			act := protocol.ActMsg{
				Type:            protocol.TypeAct,
				ProtocolVersion: protocol.Version,
				Instants: []protocol.InstantReq{
					{ID: fmt.Sprintf("I_swap_%d", sent), Type: protocol.InstantSwapHands},
				},
			}
			_ = conn.WriteJSON(act)
		}
	}
}

// nextState wanders a few blocks per report and flips movement flags at
// random.
func nextState(r *rand.Rand, prev protocol.StateMsg) protocol.StateMsg {
	st := prev
	st.Pos[0] += r.Float64()*2 - 1
	st.Pos[2] += r.Float64()*2 - 1
	st.OnGround = r.Intn(4) != 0
	if st.OnGround {
		st.Pos[1] = 64
	} else {
		st.Pos[1] = 65.2
	}
	st.Sneaking = r.Intn(5) == 0
	st.Sprinting = !st.Sneaking && r.Intn(3) == 0
	st.Yaw = r.Float64()*360 - 180
	st.Pitch = r.Float64()*180 - 90
	return st
}

func handleMessage(logger *log.Logger, msg []byte, verbose bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return
		}
		logger.Printf("WELCOME participant_id=%s tick_rate=%d session_running=%v", w.ParticipantID, w.TickRateHz, w.Session.Running)

	case protocol.TypeEvent:
		var ev protocol.EventMsg
		if err := json.Unmarshal(msg, &ev); err != nil {
			return
		}
		switch ev.Kind {
		case protocol.EventChat:
			logger.Printf("tick=%d chat: %s", ev.Tick, ev.Text)
		case protocol.EventTitle:
			logger.Printf("tick=%d title: %s | %s", ev.Tick, ev.Text, ev.Subtext)
		case protocol.EventDamage, protocol.EventEffect, protocol.EventBoundary, protocol.EventRespawn:
			logger.Printf("tick=%d %s %s", ev.Tick, ev.Kind, string(msg))
		default:
			if verbose {
				logger.Printf("tick=%d %s", ev.Tick, ev.Kind)
			}
		}

	case protocol.TypeAck:
		var a protocol.AckMsg
		if err := json.Unmarshal(msg, &a); err != nil {
			return
		}
		if !a.Accepted {
			logger.Printf("ACK %s rejected code=%s %s", a.AckFor, a.Code, a.Message)
		}
	}
}
