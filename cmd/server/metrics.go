package main

import (
	"fmt"
	"io"
	"net/http"

	"simonzone.ai/internal/persistence/indexdb"
	"simonzone.ai/internal/sim/session"
	"simonzone.ai/internal/sim/world"
)

type metricsSource struct {
	arena   string
	world   func() world.WorldMetrics
	session func() session.Status
	index   *indexdb.SQLiteIndex
	remote  *indexdb.RemoteIndex
}

func (m metricsSource) handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m.write(rw)
	}
}

func (m metricsSource) write(w io.Writer) {
	wm := m.world()
	st := m.session()

	fmt.Fprintf(w, "# HELP simonzone_tick Current scheduler tick.\n")
	fmt.Fprintf(w, "# TYPE simonzone_tick gauge\n")
	fmt.Fprintf(w, "simonzone_tick{arena=%q} %d\n", m.arena, wm.Tick)

	fmt.Fprintf(w, "# HELP simonzone_participants Connected participants.\n")
	fmt.Fprintf(w, "# TYPE simonzone_participants gauge\n")
	fmt.Fprintf(w, "simonzone_participants{arena=%q} %d\n", m.arena, wm.Participants)

	fmt.Fprintf(w, "# HELP simonzone_dropped_messages_total Outbound messages dropped on full client queues.\n")
	fmt.Fprintf(w, "# TYPE simonzone_dropped_messages_total counter\n")
	fmt.Fprintf(w, "simonzone_dropped_messages_total{arena=%q} %d\n", m.arena, wm.DroppedMessages)

	fmt.Fprintf(w, "# HELP simonzone_world_boundary World boundary diameter.\n")
	fmt.Fprintf(w, "# TYPE simonzone_world_boundary gauge\n")
	fmt.Fprintf(w, "simonzone_world_boundary{arena=%q} %g\n", m.arena, wm.Boundary)

	running := 0
	if st.Running {
		running = 1
	}
	fmt.Fprintf(w, "# HELP simonzone_session_running Whether a game session is running.\n")
	fmt.Fprintf(w, "# TYPE simonzone_session_running gauge\n")
	fmt.Fprintf(w, "simonzone_session_running{arena=%q} %d\n", m.arena, running)

	fmt.Fprintf(w, "# HELP simonzone_zone_radius Current safe zone radius.\n")
	fmt.Fprintf(w, "# TYPE simonzone_zone_radius gauge\n")
	fmt.Fprintf(w, "simonzone_zone_radius{arena=%q} %.3f\n", m.arena, st.Zone.CurrentRadius)

	fmt.Fprintf(w, "# HELP simonzone_zone_phase Current zone phase index.\n")
	fmt.Fprintf(w, "# TYPE simonzone_zone_phase gauge\n")
	fmt.Fprintf(w, "simonzone_zone_phase{arena=%q,stage=%q} %d\n", m.arena, st.Zone.Stage.String(), st.Zone.PhaseIndex)

	fmt.Fprintf(w, "# HELP simonzone_session_rounds Round counters for the running session.\n")
	fmt.Fprintf(w, "# TYPE simonzone_session_rounds gauge\n")
	fmt.Fprintf(w, "simonzone_session_rounds{arena=%q,kind=%q} %d\n", m.arena, "started", st.Stats.Rounds)
	fmt.Fprintf(w, "simonzone_session_rounds{arena=%q,kind=%q} %d\n", m.arena, "skipped", st.Stats.Skipped)
	fmt.Fprintf(w, "simonzone_session_rounds{arena=%q,kind=%q} %d\n", m.arena, "rewards", st.Stats.Rewards)
	fmt.Fprintf(w, "simonzone_session_rounds{arena=%q,kind=%q} %d\n", m.arena, "penalties", st.Stats.Penalties)

	if m.index != nil {
		s := m.index.Stats()
		fmt.Fprintf(w, "# HELP simonzone_index_queue_depth SQLite index queue depth.\n")
		fmt.Fprintf(w, "# TYPE simonzone_index_queue_depth gauge\n")
		fmt.Fprintf(w, "simonzone_index_queue_depth{arena=%q} %d\n", m.arena, s.QueueDepth)
		fmt.Fprintf(w, "# HELP simonzone_index_dropped_total Records dropped on a full index queue.\n")
		fmt.Fprintf(w, "# TYPE simonzone_index_dropped_total counter\n")
		fmt.Fprintf(w, "simonzone_index_dropped_total{arena=%q,kind=%q} %d\n", m.arena, "session", s.DropSessionTotal)
		fmt.Fprintf(w, "simonzone_index_dropped_total{arena=%q,kind=%q} %d\n", m.arena, "round", s.DropRoundTotal)
		fmt.Fprintf(w, "simonzone_index_dropped_total{arena=%q,kind=%q} %d\n", m.arena, "outcome", s.DropOutcomeTotal)
		fmt.Fprintf(w, "simonzone_index_dropped_total{arena=%q,kind=%q} %d\n", m.arena, "zone", s.DropZoneTotal)
	}
	if m.remote != nil {
		s := m.remote.Stats()
		fmt.Fprintf(w, "# HELP simonzone_remote_index_queue_depth Remote index queue depth.\n")
		fmt.Fprintf(w, "# TYPE simonzone_remote_index_queue_depth gauge\n")
		fmt.Fprintf(w, "simonzone_remote_index_queue_depth{arena=%q} %d\n", m.arena, s.QueueDepth)
		fmt.Fprintf(w, "# HELP simonzone_remote_index_events_total Remote index event counters.\n")
		fmt.Fprintf(w, "# TYPE simonzone_remote_index_events_total counter\n")
		fmt.Fprintf(w, "simonzone_remote_index_events_total{arena=%q,result=%q} %d\n", m.arena, "sent", s.SentTotal)
		fmt.Fprintf(w, "simonzone_remote_index_events_total{arena=%q,result=%q} %d\n", m.arena, "queue_dropped", s.QueueDroppedTotal)
		fmt.Fprintf(w, "simonzone_remote_index_events_total{arena=%q,result=%q} %d\n", m.arena, "retain_dropped", s.RetainDropTotal)
		fmt.Fprintf(w, "# HELP simonzone_remote_index_flush_failures_total Failed remote index flushes.\n")
		fmt.Fprintf(w, "# TYPE simonzone_remote_index_flush_failures_total counter\n")
		fmt.Fprintf(w, "simonzone_remote_index_flush_failures_total{arena=%q} %d\n", m.arena, s.FlushFailTotal)
	}
}
