package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"simonzone.ai/internal/persistence/indexdb"
	persistlog "simonzone.ai/internal/persistence/log"
	"simonzone.ai/internal/protocol"
	"simonzone.ai/internal/sim/audit"
	"simonzone.ai/internal/sim/catalogs"
	"simonzone.ai/internal/sim/sched"
	"simonzone.ai/internal/sim/session"
	"simonzone.ai/internal/sim/tuning"
	"simonzone.ai/internal/sim/world"
	"simonzone.ai/internal/transport/admin"
	"simonzone.ai/internal/transport/observer"
	"simonzone.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		arenaID    = flag.String("arena", "arena", "arena id (metrics label and remote index key)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dotenv     = flag.String("env_file", ".env", "optional dotenv file (existing variables win)")
		seed       = flag.Int64("seed", 0, "random seed for round draws (0: time based)")
		disableDB  = flag.Bool("disable_db", false, "disable the SQLite read-model index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	envCfg, err := loadEnv(*dotenv)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	// Audit sinks. The compressed log is always on; the indexes are read
	// models and never feed back into the game.
	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer auditLog.Close()
	sinks := audit.Multi{auditLog}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "simonzone.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
		sinks = append(sinks, idx)
	}
	var remote *indexdb.RemoteIndex
	if ep := strings.TrimSpace(envCfg.IndexEndpoint); ep != "" {
		remote, err = indexdb.OpenRemote(indexdb.RemoteConfig{
			Endpoint: ep,
			Token:    envCfg.IndexToken,
			ArenaID:  envCfg.IndexArenaID,
			Logger:   logger,
		})
		if err != nil {
			logger.Fatalf("open remote index: %v", err)
		}
		defer remote.Close()
		if err := remote.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("remote index: upsert catalogs: %v", err)
		}
		sinks = append(sinks, remote)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	s := sched.New(tune.TickRateHz)
	w := world.New(world.WorldConfig{
		ID:           *arenaID,
		TickRateHz:   tune.TickRateHz,
		BoundarySize: tune.Zone.RestoredSize,
	}, logger)
	s.ScheduleEvery(1, func() { w.Step(s.CurrentTick()) })

	mgr, err := session.NewManager(tune, cats, w, s, rand.New(rand.NewSource(*seed)), sinks, logger)
	if err != nil {
		logger.Fatalf("session manager: %v", err)
	}
	archiver := &sessionArchiver{
		dataDir: *dataDir,
		tps:     s.TicksPerSecond(),
		audit:   auditLog,
		now:     time.Now,
		log:     logger,
	}
	mgr.OnStop(archiver.onStop)
	logger.Printf("tasks=%d digest=%s tuning=%s seed=%d", len(cats.Tasks.Defs), cats.Tasks.Digest, tune.Digest(), *seed)

	ctx, cancel := signalContext()
	defer cancel()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("scheduler: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsSource{
		arena:   *arenaID,
		world:   w.Metrics,
		session: mgr.Status,
		index:   idx,
		remote:  remote,
	}.handler())

	if envCfg.adminHTTPEnabled() {
		if envCfg.AdminToken == "" {
			logger.Printf("SZ_ADMIN_TOKEN unset; admin endpoints accept loopback callers only")
		}
		if len(envCfg.Operators) == 0 {
			logger.Printf("SZ_OPERATORS empty; nobody can start or stop a session")
		}
		admin.New(w, mgr, s, admin.Options{
			Token:     envCfg.AdminToken,
			Operators: envCfg.Operators,
		}, logger).Register(mux)

		obsSrv := observer.NewServer(observer.Source{
			ArenaID:    *arenaID,
			TickRateHz: tune.TickRateHz,
			Status:     mgr.Status,
			Metrics:    w.Metrics,
		}, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (SZ_ENABLE_ADMIN_HTTP=false)")
	}
	if envCfg.EnablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (SZ_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, s, ws.Options{
		TickRateHz:   tune.TickRateHz,
		TasksDigest:  cats.Tasks.Digest,
		TuningDigest: tune.Digest(),
		Session: func() protocol.SessionInfo {
			st := mgr.Status()
			return protocol.SessionInfo{Running: st.Running, SessionID: st.SessionID}
		},
	}, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The scheduler has stopped stepping, so the manager can be closed from
	// here; this archives a session that was still running.
	<-schedDone
	mgr.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
