package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"idlecraft.ai/internal/observability"
	"idlecraft.ai/internal/observerproto"
	"idlecraft.ai/internal/persistence/indexdb"
	persistlog "idlecraft.ai/internal/persistence/log"
	"idlecraft.ai/internal/sim/agent"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/clock"
	"idlecraft.ai/internal/sim/runner"
	"idlecraft.ai/internal/sim/tasks"
	"idlecraft.ai/internal/sim/tuning"
	"idlecraft.ai/internal/transport/observer"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent loop and serve the observer stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	f := cmd.Flags()
	f.String("addr", "127.0.0.1:8080", "http listen address")
	f.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	f.Bool("disable_db", false, "disable the sqlite index")
	f.Bool("resume", true, "resume from the latest snapshot in the data dir")
	f.Int64("seed", 0, "override the tuning seed (0 keeps it)")
	for _, name := range []string{"addr", "tuning", "disable_db", "resume", "seed"} {
		_ = v.BindPFlag(name, f.Lookup(name))
	}
	return cmd
}

// session is everything a running agent owns, in close order.
type session struct {
	log      *zap.Logger
	tune     tuning.Tuning
	cats     *catalogs.Catalogs
	clk      *clock.Manual
	agent    *agent.Agent
	runner   *runner.Runner
	hub      *observer.Hub
	registry *prometheus.Registry

	idx       *indexdb.SQLiteIndex
	decisions *persistlog.DecisionLogger
	outcomes  *persistlog.OutcomeLogger
}

func (s *session) Close() {
	if err := s.decisions.Close(); err != nil {
		s.log.Warn("close decision log", zap.Error(err))
	}
	if err := s.outcomes.Close(); err != nil {
		s.log.Warn("close outcome log", zap.Error(err))
	}
	if err := s.idx.Close(); err != nil {
		s.log.Warn("close index", zap.Error(err))
	}
	_ = s.log.Sync()
}

func newSession(cfg Config) (*session, error) {
	log, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	cats, err := catalogs.Load(cfg.Configs)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	tune, err := tuning.Load(cfg.TuningPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load tuning: %w", err)
		}
		log.Warn("tuning not found, using defaults", zap.String("path", cfg.TuningPath()))
		tune = tuning.Defaults()
	}
	if cfg.Seed != 0 {
		tune.Seed = cfg.Seed
	}

	s := &session{
		log:      log,
		tune:     tune,
		cats:     cats,
		clk:      clock.NewManual(time.Now().UTC()),
		hub:      observer.NewHub(),
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if !cfg.DisableDB {
		s.idx, err = indexdb.OpenSQLite(cfg.IndexPath())
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		if err := s.idx.UpsertCatalogs(cfg.Configs, cats, tune); err != nil {
			log.Warn("index catalogs", zap.Error(err))
		}
	}
	s.decisions = persistlog.NewDecisionLogger(cfg.Data, s.clk.Now)
	s.outcomes = persistlog.NewOutcomeLogger(cfg.Data, s.clk.Now)

	actx, err := agent.NewContext(cats, tune, s.clk, log)
	if err != nil {
		s.Close()
		return nil, err
	}
	actx.Metrics = agent.MustNewMetrics(s.registry)
	actx.Recorder = agent.RecorderFunc(func(d agent.Decision) {
		if err := s.decisions.WriteDecision(d); err != nil {
			log.Warn("decision log", zap.Error(err))
		}
		s.idx.RecordDecision(d)
	})
	actx.Tasks.OnOutcome(func(o tasks.Outcome) {
		if err := s.outcomes.WriteOutcome(o); err != nil {
			log.Warn("outcome log", zap.Error(err))
		}
		s.idx.RecordOutcome(o)
	})

	s.agent, err = agent.New(actx)
	if err != nil {
		s.Close()
		return nil, err
	}

	opts := runner.Options{
		Interval:      tune.TickInterval(),
		SnapshotEvery: uint64(tune.SnapshotEveryTicks),
		SnapshotDir:   cfg.SnapshotDir(),
		ArchiveDir:    cfg.Data,
		Publisher:     s.hub,
		Log:           log,
	}
	if s.idx != nil {
		opts.Index = s.idx
	}
	s.runner = runner.New(s.agent, s.clk, opts)
	s.registerRuntimeMetrics()
	return s, nil
}

func (s *session) registerRuntimeMetrics() {
	s.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "idlecraft_tick",
			Help: "Current simulation tick.",
		}, func() float64 { return float64(s.runner.Tick()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "idlecraft_observer_sessions",
			Help: "Connected observer sessions.",
		}, func() float64 { return float64(s.hub.Sessions()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "idlecraft_observer_dropped_frames_total",
			Help: "State frames replaced before a slow observer read them.",
		}, func() float64 { return float64(s.hub.Dropped()) }),
	)
	if s.idx == nil {
		return
	}
	s.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "idlecraft_index_queue_depth",
			Help: "Pending index writes.",
		}, func() float64 { return float64(s.idx.Stats().QueueDepth) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "idlecraft_index_dropped_total",
			Help: "Index writes dropped because the queue was full.",
		}, func() float64 {
			st := s.idx.Stats()
			return float64(st.DropOutcomeTotal + st.DropDecisionTotal + st.DropSnapshotTotal)
		}),
	)
}

func (s *session) bootstrap() observerproto.BootstrapResponse {
	resp := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		SessionID:       s.runner.Session().String(),
		Tick:            s.runner.Tick(),
		Params: observerproto.Params{
			TickRateHz:   s.tune.TickRateHz,
			InventoryCap: s.tune.Inventory.Capacity,
			Bounds:       s.agent.Context().World.Bounds(),
			Seed:         s.tune.Seed,
		},
	}
	for _, n := range s.agent.Context().World.Nodes() {
		resp.Nodes = append(resp.Nodes, observerproto.NodeInfo{
			ID:         n.ID,
			Type:       string(n.Type),
			Pos:        n.Pos,
			Activities: n.Activities,
		})
	}
	return resp
}

func (s *session) handler() http.Handler {
	obs := observer.NewServer(s.hub, s.bootstrap, s.log)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obs.WSHandler())
	return mux
}

func run(ctx context.Context, cfg Config) error {
	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Resume {
		ok, err := s.runner.Resume()
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		if !ok {
			s.log.Info("fresh session", zap.Stringer("session", s.runner.Session()))
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runner.Run(gctx) })
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
