package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agrifood.ai/internal/persistence/indexdb"
	persistlog "agrifood.ai/internal/persistence/log"
	"agrifood.ai/internal/sim/baseline"
	"agrifood.ai/internal/sim/catalogs"
	"agrifood.ai/internal/sim/pipeline"
	"agrifood.ai/internal/sim/scenario"
	"agrifood.ai/internal/transport/observer"
	"agrifood.ai/internal/transport/ws"
)

type serveOpts struct {
	src      source
	addr     string
	maxRuns  int
	traceDir string
}

func newServeCmd(a *app) *cobra.Command {
	o := &serveOpts{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scenario runs over websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), o)
		},
	}
	o.src.bind(cmd)
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", ":8080", "http listen address")
	f.IntVar(&o.maxRuns, "max-runs", 4, "runs executing at once")
	f.StringVar(&o.traceDir, "trace", "", "write step and run traces (jsonl.zst) under this directory")
	return cmd
}

// recorder fans finished steps and runs out to the index and the trace files.
type recorder struct {
	store *indexdb.SQLiteStore
	steps *persistlog.StepTracer
	runs  *persistlog.RunLogger
	log   *zap.Logger
}

func (r *recorder) StepDone(rec pipeline.StepRecord) error {
	if r.store != nil {
		_ = r.store.StepDone(rec)
	}
	if r.steps != nil {
		if err := r.steps.StepDone(rec); err != nil {
			r.log.Warn("write step trace", zap.String("run_id", rec.RunID), zap.Error(err))
		}
	}
	return nil
}

func (r *recorder) RecordRun(source string, out *scenario.Outcome) {
	if r.store != nil {
		r.store.RecordRun(source, out)
	}
	if r.runs != nil {
		if err := r.runs.WriteOutcome(source, out); err != nil {
			r.log.Warn("write run log", zap.String("run_id", out.RunID), zap.Error(err))
		}
	}
}

func (a *app) serve(ctx context.Context, o *serveOpts) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cats, err := catalogs.Load(a.configDir)
	if err != nil {
		return err
	}
	tune, err := a.tuning()
	if err != nil {
		return err
	}
	ps, err := a.presets()
	if err != nil {
		return err
	}

	load, store, err := o.src.open(a.log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		if err := store.UpsertCatalogs(a.configDir, cats, tune); err != nil {
			a.log.Warn("index: upsert catalogs", zap.Error(err))
		}
	}

	cache := baseline.NewCache(checked(cats, load), baseline.WithLogger(a.log))
	if _, err := cache.Get(ctx); err != nil {
		return err
	}

	rec := &recorder{store: store, log: a.log}
	if o.traceDir != "" {
		rec.steps = persistlog.NewStepTracer(o.traceDir)
		defer rec.steps.Close()
		rec.runs = persistlog.NewRunLogger(o.traceDir)
		defer rec.runs.Close()
	}

	runner := scenario.NewRunner(cache, tune, ps, scenario.WithLogger(a.log))
	wsSrv := ws.NewServer(runner,
		ws.WithLogger(a.log),
		ws.WithRecorder(rec),
		ws.WithCatalogs(cats.Digests()),
		ws.WithMaxRuns(o.maxRuns),
	)

	var idx observer.Index
	if store != nil {
		idx = store
	}
	obs := observer.NewServer(ps, idx, a.log)
	obs.OnReload(cache.Invalidate)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/run", wsSrv.Handler())
	obs.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              o.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", zap.String("addr", o.addr), zap.Int("max_runs", o.maxRuns))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
