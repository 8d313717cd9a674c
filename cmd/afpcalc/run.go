package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	persistlog "agrifood.ai/internal/persistence/log"
	"agrifood.ai/internal/sim/baseline"
	"agrifood.ai/internal/sim/pipeline"
	"agrifood.ai/internal/sim/scenario"
)

type runOpts struct {
	src        source
	preset     string
	leversFile string
	set        map[string]string
	asJSON     bool
	traceDir   string
	metricYear int
	record     bool
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOpts{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scenario and print its summary",
		Example: `  afpcalc run --preset "Business as Usual"
  afpcalc run --levers my_levers.yaml --set d1=40 --set l3=25 --json
  afpcalc run --db data/index.db --dataset uk --record --trace data/trace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, o)
		},
	}
	o.src.bind(cmd)
	f := cmd.Flags()
	f.StringVar(&o.preset, "preset", "", "named preset from scenarios.yaml")
	f.StringVar(&o.leversFile, "levers", "", "levers yaml (replaces the preset levers)")
	f.StringToStringVar(&o.set, "set", nil, "slider overrides, code=value (d1=40,p:methane_inhibitor=50)")
	f.BoolVar(&o.asJSON, "json", false, "print the outcome as json")
	f.StringVar(&o.traceDir, "trace", "", "write step and run traces (jsonl.zst) under this directory")
	f.IntVar(&o.metricYear, "year", 0, "summary year (default: horizon)")
	f.BoolVar(&o.record, "record", false, "record the run in the sqlite index (requires --db)")
	return cmd
}

func (a *app) run(cmd *cobra.Command, o *runOpts) error {
	if o.record && strings.TrimSpace(o.src.db) == "" {
		return fmt.Errorf("--record needs --db")
	}
	tune, err := a.tuning()
	if err != nil {
		return err
	}
	ps, err := a.presets()
	if err != nil {
		return err
	}
	req := scenario.Request{Preset: o.preset}
	if o.leversFile != "" {
		l, err := readLevers(o.leversFile)
		if err != nil {
			return err
		}
		req.Levers = &l
	}
	if req.Overrides, err = parseOverrides(o.set); err != nil {
		return err
	}

	load, store, err := o.src.open(a.log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var tracers []pipeline.Tracer
	var runs *persistlog.RunLogger
	if o.traceDir != "" {
		st := persistlog.NewStepTracer(o.traceDir)
		defer st.Close()
		runs = persistlog.NewRunLogger(o.traceDir)
		defer runs.Close()
		tracers = append(tracers, st)
	}
	if o.record {
		tracers = append(tracers, store)
	}
	req.Tracer = pipeline.Tee(tracers...)

	opts := []scenario.RunnerOption{scenario.WithLogger(a.log)}
	if o.metricYear > 0 {
		opts = append(opts, scenario.WithMetricYear(o.metricYear))
	}
	runner := scenario.NewRunner(baseline.NewCache(load, baseline.WithLogger(a.log)), tune, ps, opts...)
	out, err := runner.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	if runs != nil {
		if err := runs.WriteOutcome("cli", out); err != nil {
			a.log.Warn("write run log", zap.Error(err))
		}
	}
	if o.record {
		store.RecordRun("cli", out)
	}

	w := cmd.OutOrStdout()
	if o.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printOutcome(w, out)
}

func readLevers(path string) (scenario.Levers, error) {
	var l scenario.Levers
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil && err != io.EOF {
		return l, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func parseOverrides(set map[string]string) (map[string]float64, error) {
	if len(set) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(set))
	for code, raw := range set {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", code, err)
		}
		out[code] = v
	}
	return out, nil
}
