package scenario

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/diag"
	"agrifood.ai/internal/sim/digest"
	"agrifood.ai/internal/sim/pipeline"
	"agrifood.ai/internal/sim/report"
	"agrifood.ai/internal/sim/series"
	"agrifood.ai/internal/sim/tuning"
)

// Baseline hands out private copies of the baseline data block.
type Baseline interface {
	Fresh(ctx context.Context) (*datablock.DataBlock, error)
}

// Request selects the levers of a run: a preset, explicit levers, or both,
// with slider-code overrides applied last.
type Request struct {
	Preset    string
	Levers    *Levers
	Overrides map[string]float64
	Tracer    pipeline.Tracer
}

type Outcome struct {
	RunID     string               `json:"run_id"`
	Preset    string               `json:"preset,omitempty"`
	Levers    Levers               `json:"levers"`
	Steps     []string             `json:"steps"`
	Summary   report.Summary       `json:"summary"`
	Gross     series.Series        `json:"gross_emissions"`
	Net       series.Series        `json:"net_emissions"`
	Warnings  []diag.Warning       `json:"warnings,omitempty"`
	Digest    string               `json:"digest"`
	DataBlock *datablock.DataBlock `json:"-"`
}

type Runner struct {
	baseline   Baseline
	tune       tuning.Tuning
	presets    *Presets
	log        *zap.Logger
	metricYear int
}

type RunnerOption func(*Runner)

func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetricYear sets the year the summary reports. It defaults to the
// horizon.
func WithMetricYear(y int) RunnerOption { return func(r *Runner) { r.metricYear = y } }

func NewRunner(b Baseline, t tuning.Tuning, ps *Presets, opts ...RunnerOption) *Runner {
	r := &Runner{baseline: b, tune: t, presets: ps, log: zap.NewNop(), metricYear: t.Horizon}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) Presets() *Presets { return r.presets }

// Resolve returns the levers a request asks for.
func (r *Runner) Resolve(req Request) (Levers, error) {
	var l Levers
	if req.Preset != "" {
		if r.presets == nil {
			return Levers{}, fmt.Errorf("%w: %q", ErrUnknownPreset, req.Preset)
		}
		pl, err := r.presets.Lookup(req.Preset)
		if err != nil {
			return Levers{}, err
		}
		l = pl
	}
	if req.Levers != nil {
		l = *req.Levers
	}
	for code, v := range req.Overrides {
		if err := l.Set(code, v); err != nil {
			return Levers{}, err
		}
	}
	if err := l.Validate(); err != nil {
		return Levers{}, fmt.Errorf("levers: %w", err)
	}
	return l, nil
}

// Run builds the pipeline for req and runs it on a fresh baseline copy.
func (r *Runner) Run(ctx context.Context, req Request) (out *Outcome, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		runsTotal.WithLabelValues(result).Inc()
	}()

	levers, err := r.Resolve(req)
	if err != nil {
		return nil, err
	}
	stepList, err := Build(levers, r.tune)
	if err != nil {
		return nil, err
	}
	db, err := r.baseline.Fresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	p := pipeline.New(db,
		pipeline.WithLogger(r.log),
		pipeline.WithTracer(req.Tracer),
		pipeline.WithRunID(runID),
	)
	if err := p.Write(datablock.Timescale, float64(r.tune.Timescale)); err != nil {
		return nil, err
	}
	for _, s := range stepList {
		p.AddStep(s)
	}
	r.log.Info("run started", zap.String("run_id", runID), zap.String("preset", req.Preset), zap.Int("steps", len(stepList)))
	if err := p.Run(); err != nil {
		return nil, err
	}

	db = p.DataBlock()
	out = &Outcome{
		RunID:     runID,
		Preset:    req.Preset,
		Levers:    levers,
		Steps:     p.Steps(),
		Warnings:  db.Warnings(),
		DataBlock: db,
	}
	if out.Summary, err = report.Summarize(db, r.metricYear); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	if out.Gross, out.Net, err = report.Emissions(db); err != nil {
		return nil, fmt.Errorf("emissions: %w", err)
	}
	if out.Digest, err = digest.DataBlock(db); err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}
	r.log.Info("run done", zap.String("run_id", runID), zap.Int("warnings", len(out.Warnings)), zap.String("digest", out.Digest))
	return out, nil
}
