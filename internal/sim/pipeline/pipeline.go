package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/diag"
	"agrifood.ai/internal/sim/digest"
)

// Step is one transformation of the data block. Its fields are its
// parameters.
type Step interface {
	Name() string
	Apply(db *datablock.DataBlock) (*datablock.DataBlock, error)
}

type funcStep struct {
	name string
	fn   func(*datablock.DataBlock) (*datablock.DataBlock, error)
}

func (s funcStep) Name() string { return s.name }

func (s funcStep) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) { return s.fn(db) }

// Func adapts a parameterless function.
func Func(name string, fn func(*datablock.DataBlock) (*datablock.DataBlock, error)) Step {
	return funcStep{name: name, fn: fn}
}

// StepRecord is what a Tracer receives after each step.
type StepRecord struct {
	RunID    string         `json:"run_id,omitempty"`
	Index    int            `json:"index"`
	Step     string         `json:"step"`
	TookMS   float64        `json:"took_ms"`
	Warnings []diag.Warning `json:"warnings,omitempty"`
	Digest   string         `json:"digest"`
}

type Tracer interface {
	StepDone(rec StepRecord) error
}

type tee []Tracer

func (t tee) StepDone(rec StepRecord) error {
	for _, tr := range t {
		if err := tr.StepDone(rec); err != nil {
			return err
		}
	}
	return nil
}

// Tee fans records out to every non-nil tracer in order, stopping at the
// first error. It returns nil when none is left.
func Tee(ts ...Tracer) Tracer {
	var out tee
	for _, t := range ts {
		if t != nil {
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func WithTracer(t Tracer) Option { return func(p *Pipeline) { p.tracer = t } }

func WithRunID(id string) Option { return func(p *Pipeline) { p.runID = id } }

// Pipeline threads a data block through an ordered list of steps.
type Pipeline struct {
	db     *datablock.DataBlock
	steps  []Step
	log    *zap.Logger
	tracer Tracer
	runID  string
}

func New(db *datablock.DataBlock, opts ...Option) *Pipeline {
	if db == nil {
		db = datablock.New()
	}
	p := &Pipeline{db: db, log: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) AddStep(s Step) { p.steps = append(p.steps, s) }

// Write sets a nested key on the data block before the run.
func (p *Pipeline) Write(path datablock.Path, v any) error { return p.db.Write(path, v) }

func (p *Pipeline) DataBlock() *datablock.DataBlock { return p.db }

func (p *Pipeline) Steps() []string {
	out := make([]string, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.Name()
	}
	return out
}

// Run applies every step in insertion order. The first failing step aborts
// the run; the data block is left as that step received it.
func (p *Pipeline) Run() error {
	log := p.log
	if p.runID != "" {
		log = log.With(zap.String("run_id", p.runID))
	}
	for i, s := range p.steps {
		name := s.Name()
		mark := p.db.NumWarnings()
		start := time.Now()

		out, err := s.Apply(p.db)
		if err == nil && out == nil {
			err = fmt.Errorf("returned no data block")
		}
		took := time.Since(start)
		stepSeconds.WithLabelValues(name).Observe(took.Seconds())
		if err != nil {
			stepsTotal.WithLabelValues(name, "error").Inc()
			log.Error("step failed", zap.Int("index", i), zap.String("step", name), zap.Error(err))
			return fmt.Errorf("step %d (%s): %w", i, name, err)
		}
		stepsTotal.WithLabelValues(name, "ok").Inc()
		p.db = out

		warns := p.db.TagWarnings(mark, name)
		for _, w := range warns {
			warningsTotal.WithLabelValues(w.Code).Inc()
			log.Warn("step warning", zap.String("step", name), zap.String("code", w.Code), zap.String("message", w.Message))
		}
		log.Debug("step done", zap.Int("index", i), zap.String("step", name), zap.Duration("took", took))

		if p.tracer != nil {
			sum, err := digest.DataBlock(p.db)
			if err != nil {
				return fmt.Errorf("step %d (%s): digest: %w", i, name, err)
			}
			rec := StepRecord{
				RunID:    p.runID,
				Index:    i,
				Step:     name,
				TookMS:   float64(took.Microseconds()) / 1000,
				Warnings: warns,
				Digest:   sum,
			}
			if err := p.tracer.StepDone(rec); err != nil {
				return fmt.Errorf("step %d (%s): trace: %w", i, name, err)
			}
		}
	}
	return nil
}
