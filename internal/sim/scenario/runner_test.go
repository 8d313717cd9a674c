package scenario

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrifood.ai/internal/sim/baseline"
	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/pipeline"
	"agrifood.ai/internal/sim/tuning"
)

const greenAlliance = "Green Alliance - Balance Food, Nature and Climate priorities"

func demoRunner(t *testing.T, opts ...RunnerOption) *Runner {
	t.Helper()
	ps, err := LoadPresets("")
	require.NoError(t, err)
	load := func(context.Context) (*baseline.Dataset, error) { return baseline.Demo(), nil }
	return NewRunner(baseline.NewCache(load), tuning.Defaults(), ps, opts...)
}

type recorder struct{ recs []pipeline.StepRecord }

func (r *recorder) StepDone(rec pipeline.StepRecord) error {
	r.recs = append(r.recs, rec)
	return nil
}

func TestRunBusinessAsUsual(t *testing.T) {
	r := demoRunner(t, WithMetricYear(2050))
	tr := &recorder{}
	out, err := r.Run(context.Background(), Request{Preset: "Business as Usual", Tracer: tr})
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Len(t, out.Digest, 64)
	assert.Equal(t, 2050, out.Summary.Year)
	assert.InDelta(t, 0, out.Summary.AnimalFoodChange, 1e-6)
	assert.Greater(t, out.Summary.Kcal, 0.0)
	assert.Greater(t, out.Summary.GrossEmissions, 0.0)

	require.Len(t, tr.recs, len(out.Steps))
	for i, rec := range tr.recs {
		assert.Equal(t, out.RunID, rec.RunID)
		assert.Equal(t, out.Steps[i], rec.Step)
	}
	assert.Equal(t, out.Digest, tr.recs[len(tr.recs)-1].Digest)

	// Baseline years stay in front of the projection.
	assert.Equal(t, 2010, out.Net.Years[0])
	assert.Equal(t, 2100, out.Net.Years[len(out.Net.Years)-1])
}

func TestRunIsDeterministic(t *testing.T) {
	r := demoRunner(t)
	a, err := r.Run(context.Background(), Request{Preset: greenAlliance})
	require.NoError(t, err)
	b, err := r.Run(context.Background(), Request{Preset: greenAlliance})
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Digest, b.Digest)
	assert.Equal(t, a.Summary, b.Summary)
}

func TestInterventionsLowerNetEmissions(t *testing.T) {
	r := demoRunner(t, WithMetricYear(2050))
	bau, err := r.Run(context.Background(), Request{Preset: "Business as Usual"})
	require.NoError(t, err)
	ga, err := r.Run(context.Background(), Request{Preset: greenAlliance})
	require.NoError(t, err)

	assert.Less(t, ga.Summary.NetEmissions, bau.Summary.NetEmissions)
	assert.Greater(t, ga.Summary.AnimalFoodChange, 0.0)
	assert.Greater(t, ga.Summary.CCSSequestration, 0.0)
	assert.Greater(t, ga.Summary.CCSSpending, 0.0)
	assert.NotEqual(t, bau.Digest, ga.Digest)

	// Runs never touch the cached baseline.
	again, err := r.Run(context.Background(), Request{Preset: "Business as Usual"})
	require.NoError(t, err)
	assert.Equal(t, bau.Digest, again.Digest)

	_, err = again.DataBlock.Ledger(datablock.Sequestration)
	require.NoError(t, err)
}

func TestResolve(t *testing.T) {
	r := demoRunner(t)

	l, err := r.Resolve(Request{Preset: greenAlliance, Overrides: map[string]float64{"d1": 10, "p:fossil_arable": 40}})
	require.NoError(t, err)
	assert.Equal(t, 10.0, l.Ruminant)
	assert.Equal(t, 50.0, l.Cultured)
	assert.Equal(t, 40.0, l.Practices["fossil_arable"])

	l, err = r.Resolve(Request{Levers: &Levers{Waste: 30}})
	require.NoError(t, err)
	assert.Equal(t, 30.0, l.Waste)

	_, err = r.Resolve(Request{Preset: "Utopia"})
	require.ErrorIs(t, err, ErrUnknownPreset)

	_, err = r.Resolve(Request{Overrides: map[string]float64{"q7": 1}})
	require.ErrorIs(t, err, ErrUnknownLever)

	_, err = r.Resolve(Request{Levers: &Levers{Ruminant: 150}})
	require.ErrorContains(t, err, "levers")

	bare := NewRunner(nil, tuning.Defaults(), nil)
	_, err = bare.Resolve(Request{Preset: "Business as Usual"})
	require.ErrorIs(t, err, ErrUnknownPreset)
}

func TestRunBaselineFailure(t *testing.T) {
	boom := errors.New("boom")
	load := func(context.Context) (*baseline.Dataset, error) { return nil, boom }
	r := NewRunner(baseline.NewCache(load), tuning.Defaults(), nil)
	_, err := r.Run(context.Background(), Request{})
	require.ErrorIs(t, err, boom)
}

func TestRunTracerFailureAborts(t *testing.T) {
	r := demoRunner(t)
	_, err := r.Run(context.Background(), Request{Tracer: failing{}})
	require.ErrorContains(t, err, "trace")
}

type failing struct{}

func (failing) StepDone(pipeline.StepRecord) error { return errors.New("disk full") }
