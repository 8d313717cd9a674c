package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrifood.ai/internal/sim/scenario"
)

const configs = "../../configs"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--configs", configs, "--log-format", "console"}, args...))
	err := root.Execute()
	return out.String(), err
}

func runJSON(t *testing.T, args ...string) scenario.Outcome {
	t.Helper()
	out, err := execute(t, append([]string{"run", "--json"}, args...)...)
	require.NoError(t, err)
	var o scenario.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &o))
	return o
}

func TestPresetsCommand(t *testing.T) {
	out, err := execute(t, "presets", "--json")
	require.NoError(t, err)
	var ps []scenario.Preset
	require.NoError(t, json.Unmarshal([]byte(out), &ps))
	require.Len(t, ps, 6)
	assert.Equal(t, "Business as Usual", ps[0].Name)

	out, err = execute(t, "presets")
	require.NoError(t, err)
	assert.Contains(t, out, "Business as Usual")
}

func TestRunCommand(t *testing.T) {
	a := runJSON(t, "--preset", "Business as Usual", "--set", "d1=40")
	b := runJSON(t, "--preset", "Business as Usual", "--set", "d1=40")
	assert.Equal(t, 40.0, a.Levers.Ruminant)
	assert.Len(t, a.Digest, 64)
	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.RunID, b.RunID)

	out, err := execute(t, "run", "--preset", "Business as Usual", "--year", "2050")
	require.NoError(t, err)
	assert.Contains(t, out, "net emissions")
	assert.Contains(t, out, "year 2050")
}

func TestRunLeversFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "levers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ruminant: 25\nmeat_free_days: 2\n"), 0o644))

	o := runJSON(t, "--levers", path)
	assert.Equal(t, 25.0, o.Levers.Ruminant)
	assert.Equal(t, 2, o.Levers.MeatFreeDays)

	require.NoError(t, os.WriteFile(path, []byte("moon: 1\n"), 0o644))
	_, err := execute(t, "run", "--levers", path)
	require.Error(t, err)
}

func TestRunRejects(t *testing.T) {
	_, err := execute(t, "run", "--record")
	require.ErrorContains(t, err, "--db")

	_, err = execute(t, "run", "--preset", "Nope")
	require.ErrorIs(t, err, scenario.ErrUnknownPreset)

	_, err = execute(t, "run", "--set", "d1=lots")
	require.Error(t, err)

	_, err = execute(t, "--log-format", "xml", "presets")
	require.Error(t, err)
}

func TestBaselineWorkflow(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "uk.yaml")
	db := filepath.Join(dir, "index.db")
	snap := filepath.Join(dir, "uk.snap.zst")
	trace := filepath.Join(dir, "trace")

	_, err := execute(t, "baseline", "demo", "-o", dataset)
	require.NoError(t, err)

	demoDigest, err := execute(t, "baseline", "digest")
	require.NoError(t, err)
	demoDigest = strings.TrimSpace(demoDigest)
	require.Len(t, demoDigest, 64)

	out, err := execute(t, "baseline", "import", dataset, "--db", db, "--name", "uk")
	require.NoError(t, err)
	assert.Equal(t, "uk "+demoDigest, strings.TrimSpace(out))

	out, err = execute(t, "baseline", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "uk")

	out, err = execute(t, "baseline", "digest", "--db", db, "--dataset", "uk")
	require.NoError(t, err)
	assert.Equal(t, demoDigest, strings.TrimSpace(out))

	out, err = execute(t, "baseline", "snapshot", "--db", db, "--dataset", "uk", "-o", snap)
	require.NoError(t, err)
	assert.Contains(t, out, demoDigest)

	fromSnap := runJSON(t, "--snapshot", snap, "--preset", "Business as Usual")
	fromDB := runJSON(t, "--db", db, "--dataset", "uk", "--preset", "Business as Usual", "--record", "--trace", trace)
	fromDemo := runJSON(t, "--preset", "Business as Usual")
	assert.Equal(t, fromDemo.Digest, fromSnap.Digest)
	assert.Equal(t, fromDemo.Digest, fromDB.Digest)

	matches, err := filepath.Glob(filepath.Join(trace, "steps", "*.jsonl.zst"))
	require.NoError(t, err)
	assert.NotEmpty(t, matches)

	_, err = execute(t, "baseline", "digest", "--db", db, "--dataset", "missing")
	require.Error(t, err)
}
