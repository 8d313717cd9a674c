package baseline

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	want := Demo()
	require.NoError(t, WriteFile(path, want))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), ".nan")

	got, err := ReadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs(), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("dataset mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, math.IsNaN(got.Land.Grades[len(got.Land.Grades)-1]))
}

func TestReadFileRejects(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("name: x\ncolour: red\n"), 0o644))
	_, err := ReadFile(unknown)
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("name: x\nyears: [2010]\n"), 0o644))
	_, err = ReadFile(empty)
	require.True(t, errors.Is(err, ErrInvalid), "got %v", err)

	_, err = ReadFile(filepath.Join(dir, "missing.yaml"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}
