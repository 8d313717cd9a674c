package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrifood.ai/internal/sim/baseline"
	"agrifood.ai/internal/sim/digest"
)

func TestSnapshotKeepsDataset(t *testing.T) {
	ds := baseline.Demo()
	snap, err := New(ds)
	require.NoError(t, err)
	assert.Equal(t, Version, snap.Header.Version)
	assert.Equal(t, "demo", snap.Header.Name)
	assert.Equal(t, [2]int{2010, 2020}, snap.Header.Years)
	assert.Equal(t, 12, snap.Header.Items)

	path := filepath.Join(t.TempDir(), "nested", "demo.afp.zst")
	require.NoError(t, WriteSnapshot(path, snap))

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	if diff := cmp.Diff(*ds, got.Dataset, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("dataset changed (-want +got):\n%s", diff)
	}

	db, err := baseline.Assemble(&got.Dataset)
	require.NoError(t, err)
	sum, err := digest.DataBlock(db)
	require.NoError(t, err)
	assert.Equal(t, snap.Header.Digest, sum)

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, snap.Header, h)
}

func TestReadSnapshotRejectsOtherVersions(t *testing.T) {
	snap, err := New(baseline.Demo())
	require.NoError(t, err)
	snap.Header.Version = Version + 1

	path := filepath.Join(t.TempDir(), "future.afp.zst")
	require.NoError(t, WriteSnapshot(path, snap))

	_, err = ReadSnapshot(path)
	require.ErrorIs(t, err, ErrVersion)
}

func TestNewRejectsInvalidDataset(t *testing.T) {
	ds := baseline.Demo()
	ds.Years = nil
	_, err := New(ds)
	require.ErrorIs(t, err, baseline.ErrInvalid)
}

func TestReadSnapshotCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.afp.zst")
	require.NoError(t, os.WriteFile(path, []byte("not zstd"), 0o644))
	_, err := ReadSnapshot(path)
	require.Error(t, err)
}

func TestLoaderFeedsCache(t *testing.T) {
	snap, err := New(baseline.Demo())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "demo.afp.zst")
	require.NoError(t, WriteSnapshot(path, snap))

	cache := baseline.NewCache(Loader(path))
	db, err := cache.Get(context.Background())
	require.NoError(t, err)
	sum, err := digest.DataBlock(db)
	require.NoError(t, err)
	assert.Equal(t, snap.Header.Digest, sum)

	_, err = Loader(filepath.Join(t.TempDir(), "missing"))(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}
