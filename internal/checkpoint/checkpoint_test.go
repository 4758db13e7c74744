package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
}

func TestVerifySaveDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "save")
	require.NoError(t, VerifySaveDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Probe file must be gone.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolveRestore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	restore, ok := ResolveRestore(dir, "/models/warm.pt")
	assert.True(t, ok)
	assert.Equal(t, "/models/warm.pt", restore)

	_, ok = ResolveRestore(dir, "")
	assert.False(t, ok)

	touch(t, dir, LastName)
	restore, ok = ResolveRestore(dir, "")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, LastName), restore)
}

func TestBest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, ok := Best(dir)
	assert.False(t, ok)

	touch(t, dir, BestName)
	best, ok := Best(dir)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, BestName), best)
}

func TestListEpochs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "checkpoint3.pt")
	touch(t, dir, "checkpoint12.pt")
	touch(t, dir, "checkpoint1.pt")
	touch(t, dir, LastName)
	touch(t, dir, BestName)
	touch(t, dir, "checkpoint_x.pt")

	epochs, err := ListEpochs(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 12}, epochs)
}

func TestPruneOld(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, e := range []int{1, 2, 3, 4, 5} {
		touch(t, dir, EpochName(e))
	}
	touch(t, dir, LastName)
	touch(t, dir, BestName)

	require.NoError(t, PruneOld(dir, 2))

	epochs, err := ListEpochs(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, epochs)

	_, err = os.Stat(filepath.Join(dir, LastName))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, BestName))
	assert.NoError(t, err)
}

func TestPruneOldKeepsEverythingWhenDisabled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, e := range []int{1, 2, 3} {
		touch(t, dir, EpochName(e))
	}

	require.NoError(t, PruneOld(dir, 0))

	epochs, err := ListEpochs(dir)
	require.NoError(t, err)
	assert.Len(t, epochs, 3)
}
