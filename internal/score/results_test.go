package score

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ds-ai96/SRP/internal/prune"
)

func TestResultWriterAppend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	w := NewResultWriter(path)

	widths := []prune.GroupWidth{
		{Key: "encoder.embedding_c", Width: 512},
		{Key: "encoder.layers.0.fc_c", Width: 947},
	}

	require.NoError(t, w.Append(prune.PhaseWarmingUp, 1, widths, 39469568, 24.1))
	require.NoError(t, w.Append(prune.PhasePruning, 2, widths, 39000000, 24.55))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"w,1,512,947,39469568,24.1\n"+
			"p,2,512,947,39000000,24.55\n",
		string(data))
}
