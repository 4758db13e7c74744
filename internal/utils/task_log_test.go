package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPathsLayout(t *testing.T) {
	t.Parallel()

	paths := NewTaskPaths("/work/abc")
	assert.Equal(t, "/work/abc/save", paths.SaveDir)
	assert.Equal(t, "/work/abc/results.csv", paths.Results)
	assert.Equal(t, "/work/abc/params.yaml", paths.Params)
	assert.Equal(t, "/work/abc/report.json", paths.Report)
	assert.Equal(t, "/work/abc/archive.zip", paths.Archive)
}

func TestTaskLogRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	id := uuid.New()

	require.NoError(t, InitTaskDirectory(root, &id))
	require.NoError(t, WriteToLogFile(root, &id, "training started\n"))

	content, err := ReadLogFile(root, &id)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "creating task")
	assert.Contains(t, lines[1], "training started")
	// Every line carries a timestamp prefix.
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "["), "line %q", line)
	}
}
