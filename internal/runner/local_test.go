package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/config"
	"github.com/ds-ai96/SRP/internal/launch"
)

func testSpec(t *testing.T) *launch.TrainSpec {
	t.Helper()
	return &launch.TrainSpec{
		DataBin:    "/data/iwslt14-bin",
		Arch:       "spt_iwslt_de_en",
		Task:       "translation",
		SourceLang: "de",
		TargetLang: "en",
		Optimizer:  launch.Optimizer{Name: "spt_adam", Beta1: 0.9, Beta2: 0.98},
		MaxTokens:  4096,
		Schedule: launch.Schedule{
			CompressionRate: 0.3,
			Stage:           0,
			Iter:            2,
			Period:          1,
			Decreasing:      launch.DecreasingEpoch,
		},
		Checkpoints:          launch.Checkpoints{SaveDir: t.TempDir()},
		BestCheckpointMetric: "bleu",
	}
}

func testLogger(t *testing.T) log.Logger {
	t.Helper()
	logger, err := log.GetLogger(&log.Config{Format: "text", Level: "info"})
	require.NoError(t, err)
	return logger
}

func TestLocalRunStreamsOutput(t *testing.T) {
	t.Parallel()

	// echo prints the rendered argv back as one line.
	local := NewLocal(config.Runner{PythonBinary: "/bin/echo", TrainScript: "train.py", GenScript: "generate.py"}, testLogger(t))

	var lines []string
	sink := SinkFunc(func(line string) error {
		lines = append(lines, line)
		return nil
	})

	err := local.Run(context.Background(), testSpec(t), t.TempDir(), sink)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "/data/iwslt14-bin")
	assert.Contains(t, lines[0], "--compression-rate 0.3")
}

func TestLocalGenerateStreamsOutput(t *testing.T) {
	t.Parallel()

	local := NewLocal(config.Runner{PythonBinary: "/bin/echo", TrainScript: "train.py", GenScript: "generate.py"}, testLogger(t))

	var lines []string
	sink := SinkFunc(func(line string) error {
		lines = append(lines, line)
		return nil
	})

	err := local.Generate(context.Background(), testSpec(t), t.TempDir(), "/work/abc/save/checkpoint_best.pt", sink)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "generate.py /data/iwslt14-bin")
	assert.Contains(t, lines[0], "--path /work/abc/save/checkpoint_best.pt")
	assert.Contains(t, lines[0], "--gen-subset test")
}

func TestLocalRunReportsExitFailure(t *testing.T) {
	t.Parallel()

	local := NewLocal(config.Runner{PythonBinary: "/bin/false", TrainScript: "train.py"}, testLogger(t))

	err := local.Run(context.Background(), testSpec(t), t.TempDir(), SinkFunc(func(string) error { return nil }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trainer exited")
}

func TestLocalRunMissingBinary(t *testing.T) {
	t.Parallel()

	local := NewLocal(config.Runner{PythonBinary: "/nonexistent/python", TrainScript: "train.py"}, testLogger(t))

	err := local.Run(context.Background(), testSpec(t), t.TempDir(), SinkFunc(func(string) error { return nil }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start trainer")
}

func TestLocalRunSinkAbort(t *testing.T) {
	t.Parallel()

	local := NewLocal(config.Runner{PythonBinary: "/bin/echo", TrainScript: "train.py", GenScript: "generate.py"}, testLogger(t))

	abort := SinkFunc(func(string) error { return assert.AnError })
	err := local.Run(context.Background(), testSpec(t), t.TempDir(), abort)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
