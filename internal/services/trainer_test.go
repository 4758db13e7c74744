package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/internal/prune"
	"github.com/ds-ai96/SRP/internal/score"
	"github.com/ds-ai96/SRP/internal/utils"
	"github.com/ds-ai96/SRP/schema"
)

func testLogger(t *testing.T) log.Logger {
	t.Helper()
	logger, err := log.GetLogger(&log.Config{Format: "text", Level: "info"})
	require.NoError(t, err)
	return logger
}

func TestNewTrainRunWiresStopConditions(t *testing.T) {
	t.Parallel()

	task, paths := testTask(t)
	spec, err := buildSpec(task, paths, testConfig())
	require.NoError(t, err)
	spec.MaxUpdate = 300000
	spec.StopMinLR = 1e-9
	spec.StopTimeHours = 12

	run, err := newTrainRun(task, spec, paths, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), run.tracker.MaxUpdate)
	assert.Equal(t, 1e-9, run.tracker.StopMinLR)
	assert.Equal(t, 12.0, run.tracker.StopTimeHours)
	assert.False(t, run.started.IsZero())
}

func TestRecordValidationCanceledTask(t *testing.T) {
	t.Parallel()

	run := &trainRun{canceled: func() bool { return true }}

	err := run.recordValidation(score.Validation{Epoch: 3, Loss: 4.2, HasLoss: true})
	require.ErrorIs(t, err, errCanceled)
}

func TestConsumeCanceledTaskStopsRun(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Paths.WorkRoot = t.TempDir()
	id := uuid.New()
	require.NoError(t, utils.InitTaskDirectory(cfg.Paths.WorkRoot, &id))

	run := &trainRun{
		trainer:  &Trainer{Service: &Service{config: cfg, logger: testLogger(t)}},
		task:     &schema.Task{ID: &id},
		parser:   &score.Parser{},
		canceled: func() bool { return true },
	}

	err := run.consume("epoch 004 | valid on 'valid' subset | loss 4.2 | num_updates 100")
	require.ErrorIs(t, err, errCanceled)
}

func TestConsumeTracksAnnouncedPhase(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Paths.WorkRoot = t.TempDir()
	id := uuid.New()
	require.NoError(t, utils.InitTaskDirectory(cfg.Paths.WorkRoot, &id))

	run := &trainRun{
		trainer:  &Trainer{Service: &Service{config: cfg, logger: testLogger(t)}},
		task:     &schema.Task{ID: &id},
		parser:   &score.Parser{},
		canceled: func() bool { return false },
	}

	require.NoError(t, run.consume("2026-08-28 12:00:01 | INFO | Epoch 4 | phase: pruning"))
	assert.Equal(t, prune.PhasePruning, run.lastPhase)
}

func TestHandleExecuteFailureCanceled(t *testing.T) {
	t.Parallel()

	tr := &Trainer{}

	retry, err := tr.HandleExecuteFailure(errCanceled, nil)
	require.NoError(t, err)
	assert.False(t, retry)
}
