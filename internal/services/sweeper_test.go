package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ds-ai96/SRP/schema"
)

func TestStageReadiness(t *testing.T) {
	t.Parallel()

	stage := func(progress schema.ProgressState, best string) schema.Task {
		return schema.Task{Progress: progress.String(), BestCheckpoint: best}
	}

	t.Run("all parents finished", func(t *testing.T) {
		t.Parallel()
		byStage := map[string]schema.Task{
			"prune-fc":   stage(schema.ProgressStateFinished, "/work/a/save/checkpoint_best.pt"),
			"prune-attn": stage(schema.ProgressStateFinished, "/work/b/save/checkpoint_best.pt"),
		}
		ready, pretrained, failed := stageReadiness(schema.Task{WaitingFor: "prune-fc,prune-attn"}, byStage)
		assert.True(t, ready)
		assert.Equal(t, "/work/b/save/checkpoint_best.pt", pretrained)
		assert.Empty(t, failed)
	})

	t.Run("parent still running", func(t *testing.T) {
		t.Parallel()
		byStage := map[string]schema.Task{
			"prune-fc": stage(schema.ProgressStateTraining, ""),
		}
		ready, _, failed := stageReadiness(schema.Task{WaitingFor: "prune-fc"}, byStage)
		assert.False(t, ready)
		assert.Empty(t, failed)
	})

	t.Run("parent failed", func(t *testing.T) {
		t.Parallel()
		byStage := map[string]schema.Task{
			"prune-fc":   stage(schema.ProgressStateFinished, "/work/a/save/checkpoint_best.pt"),
			"prune-attn": stage(schema.ProgressStateFailed, ""),
		}
		ready, _, failed := stageReadiness(schema.Task{WaitingFor: "prune-fc,prune-attn"}, byStage)
		assert.False(t, ready)
		assert.Equal(t, "prune-attn", failed)
	})

	t.Run("unknown parent", func(t *testing.T) {
		t.Parallel()
		ready, _, failed := stageReadiness(schema.Task{WaitingFor: "missing"}, map[string]schema.Task{})
		assert.False(t, ready)
		assert.Empty(t, failed)
	})
}
