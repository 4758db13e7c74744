package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStage() *Recipe {
	return &Recipe{
		Name:    "iwslt-3stage",
		DataDir: "/data/iwslt14-bin",
		Arch:    "spt_iwslt_de_en",
		Stages: []Stage{
			{Name: "finetune", DependsOn: []string{"prune-attn"}},
			{Name: "prune-fc"},
			{Name: "prune-attn", DependsOn: []string{"prune-fc"}},
		},
	}
}

func TestOrder(t *testing.T) {
	t.Parallel()

	stages, err := threeStage().Order()
	require.NoError(t, err)

	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"prune-fc", "prune-attn", "finetune"}, names)
}

func TestOrderSingleStage(t *testing.T) {
	t.Parallel()

	r := &Recipe{
		Name:    "one",
		DataDir: "/data",
		Arch:    "spt_iwslt_de_en",
		Stages:  []Stage{{Name: "only"}},
	}
	stages, err := r.Order()
	require.NoError(t, err)
	assert.Len(t, stages, 1)
}

func TestOrderRejectsUnknownDependency(t *testing.T) {
	t.Parallel()

	r := threeStage()
	r.Stages[0].DependsOn = []string{"missing"}

	_, err := r.Order()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func TestOrderRejectsDuplicateStage(t *testing.T) {
	t.Parallel()

	r := threeStage()
	r.Stages = append(r.Stages, Stage{Name: "prune-fc"})

	_, err := r.Order()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate stage")
}

func TestOrderRejectsCycle(t *testing.T) {
	t.Parallel()

	r := &Recipe{
		Name:    "cyclic",
		DataDir: "/data",
		Arch:    "spt_iwslt_de_en",
		Stages: []Stage{
			{Name: "a", DependsOn: []string{"b"}},
			{Name: "b", DependsOn: []string{"a"}},
		},
	}
	_, err := r.Order()
	assert.Error(t, err)
}
