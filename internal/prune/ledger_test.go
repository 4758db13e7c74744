package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ds-ai96/SRP/internal/arch"
)

func tinyArch() arch.Architecture {
	return arch.Architecture{
		Name:          "tiny",
		EncoderLayers: 1,
		DecoderLayers: 1,
		EmbedDim:      8,
		FFNDim:        16,
		Heads:         2,
		SrcVocab:      10,
		TgtVocab:      10,
		MaxPositions:  4,
		SampleLen:     2,
	}
}

func TestNewLedgerWidths(t *testing.T) {
	t.Parallel()

	a, err := arch.Get("spt_iwslt_de_en")
	require.NoError(t, err)

	l := NewLedger(a)
	assert.Equal(t, 512, l.Width(EmbeddingKey("encoder")))
	assert.Equal(t, 512, l.Width(EmbeddingKey("decoder")))
	assert.Equal(t, 512, l.Width(LayerKey("encoder", 0, FamilyQK)))
	assert.Equal(t, 1024, l.Width(LayerKey("encoder", 5, FamilyFC)))
	assert.Equal(t, 512, l.Width(LayerKey("decoder", 3, FamilyEncVO)))

	// 2 global groups, 3 per encoder layer, 5 per decoder layer.
	assert.Len(t, l.GroupWidths(), 2+6*3+6*5)
}

func TestGroupWidthsOrder(t *testing.T) {
	t.Parallel()

	l := NewLedger(tinyArch())
	widths := l.GroupWidths()

	keys := make([]string, 0, len(widths))
	for _, w := range widths {
		keys = append(keys, w.Key)
	}
	assert.Equal(t, []string{
		"encoder.embedding_c",
		"decoder.embedding_c",
		"encoder.layers.0.self_attn_qk_c",
		"encoder.layers.0.self_attn_vo_c",
		"encoder.layers.0.fc_c",
		"decoder.layers.0.self_attn_qk_c",
		"decoder.layers.0.self_attn_vo_c",
		"decoder.layers.0.encoder_attn_qk_c",
		"decoder.layers.0.encoder_attn_vo_c",
		"decoder.layers.0.fc_c",
	}, keys)
}

func TestPlanEventsStage0(t *testing.T) {
	t.Parallel()

	a, err := arch.Get("spt_iwslt_de_en")
	require.NoError(t, err)

	plans, err := PlanEvents(a, 0, 0.3, 4)
	require.NoError(t, err)
	require.Len(t, plans, 4)

	// 1024*0.3 = 307 spread over 4 events, remainder first.
	assert.Equal(t, []EventCounts{
		{FC: 77}, {FC: 77}, {FC: 77}, {FC: 76},
	}, plans)
}

func TestPlanEventsStages(t *testing.T) {
	t.Parallel()

	a := tinyArch()

	plans, err := PlanEvents(a, 1, 0.5, 2)
	require.NoError(t, err)
	for _, p := range plans {
		assert.Zero(t, p.GlobalEncoder)
		assert.Zero(t, p.GlobalDecoder)
		assert.NotZero(t, p.QK)
		assert.NotZero(t, p.VO)
		assert.NotZero(t, p.FC)
	}

	plans, err = PlanEvents(a, 2, 0.5, 2)
	require.NoError(t, err)
	total := 0
	for _, p := range plans {
		total += p.GlobalEncoder
	}
	assert.Equal(t, 4, total) // 8*0.5

	_, err = PlanEvents(a, 3, 0.5, 2)
	assert.Error(t, err)
	_, err = PlanEvents(a, 0, 1.5, 2)
	assert.Error(t, err)
	_, err = PlanEvents(a, 0, 0.5, 0)
	assert.Error(t, err)
}

func TestApplyWithoutScoresRemovesLeading(t *testing.T) {
	t.Parallel()

	l := NewLedger(tinyArch())

	require.NoError(t, l.Apply(EventCounts{QK: 2}, nil))
	assert.Equal(t, 6, l.Width(LayerKey("encoder", 0, FamilyQK)))
	assert.Equal(t, []int{0, 1}, l.Removed(LayerKey("encoder", 0, FamilyQK)))

	// A second event keeps removing from the front of the survivors.
	require.NoError(t, l.Apply(EventCounts{QK: 2}, nil))
	assert.Equal(t, 4, l.Width(LayerKey("encoder", 0, FamilyQK)))
	assert.Equal(t, []int{0, 1, 2, 3}, l.Removed(LayerKey("encoder", 0, FamilyQK)))
}

func TestApplyWithScores(t *testing.T) {
	t.Parallel()

	l := NewLedger(tinyArch())
	key := LayerKey("encoder", 0, FamilyFC)

	score := make([]float64, 16)
	for i := range score {
		score[i] = float64(i)
	}
	score[5], score[9] = -2, -1

	require.NoError(t, l.Apply(EventCounts{FC: 2}, Scores{key: score}))
	assert.Equal(t, 14, l.Width(key))
	assert.Equal(t, []int{5, 9}, l.Removed(key))

	// Next event's scores are in the compacted coordinates; removing the
	// leading two compacted positions removes originals 0 and 1.
	next := make([]float64, 14)
	for i := range next {
		next[i] = float64(i)
	}
	require.NoError(t, l.Apply(EventCounts{FC: 2}, Scores{key: next}))
	assert.Equal(t, 12, l.Width(key))
	assert.Equal(t, []int{0, 1, 5, 9}, l.Removed(key))
}

func TestApplyScoreMapsThroughRemovals(t *testing.T) {
	t.Parallel()

	l := NewLedger(tinyArch())
	key := LayerKey("encoder", 0, FamilyVO)

	first := make([]float64, 8)
	for i := range first {
		first[i] = float64(i)
	}
	first[0] = 100
	// Lowest are originals 1 and 2.
	require.NoError(t, l.Apply(EventCounts{VO: 2}, Scores{key: first}))
	assert.Equal(t, []int{1, 2}, l.Removed(key))

	// Survivors are originals 0,3,4,5,6,7; compacted index 1 is original 3.
	second := []float64{10, 0, 10, 10, 10, 10}
	require.NoError(t, l.Apply(EventCounts{VO: 1}, Scores{key: second}))
	assert.Equal(t, []int{1, 2, 3}, l.Removed(key))
	assert.Equal(t, 5, l.Width(key))
}

func TestApplyNeverEmptiesGroup(t *testing.T) {
	t.Parallel()

	l := NewLedger(tinyArch())
	key := LayerKey("decoder", 0, FamilyFC)

	require.NoError(t, l.Apply(EventCounts{FC: 100}, nil))
	assert.Equal(t, 1, l.Width(key))

	// Further events keep the last unit.
	require.NoError(t, l.Apply(EventCounts{FC: 5}, nil))
	assert.Equal(t, 1, l.Width(key))
}

func TestApplyRejectsBadScoreLength(t *testing.T) {
	t.Parallel()

	l := NewLedger(tinyArch())
	key := LayerKey("encoder", 0, FamilyQK)

	err := l.Apply(EventCounts{QK: 1}, Scores{key: []float64{1, 2, 3}})
	assert.Error(t, err)
}

func TestParamCountDropsByExactFCDelta(t *testing.T) {
	t.Parallel()

	l := NewLedger(tinyArch())
	before := l.ParamCount()

	require.NoError(t, l.Apply(EventCounts{FC: 3}, nil))
	after := l.ParamCount()

	// Per layer, removing n feed-forward units drops n*(2*emb+1)
	// parameters; both layers are affected.
	assert.Equal(t, int64(2*3*(2*8+1)), before-after)
}

func TestCompression(t *testing.T) {
	t.Parallel()

	l := NewLedger(tinyArch())
	assert.Zero(t, l.Compression())

	require.NoError(t, l.Apply(EventCounts{FC: 8, QK: 4, VO: 4}, nil))
	c := l.Compression()
	assert.Greater(t, c, 0.0)
	assert.Less(t, c, 1.0)
}

func TestModelFlops(t *testing.T) {
	t.Parallel()

	c := &FlopsCounter{
		SeqLen:   2,
		EmbedDim: 4,
		Heads:    2,
		EncQK:    []int{4},
		EncVO:    []int{4},
		EncFC:    []int{8},
		TgtVocab: 10,
	}

	// attn: q/k/v projections 3*64, scores 32, weighted sum 32, output 64;
	// ffn: 128+128; output projection: 160.
	assert.Equal(t, 736.0, c.ModelFlops())
}

func TestCounterTracksLedger(t *testing.T) {
	t.Parallel()

	l := NewLedger(tinyArch())
	before := l.Counter().ModelFlops()

	require.NoError(t, l.Apply(EventCounts{FC: 4}, nil))
	after := l.Counter().ModelFlops()

	assert.Less(t, after, before)
	assert.Equal(t, []int{12}, l.Counter().EncFC)
}
