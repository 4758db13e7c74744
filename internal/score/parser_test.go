package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidation(t *testing.T) {
	t.Parallel()

	p := &Parser{}

	v, ok := p.ParseValidation("epoch 003 | valid on 'valid' subset | loss 4.85 | bleu 27.33 | lr 0.0005 | num_updates 12000")
	require.True(t, ok)
	assert.Equal(t, 3, v.Epoch)
	assert.Equal(t, 4.85, v.Loss)
	assert.Equal(t, 27.33, v.BLEU)
	assert.Equal(t, 0.0005, v.LR)
	assert.Equal(t, int64(12000), v.NumUpdates)
	assert.True(t, v.HasLoss)
	assert.True(t, v.HasBLEU)
}

func TestParseValidationLossOnly(t *testing.T) {
	t.Parallel()

	p := &Parser{}

	v, ok := p.ParseValidation("epoch 010 | valid on 'valid' subset | loss 3.2 | num_updates 400")
	require.True(t, ok)
	assert.True(t, v.HasLoss)
	assert.False(t, v.HasBLEU)
	assert.Equal(t, 10, v.Epoch)
}

func TestParseValidationRejectsNoise(t *testing.T) {
	t.Parallel()

	p := &Parser{}

	cases := []string{
		"",
		"epoch 001 | train | loss 5.0",
		"loading data from /data/iwslt14-bin",
		"valid",
		"epoch 002 | valid on 'valid' subset", // no metric
	}
	for _, line := range cases {
		_, ok := p.ParseValidation(line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestParsePhase(t *testing.T) {
	t.Parallel()

	p := &Parser{}

	mark, ok := p.ParsePhase("Epoch 7 | phase: pruning")
	require.True(t, ok)
	assert.Equal(t, 7, mark.Epoch)
	assert.Equal(t, "pruning", mark.Phase)

	_, ok = p.ParsePhase("Epoch 7 | something else")
	assert.False(t, ok)

	_, ok = p.ParsePhase("phase:")
	assert.False(t, ok)
}

func TestMarks(t *testing.T) {
	t.Parallel()

	p := &Parser{}

	assert.True(t, p.IsPruneMark("===== Perform pruning ====="))
	assert.False(t, p.IsPruneMark("epoch done"))
}
