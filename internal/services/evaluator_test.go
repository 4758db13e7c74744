package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBLEU(t *testing.T) {
	t.Parallel()

	v, ok := parseBLEU("Generate test with beam=5: BLEU4 = 28.99, 61.2/35.5/22.6/14.8 (BP=0.98)")
	require.True(t, ok)
	assert.Equal(t, 28.99, v)

	v, ok = parseBLEU("| Generate test | BLEU = 31.5")
	require.True(t, ok)
	assert.Equal(t, 31.5, v)

	_, ok = parseBLEU("epoch 003 | valid on 'valid' subset | loss 4.85")
	assert.False(t, ok)
}
