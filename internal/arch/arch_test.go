package arch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	t.Parallel()

	a, err := Get("spt_iwslt_de_en")
	require.NoError(t, err)
	assert.Equal(t, 512, a.EmbedDim)
	assert.Equal(t, 1024, a.FFNDim)
	assert.Equal(t, 4, a.Heads)
	assert.Equal(t, 6632, a.TgtVocab)

	_, err = Get("nope")
	assert.Error(t, err)
}

func TestListIsSorted(t *testing.T) {
	t.Parallel()

	archs := List()
	require.NotEmpty(t, archs)
	for i := 1; i < len(archs); i++ {
		assert.Less(t, archs[i-1].Name, archs[i].Name)
	}
}
