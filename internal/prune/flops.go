package prune

// FlopsCounter estimates the FLOPs of one sentence pass over the pruned
// architecture from the sequence length, embedding width, heads, the
// per-layer qk/vo/fc widths of both sides, the decoder cross-attention
// widths and the target dictionary size.
type FlopsCounter struct {
	SeqLen   int
	EmbedDim int
	Heads    int

	EncQK []int
	EncVO []int
	EncFC []int

	DecQK []int
	DecVO []int
	DecFC []int

	DecCrossQK []int
	DecCrossVO []int

	TgtVocab int
}

// Counter builds the FLOPs counter for the ledger's current widths.
func (l *Ledger) Counter() *FlopsCounter {
	a := l.arch
	c := &FlopsCounter{
		SeqLen:   a.SampleLen,
		EmbedDim: l.widths[EmbeddingKey("encoder")],
		Heads:    a.Heads,
		TgtVocab: a.TgtVocab,
	}
	for i := 0; i < a.EncoderLayers; i++ {
		c.EncQK = append(c.EncQK, l.widths[LayerKey("encoder", i, FamilyQK)])
		c.EncVO = append(c.EncVO, l.widths[LayerKey("encoder", i, FamilyVO)])
		c.EncFC = append(c.EncFC, l.widths[LayerKey("encoder", i, FamilyFC)])
	}
	for i := 0; i < a.DecoderLayers; i++ {
		c.DecQK = append(c.DecQK, l.widths[LayerKey("decoder", i, FamilyQK)])
		c.DecVO = append(c.DecVO, l.widths[LayerKey("decoder", i, FamilyVO)])
		c.DecCrossQK = append(c.DecCrossQK, l.widths[LayerKey("decoder", i, FamilyEncQK)])
		c.DecCrossVO = append(c.DecCrossVO, l.widths[LayerKey("decoder", i, FamilyEncVO)])
		c.DecFC = append(c.DecFC, l.widths[LayerKey("decoder", i, FamilyFC)])
	}
	return c
}

// ModelFlops sums encoder, decoder and output-projection FLOPs of one
// forward pass. Multiply-accumulate counts as two operations.
func (c *FlopsCounter) ModelFlops() float64 {
	total := 0.0
	for i := range c.EncQK {
		total += c.attnFlops(c.EncQK[i], c.EncVO[i])
		total += c.ffnFlops(c.EncFC[i])
	}
	for i := range c.DecQK {
		total += c.attnFlops(c.DecQK[i], c.DecVO[i])
		total += c.attnFlops(c.DecCrossQK[i], c.DecCrossVO[i])
		total += c.ffnFlops(c.DecFC[i])
	}
	total += matmulFlops(c.SeqLen, c.EmbedDim, c.TgtVocab)
	return total
}

// attnFlops covers the q/k/v projections, the score matrix, the
// weighted value sum and the output projection of one attention block.
func (c *FlopsCounter) attnFlops(qk, vo int) float64 {
	s, emb := c.SeqLen, c.EmbedDim
	proj := 2*matmulFlops(s, emb, qk) + matmulFlops(s, emb, vo)
	scores := matmulFlops(s, qk, s)
	weighted := matmulFlops(s, s, vo)
	out := matmulFlops(s, vo, emb)
	return proj + scores + weighted + out
}

func (c *FlopsCounter) ffnFlops(fc int) float64 {
	s, emb := c.SeqLen, c.EmbedDim
	return matmulFlops(s, emb, fc) + matmulFlops(s, fc, emb)
}

func matmulFlops(m, k, n int) float64 {
	return 2 * float64(m) * float64(k) * float64(n)
}
