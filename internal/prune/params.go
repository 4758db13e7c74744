package prune

// ParamCount is the exact parameter count of the pruned architecture
// derived from the ledger widths: token and positional embeddings,
// attention projections, feed-forward blocks and layer norms. Gate
// vectors (the *_c parameters) are excluded, matching the trainer's
// end-of-epoch parameter report. The output projection shares the
// decoder input embedding and adds nothing.
func (l *Ledger) ParamCount() int64 {
	a := l.arch
	encEmb := int64(l.widths[EmbeddingKey("encoder")])
	decEmb := int64(l.widths[EmbeddingKey("decoder")])

	// Token embeddings plus learned positional embeddings. Fairseq
	// reserves two extra positions for padding offsets.
	total := int64(a.SrcVocab)*encEmb + int64(a.TgtVocab)*decEmb
	total += int64(a.MaxPositions+2) * (encEmb + decEmb)

	for i := 0; i < a.EncoderLayers; i++ {
		qk := int64(l.widths[LayerKey("encoder", i, FamilyQK)])
		vo := int64(l.widths[LayerKey("encoder", i, FamilyVO)])
		fc := int64(l.widths[LayerKey("encoder", i, FamilyFC)])

		total += attnParams(encEmb, encEmb, qk, vo)
		total += ffnParams(encEmb, fc)
		total += 2 * layerNormParams(encEmb)
	}

	for i := 0; i < a.DecoderLayers; i++ {
		qk := int64(l.widths[LayerKey("decoder", i, FamilyQK)])
		vo := int64(l.widths[LayerKey("decoder", i, FamilyVO)])
		crossQK := int64(l.widths[LayerKey("decoder", i, FamilyEncQK)])
		crossVO := int64(l.widths[LayerKey("decoder", i, FamilyEncVO)])
		fc := int64(l.widths[LayerKey("decoder", i, FamilyFC)])

		total += attnParams(decEmb, decEmb, qk, vo)
		total += attnParams(decEmb, encEmb, crossQK, crossVO)
		total += ffnParams(decEmb, fc)
		total += 3 * layerNormParams(decEmb)
	}

	return total
}

// attnParams counts one attention block: q from the query side, k and v
// from the key side, and the output projection back to the query width.
func attnParams(qEmb, kvEmb, qk, vo int64) int64 {
	q := qEmb*qk + qk
	k := kvEmb*qk + qk
	v := kvEmb*vo + vo
	out := vo*qEmb + qEmb
	return q + k + v + out
}

func ffnParams(emb, fc int64) int64 {
	up := emb*fc + fc
	down := fc*emb + emb
	return up + down
}

func layerNormParams(emb int64) int64 {
	return 2 * emb // scale and bias
}
