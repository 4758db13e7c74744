// Package arch registers the transformer architectures the broker can
// schedule pruning runs for, with the dimensions the group ledger and
// the FLOPs estimate are derived from.
package arch

import (
	"sort"

	"github.com/ds-ai96/SRP/common/errors"
)

type Architecture struct {
	Name          string `json:"name"`
	EncoderLayers int    `json:"encoderLayers"`
	DecoderLayers int    `json:"decoderLayers"`
	EmbedDim      int    `json:"embedDim"`
	FFNDim        int    `json:"ffnDim"`
	Heads         int    `json:"heads"`
	SrcVocab      int    `json:"srcVocab"`
	TgtVocab      int    `json:"tgtVocab"`
	MaxPositions  int    `json:"maxPositions"`

	// SampleLen is the reference sentence length used for the FLOPs
	// estimate of one forward pass.
	SampleLen int `json:"sampleLen"`
}

var registry = map[string]Architecture{
	"spt_iwslt_de_en": {
		Name:          "spt_iwslt_de_en",
		EncoderLayers: 6,
		DecoderLayers: 6,
		EmbedDim:      512,
		FFNDim:        1024,
		Heads:         4,
		SrcVocab:      8848,
		TgtVocab:      6632,
		MaxPositions:  1024,
		SampleLen:     50,
	},
	"spt_wmt_en_de": {
		Name:          "spt_wmt_en_de",
		EncoderLayers: 6,
		DecoderLayers: 6,
		EmbedDim:      512,
		FFNDim:        2048,
		Heads:         8,
		SrcVocab:      32768,
		TgtVocab:      32768,
		MaxPositions:  1024,
		SampleLen:     50,
	},
}

func Get(name string) (Architecture, error) {
	a, ok := registry[name]
	if !ok {
		return Architecture{}, errors.Errorf("unknown architecture %q", name)
	}
	return a, nil
}

func List() []Architecture {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	archs := make([]Architecture, 0, len(names))
	for _, name := range names {
		archs = append(archs, registry[name])
	}
	return archs
}
