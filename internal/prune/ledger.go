package prune

import (
	"fmt"
	"sort"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/internal/arch"
)

// Family identifies one prunable group family of the transformer. The
// key strings follow the trainer's parameter naming.
type Family string

const (
	FamilyGlobalEncoder Family = "embedding"
	FamilyQK            Family = "self_attn_qk"
	FamilyVO            Family = "self_attn_vo"
	FamilyEncQK         Family = "encoder_attn_qk"
	FamilyEncVO         Family = "encoder_attn_vo"
	FamilyFC            Family = "fc"
)

// Group keys, e.g. "encoder.embedding_c" or "decoder.layers.3.fc_c".
func EmbeddingKey(side string) string { return side + ".embedding_c" }

func LayerKey(side string, layer int, family Family) string {
	return fmt.Sprintf("%s.layers.%d.%s_c", side, layer, family)
}

// Ledger tracks remaining width and removed indices per group of one
// run. All arithmetic is exact: re-applying a recorded plan reproduces
// the same widths.
type Ledger struct {
	arch    arch.Architecture
	widths  map[string]int
	removed map[string][]int
}

func NewLedger(a arch.Architecture) *Ledger {
	l := &Ledger{
		arch:    a,
		widths:  make(map[string]int),
		removed: make(map[string][]int),
	}

	l.widths[EmbeddingKey("encoder")] = a.EmbedDim
	l.widths[EmbeddingKey("decoder")] = a.EmbedDim
	for i := 0; i < a.EncoderLayers; i++ {
		l.widths[LayerKey("encoder", i, FamilyQK)] = a.EmbedDim
		l.widths[LayerKey("encoder", i, FamilyVO)] = a.EmbedDim
		l.widths[LayerKey("encoder", i, FamilyFC)] = a.FFNDim
	}
	for i := 0; i < a.DecoderLayers; i++ {
		l.widths[LayerKey("decoder", i, FamilyQK)] = a.EmbedDim
		l.widths[LayerKey("decoder", i, FamilyVO)] = a.EmbedDim
		l.widths[LayerKey("decoder", i, FamilyEncQK)] = a.EmbedDim
		l.widths[LayerKey("decoder", i, FamilyEncVO)] = a.EmbedDim
		l.widths[LayerKey("decoder", i, FamilyFC)] = a.FFNDim
	}
	return l
}

func (l *Ledger) Arch() arch.Architecture { return l.arch }

func (l *Ledger) Width(key string) int { return l.widths[key] }

func (l *Ledger) Removed(key string) []int {
	out := make([]int, len(l.removed[key]))
	copy(out, l.removed[key])
	return out
}

// GroupWidth is one entry of the ordered widths snapshot. The order
// matches the trainer's group report: global embeddings first, then
// encoder layers (qk, vo, fc), then decoder layers (qk, vo, cross qk,
// cross vo, fc).
type GroupWidth struct {
	Key   string `json:"key"`
	Width int    `json:"width"`
}

func (l *Ledger) GroupWidths() []GroupWidth {
	keys := l.orderedKeys()
	out := make([]GroupWidth, 0, len(keys))
	for _, key := range keys {
		out = append(out, GroupWidth{Key: key, Width: l.widths[key]})
	}
	return out
}

func (l *Ledger) orderedKeys() []string {
	keys := []string{EmbeddingKey("encoder"), EmbeddingKey("decoder")}
	for i := 0; i < l.arch.EncoderLayers; i++ {
		keys = append(keys,
			LayerKey("encoder", i, FamilyQK),
			LayerKey("encoder", i, FamilyVO),
			LayerKey("encoder", i, FamilyFC),
		)
	}
	for i := 0; i < l.arch.DecoderLayers; i++ {
		keys = append(keys,
			LayerKey("decoder", i, FamilyQK),
			LayerKey("decoder", i, FamilyVO),
			LayerKey("decoder", i, FamilyEncQK),
			LayerKey("decoder", i, FamilyEncVO),
			LayerKey("decoder", i, FamilyFC),
		)
	}
	return keys
}

// EventCounts is the per-family removal plan of a single pruning event:
// how many units each group of the family loses.
type EventCounts struct {
	GlobalEncoder int
	GlobalDecoder int
	QK            int
	VO            int
	FC            int
}

// PlanEvents derives the removal counts of each of the schedule's
// events from the target compression rate, per stage:
//
//	stage 0: feed-forward groups only
//	stage 1: attention groups and feed-forward
//	stage 2: global embeddings and all local groups
//
// The total to remove per family is width*rate, spread evenly over the
// events with the remainder on the earliest ones.
func PlanEvents(a arch.Architecture, stage int, rate float64, events int) ([]EventCounts, error) {
	if rate <= 0 || rate >= 1 {
		return nil, errors.Errorf("compression rate must be in (0,1), got %v", rate)
	}
	if events <= 0 {
		return nil, errors.Errorf("event count must be positive, got %d", events)
	}

	embTotal := int(float64(a.EmbedDim) * rate)
	fcTotal := int(float64(a.FFNDim) * rate)

	plans := make([]EventCounts, events)
	switch stage {
	case 0:
		spread(plans, fcTotal, func(p *EventCounts, n int) { p.FC = n })
	case 1:
		spread(plans, fcTotal, func(p *EventCounts, n int) { p.FC = n })
		spread(plans, embTotal, func(p *EventCounts, n int) { p.QK = n })
		spread(plans, embTotal, func(p *EventCounts, n int) { p.VO = n })
	case 2:
		spread(plans, fcTotal, func(p *EventCounts, n int) { p.FC = n })
		spread(plans, embTotal, func(p *EventCounts, n int) { p.QK = n })
		spread(plans, embTotal, func(p *EventCounts, n int) { p.VO = n })
		spread(plans, embTotal, func(p *EventCounts, n int) { p.GlobalEncoder = n })
		spread(plans, embTotal, func(p *EventCounts, n int) { p.GlobalDecoder = n })
	default:
		return nil, errors.Errorf("unknown pruning stage %d", stage)
	}
	return plans, nil
}

func spread(plans []EventCounts, total int, set func(*EventCounts, int)) {
	events := len(plans)
	base := total / events
	extra := total % events
	for i := range plans {
		n := base
		if i < extra {
			n++
		}
		set(&plans[i], n)
	}
}

// Scores carries per-group score vectors for one pruning event; a score
// vector's length must equal the group's current width, lowest score
// meaning least useful.
type Scores map[string][]float64

// Apply executes one pruning event: for every affected group it removes
// the planned number of lowest-scored indices. A group never shrinks
// below one unit.
func (l *Ledger) Apply(counts EventCounts, scores Scores) error {
	type removal struct {
		key   string
		count int
	}

	removals := []removal{
		{EmbeddingKey("encoder"), counts.GlobalEncoder},
		{EmbeddingKey("decoder"), counts.GlobalDecoder},
	}
	for i := 0; i < l.arch.EncoderLayers; i++ {
		removals = append(removals,
			removal{LayerKey("encoder", i, FamilyQK), counts.QK},
			removal{LayerKey("encoder", i, FamilyVO), counts.VO},
			removal{LayerKey("encoder", i, FamilyFC), counts.FC},
		)
	}
	for i := 0; i < l.arch.DecoderLayers; i++ {
		removals = append(removals,
			removal{LayerKey("decoder", i, FamilyQK), counts.QK},
			removal{LayerKey("decoder", i, FamilyVO), counts.VO},
			removal{LayerKey("decoder", i, FamilyEncQK), counts.QK},
			removal{LayerKey("decoder", i, FamilyEncVO), counts.VO},
			removal{LayerKey("decoder", i, FamilyFC), counts.FC},
		)
	}

	for _, r := range removals {
		if r.count <= 0 {
			continue
		}
		if err := l.remove(r.key, r.count, scores[r.key]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) remove(key string, count int, score []float64) error {
	width, ok := l.widths[key]
	if !ok {
		return errors.Errorf("unknown group %q", key)
	}
	if score != nil && len(score) != width {
		return errors.Errorf("group %q: score length %d != width %d", key, len(score), width)
	}

	if count > width-1 {
		count = width - 1
	}
	if count <= 0 {
		return nil
	}

	picked := lowestIndices(width, count, score)
	original := l.toOriginalIndices(key, picked)

	merged := append(l.removed[key], original...)
	sort.Ints(merged)
	for i := 1; i < len(merged); i++ {
		if merged[i] == merged[i-1] {
			return errors.Errorf("group %q: duplicate removal index %d", key, merged[i])
		}
	}

	l.removed[key] = merged
	l.widths[key] = width - count
	return nil
}

// lowestIndices picks the count lowest-scored positions in the group's
// current coordinates. Without scores the leading positions go first,
// matching the trainer's default ordering.
func lowestIndices(width, count int, score []float64) []int {
	local := make([]int, width)
	for i := range local {
		local[i] = i
	}
	if score != nil {
		sort.SliceStable(local, func(a, b int) bool { return score[local[a]] < score[local[b]] })
	}
	picked := append([]int(nil), local[:count]...)
	sort.Ints(picked)
	return picked
}

// toOriginalIndices maps indices in the group's current (compacted)
// coordinates back to the unpruned coordinate space by skipping the
// positions removed by earlier events.
func (l *Ledger) toOriginalIndices(key string, local []int) []int {
	removed := l.removed[key]
	out := make([]int, 0, len(local))

	ri, surviving := 0, 0
	li := 0
	for original := 0; li < len(local); original++ {
		if ri < len(removed) && removed[ri] == original {
			ri++
			continue
		}
		if surviving == local[li] {
			out = append(out, original)
			li++
		}
		surviving++
	}
	return out
}

// Compression reports the achieved parameter compression against the
// unpruned architecture.
func (l *Ledger) Compression() float64 {
	before := NewLedger(l.arch).ParamCount()
	after := l.ParamCount()
	if before == 0 {
		return 0
	}
	return 1 - float64(after)/float64(before)
}
