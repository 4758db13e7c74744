// Package prune tracks the pruning schedule of a run and the group
// ledger of the transformer being compressed.
package prune

import (
	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/internal/launch"
)

type Phase string

const (
	PhaseWarmingUp  Phase = "warming-up"
	PhasePruning    Phase = "pruning"
	PhaseFineTuning Phase = "fine-tuning"
)

// Initial is the single-letter prefix written into result rows.
func (p Phase) Initial() string { return string(p[0]) }

// Schedule is the epoch-indexed phase machine of one run: warmup epochs
// first, then Iter*Period pruning epochs with an event at the end of
// every Period-th one, then fine-tuning until the run stops.
type Schedule struct {
	Warmup     int
	Iter       int
	Period     int
	Decreasing launch.DecreasingMode
}

func NewSchedule(s launch.Schedule) (*Schedule, error) {
	if s.Iter <= 0 || s.Period <= 0 {
		return nil, errors.Errorf("invalid schedule: iter=%d period=%d", s.Iter, s.Period)
	}
	switch s.Decreasing {
	case launch.DecreasingEpoch, launch.DecreasingStep:
	default:
		return nil, errors.Errorf("unknown decreasing mode %q", s.Decreasing)
	}
	return &Schedule{
		Warmup:     s.WarmupEpochs,
		Iter:       s.Iter,
		Period:     s.Period,
		Decreasing: s.Decreasing,
	}, nil
}

// PhaseAt reports the phase of the given 1-based epoch and whether a
// pruning event fires at its end.
func (s *Schedule) PhaseAt(epoch int) (Phase, bool) {
	if epoch <= s.Warmup {
		return PhaseWarmingUp, false
	}

	offset := epoch - s.Warmup
	if offset <= s.Iter*s.Period {
		return PhasePruning, offset%s.Period == 0
	}
	return PhaseFineTuning, false
}

// Events lists the epochs at which pruning events fire, exactly Iter of
// them.
func (s *Schedule) Events() []int {
	events := make([]int, 0, s.Iter)
	for i := 1; i <= s.Iter; i++ {
		events = append(events, s.Warmup+i*s.Period)
	}
	return events
}

// EventIndex reports the 0-based index of the event firing at epoch, or
// -1 when none does.
func (s *Schedule) EventIndex(epoch int) int {
	phase, fire := s.PhaseAt(epoch)
	if phase != PhasePruning || !fire {
		return -1
	}
	return (epoch-s.Warmup)/s.Period - 1
}
