package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ds-ai96/SRP/internal/launch"
)

func TestNewScheduleRejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := NewSchedule(launch.Schedule{Iter: 0, Period: 2, Decreasing: launch.DecreasingEpoch})
	assert.Error(t, err)

	_, err = NewSchedule(launch.Schedule{Iter: 3, Period: 0, Decreasing: launch.DecreasingEpoch})
	assert.Error(t, err)

	_, err = NewSchedule(launch.Schedule{Iter: 3, Period: 2, Decreasing: "x"})
	assert.Error(t, err)
}

func TestPhaseAt(t *testing.T) {
	t.Parallel()

	s, err := NewSchedule(launch.Schedule{
		WarmupEpochs: 2,
		Iter:         3,
		Period:       2,
		Decreasing:   launch.DecreasingEpoch,
	})
	require.NoError(t, err)

	cases := []struct {
		epoch int
		phase Phase
		fires bool
	}{
		{1, PhaseWarmingUp, false},
		{2, PhaseWarmingUp, false},
		{3, PhasePruning, false},
		{4, PhasePruning, true},
		{5, PhasePruning, false},
		{6, PhasePruning, true},
		{8, PhasePruning, true},
		{9, PhaseFineTuning, false},
		{100, PhaseFineTuning, false},
	}
	for _, tc := range cases {
		phase, fires := s.PhaseAt(tc.epoch)
		assert.Equal(t, tc.phase, phase, "epoch %d", tc.epoch)
		assert.Equal(t, tc.fires, fires, "epoch %d", tc.epoch)
	}
}

func TestNoWarmupStartsPruning(t *testing.T) {
	t.Parallel()

	s, err := NewSchedule(launch.Schedule{Iter: 2, Period: 1, Decreasing: launch.DecreasingStep})
	require.NoError(t, err)

	phase, fires := s.PhaseAt(1)
	assert.Equal(t, PhasePruning, phase)
	assert.True(t, fires)

	phase, _ = s.PhaseAt(3)
	assert.Equal(t, PhaseFineTuning, phase)
}

func TestEvents(t *testing.T) {
	t.Parallel()

	s, err := NewSchedule(launch.Schedule{
		WarmupEpochs: 5,
		Iter:         4,
		Period:       3,
		Decreasing:   launch.DecreasingEpoch,
	})
	require.NoError(t, err)

	assert.Equal(t, []int{8, 11, 14, 17}, s.Events())

	assert.Equal(t, 0, s.EventIndex(8))
	assert.Equal(t, 3, s.EventIndex(17))
	assert.Equal(t, -1, s.EventIndex(9))
	assert.Equal(t, -1, s.EventIndex(5))
	assert.Equal(t, -1, s.EventIndex(20))
}

func TestPhaseInitial(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "w", PhaseWarmingUp.Initial())
	assert.Equal(t, "p", PhasePruning.Initial())
	assert.Equal(t, "f", PhaseFineTuning.Initial())
}
