package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func bleuAt(epoch int, bleu float64) Validation {
	return Validation{Epoch: epoch, BLEU: bleu, HasBLEU: true}
}

func TestTrackerPatience(t *testing.T) {
	t.Parallel()

	tr := NewTracker(MetricBLEU, true, 2)

	assert.False(t, tr.Observe(bleuAt(1, 20)))
	assert.False(t, tr.Observe(bleuAt(2, 25)))
	assert.False(t, tr.Observe(bleuAt(3, 24))) // first miss
	assert.True(t, tr.Observe(bleuAt(4, 23))) // second miss, stop

	value, epoch, ok := tr.Best()
	assert.True(t, ok)
	assert.Equal(t, 25.0, value)
	assert.Equal(t, 2, epoch)
}

func TestTrackerImprovementResetsPatience(t *testing.T) {
	t.Parallel()

	tr := NewTracker(MetricBLEU, true, 2)

	tr.Observe(bleuAt(1, 20))
	tr.Observe(bleuAt(2, 19))
	assert.False(t, tr.Observe(bleuAt(3, 21))) // improvement resets
	assert.False(t, tr.Observe(bleuAt(4, 20)))
	assert.True(t, tr.Observe(bleuAt(5, 20)))
}

func TestTrackerMissingMetricNeverCounts(t *testing.T) {
	t.Parallel()

	tr := NewTracker(MetricBLEU, true, 1)

	tr.Observe(bleuAt(1, 20))
	for i := 0; i < 10; i++ {
		assert.False(t, tr.Observe(Validation{Epoch: 2 + i, Loss: 5, HasLoss: true}))
	}
}

func TestTrackerPatienceDisabled(t *testing.T) {
	t.Parallel()

	tr := NewTracker(MetricLoss, false, 0)

	tr.Observe(Validation{Epoch: 1, Loss: 3, HasLoss: true})
	for i := 0; i < 50; i++ {
		assert.False(t, tr.Observe(Validation{Epoch: 2 + i, Loss: 4, HasLoss: true}))
	}
}

func TestTrackerMinimizesLoss(t *testing.T) {
	t.Parallel()

	tr := NewTracker(MetricLoss, false, 3)

	tr.Observe(Validation{Epoch: 1, Loss: 5, HasLoss: true})
	tr.Observe(Validation{Epoch: 2, Loss: 4, HasLoss: true})
	tr.Observe(Validation{Epoch: 3, Loss: 4.5, HasLoss: true})

	value, epoch, ok := tr.Best()
	assert.True(t, ok)
	assert.Equal(t, 4.0, value)
	assert.Equal(t, 2, epoch)
}

func TestTrackerBestBeforeObservation(t *testing.T) {
	t.Parallel()

	tr := NewTracker(MetricBLEU, true, 0)
	_, _, ok := tr.Best()
	assert.False(t, ok)
}

func TestCheckStop(t *testing.T) {
	t.Parallel()

	tr := NewTracker(MetricBLEU, true, 0)
	tr.MaxUpdate = 1000
	tr.StopMinLR = 1e-5
	tr.StopTimeHours = 2

	stop, reason := tr.CheckStop(500, 0.001, 1)
	assert.False(t, stop)
	assert.Empty(t, reason)

	stop, reason = tr.CheckStop(1000, 0.001, 1)
	assert.True(t, stop)
	assert.Contains(t, reason, "max update")

	stop, reason = tr.CheckStop(500, 1e-6, 1)
	assert.True(t, stop)
	assert.Contains(t, reason, "minimum")

	stop, reason = tr.CheckStop(500, 0.001, 2.5)
	assert.True(t, stop)
	assert.Contains(t, reason, "exceeded")
}

func TestCheckStopDisabledConditions(t *testing.T) {
	t.Parallel()

	tr := NewTracker(MetricBLEU, true, 0)

	// Zero limits disable every condition; an unset LR never trips the
	// minimum-LR stop.
	stop, _ := tr.CheckStop(1e9, 0, 1e6)
	assert.False(t, stop)
}
