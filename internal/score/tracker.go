package score

import "fmt"

// Metric names the checkpoint-selection criterion.
const (
	MetricBLEU = "bleu"
	MetricLoss = "loss"
)

// Tracker implements the trainer's stopping semantics: best-metric
// tracking with patience, plus the max-update, minimum-LR and
// cumulative-hours stop conditions.
type Tracker struct {
	Metric   string
	Maximize bool

	// Patience <= 0 disables early stopping.
	Patience int

	MaxUpdate     int64
	StopMinLR     float64
	StopTimeHours float64

	best      *float64
	bestEpoch int
	runs      int
}

func NewTracker(metric string, maximize bool, patience int) *Tracker {
	return &Tracker{Metric: metric, Maximize: maximize, Patience: patience}
}

// Best reports the best observed metric value and the epoch that
// produced it; ok is false before the first observation.
func (t *Tracker) Best() (value float64, epoch int, ok bool) {
	if t.best == nil {
		return 0, 0, false
	}
	return *t.best, t.bestEpoch, true
}

func (t *Tracker) metricValue(v Validation) (float64, bool) {
	switch t.Metric {
	case MetricBLEU:
		return v.BLEU, v.HasBLEU
	default:
		return v.Loss, v.HasLoss
	}
}

func (t *Tracker) isBetter(a, b float64) bool {
	if t.Maximize {
		return a > b
	}
	return a < b
}

// Observe records one validation and reports whether the run should
// stop early. A validation missing the tracked metric never counts
// against patience.
func (t *Tracker) Observe(v Validation) (stop bool) {
	value, ok := t.metricValue(v)
	if !ok {
		return false
	}

	if t.best == nil || t.isBetter(value, *t.best) {
		t.best = &value
		t.bestEpoch = v.Epoch
		t.runs = 0
		return false
	}

	if t.Patience <= 0 {
		return false
	}

	t.runs++
	return t.runs >= t.Patience
}

// CheckStop evaluates the non-patience stop conditions against the
// latest progress counters; reason is empty when the run continues.
func (t *Tracker) CheckStop(numUpdates int64, lr float64, trainedHours float64) (bool, string) {
	if t.MaxUpdate > 0 && numUpdates >= t.MaxUpdate {
		return true, fmt.Sprintf("num_updates %d reached max update %d", numUpdates, t.MaxUpdate)
	}
	if t.StopMinLR > 0 && lr > 0 && lr <= t.StopMinLR {
		return true, fmt.Sprintf("learning rate %v reached minimum %v", lr, t.StopMinLR)
	}
	if t.StopTimeHours > 0 && trainedHours > t.StopTimeHours {
		return true, fmt.Sprintf("training time %.1fh exceeded limit %.1fh", trainedHours, t.StopTimeHours)
	}
	return false, ""
}
