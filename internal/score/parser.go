// Package score follows a run's training output: it parses the
// trainer's validation records, tracks the best checkpoint metric and
// decides when the run should stop.
package score

import (
	"strconv"
	"strings"
)

// Validation is one end-of-epoch validation record scraped from the
// trainer's output. Fields that did not appear on the line keep their
// zero value; Has reports which ones were seen.
type Validation struct {
	Epoch      int
	Loss       float64
	BLEU       float64
	LR         float64
	NumUpdates int64

	HasLoss bool
	HasBLEU bool
}

// PhaseMark is the trainer's per-epoch phase announcement.
type PhaseMark struct {
	Epoch int
	Phase string
}

// Parser scans the trainer's interleaved output for the records the
// broker cares about, tolerating arbitrary noise between and within
// lines.
type Parser struct{}

// ParseValidation recognizes pipe-separated validation lines such as
//
//	epoch 003 | valid on 'valid' subset | loss 4.85 | bleu 27.33 | lr 0.0005 | num_updates 12000
//
// and reports ok=false for anything else.
func (p *Parser) ParseValidation(line string) (Validation, bool) {
	if !strings.Contains(line, "valid") {
		return Validation{}, false
	}

	fields := splitFields(line)
	v := Validation{}
	seen := false
	for key, raw := range fields {
		switch key {
		case "epoch":
			if n, err := strconv.Atoi(raw); err == nil {
				v.Epoch = n
				seen = true
			}
		case "loss":
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				v.Loss = f
				v.HasLoss = true
			}
		case "bleu":
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				v.BLEU = f
				v.HasBLEU = true
			}
		case "lr":
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				v.LR = f
			}
		case "num_updates":
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				v.NumUpdates = n
			}
		}
	}

	if !seen || (!v.HasLoss && !v.HasBLEU) {
		return Validation{}, false
	}
	return v, true
}

// ParsePhase recognizes the trainer's "Epoch N | phase: X" lines.
func (p *Parser) ParsePhase(line string) (PhaseMark, bool) {
	idx := strings.Index(line, "phase:")
	if idx < 0 {
		return PhaseMark{}, false
	}

	phase := strings.TrimSpace(line[idx+len("phase:"):])
	if phase == "" {
		return PhaseMark{}, false
	}

	mark := PhaseMark{Phase: phase}
	for _, token := range strings.Fields(line[:idx]) {
		if n, err := strconv.Atoi(token); err == nil {
			mark.Epoch = n
		}
	}
	return mark, true
}

// IsPruneMark recognizes the trainer's pruning-event announcement.
func (p *Parser) IsPruneMark(line string) bool {
	return strings.Contains(line, "Perform pruning")
}

// splitFields turns "a 1 | b 2.5 | c on 'valid' subset" into key/value
// pairs, keeping the last token of multi-word segments as the value.
func splitFields(line string) map[string]string {
	fields := make(map[string]string)
	for _, segment := range strings.Split(line, "|") {
		tokens := strings.Fields(segment)
		if len(tokens) < 2 {
			continue
		}
		fields[tokens[0]] = tokens[len(tokens)-1]
	}
	return fields
}
