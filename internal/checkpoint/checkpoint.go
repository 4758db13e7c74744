// Package checkpoint implements the trainer's checkpoint directory
// conventions: checkpoint_last.pt, checkpoint_best.pt and numbered
// epoch checkpoints.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/ds-ai96/SRP/common/errors"
)

const (
	LastName = "checkpoint_last.pt"
	BestName = "checkpoint_best.pt"
)

var epochPattern = regexp.MustCompile(`^checkpoint(\d+)\.pt$`)

func EpochName(epoch int) string {
	return fmt.Sprintf("checkpoint%d.pt", epoch)
}

// VerifySaveDir creates the directory if needed and probes it with a
// throwaway write, so a run fails before training rather than at the
// first save.
func VerifySaveDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create checkpoint dir")
	}

	probe := filepath.Join(dir, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return errors.Wrapf(err, "checkpoint dir %s is not writable", dir)
	}
	return os.Remove(probe)
}

// ResolveRestore picks the checkpoint a run restores from: an explicit
// path if given, otherwise checkpoint_last.pt if present, otherwise
// nothing.
func ResolveRestore(dir, explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}

	last := filepath.Join(dir, LastName)
	if _, err := os.Stat(last); err == nil {
		return last, true
	}
	return "", false
}

// Best returns the path of the best checkpoint if one was saved.
func Best(dir string) (string, bool) {
	best := filepath.Join(dir, BestName)
	if _, err := os.Stat(best); err == nil {
		return best, true
	}
	return "", false
}

// ListEpochs reports the sorted epoch numbers with a checkpoint in dir.
func ListEpochs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var epochs []int
	for _, e := range entries {
		m := epochPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		epochs = append(epochs, n)
	}
	sort.Ints(epochs)
	return epochs, nil
}

// PruneOld removes epoch checkpoints beyond the newest keepLast,
// leaving checkpoint_last.pt and checkpoint_best.pt untouched.
// keepLast <= 0 keeps everything.
func PruneOld(dir string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}

	epochs, err := ListEpochs(dir)
	if err != nil {
		return err
	}
	if len(epochs) <= keepLast {
		return nil
	}

	for _, epoch := range epochs[:len(epochs)-keepLast] {
		if err := os.Remove(filepath.Join(dir, EpochName(epoch))); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
