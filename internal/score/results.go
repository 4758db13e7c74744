package score

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ds-ai96/SRP/internal/prune"
)

// ResultWriter appends one CSV row per epoch to the run's results file,
// mirroring the trainer's res_files format:
//
//	<phase initial>,<epoch>,<group widths...>,<params>,<valid metric>
type ResultWriter struct {
	path string
}

func NewResultWriter(path string) *ResultWriter {
	return &ResultWriter{path: path}
}

func (w *ResultWriter) Path() string { return w.path }

func (w *ResultWriter) Append(phase prune.Phase, epoch int, widths []prune.GroupWidth, params int64, metric float64) error {
	parts := []string{phase.Initial(), strconv.Itoa(epoch)}
	for _, g := range widths {
		parts = append(parts, strconv.Itoa(g.Width))
	}
	parts = append(parts, strconv.FormatInt(params, 10), fmt.Sprintf("%g", metric))

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(strings.Join(parts, ",") + "\n")
	return err
}
