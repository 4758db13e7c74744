// Package runner executes the external trainer, locally or inside a
// container, streaming its output line by line into a sink.
package runner

import (
	"context"

	"github.com/ds-ai96/SRP/internal/launch"
)

// Sink receives every output line of the running trainer. Returning an
// error from Line aborts the run.
type Sink interface {
	Line(line string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(line string) error

func (f SinkFunc) Line(line string) error { return f(line) }

// Runner launches the trainer described by spec with the task directory
// taskDir bound in, and blocks until it exits or ctx is done. Generate
// runs the generation script against a checkpoint in the same
// environment, so docker-mode hosts never need a local interpreter.
type Runner interface {
	Run(ctx context.Context, spec *launch.TrainSpec, taskDir string, sink Sink) error
	Generate(ctx context.Context, spec *launch.TrainSpec, taskDir, checkpointPath string, sink Sink) error
}
