package runner

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"syscall"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/config"
	"github.com/ds-ai96/SRP/internal/launch"
)

// Local runs the trainer as a child process with stdout and stderr
// merged into one line stream. On ctx cancellation the whole process
// group is killed so worker subprocesses do not survive the run.
type Local struct {
	conf   config.Runner
	logger log.Logger
}

func NewLocal(conf config.Runner, logger log.Logger) *Local {
	return &Local{conf: conf, logger: logger}
}

func (l *Local) Run(ctx context.Context, spec *launch.TrainSpec, taskDir string, sink Sink) error {
	return l.runArgv(ctx, spec.Command(l.conf.PythonBinary, l.conf.TrainScript), spec.Env(), taskDir, sink)
}

func (l *Local) Generate(ctx context.Context, spec *launch.TrainSpec, taskDir, checkpointPath string, sink Sink) error {
	return l.runArgv(ctx, spec.GenerateCommand(l.conf.PythonBinary, l.conf.GenScript, checkpointPath), spec.Env(), taskDir, sink)
}

func (l *Local) runArgv(ctx context.Context, argv, env []string, taskDir string, sink Sink) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = taskDir
	cmd.Env = append(os.Environ(), env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "stdout pipe")
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start trainer")
	}

	killed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// Negative pid signals the process group.
			if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
				l.logger.Warnf("failed to kill trainer process group: %v", err)
			}
		case <-killed:
		}
	}()

	scanErr := scanLines(stdout, sink)
	if scanErr != nil {
		// The sink aborted the run; take the trainer down with it.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	waitErr := cmd.Wait()
	close(killed)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if scanErr != nil {
		return scanErr
	}
	if waitErr != nil {
		return errors.Wrap(waitErr, "trainer exited")
	}
	return nil
}

func scanLines(r interface{ Read([]byte) (int, error) }, sink Sink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := sink.Line(scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}
