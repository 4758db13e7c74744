package util

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/ds-ai96/SRP/common/log"
)

// RunCommand executes a command to completion and returns its stdout.
// Stderr is folded into the returned error on failure.
func RunCommand(ctx context.Context, command string, args []string, env []string, logger log.Logger) (string, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()

	stdout := stdoutBuf.String()
	stderr := stderrBuf.String()

	if err != nil {
		return "", fmt.Errorf("error executing %s: %v, stderr %s", command, err, stderr)
	}

	if logger != nil && len(stderr) > 0 {
		logger.Debug(command, args, " stderr: ", stderr)
	}

	return stdout, nil
}

// CheckPythonEnv verifies the trainer's interpreter is reachable before
// any task is scheduled.
func CheckPythonEnv(ctx context.Context, python string, logger log.Logger) error {
	out, err := RunCommand(ctx, python, []string{"--version"}, nil, logger)
	if err != nil {
		return err
	}
	if logger != nil {
		logger.Infof("python interpreter: %s", out)
	}
	return nil
}
