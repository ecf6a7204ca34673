package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Client is the interface for running external commands on behalf of a stage
type Client interface {
	RunCommand(ctx context.Context, dir string, env []string, command string, args ...string) (output string, err error)
	StartCommand(ctx context.Context, dir string, env []string, command string, args ...string) (RunningCommand, error)
}

// RunningCommand is a handle to a long-lived background process, such as a
// port-forward tunnel, that the caller stops when done with it
type RunningCommand interface {
	Stop() error
}

// NewClient returns a new shell.Client
func NewClient() Client {
	return &client{}
}

type client struct {
}

func (c *client) RunCommand(ctx context.Context, dir string, env []string, command string, args ...string) (output string, err error) {

	log.Debug().Msgf("Running command '%v %v'", command, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	outputBytes, err := cmd.CombinedOutput()
	output = string(outputBytes)

	if err != nil {
		return output, fmt.Errorf("command '%v %v' failed: %w: %v", command, strings.Join(args, " "), err, lastOutputLines(output, 5))
	}

	return output, nil
}

func (c *client) StartCommand(ctx context.Context, dir string, env []string, command string, args ...string) (RunningCommand, error) {

	log.Debug().Msgf("Starting command '%v %v'", command, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting command '%v %v' failed: %w", command, strings.Join(args, " "), err)
	}

	return &runningCommand{cmd: cmd}, nil
}

type runningCommand struct {
	cmd *exec.Cmd
}

func (rc *runningCommand) Stop() error {

	if rc.cmd.Process == nil {
		return nil
	}

	if err := rc.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	// reap the process, the kill error is the one that matters
	_ = rc.cmd.Wait()

	return nil
}

func lastOutputLines(output string, max int) string {

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}

	return strings.Join(lines, "\n")
}
