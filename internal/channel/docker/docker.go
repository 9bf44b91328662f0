// Package docker provides a channel for executing commands in Docker containers.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/eugenetaranov/rouster/internal/channel"
)

// Channel executes commands inside a running container.
type Channel struct {
	container string
	user      string
	workdir   string
	env       map[string]string
	binary    string
}

// Option configures the Docker channel.
type Option func(*Channel)

// WithUser sets the user for unprivileged command execution.
func WithUser(user string) Option {
	return func(c *Channel) {
		c.user = user
	}
}

// WithWorkdir sets the working directory for command execution.
func WithWorkdir(dir string) Option {
	return func(c *Channel) {
		c.workdir = dir
	}
}

// WithEnv adds an environment variable for command execution.
func WithEnv(key, value string) Option {
	return func(c *Channel) {
		c.env[key] = value
	}
}

// WithBinary overrides the docker CLI binary (e.g. podman).
func WithBinary(path string) Option {
	return func(c *Channel) {
		c.binary = path
	}
}

// New creates a new Docker channel for the specified container.
func New(container string, opts ...Option) *Channel {
	c := &Channel{
		container: container,
		env:       make(map[string]string),
		binary:    "docker",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ExecuteUnprivileged runs a command as the configured container user.
func (c *Channel) ExecuteUnprivileged(ctx context.Context, command string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	return c.execute(ctx, command, c.user, opts, fn)
}

// ExecutePrivileged runs a command as root inside the container.
func (c *Channel) ExecutePrivileged(ctx context.Context, command string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	return c.execute(ctx, command, "root", opts, fn)
}

func (c *Channel) execute(ctx context.Context, command, user string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	execCmd := exec.CommandContext(ctx, c.binary, c.buildExecArgs(command, user)...)
	execCmd.Stdout, execCmd.Stderr = channel.Writers(fn)

	err := execCmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute command in container: %w", err)
		}
		code := channel.Code(exitErr.ExitCode())
		return code, opts.Check(command, code)
	}

	return channel.Code(0), nil
}

// buildExecArgs builds the docker exec command arguments.
func (c *Channel) buildExecArgs(command, user string) []string {
	args := []string{"exec", "-i"}

	if user != "" {
		args = append(args, "-u", user)
	}

	if c.workdir != "" {
		args = append(args, "-w", c.workdir)
	}

	// Sorted for a stable command line
	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, c.env[k]))
	}

	return append(args, c.container, "/bin/sh", "-c", command)
}

// IsReady reports whether the container exists and is running.
func (c *Channel) IsReady(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, c.binary, "inspect", "-f", "{{.State.Running}}", c.container)
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "true"
}

// Upload copies a local file into the container.
func (c *Channel) Upload(ctx context.Context, localPath, remotePath string) error {
	return c.copy(ctx, localPath, fmt.Sprintf("%s:%s", c.container, remotePath))
}

// Download copies a file out of the container.
func (c *Channel) Download(ctx context.Context, remotePath, localPath string) error {
	return c.copy(ctx, fmt.Sprintf("%s:%s", c.container, remotePath), localPath)
}

func (c *Channel) copy(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, c.binary, "cp", src, dst)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker cp %s %s: %s: %w", src, dst, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// Close is a no-op for Docker channels.
func (c *Channel) Close() error {
	return nil
}

// String returns a description of the channel.
func (c *Channel) String() string {
	if c.user != "" {
		return fmt.Sprintf("docker://%s@%s", c.user, c.container)
	}
	return fmt.Sprintf("docker://%s", c.container)
}

// Ensure Channel implements the channel.Channel interface.
var _ channel.Channel = (*Channel)(nil)
