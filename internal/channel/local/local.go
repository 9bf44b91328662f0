// Package local provides a channel that targets the controlling host itself.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/eugenetaranov/rouster/internal/channel"
)

// Channel executes commands on the local machine.
type Channel struct {
	shell     string
	shellArgs []string
	sudoUser  string
}

// Option configures the local channel.
type Option func(*Channel)

// WithSudoUser makes privileged commands run as user instead of root.
func WithSudoUser(user string) Option {
	return func(c *Channel) {
		c.sudoUser = user
	}
}

// WithShell sets a custom shell for command execution.
func WithShell(shell string, args ...string) Option {
	return func(c *Channel) {
		c.shell = shell
		c.shellArgs = args
	}
}

// New creates a new local channel.
func New(opts ...Option) *Channel {
	c := &Channel{}

	switch runtime.GOOS {
	case "windows":
		c.shell = "cmd"
		c.shellArgs = []string{"/C"}
	default:
		c.shell = "/bin/sh"
		c.shellArgs = []string{"-c"}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ExecuteUnprivileged runs a command as the current user.
func (c *Channel) ExecuteUnprivileged(ctx context.Context, command string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	return c.execute(ctx, command, command, opts, fn)
}

// ExecutePrivileged runs a command through sudo.
func (c *Channel) ExecutePrivileged(ctx context.Context, command string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	return c.execute(ctx, command, c.sudoCommand(command), opts, fn)
}

func (c *Channel) execute(ctx context.Context, command, full string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	args := append(append([]string{}, c.shellArgs...), full)
	execCmd := exec.CommandContext(ctx, c.shell, args...)
	execCmd.Stdout, execCmd.Stderr = channel.Writers(fn)

	err := execCmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute command: %w", err)
		}
		code := channel.Code(exitErr.ExitCode())
		return code, opts.Check(command, code)
	}

	return channel.Code(0), nil
}

// sudoCommand wraps the command with sudo, non-interactively.
func (c *Channel) sudoCommand(command string) string {
	if c.sudoUser != "" {
		return fmt.Sprintf("sudo -n -u %s -- %s -c %s", c.sudoUser, c.shell, channel.Quote(command))
	}
	return fmt.Sprintf("sudo -n -- %s -c %s", c.shell, channel.Quote(command))
}

// IsReady reports whether the local platform is supported.
func (c *Channel) IsReady(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	switch runtime.GOOS {
	case "darwin", "linux":
		return true
	default:
		return false
	}
}

// Upload copies localPath to remotePath on the same host.
func (c *Channel) Upload(ctx context.Context, localPath, remotePath string) error {
	return copyFile(ctx, localPath, remotePath)
}

// Download copies remotePath to localPath on the same host.
func (c *Channel) Download(ctx context.Context, remotePath, localPath string) error {
	return copyFile(ctx, remotePath, localPath)
}

func copyFile(ctx context.Context, src, dst string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", src, err)
	}

	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to write to %s: %w", dst, err)
	}

	return out.Close()
}

// Close is a no-op for local channels.
func (c *Channel) Close() error {
	return nil
}

// String returns a description of the channel.
func (c *Channel) String() string {
	u, err := user.Current()
	if err != nil {
		return "local"
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	return fmt.Sprintf("local://%s@%s", u.Username, hostname)
}

// Ensure Channel implements the channel.Channel interface.
var _ channel.Channel = (*Channel)(nil)
