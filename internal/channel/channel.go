// Package channel defines the interface for reaching a managed machine.
package channel

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Stream identifies which output stream a chunk came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// String returns the stream name.
func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("stream(%d)", int(s))
	}
}

// OutputFunc receives output incrementally while a command runs.
type OutputFunc func(stream Stream, data string)

// Options controls how a channel executes a command.
type Options struct {
	// ErrorCheck makes the channel return an *ExitError when the command
	// exits non-zero. Callers that need the output of failed commands
	// leave it off and inspect the exit code themselves.
	ErrorCheck bool
}

// Check returns an *ExitError for a non-zero exit when ErrorCheck is set.
func (o Options) Check(command string, exitCode *int) error {
	if !o.ErrorCheck || exitCode == nil || *exitCode == 0 {
		return nil
	}
	return &ExitError{Command: command, ExitCode: *exitCode}
}

// ExitError is returned by channels with ErrorCheck enabled.
type ExitError struct {
	Command  string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d: %s", e.ExitCode, e.Command)
}

// Channel is the interface for executing commands on, probing and moving
// files to and from a managed machine.
type Channel interface {
	// ExecuteUnprivileged runs a command as the connecting user. The
	// returned exit code is nil when the channel has no explicit status.
	ExecuteUnprivileged(ctx context.Context, command string, opts Options, fn OutputFunc) (*int, error)

	// ExecutePrivileged runs a command through sudo (or the channel's
	// equivalent).
	ExecutePrivileged(ctx context.Context, command string, opts Options, fn OutputFunc) (*int, error)

	// IsReady reports whether a command could currently run on the target.
	IsReady(ctx context.Context) bool

	// Upload copies a local file to the target.
	Upload(ctx context.Context, localPath, remotePath string) error

	// Download copies a file from the target to the local host.
	Download(ctx context.Context, remotePath, localPath string) error

	// Close releases the connection.
	Close() error

	// String returns a human-readable description of the channel.
	String() string
}

// Code returns a pointer to an exit code, for channel implementations.
func Code(code int) *int {
	return &code
}

// Quote quotes a string for safe use in a POSIX shell command.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Writers returns stdout and stderr writers that forward every write to fn.
// Writes are serialized, so fn never runs concurrently with itself.
func Writers(fn OutputFunc) (stdout, stderr io.Writer) {
	mu := &sync.Mutex{}
	return &streamWriter{stream: Stdout, fn: fn, mu: mu},
		&streamWriter{stream: Stderr, fn: fn, mu: mu}
}

type streamWriter struct {
	stream Stream
	fn     OutputFunc
	mu     *sync.Mutex
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if w.fn == nil || len(p) == 0 {
		return len(p), nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fn(w.stream, string(p))
	return len(p), nil
}
