package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/eugenetaranov/rouster/internal/channel"
	"github.com/eugenetaranov/rouster/internal/metrics"
)

// sideChannelSeq keeps side-channel names unique between sessions of one
// process.
var sideChannelSeq atomic.Uint64

// sideChannelPath names the capture file <temp-dir>/rouster.<unix-time>.<pid>.<seq>.
// The sequence suffix separates calls made within the same second by one
// process.
func (s *Session) sideChannelPath() string {
	name := fmt.Sprintf("rouster.%d.%d.%d", time.Now().Unix(), os.Getpid(), sideChannelSeq.Add(1))
	return filepath.Join(s.tempDir, name)
}

// RunLocal runs command through the host shell with stdout and stderr
// redirected to a side-channel file. The file is read and removed before
// RunLocal returns, whatever the outcome.
func (s *Session) RunLocal(ctx context.Context, command string) (*Result, error) {
	file := s.sideChannelPath()

	// Creating the file up front separates an unusable temp dir, an internal
	// fault, from a command the shell rejects before redirecting.
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		s.metrics.ObserveCommand(metrics.LocationLocal, metrics.ResultError, 0)
		return nil, &InternalError{Message: fmt.Sprintf("creating side-channel file %s", file), Err: err}
	}
	_ = f.Close()

	wrapped := fmt.Sprintf("{ %s\n} > %s 2>&1", command, channel.Quote(file))

	s.logger.Debug("running local command", slog.String("command", command))
	start := time.Now()

	// The shell's own diagnostics (syntax errors, a failed redirection) never
	// reach the side-channel file.
	var shellErr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.shell, "-c", wrapped)
	cmd.Stderr = &shellErr

	runErr := cmd.Run()
	elapsed := time.Since(start)

	data, readErr := os.ReadFile(file)
	if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.metrics.ObserveCommand(metrics.LocationLocal, metrics.ResultError, elapsed)
		return nil, &InternalError{Message: fmt.Sprintf("removing side-channel file %s", file), Err: err}
	}

	code := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			s.metrics.ObserveCommand(metrics.LocationLocal, metrics.ResultError, elapsed)
			return nil, &InternalError{Message: "starting local shell", Err: runErr}
		}
		code = exitErr.ExitCode()
	}

	if readErr != nil {
		if code != 0 && errors.Is(readErr, fs.ErrNotExist) {
			s.metrics.ObserveCommand(metrics.LocationLocal, metrics.ResultFailure, elapsed)
			return nil, &LocalExecutionError{Command: command, ExitCode: code, Output: shellErr.String()}
		}
		s.metrics.ObserveCommand(metrics.LocationLocal, metrics.ResultError, elapsed)
		return nil, &InternalError{Message: fmt.Sprintf("reading side-channel file %s", file), Err: readErr}
	}

	output := string(data) + shellErr.String()
	if code != 0 {
		s.metrics.ObserveCommand(metrics.LocationLocal, metrics.ResultFailure, elapsed)
		return nil, &LocalExecutionError{Command: command, ExitCode: code, Output: output}
	}

	s.metrics.ObserveCommand(metrics.LocationLocal, metrics.ResultSuccess, elapsed)
	s.logger.Debug("local command finished",
		slog.String("command", command),
		slog.Duration("elapsed", elapsed),
	)
	return s.record(code, output), nil
}
