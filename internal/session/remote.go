package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/eugenetaranov/rouster/internal/channel"
	"github.com/eugenetaranov/rouster/internal/metrics"
)

// RunRemote runs command on the machine, through sudo when the session's
// policy says so. Output from both streams is accumulated in arrival order.
func (s *Session) RunRemote(ctx context.Context, command string) (*Result, error) {
	if s.channel == nil {
		return nil, &InternalError{Message: "no channel configured for remote execution"}
	}

	execute := s.channel.ExecuteUnprivileged
	if s.sudo {
		execute = s.channel.ExecutePrivileged
	}

	var out strings.Builder
	collect := func(_ channel.Stream, data string) {
		out.WriteString(data)
	}

	s.logger.Debug("running remote command",
		slog.String("command", command),
		slog.Bool("sudo", s.sudo),
		slog.String("channel", s.channel.String()),
	)
	start := time.Now()

	// The exit code is checked here so the output of failed commands is kept.
	code, err := execute(ctx, command, channel.Options{ErrorCheck: false}, collect)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveCommand(metrics.LocationRemote, metrics.ResultError, elapsed)
		return nil, &SSHConnectionError{Op: "run", Path: command, Err: err, Output: out.String()}
	}

	exit := 0
	if code == nil {
		s.logger.Warn("channel reported no exit status, assuming success",
			slog.String("command", command),
		)
	} else {
		exit = *code
	}

	output := out.String()
	if exit != 0 {
		s.metrics.ObserveCommand(metrics.LocationRemote, metrics.ResultFailure, elapsed)
		return nil, &RemoteExecutionError{Command: command, ExitCode: exit, Output: output}
	}

	s.metrics.ObserveCommand(metrics.LocationRemote, metrics.ResultSuccess, elapsed)
	return s.record(exit, output), nil
}

// IsReachable reports whether a remote command could run right now. Every
// call probes the channel afresh.
func (s *Session) IsReachable(ctx context.Context) bool {
	if s.channel == nil {
		return false
	}
	return s.channel.IsReady(ctx)
}

// RestartCommand reboots a Unix machine.
const RestartCommand = "/sbin/shutdown -rf now"

// Restart reboots the machine. A reboot may cut the connection before an exit
// status arrives, so a broken channel counts as success unless ctx ended.
func (s *Session) Restart(ctx context.Context) error {
	s.logger.Debug("restarting machine")

	_, err := s.RunRemote(ctx, RestartCommand)
	var connErr *SSHConnectionError
	if errors.As(err, &connErr) && ctx.Err() == nil {
		s.logger.Debug("connection dropped by restart", slog.String("error", connErr.Err.Error()))
		return nil
	}
	return err
}
