package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/eugenetaranov/rouster/internal/metrics"
)

// Send uploads localPath to the machine. An empty remotePath uploads to the
// base name of localPath. The local file is checked before the machine is
// contacted.
func (s *Session) Send(ctx context.Context, localPath, remotePath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return &FileTransferError{Op: "send", Path: localPath, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &FileTransferError{Op: "send", Path: localPath, Err: errors.New("not a regular file")}
	}

	if remotePath == "" {
		remotePath = filepath.Base(localPath)
	}

	if err := s.ensureReachable(ctx, "send", remotePath); err != nil {
		s.metrics.ObserveTransfer(metrics.DirectionSend, metrics.ResultError)
		return err
	}

	s.logger.Debug("sending file",
		slog.String("local", localPath),
		slog.String("remote", remotePath),
	)

	if err := s.channel.Upload(ctx, localPath, remotePath); err != nil {
		s.metrics.ObserveTransfer(metrics.DirectionSend, metrics.ResultError)
		return &SSHConnectionError{Op: "send", Path: remotePath, Err: err}
	}

	s.metrics.ObserveTransfer(metrics.DirectionSend, metrics.ResultSuccess)
	return nil
}

// Fetch downloads remotePath from the machine. An empty localPath downloads
// to the base name of remotePath in the working directory.
func (s *Session) Fetch(ctx context.Context, remotePath, localPath string) error {
	if localPath == "" {
		localPath = path.Base(remotePath)
	}

	if err := s.ensureReachable(ctx, "fetch", remotePath); err != nil {
		s.metrics.ObserveTransfer(metrics.DirectionFetch, metrics.ResultError)
		return err
	}

	s.logger.Debug("fetching file",
		slog.String("remote", remotePath),
		slog.String("local", localPath),
	)

	if err := s.channel.Download(ctx, remotePath, localPath); err != nil {
		s.metrics.ObserveTransfer(metrics.DirectionFetch, metrics.ResultError)
		return &SSHConnectionError{Op: "fetch", Path: remotePath, Err: err}
	}

	s.metrics.ObserveTransfer(metrics.DirectionFetch, metrics.ResultSuccess)
	return nil
}

func (s *Session) ensureReachable(ctx context.Context, op, target string) error {
	if s.channel == nil {
		return &InternalError{Message: fmt.Sprintf("no channel configured for %s", op)}
	}
	if !s.channel.IsReady(ctx) {
		return &SSHConnectionError{Op: op, Path: target, Err: ErrUnavailable}
	}
	return nil
}
