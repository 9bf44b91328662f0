package ssh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/sftp"
)

// Upload copies a local file to the remote host over SFTP, creating the
// remote parent directory and preserving the file mode.
func (c *Channel) Upload(ctx context.Context, localPath, remotePath string) error {
	client, err := c.sftpClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening local file: %w", err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat local file: %w", err)
	}

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return fmt.Errorf("creating remote directory %s: %w", dir, err)
		}
	}

	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("creating remote file %s: %w", remotePath, err)
	}
	defer func() { _ = dst.Close() }()

	written, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("writing remote file %s: %w", remotePath, err)
	}

	if err := dst.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", remotePath, err)
	}

	c.logger.Debug("uploaded file",
		slog.String("local", localPath),
		slog.String("remote", remotePath),
		slog.Int64("bytes", written),
	)
	return nil
}

// Download copies a remote file to the local filesystem over SFTP.
func (c *Channel) Download(ctx context.Context, remotePath, localPath string) error {
	client, err := c.sftpClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	src, err := client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("opening remote file %s: %w", remotePath, err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat remote file %s: %w", remotePath, err)
	}

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating local directory %s: %w", dir, err)
		}
	}

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating local file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	written, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("writing local file: %w", err)
	}

	c.logger.Debug("downloaded file",
		slog.String("remote", remotePath),
		slog.String("local", localPath),
		slog.Int64("bytes", written),
	)
	return nil
}

func (c *Channel) sftpClient(ctx context.Context) (*sftp.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("starting SFTP subsystem: %w", err)
	}
	return client, nil
}
