package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eugenetaranov/rouster/internal/channel"
	"github.com/eugenetaranov/rouster/pkg/listing"
)

// File returns the listing entry for path on the machine, from ls -ld.
func (s *Session) File(ctx context.Context, path string) (*listing.Entry, error) {
	res, err := s.RunRemote(ctx, "ls -ld "+channel.Quote(path))
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(res.Output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return listing.Parse(line)
	}
	return nil, fmt.Errorf("ls -ld %s: %w", path, listing.ErrMalformed)
}

// stat is File with a failing ls reported as a nil entry.
func (s *Session) stat(ctx context.Context, path string) (*listing.Entry, error) {
	entry, err := s.File(ctx, path)
	var remoteErr *RemoteExecutionError
	if errors.As(err, &remoteErr) {
		return nil, nil
	}
	return entry, err
}

// IsDir reports whether path exists and is a directory.
func (s *Session) IsDir(ctx context.Context, path string) (bool, error) {
	entry, err := s.stat(ctx, path)
	if entry == nil {
		return false, err
	}
	return entry.IsDirectory, nil
}

// IsFile reports whether path exists and is a regular file.
func (s *Session) IsFile(ctx context.Context, path string) (bool, error) {
	entry, err := s.stat(ctx, path)
	if entry == nil {
		return false, err
	}
	return entry.IsFile, nil
}

// IsReadable reports whether class has read permission on path.
func (s *Session) IsReadable(ctx context.Context, path string, class listing.Class) (bool, error) {
	return s.permission(ctx, path, class, func(e *listing.Entry) [3]bool { return e.Readable })
}

// IsWritable reports whether class has write permission on path.
func (s *Session) IsWritable(ctx context.Context, path string, class listing.Class) (bool, error) {
	return s.permission(ctx, path, class, func(e *listing.Entry) [3]bool { return e.Writable })
}

// IsExecutable reports whether class has execute permission on path.
func (s *Session) IsExecutable(ctx context.Context, path string, class listing.Class) (bool, error) {
	return s.permission(ctx, path, class, func(e *listing.Entry) [3]bool { return e.Executable })
}

func (s *Session) permission(ctx context.Context, path string, class listing.Class, bits func(*listing.Entry) [3]bool) (bool, error) {
	if class < listing.Owner || class > listing.Other {
		return false, fmt.Errorf("invalid permission class %d", class)
	}
	entry, err := s.stat(ctx, path)
	if entry == nil {
		return false, err
	}
	return bits(entry)[class], nil
}
