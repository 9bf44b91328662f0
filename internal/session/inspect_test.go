package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/rouster/internal/channel"
	"github.com/eugenetaranov/rouster/internal/channel/fake"
	"github.com/eugenetaranov/rouster/pkg/listing"
)

func inspectSession(t *testing.T) (*Session, *fake.Channel) {
	t.Helper()
	s, ch, _ := newTestSession(t)
	ch.On("ls -ld '/etc'", fake.Response{Output: "drwxr-xr-x 80 root root 4096 May 28 00:26 /etc\n", ExitCode: channel.Code(0)}).
		On("ls -ld '/usr/bin/env'", fake.Response{Output: "-rwxr-xr-x 1 root root 48536 Sep  5  2019 /usr/bin/env\n", ExitCode: channel.Code(0)}).
		On("ls -ld '/etc/shadow'", fake.Response{Output: "-rw-r----- 1 root shadow 1024 May 27 22:51 /etc/shadow\n", ExitCode: channel.Code(0)}).
		On("ls -ld '/nope'", fake.Response{Stderr: "ls: cannot access '/nope': No such file or directory\n", ExitCode: channel.Code(2)}).
		On("ls -ld '/garbage'", fake.Response{Output: "not a listing\n", ExitCode: channel.Code(0)})
	return s, ch
}

func TestFile(t *testing.T) {
	s, _ := inspectSession(t)

	entry, err := s.File(context.Background(), "/etc/shadow")
	require.NoError(t, err)
	assert.Equal(t, "0640", entry.Mode)
	assert.Equal(t, "shadow", entry.Group)
	assert.Equal(t, "1024", entry.Size)

	_, err = s.File(context.Background(), "/nope")
	assert.Equal(t, KindRemoteExecution, KindOf(err))

	_, err = s.File(context.Background(), "/garbage")
	assert.True(t, errors.Is(err, listing.ErrMalformed))
}

func TestTypePredicates(t *testing.T) {
	s, _ := inspectSession(t)
	ctx := context.Background()

	tests := []struct {
		path     string
		wantDir  bool
		wantFile bool
	}{
		{"/etc", true, false},
		{"/usr/bin/env", false, true},
		{"/nope", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			isDir, err := s.IsDir(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDir, isDir)

			isFile, err := s.IsFile(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, isFile)
		})
	}
}

func TestPermissionPredicates(t *testing.T) {
	s, _ := inspectSession(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		check func(context.Context, string, listing.Class) (bool, error)
		path  string
		class listing.Class
		want  bool
	}{
		{"shadow owner readable", s.IsReadable, "/etc/shadow", listing.Owner, true},
		{"shadow other unreadable", s.IsReadable, "/etc/shadow", listing.Other, false},
		{"shadow group not writable", s.IsWritable, "/etc/shadow", listing.Group, false},
		{"shadow owner writable", s.IsWritable, "/etc/shadow", listing.Owner, true},
		{"env executable by other", s.IsExecutable, "/usr/bin/env", listing.Other, true},
		{"shadow not executable", s.IsExecutable, "/etc/shadow", listing.Owner, false},
		{"missing path", s.IsReadable, "/nope", listing.Owner, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.check(ctx, tt.path, tt.class)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.IsReadable(ctx, "/etc", listing.Class(7))
	assert.Error(t, err)
}

func TestInspectChannelError(t *testing.T) {
	s, ch, _ := newTestSession(t)
	ch.On("ls -ld '/etc'", fake.Response{Err: errors.New("broken pipe")})

	_, err := s.IsDir(context.Background(), "/etc")
	assert.Equal(t, KindSSHConnection, KindOf(err))
}
