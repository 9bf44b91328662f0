package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/rouster/internal/channel"
)

func TestScriptedResponses(t *testing.T) {
	c := New().On("uname", Response{Output: "Linux\n", Stderr: "note\n", ExitCode: channel.Code(0)})
	ctx := context.Background()

	var got []string
	code, err := c.ExecutePrivileged(ctx, "uname", channel.Options{}, func(s channel.Stream, data string) {
		got = append(got, s.String()+":"+data)
	})
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, 0, *code)
	assert.Equal(t, []string{"stdout:Linux\n", "stderr:note\n"}, got)

	code, err = c.ExecuteUnprivileged(ctx, "unknown", channel.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, *code)

	calls := c.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Privileged)
	assert.False(t, calls[1].Privileged)
}

func TestErrorCheck(t *testing.T) {
	c := New().On("false", Response{ExitCode: channel.Code(1)})

	_, err := c.ExecuteUnprivileged(context.Background(), "false", channel.Options{ErrorCheck: true}, nil)
	var exitErr *channel.ExitError
	assert.ErrorAs(t, err, &exitErr)

	boom := errors.New("boom")
	c.On("broken", Response{Err: boom})
	_, err = c.ExecuteUnprivileged(context.Background(), "broken", channel.Options{}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestErrAfterOutput(t *testing.T) {
	boom := errors.New("connection reset")
	c := New().On("stream", Response{Output: "partial\n", Err: boom})

	var got string
	code, err := c.ExecuteUnprivileged(context.Background(), "stream", channel.Options{}, func(_ channel.Stream, data string) {
		got += data
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, code)
	assert.Equal(t, "partial\n", got)
}

func TestRecording(t *testing.T) {
	c := New()
	ctx := context.Background()

	assert.True(t, c.IsReady(ctx))
	c.Ready = false
	assert.False(t, c.IsReady(ctx))
	assert.Equal(t, 2, c.ReadyChecks())

	require.NoError(t, c.Upload(ctx, "/l", "/r"))
	require.NoError(t, c.Download(ctx, "/r", "/l2"))
	assert.Equal(t, []Transfer{{Local: "/l", Remote: "/r"}}, c.Uploads())
	assert.Equal(t, []Transfer{{Local: "/l2", Remote: "/r"}}, c.Downloads())

	require.NoError(t, c.Close())
	assert.True(t, c.Closed())
}
