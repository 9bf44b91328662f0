// Package fake provides a scripted, in-memory channel for tests.
package fake

import (
	"context"
	"sync"

	"github.com/eugenetaranov/rouster/internal/channel"
)

// Response scripts the outcome of a single command. Output and Stderr are
// delivered before Err is returned.
type Response struct {
	Output   string
	Stderr   string
	ExitCode *int
	Err      error
}

// Call records a command the channel was asked to run.
type Call struct {
	Command    string
	Privileged bool
	Options    channel.Options
}

// Transfer records an upload or download request.
type Transfer struct {
	Local  string
	Remote string
}

// Channel is a channel.Channel whose behaviour is scripted through its
// exported fields. It is safe for concurrent use.
type Channel struct {
	// Responses maps a command to its scripted result.
	Responses map[string]Response
	// Default is returned for commands missing from Responses.
	Default Response
	// Ready is returned from IsReady.
	Ready bool

	UploadErr   error
	DownloadErr error

	mu          sync.Mutex
	calls       []Call
	readyChecks int
	uploads     []Transfer
	downloads   []Transfer
	closed      bool
}

// New returns a ready channel that answers every command with exit 0.
func New() *Channel {
	return &Channel{
		Responses: make(map[string]Response),
		Default:   Response{ExitCode: channel.Code(0)},
		Ready:     true,
	}
}

// On scripts the response for command and returns the channel for chaining.
func (c *Channel) On(command string, resp Response) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses[command] = resp
	return c
}

func (c *Channel) ExecuteUnprivileged(ctx context.Context, command string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	return c.execute(ctx, command, false, opts, fn)
}

func (c *Channel) ExecutePrivileged(ctx context.Context, command string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	return c.execute(ctx, command, true, opts, fn)
}

func (c *Channel) execute(ctx context.Context, command string, privileged bool, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.calls = append(c.calls, Call{Command: command, Privileged: privileged, Options: opts})
	resp, ok := c.Responses[command]
	if !ok {
		resp = c.Default
	}
	c.mu.Unlock()

	if fn != nil {
		if resp.Output != "" {
			fn(channel.Stdout, resp.Output)
		}
		if resp.Stderr != "" {
			fn(channel.Stderr, resp.Stderr)
		}
	}

	// Err models a channel that breaks after streaming its output.
	if resp.Err != nil {
		return nil, resp.Err
	}

	return resp.ExitCode, opts.Check(command, resp.ExitCode)
}

func (c *Channel) IsReady(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readyChecks++
	return c.Ready && ctx.Err() == nil
}

func (c *Channel) Upload(_ context.Context, localPath, remotePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads = append(c.uploads, Transfer{Local: localPath, Remote: remotePath})
	return c.UploadErr
}

func (c *Channel) Download(_ context.Context, remotePath, localPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloads = append(c.downloads, Transfer{Local: localPath, Remote: remotePath})
	return c.DownloadErr
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Channel) String() string {
	return "fake://"
}

// Calls returns the commands executed so far.
func (c *Channel) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// ReadyChecks returns how many times IsReady was called.
func (c *Channel) ReadyChecks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyChecks
}

// Uploads returns the recorded uploads.
func (c *Channel) Uploads() []Transfer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transfer(nil), c.uploads...)
}

// Downloads returns the recorded downloads.
func (c *Channel) Downloads() []Transfer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transfer(nil), c.downloads...)
}

// Closed reports whether Close was called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var _ channel.Channel = (*Channel)(nil)
