package ssh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/eugenetaranov/rouster/internal/channel"
)

// ErrClosed is returned when the channel is used after Close.
var ErrClosed = errors.New("ssh channel is closed")

// readyCommand is the lightweight command used to probe readiness.
const readyCommand = "true"

// closeGrace bounds the wait for a cancelled session to wind down before
// the whole connection is dropped.
const closeGrace = 5 * time.Second

// Channel executes commands over SSH. The connection is dialed lazily on
// first use and reused until Close, or until a transport error drops it.
type Channel struct {
	config *Config
	logger *slog.Logger

	mu     sync.Mutex
	conn   *gossh.Client
	closed bool
}

// Option is a functional option for configuring the Channel.
type Option func(*Channel)

// WithLogger sets a custom logger for the channel.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an SSH channel. No connection is made until first use.
func New(config *Config, opts ...Option) (*Channel, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Channel{
		config: config,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ExecuteUnprivileged runs a command as the SSH user.
func (c *Channel) ExecuteUnprivileged(ctx context.Context, command string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	return c.execute(ctx, command, command, opts, fn)
}

// ExecutePrivileged runs a command through non-interactive sudo.
func (c *Channel) ExecutePrivileged(ctx context.Context, command string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	return c.execute(ctx, command, sudoCommand(command), opts, fn)
}

func sudoCommand(command string) string {
	return "sudo -n -- sh -c " + channel.Quote(command)
}

func (c *Channel) execute(ctx context.Context, command, full string, opts channel.Options, fn channel.OutputFunc) (*int, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		c.drop(client)
		return nil, fmt.Errorf("creating SSH session: %w", err)
	}
	defer func() { _ = session.Close() }()

	session.Stdout, session.Stderr = channel.Writers(fn)

	c.logger.Debug("executing command",
		slog.String("host", c.config.Host),
		slog.String("command", full),
	)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(full)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		// Run returns only after the stream copiers finish, so fn is not
		// called once execute has returned.
		select {
		case <-done:
		case <-time.After(closeGrace):
			c.drop(client)
			<-done
		}
		return nil, ctx.Err()
	case runErr := <-done:
		code, err := exitStatus(runErr)
		if err != nil {
			c.drop(client)
			return nil, fmt.Errorf("running command over ssh: %w", err)
		}
		return code, opts.Check(command, code)
	}
}

// exitStatus converts the result of session.Run into an exit code. A session
// that closed without reporting a status yields a nil code.
func exitStatus(err error) (*int, error) {
	if err == nil {
		return channel.Code(0), nil
	}

	var exitErr *gossh.ExitError
	if errors.As(err, &exitErr) {
		return channel.Code(exitErr.ExitStatus()), nil
	}

	var missing *gossh.ExitMissingError
	if errors.As(err, &missing) {
		return nil, nil
	}

	return nil, err
}

// IsReady dials (if needed) and runs a trivial command within the timeout.
func (c *Channel) IsReady(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.config.GetTimeout())
	defer cancel()

	code, err := c.execute(ctx, readyCommand, readyCommand, channel.Options{}, nil)
	if err != nil {
		c.logger.Debug("ssh readiness probe failed",
			slog.String("host", c.config.Host),
			slog.String("error", err.Error()),
		)
		return false
	}
	return code == nil || *code == 0
}

// Close closes the SSH connection. Safe to call multiple times.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

// String returns a description of the channel.
func (c *Channel) String() string {
	return fmt.Sprintf("ssh://%s@%s", c.config.User, c.config.Address())
}

// client returns the cached connection, dialing one if needed.
func (c *Channel) client(ctx context.Context) (*gossh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

// drop forgets a connection that failed so the next call redials.
func (c *Channel) drop(conn *gossh.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Channel) dial(ctx context.Context) (*gossh.Client, error) {
	sshConfig, err := c.buildSSHConfig()
	if err != nil {
		return nil, fmt.Errorf("building SSH config: %w", err)
	}

	timeout := c.config.GetTimeout()
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.logger.Debug("connecting to SSH server",
		slog.String("address", c.config.Address()),
		slog.String("user", c.config.User),
	)

	dialer := &net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(dialCtx, "tcp", c.config.Address())
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", c.config.Address(), err)
	}

	sshConn, chans, reqs, err := gossh.NewClientConn(netConn, c.config.Address(), sshConfig)
	if err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("SSH handshake with %s failed: %w", c.config.Address(), err)
	}

	return gossh.NewClient(sshConn, chans, reqs), nil
}

func (c *Channel) buildSSHConfig() (*gossh.ClientConfig, error) {
	authMethods, err := c.buildAuthMethods()
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := c.buildHostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &gossh.ClientConfig{
		User:            c.config.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.config.GetTimeout(),
	}, nil
}

func (c *Channel) buildAuthMethods() ([]gossh.AuthMethod, error) {
	var methods []gossh.AuthMethod

	if c.config.KeyFile != "" {
		keyData, err := os.ReadFile(c.config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file %s: %w", c.config.KeyFile, err)
		}

		var signer gossh.Signer
		if c.config.KeyPassphrase != "" {
			signer, err = gossh.ParsePrivateKeyWithPassphrase(keyData, []byte(c.config.KeyPassphrase))
		} else {
			signer, err = gossh.ParsePrivateKey(keyData)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing key file %s: %w", c.config.KeyFile, err)
		}
		methods = append(methods, gossh.PublicKeys(signer))
	}

	if c.config.Password != "" {
		methods = append(methods, gossh.Password(c.config.Password))
	}

	return methods, nil
}

func (c *Channel) buildHostKeyCallback() (gossh.HostKeyCallback, error) {
	if c.config.KnownHostsFile != "" {
		callback, err := knownhosts.New(c.config.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known_hosts %s: %w", c.config.KnownHostsFile, err)
		}
		return callback, nil
	}

	c.logger.Warn("host key verification disabled",
		slog.String("host", c.config.Host),
	)
	return gossh.InsecureIgnoreHostKey(), nil //nolint:gosec // test machines are recreated with fresh host keys
}

// Ensure Channel implements the channel.Channel interface.
var _ channel.Channel = (*Channel)(nil)
