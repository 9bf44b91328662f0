// Package session drives one managed machine: it runs commands on the
// controlling host and on the machine, moves files to and from it, and keeps
// the output of every successful command.
//
// A Session is not safe for concurrent use. Separate sessions are
// independent.
package session

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/eugenetaranov/rouster/internal/channel"
	"github.com/eugenetaranov/rouster/internal/metrics"
)

// DefaultVerbosity is the most quiet level of the 1 (debug) to 5 (fatal)
// scale.
const DefaultVerbosity = 5

// Result is the outcome of one successful command.
type Result struct {
	ExitCode int
	Output   string
}

// Session holds the identity and policy of one managed machine along with
// the state produced by running commands on it.
type Session struct {
	name        string
	sshKey      string
	sudo        bool
	passthrough bool
	verbosity   int

	channel channel.Channel
	logger  *slog.Logger
	metrics *metrics.Recorder
	tempDir string
	shell   string

	exitCode int
	output   OutputLog
}

type settings struct {
	sudo        *bool
	passthrough bool
	sshKey      string
	verbosity   int
	logger      *slog.Logger
	metrics     *metrics.Recorder
	tempDir     string
}

// Option configures a Session.
type Option func(*settings)

// WithSudo sets the sudo policy explicitly. Without it, remote commands use
// sudo unless the session is a passthrough.
func WithSudo(enabled bool) Option {
	return func(s *settings) {
		s.sudo = &enabled
	}
}

// WithPassthrough marks the machine as not managed by the orchestration
// engine. Passthrough sessions require an SSH key.
func WithPassthrough() Option {
	return func(s *settings) {
		s.passthrough = true
	}
}

// WithSSHKey sets the private key used to reach the machine.
func WithSSHKey(path string) Option {
	return func(s *settings) {
		s.sshKey = path
	}
}

// WithVerbosity records the caller's verbosity threshold.
func WithVerbosity(level int) Option {
	return func(s *settings) {
		s.verbosity = level
	}
}

// WithLogger sets the logger. The session never configures logging itself.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *settings) {
		s.metrics = r
	}
}

// WithTempDir sets the directory for local side-channel files.
func WithTempDir(dir string) Option {
	return func(s *settings) {
		s.tempDir = dir
	}
}

// New creates a session. ch may be nil for sessions that only run local
// commands; remote operations then fail with an InternalError.
func New(name string, ch channel.Channel, opts ...Option) (*Session, error) {
	cfg := settings{verbosity: DefaultVerbosity}
	for _, opt := range opts {
		opt(&cfg)
	}

	if name == "" {
		return nil, &InternalError{Message: "session name is required"}
	}
	if cfg.passthrough && cfg.sshKey == "" {
		return nil, &InternalError{Message: "must specify sshkey when using a passthrough host"}
	}

	sudo := !cfg.passthrough
	if cfg.sudo != nil {
		sudo = *cfg.sudo
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	tempDir := cfg.tempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return &Session{
		name:        name,
		sshKey:      cfg.sshKey,
		sudo:        sudo,
		passthrough: cfg.passthrough,
		verbosity:   cfg.verbosity,
		channel:     ch,
		logger:      logger.With(slog.String("session", name)),
		metrics:     cfg.metrics,
		tempDir:     tempDir,
		shell:       "/bin/sh",
	}, nil
}

// Name returns the machine name.
func (s *Session) Name() string { return s.name }

// SSHKeyPath returns the configured private key path, which may be empty for
// engine-managed machines.
func (s *Session) SSHKeyPath() string { return s.sshKey }

// UsesSudo reports whether remote commands run through sudo.
func (s *Session) UsesSudo() bool { return s.sudo }

// IsPassthrough reports whether the machine is unmanaged.
func (s *Session) IsPassthrough() bool { return s.passthrough }

// Verbosity returns the verbosity threshold.
func (s *Session) Verbosity() int { return s.verbosity }

// ExitCode returns the exit code of the last successful command.
func (s *Session) ExitCode() int { return s.exitCode }

// Output returns the session's output log.
func (s *Session) Output() *OutputLog { return &s.output }

// Channel returns the channel to the machine, or nil.
func (s *Session) Channel() channel.Channel { return s.channel }

// String summarizes the session's identity and policy.
func (s *Session) String() string {
	target := "none"
	if s.channel != nil {
		target = s.channel.String()
	}
	return fmt.Sprintf("name[%s] passthrough[%t] sshkey[%s] sudo[%t] verbosity[%d] channel[%s]",
		s.name, s.passthrough, s.sshKey, s.sudo, s.verbosity, target)
}

// Close releases the channel.
func (s *Session) Close() error {
	if s.channel == nil {
		return nil
	}
	return s.channel.Close()
}

// record stores a successful result.
func (s *Session) record(code int, output string) *Result {
	s.output.append(output)
	s.exitCode = code
	return &Result{ExitCode: code, Output: output}
}
