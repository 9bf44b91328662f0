// Package vagrant delegates machine lifecycle to the vagrant CLI, run on the
// controlling host through a session's local executor.
package vagrant

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/eugenetaranov/rouster/internal/channel"
	"github.com/eugenetaranov/rouster/internal/session"
)

// Runner runs a command on the controlling host. *session.Session
// satisfies it.
type Runner interface {
	RunLocal(ctx context.Context, command string) (*session.Result, error)
}

// Engine runs vagrant verbs for one machine of one Vagrantfile.
type Engine struct {
	runner      Runner
	vagrantfile string
	name        string
	binary      string
	logger      *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithBinary overrides the vagrant executable.
func WithBinary(path string) Option {
	return func(e *Engine) {
		e.binary = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine for machine name defined in vagrantfile.
func New(runner Runner, vagrantfile, name string, opts ...Option) *Engine {
	e := &Engine{
		runner:      runner,
		vagrantfile: vagrantfile,
		name:        name,
		binary:      "vagrant",
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Vagrantfile returns the Vagrantfile path.
func (e *Engine) Vagrantfile() string { return e.vagrantfile }

// Up creates and boots the machine, or resumes it.
func (e *Engine) Up(ctx context.Context) error {
	_, err := e.run(ctx, "up")
	return err
}

// Destroy removes the machine without prompting.
func (e *Engine) Destroy(ctx context.Context) error {
	_, err := e.run(ctx, "destroy -f")
	return err
}

// Suspend saves the machine state and stops it.
func (e *Engine) Suspend(ctx context.Context) error {
	_, err := e.run(ctx, "suspend")
	return err
}

// Rebuild destroys the machine and brings it back up.
func (e *Engine) Rebuild(ctx context.Context) error {
	if err := e.Destroy(ctx); err != nil {
		return err
	}
	return e.Up(ctx)
}

// Status returns the machine state as vagrant reports it, e.g. "running",
// "poweroff", "saved" or "not_created".
func (e *Engine) Status(ctx context.Context) (string, error) {
	res, err := e.run(ctx, "status --machine-readable")
	if err != nil {
		return "", err
	}
	return ParseMachineState(res.Output, e.name)
}

// SSHConfig returns the connection details vagrant uses for the machine.
func (e *Engine) SSHConfig(ctx context.Context) (*SSHConfig, error) {
	res, err := e.run(ctx, "ssh-config")
	if err != nil {
		return nil, err
	}
	return ParseSSHConfig(res.Output)
}

func (e *Engine) run(ctx context.Context, verb string) (*session.Result, error) {
	command := e.command(verb)
	e.logger.Info("vagrant", slog.String("machine", e.name), slog.String("verb", verb))

	res, err := e.runner.RunLocal(ctx, command)
	if err != nil {
		return nil, fmt.Errorf("vagrant %s %s: %w", verb, e.name, err)
	}
	return res, nil
}

func (e *Engine) command(verb string) string {
	dir := filepath.Dir(e.vagrantfile)
	return fmt.Sprintf("cd %s && %s %s %s", channel.Quote(dir), e.binary, verb, channel.Quote(e.name))
}
