package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eugenetaranov/rouster/internal/channel"
	"github.com/eugenetaranov/rouster/internal/channel/docker"
	"github.com/eugenetaranov/rouster/internal/channel/local"
	"github.com/eugenetaranov/rouster/internal/channel/ssh"
	"github.com/eugenetaranov/rouster/internal/config"
	"github.com/eugenetaranov/rouster/internal/logging"
	"github.com/eugenetaranov/rouster/internal/metrics"
	"github.com/eugenetaranov/rouster/internal/output"
	"github.com/eugenetaranov/rouster/internal/session"
	"github.com/eugenetaranov/rouster/internal/vagrant"
)

// env carries everything a command needs besides the machine session.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     *output.Output
	metrics *metrics.Recorder

	// host runs local commands; it has no channel.
	host   *session.Session
	engine *vagrant.Engine
}

// applyFlags lets global flags override file and environment settings.
func applyFlags(c *config.Config) {
	if name != "" {
		c.Name = name
	}
	if verbosity != 0 {
		c.Verbosity = verbosity
	}
	if debug {
		c.Verbosity = 1
	}
}

func newEnv() (*env, error) {
	cfg, err := config.Load(configPath, applyFlags)
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:    cfg,
		logger: logging.New(os.Stderr, cfg.Verbosity, cfg.LogFormat),
		out:    output.New(os.Stdout),
	}
	e.out.SetColor(!noColor)
	e.out.SetDebug(debug)

	if cfg.MetricsTextfile != "" {
		e.metrics = metrics.New()
	}

	e.host, err = session.New(cfg.Name, nil, e.sessionOptions(cfg.SSHKey)...)
	if err != nil {
		return nil, err
	}

	if !cfg.Passthrough {
		vagrantfile := cfg.Vagrantfile
		if vagrantfile == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			vagrantfile, err = vagrant.FindVagrantfile(wd, vagrant.DefaultSearchLevels)
			if err != nil {
				e.logger.Debug("no vagrantfile found", slog.String("error", err.Error()))
			}
		}
		if vagrantfile != "" {
			e.engine = vagrant.New(e.host, vagrantfile, cfg.Name, vagrant.WithLogger(e.logger))
		}
	}

	return e, nil
}

func (e *env) sessionOptions(sshKey string) []session.Option {
	opts := []session.Option{
		session.WithSudo(e.cfg.UseSudo()),
		session.WithSSHKey(sshKey),
		session.WithVerbosity(e.cfg.Verbosity),
		session.WithLogger(e.logger),
		session.WithMetrics(e.metrics),
		session.WithTempDir(e.cfg.TempDir),
	}
	if e.cfg.Passthrough {
		opts = append(opts, session.WithPassthrough())
	}
	return opts
}

// machine opens a session on the configured channel.
func (e *env) machine(ctx context.Context) (*session.Session, error) {
	var resolver sshResolver
	if e.engine != nil {
		resolver = e.engine
	}

	ch, sshKey, err := buildChannel(ctx, e.cfg, resolver, e.logger)
	if err != nil {
		return nil, err
	}

	s, err := session.New(e.cfg.Name, ch, e.sessionOptions(sshKey)...)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return s, nil
}

// finish writes the metrics textfile when one is configured.
func (e *env) finish() {
	if e.metrics == nil {
		return
	}
	if err := e.metrics.WriteTextfile(e.cfg.MetricsTextfile); err != nil {
		e.logger.Warn("failed to write metrics", slog.String("error", err.Error()))
	}
}

func (e *env) requireEngine() (*vagrant.Engine, error) {
	if e.engine == nil {
		if e.cfg.Passthrough {
			return nil, errors.New("passthrough machines are not managed by vagrant")
		}
		return nil, fmt.Errorf("%w: set vagrantfile in the config", vagrant.ErrNotFound)
	}
	return e.engine, nil
}

// sshResolver looks up connection details for machines vagrant manages.
type sshResolver interface {
	SSHConfig(ctx context.Context) (*vagrant.SSHConfig, error)
}

// buildChannel creates the configured channel. It also returns the SSH key
// in effect, which for managed machines may come from vagrant.
func buildChannel(ctx context.Context, cfg *config.Config, resolver sshResolver, logger *slog.Logger) (channel.Channel, string, error) {
	switch cfg.Channel {
	case config.ChannelLocal:
		return local.New(), cfg.SSHKey, nil

	case config.ChannelDocker:
		var opts []docker.Option
		if cfg.Docker.User != "" {
			opts = append(opts, docker.WithUser(cfg.Docker.User))
		}
		return docker.New(cfg.Docker.Container, opts...), cfg.SSHKey, nil

	case config.ChannelSSH:
		sshCfg := &ssh.Config{
			Host:           cfg.SSH.Host,
			Port:           cfg.SSH.Port,
			User:           cfg.SSH.User,
			KeyFile:        cfg.SSHKey,
			Password:       cfg.SSH.Password,
			KnownHostsFile: cfg.SSH.KnownHosts,
			Timeout:        cfg.SSH.Timeout,
		}

		if sshCfg.Host == "" {
			if cfg.Passthrough {
				return nil, "", errors.New("ssh.host is required for passthrough machines")
			}
			if resolver == nil {
				return nil, "", errors.New("ssh.host is not set and no vagrantfile was found to resolve it")
			}
			vc, err := resolver.SSHConfig(ctx)
			if err != nil {
				return nil, "", fmt.Errorf("resolving ssh settings: %w", err)
			}
			applyVagrantSSH(sshCfg, vc)
		}

		ch, err := ssh.New(sshCfg, ssh.WithLogger(logger))
		if err != nil {
			return nil, "", err
		}
		return ch, sshCfg.KeyFile, nil

	default:
		return nil, "", fmt.Errorf("unknown channel %q", cfg.Channel)
	}
}

// applyVagrantSSH fills unset connection fields from `vagrant ssh-config`.
func applyVagrantSSH(c *ssh.Config, vc *vagrant.SSHConfig) {
	c.Host = vc.HostName
	if c.Port == 0 {
		c.Port = vc.Port
	}
	if vc.User != "" && (c.User == "" || c.User == config.DefaultSSHUser) {
		c.User = vc.User
	}
	if c.KeyFile == "" {
		c.KeyFile = vc.IdentityFile
	}
}

// withMachine opens the machine session for a command and tears it down.
func withMachine(cmd *cobra.Command, fn func(ctx context.Context, e *env, s *session.Session) error) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.finish()

	ctx := cmd.Context()
	s, err := e.machine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	e.out.Banner(s.Name(), s.Channel().String())
	return fn(ctx, e, s)
}

// withHost runs a command that only needs the controlling host.
func withHost(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.finish()

	return fn(cmd.Context(), e)
}
