// Package config loads session configuration from YAML and ROUSTER_*
// environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ROUSTER_SSH_HOST.
const EnvPrefix = "ROUSTER"

// Channel kinds.
const (
	ChannelSSH    = "ssh"
	ChannelDocker = "docker"
	ChannelLocal  = "local"
)

// Defaults.
const (
	DefaultVerbosity = 5
	DefaultChannel   = ChannelSSH
	DefaultLogFormat = "text"
	DefaultSSHUser   = "vagrant"
)

// Config describes one managed machine and how to reach it. Environment
// keys derive from field names (ROUSTER_LOG_FORMAT, ROUSTER_SSH_HOST). Do not
// add envconfig tags: envconfig falls back to the bare tag, so $USER would
// override ssh.user.
type Config struct {
	Name        string `yaml:"name"`
	Vagrantfile string `yaml:"vagrantfile"`
	Passthrough bool   `yaml:"passthrough"`

	// Sudo is nil when unset; see UseSudo.
	Sudo   *bool  `yaml:"sudo"`
	SSHKey string `yaml:"sshkey"`

	Verbosity int    `yaml:"verbosity"`
	LogFormat string `yaml:"log_format" split_words:"true"`

	Channel string       `yaml:"channel"`
	SSH     SSHConfig    `yaml:"ssh"`
	Docker  DockerConfig `yaml:"docker"`

	TempDir         string `yaml:"temp_dir" split_words:"true"`
	MetricsTextfile string `yaml:"metrics_textfile" split_words:"true"`
}

// SSHConfig holds the connection settings of the ssh channel. An empty Host
// on a managed machine is filled in from `vagrant ssh-config`.
type SSHConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	KnownHosts string        `yaml:"known_hosts" split_words:"true"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DockerConfig holds the settings of the docker channel.
type DockerConfig struct {
	Container string `yaml:"container"`
	User      string `yaml:"user"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Verbosity: DefaultVerbosity,
		LogFormat: DefaultLogFormat,
		Channel:   DefaultChannel,
		SSH:       SSHConfig{User: DefaultSSHUser},
	}
}

// Load reads path (if non-empty), applies environment overrides and then
// overrides (command-line flags), expands home directories and validates
// the result.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// UseSudo resolves the sudo policy: an explicit setting wins, otherwise
// sudo is used unless the machine is a passthrough.
func (c *Config) UseSudo() bool {
	if c.Sudo != nil {
		return *c.Sudo
	}
	return !c.Passthrough
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.Name == "" {
		errs = append(errs, "name is required")
	}

	if c.Passthrough && c.SSHKey == "" {
		errs = append(errs, "must specify sshkey when using a passthrough host")
	}

	switch c.Channel {
	case ChannelSSH, ChannelLocal:
	case ChannelDocker:
		if c.Docker.Container == "" {
			errs = append(errs, "docker.container is required for the docker channel")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown channel %q (want ssh, docker or local)", c.Channel))
	}

	if c.Verbosity < 1 || c.Verbosity > 5 {
		errs = append(errs, "verbosity must be between 1 and 5")
	}

	if c.SSH.Port < 0 || c.SSH.Port > 65535 {
		errs = append(errs, "ssh.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.SSHKey, &c.SSH.KnownHosts, &c.Vagrantfile} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
