package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rouster.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
name: app
vagrantfile: /srv/project/Vagrantfile
verbosity: 2
log_format: json
ssh:
  host: 10.0.0.5
  port: 2222
  timeout: 5s
temp_dir: /var/tmp
metrics_textfile: /var/lib/node_exporter/rouster.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "app", cfg.Name)
	assert.Equal(t, "/srv/project/Vagrantfile", cfg.Vagrantfile)
	assert.Equal(t, 2, cfg.Verbosity)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ChannelSSH, cfg.Channel)
	assert.Equal(t, "10.0.0.5", cfg.SSH.Host)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.Equal(t, DefaultSSHUser, cfg.SSH.User)
	assert.Equal(t, 5*time.Second, cfg.SSH.Timeout)
	assert.Equal(t, "/var/tmp", cfg.TempDir)
	assert.True(t, cfg.UseSudo())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "name: app\nssh:\n  host: 10.0.0.5\n")

	t.Setenv("ROUSTER_NAME", "db")
	t.Setenv("ROUSTER_SSH_HOST", "192.168.56.10")
	t.Setenv("ROUSTER_SSH_PORT", "22")
	t.Setenv("ROUSTER_SUDO", "false")
	t.Setenv("ROUSTER_VERBOSITY", "1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Name)
	assert.Equal(t, "192.168.56.10", cfg.SSH.Host)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, 1, cfg.Verbosity)
	require.NotNil(t, cfg.Sudo)
	assert.False(t, cfg.UseSudo())
}

func TestLoadIgnoresUnprefixedEnv(t *testing.T) {
	t.Setenv("USER", "someone")
	t.Setenv("HOST", "elsewhere")
	t.Setenv("ROUSTER_SSH_KNOWN_HOSTS", "/etc/ssh/ssh_known_hosts")
	t.Setenv("ROUSTER_LOG_FORMAT", "json")

	cfg, err := Load(writeConfig(t, "name: app\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSSHUser, cfg.SSH.User)
	assert.Empty(t, cfg.SSH.Host)
	assert.Equal(t, "/etc/ssh/ssh_known_hosts", cfg.SSH.KnownHosts)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("ROUSTER_NAME", "local-only")
	t.Setenv("ROUSTER_CHANNEL", "local")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "local-only", cfg.Name)
	assert.Equal(t, ChannelLocal, cfg.Channel)
	assert.Nil(t, cfg.Sudo)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ROUSTER_NAME", "from-env")

	cfg, err := Load("", func(c *Config) { c.Name = "from-flag" })
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Name)

	_, err = Load("", func(c *Config) { c.Name = "" })
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "name: app\nunknown_field: 1\n"))
	assert.Error(t, err)

	t.Setenv("ROUSTER_VERBOSITY", "loud")
	_, err = Load(writeConfig(t, "name: app\n"))
	assert.Error(t, err)
}

func TestUseSudo(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name        string
		passthrough bool
		sudo        *bool
		want        bool
	}{
		{"managed default", false, nil, true},
		{"passthrough default", true, nil, false},
		{"passthrough explicit", true, &yes, true},
		{"managed explicit off", false, &no, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Passthrough: tt.passthrough, Sudo: tt.sudo}
			assert.Equal(t, tt.want, cfg.UseSudo())
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing name", mutate: func(c *Config) { c.Name = "" }, wantErr: "name is required"},
		{
			name:    "passthrough without key",
			mutate:  func(c *Config) { c.Passthrough = true },
			wantErr: "must specify sshkey",
		},
		{
			name:    "passthrough with key",
			mutate:  func(c *Config) { c.Passthrough = true; c.SSHKey = "/k" },
			wantErr: "",
		},
		{name: "unknown channel", mutate: func(c *Config) { c.Channel = "telnet" }, wantErr: "unknown channel"},
		{name: "docker without container", mutate: func(c *Config) { c.Channel = ChannelDocker }, wantErr: "docker.container"},
		{name: "verbosity too high", mutate: func(c *Config) { c.Verbosity = 6 }, wantErr: "verbosity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Name = "app"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte("name: web\npassthrough: true\nsshkey: /keys/id\nchannel: docker\ndocker:\n  container: web-1\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Passthrough)
	assert.Equal(t, "web-1", cfg.Docker.Container)
	assert.False(t, cfg.UseSudo())

	cfg, err = Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultVerbosity, cfg.Verbosity)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/.ssh/id_ed25519")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ssh/id_ed25519"), got)

	got, err = ExpandHome("/abs/key")
	require.NoError(t, err)
	assert.Equal(t, "/abs/key", got)

	got, err = ExpandHome("")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}
