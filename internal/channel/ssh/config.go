// Package ssh provides a channel that reaches the managed machine over SSH,
// executing commands in SSH sessions and moving files over SFTP.
package ssh

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPort is the standard SSH port.
	DefaultPort = 22

	// DefaultTimeout bounds dialing and readiness probes.
	DefaultTimeout = 30 * time.Second
)

// Config holds SSH connection configuration.
type Config struct {
	// Host is the SSH server hostname or IP address (required).
	Host string

	// Port is the SSH server port (default: 22).
	Port int

	// User is the SSH username (required).
	User string

	// KeyFile is the path to the private key. Either KeyFile or Password
	// must be provided.
	KeyFile string

	// KeyPassphrase decrypts KeyFile when it is encrypted.
	KeyPassphrase string

	// Password enables password authentication.
	Password string

	// KnownHostsFile enables host key verification. When empty, host keys
	// are not verified; this is the norm for throwaway test machines.
	KnownHostsFile string

	// Timeout bounds dialing and readiness probes (default: 30s).
	Timeout time.Duration
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Host == "" {
		errs = append(errs, "host is required")
	}

	if c.User == "" {
		errs = append(errs, "user is required")
	}

	if c.KeyFile == "" && c.Password == "" {
		errs = append(errs, "key_file or password is required")
	}

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 0 and 65535")
	}

	if c.Timeout < 0 {
		errs = append(errs, "timeout must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("ssh config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Address returns the SSH server address in host:port format.
func (c *Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// GetTimeout returns the configured timeout or the default.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
