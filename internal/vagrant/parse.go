package vagrant

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSearchLevels is how many directories FindVagrantfile inspects by
// default, starting with the start directory itself.
const DefaultSearchLevels = 5

// ErrNotFound is returned when no Vagrantfile is found.
var ErrNotFound = errors.New("vagrantfile not found")

// SSHConfig holds the fields of `vagrant ssh-config` output needed to dial
// the machine.
type SSHConfig struct {
	Host         string
	HostName     string
	Port         int
	User         string
	IdentityFile string
}

// ParseSSHConfig decodes `vagrant ssh-config` output. Only the first Host
// block is read.
func ParseSSHConfig(output string) (*SSHConfig, error) {
	cfg := &SSHConfig{}
	seenHost := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, " ")
		if !found {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)

		switch strings.ToLower(key) {
		case "host":
			if seenHost {
				return finishSSHConfig(cfg)
			}
			seenHost = true
			cfg.Host = value
		case "hostname":
			cfg.HostName = value
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid ssh-config port %q: %w", value, err)
			}
			cfg.Port = port
		case "user":
			cfg.User = value
		case "identityfile":
			if cfg.IdentityFile == "" {
				cfg.IdentityFile = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return finishSSHConfig(cfg)
}

func finishSSHConfig(cfg *SSHConfig) (*SSHConfig, error) {
	if cfg.HostName == "" {
		return nil, errors.New("ssh-config output has no HostName")
	}
	return cfg, nil
}

// ParseMachineState extracts the state of machine name from
// `vagrant status --machine-readable` output. An empty name matches the
// first machine.
func ParseMachineState(output, name string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ",", 4)
		if len(parts) < 4 || parts[2] != "state" {
			continue
		}
		if name == "" || parts[1] == name {
			return parts[3], nil
		}
	}
	return "", fmt.Errorf("no state reported for machine %q", name)
}

// FindVagrantfile looks for a Vagrantfile in start and up to levels-1 of
// its parents. levels <= 0 uses DefaultSearchLevels.
func FindVagrantfile(start string, levels int) (string, error) {
	if levels <= 0 {
		levels = DefaultSearchLevels
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for i := 0; i < levels; i++ {
		candidate := filepath.Join(dir, "Vagrantfile")
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w within %d levels of %s", ErrNotFound, levels, start)
}
