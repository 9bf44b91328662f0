// Package facts gathers system information from a managed machine.
package facts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eugenetaranov/rouster/internal/session"
)

// Runner runs a command on the machine. *session.Session satisfies it.
type Runner interface {
	RunRemote(ctx context.Context, command string) (*session.Result, error)
}

// Facts describes the machine. Fields that could not be determined are
// left empty.
type Facts struct {
	OSType              string `yaml:"os_type" json:"os_type"`
	OSFamily            string `yaml:"os_family,omitempty" json:"os_family,omitempty"`
	OSName              string `yaml:"os_name,omitempty" json:"os_name,omitempty"`
	OSVersion           string `yaml:"os_version,omitempty" json:"os_version,omitempty"`
	Distribution        string `yaml:"distribution,omitempty" json:"distribution,omitempty"`
	DistributionVersion string `yaml:"distribution_version,omitempty" json:"distribution_version,omitempty"`
	PkgManager          string `yaml:"pkg_manager,omitempty" json:"pkg_manager,omitempty"`
	Architecture        string `yaml:"architecture,omitempty" json:"architecture,omitempty"`
	Arch                string `yaml:"arch,omitempty" json:"arch,omitempty"`
	Kernel              string `yaml:"kernel,omitempty" json:"kernel,omitempty"`
	Hostname            string `yaml:"hostname,omitempty" json:"hostname,omitempty"`
	User                string `yaml:"user,omitempty" json:"user,omitempty"`
}

// Gather collects facts through r. Only a failure of the first probe
// (uname -s) is reported; later probes that fail leave their field empty.
func Gather(ctx context.Context, r Runner) (*Facts, error) {
	osType, err := run(ctx, r, "uname -s")
	if err != nil {
		return nil, fmt.Errorf("detecting os type: %w", err)
	}

	f := &Facts{OSType: osType}

	switch osType {
	case "Darwin":
		f.OSFamily = "Darwin"
		f.PkgManager = "brew"
		f.OSVersion, _ = run(ctx, r, "sw_vers -productVersion")
		f.OSName, _ = run(ctx, r, "sw_vers -productName")
	case "Linux":
		f.OSFamily = "Linux"
		if content, err := run(ctx, r, "cat /etc/os-release"); err == nil {
			f.applyOSRelease(parseOSRelease(content))
		}
	}

	if arch, err := run(ctx, r, "uname -m"); err == nil {
		f.Architecture = arch
		f.Arch = normalizeArch(arch)
	}

	f.Kernel, _ = run(ctx, r, "uname -r")
	f.Hostname, _ = run(ctx, r, "hostname")
	f.User, _ = run(ctx, r, "whoami")

	return f, nil
}

func run(ctx context.Context, r Runner, command string) (string, error) {
	res, err := r.RunRemote(ctx, command)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(res.Output)
	if out == "" {
		return "", errors.New("empty output")
	}
	return out, nil
}

func (f *Facts) applyOSRelease(release map[string]string) {
	f.Distribution = release["ID"]
	f.DistributionVersion = release["VERSION_ID"]
	f.OSName = release["PRETTY_NAME"]

	switch f.Distribution {
	case "ubuntu", "debian", "linuxmint", "pop":
		f.PkgManager = "apt"
		f.OSFamily = "Debian"
	case "fedora", "rhel", "centos", "rocky", "almalinux":
		f.PkgManager = "dnf"
		f.OSFamily = "RedHat"
	case "arch", "manjaro":
		f.PkgManager = "pacman"
		f.OSFamily = "Arch"
	case "alpine":
		f.PkgManager = "apk"
		f.OSFamily = "Alpine"
	case "opensuse", "opensuse-leap", "sles":
		f.PkgManager = "zypper"
		f.OSFamily = "Suse"
	}
}

// parseOSRelease parses /etc/os-release format.
func parseOSRelease(content string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "="); idx > 0 {
			result[line[:idx]] = strings.Trim(line[idx+1:], "\"'")
		}
	}
	return result
}

func normalizeArch(arch string) string {
	switch arch {
	case "x86_64", "amd64":
		return "amd64"
	case "aarch64", "arm64":
		return "arm64"
	case "armv7l":
		return "arm"
	default:
		return arch
	}
}
