package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eugenetaranov/rouster/internal/output"
	"github.com/eugenetaranov/rouster/internal/session"
	"github.com/eugenetaranov/rouster/pkg/facts"
	"github.com/eugenetaranov/rouster/pkg/listing"
)

// runCmd runs a command on the machine
var runCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Run a command on the machine",
	Long: `Run a command on the machine through the configured channel, using
sudo unless the machine is a passthrough or sudo is disabled.

Examples:
  rouster run uptime
  rouster run -- ls -l /etc`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")
		return withMachine(cmd, func(ctx context.Context, e *env, s *session.Session) error {
			start := time.Now()
			res, err := s.RunRemote(ctx, command)
			if err != nil {
				return err
			}
			e.out.CommandResult("remote", command, res, time.Since(start))
			return nil
		})
	},
}

// localCmd runs a command on the controlling host
var localCmd = &cobra.Command{
	Use:   "local <command> [args...]",
	Short: "Run a command on the controlling host",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")
		return withHost(cmd, func(ctx context.Context, e *env) error {
			start := time.Now()
			res, err := e.host.RunLocal(ctx, command)
			if err != nil {
				return err
			}
			e.out.CommandResult("local", command, res, time.Since(start))
			return nil
		})
	},
}

// getCmd downloads a file from the machine
var getCmd = &cobra.Command{
	Use:   "get <remote-path> [local-path]",
	Short: "Download a file from the machine",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, dst := args[0], optionalArg(args, 1)
		return withMachine(cmd, func(ctx context.Context, e *env, s *session.Session) error {
			if err := s.Fetch(ctx, remote, dst); err != nil {
				return err
			}
			if dst == "" {
				dst = path.Base(remote)
			}
			e.out.Transfer("fetch", remote, dst)
			return nil
		})
	},
}

// putCmd uploads a file to the machine
var putCmd = &cobra.Command{
	Use:   "put <local-path> [remote-path]",
	Short: "Upload a file to the machine",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, remote := args[0], optionalArg(args, 1)
		return withMachine(cmd, func(ctx context.Context, e *env, s *session.Session) error {
			if err := s.Send(ctx, src, remote); err != nil {
				return err
			}
			if remote == "" {
				remote = filepath.Base(src)
			}
			e.out.Transfer("send", src, remote)
			return nil
		})
	},
}

// lsCmd shows parsed metadata for paths on the machine
var lsCmd = &cobra.Command{
	Use:   "ls <path> [path...]",
	Short: "Show file type, mode and ownership of paths on the machine",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMachine(cmd, func(ctx context.Context, e *env, s *session.Session) error {
			for _, p := range args {
				entry, err := s.File(ctx, p)
				if err != nil {
					return err
				}
				e.out.Entry(p, entry)
			}
			return nil
		})
	},
}

// parseLsCmd parses ls -l output without touching any machine
var parseLsCmd = &cobra.Command{
	Use:   "parse-ls [file]",
	Short: "Parse ls -l output from a file or stdin into YAML",
	Long: `Parse long-format directory listing lines and print the decoded
records as YAML. Reads stdin when no file is given.

Examples:
  ls -l /etc | rouster parse-ls`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}

		entries, err := listing.ParseAll(string(data))
		if err != nil {
			return err
		}

		return output.New(cmd.OutOrStdout()).YAML(entries)
	},
}

// reachableCmd probes whether the machine accepts commands
var reachableCmd = &cobra.Command{
	Use:   "reachable",
	Short: "Check whether the machine is reachable; exits 1 if not",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMachine(cmd, func(ctx context.Context, e *env, s *session.Session) error {
			ok := s.IsReachable(ctx)
			e.out.Reachable(s.Channel().String(), ok)
			if !ok {
				return &session.SSHConnectionError{Op: "probe", Path: s.Channel().String(), Err: session.ErrUnavailable}
			}
			return nil
		})
	},
}

// factsCmd gathers system facts from the machine
var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Gather system facts from the machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMachine(cmd, func(ctx context.Context, e *env, s *session.Session) error {
			f, err := facts.Gather(ctx, s)
			if err != nil {
				return err
			}
			return e.out.YAML(f)
		})
	},
}

// restartCmd reboots the machine from inside
var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Reboot the machine with shutdown -r",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMachine(cmd, restart)
	},
}

func restart(ctx context.Context, e *env, s *session.Session) error {
	if err := s.Restart(ctx); err != nil {
		return err
	}
	e.out.Info("%s restarting", s.Name())
	return nil
}

// inspectCmd prints the session summary
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the session settings and, for managed machines, the vagrant state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMachine(cmd, func(ctx context.Context, e *env, s *session.Session) error {
			return inspect(ctx, cmd.OutOrStdout(), e, s)
		})
	},
}

func inspect(ctx context.Context, w io.Writer, e *env, s *session.Session) error {
	if _, err := fmt.Fprintln(w, s.String()); err != nil {
		return err
	}
	if e.engine == nil {
		return nil
	}
	state, err := e.engine.Status(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "vagrantfile[%s] status[%s]\n", e.engine.Vagrantfile(), state)
	return err
}

// lifecycle builds a vagrant lifecycle command.
func lifecycle(use, short, done string, verb func(ctx context.Context, e *env) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, func(ctx context.Context, e *env) error {
				if err := verb(ctx, e); err != nil {
					return err
				}
				e.out.Info("%s %s", e.cfg.Name, done)
				return nil
			})
		},
	}
}

var upCmd = lifecycle("up", "Create and boot the machine", "is up", func(ctx context.Context, e *env) error {
	engine, err := e.requireEngine()
	if err != nil {
		return err
	}
	return engine.Up(ctx)
})

var destroyCmd = lifecycle("destroy", "Destroy the machine", "destroyed", func(ctx context.Context, e *env) error {
	engine, err := e.requireEngine()
	if err != nil {
		return err
	}
	return engine.Destroy(ctx)
})

var suspendCmd = lifecycle("suspend", "Suspend the machine", "suspended", func(ctx context.Context, e *env) error {
	engine, err := e.requireEngine()
	if err != nil {
		return err
	}
	return engine.Suspend(ctx)
})

var rebuildCmd = lifecycle("rebuild", "Destroy and recreate the machine", "rebuilt", func(ctx context.Context, e *env) error {
	engine, err := e.requireEngine()
	if err != nil {
		return err
	}
	return engine.Rebuild(ctx)
})

// statusCmd prints the vagrant machine state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the machine state reported by vagrant",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHost(cmd, func(ctx context.Context, e *env) error {
			engine, err := e.requireEngine()
			if err != nil {
				return err
			}
			state, err := engine.Status(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), state)
			return err
		})
	},
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
