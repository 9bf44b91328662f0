// Package output provides formatted terminal output for the rouster CLI.
package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenetaranov/rouster/internal/session"
	"github.com/eugenetaranov/rouster/pkg/listing"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Output handles formatted output.
type Output struct {
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// Banner prints the session header (debug mode only).
func (o *Output) Banner(name, target string) {
	if !o.debug {
		return
	}
	o.printf("\n%s %s %s\n", o.color(colorBold, "SESSION"), name, o.color(colorGray, "("+target+")"))
	o.printf("%s\n", strings.Repeat("-", 60))
}

// CommandResult prints the captured output of a successful command. In debug
// mode a status line with the location and duration comes first.
func (o *Output) CommandResult(location, command string, res *session.Result, elapsed time.Duration) {
	if o.debug {
		o.printf("  %s %s %s %s\n",
			o.color(colorGreen, "✓"),
			o.color(colorGray, "["+location+"]"),
			command,
			o.color(colorGray, fmt.Sprintf("(%.2fs)", elapsed.Seconds())))
	}
	if res != nil && res.Output != "" {
		o.printf("%s", res.Output)
		if !strings.HasSuffix(res.Output, "\n") {
			o.printf("\n")
		}
	}
}

// Failure prints an error with its kind and any output it captured.
func (o *Output) Failure(err error) {
	if err == nil {
		return
	}

	label := "FAILED"
	if kind := session.KindOf(err); kind != session.KindUnknown {
		label = "FAILED [" + kind.String() + "]"
	}
	o.printf("%s %s\n", o.color(colorRed, label), err.Error())

	if captured := session.OutputOf(err); captured != "" {
		o.printf("  %s\n", o.color(colorGray, "output:"))
		for _, line := range strings.Split(strings.TrimRight(captured, "\n"), "\n") {
			o.printf("    %s\n", line)
		}
	}

	var connErr *session.SSHConnectionError
	if errors.As(err, &connErr) && errors.Is(err, session.ErrUnavailable) {
		o.printf("  %s\n", o.color(colorYellow, "hint: is the machine up? try `rouster status`"))
	}
}

// Transfer prints a completed file transfer.
func (o *Output) Transfer(direction, src, dst string) {
	o.printf("  %s %s %s %s %s\n",
		o.color(colorGreen, "✓"),
		o.color(colorGray, "["+direction+"]"),
		src,
		o.color(colorGray, "→"),
		dst)
}

// Reachable prints the result of a readiness probe.
func (o *Output) Reachable(target string, ok bool) {
	if ok {
		o.printf("%s %s\n", o.color(colorGreen, "reachable"), target)
		return
	}
	o.printf("%s %s\n", o.color(colorRed, "unreachable"), target)
}

// Entry prints a listing entry as one summary line.
func (o *Output) Entry(path string, e *listing.Entry) {
	kind := "other"
	switch {
	case e.IsDirectory:
		kind = "dir"
	case e.IsFile:
		kind = "file"
	}

	o.printf("%s %s %s %-5s %s:%s %s\n",
		o.color(colorCyan, e.Mode),
		triplets(e),
		o.color(colorGray, fmt.Sprintf("%8s", e.Size)),
		kind,
		e.Owner,
		e.Group,
		path)
}

// triplets renders the permission flags back into rwx form.
func triplets(e *listing.Entry) string {
	var b strings.Builder
	for class := listing.Owner; class <= listing.Other; class++ {
		b.WriteByte(flag(e.Readable[class], 'r'))
		b.WriteByte(flag(e.Writable[class], 'w'))
		b.WriteByte(flag(e.Executable[class], 'x'))
	}
	return b.String()
}

func flag(set bool, c byte) byte {
	if set {
		return c
	}
	return '-'
}

// YAML renders v as a YAML document.
func (o *Output) YAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("rendering yaml: %w", err)
	}
	o.printf("%s", data)
	return nil
}

// Section prints a section header.
func (o *Output) Section(name string) {
	o.printf("\n%s\n", o.color(colorBold, name))
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

func (o *Output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}
