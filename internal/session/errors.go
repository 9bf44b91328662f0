package session

import (
	"errors"
	"fmt"
)

// ErrUnavailable is wrapped by SSHConnectionError when the machine does not
// answer the readiness probe.
var ErrUnavailable = errors.New("machine is not reachable over ssh")

// Kind classifies session errors.
type Kind int

const (
	KindUnknown Kind = iota
	KindLocalExecution
	KindRemoteExecution
	KindSSHConnection
	KindFileTransfer
	KindInternal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindLocalExecution:
		return "local execution"
	case KindRemoteExecution:
		return "remote execution"
	case KindSSHConnection:
		return "ssh connection"
	case KindFileTransfer:
		return "file transfer"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// LocalExecutionError is returned when a local command exits non-zero.
type LocalExecutionError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *LocalExecutionError) Error() string {
	return fmt.Sprintf("local command %q exited with code %d", e.Command, e.ExitCode)
}

func (e *LocalExecutionError) Kind() Kind { return KindLocalExecution }

// RemoteExecutionError is returned when a remote command exits non-zero.
type RemoteExecutionError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *RemoteExecutionError) Error() string {
	return fmt.Sprintf("remote command %q exited with code %d", e.Command, e.ExitCode)
}

func (e *RemoteExecutionError) Kind() Kind { return KindRemoteExecution }

// SSHConnectionError is returned when the machine cannot be reached or the
// channel itself fails during an operation. Output holds whatever a failed
// remote command streamed before the channel broke.
type SSHConnectionError struct {
	Op     string
	Path   string
	Err    error
	Output string
}

func (e *SSHConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SSHConnectionError) Unwrap() error { return e.Err }

func (e *SSHConnectionError) Kind() Kind { return KindSSHConnection }

// FileTransferError is returned when a transfer precondition fails before
// any connection is attempted.
type FileTransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileTransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileTransferError) Unwrap() error { return e.Err }

func (e *FileTransferError) Kind() Kind { return KindFileTransfer }

// InternalError reports integrity faults unrelated to a command's exit
// status, such as a side-channel file that could not be removed.
type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func (e *InternalError) Kind() Kind { return KindInternal }

// OutputOf returns the output captured by an execution or connection error
// in err's chain, or "" when there is none.
func OutputOf(err error) string {
	var local *LocalExecutionError
	if errors.As(err, &local) {
		return local.Output
	}
	var remote *RemoteExecutionError
	if errors.As(err, &remote) {
		return remote.Output
	}
	var conn *SSHConnectionError
	if errors.As(err, &conn) {
		return conn.Output
	}
	return ""
}
