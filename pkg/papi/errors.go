package papi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/newtron-network/papibridge/pkg/util"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// tell "never ran" (connect, serialization, timeout) from "ran and failed"
// (dispatch, reply parse).
var (
	ErrConnect       = errors.New("cannot open SSH connection")
	ErrSerialization = errors.New("argument not serializable")
	ErrMalformedHex  = errors.New("malformed hex value")
	ErrTransport     = errors.New("transport failure")
	ErrTimeout       = errors.New("remote execution timed out")
	ErrDispatch      = errors.New("remote dispatch failed")
	ErrReplyParse    = errors.New("cannot parse API reply")
	ErrVerification  = errors.New("reply verification failed")
	ErrNoRequests    = errors.New("no requests to verify against")
	ErrEmptyBatch    = errors.New("no API data provided")
	ErrClosed        = errors.New("executor closed")
)

// TransportError reports a failure of the SSH channel itself: the batch
// either never reached the remote side or its outcome is unknown.
type TransportError struct {
	Op   string // "connect", "exec"
	Host string
	Kind error // ErrConnect, ErrTimeout or ErrTransport
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Host, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Host, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RemoteError reports that the remote executor ran and exited non-zero.
// Stderr carries the dispatcher's diagnostic, which names the failing
// command and its arguments.
type RemoteError struct {
	Host       string
	ExitStatus int
	Stdout     string
	Stderr     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote executor on %s exited with status %d\nstdout: %s\nstderr: %s",
		e.Host, e.ExitStatus, e.Stdout, strings.TrimSpace(e.Stderr))
}

func (e *RemoteError) Unwrap() error {
	return ErrDispatch
}

// ReplyParseError reports a reply envelope that could not be decoded. Both
// captured streams are attached so the failure can be diagnosed without
// re-running the batch.
type ReplyParseError struct {
	Stdout string
	Stderr string
	Err    error
}

func (e *ReplyParseError) Error() string {
	return fmt.Sprintf("%v: %v\nstdout: %s\nstderr: %s", ErrReplyParse, e.Err, e.Stdout, e.Stderr)
}

func (e *ReplyParseError) Unwrap() []error {
	return []error{ErrReplyParse, e.Err}
}

// VerificationError names the first expected item missing from a response.
type VerificationError struct {
	Missing string
	Diff    string
}

func (e *VerificationError) Error() string {
	msg := fmt.Sprintf("%v: expected %q not found", ErrVerification, e.Missing)
	if e.Diff != "" {
		msg += "\n" + e.Diff
	}
	return msg
}

func (e *VerificationError) Unwrap() error {
	return ErrVerification
}

// ValidateConfig checks that a Config can be used to open a session.
func ValidateConfig(cfg Config) error {
	v := &util.ValidationBuilder{}
	v.Add(cfg.Host != "", "host is required")
	v.Add(cfg.User != "", "user is required")
	v.Add(cfg.Port >= 0 && cfg.Port <= 65535, fmt.Sprintf("port %d out of range", cfg.Port))
	v.Add(cfg.Timeout >= 0, "timeout must not be negative")
	v.Add(cfg.Executor != "", "executor path is required")
	return v.Build()
}
