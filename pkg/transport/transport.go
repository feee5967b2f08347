// Package transport runs command lines on a remote host and collects their
// output. The SSH implementation keeps one connection per client and opens a
// fresh session for every command.
package transport

import "context"

// Result is the fully-read output of one remote command.
type Result struct {
	Stdout     []byte
	Stderr     []byte
	ExitStatus int
}

// Runner executes a single command line and blocks until it exits, the
// context ends, or the channel fails. A non-zero exit status is reported in
// Result, not as an error.
type Runner interface {
	Run(ctx context.Context, cmd string) (*Result, error)
	Close() error
}
