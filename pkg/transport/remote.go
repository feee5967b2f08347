package transport

import (
	"strings"

	"github.com/newtron-network/papibridge/pkg/util"
)

// DefaultExecutor is where the remote executor binary is installed inside
// the target container.
const DefaultExecutor = "/opt/vpp-api-executor"

// RemoteCommand describes one invocation of the remote executor.
type RemoteCommand struct {
	Node     string // container to docker exec into; empty runs on the host
	Executor string
	Mode     string
	APIDirs  []string
	Data     []byte // JSON request envelope
}

// String renders the command line. Every variable part is single-quoted so
// the JSON payload survives the remote shell unchanged.
func (r RemoteCommand) String() string {
	executor := r.Executor
	if executor == "" {
		executor = DefaultExecutor
	}

	var parts []string
	if r.Node != "" {
		parts = append(parts, "docker", "exec", util.SingleQuote(r.Node))
	}
	parts = append(parts, util.ShellQuote(executor))
	if r.Mode != "" {
		parts = append(parts, "--mode", util.SingleQuote(r.Mode))
	}
	for _, dir := range r.APIDirs {
		parts = append(parts, "--api-dir", util.ShellQuote(dir))
	}
	parts = append(parts, "--data", util.SingleQuote(string(r.Data)))
	return strings.Join(parts, " ")
}
