// Package papi batches VPP binary-API calls, ships them to a remote host
// over SSH as one JSON payload and turns the remote reply envelope back
// into a Response.
package papi

import "fmt"

// StatsCommand is the pseudo API name used for stats segment queries.
const StatsCommand = "vpp-stats"

// Mode selects how the remote executor treats a batch.
type Mode string

const (
	ModeRequest Mode = "request"
	ModeDump    Mode = "dump"
	ModeStats   Mode = "stats"
)

// ParseMode validates a mode name. An empty name selects ModeRequest.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeRequest, nil
	case ModeRequest, ModeDump, ModeStats:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown execution mode %q (valid: request, dump, stats)", s)
}

// Command is one API call in a batch.
type Command struct {
	Name string
	Args map[string]any
}

// Batch is an ordered list of commands sent in a single round trip.
type Batch []Command

// Names returns the API names of the batch in submission order.
func (b Batch) Names() []string {
	if len(b) == 0 {
		return nil
	}
	names := make([]string, len(b))
	for i, c := range b {
		names[i] = c.Name
	}
	return names
}

// Encode converts the batch into its request envelope with every argument
// passed through the byte-safe codec.
func (b Batch) Encode() ([]WireCommand, error) {
	out := make([]WireCommand, len(b))
	for i, c := range b {
		args, err := EncodeArgs(c.Args)
		if err != nil {
			return nil, fmt.Errorf("command %d (%s): %w", i, c.Name, err)
		}
		out[i] = WireCommand{APIName: c.Name, APIArgs: args}
	}
	return out, nil
}

// WireCommand is one element of the request envelope.
type WireCommand struct {
	APIName string         `json:"api_name"`
	APIArgs map[string]any `json:"api_args"`
}

// WireReply is one element of the reply envelope. APIReply holds a mapping
// for request/reply calls and a sequence of mappings for dumps. APIError is
// set instead of APIReply only when the remote side was told to continue
// past failing commands.
type WireReply struct {
	APIName  string `json:"api_name"`
	APIReply any    `json:"api_reply,omitempty"`
	APIError string `json:"api_error,omitempty"`
}
