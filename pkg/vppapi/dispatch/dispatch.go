// Package dispatch runs a decoded request envelope against a live API
// binding. Command names resolve through a registry built from the API
// descriptors; each command runs in submission order and the first
// failure aborts the batch.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/papibridge/pkg/papi"
	"github.com/newtron-network/papibridge/pkg/util"
	"github.com/newtron-network/papibridge/pkg/vppapi/normalize"
	"github.com/newtron-network/papibridge/pkg/vppapi/schema"
)

// NativeReply is a generated API message returned by a binding.
type NativeReply interface {
	GetMessageName() string
}

// StatEntry is one counter read from the stats segment.
type StatEntry struct {
	Name string
	Data any
}

// Call is one resolved API invocation handed to a binding.
type Call struct {
	Name    string
	Args    map[string]any
	Service *schema.Service
}

// Binding is a live session to VPP. The dispatcher connects before the
// first command and disconnects after the last, or as soon as one fails.
type Binding interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Invoke(ctx context.Context, call Call) ([]NativeReply, error)
	DumpStats(ctx context.Context, patterns ...string) ([]StatEntry, error)
}

// Handler executes one command with decoded arguments.
type Handler func(ctx context.Context, args map[string]any) ([]NativeReply, error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithContinueOnError records a failing command as an api_error entry
// and carries on with the rest of the batch.
func WithContinueOnError() Option {
	return func(d *Dispatcher) { d.continueOnError = true }
}

// Dispatcher resolves and invokes batched commands.
type Dispatcher struct {
	reg     *schema.Registry
	binding Binding
	norm    *normalize.Normalizer
	log     *logrus.Entry

	handlers        map[string]Handler
	services        map[string]*schema.Service
	continueOnError bool
}

// New builds a dispatcher with one handler per service in reg.
func New(reg *schema.Registry, b Binding, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:      reg,
		binding:  b,
		norm:     normalize.New(reg),
		log:      util.WithField("component", "dispatch"),
		handlers: make(map[string]Handler),
		services: make(map[string]*schema.Service),
	}
	if reg != nil {
		for _, svc := range reg.Services() {
			d.services[svc.Request] = svc
			d.handlers[svc.Request] = d.serviceHandler(svc)
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) serviceHandler(svc *schema.Service) Handler {
	return func(ctx context.Context, args map[string]any) ([]NativeReply, error) {
		return d.binding.Invoke(ctx, Call{Name: svc.Request, Args: args, Service: svc})
	}
}

// Register adds or replaces the handler for name.
func (d *Dispatcher) Register(name string, h Handler) {
	d.handlers[name] = h
}

// Commands returns every resolvable command name, sorted.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the request envelope in payload and returns the encoded
// reply envelope.
func (d *Dispatcher) Run(ctx context.Context, mode papi.Mode, payload []byte) ([]byte, error) {
	cmds, err := decodeEnvelope(payload)
	if err != nil {
		return nil, err
	}

	if err := d.binding.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting to VPP: %w", err)
	}

	replies := make([]papi.WireReply, 0, len(cmds))
	for _, cmd := range cmds {
		reply, err := d.runCommand(ctx, mode, cmd)
		if err != nil {
			if d.continueOnError {
				d.log.WithField("api", cmd.APIName).Warnf("continuing after failed command: %v", err)
				replies = append(replies, papi.WireReply{APIName: cmd.APIName, APIError: err.Error()})
				continue
			}
			d.disconnect()
			return nil, err
		}
		replies = append(replies, reply)
	}
	d.disconnect()

	out, err := json.Marshal(replies)
	if err != nil {
		return nil, fmt.Errorf("encoding reply envelope: %w", err)
	}
	return out, nil
}

func (d *Dispatcher) disconnect() {
	if err := d.binding.Disconnect(); err != nil {
		d.log.Warnf("disconnect: %v", err)
	}
}

func decodeEnvelope(payload []byte) ([]papi.WireCommand, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var cmds []papi.WireCommand
	if err := dec.Decode(&cmds); err != nil {
		return nil, fmt.Errorf("%w: request envelope: %v", ErrInvalidArgs, err)
	}
	return cmds, nil
}

func (d *Dispatcher) runCommand(ctx context.Context, mode papi.Mode, cmd papi.WireCommand) (papi.WireReply, error) {
	log := d.log.WithField("api", cmd.APIName)

	args, err := papi.DecodeArgs(cmd.APIArgs)
	if err != nil {
		// Undecodable arguments are reported in their encoded form.
		return papi.WireReply{}, newCommandError(cmd.APIName, cmd.APIArgs, fmt.Errorf("%w: %w", ErrInvalidArgs, err))
	}

	if mode == papi.ModeStats {
		reply, err := d.stats(ctx, cmd.APIName, args)
		if err != nil {
			return papi.WireReply{}, newCommandError(cmd.APIName, args, err)
		}
		return reply, nil
	}

	h, ok := d.handlers[cmd.APIName]
	if !ok {
		return papi.WireReply{}, newCommandError(cmd.APIName, args, &UnknownCommandError{Name: cmd.APIName})
	}

	log.Debugf("invoking with %s", FormatArgs(args))
	msgs, err := h(ctx, args)
	if err != nil {
		return papi.WireReply{}, newCommandError(cmd.APIName, args, err)
	}

	reply, err := d.replyFor(mode, cmd.APIName, msgs)
	if err != nil {
		return papi.WireReply{}, newCommandError(cmd.APIName, args, err)
	}
	log.Debugf("%s: %d message(s)", reply.APIName, len(msgs))
	return reply, nil
}

// replyFor normalizes the messages of one command. Dumps always yield a
// sequence; a request yields a mapping unless it produced several
// messages.
func (d *Dispatcher) replyFor(mode papi.Mode, name string, msgs []NativeReply) (papi.WireReply, error) {
	items := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		item, err := d.norm.Message(m.GetMessageName(), m)
		if err != nil {
			return papi.WireReply{}, err
		}
		items = append(items, item)
	}

	reply := papi.WireReply{APIName: d.replyName(mode, name, msgs)}
	if mode == papi.ModeDump || len(items) > 1 {
		reply.APIReply = items
	} else if len(items) == 1 {
		reply.APIReply = items[0]
	} else {
		reply.APIReply = map[string]any{}
	}
	return reply, nil
}

func (d *Dispatcher) replyName(mode papi.Mode, name string, msgs []NativeReply) string {
	if len(msgs) > 0 {
		return msgs[0].GetMessageName()
	}
	if svc, ok := d.services[name]; ok {
		if mode == papi.ModeDump && svc.Details != "" {
			return svc.Details
		}
		return svc.Reply
	}
	if mode == papi.ModeDump {
		return strings.TrimSuffix(name, "_dump") + "_details"
	}
	return name + "_reply"
}

// stats reads the counters matching the command's path argument, a single
// pattern or a sequence of them.
func (d *Dispatcher) stats(ctx context.Context, name string, args map[string]any) (papi.WireReply, error) {
	patterns, err := statPatterns(args["path"])
	if err != nil {
		return papi.WireReply{}, err
	}
	entries, err := d.binding.DumpStats(ctx, patterns...)
	if err != nil {
		return papi.WireReply{}, err
	}
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[e.Name] = normalize.Value(e.Data)
	}
	return papi.WireReply{APIName: name, APIReply: out}, nil
}

func statPatterns(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return []string{string(x)}, nil
	case []any:
		out := make([]string, len(x))
		for i, el := range x {
			b, ok := el.([]byte)
			if !ok {
				return nil, fmt.Errorf("%w: path[%d] is %T, want string", ErrInvalidArgs, i, el)
			}
			out[i] = string(b)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: path is %T, want string or list", ErrInvalidArgs, v)
}
