package papi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/newtron-network/papibridge/pkg/transport"
	"github.com/newtron-network/papibridge/pkg/util"
)

// DefaultTimeout bounds one remote execution.
const DefaultTimeout = 120 * time.Second

// Config describes the remote target. It is read-only once a session is
// opened.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	KeyFile        string
	KnownHostsFile string

	Node     string   // container running VPP; empty executes on the host
	Executor string   // remote executor path
	APIDirs  []string // descriptor directories passed to the executor

	Timeout     time.Duration // per-batch execution timeout
	DialTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Executor == "" {
		c.Executor = transport.DefaultExecutor
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

func (c Config) sshConfig() transport.SSHConfig {
	return transport.SSHConfig{
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		KeyFile:        c.KeyFile,
		KnownHostsFile: c.KnownHostsFile,
		DialTimeout:    c.DialTimeout,
	}
}

// Executor is a scoped session to one remote host. It owns its runner
// exclusively; batches execute one at a time.
//
// Typical use:
//
//	err := papi.With(ctx, cfg, func(e *papi.Executor) error {
//		resp, err := e.Add("show_version", nil).GetReplies(ctx)
//		if err != nil {
//			return err
//		}
//		return resp.VerifyReplies()
//	})
type Executor struct {
	cfg    Config
	runner transport.Runner
	log    *logrus.Entry

	mu    sync.Mutex // guards batch
	batch Batch

	execMu sync.Mutex // serialises round trips

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// dial opens the runner for a session; tests replace it.
var dial = func(ctx context.Context, cfg transport.SSHConfig) (transport.Runner, error) {
	return transport.DialSSH(ctx, cfg)
}

// Open validates cfg and dials the SSH connection. A connection failure is
// returned as a *TransportError wrapping ErrConnect; no batch is attempted.
func Open(ctx context.Context, cfg Config) (*Executor, error) {
	cfg = cfg.withDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	client, err := dial(ctx, cfg.sshConfig())
	if err != nil {
		return nil, &TransportError{Op: "connect", Host: cfg.Host, Kind: ErrConnect, Err: err}
	}
	return NewExecutor(client, cfg), nil
}

// NewExecutor wraps an already-connected runner. The executor takes
// ownership and closes it on Close.
func NewExecutor(runner transport.Runner, cfg Config) *Executor {
	cfg = cfg.withDefaults()
	return &Executor{
		cfg:    cfg,
		runner: runner,
		log:    util.WithHost(cfg.Host).WithField("node", cfg.Node),
	}
}

// With opens a session, runs fn and closes the session on every exit path,
// including a panic in fn.
func With(ctx context.Context, cfg Config, fn func(*Executor) error) (err error) {
	e, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(e)
}

// ExecuteAPI opens a session, sends one request/reply call and returns the
// processed replies.
func ExecuteAPI(ctx context.Context, cfg Config, name string, args map[string]any) ([]Reply, error) {
	var replies []Reply
	err := With(ctx, cfg, func(e *Executor) error {
		resp, err := e.Add(name, args).GetReplies(ctx)
		if err != nil {
			return err
		}
		replies = resp.Replies
		return nil
	})
	return replies, err
}

// Close releases the connection. It is safe to call more than once; only
// the first call reaches the runner.
func (e *Executor) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.batch = nil
		e.mu.Unlock()
		e.closeErr = e.runner.Close()
	})
	return e.closeErr
}

// Add appends a command to the pending batch and returns the executor so
// calls can be chained.
func (e *Executor) Add(name string, args map[string]any) *Executor {
	if args == nil {
		args = map[string]any{}
	}
	e.mu.Lock()
	e.batch = append(e.batch, Command{Name: name, Args: args})
	e.mu.Unlock()
	return e
}

// AddStats appends a stats query for the given path patterns.
func (e *Executor) AddStats(patterns ...string) *Executor {
	paths := make([]any, len(patterns))
	for i, p := range patterns {
		paths[i] = p
	}
	return e.Add(StatsCommand, map[string]any{"path": paths})
}

// Pending returns the number of commands waiting to be executed.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.batch)
}

// GetReplies executes the batch as request/reply calls.
func (e *Executor) GetReplies(ctx context.Context, opts ...Option) (*Response, error) {
	return e.Execute(ctx, ModeRequest, opts...)
}

// GetDump executes the batch as dump calls.
func (e *Executor) GetDump(ctx context.Context, opts ...Option) (*Response, error) {
	return e.Execute(ctx, ModeDump, opts...)
}

// GetStats executes the batch as stats segment queries.
func (e *Executor) GetStats(ctx context.Context, opts ...Option) (*Response, error) {
	return e.Execute(ctx, ModeStats, opts...)
}

// Execute ships the pending batch to the remote executor and builds a
// Response from its reply envelope. The batch is cleared before any I/O, so
// a failed round trip never leaves stale commands behind.
func (e *Executor) Execute(ctx context.Context, mode Mode, opts ...Option) (*Response, error) {
	o := newExecOptions(e.cfg, opts)

	e.mu.Lock()
	batch := e.batch
	e.batch = nil
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	e.execMu.Lock()
	defer e.execMu.Unlock()

	batchID := uuid.NewString()
	log := e.log.WithFields(logrus.Fields{
		"batch": batchID,
		"mode":  string(mode),
	})

	envelope, err := batch.Encode()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	cmd := transport.RemoteCommand{
		Node:     e.cfg.Node,
		Executor: e.cfg.Executor,
		Mode:     string(mode),
		APIDirs:  e.cfg.APIDirs,
		Data:     data,
	}.String()
	log.WithField("commands", len(batch)).Debug(cmd)

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := e.runner.Run(runCtx, cmd)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TransportError{Op: "exec", Host: e.cfg.Host, Kind: ErrTimeout,
				Err: fmt.Errorf("after %s", o.timeout)}
		}
		return nil, &TransportError{Op: "exec", Host: e.cfg.Host, Kind: ErrTransport, Err: err}
	}

	resp := newResponse(string(res.Stdout), string(res.Stderr), batch.Names())
	resp.BatchID = batchID
	if !o.processReply {
		return resp, nil
	}

	if res.ExitStatus != 0 {
		log.Errorf("An error occurred while executing the PAPI batch:\nstdout: %s\nstderr: %s",
			resp.Stdout, resp.Stderr)
		return nil, &RemoteError{Host: e.cfg.Host, ExitStatus: res.ExitStatus,
			Stdout: resp.Stdout, Stderr: resp.Stderr}
	}

	replies, err := parseReplies(res.Stdout, o.ignoreErrors, log)
	if err != nil {
		log.Errorf("An error occurred while processing the PAPI reply:\nstdout: %s\nstderr: %s",
			resp.Stdout, resp.Stderr)
		return nil, &ReplyParseError{Stdout: resp.Stdout, Stderr: resp.Stderr, Err: err}
	}
	resp.Replies = replies

	log.Debugf("Processed PAPI reply: %v", replies)
	return resp, nil
}

// parseReplies decodes the reply envelope. Entries lacking api_name or
// api_reply are skipped when ignoreErrors is set and fail the call otherwise.
func parseReplies(stdout []byte, ignoreErrors bool, log *logrus.Entry) ([]Reply, error) {
	dec := json.NewDecoder(bytes.NewReader(stdout))
	dec.UseNumber()

	var entries []map[string]any
	if err := dec.Decode(&entries); err != nil {
		return nil, err
	}

	replies := make([]Reply, 0, len(entries))
	for i, entry := range entries {
		reply, err := replyFromEntry(entry)
		if err != nil {
			if ignoreErrors {
				log.Warnf("skipping reply %d: %v", i, err)
				continue
			}
			return nil, fmt.Errorf("reply %d: %w", i, err)
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

func replyFromEntry(entry map[string]any) (Reply, error) {
	name, ok := entry["api_name"].(string)
	if !ok {
		return Reply{}, fmt.Errorf("missing %q", "api_name")
	}
	raw, ok := entry["api_reply"]
	if !ok {
		if msg, failed := entry["api_error"].(string); failed {
			return Reply{}, fmt.Errorf("%s failed remotely: %s", name, msg)
		}
		return Reply{}, fmt.Errorf("%s: missing %q", name, "api_reply")
	}

	reply := Reply{Name: name}
	switch v := fromJSON(raw).(type) {
	case map[string]any:
		reply.Fields = v
	case []any:
		reply.Details = make([]map[string]any, 0, len(v))
		for j, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return Reply{}, fmt.Errorf("%s: detail %d is %T, not a mapping", name, j, item)
			}
			reply.Details = append(reply.Details, m)
		}
	default:
		return Reply{}, fmt.Errorf("%s: api_reply is %T, not a mapping or sequence", name, v)
	}
	return reply, nil
}

// fromJSON replaces json.Number leaves with int64, uint64 or float64.
func fromJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		n, err := decodeNumber(x)
		if err != nil {
			return x.String()
		}
		return n
	case map[string]any:
		for k, val := range x {
			x[k] = fromJSON(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = fromJSON(val)
		}
		return x
	}
	return v
}

// Option adjusts a single Execute call.
type Option func(*execOptions)

type execOptions struct {
	timeout      time.Duration
	ignoreErrors bool
	processReply bool
}

func newExecOptions(cfg Config, opts []Option) execOptions {
	o := execOptions{timeout: cfg.Timeout, processReply: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	return o
}

// WithTimeout overrides the session timeout for one call.
func WithTimeout(d time.Duration) Option {
	return func(o *execOptions) { o.timeout = d }
}

// WithIgnoreErrors skips malformed reply entries instead of failing the call.
func WithIgnoreErrors() Option {
	return func(o *execOptions) { o.ignoreErrors = true }
}

// WithoutReplyProcessing returns stdout and stderr without parsing them.
func WithoutReplyProcessing() Option {
	return func(o *execOptions) { o.processReply = false }
}
