// Package binding connects the dispatcher to a running VPP through GoVPP:
// the binary API socket for requests and dumps, the stats socket for
// counters.
package binding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.fd.io/govpp"
	"go.fd.io/govpp/adapter/statsclient"
	"go.fd.io/govpp/api"
	"go.fd.io/govpp/core"

	"github.com/newtron-network/papibridge/pkg/util"
	"github.com/newtron-network/papibridge/pkg/vppapi/dispatch"
)

// Default VPP socket locations.
const (
	DefaultAPISocket   = "/run/vpp/api.sock"
	DefaultStatsSocket = "/run/vpp/stats.sock"
)

// GoVPP is a dispatch.Binding backed by GoVPP.
type GoVPP struct {
	APISocket    string
	StatsSocket  string
	ReplyTimeout time.Duration

	messages MessageTable
	conn     *core.Connection
	ch       api.Channel
	stats    *statsclient.StatsClient
	log      *logrus.Entry
}

// NewGoVPP returns an unconnected binding. Empty socket paths select the
// defaults; a nil table selects DefaultMessages.
func NewGoVPP(apiSocket, statsSocket string, messages MessageTable) *GoVPP {
	if apiSocket == "" {
		apiSocket = DefaultAPISocket
	}
	if statsSocket == "" {
		statsSocket = DefaultStatsSocket
	}
	if messages == nil {
		messages = DefaultMessages()
	}
	return &GoVPP{
		APISocket:   apiSocket,
		StatsSocket: statsSocket,
		messages:    messages,
		log:         util.WithField("socket", apiSocket),
	}
}

// Connect opens the binary API connection and one channel on it.
func (g *GoVPP) Connect(ctx context.Context) error {
	if g.conn != nil {
		return nil
	}
	conn, err := govpp.Connect(g.APISocket)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", g.APISocket, err)
	}
	ch, err := conn.NewAPIChannel()
	if err != nil {
		conn.Disconnect()
		return fmt.Errorf("opening API channel: %w", err)
	}
	if timeout := g.replyTimeout(ctx); timeout > 0 {
		ch.SetReplyTimeout(timeout)
	}
	g.conn, g.ch = conn, ch
	g.log.Debug("connected")
	return nil
}

func (g *GoVPP) replyTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return g.ReplyTimeout
}

// Disconnect closes the channel, the connection and the stats client.
// It is a no-op when nothing is open.
func (g *GoVPP) Disconnect() error {
	var errs []error
	if g.ch != nil {
		g.ch.Close()
		g.ch = nil
	}
	if g.conn != nil {
		g.conn.Disconnect()
		g.conn = nil
	}
	if g.stats != nil {
		if err := g.stats.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("stats: %w", err))
		}
		g.stats = nil
	}
	g.log.Debug("disconnected")
	return errors.Join(errs...)
}

// Invoke binds the call arguments to the generated request and sends it.
// Streaming services collect every details message until the end marker.
func (g *GoVPP) Invoke(ctx context.Context, call dispatch.Call) ([]dispatch.NativeReply, error) {
	if g.ch == nil {
		return nil, util.ErrNotConnected
	}
	req, ok := g.messages.New(call.Name)
	if !ok {
		return nil, &dispatch.UnknownCommandError{Name: call.Name}
	}
	if err := BindArgs(req, call.Args); err != nil {
		return nil, err
	}

	replyName, stream := call.Name+"_reply", false
	if call.Service != nil {
		replyName = call.Service.Reply
		if call.Service.Stream {
			replyName, stream = call.Service.Details, true
		}
	}
	if _, ok := g.messages[replyName]; !ok {
		return nil, &dispatch.UnknownCommandError{Name: replyName}
	}

	if stream {
		return g.dump(req, replyName)
	}
	reply, _ := g.messages.New(replyName)
	if err := g.ch.SendRequest(req).ReceiveReply(reply); err != nil {
		return nil, fmt.Errorf("%w: %v", dispatch.ErrInvocation, err)
	}
	return []dispatch.NativeReply{reply}, nil
}

func (g *GoVPP) dump(req api.Message, detailsName string) ([]dispatch.NativeReply, error) {
	var out []dispatch.NativeReply
	reqCtx := g.ch.SendMultiRequest(req)
	for {
		msg, _ := g.messages.New(detailsName)
		stop, err := reqCtx.ReceiveReply(msg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dispatch.ErrInvocation, err)
		}
		if stop {
			return out, nil
		}
		out = append(out, msg)
	}
}

// DumpStats reads counters matching patterns from the stats segment. The
// stats client is connected on first use.
func (g *GoVPP) DumpStats(ctx context.Context, patterns ...string) ([]dispatch.StatEntry, error) {
	if g.stats == nil {
		sc := statsclient.NewStatsClient(g.StatsSocket)
		if err := sc.Connect(); err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", g.StatsSocket, err)
		}
		g.stats = sc
	}
	entries, err := g.stats.DumpStats(patterns...)
	if err != nil {
		return nil, fmt.Errorf("%w: dumping stats: %v", dispatch.ErrInvocation, err)
	}
	out := make([]dispatch.StatEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, dispatch.StatEntry{Name: string(e.Name), Data: e.Data})
	}
	return out, nil
}
