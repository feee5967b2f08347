package papi_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/newtron-network/papibridge/internal/fakevpp"
	"github.com/newtron-network/papibridge/internal/testutil"
	"github.com/newtron-network/papibridge/pkg/papi"
	"github.com/newtron-network/papibridge/pkg/vppapi/dispatch"
	"github.com/newtron-network/papibridge/pkg/vppapi/schema"
)

// remoteExecutor answers command lines the way vpp-api-executor does.
func remoteExecutor(d *dispatch.Dispatcher) testutil.ExecHandler {
	return func(cmd string, stdout, stderr io.Writer) int {
		args := testutil.SplitCommand(cmd)
		data, ok := testutil.FlagValue(args, "data")
		if !ok {
			fmt.Fprintln(stderr, "missing --data")
			return 2
		}
		flag, _ := testutil.FlagValue(args, "mode")
		mode, err := papi.ParseMode(flag)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		out, err := d.Run(context.Background(), mode, []byte(data))
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		stdout.Write(out)
		return 0
	}
}

type lab struct {
	server  *testutil.SSHServer
	binding *fakevpp.Binding
	cfg     papi.Config
}

func newLab(t *testing.T) *lab {
	t.Helper()
	dir := testutil.WriteAPIDir(t)
	reg := testutil.Must[*schema.Registry](t)(schema.Load(filepath.Join(dir, "core")))
	b := fakevpp.New()
	srv := testutil.NewSSHServer(t, remoteExecutor(dispatch.New(reg, b)))
	return &lab{
		server:  srv,
		binding: b,
		cfg: papi.Config{
			Host:     srv.Host,
			Port:     srv.Port,
			User:     srv.User,
			Password: srv.Password,
			Node:     "vpp1",
		},
	}
}

func (l *lab) waitClosed(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if l.server.Closed() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("server saw %d closed connections, want %d", l.server.Closed(), want)
}

func TestEndToEnd_ShowVersion(t *testing.T) {
	l := newLab(t)
	ctx := testutil.Context(t)

	err := papi.With(ctx, l.cfg, func(e *papi.Executor) error {
		resp, err := e.Add("show_version", nil).GetReplies(ctx)
		if err != nil {
			return err
		}
		if len(resp.Replies) != 1 || resp.Replies[0].Name != "show_version_reply" {
			t.Errorf("replies = %+v", resp.Replies)
		}
		if resp.Replies[0].Fields["program"] != "vpe" {
			t.Errorf("program = %v", resp.Replies[0].Fields["program"])
		}
		return resp.VerifyReplies()
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	cmds := l.server.Commands()
	if len(cmds) != 1 || !strings.HasPrefix(cmds[0], "docker exec 'vpp1' '/opt/vpp-api-executor'") {
		t.Errorf("commands = %v", cmds)
	}
	if l.server.Opened() != 1 {
		t.Errorf("opened %d connections, want 1", l.server.Opened())
	}
	l.waitClosed(t, 1)
}

func TestEndToEnd_BatchOrdering(t *testing.T) {
	l := newLab(t)
	ctx := testutil.Context(t)

	e, err := papi.Open(ctx, l.cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer e.Close()

	resp, err := e.
		Add("control_ping", nil).
		Add("sw_interface_add_del_address", map[string]any{
			"sw_if_index": 1,
			"is_add":      true,
			"prefix":      "10.0.0.1/24",
		}).
		Add("show_version", nil).
		GetReplies(ctx)
	if err != nil {
		t.Fatalf("GetReplies() error = %v", err)
	}
	want := []string{"control_ping_reply", "sw_interface_add_del_address_reply", "show_version_reply"}
	if !reflect.DeepEqual(resp.ReplyNames(), want) {
		t.Errorf("ReplyNames() = %v, want %v", resp.ReplyNames(), want)
	}
	if err := resp.VerifyReplies(); err != nil {
		t.Errorf("VerifyReplies() error = %v", err)
	}

	// A second batch reuses the same connection.
	if _, err := e.Add("show_version", nil).GetReplies(ctx); err != nil {
		t.Fatalf("second batch error = %v", err)
	}
	if l.server.Opened() != 1 || len(l.server.Commands()) != 2 {
		t.Errorf("opened=%d commands=%d", l.server.Opened(), len(l.server.Commands()))
	}
}

func TestEndToEnd_MalformedJSON(t *testing.T) {
	srv := testutil.NewSSHServer(t, func(cmd string, stdout, stderr io.Writer) int {
		io.WriteString(stdout, "vpp_papi: connected\n{not json")
		io.WriteString(stderr, "DeprecationWarning: old API")
		return 0
	})
	ctx := testutil.Context(t)
	cfg := papi.Config{Host: srv.Host, Port: srv.Port, User: srv.User, Password: srv.Password}

	err := papi.With(ctx, cfg, func(e *papi.Executor) error {
		_, err := e.Add("show_version", nil).GetReplies(ctx)
		return err
	})
	if !errors.Is(err, papi.ErrReplyParse) {
		t.Fatalf("error = %v, want ErrReplyParse", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "{not json") || !strings.Contains(msg, "DeprecationWarning: old API") {
		t.Errorf("error should contain stdout and stderr: %s", msg)
	}
	if !strings.HasPrefix(srv.Commands()[0], "'/opt/vpp-api-executor'") {
		t.Errorf("command without node should run on the host: %s", srv.Commands()[0])
	}
}

func TestEndToEnd_UnknownCommandAborts(t *testing.T) {
	l := newLab(t)
	ctx := testutil.Context(t)

	var resp *papi.Response
	err := papi.With(ctx, l.cfg, func(e *papi.Executor) error {
		var err error
		resp, err = e.
			Add("show_version", nil).
			Add("no_such_api", map[string]any{"name": "loop0"}).
			Add("control_ping", nil).
			GetReplies(ctx)
		return err
	})
	if resp != nil {
		t.Errorf("resp = %v, want none", resp)
	}
	if !errors.Is(err, papi.ErrDispatch) || errors.Is(err, papi.ErrTimeout) {
		t.Fatalf("error = %v, want a dispatch failure", err)
	}
	if !strings.Contains(err.Error(), `no_such_api(name="loop0") input error`) {
		t.Errorf("error does not name the command and its args: %v", err)
	}
	if got := l.binding.Calls(); !reflect.DeepEqual(got, []string{"show_version"}) {
		t.Errorf("remote calls = %v, want [show_version]", got)
	}
	if l.binding.Connected() {
		t.Error("remote binding left connected")
	}
	l.waitClosed(t, 1)
}

func TestEndToEnd_VerifyReply(t *testing.T) {
	l := newLab(t)
	ctx := testutil.Context(t)

	err := papi.With(ctx, l.cfg, func(e *papi.Executor) error {
		resp, err := e.Add("sw_interface_dump", nil).GetDump(ctx)
		if err != nil {
			return err
		}
		if err := resp.VerifyReply("interface_name: GigabitEthernet0/8/0\nl2_address: 02fe0a0b0c0d"); err != nil {
			t.Errorf("VerifyReply() error = %v", err)
		}
		return resp.VerifyReply("interface_name: local0\ninterface_name: loop9\n")
	})
	var verr *papi.VerificationError
	if !errors.As(err, &verr) || verr.Missing != "interface_name: loop9" {
		t.Fatalf("error = %v, want missing interface_name: loop9", err)
	}
}

func TestEndToEnd_Stats(t *testing.T) {
	l := newLab(t)
	ctx := testutil.Context(t)

	err := papi.With(ctx, l.cfg, func(e *papi.Executor) error {
		resp, err := e.AddStats("/sys").GetStats(ctx)
		if err != nil {
			return err
		}
		stats := resp.Replies[0].Fields
		if stats["/sys/vector_rate"] != 12.5 {
			t.Errorf("stats = %v", stats)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
}

func TestEndToEnd_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := testutil.NewSSHServer(t, func(cmd string, stdout, stderr io.Writer) int {
		<-block
		return 0
	})
	t.Cleanup(func() { close(block) })

	ctx := testutil.Context(t)
	cfg := papi.Config{Host: srv.Host, Port: srv.Port, User: srv.User, Password: srv.Password}
	err := papi.With(ctx, cfg, func(e *papi.Executor) error {
		_, err := e.Add("show_version", nil).GetReplies(ctx, papi.WithTimeout(200*time.Millisecond))
		return err
	})
	if !errors.Is(err, papi.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if errors.Is(err, papi.ErrDispatch) {
		t.Error("timeout must be distinct from a dispatch failure")
	}
}

func TestEndToEnd_AuthFailure(t *testing.T) {
	l := newLab(t)
	cfg := l.cfg
	cfg.Password = "wrong"
	_, err := papi.Open(testutil.Context(t), cfg)
	if !errors.Is(err, papi.ErrConnect) {
		t.Fatalf("error = %v, want ErrConnect", err)
	}
	var terr *papi.TransportError
	if !errors.As(err, &terr) || terr.Op != "connect" {
		t.Errorf("error = %#v", err)
	}
}

func TestExecuteAPI_EndToEnd(t *testing.T) {
	l := newLab(t)
	replies, err := papi.ExecuteAPI(testutil.Context(t), l.cfg, "control_ping", nil)
	if err != nil {
		t.Fatalf("ExecuteAPI() error = %v", err)
	}
	if len(replies) != 1 || replies[0].Fields["vpe_pid"] != int64(42) {
		t.Errorf("replies = %+v", replies)
	}
	l.waitClosed(t, 1)
}
