package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/newtron-network/papibridge/internal/fakevpp"
	"github.com/newtron-network/papibridge/internal/testutil"
	"github.com/newtron-network/papibridge/pkg/papi"
	"github.com/newtron-network/papibridge/pkg/vppapi/dispatch"
	"github.com/newtron-network/papibridge/pkg/vppapi/schema"
)

func newDispatcher(t *testing.T, opts ...dispatch.Option) (*dispatch.Dispatcher, *fakevpp.Binding) {
	t.Helper()
	dir := testutil.WriteAPIDir(t)
	reg := testutil.Must[*schema.Registry](t)(schema.Load(filepath.Join(dir, "core")))
	b := fakevpp.New()
	return dispatch.New(reg, b, opts...), b
}

func payload(t *testing.T, batch papi.Batch) []byte {
	t.Helper()
	env, err := batch.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func run(t *testing.T, d *dispatch.Dispatcher, mode papi.Mode, batch papi.Batch) ([]map[string]any, error) {
	t.Helper()
	out, err := d.Run(testutil.Context(t), mode, payload(t, batch))
	if err != nil {
		return nil, err
	}
	var replies []map[string]any
	if err := json.Unmarshal(out, &replies); err != nil {
		t.Fatalf("reply envelope is not JSON: %v\n%s", err, out)
	}
	return replies, nil
}

func TestRun_ShowVersion(t *testing.T) {
	d, b := newDispatcher(t)
	replies, err := run(t, d, papi.ModeRequest, papi.Batch{{Name: "show_version", Args: map[string]any{}}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	if replies[0]["api_name"] != "show_version_reply" {
		t.Errorf("api_name = %v", replies[0]["api_name"])
	}
	fields := replies[0]["api_reply"].(map[string]any)
	if fields["program"] != "vpe" || fields["version"] != "24.02-release" {
		t.Errorf("api_reply = %v", fields)
	}
	if b.Connects() != 1 || b.Disconnects() != 1 || b.Connected() {
		t.Errorf("connects=%d disconnects=%d connected=%v", b.Connects(), b.Disconnects(), b.Connected())
	}
}

func TestRun_Ordering(t *testing.T) {
	d, _ := newDispatcher(t)
	batch := papi.Batch{
		{Name: "control_ping"},
		{Name: "sw_interface_add_del_address", Args: map[string]any{
			"sw_if_index": 1, "is_add": true, "prefix": "10.0.0.1/24",
		}},
		{Name: "show_version"},
	}
	replies, err := run(t, d, papi.ModeRequest, batch)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	var names []string
	for _, r := range replies {
		names = append(names, r["api_name"].(string))
	}
	want := []string{"control_ping_reply", "sw_interface_add_del_address_reply", "show_version_reply"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("reply names = %v, want %v", names, want)
	}

	ping := replies[0]["api_reply"].(map[string]any)
	if _, ok := ping["client_index"]; ok {
		t.Error("client_index should be excluded")
	}
	if ping["vpe_pid"] != float64(42) {
		t.Errorf("vpe_pid = %v", ping["vpe_pid"])
	}
}

func TestRun_Dump(t *testing.T) {
	d, _ := newDispatcher(t)
	replies, err := run(t, d, papi.ModeDump, papi.Batch{{Name: "sw_interface_dump"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if replies[0]["api_name"] != "sw_interface_details" {
		t.Errorf("api_name = %v", replies[0]["api_name"])
	}
	details := replies[0]["api_reply"].([]any)
	if len(details) != 2 {
		t.Fatalf("got %d details, want 2", len(details))
	}
	second := details[1].(map[string]any)
	if second["l2_address"] != "02fe0a0b0c0d" {
		t.Errorf("l2_address = %v", second["l2_address"])
	}
	if second["tag"] != "uplink" || second["admin_up"] != float64(1) {
		t.Errorf("details = %v", second)
	}
}

func TestRun_DumpEmpty(t *testing.T) {
	d, b := newDispatcher(t)
	b.Handle("bridge_domain_dump", func(map[string]any) ([]dispatch.NativeReply, error) {
		return nil, nil
	})
	replies, err := run(t, d, papi.ModeDump, papi.Batch{{Name: "bridge_domain_dump"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if replies[0]["api_name"] != "bridge_domain_details" {
		t.Errorf("api_name = %v", replies[0]["api_name"])
	}
	if got := replies[0]["api_reply"].([]any); len(got) != 0 {
		t.Errorf("api_reply = %v, want empty list", got)
	}
}

func TestRun_UnknownCommandAborts(t *testing.T) {
	d, b := newDispatcher(t)
	batch := papi.Batch{
		{Name: "show_version"},
		{Name: "no_such_api", Args: map[string]any{"name": "loop0"}},
		{Name: "control_ping"},
	}
	replies, err := run(t, d, papi.ModeRequest, batch)
	if err == nil {
		t.Fatal("expected error")
	}
	if replies != nil {
		t.Errorf("replies = %v, want none", replies)
	}

	var cmdErr *dispatch.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error %T is not *CommandError", err)
	}
	if cmdErr.Name != "no_such_api" || !cmdErr.Input {
		t.Errorf("CommandError = %+v", cmdErr)
	}
	if !errors.Is(err, dispatch.ErrUnknownCommand) {
		t.Error("error should wrap ErrUnknownCommand")
	}
	if !strings.Contains(err.Error(), `PAPI command no_such_api(name="loop0") input error`) {
		t.Errorf("error = %q", err)
	}
	if got := b.Calls(); !reflect.DeepEqual(got, []string{"show_version"}) {
		t.Errorf("calls = %v, want only show_version", got)
	}
	if b.Disconnects() != 1 || b.Connected() {
		t.Error("binding should be disconnected after a failure")
	}
}

func TestRun_InvalidArgs(t *testing.T) {
	d, _ := newDispatcher(t)
	_, err := run(t, d, papi.ModeRequest, papi.Batch{
		{Name: "sw_interface_add_del_address", Args: map[string]any{"prefix": "10.0.0.1/24"}},
	})
	if !errors.Is(err, dispatch.ErrInvalidArgs) {
		t.Fatalf("error = %v, want ErrInvalidArgs", err)
	}
	if !strings.Contains(err.Error(), "input error") {
		t.Errorf("error = %q", err)
	}
}

func TestRun_InvocationError(t *testing.T) {
	d, b := newDispatcher(t)
	b.Fail("control_ping", errors.New("VPPApiError: -2"))
	_, err := run(t, d, papi.ModeRequest, papi.Batch{{Name: "control_ping"}})
	if !errors.Is(err, dispatch.ErrInvocation) {
		t.Fatalf("error = %v, want ErrInvocation", err)
	}
	var cmdErr *dispatch.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Input {
		t.Error("invocation failure should not be an input error")
	}
	if !strings.Contains(err.Error(), "PAPI command control_ping() error:") {
		t.Errorf("error = %q", err)
	}
}

func TestRun_MalformedHex(t *testing.T) {
	d, b := newDispatcher(t)
	data := []byte(`[{"api_name": "show_version", "api_args": {"sw_if_index": 1, "x": "zz"}}]`)
	_, err := d.Run(testutil.Context(t), papi.ModeRequest, data)
	if !errors.Is(err, papi.ErrMalformedHex) || !errors.Is(err, dispatch.ErrInvalidArgs) {
		t.Fatalf("error = %v, want malformed hex input error", err)
	}
	var cerr *dispatch.CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %T, want *CommandError", err)
	}
	if cerr.Args["sw_if_index"] == nil {
		t.Errorf("Args = %v, want the submitted arguments", cerr.Args)
	}
	if !strings.Contains(err.Error(), "sw_if_index=1") {
		t.Errorf("error %q does not name the arguments", err)
	}
	if len(b.Calls()) != 0 {
		t.Errorf("calls = %v, want none", b.Calls())
	}
}

func TestRun_BadEnvelope(t *testing.T) {
	d, b := newDispatcher(t)
	if _, err := d.Run(testutil.Context(t), papi.ModeRequest, []byte("not json")); err == nil {
		t.Fatal("expected error")
	}
	if b.Connects() != 0 {
		t.Error("should not connect for an undecodable envelope")
	}
}

func TestRun_ConnectError(t *testing.T) {
	d, b := newDispatcher(t)
	b.ConnectErr = errors.New("connection refused")
	_, err := run(t, d, papi.ModeRequest, papi.Batch{{Name: "show_version"}})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("error = %v", err)
	}
	if len(b.Calls()) != 0 {
		t.Error("no command should run without a connection")
	}
}

func TestRun_ContinueOnError(t *testing.T) {
	d, b := newDispatcher(t, dispatch.WithContinueOnError())
	replies, err := run(t, d, papi.ModeRequest, papi.Batch{
		{Name: "show_version"},
		{Name: "no_such_api"},
		{Name: "control_ping"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(replies) != 3 {
		t.Fatalf("got %d entries, want 3", len(replies))
	}
	if _, ok := replies[1]["api_reply"]; ok {
		t.Error("failed entry should have no api_reply")
	}
	if msg, _ := replies[1]["api_error"].(string); !strings.Contains(msg, "no_such_api") {
		t.Errorf("api_error = %q", msg)
	}
	if replies[2]["api_name"] != "control_ping_reply" {
		t.Errorf("third entry = %v", replies[2])
	}
	if b.Disconnects() != 1 {
		t.Errorf("disconnects = %d, want 1", b.Disconnects())
	}
}

func TestRun_Stats(t *testing.T) {
	d, _ := newDispatcher(t)
	replies, err := run(t, d, papi.ModeStats, papi.Batch{
		{Name: papi.StatsCommand, Args: map[string]any{"path": []any{"/if"}}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if replies[0]["api_name"] != papi.StatsCommand {
		t.Errorf("api_name = %v", replies[0]["api_name"])
	}
	stats := replies[0]["api_reply"].(map[string]any)
	if _, ok := stats["/sys/vector_rate"]; ok {
		t.Error("pattern /if should not match /sys/vector_rate")
	}
	names := stats["/if/names"].([]any)
	if len(names) != 2 || names[1] != "GigabitEthernet0/8/0" {
		t.Errorf("/if/names = %v", names)
	}
	if _, ok := stats["/if/rx"]; !ok {
		t.Error("missing /if/rx")
	}
}

func TestRun_StatsBadPath(t *testing.T) {
	d, _ := newDispatcher(t)
	_, err := run(t, d, papi.ModeStats, papi.Batch{
		{Name: papi.StatsCommand, Args: map[string]any{"path": 7}},
	})
	if !errors.Is(err, dispatch.ErrInvalidArgs) {
		t.Fatalf("error = %v, want ErrInvalidArgs", err)
	}
}

func TestRegister(t *testing.T) {
	d, _ := newDispatcher(t)
	d.Register("cli_inband", func(ctx context.Context, args map[string]any) ([]dispatch.NativeReply, error) {
		return []dispatch.NativeReply{&fakevpp.ControlPingReply{VpePID: 7}}, nil
	})

	commands := d.Commands()
	for _, want := range []string{"cli_inband", "show_version", "sw_interface_dump"} {
		found := false
		for _, c := range commands {
			found = found || c == want
		}
		if !found {
			t.Errorf("Commands() missing %q: %v", want, commands)
		}
	}

	replies, err := run(t, d, papi.ModeRequest, papi.Batch{{Name: "cli_inband"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if replies[0]["api_name"] != "control_ping_reply" {
		t.Errorf("api_name = %v", replies[0]["api_name"])
	}
}

func TestFormatArgs(t *testing.T) {
	got := dispatch.FormatArgs(map[string]any{
		"name":  []byte("loop0"),
		"mac":   []byte{0, 1, 2},
		"index": int64(3),
		"list":  []any{int64(1), []byte("a")},
	})
	want := `index=3, list=[1 "a"], mac=0x000102, name="loop0"`
	if got != want {
		t.Errorf("FormatArgs() = %s, want %s", got, want)
	}
}
