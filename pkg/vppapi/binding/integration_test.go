//go:build integration

package binding_test

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/newtron-network/papibridge/internal/testutil"
	"github.com/newtron-network/papibridge/pkg/papi"
	"github.com/newtron-network/papibridge/pkg/vppapi/binding"
	"github.com/newtron-network/papibridge/pkg/vppapi/dispatch"
	"github.com/newtron-network/papibridge/pkg/vppapi/schema"
)

// Run with a local VPP:
//
//	PAPI_TEST_VPP_SOCKET=/run/vpp/api.sock go test -tags integration ./pkg/vppapi/binding/
func newLiveDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	testutil.SkipIfNoVPP(t)

	dirs := schema.DefaultDirs
	if d := os.Getenv("PAPI_TEST_API_DIR"); d != "" {
		dirs = []string{d}
	}
	reg := testutil.Must[*schema.Registry](t)(schema.Load(dirs...))
	return dispatch.New(reg, binding.NewGoVPP(testutil.VPPSocket(), os.Getenv("PAPI_TEST_VPP_STATS_SOCKET"), nil))
}

func envelope(t *testing.T, name string, args map[string]any) []byte {
	t.Helper()
	wire := testutil.Must[[]papi.WireCommand](t)(papi.Batch{{Name: name, Args: args}}.Encode())
	data, err := json.Marshal(wire)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestLive_ShowVersion(t *testing.T) {
	d := newLiveDispatcher(t)

	out, err := d.Run(testutil.Context(t), papi.ModeRequest, envelope(t, "show_version", map[string]any{}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	reply := parse(t, out)
	fields, _ := reply.APIReply.(map[string]any)
	if reply.APIName != "show_version_reply" || fields["program"] != "vpe" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestLive_InterfaceDump(t *testing.T) {
	d := newLiveDispatcher(t)

	out, err := d.Run(testutil.Context(t), papi.ModeDump,
		envelope(t, "sw_interface_dump", map[string]any{"sw_if_index": uint32(0xffffffff)}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	reply := parse(t, out)
	if reply.APIName != "sw_interface_details" || !strings.Contains(string(out), `"interface_name":"local0"`) {
		t.Errorf("reply = %s", out)
	}
}

func TestLive_Stats(t *testing.T) {
	d := newLiveDispatcher(t)

	out, err := d.Run(testutil.Context(t), papi.ModeStats,
		envelope(t, papi.StatsCommand, map[string]any{"path": []any{"/sys/"}}))
	if err != nil {
		t.Skipf("stats segment unavailable: %v", err)
	}
	reply := parse(t, out)
	if stats, _ := reply.APIReply.(map[string]any); len(stats) == 0 {
		t.Error("no /sys/ counters returned")
	}
}

func parse(t *testing.T, out []byte) papi.WireReply {
	t.Helper()
	var replies []papi.WireReply
	if err := json.Unmarshal(out, &replies); err != nil {
		t.Fatalf("invalid reply envelope: %v\n%s", err, out)
	}
	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	return replies[0]
}
