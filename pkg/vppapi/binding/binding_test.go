package binding

import (
	"errors"
	"testing"

	"github.com/newtron-network/papibridge/internal/testutil"
	"github.com/newtron-network/papibridge/pkg/util"
	"github.com/newtron-network/papibridge/pkg/vppapi/dispatch"
)

func TestDefaultMessages(t *testing.T) {
	table := DefaultMessages()
	for _, name := range []string{
		"show_version", "show_version_reply",
		"control_ping", "control_ping_reply",
		"sw_interface_dump", "sw_interface_details",
		"bridge_domain_dump", "bridge_domain_details",
	} {
		msg, ok := table.New(name)
		if !ok {
			t.Errorf("message %s not registered", name)
			continue
		}
		if msg.GetMessageName() != name {
			t.Errorf("New(%q) returned %s", name, msg.GetMessageName())
		}
	}
}

func TestMessageTable_Names(t *testing.T) {
	names := DefaultMessages().Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Names() not sorted at %d: %q > %q", i, names[i-1], names[i])
		}
	}
}

func TestGoVPP_Defaults(t *testing.T) {
	g := NewGoVPP("", "", nil)
	if g.APISocket != DefaultAPISocket || g.StatsSocket != DefaultStatsSocket {
		t.Errorf("sockets = %s, %s", g.APISocket, g.StatsSocket)
	}
}

func TestGoVPP_NotConnected(t *testing.T) {
	g := NewGoVPP("", "", nil)
	_, err := g.Invoke(testutil.Context(t), dispatch.Call{Name: "show_version"})
	if !errors.Is(err, util.ErrNotConnected) {
		t.Errorf("Invoke() error = %v, want ErrNotConnected", err)
	}
	if err := g.Disconnect(); err != nil {
		t.Errorf("Disconnect() on idle binding = %v", err)
	}
}
