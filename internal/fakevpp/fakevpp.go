// Package fakevpp is an in-memory dispatch.Binding that answers a handful
// of API calls with canned messages shaped like the generated bindings.
package fakevpp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/newtron-network/papibridge/pkg/vppapi/dispatch"
)

// Messages shaped like generated binapi structs.

type MacAddress [6]uint8

type AddressUnion struct {
	XXX_UnionData [16]byte
}

type Address struct {
	Af uint8        `binapi:"address_family,name=af"`
	Un AddressUnion `binapi:"address_union,name=un"`
}

type Prefix struct {
	Address Address `binapi:"address,name=address"`
	Len     uint8   `binapi:"u8,name=len"`
}

type ShowVersionReply struct {
	Retval         int32  `binapi:"i32,name=retval"`
	Program        string `binapi:"string[32],name=program"`
	Version        string `binapi:"string[32],name=version"`
	BuildDate      string `binapi:"string[32],name=build_date"`
	BuildDirectory string `binapi:"string[256],name=build_directory"`
}

func (*ShowVersionReply) GetMessageName() string { return "show_version_reply" }

type ControlPingReply struct {
	Retval      int32  `binapi:"i32,name=retval"`
	ClientIndex uint32 `binapi:"u32,name=client_index"`
	VpePID      uint32 `binapi:"u32,name=vpe_pid"`
}

func (*ControlPingReply) GetMessageName() string { return "control_ping_reply" }

type SwInterfaceDetails struct {
	SwIfIndex     uint32     `binapi:"interface_index,name=sw_if_index"`
	SupSwIfIndex  uint32     `binapi:"u32,name=sup_sw_if_index"`
	L2Address     MacAddress `binapi:"mac_address,name=l2_address"`
	LinkMtu       uint32     `binapi:"u32,name=link_mtu"`
	AdminUp       bool       `binapi:"bool,name=admin_up"`
	InterfaceName string     `binapi:"string[64],name=interface_name"`
	Tag           []byte     `binapi:"u8[64],name=tag"`
	RawAddress    []byte     `binapi:"u8[16],name=raw_address"`
}

func (*SwInterfaceDetails) GetMessageName() string { return "sw_interface_details" }

type SwInterfaceAddDelAddressReply struct {
	Retval int32 `binapi:"i32,name=retval"`
}

func (*SwInterfaceAddDelAddressReply) GetMessageName() string {
	return "sw_interface_add_del_address_reply"
}

type BridgeDomainSwIf struct {
	Context   uint32 `binapi:"u32,name=context"`
	SwIfIndex uint32 `binapi:"interface_index,name=sw_if_index"`
	Shg       uint8  `binapi:"u8,name=shg"`
}

type BridgeDomainDetails struct {
	BdID         uint32             `binapi:"u32,name=bd_id"`
	Flood        bool               `binapi:"bool,name=flood"`
	BviSwIfIndex uint32             `binapi:"interface_index,name=bvi_sw_if_index"`
	NSwIfs       uint32             `binapi:"u32,name=n_sw_ifs"`
	SwIfDetails  []BridgeDomainSwIf `binapi:"bridge_domain_sw_if[n_sw_ifs],name=sw_if_details"`
}

func (*BridgeDomainDetails) GetMessageName() string { return "bridge_domain_details" }

// Handler answers one API call.
type Handler func(args map[string]any) ([]dispatch.NativeReply, error)

// Binding records every call it receives.
type Binding struct {
	mu          sync.Mutex
	handlers    map[string]Handler
	stats       []dispatch.StatEntry
	calls       []string
	connects    int
	disconnects int
	connected   bool

	ConnectErr error
}

// New returns a binding preloaded with show_version, control_ping,
// sw_interface_dump, sw_interface_add_del_address and bridge_domain_dump.
func New() *Binding {
	b := &Binding{handlers: make(map[string]Handler)}
	b.Handle("show_version", func(map[string]any) ([]dispatch.NativeReply, error) {
		return []dispatch.NativeReply{&ShowVersionReply{
			Program:   "vpe",
			Version:   "24.02-release",
			BuildDate: "2024-02-28T10:00:00",
		}}, nil
	})
	b.Handle("control_ping", func(map[string]any) ([]dispatch.NativeReply, error) {
		return []dispatch.NativeReply{&ControlPingReply{VpePID: 42}}, nil
	})
	b.Handle("sw_interface_dump", func(map[string]any) ([]dispatch.NativeReply, error) {
		return []dispatch.NativeReply{
			&SwInterfaceDetails{SwIfIndex: 0, InterfaceName: "local0", Tag: make([]byte, 64)},
			&SwInterfaceDetails{
				SwIfIndex:     1,
				L2Address:     MacAddress{0x02, 0xfe, 0x0a, 0x0b, 0x0c, 0x0d},
				LinkMtu:       9000,
				AdminUp:       true,
				InterfaceName: "GigabitEthernet0/8/0",
				Tag:           append([]byte("uplink"), make([]byte, 58)...),
			},
		}, nil
	})
	b.Handle("sw_interface_add_del_address", func(args map[string]any) ([]dispatch.NativeReply, error) {
		if _, ok := args["sw_if_index"]; !ok {
			return nil, fmt.Errorf("%w: sw_if_index is required", dispatch.ErrInvalidArgs)
		}
		if _, ok := args["prefix"].([]byte); !ok {
			return nil, fmt.Errorf("%w: prefix must be a string", dispatch.ErrInvalidArgs)
		}
		return []dispatch.NativeReply{&SwInterfaceAddDelAddressReply{}}, nil
	})
	b.Handle("bridge_domain_dump", func(map[string]any) ([]dispatch.NativeReply, error) {
		return []dispatch.NativeReply{&BridgeDomainDetails{
			BdID:        10,
			Flood:       true,
			NSwIfs:      1,
			SwIfDetails: []BridgeDomainSwIf{{SwIfIndex: 1}},
		}}, nil
	})
	b.stats = []dispatch.StatEntry{
		{Name: "/sys/vector_rate", Data: 12.5},
		{Name: "/if/names", Data: [][]byte{[]byte("local0"), []byte("GigabitEthernet0/8/0")}},
		{Name: "/if/rx", Data: [][][2]uint64{{{10, 1200}, {0, 0}}}},
	}
	return b
}

// Handle sets the handler for an API name.
func (b *Binding) Handle(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = h
}

// Fail makes name return err.
func (b *Binding) Fail(name string, err error) {
	b.Handle(name, func(map[string]any) ([]dispatch.NativeReply, error) { return nil, err })
}

func (b *Binding) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ConnectErr != nil {
		return b.ConnectErr
	}
	b.connects++
	b.connected = true
	return nil
}

func (b *Binding) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnects++
	b.connected = false
	return nil
}

func (b *Binding) Invoke(ctx context.Context, call dispatch.Call) ([]dispatch.NativeReply, error) {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return nil, errors.New("not connected")
	}
	b.calls = append(b.calls, call.Name)
	h, ok := b.handlers[call.Name]
	b.mu.Unlock()
	if !ok {
		return nil, &dispatch.UnknownCommandError{Name: call.Name}
	}
	return h(call.Args)
}

// DumpStats returns every canned entry whose name starts with a pattern.
func (b *Binding) DumpStats(ctx context.Context, patterns ...string) ([]dispatch.StatEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "dump_stats")
	if len(patterns) == 0 {
		return b.stats, nil
	}
	var out []dispatch.StatEntry
	for _, e := range b.stats {
		for _, p := range patterns {
			if strings.HasPrefix(e.Name, p) {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

// Calls returns the API names invoked so far, in order.
func (b *Binding) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Connects returns how many times Connect succeeded.
func (b *Binding) Connects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

// Disconnects returns how many times Disconnect was called.
func (b *Binding) Disconnects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disconnects
}

// Connected reports whether the binding is between Connect and Disconnect.
func (b *Binding) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}
