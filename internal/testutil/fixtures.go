package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Descriptor fixtures in the format VPP installs under /usr/share/vpp/api.
// They cover plain request/reply, dumps, typed addresses, unions, enums,
// a typedef array sized by a count field and legacy u8 byte strings.
var apiFixtures = map[string]string{
	"core/vpe.api.json": `{
  "types": [],
  "messages": [
    ["show_version",
      ["u16", "_vl_msg_id"], ["u32", "client_index"], ["u32", "context"],
      {"crc": "0x51077d14"}],
    ["show_version_reply",
      ["u16", "_vl_msg_id"], ["u32", "context"], ["i32", "retval"],
      ["string", "program", 32], ["string", "version", 32],
      ["string", "build_date", 32], ["string", "build_directory", 256],
      {"crc": "0xc919bde1"}],
    ["control_ping",
      ["u16", "_vl_msg_id"], ["u32", "client_index"], ["u32", "context"],
      {"crc": "0x51077d14"}],
    ["control_ping_reply",
      ["u16", "_vl_msg_id"], ["u32", "context"], ["i32", "retval"],
      ["u32", "client_index"], ["u32", "vpe_pid"],
      {"crc": "0xf6b0b8ca"}]
  ],
  "unions": [],
  "enums": [],
  "services": {
    "show_version": {"reply": "show_version_reply"},
    "control_ping": {"reply": "control_ping_reply"}
  },
  "aliases": {},
  "vl_api_version": "0xbfb4d6c5"
}`,
	"core/ip_types.api.json": `{
  "types": [
    ["address", ["vl_api_address_family_t", "af"], ["vl_api_address_union_t", "un"]],
    ["prefix", ["vl_api_address_t", "address"], ["u8", "len"]]
  ],
  "messages": [],
  "unions": [
    ["address_union", ["vl_api_ip4_address_t", "ip4"], ["vl_api_ip6_address_t", "ip6"]]
  ],
  "enums": [
    ["address_family", ["ADDRESS_IP4", 0], ["ADDRESS_IP6", 1], {"enumtype": "u8"}]
  ],
  "services": {},
  "aliases": {
    "ip4_address": {"type": "u8", "length": 4},
    "ip6_address": {"type": "u8", "length": 16},
    "address_with_prefix": {"type": "vl_api_prefix_t"}
  }
}`,
	"core/interface.api.json": `{
  "types": [],
  "messages": [
    ["sw_interface_dump",
      ["u16", "_vl_msg_id"], ["u32", "client_index"], ["u32", "context"],
      ["vl_api_interface_index_t", "sw_if_index", {"default": 4294967295}],
      ["bool", "name_filter_valid"], ["string", "name_filter", 0],
      {"crc": "0xaa610c27"}],
    ["sw_interface_details",
      ["u16", "_vl_msg_id"], ["u32", "context"],
      ["vl_api_interface_index_t", "sw_if_index"], ["u32", "sup_sw_if_index"],
      ["vl_api_mac_address_t", "l2_address"], ["u32", "link_mtu"],
      ["bool", "admin_up"], ["string", "interface_name", 64],
      ["u8", "tag", 64], ["u8", "raw_address", 16],
      {"crc": "0x6c221fc7"}],
    ["sw_interface_add_del_address",
      ["u16", "_vl_msg_id"], ["u32", "client_index"], ["u32", "context"],
      ["vl_api_interface_index_t", "sw_if_index"], ["bool", "is_add"],
      ["bool", "del_all"], ["vl_api_address_with_prefix_t", "prefix"],
      {"crc": "0x5463d73b"}],
    ["sw_interface_add_del_address_reply",
      ["u16", "_vl_msg_id"], ["u32", "context"], ["i32", "retval"],
      {"crc": "0xe8d4e804"}]
  ],
  "unions": [],
  "enums": [],
  "services": {
    "sw_interface_dump": {"reply": "sw_interface_details", "stream": true},
    "sw_interface_add_del_address": {"reply": "sw_interface_add_del_address_reply"}
  },
  "aliases": {
    "interface_index": {"type": "u32"}
  }
}`,
	"core/ethernet_types.api.json": `{
  "types": [], "messages": [], "unions": [], "enums": [], "services": {},
  "aliases": {"mac_address": {"type": "u8", "length": 6}}
}`,
	"core/l2.api.json": `{
  "types": [
    ["bridge_domain_sw_if",
      ["u32", "context"], ["vl_api_interface_index_t", "sw_if_index"], ["u8", "shg"]]
  ],
  "messages": [
    ["bridge_domain_dump",
      ["u16", "_vl_msg_id"], ["u32", "client_index"], ["u32", "context"],
      ["u32", "bd_id", {"default": 4294967295}],
      {"crc": "0x74396a43"}],
    ["bridge_domain_details",
      ["u16", "_vl_msg_id"], ["u32", "context"], ["u32", "bd_id"],
      ["bool", "flood"], ["vl_api_interface_index_t", "bvi_sw_if_index"],
      ["u32", "n_sw_ifs"],
      ["vl_api_bridge_domain_sw_if_t", "sw_if_details", 0, "n_sw_ifs"],
      {"crc": "0x0fa506fd"}]
  ],
  "unions": [],
  "enums": [],
  "services": {
    "bridge_domain_dump": {"reply": "bridge_domain_details", "stream": true}
  },
  "aliases": {}
}`,
}

// WriteAPIDir writes the descriptor fixtures into a temporary directory
// laid out like /usr/share/vpp/api and returns its path.
func WriteAPIDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range apiFixtures {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("creating %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
	}
	return dir
}

// Must returns a function that unwraps a (value, error) pair, failing the
// test on error:
//
//	reg := testutil.Must[*schema.Registry](t)(schema.Load(dir))
func Must[T any](t *testing.T) func(T, error) T {
	return func(val T, err error) T {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return val
	}
}
