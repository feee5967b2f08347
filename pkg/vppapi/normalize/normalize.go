// Package normalize converts generated API reply structs into JSON-safe
// mappings. Fields are decoded by the directives of the message
// descriptor; values the descriptor does not describe fall back to the
// byte-length rules of Value.
package normalize

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/netip"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/newtron-network/papibridge/pkg/util"
	"github.com/newtron-network/papibridge/pkg/vppapi/schema"
)

// Normalizer decodes replies using a descriptor registry.
type Normalizer struct {
	reg *schema.Registry
}

// New returns a Normalizer. A nil registry makes every message go
// through Value.
func New(reg *schema.Registry) *Normalizer {
	return &Normalizer{reg: reg}
}

// Message normalizes one reply message. name is the API message name used
// to find its descriptor.
func (n *Normalizer) Message(name string, msg any) (map[string]any, error) {
	rv := reflect.ValueOf(msg)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("normalizing %s: nil message", name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("normalizing %s: expected struct, got %s", name, rv.Kind())
	}

	var def *schema.Message
	if n.reg != nil {
		def, _ = n.reg.Message(name)
	}
	if def == nil {
		util.WithAPI(name).Debug("no descriptor, using heuristic normalization")
		out, ok := value(rv).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("normalizing %s: not a message struct", name)
		}
		return out, nil
	}
	return n.fields(def, rv), nil
}

// fields decodes the payload fields of def from the struct rv. Fields the
// descriptor lists but the struct lacks are skipped, as happens when the
// generated bindings are older than the installed descriptors.
func (n *Normalizer) fields(def *schema.Message, rv reflect.Value) map[string]any {
	index := structFields(rv.Type())
	out := make(map[string]any, len(def.Fields))
	for _, f := range def.PayloadFields() {
		i, ok := index[f.Name]
		if !ok {
			continue
		}
		out[f.Name] = n.field(f, rv.Field(i))
	}
	return out
}

func (n *Normalizer) field(f schema.Field, v reflect.Value) any {
	if f.Array && (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) {
		out := make([]any, v.Len())
		for i := range out {
			out[i] = n.decode(f.Directive, f.Ref, v.Index(i))
		}
		return out
	}
	return n.decode(f.Directive, f.Ref, v)
}

func (n *Normalizer) decode(d schema.Directive, ref string, v reflect.Value) any {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch d {
	case schema.Int, schema.EnumValue:
		if isInt(v) {
			return integer(v)
		}
		if v.Kind() == reflect.Bool {
			return boolInt(v.Bool())
		}
	case schema.Bool:
		if v.Kind() == reflect.Bool {
			return boolInt(v.Bool())
		}
		if isInt(v) {
			return boolInt(!v.IsZero())
		}
	case schema.Float:
		if v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64 {
			return value(v)
		}
	case schema.Text:
		if v.Kind() == reflect.String {
			return value(v)
		}
		if isBytes(v.Type()) {
			return trimText(bytesOf(v))
		}
	case schema.MAC:
		if isBytes(v.Type()) {
			return hex.EncodeToString(bytesOf(v))
		}
	case schema.IPv4, schema.IPv6:
		if isBytes(v.Type()) {
			if s, ok := ipString(bytesOf(v)); ok {
				return s
			}
		}
	case schema.Address:
		if s, ok := addressString(v); ok {
			return s
		}
	case schema.Prefix:
		if s, ok := prefixString(v); ok {
			return s
		}
	case schema.Nested:
		if v.Kind() == reflect.Struct && n.reg != nil {
			if def, ok := n.reg.Type(ref); ok {
				return n.fields(def, v)
			}
		}
	case schema.Union:
		if v.Kind() == reflect.Struct && n.reg != nil {
			if def, ok := n.reg.Type(ref); ok {
				if data, ok := unionData(v); ok {
					return unionMembers(def, data)
				}
			}
		}
	}
	return value(v)
}

// unionMembers renders every member interpretation of a union's storage.
func unionMembers(def *schema.Message, data []byte) map[string]any {
	out := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		switch f.Directive {
		case schema.IPv4:
			out[f.Name] = prefixIP(data, 4)
		case schema.IPv6:
			out[f.Name] = prefixIP(data, 16)
		case schema.MAC:
			if len(data) >= 6 {
				out[f.Name] = hex.EncodeToString(data[:6])
			}
		case schema.Int, schema.EnumValue:
			if size, ok := intSizes[f.Type]; ok && len(data) >= size {
				out[f.Name] = beInt(data[:size], f.Type[0] == 'i')
			}
		case schema.Text:
			out[f.Name] = trimText(data)
		default:
			out[f.Name] = Bytes(data)
		}
	}
	return out
}

var intSizes = map[string]int{
	"u8": 1, "u16": 2, "u32": 4, "u64": 8,
	"i8": 1, "i16": 2, "i32": 4, "i64": 8,
}

// beInt decodes a big-endian integer as laid out by the binary API.
func beInt(b []byte, signed bool) any {
	var u uint64
	switch len(b) {
	case 1:
		u = uint64(b[0])
	case 2:
		u = uint64(binary.BigEndian.Uint16(b))
	case 4:
		u = uint64(binary.BigEndian.Uint32(b))
	case 8:
		u = binary.BigEndian.Uint64(b)
	}
	if signed {
		shift := 64 - 8*len(b)
		return int64(u<<shift) >> shift
	}
	if u > 1<<63-1 {
		return u
	}
	return int64(u)
}

func prefixIP(data []byte, size int) any {
	if len(data) < size {
		return Bytes(data)
	}
	s, _ := ipString(data[:size])
	return s
}

func ipString(b []byte) (string, bool) {
	addr, ok := netip.AddrFromSlice(b)
	if !ok {
		return "", false
	}
	return addr.String(), true
}

// addressString renders vl_api_address_t: the af field selects how the
// union storage in un is read.
func addressString(v reflect.Value) (string, bool) {
	if v.Kind() != reflect.Struct {
		return "", false
	}
	index := structFields(v.Type())
	afIdx, ok1 := index["af"]
	unIdx, ok2 := index["un"]
	if !ok1 || !ok2 {
		return "", false
	}
	af := v.Field(afIdx)
	un := v.Field(unIdx)
	if !isInt(af) || un.Kind() != reflect.Struct {
		return "", false
	}
	data, ok := unionData(un)
	if !ok {
		return "", false
	}
	size := 4
	if x, _ := integer(af).(int64); x == 1 {
		size = 16
	}
	if len(data) < size {
		return "", false
	}
	return ipString(data[:size])
}

// prefixString renders vl_api_prefix_t as address/len.
func prefixString(v reflect.Value) (string, bool) {
	if v.Kind() != reflect.Struct {
		return "", false
	}
	index := structFields(v.Type())
	addrIdx, ok1 := index["address"]
	lenIdx, ok2 := index["len"]
	if !ok1 || !ok2 || !isInt(v.Field(lenIdx)) {
		return "", false
	}
	addr, ok := addressString(v.Field(addrIdx))
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s/%d", addr, integer(v.Field(lenIdx))), true
}

// trimText decodes a NUL-padded byte field declared as text.
func trimText(b []byte) string {
	s := strings.TrimRight(string(b), "\x00")
	if !utf8.ValidString(s) {
		return hex.EncodeToString(b)
	}
	return s
}

// structFields maps API field names to struct field indexes.
func structFields(t reflect.Type) map[string]int {
	out := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.IsExported() {
			out[FieldName(sf)] = i
		}
	}
	return out
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}
