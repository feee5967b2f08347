package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.fd.io/govpp/binapigen/vppapi"

	"github.com/newtron-network/papibridge/pkg/util"
)

// Default descriptor locations of a VPP installation.
var DefaultDirs = []string{
	"/usr/share/vpp/api/core",
	"/usr/share/vpp/api/plugins",
}

// framingFields are artifacts of the message framing, never payload.
var framingFields = []string{"_vl_msg_id", "context", "client_index"}

// Registry holds every definition loaded from descriptor files.
type Registry struct {
	messages map[string]*Message
	types    map[string]*Message
	unions   map[string]*Message
	enums    map[string]*Enum
	aliases  map[string]*Alias
	services map[string]*Service
	files    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		messages: make(map[string]*Message),
		types:    make(map[string]*Message),
		unions:   make(map[string]*Message),
		enums:    make(map[string]*Enum),
		aliases:  make(map[string]*Alias),
		services: make(map[string]*Service),
	}
}

// Load reads every *.api.json file in dirs and their immediate
// subdirectories. Missing directories are skipped; finding no descriptor
// at all is an error.
func Load(dirs ...string) (*Registry, error) {
	if len(dirs) == 0 {
		dirs = DefaultDirs
	}
	r := NewRegistry()
	for _, dir := range dirs {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			util.Debugf("API descriptor directory %s does not exist", dir)
			continue
		}
		files, err := vppapi.FindFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if err := r.LoadFile(filepath.Join(dir, f)); err != nil {
				return nil, err
			}
		}
	}
	if len(r.files) == 0 {
		return nil, fmt.Errorf("no API descriptor files found in %s", strings.Join(dirs, ", "))
	}
	util.Debugf("loaded %d API descriptor files: %d messages, %d services",
		len(r.files), len(r.messages), len(r.services))
	return r, nil
}

// LoadFile parses one descriptor file into the registry.
func (r *Registry) LoadFile(path string) error {
	f, err := vppapi.ParseFile(path)
	if err != nil {
		return fmt.Errorf("loading API descriptor: %w", err)
	}
	r.Add(f)
	r.files = append(r.files, path)
	return nil
}

// Parse adds the definitions of one descriptor document.
func (r *Registry) Parse(data []byte) error {
	f, err := vppapi.ParseRaw(data)
	if err != nil {
		return err
	}
	r.Add(f)
	return nil
}

// Add merges a parsed descriptor file. Field directives of everything
// loaded so far are re-resolved, so files may be added in any order.
func (r *Registry) Add(f *vppapi.File) {
	for _, a := range f.AliasTypes {
		r.aliases[a.Name] = &Alias{Name: a.Name, Type: a.Type, Length: a.Length}
	}
	for _, e := range append(f.EnumTypes, f.EnumflagTypes...) {
		enum := &Enum{Name: e.Name, Type: e.Type, Values: make(map[string]int64, len(e.Entries))}
		for _, entry := range e.Entries {
			enum.Values[entry.Name] = int64(entry.Value)
		}
		r.enums[e.Name] = enum
	}
	for _, t := range f.StructTypes {
		r.types[t.Name] = newMessage(t.Name, "", t.Fields)
	}
	for _, u := range f.UnionTypes {
		r.unions[u.Name] = newMessage(u.Name, "", u.Fields)
	}
	for _, m := range f.Messages {
		r.messages[m.Name] = newMessage(m.Name, m.CRC, m.Fields)
	}
	if f.Service != nil {
		for _, rpc := range f.Service.RPCs {
			svc := &Service{Request: rpc.Request, Reply: rpc.Reply, Stream: rpc.Stream, Events: rpc.Events}
			if rpc.Stream {
				svc.Details = rpc.StreamMsg
				if svc.Details == "" {
					svc.Details = rpc.Reply
				}
			}
			r.services[rpc.Request] = svc
		}
	}
	r.resolve()
}

func newMessage(name, crc string, fields []vppapi.Field) *Message {
	m := &Message{Name: name, CRC: crc, framing: make(map[string]bool)}
	for _, f := range fields {
		m.Fields = append(m.Fields, Field{
			Name:     f.Name,
			Type:     f.Type,
			Length:   f.Length,
			Variable: f.Array && f.Length == 0,
			SizeFrom: f.SizeFrom,
		})
	}
	for _, name := range framingFields {
		m.framing[name] = true
	}
	for _, f := range m.Fields {
		if f.SizeFrom != "" {
			m.framing[f.SizeFrom] = true
		}
	}
	return m
}

func (r *Registry) resolve() {
	for _, set := range []map[string]*Message{r.types, r.unions, r.messages} {
		for _, m := range set {
			for i := range m.Fields {
				r.resolveField(&m.Fields[i])
			}
		}
	}
}

func (r *Registry) resolveField(f *Field) {
	hasLen := f.Length > 0 || f.Variable
	f.Ref = ""
	f.Array = false
	switch f.Type {
	case "u8":
		if hasLen {
			f.Directive = Raw
			return
		}
		f.Directive = Int
		return
	case "string":
		f.Directive = Text
		return
	}
	f.Directive, f.Ref = r.resolveType(f.Type, 0)
	f.Array = hasLen
}

func (r *Registry) resolveType(typ string, depth int) (Directive, string) {
	switch typ {
	case "u8", "u16", "u32", "u64", "i8", "i16", "i32", "i64":
		return Int, ""
	case "f64":
		return Float, ""
	case "bool":
		return Bool, ""
	case "string":
		return Text, ""
	}

	name := refName(typ)
	if a, ok := r.aliases[name]; ok && depth < 8 {
		switch name {
		case "mac_address":
			return MAC, ""
		case "ip4_address":
			return IPv4, ""
		case "ip6_address":
			return IPv6, ""
		}
		if a.Type == "u8" && a.Length > 0 {
			return Raw, ""
		}
		return r.resolveType(a.Type, depth+1)
	}
	if _, ok := r.types[name]; ok {
		switch name {
		case "address":
			return Address, ""
		case "prefix":
			return Prefix, ""
		}
		return Nested, name
	}
	if _, ok := r.unions[name]; ok {
		return Union, name
	}
	if _, ok := r.enums[name]; ok {
		return EnumValue, name
	}
	return Raw, ""
}

// refName turns "vl_api_address_t" into "address".
func refName(typ string) string {
	return strings.TrimSuffix(strings.TrimPrefix(typ, "vl_api_"), "_t")
}

// Message returns the definition of a message.
func (r *Registry) Message(name string) (*Message, bool) {
	m, ok := r.messages[name]
	return m, ok
}

// Type returns a typedef or union definition.
func (r *Registry) Type(name string) (*Message, bool) {
	if m, ok := r.types[name]; ok {
		return m, true
	}
	m, ok := r.unions[name]
	return m, ok
}

// Enum returns an enum definition.
func (r *Registry) Enum(name string) (*Enum, bool) {
	e, ok := r.enums[name]
	return e, ok
}

// Service returns the service whose request is name.
func (r *Registry) Service(name string) (*Service, bool) {
	s, ok := r.services[name]
	return s, ok
}

// Services returns every service sorted by request name.
func (r *Registry) Services() []*Service {
	out := make([]*Service, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Request < out[j].Request })
	return out
}

// Files returns the descriptor files loaded, in load order.
func (r *Registry) Files() []string {
	return r.files
}
