package binding

import (
	"reflect"
	"sort"

	"go.fd.io/govpp/api"
	interfaces "go.fd.io/govpp/binapi/interface"
	"go.fd.io/govpp/binapi/ip"
	"go.fd.io/govpp/binapi/l2"
	"go.fd.io/govpp/binapi/memclnt"
	"go.fd.io/govpp/binapi/vpe"
)

// MessageTable maps API message names to generated struct types.
type MessageTable map[string]reflect.Type

// DefaultMessages returns the generated messages of the core modules the
// executor is built with.
func DefaultMessages() MessageTable {
	t := MessageTable{}
	for _, set := range [][]api.Message{
		vpe.AllMessages(),
		memclnt.AllMessages(),
		interfaces.AllMessages(),
		ip.AllMessages(),
		l2.AllMessages(),
	} {
		t.Add(set...)
	}
	return t
}

// Add registers messages under their API names.
func (t MessageTable) Add(msgs ...api.Message) {
	for _, m := range msgs {
		typ := reflect.TypeOf(m)
		if typ.Kind() == reflect.Pointer {
			typ = typ.Elem()
		}
		t[m.GetMessageName()] = typ
	}
}

// New allocates a zero message by name.
func (t MessageTable) New(name string) (api.Message, bool) {
	typ, ok := t[name]
	if !ok {
		return nil, false
	}
	msg, ok := reflect.New(typ).Interface().(api.Message)
	return msg, ok
}

// Names returns the registered names, sorted.
func (t MessageTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
