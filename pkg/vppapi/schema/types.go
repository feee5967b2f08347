// Package schema loads VPP API descriptor files (*.api.json) and resolves
// every message field to a decode directive, so replies can be normalized
// and requests dispatched from a table instead of by guesswork.
package schema

// Directive says how a field's value is rendered in a JSON-safe reply.
type Directive int

const (
	// Raw is an undeclared byte array; it falls back to length heuristics.
	Raw Directive = iota
	Int
	Bool
	Float
	Text
	MAC
	IPv4
	IPv6
	Address // vl_api_address_t: af + union, rendered by family
	Prefix  // vl_api_prefix_t: address + len, rendered as CIDR
	EnumValue
	Nested // typedef rendered as a mapping
	Union  // every member interpretation of the raw union bytes
)

var directiveNames = map[Directive]string{
	Raw:       "raw",
	Int:       "int",
	Bool:      "bool",
	Float:     "float",
	Text:      "text",
	MAC:       "mac",
	IPv4:      "ipv4",
	IPv6:      "ipv6",
	Address:   "address",
	Prefix:    "prefix",
	EnumValue: "enum",
	Nested:    "nested",
	Union:     "union",
}

func (d Directive) String() string {
	if s, ok := directiveNames[d]; ok {
		return s
	}
	return "unknown"
}

// Field is one member of a message, typedef or union.
type Field struct {
	Name     string
	Type     string // type as written in the descriptor, e.g. "u32", "vl_api_address_t"
	Length   int    // fixed array length; 0 for scalars and variable arrays
	Variable bool   // variable-length array
	SizeFrom string // field holding the element count of a variable array

	Directive Directive
	Ref       string // referenced typedef/union/enum name for Nested, Union, EnumValue
	// Array is set when the field holds a sequence of elements, each
	// decoded with Directive. u8 arrays and strings are single byte strings.
	Array bool
}

// Message is a message, typedef or union definition.
type Message struct {
	Name   string
	CRC    string
	Fields []Field

	framing map[string]bool
}

// IsFraming reports whether name is framing metadata rather than payload:
// message id, context, client index and element counts of variable arrays.
func (m *Message) IsFraming(name string) bool {
	return m.framing[name]
}

// PayloadFields returns the fields that carry semantic payload, in order.
func (m *Message) PayloadFields() []Field {
	out := make([]Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if !m.framing[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

// Field looks up a field by name.
func (m *Message) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Service pairs a request with its reply.
type Service struct {
	Request string
	Reply   string
	Stream  bool
	// Details is the message streamed back by a dump; empty for plain
	// request/reply services.
	Details string
	Events  []string
}

// Alias is a named alias of a base type, e.g. mac_address = u8[6].
type Alias struct {
	Name   string
	Type   string
	Length int
}

// Enum is an enumeration with its underlying integer type.
type Enum struct {
	Name   string
	Type   string
	Values map[string]int64
}
