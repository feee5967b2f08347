package normalize

import (
	"encoding/hex"
	"fmt"
	"math"
	"net/netip"
	"reflect"
	"strings"
	"unicode/utf8"
)

// framing fields never appear in normalized output. count and index are
// the element counters and cursors of undescribed messages.
var framing = map[string]bool{
	"_vl_msg_id":   true,
	"context":      true,
	"client_index": true,
	"count":        true,
	"index":        true,
}

// Value converts an arbitrary reply value into JSON-safe data without a
// descriptor. Rules, in order:
//
//  1. maps, slices and non-byte arrays are converted element-wise
//  2. integers become int64 (uint64 above MaxInt64), bools 0/1
//  3. byte strings: 16 bytes map to {"ipv4", "ipv6"}, 6 or 8 bytes to
//     lowercase hex, anything else to text with trailing NULs removed
//  4. structs flatten to their exported fields keyed by API field name
//  5. anything else becomes its string form
func Value(v any) any {
	return value(reflect.ValueOf(v))
}

func value(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return value(rv.Elem())
	case reflect.Bool:
		return boolInt(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return integer(rv)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f)
		}
		return f
	case reflect.String:
		return strings.TrimRight(rv.String(), "\x00")
	case reflect.Slice, reflect.Array:
		if isBytes(rv.Type()) {
			return Bytes(bytesOf(rv))
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = value(rv.Index(i))
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(value(iter.Key()))] = value(iter.Value())
		}
		return out
	case reflect.Struct:
		if data, ok := unionData(rv); ok {
			return Bytes(data)
		}
		out := make(map[string]any)
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			name := FieldName(sf)
			if framing[name] {
				continue
			}
			out[name] = value(rv.Field(i))
		}
		return out
	}
	return fmt.Sprint(rv)
}

// Bytes applies the byte-string rules of Value.
func Bytes(b []byte) any {
	switch len(b) {
	case 16:
		return map[string]any{
			"ipv4": netip.AddrFrom4([4]byte(b[:4])).String(),
			"ipv6": netip.AddrFrom16([16]byte(b)).String(),
		}
	case 6, 8:
		return hex.EncodeToString(b)
	}
	s := strings.TrimRight(string(b), "\x00")
	if !utf8.ValidString(s) {
		return hex.EncodeToString(b)
	}
	return s
}

func integer(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return u
		}
		return int64(u)
	}
	return rv.Int()
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func isBytes(t reflect.Type) bool {
	return (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() == reflect.Uint8
}

func bytesOf(rv reflect.Value) []byte {
	b := make([]byte, rv.Len())
	for i := range b {
		b[i] = byte(rv.Index(i).Uint())
	}
	return b
}

// unionData returns the raw storage of a generated union type, which
// holds nothing but an XXX_UnionData byte array.
func unionData(rv reflect.Value) ([]byte, bool) {
	t := rv.Type()
	if t.NumField() != 1 || !strings.HasPrefix(t.Field(0).Name, "XXX_") || !isBytes(t.Field(0).Type) {
		return nil, false
	}
	return bytesOf(rv.Field(0)), true
}

// FieldName returns the API name of a generated struct field: the name=
// option of its binapi tag, else the Go name in snake case.
func FieldName(sf reflect.StructField) string {
	if tag, ok := sf.Tag.Lookup("binapi"); ok {
		for _, opt := range strings.Split(tag, ",") {
			if name, found := strings.CutPrefix(opt, "name="); found {
				return name
			}
		}
	}
	return snakeCase(sf.Name)
}

func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') ||
					(prev >= 'A' && prev <= 'Z' && nextLower) {
					b.WriteByte('_')
				}
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
