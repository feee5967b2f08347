package binding

import (
	"fmt"
	"math"
	"net"
	"net/netip"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/newtron-network/papibridge/pkg/vppapi/dispatch"
	"github.com/newtron-network/papibridge/pkg/vppapi/normalize"
)

// BindArgs sets the fields of the request struct msg points to from
// decoded arguments. Text arguments are accepted for numbers, booleans,
// addresses, prefixes and MAC addresses. Element counts of variable
// arrays are filled in when the caller leaves them out.
func BindArgs(msg any, args map[string]any) error {
	rv := reflect.ValueOf(msg)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: request must be a pointer to struct, got %T", dispatch.ErrInvalidArgs, msg)
	}
	if err := bindStruct(rv.Elem(), args); err != nil {
		return fmt.Errorf("%w: %v", dispatch.ErrInvalidArgs, err)
	}
	return nil
}

type structField struct {
	index    int
	sizeFrom string
}

func fieldsOf(t reflect.Type) map[string]structField {
	out := make(map[string]structField, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		out[normalize.FieldName(sf)] = structField{index: i, sizeFrom: sizeFrom(sf)}
	}
	return out
}

// sizeFrom extracts "n" from a binapi tag such as "foo[n],name=bar".
func sizeFrom(sf reflect.StructField) string {
	tag := sf.Tag.Get("binapi")
	typ, _, _ := strings.Cut(tag, ",")
	open := strings.IndexByte(typ, '[')
	if open < 0 || !strings.HasSuffix(typ, "]") {
		return ""
	}
	n := typ[open+1 : len(typ)-1]
	if _, err := strconv.Atoi(n); err == nil {
		return ""
	}
	return n
}

func bindStruct(v reflect.Value, args map[string]any) error {
	fields := fieldsOf(v.Type())
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f, ok := fields[k]
		if !ok {
			return fmt.Errorf("unknown field %q for %s", k, v.Type().Name())
		}
		if err := setValue(v.Field(f.index), args[k]); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}

	for name, f := range fields {
		if f.sizeFrom == "" {
			continue
		}
		count, ok := fields[f.sizeFrom]
		if _, given := args[f.sizeFrom]; !ok || given {
			continue
		}
		n := v.Field(f.index).Len()
		if err := setValue(v.Field(count.index), int64(n)); err != nil {
			return fmt.Errorf("%s: count of %s: %w", f.sizeFrom, name, err)
		}
	}
	return nil
}

func setValue(v reflect.Value, x any) error {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return setValue(v.Elem(), x)
	case reflect.Bool:
		b, err := toBool(x)
		if err != nil {
			return err
		}
		v.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt(x)
		if err != nil {
			return err
		}
		if v.OverflowInt(n) {
			return fmt.Errorf("%d overflows %s", n, v.Type())
		}
		v.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toUint(x)
		if err != nil {
			return err
		}
		if v.OverflowUint(n) {
			return fmt.Errorf("%d overflows %s", n, v.Type())
		}
		v.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := toFloat(x)
		if err != nil {
			return err
		}
		v.SetFloat(f)
		return nil
	case reflect.String:
		b, ok := x.([]byte)
		if !ok {
			return fmt.Errorf("want string, got %T", x)
		}
		v.SetString(string(b))
		return nil
	case reflect.Array, reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return setBytes(v, x)
		}
		return setList(v, x)
	case reflect.Struct:
		return setStruct(v, x)
	}
	return fmt.Errorf("unsupported field type %s", v.Type())
}

func setBytes(v reflect.Value, x any) error {
	b, ok := x.([]byte)
	if !ok {
		if list, isList := x.([]any); isList {
			return setList(v, list)
		}
		return fmt.Errorf("want bytes, got %T", x)
	}

	if v.Kind() == reflect.Array {
		switch v.Len() {
		case 4, 16:
			if addr, err := netip.ParseAddr(string(b)); err == nil {
				if raw := addrBytes(addr, v.Len()); raw != nil {
					b = raw
				}
			}
		case 6:
			if mac, err := net.ParseMAC(string(b)); err == nil && len(mac) == 6 {
				b = mac
			}
		}
	}
	return copyBytes(v, b)
}

// copyBytes stores b in a byte slice, or zero-padded in a byte array.
func copyBytes(v reflect.Value, b []byte) error {
	if v.Kind() == reflect.Array {
		if len(b) > v.Len() {
			return fmt.Errorf("%d bytes do not fit %s", len(b), v.Type())
		}
		for i := 0; i < v.Len(); i++ {
			var c byte
			if i < len(b) {
				c = b[i]
			}
			v.Index(i).SetUint(uint64(c))
		}
		return nil
	}
	s := reflect.MakeSlice(v.Type(), len(b), len(b))
	for i, c := range b {
		s.Index(i).SetUint(uint64(c))
	}
	v.Set(s)
	return nil
}

func addrBytes(addr netip.Addr, size int) []byte {
	switch {
	case size == 4 && addr.Is4():
		a := addr.As4()
		return a[:]
	case size == 16:
		a := addr.As16()
		return a[:]
	}
	return nil
}

func setList(v reflect.Value, x any) error {
	list, ok := x.([]any)
	if !ok {
		return fmt.Errorf("want list, got %T", x)
	}
	if v.Kind() == reflect.Array {
		if len(list) > v.Len() {
			return fmt.Errorf("%d elements do not fit %s", len(list), v.Type())
		}
		for i, el := range list {
			if err := setValue(v.Index(i), el); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	}
	s := reflect.MakeSlice(v.Type(), len(list), len(list))
	for i, el := range list {
		if err := setValue(s.Index(i), el); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	v.Set(s)
	return nil
}

// setStruct accepts a mapping of member fields, or text for the address,
// prefix and union types of the binary API.
func setStruct(v reflect.Value, x any) error {
	switch arg := x.(type) {
	case map[string]any:
		return bindStruct(v, arg)
	case []byte:
		fields := fieldsOf(v.Type())
		if _, ok := fields["af"]; ok {
			addr, err := netip.ParseAddr(string(arg))
			if err != nil {
				return err
			}
			return setAddress(v, fields, addr)
		}
		if a, ok := fields["address"]; ok {
			if l, ok := fields["len"]; ok {
				p, err := netip.ParsePrefix(string(arg))
				if err != nil {
					return err
				}
				if err := setAddress(v.Field(a.index), fieldsOf(v.Field(a.index).Type()), p.Addr()); err != nil {
					return err
				}
				return setValue(v.Field(l.index), int64(p.Bits()))
			}
		}
		if v.NumField() == 1 && strings.HasPrefix(v.Type().Field(0).Name, "XXX_") {
			return setBytes(v.Field(0), arg)
		}
	}
	return fmt.Errorf("cannot set %s from %T", v.Type(), x)
}

// setAddress fills a vl_api_address_t: af 0 for IPv4, 1 for IPv6, and the
// address bytes at the start of the union storage.
func setAddress(v reflect.Value, fields map[string]structField, addr netip.Addr) error {
	af, ok1 := fields["af"]
	un, ok2 := fields["un"]
	if !ok1 || !ok2 {
		return fmt.Errorf("%s is not an address", v.Type())
	}
	family, raw := int64(0), addr.AsSlice()
	if addr.Is6() && !addr.Is4In6() {
		family = 1
	} else {
		a := addr.Unmap().As4()
		raw = a[:]
	}
	if err := setValue(v.Field(af.index), family); err != nil {
		return err
	}
	union := v.Field(un.index)
	if union.Kind() != reflect.Struct || union.NumField() != 1 {
		return fmt.Errorf("%s has no union storage", union.Type())
	}
	return copyBytes(union.Field(0), raw)
}

func toBool(x any) (bool, error) {
	switch v := x.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case uint64:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	}
	return false, fmt.Errorf("want bool, got %T", x)
}

func toInt(x any) (int64, error) {
	switch v := x.(type) {
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d out of range", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(v), 0, 64)
	}
	return 0, fmt.Errorf("want integer, got %T", x)
}

func toUint(x any) (uint64, error) {
	switch v := x.(type) {
	case uint64:
		return v, nil
	case []byte:
		return strconv.ParseUint(string(v), 0, 64)
	}
	n, err := toInt(x)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return uint64(n), nil
}

func toFloat(x any) (float64, error) {
	switch v := x.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	}
	return 0, fmt.Errorf("want number, got %T", x)
}
