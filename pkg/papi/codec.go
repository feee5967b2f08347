package papi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Encode converts v into a transport-safe form: every string or []byte leaf
// becomes a lowercase hex string, numbers and bools pass through, and
// mappings and sequences are walked recursively. Values of any other kind
// cannot cross the JSON channel and yield ErrSerialization.
func Encode(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return hex.EncodeToString([]byte(x)), nil
	case []byte:
		return hex.EncodeToString(x), nil
	case bool, json.Number:
		return x, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			enc, err := Encode(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = enc
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			enc, err := Encode(val)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = enc
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, f)
		}
		return f, nil
	case reflect.String:
		return hex.EncodeToString([]byte(rv.String())), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return hex.EncodeToString(b), nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			enc, err := Encode(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = enc
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key type %s", ErrSerialization, rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			enc, err := Encode(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = enc
		}
		return out, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return Encode(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("%w: %T", ErrSerialization, v)
}

// EncodeArgs encodes every value of an argument mapping.
func EncodeArgs(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, k := range sortedKeys(args) {
		enc, err := Encode(args[k])
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}

// Decode reverses Encode on values produced by a json.Decoder with
// UseNumber: hex strings become []byte, integral numbers become int64 (or
// uint64 above the int64 range) and fractional numbers float64.
func Decode(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		b, err := hex.DecodeString(x)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrMalformedHex, x, err)
		}
		return b, nil
	case json.Number:
		return decodeNumber(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x), nil
		}
		return x, nil
	case bool:
		return x, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			dec, err := Decode(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = dec
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			dec, err := Decode(val)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = dec
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unexpected %T", ErrSerialization, v)
}

// DecodeArgs decodes every value of an encoded argument mapping.
func DecodeArgs(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, k := range sortedKeys(args) {
		dec, err := Decode(args[k])
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", k, err)
		}
		out[k] = dec
	}
	return out, nil
}

func decodeNumber(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return u, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: number %q", ErrSerialization, n)
	}
	return f, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
