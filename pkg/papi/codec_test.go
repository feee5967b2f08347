package papi

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestEncode(t *testing.T) {
	type ifName string
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"string", "loop0", "6c6f6f7030"},
		{"bytes", []byte{0, 0xff}, "00ff"},
		{"named string", ifName("eth0"), "65746830"},
		{"byte array", [4]byte{10, 0, 0, 1}, "0a000001"},
		{"int", 42, int64(42)},
		{"uint32", uint32(7), uint64(7)},
		{"bool", true, true},
		{"float", 1.5, 1.5},
		{"nil", nil, nil},
		{"list", []any{"a", 1}, []any{"61", int64(1)}},
		{"typed list", []uint16{1, 2}, []any{uint64(1), uint64(2)}},
		{"nested map", map[string]any{"tag": "x", "sub": map[string]string{"k": "v"}},
			map[string]any{"tag": "78", "sub": map[string]any{"k": "76"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.in)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Encode() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEncode_NotSerializable(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"chan", make(chan int)},
		{"func", func() {}},
		{"struct", struct{ A int }{1}},
		{"nan", math.NaN()},
		{"int keys", map[int]string{1: "a"}},
		{"nested chan", map[string]any{"ok": 1, "bad": []any{make(chan int)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.in); !errors.Is(err, ErrSerialization) {
				t.Errorf("Encode() error = %v, want ErrSerialization", err)
			}
		})
	}
}

func TestEncodeArgs_NamesArgument(t *testing.T) {
	_, err := EncodeArgs(map[string]any{"name": "x", "cb": func() {}})
	if err == nil || !errors.Is(err, ErrSerialization) {
		t.Fatalf("EncodeArgs() error = %v", err)
	}
	if got := err.Error(); !bytes.Contains([]byte(got), []byte("argument cb")) {
		t.Errorf("error %q does not name the argument", got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"hex", "6c6f6f7030", []byte("loop0")},
		{"number", json.Number("42"), int64(42)},
		{"big", json.Number("18446744073709551615"), uint64(math.MaxUint64)},
		{"fraction", json.Number("2.5"), 2.5},
		{"float integral", float64(3), int64(3)},
		{"bool", false, false},
		{"list", []any{"00", json.Number("1")}, []any{[]byte{0}, int64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecode_MalformedHex(t *testing.T) {
	for _, in := range []any{"zz", "abc", map[string]any{"name": "0g"}} {
		if _, err := Decode(in); !errors.Is(err, ErrMalformedHex) {
			t.Errorf("Decode(%v) error = %v, want ErrMalformedHex", in, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := [][]byte{
		[]byte(""),
		[]byte("GigabitEthernet0/8/0"),
		[]byte("name\x00\x00\x00"),
		{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01},
		{0xff, 0xfe, 0x80, 0x00},
		[]byte("ünïcödé ✓"),
		[]byte("it's \"quoted\"\n"),
	}
	for i := 0; i < 256; i += 17 {
		inputs = append(inputs, bytes.Repeat([]byte{byte(i)}, i%23))
	}

	for _, in := range inputs {
		for _, v := range []any{in, string(in)} {
			args := map[string]any{"v": v, "nested": []any{map[string]any{"v": v}}}
			enc, err := EncodeArgs(args)
			if err != nil {
				t.Fatalf("EncodeArgs(%q) error = %v", in, err)
			}

			// Through JSON, as on the wire.
			data, err := json.Marshal(enc)
			if err != nil {
				t.Fatal(err)
			}
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			var wire map[string]any
			if err := dec.Decode(&wire); err != nil {
				t.Fatal(err)
			}

			got, err := DecodeArgs(wire)
			if err != nil {
				t.Fatalf("DecodeArgs() error = %v", err)
			}
			if !bytes.Equal(got["v"].([]byte), in) {
				t.Errorf("round trip of %q = %q", in, got["v"])
			}
			nested := got["nested"].([]any)[0].(map[string]any)["v"].([]byte)
			if !bytes.Equal(nested, in) {
				t.Errorf("nested round trip of %q = %q", in, nested)
			}
		}
	}
}
