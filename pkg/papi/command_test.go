package papi

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeRequest, false},
		{"request", ModeRequest, false},
		{"dump", ModeDump, false},
		{"stats", ModeStats, false},
		{"stream", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBatch_Names(t *testing.T) {
	if Batch(nil).Names() != nil {
		t.Error("empty batch should have nil names")
	}
	b := Batch{{Name: "show_version"}, {Name: "control_ping"}}
	if got := b.Names(); !reflect.DeepEqual(got, []string{"show_version", "control_ping"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestBatch_Encode(t *testing.T) {
	b := Batch{
		{Name: "sw_interface_set_flags", Args: map[string]any{"sw_if_index": 1, "flags": 1}},
		{Name: "create_loopback", Args: map[string]any{"mac_address": []byte{2, 0, 0, 0, 0, 1}}},
	}
	got, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := []WireCommand{
		{APIName: "sw_interface_set_flags", APIArgs: map[string]any{"sw_if_index": int64(1), "flags": int64(1)}},
		{APIName: "create_loopback", APIArgs: map[string]any{"mac_address": "020000000001"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Encode() = %#v, want %#v", got, want)
	}

	bad := Batch{{Name: "ok"}, {Name: "broken", Args: map[string]any{"ch": make(chan int)}}}
	if _, err := bad.Encode(); !errors.Is(err, ErrSerialization) {
		t.Errorf("Encode() error = %v, want ErrSerialization", err)
	}
}
