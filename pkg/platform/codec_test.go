package platform

import (
	"reflect"
	"testing"
)

func TestCodecs(t *testing.T) {
	request := map[string]any{
		"requestId":   "r-1",
		"surface":     "s-1",
		"permissions": []any{"CAMERA", "RECORD_AUDIO"},
	}

	codecs := []struct {
		name  string
		codec MessageCodec
	}{
		{"json", JsonCodec{}},
		{"cbor", CborCodec{}},
	}

	for _, tt := range codecs {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.codec.Encode(request)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := tt.codec.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			m, ok := got.(map[string]any)
			if !ok {
				t.Fatalf("expected map[string]any, got %T", got)
			}
			if m["requestId"] != "r-1" || m["surface"] != "s-1" {
				t.Errorf("unexpected fields: %v", m)
			}
			if !reflect.DeepEqual(m["permissions"], request["permissions"]) {
				t.Errorf("permissions = %v, want %v", m["permissions"], request["permissions"])
			}
		})

		t.Run(tt.name+"/empty", func(t *testing.T) {
			got, err := tt.codec.Decode(nil)
			if err != nil || got != nil {
				t.Errorf("Decode(nil) = %v, %v; want nil, nil", got, err)
			}
		})

		t.Run(tt.name+"/garbage", func(t *testing.T) {
			if _, err := tt.codec.Decode([]byte{0xff, 0x00, 0x7b}); err == nil {
				t.Error("expected error for malformed input")
			}
		})
	}
}

func TestCborIsDeterministic(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2, "c": 3}
	b := map[string]any{"c": 3, "a": 2, "b": 1}

	first, err := CborCodec{}.Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	second, err := CborCodec{}.Encode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("encodings differ: %x vs %x", first, second)
	}
}

func TestSetCodec(t *testing.T) {
	t.Cleanup(ResetForTest)

	SetCodec(CborCodec{})
	if _, ok := currentCodec().(CborCodec); !ok {
		t.Fatalf("expected CborCodec, got %T", currentCodec())
	}

	SetCodec(nil)
	if _, ok := currentCodec().(JsonCodec); !ok {
		t.Fatalf("expected JsonCodec after reset, got %T", currentCodec())
	}
}

func TestChannelError(t *testing.T) {
	if got := NewChannelError("denied", "user said no").Error(); got != "denied: user said no" {
		t.Errorf("Error() = %q", got)
	}
	if got := NewChannelError("denied", "").Error(); got != "denied" {
		t.Errorf("Error() = %q", got)
	}
}
