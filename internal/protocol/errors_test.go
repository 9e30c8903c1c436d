package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoVersion,
		ErrWorldBusy,
		ErrWorldNotFound,
		ErrBadRequest,
		ErrNoPermission,
		ErrNoResource,
		ErrInvalidTarget,
		ErrConflict,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_RATE_LIMIT") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"ACT","protocol_version":"1.0","action":"MOVE"}`))
	if err != nil || m.Type != TypeAct || m.ProtocolVersion != Version {
		t.Fatalf("decode: %+v err=%v", m, err)
	}
	if _, err := DecodeBase([]byte(`{"type":`)); err == nil {
		t.Fatalf("expected error on truncated json")
	}
}
