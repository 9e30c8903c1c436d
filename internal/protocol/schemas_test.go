package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/Tnze/go-mc/chat"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"roguelite.ai/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON round-trips v through encoding/json so the validator sees exactly
// what goes on the wire.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateMessages(t *testing.T) {
	cases := []struct {
		schema string
		msg    any
	}{
		{"hello.schema.json", protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerName: "steve"}},
		{"welcome.schema.json", protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       "s_1",
			PlayerID:        "2f1d7c3e-8a43-4f7e-9c1a-0b6f2a4d9e11",
			CurrentWorldID:  "overworld",
			WorldParams:     protocol.WorldParams{TickRateHz: 20, DayTicks: 24000, ChunkSize: [3]int{16, 384, 16}, ViewRadiusChunks: 4, Seed: 1337},
			Catalogs: protocol.CatalogDigests{
				BlockPalette: protocol.DigestRef{Digest: "deadbeef", Count: 21},
				ItemPalette:  protocol.DigestRef{Digest: "deadbeef", Count: 31},
				EntityDigest: "deadbeef",
			},
			WorldManifest: []protocol.WorldRef{{WorldID: "the_nether", WorldType: "NETHER", MinY: 0, MaxY: 255}},
		}},
		{"act.schema.json", protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Ref: "r1", Action: protocol.ActPlace, Pos: [3]int{1, 70, 1}, Item: "CHEST"}},
		{"act.schema.json", protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Ref: "r2", Action: protocol.ActGive, Item: "COAL", Count: 3}},
		{"ack.schema.json", protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: "r1", Accepted: false, Code: protocol.ErrInvalidTarget}},
		{"notice.schema.json", protocol.NoticeMsg{
			Type:            protocol.TypeNotice,
			ProtocolVersion: protocol.Version,
			Tick:            24000,
			PlayerID:        "p1",
			Message:         chat.Message{Text: "A new day.", Color: "gold"},
			Text:            "A new day.",
		}},
	}
	for _, tc := range cases {
		if err := compile(t, tc.schema).Validate(asJSON(t, tc.msg)); err != nil {
			t.Fatalf("%s: %v", tc.schema, err)
		}
	}
}

func TestSchemas_RejectInvalid(t *testing.T) {
	act := compile(t, "act.schema.json")
	// PLACE needs a position.
	if err := act.Validate(asJSON(t, map[string]any{
		"type": "ACT", "protocol_version": "1.0", "ref": "r1", "action": "PLACE", "item": "CHEST",
	})); err == nil {
		t.Fatalf("expected PLACE without pos to fail")
	}
	if err := act.Validate(asJSON(t, map[string]any{
		"type": "ACT", "protocol_version": "1.0", "ref": "r1", "action": "TELEPORT",
	})); err == nil {
		t.Fatalf("expected unknown action to fail")
	}
	hello := compile(t, "hello.schema.json")
	if err := hello.Validate(asJSON(t, map[string]any{
		"type": "HELLO", "protocol_version": "1.0", "player_name": "no spaces allowed",
	})); err == nil {
		t.Fatalf("expected bad player name to fail")
	}
}
