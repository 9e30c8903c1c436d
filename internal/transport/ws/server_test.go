package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"roguelite.ai/internal/protocol"
	"roguelite.ai/internal/roguelite"
	"roguelite.ai/internal/sim/catalogs"
	"roguelite.ai/internal/sim/hostadapter"
	"roguelite.ai/internal/sim/multiworld"
	"roguelite.ai/internal/sim/tuning"
)

func startServer(t *testing.T, withReset bool) (*multiworld.Server, string) {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	cfg, err := multiworld.Load("../../../configs/worlds.yaml")
	if err != nil {
		t.Fatalf("worlds: %v", err)
	}
	tun := tuning.Defaults()
	tun.TickRateHz = 20
	tun.ViewRadiusChunks = 1
	tun.SpawnRadiusChunks = 0
	srv, err := multiworld.NewServer(cfg, cats, multiworld.Options{Tuning: tun, Seed: 3})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	if withReset {
		hostadapter.Install(srv, roguelite.New(roguelite.DefaultConfig()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Run(ctx) }()
	hs := httptest.NewServer(NewServer(srv, nil).Handler())
	t.Cleanup(func() {
		hs.Close()
		srv.Stop()
		cancel()
	})
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	if err := c.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// next reads messages until one has the wanted type.
func next(t *testing.T, c *websocket.Conn, typ string) []byte {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = c.SetReadDeadline(deadline)
		_, b, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if base, err := protocol.DecodeBase(b); err == nil && base.Type == typ {
			return b
		}
	}
}

func hello(name string) protocol.HelloMsg {
	return protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerName: name}
}

func TestSession_HelloWelcomeAndActs(t *testing.T) {
	_, url := startServer(t, false)
	c := dial(t, url)
	send(t, c, hello("steve"))

	var w protocol.WelcomeMsg
	if err := json.Unmarshal(next(t, c, protocol.TypeWelcome), &w); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if w.PlayerID == "" || w.CurrentWorldID != "overworld" {
		t.Fatalf("welcome: %+v", w)
	}

	send(t, c, protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: "0.9", Ref: "old"})
	var ack protocol.AckMsg
	_ = json.Unmarshal(next(t, c, protocol.TypeAck), &ack)
	if ack.AckFor != "old" || ack.Accepted || ack.Code != protocol.ErrProtoVersion {
		t.Fatalf("version ack: %+v", ack)
	}

	send(t, c, protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Ref: "g1", Action: protocol.ActGive, Item: "APPLE", Count: 1})
	_ = json.Unmarshal(next(t, c, protocol.TypeAck), &ack)
	if ack.AckFor != "g1" || ack.Accepted || ack.Code != protocol.ErrNoPermission {
		t.Fatalf("give ack: %+v", ack)
	}

	send(t, c, map[string]any{"type": "PING", "protocol_version": protocol.Version})
	_ = json.Unmarshal(next(t, c, protocol.TypeAck), &ack)
	if ack.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("unknown type ack: %+v", ack)
	}
}

func TestSession_RejectsDuplicateName(t *testing.T) {
	_, url := startServer(t, false)
	first := dial(t, url)
	send(t, first, hello("alex"))
	next(t, first, protocol.TypeWelcome)

	second := dial(t, url)
	send(t, second, hello("alex"))
	var ack protocol.AckMsg
	_ = json.Unmarshal(next(t, second, protocol.TypeAck), &ack)
	if ack.AckFor != "HELLO" || ack.Code != protocol.ErrConflict {
		t.Fatalf("duplicate join ack: %+v", ack)
	}
}

func TestSession_RequiresHello(t *testing.T) {
	_, url := startServer(t, false)
	c := dial(t, url)
	send(t, c, protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version})
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := c.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestSession_MorningNoticeDelivered(t *testing.T) {
	_, url := startServer(t, true)
	c := dial(t, url)
	send(t, c, hello("steve"))
	next(t, c, protocol.TypeWelcome)

	// The server clock starts in day 0's morning, so the first tick with a
	// player online resets.
	var n protocol.NoticeMsg
	if err := json.Unmarshal(next(t, c, protocol.TypeNotice), &n); err != nil {
		t.Fatalf("notice: %v", err)
	}
	if !strings.HasPrefix(n.Text, "A new day.") || n.Message.Color != "gold" {
		t.Fatalf("notice: %+v", n)
	}
}

func TestSession_LeaveOnDisconnect(t *testing.T) {
	srv, url := startServer(t, false)
	c := dial(t, url)
	send(t, c, hello("steve"))
	next(t, c, protocol.TypeWelcome)
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		st, err := srv.RequestState(ctx)
		if err != nil {
			t.Fatalf("player never left: %v", err)
		}
		online := false
		for _, p := range st.Players {
			online = online || p.Online
		}
		if !online {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}
