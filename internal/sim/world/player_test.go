package world

import (
	"encoding/json"
	"testing"

	"github.com/Tnze/go-mc/chat"
)

func TestInventory_SlotLayout(t *testing.T) {
	var inv Inventory
	if inv.ContainerSize() != 36 {
		t.Fatalf("size=%d", inv.ContainerSize())
	}
	for _, slot := range []int{0, 8, 35, ArmorFeetSlot, ArmorHeadSlot, OffhandSlot} {
		if !inv.SetItem(slot, ItemStack{Item: "COAL", Count: 1}) {
			t.Fatalf("slot %d rejected", slot)
		}
	}
	for _, slot := range []int{-1, 36, 99, 104, 105, 107} {
		if inv.SetItem(slot, ItemStack{Item: "COAL", Count: 1}) {
			t.Fatalf("slot %d should not exist", slot)
		}
		if !inv.Item(slot).IsEmpty() {
			t.Fatalf("slot %d read non-empty", slot)
		}
	}
	if inv.Occupied() != 6 {
		t.Fatalf("occupied=%d want 6", inv.Occupied())
	}
	inv.SetItem(0, ItemStack{Item: "COAL", Count: 0})
	if inv.Item(0) != (ItemStack{}) {
		t.Fatalf("zero-count stack not normalized: %+v", inv.Item(0))
	}
}

func TestInventory_AddFillsHotbarFirst(t *testing.T) {
	var inv Inventory
	left := inv.Add("TORCH", 100, 64)
	if left != 0 {
		t.Fatalf("left=%d", left)
	}
	if inv.Item(0).Count != 64 || inv.Item(1).Count != 36 {
		t.Fatalf("unexpected fill: %+v %+v", inv.Item(0), inv.Item(1))
	}
	inv.Add("TORCH", 10, 64)
	if inv.Item(1).Count != 46 {
		t.Fatalf("existing stack not topped up: %+v", inv.Item(1))
	}
}

func TestPlayer_NotifySendsNotice(t *testing.T) {
	out := make(chan []byte, 1)
	p := NewPlayer("steve", "overworld", Vec3i{}, out)
	if p.ID == "" {
		t.Fatalf("player id not assigned")
	}
	p.Notify(5, chat.Message{Text: "first", Color: "gold"})
	p.Notify(6, chat.Message{Text: "second", Color: "gold"})

	if len(out) != 1 {
		t.Fatalf("queued=%d want 1", len(out))
	}
	var msg map[string]any
	if err := json.Unmarshal(<-out, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg["type"] != "NOTICE" || msg["text"] != "second" || msg["player_id"] != p.ID {
		t.Fatalf("unexpected notice: %v", msg)
	}
	if n := len(p.RecentNotices()); n != 2 {
		t.Fatalf("recent notices=%d", n)
	}
}

func TestPlayer_NotifyWithoutConnection(t *testing.T) {
	p := NewPlayer("bot", "overworld", Vec3i{}, nil)
	p.Notify(1, chat.Message{Text: "hi"})
	if len(p.RecentNotices()) != 1 {
		t.Fatalf("offline notice not recorded")
	}
}
