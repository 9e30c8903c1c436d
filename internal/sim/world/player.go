package world

import (
	"encoding/json"

	"github.com/Tnze/go-mc/chat"
	"github.com/google/uuid"

	"roguelite.ai/internal/protocol"
)

// Inventory slot layout. Main slots 0..35 (0..8 are the hotbar), armor
// 100..103 (feet to head), offhand 106.
const (
	MainSlots   = 36
	HotbarSlots = 9

	ArmorFeetSlot  = 100
	ArmorLegsSlot  = 101
	ArmorChestSlot = 102
	ArmorHeadSlot  = 103
	OffhandSlot    = 106
)

type Inventory struct {
	Main    [MainSlots]ItemStack
	Armor   [4]ItemStack
	Offhand ItemStack
}

// ContainerSize is the number of main slots; armor and offhand are addressed
// through their fixed slot numbers.
func (inv *Inventory) ContainerSize() int { return MainSlots }

func (inv *Inventory) slot(i int) *ItemStack {
	switch {
	case i >= 0 && i < MainSlots:
		return &inv.Main[i]
	case i >= ArmorFeetSlot && i <= ArmorHeadSlot:
		return &inv.Armor[i-ArmorFeetSlot]
	case i == OffhandSlot:
		return &inv.Offhand
	}
	return nil
}

func (inv *Inventory) Item(i int) ItemStack {
	if s := inv.slot(i); s != nil {
		return *s
	}
	return ItemStack{}
}

// SetItem reports false for slot numbers outside the layout.
func (inv *Inventory) SetItem(i int, st ItemStack) bool {
	s := inv.slot(i)
	if s == nil {
		return false
	}
	if st.IsEmpty() {
		st = ItemStack{}
	}
	*s = st
	return true
}

// Add fills the main slots, hotbar first, and returns what did not fit.
func (inv *Inventory) Add(item string, count, maxStack int) int {
	return addToSlots(inv.Main[:], item, count, maxStack)
}

// Occupied counts non-empty slots across main, armor and offhand.
func (inv *Inventory) Occupied() int {
	n := stackCount(inv.Main[:]) + stackCount(inv.Armor[:])
	if !inv.Offhand.IsEmpty() {
		n++
	}
	return n
}

type Player struct {
	ID      string
	Name    string
	LevelID string
	Pos     Vec3i

	Inventory Inventory

	out     chan []byte
	notices []chat.Message
}

func NewPlayer(name, levelID string, pos Vec3i, out chan []byte) *Player {
	return &Player{
		ID:      uuid.NewString(),
		Name:    name,
		LevelID: levelID,
		Pos:     pos,
		out:     out,
	}
}

// Notify delivers a system chat message. Slow clients lose their oldest
// queued message rather than stalling the server loop.
func (p *Player) Notify(tick uint64, msg chat.Message) {
	p.notices = append(p.notices, msg)
	if len(p.notices) > maxRecentNotices {
		p.notices = p.notices[len(p.notices)-maxRecentNotices:]
	}
	if p.out == nil {
		return
	}
	b, err := json.Marshal(protocol.NoticeMsg{
		Type:            protocol.TypeNotice,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		PlayerID:        p.ID,
		Message:         msg,
		Text:            msg.ClearString(),
	})
	if err != nil {
		return
	}
	sendLatest(p.out, b)
}

const maxRecentNotices = 16

// RecentNotices returns the last notices sent to the player, oldest first.
func (p *Player) RecentNotices() []chat.Message {
	return append([]chat.Message(nil), p.notices...)
}

func (p *Player) Outbox() chan []byte { return p.out }

func (p *Player) SetOutbox(ch chan []byte) { p.out = ch }

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
