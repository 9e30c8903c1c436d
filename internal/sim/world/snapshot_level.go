package world

import (
	"fmt"
	"sort"

	"roguelite.ai/internal/persistence/snapshot"
)

// ExportLevel captures resident and unloaded-in-memory chunks and entities.
// The clock is server-wide and exported with the server snapshot. Chunks already handed to the persister live in region files.
func (w *World) ExportLevel() snapshot.LevelV1 {
	v := snapshot.LevelV1{
		ID:            w.cfg.ID,
		NextEntityNum: w.nextEntityNum.Load(),
	}
	for _, c := range w.chunks.allChunks() {
		v.Chunks = append(v.Chunks, c.export())
	}
	ids := make([]string, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e := w.entities[id]
		v.Entities = append(v.Entities, snapshot.EntityV1{
			ID:          e.EntityID,
			Kind:        e.Kind,
			Pos:         e.Pos.ToArray(),
			Item:        e.Item,
			Count:       e.Count,
			CreatedTick: e.CreatedTick,
			ExpiresTick: e.ExpiresTick,
			SlotCount:   len(e.Slots),
			Slots:       slotsToV1(e.Slots),
		})
	}
	return v
}

// ExportChunk returns a resident chunk, or false when it is not loaded.
func (w *World) ExportChunk(k ChunkKey) (snapshot.ChunkV1, bool) {
	h, ok := w.chunks.Holder(k)
	if !ok || h.Chunk() == nil {
		return snapshot.ChunkV1{}, false
	}
	return h.Chunk().export(), true
}

// ImportLevel replaces the dimension's state. Imported chunks start
// unloaded; residency brings them back on the next tick.
func (w *World) ImportLevel(v snapshot.LevelV1) error {
	if v.ID != w.cfg.ID {
		return fmt.Errorf("snapshot level %q does not match world %q", v.ID, w.cfg.ID)
	}
	w.nextEntityNum.Store(v.NextEntityNum)

	w.chunks.visible = map[ChunkKey]*ChunkHolder{}
	w.chunks.saved = map[ChunkKey]*Chunk{}
	for _, cv := range v.Chunks {
		c := chunkFromV1(cv, w.cfg.MinY, w.cfg.MaxY)
		w.chunks.saved[c.Key] = c
	}

	w.entities = map[string]*Entity{}
	w.itemsAt = map[Vec3i][]string{}
	for _, ev := range v.Entities {
		e := &Entity{
			EntityID:    ev.ID,
			Kind:        ev.Kind,
			Pos:         Vec3i{X: ev.Pos[0], Y: ev.Pos[1], Z: ev.Pos[2]},
			Item:        ev.Item,
			Count:       ev.Count,
			CreatedTick: ev.CreatedTick,
			ExpiresTick: ev.ExpiresTick,
		}
		if ev.SlotCount > 0 {
			e.Slots = slotsFromV1(ev.SlotCount, ev.Slots)
		}
		w.entities[e.EntityID] = e
		if e.Kind == EntityItem {
			w.itemsAt[e.Pos] = append(w.itemsAt[e.Pos], e.EntityID)
		}
	}
	return nil
}

// ExportInventory flattens an inventory into slot records.
func ExportInventory(inv *Inventory) []snapshot.SlotV1 {
	var out []snapshot.SlotV1
	for _, slot := range inventorySlots() {
		if s := inv.Item(slot); !s.IsEmpty() {
			out = append(out, snapshot.SlotV1{Slot: slot, Item: s.Item, Count: s.Count})
		}
	}
	return out
}

func ImportInventory(inv *Inventory, slots []snapshot.SlotV1) {
	*inv = Inventory{}
	for _, s := range slots {
		inv.SetItem(s.Slot, ItemStack{Item: s.Item, Count: s.Count})
	}
}

func inventorySlots() []int {
	out := make([]int, 0, MainSlots+5)
	for i := 0; i < MainSlots; i++ {
		out = append(out, i)
	}
	for i := ArmorFeetSlot; i <= ArmorHeadSlot; i++ {
		out = append(out, i)
	}
	return append(out, OffhandSlot)
}
