package world

import "fmt"

func (w *World) GetBlock(pos Vec3i) uint16 { return w.chunks.GetBlock(pos) }

func (w *World) BlockName(pos Vec3i) string { return w.catalogs.BlockName(w.GetBlock(pos)) }

// BlockEntityAt returns the container at pos if its chunk is resident.
func (w *World) BlockEntityAt(pos Vec3i) *Container { return w.chunks.containerAt(pos) }

// ReasonPurge marks removals whose leftovers are discarded: container
// contents and popped neighbors vanish instead of dropping as items.
const ReasonPurge = "PURGE"

// SetBlock replaces the block at pos. Removing a container block drops
// whatever it still holds as item entities. With BlockUpdateNeighbors, a
// block above that needs support pops off as an item. Neither drops under
// ReasonPurge.
func (w *World) SetBlock(actor string, pos Vec3i, b uint16, flags BlockFlags, reason string) {
	if !w.chunks.inHeight(pos.Y) {
		return
	}
	ch, _, _ := w.chunks.chunkFor(pos)
	from := w.chunks.GetBlock(pos)
	if from == b {
		return
	}

	drop := reason != ReasonPurge
	if ct := ch.containers[pos]; ct != nil {
		delete(ch.containers, pos)
		for _, s := range ct.Slots {
			if drop && !s.IsEmpty() {
				w.SpawnItem(actor, pos, s.Item, s.Count, "CONTAINER_BROKEN")
			}
		}
	}
	w.chunks.SetBlock(pos, b)
	if kind, slots, ok := w.catalogs.IsContainer(b); ok {
		ch.containers[pos] = newContainer(kind, pos, slots)
	}
	if flags&BlockUpdateClients != 0 {
		ch.dirty = true
	}
	w.auditSetBlock(actor, pos, from, b, reason)

	if flags&BlockUpdateNeighbors != 0 && !w.catalogs.Blocks.Defs[w.catalogs.BlockName(b)].Solid {
		above := pos.Add(Vec3i{Y: 1})
		if ab := w.GetBlock(above); ab != w.chunks.gen.Air && w.catalogs.NeedsSupport(ab) {
			if !drop {
				w.SetBlock(actor, above, w.chunks.gen.Air, flags, ReasonPurge)
				return
			}
			w.SetBlock(actor, above, w.chunks.gen.Air, flags, "UNSUPPORTED")
			w.SpawnItem(actor, above, w.catalogs.BlockName(ab), 1, "UNSUPPORTED")
		}
	}
}

// PlaceBlock sets a block by palette name with full updates.
func (w *World) PlaceBlock(actor string, pos Vec3i, name string) error {
	id, ok := w.catalogs.Blocks.Index[name]
	if !ok {
		return fmt.Errorf("unknown block %q", name)
	}
	if !w.chunks.inHeight(pos.Y) {
		return fmt.Errorf("y=%d outside %d..%d", pos.Y, w.cfg.MinY, w.cfg.MaxY)
	}
	w.SetBlock(actor, pos, id, BlockUpdateAll, "PLACE")
	return nil
}

// SetBlockAir is the removal path used by admin tools and the reset workflow.
func (w *World) SetBlockAir(actor string, pos Vec3i, flags BlockFlags, reason string) {
	w.SetBlock(actor, pos, w.chunks.gen.Air, flags, reason)
}

// ClearContainer drains a block container in place. The audit entry lists
// what was discarded.
func (w *World) ClearContainer(actor string, pos Vec3i) bool {
	ct := w.BlockEntityAt(pos)
	if ct == nil {
		return false
	}
	details := map[string]any{
		"container_id": ct.ID(),
		"type":         ct.Type,
		"items":        ct.ItemCount(),
		"contents":     ct.InventoryList(),
	}
	ct.ClearContent()
	w.auditEvent(actor, "CONTAINER_CLEAR", pos, "", details)
	return true
}
