package roguelite

import "github.com/Tnze/go-mc/chat"

type InventoryReport struct {
	// Cleared counts slots that held something before the reset.
	Cleared int
}

// ResetInventory empties every slot of p except the hotbar and notifies the
// player. Slots 0..HotbarSize-1 are never read or written.
func (r *Resetter) ResetInventory(p Player) InventoryReport {
	r.log.Debug("starting inventory clear", "player", p.Name())

	inv := p.Inventory()
	var rep InventoryReport
	clear := func(slot int) {
		if !inv.Item(slot).IsEmpty() {
			rep.Cleared++
		}
		inv.SetItem(slot, EmptyStack)
	}

	for slot := r.cfg.HotbarSize; slot < inv.ContainerSize(); slot++ {
		clear(slot)
	}
	for _, slot := range r.cfg.ArmorSlots {
		clear(slot)
	}
	clear(r.cfg.OffhandSlot)

	r.log.Debug("cleared inventory slots", "player", p.Name(), "count", rep.Cleared)
	p.SendNotice(r.Notice())
	return rep
}

// Notice is the chat line sent to a player whose inventory was reset.
func (r *Resetter) Notice() chat.Message {
	text := "A new day. Your inventory has been cleared except for your hotbar. All dropped items have been removed."
	if r.cfg.PurgeStorage {
		text = "A new day. Your inventory has been cleared except for your hotbar. " +
			"All dropped items, chests, furnaces, chest boats, and minecart chests have been removed."
	}
	return chat.Message{Text: text, Color: "gold"}
}
