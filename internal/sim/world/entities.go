package world

import (
	"fmt"
	"sort"

	itemspkg "roguelite.ai/internal/sim/world/feature/entities/items"
)

const EntityItem = "ITEM"

// Entity is anything that is not a block: dropped item stacks and vehicles.
type Entity struct {
	EntityID string
	Kind     string
	Pos      Vec3i

	// Dropped stacks.
	Item        string
	Count       int
	CreatedTick uint64
	ExpiresTick uint64

	// Storage vehicles; nil for kinds without container slots.
	Slots []ItemStack
}

func (e *Entity) ClearContent() {
	for i := range e.Slots {
		e.Slots[i] = ItemStack{}
	}
}

// Add stores items in a storage vehicle and returns how many did not fit.
func (e *Entity) Add(item string, count, maxStack int) int {
	return addToSlots(e.Slots, item, count, maxStack)
}

func (e *Entity) ItemCount() int {
	if e.Kind == EntityItem {
		return e.Count
	}
	n := 0
	for _, s := range e.Slots {
		if !s.IsEmpty() {
			n += s.Count
		}
	}
	return n
}

func (w *World) newEntityID(kind string) string {
	n := w.nextEntityNum.Add(1)
	return fmt.Sprintf("%s_%s_%d", w.cfg.ID, kind, n)
}

func (w *World) Entity(id string) *Entity { return w.entities[id] }

// SpawnItem drops a stack at pos. A drop of the same item on the same
// position merges into the existing stack.
func (w *World) SpawnItem(actor string, pos Vec3i, item string, count int, reason string) string {
	if item == "" || count <= 0 {
		return ""
	}
	nowTick := w.tick
	ttl := uint64(w.cfg.ItemEntityTTLTicks)

	if ids := w.itemsAt[pos]; len(ids) > 0 {
		if mergeID, ok := itemspkg.FindMergeTarget(ids, item, w.itemEntry); ok {
			e := w.entities[mergeID]
			e.Count += count
			e.ExpiresTick = itemspkg.ExtendExpiry(e.ExpiresTick, nowTick, ttl)
			w.auditEvent(actor, "ITEM_SPAWN", pos, reason, map[string]any{
				"entity_id": e.EntityID,
				"item":      item,
				"count":     count,
				"merged":    true,
			})
			return e.EntityID
		}
	}

	e := &Entity{
		EntityID:    w.newEntityID(EntityItem),
		Kind:        EntityItem,
		Pos:         pos,
		Item:        item,
		Count:       count,
		CreatedTick: nowTick,
		ExpiresTick: itemspkg.ExtendExpiry(0, nowTick, ttl),
	}
	w.entities[e.EntityID] = e
	w.itemsAt[pos] = append(w.itemsAt[pos], e.EntityID)
	w.auditEvent(actor, "ITEM_SPAWN", pos, reason, map[string]any{
		"entity_id": e.EntityID,
		"item":      item,
		"count":     count,
	})
	return e.EntityID
}

func (w *World) itemEntry(id string) (itemspkg.Entry, bool) {
	e := w.entities[id]
	if e == nil || e.Kind != EntityItem {
		return itemspkg.Entry{}, false
	}
	return itemspkg.Entry{ID: e.EntityID, Item: e.Item, Count: e.Count, ExpiresTick: e.ExpiresTick}, true
}

// SpawnVehicle places an entity of a catalog kind other than ITEM.
func (w *World) SpawnVehicle(actor string, kind string, pos Vec3i) (*Entity, error) {
	def, ok := w.catalogs.Entities.Defs[kind]
	if !ok || kind == EntityItem {
		return nil, fmt.Errorf("unknown vehicle kind %q", kind)
	}
	e := &Entity{EntityID: w.newEntityID(kind), Kind: kind, Pos: pos, CreatedTick: w.tick}
	if def.ContainerSlots > 0 {
		e.Slots = make([]ItemStack, def.ContainerSlots)
	}
	w.entities[e.EntityID] = e
	w.auditEvent(actor, "ENTITY_SPAWN", pos, "", map[string]any{"entity_id": e.EntityID, "kind": kind})
	return e, nil
}

// EntitiesIn returns entities of kind inside box, ordered by id.
func (w *World) EntitiesIn(kind string, box Box) []*Entity {
	var out []*Entity
	for _, e := range w.entities {
		if e.Kind == kind && box.Contains(e.Pos) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func (w *World) EntityCount(kind string) int {
	n := 0
	for _, e := range w.entities {
		if kind == "" || e.Kind == kind {
			n++
		}
	}
	return n
}

// Discard removes an entity outright. Nothing it holds is dropped.
func (w *World) Discard(actor, id, reason string) bool {
	e := w.entities[id]
	if e == nil {
		return false
	}
	w.removeEntity(e)
	w.auditEvent(actor, "ENTITY_DISCARD", e.Pos, reason, map[string]any{
		"entity_id": e.EntityID,
		"kind":      e.Kind,
		"items":     e.ItemCount(),
	})
	return true
}

// Kill destroys an entity the way gameplay does: its contents and its own
// drop item fall on the ground.
func (w *World) Kill(actor, id, reason string) bool {
	e := w.entities[id]
	if e == nil || e.Kind == EntityItem {
		return false
	}
	w.removeEntity(e)
	for _, s := range e.Slots {
		if !s.IsEmpty() {
			w.SpawnItem(actor, e.Pos, s.Item, s.Count, "ENTITY_KILLED")
		}
	}
	if drop := w.catalogs.Entities.Defs[e.Kind].DropsItem; drop != "" {
		w.SpawnItem(actor, e.Pos, drop, 1, "ENTITY_KILLED")
	}
	w.auditEvent(actor, "ENTITY_KILL", e.Pos, reason, map[string]any{"entity_id": e.EntityID, "kind": e.Kind})
	return true
}

// ClearEntityContent drains a storage vehicle in place.
func (w *World) ClearEntityContent(actor, id string) bool {
	e := w.entities[id]
	if e == nil || e.Slots == nil {
		return false
	}
	details := map[string]any{
		"entity_id": e.EntityID,
		"items":     e.ItemCount(),
		"contents":  mergeStacks(e.Slots),
	}
	e.ClearContent()
	w.auditEvent(actor, "CONTAINER_CLEAR", e.Pos, "", details)
	return true
}

func (w *World) removeEntity(e *Entity) {
	delete(w.entities, e.EntityID)
	if e.Kind != EntityItem {
		return
	}
	ids := itemspkg.RemoveID(w.itemsAt[e.Pos], e.EntityID)
	if len(ids) == 0 {
		delete(w.itemsAt, e.Pos)
	} else {
		w.itemsAt[e.Pos] = ids
	}
}

func (w *World) cleanupExpiredItems() {
	var ids []string
	for id, e := range w.entities {
		if e.Kind == EntityItem {
			ids = append(ids, id)
		}
	}
	for _, id := range itemspkg.SortedExpired(ids, w.itemEntry, w.tick) {
		e := w.entities[id]
		w.removeEntity(e)
		w.auditEvent("WORLD", "ITEM_DESPAWN", e.Pos, "EXPIRED", map[string]any{
			"entity_id": e.EntityID,
			"item":      e.Item,
			"count":     e.Count,
		})
	}
}
