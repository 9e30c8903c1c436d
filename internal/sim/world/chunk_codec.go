package world

import "roguelite.ai/internal/persistence/snapshot"

func slotsToV1(slots []ItemStack) []snapshot.SlotV1 {
	var out []snapshot.SlotV1
	for i, s := range slots {
		if s.IsEmpty() {
			continue
		}
		out = append(out, snapshot.SlotV1{Slot: i, Item: s.Item, Count: s.Count})
	}
	return out
}

func slotsFromV1(n int, in []snapshot.SlotV1) []ItemStack {
	out := make([]ItemStack, n)
	for _, s := range in {
		if s.Slot < 0 || s.Slot >= n || s.Count <= 0 {
			continue
		}
		out[s.Slot] = ItemStack{Item: s.Item, Count: s.Count}
	}
	return out
}

func (c *Chunk) export() snapshot.ChunkV1 {
	v := snapshot.ChunkV1{CX: c.Key.CX, CZ: c.Key.CZ}
	for _, y := range c.sectionKeys() {
		sec := c.sections[y]
		blocks := make([]uint16, sectionSize)
		copy(blocks, sec[:])
		v.Sections = append(v.Sections, snapshot.SectionV1{Y: y, Blocks: blocks})
	}
	for _, ct := range c.BlockEntities() {
		v.Containers = append(v.Containers, snapshot.ContainerV1{
			Type:      ct.Type,
			Pos:       ct.Pos.ToArray(),
			SlotCount: len(ct.Slots),
			Slots:     slotsToV1(ct.Slots),
		})
	}
	return v
}

func chunkFromV1(v snapshot.ChunkV1, minY, maxY int) *Chunk {
	c := newChunk(ChunkKey{CX: v.CX, CZ: v.CZ}, minY, maxY)
	for _, sec := range v.Sections {
		if len(sec.Blocks) != sectionSize {
			continue
		}
		var blocks [sectionSize]uint16
		copy(blocks[:], sec.Blocks)
		c.sections[sec.Y] = &blocks
	}
	for _, ct := range v.Containers {
		pos := Vec3i{X: ct.Pos[0], Y: ct.Pos[1], Z: ct.Pos[2]}
		c.containers[pos] = &Container{Type: ct.Type, Pos: pos, Slots: slotsFromV1(ct.SlotCount, ct.Slots)}
	}
	c.dirty = true
	return c
}
