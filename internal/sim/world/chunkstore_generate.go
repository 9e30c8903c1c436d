package world

import "roguelite.ai/internal/sim/world/logic/mathx"

type WorldGen struct {
	Seed     int64
	Kind     string // OVERWORLD, NETHER, END
	SurfaceY int

	// Palette ids for generated blocks.
	Air       uint16
	Bedrock   uint16
	Stone     uint16
	Dirt      uint16
	Grass     uint16
	CoalOre   uint16
	IronOre   uint16
	Nether    uint16
	EndStone  uint16
	EndRadius int
}

func (s *ChunkStore) generateChunk(ch *Chunk) {
	for lz := 0; lz < ChunkSize; lz++ {
		for lx := 0; lx < ChunkSize; lx++ {
			wx := ch.Key.CX*ChunkSize + lx
			wz := ch.Key.CZ*ChunkSize + lz
			s.generateColumn(ch, lx, lz, wx, wz)
		}
	}
	ch.dirty = true
}

func (s *ChunkStore) columnHeight(wx, wz int) int {
	h := s.gen.SurfaceY + int(mathx.Hash2(s.gen.Seed, wx, wz)%5) - 2
	if h > s.maxY {
		h = s.maxY
	}
	return h
}

func (s *ChunkStore) generateColumn(ch *Chunk, lx, lz, wx, wz int) {
	g := s.gen
	switch g.Kind {
	case "END":
		// A single island around the origin; everything else is void.
		if mathx.AbsInt(wx) > g.EndRadius || mathx.AbsInt(wz) > g.EndRadius {
			return
		}
		top := s.columnHeight(wx, wz)
		for y := top - 8; y <= top; y++ {
			ch.Set(lx, y, lz, g.EndStone)
		}
		return
	case "NETHER":
		ch.Set(lx, s.minY, lz, g.Bedrock)
		ch.Set(lx, s.maxY, lz, g.Bedrock)
		top := s.columnHeight(wx, wz)
		for y := s.minY + 1; y <= top; y++ {
			ch.Set(lx, y, lz, g.Nether)
		}
		return
	}

	top := s.columnHeight(wx, wz)
	ch.Set(lx, s.minY, lz, g.Bedrock)
	for y := s.minY + 1; y <= top; y++ {
		b := g.Stone
		switch {
		case y == top:
			b = g.Grass
		case y > top-4:
			b = g.Dirt
		default:
			r := mathx.Hash2(g.Seed+int64(y)*7919, wx, wz) % 1000
			switch {
			case r < 4:
				b = g.IronOre
			case r < 12:
				b = g.CoalOre
			}
		}
		ch.Set(lx, y, lz, b)
	}
}
