package world

import "roguelite.ai/internal/sim/world/logic/mathx"

// UpdateResidency keeps chunks within the view radius of every player, and
// within the spawn radius of the origin, loaded and ticking. A one-chunk
// border around each area stays loaded without ticking. Everything else is
// unloaded.
func (w *World) UpdateResidency() {
	want := map[ChunkKey]bool{}
	mark := func(center ChunkKey, r int) {
		for dx := -(r + 1); dx <= r+1; dx++ {
			for dz := -(r + 1); dz <= r+1; dz++ {
				k := ChunkKey{CX: center.CX + dx, CZ: center.CZ + dz}
				ticking := mathx.AbsInt(dx) <= r && mathx.AbsInt(dz) <= r
				want[k] = want[k] || ticking
			}
		}
	}
	mark(ChunkKey{}, w.cfg.SpawnRadiusChunks)
	for _, p := range w.players {
		mark(p.Pos.ChunkKey(), w.cfg.ViewRadiusChunks)
	}

	loaded, unloaded := 0, 0
	for k, ticking := range want {
		if _, ok := w.chunks.visible[k]; !ok {
			loaded++
		}
		w.chunks.LoadChunk(k, ticking)
	}
	for _, k := range w.chunks.LoadedChunkKeys() {
		if _, ok := want[k]; !ok {
			w.chunks.UnloadChunk(k)
			unloaded++
		}
	}
	if loaded > 0 || unloaded > 0 {
		w.log.Debug("chunk residency changed", "loaded", loaded, "unloaded", unloaded, "resident", len(w.chunks.visible))
	}
}
