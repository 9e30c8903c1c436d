package multiworld

import (
	"fmt"
	"slices"

	"roguelite.ai/internal/persistence/snapshot"
	"roguelite.ai/internal/sim/world"
)

// ExportSnapshot captures every level and every known player. Loop
// goroutine only.
func (s *Server) ExportSnapshot() snapshot.SnapshotV1 {
	tick := s.tick.Load()
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:       snapshot.Version,
			Tick:          tick,
			Levels:        len(s.levels),
			Players:       len(s.players),
			PaletteDigest: s.cats.Blocks.PaletteDigest,
		},
		Tick:         tick,
		DayTime:      s.clock.Now(),
		BlockPalette: append([]string(nil), s.cats.Blocks.Palette...),
	}
	for _, w := range s.levels {
		snap.Levels = append(snap.Levels, w.ExportLevel())
	}
	for _, p := range s.players {
		snap.Players = append(snap.Players, snapshot.PlayerV1{
			ID:        p.ID,
			Name:      p.Name,
			Level:     p.LevelID,
			Pos:       p.Pos.ToArray(),
			Inventory: world.ExportInventory(&p.Inventory),
		})
	}
	return snap
}

// ImportSnapshot restores the clock, levels and players. Must run before Run
// starts. Levels absent from the snapshot keep their freshly generated state
// but still follow the restored clock.
func (s *Server) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if !slices.Equal(snap.BlockPalette, s.cats.Blocks.Palette) {
		return fmt.Errorf("snapshot block palette does not match blocks.json")
	}
	for _, lv := range snap.Levels {
		w := s.byID[lv.ID]
		if w == nil {
			s.log.Warn("snapshot level not configured, dropping", "dimension", lv.ID)
			continue
		}
		if err := w.ImportLevel(lv); err != nil {
			return err
		}
	}
	s.players = nil
	s.byName = map[string]*world.Player{}
	s.online = map[string]bool{}
	for _, pv := range snap.Players {
		p := world.NewPlayer(pv.Name, pv.Level, world.Vec3i{X: pv.Pos[0], Y: pv.Pos[1], Z: pv.Pos[2]}, nil)
		p.ID = pv.ID
		world.ImportInventory(&p.Inventory, pv.Inventory)
		s.players = append(s.players, p)
		s.byName[p.Name] = p
	}
	s.tick.Store(snap.Tick)
	s.clock.Set(snap.DayTime)
	s.publishMetrics(0)
	return nil
}
