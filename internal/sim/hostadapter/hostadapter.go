// Package hostadapter exposes the simulation to the daily reset workflow
// through the roguelite port interfaces.
package hostadapter

import (
	"github.com/Tnze/go-mc/chat"

	"roguelite.ai/internal/roguelite"
	"roguelite.ai/internal/sim/multiworld"
	"roguelite.ai/internal/sim/world"
)

// Actor recorded in audit entries for changes made by the reset.
const Actor = "DAILY_RESET"

// HandlerName identifies the reset hook among end-of-tick handlers.
const HandlerName = "roguelite.daily_reset"

// Install registers the reset as an end-of-tick handler.
func Install(srv *multiworld.Server, r *roguelite.Resetter) {
	srv.OnEndTick(HandlerName, func(s *multiworld.Server) {
		r.Step(Wrap(s))
	})
}

func Wrap(s *multiworld.Server) roguelite.Server { return server{s: s} }

type server struct{ s *multiworld.Server }

func (a server) Players() []roguelite.Player {
	ps := a.s.Players()
	out := make([]roguelite.Player, 0, len(ps))
	for _, p := range ps {
		out = append(out, player{srv: a.s, p: p})
	}
	return out
}

func (a server) Levels() []roguelite.Level {
	ws := a.s.Levels()
	out := make([]roguelite.Level, 0, len(ws))
	for _, w := range ws {
		out = append(out, level{w: w})
	}
	return out
}

type player struct {
	srv *multiworld.Server
	p   *world.Player
}

func (a player) Name() string                   { return a.p.Name }
func (a player) Inventory() roguelite.Inventory { return inventory{inv: &a.p.Inventory} }

func (a player) Level() roguelite.Level {
	w := a.srv.Level(a.p.LevelID)
	if w == nil {
		return nil
	}
	return level{w: w}
}

func (a player) SendNotice(msg chat.Message) { a.p.Notify(a.srv.CurrentTick(), msg) }

type inventory struct{ inv *world.Inventory }

func (a inventory) ContainerSize() int { return a.inv.ContainerSize() }

func (a inventory) Item(slot int) roguelite.ItemStack {
	s := a.inv.Item(slot)
	return roguelite.ItemStack{Item: s.Item, Count: s.Count}
}

func (a inventory) SetItem(slot int, s roguelite.ItemStack) {
	a.inv.SetItem(slot, world.ItemStack{Item: s.Item, Count: s.Count})
}

type level struct{ w *world.World }

func (a level) ID() string     { return a.w.ID() }
func (a level) DayTime() int64 { return a.w.DayTime() }
func (a level) MinY() int      { return a.w.MinY() }
func (a level) MaxY() int      { return a.w.MaxY() }

func (a level) EntitiesIn(kind roguelite.EntityKind, box roguelite.AABB) []roguelite.Entity {
	es := a.w.EntitiesIn(string(kind), world.Box{
		Min: world.Vec3i{X: box.MinX, Y: box.MinY, Z: box.MinZ},
		Max: world.Vec3i{X: box.MaxX, Y: box.MaxY, Z: box.MaxZ},
	})
	out := make([]roguelite.Entity, 0, len(es))
	for _, e := range es {
		out = append(out, entity{w: a.w, e: e})
	}
	return out
}

func (a level) BlockEntityAt(pos roguelite.BlockPos) roguelite.BlockEntity {
	ct := a.w.BlockEntityAt(toVec(pos))
	if ct == nil {
		return nil
	}
	return blockEntity{w: a.w, ct: ct}
}

func (a level) SetBlockAir(pos roguelite.BlockPos, flags roguelite.UpdateFlags) {
	a.w.SetBlockAir(Actor, toVec(pos), toBlockFlags(flags), world.ReasonPurge)
}

func (a level) ChunkMap() roguelite.ChunkMap { return chunkMap{w: a.w, acc: a.w.ChunkMap()} }

type chunkMap struct {
	w   *world.World
	acc world.ChunkMapAccessor
}

func (a chunkMap) VisibleChunks() []roguelite.ChunkHolder {
	hs := a.acc.VisibleChunks()
	out := make([]roguelite.ChunkHolder, 0, len(hs))
	for _, h := range hs {
		out = append(out, holder{w: a.w, h: h})
	}
	return out
}

type holder struct {
	w *world.World
	h *world.ChunkHolder
}

func (a holder) TickingChunk() roguelite.Chunk {
	c := a.h.TickingChunk()
	if c == nil {
		return nil
	}
	return chunk{w: a.w, c: c}
}

type chunk struct {
	w *world.World
	c *world.Chunk
}

func (a chunk) BlockEntities() []roguelite.BlockEntity {
	cts := a.c.BlockEntities()
	out := make([]roguelite.BlockEntity, 0, len(cts))
	for _, ct := range cts {
		out = append(out, blockEntity{w: a.w, ct: ct})
	}
	return out
}

type blockEntity struct {
	w  *world.World
	ct *world.Container
}

func (a blockEntity) Kind() roguelite.BlockEntityKind { return roguelite.BlockEntityKind(a.ct.Type) }
func (a blockEntity) ClearContent()                   { a.w.ClearContainer(Actor, a.ct.Pos) }

func (a blockEntity) Pos() roguelite.BlockPos {
	return roguelite.BlockPos{X: a.ct.Pos.X, Y: a.ct.Pos.Y, Z: a.ct.Pos.Z}
}

type entity struct {
	w *world.World
	e *world.Entity
}

func (a entity) ID() string                 { return a.e.EntityID }
func (a entity) Kind() roguelite.EntityKind { return roguelite.EntityKind(a.e.Kind) }
func (a entity) Discard()                   { a.w.Discard(Actor, a.e.EntityID, "PURGE") }
func (a entity) ClearContent()              { a.w.ClearEntityContent(Actor, a.e.EntityID) }

func toVec(p roguelite.BlockPos) world.Vec3i { return world.Vec3i{X: p.X, Y: p.Y, Z: p.Z} }

func toBlockFlags(f roguelite.UpdateFlags) world.BlockFlags {
	var out world.BlockFlags
	if f&roguelite.UpdateNeighbors != 0 {
		out |= world.BlockUpdateNeighbors
	}
	if f&roguelite.UpdateClients != 0 {
		out |= world.BlockUpdateClients
	}
	return out
}
