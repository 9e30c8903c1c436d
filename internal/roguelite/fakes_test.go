package roguelite

import (
	"fmt"

	"github.com/Tnze/go-mc/chat"
)

type fakeServer struct {
	players []*fakePlayer
	levels  []*fakeLevel
}

func (s *fakeServer) Players() []Player {
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out
}

func (s *fakeServer) Levels() []Level {
	out := make([]Level, 0, len(s.levels))
	for _, l := range s.levels {
		out = append(out, l)
	}
	return out
}

type fakeInventory struct {
	main  [36]ItemStack
	extra map[int]ItemStack
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{extra: map[int]ItemStack{}}
}

func (i *fakeInventory) ContainerSize() int { return len(i.main) }

func (i *fakeInventory) Item(slot int) ItemStack {
	if slot >= 0 && slot < len(i.main) {
		return i.main[slot]
	}
	return i.extra[slot]
}

func (i *fakeInventory) SetItem(slot int, s ItemStack) {
	if slot >= 0 && slot < len(i.main) {
		i.main[slot] = s
		return
	}
	i.extra[slot] = s
}

type fakePlayer struct {
	name    string
	level   *fakeLevel
	inv     *fakeInventory
	notices []chat.Message
}

func (p *fakePlayer) Name() string { return p.name }
func (p *fakePlayer) Level() Level {
	if p.level == nil {
		return nil
	}
	return p.level
}
func (p *fakePlayer) Inventory() Inventory        { return p.inv }
func (p *fakePlayer) SendNotice(msg chat.Message) { p.notices = append(p.notices, msg) }

type fakeEntity struct {
	id    string
	kind  EntityKind
	pos   BlockPos
	items int
	level *fakeLevel
}

func (e *fakeEntity) ID() string       { return e.id }
func (e *fakeEntity) Kind() EntityKind { return e.kind }
func (e *fakeEntity) ClearContent()    { e.items = 0 }

// Discard removes the entity; vehicles still holding items spill them, which
// the purge must never allow to happen.
func (e *fakeEntity) Discard() {
	e.level.removeEntity(e.id)
	if e.kind != EntityItem && e.items > 0 {
		e.level.spawnItem(e.pos, e.items)
	}
}

type fakeBlockEntity struct {
	kind  BlockEntityKind
	pos   BlockPos
	items int
}

func (b *fakeBlockEntity) Kind() BlockEntityKind { return b.kind }
func (b *fakeBlockEntity) Pos() BlockPos         { return b.pos }
func (b *fakeBlockEntity) ClearContent()         { b.items = 0 }

type fakeChunk struct {
	level     *fakeLevel
	positions []BlockPos
	ticking   bool
}

func (c *fakeChunk) TickingChunk() Chunk {
	if !c.ticking {
		return nil
	}
	return c
}

func (c *fakeChunk) BlockEntities() []BlockEntity {
	var out []BlockEntity
	for _, pos := range c.positions {
		if be := c.level.blocks[pos]; be != nil {
			out = append(out, be)
		}
	}
	return out
}

type fakeLevel struct {
	id       string
	dayTime  int64
	entities []*fakeEntity
	blocks   map[BlockPos]*fakeBlockEntity
	chunks   []*fakeChunk
	airSet   map[BlockPos]UpdateFlags
	nextID   int
}

func newFakeLevel(id string) *fakeLevel {
	return &fakeLevel{
		id:     id,
		blocks: map[BlockPos]*fakeBlockEntity{},
		airSet: map[BlockPos]UpdateFlags{},
	}
}

func (l *fakeLevel) ID() string         { return l.id }
func (l *fakeLevel) DayTime() int64     { return l.dayTime }
func (l *fakeLevel) MinY() int          { return -64 }
func (l *fakeLevel) MaxY() int          { return 320 }
func (l *fakeLevel) ChunkMap() ChunkMap { return l }

func (l *fakeLevel) VisibleChunks() []ChunkHolder {
	out := make([]ChunkHolder, 0, len(l.chunks))
	for _, c := range l.chunks {
		out = append(out, c)
	}
	return out
}

func (l *fakeLevel) EntitiesIn(kind EntityKind, box AABB) []Entity {
	var out []Entity
	for _, e := range l.entities {
		if e.kind == kind && box.Contains(e.pos) {
			out = append(out, e)
		}
	}
	return out
}

func (l *fakeLevel) BlockEntityAt(pos BlockPos) BlockEntity {
	be := l.blocks[pos]
	if be == nil {
		return nil
	}
	return be
}

// SetBlockAir spills whatever the container still holds, like the engine.
func (l *fakeLevel) SetBlockAir(pos BlockPos, flags UpdateFlags) {
	if be := l.blocks[pos]; be != nil {
		if be.items > 0 {
			l.spawnItem(pos, be.items)
		}
		delete(l.blocks, pos)
	}
	l.airSet[pos] = flags
}

func (l *fakeLevel) addChunk(ticking bool, bes ...*fakeBlockEntity) {
	c := &fakeChunk{level: l, ticking: ticking}
	for _, be := range bes {
		l.blocks[be.pos] = be
		c.positions = append(c.positions, be.pos)
	}
	l.chunks = append(l.chunks, c)
}

func (l *fakeLevel) spawnItem(pos BlockPos, count int) *fakeEntity {
	return l.addEntity(EntityItem, pos, count)
}

func (l *fakeLevel) addEntity(kind EntityKind, pos BlockPos, items int) *fakeEntity {
	l.nextID++
	e := &fakeEntity{id: fmt.Sprintf("E%d", l.nextID), kind: kind, pos: pos, items: items, level: l}
	l.entities = append(l.entities, e)
	return e
}

func (l *fakeLevel) removeEntity(id string) {
	for i, e := range l.entities {
		if e.id == id {
			l.entities = append(l.entities[:i], l.entities[i+1:]...)
			return
		}
	}
}

func (l *fakeLevel) count(kind EntityKind) int {
	n := 0
	for _, e := range l.entities {
		if e.kind == kind {
			n++
		}
	}
	return n
}
