package roguelite

import "github.com/Tnze/go-mc/chat"

// The interfaces below are the only surface of the host engine the reset
// workflow touches. They are implemented by internal/sim/hostadapter for the
// bundled simulation and by fakes in tests.

// Server is the server-wide handle passed to the end-of-tick hook.
type Server interface {
	// Players returns the connected players in a stable order.
	Players() []Player
	// Levels returns every loaded dimension.
	Levels() []Level
}

type Player interface {
	Name() string
	Level() Level
	Inventory() Inventory
	SendNotice(msg chat.Message)
}

// Inventory is slot-addressed. Main storage is 0..ContainerSize()-1; armor and
// offhand live at fixed indices outside that range.
type Inventory interface {
	ContainerSize() int
	Item(slot int) ItemStack
	SetItem(slot int, stack ItemStack)
}

type Level interface {
	ID() string
	// DayTime is the server-wide clock as seen from the level. Every level of
	// one server reports the same value.
	DayTime() int64
	MinY() int
	MaxY() int

	EntitiesIn(kind EntityKind, box AABB) []Entity
	BlockEntityAt(pos BlockPos) BlockEntity
	SetBlockAir(pos BlockPos, flags UpdateFlags)

	// ChunkMap exposes the resident chunk holders of the level. The host keeps
	// this map private; see world.ChunkMapAccessor.
	ChunkMap() ChunkMap
}

// ChunkMap is the narrow accessor capability over the host's visible chunk map.
type ChunkMap interface {
	VisibleChunks() []ChunkHolder
}

type ChunkHolder interface {
	// TickingChunk returns nil when the chunk is resident but not ticking.
	TickingChunk() Chunk
}

type Chunk interface {
	BlockEntities() []BlockEntity
}

type BlockEntity interface {
	Kind() BlockEntityKind
	Pos() BlockPos
	Container
}

type Entity interface {
	ID() string
	Kind() EntityKind
	// Discard removes the entity without dropping anything.
	Discard()
}

// Container is anything holding items that can be emptied in place.
type Container interface {
	ClearContent()
}

type BlockEntityKind string

const (
	BlockEntityChest   BlockEntityKind = "CHEST"
	BlockEntityFurnace BlockEntityKind = "FURNACE"
)

type EntityKind string

const (
	EntityItem          EntityKind = "ITEM"
	EntityChestBoat     EntityKind = "CHEST_BOAT"
	EntityMinecartChest EntityKind = "MINECART_CHEST"
)

// UpdateFlags mirror the host's block update propagation bits.
type UpdateFlags int

const (
	UpdateNeighbors UpdateFlags = 1 << iota
	UpdateClients

	UpdateAll = UpdateNeighbors | UpdateClients
)

type BlockPos struct {
	X int
	Y int
	Z int
}

// AABB is an axis-aligned box, inclusive on both ends.
type AABB struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

func (b AABB) Contains(p BlockPos) bool {
	return p.X >= b.MinX && p.X <= b.MaxX &&
		p.Y >= b.MinY && p.Y <= b.MaxY &&
		p.Z >= b.MinZ && p.Z <= b.MaxZ
}

type ItemStack struct {
	Item  string
	Count int
}

// EmptyStack is the explicit empty-slot sentinel.
var EmptyStack = ItemStack{}

func (s ItemStack) IsEmpty() bool { return s.Item == "" || s.Count <= 0 }
