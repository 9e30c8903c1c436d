package world

import "roguelite.ai/internal/sim/world/logic/mathx"

const (
	ChunkSize   = 16
	sectionSize = ChunkSize * ChunkSize * ChunkSize
)

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) ChunkKey() ChunkKey {
	return ChunkKey{CX: mathx.FloorDiv(v.X, ChunkSize), CZ: mathx.FloorDiv(v.Z, ChunkSize)}
}

func Manhattan(a, b Vec3i) int {
	return mathx.AbsInt(a.X-b.X) + mathx.AbsInt(a.Y-b.Y) + mathx.AbsInt(a.Z-b.Z)
}

// Box is an axis-aligned block box, inclusive on both ends.
type Box struct {
	Min Vec3i
	Max Vec3i
}

func (b Box) Contains(p Vec3i) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

func (s ItemStack) IsEmpty() bool { return s.Item == "" || s.Count <= 0 }

// BlockFlags control how a block change propagates.
type BlockFlags int

const (
	BlockUpdateNeighbors BlockFlags = 1 << iota
	BlockUpdateClients

	BlockUpdateAll = BlockUpdateNeighbors | BlockUpdateClients
)
