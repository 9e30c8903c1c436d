package world

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"log/slog"
	"sort"

	"roguelite.ai/internal/persistence/snapshot"
	"roguelite.ai/internal/sim/world/logic/mathx"
)

type ChunkKey struct {
	CX int
	CZ int
}

func (k ChunkKey) Less(o ChunkKey) bool {
	if k.CX != o.CX {
		return k.CX < o.CX
	}
	return k.CZ < o.CZ
}

// Chunk is a 16-wide column from MinY to MaxY. Blocks are stored in 16-tall
// sections; a missing section is all air.
type Chunk struct {
	Key  ChunkKey
	MinY int
	MaxY int

	sections map[int]*[sectionSize]uint16

	// Block entities keyed by world position.
	containers map[Vec3i]*Container

	dirty bool
	hash  [32]byte
}

func newChunk(key ChunkKey, minY, maxY int) *Chunk {
	return &Chunk{
		Key:        key,
		MinY:       minY,
		MaxY:       maxY,
		sections:   map[int]*[sectionSize]uint16{},
		containers: map[Vec3i]*Container{},
	}
}

func sectionIndex(lx, y, lz int) (sec int, i int) {
	sec = mathx.FloorDiv(y, ChunkSize)
	ly := mathx.Mod(y, ChunkSize)
	// x fastest, then z, then y
	return sec, lx + lz*ChunkSize + ly*ChunkSize*ChunkSize
}

func (c *Chunk) inHeight(y int) bool { return y >= c.MinY && y <= c.MaxY }

func (c *Chunk) Get(lx, y, lz int) uint16 {
	if !c.inHeight(y) {
		return 0
	}
	sec, i := sectionIndex(lx, y, lz)
	s := c.sections[sec]
	if s == nil {
		return 0
	}
	return s[i]
}

func (c *Chunk) Set(lx, y, lz int, b uint16) {
	if !c.inHeight(y) {
		return
	}
	sec, i := sectionIndex(lx, y, lz)
	s := c.sections[sec]
	if s == nil {
		if b == 0 {
			return
		}
		s = new([sectionSize]uint16)
		c.sections[sec] = s
	}
	if s[i] == b {
		return
	}
	s[i] = b
	c.dirty = true
}

// BlockEntities returns the chunk's containers ordered by position.
func (c *Chunk) BlockEntities() []*Container {
	out := make([]*Container, 0, len(c.containers))
	for _, ct := range c.containers {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return posLess(out[i].Pos, out[j].Pos) })
	return out
}

func (c *Chunk) sectionKeys() []int {
	keys := make([]int, 0, len(c.sections))
	for k := range c.sections {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [8]byte
		for _, k := range c.sectionKeys() {
			binary.LittleEndian.PutUint64(tmp[:], uint64(int64(k)))
			h.Write(tmp[:])
			for _, v := range c.sections[k] {
				binary.LittleEndian.PutUint16(tmp[:2], v)
				h.Write(tmp[:2])
			}
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// ChunkHolder tracks a resident chunk and whether it is inside the ticking
// radius of some player or the spawn area. Border chunks are resident but do
// not tick.
type ChunkHolder struct {
	Key     ChunkKey
	chunk   *Chunk
	ticking bool
}

func (h *ChunkHolder) Chunk() *Chunk   { return h.chunk }
func (h *ChunkHolder) IsTicking() bool { return h.ticking }

// TickingChunk returns the chunk only while it is fully loaded and ticking.
func (h *ChunkHolder) TickingChunk() *Chunk {
	if !h.ticking {
		return nil
	}
	return h.chunk
}

// ChunkPersister keeps chunks that leave residency. Implemented by
// internal/persistence/region.
type ChunkPersister interface {
	SaveChunk(level string, c snapshot.ChunkV1) error
	LoadChunk(level string, cx, cz int) (snapshot.ChunkV1, bool, error)
}

type ChunkStore struct {
	level string
	gen   WorldGen
	minY  int
	maxY  int
	log   *slog.Logger

	persist ChunkPersister

	// Accessed only from the server loop goroutine. Other packages reach the
	// resident set through ChunkMapAccessor.
	visible map[ChunkKey]*ChunkHolder
	// Unloaded chunks not (yet) handed to the persister.
	saved map[ChunkKey]*Chunk

	persistErrors int
}

func NewChunkStore(level string, gen WorldGen, minY, maxY int) *ChunkStore {
	return &ChunkStore{
		level:   level,
		gen:     gen,
		minY:    minY,
		maxY:    maxY,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		visible: map[ChunkKey]*ChunkHolder{},
		saved:   map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) PersistErrors() int { return s.persistErrors }

// LoadChunk makes a chunk resident, restoring saved data or generating it.
// An already-resident chunk only has its ticking state updated.
func (s *ChunkStore) LoadChunk(k ChunkKey, ticking bool) *ChunkHolder {
	if h, ok := s.visible[k]; ok {
		h.ticking = ticking
		return h
	}
	ch, ok := s.saved[k]
	if ok {
		delete(s.saved, k)
	} else if ch = s.loadPersisted(k); ch == nil {
		ch = newChunk(k, s.minY, s.maxY)
		s.generateChunk(ch)
	}
	h := &ChunkHolder{Key: k, chunk: ch, ticking: ticking}
	s.visible[k] = h
	return h
}

func (s *ChunkStore) UnloadChunk(k ChunkKey) bool {
	h, ok := s.visible[k]
	if !ok {
		return false
	}
	delete(s.visible, k)
	if s.persist != nil {
		err := s.persist.SaveChunk(s.level, h.chunk.export())
		if err == nil {
			return true
		}
		s.persistErrors++
		s.log.Error("chunk save failed", "cx", k.CX, "cz", k.CZ, "error", err)
	}
	s.saved[k] = h.chunk
	return true
}

func (s *ChunkStore) loadPersisted(k ChunkKey) *Chunk {
	if s.persist == nil {
		return nil
	}
	v, ok, err := s.persist.LoadChunk(s.level, k.CX, k.CZ)
	if err != nil {
		// Regenerating loses edits; keep going but make it loud.
		s.persistErrors++
		s.log.Error("chunk load failed, regenerating", "cx", k.CX, "cz", k.CZ, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return chunkFromV1(v, s.minY, s.maxY)
}

func (s *ChunkStore) Holder(k ChunkKey) (*ChunkHolder, bool) {
	h, ok := s.visible[k]
	return h, ok
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.visible))
	for k := range s.visible {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (s *ChunkStore) ResidentCount() int { return len(s.visible) }

func (s *ChunkStore) TickingChunkCount() int {
	n := 0
	for _, h := range s.visible {
		if h.ticking {
			n++
		}
	}
	return n
}

// chunkFor returns the resident chunk for pos, loading it (not ticking) on
// demand. Residency drops it again on the next tick if nobody is near.
func (s *ChunkStore) chunkFor(pos Vec3i) (*Chunk, int, int) {
	k := pos.ChunkKey()
	h, ok := s.visible[k]
	if !ok {
		h = s.LoadChunk(k, false)
	}
	return h.chunk, mathx.Mod(pos.X, ChunkSize), mathx.Mod(pos.Z, ChunkSize)
}

func (s *ChunkStore) inHeight(y int) bool { return y >= s.minY && y <= s.maxY }

func (s *ChunkStore) GetBlock(pos Vec3i) uint16 {
	if !s.inHeight(pos.Y) {
		return s.gen.Air
	}
	ch, lx, lz := s.chunkFor(pos)
	return ch.Get(lx, pos.Y, lz)
}

func (s *ChunkStore) SetBlock(pos Vec3i, b uint16) {
	if !s.inHeight(pos.Y) {
		return
	}
	ch, lx, lz := s.chunkFor(pos)
	ch.Set(lx, pos.Y, lz, b)
}

func (s *ChunkStore) containerAt(pos Vec3i) *Container {
	h, ok := s.visible[pos.ChunkKey()]
	if !ok {
		return nil
	}
	return h.chunk.containers[pos]
}

// allChunks iterates resident and saved chunks in key order.
func (s *ChunkStore) allChunks() []*Chunk {
	out := make([]*Chunk, 0, len(s.visible)+len(s.saved))
	for _, h := range s.visible {
		out = append(out, h.chunk)
	}
	for _, c := range s.saved {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

func posLess(a, b Vec3i) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}
