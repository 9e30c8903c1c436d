// Package region stores unloaded chunks in Anvil-style region files: one
// r.X.Z.mca per 32x32 chunks, each chunk an NBT compound compressed with
// zlib. Sections carry their own name palette so files survive block
// catalog reordering.
package region

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Tnze/go-mc/nbt"
	mcregion "github.com/Tnze/go-mc/save/region"
	"github.com/klauspost/compress/zlib"

	"roguelite.ai/internal/persistence/snapshot"
	"roguelite.ai/internal/sim/world/logic/mathx"
)

const (
	regionChunks = 32
	// Compression byte preceding every sector payload.
	compressionZlib = 2
	dataVersion     = 1
	maxOpenRegions  = 64
)

type chunkNBT struct {
	DataVersion   int32            `nbt:"DataVersion"`
	XPos          int32            `nbt:"xPos"`
	ZPos          int32            `nbt:"zPos"`
	Sections      []sectionNBT     `nbt:"sections"`
	BlockEntities []blockEntityNBT `nbt:"block_entities"`
}

type sectionNBT struct {
	Y       int32    `nbt:"Y"`
	Palette []string `nbt:"palette"`
	Data    []int32  `nbt:"data"`
}

type blockEntityNBT struct {
	ID    string    `nbt:"id"`
	X     int32     `nbt:"x"`
	Y     int32     `nbt:"y"`
	Z     int32     `nbt:"z"`
	Size  int32     `nbt:"size"`
	Items []slotNBT `nbt:"Items"`
}

type slotNBT struct {
	Slot  int32  `nbt:"Slot"`
	ID    string `nbt:"id"`
	Count int32  `nbt:"Count"`
}

// Store implements world.ChunkPersister on a directory tree laid out as
// <root>/<level>/region/r.X.Z.mca.
type Store struct {
	root    string
	palette []string
	index   map[string]uint16

	mu   sync.Mutex
	open map[string]*mcregion.Region
}

// New returns a store for the given block palette (block id -> name).
func New(root string, palette []string) (*Store, error) {
	if root == "" {
		return nil, errors.New("region: empty root")
	}
	if len(palette) == 0 {
		return nil, errors.New("region: empty block palette")
	}
	idx := make(map[string]uint16, len(palette))
	for i, name := range palette {
		idx[name] = uint16(i)
	}
	return &Store{root: root, palette: palette, index: idx, open: map[string]*mcregion.Region{}}, nil
}

// FileName names the region file holding chunk (cx, cz).
func FileName(cx, cz int) string {
	return fmt.Sprintf("r.%d.%d.mca", mathx.FloorDiv(cx, regionChunks), mathx.FloorDiv(cz, regionChunks))
}

func (s *Store) path(level string, cx, cz int) string {
	return filepath.Join(s.root, level, "region", FileName(cx, cz))
}

// region returns the open region file, creating it when create is set.
// A nil region with nil error means the file does not exist.
func (s *Store) region(path string, create bool) (*mcregion.Region, error) {
	if r := s.open[path]; r != nil {
		return r, nil
	}
	if len(s.open) >= maxOpenRegions {
		if err := s.closeAll(); err != nil {
			return nil, err
		}
	}
	r, err := mcregion.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		if !create {
			return nil, nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		r, err = mcregion.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.open[path] = r
	return r, nil
}

func (s *Store) SaveChunk(level string, c snapshot.ChunkV1) error {
	doc, err := s.encode(c)
	if err != nil {
		return err
	}
	raw, err := nbt.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal chunk %d,%d: %w", c.CX, c.CZ, err)
	}
	var buf bytes.Buffer
	buf.WriteByte(compressionZlib)
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.region(s.path(level, c.CX, c.CZ), true)
	if err != nil {
		return err
	}
	return r.WriteSector(mathx.Mod(c.CX, regionChunks), mathx.Mod(c.CZ, regionChunks), buf.Bytes())
}

func (s *Store) LoadChunk(level string, cx, cz int) (snapshot.ChunkV1, bool, error) {
	s.mu.Lock()
	r, err := s.region(s.path(level, cx, cz), false)
	if err != nil || r == nil {
		s.mu.Unlock()
		return snapshot.ChunkV1{}, false, err
	}
	lx, lz := mathx.Mod(cx, regionChunks), mathx.Mod(cz, regionChunks)
	if !r.ExistSector(lx, lz) {
		s.mu.Unlock()
		return snapshot.ChunkV1{}, false, nil
	}
	data, err := r.ReadSector(lx, lz)
	s.mu.Unlock()
	if err != nil {
		return snapshot.ChunkV1{}, false, fmt.Errorf("read chunk %d,%d: %w", cx, cz, err)
	}

	raw, err := decompress(data)
	if err != nil {
		return snapshot.ChunkV1{}, false, fmt.Errorf("chunk %d,%d: %w", cx, cz, err)
	}
	var doc chunkNBT
	if err := nbt.Unmarshal(raw, &doc); err != nil {
		return snapshot.ChunkV1{}, false, fmt.Errorf("unmarshal chunk %d,%d: %w", cx, cz, err)
	}
	if int(doc.XPos) != cx || int(doc.ZPos) != cz {
		return snapshot.ChunkV1{}, false, fmt.Errorf("chunk %d,%d: sector holds %d,%d", cx, cz, doc.XPos, doc.ZPos)
	}
	c, err := s.decode(doc)
	if err != nil {
		return snapshot.ChunkV1{}, false, err
	}
	return c, true, nil
}

// Close flushes and closes every open region file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeAll()
}

func (s *Store) closeAll() error {
	var errs []error
	for p, r := range s.open {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p, err))
		}
		delete(s.open, p)
	}
	return errors.Join(errs...)
}

func decompress(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, errors.New("sector too short")
	}
	if data[0] != compressionZlib {
		return nil, fmt.Errorf("unsupported compression %d", data[0])
	}
	zr, err := zlib.NewReader(bytes.NewReader(data[1:]))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func (s *Store) encode(c snapshot.ChunkV1) (chunkNBT, error) {
	doc := chunkNBT{DataVersion: dataVersion, XPos: int32(c.CX), ZPos: int32(c.CZ)}
	for _, sec := range c.Sections {
		local := map[uint16]int32{}
		out := sectionNBT{Y: int32(sec.Y), Data: make([]int32, len(sec.Blocks))}
		for i, b := range sec.Blocks {
			li, ok := local[b]
			if !ok {
				if int(b) >= len(s.palette) {
					return chunkNBT{}, fmt.Errorf("chunk %d,%d: block id %d outside palette", c.CX, c.CZ, b)
				}
				li = int32(len(out.Palette))
				local[b] = li
				out.Palette = append(out.Palette, s.palette[b])
			}
			out.Data[i] = li
		}
		doc.Sections = append(doc.Sections, out)
	}
	for _, ct := range c.Containers {
		be := blockEntityNBT{
			ID: ct.Type,
			X:  int32(ct.Pos[0]), Y: int32(ct.Pos[1]), Z: int32(ct.Pos[2]),
			Size: int32(ct.SlotCount),
		}
		for _, sl := range ct.Slots {
			be.Items = append(be.Items, slotNBT{Slot: int32(sl.Slot), ID: sl.Item, Count: int32(sl.Count)})
		}
		doc.BlockEntities = append(doc.BlockEntities, be)
	}
	return doc, nil
}

func (s *Store) decode(doc chunkNBT) (snapshot.ChunkV1, error) {
	c := snapshot.ChunkV1{CX: int(doc.XPos), CZ: int(doc.ZPos)}
	for _, sec := range doc.Sections {
		ids := make([]uint16, len(sec.Palette))
		for i, name := range sec.Palette {
			id, ok := s.index[name]
			if !ok {
				return snapshot.ChunkV1{}, fmt.Errorf("chunk %d,%d: unknown block %q", c.CX, c.CZ, name)
			}
			ids[i] = id
		}
		blocks := make([]uint16, len(sec.Data))
		for i, li := range sec.Data {
			if li < 0 || int(li) >= len(ids) {
				return snapshot.ChunkV1{}, fmt.Errorf("chunk %d,%d: palette index %d out of range", c.CX, c.CZ, li)
			}
			blocks[i] = ids[li]
		}
		c.Sections = append(c.Sections, snapshot.SectionV1{Y: int(sec.Y), Blocks: blocks})
	}
	for _, be := range doc.BlockEntities {
		ct := snapshot.ContainerV1{
			Type:      be.ID,
			Pos:       [3]int{int(be.X), int(be.Y), int(be.Z)},
			SlotCount: int(be.Size),
		}
		for _, it := range be.Items {
			ct.Slots = append(ct.Slots, snapshot.SlotV1{Slot: int(it.Slot), Item: it.ID, Count: int(it.Count)})
		}
		c.Containers = append(c.Containers, ct)
	}
	return c, nil
}
