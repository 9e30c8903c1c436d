// Package snapshot stores whole-server state as a zstd stream: one JSON
// header line followed by a gob body.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version       int    `json:"version"`
	Tick          uint64 `json:"tick"`
	Levels        int    `json:"levels"`
	Players       int    `json:"players"`
	PaletteDigest string `json:"palette_digest"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Tick uint64 `json:"tick"`
	// Server-wide day clock shared by every level.
	DayTime int64 `json:"day_time"`
	// Block palette names; chunk section data indexes into it.
	BlockPalette []string `json:"block_palette"`

	Levels  []LevelV1  `json:"levels"`
	Players []PlayerV1 `json:"players"`
}

type LevelV1 struct {
	ID            string     `json:"id"`
	NextEntityNum uint64     `json:"next_entity_num"`
	Chunks        []ChunkV1  `json:"chunks"`
	Entities      []EntityV1 `json:"entities"`
}

type ChunkV1 struct {
	CX         int           `json:"cx"`
	CZ         int           `json:"cz"`
	Sections   []SectionV1   `json:"sections"`
	Containers []ContainerV1 `json:"containers,omitempty"`
}

type SectionV1 struct {
	Y      int      `json:"y"`
	Blocks []uint16 `json:"blocks"` // 4096 entries, x fastest, then z, then y
}

type SlotV1 struct {
	Slot  int    `json:"slot"`
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type ContainerV1 struct {
	Type      string   `json:"type"`
	Pos       [3]int   `json:"pos"`
	SlotCount int      `json:"slot_count"`
	Slots     []SlotV1 `json:"slots,omitempty"`
}

type EntityV1 struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Pos         [3]int   `json:"pos"`
	Item        string   `json:"item,omitempty"`
	Count       int      `json:"count,omitempty"`
	CreatedTick uint64   `json:"created_tick"`
	ExpiresTick uint64   `json:"expires_tick,omitempty"`
	SlotCount   int      `json:"slot_count,omitempty"`
	Slots       []SlotV1 `json:"slots,omitempty"`
}

type PlayerV1 struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Level     string   `json:"level"`
	Pos       [3]int   `json:"pos"`
	Inventory []SlotV1 `json:"inventory,omitempty"`
}

func (s *SnapshotV1) Level(id string) (LevelV1, bool) {
	for _, l := range s.Levels {
		if l.ID == id {
			return l, true
		}
	}
	return LevelV1{}, false
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for tooling; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(line, &h)
	return h, err
}

func FileName(tick uint64) string { return fmt.Sprintf("%d.snap.zst", tick) }

// Latest returns the snapshot in dir with the highest tick, or "" if none.
func Latest(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	type cand struct {
		tick uint64
		name string
	}
	var cands []cand
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		cands = append(cands, cand{tick: tick, name: name})
	}
	if len(cands) == 0 {
		return "", nil
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].tick < cands[j].tick })
	return filepath.Join(dir, cands[len(cands)-1].name), nil
}
