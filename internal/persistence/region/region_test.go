package region

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"roguelite.ai/internal/persistence/snapshot"
)

var palette = []string{"AIR", "STONE", "DIRT", "CHEST"}

func testChunk(cx, cz int) snapshot.ChunkV1 {
	blocks := make([]uint16, 4096)
	for i := range blocks {
		switch {
		case i < 256:
			blocks[i] = 1
		case i < 512:
			blocks[i] = 2
		}
	}
	blocks[600] = 3
	return snapshot.ChunkV1{
		CX: cx, CZ: cz,
		Sections: []snapshot.SectionV1{{Y: -1, Blocks: blocks}},
		Containers: []snapshot.ContainerV1{{
			Type: "CHEST", Pos: [3]int{cx*16 + 8, -14, cz*16 + 2}, SlotCount: 27,
			Slots: []snapshot.SlotV1{{Slot: 0, Item: "APPLE", Count: 4}, {Slot: 26, Item: "COAL", Count: 64}},
		}},
	}
}

func newStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := New(dir, palette)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func TestFileName(t *testing.T) {
	cases := map[[2]int]string{
		{0, 0}:    "r.0.0.mca",
		{31, 31}:  "r.0.0.mca",
		{32, -1}:  "r.1.-1.mca",
		{-33, 64}: "r.-2.2.mca",
	}
	for in, want := range cases {
		if got := FileName(in[0], in[1]); got != want {
			t.Fatalf("FileName(%d,%d)=%s want %s", in[0], in[1], got, want)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir)
	for _, k := range [][2]int{{0, 0}, {-1, 5}, {40, -70}} {
		if err := s.SaveChunk("overworld", testChunk(k[0], k[1])); err != nil {
			t.Fatalf("save %v: %v", k, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s = newStore(t, dir)
	defer s.Close()
	for _, k := range [][2]int{{0, 0}, {-1, 5}, {40, -70}} {
		got, ok, err := s.LoadChunk("overworld", k[0], k[1])
		if err != nil || !ok {
			t.Fatalf("load %v: ok=%v err=%v", k, ok, err)
		}
		if want := testChunk(k[0], k[1]); !reflect.DeepEqual(got, want) {
			t.Fatalf("chunk %v mismatch:\n got %+v\nwant %+v", k, got.Containers, want.Containers)
		}
	}
	for _, name := range []string{"r.0.0.mca", "r.-1.0.mca", "r.1.-3.mca"} {
		if _, err := os.Stat(filepath.Join(dir, "overworld", "region", name)); err != nil {
			t.Fatalf("expected region file %s: %v", name, err)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	s := newStore(t, t.TempDir())
	defer s.Close()
	if _, ok, err := s.LoadChunk("the_end", 3, 3); ok || err != nil {
		t.Fatalf("missing file: ok=%v err=%v", ok, err)
	}
	if err := s.SaveChunk("the_end", testChunk(0, 0)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, err := s.LoadChunk("the_end", 1, 0); ok || err != nil {
		t.Fatalf("missing sector: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.LoadChunk("overworld", 0, 0); ok {
		t.Fatalf("levels must not share region files")
	}
}

func TestOverwriteChunk(t *testing.T) {
	s := newStore(t, t.TempDir())
	defer s.Close()
	c := testChunk(2, 2)
	if err := s.SaveChunk("overworld", c); err != nil {
		t.Fatalf("save: %v", err)
	}
	c.Containers = nil
	c.Sections[0].Blocks[600] = 0
	if err := s.SaveChunk("overworld", c); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, ok, err := s.LoadChunk("overworld", 2, 2)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(got.Containers) != 0 || got.Sections[0].Blocks[600] != 0 {
		t.Fatalf("stale chunk returned: %+v", got.Containers)
	}
}

func TestPaletteByName(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir)
	if err := s.SaveChunk("overworld", testChunk(0, 0)); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	// Same names, different ids.
	s2, err := New(dir, []string{"CHEST", "DIRT", "STONE", "AIR"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s2.Close()
	got, ok, err := s2.LoadChunk("overworld", 0, 0)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	b := got.Sections[0].Blocks
	if b[0] != 2 || b[300] != 1 || b[600] != 0 || b[4000] != 3 {
		t.Fatalf("remap failed: %d %d %d %d", b[0], b[300], b[600], b[4000])
	}

	s3, err := New(dir, []string{"AIR", "STONE"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s3.Close()
	if _, _, err := s3.LoadChunk("overworld", 0, 0); err == nil {
		t.Fatalf("expected error for blocks missing from palette")
	}
}

func TestSaveRejectsOutOfPalette(t *testing.T) {
	s := newStore(t, t.TempDir())
	defer s.Close()
	c := testChunk(0, 0)
	c.Sections[0].Blocks[0] = 99
	if err := s.SaveChunk("overworld", c); err == nil {
		t.Fatalf("expected error")
	}
}
