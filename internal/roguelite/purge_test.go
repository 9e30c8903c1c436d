package roguelite

import "testing"

func TestPurgeDroppedItems_AllLevels(t *testing.T) {
	over := newFakeLevel("overworld")
	nether := newFakeLevel("the_nether")
	end := newFakeLevel("the_end")
	over.spawnItem(BlockPos{X: 29999999, Y: 319, Z: -29999999}, 1)
	over.spawnItem(BlockPos{X: 0, Y: -64, Z: 0}, 2)
	nether.spawnItem(BlockPos{X: -100, Y: 40, Z: 7}, 5)
	boat := over.addEntity(EntityChestBoat, BlockPos{X: 3, Y: 62, Z: 3}, 2)

	srv := &fakeServer{levels: []*fakeLevel{over, nether, end}}
	rep := New(DefaultConfig()).PurgeDroppedItems(srv)

	if rep.Total != 3 {
		t.Fatalf("total=%d want 3", rep.Total)
	}
	want := map[string]int{"overworld": 2, "the_nether": 1, "the_end": 0}
	for _, lc := range rep.PerLevel {
		if want[lc.Level] != lc.Items {
			t.Fatalf("level %s: %d want %d", lc.Level, lc.Items, want[lc.Level])
		}
	}
	for _, l := range srv.levels {
		if n := l.count(EntityItem); n != 0 {
			t.Fatalf("level %s still has %d items", l.id, n)
		}
	}
	if over.count(EntityChestBoat) != 1 || boat.items != 2 {
		t.Fatalf("dropped-item purge must not touch vehicles")
	}
}

func TestPurgeStorage_ChestAndFurnaceDoNotSpill(t *testing.T) {
	lvl := newFakeLevel("overworld")
	chestPos := BlockPos{X: 4, Y: 70, Z: 4}
	furnacePos := BlockPos{X: 5, Y: 70, Z: 4}
	barrelPos := BlockPos{X: 6, Y: 70, Z: 4}
	lvl.addChunk(true,
		&fakeBlockEntity{kind: BlockEntityChest, pos: chestPos, items: 5},
		&fakeBlockEntity{kind: BlockEntityFurnace, pos: furnacePos, items: 2},
		&fakeBlockEntity{kind: "BARREL", pos: barrelPos, items: 9},
	)
	before := lvl.count(EntityItem)

	srv := &fakeServer{levels: []*fakeLevel{lvl}}
	rep := New(DefaultConfig()).PurgeStorage(srv)

	if rep.Total.Chests != 1 || rep.Total.Furnaces != 1 {
		t.Fatalf("unexpected totals: %+v", rep.Total)
	}
	for _, pos := range []BlockPos{chestPos, furnacePos} {
		if lvl.blocks[pos] != nil {
			t.Fatalf("container at %+v still present", pos)
		}
		if flags, ok := lvl.airSet[pos]; !ok || flags != UpdateAll {
			t.Fatalf("position %+v not set to air with UpdateAll (flags=%v ok=%v)", pos, flags, ok)
		}
	}
	if lvl.blocks[barrelPos] == nil {
		t.Fatalf("non chest/furnace block entities must be ignored")
	}
	if got := lvl.count(EntityItem) - before; got != 0 {
		t.Fatalf("purge spilled %d item entities", got)
	}
}

func TestPurgeStorage_SkipsNonTickingChunks(t *testing.T) {
	lvl := newFakeLevel("overworld")
	lvl.addChunk(false, &fakeBlockEntity{kind: BlockEntityChest, pos: BlockPos{X: 500, Y: 64, Z: 500}, items: 3})
	lvl.addChunk(true, &fakeBlockEntity{kind: BlockEntityChest, pos: BlockPos{X: 1, Y: 64, Z: 1}})

	rep := New(DefaultConfig()).PurgeStorage(&fakeServer{levels: []*fakeLevel{lvl}})
	if rep.Total.Chests != 1 {
		t.Fatalf("chests=%d want 1", rep.Total.Chests)
	}
	if lvl.blocks[BlockPos{X: 500, Y: 64, Z: 500}] == nil {
		t.Fatalf("chest in a non-ticking chunk must survive")
	}
}

func TestPurgeStorage_VehiclesDrainedThenDiscarded(t *testing.T) {
	lvl := newFakeLevel("overworld")
	lvl.addEntity(EntityChestBoat, BlockPos{X: 10, Y: 62, Z: 10}, 27)
	lvl.addEntity(EntityChestBoat, BlockPos{X: -10, Y: 62, Z: 10}, 0)
	lvl.addEntity(EntityMinecartChest, BlockPos{X: 0, Y: 12, Z: 0}, 8)
	lvl.addEntity("BOAT", BlockPos{X: 1, Y: 62, Z: 1}, 0)

	rep := New(DefaultConfig()).PurgeStorage(&fakeServer{levels: []*fakeLevel{lvl}})
	if rep.Total.ChestBoats != 2 || rep.Total.MinecartChests != 1 {
		t.Fatalf("unexpected totals: %+v", rep.Total)
	}
	if lvl.count(EntityChestBoat) != 0 || lvl.count(EntityMinecartChest) != 0 {
		t.Fatalf("storage vehicles remain")
	}
	if lvl.count("BOAT") != 1 {
		t.Fatalf("plain boat must survive")
	}
	if lvl.count(EntityItem) != 0 {
		t.Fatalf("vehicle contents were spilled")
	}
}

func TestPurgeStorage_PerLevelCounts(t *testing.T) {
	a := newFakeLevel("a")
	b := newFakeLevel("b")
	a.addChunk(true, &fakeBlockEntity{kind: BlockEntityFurnace, pos: BlockPos{X: 1}})
	b.addChunk(true,
		&fakeBlockEntity{kind: BlockEntityChest, pos: BlockPos{X: 1}},
		&fakeBlockEntity{kind: BlockEntityChest, pos: BlockPos{X: 2}},
	)
	b.addEntity(EntityMinecartChest, BlockPos{}, 1)

	rep := New(DefaultConfig()).PurgeStorage(&fakeServer{levels: []*fakeLevel{a, b}})
	if len(rep.PerLevel) != 2 {
		t.Fatalf("per-level entries=%d", len(rep.PerLevel))
	}
	if rep.PerLevel[0] != (StorageCounts{Level: "a", Furnaces: 1}) {
		t.Fatalf("level a: %+v", rep.PerLevel[0])
	}
	if rep.PerLevel[1] != (StorageCounts{Level: "b", Chests: 2, MinecartChests: 1}) {
		t.Fatalf("level b: %+v", rep.PerLevel[1])
	}
	if rep.Total.Chests != 2 || rep.Total.Furnaces != 1 || rep.Total.MinecartChests != 1 {
		t.Fatalf("totals: %+v", rep.Total)
	}
}
