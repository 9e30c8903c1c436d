package hostadapter

import (
	"encoding/json"
	"strings"
	"testing"

	"roguelite.ai/internal/protocol"
	"roguelite.ai/internal/roguelite"
	"roguelite.ai/internal/sim/catalogs"
	"roguelite.ai/internal/sim/multiworld"
	"roguelite.ai/internal/sim/tuning"
	"roguelite.ai/internal/sim/world"
)

type cycleLog struct{ cycles []roguelite.Cycle }

func (c *cycleLog) RecordCycle(cy roguelite.Cycle) { c.cycles = append(c.cycles, cy) }

type fixture struct {
	srv    *multiworld.Server
	over   *world.World
	nether *world.World
	player *world.Player
	out    chan []byte
	log    *cycleLog
}

func newFixture(t *testing.T, purgeStorage bool) *fixture {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	cfg, err := multiworld.Load("../../../configs/worlds.yaml")
	if err != nil {
		t.Fatalf("load worlds: %v", err)
	}
	tun := tuning.Defaults()
	tun.ViewRadiusChunks = 1
	tun.SpawnRadiusChunks = 0
	tun.StarterItems = map[string]int{}
	srv, err := multiworld.NewServer(cfg, cats, multiworld.Options{Tuning: tun, Seed: 11})
	if err != nil {
		t.Fatalf("server: %v", err)
	}

	f := &fixture{srv: srv, out: make(chan []byte, 32), log: &cycleLog{}}
	resp := make(chan multiworld.JoinResponse, 1)
	srv.StepOnce([]multiworld.JoinRequest{{Name: "steve", Out: f.out, Resp: resp}}, nil, nil)
	if r := <-resp; r.Code != "" {
		t.Fatalf("join: %s %s", r.Code, r.Message)
	}
	f.over = srv.Level("overworld")
	f.nether = srv.Level("the_nether")
	f.player = srv.PlayerByName("steve")
	if f.over == nil || f.nether == nil || f.player == nil {
		t.Fatalf("fixture incomplete")
	}

	rcfg := roguelite.DefaultConfig()
	rcfg.PurgeStorage = purgeStorage
	// The clock starts inside day 0's morning window.
	m := roguelite.NewResetMarker()
	m.Mark(0)
	Install(srv, roguelite.New(rcfg, roguelite.WithMarker(m), roguelite.WithCycleSink(f.log)))
	return f
}

func (f *fixture) chest(t *testing.T, w *world.World, pos world.Vec3i, block, item string, count int) {
	t.Helper()
	if err := w.PlaceBlock("test", pos, block); err != nil {
		t.Fatalf("place %s: %v", block, err)
	}
	ct := w.BlockEntityAt(pos)
	if ct == nil {
		t.Fatalf("no container at %v", pos)
	}
	if left := ct.Add(item, count, 64); left != 0 {
		t.Fatalf("container full: %d left", left)
	}
}

// morning jumps every clock so the next step lands on tick 0 of day.
func (f *fixture) morning(day int64) {
	f.srv.SetTime("test", day*roguelite.DefaultDayTicks-1)
	f.srv.StepOnce(nil, nil, nil)
}

func drainNotices(out chan []byte) []protocol.NoticeMsg {
	var ns []protocol.NoticeMsg
	for {
		select {
		case b := <-out:
			var n protocol.NoticeMsg
			if err := json.Unmarshal(b, &n); err == nil && n.Type == protocol.TypeNotice {
				ns = append(ns, n)
			}
		default:
			return ns
		}
	}
}

func TestDailyReset_FullPurge(t *testing.T) {
	f := newFixture(t, true)
	inv := &f.player.Inventory
	inv.SetItem(0, world.ItemStack{Item: "IRON_SWORD", Count: 1})
	inv.SetItem(8, world.ItemStack{Item: "BREAD", Count: 5})
	inv.SetItem(9, world.ItemStack{Item: "COBBLESTONE", Count: 64})
	inv.SetItem(35, world.ItemStack{Item: "COAL", Count: 3})
	inv.SetItem(world.ArmorHeadSlot, world.ItemStack{Item: "IRON_HELMET", Count: 1})
	inv.SetItem(world.OffhandSlot, world.ItemStack{Item: "SHIELD", Count: 1})

	chestPos := world.Vec3i{X: 3, Y: 80, Z: 3}
	furnacePos := world.Vec3i{X: 5, Y: 80, Z: 3}
	borderPos := world.Vec3i{X: 40, Y: 80, Z: 3}
	farPos := world.Vec3i{X: 1000, Y: 80, Z: 1000}
	netherPos := world.Vec3i{X: 2, Y: 100, Z: 2}
	f.chest(t, f.over, chestPos, "CHEST", "COBBLESTONE", 5)
	f.chest(t, f.over, furnacePos, "FURNACE", "COAL", 2)
	f.chest(t, f.over, borderPos, "CHEST", "DIRT", 7)
	f.chest(t, f.over, farPos, "CHEST", "APPLE", 4)
	f.chest(t, f.nether, netherPos, "FURNACE", "RAW_IRON", 1)

	f.over.SpawnItem("test", world.Vec3i{X: 1, Y: 70, Z: 1}, "STICK", 3, "DROP")
	f.over.SpawnItem("test", world.Vec3i{X: 5000, Y: 70, Z: -5000}, "STONE", 1, "DROP")
	f.nether.SpawnItem("test", world.Vec3i{X: 0, Y: 40, Z: 0}, "COAL", 1, "DROP")

	boat, err := f.over.SpawnVehicle("test", "CHEST_BOAT", world.Vec3i{X: 2, Y: 63, Z: 2})
	if err != nil {
		t.Fatalf("spawn boat: %v", err)
	}
	boat.Add("BREAD", 3, 64)
	cart, err := f.over.SpawnVehicle("test", "MINECART_CHEST", world.Vec3i{X: 900, Y: 70, Z: 900})
	if err != nil {
		t.Fatalf("spawn cart: %v", err)
	}
	cart.Add("IRON_INGOT", 2, 64)
	plain, err := f.over.SpawnVehicle("test", "BOAT", world.Vec3i{X: 4, Y: 63, Z: 4})
	if err != nil {
		t.Fatalf("spawn plain boat: %v", err)
	}

	// Residency settles: the far chunk unloads, the border chunk stays non-ticking.
	f.srv.StepOnce(nil, nil, nil)
	if h, ok := f.over.Chunks().Holder(borderPos.ChunkKey()); !ok || h.IsTicking() {
		t.Fatalf("border chunk should be resident and not ticking")
	}
	if _, ok := f.over.Chunks().Holder(farPos.ChunkKey()); ok {
		t.Fatalf("far chunk should be unloaded")
	}
	if len(f.log.cycles) != 0 {
		t.Fatalf("reset fired before morning: %+v", f.log.cycles)
	}
	drainNotices(f.out)

	f.morning(5)
	if len(f.log.cycles) != 1 {
		t.Fatalf("cycles=%d want 1", len(f.log.cycles))
	}
	c := f.log.cycles[0]
	if c.Day != 5 || c.TimeOfDay != 0 || c.Player != "steve" {
		t.Fatalf("cycle: %+v", c)
	}

	if got := inv.Item(0); got.Item != "IRON_SWORD" {
		t.Fatalf("hotbar slot 0 lost: %+v", got)
	}
	if got := inv.Item(8); got.Count != 5 {
		t.Fatalf("hotbar slot 8 lost: %+v", got)
	}
	for _, slot := range []int{9, 35, world.ArmorHeadSlot, world.OffhandSlot} {
		if !inv.Item(slot).IsEmpty() {
			t.Fatalf("slot %d not cleared: %+v", slot, inv.Item(slot))
		}
	}
	if c.Inventory.Cleared != 4 {
		t.Fatalf("cleared=%d want 4", c.Inventory.Cleared)
	}

	for _, pos := range []world.Vec3i{chestPos, furnacePos} {
		if name := f.over.BlockName(pos); name != "AIR" {
			t.Fatalf("%v is %s, want AIR", pos, name)
		}
	}
	if name := f.nether.BlockName(netherPos); name != "AIR" {
		t.Fatalf("nether furnace survived: %s", name)
	}
	for _, w := range f.srv.Levels() {
		if n := w.EntityCount(world.EntityItem); n != 0 {
			t.Fatalf("%s still has %d item entities", w.ID(), n)
		}
	}
	if f.over.Entity(boat.EntityID) != nil || f.over.Entity(cart.EntityID) != nil {
		t.Fatalf("storage vehicles survived")
	}
	if f.over.Entity(plain.EntityID) == nil {
		t.Fatalf("plain boat removed")
	}

	if ct := f.over.BlockEntityAt(borderPos); ct == nil || ct.ItemCount() != 7 {
		t.Fatalf("non-ticking chest changed: %+v", ct)
	}
	if name := f.over.BlockName(farPos); name != "CHEST" {
		t.Fatalf("unloaded chest purged: %s", name)
	}
	if ct := f.over.BlockEntityAt(farPos); ct == nil || ct.ItemCount() != 4 {
		t.Fatalf("unloaded chest contents changed: %+v", ct)
	}

	tot := c.Storage.Total
	if tot.Chests != 1 || tot.Furnaces != 2 || tot.ChestBoats != 1 || tot.MinecartChests != 1 {
		t.Fatalf("storage totals: %+v", tot)
	}
	if c.Items.Total != 3 {
		t.Fatalf("items total=%d want 3", c.Items.Total)
	}

	ns := drainNotices(f.out)
	if len(ns) != 1 || !strings.HasPrefix(ns[0].Text, "A new day.") || ns[0].Message.Color != "gold" {
		t.Fatalf("notices: %+v", ns)
	}
	if ns[0].PlayerID != f.player.ID {
		t.Fatalf("notice addressed to %q", ns[0].PlayerID)
	}
}

func TestDailyReset_OncePerDay(t *testing.T) {
	f := newFixture(t, true)
	f.morning(3)
	for i := 0; i < 120; i++ {
		f.srv.StepOnce(nil, nil, nil)
	}
	if len(f.log.cycles) != 1 {
		t.Fatalf("cycles=%d want 1 after a full morning window", len(f.log.cycles))
	}
	f.morning(4)
	if len(f.log.cycles) != 2 || f.log.cycles[1].Day != 4 {
		t.Fatalf("next day did not reset: %+v", f.log.cycles)
	}
}

func TestDailyReset_PlayersInTwoDimensionsShareOneDay(t *testing.T) {
	f := newFixture(t, true)
	resp := make(chan multiworld.JoinResponse, 1)
	alexOut := make(chan []byte, 32)
	f.srv.StepOnce([]multiworld.JoinRequest{{Name: "alex", WorldPreference: "the_nether", Out: alexOut, Resp: resp}}, nil, nil)
	if r := <-resp; r.Code != "" || r.Welcome.CurrentWorldID != "the_nether" {
		t.Fatalf("join alex: %+v", r)
	}

	f.morning(1)
	for i := 0; i < 50; i++ {
		f.srv.StepOnce(nil, nil, nil)
	}
	if f.nether.DayTime() != f.over.DayTime() {
		t.Fatalf("dimension clocks diverged: nether=%d overworld=%d", f.nether.DayTime(), f.over.DayTime())
	}
	if len(f.log.cycles) != 1 {
		t.Fatalf("cycles=%d want 1: %+v", len(f.log.cycles), f.log.cycles)
	}
	if c := f.log.cycles[0]; c.Day != 1 || c.Player != "steve" {
		t.Fatalf("cycle: %+v", c)
	}
	if ns := drainNotices(alexOut); len(ns) != 0 {
		t.Fatalf("alex was reset too: %+v", ns)
	}
}

func TestDailyReset_PoppedBlocksAreNotDropped(t *testing.T) {
	f := newFixture(t, true)
	chestPos := world.Vec3i{X: 3, Y: 80, Z: 3}
	torchPos := chestPos.Add(world.Vec3i{Y: 1})
	f.chest(t, f.over, chestPos, "CHEST", "COBBLESTONE", 5)
	if err := f.over.PlaceBlock("test", torchPos, "TORCH"); err != nil {
		t.Fatalf("place torch: %v", err)
	}

	f.morning(1)
	if len(f.log.cycles) != 1 {
		t.Fatalf("cycles=%d want 1", len(f.log.cycles))
	}
	for _, pos := range []world.Vec3i{chestPos, torchPos} {
		if name := f.over.BlockName(pos); name != "AIR" {
			t.Fatalf("%v is %s, want AIR", pos, name)
		}
	}
	if n := f.over.EntityCount(world.EntityItem); n != 0 {
		t.Fatalf("purge left %d item entities", n)
	}
}

func TestDailyReset_NoPlayersNoReset(t *testing.T) {
	f := newFixture(t, true)
	f.srv.StepOnce(nil, []string{f.player.ID}, nil)
	f.over.SpawnItem("test", world.Vec3i{X: 1, Y: 70, Z: 1}, "STICK", 1, "DROP")
	f.morning(2)
	if len(f.log.cycles) != 0 {
		t.Fatalf("reset without players: %+v", f.log.cycles)
	}
	if f.over.EntityCount(world.EntityItem) != 1 {
		t.Fatalf("item purged without a reset")
	}
}

func TestDailyReset_ItemsOnly(t *testing.T) {
	f := newFixture(t, false)
	chestPos := world.Vec3i{X: 3, Y: 80, Z: 3}
	f.chest(t, f.over, chestPos, "CHEST", "COBBLESTONE", 5)
	boat, err := f.over.SpawnVehicle("test", "CHEST_BOAT", world.Vec3i{X: 2, Y: 63, Z: 2})
	if err != nil {
		t.Fatalf("spawn boat: %v", err)
	}
	f.over.SpawnItem("test", world.Vec3i{X: 1, Y: 70, Z: 1}, "STICK", 3, "DROP")

	f.morning(1)
	if len(f.log.cycles) != 1 || f.log.cycles[0].StoragePurged {
		t.Fatalf("cycles: %+v", f.log.cycles)
	}
	if ct := f.over.BlockEntityAt(chestPos); ct == nil || ct.ItemCount() != 5 {
		t.Fatalf("chest touched in items-only mode: %+v", ct)
	}
	if f.over.Entity(boat.EntityID) == nil {
		t.Fatalf("chest boat removed in items-only mode")
	}
	if f.over.EntityCount(world.EntityItem) != 0 {
		t.Fatalf("dropped items survived")
	}
	ns := drainNotices(f.out)
	if len(ns) == 0 || strings.Contains(ns[len(ns)-1].Text, "chests") {
		t.Fatalf("items-only notice wrong: %+v", ns)
	}
}

func TestWrap_NilLevelIsNilInterface(t *testing.T) {
	f := newFixture(t, true)
	f.player.LevelID = "nowhere"
	for _, p := range Wrap(f.srv).Players() {
		if p.Level() != nil {
			t.Fatalf("missing level should be a nil interface")
		}
	}
}

func TestToBlockFlags(t *testing.T) {
	if got := toBlockFlags(roguelite.UpdateAll); got != world.BlockUpdateAll {
		t.Fatalf("all: %v", got)
	}
	if got := toBlockFlags(roguelite.UpdateClients); got != world.BlockUpdateClients {
		t.Fatalf("clients: %v", got)
	}
}
