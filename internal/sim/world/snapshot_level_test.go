package world

import "testing"

func TestExportImportLevel(t *testing.T) {
	src := newTestWorld(t)
	chest := Vec3i{X: 4, Y: 100, Z: -4}
	_ = src.PlaceBlock("steve", chest, "CHEST")
	src.BlockEntityAt(chest).Add("IRON_INGOT", 9, 64)
	src.SpawnItem("steve", Vec3i{X: 1, Y: 80, Z: 1}, "COAL", 3, "")
	boat, _ := src.SpawnVehicle("steve", "CHEST_BOAT", Vec3i{X: 2, Y: 63, Z: 2})
	addToSlots(boat.Slots, "BREAD", 2, 64)

	lv := src.ExportLevel()

	dst := newTestWorld(t)
	if err := dst.ImportLevel(lv); err != nil {
		t.Fatalf("import: %v", err)
	}
	dst.Tick(1)
	ct := dst.BlockEntityAt(chest)
	if ct == nil || ct.ItemCount() != 9 {
		t.Fatalf("chest not restored: %+v", ct)
	}
	if dst.BlockName(chest) != "CHEST" {
		t.Fatalf("block=%s", dst.BlockName(chest))
	}
	if dst.EntityCount(EntityItem) != 1 || dst.Entity(boat.EntityID).ItemCount() != 2 {
		t.Fatalf("entities not restored")
	}
	// New ids must not collide with restored ones.
	id := dst.SpawnItem("x", Vec3i{X: 9, Y: 90, Z: 9}, "COAL", 1, "")
	if id == boat.EntityID || dst.EntityCount("") != 3 {
		t.Fatalf("entity id collision: %s", id)
	}

	other, _ := New(WorldConfig{ID: "the_nether", Kind: "NETHER", MinY: 0, MaxY: 255}, dst.catalogs)
	if err := other.ImportLevel(lv); err == nil {
		t.Fatalf("expected level id mismatch")
	}
}

func TestExportImportInventory(t *testing.T) {
	var inv Inventory
	inv.SetItem(3, ItemStack{Item: "COAL", Count: 5})
	inv.SetItem(ArmorChestSlot, ItemStack{Item: "IRON_CHESTPLATE", Count: 1})
	inv.SetItem(OffhandSlot, ItemStack{Item: "SHIELD", Count: 1})

	var back Inventory
	ImportInventory(&back, ExportInventory(&inv))
	if back != inv {
		t.Fatalf("inventory mismatch: %+v", back)
	}
}
