package roguelite

type LevelItemCount struct {
	Level string
	Items int
}

type ItemPurgeReport struct {
	PerLevel []LevelItemCount
	Total    int
}

// PurgeDroppedItems discards every loose item entity in every loaded level.
// Items held by containers are not touched.
func (r *Resetter) PurgeDroppedItems(srv Server) ItemPurgeReport {
	r.log.Debug("starting removal of dropped items")

	var rep ItemPurgeReport
	for _, lvl := range srv.Levels() {
		n := 0
		for _, e := range lvl.EntitiesIn(EntityItem, r.cfg.WorldBox(lvl)) {
			e.Discard()
			n++
		}
		rep.PerLevel = append(rep.PerLevel, LevelItemCount{Level: lvl.ID(), Items: n})
		rep.Total += n
		if n > 0 {
			r.log.Debug("removed dropped items", "dimension", lvl.ID(), "count", n)
		}
	}

	r.log.Info("dropped items removed", "total", rep.Total)
	return rep
}

type StorageCounts struct {
	Level          string
	Chests         int
	Furnaces       int
	ChestBoats     int
	MinecartChests int
}

func (c StorageCounts) Empty() bool {
	return c.Chests == 0 && c.Furnaces == 0 && c.ChestBoats == 0 && c.MinecartChests == 0
}

func (c *StorageCounts) add(o StorageCounts) {
	c.Chests += o.Chests
	c.Furnaces += o.Furnaces
	c.ChestBoats += o.ChestBoats
	c.MinecartChests += o.MinecartChests
}

type StoragePurgeReport struct {
	PerLevel []StorageCounts
	Total    StorageCounts
}

// PurgeStorage destroys chests and furnaces in ticking chunks and every chest
// boat and minecart chest of every loaded level. Contents are cleared before
// the block or entity goes away so nothing is spilled into the world. Chunks
// that are not resident are not scanned.
func (r *Resetter) PurgeStorage(srv Server) StoragePurgeReport {
	r.log.Debug("starting removal of storage blocks and vehicles")

	var rep StoragePurgeReport
	for _, lvl := range srv.Levels() {
		c := r.purgeLevelStorage(lvl)
		rep.PerLevel = append(rep.PerLevel, c)
		rep.Total.add(c)
		if !c.Empty() {
			r.log.Debug("removed storage from dimension",
				"dimension", lvl.ID(),
				"chests", c.Chests,
				"furnaces", c.Furnaces,
				"chest_boats", c.ChestBoats,
				"minecart_chests", c.MinecartChests,
			)
		}
	}

	r.log.Info("storage removed",
		"chests", rep.Total.Chests,
		"furnaces", rep.Total.Furnaces,
		"chest_boats", rep.Total.ChestBoats,
		"minecart_chests", rep.Total.MinecartChests,
	)
	return rep
}

func (r *Resetter) purgeLevelStorage(lvl Level) StorageCounts {
	counts := StorageCounts{Level: lvl.ID()}

	// Collect first: removing blocks mutates the chunk's block entity map.
	var chests, furnaces []BlockPos
	if cm := lvl.ChunkMap(); cm != nil {
		for _, holder := range cm.VisibleChunks() {
			ch := holder.TickingChunk()
			if ch == nil {
				continue
			}
			for _, be := range ch.BlockEntities() {
				switch be.Kind() {
				case BlockEntityChest:
					chests = append(chests, be.Pos())
				case BlockEntityFurnace:
					furnaces = append(furnaces, be.Pos())
				}
			}
		}
	}

	counts.Chests = removeBlockContainers(lvl, chests, BlockEntityChest)
	counts.Furnaces = removeBlockContainers(lvl, furnaces, BlockEntityFurnace)

	box := r.cfg.WorldBox(lvl)
	counts.ChestBoats = removeContainerEntities(lvl, EntityChestBoat, box)
	counts.MinecartChests = removeContainerEntities(lvl, EntityMinecartChest, box)
	return counts
}

// removeBlockContainers drains then replaces each block with air. The block
// entity is re-resolved because an earlier removal may have changed it.
func removeBlockContainers(lvl Level, positions []BlockPos, kind BlockEntityKind) int {
	n := 0
	for _, pos := range positions {
		be := lvl.BlockEntityAt(pos)
		if be == nil || be.Kind() != kind {
			continue
		}
		be.ClearContent()
		lvl.SetBlockAir(pos, UpdateAll)
		n++
	}
	return n
}

func removeContainerEntities(lvl Level, kind EntityKind, box AABB) int {
	n := 0
	for _, e := range lvl.EntitiesIn(kind, box) {
		if c, ok := e.(Container); ok {
			c.ClearContent()
		}
		e.Discard()
		n++
	}
	return n
}
