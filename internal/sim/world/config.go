package world

// WorldConfig describes one dimension.
type WorldConfig struct {
	ID       string
	Kind     string // OVERWORLD, NETHER, END
	MinY     int
	MaxY     int
	SurfaceY int
	Seed     int64

	// Shared server clock. A level created without one gets its own.
	Clock    *Clock
	DayTicks int

	ViewRadiusChunks  int
	SpawnRadiusChunks int
	// Half-width of the END island, in blocks.
	EndIslandRadius int

	ItemEntityTTLTicks int

	// Starter items granted to newly joined players.
	StarterItems map[string]int
}

func (c *WorldConfig) applyDefaults() {
	if c.Kind == "" {
		c.Kind = "OVERWORLD"
	}
	if c.MaxY <= c.MinY {
		c.MinY, c.MaxY = -64, 319
	}
	if c.SurfaceY < c.MinY || c.SurfaceY > c.MaxY {
		c.SurfaceY = c.MinY + (c.MaxY-c.MinY)/3
	}
	if c.DayTicks <= 0 {
		c.DayTicks = 24000
	}
	if c.ViewRadiusChunks < 0 {
		c.ViewRadiusChunks = 0
	}
	if c.SpawnRadiusChunks < 0 {
		c.SpawnRadiusChunks = 0
	}
	if c.EndIslandRadius <= 0 {
		c.EndIslandRadius = 96
	}
}
