package roguelite

const (
	DefaultDayTicks           = 24000
	DefaultMorningWindowTicks = 100
	DefaultHotbarSize         = 9
	DefaultOffhandSlot        = 106
	// DefaultWorldExtent is the x/z half-width of the box used to query
	// entities "everywhere" in a level.
	DefaultWorldExtent = 30000000
)

// DefaultArmorSlots are the feet, legs, chest and head slot indices.
var DefaultArmorSlots = [4]int{100, 101, 102, 103}

type Config struct {
	DayTicks           int64
	MorningWindowTicks int64

	HotbarSize  int
	ArmorSlots  [4]int
	OffhandSlot int

	WorldExtent int

	// PurgeStorage enables destruction of chests, furnaces, chest boats and
	// minecart chests. When false only dropped items are purged.
	PurgeStorage bool
}

func DefaultConfig() Config {
	return Config{
		DayTicks:           DefaultDayTicks,
		MorningWindowTicks: DefaultMorningWindowTicks,
		HotbarSize:         DefaultHotbarSize,
		ArmorSlots:         DefaultArmorSlots,
		OffhandSlot:        DefaultOffhandSlot,
		WorldExtent:        DefaultWorldExtent,
		PurgeStorage:       true,
	}
}

func (c *Config) applyDefaults() {
	if c.DayTicks <= 0 {
		c.DayTicks = DefaultDayTicks
	}
	if c.MorningWindowTicks <= 0 {
		c.MorningWindowTicks = DefaultMorningWindowTicks
	}
	if c.MorningWindowTicks > c.DayTicks {
		c.MorningWindowTicks = c.DayTicks
	}
	if c.HotbarSize <= 0 {
		c.HotbarSize = DefaultHotbarSize
	}
	if c.ArmorSlots == ([4]int{}) {
		c.ArmorSlots = DefaultArmorSlots
	}
	if c.OffhandSlot <= 0 {
		c.OffhandSlot = DefaultOffhandSlot
	}
	if c.WorldExtent <= 0 {
		c.WorldExtent = DefaultWorldExtent
	}
}

// WorldBox covers the whole addressable volume of a level.
func (c Config) WorldBox(l Level) AABB {
	return AABB{
		MinX: -c.WorldExtent, MinY: l.MinY(), MinZ: -c.WorldExtent,
		MaxX: c.WorldExtent, MaxY: l.MaxY(), MaxZ: c.WorldExtent,
	}
}
