package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"roguelite.ai/internal/roguelite"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	DayTicks           int `yaml:"day_ticks"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	ItemEntityTTLTicks int `yaml:"item_entity_ttl_ticks"`

	ViewRadiusChunks  int `yaml:"view_radius_chunks"`
	SpawnRadiusChunks int `yaml:"spawn_radius_chunks"`

	Roguelite Roguelite `yaml:"roguelite"`

	StarterItems map[string]int `yaml:"starter_items"`
}

type Roguelite struct {
	MorningWindowTicks int    `yaml:"morning_window_ticks"`
	HotbarSize         int    `yaml:"hotbar_size"`
	ArmorSlots         [4]int `yaml:"armor_slots"`
	OffhandSlot        int    `yaml:"offhand_slot"`
	WorldExtent        int    `yaml:"world_extent"`
	PurgeStorage       *bool  `yaml:"purge_storage"`
}

func Defaults() Tuning {
	purge := true
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         20,
		DayTicks:           roguelite.DefaultDayTicks,
		SnapshotEveryTicks: 6000,
		ItemEntityTTLTicks: 6000,
		ViewRadiusChunks:   4,
		SpawnRadiusChunks:  2,
		Roguelite: Roguelite{
			MorningWindowTicks: roguelite.DefaultMorningWindowTicks,
			HotbarSize:         roguelite.DefaultHotbarSize,
			ArmorSlots:         roguelite.DefaultArmorSlots,
			OffhandSlot:        roguelite.DefaultOffhandSlot,
			WorldExtent:        roguelite.DefaultWorldExtent,
			PurgeStorage:       &purge,
		},
	}
}

// Load reads a tuning file on top of Defaults, so omitted keys keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.DayTicks <= 0 {
		return fmt.Errorf("day_ticks must be > 0")
	}
	if t.Roguelite.MorningWindowTicks <= 0 || t.Roguelite.MorningWindowTicks > t.DayTicks {
		return fmt.Errorf("roguelite.morning_window_ticks must be in 1..day_ticks")
	}
	if t.Roguelite.HotbarSize < 0 {
		return fmt.Errorf("roguelite.hotbar_size must be >= 0")
	}
	if t.ViewRadiusChunks < 0 || t.SpawnRadiusChunks < 0 {
		return fmt.Errorf("chunk radii must be >= 0")
	}
	return nil
}

// ResetConfig maps the tuning onto the reset workflow configuration.
func (t Tuning) ResetConfig() roguelite.Config {
	cfg := roguelite.DefaultConfig()
	cfg.DayTicks = int64(t.DayTicks)
	cfg.MorningWindowTicks = int64(t.Roguelite.MorningWindowTicks)
	cfg.HotbarSize = t.Roguelite.HotbarSize
	cfg.ArmorSlots = t.Roguelite.ArmorSlots
	cfg.OffhandSlot = t.Roguelite.OffhandSlot
	cfg.WorldExtent = t.Roguelite.WorldExtent
	if t.Roguelite.PurgeStorage != nil {
		cfg.PurgeStorage = *t.Roguelite.PurgeStorage
	}
	return cfg
}
