package multiworld

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DefaultWorldID string `yaml:"default_world_id"`
	// One clock drives every dimension; false freezes it for all of them.
	DaylightCycle *bool       `yaml:"daylight_cycle"`
	Worlds        []WorldSpec `yaml:"worlds"`
}

func (c Config) Daylight() bool { return c.DaylightCycle == nil || *c.DaylightCycle }

type WorldSpec struct {
	ID              string `yaml:"id"`
	Type            string `yaml:"type"`
	MinY            int    `yaml:"min_y"`
	MaxY            int    `yaml:"max_y"`
	SurfaceY        int    `yaml:"surface_y"`
	SeedOffset      int64  `yaml:"seed_offset"`
	EndIslandRadius int    `yaml:"end_island_radius,omitempty"`
}

var knownTypes = map[string]struct {
	minY, maxY, surfaceY int
}{
	"OVERWORLD": {-64, 319, 64},
	"NETHER":    {0, 255, 32},
	"END":       {0, 255, 48},
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultWorldID: "overworld",
		Worlds: []WorldSpec{
			{ID: "overworld", Type: "OVERWORLD"},
			{ID: "the_nether", Type: "NETHER", SeedOffset: 1},
			{ID: "the_end", Type: "END", SeedOffset: 2},
		},
	}
}

// Normalize fills per-type defaults for omitted heights.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Worlds {
		w := &c.Worlds[i]
		w.ID = strings.TrimSpace(w.ID)
		w.Type = strings.ToUpper(strings.TrimSpace(w.Type))
		if w.Type == "" {
			w.Type = "OVERWORLD"
		}
		d, ok := knownTypes[w.Type]
		if !ok {
			continue
		}
		if w.MinY == 0 && w.MaxY == 0 {
			w.MinY, w.MaxY = d.minY, d.maxY
		}
		if w.SurfaceY == 0 {
			w.SurfaceY = d.surfaceY
		}
	}
	if strings.TrimSpace(c.DefaultWorldID) == "" && len(c.Worlds) > 0 {
		c.DefaultWorldID = c.Worlds[0].ID
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Worlds) == 0 {
		return fmt.Errorf("worlds must not be empty")
	}
	seen := map[string]bool{}
	for _, w := range c.Worlds {
		if w.ID == "" {
			return fmt.Errorf("world id must not be empty")
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate world id: %s", w.ID)
		}
		seen[w.ID] = true
		if _, ok := knownTypes[w.Type]; !ok {
			return fmt.Errorf("world %s: unknown type %q", w.ID, w.Type)
		}
		if w.MaxY <= w.MinY {
			return fmt.Errorf("world %s: max_y must be > min_y", w.ID)
		}
		if w.SurfaceY < w.MinY || w.SurfaceY > w.MaxY {
			return fmt.Errorf("world %s: surface_y must be within min_y..max_y", w.ID)
		}
		if w.EndIslandRadius < 0 {
			return fmt.Errorf("world %s: end_island_radius must be >= 0", w.ID)
		}
	}
	if !seen[c.DefaultWorldID] {
		return fmt.Errorf("default_world_id %q is not a configured world", c.DefaultWorldID)
	}
	return nil
}
