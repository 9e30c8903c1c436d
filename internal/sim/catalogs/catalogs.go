package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Blocks   BlockCatalog
	Items    ItemCatalog
	Entities EntityCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID    string `json:"id"`
	Solid bool   `json:"solid"`
	// Container names the block entity kind backing this block ("CHEST",
	// "FURNACE", "BARREL"...). Empty for plain blocks.
	Container      string `json:"container,omitempty"`
	ContainerSlots int    `json:"container_slots,omitempty"`
	// NeedsSupport blocks pop off when the block below them is removed.
	NeedsSupport bool `json:"needs_support,omitempty"`
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"` // "BLOCK","TOOL","MATERIAL","FOOD","ARMOR","VEHICLE"
	PlaceAs  string `json:"place_as,omitempty"`
	MaxStack int    `json:"max_stack,omitempty"`
}

type EntityCatalog struct {
	Defs   map[string]EntityDef
	Digest string
}

type EntityDef struct {
	ID             string `json:"id"`
	ContainerSlots int    `json:"container_slots,omitempty"`
	// DropsItem is what killing the entity leaves behind besides its contents.
	DropsItem string `json:"drops_item,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadEntities(filepath.Join(configDir, "entities.json"), &c.Entities); err != nil {
		return nil, err
	}
	for id, d := range c.Items.Defs {
		if d.PlaceAs == "" {
			continue
		}
		if _, ok := c.Blocks.Defs[d.PlaceAs]; !ok {
			if _, ok := c.Entities.Defs[d.PlaceAs]; !ok {
				return nil, fmt.Errorf("items.json: %s places unknown %q", id, d.PlaceAs)
			}
		}
	}
	return &c, nil
}

// IsContainer reports whether the block id carries a block entity.
func (c *Catalogs) IsContainer(block uint16) (kind string, slots int, ok bool) {
	if int(block) >= len(c.Blocks.Palette) {
		return "", 0, false
	}
	d := c.Blocks.Defs[c.Blocks.Palette[block]]
	if d.Container == "" {
		return "", 0, false
	}
	return d.Container, d.ContainerSlots, true
}

func (c *Catalogs) NeedsSupport(block uint16) bool {
	if int(block) >= len(c.Blocks.Palette) {
		return false
	}
	return c.Blocks.Defs[c.Blocks.Palette[block]].NeedsSupport
}

// BlockName returns the palette name of block, or "" when out of range.
func (c *Catalogs) BlockName(block uint16) string {
	if int(block) >= len(c.Blocks.Palette) {
		return ""
	}
	return c.Blocks.Palette[block]
}

func (c *Catalogs) MaxStack(item string) int {
	if d, ok := c.Items.Defs[item]; ok && d.MaxStack > 0 {
		return d.MaxStack
	}
	return 64
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if d.Container != "" && d.ContainerSlots <= 0 {
			return fmt.Errorf("blocks.json: %s: container without slots", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadEntities(path string, out *EntityCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []EntityDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("entities.json: %w", err)
	}
	out.Defs = map[string]EntityDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("entities.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	if _, ok := out.Defs["ITEM"]; !ok {
		return fmt.Errorf("entities.json: missing ITEM")
	}
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
