package world

import (
	"fmt"
	"sort"
)

// Container is the block entity of a storage block (chest, furnace, barrel...).
type Container struct {
	Type  string
	Pos   Vec3i
	Slots []ItemStack
}

func newContainer(kind string, pos Vec3i, slots int) *Container {
	return &Container{Type: kind, Pos: pos, Slots: make([]ItemStack, slots)}
}

// ID names the container by type and position, e.g. "CHEST@3,80,3".
func (c *Container) ID() string {
	return fmt.Sprintf("%s@%d,%d,%d", c.Type, c.Pos.X, c.Pos.Y, c.Pos.Z)
}

// Add stores up to count items, filling matching stacks first. It returns
// how many did not fit.
func (c *Container) Add(item string, count, maxStack int) int {
	return addToSlots(c.Slots, item, count, maxStack)
}

// ClearContent empties every slot without dropping anything.
func (c *Container) ClearContent() {
	for i := range c.Slots {
		c.Slots[i] = ItemStack{}
	}
}

func (c *Container) IsEmpty() bool { return stackCount(c.Slots) == 0 }

// ItemCount is the total number of items across all slots.
func (c *Container) ItemCount() int {
	n := 0
	for _, s := range c.Slots {
		if !s.IsEmpty() {
			n += s.Count
		}
	}
	return n
}

// InventoryList merges slots by item, sorted by name.
func (c *Container) InventoryList() []ItemStack {
	return mergeStacks(c.Slots)
}

func addToSlots(slots []ItemStack, item string, count, maxStack int) int {
	if item == "" || count <= 0 {
		return 0
	}
	if maxStack <= 0 {
		maxStack = 64
	}
	for i := range slots {
		if count == 0 {
			return 0
		}
		if slots[i].Item != item || slots[i].Count <= 0 || slots[i].Count >= maxStack {
			continue
		}
		n := min(maxStack-slots[i].Count, count)
		slots[i].Count += n
		count -= n
	}
	for i := range slots {
		if count == 0 {
			return 0
		}
		if !slots[i].IsEmpty() {
			continue
		}
		n := min(maxStack, count)
		slots[i] = ItemStack{Item: item, Count: n}
		count -= n
	}
	return count
}

func stackCount(slots []ItemStack) int {
	n := 0
	for _, s := range slots {
		if !s.IsEmpty() {
			n++
		}
	}
	return n
}

func mergeStacks(slots []ItemStack) []ItemStack {
	byItem := map[string]int{}
	for _, s := range slots {
		if s.IsEmpty() {
			continue
		}
		byItem[s.Item] += s.Count
	}
	out := make([]ItemStack, 0, len(byItem))
	for item, n := range byItem {
		out = append(out, ItemStack{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}
