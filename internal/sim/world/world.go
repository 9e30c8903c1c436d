package world

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"

	"roguelite.ai/internal/sim/catalogs"
)

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type AuditEntry struct {
	Tick    uint64         `json:"tick"`
	Level   string         `json:"level"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"` // e.g. "SET_BLOCK"
	Pos     [3]int         `json:"pos"`
	From    uint16         `json:"from,omitempty"`
	To      uint16         `json:"to,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// World is one dimension of the server. It is single-threaded: all state
// must be accessed only from the server loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	log      *slog.Logger

	tick  uint64
	clock *Clock

	chunks *ChunkStore

	entities map[string]*Entity
	itemsAt  map[Vec3i][]string

	players map[string]*Player

	nextEntityNum atomic.Uint64

	// Optional (may be nil). Implemented in internal/persistence/*.
	auditLogger AuditLogger
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("world id is required")
	}
	if cats == nil {
		return nil, fmt.Errorf("world %s: catalogs are required", cfg.ID)
	}
	cfg.applyDefaults()
	if cfg.Clock == nil {
		cfg.Clock = NewClock(0)
	}

	gen := WorldGen{
		Seed:      cfg.Seed,
		Kind:      cfg.Kind,
		SurfaceY:  cfg.SurfaceY,
		EndRadius: cfg.EndIslandRadius,
	}
	for name, dst := range map[string]*uint16{
		"AIR":        &gen.Air,
		"BEDROCK":    &gen.Bedrock,
		"STONE":      &gen.Stone,
		"DIRT":       &gen.Dirt,
		"GRASS":      &gen.Grass,
		"COAL_ORE":   &gen.CoalOre,
		"IRON_ORE":   &gen.IronOre,
		"NETHERRACK": &gen.Nether,
		"END_STONE":  &gen.EndStone,
	} {
		id, ok := cats.Blocks.Index[name]
		if !ok {
			return nil, fmt.Errorf("world %s: block palette is missing %s", cfg.ID, name)
		}
		*dst = id
	}

	return &World{
		cfg:      cfg,
		catalogs: cats,
		clock:    cfg.Clock,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		chunks:   NewChunkStore(cfg.ID, gen, cfg.MinY, cfg.MaxY),
		entities: map[string]*Entity{},
		itemsAt:  map[Vec3i][]string{},
		players:  map[string]*Player{},
	}, nil
}

func (w *World) ID() string                         { return w.cfg.ID }
func (w *World) Config() WorldConfig                { return w.cfg }
func (w *World) Catalogs() *catalogs.Catalogs       { return w.catalogs }
func (w *World) CurrentTick() uint64                { return w.tick }
func (w *World) MinY() int                          { return w.cfg.MinY }
func (w *World) MaxY() int                          { return w.cfg.MaxY }
func (w *World) Chunks() *ChunkStore                { return w.chunks }
func (w *World) SetAuditLogger(l AuditLogger)       { w.auditLogger = l }
func (w *World) SetChunkPersister(p ChunkPersister) { w.chunks.persist = p }

func (w *World) SetLogger(l *slog.Logger) {
	w.log = l.With("dimension", w.cfg.ID)
	w.chunks.log = w.log
}

// DayTime reads the shared server clock.
func (w *World) DayTime() int64 { return w.clock.Now() }

// SetDayTime moves the shared clock, so every level sharing it moves too.
func (w *World) SetDayTime(actor string, t int64) {
	from := w.clock.Now()
	w.clock.Set(t)
	w.auditEvent(actor, "TIME_SET", Vec3i{}, "", map[string]any{"from": from, "to": t})
}

// Spawn is the first air block above the terrain at the origin column,
// searching down from a little above the configured surface.
func (w *World) Spawn() Vec3i {
	start := min(w.cfg.SurfaceY+8, w.cfg.MaxY-1)
	for y := start; y >= w.cfg.MinY; y-- {
		if w.GetBlock(Vec3i{X: 0, Y: y, Z: 0}) != w.chunks.gen.Air {
			return Vec3i{X: 0, Y: y + 1, Z: 0}
		}
	}
	return Vec3i{X: 0, Y: w.cfg.SurfaceY, Z: 0}
}

func (w *World) AddPlayer(p *Player) {
	p.LevelID = w.cfg.ID
	w.players[p.ID] = p
}

func (w *World) RemovePlayer(id string) { delete(w.players, id) }

// Players returns the players in this dimension ordered by name.
func (w *World) Players() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Tick advances the level by one server tick: chunk residency, then item
// expiry. The clock belongs to the server and is advanced there.
func (w *World) Tick(nowTick uint64) {
	w.tick = nowTick
	w.UpdateResidency()
	w.cleanupExpiredItems()
}

func (w *World) auditSetBlock(actor string, pos Vec3i, from, to uint16, reason string) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:   w.tick,
		Level:  w.cfg.ID,
		Actor:  actor,
		Action: "SET_BLOCK",
		Pos:    pos.ToArray(),
		From:   from,
		To:     to,
		Reason: reason,
	})
}

func (w *World) auditEvent(actor string, action string, pos Vec3i, reason string, details map[string]any) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:    w.tick,
		Level:   w.cfg.ID,
		Actor:   actor,
		Action:  action,
		Pos:     pos.ToArray(),
		Reason:  reason,
		Details: details,
	})
}
