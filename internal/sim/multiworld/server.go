package multiworld

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"roguelite.ai/internal/persistence/snapshot"
	"roguelite.ai/internal/protocol"
	"roguelite.ai/internal/sim/catalogs"
	"roguelite.ai/internal/sim/tuning"
	"roguelite.ai/internal/sim/world"
)

type Options struct {
	Tuning tuning.Tuning
	Seed   int64
	Logger *slog.Logger

	// Optional (may be nil).
	AuditLogger world.AuditLogger
	Persister   world.ChunkPersister
	// Receives a snapshot every snapshot_every_ticks. Writing happens off the
	// loop goroutine; a full channel skips that snapshot.
	SnapshotSink chan<- snapshot.SnapshotV1

	// AllowGive enables the GIVE debug action.
	AllowGive bool
}

type JoinRequest struct {
	Name            string
	WorldPreference string
	Out             chan []byte
	Resp            chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Code    string
	Message string
}

type ActionEnvelope struct {
	PlayerID string
	Act      protocol.ActMsg
}

// EndTickHandler runs after every level has ticked.
type EndTickHandler func(s *Server)

type endTickHandler struct {
	name string
	fn   EndTickHandler
}

// Server owns every dimension and the players. All simulation state is
// confined to the loop goroutine; other goroutines talk to it through
// channels drained at tick boundaries.
type Server struct {
	cfg  Config
	opts Options
	cats *catalogs.Catalogs
	log  *slog.Logger

	tick  atomic.Uint64
	clock *world.Clock

	levels []*world.World
	byID   map[string]*world.World

	// All known players, online or not, in first-join order.
	players []*world.Player
	byName  map[string]*world.Player
	online  map[string]bool

	handlers []endTickHandler

	join  chan JoinRequest
	leave chan string
	inbox chan ActionEnvelope
	admin chan adminReq
	stop  chan struct{}

	nextSessionNum atomic.Uint64
	handlerPanics  atomic.Uint64
	metrics        atomic.Pointer[Metrics]
}

func NewServer(cfg Config, cats *catalogs.Catalogs, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if opts.Tuning.TickRateHz == 0 {
		opts.Tuning = tuning.Defaults()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		cfg:    cfg,
		opts:   opts,
		cats:   cats,
		log:    opts.Logger,
		clock:  world.NewClock(0),
		byID:   map[string]*world.World{},
		byName: map[string]*world.Player{},
		online: map[string]bool{},
		join:   make(chan JoinRequest, 64),
		leave:  make(chan string, 64),
		inbox:  make(chan ActionEnvelope, 1024),
		admin:  make(chan adminReq, 16),
		stop:   make(chan struct{}),
	}
	for _, spec := range cfg.Worlds {
		w, err := world.New(world.WorldConfig{
			ID:                 spec.ID,
			Kind:               spec.Type,
			MinY:               spec.MinY,
			MaxY:               spec.MaxY,
			SurfaceY:           spec.SurfaceY,
			Seed:               opts.Seed + spec.SeedOffset,
			Clock:              s.clock,
			DayTicks:           opts.Tuning.DayTicks,
			ViewRadiusChunks:   opts.Tuning.ViewRadiusChunks,
			SpawnRadiusChunks:  opts.Tuning.SpawnRadiusChunks,
			EndIslandRadius:    spec.EndIslandRadius,
			ItemEntityTTLTicks: opts.Tuning.ItemEntityTTLTicks,
			StarterItems:       opts.Tuning.StarterItems,
		}, cats)
		if err != nil {
			return nil, err
		}
		w.SetLogger(s.log)
		if opts.AuditLogger != nil {
			w.SetAuditLogger(opts.AuditLogger)
		}
		if opts.Persister != nil {
			w.SetChunkPersister(opts.Persister)
		}
		s.levels = append(s.levels, w)
		s.byID[spec.ID] = w
	}
	s.publishMetrics(0)
	return s, nil
}

// OnEndTick registers a handler that runs once per server tick after all
// levels have ticked. A panicking handler is logged and skipped for that
// tick only.
func (s *Server) OnEndTick(name string, fn EndTickHandler) {
	s.handlers = append(s.handlers, endTickHandler{name: name, fn: fn})
}

func (s *Server) Config() Config                      { return s.cfg }
func (s *Server) Catalogs() *catalogs.Catalogs        { return s.cats }
func (s *Server) CurrentTick() uint64                 { return s.tick.Load() }
func (s *Server) DayTime() int64                      { return s.clock.Now() }
func (s *Server) Levels() []*world.World              { return s.levels }
func (s *Server) Level(id string) *world.World        { return s.byID[id] }
func (s *Server) DefaultLevel() *world.World          { return s.byID[s.cfg.DefaultWorldID] }
func (s *Server) TickRateHz() int                     { return s.opts.Tuning.TickRateHz }
func (s *Server) Inbox() chan<- ActionEnvelope        { return s.inbox }
func (s *Server) HandlerPanics() uint64               { return s.handlerPanics.Load() }
func (s *Server) PlayerByName(n string) *world.Player { return s.byName[n] }

// Players returns online players in first-join order.
func (s *Server) Players() []*world.Player {
	out := make([]*world.Player, 0, len(s.online))
	for _, p := range s.players {
		if s.online[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.opts.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingActions []ActionEnvelope
	var pendingAdmin []adminReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-s.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-s.inbox:
			pendingActions = append(pendingActions, env)
		case req := <-s.admin:
			pendingAdmin = append(pendingAdmin, req)
		case <-ticker.C:
			s.step(pendingJoins, pendingLeaves, pendingActions)
			s.handleAdmin(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (s *Server) Stop() { close(s.stop) }

// StepOnce advances the server by a single tick with the same ordering as
// Run. It returns the tick that was executed.
func (s *Server) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) uint64 {
	tick := s.tick.Load()
	s.step(joins, leaves, actions)
	return tick
}

func (s *Server) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	start := time.Now()
	nowTick := s.tick.Load()

	for _, id := range leaves {
		s.handleLeave(id)
	}
	for _, req := range joins {
		s.handleJoin(nowTick, req)
	}
	for _, env := range actions {
		s.handleAction(nowTick, env)
	}
	if s.cfg.Daylight() {
		s.clock.Advance()
	}
	for _, w := range s.levels {
		w.Tick(nowTick)
	}
	for _, h := range s.handlers {
		s.runHandler(h)
	}

	s.tick.Store(nowTick + 1)
	s.maybeSnapshot(nowTick)
	s.publishMetrics(time.Since(start))
}

func (s *Server) runHandler(h endTickHandler) {
	defer func() {
		if r := recover(); r != nil {
			s.handlerPanics.Add(1)
			s.log.Error("end-tick handler panicked", "handler", h.name, "tick", s.tick.Load(), "panic", fmt.Sprint(r))
		}
	}()
	h.fn(s)
}

func (s *Server) maybeSnapshot(nowTick uint64) {
	every := uint64(s.opts.Tuning.SnapshotEveryTicks)
	if s.opts.SnapshotSink == nil || every == 0 || nowTick == 0 || nowTick%every != 0 {
		return
	}
	snap := s.ExportSnapshot()
	select {
	case s.opts.SnapshotSink <- snap:
	default:
		s.log.Warn("snapshot sink full, skipping", "tick", nowTick)
	}
}

// Join enqueues a join and waits for the loop to answer.
func (s *Server) Join(ctx context.Context, name, worldPref string, out chan []byte) (JoinResponse, error) {
	resp := make(chan JoinResponse, 1)
	select {
	case s.join <- JoinRequest{Name: name, WorldPreference: worldPref, Out: out, Resp: resp}:
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
}

// Leave marks the player offline at the next tick boundary.
func (s *Server) Leave(playerID string) {
	select {
	case s.leave <- playerID:
	case <-s.stop:
	}
}

func (s *Server) handleJoin(nowTick uint64, req JoinRequest) {
	reply := func(r JoinResponse) {
		if req.Resp != nil {
			req.Resp <- r
		}
	}
	if req.Name == "" {
		reply(JoinResponse{Code: protocol.ErrBadRequest, Message: "player name required"})
		return
	}
	p := s.byName[req.Name]
	if p != nil && s.online[p.ID] {
		reply(JoinResponse{Code: protocol.ErrConflict, Message: "player already online"})
		return
	}

	if p == nil {
		lvl := s.byID[req.WorldPreference]
		if lvl == nil {
			lvl = s.DefaultLevel()
		}
		p = world.NewPlayer(req.Name, lvl.ID(), lvl.Spawn(), req.Out)
		for _, item := range sortedKeys(s.opts.Tuning.StarterItems) {
			p.Inventory.Add(item, s.opts.Tuning.StarterItems[item], s.cats.MaxStack(item))
		}
		s.players = append(s.players, p)
		s.byName[p.Name] = p
	} else {
		p.SetOutbox(req.Out)
	}
	lvl := s.byID[p.LevelID]
	if lvl == nil {
		lvl = s.DefaultLevel()
		p.Pos = lvl.Spawn()
	}
	lvl.AddPlayer(p)
	s.online[p.ID] = true

	s.log.Info("player joined", "player", p.Name, "player_id", p.ID, "dimension", lvl.ID(), "tick", nowTick)
	reply(JoinResponse{Welcome: s.welcome(p)})
}

func (s *Server) handleLeave(playerID string) {
	if !s.online[playerID] {
		return
	}
	delete(s.online, playerID)
	for _, p := range s.players {
		if p.ID != playerID {
			continue
		}
		if lvl := s.byID[p.LevelID]; lvl != nil {
			lvl.RemovePlayer(p.ID)
		}
		p.SetOutbox(nil)
		s.log.Info("player left", "player", p.Name, "player_id", p.ID)
	}
}

func (s *Server) welcome(p *world.Player) protocol.WelcomeMsg {
	lvl := s.byID[p.LevelID]
	msg := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       fmt.Sprintf("s_%d", s.nextSessionNum.Add(1)),
		PlayerID:        p.ID,
		CurrentWorldID:  p.LevelID,
		WorldParams: protocol.WorldParams{
			TickRateHz:       s.opts.Tuning.TickRateHz,
			DayTicks:         s.opts.Tuning.DayTicks,
			ChunkSize:        [3]int{world.ChunkSize, lvl.MaxY() - lvl.MinY() + 1, world.ChunkSize},
			ViewRadiusChunks: s.opts.Tuning.ViewRadiusChunks,
			Seed:             s.opts.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			BlockPalette: protocol.DigestRef{Digest: s.cats.Blocks.PaletteDigest, Count: len(s.cats.Blocks.Palette)},
			ItemPalette:  protocol.DigestRef{Digest: s.cats.Items.PaletteDigest, Count: len(s.cats.Items.Palette)},
			EntityDigest: s.cats.Entities.Digest,
		},
	}
	for _, w := range s.levels {
		msg.WorldManifest = append(msg.WorldManifest, protocol.WorldRef{
			WorldID:   w.ID(),
			WorldType: w.Config().Kind,
			MinY:      w.MinY(),
			MaxY:      w.MaxY(),
		})
	}
	return msg
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
