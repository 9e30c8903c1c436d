package multiworld

import (
	"context"
	"fmt"

	"roguelite.ai/internal/persistence/snapshot"
	"roguelite.ai/internal/sim/world"
	"roguelite.ai/internal/sim/world/logic/mathx"
)

type adminKind int

const (
	adminState adminKind = iota
	adminSnapshot
	adminSetTime
	adminStoreContainer
	adminChunk
)

type adminReq struct {
	kind adminKind
	time int64
	put  ContainerPut
	ref  ChunkRef
	resp chan adminResp
}

type adminResp struct {
	state State
	snap  snapshot.SnapshotV1
	chunk snapshot.ChunkV1
	err   error
}

// ChunkRef names one chunk of one dimension.
type ChunkRef struct {
	Level string
	CX    int
	CZ    int
}

// ContainerPut fills a block container or storage vehicle. Used by admin
// tooling to stage worlds.
type ContainerPut struct {
	Level    string
	Pos      [3]int
	EntityID string
	Item     string
	Count    int
}

// State is a point-in-time view for the admin API.
type State struct {
	Tick    uint64        `json:"tick"`
	Levels  []LevelState  `json:"levels"`
	Players []PlayerState `json:"players"`
}

type LevelState struct {
	ID             string `json:"id"`
	DayTime        int64  `json:"day_time"`
	Day            int64  `json:"day"`
	TimeOfDay      int64  `json:"time_of_day"`
	ResidentChunks int    `json:"resident_chunks"`
	TickingChunks  int    `json:"ticking_chunks"`
	ItemEntities   int    `json:"item_entities"`
	Entities       int    `json:"entities"`
}

type PlayerState struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Level    string `json:"level"`
	Pos      [3]int `json:"pos"`
	Occupied int    `json:"occupied_slots"`
	Online   bool   `json:"online"`
}

func (s *Server) adminCall(ctx context.Context, req adminReq) (adminResp, error) {
	req.resp = make(chan adminResp, 1)
	select {
	case s.admin <- req:
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
	select {
	case r := <-req.resp:
		return r, r.err
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
}

func (s *Server) RequestState(ctx context.Context) (State, error) {
	r, err := s.adminCall(ctx, adminReq{kind: adminState})
	return r.state, err
}

func (s *Server) RequestSnapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	r, err := s.adminCall(ctx, adminReq{kind: adminSnapshot})
	return r.snap, err
}

// RequestSetTime sets the clock of every level, like a server-wide time
// command.
func (s *Server) RequestSetTime(ctx context.Context, t int64) error {
	_, err := s.adminCall(ctx, adminReq{kind: adminSetTime, time: t})
	return err
}

func (s *Server) RequestStoreContainer(ctx context.Context, put ContainerPut) error {
	_, err := s.adminCall(ctx, adminReq{kind: adminStoreContainer, put: put})
	return err
}

// RequestChunk exports a resident chunk. Unloaded chunks are an error.
func (s *Server) RequestChunk(ctx context.Context, ref ChunkRef) (snapshot.ChunkV1, error) {
	r, err := s.adminCall(ctx, adminReq{kind: adminChunk, ref: ref})
	return r.chunk, err
}

func (s *Server) handleAdmin(reqs []adminReq) {
	for _, req := range reqs {
		var r adminResp
		switch req.kind {
		case adminState:
			r.state = s.State()
		case adminSnapshot:
			r.snap = s.ExportSnapshot()
		case adminSetTime:
			s.SetTime("ADMIN", req.time)
		case adminStoreContainer:
			r.err = s.StoreContainer(req.put)
		case adminChunk:
			r.chunk, r.err = s.ExportChunk(req.ref)
		default:
			r.err = fmt.Errorf("unknown admin request %d", req.kind)
		}
		req.resp <- r
	}
}

// SetTime moves the shared clock; the audit entry is filed under the
// default level.
func (s *Server) SetTime(actor string, t int64) {
	s.DefaultLevel().SetDayTime(actor, t)
	s.log.Info("time set", "actor", actor, "day_time", t)
}

func (s *Server) StoreContainer(put ContainerPut) error {
	w := s.byID[put.Level]
	if w == nil {
		return fmt.Errorf("unknown level %q", put.Level)
	}
	if _, ok := s.cats.Items.Defs[put.Item]; !ok || put.Count <= 0 {
		return fmt.Errorf("bad item %q x%d", put.Item, put.Count)
	}
	maxStack := s.cats.MaxStack(put.Item)
	if put.EntityID != "" {
		e := w.Entity(put.EntityID)
		if e == nil || e.Slots == nil {
			return fmt.Errorf("no storage entity %q", put.EntityID)
		}
		if left := e.Add(put.Item, put.Count, maxStack); left > 0 {
			return fmt.Errorf("%d items did not fit", left)
		}
		return nil
	}
	ct := w.BlockEntityAt(world.Vec3i{X: put.Pos[0], Y: put.Pos[1], Z: put.Pos[2]})
	if ct == nil {
		return fmt.Errorf("no container at %v", put.Pos)
	}
	if left := ct.Add(put.Item, put.Count, maxStack); left > 0 {
		return fmt.Errorf("%d items did not fit", left)
	}
	return nil
}

func (s *Server) ExportChunk(ref ChunkRef) (snapshot.ChunkV1, error) {
	w := s.byID[ref.Level]
	if w == nil {
		return snapshot.ChunkV1{}, fmt.Errorf("unknown level %q", ref.Level)
	}
	c, ok := w.ExportChunk(world.ChunkKey{CX: ref.CX, CZ: ref.CZ})
	if !ok {
		return snapshot.ChunkV1{}, fmt.Errorf("chunk %d,%d of %s is not resident", ref.CX, ref.CZ, ref.Level)
	}
	return c, nil
}

func (s *Server) State() State {
	st := State{Tick: s.tick.Load()}
	day := int64(s.opts.Tuning.DayTicks)
	for _, w := range s.levels {
		dt := w.DayTime()
		st.Levels = append(st.Levels, LevelState{
			ID:             w.ID(),
			DayTime:        dt,
			Day:            mathx.FloorDiv(dt, day),
			TimeOfDay:      mathx.Mod(dt, day),
			ResidentChunks: w.Chunks().ResidentCount(),
			TickingChunks:  w.Chunks().TickingChunkCount(),
			ItemEntities:   w.EntityCount(world.EntityItem),
			Entities:       w.EntityCount(""),
		})
	}
	for _, p := range s.players {
		st.Players = append(st.Players, PlayerState{
			ID:       p.ID,
			Name:     p.Name,
			Level:    p.LevelID,
			Pos:      p.Pos.ToArray(),
			Occupied: p.Inventory.Occupied(),
			Online:   s.online[p.ID],
		})
	}
	return st
}
