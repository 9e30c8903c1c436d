package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"roguelite.ai/internal/persistence/snapshot"
	"roguelite.ai/internal/roguelite"
	"roguelite.ai/internal/sim/encoding"
	"roguelite.ai/internal/sim/multiworld"
	"roguelite.ai/internal/transport/observer"
)

const adminTimeout = 5 * time.Second

func (a *app) mux(enableAdmin, enablePprof bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.handleMetrics)
	mux.HandleFunc("/v1/ws", a.ws.Handler())

	if enableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", loopbackOnly(http.MethodGet, a.handleState))
		mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(http.MethodPost, a.handleSnapshot))
		mux.HandleFunc("/admin/v1/time", loopbackOnly(http.MethodPost, a.handleSetTime))
		mux.HandleFunc("/admin/v1/container", loopbackOnly(http.MethodPost, a.handleStoreContainer))
		mux.HandleFunc("/admin/v1/chunk", loopbackOnly(http.MethodGet, a.handleChunk))
		mux.HandleFunc("/admin/v1/resets", loopbackOnly(http.MethodGet, a.handleResets))
		mux.HandleFunc("/admin/v1/observer/bootstrap", a.obs.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", a.obs.WSHandler())
	}
	if enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		a.log.Info("pprof endpoints disabled (RL_ENABLE_PPROF_HTTP=false)")
	}
	return mux
}

func loopbackOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeErr(rw http.ResponseWriter, status int, err error) {
	writeJSON(rw, status, map[string]any{"ok": false, "error": err.Error()})
}

func (a *app) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	m := a.srv.Metrics()
	gauge := func(name, help string) {
		fmt.Fprintf(rw, "# HELP %s %s\n# TYPE %s gauge\n", name, help, name)
	}
	counter := func(name, help string) {
		fmt.Fprintf(rw, "# HELP %s %s\n# TYPE %s counter\n", name, help, name)
	}

	gauge("roguelite_server_tick", "Current server tick.")
	fmt.Fprintf(rw, "roguelite_server_tick %d\n", m.Tick)
	gauge("roguelite_players_online", "Connected players.")
	fmt.Fprintf(rw, "roguelite_players_online %d\n", m.PlayersOnline)
	gauge("roguelite_players_known", "Players seen since the world was created.")
	fmt.Fprintf(rw, "roguelite_players_known %d\n", m.PlayersKnown)
	gauge("roguelite_step_ms", "Last tick step duration in milliseconds.")
	fmt.Fprintf(rw, "roguelite_step_ms %.3f\n", float64(m.LastStep.Microseconds())/1000)
	gauge("roguelite_inbox_depth", "Queued player actions.")
	fmt.Fprintf(rw, "roguelite_inbox_depth %d\n", m.InboxDepth)
	counter("roguelite_handler_panics_total", "End-of-tick handler panics recovered.")
	fmt.Fprintf(rw, "roguelite_handler_panics_total %d\n", m.HandlerPanics)

	dayTicks := int64(a.tune.DayTicks)
	gauge("roguelite_level_day", "In-game day per dimension.")
	for _, l := range m.Levels {
		day, _ := roguelite.SplitClock(l.DayTime, dayTicks)
		fmt.Fprintf(rw, "roguelite_level_day{dimension=%q} %d\n", l.ID, day)
	}
	gauge("roguelite_level_time_of_day", "Ticks since the start of the current day.")
	for _, l := range m.Levels {
		_, tod := roguelite.SplitClock(l.DayTime, dayTicks)
		fmt.Fprintf(rw, "roguelite_level_time_of_day{dimension=%q} %d\n", l.ID, tod)
	}
	gauge("roguelite_level_chunks", "Chunks held in memory by state.")
	for _, l := range m.Levels {
		fmt.Fprintf(rw, "roguelite_level_chunks{dimension=%q,state=%q} %d\n", l.ID, "resident", l.ResidentChunks)
		fmt.Fprintf(rw, "roguelite_level_chunks{dimension=%q,state=%q} %d\n", l.ID, "ticking", l.TickingChunks)
	}
	gauge("roguelite_level_entities", "Live entities by kind.")
	for _, l := range m.Levels {
		fmt.Fprintf(rw, "roguelite_level_entities{dimension=%q,kind=%q} %d\n", l.ID, "item", l.ItemEntities)
		fmt.Fprintf(rw, "roguelite_level_entities{dimension=%q,kind=%q} %d\n", l.ID, "all", l.Entities)
	}
	counter("roguelite_chunk_persist_errors_total", "Chunk save/load failures.")
	for _, l := range m.Levels {
		fmt.Fprintf(rw, "roguelite_chunk_persist_errors_total{dimension=%q} %d\n", l.ID, l.PersistErrors)
	}

	rs := a.resets.Status()
	counter("roguelite_reset_cycles_total", "Daily reset cycles run.")
	fmt.Fprintf(rw, "roguelite_reset_cycles_total %d\n", rs.Cycles)
	gauge("roguelite_reset_last_day", "Day of the last reset, -1 before the first.")
	fmt.Fprintf(rw, "roguelite_reset_last_day %d\n", rs.LastDay)
	counter("roguelite_reset_items_removed_total", "Dropped item entities removed by resets.")
	fmt.Fprintf(rw, "roguelite_reset_items_removed_total %d\n", rs.ItemsRemoved)
	counter("roguelite_reset_storage_removed_total", "Chests, furnaces and storage vehicles removed by resets.")
	fmt.Fprintf(rw, "roguelite_reset_storage_removed_total %d\n", rs.StorageRemoved)
	counter("roguelite_reset_log_errors_total", "Reset records that failed to write.")
	fmt.Fprintf(rw, "roguelite_reset_log_errors_total %d\n", a.resetLog.Errors())

	if a.idx != nil {
		st := a.idx.Stats()
		gauge("roguelite_index_queue_depth", "Pending index writes.")
		fmt.Fprintf(rw, "roguelite_index_queue_depth %d\n", st.QueueDepth)
		counter("roguelite_index_dropped_total", "Index writes dropped on a full queue.")
		fmt.Fprintf(rw, "roguelite_index_dropped_total{kind=%q} %d\n", "audit", st.DropAuditTotal)
		fmt.Fprintf(rw, "roguelite_index_dropped_total{kind=%q} %d\n", "cycle", st.DropCycleTotal)
		fmt.Fprintf(rw, "roguelite_index_dropped_total{kind=%q} %d\n", "snapshot", st.DropSnapshotTotal)
		counter("roguelite_index_write_errors_total", "Failed index transactions.")
		fmt.Fprintf(rw, "roguelite_index_write_errors_total %d\n", st.WriteErrorTotal)
	}
}

func (a *app) handleState(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	st, err := a.srv.RequestState(ctx)
	if err != nil {
		writeErr(rw, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(rw, http.StatusOK, st)
}

func (a *app) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	snap, err := a.srv.RequestSnapshot(ctx)
	if err != nil {
		writeErr(rw, http.StatusServiceUnavailable, err)
		return
	}
	path, err := a.saveSnapshot(snap)
	if err != nil {
		writeErr(rw, http.StatusInternalServerError, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": snap.Tick, "path": path})
}

type setTimeReq struct {
	DayTime *int64 `json:"day_time"`
}

func (a *app) handleSetTime(rw http.ResponseWriter, r *http.Request) {
	var req setTimeReq
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil || req.DayTime == nil {
		writeErr(rw, http.StatusBadRequest, fmt.Errorf("body must be {\"day_time\": <ticks>}"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	if err := a.srv.RequestSetTime(ctx, *req.DayTime); err != nil {
		writeErr(rw, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "day_time": *req.DayTime})
}

type containerReq struct {
	Level    string `json:"level"`
	Pos      [3]int `json:"pos"`
	EntityID string `json:"entity_id"`
	Item     string `json:"item"`
	Count    int    `json:"count"`
}

func (a *app) handleStoreContainer(rw http.ResponseWriter, r *http.Request) {
	var req containerReq
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeErr(rw, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	err := a.srv.RequestStoreContainer(ctx, multiworld.ContainerPut{
		Level:    req.Level,
		Pos:      req.Pos,
		EntityID: req.EntityID,
		Item:     req.Item,
		Count:    req.Count,
	})
	if err != nil {
		status := http.StatusBadRequest
		if ctx.Err() != nil {
			status = http.StatusServiceUnavailable
		}
		writeErr(rw, status, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

type chunkDump struct {
	Level         string                 `json:"level"`
	CX            int                    `json:"cx"`
	CZ            int                    `json:"cz"`
	PaletteDigest string                 `json:"palette_digest"`
	Sections      []sectionDump          `json:"sections"`
	Containers    []snapshot.ContainerV1 `json:"containers,omitempty"`
}

type sectionDump struct {
	Y      int    `json:"y"`
	Blocks string `json:"blocks_rle"`
}

// handleChunk dumps one resident chunk with run-length encoded sections.
func (a *app) handleChunk(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	level := q.Get("level")
	if level == "" {
		level = a.srv.Config().DefaultWorldID
	}
	cx, err1 := strconv.Atoi(q.Get("cx"))
	cz, err2 := strconv.Atoi(q.Get("cz"))
	if err1 != nil || err2 != nil {
		writeErr(rw, http.StatusBadRequest, fmt.Errorf("cx and cz must be integers"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	c, err := a.srv.RequestChunk(ctx, multiworld.ChunkRef{Level: level, CX: cx, CZ: cz})
	if err != nil {
		status := http.StatusNotFound
		if ctx.Err() != nil {
			status = http.StatusServiceUnavailable
		}
		writeErr(rw, status, err)
		return
	}
	out := chunkDump{
		Level:         level,
		CX:            c.CX,
		CZ:            c.CZ,
		PaletteDigest: a.cats.Blocks.PaletteDigest,
		Containers:    c.Containers,
	}
	for _, sec := range c.Sections {
		out.Sections = append(out.Sections, sectionDump{Y: sec.Y, Blocks: encoding.EncodeRLE(sec.Blocks)})
	}
	writeJSON(rw, http.StatusOK, out)
}

func (a *app) handleResets(rw http.ResponseWriter, r *http.Request) {
	if a.idx == nil {
		writeErr(rw, http.StatusNotFound, fmt.Errorf("index disabled"))
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeErr(rw, http.StatusBadRequest, fmt.Errorf("limit must be 1..1000"))
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()
	rows, err := a.idx.ResetCycles(ctx, limit)
	if err != nil {
		writeErr(rw, http.StatusInternalServerError, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"cycles": rows})
}
