package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"roguelite.ai/internal/persistence/indexdb"
	persistlog "roguelite.ai/internal/persistence/log"
	"roguelite.ai/internal/persistence/region"
	"roguelite.ai/internal/persistence/snapshot"
	"roguelite.ai/internal/roguelite"
	"roguelite.ai/internal/sim/catalogs"
	"roguelite.ai/internal/sim/hostadapter"
	"roguelite.ai/internal/sim/multiworld"
	"roguelite.ai/internal/sim/tuning"
	"roguelite.ai/internal/sim/world"
	"roguelite.ai/internal/transport/observer"
	"roguelite.ai/internal/transport/ws"
)

type appConfig struct {
	ConfigDir  string
	WorldsPath string
	TuningPath string
	DataDir    string
	Seed       int64

	SnapshotPath string
	LoadLatest   bool

	DisableDB   bool
	RegionStore bool
	AllowGive   bool
}

// app owns the server loop and every sink hanging off it.
type app struct {
	cfg  appConfig
	log  *slog.Logger
	tune tuning.Tuning
	cats *catalogs.Catalogs

	srv      *multiworld.Server
	resetter *roguelite.Resetter
	resets   *observer.ResetCounter
	obs      *observer.Server
	ws       *ws.Server

	idx      *indexdb.SQLiteIndex
	audit    *persistlog.AuditLogger
	resetLog *persistlog.ResetLogger
	regions  *region.Store

	snapDir string
	snapCh  chan snapshot.SnapshotV1
	wg      sync.WaitGroup
}

// auditFanout writes every audit entry to the hourly files and the index.
type auditFanout []world.AuditLogger

func (f auditFanout) WriteAudit(e world.AuditEntry) error {
	var errs []error
	for _, l := range f {
		if err := l.WriteAudit(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newApp(cfg appConfig, logger *slog.Logger) (*app, error) {
	if cfg.WorldsPath == "" {
		cfg.WorldsPath = filepath.Join(cfg.ConfigDir, "worlds.yaml")
	}
	if cfg.TuningPath == "" {
		cfg.TuningPath = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}

	cats, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		return nil, fmt.Errorf("load tuning: %w", err)
	}
	worlds, err := multiworld.Load(cfg.WorldsPath)
	if err != nil {
		return nil, fmt.Errorf("load worlds: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     logger,
		tune:    tune,
		cats:    cats,
		snapDir: filepath.Join(cfg.DataDir, "snapshots"),
		snapCh:  make(chan snapshot.SnapshotV1, 1),
	}
	ok := false
	defer func() {
		if !ok {
			a.closeSinks()
		}
	}()

	a.idx, err = openRuntimeIndex(cfg.DataDir, cfg.DisableDB)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if a.idx != nil {
		if err := a.idx.UpsertCatalogs(cfg.ConfigDir, cats, tune); err != nil {
			logger.Warn("index catalogs upsert failed", "error", err)
		}
	}

	a.audit = persistlog.NewAuditLogger(cfg.DataDir)
	sinks := auditFanout{a.audit}
	if a.idx != nil {
		sinks = append(sinks, a.idx)
	}

	opts := multiworld.Options{
		Tuning:       tune,
		Seed:         cfg.Seed,
		Logger:       logger,
		AuditLogger:  sinks,
		SnapshotSink: a.snapCh,
		AllowGive:    cfg.AllowGive,
	}
	if cfg.RegionStore {
		a.regions, err = region.New(filepath.Join(cfg.DataDir, "levels"), cats.Blocks.Palette)
		if err != nil {
			return nil, fmt.Errorf("open region store: %w", err)
		}
		opts.Persister = a.regions
	}

	a.srv, err = multiworld.NewServer(worlds, cats, opts)
	if err != nil {
		return nil, err
	}
	if err := a.restore(); err != nil {
		return nil, err
	}

	a.resets = observer.NewResetCounter()
	a.resetLog = persistlog.NewResetLogger(cfg.DataDir, logger)
	ropts := []roguelite.Option{
		roguelite.WithLogger(logger.With("component", "roguelite")),
		roguelite.WithCycleSink(a.resetLog),
		roguelite.WithCycleSink(a.resets),
	}
	if a.idx != nil {
		ropts = append(ropts, roguelite.WithCycleSink(a.idx.CycleSink(a.srv.CurrentTick)))
	}
	a.resetter = roguelite.New(tune.ResetConfig(), ropts...)
	hostadapter.Install(a.srv, a.resetter)

	a.obs = observer.NewServer(a.srv, int64(tune.DayTicks), a.resets, logger)
	a.ws = ws.NewServer(a.srv, logger)

	rc := a.resetter.Config()
	logger.Info("roguelite reset installed",
		"day_ticks", rc.DayTicks,
		"morning_window_ticks", rc.MorningWindowTicks,
		"purge_storage", rc.PurgeStorage,
	)
	ok = true
	return a, nil
}

// restore imports -snapshot, or the newest snapshot under data/snapshots
// when -load_latest_snapshot is set.
func (a *app) restore() error {
	path := a.cfg.SnapshotPath
	if path == "" && a.cfg.LoadLatest {
		latest, err := snapshot.Latest(a.snapDir)
		if err != nil {
			return fmt.Errorf("find latest snapshot: %w", err)
		}
		path = latest
	}
	if path == "" {
		return nil
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if err := a.srv.ImportSnapshot(snap); err != nil {
		return fmt.Errorf("import snapshot %s: %w", path, err)
	}
	a.log.Info("snapshot loaded", "path", path, "tick", snap.Tick, "players", len(snap.Players))
	return nil
}

// start runs the simulation loop and the snapshot writer until ctx ends.
// The loop writes one last snapshot after it stops.
func (a *app) start(ctx context.Context) {
	writerDone := make(chan struct{})
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		defer close(writerDone)
		a.writeSnapshots(ctx)
	}()
	go func() {
		defer a.wg.Done()
		if err := a.srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("server loop stopped", "error", err)
		}
		<-writerDone
		if _, err := a.saveSnapshot(a.srv.ExportSnapshot()); err != nil {
			a.log.Error("final snapshot failed", "error", err)
		}
	}()
}

func (a *app) writeSnapshots(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-a.snapCh:
			if _, err := a.saveSnapshot(snap); err != nil {
				a.log.Error("snapshot write failed", "tick", snap.Tick, "error", err)
			}
		}
	}
}

func (a *app) saveSnapshot(snap snapshot.SnapshotV1) (string, error) {
	path := filepath.Join(a.snapDir, snapshot.FileName(snap.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if a.idx != nil {
		a.idx.RecordSnapshot(path, snap)
	}
	a.log.Info("snapshot written", "path", path, "tick", snap.Tick)
	return path, nil
}

// Close waits for the loop started by start, then flushes the sinks.
func (a *app) Close() {
	a.wg.Wait()
	a.closeSinks()
}

func (a *app) closeSinks() {
	warn := func(sink string, err error) {
		if err != nil {
			a.log.Warn("close failed", "sink", sink, "error", err)
		}
	}
	if a.resetLog != nil {
		warn("reset log", a.resetLog.Close())
	}
	if a.audit != nil {
		warn("audit log", a.audit.Close())
	}
	if a.idx != nil {
		warn("index", a.idx.Close())
	}
	if a.regions != nil {
		warn("region store", a.regions.Close())
	}
}
