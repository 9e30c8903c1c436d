package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory (catalogs, tuning.yaml)")
		worldsPath  = flag.String("worlds", "", "dimension config path (default: <configs>/worlds.yaml)")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		seed        = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite read model")
		regionStore = flag.Bool("region_store", true, "persist unloaded chunks to region files under <data>/levels")
		allowGive   = flag.Bool("allow_give", false, "enable the GIVE debug action")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		logFormat = flag.String("log_format", "text", "log format: text or json")
		logLevel  = flag.String("log_level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	logger, err := newLogger(os.Stdout, *logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	a, err := newApp(appConfig{
		ConfigDir:    *configDir,
		WorldsPath:   *worldsPath,
		TuningPath:   *tuningPath,
		DataDir:      *dataDir,
		Seed:         *seed,
		SnapshotPath: *snapPath,
		LoadLatest:   *loadLatest,
		DisableDB:    *disableDB,
		RegionStore:  *regionStore,
		AllowGive:    *allowGive,
	}, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()
	a.start(ctx)

	enableAdmin := envBool("RL_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	if !enableAdmin {
		logger.Info("admin endpoints disabled (RL_ENABLE_ADMIN_HTTP=false)")
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           a.mux(enableAdmin, envBool("RL_ENABLE_PPROF_HTTP", false)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server failed", "error", err)
	}
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("bad -log_level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("bad -log_format %q (want text or json)", format)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
