package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"roguelite.ai/internal/roguelite"
	"roguelite.ai/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst. Each hour is its own zstd stream.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{baseDir: baseDir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if hour := w.now().UTC().Format("2006-01-02-15"); hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(append(b, '\n')); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.PathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc = f, enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.w != nil {
		err = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.curHour = ""
	return err
}

func (w *JSONLZstdWriter) PathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// AuditLogger writes world audit entries under <dir>/audit.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }

// ResetRecord is the persisted form of one daily reset.
type ResetRecord struct {
	Time          string         `json:"time"`
	Day           int64          `json:"day"`
	TimeOfDay     int64          `json:"time_of_day"`
	Player        string         `json:"player"`
	SlotsCleared  int            `json:"slots_cleared"`
	ItemsRemoved  int            `json:"items_removed"`
	ItemsByLevel  map[string]int `json:"items_by_level,omitempty"`
	StoragePurged bool           `json:"storage_purged"`
	Storage       []StorageRow   `json:"storage,omitempty"`
}

type StorageRow struct {
	Level          string `json:"level"`
	Chests         int    `json:"chests"`
	Furnaces       int    `json:"furnaces"`
	ChestBoats     int    `json:"chest_boats"`
	MinecartChests int    `json:"minecart_chests"`
}

func NewResetRecord(c roguelite.Cycle, at time.Time) ResetRecord {
	r := ResetRecord{
		Time:          at.UTC().Format(time.RFC3339),
		Day:           c.Day,
		TimeOfDay:     c.TimeOfDay,
		Player:        c.Player,
		SlotsCleared:  c.Inventory.Cleared,
		ItemsRemoved:  c.Items.Total,
		StoragePurged: c.StoragePurged,
	}
	for _, l := range c.Items.PerLevel {
		if l.Items == 0 {
			continue
		}
		if r.ItemsByLevel == nil {
			r.ItemsByLevel = map[string]int{}
		}
		r.ItemsByLevel[l.Level] = l.Items
	}
	for _, s := range c.Storage.PerLevel {
		if s.Empty() {
			continue
		}
		r.Storage = append(r.Storage, StorageRow{
			Level: s.Level, Chests: s.Chests, Furnaces: s.Furnaces,
			ChestBoats: s.ChestBoats, MinecartChests: s.MinecartChests,
		})
	}
	return r
}

// ResetLogger records reset cycles under <dir>/resets. It implements
// roguelite.CycleSink; write failures are logged and counted, never
// returned to the simulation.
type ResetLogger struct {
	w      *JSONLZstdWriter
	log    *slog.Logger
	errors atomic.Int64
}

func NewResetLogger(dataDir string, logger *slog.Logger) *ResetLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "resets"), "resets"), log: logger}
}

func (l *ResetLogger) RecordCycle(c roguelite.Cycle) {
	if err := l.w.Write(NewResetRecord(c, l.w.now())); err != nil {
		l.errors.Add(1)
		l.log.Error("reset log write failed", "day", c.Day, "error", err)
	}
}

func (l *ResetLogger) Errors() int64 { return l.errors.Load() }
func (l *ResetLogger) Close() error  { return l.w.Close() }
