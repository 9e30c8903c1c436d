package world

import (
	"testing"

	"roguelite.ai/internal/sim/catalogs"
)

type memAudit struct {
	entries []AuditEntry
}

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) count(action string) int {
	n := 0
	for _, e := range m.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func loadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(WorldConfig{
		ID:                 "overworld",
		Kind:               "OVERWORLD",
		MinY:               -64,
		MaxY:               319,
		SurfaceY:           64,
		Seed:               42,
		ViewRadiusChunks:   1,
		SpawnRadiusChunks:  1,
		ItemEntityTTLTicks: 100,
	}, loadCatalogs(t))
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func blockID(t *testing.T, w *World, name string) uint16 {
	t.Helper()
	id, ok := w.catalogs.Blocks.Index[name]
	if !ok {
		t.Fatalf("unknown block %s", name)
	}
	return id
}
