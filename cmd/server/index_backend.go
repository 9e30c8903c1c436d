package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"roguelite.ai/internal/persistence/indexdb"
)

// openRuntimeIndex opens the read model selected by RL_INDEX_BACKEND.
// A nil index with nil error means indexing is off.
func openRuntimeIndex(dataDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("RL_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "roguelite.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported RL_INDEX_BACKEND: %s", backend)
	}
}
