package world

import "sort"

// ChunkMapAccessor exposes the dimension's resident chunk holders, which are
// otherwise private to the chunk store. Callers must only read through it
// and only from the server loop goroutine.
type ChunkMapAccessor struct {
	store *ChunkStore
}

func (w *World) ChunkMap() ChunkMapAccessor { return ChunkMapAccessor{store: w.chunks} }

// VisibleChunks returns the holders ordered by chunk key.
func (a ChunkMapAccessor) VisibleChunks() []*ChunkHolder {
	out := make([]*ChunkHolder, 0, len(a.store.visible))
	for _, h := range a.store.visible {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}
