package multiworld

import (
	"time"

	"roguelite.ai/internal/sim/world"
)

// Metrics is published after every tick so HTTP handlers can read it
// without touching loop-owned state.
type Metrics struct {
	Tick          uint64
	PlayersOnline int
	PlayersKnown  int
	LastStep      time.Duration
	HandlerPanics uint64
	InboxDepth    int
	Levels        []LevelMetrics
}

type LevelMetrics struct {
	ID             string
	DayTime        int64
	ResidentChunks int
	TickingChunks  int
	ItemEntities   int
	Entities       int
	PersistErrors  int
}

func (s *Server) Metrics() Metrics {
	if m := s.metrics.Load(); m != nil {
		return *m
	}
	return Metrics{}
}

func (s *Server) publishMetrics(step time.Duration) {
	m := &Metrics{
		Tick:          s.tick.Load(),
		PlayersOnline: len(s.online),
		PlayersKnown:  len(s.players),
		LastStep:      step,
		HandlerPanics: s.handlerPanics.Load(),
		InboxDepth:    len(s.inbox),
	}
	for _, w := range s.levels {
		m.Levels = append(m.Levels, LevelMetrics{
			ID:             w.ID(),
			DayTime:        w.DayTime(),
			ResidentChunks: w.Chunks().ResidentCount(),
			TickingChunks:  w.Chunks().TickingChunkCount(),
			ItemEntities:   w.EntityCount(world.EntityItem),
			Entities:       w.EntityCount(""),
			PersistErrors:  w.Chunks().PersistErrors(),
		})
	}
	s.metrics.Store(m)
}
