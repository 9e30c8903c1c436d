package roguelite

import "roguelite.ai/internal/sim/world/logic/mathx"

// NeverReset is the marker value before the first reset of the process.
const NeverReset int64 = -1

// ResetMarker records the last day index a reset ran for. It lives only in
// memory and is owned by the server loop goroutine.
type ResetMarker struct {
	lastDay int64
}

func NewResetMarker() *ResetMarker {
	return &ResetMarker{lastDay: NeverReset}
}

func (m *ResetMarker) LastDay() int64 { return m.lastDay }

// Due reports whether a reset for day has not run yet. Any mismatch counts,
// including a day index lower than the last one (clock moved backwards).
func (m *ResetMarker) Due(day int64) bool { return day != m.lastDay }

func (m *ResetMarker) Mark(day int64) { m.lastDay = day }

// SplitClock returns the day index and the time within that day.
func SplitClock(clock, dayTicks int64) (day, timeOfDay int64) {
	return mathx.FloorDiv(clock, dayTicks), mathx.Mod(clock, dayTicks)
}
