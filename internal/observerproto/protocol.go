package observerproto

// Version is the observer protocol version (separate from the player WS protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeStatus    = "STATUS"
)

// Client -> Server. First message on the observer WS connection; re-sending
// it changes the push interval.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IntervalMS      int    `json:"interval_ms"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	TickRateHz      int         `json:"tick_rate_hz"`
	DayTicks        int64       `json:"day_ticks"`
	Levels          []LevelInfo `json:"levels"`
	BlockPalette    []string    `json:"block_palette"`
}

type LevelInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	MinY int    `json:"min_y"`
	MaxY int    `json:"max_y"`
}

// Server -> Client. Pushed every interval.
type StatusMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	PlayersOnline   int           `json:"players_online"`
	LastStepMS      float64       `json:"last_step_ms"`
	Levels          []LevelStatus `json:"levels"`
	Resets          ResetStatus   `json:"resets"`
}

type LevelStatus struct {
	ID             string `json:"id"`
	Day            int64  `json:"day"`
	TimeOfDay      int64  `json:"time_of_day"`
	ResidentChunks int    `json:"resident_chunks"`
	TickingChunks  int    `json:"ticking_chunks"`
	ItemEntities   int    `json:"item_entities"`
	Entities       int    `json:"entities"`
}

// ResetStatus summarizes daily resets since process start.
type ResetStatus struct {
	Cycles         uint64 `json:"cycles"`
	LastDay        int64  `json:"last_day"`
	ItemsRemoved   uint64 `json:"items_removed"`
	StorageRemoved uint64 `json:"storage_removed"`
}
